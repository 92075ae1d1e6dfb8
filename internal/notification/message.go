package notification

import (
	"fmt"

	"github.com/tourplanner/tourplanner-backend/internal/users"
)

// Compose builds the message for a job. ok is false when the contact has no
// address on the job's channel.
func Compose(j Job, c users.Contact) (msg Message, ok bool) {
	switch j.Channel {
	case ChannelEmail:
		msg.To = c.Email
	case ChannelWhatsApp:
		msg.To = c.WhatsAppNumber
	}
	if msg.To == "" {
		return Message{}, false
	}

	ev := j.Event
	title := ev.ItineraryTitle
	if title == "" {
		title = ev.ItineraryID
	}
	name := c.DisplayName
	if name == "" {
		name = "there"
	}

	switch ev.Type {
	case EventVersionCommitted:
		msg.Subject = fmt.Sprintf("%s: version %d saved", title, ev.VersionNumber)
		msg.Body = fmt.Sprintf("Hi %s,\n\n%s saved version %d of %q.", name, actorName(ev.Actor), ev.VersionNumber, title)
	case EventStatusChanged:
		msg.Subject = fmt.Sprintf("%s is now %s", title, ev.Status)
		msg.Body = fmt.Sprintf("Hi %s,\n\n%s moved %q to %s.", name, actorName(ev.Actor), title, ev.Status)
	case EventCommentAdded:
		msg.Subject = fmt.Sprintf("New comment on %s", title)
		msg.Body = fmt.Sprintf("Hi %s,\n\n%s commented on version %d of %q.", name, actorName(ev.Actor), ev.VersionNumber, title)
	case EventCollaboratorAdded:
		msg.Subject = fmt.Sprintf("You have access to %s", title)
		msg.Body = fmt.Sprintf("Hi %s,\n\n%s shared %q with you.", name, actorName(ev.Actor), title)
		if ev.Subject != j.Recipient {
			msg.Subject = fmt.Sprintf("%s: new collaborator", title)
			msg.Body = fmt.Sprintf("Hi %s,\n\n%s added %s to %q.", name, actorName(ev.Actor), ev.Subject, title)
		}
	default:
		msg.Subject = title
		msg.Body = fmt.Sprintf("Hi %s,\n\n%q was updated.", name, title)
	}
	return msg, true
}

func actorName(a string) string {
	if a == "" {
		return "Someone"
	}
	return a
}
