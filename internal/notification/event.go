package notification

import "time"

type EventType string

const (
	EventVersionCommitted  EventType = "version.committed"
	EventStatusChanged     EventType = "status.changed"
	EventCommentAdded      EventType = "comment.added"
	EventCollaboratorAdded EventType = "collaborator.added"
)

type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
)

// Routes decides which channels carry each event.
var Routes = map[EventType][]Channel{
	EventVersionCommitted:  {ChannelEmail},
	EventStatusChanged:     {ChannelEmail, ChannelWhatsApp},
	EventCommentAdded:      {ChannelEmail},
	EventCollaboratorAdded: {ChannelEmail, ChannelWhatsApp},
}

// Event is something that happened to an itinerary that collaborators should
// hear about.
type Event struct {
	Type           EventType `json:"type"`
	ItineraryID    string    `json:"itinerary_id"`
	ItineraryTitle string    `json:"itinerary_title,omitempty"`
	Actor          string    `json:"actor,omitempty"`
	VersionNumber  int       `json:"version_number,omitempty"`
	Status         string    `json:"status,omitempty"`
	CommentID      string    `json:"comment_id,omitempty"`
	Subject        string    `json:"subject,omitempty"` // user the event is about
	OccurredAt     time.Time `json:"occurred_at"`
}

// Job is one delivery of an event to one recipient over one channel.
type Job struct {
	ID        string  `json:"id"`
	Event     Event   `json:"event"`
	Channel   Channel `json:"channel"`
	Recipient string  `json:"recipient"`
	Attempts  int     `json:"attempts"`
	LastError string  `json:"last_error,omitempty"`
}
