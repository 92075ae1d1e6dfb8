package collab

import (
	"fmt"

	"github.com/tourplanner/tourplanner-backend/internal/itinerary/domain"
)

type edge struct {
	from, to domain.Status
}

// transitions lists every allowed status change and the least role that may
// perform it.
var transitions = map[edge]domain.Role{
	{domain.StatusDraft, domain.StatusSent}:    domain.RoleEditor,
	{domain.StatusSent, domain.StatusDraft}:    domain.RoleEditor,
	{domain.StatusSent, domain.StatusApproved}: domain.RoleApprover,
}

// CheckTransition returns ErrInvalidStateTransition when the edge does not
// exist or role is below the edge's minimum.
func CheckTransition(from, to domain.Status, role domain.Role) error {
	min, ok := transitions[edge{from, to}]
	if !ok {
		return fmt.Errorf("%w: %s -> %s", domain.ErrInvalidStateTransition, from, to)
	}
	if !role.AtLeast(min) {
		if role == "" {
			role = "none"
		}
		return fmt.Errorf("%w: %s -> %s requires %s, actor is %s",
			domain.ErrInvalidStateTransition, from, to, min, role)
	}
	return nil
}
