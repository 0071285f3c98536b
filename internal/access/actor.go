// Package access carries the resolved caller identity into engine operations.
package access

import (
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/eventdesk-backend/pkg/errors"
	"github.com/angelmondragon/eventdesk-backend/pkg/outbox"
)

// Actor is the caller of an engine operation. OrganizerID is the organizer whose
// resources are being operated on: the caller's own organizer, or the organizer an
// admin is acting as.
type Actor struct {
	// UserID is the caller's own organizer row.
	UserID      uuid.UUID
	Subject     string
	OrganizerID uuid.UUID
	IsAdmin     bool
	ActingAs    bool
}

// Validate rejects actors that were not produced by the auth middleware.
func (a Actor) Validate() error {
	if a.UserID == uuid.Nil || strings.TrimSpace(a.Subject) == "" {
		return pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}
	if a.OrganizerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeForbidden, "organizer context missing")
	}
	return nil
}

// Owns reports whether the effective organizer owns a resource.
func (a Actor) Owns(organizerID uuid.UUID) bool {
	return organizerID != uuid.Nil && a.OrganizerID == organizerID
}

// OutboxRef describes the actor on emitted domain events.
func (a Actor) OutboxRef() *outbox.ActorRef {
	organizerID := a.OrganizerID
	return &outbox.ActorRef{
		UserID:      a.UserID,
		OrganizerID: &organizerID,
		ActingAs:    a.ActingAs,
	}
}
