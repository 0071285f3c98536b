package tickets

import (
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/eventdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/eventdesk-backend/pkg/errors"
)

var transitions = map[enums.TicketStatus][]enums.TicketStatus{
	enums.TicketStatusValid: {
		enums.TicketStatusUsed,
		enums.TicketStatusCancelled,
		enums.TicketStatusRefunded,
	},
}

// OutcomeFor maps the caller's pool choice to the terminal status: refunded
// tickets hand their seat back to the tier, cancelled tickets do not.
func OutcomeFor(releaseToPool bool) enums.TicketStatus {
	if releaseToPool {
		return enums.TicketStatusRefunded
	}
	return enums.TicketStatusCancelled
}

// CanTransition reports whether a ticket may move from one status to another.
func CanTransition(from, to enums.TicketStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// EnsureRefundable rejects tickets that are not valid.
func EnsureRefundable(status enums.TicketStatus) error {
	if status != enums.TicketStatusValid {
		return pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot cancel a ticket with status %q", status)
	}
	return nil
}

// EnsureReissuable rejects tickets that are not valid.
func EnsureReissuable(status enums.TicketStatus) error {
	if status != enums.TicketStatusValid {
		return pkgerrors.Newf(pkgerrors.CodeStateConflict, "cannot reissue a ticket with status %q", status)
	}
	return nil
}

// NewQRCodeSecret returns the opaque value encoded in a ticket's QR code.
func NewQRCodeSecret() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "") + strings.ReplaceAll(uuid.NewString(), "-", "")
}
