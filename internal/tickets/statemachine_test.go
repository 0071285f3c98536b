package tickets

import (
	"testing"

	"github.com/angelmondragon/eventdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/eventdesk-backend/pkg/errors"
)

func TestOutcomeFor(t *testing.T) {
	if got := OutcomeFor(true); got != enums.TicketStatusRefunded {
		t.Fatalf("expected refunded, got %s", got)
	}
	if got := OutcomeFor(false); got != enums.TicketStatusCancelled {
		t.Fatalf("expected cancelled, got %s", got)
	}
}

func TestCanTransition(t *testing.T) {
	all := []enums.TicketStatus{
		enums.TicketStatusValid,
		enums.TicketStatusUsed,
		enums.TicketStatusCancelled,
		enums.TicketStatusRefunded,
	}
	for _, from := range all {
		for _, to := range all {
			want := from == enums.TicketStatusValid && to != enums.TicketStatusValid
			if got := CanTransition(from, to); got != want {
				t.Fatalf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestEnsureRefundable(t *testing.T) {
	if err := EnsureRefundable(enums.TicketStatusValid); err != nil {
		t.Fatalf("expected valid ticket to be refundable: %v", err)
	}
	err := EnsureRefundable(enums.TicketStatusUsed)
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if typed.Message() != `cannot cancel a ticket with status "used"` {
		t.Fatalf("unexpected message %q", typed.Message())
	}
}

func TestEnsureReissuable(t *testing.T) {
	typed := pkgerrors.As(EnsureReissuable(enums.TicketStatusRefunded))
	if typed == nil || typed.Message() != `cannot reissue a ticket with status "refunded"` {
		t.Fatalf("unexpected error %v", typed)
	}
}

func TestNewQRCodeSecretIsUnique(t *testing.T) {
	a, b := NewQRCodeSecret(), NewQRCodeSecret()
	if a == b || len(a) != 64 {
		t.Fatalf("unexpected secrets %q %q", a, b)
	}
}
