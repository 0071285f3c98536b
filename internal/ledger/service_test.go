package ledger

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/eventdesk-backend/pkg/db/models"
	"github.com/angelmondragon/eventdesk-backend/pkg/enums"
)

type fakeRepository struct {
	createFn func(ctx context.Context, event *models.LedgerEvent) error
	events   []models.LedgerEvent
	tx       *gorm.DB
}

func (f *fakeRepository) WithTx(tx *gorm.DB) Repository {
	f.tx = tx
	return f
}

func (f *fakeRepository) Append(ctx context.Context, event *models.LedgerEvent) error {
	if f.createFn != nil {
		return f.createFn(ctx, event)
	}
	f.events = append(f.events, *event)
	return nil
}

func (f *fakeRepository) Find(ctx context.Context, filter Filter) ([]models.LedgerEvent, error) {
	var out []models.LedgerEvent
	for _, e := range f.events {
		if filter.EventID != uuid.Nil && e.EventID != filter.EventID {
			continue
		}
		if filter.OrderID != uuid.Nil && (e.OrderID == nil || *e.OrderID != filter.OrderID) {
			continue
		}
		if len(filter.Types) > 0 && !slices.Contains(filter.Types, e.Type) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (f *fakeRepository) Count(ctx context.Context, filter Filter) (int64, error) {
	found, err := f.Find(ctx, filter)
	return int64(len(found)), err
}

func TestService_RecordEvent(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	orderID := uuid.New()
	ticketID := uuid.New()
	input := RecordLedgerEventInput{
		EventID:     uuid.New(),
		OrderID:     &orderID,
		TicketID:    &ticketID,
		ActorUserID: uuid.New(),
		Type:        enums.LedgerEventTypeRefundIssued,
		AmountMinor: 2500,
		Currency:    enums.CurrencyCAD,
		RefundID:    "re_123",
		Metadata:    map[string]any{"reason": "duplicate"},
	}

	got, err := svc.RecordEvent(context.Background(), nil, input)
	if err != nil {
		t.Fatalf("RecordEvent error: %v", err)
	}
	if len(repo.events) != 1 {
		t.Fatalf("expected one ledger row, got %d", len(repo.events))
	}
	created := repo.events[0]
	if created.EventID != input.EventID || created.Type != input.Type || created.AmountMinor != 2500 {
		t.Fatalf("unexpected ledger event data: %+v", created)
	}
	if created.RefundID == nil || *created.RefundID != "re_123" {
		t.Fatalf("expected refund id, got %v", created.RefundID)
	}
	if string(created.Metadata) != `{"reason":"duplicate"}` {
		t.Fatalf("metadata mismatch: %s", created.Metadata)
	}
	if got.ActorUserID != input.ActorUserID {
		t.Fatalf("service should return created event")
	}

	has, err := svc.HasEvent(context.Background(), orderID, enums.LedgerEventTypeRefundIssued)
	if err != nil || !has {
		t.Fatalf("expected HasEvent true, got %v %v", has, err)
	}
	has, _ = svc.HasEvent(context.Background(), orderID, enums.LedgerEventTypeRefundFailed)
	if has {
		t.Fatal("expected no refund_failed event")
	}

	entries, err := svc.Entries(context.Background(), Filter{EventID: input.EventID})
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected one entry for the event, got %d (%v)", len(entries), err)
	}
	if _, err := svc.Entries(context.Background(), Filter{}); err == nil {
		t.Fatal("expected unscoped listing to be rejected")
	}
}

func TestService_RecordEventDefaultsCurrency(t *testing.T) {
	repo := &fakeRepository{}
	svc, _ := NewService(repo)

	event, err := svc.RecordEvent(context.Background(), nil, RecordLedgerEventInput{
		EventID:     uuid.New(),
		ActorUserID: uuid.New(),
		Type:        enums.LedgerEventTypeEventCancelled,
	})
	if err != nil {
		t.Fatalf("RecordEvent error: %v", err)
	}
	if event.Currency != enums.CurrencyCAD {
		t.Fatalf("expected cad default, got %q", event.Currency)
	}
}

func TestService_RecordEventValidation(t *testing.T) {
	svc, err := NewService(&fakeRepository{})
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	tests := []struct {
		name  string
		input RecordLedgerEventInput
	}{
		{
			name:  "missing event id",
			input: RecordLedgerEventInput{ActorUserID: uuid.New(), Type: enums.LedgerEventTypeRefundIssued},
		},
		{
			name:  "missing actor",
			input: RecordLedgerEventInput{EventID: uuid.New(), Type: enums.LedgerEventTypeRefundIssued},
		},
		{
			name:  "invalid type",
			input: RecordLedgerEventInput{EventID: uuid.New(), ActorUserID: uuid.New(), Type: "not_real"},
		},
		{
			name: "negative amount",
			input: RecordLedgerEventInput{
				EventID:     uuid.New(),
				ActorUserID: uuid.New(),
				Type:        enums.LedgerEventTypeRefundIssued,
				AmountMinor: -1,
			},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.RecordEvent(context.Background(), nil, tc.input); err == nil {
				t.Fatalf("expected validation error for %s", tc.name)
			}
		})
	}
}

func TestService_RecordEventRepoError(t *testing.T) {
	repo := &fakeRepository{}
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("unexpected service error: %v", err)
	}

	expectedErr := errors.New("boom")
	repo.createFn = func(ctx context.Context, event *models.LedgerEvent) error {
		return expectedErr
	}

	if _, err := svc.RecordEvent(context.Background(), nil, RecordLedgerEventInput{
		EventID:     uuid.New(),
		ActorUserID: uuid.New(),
		Type:        enums.LedgerEventTypeRefundFailed,
		AmountMinor: 100,
	}); !errors.Is(err, expectedErr) {
		t.Fatalf("expected repo error to bubble up, got %v", err)
	}
}
