// Package inventory owns the only writes to tier remaining_quantity and event
// total_tickets_sold. Every write is a single delta statement executed on the
// caller's transaction, so concurrent cancellations and issuances never
// overwrite each other.
package inventory

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/eventdesk-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/eventdesk-backend/pkg/errors"
	"github.com/angelmondragon/eventdesk-backend/pkg/metrics"
)

var errTxRequired = errors.New("transaction required")

// Ledger applies inventory deltas.
type Ledger struct {
	metrics *metrics.InventoryMetrics
}

func NewLedger(m *metrics.InventoryMetrics) *Ledger {
	return &Ledger{metrics: m}
}

// ReleaseUnits returns count units to the tier's sellable pool. The guard keeps
// remaining_quantity at or below initial_quantity.
func (l *Ledger) ReleaseUnits(ctx context.Context, tx *gorm.DB, tierID uuid.UUID, count int) error {
	if tx == nil {
		return errTxRequired
	}
	if count <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "release count must be positive")
	}
	res := tx.WithContext(ctx).Exec(
		`UPDATE ticket_tiers
		    SET remaining_quantity = remaining_quantity + ?, updated_at = ?
		  WHERE id = ? AND remaining_quantity + ? <= initial_quantity`,
		count, time.Now().UTC(), tierID, count,
	)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release tier inventory")
	}
	if res.RowsAffected == 0 {
		if _, err := loadTier(ctx, tx, tierID); err != nil {
			return err
		}
		return pkgerrors.New(pkgerrors.CodeStateConflict, "inventory release would exceed tier capacity").
			WithDetails(map[string]any{"tier_id": tierID, "count": count})
	}
	l.metrics.AddUnits(metrics.DirectionReleased, count)
	return nil
}

// ConsumeUnits takes count units out of the tier's pool, failing with the fresh
// remaining count when there are not enough.
func (l *Ledger) ConsumeUnits(ctx context.Context, tx *gorm.DB, tierID uuid.UUID, count int) error {
	if tx == nil {
		return errTxRequired
	}
	if count <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	res := tx.WithContext(ctx).Exec(
		`UPDATE ticket_tiers
		    SET remaining_quantity = remaining_quantity - ?, updated_at = ?
		  WHERE id = ? AND remaining_quantity >= ?`,
		count, time.Now().UTC(), tierID, count,
	)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "consume tier inventory")
	}
	if res.RowsAffected == 0 {
		tier, err := loadTier(ctx, tx, tierID)
		if err != nil {
			return err
		}
		return InsufficientError(tier.Name, tier.RemainingQuantity)
	}
	l.metrics.AddUnits(metrics.DirectionConsumed, count)
	return nil
}

// DecrementEventSold lowers total_tickets_sold by count, floored at zero.
func (l *Ledger) DecrementEventSold(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, count int) error {
	if tx == nil {
		return errTxRequired
	}
	if count <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "decrement count must be positive")
	}
	res := tx.WithContext(ctx).Exec(
		`UPDATE events
		    SET total_tickets_sold = CASE WHEN total_tickets_sold >= ? THEN total_tickets_sold - ? ELSE 0 END,
		        updated_at = ?
		  WHERE id = ?`,
		count, count, time.Now().UTC(), eventID,
	)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "decrement event sold count")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
	}
	l.metrics.AddSold(metrics.DirectionReleased, count)
	return nil
}

// IncrementEventSold raises total_tickets_sold by count.
func (l *Ledger) IncrementEventSold(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, count int) error {
	if tx == nil {
		return errTxRequired
	}
	if count <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "increment count must be positive")
	}
	res := tx.WithContext(ctx).Exec(
		`UPDATE events SET total_tickets_sold = total_tickets_sold + ?, updated_at = ? WHERE id = ?`,
		count, time.Now().UTC(), eventID,
	)
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "increment event sold count")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "event not found")
	}
	l.metrics.AddSold(metrics.DirectionConsumed, count)
	return nil
}

// ReleaseByTier releases each tier's count and decrements the event's sold
// count by the total. Tiers are updated in a stable order so concurrent
// releases lock rows in the same sequence.
func (l *Ledger) ReleaseByTier(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, counts map[uuid.UUID]int) error {
	if tx == nil {
		return errTxRequired
	}
	tierIDs := make([]uuid.UUID, 0, len(counts))
	total := 0
	for tierID, count := range counts {
		if count <= 0 {
			continue
		}
		tierIDs = append(tierIDs, tierID)
		total += count
	}
	if total == 0 {
		return nil
	}
	sort.Slice(tierIDs, func(i, j int) bool { return tierIDs[i].String() < tierIDs[j].String() })

	for _, tierID := range tierIDs {
		if err := l.ReleaseUnits(ctx, tx, tierID, counts[tierID]); err != nil {
			return err
		}
	}
	return l.DecrementEventSold(ctx, tx, eventID, total)
}

// InsufficientError reports the remaining count the organizer can still issue.
func InsufficientError(tierName string, remaining int) error {
	return pkgerrors.Newf(pkgerrors.CodeInsufficientInventory, "only %d tickets remaining in %q", remaining, tierName).
		WithDetails(map[string]any{"remaining": remaining})
}

func loadTier(ctx context.Context, tx *gorm.DB, tierID uuid.UUID) (*models.TicketTier, error) {
	var tier models.TicketTier
	if err := tx.WithContext(ctx).Where("id = ?", tierID).First(&tier).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "ticket tier not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load ticket tier")
	}
	return &tier, nil
}
