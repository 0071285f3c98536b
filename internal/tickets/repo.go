package tickets

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/eventdesk-backend/pkg/db/models"
	"github.com/angelmondragon/eventdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/eventdesk-backend/pkg/errors"
)

// inventoryConsumer is the inventory side of ticket creation.
type inventoryConsumer interface {
	ConsumeUnits(ctx context.Context, tx *gorm.DB, tierID uuid.UUID, count int) error
	IncrementEventSold(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, count int) error
}

// Repository persists tickets. Status changes only go through TransitionFromValid.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Ticket, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Ticket, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Ticket, error)
	ListValidByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Ticket, error)
	CountByEvent(ctx context.Context, eventID uuid.UUID) (int64, error)
	CountValidByOrder(ctx context.Context, orderID uuid.UUID) (int64, error)
	TransitionFromValid(ctx context.Context, ids []uuid.UUID, to enums.TicketStatus, reason string, at time.Time) (int64, error)
	CreateIssued(ctx context.Context, tickets []models.Ticket) error
}

type repository struct {
	db        *gorm.DB
	inventory inventoryConsumer
	inTx      bool
}

func NewRepository(db *gorm.DB, inventory inventoryConsumer) Repository {
	return &repository{db: db, inventory: inventory}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx, inventory: r.inventory, inTx: true}
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Ticket, error) {
	var ticket models.Ticket
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&ticket).Error; err != nil {
		return nil, err
	}
	return &ticket, nil
}

func (r *repository) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Ticket, error) {
	var tickets []models.Ticket
	if len(ids) == 0 {
		return tickets, nil
	}
	err := r.db.WithContext(ctx).
		Where("id IN ?", ids).
		Order("created_at ASC").
		Order("id ASC").
		Find(&tickets).Error
	return tickets, err
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := r.db.WithContext(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&tickets).Error
	return tickets, err
}

func (r *repository) ListValidByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Ticket, error) {
	var tickets []models.Ticket
	err := r.db.WithContext(ctx).
		Where("event_id = ? AND status = ?", eventID, enums.TicketStatusValid).
		Order("order_id ASC").
		Order("created_at ASC").
		Order("id ASC").
		Find(&tickets).Error
	return tickets, err
}

// CountByEvent counts tickets in any status; a non-zero count means the event
// has ever had tickets issued.
func (r *repository) CountByEvent(ctx context.Context, eventID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Ticket{}).Where("event_id = ?", eventID).Count(&count).Error
	return count, err
}

func (r *repository) CountValidByOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Ticket{}).
		Where("order_id = ? AND status = ?", orderID, enums.TicketStatusValid).
		Count(&count).Error
	return count, err
}

// TransitionFromValid moves the still-valid tickets among ids to a terminal
// status and returns how many rows actually moved. Tickets that another
// request already transitioned are left alone.
func (r *repository) TransitionFromValid(ctx context.Context, ids []uuid.UUID, to enums.TicketStatus, reason string, at time.Time) (int64, error) {
	if !CanTransition(enums.TicketStatusValid, to) {
		return 0, pkgerrors.Newf(pkgerrors.CodeInternal, "ticket cannot move from valid to %q", to)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	updates := map[string]any{
		"status":     to,
		"updated_at": at,
	}
	if to == enums.TicketStatusCancelled || to == enums.TicketStatusRefunded {
		updates["cancelled_at"] = at
		updates["cancellation_reason"] = reason
	}
	res := r.db.WithContext(ctx).Model(&models.Ticket{}).
		Where("id IN ? AND status = ?", ids, enums.TicketStatusValid).
		Updates(updates)
	return res.RowsAffected, res.Error
}

// CreateIssued inserts new valid tickets and consumes their inventory in the
// same transaction: one unit per ticket from its tier and one sold per ticket
// on its event.
func (r *repository) CreateIssued(ctx context.Context, tickets []models.Ticket) error {
	if !r.inTx {
		return errors.New("transaction required")
	}
	if r.inventory == nil {
		return errors.New("inventory consumer required")
	}
	if len(tickets) == 0 {
		return nil
	}

	perTier := map[uuid.UUID]int{}
	perEvent := map[uuid.UUID]int{}
	for i := range tickets {
		if tickets[i].ID == uuid.Nil {
			tickets[i].ID = uuid.New()
		}
		if tickets[i].QRCodeSecret == "" {
			tickets[i].QRCodeSecret = NewQRCodeSecret()
		}
		tickets[i].Status = enums.TicketStatusValid
		perTier[tickets[i].TierID]++
		perEvent[tickets[i].EventID]++
	}

	for _, tierID := range sortedKeys(perTier) {
		if err := r.inventory.ConsumeUnits(ctx, r.db, tierID, perTier[tierID]); err != nil {
			return err
		}
	}
	for _, eventID := range sortedKeys(perEvent) {
		if err := r.inventory.IncrementEventSold(ctx, r.db, eventID, perEvent[eventID]); err != nil {
			return err
		}
	}
	return r.db.WithContext(ctx).Create(&tickets).Error
}

func sortedKeys(m map[uuid.UUID]int) []uuid.UUID {
	keys := make([]uuid.UUID, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].String() < keys[j].String() })
	return keys
}
