package db_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/eventdesk-backend/pkg/db"
	"github.com/angelmondragon/eventdesk-backend/pkg/db/dbtest"
	"github.com/angelmondragon/eventdesk-backend/pkg/db/models"
)

func TestWithTx_CommitsAndRollbacks(t *testing.T) {
	client := dbtest.New(t)
	ctx := context.Background()

	committed := models.Organizer{ID: uuid.New(), AuthSubject: "auth|committed", Email: "a@example.com"}
	if err := client.WithTx(ctx, func(tx *gorm.DB) error {
		return tx.Create(&committed).Error
	}); err != nil {
		t.Fatalf("WithTx commit failed: %v", err)
	}

	err := client.WithTx(ctx, func(tx *gorm.DB) error {
		rolled := models.Organizer{ID: uuid.New(), AuthSubject: "auth|rolled", Email: "b@example.com"}
		if err := tx.Create(&rolled).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	if err == nil {
		t.Fatal("expected WithTx to return an error")
	}

	var count int64
	if err := client.DB().Model(&models.Organizer{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed after rollback: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected rollback to leave 1 record, got %d", count)
	}
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	client := dbtest.New(t)
	ctx := context.Background()

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("expected panic to propagate")
			}
		}()
		_ = client.WithTx(ctx, func(tx *gorm.DB) error {
			if err := tx.Create(&models.Organizer{ID: uuid.New(), AuthSubject: "auth|panic", Email: "p@example.com"}).Error; err != nil {
				return err
			}
			panic("mid-transaction")
		})
	}()

	var count int64
	if err := client.DB().Model(&models.Organizer{}).Count(&count).Error; err != nil {
		t.Fatalf("count failed: %v", err)
	}
	if count != 0 {
		t.Fatalf("expected panic rollback, got %d rows", count)
	}
}

func TestPing(t *testing.T) {
	client := dbtest.New(t)
	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("unexpected ping error: %v", err)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	client := dbtest.New(t)
	ctx := context.Background()

	first := models.Organizer{ID: uuid.New(), AuthSubject: "auth|dup", Email: "d@example.com"}
	if err := client.DB().WithContext(ctx).Create(&first).Error; err != nil {
		t.Fatalf("create: %v", err)
	}
	err := client.DB().WithContext(ctx).Create(&models.Organizer{ID: uuid.New(), AuthSubject: "auth|dup", Email: "e@example.com"}).Error
	if !db.IsUniqueViolation(err, "") {
		t.Fatalf("expected unique violation, got %v", err)
	}
	if db.IsUniqueViolation(errors.New("connection refused"), "") {
		t.Fatal("plain errors are not unique violations")
	}
}
