// Package dbtest opens an isolated in-memory sqlite database carrying the
// service schema, for repository and engine tests.
package dbtest

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/eventdesk-backend/pkg/db"
)

var schema = []string{
	`CREATE TABLE organizers (
		id TEXT PRIMARY KEY,
		auth_subject TEXT NOT NULL UNIQUE,
		email TEXT NOT NULL,
		display_name TEXT,
		is_admin BOOLEAN NOT NULL DEFAULT 0,
		stripe_account_id TEXT,
		stripe_onboarding_completed BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE events (
		id TEXT PRIMARY KEY,
		organizer_id TEXT NOT NULL,
		status TEXT NOT NULL,
		title TEXT NOT NULL,
		slug TEXT NOT NULL,
		description TEXT,
		location_type TEXT NOT NULL,
		venue_name TEXT,
		address_text TEXT,
		city TEXT,
		currency TEXT NOT NULL,
		sales_start_at DATETIME,
		sales_end_at DATETIME,
		total_capacity INTEGER NOT NULL,
		total_tickets_sold INTEGER NOT NULL DEFAULT 0,
		cancellation_reason TEXT,
		cancelled_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE event_occurrences (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		starts_at DATETIME NOT NULL,
		ends_at DATETIME NOT NULL,
		label TEXT,
		created_at DATETIME
	)`,
	`CREATE TABLE ticket_tiers (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		name TEXT NOT NULL,
		description TEXT,
		price TEXT NOT NULL,
		currency TEXT NOT NULL,
		initial_quantity INTEGER NOT NULL,
		remaining_quantity INTEGER NOT NULL CHECK (remaining_quantity >= 0 AND remaining_quantity <= initial_quantity),
		max_per_order INTEGER NOT NULL,
		sales_start_at DATETIME,
		sales_end_at DATETIME,
		is_hidden BOOLEAN NOT NULL DEFAULT 0,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE orders (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		payment_reference TEXT,
		currency TEXT NOT NULL,
		status TEXT NOT NULL,
		source_app TEXT NOT NULL,
		total_amount TEXT NOT NULL,
		buyer_email TEXT NOT NULL,
		buyer_name TEXT NOT NULL,
		notes TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE order_items (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		tier_id TEXT NOT NULL,
		quantity INTEGER NOT NULL,
		unit_price TEXT NOT NULL,
		subtotal TEXT NOT NULL,
		created_at DATETIME
	)`,
	`CREATE TABLE tickets (
		id TEXT PRIMARY KEY,
		order_id TEXT NOT NULL,
		tier_id TEXT NOT NULL,
		event_id TEXT NOT NULL,
		attendee_name TEXT NOT NULL,
		attendee_email TEXT NOT NULL,
		status TEXT NOT NULL,
		qr_code_secret TEXT NOT NULL,
		issued_by TEXT,
		issue_reason TEXT,
		original_ticket_id TEXT,
		cancelled_at DATETIME,
		cancellation_reason TEXT,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE ledger_events (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		order_id TEXT,
		ticket_id TEXT,
		actor_user_id TEXT NOT NULL,
		type TEXT NOT NULL,
		amount_minor INTEGER NOT NULL,
		currency TEXT NOT NULL,
		refund_id TEXT,
		metadata BLOB,
		created_at DATETIME
	)`,
	`CREATE TABLE outbox_events (
		id TEXT PRIMARY KEY,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload BLOB NOT NULL,
		created_at DATETIME,
		published_at DATETIME,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		last_error TEXT
	)`,
	`CREATE TABLE outbox_dlq (
		id TEXT PRIMARY KEY,
		event_id TEXT NOT NULL,
		event_type TEXT NOT NULL,
		aggregate_type TEXT NOT NULL,
		aggregate_id TEXT NOT NULL,
		payload_json BLOB NOT NULL,
		error_reason TEXT NOT NULL,
		error_message TEXT,
		attempt_count INTEGER NOT NULL DEFAULT 0,
		failed_at DATETIME,
		created_at DATETIME
	)`,
}

// New returns a client over a fresh database. A single pooled connection keeps
// the in-memory database alive and serializes transactions the way row locks would.
func New(t *testing.T) *db.Client {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	conn, err := gorm.Open(sqlite.Open(dsn), db.GormConfig(nil))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sqlite handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	for _, stmt := range schema {
		if err := conn.Exec(stmt).Error; err != nil {
			t.Fatalf("apply schema: %v", err)
		}
	}
	return db.Wrap(conn)
}
