package enums

// LedgerEventType maps to the ledger_event_type_enum enum in Postgres.
type LedgerEventType string

const (
	LedgerEventTypeRefundIssued     LedgerEventType = "refund_issued"
	LedgerEventTypeRefundFailed     LedgerEventType = "refund_failed"
	LedgerEventTypeTicketsCancelled LedgerEventType = "tickets_cancelled"
	LedgerEventTypeTicketsIssued    LedgerEventType = "tickets_issued"
	LedgerEventTypeTicketReissued   LedgerEventType = "ticket_reissued"
	LedgerEventTypeEventCancelled   LedgerEventType = "event_cancelled"
)

var validLedgerEventTypes = []LedgerEventType{
	LedgerEventTypeRefundIssued,
	LedgerEventTypeRefundFailed,
	LedgerEventTypeTicketsCancelled,
	LedgerEventTypeTicketsIssued,
	LedgerEventTypeTicketReissued,
	LedgerEventTypeEventCancelled,
}

// IsValid reports whether the value matches the canonical ledger event enum.
func (t LedgerEventType) IsValid() bool {
	return known(t, validLedgerEventTypes)
}
