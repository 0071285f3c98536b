package enums

// EmailTemplate names the transactional email the delivery service renders.
type EmailTemplate string

const (
	EmailTemplateTicketCancelled EmailTemplate = "ticket_cancelled"
	EmailTemplateTickets         EmailTemplate = "tickets"
)
