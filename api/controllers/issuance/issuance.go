// Package issuance exposes manual issuance, reissue and ticket re-sends.
package issuance

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/eventdesk-backend/api/middleware"
	"github.com/angelmondragon/eventdesk-backend/api/responses"
	"github.com/angelmondragon/eventdesk-backend/api/validators"
	internalissuance "github.com/angelmondragon/eventdesk-backend/internal/issuance"
	"github.com/angelmondragon/eventdesk-backend/pkg/logger"
)

type issueRequest struct {
	TierID        uuid.UUID `json:"tier_id" validate:"required"`
	Quantity      int       `json:"quantity" validate:"min=1,max=100"`
	AttendeeName  string    `json:"attendee_name" validate:"max=200"`
	AttendeeEmail string    `json:"attendee_email" validate:"required,email"`
	Reason        string    `json:"reason" validate:"max=500"`
	IsFree        bool      `json:"is_free"`
}

type reissueRequest struct {
	AttendeeName  string `json:"attendee_name" validate:"max=200"`
	AttendeeEmail string `json:"attendee_email" validate:"required,email"`
	Reason        string `json:"reason" validate:"max=500"`
}

type sendRequest struct {
	TicketIDs []uuid.UUID `json:"ticket_ids" validate:"required,min=1,max=100"`
	Email     string      `json:"email" validate:"required,email"`
	Name      string      `json:"name" validate:"max=200"`
}

func Issue(svc internalissuance.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.RequireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		eventID, err := validators.ParseUUIDParam(r, "eventId", "event id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body issueRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.IssueTickets(r.Context(), internalissuance.IssueTicketsInput{
			Actor:    actor,
			EventID:  eventID,
			TierID:   body.TierID,
			Quantity: body.Quantity,
			Attendee: internalissuance.Attendee{Name: body.AttendeeName, Email: body.AttendeeEmail},
			Reason:   validators.SanitizeString(body.Reason, validators.MaxReasonLength),
			IsFree:   body.IsFree,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func Reissue(svc internalissuance.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.RequireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId", "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ticketID, err := validators.ParseUUIDParam(r, "ticketId", "ticket id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body reissueRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.ReissueTicket(r.Context(), internalissuance.ReissueTicketInput{
			Actor:       actor,
			OrderID:     orderID,
			OldTicketID: ticketID,
			NewAttendee: internalissuance.Attendee{Name: body.AttendeeName, Email: body.AttendeeEmail},
			Reason:      validators.SanitizeString(body.Reason, validators.MaxReasonLength),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

func SendTickets(svc internalissuance.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.RequireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body sendRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.SendTicketsToEmail(r.Context(), internalissuance.SendTicketsInput{
			Actor:     actor,
			TicketIDs: body.TicketIDs,
			Email:     body.Email,
			Name:      body.Name,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
