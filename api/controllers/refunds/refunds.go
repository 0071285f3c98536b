// Package refunds exposes single-ticket and whole-order refunds.
package refunds

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/eventdesk-backend/api/middleware"
	"github.com/angelmondragon/eventdesk-backend/api/responses"
	"github.com/angelmondragon/eventdesk-backend/api/validators"
	internalrefunds "github.com/angelmondragon/eventdesk-backend/internal/refunds"
	"github.com/angelmondragon/eventdesk-backend/pkg/logger"
)

type refundTicketRequest struct {
	Reason        string `json:"reason" validate:"max=500"`
	ReleaseToPool bool   `json:"release_to_pool"`
}

// refundOrderRequest refunds every valid ticket on the order unless TicketIDs
// narrows it.
type refundOrderRequest struct {
	Reason        string      `json:"reason" validate:"max=500"`
	ReleaseToPool bool        `json:"release_to_pool"`
	TicketIDs     []uuid.UUID `json:"ticket_ids" validate:"max=500"`
}

func RefundTicket(svc internalrefunds.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.RequireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		ticketID, err := validators.ParseUUIDParam(r, "ticketId", "ticket id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body refundTicketRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithField(r.Context(), "ticket_id", ticketID.String())
		result, err := svc.RefundTicket(ctx, internalrefunds.RefundTicketInput{
			Actor:         actor,
			TicketID:      ticketID,
			Reason:        validators.SanitizeString(body.Reason, validators.MaxReasonLength),
			ReleaseToPool: body.ReleaseToPool,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func RefundOrder(svc internalrefunds.Service, logg *logger.Logger) http.HandlerFunc {
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
		var body refundOrderRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := logg.WithField(r.Context(), "order_id", orderID.String())
		result, err := svc.RefundOrder(ctx, internalrefunds.RefundOrderInput{
			Actor:         actor,
			OrderID:       orderID,
			Reason:        validators.SanitizeString(body.Reason, validators.MaxReasonLength),
			ReleaseToPool: body.ReleaseToPool,
			TicketIDs:     body.TicketIDs,
		})
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}
