// Package events exposes event authoring, publication and the delete cascade
// to organizers.
package events

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/eventdesk-backend/api/middleware"
	"github.com/angelmondragon/eventdesk-backend/api/responses"
	"github.com/angelmondragon/eventdesk-backend/api/validators"
	"github.com/angelmondragon/eventdesk-backend/internal/access"
	internalevents "github.com/angelmondragon/eventdesk-backend/internal/events"
	"github.com/angelmondragon/eventdesk-backend/pkg/logger"
)

func Create(svc internalevents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, err := middleware.RequireActor(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body eventRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		event, err := svc.Create(r.Context(), internalevents.CreateEventInput{
			Actor:       actor,
			Fields:      body.fields(),
			Occurrences: body.occurrences(),
			Tiers:       body.tiers(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, event)
	}
}

func Update(svc internalevents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, eventID, err := actorAndEvent(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body eventRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		event, err := svc.Update(r.Context(), internalevents.UpdateEventInput{
			Actor:       actor,
			EventID:     eventID,
			Fields:      body.fields(),
			Occurrences: body.occurrences(),
			Tiers:       body.tiers(),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, event)
	}
}

func Detail(svc internalevents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, eventID, err := actorAndEvent(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		event, err := svc.Get(r.Context(), actor, eventID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, event)
	}
}

type transitionFunc func(ctx context.Context, actor access.Actor, eventID uuid.UUID) (*internalevents.StatusResult, error)

func transition(run transitionFunc, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, eventID, err := actorAndEvent(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := run(r.Context(), actor, eventID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func Publish(svc internalevents.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(svc.Publish, logg)
}

func Unpublish(svc internalevents.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(svc.Unpublish, logg)
}

func Cancel(svc internalevents.Service, logg *logger.Logger) http.HandlerFunc {
	return transition(svc.Cancel, logg)
}

// Delete removes an event without tickets, or cancels it with refunds when
// tickets exist. The body is optional for the first case.
func Delete(svc internalevents.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, eventID, err := actorAndEvent(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body deleteRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		result, err := svc.Delete(r.Context(), internalevents.DeleteEventInput{
			Actor:         actor,
			EventID:       eventID,
			Reason:        validators.SanitizeString(body.Reason, validators.MaxReasonLength),
			ReleaseToPool: body.ReleaseToPool,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func actorAndEvent(r *http.Request) (access.Actor, uuid.UUID, error) {
	actor, err := middleware.RequireActor(r.Context())
	if err != nil {
		return access.Actor{}, uuid.Nil, err
	}
	eventID, err := validators.ParseUUIDParam(r, "eventId", "event id")
	if err != nil {
		return access.Actor{}, uuid.Nil, err
	}
	return actor, eventID, nil
}
