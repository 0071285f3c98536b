package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/eventdesk-backend/api/middleware"
	"github.com/angelmondragon/eventdesk-backend/internal/access"
	internalevents "github.com/angelmondragon/eventdesk-backend/internal/events"
	"github.com/angelmondragon/eventdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/eventdesk-backend/pkg/errors"
)

type stubService struct {
	create  func(internalevents.CreateEventInput) (*internalevents.EventDTO, error)
	publish func(access.Actor, uuid.UUID) (*internalevents.StatusResult, error)
	delete  func(internalevents.DeleteEventInput) (*internalevents.DeleteEventResult, error)
}

func (s stubService) Create(_ context.Context, input internalevents.CreateEventInput) (*internalevents.EventDTO, error) {
	return s.create(input)
}

func (s stubService) Update(context.Context, internalevents.UpdateEventInput) (*internalevents.EventDTO, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not stubbed")
}

func (s stubService) Get(context.Context, access.Actor, uuid.UUID) (*internalevents.EventDTO, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "event not found or not authorized")
}

func (s stubService) Publish(_ context.Context, actor access.Actor, id uuid.UUID) (*internalevents.StatusResult, error) {
	return s.publish(actor, id)
}

func (s stubService) Unpublish(context.Context, access.Actor, uuid.UUID) (*internalevents.StatusResult, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not stubbed")
}

func (s stubService) Cancel(context.Context, access.Actor, uuid.UUID) (*internalevents.StatusResult, error) {
	return nil, pkgerrors.New(pkgerrors.CodeInternal, "not stubbed")
}

func (s stubService) Delete(_ context.Context, input internalevents.DeleteEventInput) (*internalevents.DeleteEventResult, error) {
	return s.delete(input)
}

func (s stubService) CompletePastEvents(context.Context, time.Time) (int, error) {
	return 0, nil
}

var testActor = access.Actor{UserID: uuid.New(), Subject: "auth0|org", OrganizerID: uuid.New()}

func newRequest(method, target, body string, eventID string) *http.Request {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	rctx := chi.NewRouteContext()
	if eventID != "" {
		rctx.URLParams.Add("eventId", eventID)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	return req.WithContext(middleware.WithActor(ctx, testActor))
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) (string, string) {
	t.Helper()
	var env struct {
		Error struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(resp.Body.Bytes(), &env))
	return env.Error.Code, env.Error.Message
}

func TestCreateReturnsCreatedEvent(t *testing.T) {
	var got internalevents.CreateEventInput
	svc := stubService{create: func(input internalevents.CreateEventInput) (*internalevents.EventDTO, error) {
		got = input
		return &internalevents.EventDTO{ID: uuid.New(), Title: input.Fields.Title, Status: enums.EventStatusDraft}, nil
	}}

	body := `{"title":"Winter Gala","location_type":"physical","ticket_tiers":[{"name":"GA","price":"25.00","initial_quantity":100}]}`
	resp := httptest.NewRecorder()
	Create(svc, nil)(resp, newRequest(http.MethodPost, "/api/v1/events", body, ""))

	require.Equal(t, http.StatusCreated, resp.Code)
	require.Equal(t, testActor.OrganizerID, got.Actor.OrganizerID)
	require.Equal(t, "Winter Gala", got.Fields.Title)
	require.Len(t, got.Tiers, 1)
	require.Equal(t, "25", got.Tiers[0].Price.String())
	require.Contains(t, resp.Body.String(), `"success":true`)
}

func TestCreateRejectsInvalidBody(t *testing.T) {
	svc := stubService{create: func(internalevents.CreateEventInput) (*internalevents.EventDTO, error) {
		t.Fatal("service must not be called")
		return nil, nil
	}}

	cases := map[string]string{
		"missing title":   `{"location_type":"physical"}`,
		"unknown field":   `{"title":"x","color":"red"}`,
		"bad location":    `{"title":"x","location_type":"moon"}`,
		"negative tier":   `{"title":"x","ticket_tiers":[{"name":"GA","initial_quantity":-1}]}`,
		"not json at all": `title=x`,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			resp := httptest.NewRecorder()
			Create(svc, nil)(resp, newRequest(http.MethodPost, "/api/v1/events", body, ""))
			require.Equal(t, http.StatusBadRequest, resp.Code)
			code, _ := decodeError(t, resp)
			require.Equal(t, string(pkgerrors.CodeValidation), code)
		})
	}
}

func TestCreateRequiresActor(t *testing.T) {
	svc := stubService{}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/events", strings.NewReader(`{"title":"x"}`))
	resp := httptest.NewRecorder()
	Create(svc, nil)(resp, req)

	require.Equal(t, http.StatusUnauthorized, resp.Code)
	_, msg := decodeError(t, resp)
	require.Equal(t, "authentication required", msg)
}

func TestPublishPassesEventID(t *testing.T) {
	eventID := uuid.New()
	svc := stubService{publish: func(actor access.Actor, id uuid.UUID) (*internalevents.StatusResult, error) {
		require.Equal(t, testActor.UserID, actor.UserID)
		return &internalevents.StatusResult{ID: id, Status: enums.EventStatusPublished}, nil
	}}

	resp := httptest.NewRecorder()
	Publish(svc, nil)(resp, newRequest(http.MethodPost, "/", "", eventID.String()))

	require.Equal(t, http.StatusOK, resp.Code)
	require.Contains(t, resp.Body.String(), eventID.String())
	require.Contains(t, resp.Body.String(), `"status":"published"`)
}

func TestPublishSurfacesStateConflict(t *testing.T) {
	svc := stubService{publish: func(access.Actor, uuid.UUID) (*internalevents.StatusResult, error) {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "cannot publish an event with status \"cancelled\"")
	}}

	resp := httptest.NewRecorder()
	Publish(svc, nil)(resp, newRequest(http.MethodPost, "/", "", uuid.NewString()))

	require.Equal(t, http.StatusUnprocessableEntity, resp.Code)
	_, msg := decodeError(t, resp)
	require.Contains(t, msg, "cancelled")
}

func TestDetailRejectsBadEventID(t *testing.T) {
	resp := httptest.NewRecorder()
	Detail(stubService{}, nil)(resp, newRequest(http.MethodGet, "/", "", "not-a-uuid"))

	require.Equal(t, http.StatusBadRequest, resp.Code)
	_, msg := decodeError(t, resp)
	require.Equal(t, "invalid event id", msg)
}

func TestDeleteWithoutBody(t *testing.T) {
	eventID := uuid.New()
	var got internalevents.DeleteEventInput
	svc := stubService{delete: func(input internalevents.DeleteEventInput) (*internalevents.DeleteEventResult, error) {
		got = input
		return &internalevents.DeleteEventResult{ID: input.EventID, Mode: internalevents.DeleteModeDeleted}, nil
	}}

	resp := httptest.NewRecorder()
	Delete(svc, nil)(resp, newRequest(http.MethodDelete, "/", "", eventID.String()))

	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, eventID, got.EventID)
	require.Empty(t, got.Reason)
	require.False(t, got.ReleaseToPool)
}

func TestDeleteForwardsReasonAndPoolFlag(t *testing.T) {
	var got internalevents.DeleteEventInput
	svc := stubService{delete: func(input internalevents.DeleteEventInput) (*internalevents.DeleteEventResult, error) {
		got = input
		return &internalevents.DeleteEventResult{ID: input.EventID, Mode: internalevents.DeleteModeCancelled, CancelledTickets: 4}, nil
	}}

	body := `{"reason":"  Venue flooded  ","release_to_pool":true}`
	resp := httptest.NewRecorder()
	Delete(svc, nil)(resp, newRequest(http.MethodDelete, "/", body, uuid.NewString()))

	require.Equal(t, http.StatusOK, resp.Code)
	require.Equal(t, "Venue flooded", got.Reason)
	require.True(t, got.ReleaseToPool)
	require.Contains(t, resp.Body.String(), `"cancelled_tickets":4`)
}
