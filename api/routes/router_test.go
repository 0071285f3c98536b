package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/eventdesk-backend/internal/access"
	"github.com/angelmondragon/eventdesk-backend/internal/events"
	"github.com/angelmondragon/eventdesk-backend/internal/organizers"
	pkgAuth "github.com/angelmondragon/eventdesk-backend/pkg/auth"
	"github.com/angelmondragon/eventdesk-backend/pkg/config"
	"github.com/angelmondragon/eventdesk-backend/pkg/db/models"
	"github.com/angelmondragon/eventdesk-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/eventdesk-backend/pkg/errors"
	"github.com/angelmondragon/eventdesk-backend/pkg/metrics"
)

type stubPinger struct{}

func (stubPinger) Ping(context.Context) error {
	return nil
}

type stubOrganizers struct {
	actor access.Actor
}

func (s stubOrganizers) ResolveActor(context.Context, organizers.Principal, *uuid.UUID) (access.Actor, error) {
	return s.actor, nil
}

func (s stubOrganizers) Get(context.Context, uuid.UUID) (*models.Organizer, error) {
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "organizer not found")
}

// stubEvents only implements Get; other methods panic through the nil embedded interface.
type stubEvents struct {
	events.Service
}

func (stubEvents) Get(_ context.Context, actor access.Actor, eventID uuid.UUID) (*events.EventDTO, error) {
	return &events.EventDTO{ID: eventID, OrganizerID: actor.OrganizerID, Title: "Winter Gala", Status: enums.EventStatusDraft}, nil
}

func testConfig() *config.Config {
	return &config.Config{
		App: config.AppConfig{Env: "dev"},
		JWT: config.JWTConfig{Secret: "router-secret", Issuer: "eventdesk-idp"},
	}
}

func newTestRouter(t *testing.T, actor access.Actor) (http.Handler, *config.Config) {
	t.Helper()
	cfg := testConfig()
	reg := prometheus.NewRegistry()
	metrics.NewCronJobMetrics(reg).ObserveRun("outbox-retention", time.Second, nil)
	return NewRouter(cfg, nil, stubPinger{}, nil, reg, stubOrganizers{actor: actor}, stubEvents{}, nil, nil), cfg
}

func bearer(t *testing.T, cfg *config.Config) string {
	t.Helper()
	token, err := pkgAuth.MintAccessToken(cfg.JWT, time.Now(), time.Hour, pkgAuth.AccessTokenPayload{
		Subject: "auth0|org-1",
		Role:    enums.PrincipalRoleOrganizer,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return "Bearer " + token
}

func TestHealthRoutes(t *testing.T) {
	router, _ := newTestRouter(t, access.Actor{})

	for _, path := range []string{"/health/live", "/health/ready"} {
		resp := httptest.NewRecorder()
		router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, path, nil))
		if resp.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", path, resp.Code)
		}
	}
}

func TestMetricsRouteExposesRegistry(t *testing.T) {
	router, _ := newTestRouter(t, access.Actor{})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if !strings.Contains(resp.Body.String(), "cron_job_runs_total") {
		t.Fatalf("expected cron metrics in output, got %s", resp.Body.String())
	}
}

func TestAPIRequiresBearerToken(t *testing.T) {
	router, _ := newTestRouter(t, access.Actor{})

	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/api/v1/events/"+uuid.NewString(), nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestEventDetailRoutesToService(t *testing.T) {
	actor := access.Actor{UserID: uuid.New(), Subject: "auth0|org-1", OrganizerID: uuid.New()}
	router, cfg := newTestRouter(t, actor)
	eventID := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/api/v1/events/"+eventID.String(), nil)
	req.Header.Set("Authorization", bearer(t, cfg))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)

	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", resp.Code, resp.Body.String())
	}
	body := resp.Body.String()
	if !strings.Contains(body, eventID.String()) || !strings.Contains(body, actor.OrganizerID.String()) {
		t.Fatalf("unexpected body %s", body)
	}
}

func TestUnknownRouteIsNotFound(t *testing.T) {
	router, cfg := newTestRouter(t, access.Actor{OrganizerID: uuid.New()})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders/"+uuid.NewString()+"/cancel", nil)
	req.Header.Set("Authorization", bearer(t, cfg))
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	if resp.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", resp.Code)
	}
}
