package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/angelmondragon/eventdesk-backend/api/controllers"
	eventcontrollers "github.com/angelmondragon/eventdesk-backend/api/controllers/events"
	issuancecontrollers "github.com/angelmondragon/eventdesk-backend/api/controllers/issuance"
	refundcontrollers "github.com/angelmondragon/eventdesk-backend/api/controllers/refunds"
	"github.com/angelmondragon/eventdesk-backend/api/middleware"
	"github.com/angelmondragon/eventdesk-backend/internal/events"
	"github.com/angelmondragon/eventdesk-backend/internal/issuance"
	"github.com/angelmondragon/eventdesk-backend/internal/organizers"
	"github.com/angelmondragon/eventdesk-backend/internal/refunds"
	"github.com/angelmondragon/eventdesk-backend/pkg/config"
	"github.com/angelmondragon/eventdesk-backend/pkg/db"
	"github.com/angelmondragon/eventdesk-backend/pkg/logger"
	"github.com/angelmondragon/eventdesk-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	gatherer prometheus.Gatherer,
	organizerService organizers.Service,
	eventService events.Service,
	refundService refunds.Service,
	issuanceService issuance.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.Recoverer(logg),
		middleware.CORS(cfg.App.CORSOrigins...),
	)

	ready := map[string]controllers.Pinger{}
	if dbP != nil {
		ready["db"] = dbP
	}
	if redisClient != nil {
		ready["redis"] = redisClient
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, ready))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	// money-moving and ticket-minting routes replay on retry and are rate limited per organizer
	var guarded chi.Middlewares
	if redisClient != nil {
		guarded = chi.Chain(
			middleware.OrganizerRateLimit(middleware.RateLimitPolicy{
				Name:   "refunds",
				Limit:  cfg.Refunds.RateLimit,
				Window: cfg.Refunds.RateLimitWindow,
			}, redisClient, logg),
			middleware.Idempotency(redisClient, middleware.DefaultIdempotencyTTL, logg),
		)
	}

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, organizerService, logg))

		r.Route("/events", func(r chi.Router) {
			r.Post("/", eventcontrollers.Create(eventService, logg))
			r.Route("/{eventId}", func(r chi.Router) {
				r.Get("/", eventcontrollers.Detail(eventService, logg))
				r.Put("/", eventcontrollers.Update(eventService, logg))
				r.Post("/publish", eventcontrollers.Publish(eventService, logg))
				r.Post("/unpublish", eventcontrollers.Unpublish(eventService, logg))
				r.Post("/cancel", eventcontrollers.Cancel(eventService, logg))
				r.With(guarded...).Delete("/", eventcontrollers.Delete(eventService, logg))
				r.With(guarded...).Post("/tickets/issue", issuancecontrollers.Issue(issuanceService, logg))
			})
		})

		r.Route("/tickets", func(r chi.Router) {
			r.Post("/send", issuancecontrollers.SendTickets(issuanceService, logg))
			r.With(guarded...).Post("/{ticketId}/refund", refundcontrollers.RefundTicket(refundService, logg))
		})

		r.Route("/orders/{orderId}", func(r chi.Router) {
			r.With(guarded...).Post("/refund", refundcontrollers.RefundOrder(refundService, logg))
			r.With(guarded...).Post("/tickets/{ticketId}/reissue", issuancecontrollers.Reissue(issuanceService, logg))
		})
	})

	return r
}
