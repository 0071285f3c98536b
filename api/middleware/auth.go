package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/eventdesk-backend/api/responses"
	"github.com/angelmondragon/eventdesk-backend/internal/access"
	"github.com/angelmondragon/eventdesk-backend/internal/organizers"
	pkgAuth "github.com/angelmondragon/eventdesk-backend/pkg/auth"
	"github.com/angelmondragon/eventdesk-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/eventdesk-backend/pkg/errors"
	"github.com/angelmondragon/eventdesk-backend/pkg/logger"
)

// ActingAsHeader lets an admin operate on another organizer's resources.
const ActingAsHeader = "X-Acting-As-Organizer"

type actorResolver interface {
	ResolveActor(ctx context.Context, principal organizers.Principal, actingAs *uuid.UUID) (access.Actor, error)
}

// Auth validates the bearer token, resolves the caller's organizer (or the
// organizer an admin acts as) and seeds the request context with the actor.
func Auth(cfg config.JWTConfig, resolver actorResolver, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimSpace(r.Header.Get("Authorization"))
			if len(token) > 7 && strings.EqualFold(token[:7], "bearer ") {
				token = strings.TrimSpace(token[7:])
			}
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			var actingAs *uuid.UUID
			if raw := strings.TrimSpace(r.Header.Get(ActingAsHeader)); raw != "" {
				id, err := uuid.Parse(raw)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+ActingAsHeader+" header"))
					return
				}
				actingAs = &id
			}

			actor, err := resolver.ResolveActor(r.Context(), organizers.Principal{
				Subject: claims.Subject,
				IsAdmin: claims.IsAdmin(),
			}, actingAs)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			ctx := WithActor(r.Context(), actor)
			if logg != nil {
				ctx = logg.WithUserID(ctx, actor.UserID.String())
				ctx = logg.WithOrganizerID(ctx, actor.OrganizerID.String())
				if actor.ActingAs {
					ctx = logg.WithActingAs(ctx, actor.OrganizerID.String())
				}
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
