package organizers

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/eventdesk-backend/internal/access"
	"github.com/angelmondragon/eventdesk-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/eventdesk-backend/pkg/errors"
)

// Principal is what the identity provider vouches for.
type Principal struct {
	Subject string
	IsAdmin bool
}

// Service resolves principals into actors and exposes organizer lookups.
type Service interface {
	ResolveActor(ctx context.Context, principal Principal, actingAs *uuid.UUID) (access.Actor, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Organizer, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("organizers repository required")
	}
	return &service{repo: repo}, nil
}

// ResolveActor maps the principal to its organizer row. Admins may pass an
// acting-as organizer id; everyone else always operates on their own organizer.
func (s *service) ResolveActor(ctx context.Context, principal Principal, actingAs *uuid.UUID) (access.Actor, error) {
	subject := strings.TrimSpace(principal.Subject)
	if subject == "" {
		return access.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user identity missing")
	}

	self, err := s.repo.FindBySubject(ctx, subject)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return access.Actor{}, pkgerrors.New(pkgerrors.CodeForbidden, "organizer profile not found")
		}
		return access.Actor{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load organizer")
	}

	actor := access.Actor{
		UserID:      self.ID,
		Subject:     subject,
		OrganizerID: self.ID,
		IsAdmin:     principal.IsAdmin || self.IsAdmin,
	}
	if actingAs == nil || *actingAs == uuid.Nil || *actingAs == self.ID {
		return actor, nil
	}
	if !actor.IsAdmin {
		return access.Actor{}, pkgerrors.New(pkgerrors.CodeForbidden, "only admins may act as another organizer")
	}

	target, err := s.repo.FindByID(ctx, *actingAs)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return access.Actor{}, pkgerrors.New(pkgerrors.CodeNotFound, "organizer not found")
		}
		return access.Actor{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load acting-as organizer")
	}
	actor.OrganizerID = target.ID
	actor.ActingAs = true
	return actor, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Organizer, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "organizer id required")
	}
	organizer, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "organizer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load organizer")
	}
	return organizer, nil
}
