package refunds

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/eventdesk-backend/pkg/errors"
	"github.com/angelmondragon/eventdesk-backend/pkg/logger"
)

const defaultGuardTTL = 2 * time.Minute

type guardStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	DelIfValue(ctx context.Context, key, value string) (bool, error)
	GuardKey(scope, id string) string
}

// Guard allows one in-flight refund per order across API replicas. Every path
// that pays money back for an order's tickets claims that order first.
type Guard struct {
	store guardStore
	ttl   time.Duration
	logg  *logger.Logger
}

func NewGuard(store guardStore, ttl time.Duration, logg *logger.Logger) *Guard {
	if ttl <= 0 {
		ttl = defaultGuardTTL
	}
	return &Guard{store: store, ttl: ttl, logg: logg}
}

// Acquire claims scope/id. The returned release only deletes the key while this
// caller still owns it.
func (g *Guard) Acquire(ctx context.Context, scope string, id uuid.UUID) (func(), error) {
	if g == nil || g.store == nil {
		return func() {}, nil
	}
	key := g.store.GuardKey(scope, id.String())
	owner := uuid.NewString()
	ok, err := g.store.SetNX(ctx, key, owner, g.ttl)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire refund guard")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("a refund for this %s is already in progress", scopeNoun(scope)))
	}
	return func() {
		releaseCtx := context.WithoutCancel(ctx)
		if _, err := g.store.DelIfValue(releaseCtx, key, owner); err != nil && g.logg != nil {
			g.logg.Warn(g.logg.WithField(releaseCtx, "guard_key", key), "failed to release refund guard")
		}
	}, nil
}

// AcquireAll claims scope for every id, in id order so that overlapping callers
// cannot each hold part of the set. On conflict nothing stays claimed.
func (g *Guard) AcquireAll(ctx context.Context, scope string, ids []uuid.UUID) (func(), error) {
	sorted := slices.Clone(ids)
	slices.SortFunc(sorted, func(a, b uuid.UUID) int { return slices.Compare(a[:], b[:]) })
	sorted = slices.Compact(sorted)

	releases := make([]func(), 0, len(sorted))
	releaseAll := func() {
		for i := len(releases) - 1; i >= 0; i-- {
			releases[i]()
		}
	}
	for _, id := range sorted {
		release, err := g.Acquire(ctx, scope, id)
		if err != nil {
			releaseAll()
			return nil, err
		}
		releases = append(releases, release)
	}
	return releaseAll, nil
}

func scopeNoun(scope string) string {
	switch scope {
	case GuardScopeOrder:
		return "order"
	case GuardScopeEvent:
		return "event"
	default:
		return "ticket"
	}
}
