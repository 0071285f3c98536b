package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/eventdesk-backend/pkg/config"
)

func TestFixedWindowAllowStartsWindowOnFirstHit(t *testing.T) {
	ctx := context.Background()
	rdb, mock := redismock.NewClientMock()
	client := Wrap(rdb)
	key := client.RateLimitKey("refunds:org-1")

	mock.ExpectIncr(key).SetVal(1)
	mock.ExpectExpire(key, time.Minute).SetVal(true)
	mock.ExpectIncr(key).SetVal(2)
	mock.ExpectIncr(key).SetVal(3)

	allowed, count, err := client.FixedWindowAllow(ctx, "refunds:org-1", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, allowed)
	require.EqualValues(t, 1, count)

	allowed, _, err = client.FixedWindowAllow(ctx, "refunds:org-1", 2, time.Minute)
	require.NoError(t, err)
	require.True(t, allowed)

	allowed, count, err = client.FixedWindowAllow(ctx, "refunds:org-1", 2, time.Minute)
	require.NoError(t, err)
	require.False(t, allowed)
	require.EqualValues(t, 3, count)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFixedWindowAllowSurfacesErrors(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	client := Wrap(rdb)
	mock.ExpectIncr(client.RateLimitKey("x")).SetErr(errors.New("connection refused"))

	_, _, err := client.FixedWindowAllow(context.Background(), "x", 1, time.Second)
	require.Error(t, err)
}

func TestDelIfValueOnlyDeletesOwnClaim(t *testing.T) {
	ctx := context.Background()
	rdb, mock := redismock.NewClientMock()
	client := Wrap(rdb)
	key := client.GuardKey("ticket-refund", "t-1")

	mock.ExpectEvalSha(delIfValue.Hash(), []string{key}, "owner-a").SetVal(int64(1))
	mock.ExpectEvalSha(delIfValue.Hash(), []string{key}, "owner-b").SetVal(int64(0))

	deleted, err := client.DelIfValue(ctx, key, "owner-a")
	require.NoError(t, err)
	require.True(t, deleted)

	deleted, err = client.DelIfValue(ctx, key, "owner-b")
	require.NoError(t, err)
	require.False(t, deleted)

	require.NoError(t, mock.ExpectationsWereMet())
}

func TestGetReturnsNilForMissingKey(t *testing.T) {
	rdb, mock := redismock.NewClientMock()
	client := Wrap(rdb)
	mock.ExpectGet("ed:idempotency:missing").RedisNil()

	_, err := client.Get(context.Background(), "ed:idempotency:missing")
	require.ErrorIs(t, err, redis.Nil)
}

func TestKeyBuilders(t *testing.T) {
	client := &Client{}
	require.Equal(t, "ed:idempotency:scope:id", client.IdempotencyKey("scope", "id"))
	require.Equal(t, "ed:rate_limit:scope", client.RateLimitKey("scope"))
	require.Equal(t, "ed:guard:ticket-refund:t-1", client.GuardKey("ticket-refund", "t-1"))
	require.Equal(t, "ed:guard:ticket-refund", client.GuardKey("ticket-refund", " "))
	require.Equal(t, "ed:lock:cron", client.LockKey("cron"))
}

func TestOptionsPreferURL(t *testing.T) {
	opts, err := options(config.RedisConfig{
		URL:      "redis://:secret@cache:6380/2",
		Address:  "ignored:6379",
		PoolSize: 25,
	})
	require.NoError(t, err)
	require.Equal(t, "cache:6380", opts.Addr)
	require.Equal(t, 2, opts.DB)
	require.Equal(t, 25, opts.PoolSize)

	_, err = options(config.RedisConfig{})
	require.Error(t, err)
}
