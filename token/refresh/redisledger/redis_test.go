package redisledger_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	autherrors "github.com/jrsteele09/recrutech-auth/internal/errors"
	"github.com/jrsteele09/recrutech-auth/token/refresh"
	"github.com/jrsteele09/recrutech-auth/token/refresh/ledgertest"
	"github.com/jrsteele09/recrutech-auth/token/refresh/redisledger"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestRedisLedger(t *testing.T) {
	ledgertest.Run(t, func(t *testing.T) refresh.Ledger {
		_, client := newTestRedis(t)
		return redisledger.NewLedger(client, "test")
	})
}

func TestRedisLedger_Unavailable(t *testing.T) {
	mr, client := newTestRedis(t)
	l := redisledger.NewLedger(client, "test")
	mr.Close()

	err := l.Insert(context.Background(), ledgertest.NewRecord("u1", time.Now(), time.Hour))
	require.ErrorIs(t, err, autherrors.ErrLedgerUnavailable)

	_, err = l.FindByID(context.Background(), "x")
	require.ErrorIs(t, err, autherrors.ErrLedgerUnavailable)
}

func TestRedisLedger_DeleteExpiredCleansIndexes(t *testing.T) {
	mr, client := newTestRedis(t)
	l := redisledger.NewLedger(client, "test")
	ctx := context.Background()
	now := time.Now()

	dead := ledgertest.NewRecord("u1", now.Add(-2*time.Hour), time.Hour)
	require.NoError(t, l.Insert(ctx, dead))

	deleted, err := l.DeleteExpired(ctx, now)
	require.NoError(t, err)
	require.Equal(t, 1, deleted)

	require.False(t, mr.Exists("test:rt:"+dead.TokenID))
	require.False(t, mr.Exists("test:rtt:"+dead.Token))
	_, err = l.FindByToken(ctx, dead.Token)
	require.ErrorIs(t, err, autherrors.ErrRecordNotFound)
}
