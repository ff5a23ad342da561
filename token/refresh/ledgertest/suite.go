// Package ledgertest holds the behaviour every refresh.Ledger backend must share.
package ledgertest

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	autherrors "github.com/jrsteele09/recrutech-auth/internal/errors"
	"github.com/jrsteele09/recrutech-auth/token/refresh"
	"github.com/stretchr/testify/require"
)

// NewRecord returns an unrevoked record for userID expiring after ttl.
func NewRecord(userID string, now time.Time, ttl time.Duration) *refresh.Record {
	id := uuid.New().String()
	return &refresh.Record{
		TokenID:   id,
		UserID:    userID,
		Token:     "token-" + id,
		ExpiresAt: now.Add(ttl).Truncate(time.Second),
		CreatedAt: now.Truncate(time.Second),
	}
}

// Run exercises newLedger against the Ledger contract.
func Run(t *testing.T, newLedger func(t *testing.T) refresh.Ledger) {
	ctx := context.Background()
	now := time.Now()

	t.Run("insert and find", func(t *testing.T) {
		l := newLedger(t)
		rec := NewRecord("u1", now, time.Hour)
		require.NoError(t, l.Insert(ctx, rec))

		byID, err := l.FindByID(ctx, rec.TokenID)
		require.NoError(t, err)
		require.Equal(t, rec.UserID, byID.UserID)
		require.Equal(t, rec.Token, byID.Token)
		require.False(t, byID.Revoked)
		require.True(t, rec.ExpiresAt.Equal(byID.ExpiresAt))

		byToken, err := l.FindByToken(ctx, rec.Token)
		require.NoError(t, err)
		require.Equal(t, rec.TokenID, byToken.TokenID)
	})

	t.Run("insert is insert-if-absent", func(t *testing.T) {
		l := newLedger(t)
		rec := NewRecord("u1", now, time.Hour)
		require.NoError(t, l.Insert(ctx, rec))

		dup := *rec
		dup.UserID = "someone-else"
		require.ErrorIs(t, l.Insert(ctx, &dup), autherrors.ErrDuplicateRecord)

		got, err := l.FindByID(ctx, rec.TokenID)
		require.NoError(t, err)
		require.Equal(t, "u1", got.UserID)
	})

	t.Run("missing record", func(t *testing.T) {
		l := newLedger(t)
		_, err := l.FindByID(ctx, "nope")
		require.ErrorIs(t, err, autherrors.ErrRecordNotFound)
		_, err = l.FindByToken(ctx, "nope")
		require.ErrorIs(t, err, autherrors.ErrRecordNotFound)
		_, err = l.MarkRevoked(ctx, "nope")
		require.ErrorIs(t, err, autherrors.ErrRecordNotFound)
	})

	t.Run("mark revoked flips once", func(t *testing.T) {
		l := newLedger(t)
		rec := NewRecord("u1", now, time.Hour)
		require.NoError(t, l.Insert(ctx, rec))

		flipped, err := l.MarkRevoked(ctx, rec.TokenID)
		require.NoError(t, err)
		require.True(t, flipped)

		flipped, err = l.MarkRevoked(ctx, rec.TokenID)
		require.NoError(t, err)
		require.False(t, flipped)

		got, err := l.FindByID(ctx, rec.TokenID)
		require.NoError(t, err)
		require.True(t, got.Revoked)
	})

	t.Run("concurrent mark revoked has one winner", func(t *testing.T) {
		l := newLedger(t)
		rec := NewRecord("u1", now, time.Hour)
		require.NoError(t, l.Insert(ctx, rec))

		const workers = 16
		start := make(chan struct{})
		var wg sync.WaitGroup
		results := make(chan bool, workers)
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-start
				flipped, err := l.MarkRevoked(ctx, rec.TokenID)
				if err == nil {
					results <- flipped
				}
			}()
		}
		close(start)
		wg.Wait()
		close(results)

		winners, total := 0, 0
		for flipped := range results {
			total++
			if flipped {
				winners++
			}
		}
		require.Equal(t, workers, total)
		require.Equal(t, 1, winners)
	})

	t.Run("find by owner", func(t *testing.T) {
		l := newLedger(t)
		a := NewRecord("owner", now, time.Hour)
		b := NewRecord("owner", now.Add(time.Second), time.Hour)
		c := NewRecord("other", now, time.Hour)
		for _, r := range []*refresh.Record{a, b, c} {
			require.NoError(t, l.Insert(ctx, r))
		}

		owned, err := l.FindByOwner(ctx, "owner")
		require.NoError(t, err)
		require.Len(t, owned, 2)
		ids := []string{owned[0].TokenID, owned[1].TokenID}
		require.ElementsMatch(t, []string{a.TokenID, b.TokenID}, ids)

		none, err := l.FindByOwner(ctx, "nobody")
		require.NoError(t, err)
		require.Empty(t, none)
	})

	t.Run("delete expired", func(t *testing.T) {
		l := newLedger(t)
		live := NewRecord("u1", now, time.Hour)
		dead := NewRecord("u1", now.Add(-2*time.Hour), time.Hour)
		require.NoError(t, l.Insert(ctx, live))
		require.NoError(t, l.Insert(ctx, dead))

		deleted, err := l.DeleteExpired(ctx, now)
		require.NoError(t, err)
		require.Equal(t, 1, deleted)

		_, err = l.FindByID(ctx, dead.TokenID)
		require.ErrorIs(t, err, autherrors.ErrRecordNotFound)
		_, err = l.FindByID(ctx, live.TokenID)
		require.NoError(t, err)

		owned, err := l.FindByOwner(ctx, "u1")
		require.NoError(t, err)
		require.Len(t, owned, 1)
	})
}
