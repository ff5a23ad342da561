package refresh

import (
	"context"
	"sort"
	"sync"
	"time"

	autherrors "github.com/jrsteele09/recrutech-auth/internal/errors"
)

var _ Ledger = (*InMemoryLedger)(nil)

type ledgerRow struct {
	mu     sync.Mutex
	record Record
}

// InMemoryLedger is a single-process Ledger. The maps are guarded by lock,
// and each row carries its own mutex for the revoked compare-and-set.
type InMemoryLedger struct {
	rows    map[string]*ledgerRow          // token id -> row
	tokens  map[string]string              // raw token -> token id
	ownerID map[string]map[string]struct{} // user id -> token ids
	lock    sync.RWMutex
}

func NewInMemoryLedger() *InMemoryLedger {
	return &InMemoryLedger{
		rows:    make(map[string]*ledgerRow),
		tokens:  make(map[string]string),
		ownerID: make(map[string]map[string]struct{}),
	}
}

func (l *InMemoryLedger) Insert(ctx context.Context, record *Record) error {
	if err := ctx.Err(); err != nil {
		return autherrors.Wrapf(autherrors.ErrLedgerUnavailable, "insert: %v", err)
	}

	l.lock.Lock()
	defer l.lock.Unlock()

	if _, ok := l.rows[record.TokenID]; ok {
		return autherrors.ErrDuplicateRecord
	}
	l.rows[record.TokenID] = &ledgerRow{record: *record}
	l.tokens[record.Token] = record.TokenID
	if l.ownerID[record.UserID] == nil {
		l.ownerID[record.UserID] = make(map[string]struct{})
	}
	l.ownerID[record.UserID][record.TokenID] = struct{}{}
	return nil
}

func (l *InMemoryLedger) row(tokenID string) (*ledgerRow, bool) {
	l.lock.RLock()
	defer l.lock.RUnlock()
	r, ok := l.rows[tokenID]
	return r, ok
}

func (l *InMemoryLedger) FindByID(ctx context.Context, tokenID string) (*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, autherrors.Wrapf(autherrors.ErrLedgerUnavailable, "find: %v", err)
	}
	r, ok := l.row(tokenID)
	if !ok {
		return nil, autherrors.ErrRecordNotFound
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	rec := r.record
	return &rec, nil
}

func (l *InMemoryLedger) FindByToken(ctx context.Context, token string) (*Record, error) {
	l.lock.RLock()
	tokenID, ok := l.tokens[token]
	l.lock.RUnlock()
	if !ok {
		return nil, autherrors.ErrRecordNotFound
	}
	return l.FindByID(ctx, tokenID)
}

func (l *InMemoryLedger) FindByOwner(ctx context.Context, userID string) ([]*Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, autherrors.Wrapf(autherrors.ErrLedgerUnavailable, "find by owner: %v", err)
	}

	l.lock.RLock()
	rows := make([]*ledgerRow, 0, len(l.ownerID[userID]))
	for id := range l.ownerID[userID] {
		rows = append(rows, l.rows[id])
	}
	l.lock.RUnlock()

	records := make([]*Record, 0, len(rows))
	for _, r := range rows {
		r.mu.Lock()
		rec := r.record
		r.mu.Unlock()
		records = append(records, &rec)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

func (l *InMemoryLedger) MarkRevoked(ctx context.Context, tokenID string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, autherrors.Wrapf(autherrors.ErrLedgerUnavailable, "mark revoked: %v", err)
	}
	r, ok := l.row(tokenID)
	if !ok {
		return false, autherrors.ErrRecordNotFound
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.record.Revoked {
		return false, nil
	}
	r.record.Revoked = true
	return true, nil
}

func (l *InMemoryLedger) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, autherrors.Wrapf(autherrors.ErrLedgerUnavailable, "delete expired: %v", err)
	}

	l.lock.Lock()
	defer l.lock.Unlock()

	deleted := 0
	for id, r := range l.rows {
		r.mu.Lock()
		expired := r.record.ExpiredAt(now)
		rec := r.record
		r.mu.Unlock()
		if !expired {
			continue
		}
		delete(l.rows, id)
		delete(l.tokens, rec.Token)
		if owned := l.ownerID[rec.UserID]; owned != nil {
			delete(owned, id)
			if len(owned) == 0 {
				delete(l.ownerID, rec.UserID)
			}
		}
		deleted++
	}
	return deleted, nil
}
