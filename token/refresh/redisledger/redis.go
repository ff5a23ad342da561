// Package redisledger stores refresh token records in Redis. Every mutation
// that must be atomic runs as a single Lua script.
package redisledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	autherrors "github.com/jrsteele09/recrutech-auth/internal/errors"
	"github.com/jrsteele09/recrutech-auth/token/refresh"
	"github.com/redis/go-redis/v9"
)

const (
	markStatusMissing int64 = -1
	markStatusAlready int64 = 0
	markStatusFlipped int64 = 1
)

const insertScript = `
if redis.call("EXISTS", KEYS[1]) == 1 then
  return 0
end
redis.call("HSET", KEYS[1],
  "user_id", ARGV[2],
  "token", ARGV[3],
  "expires_at", ARGV[4],
  "revoked", "0",
  "created_at", ARGV[5])
redis.call("SET", KEYS[2], ARGV[1])
redis.call("SADD", KEYS[3], ARGV[1])
redis.call("ZADD", KEYS[4], ARGV[6], ARGV[1])
return 1
`

const markRevokedScript = `
local revoked = redis.call("HGET", KEYS[1], "revoked")
if not revoked then
  return -1
end
if revoked == "1" then
  return 0
end
redis.call("HSET", KEYS[1], "revoked", "1")
return 1
`

const deleteExpiredScript = `
local ids = redis.call("ZRANGEBYSCORE", KEYS[1], "-inf", ARGV[1])
for _, id in ipairs(ids) do
  local key = ARGV[2] .. id
  local fields = redis.call("HMGET", key, "user_id", "token")
  if fields[1] then
    redis.call("SREM", ARGV[3] .. fields[1], id)
  end
  if fields[2] then
    redis.call("DEL", ARGV[4] .. fields[2])
  end
  redis.call("DEL", key)
  redis.call("ZREM", KEYS[1], id)
end
return #ids
`

var (
	insertLua        = redis.NewScript(insertScript)
	markRevokedLua   = redis.NewScript(markRevokedScript)
	deleteExpiredLua = redis.NewScript(deleteExpiredScript)
)

var _ refresh.Ledger = (*Ledger)(nil)

// Ledger is a refresh.Ledger backed by Redis hashes. Records are keyed by token
// id, with a token -> id index, a per-owner set, and an expiry sorted set used
// by DeleteExpired.
type Ledger struct {
	redis  redis.UniversalClient
	prefix string
}

// NewLedger creates a ledger under the given key prefix.
func NewLedger(client redis.UniversalClient, prefix string) *Ledger {
	if prefix == "" {
		prefix = "auth"
	}
	return &Ledger{redis: client, prefix: prefix}
}

func (l *Ledger) recordPrefix() string { return l.prefix + ":rt:" }
func (l *Ledger) tokenPrefix() string  { return l.prefix + ":rtt:" }
func (l *Ledger) ownerPrefix() string  { return l.prefix + ":rto:" }
func (l *Ledger) expiryKey() string    { return l.prefix + ":rtexp" }

func (l *Ledger) recordKey(tokenID string) string { return l.recordPrefix() + tokenID }
func (l *Ledger) tokenKey(token string) string    { return l.tokenPrefix() + token }
func (l *Ledger) ownerKey(userID string) string   { return l.ownerPrefix() + userID }

func unavailable(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", autherrors.ErrLedgerUnavailable, op, err)
}

// expiryScore rounds up to the millisecond so a row is never purged early.
func expiryScore(t time.Time) int64 {
	ms := t.UnixMilli()
	if t.Sub(time.UnixMilli(ms)) > 0 {
		ms++
	}
	return ms
}

func (l *Ledger) Insert(ctx context.Context, record *refresh.Record) error {
	keys := []string{
		l.recordKey(record.TokenID),
		l.tokenKey(record.Token),
		l.ownerKey(record.UserID),
		l.expiryKey(),
	}
	inserted, err := insertLua.Run(ctx, l.redis, keys,
		record.TokenID,
		record.UserID,
		record.Token,
		record.ExpiresAt.UnixNano(),
		record.CreatedAt.UnixNano(),
		expiryScore(record.ExpiresAt),
	).Int64()
	if err != nil {
		return unavailable("insert", err)
	}
	if inserted == 0 {
		return autherrors.ErrDuplicateRecord
	}
	return nil
}

func (l *Ledger) FindByID(ctx context.Context, tokenID string) (*refresh.Record, error) {
	fields, err := l.redis.HGetAll(ctx, l.recordKey(tokenID)).Result()
	if err != nil {
		return nil, unavailable("find by id", err)
	}
	if len(fields) == 0 {
		return nil, autherrors.ErrRecordNotFound
	}
	return decodeRecord(tokenID, fields)
}

func (l *Ledger) FindByToken(ctx context.Context, token string) (*refresh.Record, error) {
	tokenID, err := l.redis.Get(ctx, l.tokenKey(token)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, autherrors.ErrRecordNotFound
		}
		return nil, unavailable("find by token", err)
	}
	return l.FindByID(ctx, tokenID)
}

func (l *Ledger) FindByOwner(ctx context.Context, userID string) ([]*refresh.Record, error) {
	ids, err := l.redis.SMembers(ctx, l.ownerKey(userID)).Result()
	if err != nil {
		return nil, unavailable("find by owner", err)
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = l.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, l.recordKey(id))
		}
		return nil
	})
	if err != nil {
		return nil, unavailable("find by owner", err)
	}

	records := make([]*refresh.Record, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		rec, err := decodeRecord(ids[i], fields)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].CreatedAt.Before(records[j].CreatedAt)
	})
	return records, nil
}

func (l *Ledger) MarkRevoked(ctx context.Context, tokenID string) (bool, error) {
	status, err := markRevokedLua.Run(ctx, l.redis, []string{l.recordKey(tokenID)}).Int64()
	if err != nil {
		return false, unavailable("mark revoked", err)
	}
	switch status {
	case markStatusFlipped:
		return true, nil
	case markStatusAlready:
		return false, nil
	case markStatusMissing:
		return false, autherrors.ErrRecordNotFound
	default:
		return false, unavailable("mark revoked", fmt.Errorf("unexpected status %d", status))
	}
}

func (l *Ledger) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	deleted, err := deleteExpiredLua.Run(ctx, l.redis, []string{l.expiryKey()},
		now.UnixMilli(),
		l.recordPrefix(),
		l.ownerPrefix(),
		l.tokenPrefix(),
	).Int64()
	if err != nil {
		return 0, unavailable("delete expired", err)
	}
	return int(deleted), nil
}

func decodeRecord(tokenID string, fields map[string]string) (*refresh.Record, error) {
	expires, err := strconv.ParseInt(fields["expires_at"], 10, 64)
	if err != nil {
		return nil, unavailable("decode expires_at", err)
	}
	created, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return nil, unavailable("decode created_at", err)
	}
	return &refresh.Record{
		TokenID:   tokenID,
		UserID:    fields["user_id"],
		Token:     fields["token"],
		ExpiresAt: time.Unix(0, expires),
		Revoked:   fields["revoked"] == "1",
		CreatedAt: time.Unix(0, created),
	}, nil
}
