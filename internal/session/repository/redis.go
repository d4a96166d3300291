package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"session-auth/backend/internal/session/domain"
)

const (
	statusOK       int64 = 0
	statusNotFound int64 = 1
	statusExpired  int64 = 2
	statusRevoked  int64 = 3
	statusReused   int64 = 4
	statusNoop     int64 = 5
)

// KEYS[1] session hash, KEYS[2] deny hash. ARGV: user id, token id, reason, now (unix ms).
const rotateScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then return 1 end
local v = redis.call("HMGET", KEYS[1], "user_id", "expires_at", "revoked_at")
if v[1] ~= ARGV[1] then return 1 end
if v[3] then return 3 end
if tonumber(ARGV[4]) >= tonumber(v[2]) then return 2 end
if redis.call("HSETNX", KEYS[2], ARGV[2], ARGV[3]) == 0 then return 4 end
local ttl = redis.call("PTTL", KEYS[1])
if ttl > 0 then redis.call("PEXPIRE", KEYS[2], ttl) end
return 0
`

// KEYS[1] session hash, KEYS[2] deny hash. ARGV: token id, reason.
const denyScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then return 1 end
redis.call("HSETNX", KEYS[2], ARGV[1], ARGV[2])
local ttl = redis.call("PTTL", KEYS[1])
if ttl > 0 then redis.call("PEXPIRE", KEYS[2], ttl) end
return 0
`

// KEYS[1] session hash. ARGV: now (unix ms), reason, only-if-active flag.
const revokeScript = `
if redis.call("EXISTS", KEYS[1]) == 0 then return 1 end
local v = redis.call("HMGET", KEYS[1], "expires_at", "revoked_at")
if v[2] then return 5 end
if ARGV[3] == "1" and tonumber(ARGV[1]) >= tonumber(v[1]) then return 5 end
redis.call("HSET", KEYS[1], "revoked_at", ARGV[1], "revoke_reason", ARGV[2])
return 0
`

// KEYS[1] user index set. ARGV: session id, key ttl (ms). The ttl only ever grows so the
// index outlives every session key it lists.
const indexScript = `
redis.call("SADD", KEYS[1], ARGV[1])
local ttl = tonumber(ARGV[2])
if redis.call("PTTL", KEYS[1]) < ttl then redis.call("PEXPIRE", KEYS[1], ttl) end
return 0
`

var (
	rotateLua = redis.NewScript(rotateScript)
	denyLua   = redis.NewScript(denyScript)
	revokeLua = redis.NewScript(revokeScript)
	indexLua  = redis.NewScript(indexScript)
)

// RedisRepository stores each session as a hash plus a deny hash (token id to reason) and
// indexes sessions per user in a set. Keys expire retention after the session's absolute
// expiry, so a late refresh still sees the session as expired rather than missing.
type RedisRepository struct {
	redis     redis.UniversalClient
	prefix    string
	retention time.Duration
}

// NewRedisRepository returns a RedisRepository. prefix namespaces keys and defaults to "sa".
func NewRedisRepository(client redis.UniversalClient, prefix string, retention time.Duration) *RedisRepository {
	if prefix == "" {
		prefix = "sa"
	}
	if retention < 0 {
		retention = 0
	}
	return &RedisRepository{redis: client, prefix: prefix, retention: retention}
}

// Keys share the {sessionID} hash tag so the scripts stay on one cluster slot.
func (r *RedisRepository) sessionKey(id string) string { return r.prefix + ":sess:{" + id + "}" }
func (r *RedisRepository) denyKey(id string) string    { return r.prefix + ":sess:{" + id + "}:denied" }
func (r *RedisRepository) userKey(userID string) string {
	return r.prefix + ":user:" + userID + ":sessions"
}

// Create writes the session hash with a TTL of its lifetime plus retention and adds it to the
// user's index.
func (r *RedisRepository) Create(ctx context.Context, s *domain.Session) error {
	key := r.sessionKey(s.ID)
	ttl := s.ExpiresAt.Sub(s.CreatedAt) + r.retention
	if ttl <= 0 {
		return errors.New("session: non-positive key ttl")
	}
	_, err := r.redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key,
			"user_id", s.UserID,
			"username", s.Username,
			"created_at", s.CreatedAt.UnixMilli(),
			"expires_at", s.ExpiresAt.UnixMilli(),
		)
		pipe.PExpire(ctx, key, ttl)
		return nil
	})
	if err != nil {
		return err
	}
	return indexLua.Run(ctx, r.redis, []string{r.userKey(s.UserID)}, s.ID, ttl.Milliseconds()).Err()
}

// GetByID loads the session hash and its deny hash in one round trip. It returns nil, nil
// once the keys have expired.
func (r *RedisRepository) GetByID(ctx context.Context, id string) (*domain.Session, error) {
	var (
		fieldsCmd *redis.MapStringStringCmd
		deniedCmd *redis.StringSliceCmd
	)
	_, err := r.redis.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		fieldsCmd = pipe.HGetAll(ctx, r.sessionKey(id))
		deniedCmd = pipe.HKeys(ctx, r.denyKey(id))
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, err
	}
	fields := fieldsCmd.Val()
	if len(fields) == 0 {
		return nil, nil
	}
	s := &domain.Session{
		ID:           id,
		UserID:       fields["user_id"],
		Username:     fields["username"],
		RevokeReason: fields["revoke_reason"],
		Denied:       domain.DenyList{},
	}
	if s.CreatedAt, err = parseMillis(fields["created_at"]); err != nil {
		return nil, err
	}
	if s.ExpiresAt, err = parseMillis(fields["expires_at"]); err != nil {
		return nil, err
	}
	if v, ok := fields["revoked_at"]; ok {
		t, err := parseMillis(v)
		if err != nil {
			return nil, err
		}
		s.RevokedAt = &t
	}
	for _, tokenID := range deniedCmd.Val() {
		s.Denied.Add(tokenID)
	}
	return s, nil
}

// Rotate runs the state check and the deny-list insert as one Lua script.
func (r *RedisRepository) Rotate(ctx context.Context, sessionID, userID, tokenID string, now time.Time) error {
	code, err := rotateLua.Run(ctx, r.redis,
		[]string{r.sessionKey(sessionID), r.denyKey(sessionID)},
		userID, tokenID, domain.ReasonRotated, now.UnixMilli(),
	).Int64()
	if err != nil {
		return err
	}
	return statusErr(code)
}

// DenyTokenID records tokenID under reason whatever the session state. now is unused; the
// deny hash keeps no timestamps.
func (r *RedisRepository) DenyTokenID(ctx context.Context, sessionID, tokenID, reason string, now time.Time) error {
	code, err := denyLua.Run(ctx, r.redis,
		[]string{r.sessionKey(sessionID), r.denyKey(sessionID)},
		tokenID, reason,
	).Int64()
	if err != nil {
		return err
	}
	return statusErr(code)
}

// Revoke stamps revoked_at and the reason unless the session is already revoked.
func (r *RedisRepository) Revoke(ctx context.Context, id, reason string, now time.Time) error {
	_, err := r.revoke(ctx, id, reason, now, false)
	return err
}

func (r *RedisRepository) revoke(ctx context.Context, id, reason string, now time.Time, onlyActive bool) (bool, error) {
	flag := "0"
	if onlyActive {
		flag = "1"
	}
	code, err := revokeLua.Run(ctx, r.redis, []string{r.sessionKey(id)}, now.UnixMilli(), reason, flag).Int64()
	if err != nil {
		return false, err
	}
	if code == statusNoop {
		return false, nil
	}
	return code == statusOK, statusErr(code)
}

// RevokeAllByUser revokes each indexed session in turn and drops index entries whose
// session key has already expired.
func (r *RedisRepository) RevokeAllByUser(ctx context.Context, userID, reason string, now time.Time) (int, error) {
	ids, err := r.redis.SMembers(ctx, r.userKey(userID)).Result()
	if err != nil {
		return 0, err
	}
	revoked := 0
	for _, id := range ids {
		ok, err := r.revoke(ctx, id, reason, now, true)
		if errors.Is(err, ErrNotFound) {
			r.redis.SRem(ctx, r.userKey(userID), id)
			continue
		}
		if err != nil {
			return revoked, err
		}
		if ok {
			revoked++
		}
	}
	return revoked, nil
}

// DeleteExpired is a no-op: session keys carry their own TTL.
func (r *RedisRepository) DeleteExpired(ctx context.Context, cutoff time.Time) (int64, error) {
	return 0, nil
}

// Ping checks the Redis connection.
func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.redis.Ping(ctx).Err()
}

func statusErr(code int64) error {
	switch code {
	case statusOK, statusNoop:
		return nil
	case statusNotFound:
		return ErrNotFound
	case statusExpired:
		return ErrExpired
	case statusRevoked:
		return ErrRevoked
	case statusReused:
		return ErrTokenReused
	default:
		return fmt.Errorf("session: unknown script status %d", code)
	}
}

func parseMillis(s string) (time.Time, error) {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("session: corrupt timestamp %q: %w", s, err)
	}
	return time.UnixMilli(ms).UTC(), nil
}
