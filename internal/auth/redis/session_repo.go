// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 CertLedger Contributors

// Package redis stores auth sessions in Redis. Keys expire with their
// sessions, so no sweeping is required.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/samber/oops"

	"github.com/certledger/certledger/internal/auth"
)

// DefaultPrefix namespaces every key written by the repository.
const DefaultPrefix = "certledger:"

// Config holds connection settings for NewClient.
type Config struct {
	Addr     string
	Username string
	Password string
	DB       int
}

// NewClient connects to Redis and verifies the connection with PING.
func NewClient(ctx context.Context, cfg Config) (*goredis.Client, error) {
	if cfg.Addr == "" {
		return nil, oops.Code("REDIS_CONFIG_INVALID").Errorf("redis address required")
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close() //nolint:errcheck // ping error takes precedence
		return nil, oops.Code("REDIS_PING_FAILED").With("addr", cfg.Addr).Wrap(err)
	}
	return client, nil
}

// createScript stores the session and indexes it under its identity in one
// step. The index TTL only ever grows so it outlives every member.
// KEYS: session key, identity index key. ARGV: record, TTL in ms, token hash.
var createScript = goredis.NewScript(`
if not redis.call("SET", KEYS[1], ARGV[1], "NX", "PX", ARGV[2]) then
  return 0
end
redis.call("SADD", KEYS[2], ARGV[3])
if redis.call("PTTL", KEYS[2]) < tonumber(ARGV[2]) then
  redis.call("PEXPIRE", KEYS[2], ARGV[2])
end
return 1
`)

type sessionRecord struct {
	ID         string    `json:"id"`
	IdentityID string    `json:"identity_id"`
	TokenHash  string    `json:"token_hash"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// SessionRepository implements auth.SessionRepository on Redis.
// Each session is a JSON string keyed by token hash; a set per identity
// indexes its sessions for DeleteByIdentity.
type SessionRepository struct {
	client goredis.UniversalClient
	prefix string
	now    func() time.Time
}

// NewSessionRepository creates a SessionRepository. An empty prefix selects DefaultPrefix.
func NewSessionRepository(client goredis.UniversalClient, prefix string) *SessionRepository {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &SessionRepository{client: client, prefix: prefix, now: time.Now}
}

func (r *SessionRepository) sessionKey(tokenHash string) string {
	return r.prefix + "session:" + tokenHash
}

func (r *SessionRepository) identityKey(identityID string) string {
	return r.prefix + "identity:" + identityID + ":sessions"
}

// Create stores a new session with a key TTL equal to its remaining lifetime.
// The session key and the identity index are written by one script, so a
// failed Create leaves nothing behind.
func (r *SessionRepository) Create(ctx context.Context, session *auth.Session) error {
	ttl := session.ExpiresAt.Sub(r.now())
	if ttl < time.Millisecond {
		return oops.Code("SESSION_CREATE_FAILED").
			With("expires_at", session.ExpiresAt).
			Errorf("session already expired")
	}

	data, err := json.Marshal(sessionRecord{
		ID:         session.ID.String(),
		IdentityID: session.IdentityID.String(),
		TokenHash:  session.TokenHash,
		CreatedAt:  session.CreatedAt,
		ExpiresAt:  session.ExpiresAt,
	})
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").With("operation", "marshal session").Wrap(err)
	}

	keys := []string{r.sessionKey(session.TokenHash), r.identityKey(session.IdentityID.String())}
	stored, err := createScript.Run(ctx, r.client, keys, data, ttl.Milliseconds(), session.TokenHash).Int()
	if err != nil {
		return oops.Code("SESSION_CREATE_FAILED").
			With("operation", "set session").
			With("identity_id", session.IdentityID.String()).
			Wrap(err)
	}
	if stored == 0 {
		return oops.Code("SESSION_DUPLICATE").Wrap(auth.ErrDuplicate)
	}
	return nil
}

// GetByTokenHash retrieves a session by its token hash.
func (r *SessionRepository) GetByTokenHash(ctx context.Context, tokenHash string) (*auth.Session, error) {
	raw, err := r.client.Get(ctx, r.sessionKey(tokenHash)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("SESSION_GET_BY_TOKEN_FAILED").
			With("operation", "get session by token hash").
			Wrap(err)
	}
	return decodeSession(raw)
}

// DeleteByTokenHash removes a session.
func (r *SessionRepository) DeleteByTokenHash(ctx context.Context, tokenHash string) error {
	raw, err := r.client.GetDel(ctx, r.sessionKey(tokenHash)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").With("operation", "delete session").Wrap(err)
	}

	// A stale index member left by a failed SREM only names a missing key.
	var rec sessionRecord
	if err := json.Unmarshal(raw, &rec); err == nil && rec.IdentityID != "" {
		if err := r.client.SRem(ctx, r.identityKey(rec.IdentityID), tokenHash).Err(); err != nil {
			return oops.Code("SESSION_DELETE_FAILED").With("operation", "unindex session").Wrap(err)
		}
	}
	return nil
}

// DeleteByIdentity removes all sessions for an identity.
func (r *SessionRepository) DeleteByIdentity(ctx context.Context, identityID ulid.ULID) error {
	idxKey := r.identityKey(identityID.String())
	hashes, err := r.client.SMembers(ctx, idxKey).Result()
	if err != nil {
		return oops.Code("SESSION_DELETE_BY_IDENTITY_FAILED").
			With("operation", "list identity sessions").
			With("identity_id", identityID.String()).
			Wrap(err)
	}

	keys := make([]string, 0, len(hashes)+1)
	for _, hash := range hashes {
		keys = append(keys, r.sessionKey(hash))
	}
	keys = append(keys, idxKey)

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return oops.Code("SESSION_DELETE_BY_IDENTITY_FAILED").
			With("operation", "delete identity sessions").
			With("identity_id", identityID.String()).
			Wrap(err)
	}
	return nil
}

// DeleteExpired is a no-op: Redis expires session keys on its own.
func (r *SessionRepository) DeleteExpired(context.Context) (int64, error) {
	return 0, nil
}

func decodeSession(raw []byte) (*auth.Session, error) {
	var rec sessionRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return nil, oops.Code("SESSION_DECODE_FAILED").Wrap(err)
	}
	id, err := ulid.Parse(rec.ID)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_ID").With("id", rec.ID).Wrap(err)
	}
	identityID, err := ulid.Parse(rec.IdentityID)
	if err != nil {
		return nil, oops.Code("SESSION_INVALID_IDENTITY_ID").With("identity_id", rec.IdentityID).Wrap(err)
	}
	return &auth.Session{
		ID:         id,
		IdentityID: identityID,
		TokenHash:  rec.TokenHash,
		CreatedAt:  rec.CreatedAt,
		ExpiresAt:  rec.ExpiresAt,
	}, nil
}

// Compile-time interface check.
var _ auth.SessionRepository = (*SessionRepository)(nil)
