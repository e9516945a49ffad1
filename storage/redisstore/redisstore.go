// Package redisstore implements storage.Storage on Redis. Each session is a
// JSON blob under "<prefix>session:<id>"; set indexes track all sessions and
// the sessions of each user.
package redisstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/hupe1980/agentcore/core"
	"github.com/hupe1980/agentcore/storage"
	"github.com/redis/go-redis/v9"
)

// Options configure a Store.
type Options struct {
	// Prefix namespaces every key. Defaults to "agentcore:".
	Prefix string
	// TTL expires idle sessions; zero keeps them forever.
	TTL time.Duration
}

// Store is a Redis backed storage.Storage.
type Store struct {
	rdb  redis.UniversalClient
	opts Options
}

var _ storage.Storage = (*Store)(nil)

// New wraps an existing client.
func New(rdb redis.UniversalClient, optFns ...func(o *Options)) *Store {
	opts := Options{Prefix: "agentcore:"}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{rdb: rdb, opts: opts}
}

// NewFromURL parses a redis:// URL and connects.
func NewFromURL(ctx context.Context, url string, optFns ...func(o *Options)) (*Store, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return New(rdb, optFns...), nil
}

// Close closes the client.
func (s *Store) Close() error { return s.rdb.Close() }

func (s *Store) sessionKey(id string) string { return s.opts.Prefix + "session:" + id }
func (s *Store) allKey() string               { return s.opts.Prefix + "sessions" }
func (s *Store) userKey(userID string) string { return s.opts.Prefix + "user:" + userID + ":sessions" }

// Read implements storage.Storage.
func (s *Store) Read(ctx context.Context, sessionID string) (*core.Session, error) {
	raw, err := s.rdb.Get(ctx, s.sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session %s: %w", sessionID, err)
	}
	var sess core.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session %s: %w", sessionID, err)
	}
	return &sess, nil
}

// Upsert implements storage.Storage.
func (s *Store) Upsert(ctx context.Context, session *core.Session) (*core.Session, error) {
	if session == nil || session.SessionID == "" {
		return nil, errors.New("session id is required")
	}
	sess := session.Clone()
	prev, err := s.Read(ctx, sess.SessionID)
	if err != nil {
		return nil, err
	}
	if prev != nil {
		sess.CreatedAt = prev.CreatedAt
	}
	storage.Touch(sess)

	raw, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session %s: %w", sess.SessionID, err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, s.sessionKey(sess.SessionID), raw, s.opts.TTL)
		pipe.SAdd(ctx, s.allKey(), sess.SessionID)
		if prev != nil && prev.UserID != "" && prev.UserID != sess.UserID {
			pipe.SRem(ctx, s.userKey(prev.UserID), sess.SessionID)
		}
		if sess.UserID != "" {
			pipe.SAdd(ctx, s.userKey(sess.UserID), sess.SessionID)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to upsert session %s: %w", sess.SessionID, err)
	}
	return sess.Clone(), nil
}

// Delete implements storage.Storage.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	prev, err := s.Read(ctx, sessionID)
	if err != nil {
		return err
	}
	if prev == nil {
		return storage.ErrNotFound
	}
	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.sessionKey(sessionID))
		pipe.SRem(ctx, s.allKey(), sessionID)
		if prev.UserID != "" {
			pipe.SRem(ctx, s.userKey(prev.UserID), sessionID)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to delete session %s: %w", sessionID, err)
	}
	return nil
}

// List implements storage.Storage. Index entries whose session expired are
// skipped.
func (s *Store) List(ctx context.Context, userID string) ([]*core.Session, error) {
	key := s.allKey()
	if userID != "" {
		key = s.userKey(userID)
	}
	ids, err := s.rdb.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	out := make([]*core.Session, 0, len(ids))
	for _, id := range ids {
		sess, err := s.Read(ctx, id)
		if err != nil {
			return nil, err
		}
		if sess != nil {
			out = append(out, sess)
		}
	}
	storage.SortByUpdated(out)
	return out, nil
}
