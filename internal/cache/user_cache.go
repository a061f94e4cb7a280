package cache

import (
	"context"
	"log/slog"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"trustchat/internal/models"
)

const DefaultUserTTL = 10 * time.Minute

// Directory is the user lookup being cached.
type Directory interface {
	Resolve(ctx context.Context, userIDs []string) (map[string]models.Sender, error)
	ListExcept(ctx context.Context, userID string) ([]models.User, error)
}

// Store is the byte cache backing UserCache. RedisCache implements it.
type Store interface {
	MGet(ctx context.Context, keys ...string) ([][]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// UserCache is a read-through cache of sender projections in front of a Directory.
// Cache failures degrade to direct lookups.
type UserCache struct {
	next  Directory
	store Store
	ttl   time.Duration
	log   *slog.Logger
}

// NewUserCache wraps next. A nil store disables caching.
func NewUserCache(next Directory, store Store, ttl time.Duration, log *slog.Logger) *UserCache {
	if ttl <= 0 {
		ttl = DefaultUserTTL
	}
	return &UserCache{next: next, store: store, ttl: ttl, log: log}
}

func senderKey(userID string) string {
	return "user:sender:" + userID
}

// Resolve serves hits from Redis and loads the rest from the directory.
func (uc *UserCache) Resolve(ctx context.Context, userIDs []string) (map[string]models.Sender, error) {
	if uc.store == nil || len(userIDs) == 0 {
		return uc.next.Resolve(ctx, userIDs)
	}

	keys := make([]string, len(userIDs))
	for i, id := range userIDs {
		keys[i] = senderKey(id)
	}
	out := make(map[string]models.Sender, len(userIDs))
	missing := userIDs

	cached, err := uc.store.MGet(ctx, keys...)
	if err != nil {
		uc.log.Warn("user cache read failed", "error", err)
	} else {
		missing = missing[:0:0]
		for i, raw := range cached {
			var s models.Sender
			if raw == nil || msgpack.Unmarshal(raw, &s) != nil {
				missing = append(missing, userIDs[i])
				continue
			}
			out[userIDs[i]] = s
		}
	}
	if len(missing) == 0 {
		return out, nil
	}

	loaded, err := uc.next.Resolve(ctx, missing)
	if err != nil {
		return nil, err
	}
	for id, s := range loaded {
		out[id] = s
		data, err := msgpack.Marshal(s)
		if err != nil {
			continue
		}
		if err := uc.store.Set(ctx, senderKey(id), data, uc.ttl); err != nil {
			uc.log.Warn("user cache write failed", "user_id", id, "error", err)
		}
	}
	return out, nil
}

// ListExcept passes through uncached.
func (uc *UserCache) ListExcept(ctx context.Context, userID string) ([]models.User, error) {
	return uc.next.ListExcept(ctx, userID)
}
