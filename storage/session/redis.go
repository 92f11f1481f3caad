package sessionstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"

	"github.com/trezcool/klassenbuch/core/auth"
)

const defaultKeyPrefix = "klassenbuch:session:"

// RedisStore keeps sessions as JSON values with a Redis TTL.
type RedisStore struct {
	rdb    redis.Cmdable
	prefix string
}

var _ auth.SessionStore = (*RedisStore)(nil)

func NewRedisStore(rdb redis.Cmdable, keyPrefix string) *RedisStore {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisStore{rdb: rdb, prefix: keyPrefix}
}

// Connect parses a redis:// URL and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parsing redis url")
	}
	rdb := redis.NewClient(opts)
	if err = rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return rdb, nil
}

func (s *RedisStore) key(id string) string { return s.prefix + id }

func (s *RedisStore) Get(ctx context.Context, id string) (auth.Session, error) {
	var sess auth.Session
	raw, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return sess, auth.ErrSessionNotFound
		}
		return sess, errors.Wrap(err, "getting session")
	}
	if err = json.Unmarshal(raw, &sess); err != nil {
		return sess, errors.Wrap(err, "decoding session")
	}
	return sess, nil
}

func (s *RedisStore) Save(ctx context.Context, sess auth.Session, ttl time.Duration) error {
	raw, err := json.Marshal(sess)
	if err != nil {
		return errors.Wrap(err, "encoding session")
	}
	return errors.Wrap(s.rdb.Set(ctx, s.key(sess.ID), raw, ttl).Err(), "saving session")
}

func (s *RedisStore) Touch(ctx context.Context, id string, ttl time.Duration) error {
	ok, err := s.rdb.Expire(ctx, s.key(id), ttl).Result()
	if err != nil {
		return errors.Wrap(err, "touching session")
	}
	if !ok {
		return auth.ErrSessionNotFound
	}
	return nil
}

func (s *RedisStore) Delete(ctx context.Context, id string) error {
	return errors.Wrap(s.rdb.Del(ctx, s.key(id)).Err(), "deleting session")
}
