package kvstore

import (
	"context"
	"errors"

	"github.com/gomodule/redigo/redis"
)

// ConnSource hands out redis connections. *redis.Pool satisfies it.
type ConnSource interface {
	GetContext(ctx context.Context) (redis.Conn, error)
}

// RedisStore keeps values as plain redis strings under a key prefix.
type RedisStore struct {
	conns  ConnSource
	prefix string
}

// NewRedisPool builds a small pool for addr (host:port).
func NewRedisPool(addr string) *redis.Pool {
	return &redis.Pool{
		MaxIdle: 2,
		DialContext: func(ctx context.Context) (redis.Conn, error) {
			return redis.DialContext(ctx, "tcp", addr)
		},
	}
}

// NewRedisStore returns a RedisStore that namespaces keys with prefix.
func NewRedisStore(conns ConnSource, prefix string) *RedisStore {
	return &RedisStore{conns: conns, prefix: prefix}
}

// Load implements Store.
func (s *RedisStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	conn, err := s.conns.GetContext(ctx)
	if err != nil {
		return nil, false, wrap("load", key, err)
	}
	defer func() { _ = conn.Close() }()

	value, err := redis.Bytes(redis.DoContext(conn, ctx, "GET", s.prefix+key))
	if err != nil {
		if errors.Is(err, redis.ErrNil) {
			return nil, false, nil
		}
		return nil, false, wrap("load", key, err)
	}
	return value, true, nil
}

// Save implements Store.
func (s *RedisStore) Save(ctx context.Context, key string, value []byte) error {
	conn, err := s.conns.GetContext(ctx)
	if err != nil {
		return wrap("save", key, err)
	}
	defer func() { _ = conn.Close() }()

	_, err = redis.DoContext(conn, ctx, "SET", s.prefix+key, value)
	return wrap("save", key, err)
}

// Remove implements Store.
func (s *RedisStore) Remove(ctx context.Context, key string) error {
	conn, err := s.conns.GetContext(ctx)
	if err != nil {
		return wrap("remove", key, err)
	}
	defer func() { _ = conn.Close() }()

	_, err = redis.DoContext(conn, ctx, "DEL", s.prefix+key)
	return wrap("remove", key, err)
}
