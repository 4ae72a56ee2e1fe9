package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	seravault "github.com/seravault/client-go"
)

const defaultKeyPrefix = "seravault:object:"

// RedisOptions configures a Redis store.
type RedisOptions struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
}

// Redis is a Store backed by Redis string keys.
type Redis struct {
	rdb    *redis.Client
	prefix string
	logger *zap.Logger
}

// NewRedis connects lazily to the server in opts.
func NewRedis(opts RedisOptions, logger *zap.Logger) *Redis {
	rdb := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	return NewRedisWithClient(rdb, opts.KeyPrefix, logger)
}

// NewRedisWithClient wraps an existing client. The store closes it on Close.
func NewRedisWithClient(rdb *redis.Client, prefix string, logger *zap.Logger) *Redis {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Redis{rdb: rdb, prefix: prefix, logger: logger.Named("store.redis")}
}

func (r *Redis) key(storagePath string) string {
	return r.prefix + storagePath
}

func (r *Redis) Put(ctx context.Context, obj *seravault.EncryptedObject) error {
	data, err := encode(obj)
	if err != nil {
		return err
	}
	if err := r.rdb.Set(ctx, r.key(obj.StoragePath), data, 0).Err(); err != nil {
		return fmt.Errorf("redis store: put %s: %w", obj.StoragePath, err)
	}
	return nil
}

func (r *Redis) Get(ctx context.Context, storagePath string) (*seravault.EncryptedObject, error) {
	data, err := r.rdb.Get(ctx, r.key(storagePath)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("redis store: get %s: %w", storagePath, err)
	}
	return decode(storagePath, data)
}

func (r *Redis) Delete(ctx context.Context, storagePath string) error {
	n, err := r.rdb.Del(ctx, r.key(storagePath)).Result()
	if err != nil {
		return fmt.Errorf("redis store: delete %s: %w", storagePath, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Redis) List(ctx context.Context) ([]string, error) {
	var paths []string
	iter := r.rdb.Scan(ctx, 0, r.prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		paths = append(paths, strings.TrimPrefix(iter.Val(), r.prefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis store: list: %w", err)
	}
	sort.Strings(paths)
	return paths, nil
}

func (r *Redis) Close() error {
	return r.rdb.Close()
}
