package kv

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/JTTrickZ/hexgame-main/internal/shared/config"

	"github.com/redis/go-redis/v9"
)

type redisStore struct {
	client    *redis.Client
	logger    *slog.Logger
	available atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// Connect builds the store described by the KV configuration. With
// KV_ENABLED=false it returns the in-memory store, which keeps a single
// process fully functional without an external dependency.
func Connect() (Store, error) {
	cfg := config.GlobalConfig.KV
	logger := slog.With("component", "kv", "operation", "connect")

	if !cfg.Enabled {
		logger.Info("KV disabled, using in-memory store")
		return NewMemory(), nil
	}

	var rdb *redis.Client

	if cfg.URL != "" {
		logger.Debug("Connecting to KV store using URL")
		opts, err := redis.ParseURL(cfg.URL)
		if err != nil {
			logger.Error("Failed to parse KV URL", "error", err)
			return nil, fmt.Errorf("failed to parse KV URL: %w", err)
		}
		opts.PoolSize = cfg.PoolSize
		opts.PoolFIFO = true
		opts.PoolTimeout = cfg.PoolTimeout
		opts.DialTimeout = cfg.DialTimeout
		opts.ReadTimeout = cfg.CommandTimeout
		opts.WriteTimeout = cfg.CommandTimeout
		rdb = redis.NewClient(opts)
	} else {
		logger.Debug("Connecting to KV store using host/port",
			"host", cfg.Host,
			"port", cfg.Port)

		rdb = redis.NewClient(&redis.Options{
			Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
			Password:     cfg.Password,
			DB:           cfg.DB,
			DialTimeout:  cfg.DialTimeout,
			ReadTimeout:  cfg.CommandTimeout,
			WriteTimeout: cfg.CommandTimeout,
			PoolSize:     cfg.PoolSize,
			PoolFIFO:     true,
			PoolTimeout:  cfg.PoolTimeout,
			MinIdleConns: 2,
		})
	}

	store := &redisStore{
		client: rdb,
		logger: slog.With("component", "kv"),
		done:   make(chan struct{}),
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.DialTimeout)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("Failed to ping KV store", "error", err)
		_ = rdb.Close()
		return nil, fmt.Errorf("failed to ping KV store: %w", err)
	}

	store.available.Store(true)
	go store.monitor()

	logger.Info("KV connection established successfully")

	return store, nil
}

// monitor probes the store after an outage so Available flips back
// without waiting for client traffic.
func (s *redisStore) monitor() {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if s.available.Load() {
				continue
			}
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			_ = s.Ping(ctx)
			cancel()
		}
	}
}

// mapErr records transport failures and folds them into ErrUnavailable.
// redis.Nil never reaches this; absence is handled at the call sites.
func (s *redisStore) mapErr(err error) error {
	if err == nil {
		return nil
	}
	if s.available.CompareAndSwap(true, false) {
		s.logger.Warn("KV store became unavailable", "error", err)
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

func anySlice(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}

func (s *redisStore) HashSet(ctx context.Context, key string, fields map[string]string) error {
	if len(fields) == 0 {
		return nil
	}
	return s.mapErr(s.client.HSet(ctx, key, fields).Err())
}

func (s *redisStore) HashGet(ctx context.Context, key, field string) (string, bool, error) {
	val, err := s.client.HGet(ctx, key, field).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, s.mapErr(err)
	}
	return val, true, nil
}

func (s *redisStore) HashGetAll(ctx context.Context, key string) (map[string]string, error) {
	fields, err := s.client.HGetAll(ctx, key).Result()
	if err != nil {
		return nil, s.mapErr(err)
	}
	return fields, nil
}

func (s *redisStore) HashDel(ctx context.Context, key string, fields ...string) error {
	if len(fields) == 0 {
		return nil
	}
	return s.mapErr(s.client.HDel(ctx, key, fields...).Err())
}

func (s *redisStore) SetAdd(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	return s.mapErr(s.client.SAdd(ctx, key, anySlice(members)...).Err())
}

func (s *redisStore) SetRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	return s.mapErr(s.client.SRem(ctx, key, anySlice(members)...).Err())
}

func (s *redisStore) SetMembers(ctx context.Context, key string) ([]string, error) {
	members, err := s.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, s.mapErr(err)
	}
	return members, nil
}

func (s *redisStore) SetContains(ctx context.Context, key, member string) (bool, error) {
	ok, err := s.client.SIsMember(ctx, key, member).Result()
	if err != nil {
		return false, s.mapErr(err)
	}
	return ok, nil
}

func (s *redisStore) SetCard(ctx context.Context, key string) (int64, error) {
	n, err := s.client.SCard(ctx, key).Result()
	if err != nil {
		return 0, s.mapErr(err)
	}
	return n, nil
}

func (s *redisStore) SortedAdd(ctx context.Context, key string, score float64, member string) error {
	return s.mapErr(s.client.ZAdd(ctx, key, redis.Z{Score: score, Member: member}).Err())
}

func (s *redisStore) SortedRem(ctx context.Context, key string, members ...string) error {
	if len(members) == 0 {
		return nil
	}
	return s.mapErr(s.client.ZRem(ctx, key, anySlice(members)...).Err())
}

func (s *redisStore) SortedRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	members, err := s.client.ZRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, s.mapErr(err)
	}
	return members, nil
}

func (s *redisStore) ListPush(ctx context.Context, key string, values ...string) error {
	if len(values) == 0 {
		return nil
	}
	return s.mapErr(s.client.LPush(ctx, key, anySlice(values)...).Err())
}

func (s *redisStore) ListTrim(ctx context.Context, key string, start, stop int64) error {
	return s.mapErr(s.client.LTrim(ctx, key, start, stop).Err())
}

func (s *redisStore) ListRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	values, err := s.client.LRange(ctx, key, start, stop).Result()
	if err != nil {
		return nil, s.mapErr(err)
	}
	return values, nil
}

func (s *redisStore) ListLen(ctx context.Context, key string) (int64, error) {
	n, err := s.client.LLen(ctx, key).Result()
	if err != nil {
		return 0, s.mapErr(err)
	}
	return n, nil
}

func (s *redisStore) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.mapErr(s.client.Set(ctx, key, value, ttl).Err())
}

func (s *redisStore) Get(ctx context.Context, key string) (string, bool, error) {
	val, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, s.mapErr(err)
	}
	return val, true, nil
}

func (s *redisStore) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return s.mapErr(s.client.Del(ctx, keys...).Err())
}

func (s *redisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, s.mapErr(err)
	}
	return n > 0, nil
}

func (s *redisStore) Expire(ctx context.Context, key string, ttl time.Duration) error {
	return s.mapErr(s.client.Expire(ctx, key, ttl).Err())
}

func (s *redisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return s.mapErr(err)
	}
	if s.available.CompareAndSwap(false, true) {
		s.logger.Info("KV store available again")
	}
	return nil
}

func (s *redisStore) Available() bool {
	return s.available.Load()
}

func (s *redisStore) Close() error {
	var err error
	s.closeOnce.Do(func() {
		close(s.done)
		err = s.client.Close()
	})
	return err
}
