package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	svcerror "github.com/benko325/delivery-platform/pkg/error"

	"github.com/redis/go-redis/v9"
)

type RedisCache[T any] struct {
	Client *redis.Client
	IDFn   IDExtractor[T]
	TTL    time.Duration
}

type RedisConfig struct {
	Address  string
	Password string
	DB       int
}

func NewRedisCache[T any](ctx context.Context, redisConf RedisConfig, ttl time.Duration, idFn IDExtractor[T]) (RedisCache[T], error) {
	client := redis.NewClient(&redis.Options{
		Addr:     redisConf.Address,
		Password: redisConf.Password,
		DB:       redisConf.DB,
	})

	if _, err := client.Ping(ctx).Result(); err != nil {
		return RedisCache[T]{}, fmt.Errorf("Error connecting to Redis Client: %w", err)
	}

	return RedisCache[T]{
		Client: client,
		TTL:    ttl,
		IDFn:   idFn,
	}, nil
}

func (r RedisCache[T]) Load(ctx context.Context, id string) (T, error) {
	var zero, value T
	err := r.Client.Get(ctx, id).Scan(&value)
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return zero, svcerror.New(
				svcerror.ErrNotFound,
				svcerror.WithOp("Repository.Redis.Load"),
				svcerror.WithMsg(fmt.Sprintf(errFmtNotFound, id)),
			)
		}
		return zero, r.wrap(err, "Repository.Redis.Load")
	}
	return value, nil
}

func (r RedisCache[T]) Save(ctx context.Context, entity T) error {
	id := r.IDFn(entity)
	if err := r.Client.Set(ctx, id, entity, r.TTL).Err(); err != nil {
		return r.wrap(err, "Repository.Redis.Save")
	}
	return nil
}

func (r RedisCache[T]) Update(ctx context.Context, entity T) error {
	id := r.IDFn(entity)
	if _, err := r.Client.Get(ctx, id).Result(); err != nil {
		if errors.Is(err, redis.Nil) {
			return svcerror.New(
				svcerror.ErrNotFound,
				svcerror.WithOp("Repository.Redis.Update"),
				svcerror.WithMsg(fmt.Sprintf(errFmtNotFound, id)),
			)
		}
		return r.wrap(err, "Repository.Redis.Update")
	}

	if err := r.Client.Set(ctx, id, entity, r.TTL).Err(); err != nil {
		return r.wrap(err, "Repository.Redis.Update")
	}
	return nil
}

func (r RedisCache[T]) Delete(ctx context.Context, id string) error {
	if _, err := r.Client.Del(ctx, id).Result(); err != nil {
		return r.wrap(err, "Repository.Redis.Delete")
	}
	return nil
}

func (r RedisCache[T]) List(ctx context.Context, filter any) ([]T, error) {
	return nil, svcerror.New(
		svcerror.ErrRepositoryError,
		svcerror.WithOp("Repository.Redis.List"),
		svcerror.WithMsg("'List' is not supported on a cache-only repository"),
	)
}

// SetNX writes the entity only when the key is absent; reports whether the
// write happened. The notifications context uses this as its dedup ledger.
func (r RedisCache[T]) SetNX(ctx context.Context, entity T) (bool, error) {
	id := r.IDFn(entity)
	ok, err := r.Client.SetNX(ctx, id, entity, r.TTL).Result()
	if err != nil {
		return false, r.wrap(err, "Repository.Redis.SetNX")
	}
	return ok, nil
}

func (r RedisCache[T]) wrap(err error, op string) error {
	return svcerror.New(
		svcerror.ErrRepositoryError,
		svcerror.WithOp(op),
		svcerror.WithCause(err),
		svcerror.WithTime(time.Now().UTC()),
	)
}
