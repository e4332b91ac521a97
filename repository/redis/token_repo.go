package redis

import (
	"context"
	"errors"
	"time"

	redislib "github.com/redis/go-redis/v9"

	"github.com/fastygo/taskboard/repository"
)

type tokenRepository struct {
	client *redislib.Client
	prefix string
}

// NewTokenRepository caches host access tokens in Redis so replicas share
// one token instead of each minting their own.
func NewTokenRepository(client *redislib.Client) repository.TokenRepository {
	return &tokenRepository{
		client: client,
		prefix: "taskboard:token:",
	}
}

func (r *tokenRepository) Get(ctx context.Context, key string) (string, error) {
	token, err := r.client.Get(ctx, r.prefix+key).Result()
	if err != nil {
		if errors.Is(err, redislib.Nil) {
			return "", repository.ErrTokenMiss
		}
		return "", err
	}
	return token, nil
}

func (r *tokenRepository) Save(ctx context.Context, key, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	return r.client.Set(ctx, r.prefix+key, token, ttl).Err()
}

func (r *tokenRepository) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}
