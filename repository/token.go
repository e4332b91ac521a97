package repository

import (
	"context"
	"errors"
	"time"
)

// ErrTokenMiss is returned when no cached access token is available.
var ErrTokenMiss = errors.New("access token not cached")

// TokenRepository caches host API access tokens until they expire.
type TokenRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Save(ctx context.Context, key, token string, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}
