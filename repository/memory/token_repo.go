package memory

import (
	"context"
	"sync"
	"time"

	"github.com/fastygo/taskboard/repository"
)

type entry struct {
	token     string
	expiresAt time.Time
}

type tokenRepository struct {
	mu      sync.Mutex
	entries map[string]entry
	now     func() time.Time
}

// NewTokenRepository keeps tokens in process memory.
func NewTokenRepository() repository.TokenRepository {
	return newTokenRepository(time.Now)
}

func newTokenRepository(now func() time.Time) *tokenRepository {
	return &tokenRepository{entries: make(map[string]entry), now: now}
}

func (r *tokenRepository) Get(ctx context.Context, key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[key]
	if !ok {
		return "", repository.ErrTokenMiss
	}
	if !r.now().Before(e.expiresAt) {
		delete(r.entries, key)
		return "", repository.ErrTokenMiss
	}
	return e.token, nil
}

func (r *tokenRepository) Save(ctx context.Context, key, token string, ttl time.Duration) error {
	if ttl <= 0 {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[key] = entry{token: token, expiresAt: r.now().Add(ttl)}
	return nil
}

func (r *tokenRepository) Delete(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.entries, key)
	return nil
}
