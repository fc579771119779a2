package repository

import (
	"context"
	"fmt"
	"sync"
	"time"

	"roombook/internal/domain"
	"roombook/internal/models"

	"github.com/google/uuid"
)

type lease struct {
	token     string
	expiresAt time.Time
}

// MemoryLocker is the in-process lock used without Redis or while it is down.
type MemoryLocker struct {
	mu     sync.Mutex
	leases map[string]lease
	now    func() time.Time
}

func NewMemoryLocker() *MemoryLocker {
	return &MemoryLocker{leases: make(map[string]lease), now: time.Now}
}

func (l *MemoryLocker) Acquire(_ context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if cur, ok := l.leases[key]; ok && now.Before(cur.expiresAt) {
		return "", fmt.Errorf("lock %s: %w", key, domain.ErrResourceBusy)
	}
	token := uuid.NewString()
	l.leases[key] = lease{token: token, expiresAt: now.Add(ttl)}
	return token, nil
}

func (l *MemoryLocker) Release(_ context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if cur, ok := l.leases[key]; ok && cur.token == token {
		delete(l.leases, key)
	}
	return nil
}

type attemptEntry struct {
	attempt   models.Attempt
	expiresAt time.Time
}

type MemoryAttemptRepository struct {
	attempts sync.Map
	ttl      time.Duration
}

func NewMemoryAttemptRepository(ttl time.Duration) *MemoryAttemptRepository {
	return &MemoryAttemptRepository{ttl: ttl}
}

func (r *MemoryAttemptRepository) GetAttempt(_ context.Context, id string) (*models.Attempt, error) {
	val, ok := r.attempts.Load(id)
	if !ok {
		return nil, nil
	}
	entry := val.(attemptEntry)
	if r.ttl > 0 && time.Now().After(entry.expiresAt) {
		r.attempts.Delete(id)
		return nil, nil
	}
	attempt := entry.attempt
	return &attempt, nil
}

func (r *MemoryAttemptRepository) SaveAttempt(_ context.Context, attempt *models.Attempt) error {
	r.attempts.Store(attempt.ID, attemptEntry{attempt: *attempt, expiresAt: time.Now().Add(r.ttl)})
	return nil
}

func (r *MemoryAttemptRepository) DeleteAttempt(_ context.Context, id string) error {
	r.attempts.Delete(id)
	return nil
}
