package repository

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"roombook/internal/domain"
	"roombook/internal/models"

	"github.com/rs/zerolog"
)

const recoveryInterval = time.Minute

// breaker tracks whether the primary backend is considered down.
type breaker struct {
	name      string
	logger    *zerolog.Logger
	isDown    atomic.Bool
	lastCheck atomic.Int64
}

// usePrimary reports whether the next call should go to the primary. While
// down, one call per recovery interval probes it again.
func (b *breaker) usePrimary() bool {
	if !b.isDown.Load() {
		return true
	}
	last := time.Unix(0, b.lastCheck.Load())
	if time.Since(last) > recoveryInterval {
		b.lastCheck.Store(time.Now().UnixNano())
		return true
	}
	return false
}

func (b *breaker) fail(err error) {
	if !b.isDown.Swap(true) {
		b.logger.Error().Err(err).Str("backend", b.name).Msg("Primary backend failed, falling back to memory")
	}
	b.lastCheck.Store(time.Now().UnixNano())
}

func (b *breaker) succeed() {
	if b.isDown.Swap(false) {
		b.logger.Info().Str("backend", b.name).Msg("Primary backend recovered")
	}
}

// FailoverLocker prefers the distributed lock and degrades to the in-process
// one when Redis is unreachable.
type FailoverLocker struct {
	primary  domain.Locker
	fallback domain.Locker
	breaker  breaker
}

func NewFailoverLocker(primary, fallback domain.Locker, logger *zerolog.Logger) *FailoverLocker {
	return &FailoverLocker{
		primary:  primary,
		fallback: fallback,
		breaker:  breaker{name: "locker", logger: logger},
	}
}

func (l *FailoverLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if l.breaker.usePrimary() {
		token, err := l.primary.Acquire(ctx, key, ttl)
		if err == nil || errors.Is(err, domain.ErrResourceBusy) {
			l.breaker.succeed()
			return token, err
		}
		l.breaker.fail(err)
	}
	return l.fallback.Acquire(ctx, key, ttl)
}

// Release tries both backends; a token unknown to one is ignored by it.
func (l *FailoverLocker) Release(ctx context.Context, key, token string) error {
	_ = l.fallback.Release(ctx, key, token)
	if l.breaker.isDown.Load() {
		return nil
	}
	if err := l.primary.Release(ctx, key, token); err != nil {
		l.breaker.fail(err)
	}
	return nil
}

type FailoverAttemptRepository struct {
	primary  domain.AttemptRepository
	fallback domain.AttemptRepository
	breaker  breaker
}

func NewFailoverAttemptRepository(primary, fallback domain.AttemptRepository, logger *zerolog.Logger) *FailoverAttemptRepository {
	return &FailoverAttemptRepository{
		primary:  primary,
		fallback: fallback,
		breaker:  breaker{name: "attempts", logger: logger},
	}
}

func (r *FailoverAttemptRepository) GetAttempt(ctx context.Context, id string) (*models.Attempt, error) {
	if r.breaker.usePrimary() {
		attempt, err := r.primary.GetAttempt(ctx, id)
		if err == nil {
			r.breaker.succeed()
			if attempt != nil {
				return attempt, nil
			}
			// Attempts written during an outage live only in the fallback.
			return r.fallback.GetAttempt(ctx, id)
		}
		r.breaker.fail(err)
	}
	return r.fallback.GetAttempt(ctx, id)
}

func (r *FailoverAttemptRepository) SaveAttempt(ctx context.Context, attempt *models.Attempt) error {
	if r.breaker.usePrimary() {
		err := r.primary.SaveAttempt(ctx, attempt)
		if err == nil {
			r.breaker.succeed()
			return nil
		}
		r.breaker.fail(err)
	}
	return r.fallback.SaveAttempt(ctx, attempt)
}

func (r *FailoverAttemptRepository) DeleteAttempt(ctx context.Context, id string) error {
	_ = r.fallback.DeleteAttempt(ctx, id)
	if r.breaker.usePrimary() {
		if err := r.primary.DeleteAttempt(ctx, id); err != nil {
			r.breaker.fail(err)
		} else {
			r.breaker.succeed()
		}
	}
	return nil
}
