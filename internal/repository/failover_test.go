package repository

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"roombook/internal/domain"
	"roombook/internal/models"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockAttempts struct {
	mock.Mock
}

func (m *mockAttempts) GetAttempt(ctx context.Context, id string) (*models.Attempt, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Attempt), args.Error(1)
}

func (m *mockAttempts) SaveAttempt(ctx context.Context, attempt *models.Attempt) error {
	return m.Called(ctx, attempt).Error(0)
}

func (m *mockAttempts) DeleteAttempt(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

type mockLocker struct {
	mock.Mock
}

func (m *mockLocker) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	args := m.Called(ctx, key, ttl)
	return args.String(0), args.Error(1)
}

func (m *mockLocker) Release(ctx context.Context, key, token string) error {
	return m.Called(ctx, key, token).Error(0)
}

func TestFailoverAttemptRepository(t *testing.T) {
	primary := new(mockAttempts)
	fallback := new(mockAttempts)
	logger := zerolog.New(io.Discard)
	repo := NewFailoverAttemptRepository(primary, fallback, &logger)
	ctx := context.Background()

	t.Run("PrimarySuccess", func(t *testing.T) {
		attempt := &models.Attempt{ID: "a1"}
		primary.On("GetAttempt", ctx, "a1").Return(attempt, nil).Once()

		got, err := repo.GetAttempt(ctx, "a1")
		assert.NoError(t, err)
		assert.Equal(t, attempt, got)
		primary.AssertExpectations(t)
	})

	t.Run("PrimaryFailFallbackSuccess", func(t *testing.T) {
		attempt := &models.Attempt{ID: "a2"}
		primary.On("GetAttempt", ctx, "a2").Return(nil, errors.New("connection refused")).Once()
		fallback.On("GetAttempt", ctx, "a2").Return(attempt, nil).Once()

		got, err := repo.GetAttempt(ctx, "a2")
		assert.NoError(t, err)
		assert.Equal(t, attempt, got)
		assert.True(t, repo.breaker.isDown.Load())
		primary.AssertExpectations(t)
		fallback.AssertExpectations(t)
	})

	t.Run("StaysOnFallbackWhileDown", func(t *testing.T) {
		attempt := &models.Attempt{ID: "a3"}
		fallback.On("SaveAttempt", ctx, attempt).Return(nil).Once()

		require.NoError(t, repo.SaveAttempt(ctx, attempt))
		primary.AssertNotCalled(t, "SaveAttempt", ctx, attempt)
		fallback.AssertExpectations(t)
	})

	t.Run("RecoveryAttempt", func(t *testing.T) {
		repo.breaker.isDown.Store(true)
		repo.breaker.lastCheck.Store(time.Now().Add(-2 * time.Minute).UnixNano())

		attempt := &models.Attempt{ID: "a4"}
		primary.On("SaveAttempt", ctx, attempt).Return(nil).Once()

		require.NoError(t, repo.SaveAttempt(ctx, attempt))
		assert.False(t, repo.breaker.isDown.Load())
		primary.AssertExpectations(t)
	})

	t.Run("MissInPrimaryChecksFallback", func(t *testing.T) {
		attempt := &models.Attempt{ID: "a5"}
		primary.On("GetAttempt", ctx, "a5").Return(nil, nil).Once()
		fallback.On("GetAttempt", ctx, "a5").Return(attempt, nil).Once()

		got, err := repo.GetAttempt(ctx, "a5")
		require.NoError(t, err)
		assert.Equal(t, attempt, got)
	})
}

func TestFailoverLocker(t *testing.T) {
	primary := new(mockLocker)
	fallback := NewMemoryLocker()
	logger := zerolog.New(io.Discard)
	locker := NewFailoverLocker(primary, fallback, &logger)
	ctx := context.Background()

	t.Run("BusyIsNotAnOutage", func(t *testing.T) {
		primary.On("Acquire", ctx, "r1", time.Second).Return("", domain.ErrResourceBusy).Once()

		_, err := locker.Acquire(ctx, "r1", time.Second)
		assert.ErrorIs(t, err, domain.ErrResourceBusy)
		assert.False(t, locker.breaker.isDown.Load())
	})

	t.Run("OutageUsesMemoryLock", func(t *testing.T) {
		primary.On("Acquire", ctx, "r2", time.Second).Return("", errors.New("dial tcp: refused")).Once()

		token, err := locker.Acquire(ctx, "r2", time.Second)
		require.NoError(t, err)
		assert.NotEmpty(t, token)
		assert.True(t, locker.breaker.isDown.Load())

		_, err = locker.Acquire(ctx, "r2", time.Second)
		assert.ErrorIs(t, err, domain.ErrResourceBusy)

		require.NoError(t, locker.Release(ctx, "r2", token))
		_, err = locker.Acquire(ctx, "r2", time.Second)
		assert.NoError(t, err)
		primary.AssertExpectations(t)
	})
}
