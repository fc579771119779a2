package service

import (
	"context"
	"fmt"

	"roombook/internal/clock"
	"roombook/internal/domain"
	"roombook/internal/models"

	"github.com/rs/zerolog"
)

var transitions = map[models.AttemptState][]models.AttemptState{
	models.AttemptQuoting:              {models.AttemptAvailabilityChecked, models.AttemptAbandoned},
	models.AttemptAvailabilityChecked:  {models.AttemptHeld, models.AttemptAbandoned},
	models.AttemptHeld:                 {models.AttemptAwaitingConfirmation, models.AttemptAbandoned},
	models.AttemptAwaitingConfirmation: {models.AttemptConfirmed, models.AttemptAbandoned},
}

// CanTransition reports whether an attempt may move from one state to another.
// Confirmed and Abandoned are terminal.
func CanTransition(from, to models.AttemptState) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// StateService keeps the booking attempt context between calls. Attempt
// tracking is advisory: a failing repository is logged and never fails the
// booking itself.
type StateService struct {
	repo   domain.AttemptRepository
	clock  clock.Clock
	logger *zerolog.Logger
}

func NewStateService(repo domain.AttemptRepository, clk clock.Clock, logger *zerolog.Logger) *StateService {
	return &StateService{repo: repo, clock: clk, logger: logger}
}

func (s *StateService) Start(ctx context.Context, id, userID string) *models.Attempt {
	attempt := &models.Attempt{ID: id, State: models.AttemptQuoting, UserID: userID}
	s.save(ctx, attempt)
	return attempt
}

func (s *StateService) Get(ctx context.Context, id string) (*models.Attempt, error) {
	attempt, err := s.repo.GetAttempt(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get attempt: %w", err)
	}
	if attempt == nil {
		return nil, fmt.Errorf("attempt %s: %w", id, domain.ErrNotFound)
	}
	return attempt, nil
}

// Advance walks the attempt through each state in path, applying update after
// the last step and persisting once.
func (s *StateService) Advance(ctx context.Context, attempt *models.Attempt, update func(*models.Attempt), path ...models.AttemptState) error {
	if attempt == nil {
		return nil
	}
	for _, to := range path {
		if !CanTransition(attempt.State, to) {
			s.logger.Warn().
				Str("attempt_id", attempt.ID).
				Str("from", string(attempt.State)).
				Str("to", string(to)).
				Msg("Rejected attempt transition")
			return fmt.Errorf("%s -> %s: %w", attempt.State, to, domain.ErrInvalidTransition)
		}
		attempt.State = to
	}
	if update != nil {
		update(attempt)
	}
	s.save(ctx, attempt)
	return nil
}

// Load returns the stored attempt for id, or a Held placeholder when tracking
// lost it.
func (s *StateService) Load(ctx context.Context, id string) *models.Attempt {
	attempt, err := s.repo.GetAttempt(ctx, id)
	if err != nil {
		s.logger.Warn().Err(err).Str("attempt_id", id).Msg("Failed to load attempt")
	}
	if attempt == nil {
		return &models.Attempt{ID: id, State: models.AttemptHeld, HoldID: id}
	}
	return attempt
}

func (s *StateService) Discard(ctx context.Context, id string) {
	if err := s.repo.DeleteAttempt(ctx, id); err != nil {
		s.logger.Warn().Err(err).Str("attempt_id", id).Msg("Failed to delete attempt")
	}
}

func (s *StateService) save(ctx context.Context, attempt *models.Attempt) {
	attempt.UpdatedAt = s.clock.Now()
	if err := s.repo.SaveAttempt(ctx, attempt); err != nil {
		s.logger.Warn().Err(err).Str("attempt_id", attempt.ID).Msg("Failed to save attempt")
	}
}
