package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"roombook/internal/domain"
	"roombook/internal/metrics"
	"roombook/internal/models"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	queueKey      = "roombook:reconcile:queue"
	deadLetterKey = "roombook:reconcile:deadletter"
)

// errPermanent marks failures that retrying cannot fix.
var errPermanent = errors.New("permanent task failure")

// Ledger appends confirmed reservations to the external spreadsheet.
type Ledger interface {
	AppendReservation(ctx context.Context, r *models.Reservation) (string, error)
}

type Refunder interface {
	RefundSession(ctx context.Context, sessionID string) error
}

type EventCanceller interface {
	CancelEvent(ctx context.Context, calendarID, eventID string) error
}

// Handlers are the external systems tasks are applied to. Nil handlers fail
// their tasks straight to the dead letter list.
type Handlers struct {
	Ledger   Ledger
	Payments Refunder
	Calendar EventCanceller
}

// ReconcileWorker drains the sync_queue outbox: ledger exports and the
// compensations queued by a failed confirmation.
type ReconcileWorker struct {
	store        domain.SyncQueue
	handlers     Handlers
	redis        *redis.Client
	retryPolicy  RetryPolicy
	queue        chan models.SyncTask
	pollInterval time.Duration
	batchSize    int
	logger       *zerolog.Logger
}

func NewReconcileWorker(store domain.SyncQueue, handlers Handlers, redisClient *redis.Client, retry RetryPolicy, pollInterval time.Duration, logger *zerolog.Logger) *ReconcileWorker {
	if retry.MaxRetries <= 0 {
		retry.MaxRetries = 5
	}
	if pollInterval <= 0 {
		pollInterval = 2 * time.Second
	}
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	return &ReconcileWorker{
		store:        store,
		handlers:     handlers,
		redis:        redisClient,
		retryPolicy:  retry,
		queue:        make(chan models.SyncTask, 128),
		pollInterval: pollInterval,
		batchSize:    20,
		logger:       logger,
	}
}

// EnqueueTask persists the task and schedules it via redis, or the in-memory
// queue when redis is missing or failing. Polling picks up anything dropped.
func (w *ReconcileWorker) EnqueueTask(ctx context.Context, taskType, reference string, payload interface{}) error {
	if taskType == "" {
		return errors.New("task type is required")
	}
	if reference == "" {
		return errors.New("task reference is required")
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}

	task := models.SyncTask{
		TaskType:  taskType,
		Reference: reference,
		Payload:   string(raw),
		Status:    models.SyncStatusPending,
	}
	if err := w.store.CreateSyncTask(ctx, &task); err != nil {
		return fmt.Errorf("persist sync task: %w", err)
	}
	metrics.IncWorkerTask(taskType, "enqueued")

	if w.redis != nil {
		err := w.pushRedis(ctx, queueKey, task)
		if err == nil {
			return nil
		}
		w.logger.Warn().Err(err).Int64("task_id", task.ID).Msg("Redis push failed, using memory queue")
	}

	select {
	case w.queue <- task:
	default:
		w.logger.Warn().Int64("task_id", task.ID).Msg("Memory queue full, task left to polling")
	}
	return nil
}

// Start runs the loop until ctx is done.
func (w *ReconcileWorker) Start(ctx context.Context) {
	w.logger.Info().Msg("Reconcile worker started")
	defer w.logger.Info().Msg("Reconcile worker stopped")

	for {
		if ctx.Err() != nil {
			return
		}
		if !w.step(ctx) {
			select {
			case <-ctx.Done():
				return
			case <-time.After(w.pollInterval):
			}
		}
	}
}

// step processes whatever is available and reports whether it found work.
func (w *ReconcileWorker) step(ctx context.Context) bool {
	if t, ok := w.tryLocalQueue(); ok {
		w.processTask(ctx, &t)
		return true
	}
	if t, ok := w.tryRedis(ctx); ok {
		w.processTask(ctx, &t)
		return true
	}

	tasks, err := w.store.GetPendingSyncTasks(ctx, w.batchSize)
	if err != nil {
		w.logger.Error().Err(err).Msg("Failed to fetch pending sync tasks")
		return false
	}
	for i := range tasks {
		w.processTask(ctx, &tasks[i])
	}
	return len(tasks) > 0
}

func (w *ReconcileWorker) tryLocalQueue() (models.SyncTask, bool) {
	select {
	case t := <-w.queue:
		return t, true
	default:
		return models.SyncTask{}, false
	}
}

func (w *ReconcileWorker) tryRedis(ctx context.Context) (models.SyncTask, bool) {
	if w.redis == nil {
		return models.SyncTask{}, false
	}
	res, err := w.redis.BRPop(ctx, time.Second, queueKey).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) && !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
			w.logger.Warn().Err(err).Msg("Redis BRPOP failed")
		}
		return models.SyncTask{}, false
	}
	if len(res) != 2 {
		return models.SyncTask{}, false
	}
	var task models.SyncTask
	if err := json.Unmarshal([]byte(res[1]), &task); err != nil {
		w.logger.Error().Err(err).Msg("Failed to decode redis task")
		return models.SyncTask{}, false
	}
	return task, true
}

func (w *ReconcileWorker) processTask(ctx context.Context, task *models.SyncTask) {
	log := w.logger.With().Int64("task_id", task.ID).Str("type", task.TaskType).Str("reference", task.Reference).Logger()

	err := w.handle(ctx, task)
	switch {
	case err == nil:
		if err := w.store.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusCompleted, "", nil); err != nil {
			log.Error().Err(err).Msg("Failed to mark task completed")
		}
		metrics.IncWorkerTask(task.TaskType, "completed")
		log.Debug().Msg("Sync task completed")
	case errors.Is(err, errPermanent):
		w.failTask(ctx, task, err)
	default:
		w.retryOrFail(ctx, task, err)
	}
}

func (w *ReconcileWorker) handle(ctx context.Context, task *models.SyncTask) error {
	switch task.TaskType {
	case models.TaskLedgerAppend:
		if w.handlers.Ledger == nil {
			return fmt.Errorf("ledger not configured: %w", errPermanent)
		}
		var p models.LedgerPayload
		if err := decodePayload(task.Payload, &p); err != nil {
			return err
		}
		_, err := w.handlers.Ledger.AppendReservation(ctx, &p.Reservation)
		return err
	case models.TaskPaymentRefund:
		if w.handlers.Payments == nil {
			return fmt.Errorf("payments not configured: %w", errPermanent)
		}
		var p models.RefundPayload
		if err := decodePayload(task.Payload, &p); err != nil {
			return err
		}
		if p.PaymentSessionID == "" {
			return fmt.Errorf("payment session id missing: %w", errPermanent)
		}
		return w.handlers.Payments.RefundSession(ctx, p.PaymentSessionID)
	case models.TaskCalendarCancel:
		if w.handlers.Calendar == nil {
			return fmt.Errorf("calendar not configured: %w", errPermanent)
		}
		var p models.CalendarCancelPayload
		if err := decodePayload(task.Payload, &p); err != nil {
			return err
		}
		if p.EventID == "" {
			return fmt.Errorf("calendar event id missing: %w", errPermanent)
		}
		return w.handlers.Calendar.CancelEvent(ctx, p.CalendarID, p.EventID)
	default:
		return fmt.Errorf("unknown task type %q: %w", task.TaskType, errPermanent)
	}
}

func decodePayload(raw string, v interface{}) error {
	if err := json.Unmarshal([]byte(raw), v); err != nil {
		return fmt.Errorf("decode payload: %w", errors.Join(errPermanent, err))
	}
	return nil
}

func (w *ReconcileWorker) retryOrFail(ctx context.Context, task *models.SyncTask, cause error) {
	attempt := task.RetryCount + 1
	if attempt >= w.retryPolicy.MaxRetries {
		w.failTask(ctx, task, cause)
		return
	}

	next := time.Now().Add(w.retryPolicy.NextDelay(attempt))
	if err := w.store.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusRetry, cause.Error(), &next); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to schedule retry")
	}
	metrics.IncWorkerTask(task.TaskType, "retry")
	w.logger.Warn().Err(cause).Int64("task_id", task.ID).Int("attempt", attempt).Time("next_retry_at", next).Msg("Sync task failed, will retry")
}

func (w *ReconcileWorker) failTask(ctx context.Context, task *models.SyncTask, cause error) {
	if err := w.store.UpdateSyncTaskStatus(ctx, task.ID, models.SyncStatusFailed, cause.Error(), nil); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to mark task failed")
	}
	metrics.IncWorkerTask(task.TaskType, "failed")
	w.logger.Error().Err(cause).Int64("task_id", task.ID).Str("type", task.TaskType).Msg("Sync task moved to dead letter")

	if w.redis == nil {
		return
	}
	task.LastError = cause.Error()
	if err := w.pushRedis(ctx, deadLetterKey, *task); err != nil {
		w.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Dead letter push failed")
	}
}

func (w *ReconcileWorker) pushRedis(ctx context.Context, key string, task models.SyncTask) error {
	data, err := json.Marshal(task)
	if err != nil {
		return err
	}
	return w.redis.LPush(ctx, key, data).Err()
}
