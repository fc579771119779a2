package postgres

import (
	"context"
	"fmt"
	"time"

	"roombook/internal/models"
)

func (s *Store) CreateSyncTask(ctx context.Context, task *models.SyncTask) error {
	if task.Status == "" {
		task.Status = models.SyncStatusPending
	}
	now := time.Now().UTC()
	err := s.pool.QueryRow(ctx, `INSERT INTO sync_queue (task_type, reference, payload, status, retry_count, last_error, created_at, next_retry_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING id`,
		task.TaskType, task.Reference, task.Payload, task.Status, task.RetryCount, task.LastError, now, task.NextRetryAt,
	).Scan(&task.ID)
	if err != nil {
		return fmt.Errorf("failed to create sync task: %w", err)
	}
	task.CreatedAt = now
	return nil
}

func (s *Store) GetPendingSyncTasks(ctx context.Context, limit int) ([]models.SyncTask, error) {
	rows, err := s.pool.Query(ctx, `SELECT id, task_type, reference, payload, status, retry_count, last_error, created_at, processed_at, next_retry_at
        FROM sync_queue
        WHERE status IN ('pending', 'retry') AND (next_retry_at IS NULL OR next_retry_at <= now())
        ORDER BY created_at ASC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get pending sync tasks: %w", err)
	}
	defer rows.Close()

	var tasks []models.SyncTask
	for rows.Next() {
		var t models.SyncTask
		if err := rows.Scan(&t.ID, &t.TaskType, &t.Reference, &t.Payload, &t.Status, &t.RetryCount,
			&t.LastError, &t.CreatedAt, &t.ProcessedAt, &t.NextRetryAt); err != nil {
			return nil, fmt.Errorf("failed to scan sync task: %w", err)
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func (s *Store) UpdateSyncTaskStatus(ctx context.Context, id int64, status, errMsg string, nextRetryAt *time.Time) error {
	var err error
	switch status {
	case models.SyncStatusRetry:
		_, err = s.pool.Exec(ctx, `UPDATE sync_queue SET status = $1, last_error = $2, next_retry_at = $3, retry_count = retry_count + 1 WHERE id = $4`,
			status, errMsg, nextRetryAt, id)
	case models.SyncStatusCompleted, models.SyncStatusFailed:
		_, err = s.pool.Exec(ctx, `UPDATE sync_queue SET status = $1, last_error = $2, next_retry_at = $3, processed_at = now() WHERE id = $4`,
			status, errMsg, nextRetryAt, id)
	default:
		_, err = s.pool.Exec(ctx, `UPDATE sync_queue SET status = $1, last_error = $2, next_retry_at = $3 WHERE id = $4`,
			status, errMsg, nextRetryAt, id)
	}
	if err != nil {
		return fmt.Errorf("failed to update sync task status: %w", err)
	}
	return nil
}
