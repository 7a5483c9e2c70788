package outbox

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

const (
	defaultBatchSize   = 20
	defaultMaxAttempts = 5
)

// TxBeginner abstracts pgxpool.Pool for testability.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Relay drains pending outbox rows into a Publisher. Concurrent relays never
// claim the same row because the batch is selected with SKIP LOCKED.
type Relay struct {
	pool        TxBeginner
	publisher   Publisher
	logger      *zap.Logger
	batchSize   int
	maxAttempts int
}

// Stats summarises one relay pass.
type Stats struct {
	Claimed   int
	Processed int
	Failed    int
	Dead      int
}

func NewRelay(pool TxBeginner, publisher Publisher, logger *zap.Logger) *Relay {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Relay{
		pool:        pool,
		publisher:   publisher,
		logger:      logger,
		batchSize:   defaultBatchSize,
		maxAttempts: defaultMaxAttempts,
	}
}

func (r *Relay) WithBatchSize(n int) *Relay {
	if n > 0 {
		r.batchSize = n
	}
	return r
}

func (r *Relay) WithMaxAttempts(n int) *Relay {
	if n > 0 {
		r.maxAttempts = n
	}
	return r
}

// Run polls every interval until ctx is cancelled. Pass errors are logged and
// the loop continues.
func (r *Relay) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		return fmt.Errorf("outbox: relay interval must be positive")
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	r.logger.Info("outbox relay started", zap.Duration("interval", interval), zap.Int("batch_size", r.batchSize))
	for {
		select {
		case <-ctx.Done():
			r.logger.Info("outbox relay stopped")
			return nil
		case <-ticker.C:
			stats, err := r.RunOnce(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					return nil
				}
				r.logger.Error("outbox relay pass failed", zap.Error(err))
				continue
			}
			if stats.Claimed > 0 {
				r.logger.Debug("outbox relay pass",
					zap.Int("claimed", stats.Claimed),
					zap.Int("processed", stats.Processed),
					zap.Int("failed", stats.Failed),
					zap.Int("dead", stats.Dead),
				)
			}
		}
	}
}

// RunOnce claims one batch, publishes each message and records the outcome in
// the same transaction.
func (r *Relay) RunOnce(ctx context.Context) (Stats, error) {
	var stats Stats

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return stats, fmt.Errorf("outbox: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	msgs, err := claimPending(ctx, tx, r.batchSize)
	if err != nil {
		return stats, err
	}
	stats.Claimed = len(msgs)

	for _, msg := range msgs {
		pubErr := r.publisher.Publish(ctx, msg)
		if pubErr == nil {
			if _, err := tx.Exec(ctx, `UPDATE outbox SET status='processed', last_attempt=NOW(), attempts=attempts+1 WHERE id=$1`, msg.ID); err != nil {
				return stats, fmt.Errorf("outbox: mark processed: %w", err)
			}
			stats.Processed++
			continue
		}

		next := settle(msg.Attempts+1, r.maxAttempts)
		if _, err := tx.Exec(ctx, `
UPDATE outbox
SET attempts = attempts + 1,
    last_attempt = NOW(),
    last_error = $2,
    status = $3::outbox_status
WHERE id = $1`, msg.ID, pubErr.Error(), string(next)); err != nil {
			return stats, fmt.Errorf("outbox: record failure: %w", err)
		}

		r.logger.Warn("outbox publish failed",
			zap.String("id", msg.ID),
			zap.String("topic", msg.Topic),
			zap.Int("attempt", msg.Attempts+1),
			zap.Error(pubErr),
		)
		if next == StatusDead {
			stats.Dead++
		} else {
			stats.Failed++
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return stats, fmt.Errorf("outbox: commit tx: %w", err)
	}

	return stats, nil
}

// settle decides the status of a message after a failed attempt.
func settle(attempts, maxAttempts int) Status {
	if attempts >= maxAttempts {
		return StatusDead
	}
	return StatusPending
}

func claimPending(ctx context.Context, tx pgx.Tx, limit int) ([]Message, error) {
	rows, err := tx.Query(ctx, `
SELECT id::text, topic, payload, status::text, attempts, last_error, last_attempt, created_at
FROM outbox
WHERE status = 'pending'
ORDER BY created_at
FOR UPDATE SKIP LOCKED
LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("outbox: claim pending: %w", err)
	}
	defer rows.Close()

	msgs := make([]Message, 0, limit)
	for rows.Next() {
		var (
			msg    Message
			status string
		)
		if err := rows.Scan(&msg.ID, &msg.Topic, &msg.Payload, &status, &msg.Attempts, &msg.LastError, &msg.LastAttempt, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("outbox: scan message: %w", err)
		}
		msg.Status = Status(status)
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outbox: iterate messages: %w", err)
	}

	return msgs, nil
}
