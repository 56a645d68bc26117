package storage

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/cuongbtq/pdf-station/shared/postgresql"
)

// RelayOutbox hands up to limit unpublished messages to publish in insertion order.
// Rows are locked with SKIP LOCKED so concurrent relays never publish the same row.
// Relaying stops at the first publish error; rows published before it are still marked.
func (s *Storage) RelayOutbox(ctx context.Context, limit int, publish func(ctx context.Context, msg OutboxMessage) error) (int, error) {
	var published []int64
	var publishErr error

	err := postgresql.WithTx(ctx, s.db, func(tx *sqlx.Tx) error {
		var pending []OutboxMessage
		query := `
			SELECT id, job_id, routing_key, payload, created_at, published_at
			FROM outbox
			WHERE published_at IS NULL
			ORDER BY id
			LIMIT $1
			FOR UPDATE SKIP LOCKED
		`
		if err := tx.SelectContext(ctx, &pending, query, limit); err != nil {
			return fmt.Errorf("failed to fetch outbox: %w", err)
		}

		for _, msg := range pending {
			if err := publish(ctx, msg); err != nil {
				publishErr = fmt.Errorf("failed to relay outbox message %d: %w", msg.ID, err)
				break
			}
			published = append(published, msg.ID)
		}

		if len(published) == 0 {
			return nil
		}

		_, err := tx.ExecContext(ctx,
			`UPDATE outbox SET published_at = NOW() WHERE id = ANY($1)`,
			pq.Int64Array(published),
		)
		if err != nil {
			return fmt.Errorf("failed to mark outbox published: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if len(published) > 0 {
		s.logger.Debug("Outbox relayed", slog.Int("count", len(published)))
	}

	return len(published), publishErr
}
