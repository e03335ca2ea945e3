package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"signet/internal/domain"
	"signet/internal/port"
)

type sequenceStore struct {
	db *sqlx.DB
}

// NewSequenceStore creates a new PostgreSQL-backed SequenceStore.
func NewSequenceStore(db *sqlx.DB) port.SequenceStore {
	return &sequenceStore{db: db}
}

func (r *sequenceStore) Load(ctx context.Context, org, class, day string) (int64, error) {
	var current int64
	err := r.db.GetContext(ctx, &current, `
		SELECT current
		FROM sequence_counters
		WHERE organization = $1 AND class = $2 AND day = $3`,
		org, class, day,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, domain.ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("sequenceStore.Load: %w", err)
	}
	return current, nil
}

func (r *sequenceStore) Save(ctx context.Context, org, class, day string, current int64) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO sequence_counters (organization, class, day, current, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (organization, class, day)
		DO UPDATE SET current = GREATEST(sequence_counters.current, EXCLUDED.current),
		              updated_at = NOW()`,
		org, class, day, current,
	)
	if err != nil {
		return fmt.Errorf("sequenceStore.Save: %w", err)
	}
	return nil
}
