package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"signet/internal/domain"
	"signet/internal/port"
)

type duplicateStore struct {
	db *sqlx.DB
}

// NewDuplicateStore creates a new PostgreSQL-backed DuplicateStore.
func NewDuplicateStore(db *sqlx.DB) port.DuplicateStore {
	return &duplicateStore{db: db}
}

type duplicateRow struct {
	ContentHash  string    `db:"content_hash"`
	IRNValue     string    `db:"irn_value"`
	Organization string    `db:"organization"`
	CreatedAt    time.Time `db:"created_at"`
	Summary      []byte    `db:"summary"`
}

func (r *duplicateStore) Append(ctx context.Context, rec *domain.DuplicateRecord) error {
	summary, err := json.Marshal(rec.Summary)
	if err != nil {
		return fmt.Errorf("duplicateStore.Append: marshaling summary: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
		INSERT INTO duplicate_records (content_hash, irn_value, organization, created_at, summary)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (content_hash) DO NOTHING`,
		rec.ContentHash, rec.IRNValue, rec.Organization, rec.CreatedAt, summary,
	)
	if err != nil {
		return fmt.Errorf("duplicateStore.Append: %w", err)
	}
	return nil
}

func (r *duplicateStore) LoadAll(ctx context.Context) ([]domain.DuplicateRecord, error) {
	var rows []duplicateRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT content_hash, irn_value, organization, created_at, summary
		FROM duplicate_records
		ORDER BY created_at ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("duplicateStore.LoadAll: %w", err)
	}

	records := make([]domain.DuplicateRecord, 0, len(rows))
	for _, row := range rows {
		rec := domain.DuplicateRecord{
			ContentHash:  row.ContentHash,
			IRNValue:     row.IRNValue,
			Organization: row.Organization,
			CreatedAt:    row.CreatedAt,
		}
		if len(row.Summary) > 0 {
			if err := json.Unmarshal(row.Summary, &rec.Summary); err != nil {
				return nil, fmt.Errorf("duplicateStore.LoadAll: unmarshaling summary for %s: %w", row.IRNValue, err)
			}
		}
		records = append(records, rec)
	}
	return records, nil
}
