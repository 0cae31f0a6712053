package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"taiga-telemetry/internal/telemetry/domain"
)

type PostgresRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresRepository returns an instance telemetry repository that uses the given db for persistence.
func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db, now: time.Now}
}

// First returns the canonical instance row, or nil if none exists.
// It returns an error only for database failures, not for a missing row.
func (r *PostgresRepository) First(ctx context.Context) (*domain.InstanceTelemetry, error) {
	var row domain.InstanceTelemetry
	err := r.db.QueryRowContext(ctx, selectFirstInstance).Scan(&row.ID, &row.InstanceID, &row.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// Create inserts a row with instanceID. Uniqueness is not enforced; readers always take the first row.
func (r *PostgresRepository) Create(ctx context.Context, instanceID string) (*domain.InstanceTelemetry, error) {
	var row domain.InstanceTelemetry
	err := r.db.QueryRowContext(ctx, insertInstance, instanceID, r.now().UTC()).
		Scan(&row.ID, &row.InstanceID, &row.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &row, nil
}
