package repository

import (
	"context"

	"taiga-telemetry/internal/telemetry/domain"
)

// Repository defines persistence for the instance telemetry row.
type Repository interface {
	// First returns the row with the lowest id, or nil if the table is empty.
	First(ctx context.Context) (*domain.InstanceTelemetry, error)
	// Create inserts a new row with the given instance id and returns it.
	Create(ctx context.Context, instanceID string) (*domain.InstanceTelemetry, error)
}
