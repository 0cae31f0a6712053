package telemetry

import (
	"context"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"taiga-telemetry/internal/telemetry/domain"
	"taiga-telemetry/internal/telemetry/repository"
)

// NewInstanceID returns a random 32-character lowercase hex id (a v4 UUID without dashes).
func NewInstanceID() string {
	id := uuid.New()
	return hex.EncodeToString(id[:])
}

// InstanceIDs hands out the persistent id of this installation.
//
// Two processes racing on an empty table may both insert a row; reads always
// return the lowest id, so every later call agrees on one of them.
type InstanceIDs struct {
	repo  repository.Repository
	newID func() string
}

// NewInstanceIDs returns an InstanceIDs backed by repo.
func NewInstanceIDs(repo repository.Repository) *InstanceIDs {
	return &InstanceIDs{repo: repo, newID: NewInstanceID}
}

// Instance returns the instance row, creating it on first use.
func (p *InstanceIDs) Instance(ctx context.Context) (*domain.InstanceTelemetry, error) {
	row, err := p.repo.First(ctx)
	if err != nil {
		return nil, fmt.Errorf("telemetry: read instance id: %w", err)
	}
	if row != nil {
		return row, nil
	}
	row, err = p.repo.Create(ctx, p.newID())
	if err != nil {
		return nil, fmt.Errorf("telemetry: create instance id: %w", err)
	}
	log.Info().Str("instance_id", row.InstanceID).Msg("telemetry: instance id created")
	return row, nil
}

// Lookup returns the instance row without creating it, or nil when none exists yet.
func (p *InstanceIDs) Lookup(ctx context.Context) (*domain.InstanceTelemetry, error) {
	row, err := p.repo.First(ctx)
	if err != nil {
		return nil, fmt.Errorf("telemetry: read instance id: %w", err)
	}
	return row, nil
}

// GetOrCreate returns the instance id, creating it on first use.
func (p *InstanceIDs) GetOrCreate(ctx context.Context) (string, error) {
	row, err := p.Instance(ctx)
	if err != nil {
		return "", err
	}
	return row.InstanceID, nil
}
