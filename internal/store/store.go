// Package store persists the inputs to aggregation and detection: connected
// sources and recurring-charge records, keyed by entity. Snapshots and
// analysis results are derived on demand and never stored.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/NeverShitty/chittyfinance-sub000/internal/config"
	"github.com/NeverShitty/chittyfinance-sub000/internal/model"
)

// Store defines the persistence interface for sources and charges.
type Store interface {
	// Sources
	UpsertSource(ctx context.Context, entityID string, src model.Source) error
	ListSources(ctx context.Context, entityID string) ([]model.Source, error)
	SetSourceConnected(ctx context.Context, entityID, serviceType, integrationID string, connected bool) error
	DeleteSource(ctx context.Context, entityID, serviceType, integrationID string) error

	// Recurring charges
	ReplaceCharges(ctx context.Context, entityID string, charges []model.ChargeDetails) error
	ListCharges(ctx context.Context, entityID string) ([]model.ChargeDetails, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open builds a Store from configuration. Supported drivers: sqlite,
// postgres.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return NewSQLite(cfg.DatabaseURL)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL, nil)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
