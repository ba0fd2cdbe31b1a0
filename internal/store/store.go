// Package store persists the contract table, buyer map, risk records, and
// ingestion run log behind a driver-selectable interface.
package store

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/greenbook-analytics/carbonscreen-cli/internal/config"
	"github.com/greenbook-analytics/carbonscreen-cli/internal/model"
)

// Store defines the persistence interface for the screening pipeline.
type Store interface {
	// Contracts. UpsertContracts ignores already-present identifiers so a
	// resumed ingestion run never duplicates a contract. ReplaceContracts
	// rewrites the whole table, preserving slice order; the filter and clean
	// stages regenerate their output in full.
	UpsertContracts(ctx context.Context, records []model.ContractRecord) (int64, error)
	ReplaceContracts(ctx context.Context, records []model.ContractRecord) error
	ListContracts(ctx context.Context) ([]model.ContractRecord, error)

	// Buyer map artifact, regenerated on every clean run.
	ReplaceBuyerMap(ctx context.Context, rows []model.BuyerMapping) error
	ListBuyerMap(ctx context.Context) ([]model.BuyerMapping, error)

	// Risk records, regenerated on every screen run. ListRiskRecords returns
	// them ordered by estimated CO2e descending with skipped records last.
	ReplaceRiskRecords(ctx context.Context, records []model.RiskRecord) error
	ListRiskRecords(ctx context.Context) ([]model.RiskRecord, error)

	// Ingestion run log.
	RecordRun(ctx context.Context, run model.IngestRun) error
	ListRuns(ctx context.Context, limit int) ([]model.IngestRun, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// Open creates a Store for the configured driver.
func Open(ctx context.Context, cfg config.StoreConfig) (Store, error) {
	switch cfg.Driver {
	case "sqlite", "":
		return NewSQLite(cfg.Path)
	case "postgres":
		return NewPostgres(ctx, cfg.DatabaseURL)
	default:
		return nil, eris.Errorf("store: unknown driver %q", cfg.Driver)
	}
}
