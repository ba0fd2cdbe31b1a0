package store

import (
	"context"
	"encoding/json"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/greenbook-analytics/carbonscreen-cli/internal/model"
)

// pgPool is the subset of pgxpool.Pool the store uses. Tests substitute a
// pgxmock pool through the same interface.
type pgPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool pgPool
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS contracts (
	seq    BIGSERIAL PRIMARY KEY,
	ocid   TEXT NOT NULL UNIQUE,
	record JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS buyer_map (
	raw       TEXT PRIMARY KEY,
	canonical TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS risk_records (
	seq         BIGSERIAL PRIMARY KEY,
	ocid        TEXT NOT NULL UNIQUE,
	status      TEXT NOT NULL,
	co2e_tonnes DOUBLE PRECISION,
	record      JSONB NOT NULL
);

CREATE TABLE IF NOT EXISTS ingest_runs (
	id           TEXT PRIMARY KEY,
	started_at   TIMESTAMPTZ NOT NULL,
	finished_at  TIMESTAMPTZ NOT NULL,
	status       TEXT NOT NULL,
	pages        INTEGER NOT NULL DEFAULT 0,
	records_kept INTEGER NOT NULL DEFAULT 0,
	last_cursor  TEXT,
	error        TEXT
);

CREATE INDEX IF NOT EXISTS idx_risk_records_status ON risk_records(status);
CREATE INDEX IF NOT EXISTS idx_ingest_runs_started_at ON ingest_runs(started_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) UpsertContracts(ctx context.Context, records []model.ContractRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: begin upsert contracts")
	}
	defer tx.Rollback(ctx)

	var inserted int64
	for _, rec := range records {
		recJSON, err := json.Marshal(rec)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: marshal contract %s", rec.OCID)
		}
		tag, err := tx.Exec(ctx,
			`INSERT INTO contracts (ocid, record) VALUES ($1, $2) ON CONFLICT (ocid) DO NOTHING`,
			rec.OCID, recJSON,
		)
		if err != nil {
			return 0, eris.Wrapf(err, "postgres: insert contract %s", rec.OCID)
		}
		inserted += tag.RowsAffected()
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, eris.Wrap(err, "postgres: commit upsert contracts")
	}
	return inserted, nil
}

func (s *PostgresStore) ReplaceContracts(ctx context.Context, records []model.ContractRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin replace contracts")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM contracts`); err != nil {
		return eris.Wrap(err, "postgres: clear contracts")
	}
	for _, rec := range records {
		recJSON, err := json.Marshal(rec)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal contract %s", rec.OCID)
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO contracts (ocid, record) VALUES ($1, $2)`,
			rec.OCID, recJSON,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert contract %s", rec.OCID)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit replace contracts")
}

func (s *PostgresStore) ListContracts(ctx context.Context) ([]model.ContractRecord, error) {
	rows, err := s.pool.Query(ctx, `SELECT record FROM contracts ORDER BY seq`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list contracts")
	}
	defer rows.Close()

	var records []model.ContractRecord
	for rows.Next() {
		var recJSON []byte
		if err := rows.Scan(&recJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan contract")
		}
		var rec model.ContractRecord
		if err := json.Unmarshal(recJSON, &rec); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal contract")
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list contracts iterate")
}

func (s *PostgresStore) ReplaceBuyerMap(ctx context.Context, mappings []model.BuyerMapping) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin replace buyer map")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM buyer_map`); err != nil {
		return eris.Wrap(err, "postgres: clear buyer map")
	}
	for _, m := range mappings {
		if _, err := tx.Exec(ctx,
			`INSERT INTO buyer_map (raw, canonical) VALUES ($1, $2)
			 ON CONFLICT (raw) DO UPDATE SET canonical = $2`,
			m.Raw, m.Canonical,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert buyer mapping %q", m.Raw)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit replace buyer map")
}

func (s *PostgresStore) ListBuyerMap(ctx context.Context) ([]model.BuyerMapping, error) {
	rows, err := s.pool.Query(ctx, `SELECT raw, canonical FROM buyer_map ORDER BY raw`)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list buyer map")
	}
	defer rows.Close()

	var mappings []model.BuyerMapping
	for rows.Next() {
		var m model.BuyerMapping
		if err := rows.Scan(&m.Raw, &m.Canonical); err != nil {
			return nil, eris.Wrap(err, "postgres: scan buyer mapping")
		}
		mappings = append(mappings, m)
	}
	return mappings, eris.Wrap(rows.Err(), "postgres: list buyer map iterate")
}

func (s *PostgresStore) ReplaceRiskRecords(ctx context.Context, records []model.RiskRecord) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin replace risk records")
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM risk_records`); err != nil {
		return eris.Wrap(err, "postgres: clear risk records")
	}
	for _, rec := range records {
		recJSON, err := json.Marshal(rec)
		if err != nil {
			return eris.Wrapf(err, "postgres: marshal risk record %s", rec.Contract.OCID)
		}
		var co2e *float64
		if v, ok := rec.CO2e(); ok {
			co2e = &v
		}
		if _, err := tx.Exec(ctx,
			`INSERT INTO risk_records (ocid, status, co2e_tonnes, record) VALUES ($1, $2, $3, $4)`,
			rec.Contract.OCID, string(rec.Status), co2e, recJSON,
		); err != nil {
			return eris.Wrapf(err, "postgres: insert risk record %s", rec.Contract.OCID)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit replace risk records")
}

func (s *PostgresStore) ListRiskRecords(ctx context.Context) ([]model.RiskRecord, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT record FROM risk_records
		 ORDER BY co2e_tonnes DESC NULLS LAST, seq`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list risk records")
	}
	defer rows.Close()

	var records []model.RiskRecord
	for rows.Next() {
		var recJSON []byte
		if err := rows.Scan(&recJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan risk record")
		}
		var rec model.RiskRecord
		if err := json.Unmarshal(recJSON, &rec); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal risk record")
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "postgres: list risk records iterate")
}

func (s *PostgresStore) RecordRun(ctx context.Context, run model.IngestRun) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO ingest_runs
		 (id, started_at, finished_at, status, pages, records_kept, last_cursor, error)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (id) DO UPDATE SET
		   finished_at = $3, status = $4, pages = $5, records_kept = $6, last_cursor = $7, error = $8`,
		run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC(), string(run.Status),
		run.Pages, run.RecordsKept, run.LastCursor, run.Error,
	)
	return eris.Wrapf(err, "postgres: record run %s", run.ID)
}

func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.IngestRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, started_at, finished_at, status, pages, records_kept, last_cursor, error
		 FROM ingest_runs ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.IngestRun
	for rows.Next() {
		var r model.IngestRun
		var status string
		var cursor, errMsg *string
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &status,
			&r.Pages, &r.RecordsKept, &cursor, &errMsg); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Status = model.RunStatus(status)
		if cursor != nil {
			r.LastCursor = *cursor
		}
		if errMsg != nil {
			r.Error = *errMsg
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}
