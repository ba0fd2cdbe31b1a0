package store

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/greenbook-analytics/carbonscreen-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// The seq column preserves insertion order; buyer clustering breaks ties by
// first encounter, so listing must replay contracts in the order they arrived.
const sqliteMigration = `
CREATE TABLE IF NOT EXISTS contracts (
	seq    INTEGER PRIMARY KEY AUTOINCREMENT,
	ocid   TEXT NOT NULL UNIQUE,
	record TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS buyer_map (
	raw       TEXT PRIMARY KEY,
	canonical TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS risk_records (
	seq          INTEGER PRIMARY KEY AUTOINCREMENT,
	ocid         TEXT NOT NULL UNIQUE,
	status       TEXT NOT NULL,
	co2e_tonnes  REAL,
	record       TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS ingest_runs (
	id           TEXT PRIMARY KEY,
	started_at   DATETIME NOT NULL,
	finished_at  DATETIME NOT NULL,
	status       TEXT NOT NULL,
	pages        INTEGER NOT NULL DEFAULT 0,
	records_kept INTEGER NOT NULL DEFAULT 0,
	last_cursor  TEXT,
	error        TEXT
);

CREATE INDEX IF NOT EXISTS idx_risk_records_status ON risk_records(status);
CREATE INDEX IF NOT EXISTS idx_ingest_runs_started_at ON ingest_runs(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) UpsertContracts(ctx context.Context, records []model.ContractRecord) (int64, error) {
	if len(records) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: begin upsert contracts")
	}
	defer tx.Rollback()

	var inserted int64
	for _, rec := range records {
		recJSON, err := json.Marshal(rec)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: marshal contract %s", rec.OCID)
		}
		res, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO contracts (ocid, record) VALUES (?, ?)`,
			rec.OCID, string(recJSON),
		)
		if err != nil {
			return 0, eris.Wrapf(err, "sqlite: insert contract %s", rec.OCID)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return 0, eris.Wrap(err, "sqlite: rows affected")
		}
		inserted += n
	}

	if err := tx.Commit(); err != nil {
		return 0, eris.Wrap(err, "sqlite: commit upsert contracts")
	}
	return inserted, nil
}

func (s *SQLiteStore) ReplaceContracts(ctx context.Context, records []model.ContractRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin replace contracts")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM contracts`); err != nil {
		return eris.Wrap(err, "sqlite: clear contracts")
	}
	for _, rec := range records {
		recJSON, err := json.Marshal(rec)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal contract %s", rec.OCID)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO contracts (ocid, record) VALUES (?, ?)`,
			rec.OCID, string(recJSON),
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert contract %s", rec.OCID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit replace contracts")
}

func (s *SQLiteStore) ListContracts(ctx context.Context) ([]model.ContractRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT record FROM contracts ORDER BY seq`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list contracts")
	}
	defer rows.Close()

	var records []model.ContractRecord
	for rows.Next() {
		var recJSON string
		if err := rows.Scan(&recJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan contract")
		}
		var rec model.ContractRecord
		if err := json.Unmarshal([]byte(recJSON), &rec); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal contract")
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list contracts iterate")
}

func (s *SQLiteStore) ReplaceBuyerMap(ctx context.Context, mappings []model.BuyerMapping) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin replace buyer map")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM buyer_map`); err != nil {
		return eris.Wrap(err, "sqlite: clear buyer map")
	}
	for _, m := range mappings {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO buyer_map (raw, canonical) VALUES (?, ?)`,
			m.Raw, m.Canonical,
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert buyer mapping %q", m.Raw)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit replace buyer map")
}

func (s *SQLiteStore) ListBuyerMap(ctx context.Context) ([]model.BuyerMapping, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT raw, canonical FROM buyer_map ORDER BY raw`)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list buyer map")
	}
	defer rows.Close()

	var mappings []model.BuyerMapping
	for rows.Next() {
		var m model.BuyerMapping
		if err := rows.Scan(&m.Raw, &m.Canonical); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan buyer mapping")
		}
		mappings = append(mappings, m)
	}
	return mappings, eris.Wrap(rows.Err(), "sqlite: list buyer map iterate")
}

func (s *SQLiteStore) ReplaceRiskRecords(ctx context.Context, records []model.RiskRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin replace risk records")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM risk_records`); err != nil {
		return eris.Wrap(err, "sqlite: clear risk records")
	}
	for _, rec := range records {
		recJSON, err := json.Marshal(rec)
		if err != nil {
			return eris.Wrapf(err, "sqlite: marshal risk record %s", rec.Contract.OCID)
		}
		var co2e sql.NullFloat64
		if v, ok := rec.CO2e(); ok {
			co2e = sql.NullFloat64{Float64: v, Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO risk_records (ocid, status, co2e_tonnes, record) VALUES (?, ?, ?, ?)`,
			rec.Contract.OCID, string(rec.Status), co2e, string(recJSON),
		); err != nil {
			return eris.Wrapf(err, "sqlite: insert risk record %s", rec.Contract.OCID)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit replace risk records")
}

func (s *SQLiteStore) ListRiskRecords(ctx context.Context) ([]model.RiskRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record FROM risk_records
		 ORDER BY (co2e_tonnes IS NULL), co2e_tonnes DESC, seq`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list risk records")
	}
	defer rows.Close()

	var records []model.RiskRecord
	for rows.Next() {
		var recJSON string
		if err := rows.Scan(&recJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan risk record")
		}
		var rec model.RiskRecord
		if err := json.Unmarshal([]byte(recJSON), &rec); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal risk record")
		}
		records = append(records, rec)
	}
	return records, eris.Wrap(rows.Err(), "sqlite: list risk records iterate")
}

func (s *SQLiteStore) RecordRun(ctx context.Context, run model.IngestRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO ingest_runs
		 (id, started_at, finished_at, status, pages, records_kept, last_cursor, error)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.StartedAt.UTC(), run.FinishedAt.UTC(), string(run.Status),
		run.Pages, run.RecordsKept, run.LastCursor, run.Error,
	)
	return eris.Wrapf(err, "sqlite: record run %s", run.ID)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.IngestRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, started_at, finished_at, status, pages, records_kept, last_cursor, error
		 FROM ingest_runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.IngestRun
	for rows.Next() {
		var r model.IngestRun
		var status string
		var cursor, errMsg sql.NullString
		if err := rows.Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &status,
			&r.Pages, &r.RecordsKept, &cursor, &errMsg); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		r.Status = model.RunStatus(status)
		r.LastCursor = cursor.String
		r.Error = errMsg.String
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}
