package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadgen-cli/internal/model"
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
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id             TEXT PRIMARY KEY,
	company_name   TEXT NOT NULL,
	industry       TEXT NOT NULL,
	province       TEXT NOT NULL,
	website        TEXT,
	email          TEXT,
	instagram      TEXT,
	facebook       TEXT,
	about          TEXT,
	employees      INTEGER,
	source         TEXT NOT NULL,
	fecha_consulta TEXT NOT NULL,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE (company_name, province)
);

CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL,
	succeeded   INTEGER NOT NULL DEFAULT 0,
	total       INTEGER NOT NULL DEFAULT 0,
	result      TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_leads_province ON leads(province);
CREATE INDEX IF NOT EXISTS idx_leads_industry ON leads(industry);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const leadColumns = `company_name, industry, province, website, email, instagram, facebook, about, employees, source, fecha_consulta`

func (s *SQLiteStore) Insert(ctx context.Context, c model.CompanyData) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (id, `+leadColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.New().String(), c.CompanyName, c.Industry, c.Province,
		c.Website, c.Email, c.Instagram, c.Facebook, c.About, c.Employees,
		c.Source, c.FechaConsulta,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return eris.Wrapf(ErrDuplicateLead, "sqlite: insert lead %s", c.Key())
		}
		return eris.Wrapf(err, "sqlite: insert lead %s", c.Key())
	}
	return nil
}

func (s *SQLiteStore) Find(ctx context.Context, key model.LeadKey) (*model.CompanyData, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+leadColumns+` FROM leads WHERE company_name = ? AND province = ?`,
		key.CompanyName, key.Province,
	)
	c, err := scanLead(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: find lead %s", key)
	}
	return c, nil
}

func (s *SQLiteStore) Exists(ctx context.Context, key model.LeadKey) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM leads WHERE company_name = ? AND province = ?)`,
		key.CompanyName, key.Province,
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrapf(err, "sqlite: lead exists %s", key)
	}
	return exists, nil
}

func (s *SQLiteStore) List(ctx context.Context, filter LeadFilter) ([]model.CompanyData, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE 1=1`
	var args []any
	if filter.Province != "" {
		query += ` AND province = ?`
		args = append(args, filter.Province)
	}
	if filter.Industry != "" {
		query += ` AND industry = ?`
		args = append(args, filter.Industry)
	}
	query += ` ORDER BY created_at DESC, company_name LIMIT ?`
	args = append(args, clampLimit(filter.Limit))
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close() //nolint:errcheck

	var leads []model.CompanyData
	for rows.Next() {
		c, err := scanLead(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		leads = append(leads, *c)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads iterate")
}

func (s *SQLiteStore) SaveRun(ctx context.Context, run *model.RunResult) error {
	resultJSON, err := json.Marshal(run)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal run")
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO runs (id, started_at, finished_at, succeeded, total, result) VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET finished_at = excluded.finished_at, succeeded = excluded.succeeded,
		 total = excluded.total, result = excluded.result`,
		run.RunID, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Succeeded(), len(run.Reports), string(resultJSON),
	)
	return eris.Wrapf(err, "sqlite: save run %s", run.RunID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.RunResult, error) {
	var resultJSON string
	err := s.db.QueryRowContext(ctx, `SELECT result FROM runs WHERE id = ?`, runID).Scan(&resultJSON)
	if err == sql.ErrNoRows {
		return nil, eris.Wrapf(ErrRunNotFound, "sqlite: get run %s", runID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get run %s", runID)
	}
	return decodeRun([]byte(resultJSON))
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.RunResult, error) {
	query := `SELECT result FROM runs ORDER BY started_at DESC LIMIT ?`
	args := []any{clampLimit(filter.Limit)}
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.RunResult
	for rows.Next() {
		var resultJSON string
		if err := rows.Scan(&resultJSON); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		r, err := decodeRun([]byte(resultJSON))
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanLead(row scannable) (*model.CompanyData, error) {
	var c model.CompanyData
	err := row.Scan(&c.CompanyName, &c.Industry, &c.Province,
		&c.Website, &c.Email, &c.Instagram, &c.Facebook, &c.About, &c.Employees,
		&c.Source, &c.FechaConsulta,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func decodeRun(b []byte) (*model.RunResult, error) {
	var r model.RunResult
	if err := json.Unmarshal(b, &r); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal run")
	}
	return &r, nil
}
