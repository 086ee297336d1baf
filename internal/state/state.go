// Package state manages the SQLite database that records migration runs,
// per-record outcomes, and source→target id mappings.
package state

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3" // registers the sqlite3 driver with database/sql

	"github.com/go-ports/sitebridge/internal/models"
)

// ErrRunNotFound is returned when a run id (or prefix) matches nothing.
var ErrRunNotFound = errors.New("run not found")

// DB wraps a *sql.DB with the path it was opened from.
type DB struct {
	db   *sql.DB
	path string
}

// Open opens (or creates) the SQLite database at path and initialises the schema.
func Open(path string) (*DB, error) {
	sqldb, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("state.Open: %w", err)
	}
	d := &DB{db: sqldb, path: path}
	if err := d.createSchema(); err != nil {
		_ = sqldb.Close()
		return nil, fmt.Errorf("state.Open createSchema: %w", err)
	}
	return d, nil
}

// Close closes the underlying database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// Path returns the database file path.
func (d *DB) Path() string { return d.path }

// ---------------------------------------------------------------------------
// Schema
// ---------------------------------------------------------------------------

func (d *DB) createSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			started_at  TEXT NOT NULL,
			finished_at TEXT,
			source_url  TEXT NOT NULL,
			source_db   TEXT NOT NULL,
			target_url  TEXT NOT NULL,
			target_db   TEXT NOT NULL,
			dry_run     INTEGER NOT NULL DEFAULT 0,
			report      TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS record_results (
			run_id  TEXT NOT NULL REFERENCES runs(id),
			seq     INTEGER NOT NULL,
			kind    TEXT NOT NULL,
			name    TEXT NOT NULL,
			key     TEXT,
			action  TEXT NOT NULL,
			error   TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS id_map (
			run_id    TEXT NOT NULL REFERENCES runs(id),
			kind      TEXT NOT NULL,
			source_id INTEGER NOT NULL,
			target_id INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS meta (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS record_results_run ON record_results(run_id)`,
		`CREATE INDEX IF NOT EXISTS id_map_run ON id_map(run_id, kind)`,
	}

	for _, s := range stmts {
		if _, err := d.db.Exec(s); err != nil {
			return fmt.Errorf("createSchema exec: %w\nSQL: %s", err, s)
		}
	}
	return nil
}

// ---------------------------------------------------------------------------
// Runs
// ---------------------------------------------------------------------------

// Run is one persisted migration run row.
type Run struct {
	ID         string
	StartedAt  time.Time
	FinishedAt time.Time
	SourceURL  string
	SourceDB   string
	TargetURL  string
	TargetDB   string
	DryRun     bool
	Report     string
}

// CreateRun inserts a new run row and returns its generated id.
func (d *DB) CreateRun(sourceURL, sourceDB, targetURL, targetDB string, dryRun bool, startedAt time.Time) (string, error) {
	id := uuid.NewString()
	_, err := d.db.Exec(`
		INSERT INTO runs (id, started_at, source_url, source_db, target_url, target_db, dry_run)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, startedAt.UTC().Format(time.RFC3339),
		sourceURL, sourceDB, targetURL, targetDB, boolToInt(dryRun),
	)
	if err != nil {
		return "", fmt.Errorf("CreateRun: %w", err)
	}
	return id, nil
}

// FinishRun stamps the finish time and stores the rendered report.
func (d *DB) FinishRun(id string, finishedAt time.Time, report string) error {
	res, err := d.db.Exec(
		`UPDATE runs SET finished_at = ?, report = ? WHERE id = ?`,
		finishedAt.UTC().Format(time.RFC3339), report, id,
	)
	if err != nil {
		return fmt.Errorf("FinishRun: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("FinishRun: %w: %s", ErrRunNotFound, id)
	}
	return nil
}

// GetRun fetches a run by id prefix. An empty id returns the latest run.
func (d *DB) GetRun(id string) (*Run, error) {
	q := `SELECT id, started_at, finished_at, source_url, source_db,
	             target_url, target_db, dry_run, report
	      FROM runs`
	var row *sql.Row
	if id == "" {
		row = d.db.QueryRow(q + ` ORDER BY started_at DESC LIMIT 1`)
	} else {
		row = d.db.QueryRow(q+` WHERE id LIKE ? ORDER BY started_at DESC LIMIT 1`, id+"%")
	}
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %q", ErrRunNotFound, id)
	}
	return r, err
}

// ListRuns returns the most recent runs, newest first.
func (d *DB) ListRuns(limit int) ([]*Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := d.db.Query(`
		SELECT id, started_at, finished_at, source_url, source_db,
		       target_url, target_db, dry_run, report
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("ListRuns: %w", err)
	}
	defer rows.Close()

	var out []*Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var r Run
	var started string
	var finished, report sql.NullString
	var dry int
	err := row.Scan(&r.ID, &started, &finished, &r.SourceURL, &r.SourceDB,
		&r.TargetURL, &r.TargetDB, &dry, &report)
	if err != nil {
		return nil, err
	}
	r.StartedAt, _ = time.Parse(time.RFC3339, started)
	if finished.Valid {
		r.FinishedAt, _ = time.Parse(time.RFC3339, finished.String)
	}
	r.Report = report.String
	r.DryRun = dry != 0
	return &r, nil
}

// ---------------------------------------------------------------------------
// Record results
// ---------------------------------------------------------------------------

// AddResult appends one record outcome to a run.
func (d *DB) AddResult(runID string, seq int, res models.RecordResult) error {
	_, err := d.db.Exec(`
		INSERT INTO record_results (run_id, seq, kind, name, key, action, error)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		runID, seq, string(res.Kind), res.Name, res.Key, string(res.Action), res.Err,
	)
	if err != nil {
		return fmt.Errorf("AddResult: %w", err)
	}
	return nil
}

// ListResults returns the record outcomes of a run in insertion order,
// optionally filtered to one action.
func (d *DB) ListResults(runID string, action models.Action) ([]models.RecordResult, error) {
	q := `SELECT kind, name, key, action, error FROM record_results WHERE run_id = ?`
	params := []any{runID}
	if action != "" {
		q += ` AND action = ?`
		params = append(params, string(action))
	}
	q += ` ORDER BY seq`

	rows, err := d.db.Query(q, params...)
	if err != nil {
		return nil, fmt.Errorf("ListResults: %w", err)
	}
	defer rows.Close()

	var out []models.RecordResult
	for rows.Next() {
		var r models.RecordResult
		var kind, act string
		var key, errStr sql.NullString
		if err := rows.Scan(&kind, &r.Name, &key, &act, &errStr); err != nil {
			return nil, err
		}
		r.Kind = models.Kind(kind)
		r.Action = models.Action(act)
		r.Key = key.String
		r.Err = errStr.String
		out = append(out, r)
	}
	return out, rows.Err()
}

// CountResults returns per-action counts for a run.
func (d *DB) CountResults(runID string) (map[models.Action]int, error) {
	rows, err := d.db.Query(
		`SELECT action, COUNT(*) FROM record_results WHERE run_id = ? GROUP BY action`,
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("CountResults: %w", err)
	}
	defer rows.Close()

	out := make(map[models.Action]int)
	for rows.Next() {
		var action string
		var n int
		if err := rows.Scan(&action, &n); err != nil {
			return nil, err
		}
		out[models.Action(action)] = n
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Id mappings
// ---------------------------------------------------------------------------

// AddMapping records that a source record now exists on the target under targetID.
func (d *DB) AddMapping(runID string, kind models.Kind, sourceID, targetID int) error {
	_, err := d.db.Exec(`
		INSERT INTO id_map (run_id, kind, source_id, target_id)
		VALUES (?, ?, ?, ?)`,
		runID, string(kind), sourceID, targetID,
	)
	if err != nil {
		return fmt.Errorf("AddMapping: %w", err)
	}
	return nil
}

// Mappings returns the source→target id map of one kind for a run.
func (d *DB) Mappings(runID string, kind models.Kind) (map[int]int, error) {
	rows, err := d.db.Query(
		`SELECT source_id, target_id FROM id_map WHERE run_id = ? AND kind = ?`,
		runID, string(kind),
	)
	if err != nil {
		return nil, fmt.Errorf("Mappings: %w", err)
	}
	defer rows.Close()

	out := make(map[int]int)
	for rows.Next() {
		var src, tgt int
		if err := rows.Scan(&src, &tgt); err != nil {
			return nil, err
		}
		out[src] = tgt
	}
	return out, rows.Err()
}

// ---------------------------------------------------------------------------
// Meta
// ---------------------------------------------------------------------------

// GetMeta returns the value for key, or ("", false, nil) if not set.
func (d *DB) GetMeta(key string) (string, bool, error) {
	var val string
	err := d.db.QueryRow(`SELECT value FROM meta WHERE key = ?`, key).Scan(&val)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return val, true, nil
}

// SetMeta upserts a key-value pair in the meta table.
func (d *DB) SetMeta(key, value string) error {
	_, err := d.db.Exec(
		`INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)`, key, value,
	)
	return err
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// ShortID trims a run id to the 8-character prefix used in listings.
func ShortID(id string) string {
	if idx := strings.IndexByte(id, '-'); idx > 0 {
		return id[:idx]
	}
	return id
}
