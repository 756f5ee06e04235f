// Package sqlite keeps runs and artifacts in a local database file for the
// command line mode.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"scaffoldgen/internal/domain/entity"
	"scaffoldgen/internal/domain/repository"
	"scaffoldgen/internal/infrastructure/metrics"
)

const storeName = "sqlite"

type Store struct {
	db   *sql.DB
	path string
}

var (
	_ repository.RunRepository      = (*Store)(nil)
	_ repository.ArtifactRepository = (*Store)(nil)
)

func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db, path: path}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		project_name TEXT NOT NULL,
		description TEXT NOT NULL,
		project_type TEXT NOT NULL,
		features_json TEXT NOT NULL DEFAULT '[]',
		status TEXT NOT NULL,
		state TEXT NOT NULL DEFAULT '',
		progress INTEGER NOT NULL DEFAULT 0,
		message TEXT NOT NULL DEFAULT '',
		error TEXT NOT NULL DEFAULT '',
		errors_json TEXT NOT NULL DEFAULT '[]',
		warnings_json TEXT NOT NULL DEFAULT '[]',
		tokens_used INTEGER NOT NULL DEFAULT 0,
		file_count INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		finished_at TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);

	CREATE TABLE IF NOT EXISTS artifacts (
		run_id TEXT NOT NULL,
		path TEXT NOT NULL,
		content TEXT NOT NULL,
		kind TEXT NOT NULL,
		size INTEGER NOT NULL,
		created_at TEXT NOT NULL,
		PRIMARY KEY (run_id, path)
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Run operations

const runColumns = `id, project_name, description, project_type, features_json, status, state,
	progress, message, error, errors_json, warnings_json, tokens_used, file_count,
	created_at, updated_at, finished_at`

func (s *Store) Create(ctx context.Context, run *entity.Run) error {
	metrics.IncRunsCreated()
	metrics.IncDBFileOp(storeName, "put")

	now := time.Now().UTC()
	run.CreatedAt = now
	run.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `INSERT INTO runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, runArgs(run)...)
	if err != nil {
		metrics.IncError("sqlite_store", "create_error")
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *Store) GetByID(ctx context.Context, id string) (*entity.Run, error) {
	metrics.IncDBFileOp(storeName, "get")

	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		metrics.IncError("sqlite_store", "get_error")
		return nil, err
	}
	return run, nil
}

func (s *Store) List(ctx context.Context) ([]*entity.Run, error) {
	return s.queryRuns(ctx, `SELECT `+runColumns+` FROM runs ORDER BY created_at`)
}

func (s *Store) ListByStatus(ctx context.Context, status entity.RunStatus) ([]*entity.Run, error) {
	return s.queryRuns(ctx, `SELECT `+runColumns+` FROM runs WHERE status = ? ORDER BY created_at`, status)
}

func (s *Store) queryRuns(ctx context.Context, query string, args ...any) ([]*entity.Run, error) {
	metrics.IncDBFileOp(storeName, "list")

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		metrics.IncError("sqlite_store", "list_error")
		return nil, err
	}
	defer rows.Close()

	var runs []*entity.Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

func (s *Store) Update(ctx context.Context, run *entity.Run) error {
	metrics.IncDBFileOp(storeName, "put")

	run.UpdatedAt = time.Now().UTC()
	args := runArgs(run)
	res, err := s.db.ExecContext(ctx, `UPDATE runs SET
		project_name = ?, description = ?, project_type = ?, features_json = ?, status = ?, state = ?,
		progress = ?, message = ?, error = ?, errors_json = ?, warnings_json = ?, tokens_used = ?,
		file_count = ?, created_at = ?, updated_at = ?, finished_at = ?
		WHERE id = ?`, append(args[1:], run.ID)...)
	if err != nil {
		metrics.IncError("sqlite_store", "update_error")
		return err
	}
	return expectRow(res, run.ID)
}

func (s *Store) UpdateStatus(ctx context.Context, id string, status entity.RunStatus) error {
	metrics.IncDBFileOp(storeName, "put")

	res, err := s.db.ExecContext(ctx, `UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		status, formatTime(time.Now()), id)
	if err != nil {
		metrics.IncError("sqlite_store", "update_status_error")
		return err
	}
	return expectRow(res, id)
}

func (s *Store) UpdateProgress(ctx context.Context, p entity.Progress) error {
	metrics.IncDBFileOp(storeName, "put")

	res, err := s.db.ExecContext(ctx, `UPDATE runs SET progress = ?, state = ?, message = ?, updated_at = ? WHERE id = ?`,
		p.Percent, p.State, p.Message, formatTime(time.Now()), p.RunID)
	if err != nil {
		metrics.IncError("sqlite_store", "update_progress_error")
		return err
	}
	return expectRow(res, p.RunID)
}

func (s *Store) Delete(ctx context.Context, id string) error {
	metrics.IncDBFileOp(storeName, "delete")

	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE id = ?`, id)
	if err != nil {
		metrics.IncError("sqlite_store", "delete_error")
		return err
	}
	return expectRow(res, id)
}

func (s *Store) CountByStatus(ctx context.Context, status entity.RunStatus) (int, error) {
	metrics.IncDBFileOp(storeName, "count")

	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM runs WHERE status = ?`, status).Scan(&n)
	return n, err
}

// Artifact operations

func (s *Store) SaveFiles(ctx context.Context, runID string, files []*entity.Artifact) error {
	if len(files) == 0 {
		return nil
	}
	metrics.IncDBFileOp(storeName, "put")

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM artifacts WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("clear artifacts: %w", err)
	}
	for _, f := range files {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO artifacts (run_id, path, content, kind, size, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`, runID, f.Path, f.Content, f.Kind, f.Size, formatTime(f.CreatedAt)); err != nil {
			metrics.IncError("sqlite_store", "save_error")
			return fmt.Errorf("insert %s: %w", f.Path, err)
		}
	}
	return tx.Commit()
}

func (s *Store) GetFiles(ctx context.Context, runID string) ([]*entity.Artifact, error) {
	metrics.IncDBFileOp(storeName, "get")

	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, path, content, kind, size, created_at
		FROM artifacts WHERE run_id = ? ORDER BY path
	`, runID)
	if err != nil {
		metrics.IncError("sqlite_store", "get_files_error")
		return nil, err
	}
	defer rows.Close()

	var out []*entity.Artifact
	for rows.Next() {
		var a entity.Artifact
		var created string
		if err := rows.Scan(&a.RunID, &a.Path, &a.Content, &a.Kind, &a.Size, &created); err != nil {
			return nil, err
		}
		a.CreatedAt = parseTime(created)
		out = append(out, &a)
	}
	return out, rows.Err()
}

func (s *Store) ListRuns(ctx context.Context) ([]string, error) {
	metrics.IncDBFileOp(storeName, "list")

	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT run_id FROM artifacts ORDER BY run_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	metrics.IncDBFileOp(storeName, "delete")

	_, err := s.db.ExecContext(ctx, `DELETE FROM artifacts WHERE run_id = ?`, runID)
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (*entity.Run, error) {
	var (
		run                   entity.Run
		features, errs, warns string
		created, updated      string
		finished              sql.NullString
	)
	err := sc.Scan(&run.ID, &run.ProjectName, &run.Description, &run.ProjectType, &features,
		&run.Status, &run.State, &run.Progress, &run.Message, &run.Error, &errs, &warns,
		&run.TokensUsed, &run.FileCount, &created, &updated, &finished)
	if err != nil {
		return nil, err
	}
	for _, col := range []struct {
		name string
		raw  string
		dst  *[]string
	}{
		{"features", features, &run.Features},
		{"errors", errs, &run.Errors},
		{"warnings", warns, &run.Warnings},
	} {
		if err := decodeList(col.raw, col.dst); err != nil {
			metrics.IncError("sqlite_store", "decode_error")
			return nil, fmt.Errorf("run %s: decode %s: %w", run.ID, col.name, err)
		}
	}
	run.CreatedAt = parseTime(created)
	run.UpdatedAt = parseTime(updated)
	if finished.Valid {
		t := parseTime(finished.String)
		run.FinishedAt = &t
	}
	return &run, nil
}

func decodeList(raw string, dst *[]string) error {
	if raw == "" {
		return nil
	}
	return json.Unmarshal([]byte(raw), dst)
}

func runArgs(run *entity.Run) []any {
	var finished any
	if run.FinishedAt != nil {
		finished = formatTime(*run.FinishedAt)
	}
	return []any{
		run.ID, run.ProjectName, run.Description, run.ProjectType, jsonList(run.Features),
		run.Status, run.State, run.Progress, run.Message, run.Error,
		jsonList(run.Errors), jsonList(run.Warnings), run.TokensUsed, run.FileCount,
		formatTime(run.CreatedAt), formatTime(run.UpdatedAt), finished,
	}
}

func jsonList(v []string) string {
	if v == nil {
		return "[]"
	}
	b, _ := json.Marshal(v)
	return string(b)
}

func expectRow(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("run %s: %w", id, entity.ErrRunNotFound)
	}
	return nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}
