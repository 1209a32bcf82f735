package jobs

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore persists jobs in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// OpenSQLite initializes or connects to the job database at path.
func OpenSQLite(path string) (*SQLiteStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("open job store: empty path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("ensure store directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &SQLiteStore{db: db, path: path, now: time.Now}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*ConceptJob, error) {
	row := s.db.QueryRowContext(ensureContext(ctx),
		"SELECT "+jobColumns+" FROM concept_jobs WHERE id = ?", strings.TrimSpace(id))
	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get job: %w", err)
	}
	return job, nil
}

// jobRecord holds the encoded column values shared by Put and PutIfStatus.
type jobRecord struct {
	scenes, log, clips string
}

func encodeRecord(job *ConceptJob) (jobRecord, error) {
	var rec jobRecord
	var err error
	if rec.scenes, err = encodeJSON(job.Scenes); err != nil {
		return rec, fmt.Errorf("encode scenes: %w", err)
	}
	if rec.log, err = encodeJSON(job.Log); err != nil {
		return rec, fmt.Errorf("encode log: %w", err)
	}
	if rec.clips, err = encodeJSON(job.ClipPaths); err != nil {
		return rec, fmt.Errorf("encode clip paths: %w", err)
	}
	return rec, nil
}

// Put inserts job or updates everything but its status. An update is skipped
// with ErrStatusChanged when the stored status differs from job.Status.
func (s *SQLiteStore) Put(ctx context.Context, job *ConceptJob) error {
	if job == nil || strings.TrimSpace(job.ID) == "" {
		return errMissingID
	}
	now := s.now().UTC()
	if job.CreatedAt.IsZero() {
		job.CreatedAt = now
	}
	job.UpdatedAt = now
	rec, err := encodeRecord(job)
	if err != nil {
		return err
	}

	res, err := s.execWithRetry(ctx, `INSERT INTO concept_jobs (`+jobColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner = excluded.owner,
			concept_name = excluded.concept_name,
			concept_description = excluded.concept_description,
			output_dir = excluded.output_dir,
			quality = excluded.quality,
			scenes_json = excluded.scenes_json,
			log_json = excluded.log_json,
			clip_paths_json = excluded.clip_paths_json,
			final_video_path = excluded.final_video_path,
			failure_reason = excluded.failure_reason,
			error_message = excluded.error_message,
			updated_at = excluded.updated_at,
			last_heartbeat = COALESCE(excluded.last_heartbeat, concept_jobs.last_heartbeat)
		WHERE concept_jobs.status = excluded.status`,
		job.ID,
		job.Owner,
		job.ConceptName,
		job.ConceptDescription,
		nullableString(job.OutputDir),
		nullableString(job.Quality),
		string(job.Status),
		rec.scenes,
		rec.log,
		rec.clips,
		nullableString(job.FinalVideoPath),
		nullableString(job.FailureReason),
		nullableString(job.ErrorMessage),
		job.CreatedAt.UTC().Format(timestampLayout),
		job.UpdatedAt.Format(timestampLayout),
		nullableTime(job.LastHeartbeat),
	)
	if err != nil {
		return fmt.Errorf("put job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("put job: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("put job %s: %w", job.ID, ErrStatusChanged)
	}
	return nil
}

func (s *SQLiteStore) PutIfStatus(ctx context.Context, job *ConceptJob, expected Status) (bool, error) {
	if job == nil || strings.TrimSpace(job.ID) == "" {
		return false, errMissingID
	}
	rec, err := encodeRecord(job)
	if err != nil {
		return false, err
	}
	now := s.now().UTC()
	res, err := s.execWithRetry(ctx, `UPDATE concept_jobs SET
			status = ?,
			scenes_json = ?,
			log_json = ?,
			clip_paths_json = ?,
			final_video_path = ?,
			failure_reason = ?,
			error_message = ?,
			updated_at = ?,
			last_heartbeat = COALESCE(?, last_heartbeat)
		WHERE id = ? AND status = ?`,
		string(job.Status),
		rec.scenes,
		rec.log,
		rec.clips,
		nullableString(job.FinalVideoPath),
		nullableString(job.FailureReason),
		nullableString(job.ErrorMessage),
		now.Format(timestampLayout),
		nullableTime(job.LastHeartbeat),
		job.ID,
		string(expected),
	)
	if err != nil {
		return false, fmt.Errorf("put job if %s: %w", expected, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("put job if %s: %w", expected, err)
	}
	if affected == 1 {
		job.UpdatedAt = now
		return true, nil
	}
	if _, err := s.Get(ctx, job.ID); err != nil {
		return false, err
	}
	return false, nil
}

func (s *SQLiteStore) CompareAndSwapStatus(ctx context.Context, id string, from, to Status) (bool, error) {
	id = strings.TrimSpace(id)
	res, err := s.execWithRetry(ctx,
		"UPDATE concept_jobs SET status = ?, updated_at = ? WHERE id = ? AND status = ?",
		string(to), s.now().UTC().Format(timestampLayout), id, string(from))
	if err != nil {
		return false, fmt.Errorf("swap job status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("swap job status: %w", err)
	}
	if affected == 1 {
		return true, nil
	}
	if _, err := s.Get(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (s *SQLiteStore) List(ctx context.Context, owner string) ([]*ConceptJob, error) {
	query := "SELECT " + jobColumns + " FROM concept_jobs"
	var args []any
	if owner = strings.TrimSpace(owner); owner != "" {
		query += " WHERE owner = ?"
		args = append(args, owner)
	}
	query += " ORDER BY created_at DESC, id DESC"

	rows, err := s.db.QueryContext(ensureContext(ctx), query, args...)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	defer rows.Close()

	var out []*ConceptJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("scan job: %w", err)
		}
		out = append(out, job)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) UpdateHeartbeat(ctx context.Context, id string) error {
	res, err := s.execWithRetry(ctx,
		"UPDATE concept_jobs SET last_heartbeat = ? WHERE id = ?",
		s.now().UTC().Format(timestampLayout), strings.TrimSpace(id))
	if err != nil {
		return fmt.Errorf("update heartbeat: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return ErrNotFound
	}
	return nil
}

// FailStale fails every stale generating job in one statement. The log entry
// is appended in SQL so entries written by a still-running process survive.
func (s *SQLiteStore) FailStale(ctx context.Context, cutoff time.Time, message string) (int64, error) {
	now := s.now().UTC()
	entry, err := encodeJSON(LogEntry{Time: now, Message: message})
	if err != nil {
		return 0, fmt.Errorf("encode log entry: %w", err)
	}
	res, err := s.execWithRetry(ctx, `UPDATE concept_jobs SET
			status = ?,
			failure_reason = ?,
			error_message = ?,
			final_video_path = NULL,
			log_json = CASE
				WHEN json_type(log_json) = 'array' THEN json_insert(log_json, '$[#]', json(?))
				ELSE json_array(json(?))
			END,
			updated_at = ?
		WHERE status = ? AND COALESCE(last_heartbeat, updated_at) < ?`,
		string(StatusFailed),
		ReasonStale,
		message,
		entry,
		entry,
		now.Format(timestampLayout),
		string(StatusGenerating),
		cutoff.UTC().Format(timestampLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("fail stale jobs: %w", err)
	}
	count, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("fail stale jobs: %w", err)
	}
	return count, nil
}

func ensureContext(ctx context.Context) context.Context {
	if ctx != nil {
		return ctx
	}
	return context.Background()
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}

func (s *SQLiteStore) execWithRetry(ctx context.Context, query string, args ...any) (sql.Result, error) {
	ctx = ensureContext(ctx)
	var (
		res     sql.Result
		execErr error
	)
	if err := retryOnBusy(ctx, func() error {
		res, execErr = s.db.ExecContext(ctx, query, args...)
		return execErr
	}); err != nil {
		return nil, err
	}
	return res, nil
}
