package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

// SQLiteStore persists jobs and runs in a local SQLite file. It is the
// default Store for the single-process, local-first deployment this engine
// targets (DESIGN.md: SQLite over Postgres for all local stores).
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if necessary) a SQLite database at path,
// applies the schema, and runs the one-time legacy-layout migration check.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	db.SetMaxOpenConns(1) // modernc.org/sqlite: one writer at a time

	s := &SQLiteStore{db: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }

func (s *SQLiteStore) migrate(ctx context.Context) error {
	const schema = `
CREATE TABLE IF NOT EXISTS jobs (
	id TEXT PRIMARY KEY,
	owner_id TEXT NOT NULL,
	created_at TEXT NOT NULL,
	schedule_kind TEXT NOT NULL,
	schedule_at TEXT,
	schedule_every_ms INTEGER,
	schedule_cron_expr TEXT,
	schedule_timezone TEXT,
	target TEXT NOT NULL,
	payload_kind TEXT NOT NULL,
	payload_text TEXT,
	payload_message TEXT,
	payload_delivery_json TEXT,
	wake_mode TEXT NOT NULL,
	label TEXT
);
CREATE TABLE IF NOT EXISTS job_runs (
	job_id TEXT NOT NULL,
	ts TEXT NOT NULL,
	status TEXT NOT NULL,
	error TEXT,
	FOREIGN KEY(job_id) REFERENCES jobs(id)
);
CREATE INDEX IF NOT EXISTS idx_job_runs_job_id ON job_runs(job_id, ts);
CREATE TABLE IF NOT EXISTS system_config (
	key TEXT PRIMARY KEY,
	value TEXT NOT NULL
);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// MigratedFlagKey is the system_config key gating the one-time legacy file
// migration (spec §4.3/§6), grounded on storage.py's
// "cron_sqlite_migrated" marker.
const MigratedFlagKey = "cron_sqlite_migrated"

// MarkMigrated records that the legacy-layout migration has run, so a
// caller performing it (outside this package, since the legacy layout is
// an external file format) never repeats it.
func (s *SQLiteStore) MarkMigrated(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO system_config(key, value) VALUES (?, 'true')
		 ON CONFLICT(key) DO UPDATE SET value = 'true'`, MigratedFlagKey)
	return err
}

// AlreadyMigrated reports whether the legacy-layout migration has run.
func (s *SQLiteStore) AlreadyMigrated(ctx context.Context) (bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM system_config WHERE key = ?`, MigratedFlagKey).Scan(&value)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return value == "true", nil
}

func (s *SQLiteStore) AddJob(ctx context.Context, job Job) error {
	return s.upsertJob(ctx, job)
}

func (s *SQLiteStore) UpdateJob(ctx context.Context, job Job) error {
	_, found, err := s.GetJob(ctx, job.OwnerID, job.ID)
	if err != nil {
		return err
	}
	if !found {
		return ErrJobNotFound
	}
	return s.upsertJob(ctx, job)
}

func (s *SQLiteStore) upsertJob(ctx context.Context, job Job) error {
	var deliveryJSON sql.NullString
	if job.Payload.Delivery != nil {
		b, err := json.Marshal(job.Payload.Delivery)
		if err != nil {
			return fmt.Errorf("marshal delivery: %w", err)
		}
		deliveryJSON = sql.NullString{String: string(b), Valid: true}
	}

	var scheduleAt sql.NullString
	if !job.Schedule.At.IsZero() {
		scheduleAt = sql.NullString{String: job.Schedule.At.Format(timeLayout), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (
			id, owner_id, created_at, schedule_kind, schedule_at, schedule_every_ms,
			schedule_cron_expr, schedule_timezone, target, payload_kind, payload_text,
			payload_message, payload_delivery_json, wake_mode, label
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			owner_id=excluded.owner_id, schedule_kind=excluded.schedule_kind,
			schedule_at=excluded.schedule_at, schedule_every_ms=excluded.schedule_every_ms,
			schedule_cron_expr=excluded.schedule_cron_expr, schedule_timezone=excluded.schedule_timezone,
			target=excluded.target, payload_kind=excluded.payload_kind, payload_text=excluded.payload_text,
			payload_message=excluded.payload_message, payload_delivery_json=excluded.payload_delivery_json,
			wake_mode=excluded.wake_mode, label=excluded.label`,
		job.ID, job.OwnerID, job.CreatedAt.Format(timeLayout), string(job.Schedule.Kind),
		scheduleAt, nullableInt(job.Schedule.EveryMS), nullableString(job.Schedule.CalendarExpr),
		nullableString(job.Schedule.Timezone), string(job.Target), string(job.Payload.Kind),
		nullableString(job.Payload.Text), nullableString(job.Payload.Message), deliveryJSON,
		string(job.WakeMode), nullableString(job.Label),
	)
	if err != nil {
		return fmt.Errorf("upsert job: %w", err)
	}
	return nil
}

func nullableString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

func nullableInt(v int64) sql.NullInt64 {
	if v == 0 {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v, Valid: true}
}

func (s *SQLiteStore) RemoveJob(ctx context.Context, ownerID, jobID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM jobs WHERE id = ? AND owner_id = ?`, jobID, ownerID)
	if err != nil {
		return fmt.Errorf("remove job: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrJobNotFound
	}
	return nil
}

const jobSelectColumns = `id, owner_id, created_at, schedule_kind, schedule_at, schedule_every_ms,
	schedule_cron_expr, schedule_timezone, target, payload_kind, payload_text,
	payload_message, payload_delivery_json, wake_mode, label`

func (s *SQLiteStore) scanJob(row *sql.Row) (Job, bool, error) {
	var job Job
	var createdAt, scheduleAt, cronExpr, timezone, payloadText, payloadMessage, deliveryJSON, label sql.NullString
	var everyMS sql.NullInt64
	var scheduleKind, target, payloadKind, wakeMode string

	err := row.Scan(&job.ID, &job.OwnerID, &createdAt, &scheduleKind, &scheduleAt, &everyMS,
		&cronExpr, &timezone, &target, &payloadKind, &payloadText, &payloadMessage,
		&deliveryJSON, &wakeMode, &label)
	if err == sql.ErrNoRows {
		return Job{}, false, nil
	}
	if err != nil {
		return Job{}, false, fmt.Errorf("scan job: %w", err)
	}

	job.CreatedAt, _ = time.Parse(timeLayout, createdAt.String)
	job.Schedule.Kind = ScheduleKind(scheduleKind)
	if scheduleAt.Valid {
		job.Schedule.At, _ = time.Parse(timeLayout, scheduleAt.String)
	}
	job.Schedule.EveryMS = everyMS.Int64
	job.Schedule.CalendarExpr = cronExpr.String
	job.Schedule.Timezone = timezone.String
	job.Target = Target(target)
	job.Payload.Kind = PayloadKind(payloadKind)
	job.Payload.Text = payloadText.String
	job.Payload.Message = payloadMessage.String
	if deliveryJSON.Valid {
		_ = json.Unmarshal([]byte(deliveryJSON.String), &job.Payload.Delivery)
	}
	job.WakeMode = WakeMode(wakeMode)
	job.Label = label.String
	return job, true, nil
}

func (s *SQLiteStore) GetJob(ctx context.Context, ownerID, jobID string) (Job, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobSelectColumns+` FROM jobs WHERE id = ? AND owner_id = ?`, jobID, ownerID)
	return s.scanJob(row)
}

func (s *SQLiteStore) ListJobs(ctx context.Context, ownerID string) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobSelectColumns+` FROM jobs WHERE owner_id = ?`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", err)
	}
	return s.scanJobRows(rows)
}

func (s *SQLiteStore) AllJobs(ctx context.Context) ([]Job, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+jobSelectColumns+` FROM jobs`)
	if err != nil {
		return nil, fmt.Errorf("list all jobs: %w", err)
	}
	return s.scanJobRows(rows)
}

func (s *SQLiteStore) scanJobRows(rows *sql.Rows) ([]Job, error) {
	defer rows.Close()
	var out []Job
	for rows.Next() {
		var job Job
		var createdAt, scheduleAt, cronExpr, timezone, payloadText, payloadMessage, deliveryJSON, label sql.NullString
		var everyMS sql.NullInt64
		var scheduleKind, target, payloadKind, wakeMode string

		if err := rows.Scan(&job.ID, &job.OwnerID, &createdAt, &scheduleKind, &scheduleAt, &everyMS,
			&cronExpr, &timezone, &target, &payloadKind, &payloadText, &payloadMessage,
			&deliveryJSON, &wakeMode, &label); err != nil {
			return nil, fmt.Errorf("scan job row: %w", err)
		}

		job.CreatedAt, _ = time.Parse(timeLayout, createdAt.String)
		job.Schedule.Kind = ScheduleKind(scheduleKind)
		if scheduleAt.Valid {
			job.Schedule.At, _ = time.Parse(timeLayout, scheduleAt.String)
		}
		job.Schedule.EveryMS = everyMS.Int64
		job.Schedule.CalendarExpr = cronExpr.String
		job.Schedule.Timezone = timezone.String
		job.Target = Target(target)
		job.Payload.Kind = PayloadKind(payloadKind)
		job.Payload.Text = payloadText.String
		job.Payload.Message = payloadMessage.String
		if deliveryJSON.Valid {
			_ = json.Unmarshal([]byte(deliveryJSON.String), &job.Payload.Delivery)
		}
		job.WakeMode = WakeMode(wakeMode)
		job.Label = label.String
		out = append(out, job)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) AppendRun(ctx context.Context, run JobRun) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO job_runs (job_id, ts, status, error) VALUES (?, ?, ?, ?)`,
		run.JobID, run.Timestamp.Format(timeLayout), string(run.Status), nullableString(run.Error))
	if err != nil {
		return fmt.Errorf("append run: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListRuns(ctx context.Context, jobID string, limit int) ([]JobRun, error) {
	query := `SELECT job_id, ts, status, error FROM job_runs WHERE job_id = ? ORDER BY ts ASC`
	args := []any{jobID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []JobRun
	for rows.Next() {
		var run JobRun
		var ts, errStr sql.NullString
		var status string
		if err := rows.Scan(&run.JobID, &ts, &status, &errStr); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Timestamp, _ = time.Parse(timeLayout, ts.String)
		run.Status = RunStatus(status)
		run.Error = errStr.String
		out = append(out, run)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) LastRun(ctx context.Context, jobID string) (JobRun, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT job_id, ts, status, error FROM job_runs WHERE job_id = ? ORDER BY ts DESC LIMIT 1`, jobID)
	var run JobRun
	var ts, errStr sql.NullString
	var status string
	if err := row.Scan(&run.JobID, &ts, &status, &errStr); err != nil {
		if err == sql.ErrNoRows {
			return JobRun{}, false, nil
		}
		return JobRun{}, false, fmt.Errorf("scan last run: %w", err)
	}
	run.Timestamp, _ = time.Parse(timeLayout, ts.String)
	run.Status = RunStatus(status)
	run.Error = errStr.String
	return run, true, nil
}

func (s *SQLiteStore) CountCreatedSince(ctx context.Context, ownerID string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM jobs WHERE owner_id = ? AND created_at >= ?`,
		ownerID, since.Format(timeLayout)).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count created since: %w", err)
	}
	return count, nil
}
