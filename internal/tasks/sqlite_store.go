package tasks

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const timeLayout = time.RFC3339Nano

// SQLiteStore persists task sessions and the active-task pointer in a local
// SQLite database, replacing original_source's one-JSON-file-per-task plus
// by_chat/<chat_id>.json layout with two tables.
type SQLiteStore struct {
	db *sql.DB
}

func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}
	db.SetMaxOpenConns(1)

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
CREATE TABLE IF NOT EXISTS task_sessions (
	id TEXT PRIMARY KEY,
	chat_id TEXT NOT NULL,
	state TEXT NOT NULL,
	turn_count INTEGER NOT NULL,
	tool_attempt_count INTEGER NOT NULL,
	created_at TEXT NOT NULL,
	last_message_at TEXT NOT NULL,
	pending_confirm_json TEXT,
	meta_json TEXT,
	last_assistant_output TEXT
);
CREATE INDEX IF NOT EXISTS idx_task_sessions_chat_id ON task_sessions(chat_id);
CREATE TABLE IF NOT EXISTS active_tasks (
	chat_id TEXT PRIMARY KEY,
	task_id TEXT NOT NULL
);
`
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) CreateSession(ctx context.Context, sess *Session) error {
	return s.SaveSession(ctx, sess)
}

func (s *SQLiteStore) SaveSession(ctx context.Context, sess *Session) error {
	var pendingJSON, metaJSON sql.NullString
	if sess.PendingConfirm != nil {
		b, err := json.Marshal(sess.PendingConfirm)
		if err != nil {
			return fmt.Errorf("marshal pending_confirm: %w", err)
		}
		pendingJSON = sql.NullString{String: string(b), Valid: true}
	}
	if sess.Meta != nil {
		b, err := json.Marshal(sess.Meta)
		if err != nil {
			return fmt.Errorf("marshal meta: %w", err)
		}
		metaJSON = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_sessions (
			id, chat_id, state, turn_count, tool_attempt_count, created_at,
			last_message_at, pending_confirm_json, meta_json, last_assistant_output
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			state=excluded.state, turn_count=excluded.turn_count,
			tool_attempt_count=excluded.tool_attempt_count,
			last_message_at=excluded.last_message_at,
			pending_confirm_json=excluded.pending_confirm_json,
			meta_json=excluded.meta_json,
			last_assistant_output=excluded.last_assistant_output`,
		sess.ID, sess.ChatID, string(sess.State), sess.TurnCount, sess.ToolAttemptCount,
		sess.CreatedAt.Format(timeLayout), sess.LastMessageAt.Format(timeLayout),
		pendingJSON, metaJSON, nullableString(sess.LastAssistantOutput),
	)
	if err != nil {
		return fmt.Errorf("save task session: %w", err)
	}
	return nil
}

func nullableString(v string) sql.NullString {
	if v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*Session, bool, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, chat_id, state, turn_count, tool_attempt_count, created_at,
			last_message_at, pending_confirm_json, meta_json, last_assistant_output
		FROM task_sessions WHERE id = ?`, id)

	var sess Session
	var createdAt, lastMessageAt string
	var pendingJSON, metaJSON, lastOutput sql.NullString
	var state string

	err := row.Scan(&sess.ID, &sess.ChatID, &state, &sess.TurnCount, &sess.ToolAttemptCount,
		&createdAt, &lastMessageAt, &pendingJSON, &metaJSON, &lastOutput)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("scan task session: %w", err)
	}

	sess.State = State(state)
	sess.CreatedAt, _ = time.Parse(timeLayout, createdAt)
	sess.LastMessageAt, _ = time.Parse(timeLayout, lastMessageAt)
	sess.LastAssistantOutput = lastOutput.String
	if pendingJSON.Valid {
		_ = json.Unmarshal([]byte(pendingJSON.String), &sess.PendingConfirm)
	}
	if metaJSON.Valid {
		_ = json.Unmarshal([]byte(metaJSON.String), &sess.Meta)
	}
	return &sess, true, nil
}

func (s *SQLiteStore) ActiveTaskID(ctx context.Context, chatID string) (string, bool, error) {
	var taskID string
	err := s.db.QueryRowContext(ctx, `SELECT task_id FROM active_tasks WHERE chat_id = ?`, chatID).Scan(&taskID)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("get active task id: %w", err)
	}
	return taskID, true, nil
}

func (s *SQLiteStore) SetActiveTaskID(ctx context.Context, chatID, taskID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO active_tasks (chat_id, task_id) VALUES (?, ?)
		ON CONFLICT(chat_id) DO UPDATE SET task_id = excluded.task_id`, chatID, taskID)
	if err != nil {
		return fmt.Errorf("set active task id: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ClearActiveTaskID(ctx context.Context, chatID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM active_tasks WHERE chat_id = ?`, chatID)
	if err != nil {
		return fmt.Errorf("clear active task id: %w", err)
	}
	return nil
}
