package tasks

import "context"

// Store persists task Sessions plus a per-chat "active task" pointer, the
// two record kinds original_source's task_manager.py keeps as flat files
// (one per task, one per chat under by_chat/): here, two tables.
type Store interface {
	CreateSession(ctx context.Context, s *Session) error
	GetSession(ctx context.Context, id string) (*Session, bool, error)
	SaveSession(ctx context.Context, s *Session) error

	// ActiveTaskID returns the active (non-terminal) task id for chatID, if
	// any record exists for it — the caller still must check the
	// referenced session isn't terminal before treating it as active.
	ActiveTaskID(ctx context.Context, chatID string) (string, bool, error)
	SetActiveTaskID(ctx context.Context, chatID, taskID string) error
	ClearActiveTaskID(ctx context.Context, chatID string) error
}
