package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Clock is the service's source of "now", overridable in tests.
type Clock func() time.Time

// Service is the task store's operation surface, grounded on
// original_source/neuroion/core/agent/task_manager.py's module-level
// functions (get_or_create_task/transition/can_make_turn/can_execute_tool/
// is_terminal/clear_active_task_id).
type Service struct {
	store Store
	now   Clock
}

func NewService(store Store, now Clock) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, now: now}
}

// GetOrCreate returns the task named by taskIDFromRequest if it belongs to
// chatID and is still open; otherwise the chat's current active task if
// still open; otherwise a fresh session in NeedsInfo, which also becomes
// chatID's new active task.
func (s *Service) GetOrCreate(ctx context.Context, chatID, taskIDFromRequest string) (*Session, error) {
	if taskIDFromRequest != "" {
		if sess, err := s.openSessionForChat(ctx, chatID, taskIDFromRequest); err != nil {
			return nil, err
		} else if sess != nil {
			return sess, nil
		}
	}

	if activeID, found, err := s.store.ActiveTaskID(ctx, chatID); err != nil {
		return nil, fmt.Errorf("get active task id: %w", err)
	} else if found {
		if sess, err := s.openSessionForChat(ctx, chatID, activeID); err != nil {
			return nil, err
		} else if sess != nil {
			return sess, nil
		}
	}

	now := s.now()
	sess := &Session{
		ID:            uuid.NewString(),
		ChatID:        chatID,
		State:         NeedsInfo,
		CreatedAt:     now,
		LastMessageAt: now,
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("create task session: %w", err)
	}
	if err := s.store.SetActiveTaskID(ctx, chatID, sess.ID); err != nil {
		return nil, fmt.Errorf("set active task id: %w", err)
	}
	return sess, nil
}

// openSessionForChat returns the session for id if it exists, belongs to
// chatID, and is not terminal; nil (not an error) otherwise, so callers can
// fall through to the next lookup strategy.
func (s *Service) openSessionForChat(ctx context.Context, chatID, id string) (*Session, error) {
	sess, found, err := s.store.GetSession(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get task session: %w", err)
	}
	if !found || sess.ChatID != chatID || sess.IsTerminal() {
		return nil, nil
	}
	return sess, nil
}

// TransitionOptions carries the optional side effects of a Transition call.
type TransitionOptions struct {
	IncrementTurn        bool
	IncrementToolAttempt bool
	LastAssistantOutput  *string
	PendingConfirm       map[string]any
}

// Transition moves sess to newState, applying any requested counter
// increments and optional fields, persists the result, and — mirroring
// original_source's "clear active pointer on terminal" rule — clears
// chatID's active-task pointer the moment the new state is terminal, so a
// finished task is never handed back out by GetOrCreate.
func (s *Service) Transition(ctx context.Context, sess *Session, newState State, opts TransitionOptions) error {
	sess.State = newState
	if opts.IncrementTurn {
		sess.TurnCount++
	}
	if opts.IncrementToolAttempt {
		sess.ToolAttemptCount++
	}
	if opts.LastAssistantOutput != nil {
		sess.LastAssistantOutput = *opts.LastAssistantOutput
	}
	if opts.PendingConfirm != nil {
		sess.PendingConfirm = opts.PendingConfirm
	}
	sess.LastMessageAt = s.now()

	if err := s.store.SaveSession(ctx, sess); err != nil {
		return fmt.Errorf("save task session: %w", err)
	}
	if sess.IsTerminal() {
		if err := s.store.ClearActiveTaskID(ctx, sess.ChatID); err != nil {
			return fmt.Errorf("clear active task id: %w", err)
		}
	}
	return nil
}

// ClearActive clears chatID's active-task pointer without touching any
// session, used when a caller abandons a task outside the normal
// terminal-state transition path.
func (s *Service) ClearActive(ctx context.Context, chatID string) error {
	return s.store.ClearActiveTaskID(ctx, chatID)
}
