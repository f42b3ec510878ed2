package agent

import (
	"context"
	"strings"
)

// ModeClassifier decides whether an unrouted turn is conversational
// (ModeChat) or needs the structured task loop (ModeTask), grounded on
// original_source/neuroion/core/agent/gateway.py's run_chat_mode up-front
// classification call. The model call is a single short, low-temperature
// completion; if the chat client itself errors, a deterministic keyword
// fallback takes over so mode routing never blocks a turn on a model
// outage.
type ModeClassifier struct {
	chat ChatClient
}

// NewModeClassifier builds a classifier around chat. chat may be nil, in
// which case Classify always falls back to the keyword heuristic.
func NewModeClassifier(chat ChatClient) *ModeClassifier {
	return &ModeClassifier{chat: chat}
}

const classifyModeSystem = `Classify the user's message as exactly one word: ` +
	`"task" if it asks the assistant to do something (schedule, remind, look up, run, fetch, create, cancel), ` +
	`or "chat" for everything else. Respond with only that word.`

// Classify returns the Mode an unrouted message should run under.
func (c *ModeClassifier) Classify(ctx context.Context, message string) Mode {
	if c.chat != nil {
		messages := []CompletionMessage{{Role: "user", Content: message}}
		reply, err := c.chat.Chat(ctx, classifyModeSystem, messages, 0, 8)
		if err == nil {
			if mode, ok := parseModeReply(reply); ok {
				return mode
			}
		}
	}
	return classifyModeByKeyword(message)
}

func parseModeReply(reply string) (Mode, bool) {
	normalized := strings.ToLower(strings.TrimSpace(reply))
	switch {
	case strings.Contains(normalized, "task"):
		return ModeTask, true
	case strings.Contains(normalized, "chat"):
		return ModeChat, true
	default:
		return "", false
	}
}

// taskKeywords mirrors gateway.py's deterministic fallback: question-word /
// "remind me" / "schedule" style heuristics, used only when the model
// client errors or is unset.
var taskKeywords = []string{
	"remind", "schedule", "set a", "set an", "look up", "search",
	"find", "create", "run", "execute", "fetch", "check", "cancel",
	"delete", "add", "update",
}

func classifyModeByKeyword(message string) Mode {
	lower := strings.ToLower(message)
	for _, kw := range taskKeywords {
		if strings.Contains(lower, kw) {
			return ModeTask
		}
	}
	return ModeChat
}
