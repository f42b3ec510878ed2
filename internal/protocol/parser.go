// Package protocol implements the structured-output parser: it turns
// free-form model output into a (kind, payload) pair, with JSON repair and
// an anti-loop heuristic for models that repeat intention without ever
// emitting a tool call.
package protocol

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/yosuke-furukawa/json5/encoding/json5"
)

// Kind tags the parsed decision.
type Kind string

const (
	KindToolCall Kind = "tool_call"
	KindNeedInfo Kind = "need_info"
	KindFinal    Kind = "final"
	KindInvalid  Kind = "invalid"
)

// ToolCall is the payload for KindToolCall.
type ToolCall struct {
	Tool string
	Args map[string]any
}

// NeedInfo is the payload for KindNeedInfo.
type NeedInfo struct {
	Questions []string
}

// Final is the payload for KindFinal.
type Final struct {
	Message string
}

// Result is the parser's output: exactly one of ToolCall/NeedInfo/Final is
// populated, selected by Kind.
type Result struct {
	Kind     Kind
	ToolCall ToolCall
	NeedInfo NeedInfo
	Final    Final
}

var fencedJSONBlock = regexp.MustCompile("(?is)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// extractJSONObject returns the first JSON-object-shaped substring of text,
// in order of preference: the whole string, the first fenced ```json
// block, then the first balanced {...} span. Grounded on
// tool_protocol.py's _extract_json_object.
func extractJSONObject(text string) string {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "{") && strings.HasSuffix(text, "}") {
		return text
	}
	if m := fencedJSONBlock.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1])
	}
	start := strings.IndexByte(text, '{')
	if start == -1 {
		return ""
	}
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1]
			}
		}
	}
	return ""
}

// decodeJSONObject parses candidate as a JSON object, trying a strict
// encoding/json decode first and falling back to json5's tolerant grammar
// (unquoted keys, trailing commas, single quotes) for near-miss model
// output before giving up.
func decodeJSONObject(candidate string) (map[string]any, bool) {
	if candidate == "" {
		return nil, false
	}
	var data map[string]any
	if err := json.Unmarshal([]byte(candidate), &data); err == nil {
		return data, true
	}
	if err := json5.Unmarshal([]byte(candidate), &data); err == nil {
		return data, true
	}
	return nil, false
}

// parseJSON tries the whole trimmed string first, then the extracted
// object, matching the reference parser's two-candidate ordering.
func parseJSON(raw string) (map[string]any, bool) {
	trimmed := strings.TrimSpace(raw)
	if data, ok := decodeJSONObject(trimmed); ok {
		return data, true
	}
	return decodeJSONObject(extractJSONObject(raw))
}

// defaultIntentionPhrases are the language-specific "imminent intent"
// signals used by the anti-loop heuristic. Per the spec's design notes this
// list is configuration, not code; DefaultPhrases is the shipped default
// and Parser.IntentionPhrases may override it.
var defaultIntentionPhrases = []string{
	"ik zal", "i will", "i'll", "i am going to", "let me",
	"i'm going to", "we zullen", "we will",
}

// DefaultPhrases returns a copy of the built-in intention-phrase list.
func DefaultPhrases() []string {
	out := make([]string, len(defaultIntentionPhrases))
	copy(out, defaultIntentionPhrases)
	return out
}

// Parser extracts (kind, payload) pairs from model output. The zero value
// uses DefaultPhrases(); set IntentionPhrases to override.
type Parser struct {
	IntentionPhrases []string
}

func (p Parser) phrases() []string {
	if len(p.IntentionPhrases) > 0 {
		return p.IntentionPhrases
	}
	return defaultIntentionPhrases
}

// looksLikeIntention reports whether text reads as an unfulfilled promise
// to act rather than a JSON decision, length-bounded to avoid false
// positives on long free-form replies.
func (p Parser) looksLikeIntention(text string) bool {
	if text == "" || len([]rune(text)) > 2000 {
		return false
	}
	lower := strings.ToLower(strings.TrimSpace(text))
	for _, kw := range p.phrases() {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// Parse extracts a (kind, payload) decision from raw model output.
// lastAssistantOutput is the previous turn's raw output, used only for the
// anti-loop heuristic; allowedTools, when non-nil, rejects tool_call
// decisions naming a tool outside the set.
func (p Parser) Parse(raw string, lastAssistantOutput string, allowedTools map[string]bool) Result {
	if data, ok := parseJSON(raw); ok {
		if result, matched := p.fromObject(data, allowedTools); matched {
			return result
		}
	}

	if lastAssistantOutput != "" && p.looksLikeIntention(lastAssistantOutput) && p.looksLikeIntention(raw) {
		return Result{
			Kind: KindNeedInfo,
			NeedInfo: NeedInfo{Questions: []string{
				`Please respond with only a JSON object: {"type":"tool_call","tool":"...","args":{...}} or {"type":"final","message":"..."}. No other text.`,
			}},
		}
	}

	return Result{Kind: KindInvalid}
}

func (p Parser) fromObject(data map[string]any, allowedTools map[string]bool) (Result, bool) {
	kind, _ := data["type"].(string)
	kind = strings.ToLower(strings.TrimSpace(kind))

	switch kind {
	case "tool_call":
		tool, _ := data["tool"].(string)
		tool = strings.TrimSpace(tool)
		args, isObject := data["args"].(map[string]any)
		if tool == "" || !isObject {
			return Result{}, false
		}
		if allowedTools != nil && !allowedTools[tool] {
			return Result{Kind: KindInvalid}, true
		}
		return Result{Kind: KindToolCall, ToolCall: ToolCall{Tool: tool, Args: args}}, true

	case "need_info":
		return Result{Kind: KindNeedInfo, NeedInfo: NeedInfo{Questions: coerceStringList(data["questions"])}}, true

	case "final":
		msg, _ := data["message"].(string)
		return Result{Kind: KindFinal, Final: Final{Message: msg}}, true

	default:
		return Result{}, false
	}
}

// coerceStringList matches tool_protocol.py's questions coercion: a list
// becomes a string list, a bare scalar becomes a singleton, and a missing
// value becomes an empty list.
func coerceStringList(v any) []string {
	switch val := v.(type) {
	case nil:
		return []string{}
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			out = append(out, toString(item))
		}
		return out
	default:
		return []string{toString(val)}
	}
}

func toString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(b)
}
