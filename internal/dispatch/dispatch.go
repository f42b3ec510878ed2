// Package dispatch implements the tool dispatcher: a single uniform call
// surface over the closed tool set, with allow-list enforcement, schema
// validation, reflection-based ambient-identifier injection, and a
// catch-all error envelope. It never panics or returns a bare Go error to
// its caller; every outcome, including a programming bug inside a tool, is
// converted into a Result.
package dispatch

import (
	"context"
	"encoding/json"
	"fmt"
	"reflect"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// MaxToolNameLength and MaxArgsSize bound dispatch inputs the way the
// teacher's tool registry bounds theirs, so a malformed or hostile caller
// cannot wedge the dispatcher with an oversized name or argument blob.
const (
	MaxToolNameLength = 256
	MaxArgsSize       = 10 << 20
)

// Result is the dispatcher's envelope. Exactly one of (Success=true and
// Output non-nil) or (Success=false and Error non-empty) holds.
type Result struct {
	Success bool
	Output  map[string]any
	Error   string
}

func ok(output map[string]any) Result {
	if output == nil {
		output = map[string]any{}
	}
	return Result{Success: true, Output: output}
}

func fail(format string, args ...any) Result {
	return Result{Success: false, Error: fmt.Sprintf(format, args...)}
}

// Context carries the caller's ambient identifiers and optional tool
// allow-list for a single dispatch call. A nil AllowedTools permits every
// registered tool.
type Context struct {
	HouseholdID  string
	UserID       string
	AllowedTools map[string]bool
}

func (c Context) allows(tool string) bool {
	if c.AllowedTools == nil {
		return true
	}
	return c.AllowedTools[tool]
}

// Tool is one entry in the closed tool set. NewParams must return a pointer
// to a zero-value struct; its JSON tags define the accepted argument shape,
// and fields named HouseholdID/UserID (any case, matched by field name) are
// populated from the ambient Context rather than from caller-supplied args.
type Tool interface {
	Name() string
	Description() string
	Schema() *jsonschema.Schema
	NewParams() any
	Execute(ctx context.Context, callerID string, params any) (map[string]any, error)
}

// Registry is the process-wide, lifecycle-managed tool registry: populated
// during startup dependency injection, read-only for the remainder of the
// process (spec §9 "Global state").
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

func (r *Registry) Register(tool Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools[tool.Name()] = tool
}

func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Execute is the dispatcher's single call surface:
// execute(tool_name, args, caller_id, context) -> Result.
func (r *Registry) Execute(ctx context.Context, toolName string, args map[string]any, callerID string, dctx Context) (result Result) {
	defer func() {
		if rec := recover(); rec != nil {
			result = fail("tool %q panicked: %v", toolName, rec)
		}
	}()

	if len(toolName) == 0 || len(toolName) > MaxToolNameLength {
		return fail("invalid tool name")
	}
	tool, found := r.Get(toolName)
	if !found {
		return fail("tool not found: %s", toolName)
	}
	if !dctx.allows(toolName) {
		return fail("tool %q is not permitted in this context", toolName)
	}

	raw, err := json.Marshal(args)
	if err != nil {
		return fail("invalid arguments: %v", err)
	}
	if len(raw) > MaxArgsSize {
		return fail("arguments exceed maximum size")
	}

	if schema := tool.Schema(); schema != nil {
		var decoded any
		if err := json.Unmarshal(raw, &decoded); err != nil {
			return fail("invalid arguments: %v", err)
		}
		if err := schema.Validate(decoded); err != nil {
			return fail("argument validation failed: %v", err)
		}
	}

	params := tool.NewParams()
	if err := json.Unmarshal(raw, params); err != nil {
		return fail("invalid arguments: %v", err)
	}
	injectAmbient(params, dctx.HouseholdID, dctx.UserID)

	output, err := tool.Execute(ctx, callerID, params)
	if err != nil {
		return fail("%v", err)
	}
	return ok(output)
}

// injectAmbient sets string fields named HouseholdID/UserID on params when
// present, mirroring the reflection-based kwarg injection of the reference
// dispatcher: ambient identifiers are supplied to a handler only when its
// declared shape asks for them, never forced onto handlers that don't.
func injectAmbient(params any, householdID, userID string) {
	v := reflect.ValueOf(params)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return
	}
	elem := v.Elem()
	if elem.Kind() != reflect.Struct {
		return
	}
	setIfPresent(elem, "HouseholdID", householdID)
	setIfPresent(elem, "UserID", userID)
}

func setIfPresent(v reflect.Value, fieldName, value string) {
	f := v.FieldByName(fieldName)
	if !f.IsValid() || !f.CanSet() || f.Kind() != reflect.String {
		return
	}
	if value != "" {
		f.SetString(value)
	}
}
