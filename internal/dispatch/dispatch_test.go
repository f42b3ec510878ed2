package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

type echoParams struct {
	Text        string `json:"text"`
	HouseholdID string `json:"-"`
	UserID      string `json:"-"`
}

// echoTool has no schema; it exercises ambient-identifier injection and the
// success envelope.
type echoTool struct{}

func (echoTool) Name() string                 { return "echo" }
func (echoTool) Description() string          { return "echoes text back with ambient identifiers" }
func (echoTool) Schema() *jsonschema.Schema    { return nil }
func (echoTool) NewParams() any                { return &echoParams{} }
func (echoTool) Execute(_ context.Context, callerID string, params any) (map[string]any, error) {
	p := params.(*echoParams)
	return map[string]any{
		"text":         p.Text,
		"household_id": p.HouseholdID,
		"user_id":      p.UserID,
		"caller_id":    callerID,
	}, nil
}

type boomParams struct{}

// boomTool always fails, to exercise the error envelope and the panic
// recovery path.
type boomTool struct{ panics bool }

func (t boomTool) Name() string {
	if t.panics {
		return "kaboom"
	}
	return "boom"
}
func (t boomTool) Description() string       { return "always fails" }
func (t boomTool) Schema() *jsonschema.Schema { return nil }
func (t boomTool) NewParams() any            { return &boomParams{} }
func (t boomTool) Execute(context.Context, string, any) (map[string]any, error) {
	if t.panics {
		panic("kaboom")
	}
	return nil, errors.New("boom failed on purpose")
}

func newTestRegistry() *Registry {
	r := NewRegistry()
	r.Register(echoTool{})
	r.Register(boomTool{})
	r.Register(boomTool{panics: true})
	return r
}

func TestExecuteUnknownToolReturnsEnvelopeNotError(t *testing.T) {
	r := newTestRegistry()
	res := r.Execute(context.Background(), "does-not-exist", nil, "caller-1", Context{})
	if res.Success {
		t.Fatalf("expected failure for unknown tool")
	}
	if res.Error == "" {
		t.Fatalf("expected non-empty error string")
	}
}

func TestExecuteRejectsToolOutsideAllowList(t *testing.T) {
	r := newTestRegistry()
	dctx := Context{AllowedTools: map[string]bool{"other": true}}
	res := r.Execute(context.Background(), "echo", map[string]any{"text": "hi"}, "caller-1", dctx)
	if res.Success {
		t.Fatalf("expected rejection outside allow-list")
	}
}

func TestExecuteInjectsAmbientIdentifiers(t *testing.T) {
	r := newTestRegistry()
	dctx := Context{HouseholdID: "house-1", UserID: "user-1"}
	res := r.Execute(context.Background(), "echo", map[string]any{"text": "hi"}, "caller-1", dctx)
	if !res.Success {
		t.Fatalf("expected success, got error %q", res.Error)
	}
	if res.Output["household_id"] != "house-1" || res.Output["user_id"] != "user-1" {
		t.Fatalf("ambient identifiers not injected: %+v", res.Output)
	}
}

func TestExecuteConvertsToolErrorToEnvelope(t *testing.T) {
	r := newTestRegistry()
	res := r.Execute(context.Background(), "boom", nil, "caller-1", Context{})
	if res.Success || res.Error == "" {
		t.Fatalf("expected a non-empty error envelope, got %+v", res)
	}
}

func TestExecuteRecoversFromPanic(t *testing.T) {
	r := NewRegistry()
	r.Register(boomTool{panics: true})
	res := r.Execute(context.Background(), "kaboom", nil, "caller-1", Context{})
	if res.Success {
		t.Fatalf("expected failure after panic recovery")
	}
}
