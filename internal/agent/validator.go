package agent

import (
	"fmt"
	"regexp"
)

// ValidationResult is the outcome of a Validator.Check call.
type ValidationResult struct {
	Passed bool
	Error  string
}

// secretPatterns flags likely credential leakage in tool output before it
// reaches the writer step, ported verbatim (as regexes) from
// original_source/neuroion/core/agent/policies/validator.py's SECRET_PATTERNS.
var secretPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(api[_-]?key|apikey)\s*[:=]\s*['"]?[\w\-]{20,}`),
	regexp.MustCompile(`(?i)(secret|password|passwd|token)\s*[:=]\s*['"]?[\w\-.]{8,}`),
	regexp.MustCompile(`(?i)bearer\s+[\w\-.]{20,}`),
	regexp.MustCompile(`sk-[a-zA-Z0-9]{20,}`),
}

// piiPatterns back an optional, conservative PII check (phone/email),
// disabled by default exactly as the original's check_pii flag defaults to
// False — SPEC_FULL.md wires it as Config.Validator.CheckPII.
var piiPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[\w.+-]+@[\w-]+\.[a-zA-Z]{2,}`),
	regexp.MustCompile(`\+?\d[\d\s().-]{7,}\d`),
}

// Validator checks an Observation for policy violations after Act, before
// the writer step commits it to the user-facing response.
type Validator struct {
	CheckSecrets bool
	CheckPII     bool
}

// NewValidator returns the default validator: secrets on, PII off, matching
// the original's get_validator().
func NewValidator() *Validator {
	return &Validator{CheckSecrets: true, CheckPII: false}
}

// Check validates observation. state is accepted for parity with the
// original's check(state, observation) signature; this package's validator
// does not currently use it.
func (v *Validator) Check(state RunState, observation Observation) ValidationResult {
	if observation.Output != nil {
		text := flattenToText(observation.Output)
		if res := v.checkText(text); !res.Passed {
			return res
		}
	}
	if observation.Message != "" {
		if res := v.checkText(observation.Message); !res.Passed {
			return res
		}
	}
	return ValidationResult{Passed: true}
}

func (v *Validator) checkText(text string) ValidationResult {
	if v.CheckSecrets && containsSecret(text) {
		return ValidationResult{Passed: false, Error: "output may contain secrets; blocked"}
	}
	if v.CheckPII && containsPII(text) {
		return ValidationResult{Passed: false, Error: "output may contain personal information; blocked"}
	}
	return ValidationResult{Passed: true}
}

func containsSecret(text string) bool {
	for _, p := range secretPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

func containsPII(text string) bool {
	for _, p := range piiPatterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// flattenToText recursively joins a tool output map/slice into one string
// for pattern matching, grounded on validator.py's _flatten_to_text.
func flattenToText(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case map[string]any:
		out := ""
		for _, elem := range val {
			if out != "" {
				out += " "
			}
			out += flattenToText(elem)
		}
		return out
	case []any:
		out := ""
		for _, elem := range val {
			if out != "" {
				out += " "
			}
			out += flattenToText(elem)
		}
		return out
	default:
		return fmt.Sprintf("%v", val)
	}
}
