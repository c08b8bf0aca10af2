// Package repair recovers structured data from near-JSON model output.
//
// Parse tries a fixed sequence of pure string transforms against the strict
// encoding/json parser and stops at the first candidate that decodes to an
// object or array. Every candidate is also retried after delimiter
// balancing. Nothing is ever evaluated as code.
package repair

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Stage names the transform that produced a successful parse
type Stage string

const (
	StageRaw            Stage = "raw"
	StageFenced         Stage = "fenced"
	StageCommonIssues   Stage = "common_issues"
	StageComments       Stage = "strip_comments"
	StageTrailingCommas Stage = "trailing_commas"
	StageMissingCommas  Stage = "missing_commas"
	StageBareKeys       Stage = "bare_keys"
	StageLiterals       Stage = "js_literals"
	StageFailed         Stage = "failed"
)

// MaxFailureText bounds the original text carried by a Failure
const MaxFailureText = 500

// SentinelError is the "error" value of a failure object
const SentinelError = "parse_failed"

type transform struct {
	stage Stage
	apply func(string) string
}

// transforms run in order on the output of the previous one
var transforms = []transform{
	{StageCommonIssues, fixCommonIssues},
	{StageComments, stripComments},
	{StageTrailingCommas, removeTrailingCommas},
	{StageMissingCommas, insertMissingCommas},
	{StageBareKeys, quoteBareKeys},
	{StageLiterals, normalizeLiterals},
}

// Result is the outcome of Parse. Exactly one of Value and Failure is set.
type Result struct {
	Value    any
	Stage    Stage
	Balanced bool // The balancer had to close the document
	Failure  *Failure
}

// OK reports whether a value was recovered
func (r Result) OK() bool {
	return r.Failure == nil
}

// Object returns the recovered value as an object. A failed parse yields the
// sentinel object and false.
func (r Result) Object() (map[string]any, bool) {
	if r.Failure != nil {
		return r.Failure.Object(), false
	}
	obj, ok := r.Value.(map[string]any)
	return obj, ok
}

// Failure describes text that could not be recovered
type Failure struct {
	Text   string // Original text, truncated
	Reason string // Last strict-parser error
}

// Error implements error
func (f *Failure) Error() string {
	return "unparseable model output: " + f.Reason
}

// Object returns the sentinel error object
func (f *Failure) Object() map[string]any {
	return map[string]any{
		"error":    SentinelError,
		"reason":   f.Reason,
		"raw_text": f.Text,
	}
}

// IsSentinel reports whether v is a sentinel error object
func IsSentinel(v any) bool {
	obj, ok := v.(map[string]any)
	if !ok {
		return false
	}
	marker, _ := obj["error"].(string)
	_, hasText := obj["raw_text"]
	return marker == SentinelError && hasText
}

// Parse returns a best-effort structured value for text. It never panics.
func Parse(text string) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res = failed(text, fmt.Sprintf("recovered from panic: %v", r))
		}
	}()

	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return failed(text, "empty input")
	}

	var lastErr error
	try := func(stage Stage, candidate string) bool {
		v, err := strict(candidate)
		if err == nil {
			res = Result{Value: v, Stage: stage}
			return true
		}
		lastErr = err

		balanced := balance(candidate)
		if balanced == candidate {
			return false
		}
		if v, err := strict(balanced); err == nil {
			res = Result{Value: v, Stage: stage, Balanced: true}
			return true
		}
		return false
	}

	if try(StageRaw, trimmed) {
		return res
	}

	candidate := extractFenced(trimmed)
	if try(StageFenced, candidate) {
		return res
	}

	for _, tr := range transforms {
		candidate = tr.apply(candidate)
		if try(tr.stage, candidate) {
			return res
		}
	}

	reason := "no candidate parsed"
	if lastErr != nil {
		reason = lastErr.Error()
	}
	return failed(text, reason)
}

// Decode parses text and decodes the recovered value into v. A failed parse
// returns the *Failure as the error.
func Decode(text string, v any) (Result, error) {
	res := Parse(text)
	if res.Failure != nil {
		return res, res.Failure
	}
	raw, err := json.Marshal(res.Value)
	if err != nil {
		return res, fmt.Errorf("re-encode recovered value: %w", err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return res, fmt.Errorf("decode recovered value: %w", err)
	}
	return res, nil
}

var errNotStructured = errors.New("top-level value is not an object or array")

// strict decodes with encoding/json and only accepts objects and arrays
func strict(s string) (any, error) {
	var v any
	if err := json.Unmarshal([]byte(s), &v); err != nil {
		return nil, err
	}
	switch v.(type) {
	case map[string]any, []any:
		return v, nil
	}
	return nil, errNotStructured
}

func failed(text, reason string) Result {
	return Result{
		Stage: StageFailed,
		Failure: &Failure{
			Text:   truncate(text, MaxFailureText),
			Reason: reason,
		},
	}
}

// truncate cuts s to at most n bytes without splitting a rune
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}
