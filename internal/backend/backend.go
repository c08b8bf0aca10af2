// Package backend calls the named remote procedures that hold legislative
// and campaign-finance data.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

// Caller invokes a named remote procedure with named parameters and returns
// the raw JSON result
type Caller interface {
	Call(ctx context.Context, procedure string, params map[string]any) (json.RawMessage, error)
}

// ErrProcedureNotFound matches any FetchError whose code means the procedure
// does not exist
var ErrProcedureNotFound = errors.New("procedure not found")

// Codes that mean "function does not exist": PostgREST schema cache miss and
// Postgres undefined_function
const (
	CodePostgRESTNotFound = "PGRST202"
	CodeUndefinedFunction = "42883"
)

// FetchError reports a failed backend call or an error payload
type FetchError struct {
	Procedure string
	Code      string
	Message   string
	Err       error
}

func (e *FetchError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if e.Code != "" {
		return fmt.Sprintf("backend %s failed (%s): %s", e.Procedure, e.Code, msg)
	}
	return fmt.Sprintf("backend %s failed: %s", e.Procedure, msg)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrProcedureNotFound) match by code
func (e *FetchError) Is(target error) bool {
	return target == ErrProcedureNotFound && (e.Code == CodePostgRESTNotFound || e.Code == CodeUndefinedFunction)
}

// IsProcedureNotFound reports whether err means the procedure is missing
func IsProcedureNotFound(err error) bool {
	return errors.Is(err, ErrProcedureNotFound)
}

// postgrestError is the error body PostgREST returns
type postgrestError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

// errorPayload detects an error object in a response body
func errorPayload(procedure string, body []byte) error {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return nil
	}
	var pe postgrestError
	if err := json.Unmarshal(trimmed, &pe); err != nil {
		return nil
	}
	if pe.Code == "" || pe.Message == "" {
		return nil
	}
	msg := pe.Message
	if pe.Details != "" {
		msg += ": " + pe.Details
	}
	return &FetchError{Procedure: procedure, Code: pe.Code, Message: msg}
}

// DecodeRows decodes a procedure result into a slice. It accepts a JSON
// array of rows, a single row object, null, and a scalar function that
// returned an array (wrapped once more by the postgres driver).
func DecodeRows[T any](procedure string, raw json.RawMessage) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}

	if trimmed[0] == '{' {
		var one T
		if err := json.Unmarshal(trimmed, &one); err != nil {
			return nil, &FetchError{Procedure: procedure, Message: "decode row", Err: err}
		}
		return []T{one}, nil
	}

	var nested []json.RawMessage
	if err := json.Unmarshal(trimmed, &nested); err != nil {
		return nil, &FetchError{Procedure: procedure, Message: "decode rows", Err: err}
	}
	if len(nested) == 1 {
		inner := bytes.TrimSpace(nested[0])
		if len(inner) > 0 && inner[0] == '[' {
			trimmed = inner
		}
	}

	var rows []T
	if err := json.Unmarshal(trimmed, &rows); err != nil {
		return nil, &FetchError{Procedure: procedure, Message: "decode rows", Err: err}
	}
	return rows, nil
}

// DecodeOne decodes a procedure result that should hold a single row
func DecodeOne[T any](procedure string, raw json.RawMessage) (T, bool, error) {
	var zero T
	rows, err := DecodeRows[T](procedure, raw)
	if err != nil || len(rows) == 0 {
		return zero, false, err
	}
	return rows[0], true, nil
}
