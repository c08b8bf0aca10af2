package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
	"google.golang.org/genai"
)

// ErrEmptyResponse is returned when a provider answers with no content
var ErrEmptyResponse = errors.New("empty model response")

// ErrorKind classifies provider failures for user-facing messages
type ErrorKind string

const (
	KindEmpty     ErrorKind = "empty_response"
	KindRegion    ErrorKind = "region_restricted"
	KindQuota     ErrorKind = "quota_exceeded"
	KindAuth      ErrorKind = "invalid_credential"
	KindTimeout   ErrorKind = "timeout"
	KindCancelled ErrorKind = "cancelled"
	KindOther     ErrorKind = "other"
)

// ModelError is a provider failure translated into a known kind
type ModelError struct {
	Kind     ErrorKind
	Provider string
	Phase    string
	Err      error
}

func (e *ModelError) Error() string {
	if e.Phase != "" {
		return fmt.Sprintf("%s model call failed during %s (%s): %v", e.Provider, e.Phase, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s model call failed (%s): %v", e.Provider, e.Kind, e.Err)
}

func (e *ModelError) Unwrap() error {
	return e.Err
}

// UserMessage returns a message suitable for showing to the operator
func (e *ModelError) UserMessage() string {
	switch e.Kind {
	case KindEmpty:
		return "The model returned an empty response. Try again or reduce the amount of evidence."
	case KindRegion:
		return fmt.Sprintf("The %s API is not available in this region. Use a proxy or a different provider.", e.Provider)
	case KindQuota:
		return fmt.Sprintf("The %s API quota is exhausted. Wait for the quota to reset or use another key.", e.Provider)
	case KindAuth:
		return fmt.Sprintf("The %s API key was rejected. Check llm.api_key or DONORTRACE_LLM_API_KEY.", e.Provider)
	case KindTimeout:
		return "The model call timed out."
	case KindCancelled:
		return "The model call was cancelled."
	default:
		return fmt.Sprintf("The %s model call failed: %v", e.Provider, e.Err)
	}
}

// APIStatusError is an HTTP-level failure from a provider without its
// own SDK error type.
type APIStatusError struct {
	StatusCode int
	Type       string
	Message    string
}

func (e *APIStatusError) Error() string {
	if e.Type != "" {
		return fmt.Sprintf("API error (%d): %s - %s", e.StatusCode, e.Type, e.Message)
	}
	return fmt.Sprintf("API error (%d): %s", e.StatusCode, e.Message)
}

// Classify wraps err in a ModelError. An existing ModelError is returned
// unchanged.
func Classify(provider, phase string, err error) *ModelError {
	if err == nil {
		return nil
	}

	var me *ModelError
	if errors.As(err, &me) {
		return me
	}

	return &ModelError{
		Kind:     kindOf(err),
		Provider: provider,
		Phase:    phase,
		Err:      err,
	}
}

func kindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, ErrEmptyResponse):
		return KindEmpty
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.Is(err, context.Canceled):
		return KindCancelled
	}

	status, text := statusOf(err)
	return kindFor(status, strings.ToLower(text))
}

// statusOf extracts the HTTP status and message from provider errors
func statusOf(err error) (int, string) {
	var gv genai.APIError
	if errors.As(err, &gv) {
		return gv.Code, gv.Status + " " + gv.Message
	}
	var gp *genai.APIError
	if errors.As(err, &gp) {
		return gp.Code, gp.Status + " " + gp.Message
	}

	var oa *openai.APIError
	if errors.As(err, &oa) {
		code := ""
		if s, ok := oa.Code.(string); ok {
			code = s
		}
		return oa.HTTPStatusCode, code + " " + oa.Type + " " + oa.Message
	}
	var or *openai.RequestError
	if errors.As(err, &or) {
		return or.HTTPStatusCode, or.Error()
	}

	var st *APIStatusError
	if errors.As(err, &st) {
		return st.StatusCode, st.Type + " " + st.Message
	}

	return 0, err.Error()
}

func kindFor(status int, text string) ErrorKind {
	switch {
	case containsAny(text, "location is not supported", "unsupported_country", "not available in your country",
		"unsupported_country_region_territory", "region is not supported", "not supported in your region", "territory not supported"):
		return KindRegion
	case status == http.StatusTooManyRequests,
		containsAny(text, "resource_exhausted", "quota", "insufficient_quota", "rate_limit", "rate limit"):
		return KindQuota
	case status == http.StatusUnauthorized,
		containsAny(text, "api key not valid", "api_key_invalid", "invalid_api_key", "invalid x-api-key", "authentication_error", "incorrect api key"):
		return KindAuth
	case status == http.StatusForbidden, containsAny(text, "permission_denied", "permission_error"):
		return KindAuth
	case status == http.StatusGatewayTimeout, status == http.StatusRequestTimeout:
		return KindTimeout
	}
	return KindOther
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
