package errors

import (
	"fmt"
	"strings"
)

// Reasons reported by MalformedResponseError.
const (
	ReasonNoFencedBlock = "no fenced block"
	ReasonParseFailure  = "parse failure"
	ReasonMissingKey    = "missing key"
	ReasonInvalid       = "invalid content"
)

// MissingInputError indicates a stage read a shared key nobody wrote.
// It is never retried.
type MissingInputError struct {
	Key    string
	Detail string
}

// Error implements the error interface.
func (e *MissingInputError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("missing input %q: %s", e.Key, e.Detail)
	}
	return fmt.Sprintf("missing input %q", e.Key)
}

// GenerationError indicates the text-generation service failed or was unreachable.
type GenerationError struct {
	Provider   string
	StatusCode int
	Message    string
	Err        error
}

// Error implements the error interface.
func (e *GenerationError) Error() string {
	var b strings.Builder
	b.WriteString("generation failed")
	if e.Provider != "" {
		b.WriteString(" (" + e.Provider + ")")
	}
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, ": HTTP %d", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": " + e.Message)
	} else if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

// Unwrap returns the transport error.
func (e *GenerationError) Unwrap() error {
	return e.Err
}

// MalformedResponseError indicates a model response could not be turned into
// the structure a stage expects.
type MalformedResponseError struct {
	Reason string
	// Key is set for ReasonMissingKey.
	Key string
	// Snippet holds the start of the offending response.
	Snippet string
	Err     error
}

// NewMalformed builds a MalformedResponseError, keeping at most 200 bytes of raw.
func NewMalformed(reason, raw string, err error) *MalformedResponseError {
	return &MalformedResponseError{Reason: reason, Snippet: snippet(raw, 200), Err: err}
}

// MissingKey builds the "missing key" variant.
func MissingKey(key, raw string) *MalformedResponseError {
	return &MalformedResponseError{Reason: ReasonMissingKey, Key: key, Snippet: snippet(raw, 200)}
}

// Error implements the error interface.
func (e *MalformedResponseError) Error() string {
	msg := "malformed response: " + e.Reason
	if e.Key != "" {
		msg += " " + e.Key
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the parser error, if any.
func (e *MalformedResponseError) Unwrap() error {
	return e.Err
}

// ConfigurationError indicates required settings are absent or invalid.
type ConfigurationError struct {
	Setting string
	Message string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	if e.Setting != "" {
		return fmt.Sprintf("configuration error on %s: %s", e.Setting, e.Message)
	}
	return "configuration error: " + e.Message
}

// StudentNotFoundError indicates the student repository has no such record.
type StudentNotFoundError struct {
	ID string
}

// Error implements the error interface.
func (e *StudentNotFoundError) Error() string {
	return fmt.Sprintf("student %q not found", e.ID)
}

func snippet(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	// keep valid UTF-8
	for n > 0 && (s[n]&0xC0) == 0x80 {
		n--
	}
	return s[:n] + "..."
}
