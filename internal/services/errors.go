package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool     = errors.New("external tool error")
	ErrValidation       = errors.New("validation error")
	ErrConfiguration    = errors.New("configuration error")
	ErrNotFound         = errors.New("not found")
	ErrTimeout          = errors.New("timeout")
	ErrTransient        = errors.New("transient failure")
	ErrPermanent        = errors.New("permanent provider failure")
	ErrDurationMismatch = errors.New("narration duration mismatch")
	ErrAssembly         = errors.New("assembly failure")
	ErrCapacity         = errors.New("cache capacity exceeded")
)

// FailureKind categorizes a stage error for structured logging and API output.
type FailureKind string

const (
	KindTransient        FailureKind = "transient"
	KindTimeout          FailureKind = "timeout"
	KindExternalTool     FailureKind = "external_tool"
	KindAssembly         FailureKind = "assembly"
	KindPermanent        FailureKind = "permanent"
	KindValidation       FailureKind = "validation"
	KindConfiguration    FailureKind = "configuration"
	KindNotFound         FailureKind = "not_found"
	KindDurationMismatch FailureKind = "duration_mismatch"
	KindCapacity         FailureKind = "capacity"
	KindUnknown          FailureKind = "unknown"
)

// StageError carries the marker, the stage context, and optional
// observability fields alongside the underlying cause.
type StageError struct {
	Marker     error
	Stage      string
	Operation  string
	Message    string
	Code       string
	Hint       string
	DetailPath string
	Err        error
}

func (e *StageError) Error() string {
	detail := buildDetail(e.Stage, e.Operation, e.Message)
	marker := e.Marker
	if marker == nil {
		marker = ErrTransient
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s", marker.Error(), detail, e.Err.Error())
	}
	return fmt.Sprintf("%s: %s", marker.Error(), detail)
}

func (e *StageError) Unwrap() []error {
	out := make([]error, 0, 2)
	if e.Marker != nil {
		out = append(out, e.Marker)
	}
	if e.Err != nil {
		out = append(out, e.Err)
	}
	return out
}

// WithCode attaches a provider or tool specific error code.
func (e *StageError) WithCode(code string) *StageError {
	e.Code = strings.TrimSpace(code)
	return e
}

// WithHint attaches the suggested operator next step.
func (e *StageError) WithHint(hint string) *StageError {
	e.Hint = strings.TrimSpace(hint)
	return e
}

// WithDetailPath points at a file holding oversized diagnostic output.
func (e *StageError) WithDetailPath(path string) *StageError {
	e.DetailPath = strings.TrimSpace(path)
	return e
}

// Wrap builds an error that includes stage context while tagging it with the
// provided marker for later retry classification. The marker should be one of
// the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) *StageError {
	if marker == nil {
		marker = ErrTransient
	}
	return &StageError{
		Marker:    marker,
		Stage:     strings.TrimSpace(stage),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Err:       err,
	}
}

// Retryable reports whether the orchestrator should schedule another attempt
// of the failing stage. Unclassified errors count as retryable; the per-stage
// attempt budget bounds them either way.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrConfiguration),
		errors.Is(err, ErrNotFound),
		errors.Is(err, ErrPermanent),
		errors.Is(err, ErrDurationMismatch),
		errors.Is(err, ErrCapacity):
		return false
	default:
		return true
	}
}

// Kind maps an error to its failure category.
func Kind(err error) FailureKind {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConfiguration):
		return KindConfiguration
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrPermanent):
		return KindPermanent
	case errors.Is(err, ErrDurationMismatch):
		return KindDurationMismatch
	case errors.Is(err, ErrAssembly):
		return KindAssembly
	case errors.Is(err, ErrCapacity):
		return KindCapacity
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrExternalTool):
		return KindExternalTool
	case errors.Is(err, ErrTransient):
		return KindTransient
	default:
		return KindUnknown
	}
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
