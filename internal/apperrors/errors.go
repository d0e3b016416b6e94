package apperrors

import (
	"errors"
	"fmt"
	"strings"
)

// Kind identifies the class of failure. Callers branch on the kind, never on
// the message text.
type Kind string

const (
	KindEmbeddingGeneration Kind = "EMBEDDING_GENERATION_ERROR"
	KindMatchingEngine      Kind = "MATCHING_ENGINE_ERROR"
	KindExplanationService  Kind = "EXPLANATION_SERVICE_ERROR"
	KindDatabase            Kind = "DATABASE_ERROR"
	KindExternalService     Kind = "EXTERNAL_SERVICE_ERROR"
	KindRateLimit           Kind = "RATE_LIMIT_ERROR"
	KindValidation          Kind = "VALIDATION_ERROR"
	KindResourceNotFound    Kind = "RESOURCE_NOT_FOUND"
	KindConfiguration       Kind = "CONFIGURATION_ERROR"
)

// Error carries a stable machine-readable code plus free-form context for
// logging (text length, service name, retry-after hint, ...).
type Error struct {
	Kind    Kind
	Message string
	Context map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// Is makes errors.Is match on kind, so sentinel-style checks work:
//
//	errors.Is(err, &Error{Kind: KindRateLimit})
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) {
		return false
	}
	return t.Kind == e.Kind
}

func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message, Context: map[string]any{}}
}

func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Context: map[string]any{}, cause: cause}
}

// With attaches a context entry and returns the error for chaining.
func (e *Error) With(key string, value any) *Error {
	if e.Context == nil {
		e.Context = map[string]any{}
	}
	e.Context[key] = value
	return e
}

// KindOf returns the kind of err when it is (or wraps) an *Error, else "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// Transient reports whether err represents a failure worth retrying: provider
// hiccups, rate limits and timeouts. Structural defects (validation, missing
// resources, bad configuration) are deterministic and retrying cannot help.
func Transient(err error) bool {
	switch KindOf(err) {
	case KindExternalService, KindRateLimit, KindEmbeddingGeneration, KindExplanationService:
		return true
	}
	return false
}

// ClassifyProviderError maps a raw provider error into a typed error based on
// the failure text, mirroring the classes the upstream APIs report.
func ClassifyProviderError(err error, service string) *Error {
	if err == nil {
		return nil
	}
	msg := strings.ToLower(err.Error())

	switch {
	case strings.Contains(msg, "rate limit") || strings.Contains(msg, "quota") || strings.Contains(msg, "429"):
		return Wrap(KindRateLimit, service+" rate limit exceeded", err).
			With("service_name", service).
			With("retry_after", 300)
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded"):
		return Wrap(KindExternalService, service+" request timed out", err).
			With("service_name", service).
			With("suggestion", "retry with smaller input")
	case strings.Contains(msg, "unauthenticated") || strings.Contains(msg, "api key") || strings.Contains(msg, "401") || strings.Contains(msg, "403"):
		return Wrap(KindConfiguration, service+" authentication failed", err).
			With("service_name", service)
	default:
		return Wrap(KindExternalService, service+" call failed", err).
			With("service_name", service)
	}
}
