package service

import (
	"errors"
	"fmt"
)

// Error kinds. Every error a service returns for a rejected request unwraps to
// one of these, so callers can branch with errors.Is.
var (
	ErrNotFound  = errors.New("not found")
	ErrInvariant = errors.New("invariant violation")
	ErrUpstream  = errors.New("upstream failure")
	ErrEmbedding = errors.New("embedding failure")
)

// RuleError carries a human-readable reason that names the rule or entity
// that failed.
type RuleError struct {
	Kind   error
	Reason string
}

func (e *RuleError) Error() string { return e.Reason }

func (e *RuleError) Unwrap() error { return e.Kind }

func notFound(format string, args ...any) error {
	return &RuleError{Kind: ErrNotFound, Reason: fmt.Sprintf(format, args...)}
}

func invariant(format string, args ...any) error {
	return &RuleError{Kind: ErrInvariant, Reason: fmt.Sprintf(format, args...)}
}
