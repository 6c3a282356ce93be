package membrane

import (
	"errors"
	"fmt"
)

var (
	ErrRevoked            = errors.New("membrane: representation has been revoked")
	ErrLeakPrevented      = errors.New("membrane: internal object would leak across the boundary")
	ErrInvariantViolation = errors.New("membrane: invariant violation")
	ErrNoRepresentation   = errors.New("membrane: target has no representation in field")
	ErrListenersFrozen    = errors.New("membrane: proxy listeners are frozen")
	ErrListenerNotFound   = errors.New("membrane: proxy listener not found")
	ErrUnknownField       = errors.New("membrane: unknown field")
	ErrNotTracked         = errors.New("membrane: value is not tracked by this membrane")
	ErrListenerAborted    = errors.New("membrane: conversion aborted by proxy listener")
)

// RevokedAccessError reports an operation on a revoked representation
type RevokedAccessError struct {
	Op    string
	Field Field
}

func (e *RevokedAccessError) Error() string {
	return fmt.Sprintf("membrane: %s on revoked representation in field %q", e.Op, e.Field)
}

func (e *RevokedAccessError) Unwrap() error { return ErrRevoked }

// LeakPreventionError reports a refused conversion of an internal object
type LeakPreventionError struct {
	Type   string
	Reason string
}

func (e *LeakPreventionError) Error() string {
	return fmt.Sprintf("membrane: refusing to expose %s: %s", e.Type, e.Reason)
}

func (e *LeakPreventionError) Unwrap() error { return ErrLeakPrevented }

// InvariantViolationError reports a programming defect in a rule, listener
// or object implementation
type InvariantViolationError struct {
	Op     string
	Key    string
	Reason string
}

func (e *InvariantViolationError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("membrane: invariant violation in %s(%s): %s", e.Op, e.Key, e.Reason)
	}
	return fmt.Sprintf("membrane: invariant violation in %s: %s", e.Op, e.Reason)
}

func (e *InvariantViolationError) Unwrap() error { return ErrInvariantViolation }
