package odm

import (
	"errors"
	"fmt"
	"strings"
)

// ErrScratchExhausted is returned when the scratch-key allocator cannot find
// a free name within its attempt budget.
var ErrScratchExhausted = errors.New("scratch key space exhausted")

// ConstraintError reports a unique index collision during commit. It is
// recovered by per-instance rollback and surfaced in the instance's Result,
// never as a terminal failure of the batch.
type ConstraintError struct {
	Namespace string
	Field     string
	Value     string
	OwnerID   string
}

func constraintErr(ns, field, value, owner string) *ConstraintError {
	return &ConstraintError{ns, field, value, owner}
}

func (e *ConstraintError) Error() string {
	return fmt.Sprintf("%s: unique field %s already holds %q (id %s)", e.Namespace, e.Field, e.Value, e.OwnerID)
}

// IDError reports an empty or unusable identifier under a non-composite
// identifier mode. No writes are performed for the offending instance.
type IDError struct {
	Namespace string
	Msg       string
}

func idErrf(ns string, format string, args ...any) *IDError {
	return &IDError{ns, fmt.Sprintf(format, args...)}
}

func (e *IDError) Error() string {
	return e.Namespace + ": " + e.Msg
}

// QueryError reports a query condition referencing a field that has no
// index and no range support. It fails the whole query call.
type QueryError struct {
	Namespace string
	Field     string
	Msg       string
}

func queryErrf(ns, field string, format string, args ...any) *QueryError {
	return &QueryError{ns, field, fmt.Sprintf(format, args...)}
}

func (e *QueryError) Error() string {
	var buf strings.Builder
	buf.WriteString(e.Namespace)
	if e.Field != "" {
		buf.WriteByte('.')
		buf.WriteString(e.Field)
	}
	buf.WriteString(": ")
	buf.WriteString(e.Msg)
	return buf.String()
}

// KeyError reports an operation that structurally requires a key but
// received none. It fails the whole call.
type KeyError struct {
	Op string
}

func keyErr(op string) *KeyError {
	return &KeyError{op}
}

func (e *KeyError) Error() string {
	return e.Op + ": a key is required"
}
