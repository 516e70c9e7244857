// Package errors provides structured error handling for the lattice core.
//
// Lifecycle errors (StaleEntityError) are returned to callers. Style and
// layout failures are reported through the global ErrorHandler and absorbed
// with a fallback so a single malformed rule never stalls a frame.
package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorKind identifies the category of an error.
type ErrorKind int

const (
	// KindUnknown indicates an error of unknown type.
	KindUnknown ErrorKind = iota
	// KindLifecycle indicates misuse of a destroyed or unknown entity.
	KindLifecycle
	// KindStyle indicates a cascade or style sheet problem.
	KindStyle
	// KindLayout indicates a layout engine failure.
	KindLayout
	// KindBinding indicates a binding delivery problem.
	KindBinding
	// KindConfig indicates a configuration error.
	KindConfig
	// KindPanic indicates a recovered panic.
	KindPanic
)

func (k ErrorKind) String() string {
	switch k {
	case KindLifecycle:
		return "lifecycle"
	case KindStyle:
		return "style"
	case KindLayout:
		return "layout"
	case KindBinding:
		return "binding"
	case KindConfig:
		return "config"
	case KindPanic:
		return "panic"
	default:
		return "unknown"
	}
}

var (
	// ErrStaleEntity is matched by every StaleEntityError.
	ErrStaleEntity = stderrors.New("stale entity")
	// ErrBindingStale marks a notification aimed at a destroyed binding or
	// closed source. It is never surfaced to callers.
	ErrBindingStale = stderrors.New("binding stale")
	// ErrCycle is returned when a reparent would make an entity its own ancestor.
	ErrCycle = stderrors.New("entity cannot be moved below itself")
	// ErrRootExists is returned when a second root is requested.
	ErrRootExists = stderrors.New("root entity already exists")
	// ErrNoRoot is returned when an operation needs a tree root and there is none.
	ErrNoRoot = stderrors.New("no root entity")
)

// LatticeError represents a structured error reported by the core.
type LatticeError struct {
	// Op is the operation that failed (e.g., "layout.Bridge.Solve").
	Op string
	// Kind categorizes the error.
	Kind ErrorKind
	// Entity is the formatted entity handle involved, if any.
	Entity string
	// Err is the underlying error.
	Err error
	// StackTrace contains the call stack at the time of the error.
	StackTrace string
	// Timestamp is when the error occurred.
	Timestamp time.Time
}

func (e *LatticeError) Error() string {
	if e.Entity != "" {
		return fmt.Sprintf("%s [%s] entity=%s: %v", e.Op, e.Kind, e.Entity, e.Err)
	}
	return fmt.Sprintf("%s [%s]: %v", e.Op, e.Kind, e.Err)
}

func (e *LatticeError) Unwrap() error {
	return e.Err
}

// StaleEntityError is returned when an operation names an entity that was
// destroyed or never existed.
type StaleEntityError struct {
	// Op is the operation that was attempted.
	Op string
	// Entity is the formatted handle.
	Entity string
}

func (e *StaleEntityError) Error() string {
	return fmt.Sprintf("%s: stale entity %s", e.Op, e.Entity)
}

// Is reports whether target is ErrStaleEntity.
func (e *StaleEntityError) Is(target error) bool {
	return target == ErrStaleEntity
}

// IsStale reports whether err is, or wraps, a StaleEntityError.
func IsStale(err error) bool {
	return stderrors.Is(err, ErrStaleEntity)
}

// CascadeWarning describes a declaration the cascade had to skip.
type CascadeWarning struct {
	// Sheet is the name of the style sheet the rule came from.
	Sheet string
	// Selector is the rule's selector text.
	Selector string
	// Property is the offending property name.
	Property string
	// Value is the raw value text.
	Value string
	// Reason explains why the declaration was skipped.
	Reason string
}

func (w *CascadeWarning) Error() string {
	if w.Value != "" {
		return fmt.Sprintf("%s: %s { %s: %s }: %s", w.Sheet, w.Selector, w.Property, w.Value, w.Reason)
	}
	return fmt.Sprintf("%s: %s { %s }: %s", w.Sheet, w.Selector, w.Property, w.Reason)
}

// LayoutSolveError reports a layout engine that could not satisfy the
// constraints of a subtree.
type LayoutSolveError struct {
	// Root is the formatted layout root handle.
	Root string
	// Err is the engine error.
	Err error
}

func (e *LayoutSolveError) Error() string {
	return fmt.Sprintf("layout solve failed at %s: %v", e.Root, e.Err)
}

func (e *LayoutSolveError) Unwrap() error {
	return e.Err
}

// PanicError represents a recovered panic.
type PanicError struct {
	// Op is the operation that panicked (e.g., "binding.Registry.Flush").
	Op string
	// Value is the value passed to panic().
	Value any
	// StackTrace contains the call stack at the time of the panic.
	StackTrace string
	// Timestamp is when the panic occurred.
	Timestamp time.Time
}

func (e *PanicError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("panic in %s: %v", e.Op, e.Value)
	}
	return fmt.Sprintf("panic: %v", e.Value)
}

// ErrorHandler receives errors reported by the core.
type ErrorHandler interface {
	// HandleError is called when an error is absorbed.
	HandleError(err *LatticeError)
	// HandleWarning is called for non-fatal cascade warnings.
	HandleWarning(w *CascadeWarning)
	// HandlePanic is called when a panic is recovered.
	HandlePanic(err *PanicError)
}
