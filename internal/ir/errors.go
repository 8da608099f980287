package ir

import "fmt"

// ErrorKind enumerates construction-time failures.
type ErrorKind uint8

const (
	// ErrKindTypeMismatch reports operand or result type disagreement.
	ErrKindTypeMismatch ErrorKind = iota + 1
	// ErrKindDuplicateSymbol reports a function or argument name collision.
	ErrKindDuplicateSymbol
	// ErrKindBlockAlreadyTerminated reports an append after a terminator.
	ErrKindBlockAlreadyTerminated
	// ErrKindInvalidOperand reports an operand ID that names no value.
	ErrKindInvalidOperand
	// ErrKindInvalidTarget reports an empty data layout or target triple.
	ErrKindInvalidTarget
	// ErrKindNoInsertPoint reports a builder used before SetInsertPoint.
	ErrKindNoInsertPoint
)

func (k ErrorKind) String() string {
	switch k {
	case ErrKindTypeMismatch:
		return "type mismatch"
	case ErrKindDuplicateSymbol:
		return "duplicate symbol"
	case ErrKindBlockAlreadyTerminated:
		return "block already terminated"
	case ErrKindInvalidOperand:
		return "invalid operand"
	case ErrKindInvalidTarget:
		return "invalid target description"
	case ErrKindNoInsertPoint:
		return "no insert point"
	default:
		return fmt.Sprintf("ErrorKind(%d)", k)
	}
}

// Error is returned by every construction call that would violate a graph
// invariant. Match kinds with errors.Is against the Err* sentinels.
type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Msg == "" {
		return e.Kind.String()
	}
	return e.Kind.String() + ": " + e.Msg
}

// Is matches any *Error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e != nil && t.Kind == e.Kind
}

var (
	ErrTypeMismatch           = &Error{Kind: ErrKindTypeMismatch}
	ErrDuplicateSymbol        = &Error{Kind: ErrKindDuplicateSymbol}
	ErrBlockAlreadyTerminated = &Error{Kind: ErrKindBlockAlreadyTerminated}
	ErrInvalidOperand         = &Error{Kind: ErrKindInvalidOperand}
	ErrInvalidTarget          = &Error{Kind: ErrKindInvalidTarget}
	ErrNoInsertPoint          = &Error{Kind: ErrKindNoInsertPoint}
)

func errorf(kind ErrorKind, format string, args ...any) error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}
