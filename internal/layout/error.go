package layout

import "fmt"

// LayoutErrorKind enumerates data layout parse errors.
type LayoutErrorKind uint8

const (
	// LayoutErrEmpty indicates an empty layout string.
	LayoutErrEmpty LayoutErrorKind = iota + 1
	LayoutErrUnknownSpec
	LayoutErrBadNumber
)

// LayoutError represents an error while parsing a data layout string.
type LayoutError struct {
	Kind LayoutErrorKind
	Spec string // offending '-'-separated component
	Err  error  // for LayoutErrBadNumber
}

func (e *LayoutError) Error() string {
	if e == nil {
		return "<nil>"
	}
	switch e.Kind {
	case LayoutErrEmpty:
		return "empty data layout"
	case LayoutErrUnknownSpec:
		return fmt.Sprintf("unknown data layout specification %q", e.Spec)
	case LayoutErrBadNumber:
		if e.Err != nil {
			return fmt.Sprintf("bad number in data layout specification %q: %v", e.Spec, e.Err)
		}
		return fmt.Sprintf("bad number in data layout specification %q", e.Spec)
	default:
		return fmt.Sprintf("layout error kind=%d spec=%q", e.Kind, e.Spec)
	}
}

func (e *LayoutError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
