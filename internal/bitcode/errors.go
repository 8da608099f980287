package bitcode

import "fmt"

// DecodeError reports malformed, truncated, out-of-order or unsupported
// input. Offset is the byte position where decoding stopped.
type DecodeError struct {
	Offset int
	Reason string
	Err    error
}

// ErrDecode matches any *DecodeError with errors.Is.
var ErrDecode = &DecodeError{}

func (e *DecodeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("bitcode: decode error at offset %d: %s: %v", e.Offset, e.Reason, e.Err)
	}
	return fmt.Sprintf("bitcode: decode error at offset %d: %s", e.Offset, e.Reason)
}

func (e *DecodeError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches ErrDecode.
func (e *DecodeError) Is(target error) bool {
	_, ok := target.(*DecodeError)
	return ok
}

// IOError reports a failing sink or source. No output file is committed when
// a write fails.
type IOError struct {
	Op   string
	Path string
	Err  error
}

// ErrIO matches any *IOError with errors.Is.
var ErrIO = &IOError{}

func (e *IOError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Path != "" {
		return fmt.Sprintf("bitcode: %s %s: %v", e.Op, e.Path, e.Err)
	}
	return fmt.Sprintf("bitcode: %s: %v", e.Op, e.Err)
}

func (e *IOError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches ErrIO.
func (e *IOError) Is(target error) bool {
	_, ok := target.(*IOError)
	return ok
}

// EncodeError reports a graph the writer cannot index.
type EncodeError struct {
	Func   string
	Reason string
}

// ErrUnencodable matches any *EncodeError with errors.Is.
var ErrUnencodable = &EncodeError{}

func (e *EncodeError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Func != "" {
		return fmt.Sprintf("bitcode: cannot encode @%s: %s", e.Func, e.Reason)
	}
	return "bitcode: cannot encode module: " + e.Reason
}

// Is matches ErrUnencodable.
func (e *EncodeError) Is(target error) bool {
	_, ok := target.(*EncodeError)
	return ok
}
