package verify

import (
	"fmt"
	"strings"

	"irkit/internal/ir"
)

// Code identifies the reason of a finding. The thousands digit is the check
// category, which is also the reporting order.
type Code uint16

const (
	// Structure: bodies and terminators.
	CodeNilModule         Code = 1000
	CodeNoBlocks          Code = 1001
	CodeEmptyBlock        Code = 1002
	CodeMissingTerminator Code = 1003
	CodeTerminatorNotLast Code = 1004
	CodeBadInstr          Code = 1005
	CodeUnknownAttribute  Code = 1006

	// Ordering: operands defined before use.
	CodeUnknownOperand Code = 2001
	CodeForeignOperand Code = 2002
	CodeUseBeforeDef   Code = 2003

	// Types.
	CodeTypeMismatch Code = 3001
	CodeBadSignature Code = 3002

	// Symbols.
	CodeDuplicateFunction Code = 4001
	CodeDuplicateArgument Code = 4002
)

var codeNames = map[Code]string{
	CodeNilModule:         "nil-module",
	CodeNoBlocks:          "no-blocks",
	CodeEmptyBlock:        "empty-block",
	CodeMissingTerminator: "missing-terminator",
	CodeTerminatorNotLast: "terminator-not-last",
	CodeBadInstr:          "bad-instruction",
	CodeUnknownAttribute:  "unknown-attribute",
	CodeUnknownOperand:    "unknown-operand",
	CodeForeignOperand:    "foreign-operand",
	CodeUseBeforeDef:      "use-before-def",
	CodeTypeMismatch:      "type-mismatch",
	CodeBadSignature:      "bad-signature",
	CodeDuplicateFunction: "duplicate-function",
	CodeDuplicateArgument: "duplicate-argument",
}

func (c Code) String() string {
	if name, ok := codeNames[c]; ok {
		return name
	}
	return fmt.Sprintf("Code(%d)", c)
}

// ID renders the code as V<number>.
func (c Code) ID() string {
	return fmt.Sprintf("V%04d", uint16(c))
}

// Category returns the check category, 1 through 4.
func (c Code) Category() int {
	return int(c) / 1000
}

// EntityKind tells which part of the module a finding points at.
type EntityKind uint8

const (
	EntityModule EntityKind = iota
	EntityFunction
	EntityBlock
	EntityInstr
	EntityArgument
)

// Entity identifies the offending part of the module.
type Entity struct {
	Kind     EntityKind
	Func     ir.FuncID
	FuncName string
	Block    ir.BlockID
	// Index is the instruction position in its block, or the argument
	// position.
	Index int
	Value ir.ValueID
}

func (e Entity) String() string {
	switch e.Kind {
	case EntityFunction:
		return "@" + e.FuncName
	case EntityBlock:
		return fmt.Sprintf("@%s bb%d", e.FuncName, e.Block)
	case EntityInstr:
		return fmt.Sprintf("@%s bb%d #%d (%%v%d)", e.FuncName, e.Block, e.Index, e.Value)
	case EntityArgument:
		return fmt.Sprintf("@%s arg %d", e.FuncName, e.Index)
	default:
		return "module"
	}
}

// Finding is one violated invariant.
type Finding struct {
	Code    Code
	Entity  Entity
	Message string
}

func (f Finding) String() string {
	return fmt.Sprintf("%s %s: %s: %s", f.Code.ID(), f.Code, f.Entity, f.Message)
}

// Result is either Ok (no findings) or the ordered findings of every check.
type Result struct {
	Findings []Finding
	// Generation is the module generation that was verified.
	Generation uint64
}

// Ok reports whether the module passed every check.
func (r Result) Ok() bool {
	return len(r.Findings) == 0
}

// CurrentFor reports whether r is an Ok result for m as it is now.
func (r Result) CurrentFor(m *ir.Module) bool {
	return r.Ok() && m != nil && m.Generation() == r.Generation
}

// Err returns nil for Ok results and a *Error otherwise.
func (r Result) Err() error {
	if r.Ok() {
		return nil
	}
	return &Error{Findings: r.Findings}
}

// Error carries the findings of a failed verification.
type Error struct {
	Findings []Finding
}

// ErrVerificationFailed matches any *Error with errors.Is.
var ErrVerificationFailed = &Error{}

func (e *Error) Error() string {
	if e == nil || len(e.Findings) == 0 {
		return "verification failed"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "verification failed with %d finding(s)", len(e.Findings))
	for _, f := range e.Findings {
		sb.WriteString("\n  ")
		sb.WriteString(f.String())
	}
	return sb.String()
}

// Is matches ErrVerificationFailed.
func (e *Error) Is(target error) bool {
	_, ok := target.(*Error)
	return ok
}
