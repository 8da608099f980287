package ir

import (
	"fmt"
	"strings"

	"fortio.org/safecast"

	"irkit/internal/types"
)

// FuncID identifies a function inside its module.
type FuncID uint32

// NoFuncID marks values that belong to no function (constants).
const NoFuncID FuncID = 0

// BlockID indexes Func.Blocks.
type BlockID int32

// Linkage is the visibility of a function symbol. Values are part of the
// bitcode format.
type Linkage uint8

const (
	LinkageExternal Linkage = iota
	LinkageInternal
	LinkagePrivate
)

func (l Linkage) String() string {
	switch l {
	case LinkageExternal:
		return "external"
	case LinkageInternal:
		return "internal"
	case LinkagePrivate:
		return "private"
	default:
		return fmt.Sprintf("Linkage(%d)", l)
	}
}

// Known reports whether l is a defined linkage.
func (l Linkage) Known() bool {
	return l <= LinkagePrivate
}

// ParseLinkage converts a configuration string to a Linkage.
func ParseLinkage(s string) (Linkage, error) {
	switch strings.ToLower(s) {
	case "", "external":
		return LinkageExternal, nil
	case "internal":
		return LinkageInternal, nil
	case "private":
		return LinkagePrivate, nil
	default:
		return LinkageExternal, fmt.Errorf("invalid linkage: %q (expected: external|internal|private)", s)
	}
}

// CallConv is a calling convention, numbered as in LLVM.
type CallConv uint8

const (
	CallConvC    CallConv = 0
	CallConvFast CallConv = 8
	CallConvCold CallConv = 9
)

func (c CallConv) String() string {
	switch c {
	case CallConvC:
		return "c"
	case CallConvFast:
		return "fast"
	case CallConvCold:
		return "cold"
	default:
		return fmt.Sprintf("CallConv(%d)", c)
	}
}

// Known reports whether c is a supported calling convention.
func (c CallConv) Known() bool {
	switch c {
	case CallConvC, CallConvFast, CallConvCold:
		return true
	}
	return false
}

// ParseCallConv converts a configuration string to a CallConv.
func ParseCallConv(s string) (CallConv, error) {
	switch strings.ToLower(s) {
	case "", "c", "ccc":
		return CallConvC, nil
	case "fast", "fastcc":
		return CallConvFast, nil
	case "cold", "coldcc":
		return CallConvCold, nil
	default:
		return CallConvC, fmt.Errorf("invalid calling convention: %q (expected: c|fast|cold)", s)
	}
}

// Func is a function of a module. A function without blocks is a
// declaration.
type Func struct {
	ID       FuncID
	Name     string
	Sig      types.TypeID
	Linkage  Linkage
	CallConv CallConv

	Args   []ValueID
	Blocks []*Block

	module *Module
}

// Block is a straight-line instruction sequence.
type Block struct {
	ID     BlockID
	Label  string
	Instrs []ValueID
	// Term is the terminator appended through the builder, if any.
	Term ValueID
}

// Terminated reports whether a terminator has been appended.
func (b *Block) Terminated() bool {
	if b == nil {
		return true
	}
	return b.Term != NoValueID
}

// IsDeclaration reports whether fn has no body.
func (fn *Func) IsDeclaration() bool {
	return len(fn.Blocks) == 0
}

// Module returns the owning module.
func (fn *Func) Module() *Module {
	return fn.module
}

// Arg returns the i-th argument.
func (fn *Func) Arg(i int) ValueID {
	if i < 0 || i >= len(fn.Args) {
		return NoValueID
	}
	return fn.Args[i]
}

// SetArgName names the i-th argument. Names must be unique among the
// function's arguments; the empty name is always allowed.
func (fn *Func) SetArgName(i int, name string) error {
	if i < 0 || i >= len(fn.Args) {
		return errorf(ErrKindInvalidOperand, "@%s has no argument %d", fn.Name, i)
	}
	if name != "" {
		for j, other := range fn.Args {
			if j != i && fn.module.values[other].Name == name {
				return errorf(ErrKindDuplicateSymbol, "@%s: argument %%%s already used by argument %d", fn.Name, name, j)
			}
		}
	}
	fn.module.values[fn.Args[i]].Name = name
	fn.module.touch()
	return nil
}

// CreateBlock appends a new empty block. Labels need not be unique.
func (fn *Func) CreateBlock(label string) BlockID {
	n, err := safecast.Conv[int32](len(fn.Blocks))
	if err != nil {
		panic(fmt.Errorf("block table overflow: %w", err))
	}
	id := BlockID(n)
	fn.Blocks = append(fn.Blocks, &Block{ID: id, Label: label})
	fn.module.touch()
	return id
}

// Block returns the block with the given ID.
func (fn *Func) Block(id BlockID) *Block {
	if id < 0 || int(id) >= len(fn.Blocks) {
		return nil
	}
	return fn.Blocks[id]
}
