package ir

import (
	"fmt"

	"irkit/internal/types"
)

// Opcode enumerates instruction kinds. Values are part of the bitcode
// format and must never be renumbered.
type Opcode uint8

const (
	OpInvalid Opcode = 0
	OpAlloca  Opcode = 1
	OpStore   Opcode = 2
	OpLoad    Opcode = 3
	OpAdd     Opcode = 4
	OpSub     Opcode = 5
	OpMul     Opcode = 6
	OpUDiv    Opcode = 7
	OpSDiv    Opcode = 8
	OpURem    Opcode = 9
	OpSRem    Opcode = 10
	OpAnd     Opcode = 11
	OpOr      Opcode = 12
	OpXor     Opcode = 13
	OpShl     Opcode = 14
	OpLShr    Opcode = 15
	OpAShr    Opcode = 16
	OpRet     Opcode = 17
)

var opcodeNames = [...]string{
	OpInvalid: "invalid",
	OpAlloca:  "alloca",
	OpStore:   "store",
	OpLoad:    "load",
	OpAdd:     "add",
	OpSub:     "sub",
	OpMul:     "mul",
	OpUDiv:    "udiv",
	OpSDiv:    "sdiv",
	OpURem:    "urem",
	OpSRem:    "srem",
	OpAnd:     "and",
	OpOr:      "or",
	OpXor:     "xor",
	OpShl:     "shl",
	OpLShr:    "lshr",
	OpAShr:    "ashr",
	OpRet:     "ret",
}

func (op Opcode) String() string {
	if int(op) < len(opcodeNames) {
		return opcodeNames[op]
	}
	return fmt.Sprintf("Opcode(%d)", op)
}

// Known reports whether op is a defined opcode.
func (op Opcode) Known() bool {
	return op != OpInvalid && int(op) < len(opcodeNames)
}

// IsBinary reports whether op is a two-operand integer arithmetic opcode.
func (op Opcode) IsBinary() bool {
	return op >= OpAdd && op <= OpAShr
}

// IsTerminator reports whether op ends a basic block.
func (op Opcode) IsTerminator() bool {
	return op == OpRet
}

// HasAlign reports whether the opcode carries alignment metadata.
func (op Opcode) HasAlign() bool {
	switch op {
	case OpAlloca, OpStore, OpLoad:
		return true
	}
	return false
}

// ParseBinaryOp maps a mnemonic such as "add" to its opcode.
func ParseBinaryOp(s string) (Opcode, bool) {
	for op := OpAdd; op <= OpAShr; op++ {
		if opcodeNames[op] == s {
			return op, true
		}
	}
	return OpInvalid, false
}

// Instr is the payload of an instruction value. Exactly one of the per-opcode
// structs is meaningful, selected by Op.
type Instr struct {
	Op    Opcode
	Block BlockID

	Alloca AllocaInstr
	Store  StoreInstr
	Load   LoadInstr
	Binary BinaryInstr
	Return ReturnInstr
}

// AllocaInstr reserves one stack slot of Elem.
type AllocaInstr struct {
	Elem      types.TypeID
	AddrSpace uint32
	Align     uint32
}

// StoreInstr writes Val through Ptr.
type StoreInstr struct {
	Val   ValueID
	Ptr   ValueID
	Align uint32
}

// LoadInstr reads the pointee of Ptr.
type LoadInstr struct {
	Ptr   ValueID
	Align uint32
}

// BinaryInstr combines two operands of the same integer type.
type BinaryInstr struct {
	LHS ValueID
	RHS ValueID
}

// ReturnInstr leaves the function, optionally with a value.
type ReturnInstr struct {
	HasValue bool
	Value    ValueID
}

// Operands lists the values referenced by the instruction, in encoding order.
func (ins *Instr) Operands() []ValueID {
	if ins == nil {
		return nil
	}
	switch {
	case ins.Op == OpAlloca:
		return nil
	case ins.Op == OpStore:
		return []ValueID{ins.Store.Val, ins.Store.Ptr}
	case ins.Op == OpLoad:
		return []ValueID{ins.Load.Ptr}
	case ins.Op.IsBinary():
		return []ValueID{ins.Binary.LHS, ins.Binary.RHS}
	case ins.Op == OpRet:
		if ins.Return.HasValue {
			return []ValueID{ins.Return.Value}
		}
		return nil
	default:
		return nil
	}
}

// Align returns the alignment metadata, or 0 when the opcode has none.
func (ins *Instr) Align() uint32 {
	if ins == nil {
		return 0
	}
	switch ins.Op {
	case OpAlloca:
		return ins.Alloca.Align
	case OpStore:
		return ins.Store.Align
	case OpLoad:
		return ins.Load.Align
	}
	return 0
}
