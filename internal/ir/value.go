package ir

import "irkit/internal/types"

// ValueID indexes the module's value arena.
type ValueID uint32

// NoValueID marks the absence of a value (e.g. `ret void`).
const NoValueID ValueID = 0

// ValueKind distinguishes the concrete value variants.
type ValueKind uint8

const (
	// ValueInvalid is the arena sentinel at index 0.
	ValueInvalid ValueKind = iota
	// ValueArgument is a function parameter.
	ValueArgument
	// ValueConst is a typed integer literal.
	ValueConst
	// ValueInstr is an instruction result (void for store and ret).
	ValueInstr
)

func (k ValueKind) String() string {
	switch k {
	case ValueArgument:
		return "argument"
	case ValueConst:
		return "constant"
	case ValueInstr:
		return "instruction"
	default:
		return "invalid"
	}
}

// Value is an entry of the module arena. Fields are exported for readers;
// mutate only through Module, Func and Builder so use lists stay in sync.
type Value struct {
	ID   ValueID
	Kind ValueKind
	Type types.TypeID
	Name string

	// Func owns arguments and instructions; NoFuncID for constants.
	Func FuncID
	// Index is the parameter position for arguments.
	Index int
	// IntValue holds the sign-extended literal for constants.
	IntValue int64
	// Instr is set for ValueInstr only.
	Instr *Instr

	users []ValueID
}

// Users returns the instructions that reference v as an operand, in the
// order they were appended. An instruction using v twice is listed twice.
func (v *Value) Users() []ValueID {
	if v == nil {
		return nil
	}
	return v.users
}

// IsTerminator reports whether v is a block terminator instruction.
func (v *Value) IsTerminator() bool {
	return v != nil && v.Instr != nil && v.Instr.Op.IsTerminator()
}
