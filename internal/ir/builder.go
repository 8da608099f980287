package ir

import "irkit/internal/types"

// Builder appends instructions at the end of an insertion block. Every
// constructor either appends exactly one instruction or returns an error and
// leaves the module untouched.
type Builder struct {
	m     *Module
	fn    *Func
	block BlockID
}

// NewBuilder returns a builder for m with no insertion point.
func NewBuilder(m *Module) *Builder {
	return &Builder{m: m, block: -1}
}

// Module returns the module being built.
func (b *Builder) Module() *Module {
	return b.m
}

// SetInsertPoint directs subsequent instructions to the end of block in fn.
func (b *Builder) SetInsertPoint(fn *Func, block BlockID) {
	b.fn = fn
	b.block = block
}

// InsertBlock returns the current insertion block, or nil.
func (b *Builder) InsertBlock() *Block {
	if b.fn == nil {
		return nil
	}
	return b.fn.Block(b.block)
}

// Alloca reserves a stack slot of elem in addrSpace. The result is a pointer
// to elem in that address space. align 0 leaves alignment unspecified.
func (b *Builder) Alloca(elem types.TypeID, addrSpace, align uint32, name string) (ValueID, error) {
	return b.insert(Instr{
		Op:     OpAlloca,
		Alloca: AllocaInstr{Elem: elem, AddrSpace: addrSpace, Align: align},
	}, name)
}

// Store writes val through ptr. The pointee of ptr must be val's type.
func (b *Builder) Store(val, ptr ValueID, align uint32) (ValueID, error) {
	return b.insert(Instr{
		Op:    OpStore,
		Store: StoreInstr{Val: val, Ptr: ptr, Align: align},
	}, "")
}

// Load reads the pointee of ptr.
func (b *Builder) Load(ptr ValueID, align uint32, name string) (ValueID, error) {
	return b.insert(Instr{
		Op:   OpLoad,
		Load: LoadInstr{Ptr: ptr, Align: align},
	}, name)
}

// Binary applies a two-operand integer opcode to operands of one type.
func (b *Builder) Binary(op Opcode, lhs, rhs ValueID, name string) (ValueID, error) {
	if !op.IsBinary() {
		return NoValueID, errorf(ErrKindInvalidOperand, "%s is not a binary opcode", op)
	}
	return b.insert(Instr{
		Op:     op,
		Binary: BinaryInstr{LHS: lhs, RHS: rhs},
	}, name)
}

// Add is Binary(OpAdd, ...).
func (b *Builder) Add(lhs, rhs ValueID, name string) (ValueID, error) {
	return b.Binary(OpAdd, lhs, rhs, name)
}

// Sub is Binary(OpSub, ...).
func (b *Builder) Sub(lhs, rhs ValueID, name string) (ValueID, error) {
	return b.Binary(OpSub, lhs, rhs, name)
}

// Mul is Binary(OpMul, ...).
func (b *Builder) Mul(lhs, rhs ValueID, name string) (ValueID, error) {
	return b.Binary(OpMul, lhs, rhs, name)
}

// Ret terminates the block returning val.
func (b *Builder) Ret(val ValueID) (ValueID, error) {
	return b.insert(Instr{
		Op:     OpRet,
		Return: ReturnInstr{HasValue: true, Value: val},
	}, "")
}

// RetVoid terminates the block of a void function.
func (b *Builder) RetVoid() (ValueID, error) {
	return b.insert(Instr{Op: OpRet}, "")
}

func (b *Builder) insert(ins Instr, name string) (ValueID, error) {
	if b.fn == nil || b.fn.module != b.m {
		return NoValueID, errorf(ErrKindNoInsertPoint, "builder has no insertion function")
	}
	bb := b.fn.Block(b.block)
	if bb == nil {
		return NoValueID, errorf(ErrKindNoInsertPoint, "@%s has no block bb%d", b.fn.Name, b.block)
	}
	if bb.Terminated() {
		return NoValueID, errorf(ErrKindBlockAlreadyTerminated, "@%s bb%d %q: cannot append %s", b.fn.Name, bb.ID, bb.Label, ins.Op)
	}
	ty, err := b.m.resultType(b.fn, &ins, true)
	if err != nil {
		return NoValueID, err
	}
	ins.Block = bb.ID
	instr := ins
	id := b.m.newValue(&Value{
		Kind:  ValueInstr,
		Type:  ty,
		Name:  name,
		Func:  b.fn.ID,
		Instr: &instr,
	})
	bb.Instrs = append(bb.Instrs, id)
	for _, op := range instr.Operands() {
		used := b.m.values[op]
		used.users = append(used.users, id)
	}
	if instr.Op.IsTerminator() {
		bb.Term = id
	}
	b.m.touch()
	return id, nil
}
