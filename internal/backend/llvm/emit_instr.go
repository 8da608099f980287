package llvm

import (
	"fmt"

	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"irkit/internal/ir"
)

func (e *Emitter) constant(v *ir.Value) (value.Value, error) {
	it, err := e.intType(v.Type)
	if err != nil {
		return nil, err
	}
	// i1 constants are stored sign-extended; llir only accepts 0 and 1.
	if it.BitSize == 1 {
		return constant.NewBool(v.IntValue != 0), nil
	}
	return constant.NewInt(it, v.IntValue), nil
}

func (fe *funcEmitter) emitInstr(block *llir.Block, id ir.ValueID) error {
	v := fe.emitter.mod.Value(id)
	if v == nil || v.Instr == nil {
		return fmt.Errorf("%w: %%v%d is not an instruction", ErrUnsupported, id)
	}
	ins := v.Instr
	var out value.Value
	switch {
	case ins.Op == ir.OpAlloca:
		inst, err := fe.emitAlloca(block, &ins.Alloca)
		if err != nil {
			return err
		}
		inst.SetName(fe.names.claim(v.Name))
		out = inst

	case ins.Op == ir.OpStore:
		val, err := fe.operand(ins.Store.Val)
		if err != nil {
			return err
		}
		ptr, err := fe.operand(ins.Store.Ptr)
		if err != nil {
			return err
		}
		inst := block.NewStore(val, ptr)
		inst.Align = llir.Align(ins.Store.Align)

	case ins.Op == ir.OpLoad:
		ptr, err := fe.operand(ins.Load.Ptr)
		if err != nil {
			return err
		}
		elem, err := fe.emitter.llvmType(v.Type)
		if err != nil {
			return err
		}
		inst := block.NewLoad(elem, ptr)
		inst.Align = llir.Align(ins.Load.Align)
		inst.SetName(fe.names.claim(v.Name))
		out = inst

	case ins.Op.IsBinary():
		inst, err := fe.emitBinary(block, ins.Op, &ins.Binary)
		if err != nil {
			return err
		}
		inst.SetName(fe.names.claim(v.Name))
		out = inst

	case ins.Op == ir.OpRet:
		if !ins.Return.HasValue {
			block.NewRet(nil)
			break
		}
		val, err := fe.operand(ins.Return.Value)
		if err != nil {
			return err
		}
		block.NewRet(val)

	default:
		return fmt.Errorf("%w: opcode %s", ErrUnsupported, ins.Op)
	}
	if out != nil {
		fe.vals[id] = out
	}
	return nil
}

func (fe *funcEmitter) emitAlloca(block *llir.Block, a *ir.AllocaInstr) (*llir.InstAlloca, error) {
	elem, err := fe.emitter.llvmType(a.Elem)
	if err != nil {
		return nil, err
	}
	inst := block.NewAlloca(elem)
	inst.Align = llir.Align(a.Align)
	inst.AddrSpace = lltypes.AddrSpace(a.AddrSpace)
	// NewAlloca caches a default address space pointer type.
	ptr := lltypes.NewPointer(elem)
	ptr.AddrSpace = inst.AddrSpace
	inst.Typ = ptr
	return inst, nil
}
