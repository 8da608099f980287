package ir

import "irkit/internal/types"

// operandType resolves id to its type, rejecting IDs outside the arena.
func (m *Module) operandType(id ValueID) (types.TypeID, error) {
	v := m.Value(id)
	if v == nil {
		return types.NoTypeID, errorf(ErrKindInvalidOperand, "value %%v%d does not exist", id)
	}
	return v.Type, nil
}

// ResultType applies the per-opcode typing rules to ins as it would appear in
// fn and returns the type its result must carry. It never mutates the
// module: an alloca whose pointer type was never interned is reported as a
// type mismatch.
func (m *Module) ResultType(fn *Func, ins *Instr) (types.TypeID, error) {
	return m.resultType(fn, ins, false)
}

func (m *Module) resultType(fn *Func, ins *Instr, intern bool) (types.TypeID, error) {
	tin := m.types
	switch {
	case ins.Op == OpAlloca:
		tt, ok := tin.Lookup(ins.Alloca.Elem)
		if !ok || (tt.Kind != types.KindInt && tt.Kind != types.KindPointer) {
			return types.NoTypeID, errorf(ErrKindTypeMismatch, "alloca of %s", tin.String(ins.Alloca.Elem))
		}
		if intern {
			return tin.Pointer(ins.Alloca.Elem, ins.Alloca.AddrSpace), nil
		}
		id, ok := tin.Find(types.MakePointer(ins.Alloca.Elem, ins.Alloca.AddrSpace))
		if !ok {
			return types.NoTypeID, errorf(ErrKindTypeMismatch, "alloca result type %s* was never interned", tin.String(ins.Alloca.Elem))
		}
		return id, nil

	case ins.Op == OpStore:
		valT, err := m.operandType(ins.Store.Val)
		if err != nil {
			return types.NoTypeID, err
		}
		ptrT, err := m.operandType(ins.Store.Ptr)
		if err != nil {
			return types.NoTypeID, err
		}
		pointee, ok := tin.Pointee(ptrT)
		if !ok {
			return types.NoTypeID, errorf(ErrKindTypeMismatch, "store address has type %s, not a pointer", tin.String(ptrT))
		}
		if tin.IsVoid(valT) || pointee != valT {
			return types.NoTypeID, errorf(ErrKindTypeMismatch, "store of %s through %s", tin.String(valT), tin.String(ptrT))
		}
		return tin.Void(), nil

	case ins.Op == OpLoad:
		ptrT, err := m.operandType(ins.Load.Ptr)
		if err != nil {
			return types.NoTypeID, err
		}
		pointee, ok := tin.Pointee(ptrT)
		if !ok {
			return types.NoTypeID, errorf(ErrKindTypeMismatch, "load address has type %s, not a pointer", tin.String(ptrT))
		}
		return pointee, nil

	case ins.Op.IsBinary():
		lhsT, err := m.operandType(ins.Binary.LHS)
		if err != nil {
			return types.NoTypeID, err
		}
		rhsT, err := m.operandType(ins.Binary.RHS)
		if err != nil {
			return types.NoTypeID, err
		}
		if lhsT != rhsT {
			return types.NoTypeID, errorf(ErrKindTypeMismatch, "%s operands %s and %s differ", ins.Op, tin.String(lhsT), tin.String(rhsT))
		}
		if !tin.IsInt(lhsT) {
			return types.NoTypeID, errorf(ErrKindTypeMismatch, "%s on non-integer %s", ins.Op, tin.String(lhsT))
		}
		return lhsT, nil

	case ins.Op == OpRet:
		want := m.ReturnType(fn)
		if tin.IsVoid(want) {
			if ins.Return.HasValue {
				return types.NoTypeID, errorf(ErrKindTypeMismatch, "@%s returns void but ret has a value", fn.Name)
			}
			return tin.Void(), nil
		}
		if !ins.Return.HasValue {
			return types.NoTypeID, errorf(ErrKindTypeMismatch, "@%s returns %s but ret has no value", fn.Name, tin.String(want))
		}
		got, err := m.operandType(ins.Return.Value)
		if err != nil {
			return types.NoTypeID, err
		}
		if got != want {
			return types.NoTypeID, errorf(ErrKindTypeMismatch, "@%s returns %s but ret has %s", fn.Name, tin.String(want), tin.String(got))
		}
		return tin.Void(), nil

	default:
		return types.NoTypeID, errorf(ErrKindInvalidOperand, "unknown opcode %s", ins.Op)
	}
}
