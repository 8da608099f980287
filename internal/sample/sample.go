// Package sample builds the fixed example functions: two integer parameters
// spilled to stack slots, reloaded, combined with one arithmetic opcode and
// returned. `sum` is the canonical instance.
package sample

import (
	"fmt"

	"irkit/internal/ir"
	"irkit/internal/layout"
	"irkit/internal/types"
)

// FuncSpec describes one generated function.
type FuncSpec struct {
	Name     string
	Op       ir.Opcode
	Width    uint32 // integer bit width, 32 when zero
	Linkage  ir.Linkage
	CallConv ir.CallConv
	// ArgNames default to "a" and "b".
	ArgNames [2]string
}

// SumSpec is the `sum(a: i32, b: i32) -> i32` function.
func SumSpec() FuncSpec {
	return FuncSpec{
		Name:     "sum",
		Op:       ir.OpAdd,
		Width:    32,
		Linkage:  ir.LinkageExternal,
		CallConv: ir.CallConvC,
	}
}

// NewModule creates an empty module carrying target's description.
func NewModule(name string, target layout.Target) (*ir.Module, error) {
	m := ir.NewModule(name)
	if err := m.SetDataLayout(target.DataLayout); err != nil {
		return nil, err
	}
	if err := m.SetTargetTriple(target.Triple); err != nil {
		return nil, err
	}
	return m, nil
}

// Sum builds module "sum.c" holding only the sum function.
func Sum(target layout.Target) (*ir.Module, error) {
	m, err := NewModule("sum.c", target)
	if err != nil {
		return nil, err
	}
	if _, err := AddBinaryFunc(m, SumSpec()); err != nil {
		return nil, err
	}
	return m, nil
}

// AddBinaryFunc appends spec's function to m. Stack slots are placed in the
// alloca address space of m's data layout and aligned to the integer ABI
// alignment.
func AddBinaryFunc(m *ir.Module, spec FuncSpec) (*ir.Func, error) {
	if !spec.Op.IsBinary() {
		return nil, fmt.Errorf("sample %s: %s is not a binary opcode", spec.Name, spec.Op)
	}
	width := spec.Width
	if width == 0 {
		width = 32
	}
	dl, err := layout.ParseDataLayout(m.DataLayout)
	if err != nil {
		return nil, fmt.Errorf("sample %s: %w", spec.Name, err)
	}
	align := dl.IntAlign(width)

	tin := m.Types()
	intTy := tin.Int(width)
	sig := tin.Func(intTy, []types.TypeID{intTy, intTy}, false)
	fn, err := m.CreateFunction(spec.Name, sig, spec.Linkage, spec.CallConv)
	if err != nil {
		return nil, err
	}
	names := spec.ArgNames
	if names[0] == "" && names[1] == "" {
		names = [2]string{"a", "b"}
	}
	for i, name := range names {
		if err := fn.SetArgName(i, name); err != nil {
			return nil, err
		}
	}

	b := ir.NewBuilder(m)
	b.SetInsertPoint(fn, fn.CreateBlock("entry"))

	slots := make([]ir.ValueID, 2)
	for i := range slots {
		slots[i], err = b.Alloca(intTy, dl.AllocaAddrSpace, align, slotName(names[i]))
		if err != nil {
			return nil, err
		}
	}
	for i, slot := range slots {
		if _, err := b.Store(fn.Arg(i), slot, align); err != nil {
			return nil, err
		}
	}
	loaded := make([]ir.ValueID, 2)
	for i, slot := range slots {
		loaded[i], err = b.Load(slot, align, "")
		if err != nil {
			return nil, err
		}
	}
	res, err := b.Binary(spec.Op, loaded[0], loaded[1], spec.Op.String())
	if err != nil {
		return nil, err
	}
	if _, err := b.Ret(res); err != nil {
		return nil, err
	}
	return fn, nil
}

func slotName(arg string) string {
	if arg == "" {
		return ""
	}
	return arg + ".addr"
}
