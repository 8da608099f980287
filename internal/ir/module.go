package ir

import (
	"fmt"
	"strings"

	"fortio.org/safecast"

	"irkit/internal/types"
)

// Module owns every function, block, instruction and constant reachable from
// it, together with the type interner they are typed against. A Module is
// not safe for concurrent mutation; independent modules share nothing.
type Module struct {
	Name         string
	DataLayout   string
	TargetTriple string

	types      *types.Interner
	values     []*Value
	consts     []ValueID
	constIndex map[constKey]ValueID
	funcs      []*Func
	funcByName map[string]FuncID
	gen        uint64
}

type constKey struct {
	Type  types.TypeID
	Value int64
}

// NewModule creates an empty module with its own type interner.
func NewModule(name string) *Module {
	m := &Module{
		Name:       name,
		types:      types.NewInterner(),
		constIndex: make(map[constKey]ValueID),
		funcByName: make(map[string]FuncID),
	}
	m.values = append(m.values, &Value{}) // reserve 0 as NoValueID
	m.funcs = append(m.funcs, nil)        // reserve 0 as NoFuncID
	return m
}

// Types returns the module's type interner.
func (m *Module) Types() *types.Interner {
	return m.types
}

// Generation increases on every mutation made through the module API.
// A verification result is only meaningful for the generation it saw.
func (m *Module) Generation() uint64 {
	return m.gen
}

func (m *Module) touch() {
	m.gen++
}

// SetDataLayout stores the opaque data-layout string.
func (m *Module) SetDataLayout(layout string) error {
	if strings.TrimSpace(layout) == "" {
		return errorf(ErrKindInvalidTarget, "empty data layout")
	}
	m.DataLayout = layout
	m.touch()
	return nil
}

// SetTargetTriple stores the opaque target-triple string.
func (m *Module) SetTargetTriple(triple string) error {
	if strings.TrimSpace(triple) == "" {
		return errorf(ErrKindInvalidTarget, "empty target triple")
	}
	m.TargetTriple = triple
	m.touch()
	return nil
}

// Value returns the arena entry for id, or nil when id names no value.
func (m *Module) Value(id ValueID) *Value {
	if id == NoValueID || int(id) >= len(m.values) {
		return nil
	}
	return m.values[id]
}

// NumValues reports the arena size including the reserved sentinel.
func (m *Module) NumValues() int {
	return len(m.values)
}

func (m *Module) newValue(v *Value) ValueID {
	n, err := safecast.Conv[uint32](len(m.values))
	if err != nil {
		panic(fmt.Errorf("value arena overflow: %w", err))
	}
	v.ID = ValueID(n)
	m.values = append(m.values, v)
	return v.ID
}

// ConstInt returns the interned integer constant v of type ty. The literal is
// sign-extended from the type's bit width, so i8 255 and i8 -1 are the same
// constant.
func (m *Module) ConstInt(ty types.TypeID, v int64) (ValueID, error) {
	tt, ok := m.types.Lookup(ty)
	if !ok || tt.Kind != types.KindInt {
		return NoValueID, errorf(ErrKindTypeMismatch, "integer constant of type %s", m.types.String(ty))
	}
	v = signExtend(v, tt.Width)
	key := constKey{Type: ty, Value: v}
	if id, ok := m.constIndex[key]; ok {
		return id, nil
	}
	id := m.newValue(&Value{Kind: ValueConst, Type: ty, IntValue: v})
	m.constIndex[key] = id
	m.consts = append(m.consts, id)
	m.touch()
	return id, nil
}

// Consts lists constants in creation order.
func (m *Module) Consts() []ValueID {
	return m.consts
}

func signExtend(v int64, width uint32) int64 {
	if width >= 64 {
		return v
	}
	shift := 64 - width
	return (v << shift) >> shift
}

// Funcs lists functions in insertion order.
func (m *Module) Funcs() []*Func {
	return m.funcs[1:]
}

// Func returns the function with the given ID.
func (m *Module) Func(id FuncID) *Func {
	if id == NoFuncID || int(id) >= len(m.funcs) {
		return nil
	}
	return m.funcs[id]
}

// Lookup finds a function by name.
func (m *Module) Lookup(name string) (*Func, bool) {
	id, ok := m.funcByName[name]
	if !ok {
		return nil, false
	}
	return m.funcs[id], true
}

// CreateFunction adds a function and materializes one unnamed argument per
// parameter of sig.
func (m *Module) CreateFunction(name string, sig types.TypeID, linkage Linkage, cc CallConv) (*Func, error) {
	if name == "" {
		return nil, errorf(ErrKindDuplicateSymbol, "function name must not be empty")
	}
	if _, exists := m.funcByName[name]; exists {
		return nil, errorf(ErrKindDuplicateSymbol, "function @%s already defined", name)
	}
	info, ok := m.types.FuncInfo(sig)
	if !ok {
		return nil, errorf(ErrKindTypeMismatch, "signature of @%s is %s, not a function type", name, m.types.String(sig))
	}
	n, err := safecast.Conv[uint32](len(m.funcs))
	if err != nil {
		panic(fmt.Errorf("function table overflow: %w", err))
	}
	fn := &Func{
		ID:       FuncID(n),
		Name:     name,
		Sig:      sig,
		Linkage:  linkage,
		CallConv: cc,
		module:   m,
	}
	fn.Args = make([]ValueID, 0, len(info.Params))
	for i, p := range info.Params {
		fn.Args = append(fn.Args, m.newValue(&Value{
			Kind:  ValueArgument,
			Type:  p,
			Func:  fn.ID,
			Index: i,
		}))
	}
	m.funcs = append(m.funcs, fn)
	m.funcByName[name] = fn.ID
	m.touch()
	return fn, nil
}

// ReturnType is the result type of fn's signature.
func (m *Module) ReturnType(fn *Func) types.TypeID {
	info, ok := m.types.FuncInfo(fn.Sig)
	if !ok {
		return types.NoTypeID
	}
	return info.Result
}
