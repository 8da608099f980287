package llvm

import (
	"fmt"
	"strconv"

	"github.com/llir/llvm/ir/enum"
	lltypes "github.com/llir/llvm/ir/types"

	"irkit/internal/ir"
	"irkit/internal/types"
)

func (e *Emitter) llvmType(id types.TypeID) (lltypes.Type, error) {
	if t, ok := e.tcache[id]; ok {
		return t, nil
	}
	tt, ok := e.types.Lookup(id)
	if !ok {
		return nil, fmt.Errorf("%w: unknown type#%d", ErrUnsupported, id)
	}
	var out lltypes.Type
	switch tt.Kind {
	case types.KindVoid:
		out = lltypes.Void
	case types.KindInt:
		out = lltypes.NewInt(uint64(tt.Width))
	case types.KindPointer:
		elem, err := e.llvmType(tt.Elem)
		if err != nil {
			return nil, err
		}
		ptr := lltypes.NewPointer(elem)
		ptr.AddrSpace = lltypes.AddrSpace(tt.AddrSpace)
		out = ptr
	case types.KindFunc:
		info, _ := e.types.FuncInfo(id)
		ret, err := e.llvmType(info.Result)
		if err != nil {
			return nil, err
		}
		params := make([]lltypes.Type, 0, len(info.Params))
		for _, p := range info.Params {
			pt, err := e.llvmType(p)
			if err != nil {
				return nil, err
			}
			params = append(params, pt)
		}
		fn := lltypes.NewFunc(ret, params...)
		fn.Variadic = info.Variadic
		out = fn
	default:
		return nil, fmt.Errorf("%w: type kind %s", ErrUnsupported, tt.Kind)
	}
	e.tcache[id] = out
	return out, nil
}

func (e *Emitter) intType(id types.TypeID) (*lltypes.IntType, error) {
	t, err := e.llvmType(id)
	if err != nil {
		return nil, err
	}
	it, ok := t.(*lltypes.IntType)
	if !ok {
		return nil, fmt.Errorf("%w: %s is not an integer type", ErrUnsupported, e.types.String(id))
	}
	return it, nil
}

// llvmLinkage maps linkage. External is LLVM's default and prints without a
// keyword.
func llvmLinkage(l ir.Linkage) (enum.Linkage, error) {
	switch l {
	case ir.LinkageExternal:
		return enum.LinkageNone, nil
	case ir.LinkageInternal:
		return enum.LinkageInternal, nil
	case ir.LinkagePrivate:
		return enum.LinkagePrivate, nil
	default:
		return enum.LinkageNone, fmt.Errorf("%w: linkage %s", ErrUnsupported, l)
	}
}

// llvmCallConv maps calling conventions. C is LLVM's default and prints
// without a keyword.
func llvmCallConv(cc ir.CallConv) (enum.CallingConv, error) {
	switch cc {
	case ir.CallConvC:
		return enum.CallingConvNone, nil
	case ir.CallConvFast:
		return enum.CallingConvFast, nil
	case ir.CallConvCold:
		return enum.CallingConvCold, nil
	default:
		return enum.CallingConvNone, fmt.Errorf("%w: calling convention %s", ErrUnsupported, cc)
	}
}

// nameSet hands out unique local names. LLVM requires block labels and
// local value names to be unique within a function, and purely numeric
// names collide with the implicit numbering of unnamed values.
type nameSet struct {
	used map[string]int
}

func newNameSet() *nameSet {
	return &nameSet{used: make(map[string]int)}
}

func (s *nameSet) claim(name string) string {
	if name == "" {
		return ""
	}
	if _, err := strconv.ParseUint(name, 10, 64); err == nil {
		name = "v" + name
	}
	if _, taken := s.used[name]; !taken {
		s.used[name] = 0
		return name
	}
	for {
		s.used[name]++
		candidate := name + "." + strconv.Itoa(s.used[name])
		if _, taken := s.used[candidate]; !taken {
			s.used[candidate] = 0
			return candidate
		}
	}
}
