// Package llvm exports irkit modules as textual LLVM IR through
// github.com/llir/llvm.
package llvm

import (
	"errors"
	"fmt"
	"io"

	llir "github.com/llir/llvm/ir"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"

	"irkit/internal/ir"
	"irkit/internal/types"
)

// ErrUnsupported is returned for constructs that have no LLVM equivalent.
var ErrUnsupported = errors.New("llvm: unsupported construct")

// Emitter converts one irkit module. It caches converted types and keeps the
// LLVM value for every irkit value it has emitted.
type Emitter struct {
	mod    *ir.Module
	types  *types.Interner
	out    *llir.Module
	tcache map[types.TypeID]lltypes.Type
	funcs  map[ir.FuncID]*llir.Func
	names  map[ir.FuncID]*nameSet
}

type funcEmitter struct {
	emitter *Emitter
	f       *ir.Func
	fn      *llir.Func
	vals    map[ir.ValueID]value.Value
	names   *nameSet
}

// Export builds the llir module for mod. The module is expected to have
// passed verification.
func Export(mod *ir.Module) (*llir.Module, error) {
	if mod == nil {
		return nil, fmt.Errorf("%w: nil module", ErrUnsupported)
	}
	e := &Emitter{
		mod:    mod,
		types:  mod.Types(),
		out:    llir.NewModule(),
		tcache: make(map[types.TypeID]lltypes.Type),
		funcs:  make(map[ir.FuncID]*llir.Func),
		names:  make(map[ir.FuncID]*nameSet),
	}
	e.out.SourceFilename = mod.Name
	e.out.DataLayout = mod.DataLayout
	e.out.TargetTriple = mod.TargetTriple
	if err := e.prepareFunctions(); err != nil {
		return nil, err
	}
	if err := e.emitFunctions(); err != nil {
		return nil, err
	}
	return e.out, nil
}

// EmitModule renders mod as LLVM assembly.
func EmitModule(mod *ir.Module) (string, error) {
	out, err := Export(mod)
	if err != nil {
		return "", err
	}
	return out.String(), nil
}

// WriteModule writes the LLVM assembly of mod to w.
func WriteModule(w io.Writer, mod *ir.Module) error {
	out, err := Export(mod)
	if err != nil {
		return err
	}
	_, err = out.WriteTo(w)
	return err
}

func (e *Emitter) prepareFunctions() error {
	for _, f := range e.mod.Funcs() {
		info, ok := e.types.FuncInfo(f.Sig)
		if !ok {
			return fmt.Errorf("@%s: signature %s is not a function type", f.Name, e.types.String(f.Sig))
		}
		ret, err := e.llvmType(info.Result)
		if err != nil {
			return fmt.Errorf("@%s: %w", f.Name, err)
		}
		params := make([]*llir.Param, 0, len(f.Args))
		names := newNameSet()
		for i, id := range f.Args {
			v := e.mod.Value(id)
			if v == nil || i >= len(info.Params) {
				return fmt.Errorf("@%s: malformed argument %d", f.Name, i)
			}
			pt, err := e.llvmType(info.Params[i])
			if err != nil {
				return fmt.Errorf("@%s: %w", f.Name, err)
			}
			params = append(params, llir.NewParam(names.claim(v.Name), pt))
		}
		fn := e.out.NewFunc(f.Name, ret, params...)
		fn.Sig.Variadic = info.Variadic
		fn.Linkage, err = llvmLinkage(f.Linkage)
		if err != nil {
			return fmt.Errorf("@%s: %w", f.Name, err)
		}
		fn.CallingConv, err = llvmCallConv(f.CallConv)
		if err != nil {
			return fmt.Errorf("@%s: %w", f.Name, err)
		}
		e.funcs[f.ID] = fn
		e.names[f.ID] = names
	}
	return nil
}

func (e *Emitter) emitFunctions() error {
	for _, f := range e.mod.Funcs() {
		if f.IsDeclaration() {
			continue
		}
		if err := e.emitFunction(f); err != nil {
			return err
		}
	}
	return nil
}
