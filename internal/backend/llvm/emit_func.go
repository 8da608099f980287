package llvm

import (
	"fmt"

	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"

	"irkit/internal/ir"
)

func (e *Emitter) emitFunction(f *ir.Func) error {
	fn := e.funcs[f.ID]
	if fn == nil {
		return fmt.Errorf("@%s: function was not prepared", f.Name)
	}
	fe := &funcEmitter{
		emitter: e,
		f:       f,
		fn:      fn,
		vals:    make(map[ir.ValueID]value.Value, len(f.Args)+8),
		names:   e.names[f.ID],
	}
	for i, id := range f.Args {
		fe.vals[id] = fn.Params[i]
	}

	// Blocks are created up front so labels are claimed before any
	// instruction name.
	blocks := make([]*llir.Block, len(f.Blocks))
	for i, bb := range f.Blocks {
		if bb == nil {
			return fmt.Errorf("@%s: missing block %d", f.Name, i)
		}
		blocks[i] = fn.NewBlock(fe.names.claim(bb.Label))
	}
	for i, bb := range f.Blocks {
		for _, id := range bb.Instrs {
			if err := fe.emitInstr(blocks[i], id); err != nil {
				return fmt.Errorf("@%s %s: %w", f.Name, bb.Label, err)
			}
		}
	}
	return nil
}

// operand resolves an irkit value used inside the current function.
func (fe *funcEmitter) operand(id ir.ValueID) (value.Value, error) {
	if v, ok := fe.vals[id]; ok {
		return v, nil
	}
	v := fe.emitter.mod.Value(id)
	if v == nil {
		return nil, fmt.Errorf("%w: unknown value %%v%d", ErrUnsupported, id)
	}
	if v.Kind != ir.ValueConst {
		return nil, fmt.Errorf("%w: %%v%d is used before it is defined", ErrUnsupported, id)
	}
	return fe.emitter.constant(v)
}
