package llvm

import (
	"fmt"

	llir "github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/value"

	"irkit/internal/ir"
)

// namedInstr is the part of an llir instruction the exporter needs after
// creation.
type namedInstr interface {
	value.Named
}

func (fe *funcEmitter) emitBinary(block *llir.Block, op ir.Opcode, bin *ir.BinaryInstr) (namedInstr, error) {
	x, err := fe.operand(bin.LHS)
	if err != nil {
		return nil, err
	}
	y, err := fe.operand(bin.RHS)
	if err != nil {
		return nil, err
	}
	switch op {
	case ir.OpAdd:
		return block.NewAdd(x, y), nil
	case ir.OpSub:
		return block.NewSub(x, y), nil
	case ir.OpMul:
		return block.NewMul(x, y), nil
	case ir.OpUDiv:
		return block.NewUDiv(x, y), nil
	case ir.OpSDiv:
		return block.NewSDiv(x, y), nil
	case ir.OpURem:
		return block.NewURem(x, y), nil
	case ir.OpSRem:
		return block.NewSRem(x, y), nil
	case ir.OpAnd:
		return block.NewAnd(x, y), nil
	case ir.OpOr:
		return block.NewOr(x, y), nil
	case ir.OpXor:
		return block.NewXor(x, y), nil
	case ir.OpShl:
		return block.NewShl(x, y), nil
	case ir.OpLShr:
		return block.NewLShr(x, y), nil
	case ir.OpAShr:
		return block.NewAShr(x, y), nil
	default:
		return nil, fmt.Errorf("%w: %s is not a binary opcode", ErrUnsupported, op)
	}
}
