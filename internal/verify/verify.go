// Package verify checks structural invariants of an ir.Module.
//
// All four check categories always run and every finding is reported, in
// category order and then program order:
//
//  1. structure: bodies exist, every block ends in exactly one terminator
//     which is its last instruction;
//  2. ordering: every operand is a constant, an argument of the same
//     function, or an instruction of the same function defined earlier in a
//     linear scan of the blocks in order;
//  3. types: result and operand types follow the opcode rules;
//  4. symbols: function names and argument names are unique.
//
// The linear scan in check 2 is exact for straight-line bodies. The IR has
// no branch instructions, so no block can reach another and the scan order is
// the only order a use can observe. Adding branches requires replacing it
// with a dominator-tree walk.
//
// Verification never mutates the module.
package verify

import (
	"errors"
	"fmt"

	"irkit/internal/ir"
)

type checker struct {
	m        *ir.Module
	findings []Finding
	// instrOK marks instructions whose structure is sound enough to be
	// type-checked.
	instrOK map[ir.ValueID]bool
}

// Module runs every check on m. A nil module yields a single nil-module
// finding.
func Module(m *ir.Module) Result {
	if m == nil {
		return Result{Findings: []Finding{{Code: CodeNilModule, Entity: Entity{Kind: EntityModule}, Message: "module is nil"}}}
	}
	c := &checker{m: m, instrOK: make(map[ir.ValueID]bool)}
	c.checkStructure()
	c.checkOrdering()
	c.checkTypes()
	c.checkSymbols()
	return Result{Findings: c.findings, Generation: m.Generation()}
}

func (c *checker) report(code Code, ent Entity, format string, args ...any) {
	c.findings = append(c.findings, Finding{Code: code, Entity: ent, Message: fmt.Sprintf(format, args...)})
}

func funcEntity(fn *ir.Func) Entity {
	return Entity{Kind: EntityFunction, Func: fn.ID, FuncName: fn.Name}
}

func blockEntity(fn *ir.Func, bb *ir.Block) Entity {
	return Entity{Kind: EntityBlock, Func: fn.ID, FuncName: fn.Name, Block: bb.ID}
}

func instrEntity(fn *ir.Func, bb *ir.Block, idx int, id ir.ValueID) Entity {
	return Entity{Kind: EntityInstr, Func: fn.ID, FuncName: fn.Name, Block: bb.ID, Index: idx, Value: id}
}

// checkStructure validates bodies, block shape and instruction ownership.
func (c *checker) checkStructure() {
	seen := make(map[ir.ValueID]bool)
	for _, fn := range c.m.Funcs() {
		if !fn.Linkage.Known() || !fn.CallConv.Known() {
			c.report(CodeUnknownAttribute, funcEntity(fn), "linkage %s, calling convention %s", fn.Linkage, fn.CallConv)
		}
		if fn.IsDeclaration() {
			if fn.Linkage != ir.LinkageExternal {
				c.report(CodeNoBlocks, funcEntity(fn), "%s function has no body", fn.Linkage)
			}
			continue
		}
		for bi, bb := range fn.Blocks {
			if bb == nil || int(bb.ID) != bi {
				c.report(CodeBadInstr, Entity{Kind: EntityBlock, Func: fn.ID, FuncName: fn.Name, Block: ir.BlockID(bi)}, "block table entry %d is malformed", bi)
				continue
			}
			if len(bb.Instrs) == 0 {
				c.report(CodeEmptyBlock, blockEntity(fn, bb), "block %q has no instructions", bb.Label)
				continue
			}
			last := len(bb.Instrs) - 1
			for j, id := range bb.Instrs {
				v := c.m.Value(id)
				ent := instrEntity(fn, bb, j, id)
				switch {
				case v == nil || v.Kind != ir.ValueInstr || v.Instr == nil:
					c.report(CodeBadInstr, ent, "entry is not an instruction")
					continue
				case v.Func != fn.ID || v.Instr.Block != bb.ID:
					c.report(CodeBadInstr, ent, "instruction is owned by another block")
					continue
				case seen[id]:
					c.report(CodeBadInstr, ent, "instruction appears more than once")
					continue
				case !v.Instr.Op.Known():
					c.report(CodeBadInstr, ent, "unknown opcode %s", v.Instr.Op)
					continue
				}
				seen[id] = true
				c.instrOK[id] = true
				if v.Instr.Op.IsTerminator() && j != last {
					c.report(CodeTerminatorNotLast, ent, "%s is followed by %d instruction(s)", v.Instr.Op, last-j)
				}
			}
			if v := c.m.Value(bb.Instrs[last]); !v.IsTerminator() {
				c.report(CodeMissingTerminator, blockEntity(fn, bb), "block %q does not end in a terminator", bb.Label)
			}
		}
	}
}

// checkOrdering validates that every operand is available at its use.
func (c *checker) checkOrdering() {
	for _, fn := range c.m.Funcs() {
		defined := make(map[ir.ValueID]bool)
		for _, bb := range fn.Blocks {
			if bb == nil {
				continue
			}
			for j, id := range bb.Instrs {
				if !c.instrOK[id] {
					continue
				}
				ins := c.m.Value(id).Instr
				for _, op := range ins.Operands() {
					ent := instrEntity(fn, bb, j, id)
					v := c.m.Value(op)
					switch {
					case v == nil:
						c.report(CodeUnknownOperand, ent, "operand %%v%d does not exist", op)
					case v.Kind == ir.ValueConst:
					case v.Func != fn.ID:
						c.report(CodeForeignOperand, ent, "operand %%v%d belongs to another function", op)
					case v.Kind == ir.ValueArgument:
					case !defined[op]:
						c.report(CodeUseBeforeDef, ent, "operand %%v%d is used before its definition", op)
					}
				}
				defined[id] = true
			}
		}
	}
}

// checkTypes re-applies the construction-time typing rules.
func (c *checker) checkTypes() {
	tin := c.m.Types()
	for _, fn := range c.m.Funcs() {
		info, ok := tin.FuncInfo(fn.Sig)
		if !ok {
			c.report(CodeBadSignature, funcEntity(fn), "signature %s is not a function type", tin.String(fn.Sig))
			continue
		}
		if len(info.Params) != len(fn.Args) {
			c.report(CodeBadSignature, funcEntity(fn), "signature has %d parameter(s), function has %d argument(s)", len(info.Params), len(fn.Args))
		}
		for i, id := range fn.Args {
			v := c.m.Value(id)
			ent := Entity{Kind: EntityArgument, Func: fn.ID, FuncName: fn.Name, Index: i, Value: id}
			if v == nil || v.Kind != ir.ValueArgument || v.Func != fn.ID || v.Index != i {
				c.report(CodeBadSignature, ent, "argument table entry is malformed")
				continue
			}
			if i < len(info.Params) && v.Type != info.Params[i] {
				c.report(CodeTypeMismatch, ent, "argument has type %s, signature says %s", tin.String(v.Type), tin.String(info.Params[i]))
			}
		}
		for _, bb := range fn.Blocks {
			if bb == nil {
				continue
			}
			for j, id := range bb.Instrs {
				if !c.instrOK[id] {
					continue
				}
				v := c.m.Value(id)
				want, err := c.m.ResultType(fn, v.Instr)
				if errors.Is(err, ir.ErrInvalidOperand) {
					continue // reported by checkOrdering
				}
				ent := instrEntity(fn, bb, j, id)
				if err != nil {
					c.report(CodeTypeMismatch, ent, "%v", err)
					continue
				}
				if want != v.Type {
					c.report(CodeTypeMismatch, ent, "%s declares %s, operands give %s", v.Instr.Op, tin.String(v.Type), tin.String(want))
				}
			}
		}
	}
}

// checkSymbols validates name uniqueness.
func (c *checker) checkSymbols() {
	funcs := make(map[string]ir.FuncID)
	for _, fn := range c.m.Funcs() {
		if prev, ok := funcs[fn.Name]; ok {
			c.report(CodeDuplicateFunction, funcEntity(fn), "name already used by function #%d", prev)
		} else {
			funcs[fn.Name] = fn.ID
		}
		args := make(map[string]int)
		for i, id := range fn.Args {
			v := c.m.Value(id)
			if v == nil || v.Name == "" {
				continue
			}
			if prev, ok := args[v.Name]; ok {
				c.report(CodeDuplicateArgument, Entity{Kind: EntityArgument, Func: fn.ID, FuncName: fn.Name, Index: i, Value: id},
					"name %%%s already used by argument %d", v.Name, prev)
				continue
			}
			args[v.Name] = i
		}
	}
}
