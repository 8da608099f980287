package testkit

import (
	"fmt"

	"fortio.org/safecast"

	"irkit/internal/ir"
)

// CheckModuleInvariants runs the structural invariants the IR API promises to
// keep, independently of the verifier:
// 1) every arena entry's ID equals its index, and index 0 is the sentinel
// 2) arguments point back at their function and parameter position
// 3) every instruction sits in exactly one block of its own function, and its
// Block field names that block
// 4) a block's Term, when set, is its last instruction and the only terminator
// 5) every use list equals the multiset of instructions referencing the value
func CheckModuleInvariants(m *ir.Module) error {
	if m == nil {
		return fmt.Errorf("nil module")
	}
	n := m.NumValues()
	if sentinel := m.Value(ir.NoValueID); sentinel != nil {
		return fmt.Errorf("value 0 must not be addressable, got %+v", sentinel)
	}

	// 1) arena ids
	for i := 1; i < n; i++ {
		want, err := safecast.Conv[uint32](i)
		if err != nil {
			return fmt.Errorf("value index overflow: %w", err)
		}
		v := m.Value(ir.ValueID(want))
		if v == nil {
			return fmt.Errorf("value %d missing from arena", i)
		}
		if v.ID != ir.ValueID(want) {
			return fmt.Errorf("value at index %d claims id %d", i, v.ID)
		}
	}

	placed := make(map[ir.ValueID]bool)
	uses := make(map[ir.ValueID]map[ir.ValueID]int)
	for _, fn := range m.Funcs() {
		// 2) arguments
		for i, arg := range fn.Args {
			v := m.Value(arg)
			if v == nil || v.Kind != ir.ValueArgument {
				return fmt.Errorf("@%s: argument %d is not an argument value", fn.Name, i)
			}
			if v.Func != fn.ID || v.Index != i {
				return fmt.Errorf("@%s: argument %d records func=%d index=%d", fn.Name, i, v.Func, v.Index)
			}
		}
		for _, bb := range fn.Blocks {
			for pos, id := range bb.Instrs {
				v := m.Value(id)
				if v == nil || v.Kind != ir.ValueInstr || v.Instr == nil {
					return fmt.Errorf("@%s bb%d: %d is not an instruction", fn.Name, bb.ID, id)
				}
				// 3) ownership
				if placed[id] {
					return fmt.Errorf("@%s bb%d: instruction %d placed twice", fn.Name, bb.ID, id)
				}
				placed[id] = true
				if v.Func != fn.ID || v.Instr.Block != bb.ID {
					return fmt.Errorf("@%s bb%d: instruction %d records func=%d block=%d", fn.Name, bb.ID, id, v.Func, v.Instr.Block)
				}
				// 4) terminators
				last := pos == len(bb.Instrs)-1
				if v.IsTerminator() && (!last || bb.Term != id) {
					return fmt.Errorf("@%s bb%d: terminator %d at position %d of %d", fn.Name, bb.ID, id, pos, len(bb.Instrs))
				}
				for _, op := range v.Instr.Operands() {
					if uses[op] == nil {
						uses[op] = make(map[ir.ValueID]int)
					}
					uses[op][id]++
				}
			}
			if bb.Term != ir.NoValueID && (len(bb.Instrs) == 0 || bb.Instrs[len(bb.Instrs)-1] != bb.Term) {
				return fmt.Errorf("@%s bb%d: Term %d is not the last instruction", fn.Name, bb.ID, bb.Term)
			}
		}
	}

	// 5) use lists
	for i := 1; i < n; i++ {
		raw, err := safecast.Conv[uint32](i)
		if err != nil {
			return fmt.Errorf("value index overflow: %w", err)
		}
		id := ir.ValueID(raw)
		v := m.Value(id)
		got := make(map[ir.ValueID]int, len(v.Users()))
		for _, u := range v.Users() {
			got[u]++
		}
		want := uses[id]
		if len(got) != len(want) {
			return fmt.Errorf("value %d: use list %v, referenced by %v", id, v.Users(), want)
		}
		for user, count := range want {
			if got[user] != count {
				return fmt.Errorf("value %d: user %d listed %d time(s), referenced %d time(s)", id, user, got[user], count)
			}
		}
	}
	return nil
}
