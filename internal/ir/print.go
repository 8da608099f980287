package ir

import (
	"fmt"
	"io"
	"strconv"
	"strings"
)

// DumpOptions configures module dumping.
type DumpOptions struct {
	// Users appends the used-by list to every value-producing line.
	Users bool
}

// DumpModule writes a human-readable listing of m. Values are printed by
// arena ID (%vN), followed by their name when they have one.
func DumpModule(w io.Writer, m *Module, opts DumpOptions) error {
	if w == nil || m == nil {
		return nil
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "module %q\n", m.Name)
	if m.DataLayout != "" {
		fmt.Fprintf(&sb, "  datalayout = %q\n", m.DataLayout)
	}
	if m.TargetTriple != "" {
		fmt.Fprintf(&sb, "  triple = %q\n", m.TargetTriple)
	}

	if consts := m.Consts(); len(consts) > 0 {
		fmt.Fprintf(&sb, "consts=%d\n", len(consts))
		for _, id := range consts {
			v := m.Value(id)
			fmt.Fprintf(&sb, "  %s = %s %d", valueRef(m, id), m.types.String(v.Type), v.IntValue)
			dumpUsers(&sb, v, opts)
			sb.WriteByte('\n')
		}
	}

	funcs := m.Funcs()
	fmt.Fprintf(&sb, "funcs=%d\n", len(funcs))
	for _, fn := range funcs {
		dumpFunc(&sb, m, fn, opts)
	}
	_, err := io.WriteString(w, sb.String())
	return err
}

// String renders the module with default options.
func (m *Module) String() string {
	var sb strings.Builder
	if err := DumpModule(&sb, m, DumpOptions{}); err != nil {
		return err.Error()
	}
	return sb.String()
}

func dumpFunc(sb *strings.Builder, m *Module, fn *Func, opts DumpOptions) {
	kw := "define"
	if fn.IsDeclaration() {
		kw = "declare"
	}
	fmt.Fprintf(sb, "\n%s @%s: %s linkage=%s cc=%s\n", kw, fn.Name, m.types.String(fn.Sig), fn.Linkage, fn.CallConv)
	if len(fn.Args) > 0 {
		sb.WriteString("  args:\n")
		for _, id := range fn.Args {
			v := m.Value(id)
			fmt.Fprintf(sb, "    %s: %s", valueRef(m, id), m.types.String(v.Type))
			dumpUsers(sb, v, opts)
			sb.WriteByte('\n')
		}
	}
	for _, bb := range fn.Blocks {
		label := bb.Label
		if label == "" {
			label = "_"
		}
		fmt.Fprintf(sb, "  bb%d %s:\n", bb.ID, label)
		for _, id := range bb.Instrs {
			v := m.Value(id)
			sb.WriteString("    ")
			if v == nil || v.Instr == nil {
				fmt.Fprintf(sb, "<bad %%v%d>\n", id)
				continue
			}
			if !m.types.IsVoid(v.Type) {
				sb.WriteString(valueRef(m, id))
				sb.WriteString(" = ")
			}
			dumpInstr(sb, m, v.Instr)
			dumpUsers(sb, v, opts)
			sb.WriteByte('\n')
		}
	}
}

func dumpInstr(sb *strings.Builder, m *Module, ins *Instr) {
	tin := m.types
	sb.WriteString(ins.Op.String())
	switch {
	case ins.Op == OpAlloca:
		fmt.Fprintf(sb, " %s", tin.String(ins.Alloca.Elem))
		if ins.Alloca.AddrSpace != 0 {
			fmt.Fprintf(sb, ", addrspace(%d)", ins.Alloca.AddrSpace)
		}
	case ins.Op == OpStore:
		fmt.Fprintf(sb, " %s, %s", typedRef(m, ins.Store.Val), typedRef(m, ins.Store.Ptr))
	case ins.Op == OpLoad:
		fmt.Fprintf(sb, " %s", typedRef(m, ins.Load.Ptr))
	case ins.Op.IsBinary():
		fmt.Fprintf(sb, " %s, %s", typedRef(m, ins.Binary.LHS), valueRef(m, ins.Binary.RHS))
	case ins.Op == OpRet:
		if ins.Return.HasValue {
			fmt.Fprintf(sb, " %s", typedRef(m, ins.Return.Value))
		} else {
			sb.WriteString(" void")
		}
	}
	if align := ins.Align(); align != 0 {
		fmt.Fprintf(sb, ", align %d", align)
	}
}

func dumpUsers(sb *strings.Builder, v *Value, opts DumpOptions) {
	if !opts.Users || v == nil {
		return
	}
	users := v.Users()
	parts := make([]string, len(users))
	for i, u := range users {
		parts[i] = "%v" + strconv.FormatUint(uint64(u), 10)
	}
	fmt.Fprintf(sb, "  ; users=[%s]", strings.Join(parts, " "))
}

func valueRef(m *Module, id ValueID) string {
	v := m.Value(id)
	ref := "%v" + strconv.FormatUint(uint64(id), 10)
	if v != nil && v.Name != "" {
		ref += "(" + v.Name + ")"
	}
	return ref
}

func typedRef(m *Module, id ValueID) string {
	v := m.Value(id)
	if v == nil {
		return valueRef(m, id)
	}
	return m.types.String(v.Type) + " " + valueRef(m, id)
}
