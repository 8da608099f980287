package bitcode

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"fortio.org/safecast"

	"irkit/internal/ir"
	"irkit/internal/types"
)

type encoder struct {
	m   *ir.Module
	buf []byte
}

// Encode serializes m. The same module always encodes to the same bytes.
func Encode(m *ir.Module) ([]byte, error) {
	if m == nil {
		return nil, &EncodeError{Reason: "nil module"}
	}
	e := &encoder{m: m, buf: make([]byte, 0, 512)}
	e.buf = append(e.buf, Magic[:]...)
	e.u32(FormatVersion)
	if err := e.moduleRecord(); err != nil {
		return nil, err
	}
	if err := e.typeTable(); err != nil {
		return nil, err
	}
	if err := e.constTable(); err != nil {
		return nil, err
	}
	if err := e.funcTable(); err != nil {
		return nil, err
	}
	return e.buf, nil
}

// Write serializes m to w.
func Write(w io.Writer, m *ir.Module) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return &IOError{Op: "write", Err: err}
	}
	return nil
}

// WriteFile serializes m to path through a temporary file in the same
// directory that is renamed over path only after a complete, synced write.
func WriteFile(path string, m *ir.Module) error {
	data, err := Encode(m)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return &IOError{Op: "create", Path: path, Err: err}
	}
	tmp := f.Name()
	committed := false
	defer func() {
		if !committed {
			_ = f.Close()
			_ = os.Remove(tmp)
		}
	}()
	if _, err := f.Write(data); err != nil {
		return &IOError{Op: "write", Path: path, Err: err}
	}
	if err := f.Sync(); err != nil {
		return &IOError{Op: "sync", Path: path, Err: err}
	}
	if err := f.Close(); err != nil {
		return &IOError{Op: "close", Path: path, Err: err}
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		return &IOError{Op: "chmod", Path: path, Err: err}
	}
	// Атомарная замена
	if err := os.Rename(tmp, path); err != nil {
		return &IOError{Op: "rename", Path: path, Err: err}
	}
	committed = true
	return nil
}

func (e *encoder) u8(v uint8) {
	e.buf = append(e.buf, v)
}

func (e *encoder) u32(v uint32) {
	e.buf = binary.LittleEndian.AppendUint32(e.buf, v)
}

func (e *encoder) u64(v uint64) {
	e.buf = binary.LittleEndian.AppendUint64(e.buf, v)
}

func (e *encoder) count(n int) error {
	v, err := safecast.Conv[uint32](n)
	if err != nil {
		return &EncodeError{Reason: fmt.Sprintf("count %d overflows u32: %v", n, err)}
	}
	e.u32(v)
	return nil
}

func (e *encoder) str(s string) error {
	if err := e.count(len(s)); err != nil {
		return err
	}
	e.buf = append(e.buf, s...)
	return nil
}

func (e *encoder) moduleRecord() error {
	for _, s := range []string{e.m.Name, e.m.DataLayout, e.m.TargetTriple} {
		if err := e.str(s); err != nil {
			return err
		}
	}
	return nil
}

// typeIndex maps a TypeID to its table position. The table is the interner
// in insertion order minus the invalid sentinel, which already respects
// dependencies.
func (e *encoder) typeIndex(id types.TypeID) (uint32, error) {
	if !e.m.Types().Valid(id) {
		return 0, &EncodeError{Reason: fmt.Sprintf("unknown type#%d", id)}
	}
	return uint32(id) - 1, nil
}

func (e *encoder) typeTable() error {
	tin := e.m.Types()
	if err := e.count(tin.Len() - 1); err != nil {
		return err
	}
	for i := 1; i < tin.Len(); i++ {
		id := types.TypeID(i) //nolint:gosec // bounded by the interner
		tt := tin.MustLookup(id)
		switch tt.Kind {
		case types.KindVoid:
			e.u8(tagVoid)
		case types.KindInt:
			e.u8(tagInt)
			e.u32(tt.Width)
		case types.KindPointer:
			elem, err := e.typeIndex(tt.Elem)
			if err != nil {
				return err
			}
			e.u8(tagPointer)
			e.u32(elem)
			e.u32(tt.AddrSpace)
		case types.KindFunc:
			info, _ := tin.FuncInfo(id)
			ret, err := e.typeIndex(info.Result)
			if err != nil {
				return err
			}
			e.u8(tagFunc)
			e.u32(ret)
			if err := e.count(len(info.Params)); err != nil {
				return err
			}
			for _, p := range info.Params {
				pi, err := e.typeIndex(p)
				if err != nil {
					return err
				}
				e.u32(pi)
			}
			if info.Variadic {
				e.u8(1)
			} else {
				e.u8(0)
			}
		default:
			return &EncodeError{Reason: fmt.Sprintf("type#%d has kind %s", id, tt.Kind)}
		}
	}
	return nil
}

func (e *encoder) constTable() error {
	consts := e.m.Consts()
	if err := e.count(len(consts)); err != nil {
		return err
	}
	for _, id := range consts {
		v := e.m.Value(id)
		ti, err := e.typeIndex(v.Type)
		if err != nil {
			return err
		}
		e.u32(ti)
		e.u64(uint64(v.IntValue)) //nolint:gosec // two's complement on the wire
	}
	return nil
}

func (e *encoder) funcTable() error {
	funcs := e.m.Funcs()
	if err := e.count(len(funcs)); err != nil {
		return err
	}
	for _, fn := range funcs {
		if err := e.function(fn); err != nil {
			return err
		}
	}
	return nil
}

// funcValues assigns wire indices to the values visible inside one function.
type funcValues struct {
	fn    *ir.Func
	index map[ir.ValueID]uint32
	next  uint32
}

func (fv *funcValues) define(id ir.ValueID) {
	fv.index[id] = fv.next
	fv.next++
}

func (fv *funcValues) ref(id ir.ValueID) (uint32, error) {
	idx, ok := fv.index[id]
	if !ok {
		return 0, &EncodeError{Func: fv.fn.Name, Reason: fmt.Sprintf("operand %%v%d is unknown, foreign or not yet defined", id)}
	}
	return idx, nil
}

func (e *encoder) function(fn *ir.Func) error {
	if err := e.str(fn.Name); err != nil {
		return err
	}
	sig, err := e.typeIndex(fn.Sig)
	if err != nil {
		return err
	}
	e.u32(sig)
	e.u8(uint8(fn.CallConv))
	e.u8(uint8(fn.Linkage))

	fv := &funcValues{fn: fn, index: make(map[ir.ValueID]uint32)}
	for _, id := range e.m.Consts() {
		fv.define(id)
	}
	if err := e.count(len(fn.Args)); err != nil {
		return err
	}
	for _, id := range fn.Args {
		v := e.m.Value(id)
		if v == nil {
			return &EncodeError{Func: fn.Name, Reason: fmt.Sprintf("argument %%v%d is unknown", id)}
		}
		if err := e.str(v.Name); err != nil {
			return err
		}
		fv.define(id)
	}
	if err := e.count(len(fn.Blocks)); err != nil {
		return err
	}
	for _, bb := range fn.Blocks {
		if err := e.str(bb.Label); err != nil {
			return err
		}
		if err := e.count(len(bb.Instrs)); err != nil {
			return err
		}
		for _, id := range bb.Instrs {
			if err := e.instr(fv, id); err != nil {
				return err
			}
			fv.define(id)
		}
	}
	return nil
}

func (e *encoder) instr(fv *funcValues, id ir.ValueID) error {
	v := e.m.Value(id)
	if v == nil || v.Instr == nil {
		return &EncodeError{Func: fv.fn.Name, Reason: fmt.Sprintf("%%v%d is not an instruction", id)}
	}
	ins := v.Instr
	if !ins.Op.Known() {
		return &EncodeError{Func: fv.fn.Name, Reason: fmt.Sprintf("unknown opcode %s", ins.Op)}
	}
	e.u8(uint8(ins.Op))
	switch ins.Op {
	case ir.OpAlloca:
		elem, err := e.typeIndex(ins.Alloca.Elem)
		if err != nil {
			return err
		}
		e.u32(elem)
		e.u32(ins.Alloca.AddrSpace)
	case ir.OpRet:
		if ins.Return.HasValue {
			e.u8(1)
		} else {
			e.u8(0)
		}
	}
	for _, op := range ins.Operands() {
		idx, err := fv.ref(op)
		if err != nil {
			return err
		}
		e.u32(idx)
	}
	if ins.Op.HasAlign() {
		e.u32(ins.Align())
	}
	rt, err := e.typeIndex(v.Type)
	if err != nil {
		return err
	}
	e.u32(rt)
	return e.str(v.Name)
}
