package bitcode

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"irkit/internal/ir"
	"irkit/internal/types"
)

type decoder struct {
	data []byte
	off  int

	m      *ir.Module
	b      *ir.Builder
	types  []types.TypeID
	consts []ir.ValueID
}

// Decode parses a serialized module. The module is rebuilt through the ir
// builder, so every typing rule that applies to direct construction applies
// here too. Nothing is returned alongside an error.
func Decode(data []byte) (*ir.Module, error) {
	d := &decoder{data: data}
	if err := d.header(); err != nil {
		return nil, err
	}
	if err := d.moduleRecord(); err != nil {
		return nil, err
	}
	if err := d.typeTable(); err != nil {
		return nil, err
	}
	if err := d.constTable(); err != nil {
		return nil, err
	}
	if err := d.funcTable(); err != nil {
		return nil, err
	}
	if d.off != len(d.data) {
		return nil, d.fail("trailing bytes after function table (%d)", len(d.data)-d.off)
	}
	return d.m, nil
}

// Read consumes r to EOF and decodes it.
func Read(r io.Reader) (*ir.Module, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, &IOError{Op: "read", Err: err}
	}
	return Decode(data)
}

// ReadFile decodes the module stored at path.
func ReadFile(path string) (*ir.Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &IOError{Op: "read", Path: path, Err: err}
	}
	return Decode(data)
}

func (d *decoder) fail(format string, args ...any) *DecodeError {
	return &DecodeError{Offset: d.off, Reason: fmt.Sprintf(format, args...)}
}

func (d *decoder) wrap(err error, format string, args ...any) *DecodeError {
	return &DecodeError{Offset: d.off, Reason: fmt.Sprintf(format, args...), Err: err}
}

func (d *decoder) need(n int) error {
	if n < 0 || len(d.data)-d.off < n {
		return d.fail("truncated: need %d byte(s), have %d", n, len(d.data)-d.off)
	}
	return nil
}

func (d *decoder) u8() (uint8, error) {
	if err := d.need(1); err != nil {
		return 0, err
	}
	v := d.data[d.off]
	d.off++
	return v, nil
}

func (d *decoder) u32() (uint32, error) {
	if err := d.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(d.data[d.off:])
	d.off += 4
	return v, nil
}

func (d *decoder) u64() (uint64, error) {
	if err := d.need(8); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint64(d.data[d.off:])
	d.off += 8
	return v, nil
}

// count reads a table length and rejects values that could not possibly fit
// in the remaining input, given each entry takes at least minSize bytes.
func (d *decoder) count(minSize int) (int, error) {
	n, err := d.u32()
	if err != nil {
		return 0, err
	}
	if minSize > 0 && uint64(n)*uint64(minSize) > uint64(len(d.data)-d.off) {
		return 0, d.fail("count %d exceeds remaining input", n)
	}
	return int(n), nil
}

func (d *decoder) str() (string, error) {
	n, err := d.count(1)
	if err != nil {
		return "", err
	}
	if err := d.need(n); err != nil {
		return "", err
	}
	raw := d.data[d.off : d.off+n]
	if !utf8.Valid(raw) {
		return "", d.fail("string is not valid UTF-8")
	}
	d.off += n
	return string(raw), nil
}

func (d *decoder) flag() (bool, error) {
	v, err := d.u8()
	if err != nil {
		return false, err
	}
	switch v {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		d.off--
		return false, d.fail("flag byte %d is neither 0 nor 1", v)
	}
}

func (d *decoder) header() error {
	if err := d.need(len(Magic)); err != nil {
		return err
	}
	if !bytes.Equal(d.data[:len(Magic)], Magic[:]) {
		return d.fail("bad magic %q", d.data[:len(Magic)])
	}
	d.off += len(Magic)
	v, err := d.u32()
	if err != nil {
		return err
	}
	if !versionSupported(v) {
		d.off -= 4
		return d.fail("unsupported format version %s (reader supports %s)", VersionString(v), VersionString(FormatVersion))
	}
	return nil
}

func (d *decoder) moduleRecord() error {
	name, err := d.str()
	if err != nil {
		return err
	}
	dl, err := d.str()
	if err != nil {
		return err
	}
	triple, err := d.str()
	if err != nil {
		return err
	}
	d.m = ir.NewModule(name)
	d.b = ir.NewBuilder(d.m)
	// Empty target fields are legal on the wire: a module that never had a
	// target set round-trips without one.
	if dl != "" {
		if err := d.m.SetDataLayout(dl); err != nil {
			return d.wrap(err, "data layout")
		}
	}
	if triple != "" {
		if err := d.m.SetTargetTriple(triple); err != nil {
			return d.wrap(err, "target triple")
		}
	}
	return nil
}

func (d *decoder) typeRef() (types.TypeID, error) {
	idx, err := d.u32()
	if err != nil {
		return types.NoTypeID, err
	}
	if uint64(idx) >= uint64(len(d.types)) {
		d.off -= 4
		return types.NoTypeID, d.fail("type reference %d is not defined yet (%d known)", idx, len(d.types))
	}
	return d.types[idx], nil
}

func (d *decoder) typeTable() error {
	n, err := d.count(1)
	if err != nil {
		return err
	}
	tin := d.m.Types()
	d.types = make([]types.TypeID, 0, n)
	for range n {
		tag, err := d.u8()
		if err != nil {
			return err
		}
		var id types.TypeID
		switch tag {
		case tagVoid:
			id = tin.Void()
		case tagInt:
			w, err := d.u32()
			if err != nil {
				return err
			}
			if w == 0 {
				d.off -= 4
				return d.fail("integer type of width 0")
			}
			id = tin.Int(w)
		case tagPointer:
			elem, err := d.typeRef()
			if err != nil {
				return err
			}
			as, err := d.u32()
			if err != nil {
				return err
			}
			id = tin.Pointer(elem, as)
		case tagFunc:
			ret, err := d.typeRef()
			if err != nil {
				return err
			}
			np, err := d.count(4)
			if err != nil {
				return err
			}
			params := make([]types.TypeID, 0, np)
			for range np {
				p, err := d.typeRef()
				if err != nil {
					return err
				}
				params = append(params, p)
			}
			variadic, err := d.flag()
			if err != nil {
				return err
			}
			id = tin.Func(ret, params, variadic)
		default:
			d.off--
			return d.fail("unknown type tag %d", tag)
		}
		d.types = append(d.types, id)
	}
	return nil
}

func (d *decoder) constTable() error {
	n, err := d.count(12)
	if err != nil {
		return err
	}
	d.consts = make([]ir.ValueID, 0, n)
	for range n {
		ty, err := d.typeRef()
		if err != nil {
			return err
		}
		raw, err := d.u64()
		if err != nil {
			return err
		}
		id, err := d.m.ConstInt(ty, int64(raw)) //nolint:gosec // two's complement on the wire
		if err != nil {
			return d.wrap(err, "constant")
		}
		d.consts = append(d.consts, id)
	}
	return nil
}

func (d *decoder) funcTable() error {
	n, err := d.count(18)
	if err != nil {
		return err
	}
	for range n {
		if err := d.function(); err != nil {
			return err
		}
	}
	return nil
}

func (d *decoder) function() error {
	name, err := d.str()
	if err != nil {
		return err
	}
	sig, err := d.typeRef()
	if err != nil {
		return err
	}
	ccRaw, err := d.u8()
	if err != nil {
		return err
	}
	cc := ir.CallConv(ccRaw)
	if !cc.Known() {
		d.off--
		return d.fail("@%s: unknown calling convention %d", name, ccRaw)
	}
	linkRaw, err := d.u8()
	if err != nil {
		return err
	}
	linkage := ir.Linkage(linkRaw)
	if !linkage.Known() {
		d.off--
		return d.fail("@%s: unknown linkage %d", name, linkRaw)
	}
	fn, err := d.m.CreateFunction(name, sig, linkage, cc)
	if err != nil {
		return d.wrap(err, "function @%s", name)
	}

	// Constants, then arguments, then instructions.
	vals := make([]ir.ValueID, 0, len(d.consts)+len(fn.Args)+8)
	vals = append(vals, d.consts...)

	nargs, err := d.count(4)
	if err != nil {
		return err
	}
	if nargs != len(fn.Args) {
		return d.fail("@%s: %d argument(s) for a signature with %d parameter(s)", name, nargs, len(fn.Args))
	}
	for i := range nargs {
		argName, err := d.str()
		if err != nil {
			return err
		}
		if err := fn.SetArgName(i, argName); err != nil {
			return d.wrap(err, "@%s argument %d", name, i)
		}
		vals = append(vals, fn.Arg(i))
	}

	nblocks, err := d.count(8)
	if err != nil {
		return err
	}
	for range nblocks {
		label, err := d.str()
		if err != nil {
			return err
		}
		bb := fn.CreateBlock(label)
		d.b.SetInsertPoint(fn, bb)
		ninstrs, err := d.count(10)
		if err != nil {
			return err
		}
		for range ninstrs {
			id, err := d.instr(fn, vals)
			if err != nil {
				return err
			}
			vals = append(vals, id)
		}
	}
	return nil
}

func (d *decoder) valueRef(fn *ir.Func, vals []ir.ValueID) (ir.ValueID, error) {
	idx, err := d.u32()
	if err != nil {
		return ir.NoValueID, err
	}
	if uint64(idx) >= uint64(len(vals)) {
		d.off -= 4
		return ir.NoValueID, d.fail("@%s: operand %d is not defined yet (%d known)", fn.Name, idx, len(vals))
	}
	return vals[idx], nil
}

func (d *decoder) operands(fn *ir.Func, vals []ir.ValueID, dst []ir.ValueID) error {
	for i := range dst {
		v, err := d.valueRef(fn, vals)
		if err != nil {
			return err
		}
		dst[i] = v
	}
	return nil
}

func (d *decoder) instr(fn *ir.Func, vals []ir.ValueID) (ir.ValueID, error) {
	start := d.off
	raw, err := d.u8()
	if err != nil {
		return ir.NoValueID, err
	}
	op := ir.Opcode(raw)
	if !op.Known() {
		d.off--
		return ir.NoValueID, d.fail("@%s: unknown opcode %d", fn.Name, raw)
	}

	var (
		elem      types.TypeID
		addrSpace uint32
		hasValue  bool
		ops       [2]ir.ValueID
		align     uint32
	)
	switch {
	case op == ir.OpAlloca:
		if elem, err = d.typeRef(); err != nil {
			return ir.NoValueID, err
		}
		addrSpace, err = d.u32()
	case op == ir.OpStore, op.IsBinary():
		err = d.operands(fn, vals, ops[:2])
	case op == ir.OpLoad:
		err = d.operands(fn, vals, ops[:1])
	case op == ir.OpRet:
		if hasValue, err = d.flag(); err == nil && hasValue {
			err = d.operands(fn, vals, ops[:1])
		}
	}
	if err != nil {
		return ir.NoValueID, err
	}
	if op.HasAlign() {
		if align, err = d.u32(); err != nil {
			return ir.NoValueID, err
		}
	}
	resultT, err := d.typeRef()
	if err != nil {
		return ir.NoValueID, err
	}
	name, err := d.str()
	if err != nil {
		return ir.NoValueID, err
	}
	if (op == ir.OpStore || op == ir.OpRet) && name != "" {
		return ir.NoValueID, &DecodeError{Offset: start, Reason: fmt.Sprintf("@%s: %s cannot carry a name", fn.Name, op)}
	}

	var id ir.ValueID
	switch {
	case op == ir.OpAlloca:
		id, err = d.b.Alloca(elem, addrSpace, align, name)
	case op == ir.OpStore:
		id, err = d.b.Store(ops[0], ops[1], align)
	case op == ir.OpLoad:
		id, err = d.b.Load(ops[0], align, name)
	case op.IsBinary():
		id, err = d.b.Binary(op, ops[0], ops[1], name)
	case hasValue:
		id, err = d.b.Ret(ops[0])
	default:
		id, err = d.b.RetVoid()
	}
	if err != nil {
		return ir.NoValueID, &DecodeError{Offset: start, Reason: fmt.Sprintf("@%s: %s rejected", fn.Name, op), Err: err}
	}
	if got := d.m.Value(id).Type; got != resultT {
		tin := d.m.Types()
		return ir.NoValueID, &DecodeError{
			Offset: start,
			Reason: fmt.Sprintf("@%s: %s declares %s but its operands give %s", fn.Name, op, tin.String(resultT), tin.String(got)),
		}
	}
	return id, nil
}
