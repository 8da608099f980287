package bitcode_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"irkit/internal/bitcode"
	"irkit/internal/ir"
	"irkit/internal/layout"
	"irkit/internal/sample"
	"irkit/internal/testkit"
	"irkit/internal/types"
	"irkit/internal/verify"
)

func mustSum(t *testing.T) *ir.Module {
	t.Helper()
	m, err := sample.Sum(layout.Default())
	if err != nil {
		t.Fatalf("sample.Sum: %v", err)
	}
	return m
}

func mustEncode(t *testing.T, m *ir.Module) []byte {
	t.Helper()
	data, err := bitcode.Encode(m)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	return data
}

// mixedModule exercises every opcode, attribute and table kind.
func mixedModule(t *testing.T) *ir.Module {
	t.Helper()
	m, err := sample.NewModule("mixed", layout.Target{
		Triple:     "amdgcn-amd-amdhsa",
		DataLayout: "e-p:64:64-A5-i64:64-n32:64-S32",
	})
	if err != nil {
		t.Fatalf("NewModule: %v", err)
	}
	for op := ir.OpAdd; op <= ir.OpAShr; op++ {
		spec := sample.FuncSpec{Name: "f_" + op.String(), Op: op, Width: 16, Linkage: ir.LinkageInternal, CallConv: ir.CallConvFast}
		if _, err := sample.AddBinaryFunc(m, spec); err != nil {
			t.Fatalf("AddBinaryFunc(%s): %v", op, err)
		}
	}
	tin := m.Types()
	i64 := tin.Int(64)
	seven, err := m.ConstInt(i64, 7)
	if err != nil {
		t.Fatalf("ConstInt: %v", err)
	}
	if _, err := m.ConstInt(tin.Int(8), -1); err != nil {
		t.Fatalf("ConstInt: %v", err)
	}
	fn, err := m.CreateFunction("seven", tin.Func(i64, []types.TypeID{i64}, false), ir.LinkagePrivate, ir.CallConvCold)
	if err != nil {
		t.Fatalf("CreateFunction: %v", err)
	}
	b := ir.NewBuilder(m)
	b.SetInsertPoint(fn, fn.CreateBlock("entry"))
	x, err := b.Mul(fn.Arg(0), seven, "x")
	if err != nil {
		t.Fatalf("Mul: %v", err)
	}
	if _, err := b.Ret(x); err != nil {
		t.Fatalf("Ret: %v", err)
	}
	void, err := m.CreateFunction("noop", tin.Func(tin.Void(), nil, false), ir.LinkageExternal, ir.CallConvC)
	if err != nil {
		t.Fatalf("CreateFunction: %v", err)
	}
	b.SetInsertPoint(void, void.CreateBlock("entry"))
	if _, err := b.RetVoid(); err != nil {
		t.Fatalf("RetVoid: %v", err)
	}
	if _, err := m.CreateFunction("printf", tin.Func(tin.Int(32), []types.TypeID{tin.Pointer(tin.Int(8), 0)}, true), ir.LinkageExternal, ir.CallConvC); err != nil {
		t.Fatalf("CreateFunction: %v", err)
	}
	return m
}

func TestSumRoundTrip(t *testing.T) {
	m := mustSum(t)
	data := mustEncode(t, m)
	if !bytes.HasPrefix(data, []byte("IKBC")) {
		t.Fatalf("missing magic: % x", data[:8])
	}
	got, err := bitcode.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if got.String() != m.String() {
		t.Fatalf("round trip mismatch\nwant:\n%s\ngot:\n%s", m, got)
	}
	if res := verify.Module(got); !res.Ok() {
		t.Fatalf("decoded module fails verification: %v", res.Err())
	}
	if err := testkit.CheckModuleInvariants(got); err != nil {
		t.Fatalf("decoded module breaks invariants: %v", err)
	}
	if again := mustEncode(t, got); !bytes.Equal(again, data) {
		t.Fatalf("re-encoding the decoded module changed the bytes")
	}
}

func TestMixedRoundTrip(t *testing.T) {
	m := mixedModule(t)
	if res := verify.Module(m); !res.Ok() {
		t.Fatalf("fixture fails verification: %v", res.Err())
	}
	data := mustEncode(t, m)
	got, err := bitcode.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	// Constants are renumbered ahead of functions on decode, so compare the
	// canonical encoding rather than the dump.
	if !bytes.Equal(mustEncode(t, got), data) {
		t.Fatalf("re-encoding the decoded module changed the bytes")
	}
	fn, ok := got.Lookup("f_shl")
	if !ok || fn.Linkage != ir.LinkageInternal || fn.CallConv != ir.CallConvFast {
		t.Fatalf("attributes lost: %+v", fn)
	}
	slot := got.Value(fn.Blocks[0].Instrs[0])
	if slot.Instr.Alloca.AddrSpace != 5 || slot.Instr.Alloca.Align != 2 {
		t.Fatalf("alloca lost address space or alignment: %+v", slot.Instr.Alloca)
	}
	printf, _ := got.Lookup("printf")
	if info, _ := got.Types().FuncInfo(printf.Sig); info == nil || !info.Variadic {
		t.Fatalf("variadic flag lost")
	}
}

func TestEncodeIsDeterministic(t *testing.T) {
	a := mustEncode(t, mustSum(t))
	b := mustEncode(t, mustSum(t))
	if !bytes.Equal(a, b) {
		t.Fatalf("independent builds encode differently")
	}
}

func TestEncodeRejectsForeignOperand(t *testing.T) {
	m := mustSum(t)
	sum, _ := m.Lookup("sum")
	tin := m.Types()
	other, err := m.CreateFunction("other", tin.Func(tin.Int(32), nil, false), ir.LinkageExternal, ir.CallConvC)
	if err != nil {
		t.Fatalf("CreateFunction: %v", err)
	}
	b := ir.NewBuilder(m)
	b.SetInsertPoint(other, other.CreateBlock("entry"))
	if _, err := b.Ret(sum.Arg(0)); err != nil {
		t.Fatalf("Ret: %v", err)
	}
	_, err = bitcode.Encode(m)
	if !errors.Is(err, bitcode.ErrUnencodable) {
		t.Fatalf("expected ErrUnencodable, got %v", err)
	}
}

// stream assembles hand-made inputs for the decoder.
type stream struct{ buf []byte }

func (s *stream) u8(v uint8) *stream {
	s.buf = append(s.buf, v)
	return s
}

func (s *stream) u32(v uint32) *stream {
	s.buf = binary.LittleEndian.AppendUint32(s.buf, v)
	return s
}

func (s *stream) u64(v uint64) *stream {
	s.buf = binary.LittleEndian.AppendUint64(s.buf, v)
	return s
}

func (s *stream) str(v string) *stream {
	s.u32(uint32(len(v)))
	s.buf = append(s.buf, v...)
	return s
}

// prelude writes a header and a module whose type table is
// [void, i32, i32 ()] and whose constant table holds i32 7.
func prelude(version uint32) *stream {
	s := &stream{}
	s.buf = append(s.buf, "IKBC"...)
	s.u32(version)
	s.str("m").str("").str("")
	s.u32(3)
	s.u8(0)
	s.u8(1).u32(32)
	s.u8(3).u32(1).u32(0).u8(0)
	s.u32(1).u32(1).u64(7)
	return s
}

// retFunc appends one function `f` whose single block holds one instruction
// assembled by body.
func retFunc(s *stream, body func(*stream)) []byte {
	s.u32(1)
	s.str("f").u32(2).u8(0).u8(0)
	s.u32(0)
	s.u32(1).str("entry").u32(1)
	body(s)
	return s.buf
}

func TestDecodeHandAssembled(t *testing.T) {
	data := retFunc(prelude(bitcode.FormatVersion), func(s *stream) {
		s.u8(uint8(ir.OpRet)).u8(1).u32(0).u32(0).str("")
	})
	m, err := bitcode.Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if res := verify.Module(m); !res.Ok() {
		t.Fatalf("decoded module fails verification: %v", res.Err())
	}
}

func TestDecodeRejects(t *testing.T) {
	good := func(s *stream) { s.u8(uint8(ir.OpRet)).u8(1).u32(0).u32(0).str("") }
	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"bad magic", append([]byte("IKBX"), retFunc(prelude(bitcode.FormatVersion), good)[4:]...)},
		{"newer minor", retFunc(prelude(bitcode.FormatVersion+1), good)},
		{"newer major", retFunc(prelude(2<<16), good)},
		{"trailing byte", append(retFunc(prelude(bitcode.FormatVersion), good), 0)},
		{"unknown opcode", retFunc(prelude(bitcode.FormatVersion), func(s *stream) {
			s.u8(200).u8(1).u32(0).u32(0).str("")
		})},
		{"forward operand", retFunc(prelude(bitcode.FormatVersion), func(s *stream) {
			s.u8(uint8(ir.OpRet)).u8(1).u32(1).u32(0).str("")
		})},
		{"result type mismatch", retFunc(prelude(bitcode.FormatVersion), func(s *stream) {
			s.u8(uint8(ir.OpRet)).u8(1).u32(0).u32(1).str("")
		})},
		{"bad flag", retFunc(prelude(bitcode.FormatVersion), func(s *stream) {
			s.u8(uint8(ir.OpRet)).u8(2).u32(0).u32(0).str("")
		})},
		{"void ret in i32 function", retFunc(prelude(bitcode.FormatVersion), func(s *stream) {
			s.u8(uint8(ir.OpRet)).u8(0).u32(0).str("")
		})},
		{"named ret", retFunc(prelude(bitcode.FormatVersion), func(s *stream) {
			s.u8(uint8(ir.OpRet)).u8(1).u32(0).u32(0).str("r")
		})},
		{"invalid utf-8", func() []byte {
			s := &stream{}
			s.buf = append(s.buf, "IKBC"...)
			s.u32(bitcode.FormatVersion)
			s.str("\xff\xfe")
			return s.buf
		}()},
		{"forward type reference", func() []byte {
			s := &stream{}
			s.buf = append(s.buf, "IKBC"...)
			s.u32(bitcode.FormatVersion)
			s.str("m").str("").str("")
			s.u32(2)
			s.u8(2).u32(1).u32(0)
			s.u8(1).u32(32)
			return s.buf
		}()},
		{"zero width", func() []byte {
			s := &stream{}
			s.buf = append(s.buf, "IKBC"...)
			s.u32(bitcode.FormatVersion)
			s.str("m").str("").str("")
			s.u32(1).u8(1).u32(0)
			return s.buf
		}()},
		{"unknown calling convention", func() []byte {
			s := prelude(bitcode.FormatVersion)
			s.u32(1).str("f").u32(2).u8(77).u8(0).u32(0).u32(0)
			return s.buf
		}()},
		{"argument count mismatch", func() []byte {
			s := prelude(bitcode.FormatVersion)
			s.u32(1).str("f").u32(2).u8(0).u8(0).u32(1).str("a").u32(0)
			return s.buf
		}()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := bitcode.Decode(tt.data)
			if err == nil {
				t.Fatalf("expected error")
			}
			if m != nil {
				t.Fatalf("module returned alongside error")
			}
			if !errors.Is(err, bitcode.ErrDecode) {
				t.Fatalf("expected ErrDecode, got %v", err)
			}
		})
	}
}

func TestDecodeEveryTruncation(t *testing.T) {
	data := mustEncode(t, mustSum(t))
	for n := range len(data) {
		if _, err := bitcode.Decode(data[:n]); !errors.Is(err, bitcode.ErrDecode) {
			t.Fatalf("prefix of %d bytes: expected ErrDecode, got %v", n, err)
		}
	}
}

func TestWriteFileAndReadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sum.bc")
	m := mustSum(t)
	if err := bitcode.WriteFile(path, m); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := bitcode.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if got.String() != m.String() {
		t.Fatalf("file round trip mismatch")
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("temporary files left behind: %v", entries)
	}
}

func TestWriteFileFailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "missing", "sum.bc")
	err := bitcode.WriteFile(path, mustSum(t))
	if !errors.Is(err, bitcode.ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}
	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Fatalf("output committed despite failure")
	}
}

func TestWriteFileUnencodableLeavesExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sum.bc")
	if err := os.WriteFile(path, []byte("old"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	err := bitcode.WriteFile(path, nil)
	if !errors.Is(err, bitcode.ErrUnencodable) {
		t.Fatalf("expected ErrUnencodable, got %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "old" {
		t.Fatalf("existing file overwritten: %q", data)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestWriteSinkFailure(t *testing.T) {
	if err := bitcode.Write(failingWriter{}, mustSum(t)); !errors.Is(err, bitcode.ErrIO) {
		t.Fatalf("expected ErrIO, got %v", err)
	}
}

func TestVersionString(t *testing.T) {
	if got := bitcode.VersionString(bitcode.FormatVersion); got != "1.0" {
		t.Fatalf("VersionString = %q", got)
	}
}
