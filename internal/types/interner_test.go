package types

import "testing"

func TestInternerBuiltins(t *testing.T) {
	in := NewInterner()
	b := in.Builtins()
	if b.Void == NoTypeID || b.I32 == NoTypeID {
		t.Fatalf("builtins not initialized")
	}
	void, _ := in.Lookup(b.Void)
	if void.Kind != KindVoid {
		t.Fatalf("expected void kind, got %v", void.Kind)
	}
	if in.Int(32) != b.I32 {
		t.Fatalf("Int(32) should return the builtin i32")
	}
}

func TestInternerDeduplicatesDescriptors(t *testing.T) {
	in := NewInterner()
	tests := []struct {
		name string
		make func() TypeID
	}{
		{"int", func() TypeID { return in.Int(17) }},
		{"pointer", func() TypeID { return in.Pointer(in.Int(32), 0) }},
		{"pointer_addrspace", func() TypeID { return in.Pointer(in.Int(32), 5) }},
		{"pointer_to_pointer", func() TypeID { return in.Pointer(in.Pointer(in.Int(8), 0), 0) }},
		{"func", func() TypeID { return in.Func(in.Int(32), []TypeID{in.Int(32), in.Int(32)}, false) }},
		{"func_variadic", func() TypeID { return in.Func(in.Void(), []TypeID{in.Int(8)}, true) }},
		{"func_no_params", func() TypeID { return in.Func(in.Void(), nil, false) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first := tt.make()
			before := in.Len()
			second := tt.make()
			if first != second {
				t.Fatalf("expected identical TypeIDs, got %d and %d", first, second)
			}
			if in.Len() != before {
				t.Fatalf("interner grew on repeated request: %d -> %d", before, in.Len())
			}
		})
	}
}

func TestDistinctStructuresDiffer(t *testing.T) {
	in := NewInterner()
	i32 := in.Int(32)
	if in.Pointer(i32, 0) == in.Pointer(i32, 1) {
		t.Fatalf("address space must affect pointer identity")
	}
	if in.Func(i32, []TypeID{i32}, false) == in.Func(i32, []TypeID{i32}, true) {
		t.Fatalf("variadic flag must affect function identity")
	}
	if in.Func(i32, []TypeID{i32, i32}, false) == in.Func(i32, []TypeID{i32}, false) {
		t.Fatalf("parameter count must affect function identity")
	}
	if in.Int(32) == in.Int(64) {
		t.Fatalf("bit width must affect integer identity")
	}
}

func TestFuncInfoIsDetachedFromCaller(t *testing.T) {
	in := NewInterner()
	i32 := in.Int(32)
	params := []TypeID{i32, i32}
	fn := in.Func(i32, params, false)
	params[0] = in.Int(8)

	info, ok := in.FuncInfo(fn)
	if !ok {
		t.Fatalf("FuncInfo not found")
	}
	if info.Params[0] != i32 {
		t.Fatalf("caller mutation leaked into interned signature")
	}
	if in.Func(i32, []TypeID{i32, i32}, false) != fn {
		t.Fatalf("signature lookup broken after caller mutation")
	}
}

func TestTypeString(t *testing.T) {
	in := NewInterner()
	i32 := in.Int(32)
	tests := []struct {
		id   TypeID
		want string
	}{
		{i32, "i32"},
		{in.Void(), "void"},
		{in.Pointer(i32, 0), "i32*"},
		{in.Pointer(i32, 3), "i32 addrspace(3)*"},
		{in.Func(i32, []TypeID{i32, i32}, false), "i32 (i32, i32)"},
		{in.Func(in.Void(), []TypeID{in.Int(8)}, true), "void (i8, ...)"},
	}
	for _, tt := range tests {
		if got := in.String(tt.id); got != tt.want {
			t.Errorf("String(%d) = %q, want %q", tt.id, got, tt.want)
		}
	}
}

func TestZeroWidthPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic for zero-width integer")
		}
	}()
	NewInterner().Int(0)
}

func TestEqualAndFind(t *testing.T) {
	in := NewInterner()
	i16 := in.Int(16)
	if !in.Equal(i16, in.Int(16)) {
		t.Fatalf("identical requests must be Equal")
	}
	if in.Equal(i16, in.Int(17)) || in.Equal(TypeID(999), TypeID(999)) {
		t.Fatalf("unexpected equality")
	}
	if _, ok := in.Find(MakePointer(i16, 0)); ok {
		t.Fatalf("Find must not intern")
	}
	ptr := in.Pointer(i16, 0)
	if got, ok := in.Find(MakePointer(i16, 0)); !ok || got != ptr {
		t.Fatalf("Find = %d, %v; want %d", got, ok, ptr)
	}
	sig := in.Func(i16, []TypeID{ptr}, false)
	if got, ok := in.FindFunc(i16, []TypeID{ptr}, false); !ok || got != sig {
		t.Fatalf("FindFunc = %d, %v; want %d", got, ok, sig)
	}
	if _, ok := in.FindFunc(i16, []TypeID{ptr}, true); ok {
		t.Fatalf("variadic signature should not be found")
	}
}
