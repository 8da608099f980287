package layout

import (
	"errors"
	"strconv"
	"testing"
)

func TestParseDefaultDataLayout(t *testing.T) {
	dl, err := Default().Parse()
	if err != nil {
		t.Fatalf("parse default layout: %v", err)
	}
	if dl.BigEndian {
		t.Errorf("expected little endian")
	}
	if dl.Mangling != "o" {
		t.Errorf("mangling = %q, want %q", dl.Mangling, "o")
	}
	if dl.AllocaAddrSpace != 0 {
		t.Errorf("alloca address space = %d, want 0", dl.AllocaAddrSpace)
	}
	if dl.StackAlignBits != 128 {
		t.Errorf("stack align = %d, want 128", dl.StackAlignBits)
	}
	if got := dl.IntAlign(32); got != 4 {
		t.Errorf("IntAlign(32) = %d, want 4", got)
	}
	if got := dl.IntAlign(64); got != 8 {
		t.Errorf("IntAlign(64) = %d, want 8 (explicit i64:64)", got)
	}
	if len(dl.NativeWidths) != 4 {
		t.Errorf("native widths = %v", dl.NativeWidths)
	}
}

func TestParseDataLayoutComponents(t *testing.T) {
	tests := []struct {
		layout  string
		allocAS uint32
		ptrBits uint32
		big     bool
	}{
		{"E-A5-p:32:32", 5, 32, true},
		{"e-p:64:64-A0", 0, 64, false},
		{"e-p1:32:32-p:16:16", 0, 16, false},
		{X86_64LinuxGNU().DataLayout, 0, 64, false},
	}
	for _, tt := range tests {
		t.Run(tt.layout, func(t *testing.T) {
			dl, err := ParseDataLayout(tt.layout)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if dl.AllocaAddrSpace != tt.allocAS {
				t.Errorf("alloca address space = %d, want %d", dl.AllocaAddrSpace, tt.allocAS)
			}
			if dl.PointerBits != tt.ptrBits {
				t.Errorf("pointer bits = %d, want %d", dl.PointerBits, tt.ptrBits)
			}
			if dl.BigEndian != tt.big {
				t.Errorf("big endian = %v, want %v", dl.BigEndian, tt.big)
			}
		})
	}
}

func TestIntAlignFallsBackToNextLargerWidth(t *testing.T) {
	dl, err := ParseDataLayout("e")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	// i24 uses the i32 entry, i128 the largest (i64 default: 32 bits).
	if got := dl.IntAlign(24); got != 4 {
		t.Errorf("IntAlign(24) = %d, want 4", got)
	}
	if got := dl.IntAlign(128); got != 4 {
		t.Errorf("IntAlign(128) = %d, want 4", got)
	}
	if got := dl.IntAlign(1); got != 1 {
		t.Errorf("IntAlign(1) = %d, want 1", got)
	}
}

func TestParseDataLayoutErrors(t *testing.T) {
	tests := []struct {
		layout string
		kind   LayoutErrorKind
	}{
		{"", LayoutErrEmpty},
		{"   ", LayoutErrEmpty},
		{"e-Q9", LayoutErrUnknownSpec},
		{"e-Ax", LayoutErrBadNumber},
		{"e-i32", LayoutErrUnknownSpec},
		{"e-n8:sixteen", LayoutErrBadNumber},
	}
	for _, tt := range tests {
		t.Run(tt.layout, func(t *testing.T) {
			_, err := ParseDataLayout(tt.layout)
			var lerr *LayoutError
			if !errors.As(err, &lerr) {
				t.Fatalf("expected *LayoutError, got %v", err)
			}
			if lerr.Kind != tt.kind {
				t.Fatalf("kind = %d, want %d (%v)", lerr.Kind, tt.kind, err)
			}
		})
	}
}

func TestBadNumberUnwraps(t *testing.T) {
	_, err := ParseDataLayout("e-S12x")
	var numErr *strconv.NumError
	if !errors.As(err, &numErr) {
		t.Fatalf("expected wrapped *strconv.NumError, got %v", err)
	}
}
