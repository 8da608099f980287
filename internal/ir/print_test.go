package ir_test

import (
	"strings"
	"testing"

	"irkit/internal/ir"
	"irkit/internal/layout"
	"irkit/internal/sample"
)

func TestDumpModuleSum(t *testing.T) {
	m, err := sample.Sum(layout.Default())
	if err != nil {
		t.Fatalf("sample.Sum: %v", err)
	}
	var sb strings.Builder
	if err := ir.DumpModule(&sb, m, ir.DumpOptions{Users: true}); err != nil {
		t.Fatalf("DumpModule: %v", err)
	}
	out := sb.String()
	for _, want := range []string{
		`module "sum.c"`,
		`triple = "x86_64-apple-macosx10.14.0"`,
		"define @sum: i32 (i32, i32) linkage=external cc=c",
		"bb0 entry:",
		"(a.addr) = alloca i32, align 4",
		"store i32 %v1(a), i32* %v",
		"(add) = add i32 %v",
		"ret i32 %v",
		"; users=[",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("dump missing %q:\n%s", want, out)
		}
	}
	if strings.Count(out, "load i32*") != 2 {
		t.Errorf("expected two loads:\n%s", out)
	}
}

func TestDumpDeclaration(t *testing.T) {
	m := ir.NewModule("decls")
	tin := m.Types()
	if _, err := m.CreateFunction("ext", tin.Func(tin.Void(), nil, true), ir.LinkageExternal, ir.CallConvCold); err != nil {
		t.Fatalf("CreateFunction: %v", err)
	}
	out := m.String()
	if !strings.Contains(out, "declare @ext: void (...) linkage=external cc=cold") {
		t.Fatalf("unexpected dump:\n%s", out)
	}
}
