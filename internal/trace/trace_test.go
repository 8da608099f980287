package trace

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want Level
		ok   bool
	}{
		{"off", LevelOff, true},
		{"PHASE", LevelPhase, true},
		{" detail ", LevelDetail, true},
		{"debug", LevelDebug, true},
		{"verbose", LevelOff, false},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err == nil) != tt.ok || got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, %v", tt.in, got, err)
		}
	}
}

func TestLevelGatesScopes(t *testing.T) {
	if LevelPhase.ShouldEmit(ScopeModule) || !LevelPhase.ShouldEmit(ScopePass) {
		t.Fatalf("phase level should stop at passes")
	}
	if LevelDetail.ShouldEmit(ScopeFunc) || !LevelDebug.ShouldEmit(ScopeFunc) {
		t.Fatalf("functions are debug-only")
	}
	if LevelOff.ShouldEmit(ScopeDriver) {
		t.Fatalf("off emits nothing")
	}
}

func TestStreamTextNesting(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelDetail, FormatText)
	ctx := WithTracer(context.Background(), tr)

	ctx, build := Start(ctx, ScopePass, "build")
	_, mod := Start(ctx, ScopeModule, "target:default")
	mod.WithExtra("funcs", "1").WithExtra("bytes", "120").End("ok")
	Point(tr, ScopeFunc, "hidden", "", build.ID())
	build.End("")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("expected 4 lines, got %d:\n%s", len(lines), buf.String())
	}
	if !strings.Contains(lines[0], "] → build") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.Contains(lines[1], "]   → target:default") {
		t.Errorf("module span should be indented: %q", lines[1])
	}
	if !strings.Contains(lines[2], "← target:default (ok)") || !strings.HasSuffix(lines[2], "{bytes=120, funcs=1}") {
		t.Errorf("line 2 = %q", lines[2])
	}
	if !strings.Contains(lines[3], "] ← build [") {
		t.Errorf("line 3 = %q", lines[3])
	}
}

func TestStreamNDJSON(t *testing.T) {
	var buf bytes.Buffer
	tr := NewStreamTracer(&buf, LevelPhase, FormatNDJSON)
	span := Begin(tr, ScopePass, "verify", 0)
	span.End("2 findings")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", buf.String())
	}
	var ev map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &ev); err != nil {
		t.Fatalf("invalid JSON %q: %v", lines[1], err)
	}
	if ev["kind"] != "end" || ev["name"] != "verify" || ev["detail"] != "2 findings" || ev["scope"] != "pass" {
		t.Fatalf("unexpected event: %v", ev)
	}
}

func TestRingWrapsAndDumps(t *testing.T) {
	r := NewRingTracer(3, LevelDebug)
	for _, name := range []string{"a", "b", "c", "d", "e"} {
		Point(r, ScopeFunc, name, "", 0)
	}
	snap := r.Snapshot()
	if len(snap) != 3 || snap[0].Name != "c" || snap[2].Name != "e" {
		t.Fatalf("snapshot = %+v", snap)
	}
	var buf bytes.Buffer
	if err := r.Dump(&buf, FormatText); err != nil {
		t.Fatalf("Dump: %v", err)
	}
	if strings.Count(buf.String(), "\n") != 3 {
		t.Fatalf("dump = %q", buf.String())
	}
}

func TestNewAndRingLookup(t *testing.T) {
	tr, err := New(Config{Level: LevelOff})
	if err != nil || tr.Enabled() {
		t.Fatalf("off level should give Nop")
	}
	var buf bytes.Buffer
	tr, err = New(Config{Level: LevelPhase, Mode: ModeBoth, Output: &buf})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	Begin(tr, ScopeDriver, "irkit build", 0).End("")
	ring, ok := Ring(tr)
	if !ok || len(ring.Snapshot()) != 2 {
		t.Fatalf("ring not reachable through MultiTracer")
	}
	if buf.Len() == 0 {
		t.Fatalf("stream half wrote nothing")
	}
	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestInertSpans(t *testing.T) {
	span := Begin(Nop, ScopeDriver, "x", 0)
	if span.ID() != 0 || span.End("") != 0 {
		t.Fatalf("nop span should be inert")
	}
	ctx, s := Start(context.Background(), ScopePass, "y")
	if s.ID() != 0 || ParentID(ctx) != 0 {
		t.Fatalf("context without tracer should not carry spans")
	}
	if FromContext(context.TODO()) != Nop {
		t.Fatalf("FromContext default should be Nop")
	}
}
