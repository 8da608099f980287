package driver

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"irkit/internal/bitcode"
	"irkit/internal/config"
	"irkit/internal/ir"
	"irkit/internal/layout"
	"irkit/internal/observ"
	"irkit/internal/sample"
	"irkit/internal/testkit"
	"irkit/internal/trace"
	"irkit/internal/verify"
)

const twoTargets = `
[module]
name = "ops.c"
output = "out/ops.bc"

[[target]]
name = "mac"
triple = "x86_64-apple-macosx10.14.0"
datalayout = "e-m:o-i64:64-f80:128-n8:16:32:64-S128"

[[target]]
name = "gpu"
triple = "amdgcn-amd-amdhsa"
datalayout = "e-p:64:64-i64:64-n32:64-A5"

[[function]]
name = "sum"
op = "add"

[[function]]
name = "mul64"
op = "mul"
width = 64
linkage = "internal"
cc = "fastcc"
args = ["x", "y"]

[build]
jobs = 2
cache_dir = ".cache"
emit_llvm = true
`

func loadConfig(t *testing.T, body string) *config.Config {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, config.FileName)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	return cfg
}

func TestBuildDefaultEndToEnd(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default(dir)
	res, err := Build(context.Background(), BuildOptions{Config: cfg})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(res.Targets) != 1 || res.Failed() {
		t.Fatalf("result = %+v", res)
	}
	out := filepath.Join(dir, "sum.bc")
	if res.Targets[0].Output != out || res.Targets[0].Cached {
		t.Fatalf("target = %+v", res.Targets[0])
	}

	m, err := bitcode.ReadFile(out)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if r := verify.Module(m); !r.Ok() {
		t.Fatalf("written module fails verification: %v", r.Err())
	}
	if err := testkit.CheckModuleInvariants(m); err != nil {
		t.Fatalf("invariants: %v", err)
	}
	want, err := sample.Sum(layout.Default())
	if err != nil {
		t.Fatalf("Sum: %v", err)
	}
	if m.String() != want.String() {
		t.Fatalf("decoded module differs\nwant:\n%s\ngot:\n%s", want, m)
	}

	second := filepath.Join(dir, "again.bc")
	if _, err := Build(context.Background(), BuildOptions{Config: cfg, Output: second}); err != nil {
		t.Fatalf("second Build: %v", err)
	}
	a, _ := os.ReadFile(out)
	b, _ := os.ReadFile(second)
	if len(a) == 0 || !bytes.Equal(a, b) {
		t.Fatalf("two builds produced different bytes")
	}
}

func TestBuildTargetsWithCacheAndLLVM(t *testing.T) {
	cfg := loadConfig(t, twoTargets)
	var traced bytes.Buffer
	ctx := trace.WithTracer(context.Background(), trace.NewStreamTracer(&traced, trace.LevelDebug, trace.FormatText))
	timer := observ.NewTimer()

	first, err := Build(ctx, BuildOptions{Config: cfg, Timer: timer})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if first.Targets[0].Target != "mac" || first.Targets[1].Target != "gpu" {
		t.Fatalf("results out of config order: %+v", first.Targets)
	}
	if first.Targets[0].Key == first.Targets[1].Key {
		t.Fatalf("targets must not share a cache key")
	}
	gpu := first.Targets[1]
	if gpu.Output != filepath.Join(cfg.Root, "out", "ops.gpu.bc") || gpu.Funcs != 2 {
		t.Fatalf("gpu target = %+v", gpu)
	}
	ll, err := os.ReadFile(gpu.LLVMOutput)
	if err != nil {
		t.Fatalf("read %s: %v", gpu.LLVMOutput, err)
	}
	for _, want := range []string{`target triple = "amdgcn-amd-amdhsa"`, "addrspace(5)", "fastcc"} {
		if !strings.Contains(string(ll), want) {
			t.Errorf(".ll output lacks %q", want)
		}
	}
	m, err := bitcode.ReadFile(gpu.Output)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	fn, ok := m.Lookup("mul64")
	if !ok || fn.Linkage != ir.LinkageInternal || fn.CallConv != ir.CallConvFast {
		t.Fatalf("mul64 attributes = %+v", fn)
	}

	before, _ := os.ReadFile(gpu.Output)
	second, err := Build(ctx, BuildOptions{Config: cfg})
	if err != nil {
		t.Fatalf("second Build: %v", err)
	}
	for _, tr := range second.Targets {
		if !tr.Cached {
			t.Errorf("target %s should come from the cache", tr.Target)
		}
	}
	after, _ := os.ReadFile(gpu.Output)
	if !bytes.Equal(before, after) {
		t.Fatalf("cached build changed the output bytes")
	}

	if !strings.Contains(traced.String(), "target:gpu") || !strings.Contains(traced.String(), "func:mul64") {
		t.Fatalf("trace lacks target or function events:\n%s", traced.String())
	}
	if !strings.Contains(timer.Summary(), "target:mac/verify") {
		t.Fatalf("timer lacks verify phase:\n%s", timer.Summary())
	}
}

func TestBuildNoCacheRebuilds(t *testing.T) {
	cfg := loadConfig(t, twoTargets)
	for range 2 {
		res, err := Build(context.Background(), BuildOptions{Config: cfg, NoCache: true, Jobs: 1})
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		if res.Targets[0].Cached {
			t.Fatalf("NoCache build hit the cache")
		}
	}
	if _, err := os.Stat(filepath.Join(cfg.Root, ".cache")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("NoCache build created the cache dir: %v", err)
	}
}

func TestBuildOutputNeedsSingleTarget(t *testing.T) {
	cfg := loadConfig(t, twoTargets)
	if _, err := Build(context.Background(), BuildOptions{Config: cfg, Output: "x.bc"}); err == nil {
		t.Fatalf("expected -o to be rejected for two targets")
	}
	if _, err := Build(context.Background(), BuildOptions{}); err == nil {
		t.Fatalf("expected an error without config")
	}
}

func TestBuildUnwritableOutput(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	res, err := Build(context.Background(), BuildOptions{
		Config: config.Default(dir),
		Output: filepath.Join(blocker, "sum.bc"),
	})
	if err == nil || !errors.Is(err, bitcode.ErrIO) {
		t.Fatalf("expected an I/O error, got %v", err)
	}
	if !res.Failed() || res.Targets[0].Err == nil {
		t.Fatalf("failure not recorded per target: %+v", res.Targets)
	}
}

type recordingSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *recordingSink) OnEvent(evt Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
}

func (s *recordingSink) forTarget(name string) []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Event
	for _, evt := range s.events {
		if evt.Target == name {
			out = append(out, evt)
		}
	}
	return out
}

func TestBuildReportsProgress(t *testing.T) {
	cfg := loadConfig(t, twoTargets)
	sink := &recordingSink{}
	if _, err := Build(context.Background(), BuildOptions{Config: cfg, NoCache: true, Progress: sink}); err != nil {
		t.Fatalf("Build: %v", err)
	}
	for _, name := range []string{"mac", "gpu"} {
		events := sink.forTarget(name)
		var stages []string
		for _, evt := range events {
			stages = append(stages, string(evt.Status)+":"+string(evt.Stage))
		}
		got := strings.Join(stages, " ")
		want := "queued: working:cache working:construct working:verify working:write done:write"
		if got != want {
			t.Errorf("%s events = %q, want %q", name, got, want)
		}
	}

	sink = &recordingSink{}
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	if err := os.WriteFile(blocker, nil, 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	_, _ = Build(context.Background(), BuildOptions{Config: config.Default(dir), Output: filepath.Join(blocker, "x.bc"), Progress: sink})
	events := sink.forTarget(config.DefaultTargetName)
	if last := events[len(events)-1]; last.Status != StatusError || last.Err == nil {
		t.Fatalf("last event = %+v", last)
	}
}

func TestLLVMPath(t *testing.T) {
	tests := map[string]string{
		"sum.bc":         "sum.ll",
		"out/ops.gpu.bc": "out/ops.gpu.ll",
		"noext":          "noext.ll",
	}
	for in, want := range tests {
		if got := LLVMPath(in); got != want {
			t.Errorf("LLVMPath(%q) = %q, want %q", in, got, want)
		}
	}
}
