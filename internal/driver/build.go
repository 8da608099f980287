package driver

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"irkit/internal/backend/llvm"
	"irkit/internal/bitcode"
	"irkit/internal/cache"
	"irkit/internal/config"
	"irkit/internal/ir"
	"irkit/internal/observ"
	"irkit/internal/sample"
	"irkit/internal/trace"
	"irkit/internal/verify"
)

// BuildOptions controls one Build run. Zero values defer to the config.
type BuildOptions struct {
	Config *config.Config
	// Output replaces the bitcode path; only valid with a single target.
	Output string
	// EmitLLVM also writes <output stem>.ll next to each bitcode file.
	EmitLLVM bool
	// Jobs bounds concurrent target builds; 0 uses [build].jobs, then GOMAXPROCS.
	Jobs int
	// NoCache ignores [build].cache_dir.
	NoCache bool
	// Timer records per-target phases when set.
	Timer *observ.Timer
	// Progress receives per-target stage events when set.
	Progress ProgressSink
}

// TargetResult describes the artifacts of one target.
type TargetResult struct {
	Target     string
	Output     string
	LLVMOutput string
	Bytes      int
	Funcs      int
	Cached     bool
	Key        cache.Digest
	Err        error
}

// BuildResult lists target results in config order.
type BuildResult struct {
	Targets []TargetResult
}

// Failed reports whether any target failed.
func (r *BuildResult) Failed() bool {
	for i := range r.Targets {
		if r.Targets[i].Err != nil {
			return true
		}
	}
	return false
}

type targetJob struct {
	target config.TargetConfig
	output string
	llvm   bool
	specs  []sample.FuncSpec
	module string
	store  *cache.Disk
	timer  *observ.Timer
	sink   ProgressSink
}

// Build constructs, verifies and writes the module of every configured
// target. Targets build concurrently; a failing target does not stop the
// others, and the joined target errors are returned alongside the result.
func Build(ctx context.Context, opts BuildOptions) (*BuildResult, error) {
	cfg := opts.Config
	if cfg == nil {
		return nil, errors.New("build: no configuration")
	}
	if opts.Output != "" && len(cfg.Targets) > 1 {
		return nil, fmt.Errorf("build: -o needs a single target, config has %d", len(cfg.Targets))
	}
	specs, err := cfg.Specs()
	if err != nil {
		return nil, fmt.Errorf("build: %w", err)
	}

	var store *cache.Disk
	if !opts.NoCache {
		if store, err = cache.Open(cfg.CacheDir()); err != nil {
			return nil, fmt.Errorf("build: %w", err)
		}
	}

	jobs := opts.Jobs
	if jobs <= 0 {
		jobs = cfg.Build.Jobs
	}
	if jobs <= 0 {
		jobs = runtime.GOMAXPROCS(0)
	}

	ctx, span := trace.Start(ctx, trace.ScopePass, "build")
	defer span.End("")

	// Результаты: индекс уникален для каждой горутины, мьютекс не нужен
	res := &BuildResult{Targets: make([]TargetResult, len(cfg.Targets))}
	for _, t := range cfg.Targets {
		emit(opts.Progress, Event{Target: t.Name, Status: StatusQueued})
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(min(jobs, len(cfg.Targets)))
	for i, t := range cfg.Targets {
		job := &targetJob{
			target: t,
			output: cfg.OutputPath(t),
			llvm:   opts.EmitLLVM || cfg.Build.EmitLLVM,
			specs:  specs,
			module: cfg.Module.Name,
			store:  store,
			timer:  opts.Timer,
			sink:   opts.Progress,
		}
		if opts.Output != "" {
			job.output = opts.Output
		}
		g.Go(func() error {
			select {
			case <-gctx.Done():
				res.Targets[i] = TargetResult{Target: t.Name, Output: job.output, Err: gctx.Err()}
				emit(job.sink, Event{Target: t.Name, Status: StatusError, Err: gctx.Err()})
				return gctx.Err()
			default:
			}
			res.Targets[i] = job.run(gctx)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return res, err
	}

	var errs []error
	for i := range res.Targets {
		if res.Targets[i].Err != nil {
			errs = append(errs, res.Targets[i].Err)
		}
	}
	span.WithExtra("targets", strconv.Itoa(len(res.Targets))).WithExtra("failed", strconv.Itoa(len(errs)))
	return res, errors.Join(errs...)
}

func (j *targetJob) run(ctx context.Context) TargetResult {
	ctx, span := trace.Start(ctx, trace.ScopeModule, "target:"+j.target.Name)
	start := time.Now()
	res := j.build(ctx)
	if res.Err != nil {
		emit(j.sink, Event{Target: j.target.Name, Status: StatusError, Err: res.Err, Elapsed: time.Since(start)})
		span.End("failed")
		return res
	}
	emit(j.sink, Event{Target: j.target.Name, Stage: StageWrite, Status: StatusDone, Elapsed: time.Since(start)})
	span.WithExtra("bytes", strconv.Itoa(res.Bytes)).WithExtra("cached", strconv.FormatBool(res.Cached))
	span.End("ok")
	return res
}

func (j *targetJob) stage(stage Stage) {
	emit(j.sink, Event{Target: j.target.Name, Stage: stage, Status: StatusWorking})
}

func (j *targetJob) build(ctx context.Context) TargetResult {
	res := TargetResult{Target: j.target.Name, Output: j.output, Funcs: len(j.specs)}
	if j.llvm {
		res.LLVMOutput = LLVMPath(j.output)
	}

	j.stage(StageCache)
	key, err := cache.Key(j.cacheInput())
	if err != nil {
		res.Err = fmt.Errorf("target %q: %w", j.target.Name, err)
		return res
	}
	res.Key = key

	m, entry, err := j.resolve(ctx, key, &res)
	updated := false
	if err == nil {
		updated, err = j.write(ctx, m, entry, &res)
	}
	if err != nil {
		res.Err = fmt.Errorf("target %q: %w", j.target.Name, err)
		return res
	}
	if (!res.Cached || updated) && j.store != nil {
		// Ошибка кэша не должна ломать сборку.
		if putErr := j.store.Put(key, entry); putErr != nil {
			trace.Point(trace.FromContext(ctx), trace.ScopeModule, "cache:put", putErr.Error(), trace.ParentID(ctx))
		}
	}
	return res
}

// resolve returns the verified module for the target, from the cache when a
// valid entry exists. The returned entry is ready to be stored.
func (j *targetJob) resolve(ctx context.Context, key cache.Digest, res *TargetResult) (*ir.Module, *cache.Entry, error) {
	if entry, ok, err := j.store.Get(key); err != nil {
		trace.Point(trace.FromContext(ctx), trace.ScopeModule, "cache:get", err.Error(), trace.ParentID(ctx))
	} else if ok {
		m, decErr := bitcode.Decode(entry.Bitcode)
		if decErr == nil && verify.Module(m).Ok() {
			res.Cached = true
			return m, entry, nil
		}
		// Битая запись: собираем заново.
	}

	j.stage(StageConstruct)
	var m *ir.Module
	err := j.timer.Track("target:"+j.target.Name+"/construct", func() error {
		var err error
		m, err = j.construct(ctx)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	j.stage(StageVerify)
	err = j.timer.Track("target:"+j.target.Name+"/verify", func() error {
		_, span := trace.Start(ctx, trace.ScopePass, "verify")
		result := verify.Module(m)
		span.End(fmt.Sprintf("%d finding(s)", len(result.Findings)))
		return result.Err()
	})
	if err != nil {
		return nil, nil, err
	}
	data, err := bitcode.Encode(m)
	if err != nil {
		return nil, nil, err
	}
	entry := &cache.Entry{Module: j.module, Target: j.target.Name, Bitcode: data}
	return m, entry, nil
}

func (j *targetJob) construct(ctx context.Context) (*ir.Module, error) {
	m, err := sample.NewModule(j.module, j.target.Layout())
	if err != nil {
		return nil, err
	}
	tr := trace.FromContext(ctx)
	for _, spec := range j.specs {
		if _, err := sample.AddBinaryFunc(m, spec); err != nil {
			return nil, err
		}
		trace.Point(tr, trace.ScopeFunc, "func:"+spec.Name, spec.Op.String(), trace.ParentID(ctx))
	}
	return m, nil
}

// write stores the bitcode and, when requested, the LLVM text. updated
// reports that entry gained LLVM text it did not carry before.
func (j *targetJob) write(ctx context.Context, m *ir.Module, entry *cache.Entry, res *TargetResult) (updated bool, err error) {
	j.stage(StageWrite)
	err = j.timer.Track("target:"+j.target.Name+"/write", func() error {
		_, span := trace.Start(ctx, trace.ScopePass, "write")
		defer span.End(j.output)
		if err := os.MkdirAll(filepath.Dir(j.output), 0o755); err != nil {
			return &bitcode.IOError{Op: "mkdir", Path: j.output, Err: err}
		}
		if err := bitcode.WriteFile(j.output, m); err != nil {
			return err
		}
		res.Bytes = len(entry.Bitcode)
		if !j.llvm {
			return nil
		}
		text := entry.LLVM
		if text == "" {
			var err error
			if text, err = llvm.EmitModule(m); err != nil {
				return err
			}
			entry.LLVM = text
			updated = true
		}
		if err := os.WriteFile(res.LLVMOutput, []byte(text), 0o644); err != nil {
			return &bitcode.IOError{Op: "write", Path: res.LLVMOutput, Err: err}
		}
		return nil
	})
	return updated, err
}

func (j *targetJob) cacheInput() *cache.Input {
	in := &cache.Input{
		FormatVersion: bitcode.FormatVersion,
		Module:        j.module,
		Triple:        j.target.Triple,
		DataLayout:    j.target.DataLayout,
		Funcs:         make([]cache.FuncInput, 0, len(j.specs)),
	}
	for _, s := range j.specs {
		in.Funcs = append(in.Funcs, cache.FuncInput{
			Name:     s.Name,
			Op:       uint8(s.Op),
			Width:    s.Width,
			Linkage:  uint8(s.Linkage),
			CallConv: uint8(s.CallConv),
			Args:     s.ArgNames,
		})
	}
	return in
}

// LLVMPath is the .ll path written next to a bitcode output.
func LLVMPath(output string) string {
	return strings.TrimSuffix(output, filepath.Ext(output)) + ".ll"
}
