package driver

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"irkit/internal/backend/llvm"
	"irkit/internal/bitcode"
	"irkit/internal/ir"
	"irkit/internal/trace"
	"irkit/internal/verify"
)

// Inspection is a decoded bitcode file together with its verification
// result.
type Inspection struct {
	Path   string
	Module *ir.Module
	Result verify.Result
}

// Inspect reads path and verifies the decoded module. Decode and I/O
// failures are returned as errors; verifier findings are reported in the
// result.
func Inspect(ctx context.Context, path string) (*Inspection, error) {
	ctx, span := trace.Start(ctx, trace.ScopePass, "inspect")
	m, err := bitcode.ReadFile(path)
	if err != nil {
		span.End("failed")
		return nil, err
	}
	_, vspan := trace.Start(ctx, trace.ScopePass, "verify")
	res := verify.Module(m)
	vspan.WithExtra("findings", strconv.Itoa(len(res.Findings))).End("")
	span.End(path)
	return &Inspection{Path: path, Module: m, Result: res}, nil
}

// DumpFormat selects the dump rendering.
type DumpFormat uint8

const (
	DumpText DumpFormat = iota
	DumpLLVM
)

// ParseDumpFormat parses "text" or "llvm".
func ParseDumpFormat(s string) (DumpFormat, error) {
	switch s {
	case "", "text":
		return DumpText, nil
	case "llvm", "ll":
		return DumpLLVM, nil
	default:
		return DumpText, fmt.Errorf("unknown dump format %q (want text or llvm)", s)
	}
}

// Dump renders the inspected module. LLVM output requires a module that
// passed verification.
func (in *Inspection) Dump(w io.Writer, format DumpFormat, users bool) error {
	switch format {
	case DumpLLVM:
		if err := in.Result.Err(); err != nil {
			return err
		}
		return llvm.WriteModule(w, in.Module)
	default:
		return ir.DumpModule(w, in.Module, ir.DumpOptions{Users: users})
	}
}
