package layout

// Target describes the ABI target triple and its data layout.
type Target struct {
	Triple     string // e.g. "x86_64-apple-macosx10.14.0"
	DataLayout string // LLVM data layout string
}

// Default data layout and triple, matching the clang output the sum example
// was written against.
const (
	DefaultTriple     = "x86_64-apple-macosx10.14.0"
	DefaultDataLayout = "e-m:o-i64:64-f80:128-n8:16:32:64-S128"
)

// Default returns the built-in target used when no configuration overrides
// it.
func Default() Target {
	return Target{
		Triple:     DefaultTriple,
		DataLayout: DefaultDataLayout,
	}
}

// X86_64LinuxGNU returns the ELF x86_64 Linux target.
func X86_64LinuxGNU() Target {
	return Target{
		Triple:     "x86_64-linux-gnu",
		DataLayout: "e-m:e-p270:32:32-p271:32:32-p272:64:64-i64:64-f80:128-n8:16:32:64-S128",
	}
}

// Parse parses the target's data layout.
func (t Target) Parse() (DataLayout, error) {
	return ParseDataLayout(t.DataLayout)
}
