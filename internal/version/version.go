package version

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
)

// Version information for the irkit CLI.
// These variables can be overridden at build time via -ldflags.

var (
	versionMajorColor = color.New(color.FgYellow, color.Bold)
	versionMinorColor = color.New(color.FgGreen, color.Bold)
	versionPatchColor = color.New(color.FgBlue, color.Bold)

	// Version is the semantic version of the CLI.
	Version = "0.1.0-dev"

	// GitCommit is an optional git commit hash.
	GitCommit = ""

	// BuildDate is an optional build date in ISO-8601.
	BuildDate = ""
)

// Colored renders Version with each numeric component in its own color.
// Suffixes after the patch number are printed plain. color.NoColor turns the
// coloring off.
func Colored() string {
	core, suffix := Version, ""
	if i := strings.IndexAny(core, "-+"); i >= 0 {
		core, suffix = core[:i], core[i:]
	}
	parts := strings.SplitN(core, ".", 3)
	if len(parts) != 3 {
		return Version
	}
	return versionMajorColor.Sprint(parts[0]) + "." +
		versionMinorColor.Sprint(parts[1]) + "." +
		versionPatchColor.Sprint(parts[2]) + suffix
}

// Info renders the version line printed by `irkit version`; format is the
// bitcode format version the binary writes.
func Info(format string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "irkit %s (bitcode format %s)", Colored(), format)
	if GitCommit != "" {
		fmt.Fprintf(&sb, "\ncommit: %s", GitCommit)
	}
	if BuildDate != "" {
		fmt.Fprintf(&sb, "\nbuilt:  %s", BuildDate)
	}
	return sb.String()
}
