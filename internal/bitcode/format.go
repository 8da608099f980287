// Package bitcode serializes ir modules to a compact, versioned binary form
// and reads them back.
//
// Layout (little endian, str = u32 length + UTF-8 bytes):
//
//	header   magic "IKBC", version u32 (major<<16 | minor)
//	module   name str, datalayout str, triple str
//	types    count u32, entries: tag u8 + payload
//	consts   count u32, entries: type u32, value u64
//	funcs    count u32, entries: name str, sig u32, cc u8, linkage u8,
//	         nargs u32, arg names, nblocks u32, blocks:
//	         label str, ninstrs u32, instrs:
//	         opcode u8, operands, [align u32], result type u32, name str
//
// Types reference earlier type entries by position. Inside a function the
// value index space is the module constants, then the function's arguments,
// then its instructions in program order; operands may only reference
// indices that are already defined.
//
// Write trusts the caller for semantics: it refuses only graphs it cannot
// index (unknown, foreign or forward operand references). Run verify.Module
// before writing.
package bitcode

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Magic opens every stream.
var Magic = [4]byte{'I', 'K', 'B', 'C'}

// Current format version.
const (
	FormatMajor uint16 = 1
	FormatMinor uint16 = 0
)

// FormatVersion is the packed version written to the header.
const FormatVersion = uint32(FormatMajor)<<16 | uint32(FormatMinor)

// Type table tags.
const (
	tagVoid    byte = 0
	tagInt     byte = 1
	tagPointer byte = 2
	tagFunc    byte = 3
)

// readable accepts any version of the current major not newer than this
// reader.
var readable = mustConstraint(fmt.Sprintf(">= %d.0.0, <= %d.%d.0", FormatMajor, FormatMajor, FormatMinor))

func mustConstraint(s string) *semver.Constraints {
	c, err := semver.NewConstraint(s)
	if err != nil {
		panic(fmt.Errorf("bitcode: bad version constraint %q: %w", s, err))
	}
	return c
}

// VersionString renders a packed header version as major.minor.
func VersionString(v uint32) string {
	return fmt.Sprintf("%d.%d", v>>16, v&0xffff)
}

// versionSupported reports whether a stream of packed version v can be read.
func versionSupported(v uint32) bool {
	sv, err := semver.NewVersion(fmt.Sprintf("%d.%d.0", v>>16, v&0xffff))
	if err != nil {
		return false
	}
	return readable.Check(sv)
}
