package layout

import (
	"slices"
	"strconv"
	"strings"
)

// DataLayout is the parsed form of an LLVM data layout string. Only the
// components the IR builder consults are kept; others are accepted and
// ignored.
type DataLayout struct {
	BigEndian       bool
	Mangling        string
	AllocaAddrSpace uint32
	PointerBits     uint32            // address space 0
	StackAlignBits  uint32            // 0 when unspecified
	IntABIAlign     map[uint32]uint32 // bit width -> ABI alignment in bits
	NativeWidths    []uint32
}

// defaultIntAlign mirrors the LLVM defaults for integer ABI alignment.
var defaultIntAlign = map[uint32]uint32{1: 8, 8: 8, 16: 16, 32: 32, 64: 32}

// ParseDataLayout parses s. The empty string is rejected.
func ParseDataLayout(s string) (DataLayout, error) {
	dl := DataLayout{
		PointerBits: 64,
		IntABIAlign: make(map[uint32]uint32, len(defaultIntAlign)),
	}
	for w, a := range defaultIntAlign {
		dl.IntABIAlign[w] = a
	}
	if strings.TrimSpace(s) == "" {
		return dl, &LayoutError{Kind: LayoutErrEmpty}
	}
	for spec := range strings.SplitSeq(s, "-") {
		if spec == "" {
			continue
		}
		if err := dl.apply(spec); err != nil {
			return dl, err
		}
	}
	return dl, nil
}

func (dl *DataLayout) apply(spec string) error {
	switch spec[0] {
	case 'e':
		dl.BigEndian = false
	case 'E':
		dl.BigEndian = true
	case 'm':
		if !strings.HasPrefix(spec, "m:") {
			return &LayoutError{Kind: LayoutErrUnknownSpec, Spec: spec}
		}
		dl.Mangling = spec[2:]
	case 'A':
		n, err := parseUint(spec, spec[1:])
		if err != nil {
			return err
		}
		dl.AllocaAddrSpace = n
	case 'S':
		n, err := parseUint(spec, spec[1:])
		if err != nil {
			return err
		}
		dl.StackAlignBits = n
	case 'p':
		// p[n]:<size>:<abi>[:<pref>[:<idx>]]
		fields := strings.Split(spec[1:], ":")
		if len(fields) < 2 {
			return &LayoutError{Kind: LayoutErrUnknownSpec, Spec: spec}
		}
		as := uint32(0)
		if fields[0] != "" {
			n, err := parseUint(spec, fields[0])
			if err != nil {
				return err
			}
			as = n
		}
		size, err := parseUint(spec, fields[1])
		if err != nil {
			return err
		}
		if as == 0 {
			dl.PointerBits = size
		}
	case 'i':
		fields := strings.Split(spec[1:], ":")
		if len(fields) < 2 {
			return &LayoutError{Kind: LayoutErrUnknownSpec, Spec: spec}
		}
		width, err := parseUint(spec, fields[0])
		if err != nil {
			return err
		}
		abi, err := parseUint(spec, fields[1])
		if err != nil {
			return err
		}
		dl.IntABIAlign[width] = abi
	case 'n':
		for w := range strings.SplitSeq(spec[1:], ":") {
			n, err := parseUint(spec, w)
			if err != nil {
				return err
			}
			dl.NativeWidths = append(dl.NativeWidths, n)
		}
	case 'f', 'v', 'a', 'F', 'G', 'P':
		// Float, vector, aggregate, function pointer and address space
		// specs do not affect integer-only IR.
	default:
		return &LayoutError{Kind: LayoutErrUnknownSpec, Spec: spec}
	}
	return nil
}

func parseUint(spec, s string) (uint32, error) {
	n, err := strconv.ParseUint(s, 10, 32)
	if err != nil {
		return 0, &LayoutError{Kind: LayoutErrBadNumber, Spec: spec, Err: err}
	}
	return uint32(n), nil
}

// IntAlign returns the ABI alignment in bytes of an integer of width bits.
// Widths without an explicit entry use the next larger known entry, or the
// largest one when none is larger.
func (dl DataLayout) IntAlign(width uint32) uint32 {
	if a, ok := dl.IntABIAlign[width]; ok {
		return max(a/8, 1)
	}
	widths := make([]uint32, 0, len(dl.IntABIAlign))
	for w := range dl.IntABIAlign {
		widths = append(widths, w)
	}
	slices.Sort(widths)
	if len(widths) == 0 {
		return 1
	}
	for _, w := range widths {
		if w > width {
			return max(dl.IntABIAlign[w]/8, 1)
		}
	}
	return max(dl.IntABIAlign[widths[len(widths)-1]]/8, 1)
}

// PointerAlign returns the ABI alignment in bytes of an address-space-0
// pointer.
func (dl DataLayout) PointerAlign() uint32 {
	return max(dl.PointerBits/8, 1)
}
