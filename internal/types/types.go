package types

import "fmt"

// TypeID uniquely identifies a type inside the interner.
type TypeID uint32

// NoTypeID marks the absence of a type.
const NoTypeID TypeID = 0

// Kind enumerates all supported kinds of types.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindVoid
	KindInt
	KindPointer
	KindFunc
)

func (k Kind) String() string {
	switch k {
	case KindInvalid:
		return "invalid"
	case KindVoid:
		return "void"
	case KindInt:
		return "int"
	case KindPointer:
		return "pointer"
	case KindFunc:
		return "func"
	default:
		return fmt.Sprintf("Kind(%d)", k)
	}
}

// Type is a compact descriptor for any supported type.
type Type struct {
	Kind      Kind
	Width     uint32 // bit width for integers
	Elem      TypeID // pointee for pointers
	AddrSpace uint32 // for pointers
	Payload   uint32 // FuncInfo slot for function types
}

// Descriptor helpers ---------------------------------------------------------

// MakeInt describes an integer of the given bit width.
func MakeInt(width uint32) Type {
	return Type{Kind: KindInt, Width: width}
}

// MakePointer describes a pointer to elem living in addrSpace.
func MakePointer(elem TypeID, addrSpace uint32) Type {
	return Type{Kind: KindPointer, Elem: elem, AddrSpace: addrSpace}
}
