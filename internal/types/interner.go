package types

import (
	"fmt"
	"strings"

	"fortio.org/safecast"
)

// Builtins stores TypeIDs for frequently used primitive types.
type Builtins struct {
	Invalid TypeID
	Void    TypeID
	I1      TypeID
	I8      TypeID
	I32     TypeID
	I64     TypeID
}

// Interner provides stable TypeIDs by hashing structural descriptors.
//
// An Interner is owned by exactly one module and is not safe for concurrent
// mutation. TypeIDs from one Interner are meaningless in another.
type Interner struct {
	types    []Type
	index    map[typeKey]TypeID
	fns      []FuncInfo
	fnIndex  map[string]TypeID
	builtins Builtins
}

// NewInterner constructs an interner seeded with built-in primitives.
func NewInterner() *Interner {
	in := &Interner{
		index:   make(map[typeKey]TypeID, 32),
		fnIndex: make(map[string]TypeID, 8),
	}
	in.builtins.Invalid = in.internRaw(Type{Kind: KindInvalid})
	in.builtins.Void = in.Intern(Type{Kind: KindVoid})
	in.builtins.I1 = in.Int(1)
	in.builtins.I8 = in.Int(8)
	in.builtins.I32 = in.Int(32)
	in.builtins.I64 = in.Int(64)
	return in
}

// Builtins returns TypeIDs for primitive types.
func (in *Interner) Builtins() Builtins {
	return in.builtins
}

// Void returns the void type.
func (in *Interner) Void() TypeID {
	return in.builtins.Void
}

// Int returns the integer type of the given bit width. A zero width is a
// programming error.
func (in *Interner) Int(width uint32) TypeID {
	if width == 0 {
		panic("types: integer width must be positive")
	}
	return in.Intern(MakeInt(width))
}

// Pointer returns the pointer-to-elem type in the given address space.
func (in *Interner) Pointer(elem TypeID, addrSpace uint32) TypeID {
	if !in.Valid(elem) {
		panic(fmt.Sprintf("types: pointer to unknown type#%d", elem))
	}
	return in.Intern(MakePointer(elem, addrSpace))
}

// Intern ensures the provided descriptor has a stable TypeID. Function types
// must go through Func.
func (in *Interner) Intern(t Type) TypeID {
	if t.Kind == KindInvalid {
		return NoTypeID
	}
	if t.Kind == KindFunc {
		panic("types: function types are interned with Func")
	}
	key := typeKey(t)
	if id, ok := in.index[key]; ok {
		return id
	}
	return in.internRaw(t)
}

// internRaw adds the descriptor to the storage without consulting the map.
func (in *Interner) internRaw(t Type) TypeID {
	lenTypes, err := safecast.Conv[uint32](len(in.types))
	if err != nil {
		panic(fmt.Errorf("len(types) overflow: %w", err))
	}
	id := TypeID(lenTypes)
	in.types = append(in.types, t)
	if t.Kind != KindFunc {
		in.index[typeKey(t)] = id
	}
	return id
}

// Len reports how many types have been interned, including the invalid
// sentinel at index 0.
func (in *Interner) Len() int {
	return len(in.types)
}

// Valid reports whether id names an interned, non-sentinel type.
func (in *Interner) Valid(id TypeID) bool {
	return id != NoTypeID && int(id) < len(in.types)
}

// Lookup returns the descriptor for a TypeID.
func (in *Interner) Lookup(id TypeID) (Type, bool) {
	if !in.Valid(id) {
		return Type{}, false
	}
	return in.types[id], true
}

// MustLookup panics when id is invalid.
func (in *Interner) MustLookup(id TypeID) Type {
	tt, ok := in.Lookup(id)
	if !ok {
		panic("types: invalid TypeID")
	}
	return tt
}

// IsVoid reports whether id is the void type.
func (in *Interner) IsVoid(id TypeID) bool {
	return id == in.builtins.Void
}

// IsInt reports whether id is an integer type.
func (in *Interner) IsInt(id TypeID) bool {
	tt, ok := in.Lookup(id)
	return ok && tt.Kind == KindInt
}

// Pointee returns the element type of a pointer type.
func (in *Interner) Pointee(id TypeID) (TypeID, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindPointer {
		return NoTypeID, false
	}
	return tt.Elem, true
}

// String renders id in LLVM-like notation: i32, i32*, i32 addrspace(1)*,
// i32 (i32, i32).
func (in *Interner) String(id TypeID) string {
	tt, ok := in.Lookup(id)
	if !ok {
		return fmt.Sprintf("<type#%d>", id)
	}
	switch tt.Kind {
	case KindVoid:
		return "void"
	case KindInt:
		return fmt.Sprintf("i%d", tt.Width)
	case KindPointer:
		if tt.AddrSpace != 0 {
			return fmt.Sprintf("%s addrspace(%d)*", in.String(tt.Elem), tt.AddrSpace)
		}
		return in.String(tt.Elem) + "*"
	case KindFunc:
		info := in.fns[tt.Payload]
		params := make([]string, 0, len(info.Params)+1)
		for _, p := range info.Params {
			params = append(params, in.String(p))
		}
		if info.Variadic {
			params = append(params, "...")
		}
		return fmt.Sprintf("%s (%s)", in.String(info.Result), strings.Join(params, ", "))
	default:
		return tt.Kind.String()
	}
}

type typeKey struct {
	Kind      Kind
	Width     uint32
	Elem      TypeID
	AddrSpace uint32
	Payload   uint32
}
