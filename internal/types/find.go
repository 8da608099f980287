package types

// Find returns the TypeID of an already interned descriptor without adding
// it. Function types are looked up with FindFunc.
func (in *Interner) Find(t Type) (TypeID, bool) {
	if t.Kind == KindInvalid || t.Kind == KindFunc {
		return NoTypeID, false
	}
	id, ok := in.index[typeKey(t)]
	return id, ok
}

// FindFunc returns the TypeID of an already interned function signature.
func (in *Interner) FindFunc(result TypeID, params []TypeID, variadic bool) (TypeID, bool) {
	id, ok := in.fnIndex[fnKey(result, params, variadic)]
	return id, ok
}

// Equal reports structural equality. Interning makes it an ID comparison;
// unknown IDs are never equal to anything.
func (in *Interner) Equal(a, b TypeID) bool {
	return a == b && in.Valid(a)
}
