package types //nolint:revive

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"fortio.org/safecast"
)

// FuncInfo stores metadata for function types.
type FuncInfo struct {
	Params   []TypeID // Parameter types (in order)
	Result   TypeID   // Return type
	Variadic bool
}

// Func creates or finds a function type.
func (in *Interner) Func(result TypeID, params []TypeID, variadic bool) TypeID {
	if !in.Valid(result) {
		panic(fmt.Sprintf("types: function result is unknown type#%d", result))
	}
	for _, p := range params {
		if !in.Valid(p) {
			panic(fmt.Sprintf("types: function parameter is unknown type#%d", p))
		}
	}
	key := fnKey(result, params, variadic)
	if id, ok := in.fnIndex[key]; ok {
		return id
	}
	slot := in.appendFuncInfo(FuncInfo{
		Params:   params,
		Result:   result,
		Variadic: variadic,
	})
	id := in.internRaw(Type{Kind: KindFunc, Payload: slot})
	in.fnIndex[key] = id
	return id
}

// FuncInfo retrieves function type metadata by TypeID.
func (in *Interner) FuncInfo(id TypeID) (*FuncInfo, bool) {
	tt, ok := in.Lookup(id)
	if !ok || tt.Kind != KindFunc {
		return nil, false
	}
	if int(tt.Payload) >= len(in.fns) {
		return nil, false
	}
	return &in.fns[tt.Payload], true
}

func (in *Interner) appendFuncInfo(info FuncInfo) uint32 {
	in.fns = append(in.fns, FuncInfo{
		Params:   slices.Clone(info.Params),
		Result:   info.Result,
		Variadic: info.Variadic,
	})
	slot, err := safecast.Conv[uint32](len(in.fns) - 1)
	if err != nil {
		panic(fmt.Errorf("fn info overflow: %w", err))
	}
	return slot
}

func fnKey(result TypeID, params []TypeID, variadic bool) string {
	var sb strings.Builder
	sb.WriteString(strconv.FormatUint(uint64(result), 10))
	sb.WriteByte('(')
	for i, p := range params {
		if i > 0 {
			sb.WriteByte(',')
		}
		sb.WriteString(strconv.FormatUint(uint64(p), 10))
	}
	if variadic {
		sb.WriteString(",...")
	}
	sb.WriteByte(')')
	return sb.String()
}
