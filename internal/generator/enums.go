package generator

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/trevis/ACDecompileHallucinator-sub002/internal/comments"
	"github.com/trevis/ACDecompileHallucinator-sub002/internal/mapping"
	"github.com/trevis/ACDecompileHallucinator-sub002/internal/models"
)

var unsignedTypes = map[string]bool{"byte": true, "ushort": true, "uint": true, "ulong": true}

// EnumUnderlying picks the C# underlying type of an enum: the narrowest
// unsigned type covering every value, or the narrowest signed type when a
// value is negative. A declared integral type wins.
func EnumUnderlying(t *models.TypeEntity) string {
	if t.UnderlyingType != "" {
		if p, ok := mapping.MapPrimitive(t.UnderlyingType); ok && integralTypes[p] && p != "char" {
			return p
		}
	}

	var lo, hi int64
	for _, m := range t.EnumMembers {
		if m.Value == nil {
			continue
		}
		lo = min(lo, *m.Value)
		hi = max(hi, *m.Value)
	}
	if lo < 0 {
		switch {
		case hi == math.MaxInt32 && lo >= math.MinInt32:
			// a value at the top of int32 widens to uint even with negatives
			return "uint"
		case lo >= math.MinInt8 && hi <= math.MaxInt8:
			return "sbyte"
		case lo >= math.MinInt16 && hi <= math.MaxInt16:
			return "short"
		case lo >= math.MinInt32 && hi <= math.MaxInt32:
			return "int"
		}
		return "long"
	}
	switch {
	case hi <= math.MaxUint8:
		return "byte"
	case hi <= math.MaxUint16:
		return "ushort"
	case hi <= math.MaxUint32:
		return "uint"
	}
	return "ulong"
}

func enumLiteral(v int64, underlying string, hex bool) string {
	if v < 0 && unsignedTypes[underlying] {
		return fmt.Sprintf("unchecked((%s)(%d))", underlying, v)
	}
	if hex && v >= 0 {
		return fmt.Sprintf("0x%X", v)
	}
	return fmt.Sprintf("%d", v)
}

func (gen *Generator) emitEnum(ctx context.Context, w *writer, t *models.TypeEntity) {
	underlying := EnumUnderlying(t)

	gen.summary(ctx, w, comments.KindEnum, t.FQN())
	gen.provenance(w, t.Source)
	if t.IsBitmask {
		w.line("[Flags]")
	}
	w.open("public enum %s : %s", mapping.TypeIdentifier(t), underlying)

	used := names{}
	for _, m := range t.EnumMembers {
		name := used.unique(mapping.SanitizeIdentifier(m.Name))
		switch {
		case m.Value != nil:
			w.line("%s = %s,", name, enumLiteral(*m.Value, underlying, t.IsBitmask))
		case m.Raw != "":
			w.line("%s, // = %s", name, strings.TrimSpace(m.Raw))
		default:
			w.line("%s,", name)
		}
	}
	w.close()
}
