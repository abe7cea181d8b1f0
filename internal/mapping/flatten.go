package mapping

import (
	"strings"

	"github.com/trevis/ACDecompileHallucinator-sub002/internal/models"
	"github.com/trevis/ACDecompileHallucinator-sub002/internal/parser"
)

// Flatten turns a (possibly templated, possibly qualified) spelling into one
// identifier: "Base<A,B>" -> "Base__A__B", "NS::Vec<Foo *,4>" -> "NS_Vec__FooPtr".
// Literal arguments are dropped, primitive arguments use their C# names and
// pointer arguments get one "Ptr" suffix per level.
func Flatten(spelling string) string {
	return sanitizeChars(flattenRef(parser.ParseTypeReference(spelling), "_"))
}

// FlattenQualified flattens each scope of a qualified name separately and
// joins them with dots: "Outer<T>::Inner::Deep" -> "Outer__T.Inner.Deep".
func FlattenQualified(fqn string) string {
	segs := parser.SplitQualified(strings.TrimPrefix(fqn, "::"))
	out := make([]string, 0, len(segs))
	for _, seg := range segs {
		if seg == "" {
			continue
		}
		out = append(out, escapeKeyword(sanitizeChars(flattenSegment(seg))))
	}
	return strings.Join(out, ".")
}

func flattenRef(ref models.TypeReference, sep string) string {
	if ref.FuncSig != nil {
		return "FnPtr"
	}
	var name string
	if p, ok := MapPrimitive(ref.Name); ok {
		name = p
	} else {
		segs := parser.SplitQualified(ref.Name)
		parts := make([]string, 0, len(segs))
		for _, seg := range segs {
			if seg != "" {
				parts = append(parts, flattenSegment(seg))
			}
		}
		name = strings.Join(parts, sep)
	}
	for _, a := range ref.TemplateArgs {
		if a.IsLiteral() {
			continue
		}
		name += "__" + flattenArg(*a.Type)
	}
	return name
}

func flattenSegment(seg string) string {
	base, args, ok := parser.SplitTemplate(seg)
	if !ok {
		return strings.ReplaceAll(strings.TrimSpace(seg), " ", "_")
	}
	out := base
	for _, a := range parser.SplitTemplateArgs(args) {
		if parser.IsLiteral(a) {
			continue
		}
		out += "__" + flattenArg(parser.ParseTypeReference(a))
	}
	return out
}

func flattenArg(ref models.TypeReference) string {
	s := flattenRef(ref, "_")
	if ref.FuncSig != nil {
		return s
	}
	return strings.ReplaceAll(s, " ", "_") + strings.Repeat("Ptr", ref.PointerDepth)
}

// sanitizeChars replaces every character C# does not allow in an identifier
func sanitizeChars(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '.' || c == '_' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z':
			sb.WriteByte(c)
		default:
			sb.WriteByte('_')
		}
	}
	out := sb.String()
	if out != "" && out[0] >= '0' && out[0] <= '9' {
		out = "_" + out
	}
	return out
}

// SanitizeIdentifier makes name a valid C# identifier: "$" and "~" become "_",
// other disallowed characters are replaced and keywords get an "@" prefix.
func SanitizeIdentifier(name string) string {
	s := strings.ReplaceAll(sanitizeChars(name), ".", "_")
	if s == "" {
		return "_"
	}
	if IsKeyword(s) {
		return "@" + s
	}
	return s
}

// handleType maps template instantiations that the runtime provides as
// dedicated handle types. elem renders a value type name.
func handleType(ref models.TypeReference, elem func(models.TypeReference) string) (string, bool) {
	if !IsHandleType(ref.Name) {
		return "", false
	}
	switch ref.Name {
	case "PrimitiveInplaceArray":
		if len(ref.TemplateArgs) == 0 || ref.TemplateArgs[0].Type == nil {
			return "", false
		}
		e := *ref.TemplateArgs[0].Type
		if e.IsPointer() || e.FuncSig != nil || e.IsReference {
			return "PrimitiveInplaceArray<void*>", true
		}
		return "PrimitiveInplaceArray<" + elem(e) + ">", true
	default:
		return "StlVector", true
	}
}

// MapSpelling maps a C++ spelling to a C# type name without graph context:
// primitives map through the table, runtime handle templates collapse to
// their handle types and everything else is flattened.
func MapSpelling(spelling string) string {
	ref := parser.ParseTypeReference(spelling)
	return mapUnresolved(ref)
}

func mapUnresolved(ref models.TypeReference) string {
	if ref.FuncSig != nil {
		return "void*"
	}
	stars := strings.Repeat("*", ref.PointerDepth)
	if ref.IsReference {
		stars += "*"
	}
	if h, ok := handleType(ref.Element(), mapUnresolved); ok {
		return h + stars
	}
	if p, ok := MapPrimitive(ref.Base); ok {
		return p + stars
	}
	return FlattenQualified(ref.Base) + stars
}

// IsHandleType reports whether a template name is provided by the runtime as
// a handle type rather than generated from declarations
func IsHandleType(name string) bool {
	switch name {
	case "PrimitiveInplaceArray", "_STL::vector", "std::vector":
		return true
	}
	return false
}
