// Package mapping translates C++ type spellings into C# type names and
// identifiers. All tables are immutable and only reachable through accessors.
package mapping

import (
	"github.com/trevis/ACDecompileHallucinator-sub002/internal/models"
)

// primitive is one entry of the C++ -> C# primitive table
type primitive struct {
	csharp string
	size   int
}

var primitives = map[string]primitive{
	"void":               {"void", 0},
	"bool":               {"bool", 1},
	"char":               {"sbyte", 1},
	"signed char":        {"sbyte", 1},
	"unsigned char":      {"byte", 1},
	"__int8":             {"sbyte", 1},
	"signed __int8":      {"sbyte", 1},
	"unsigned __int8":    {"byte", 1},
	"_BYTE":              {"byte", 1},
	"_BOOL1":             {"byte", 1},
	"_UNKNOWN":           {"byte", 1},
	"BYTE":               {"byte", 1},
	"char8_t":            {"byte", 1},
	"short":              {"short", 2},
	"signed short":       {"short", 2},
	"short int":          {"short", 2},
	"unsigned short":     {"ushort", 2},
	"unsigned short int": {"ushort", 2},
	"__int16":            {"short", 2},
	"signed __int16":     {"short", 2},
	"unsigned __int16":   {"ushort", 2},
	"_WORD":              {"ushort", 2},
	"_BOOL2":             {"short", 2},
	"WORD":               {"ushort", 2},
	"wchar_t":            {"char", 2},
	"char16_t":           {"char", 2},
	"int":                {"int", 4},
	"signed":             {"int", 4},
	"signed int":         {"int", 4},
	"unsigned":           {"uint", 4},
	"unsigned int":       {"uint", 4},
	"long":               {"int", 4},
	"long int":           {"int", 4},
	"signed long":        {"int", 4},
	"unsigned long":      {"uint", 4},
	"unsigned long int":  {"uint", 4},
	"__int32":            {"int", 4},
	"signed __int32":     {"int", 4},
	"unsigned __int32":   {"uint", 4},
	"_DWORD":             {"uint", 4},
	"_BOOL4":             {"int", 4},
	"DWORD":              {"uint", 4},
	"BOOL":               {"int", 4},
	"HRESULT":            {"int", 4},
	"char32_t":           {"uint", 4},
	"size_t":             {"uint", 4},
	"float":              {"float", 4},
	"double":             {"double", 8},
	"long double":        {"double", 8},
	"__int64":            {"long", 8},
	"signed __int64":     {"long", 8},
	"unsigned __int64":   {"ulong", 8},
	"long long":          {"long", 8},
	"signed long long":   {"long", 8},
	"unsigned long long": {"ulong", 8},
	"_QWORD":             {"ulong", 8},
}

// MapPrimitive returns the C# spelling of a C++ primitive type
func MapPrimitive(name string) (string, bool) {
	p, ok := primitives[name]
	return p.csharp, ok
}

// PrimitiveSize returns the 32-bit MSVC size of a primitive in bytes
func PrimitiveSize(name string) (int, bool) {
	p, ok := primitives[name]
	return p.size, ok
}

// IsPrimitive reports whether name is a known primitive spelling
func IsPrimitive(name string) bool {
	_, ok := primitives[name]
	return ok
}

var conventions = map[models.CallingConvention]string{
	models.ConvCdecl:    "Cdecl",
	models.ConvStdcall:  "Stdcall",
	models.ConvThiscall: "Thiscall",
	models.ConvFastcall: "Fastcall",
}

// ConventionName returns the unmanaged calling-convention specifier for c.
// An empty name means the platform default. ok is false for conventions that
// cannot be expressed at all (register-located arguments).
func ConventionName(c models.CallingConvention) (name string, ok bool) {
	if c.IsUserDefined() {
		return "", false
	}
	return conventions[c], true
}

var keywords = map[string]bool{
	"abstract": true, "as": true, "base": true, "bool": true, "break": true,
	"byte": true, "case": true, "catch": true, "char": true, "checked": true,
	"class": true, "const": true, "continue": true, "decimal": true, "default": true,
	"delegate": true, "do": true, "double": true, "else": true, "enum": true,
	"event": true, "explicit": true, "extern": true, "false": true, "finally": true,
	"fixed": true, "float": true, "for": true, "foreach": true, "goto": true,
	"if": true, "implicit": true, "in": true, "int": true, "interface": true,
	"internal": true, "is": true, "lock": true, "long": true, "namespace": true,
	"new": true, "null": true, "object": true, "operator": true, "out": true,
	"override": true, "params": true, "private": true, "protected": true, "public": true,
	"readonly": true, "ref": true, "return": true, "sbyte": true, "sealed": true,
	"short": true, "sizeof": true, "stackalloc": true, "static": true, "string": true,
	"struct": true, "switch": true, "this": true, "throw": true, "true": true,
	"try": true, "typeof": true, "uint": true, "ulong": true, "unchecked": true,
	"unsafe": true, "ushort": true, "using": true, "virtual": true, "void": true,
	"volatile": true, "while": true,
}

// IsKeyword reports whether name is a reserved C# keyword
func IsKeyword(name string) bool {
	return keywords[name]
}
