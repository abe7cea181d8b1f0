package parser

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/trevis/ACDecompileHallucinator-sub002/internal/models"
)

var (
	multiSpaceRe   = regexp.MustCompile(`\s+`)
	declspecRe     = regexp.MustCompile(`__declspec\s*\((?:[^()]|\([^()]*\))*\)`)
	alignRe        = regexp.MustCompile(`__declspec\s*\(\s*align\s*\(\s*(\d+)\s*\)\s*\)`)
	registerLocRe  = regexp.MustCompile(`@<[^>]*>`)
	bitfieldRe     = regexp.MustCompile(`^(.*[^:\s])\s*:\s*(\d+)\s*$`)
	literalRe      = regexp.MustCompile(`^[-+]?(?:0[xX][0-9A-Fa-f]+|\d+)[uUlL]*$`)
	identTailRe    = regexp.MustCompile(`^(.*?[\s*&>])\s*([A-Za-z_$~][\w$]*)$`)
	conventionRe   = regexp.MustCompile(`\b(__cdecl|__stdcall|__thiscall|__fastcall|__vectorcall|__clrcall|__pascal|__usercall|__userpurge)\b`)
	functionMarkRe = regexp.MustCompile(`^//-+\s*\(([0-9A-Fa-f]+)\)`)
	hexAddressRe   = regexp.MustCompile(`(?:0[xX])?([0-9A-Fa-f]{6,16})\b`)
)

// artifactWords are decompiler decorations with no layout meaning
var artifactWords = map[string]bool{
	"__cppobj":     true,
	"__unaligned":  true,
	"__ptr32":      true,
	"__ptr64":      true,
	"__hidden":     true,
	"__noreturn":   true,
	"__struct_ptr": true,
	"__shifted":    true,
	"__restrict":   true,
	"__near":       true,
	"__far":        true,
	"typename":     true,
}

// tagWords introduce an elaborated type specifier
var tagWords = map[string]bool{
	"struct": true,
	"class":  true,
	"union":  true,
	"enum":   true,
}

// builtinWords can never be a declarator name
var builtinWords = map[string]bool{
	"void": true, "bool": true, "char": true, "short": true, "int": true, "long": true,
	"float": true, "double": true, "signed": true, "unsigned": true, "wchar_t": true,
	"__int8": true, "__int16": true, "__int32": true, "__int64": true, "__int128": true,
	"const": true, "volatile": true, "_BOOL1": true, "_BOOL2": true, "_BOOL4": true,
}

// unreliableMarkers flag decompiler output known to be wrong
var unreliableMarkers = []string{
	"@<",
	"#error",
	"__spoils",
	"BADTYPE",
	"may be wrong",
}

// NormalizeSpace collapses whitespace runs to one space and trims
func NormalizeSpace(s string) string {
	return strings.TrimSpace(multiSpaceRe.ReplaceAllString(s, " "))
}

// StripComments removes block and line comments outside string literals
func StripComments(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\'':
			end := skipLiteral(s, i)
			sb.WriteString(s[i:end])
			i = end - 1
		case c == '/' && i+1 < len(s) && s[i+1] == '/':
			for i < len(s) && s[i] != '\n' {
				i++
			}
			if i < len(s) {
				sb.WriteByte('\n')
			}
		case c == '/' && i+1 < len(s) && s[i+1] == '*':
			end := strings.Index(s[i+2:], "*/")
			if end < 0 {
				return sb.String()
			}
			sb.WriteByte(' ')
			i += end + 3
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}

// skipLiteral returns the index just past the string/char literal starting at i
func skipLiteral(s string, i int) int {
	quote := s[i]
	for j := i + 1; j < len(s); j++ {
		switch s[j] {
		case '\\':
			j++
		case quote:
			return j + 1
		case '\n':
			return j
		}
	}
	return len(s)
}

// StripArtifacts removes __declspec(...) and decompiler-only decoration words
func StripArtifacts(s string) string {
	s = declspecRe.ReplaceAllString(s, " ")
	words := strings.Fields(s)
	kept := words[:0]
	for _, w := range words {
		if !artifactWords[w] {
			kept = append(kept, w)
		}
	}
	return strings.Join(kept, " ")
}

// ExtractAlignment returns N from __declspec(align(N)), or 0
func ExtractAlignment(s string) int {
	m := alignRe.FindStringSubmatch(s)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// StripRegisterLocations removes __usercall register annotations such as @<eax>
func StripRegisterLocations(s string) (string, bool) {
	if !strings.Contains(s, "@<") {
		return s, false
	}
	return registerLocRe.ReplaceAllString(s, ""), true
}

// IsUnreliable reports whether the text carries a known decompiler-failure marker
func IsUnreliable(s string) bool {
	for _, m := range unreliableMarkers {
		if strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// SplitTopLevel splits s on sep where no bracket is open. Angle brackets are
// only tracked when angles is set; statement-level splitting must not track
// them because operator names such as operator< are unbalanced.
func SplitTopLevel(s string, sep byte, angles bool) []string {
	var parts []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch c := s[i]; {
		case c == '(' || c == '[' || c == '{':
			depth++
		case c == ')' || c == ']' || c == '}':
			depth--
		case angles && c == '<':
			depth++
		case angles && c == '>':
			if i > 0 && s[i-1] == '-' {
				continue
			}
			depth--
		case c == sep && depth == 0:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	return append(parts, s[start:])
}

// SplitTemplateArgs splits a template argument list (the text between the outer
// angle brackets) on top-level commas, respecting nested <> and ().
func SplitTemplateArgs(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	parts := SplitTopLevel(s, ',', true)
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// SplitQualified splits a qualified name on "::" outside template arguments.
// Everything from an operator keyword onwards is kept literally.
func SplitQualified(name string) []string {
	var segs []string
	depth := 0
	start := 0
	for i := 0; i < len(name); i++ {
		if depth == 0 && isOperatorAt(name, i) {
			break
		}
		switch name[i] {
		case '<', '(':
			depth++
		case '>', ')':
			depth--
		case ':':
			if depth == 0 && i+1 < len(name) && name[i+1] == ':' {
				segs = append(segs, strings.TrimSpace(name[start:i]))
				start = i + 2
				i++
			}
		}
	}
	return append(segs, strings.TrimSpace(name[start:]))
}

// isOperatorAt reports whether an operator keyword begins at i
func isOperatorAt(s string, i int) bool {
	if !strings.HasPrefix(s[i:], "operator") {
		return false
	}
	if i > 0 && isIdentByte(s[i-1]) {
		return false
	}
	rest := s[i+len("operator"):]
	return rest == "" || !isIdentByte(rest[0]) || strings.HasPrefix(strings.TrimSpace(rest), "new") ||
		strings.HasPrefix(strings.TrimSpace(rest), "delete")
}

// IsOperatorName reports whether a member or method name is an operator
func IsOperatorName(name string) bool {
	return isOperatorAt(strings.TrimSpace(name), 0)
}

func isIdentByte(c byte) bool {
	return c == '_' || c == '$' || c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}

// SplitTemplate splits "Name<args>" into "Name" and "args". ok is false when
// the segment carries no template argument list.
func SplitTemplate(segment string) (name, args string, ok bool) {
	segment = strings.TrimSpace(segment)
	if IsOperatorName(segment) || !strings.HasSuffix(segment, ">") {
		return segment, "", false
	}
	open := strings.IndexByte(segment, '<')
	if open <= 0 {
		return segment, "", false
	}
	return strings.TrimSpace(segment[:open]), segment[open+1 : len(segment)-1], true
}

// ParseArraySuffix splits "name[4][2]" into "name" and the dimensions. A "[]"
// dimension makes the array flexible.
func ParseArraySuffix(decl string) (name string, dims []int, flexible bool, ok bool) {
	decl = strings.TrimSpace(decl)
	if !strings.HasSuffix(decl, "]") {
		return decl, nil, false, false
	}
	open := strings.IndexByte(decl, '[')
	if open < 0 {
		return decl, nil, false, false
	}
	name = strings.TrimSpace(decl[:open])
	rest := decl[open:]
	for len(rest) > 0 {
		if rest[0] != '[' {
			return decl, nil, false, false
		}
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return decl, nil, false, false
		}
		dim := strings.TrimSpace(rest[1:end])
		if dim == "" {
			flexible = true
		} else {
			n, err := parseInteger(dim)
			if err != nil || n < 0 {
				return decl, nil, false, false
			}
			dims = append(dims, int(n))
		}
		rest = strings.TrimSpace(rest[end+1:])
	}
	return name, dims, flexible, true
}

// ParseBitfield splits "type name : 3" into "type name" and 3
func ParseBitfield(decl string) (string, int, bool) {
	m := bitfieldRe.FindStringSubmatch(decl)
	if m == nil {
		return decl, 0, false
	}
	w, err := strconv.Atoi(m[2])
	if err != nil {
		return decl, 0, false
	}
	return strings.TrimSpace(m[1]), w, true
}

// IsFunctionPointerDecl detects "Ret (conv *name)(params)" shaped declarations
func IsFunctionPointerDecl(decl string) bool {
	decl = strings.TrimSpace(decl)
	if !strings.HasSuffix(decl, ")") {
		return false
	}
	po := matchingOpen(decl, len(decl)-1)
	if po <= 0 {
		return false
	}
	before := strings.TrimSpace(decl[:po])
	if !strings.HasSuffix(before, ")") {
		return false
	}
	do := matchingOpen(before, len(before)-1)
	if do < 0 {
		return false
	}
	inner := strings.TrimSpace(before[do+1 : len(before)-1])
	inner = strings.TrimSpace(conventionRe.ReplaceAllString(inner, ""))
	return strings.HasPrefix(inner, "*") || strings.HasPrefix(inner, "&")
}

// matchingOpen returns the index of the '(' matching the ')' at close
func matchingOpen(s string, close int) int {
	depth := 0
	for i := close; i >= 0; i-- {
		switch s[i] {
		case ')':
			depth++
		case '(':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// ExtractBaseName reduces a decorated spelling to its bare identifier:
// "const NS::Foo<int> *" -> "Foo".
func ExtractBaseName(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimRight(s, "*& ")
	words := strings.Fields(s)
	kept := words[:0]
	for _, w := range words {
		if w == "const" || w == "volatile" || tagWords[w] || artifactWords[w] {
			continue
		}
		kept = append(kept, w)
	}
	s = strings.Join(kept, " ")
	segs := SplitQualified(s)
	last := segs[len(segs)-1]
	name, _, _ := SplitTemplate(last)
	return strings.TrimSpace(name)
}

// SplitDeclarator separates a trailing declarator name from its type:
// "CFoo *this" -> ("CFoo *", "this"). name is empty when the text is a bare type.
func SplitDeclarator(s string) (typeText, name string) {
	s = strings.TrimSpace(s)
	m := identTailRe.FindStringSubmatch(s)
	if m == nil {
		return s, ""
	}
	typeText, name = strings.TrimSpace(m[1]), m[2]
	if typeText == "" || builtinWords[name] || tagWords[name] {
		return s, ""
	}
	fields := strings.Fields(typeText)
	if last := fields[len(fields)-1]; tagWords[last] || last == "const" && len(fields) == 1 {
		return s, ""
	}
	if strings.HasSuffix(typeText, "::") {
		return s, ""
	}
	return typeText, name
}

// IsLiteral reports whether a template argument is a non-type literal
func IsLiteral(s string) bool {
	s = strings.TrimSpace(s)
	if s == "true" || s == "false" {
		return true
	}
	if len(s) >= 3 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return true
	}
	return literalRe.MatchString(s)
}

// parseInteger parses decimal/hex literals with optional C suffixes
func parseInteger(s string) (int64, error) {
	s = strings.TrimRight(strings.TrimSpace(s), "uUlL")
	if n, err := strconv.ParseInt(s, 0, 64); err == nil {
		return n, nil
	}
	u, err := strconv.ParseUint(s, 0, 64)
	if err != nil {
		return 0, err
	}
	return int64(u), nil
}

// NormalizeAddress renders a hexadecimal address of any width as 0x%08X
func NormalizeAddress(s string) (string, bool) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	s = strings.TrimSuffix(strings.TrimSuffix(s, "h"), "H")
	if s == "" {
		return "", false
	}
	v, err := strconv.ParseUint(s, 16, 64)
	if err != nil {
		return "", false
	}
	return fmt.Sprintf("0x%08X", v), true
}

// ParseConvention maps a convention keyword to its tag
func ParseConvention(tok string) models.CallingConvention {
	switch strings.TrimSpace(tok) {
	case "__cdecl":
		return models.ConvCdecl
	case "__stdcall":
		return models.ConvStdcall
	case "__thiscall":
		return models.ConvThiscall
	case "__fastcall":
		return models.ConvFastcall
	case "__vectorcall":
		return models.ConvVectorcall
	case "__clrcall":
		return models.ConvClrcall
	case "__pascal":
		return models.ConvPascal
	case "__usercall":
		return models.ConvUsercall
	case "__userpurge":
		return models.ConvUserpurge
	default:
		return models.ConvUnknown
	}
}
