package parser

import (
	"strings"

	"github.com/trevis/ACDecompileHallucinator-sub002/internal/models"
)

// ParseTypeReference parses a type spelling such as "const NS::Foo<int,4> **",
// "char[16]" or "void (__thiscall *)(Foo *this)" into a TypeReference.
// The canonical Base is the same string ParseQualifiedName produces for the
// declaring entity, so exact-FQN resolution can compare them directly.
func ParseTypeReference(spelling string) models.TypeReference {
	raw := NormalizeSpace(spelling)
	s := StripArtifacts(raw)

	if IsFunctionPointerDecl(s) {
		if name, ref, ok := parseFunctionPointer(s); ok && name == "" {
			ref.Raw = raw
			return ref
		}
	}

	ref := models.TypeReference{Raw: raw}

	if elem, dims, flexible, ok := ParseArraySuffix(s); ok && elem != "" {
		s = elem
		applyArray(&ref, dims, flexible)
	}

	for strings.HasSuffix(s, "&") {
		ref.IsReference = true
		s = strings.TrimSpace(strings.TrimSuffix(s, "&"))
	}

	s = stripPointers(s, &ref)

	words := splitWords(s)
	kept := words[:0]
	for _, w := range words {
		switch {
		case w == "const":
			ref.IsConst = true
		case w == "volatile":
			ref.IsVolatile = true
		case tagWords[w]:
		default:
			kept = append(kept, w)
		}
	}
	s = strings.Join(kept, " ")

	ref.Name, ref.TemplateArgs = canonicalQualified(s)
	ref.Base = ref.Name
	if len(ref.TemplateArgs) > 0 {
		ref.Base += "<" + joinArgs(ref.TemplateArgs) + ">"
	}
	return ref
}

// stripPointers peels trailing '*' (and const/volatile qualifying a pointer)
func stripPointers(s string, ref *models.TypeReference) string {
	for {
		s = strings.TrimSpace(s)
		switch {
		case strings.HasSuffix(s, "*"):
			ref.PointerDepth++
			s = strings.TrimSuffix(s, "*")
		case hasQualifierSuffix(s, "const") && pointerBefore(s, "const"):
			s = strings.TrimSuffix(s, "const")
		case hasQualifierSuffix(s, "volatile") && pointerBefore(s, "volatile"):
			s = strings.TrimSuffix(s, "volatile")
		default:
			return s
		}
	}
}

func hasQualifierSuffix(s, word string) bool {
	if !strings.HasSuffix(s, word) {
		return false
	}
	rest := s[:len(s)-len(word)]
	return rest == "" || !isIdentByte(rest[len(rest)-1])
}

func pointerBefore(s, word string) bool {
	return strings.HasSuffix(strings.TrimSpace(strings.TrimSuffix(s, word)), "*")
}

// splitWords splits on spaces outside template argument lists
func splitWords(s string) []string {
	var words []string
	depth := 0
	start := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<', '(':
			depth++
		case '>', ')':
			depth--
		case ' ':
			if depth == 0 {
				if w := strings.TrimSpace(s[start:i]); w != "" {
					words = append(words, w)
				}
				start = i + 1
			}
		}
	}
	if w := strings.TrimSpace(s[start:]); w != "" {
		words = append(words, w)
	}
	return words
}

func applyArray(ref *models.TypeReference, dims []int, flexible bool) {
	ref.IsArray = true
	if flexible && len(dims) == 0 {
		return
	}
	n := 1
	for _, d := range dims {
		n *= d
	}
	ref.ArraySize = &n
}

// canonicalQualified canonicalizes every segment of a qualified name and
// returns the name without the final argument list plus the final arguments.
func canonicalQualified(s string) (string, []models.TemplateArgument) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	s = strings.TrimPrefix(s, "::")
	segs := SplitQualified(s)
	out := make([]string, len(segs))
	var lastArgs []models.TemplateArgument
	for i, seg := range segs {
		name, argText, ok := SplitTemplate(seg)
		if !ok {
			out[i] = seg
			continue
		}
		args := parseTemplateArgs(argText)
		if i == len(segs)-1 {
			out[i] = name
			lastArgs = args
			continue
		}
		out[i] = name + "<" + joinArgs(args) + ">"
	}
	return strings.Join(out, "::"), lastArgs
}

// ParseQualifiedName splits a declared name into namespace, bare name and
// template arguments, canonicalized the same way as TypeReference.Base.
func ParseQualifiedName(s string) (namespace, name string, args []models.TemplateArgument) {
	s = strings.TrimPrefix(NormalizeSpace(s), "::")
	if s == "" {
		return "", "", nil
	}
	segs := SplitQualified(s)
	last := segs[len(segs)-1]
	if len(segs) > 1 {
		ns, nsArgs := canonicalQualified(strings.Join(segs[:len(segs)-1], "::"))
		namespace = ns
		if len(nsArgs) > 0 {
			namespace += "<" + joinArgs(nsArgs) + ">"
		}
	}
	name, argText, ok := SplitTemplate(last)
	if !ok {
		return namespace, last, nil
	}
	return namespace, name, parseTemplateArgs(argText)
}

// CanonicalName is the canonical spelling of a qualified name
func CanonicalName(s string) string {
	ns, name, args := ParseQualifiedName(s)
	if len(args) > 0 {
		name += "<" + joinArgs(args) + ">"
	}
	if ns == "" {
		return name
	}
	return ns + "::" + name
}

func parseTemplateArgs(text string) []models.TemplateArgument {
	parts := SplitTemplateArgs(text)
	args := make([]models.TemplateArgument, 0, len(parts))
	for i, p := range parts {
		if IsLiteral(p) {
			args = append(args, models.TemplateArgument{Position: i, Literal: p})
			continue
		}
		ref := ParseTypeReference(p)
		args = append(args, models.TemplateArgument{Position: i, Type: &ref})
	}
	return args
}

func joinArgs(args []models.TemplateArgument) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = a.Canonical()
	}
	return strings.Join(parts, ",")
}
