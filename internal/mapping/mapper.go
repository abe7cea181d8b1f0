package mapping

import (
	"strings"

	"github.com/trevis/ACDecompileHallucinator-sub002/internal/models"
)

// maxAliasDepth bounds typedef expansion so alias cycles terminate
const maxAliasDepth = 32

// Mapper maps references of one resolved graph to C# type names. Types are
// rendered fully qualified under the root namespace.
type Mapper struct {
	graph *models.Graph
	root  string
}

// NewMapper creates a mapper over a graph whose references are already linked
func NewMapper(g *models.Graph, rootNamespace string) *Mapper {
	return &Mapper{graph: g, root: rootNamespace}
}

// Graph returns the graph the mapper reads from
func (m *Mapper) Graph() *models.Graph {
	return m.graph
}

// Namespace returns the C# namespace for a C++ namespace
func (m *Mapper) Namespace(cppNamespace string) string {
	if cppNamespace == "" {
		return m.root
	}
	if m.root == "" {
		return FlattenQualified(cppNamespace)
	}
	return m.root + "." + FlattenQualified(cppNamespace)
}

// TypeIdentifier is the declared C# name of an entity (no namespace)
func TypeIdentifier(t *models.TypeEntity) string {
	return escapeKeyword(sanitizeChars(flattenSegment(t.BaseName())))
}

// EntityName returns the fully-qualified C# name of an entity
func (m *Mapper) EntityName(t *models.TypeEntity) string {
	name := FlattenQualified(t.FQN())
	if m.root == "" {
		return name
	}
	return m.root + "." + name
}

// Unalias expands typedefs referenced by ref until it names something that is
// not a typedef. Pointer levels and array dimensions of ref are combined with
// those of the alias target.
func Unalias(g *models.Graph, ref models.TypeReference) models.TypeReference {
	for i := 0; i < maxAliasDepth && ref.FuncSig == nil && ref.IsResolved(); i++ {
		t := g.Type(ref.ResolvedID)
		if t == nil || t.Kind != models.KindTypedef || t.TypedefTarget == nil {
			return ref
		}
		target := *t.TypedefTarget
		combined := target
		combined.Raw = ref.Raw
		combined.IsConst = ref.IsConst || target.IsConst
		combined.IsReference = ref.IsReference || target.IsReference

		if ref.PointerDepth > 0 {
			if target.IsArray {
				combined.IsArray = false
				combined.ArraySize = nil
			}
			combined.PointerDepth += ref.PointerDepth
		}
		if ref.IsArray {
			if target.IsArray && ref.PointerDepth == 0 && ref.ArraySize != nil && target.ArraySize != nil {
				n := *ref.ArraySize * *target.ArraySize
				combined.ArraySize = &n
			} else {
				combined.IsArray = true
				combined.ArraySize = ref.ArraySize
			}
		}
		ref = combined
	}
	return ref
}

// Usable reports whether a resolved entity can be named as a C# type. Ignored
// entities, forward-only records and typedefs that never resolved cannot.
func (m *Mapper) Usable(id models.EntityID) bool {
	t := m.graph.Type(id)
	if t == nil || t.IsIgnored || t.Kind == models.KindTypedef {
		return false
	}
	return !t.Kind.IsRecord() || t.IsDefined
}

// TypeName maps a reference to a C# type name. Arrays are not expressed here;
// callers render array members as fixed buffers of the element type.
func (m *Mapper) TypeName(ref models.TypeReference) string {
	ref = Unalias(m.graph, ref)
	if ref.FuncSig != nil {
		extra := ref.PointerDepth - 1
		if ref.IsReference {
			extra++
		}
		if extra < 0 {
			extra = 0
		}
		return m.FunctionPointer(ref.FuncSig) + strings.Repeat("*", extra)
	}

	depth := ref.PointerDepth
	if ref.IsReference {
		depth++
	}
	stars := strings.Repeat("*", depth)

	if ref.IsVoid() {
		return "void" + stars
	}
	if h, ok := handleType(ref.Element(), m.TypeName); ok {
		return h + stars
	}
	if p, ok := MapPrimitive(ref.Base); ok {
		return p + stars
	}
	if !ref.IsResolved() || !m.Usable(ref.ResolvedID) {
		if depth > 0 {
			return "void" + stars
		}
		if t := m.graph.Type(ref.ResolvedID); t != nil && t.Kind != models.KindTypedef {
			return m.EntityName(t)
		}
		return FlattenQualified(ref.Base)
	}
	return m.EntityName(m.graph.Type(ref.ResolvedID)) + stars
}

// ParamTypeName maps a parameter type; array parameters decay to pointers
func (m *Mapper) ParamTypeName(ref models.TypeReference) string {
	ref = Unalias(m.graph, ref)
	if ref.IsArray {
		e := ref.Element()
		e.PointerDepth++
		return m.TypeName(e)
	}
	return m.TypeName(ref)
}

// FunctionPointer renders "delegate* unmanaged[Conv]<params..., ret>"
func (m *Mapper) FunctionPointer(sig *models.FunctionSignature) string {
	var sb strings.Builder
	sb.WriteString("delegate* unmanaged")
	if conv, ok := ConventionName(sig.Convention); ok && conv != "" {
		sb.WriteString("[" + conv + "]")
	}
	sb.WriteString("<")
	for _, p := range sig.Params {
		sb.WriteString(m.ParamTypeName(p.Type))
		sb.WriteString(", ")
	}
	sb.WriteString(m.TypeName(sig.Return))
	sb.WriteString(">")
	return sb.String()
}

func escapeKeyword(s string) string {
	if IsKeyword(s) {
		return "@" + s
	}
	return s
}
