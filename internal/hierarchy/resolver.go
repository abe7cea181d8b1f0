// Package hierarchy links the references of a parsed graph, nests types into
// their enclosing types and assigns every root entity to an output group.
package hierarchy

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/trevis/ACDecompileHallucinator-sub002/internal/mapping"
	"github.com/trevis/ACDecompileHallucinator-sub002/internal/models"
	"github.com/trevis/ACDecompileHallucinator-sub002/internal/parser"
)

// Report summarises one LinkReferences pass
type Report struct {
	Resolved   int
	Unresolved map[string]int // canonical name -> number of references
}

// UnresolvedName is one entry of Report.Top
type UnresolvedName struct {
	Name  string
	Count int
}

// UnresolvedTotal returns the number of references that did not resolve
func (r *Report) UnresolvedTotal() int {
	total := 0
	for _, n := range r.Unresolved {
		total += n
	}
	return total
}

// Top returns the n most referenced unresolved names (all when n <= 0)
func (r *Report) Top(n int) []UnresolvedName {
	out := make([]UnresolvedName, 0, len(r.Unresolved))
	for name, count := range r.Unresolved {
		out = append(out, UnresolvedName{Name: name, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// Resolver links TypeReferences to the entities they name
type Resolver struct {
	graph *models.Graph
}

// NewResolver creates a resolver for g
func NewResolver(g *models.Graph) *Resolver {
	return &Resolver{graph: g}
}

// LinkReferences sets ResolvedID on every reference of the graph that names
// an entity: members, bases, parameters, returns, typedef targets, statics
// and template arguments. A name is looked up exactly first, then relative to
// each enclosing scope of the referencing entity. Unresolved references are
// counted, never fatal.
func (r *Resolver) LinkReferences() *Report {
	report := &Report{Unresolved: make(map[string]int)}
	r.graph.WalkReferences(func(owner *models.TypeEntity, ref *models.TypeReference) {
		if ref.Base == "" || ref.IsVoid() || mapping.IsPrimitive(ref.Base) {
			return
		}
		if ref.IsResolved() {
			report.Resolved++
			return
		}
		if id, ok := r.lookup(ref.Base, owner); ok {
			ref.ResolvedID = id
			report.Resolved++
			return
		}
		// runtime handle types need no declaration
		if mapping.IsHandleType(ref.Name) {
			return
		}
		report.Unresolved[ref.Base]++
	})

	slog.Debug("references linked",
		"resolved", report.Resolved,
		"unresolved", report.UnresolvedTotal(),
		"unresolved_names", len(report.Unresolved))
	return report
}

func (r *Resolver) lookup(name string, owner *models.TypeEntity) (models.EntityID, bool) {
	accept := func(t *models.TypeEntity) bool {
		// a typedef never names itself
		return owner == nil || owner.Kind != models.KindTypedef || t.ID != owner.ID
	}

	if strings.HasPrefix(name, "::") {
		if t, ok := r.graph.Lookup(strings.TrimPrefix(name, "::")); ok && accept(t) {
			return t.ID, true
		}
		return 0, false
	}
	if t, ok := r.graph.Lookup(name); ok && accept(t) {
		return t.ID, true
	}
	if owner == nil {
		return 0, false
	}
	for scope := owner.FQN(); scope != ""; scope = parentScope(scope) {
		if t, ok := r.graph.Lookup(scope + "::" + name); ok && accept(t) {
			return t.ID, true
		}
	}
	return 0, false
}

// parentScope drops the last segment of a qualified name
func parentScope(scope string) string {
	segs := parser.SplitQualified(scope)
	if len(segs) <= 1 {
		return ""
	}
	return strings.Join(segs[:len(segs)-1], "::")
}
