package hierarchy

import (
	"regexp"

	"github.com/trevis/ACDecompileHallucinator-sub002/internal/mapping"
	"github.com/trevis/ACDecompileHallucinator-sub002/internal/models"
)

// LinkNesting makes every entity whose namespace is exactly the FQN of a
// record a child of that record. Instantiations that only share a base name
// never match, since their FQNs differ in the argument list. Returns the
// number of links made.
func LinkNesting(g *models.Graph) int {
	linked := 0
	for _, t := range g.Types() {
		if t.Namespace == "" || t.ParentID != 0 {
			continue
		}
		parent, ok := g.Lookup(t.Namespace)
		if !ok || parent.ID == t.ID || !parent.Kind.IsRecord() {
			continue
		}
		t.ParentID = parent.ID
		parent.NestedIDs = append(parent.NestedIDs, t.ID)
		linked++
	}
	return linked
}

// ResolveTypedef follows a chain of typedefs starting at id. It returns the
// first entity that is not a plain alias, or a typedef to a pointer, array,
// function pointer or primitive. Cycles and chains ending in a name that is
// neither an entity nor a primitive return (0, false).
func ResolveTypedef(g *models.Graph, id models.EntityID) (models.EntityID, bool) {
	end, ok := g.ResolveTypedef(id)
	if !ok {
		return 0, false
	}
	t := g.Type(end)
	if t.Kind == models.KindTypedef && t.TypedefTarget != nil && !t.TypedefTarget.IsResolved() &&
		t.TypedefTarget.FuncSig == nil && t.TypedefTarget.PointerDepth == 0 && !t.TypedefTarget.IsArray &&
		!t.TypedefTarget.IsVoid() && !mapping.IsPrimitive(t.TypedefTarget.Base) {
		return 0, false
	}
	return end, true
}

// IsDerivedFrom reports whether id has baseFQN among its transitive bases.
// Bases named through typedefs are followed.
func IsDerivedFrom(g *models.Graph, id models.EntityID, baseFQN string) bool {
	visited := map[models.EntityID]bool{id: true}
	queue := []models.EntityID{id}
	for len(queue) > 0 {
		t := g.Type(queue[0])
		queue = queue[1:]
		if t == nil {
			continue
		}
		for _, b := range t.Bases {
			if b.Ref.Base == baseFQN {
				return true
			}
			bid := b.Ref.ResolvedID
			if bid == 0 {
				continue
			}
			if resolved, ok := g.ResolveTypedef(bid); ok {
				bid = resolved
			}
			base := g.Type(bid)
			if base == nil || visited[bid] {
				continue
			}
			if base.FQN() == baseFQN {
				return true
			}
			visited[bid] = true
			queue = append(queue, bid)
		}
	}
	return false
}

// MarkIgnored sets IsIgnored on every entity whose FQN matches one of the
// patterns and returns how many were marked
func MarkIgnored(g *models.Graph, patterns []*regexp.Regexp) int {
	if len(patterns) == 0 {
		return 0
	}
	marked := 0
	for _, t := range g.Types() {
		fqn := t.FQN()
		for _, p := range patterns {
			if p.MatchString(fqn) {
				if !t.IsIgnored {
					t.IsIgnored = true
					marked++
				}
				break
			}
		}
	}
	return marked
}
