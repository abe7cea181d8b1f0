package hierarchy

import (
	"path"
	"regexp"
	"sort"
	"strings"

	"github.com/trevis/ACDecompileHallucinator-sub002/internal/mapping"
	"github.com/trevis/ACDecompileHallucinator-sub002/internal/models"
)

// GlobalsFile is the file name free functions and global statics are grouped under
const GlobalsFile = "Globals"

// Placement decides where a matched entity is written
type Placement struct {
	Prefix         string // directory prefix, "/"-separated
	StripNamespace bool   // drop the namespace directories
	FileName       string // shared file name (without extension); empty = the type name
}

// Rule is one grouping rule. The set of rules is closed: RuleBaseClass,
// RuleFQNPattern, RuleMemberPattern and RuleNamespacePrefix.
type Rule interface {
	placement() Placement
}

// RuleBaseClass matches a type and everything transitively derived from it
type RuleBaseClass struct {
	Base string
	Placement
}

// RuleFQNPattern matches entities whose FQN matches Pattern
type RuleFQNPattern struct {
	Pattern *regexp.Regexp
	Placement
}

// RuleMemberPattern matches records with at least one member whose name matches
type RuleMemberPattern struct {
	Pattern *regexp.Regexp
	Placement
}

// RuleNamespacePrefix matches entities inside Prefix or one of its sub-namespaces
type RuleNamespacePrefix struct {
	Prefix string
	Placement
}

func (r RuleBaseClass) placement() Placement       { return r.Placement }
func (r RuleFQNPattern) placement() Placement      { return r.Placement }
func (r RuleMemberPattern) placement() Placement   { return r.Placement }
func (r RuleNamespacePrefix) placement() Placement { return r.Placement }

// Group is one output file and everything written into it
type Group struct {
	Key       string // case-folded Path
	Path      string // "/"-separated path relative to the output root
	TypeIDs   []models.EntityID
	Functions []models.FunctionBody
	Statics   []models.StaticVariable
}

// IsGlobals reports whether the group holds free functions or global statics
func (g *Group) IsGlobals() bool {
	return len(g.Functions) > 0 || len(g.Statics) > 0
}

// Grouper assigns root entities to output groups. Rules are evaluated in
// registration order and the first match wins.
type Grouper struct {
	graph *models.Graph
	rules []Rule
}

// NewGrouper creates a grouper over g with the given rules
func NewGrouper(g *models.Graph, rules ...Rule) *Grouper {
	return &Grouper{graph: g, rules: rules}
}

// AddRule appends a rule; it is evaluated after the existing ones
func (gr *Grouper) AddRule(r Rule) {
	gr.rules = append(gr.rules, r)
}

func (gr *Grouper) matches(rule Rule, t *models.TypeEntity) bool {
	switch r := rule.(type) {
	case RuleBaseClass:
		return t.FQN() == r.Base || IsDerivedFrom(gr.graph, t.ID, r.Base)
	case RuleFQNPattern:
		return r.Pattern != nil && r.Pattern.MatchString(t.FQN())
	case RuleMemberPattern:
		if r.Pattern == nil {
			return false
		}
		for _, m := range t.Members {
			if r.Pattern.MatchString(m.Name) {
				return true
			}
		}
	case RuleNamespacePrefix:
		return t.Namespace == r.Prefix || strings.HasPrefix(t.Namespace, r.Prefix+"::")
	}
	return false
}

// PlacementFor returns the placement of the first matching rule, or the
// default (own namespace, own name)
func (gr *Grouper) PlacementFor(t *models.TypeEntity) Placement {
	for _, r := range gr.rules {
		if gr.matches(r, t) {
			return r.placement()
		}
	}
	return Placement{}
}

// PathFor returns the output path of a root entity
func (gr *Grouper) PathFor(t *models.TypeEntity) string {
	p := gr.PlacementFor(t)
	name := p.FileName
	if name == "" {
		name = strings.TrimPrefix(mapping.TypeIdentifier(t), "@")
	}
	return buildPath(p, t.Namespace, name)
}

func buildPath(p Placement, namespace, name string) string {
	var parts []string
	if prefix := strings.Trim(p.Prefix, "/"); prefix != "" {
		parts = append(parts, prefix)
	}
	if !p.StripNamespace {
		parts = append(parts, namespaceDirs(namespace)...)
	}
	parts = append(parts, name+".cs")
	return path.Join(parts...)
}

func namespaceDirs(ns string) []string {
	if ns == "" {
		return nil
	}
	var dirs []string
	for _, d := range strings.Split(mapping.FlattenQualified(ns), ".") {
		dirs = append(dirs, strings.TrimPrefix(d, "@"))
	}
	return dirs
}

// Group buckets every root, non-typedef, non-ignored entity by output path.
// Paths are compared case-insensitively so a struct and an enum whose names
// differ only in case share one file. Free functions and global statics go
// to a Globals file under their namespace. Groups are sorted by key.
func (gr *Grouper) Group() []*Group {
	byKey := make(map[string]*Group)
	get := func(p string) *Group {
		key := strings.ToLower(p)
		grp, ok := byKey[key]
		if !ok {
			grp = &Group{Key: key, Path: p}
			byKey[key] = grp
		}
		return grp
	}

	for _, t := range gr.graph.Roots() {
		if t.Kind == models.KindTypedef || t.Kind == models.KindPrimitive || t.IsIgnored {
			continue
		}
		if t.Kind.IsRecord() && !t.IsDefined {
			continue
		}
		grp := get(gr.PathFor(t))
		grp.TypeIDs = append(grp.TypeIDs, t.ID)
	}
	for _, f := range gr.graph.Functions {
		grp := get(buildPath(Placement{}, f.OwnerFQN, GlobalsFile))
		grp.Functions = append(grp.Functions, f)
	}
	for _, s := range gr.graph.Statics {
		grp := get(buildPath(Placement{}, s.OwnerFQN, GlobalsFile))
		grp.Statics = append(grp.Statics, s)
	}

	groups := make([]*Group, 0, len(byKey))
	for _, grp := range byKey {
		groups = append(groups, grp)
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].Key < groups[j].Key })
	return groups
}
