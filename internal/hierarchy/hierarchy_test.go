package hierarchy

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trevis/ACDecompileHallucinator-sub002/internal/models"
	"github.com/trevis/ACDecompileHallucinator-sub002/internal/parser"
)

const corpus = `
struct A { int a; };
struct B : A { int b; };
struct C : B { int c; };

struct Outer { int x; };
struct Outer::Inner { int y; };
struct Outer::User
{
  Inner in;
  Outer::Inner *p;
  Missing *gone;
  Missing value;
};

struct Vec<int> { int a; };
struct Vec<int>::Node { int b; };
struct Vec<char> { int c; };

typedef B A2;
typedef A2 A3;
typedef Loop2 Loop1;
typedef Loop1 Loop2;
typedef Nowhere Dangling;
typedef unsigned int UINT;
`

func load(t *testing.T, src string) *models.Graph {
	t.Helper()
	res := parser.ParseString(src, "test.h")
	require.Empty(t, res.Diagnostics)
	return res.Graph
}

func mustLookup(t *testing.T, g *models.Graph, fqn string) *models.TypeEntity {
	t.Helper()
	e, ok := g.Lookup(fqn)
	require.True(t, ok, "missing %s", fqn)
	return e
}

func TestLinkReferences(t *testing.T) {
	g := load(t, corpus)
	report := NewResolver(g).LinkReferences()

	user := mustLookup(t, g, "Outer::User")
	inner := mustLookup(t, g, "Outer::Inner")
	require.Len(t, user.Members, 4)

	// enclosing-scope lookup
	assert.Equal(t, inner.ID, user.Members[0].Type.ResolvedID)
	assert.Equal(t, inner.ID, user.Members[1].Type.ResolvedID)
	assert.False(t, user.Members[2].Type.IsResolved())

	b := mustLookup(t, g, "B")
	assert.Equal(t, mustLookup(t, g, "A").ID, b.Bases[0].Ref.ResolvedID)

	assert.Equal(t, 2, report.Unresolved["Missing"])
	assert.Equal(t, 1, report.Unresolved["Nowhere"])
	assert.NotContains(t, report.Unresolved, "int")
	assert.Positive(t, report.Resolved)

	top := report.Top(1)
	require.Len(t, top, 1)
	assert.Equal(t, "Missing", top[0].Name)
	assert.Equal(t, 3, report.UnresolvedTotal())
}

func TestLinkNestingKeepsInstantiationsApart(t *testing.T) {
	g := load(t, corpus)
	linked := LinkNesting(g)
	assert.Equal(t, 3, linked)

	vecInt := mustLookup(t, g, "Vec<int>")
	vecChar := mustLookup(t, g, "Vec<char>")
	node := mustLookup(t, g, "Vec<int>::Node")

	assert.Equal(t, vecInt.ID, node.ParentID)
	assert.Equal(t, []models.EntityID{node.ID}, vecInt.NestedIDs)
	assert.Zero(t, vecChar.ParentID)
	assert.Empty(t, vecChar.NestedIDs)

	outer := mustLookup(t, g, "Outer")
	assert.Len(t, g.Children(outer.ID), 2)

	// idempotent
	assert.Zero(t, LinkNesting(g))
}

func TestResolveTypedef(t *testing.T) {
	g := load(t, corpus)
	NewResolver(g).LinkReferences()

	id, ok := ResolveTypedef(g, mustLookup(t, g, "A3").ID)
	require.True(t, ok)
	assert.Equal(t, mustLookup(t, g, "B").ID, id)

	_, ok = ResolveTypedef(g, mustLookup(t, g, "Loop1").ID)
	assert.False(t, ok, "cycle")

	_, ok = ResolveTypedef(g, mustLookup(t, g, "Dangling").ID)
	assert.False(t, ok, "dangling")

	uint := mustLookup(t, g, "UINT")
	id, ok = ResolveTypedef(g, uint.ID)
	require.True(t, ok)
	assert.Equal(t, uint.ID, id)
}

func TestIsDerivedFrom(t *testing.T) {
	g := load(t, corpus+"struct D : A3 { int d; };")
	NewResolver(g).LinkReferences()

	c := mustLookup(t, g, "C")
	assert.True(t, IsDerivedFrom(g, c.ID, "A"))
	assert.True(t, IsDerivedFrom(g, c.ID, "B"))
	assert.False(t, IsDerivedFrom(g, mustLookup(t, g, "A").ID, "C"))
	assert.False(t, IsDerivedFrom(g, c.ID, "C"))

	// through a typedef chain
	assert.True(t, IsDerivedFrom(g, mustLookup(t, g, "D").ID, "A"))
}

const groupCorpus = `
struct A { int a; };
struct B : A { int b; };
struct Player { int m_level; };
enum PLAYER { PLAYER_NONE, PLAYER_ONE };
struct UI::Button { int x; };
struct Thing_vtbl { int (__thiscall *Get)(void *this); };
struct Other_vtbl { int (__thiscall *Get)(void *this); };
struct Fwd;
struct Hidden { int h; };

//----- (00401000) --------------------------------------------------------
int __cdecl Helper(int x)
{
  return x;
}

//----- (00401100) --------------------------------------------------------
int __cdecl UI::Draw(int x)
{
  return x;
}

int g_count; // 0x00812350
`

func groupPaths(groups []*Group) map[string]*Group {
	out := make(map[string]*Group, len(groups))
	for _, g := range groups {
		out[g.Path] = g
	}
	return out
}

func TestGroupDefaultPlacement(t *testing.T) {
	g := load(t, groupCorpus)
	NewResolver(g).LinkReferences()
	LinkNesting(g)
	MarkIgnored(g, []*regexp.Regexp{regexp.MustCompile(`^Hidden$`)})

	groups := NewGrouper(g).Group()
	byPath := groupPaths(groups)

	// case-insensitive: Player and PLAYER share a file
	player, ok := byPath["Player.cs"]
	require.True(t, ok)
	assert.Len(t, player.TypeIDs, 2)
	assert.Equal(t, "player.cs", player.Key)
	_, dup := byPath["PLAYER.cs"]
	assert.False(t, dup)

	assert.Contains(t, byPath, "UI/Button.cs")
	assert.NotContains(t, byPath, "Hidden.cs")
	assert.NotContains(t, byPath, "Fwd.cs")

	globals := byPath["Globals.cs"]
	require.NotNil(t, globals)
	assert.True(t, globals.IsGlobals())
	require.Len(t, globals.Functions, 1)
	assert.Equal(t, "Helper", globals.Functions[0].Name)
	assert.Len(t, globals.Statics, 1)

	uiGlobals := byPath["UI/Globals.cs"]
	require.NotNil(t, uiGlobals)
	assert.Equal(t, "Draw", uiGlobals.Functions[0].Name)

	for i := 1; i < len(groups); i++ {
		assert.Less(t, groups[i-1].Key, groups[i].Key)
	}
}

func TestGroupRules(t *testing.T) {
	g := load(t, groupCorpus)
	NewResolver(g).LinkReferences()
	LinkNesting(g)

	gr := NewGrouper(g,
		RuleBaseClass{Base: "A", Placement: Placement{Prefix: "Hier"}},
		RuleFQNPattern{Pattern: regexp.MustCompile(`_vtbl$`), Placement: Placement{Prefix: "VTables", FileName: "VTables"}},
		RuleNamespacePrefix{Prefix: "UI", Placement: Placement{Prefix: "Gui", StripNamespace: true}},
	)
	gr.AddRule(RuleMemberPattern{Pattern: regexp.MustCompile(`^m_`), Placement: Placement{Prefix: "Members"}})

	byPath := groupPaths(gr.Group())
	assert.Contains(t, byPath, "Hier/A.cs")
	assert.Contains(t, byPath, "Hier/B.cs")
	assert.Contains(t, byPath, "Gui/Button.cs")
	assert.Contains(t, byPath, "Members/Player.cs")
	require.Contains(t, byPath, "VTables/VTables.cs")
	assert.Len(t, byPath["VTables/VTables.cs"].TypeIDs, 2)
}

func TestGroupFirstMatchWins(t *testing.T) {
	g := load(t, groupCorpus)
	NewResolver(g).LinkReferences()

	gr := NewGrouper(g,
		RuleFQNPattern{Pattern: regexp.MustCompile(`^B$`), Placement: Placement{Prefix: "First"}},
		RuleBaseClass{Base: "A", Placement: Placement{Prefix: "Second"}},
	)
	b := mustLookup(t, g, "B")
	assert.Equal(t, "First/B.cs", gr.PathFor(b))
	assert.Equal(t, "Second/A.cs", gr.PathFor(mustLookup(t, g, "A")))
}

func TestParseRules(t *testing.T) {
	doc := `
rules:
  - type: base_class
    match: A
    dir: Hier
  - type: fqn_pattern
    match: "_vtbl$"
    dir: VTables
    file: VTables
  - type: member_pattern
    match: "^m_"
  - type: namespace_prefix
    match: UI
    strip_namespace: true
ignore:
  - "^Hidden$"
`
	rs, err := ParseRules([]byte(doc))
	require.NoError(t, err)
	require.Len(t, rs.Rules, 4)
	require.Len(t, rs.Ignore, 1)

	base, ok := rs.Rules[0].(RuleBaseClass)
	require.True(t, ok)
	assert.Equal(t, "A", base.Base)
	assert.Equal(t, "Hier", base.Prefix)

	fqn, ok := rs.Rules[1].(RuleFQNPattern)
	require.True(t, ok)
	assert.Equal(t, "VTables", fqn.FileName)
	assert.True(t, fqn.Pattern.MatchString("Foo_vtbl"))

	_, ok = rs.Rules[2].(RuleMemberPattern)
	assert.True(t, ok)

	ns, ok := rs.Rules[3].(RuleNamespacePrefix)
	require.True(t, ok)
	assert.True(t, ns.StripNamespace)
}

func TestParseRulesErrors(t *testing.T) {
	tests := map[string]string{
		"unknown type":  "rules:\n  - type: nope\n    match: x\n",
		"bad regexp":    "rules:\n  - type: fqn_pattern\n    match: \"(\"\n",
		"missing match": "rules:\n  - type: base_class\n",
		"bad ignore":    "ignore:\n  - \"[\"\n",
		"bad yaml":      "rules: [",
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := ParseRules([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rules.yaml")
	require.NoError(t, os.WriteFile(path, []byte("rules:\n  - type: base_class\n    match: A\n"), 0o644))

	rs, err := LoadRules(path)
	require.NoError(t, err)
	assert.Len(t, rs.Rules, 1)

	_, err = LoadRules(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
