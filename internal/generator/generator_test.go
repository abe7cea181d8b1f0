package generator

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trevis/ACDecompileHallucinator-sub002/internal/comments"
	"github.com/trevis/ACDecompileHallucinator-sub002/internal/hierarchy"
	"github.com/trevis/ACDecompileHallucinator-sub002/internal/layout"
	"github.com/trevis/ACDecompileHallucinator-sub002/internal/models"
	"github.com/trevis/ACDecompileHallucinator-sub002/internal/parser"
)

const corpus = `
struct __cppobj Base
{
  Base_vtbl *__vftable /*VFT*/;
  int id;
};

struct /*VFT*/ Base_vtbl
{
  void (__thiscall *Release)(Base *this);
};

struct __cppobj Owner : public Base
{
  char name[16];
  Base items[2];
  unsigned int flags : 3;
  unsigned int mode : 5;
  Owner *next;
};

enum __bitmask Flags : unsigned __int16
{
  FLAG_A = 0x1,
  FLAG_B = 0x2,
};

enum Small
{
  S_A = 0,
  S_B = 3,
};

enum Signed
{
  N_A = -1,
  N_B = 200,
};

enum Big
{
  B_A = 0,
  B_MAX = 0x7FFFFFFF,
};

//----- (00401000) --------------------------------------------------------
void __thiscall Owner::Owner(Owner *this)
{
  this->id = 0;
}

//----- (00401080) --------------------------------------------------------
int __thiscall Owner::Find(Owner *this, const char *name, int start)
{
  return start;
}

//----- (004010A0) --------------------------------------------------------
bool __thiscall Owner::operator==(Owner *this, const Owner *other)
{
  return this->id == other->id;
}

//----- (004010C0) --------------------------------------------------------
Owner *__cdecl Owner::Create(int kind)
{
  return 0;
}

//----- (00402000) --------------------------------------------------------
int __cdecl Helper(int a)
{
  return a;
}

//----- (00402040) --------------------------------------------------------
int __usercall Fast@<eax>(int a1@<ecx>)
{
  return a1;
}

int Owner::s_count; // 0x00812345
Owner *g_first; // 0x00812350
`

const disposeCorpus = `
struct Res
{
  int handle;
};

struct Mid : public Res
{
  int x;
};

struct Leaf : public Mid
{
  int y;
};

struct Plain
{
  int z;
};

//----- (00403000) --------------------------------------------------------
void __thiscall Res::~Res(Res *this)
{
  this->handle = 0;
}

//----- (00403100) --------------------------------------------------------
void __thiscall Leaf::~Leaf(Leaf *this)
{
  this->y = 0;
}
`

func prepare(t *testing.T, src string) (*models.Graph, *layout.Calculator, []*hierarchy.Group) {
	t.Helper()
	res := parser.ParseString(src, "gen.h")
	require.Empty(t, res.Diagnostics)
	g := res.Graph
	hierarchy.NewResolver(g).LinkReferences()
	hierarchy.LinkNesting(g)
	calc := layout.New(g)
	calc.ComputeAll()
	return g, calc, hierarchy.NewGrouper(g).Group()
}

func generateAll(t *testing.T, src string, provider comments.Provider) map[string]string {
	t.Helper()
	g, calc, groups := prepare(t, src)
	gen := New(g, calc, provider, Options{RootNamespace: "AC", Workers: 3})
	files, err := gen.Generate(context.Background(), groups)
	require.NoError(t, err)

	out := make(map[string]string, len(files))
	for _, f := range files {
		out[f.Path] = f.Content
	}
	return out
}

func TestGenerateRecordLayout(t *testing.T) {
	files := generateAll(t, corpus, nil)
	owner, ok := files["Owner.cs"]
	require.True(t, ok, "missing Owner.cs")

	for _, want := range []string{
		"namespace AC",
		"[StructLayout(LayoutKind.Explicit, Size = 48)]",
		"public unsafe struct Owner",
		"[FieldOffset(0)] public AC.Base BaseClass_Base;",
		"[FieldOffset(8)] public fixed sbyte name[16];",
		"[FieldOffset(24)] public fixed byte items_Raw[16];",
		"public AC.Base* items => (AC.Base*)Unsafe.AsPointer(ref items_Raw[0]);",
		"[FieldOffset(44)] public AC.Owner* next;",
	} {
		assert.Contains(t, owner, want)
	}
	assert.NotContains(t, owner, "IDisposable")

	base := files["Base.cs"]
	assert.Contains(t, base, "[StructLayout(LayoutKind.Explicit, Size = 8)]")
	assert.Contains(t, base, "[FieldOffset(0)] public AC.Base_vtbl* __vftable;")
	assert.Contains(t, base, "[FieldOffset(4)] public int id;")
}

func TestGenerateArrayOfUnsizedElement(t *testing.T) {
	// a typedef cycle never produces an element size
	files := generateAll(t, `
typedef Loop2 Loop1;
typedef Loop1 Loop2;
struct Holder { int a; Loop1 items[3]; };
`, nil)
	holder, ok := files["Holder.cs"]
	require.True(t, ok, "missing Holder.cs")

	assert.Contains(t, holder, "public static int items_ByteSize => sizeof(")
	assert.Contains(t, holder, ") * 3;")
	assert.Contains(t, holder, "*)((byte*)Unsafe.AsPointer(ref this) + 4);")
	assert.NotContains(t, holder, "items_Raw")
}

func TestGenerateBitfields(t *testing.T) {
	owner := generateAll(t, corpus, nil)["Owner.cs"]

	assert.Contains(t, owner, "[FieldOffset(40)] public uint _bitfield_40;")
	assert.Contains(t, owner, "// bits 0..2")
	assert.Contains(t, owner, "get => (uint)((_bitfield_40 >> 0) & 0x7u);")
	assert.Contains(t, owner, "set => _bitfield_40 = (uint)((_bitfield_40 & ~(0x7u << 0)) | (((uint)value & 0x7u) << 0));")
	assert.Contains(t, owner, "// bits 3..7")
	assert.Contains(t, owner, "get => (uint)((_bitfield_40 >> 3) & 0x1Fu);")
	assert.Equal(t, 1, strings.Count(owner, "_bitfield_40;"))
}

func TestGenerateMethods(t *testing.T) {
	owner := generateAll(t, corpus, nil)["Owner.cs"]

	assert.Contains(t, owner, "public void _ConstructorInternal() => ((delegate* unmanaged[Thiscall]<AC.Owner*, void>)0x00401000)((AC.Owner*)Unsafe.AsPointer(ref this));")
	assert.Contains(t, owner, "public int Find(sbyte* name, int start) => ((delegate* unmanaged[Thiscall]<AC.Owner*, sbyte*, int, int>)0x00401080)((AC.Owner*)Unsafe.AsPointer(ref this), name, start);")
	assert.Contains(t, owner, "public static AC.Owner* Create(int kind) => ((delegate* unmanaged[Cdecl]<int, AC.Owner*>)0x004010C0)(kind);")
	assert.Contains(t, owner, "// 0x00401080 Owner::Find")

	// operators are never active code
	for _, l := range strings.Split(owner, "\n") {
		if strings.Contains(l, "0x004010A0)") {
			assert.Contains(t, l, "// disabled (operator): ")
		}
	}
	assert.Contains(t, owner, "public static ref int s_count => ref *(int*)0x00812345;")
}

func TestGenerateGlobals(t *testing.T) {
	files := generateAll(t, corpus, nil)
	globals, ok := files["Globals.cs"]
	require.True(t, ok, "missing Globals.cs")

	assert.Contains(t, globals, "public static unsafe class Globals")
	assert.Contains(t, globals, "public static ref AC.Owner* g_first => ref *(AC.Owner**)0x00812350;")
	assert.Contains(t, globals, "public static int Helper(int a) => ((delegate* unmanaged[Cdecl]<int, int>)0x00402000)(a);")
	assert.Contains(t, globals, "// disabled (register-located arguments): ")
}

func TestGenerateEnums(t *testing.T) {
	files := generateAll(t, corpus, nil)

	flags := files["Flags.cs"]
	assert.Contains(t, flags, "[Flags]")
	assert.Contains(t, flags, "public enum Flags : ushort")
	assert.Contains(t, flags, "FLAG_B = 0x2,")

	assert.Contains(t, files["Small.cs"], "public enum Small : byte")
	assert.Contains(t, files["Small.cs"], "S_B = 3,")
	assert.NotContains(t, files["Small.cs"], "[Flags]")
	assert.Contains(t, files["Signed.cs"], "public enum Signed : short")
	assert.Contains(t, files["Signed.cs"], "N_A = -1,")
	assert.Contains(t, files["Big.cs"], "public enum Big : uint")
}

func TestEnumUnderlying(t *testing.T) {
	val := func(v int64) *int64 { return &v }
	tests := []struct {
		name     string
		declared string
		values   []int64
		want     string
	}{
		{"empty", "", nil, "byte"},
		{"byte", "", []int64{0, 255}, "byte"},
		{"ushort", "", []int64{256}, "ushort"},
		{"top of int", "", []int64{0x7FFFFFFF}, "uint"},
		{"ulong", "", []int64{0x100000000}, "ulong"},
		{"sbyte", "", []int64{-1, 127}, "sbyte"},
		{"int", "", []int64{-1, 70000}, "int"},
		{"top of int with negatives", "", []int64{-1, 0x7FFFFFFF}, "uint"},
		{"long", "", []int64{-0x100000000}, "long"},
		{"declared", "int", []int64{1}, "int"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := &models.TypeEntity{Kind: models.KindEnum, UnderlyingType: tt.declared}
			for _, v := range tt.values {
				e.EnumMembers = append(e.EnumMembers, models.EnumMember{Name: "V", Value: val(v)})
			}
			assert.Equal(t, tt.want, EnumUnderlying(e))
		})
	}
}

func TestDisposeChaining(t *testing.T) {
	files := generateAll(t, disposeCorpus, nil)

	res := files["Res.cs"]
	assert.Contains(t, res, "public unsafe struct Res : IDisposable")
	assert.Contains(t, res, "_DestructorInternal();")

	// no destructor of its own: chain to the base
	mid := files["Mid.cs"]
	assert.Contains(t, mid, "public unsafe struct Mid : IDisposable")
	assert.Contains(t, mid, "BaseClass_Res.Dispose();")
	assert.NotContains(t, mid, "_DestructorInternal")

	// own destructor only, never both
	leaf := files["Leaf.cs"]
	assert.Contains(t, leaf, "public unsafe struct Leaf : IDisposable")
	assert.Contains(t, leaf, "_DestructorInternal();")
	assert.NotContains(t, leaf, "BaseClass_Mid.Dispose();")

	plain := files["Plain.cs"]
	assert.NotContains(t, plain, "IDisposable")
	assert.NotContains(t, plain, "Dispose()")
}

func TestGenerateComments(t *testing.T) {
	provider := comments.ProviderFunc(func(_ context.Context, kind comments.Kind, fqn string) (string, bool, error) {
		switch {
		case kind == comments.KindStruct && fqn == "Owner":
			return "Owns <things> & more.", true, nil
		case kind == comments.KindMethod && fqn == "Owner::Find":
			return "Finds by name.", true, nil
		case kind == comments.KindEnum && fqn == "Flags":
			return "Flag bits.", true, nil
		}
		return "", false, nil
	})
	files := generateAll(t, corpus, provider)

	assert.Contains(t, files["Owner.cs"], "/// Owns &lt;things&gt; &amp; more.")
	assert.Contains(t, files["Owner.cs"], "/// Finds by name.")
	assert.Contains(t, files["Flags.cs"], "/// <summary>")
	assert.Contains(t, files["Flags.cs"], "/// Flag bits.")
	assert.NotContains(t, files["Base.cs"], "/// <summary>")
}

func TestGenerateSourceComments(t *testing.T) {
	g, calc, groups := prepare(t, corpus)
	gen := New(g, calc, nil, Options{RootNamespace: "AC", EmitSourceComments: true})
	files, err := gen.Generate(context.Background(), groups)
	require.NoError(t, err)

	var found bool
	for _, f := range files {
		if strings.Contains(f.Content, "// Source: gen.h:") {
			found = true
		}
	}
	assert.True(t, found)
}

func TestGenerateKeepsGroupOrder(t *testing.T) {
	g, calc, groups := prepare(t, corpus)
	gen := New(g, calc, nil, Options{RootNamespace: "AC", Workers: 4})
	files, err := gen.Generate(context.Background(), groups)
	require.NoError(t, err)
	require.Len(t, files, len(groups))
	for i, grp := range groups {
		assert.Equal(t, grp.Path, files[i].Path)
		assert.True(t, strings.HasPrefix(files[i].Content, "// <auto-generated>"))
	}
}

func TestGenerateCancelled(t *testing.T) {
	g, calc, groups := prepare(t, corpus)
	gen := New(g, calc, nil, Options{RootNamespace: "AC"})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := gen.Generate(ctx, groups)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWriteFiles(t *testing.T) {
	dir := t.TempDir()
	files := []File{
		{Path: "Owner.cs", Content: "a"},
		{Path: "UI/Button.cs", Content: "b"},
	}
	require.NoError(t, WriteFiles(dir, files))

	data, err := os.ReadFile(filepath.Join(dir, "UI", "Button.cs"))
	require.NoError(t, err)
	assert.Equal(t, "b", string(data))
}
