package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trevis/ACDecompileHallucinator-sub002/internal/models"
)

func intPtr(v int) *int { return &v }

func TestFlatten(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Base<A,B>", "Base__A__B"},
		{"NS::Vec<Foo *,4>", "NS_Vec__FooPtr"},
		{"Holder<NS::Item *,8>", "Holder__NS_ItemPtr"},
		{"Vec<int>", "Vec__int"},
		{"Vec<unsigned int>", "Vec__uint"},
		{"Map<Key<int>,Foo>", "Map__Key__int__Foo"},
		{"Plain", "Plain"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, Flatten(tt.in))
		})
	}
}

func TestSiblingInstantiationsFlattenDistinctly(t *testing.T) {
	a := Flatten("SmartArray<Foo *,1>")
	b := Flatten("SmartArray<Bar *,1>")
	assert.NotEqual(t, a, b)
	assert.Equal(t, "SmartArray__FooPtr", a)
}

func TestFlattenQualified(t *testing.T) {
	assert.Equal(t, "Outer__T.Inner.Deep", FlattenQualified("Outer<T>::Inner::Deep"))
	assert.Equal(t, "NS.Foo", FlattenQualified("::NS::Foo"))
	assert.Equal(t, "Owner._U5", FlattenQualified("Owner::$U5"))
	assert.Equal(t, "@object.Foo", FlattenQualified("object::Foo"))
}

func TestMapSpelling(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"PrimitiveInplaceArray<Foo,8,1>", "PrimitiveInplaceArray<Foo>"},
		{"PrimitiveInplaceArray<Foo *,8,1>", "PrimitiveInplaceArray<void*>"},
		{"PrimitiveInplaceArray<unsigned int,4,1>", "PrimitiveInplaceArray<uint>"},
		{"_STL::vector<Foo *>", "StlVector"},
		{"_STL::vector<struct Foo *>", "StlVector"},
		{"std::vector<int>", "StlVector"},
		{"unsigned int *", "uint*"},
		{"const char *", "sbyte*"},
		{"__int64", "long"},
		{"NS::Thing", "NS.Thing"},
		{"void (__cdecl *)(int)", "void*"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, MapSpelling(tt.in))
		})
	}
}

func TestSanitizeIdentifier(t *testing.T) {
	tests := map[string]string{
		"$U5":   "_U5",
		"~Foo":  "_Foo",
		"class": "@class",
		"a.b":   "a_b",
		"1x":    "_1x",
		"":      "_",
		"ok_id": "ok_id",
	}
	for in, want := range tests {
		assert.Equal(t, want, SanitizeIdentifier(in), in)
	}
}

func TestTables(t *testing.T) {
	size, ok := PrimitiveSize("wchar_t")
	require.True(t, ok)
	assert.Equal(t, 2, size)

	cs, ok := MapPrimitive("_DWORD")
	require.True(t, ok)
	assert.Equal(t, "uint", cs)

	assert.False(t, IsPrimitive("Foo"))
	assert.True(t, IsKeyword("params"))

	name, ok := ConventionName(models.ConvThiscall)
	assert.True(t, ok)
	assert.Equal(t, "Thiscall", name)

	name, ok = ConventionName(models.ConvVectorcall)
	assert.True(t, ok)
	assert.Empty(t, name)

	_, ok = ConventionName(models.ConvUsercall)
	assert.False(t, ok)
}

type fixture struct {
	g                             *models.Graph
	foo, fwd, ign, pfoo, arr, als models.EntityID
}

func newFixture() fixture {
	g := models.NewGraph()
	var f fixture
	f.g = g
	f.foo, _ = g.AddType(&models.TypeEntity{Kind: models.KindStruct, Name: "Foo", Namespace: "NS", IsDefined: true})
	f.fwd, _ = g.AddType(&models.TypeEntity{Kind: models.KindStruct, Name: "Fwd"})
	f.ign, _ = g.AddType(&models.TypeEntity{Kind: models.KindStruct, Name: "Ign", IsDefined: true, IsIgnored: true})
	f.pfoo, _ = g.AddType(&models.TypeEntity{
		Kind: models.KindTypedef, Name: "PFoo", IsDefined: true,
		TypedefTarget: &models.TypeReference{Base: "NS::Foo", Name: "NS::Foo", PointerDepth: 1, ResolvedID: f.foo},
	})
	f.arr, _ = g.AddType(&models.TypeEntity{
		Kind: models.KindTypedef, Name: "Arr4", IsDefined: true,
		TypedefTarget: &models.TypeReference{Base: "int", Name: "int", IsArray: true, ArraySize: intPtr(4)},
	})
	f.als, _ = g.AddType(&models.TypeEntity{
		Kind: models.KindTypedef, Name: "Alias", IsDefined: true,
		TypedefTarget: &models.TypeReference{Base: "NS::Foo", Name: "NS::Foo", ResolvedID: f.foo},
	})
	return f
}

func TestMapperTypeName(t *testing.T) {
	f := newFixture()
	m := NewMapper(f.g, "AC")

	tests := []struct {
		name string
		ref  models.TypeReference
		want string
	}{
		{"resolved value", models.TypeReference{Base: "NS::Foo", ResolvedID: f.foo}, "AC.NS.Foo"},
		{"resolved pointer", models.TypeReference{Base: "NS::Foo", PointerDepth: 2, ResolvedID: f.foo}, "AC.NS.Foo**"},
		{"reference", models.TypeReference{Base: "NS::Foo", IsReference: true, ResolvedID: f.foo}, "AC.NS.Foo*"},
		{"forward pointer", models.TypeReference{Base: "Fwd", PointerDepth: 1, ResolvedID: f.fwd}, "void*"},
		{"forward value", models.TypeReference{Base: "Fwd", ResolvedID: f.fwd}, "AC.Fwd"},
		{"ignored pointer", models.TypeReference{Base: "Ign", PointerDepth: 1, ResolvedID: f.ign}, "void*"},
		{"unresolved pointer", models.TypeReference{Base: "Missing", PointerDepth: 1}, "void*"},
		{"unresolved value", models.TypeReference{Base: "A::Missing"}, "A.Missing"},
		{"void pointer", models.TypeReference{Base: "void", PointerDepth: 1}, "void*"},
		{"primitive", models.TypeReference{Base: "unsigned char", PointerDepth: 1}, "byte*"},
		{"pointer typedef", models.TypeReference{Base: "PFoo", ResolvedID: f.pfoo}, "AC.NS.Foo*"},
		{"pointer to pointer typedef", models.TypeReference{Base: "PFoo", PointerDepth: 1, ResolvedID: f.pfoo}, "AC.NS.Foo**"},
		{"plain alias", models.TypeReference{Base: "Alias", ResolvedID: f.als}, "AC.NS.Foo"},
		{"stl vector", models.TypeReference{Name: "_STL::vector", Base: "_STL::vector<int>"}, "StlVector"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, m.TypeName(tt.ref))
		})
	}
}

func TestMapperFunctionPointer(t *testing.T) {
	f := newFixture()
	m := NewMapper(f.g, "AC")

	ref := models.TypeReference{PointerDepth: 1, FuncSig: &models.FunctionSignature{
		Return:     models.TypeReference{Base: "int"},
		Convention: models.ConvThiscall,
		Params: []models.FunctionParameter{
			{Name: "this", Type: models.TypeReference{Base: "NS::Foo", PointerDepth: 1, ResolvedID: f.foo}},
			{Name: "buf", Type: models.TypeReference{Base: "char", IsArray: true, ArraySize: intPtr(8)}},
		},
	}}
	assert.Equal(t, "delegate* unmanaged[Thiscall]<AC.NS.Foo*, sbyte*, int>", m.TypeName(ref))

	user := models.TypeReference{PointerDepth: 2, FuncSig: &models.FunctionSignature{
		Return:     models.TypeReference{Base: "void"},
		Convention: models.ConvUsercall,
	}}
	assert.Equal(t, "delegate* unmanaged<void>*", m.TypeName(user))
}

func TestUnaliasArrays(t *testing.T) {
	f := newFixture()

	arr := Unalias(f.g, models.TypeReference{Base: "Arr4", IsArray: true, ArraySize: intPtr(2), ResolvedID: f.arr})
	require.True(t, arr.IsArray)
	assert.Equal(t, 8, arr.Count())
	assert.Equal(t, "int", arr.Base)

	ptr := Unalias(f.g, models.TypeReference{Base: "Arr4", PointerDepth: 1, ResolvedID: f.arr})
	assert.False(t, ptr.IsArray)
	assert.Equal(t, 1, ptr.PointerDepth)

	m := NewMapper(f.g, "AC")
	assert.Equal(t, "int*", m.ParamTypeName(models.TypeReference{Base: "Arr4", ResolvedID: f.arr}))
}

func TestMapperNames(t *testing.T) {
	f := newFixture()
	m := NewMapper(f.g, "AC")
	foo := f.g.Type(f.foo)

	assert.Equal(t, "AC", m.Namespace(""))
	assert.Equal(t, "AC.NS", m.Namespace("NS"))
	assert.Equal(t, "AC.NS.Foo", m.EntityName(foo))
	assert.Equal(t, "Foo", TypeIdentifier(foo))
	assert.True(t, m.Usable(f.foo))
	assert.False(t, m.Usable(f.fwd))
	assert.False(t, m.Usable(f.pfoo))

	bare := NewMapper(f.g, "")
	assert.Equal(t, "NS.Foo", bare.EntityName(foo))
}
