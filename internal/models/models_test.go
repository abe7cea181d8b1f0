package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func TestTypeEntityFQN(t *testing.T) {
	arg := TypeReference{Base: "Foo", PointerDepth: 1}
	e := &TypeEntity{
		Name:      "Holder",
		Namespace: "NS",
		TemplateArgs: []TemplateArgument{
			{Position: 0, Type: &arg},
			{Position: 1, Literal: "8"},
		},
	}
	assert.Equal(t, "Holder<Foo*,8>", e.BaseName())
	assert.Equal(t, "NS::Holder<Foo*,8>", e.FQN())

	plain := &TypeEntity{Name: "Bar"}
	assert.Equal(t, "Bar", plain.FQN())
}

func TestTypeReferenceCanonical(t *testing.T) {
	tests := []struct {
		name string
		ref  TypeReference
		want string
	}{
		{"const pointer", TypeReference{Base: "char", IsConst: true, PointerDepth: 1}, "const char*"},
		{"array", TypeReference{Base: "int", IsArray: true, ArraySize: intPtr(4)}, "int[4]"},
		{"flexible", TypeReference{Base: "int", IsArray: true}, "int[]"},
		{"reference", TypeReference{Base: "Foo", IsReference: true}, "Foo&"},
		{"function pointer", TypeReference{
			PointerDepth: 1,
			FuncSig: &FunctionSignature{
				Return:     TypeReference{Base: "int"},
				Convention: ConvCdecl,
				Params:     []FunctionParameter{{Type: TypeReference{Base: "int"}}, {Type: TypeReference{Base: "char", PointerDepth: 1}}},
				IsVariadic: true,
			},
		}, "int(__cdecl*)(int,char*,...)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ref.Canonical())
		})
	}
}

func TestTypeReferenceShape(t *testing.T) {
	ref := TypeReference{Base: "Foo", Name: "Foo", PointerDepth: 2, IsArray: true, ArraySize: intPtr(3), ResolvedID: 7}
	arr, ok := ref.Shape().(ArrayShape)
	require.True(t, ok)
	assert.Equal(t, 3, *arr.Len)

	p1, ok := arr.Elem.(PointerShape)
	require.True(t, ok)
	p2, ok := p1.Elem.(PointerShape)
	require.True(t, ok)
	named, ok := p2.Elem.(NamedShape)
	require.True(t, ok)
	assert.Equal(t, EntityID(7), named.ID)

	tmpl := TypeReference{Name: "Vec", Base: "Vec<int>", TemplateArgs: []TemplateArgument{{Literal: "4"}}}
	_, ok = tmpl.Shape().(TemplateShape)
	assert.True(t, ok)

	assert.True(t, TypeReference{PointerDepth: 1}.IsPointer())
	assert.False(t, TypeReference{}.IsPointer())
}

func TestGraphAddTypeReplacesForwardDeclaration(t *testing.T) {
	g := NewGraph()
	fwd := &TypeEntity{Kind: KindStruct, Name: "Foo"}
	id, added := g.AddType(fwd)
	require.True(t, added)
	assert.Equal(t, EntityID(1), id)

	def := &TypeEntity{Kind: KindStruct, Name: "Foo", IsDefined: true}
	id2, added := g.AddType(def)
	assert.False(t, added)
	assert.Equal(t, id, id2)
	assert.Same(t, def, g.Type(id))

	dup := &TypeEntity{Kind: KindStruct, Name: "Foo", IsDefined: true}
	g.AddType(dup)
	assert.Same(t, def, g.Type(id))
	assert.Equal(t, 1, g.Len())
}

func TestGraphRecordReplacesTypedef(t *testing.T) {
	g := NewGraph()
	g.AddType(&TypeEntity{Kind: KindTypedef, Name: "Foo", IsDefined: true})
	rec := &TypeEntity{Kind: KindStruct, Name: "Foo", IsDefined: true}
	g.AddType(rec)
	got, ok := g.Lookup("Foo")
	require.True(t, ok)
	assert.Same(t, rec, got)
}

func TestGraphAttachOwnedAndMerge(t *testing.T) {
	a := NewGraph()
	a.AddType(&TypeEntity{Kind: KindStruct, Name: "Owner", IsDefined: true})
	a.AddFunction(FunctionBody{Name: "free_fn"})

	b := NewGraph()
	b.AddType(&TypeEntity{Kind: KindStruct, Name: "Other", IsDefined: true})
	b.AddFunction(FunctionBody{Name: "Method", OwnerFQN: "Owner"})
	b.AddStatic(StaticVariable{Name: "s_val", OwnerFQN: "Owner", Address: "0x00400000"})

	a.Merge(b)

	owner, ok := a.Lookup("Owner")
	require.True(t, ok)
	require.Len(t, owner.Functions, 1)
	assert.Equal(t, "Owner::Method", owner.Functions[0].FQN())
	assert.Len(t, owner.Statics, 1)
	assert.Len(t, a.Functions, 1)

	other, ok := a.Lookup("Other")
	require.True(t, ok)
	assert.Equal(t, EntityID(2), other.ID)
}

func TestGraphMergeRemapsResolvedReferences(t *testing.T) {
	a := NewGraph()
	a.AddType(&TypeEntity{Kind: KindStruct, Name: "First", IsDefined: true})

	b := NewGraph()
	holderID, _ := b.AddType(&TypeEntity{Kind: KindStruct, Name: "Holder", IsDefined: true})
	unionID, _ := b.AddType(&TypeEntity{Kind: KindUnion, Name: "$U1", Namespace: "Holder", IsDefined: true, ParentID: holderID})
	holder := b.Type(holderID)
	holder.NestedIDs = []EntityID{unionID}
	holder.Members = []StructMember{
		{Name: "tag", Type: TypeReference{Base: "int"}},
		{Name: "___u1", Type: TypeReference{Base: "Holder::$U1", ResolvedID: unionID}, Order: 1},
	}
	require.Equal(t, EntityID(1), holderID)

	a.Merge(b)

	merged, ok := a.Lookup("Holder")
	require.True(t, ok)
	union, ok := a.Lookup("Holder::$U1")
	require.True(t, ok)
	assert.Equal(t, union.ID, merged.Members[1].Type.ResolvedID)
	assert.Equal(t, merged.ID, union.ParentID)
	assert.Equal(t, []EntityID{union.ID}, merged.NestedIDs)
	assert.Zero(t, merged.Members[0].Type.ResolvedID)
}

func TestGraphWalkReferences(t *testing.T) {
	g := NewGraph()
	inner := TypeReference{Base: "Inner"}
	g.AddType(&TypeEntity{
		Kind:      KindStruct,
		Name:      "Outer",
		IsDefined: true,
		Bases:     []TypeInheritance{{Ref: TypeReference{Base: "Base"}}},
		Members: []StructMember{
			{Name: "v", Type: TypeReference{Base: "Vec", TemplateArgs: []TemplateArgument{{Type: &inner}}}},
			{Name: "cb", Type: TypeReference{PointerDepth: 1, FuncSig: &FunctionSignature{
				Return: TypeReference{Base: "Ret"},
				Params: []FunctionParameter{{Type: TypeReference{Base: "Arg"}}},
			}}},
		},
	})
	g.AddStatic(StaticVariable{Name: "g", Type: TypeReference{Base: "Global"}})

	var seen []string
	g.WalkReferences(func(owner *TypeEntity, ref *TypeReference) {
		seen = append(seen, ref.Base)
	})
	assert.ElementsMatch(t, []string{"Base", "Vec", "Inner", "Ret", "Arg", "Global"}, seen)
}
