package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trevis/ACDecompileHallucinator-sub002/internal/models"
)

func TestStripComments(t *testing.T) {
	in := "int a; // trailing\nchar *s = \"// not a comment\"; /* block */ int b;"
	out := StripComments(in)
	assert.NotContains(t, out, "trailing")
	assert.NotContains(t, out, "block")
	assert.Contains(t, out, "\"// not a comment\"")
	assert.Contains(t, out, "int b;")
}

func TestStripArtifacts(t *testing.T) {
	assert.Equal(t, "struct Foo", StripArtifacts("struct __cppobj __declspec(align(8)) Foo"))
	assert.Equal(t, "char *p", StripArtifacts("char __unaligned *p"))
	assert.Equal(t, 8, ExtractAlignment("struct __declspec(align(8)) Foo"))
	assert.Equal(t, 0, ExtractAlignment("struct Foo"))
}

func TestSplitTopLevel(t *testing.T) {
	tests := []struct {
		name   string
		in     string
		sep    byte
		angles bool
		want   []string
	}{
		{"template args", "Foo<int,char>,Bar", ',', true, []string{"Foo<int,char>", "Bar"}},
		{"nested parens", "int (*f)(int,int),char", ',', true, []string{"int (*f)(int,int)", "char"}},
		{"statements ignore angles", "bool (*operator<)(int); int x", ';', false, []string{"bool (*operator<)(int)", " int x"}},
		{"braces", "union { int a; float b; } u; int c", ';', false, []string{"union { int a; float b; } u", " int c"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitTopLevel(tt.in, tt.sep, tt.angles))
		})
	}
}

func TestSplitQualified(t *testing.T) {
	assert.Equal(t, []string{"A", "B", "C"}, SplitQualified("A::B::C"))
	assert.Equal(t, []string{"Outer<NS::T>", "Inner"}, SplitQualified("Outer<NS::T>::Inner"))
	assert.Equal(t, []string{"Foo", "operator=="}, SplitQualified("Foo::operator=="))
	assert.Equal(t, []string{"Foo", "operator<"}, SplitQualified("Foo::operator<"))
}

func TestParseArraySuffix(t *testing.T) {
	name, dims, flexible, ok := ParseArraySuffix("grid[4][2]")
	require.True(t, ok)
	assert.Equal(t, "grid", name)
	assert.Equal(t, []int{4, 2}, dims)
	assert.False(t, flexible)

	name, dims, flexible, ok = ParseArraySuffix("tail[]")
	require.True(t, ok)
	assert.Equal(t, "tail", name)
	assert.Empty(t, dims)
	assert.True(t, flexible)

	_, _, _, ok = ParseArraySuffix("plain")
	assert.False(t, ok)
}

func TestParseBitfield(t *testing.T) {
	left, w, ok := ParseBitfield("unsigned int flags : 3")
	require.True(t, ok)
	assert.Equal(t, "unsigned int flags", left)
	assert.Equal(t, 3, w)

	_, _, ok = ParseBitfield("NS::Foo member")
	assert.False(t, ok)
}

func TestIsFunctionPointerDecl(t *testing.T) {
	assert.True(t, IsFunctionPointerDecl("void (__thiscall *cb)(Foo *this)"))
	assert.True(t, IsFunctionPointerDecl("int (*)(int)"))
	assert.False(t, IsFunctionPointerDecl("int __cdecl foo(int a)"))
	assert.False(t, IsFunctionPointerDecl("int x"))
}

func TestExtractBaseName(t *testing.T) {
	assert.Equal(t, "Foo", ExtractBaseName("const NS::Foo<int> *"))
	assert.Equal(t, "Bar", ExtractBaseName("struct Bar"))
}

func TestSplitDeclarator(t *testing.T) {
	tests := []struct {
		in       string
		typeText string
		name     string
	}{
		{"Foo *this", "Foo *", "this"},
		{"int", "int", ""},
		{"unsigned int", "unsigned int", ""},
		{"const char *name", "const char *", "name"},
		{"struct Foo", "struct Foo", ""},
		{"NS::Foo<int> value", "NS::Foo<int>", "value"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			typeText, name := SplitDeclarator(tt.in)
			assert.Equal(t, tt.typeText, typeText)
			assert.Equal(t, tt.name, name)
		})
	}
}

func TestNormalizeAddress(t *testing.T) {
	for in, want := range map[string]string{
		"00401000":   "0x00401000",
		"0x401000":   "0x00401000",
		"401000h":    "0x00401000",
		"0x12345678": "0x12345678",
	} {
		got, ok := NormalizeAddress(in)
		require.True(t, ok, in)
		assert.Equal(t, want, got, in)
	}
	_, ok := NormalizeAddress("zzz")
	assert.False(t, ok)
}

func TestMarkersAndConventions(t *testing.T) {
	assert.True(t, IsUnreliable("int __usercall foo@<eax>(int a@<ecx>)"))
	assert.True(t, IsUnreliable("BADTYPE x"))
	assert.False(t, IsUnreliable("int __cdecl foo(int)"))
	assert.True(t, IsLiteral("8"))
	assert.True(t, IsLiteral("0x10u"))
	assert.False(t, IsLiteral("Foo"))
	assert.Equal(t, models.ConvThiscall, ParseConvention("__thiscall"))
	assert.Equal(t, models.ConvUnknown, ParseConvention("__weird"))
}
