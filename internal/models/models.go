package models

import (
	"strconv"
	"strings"
)

// EntityID identifies a TypeEntity inside a Graph. Zero means "none".
type EntityID int64

// TypeKind is the category of a TypeEntity
type TypeKind string

const (
	KindStruct    TypeKind = "struct"
	KindClass     TypeKind = "class"
	KindUnion     TypeKind = "union"
	KindEnum      TypeKind = "enum"
	KindTypedef   TypeKind = "typedef"
	KindPrimitive TypeKind = "primitive"
)

// IsRecord reports whether the kind has members laid out in memory
func (k TypeKind) IsRecord() bool {
	return k == KindStruct || k == KindClass || k == KindUnion
}

// CallingConvention is the decompiler calling convention tag of a signature
type CallingConvention string

const (
	ConvUnknown    CallingConvention = ""
	ConvCdecl      CallingConvention = "__cdecl"
	ConvStdcall    CallingConvention = "__stdcall"
	ConvThiscall   CallingConvention = "__thiscall"
	ConvFastcall   CallingConvention = "__fastcall"
	ConvVectorcall CallingConvention = "__vectorcall"
	ConvClrcall    CallingConvention = "__clrcall"
	ConvPascal     CallingConvention = "__pascal"
	ConvUsercall   CallingConvention = "__usercall"
	ConvUserpurge  CallingConvention = "__userpurge"
)

// IsThisCall reports whether the convention passes the receiver as a hidden argument
func (c CallingConvention) IsThisCall() bool {
	return c == ConvThiscall
}

// IsUserDefined reports decompiler-invented conventions with register-located arguments
func (c CallingConvention) IsUserDefined() bool {
	return c == ConvUsercall || c == ConvUserpurge
}

// SourceLocation records where a declaration came from
type SourceLocation struct {
	File string `json:"file,omitempty"`
	Line int    `json:"line,omitempty"`
}

func (s SourceLocation) String() string {
	if s.File == "" {
		return ""
	}
	return s.File + ":" + strconv.Itoa(s.Line)
}

// TemplateArgument is one positional template argument: either a type or an
// opaque literal (non-type template argument such as a capacity).
type TemplateArgument struct {
	Position int            `json:"position"`
	Type     *TypeReference `json:"type,omitempty"`
	Literal  string         `json:"literal,omitempty"`
}

// IsLiteral reports whether the argument is a non-type literal
func (a TemplateArgument) IsLiteral() bool {
	return a.Type == nil
}

// Canonical returns the argument spelling used inside identities
func (a TemplateArgument) Canonical() string {
	if a.Type == nil {
		return a.Literal
	}
	return a.Type.Canonical()
}

// TypeInheritance is one base-type edge in declaration order
type TypeInheritance struct {
	Order  int           `json:"order"`
	Raw    string        `json:"raw"`
	Ref    TypeReference `json:"ref"`
	Offset int           `json:"offset"`
}

// StructMember is one data member of a struct/class/union
type StructMember struct {
	Name          string        `json:"name"`
	Type          TypeReference `json:"type"`
	Order         int           `json:"order"`
	BitWidth      *int          `json:"bit_width,omitempty"`
	Offset        *int          `json:"offset,omitempty"`
	BitOffset     int           `json:"bit_offset,omitempty"`
	OverloadIndex int           `json:"overload_index,omitempty"`
	IsIgnored     bool          `json:"is_ignored,omitempty"`
}

// IsBitfield reports whether the member declares a bit width
func (m StructMember) IsBitfield() bool {
	return m.BitWidth != nil
}

// IsFunctionPointer reports whether the member is a function-pointer slot
func (m StructMember) IsFunctionPointer() bool {
	return m.Type.FuncSig != nil
}

// FunctionParameter is one parameter of a signature
type FunctionParameter struct {
	Name string        `json:"name,omitempty"`
	Type TypeReference `json:"type"`
}

// FunctionSignature describes a callable: return type, convention and parameters
type FunctionSignature struct {
	Return     TypeReference       `json:"return"`
	Convention CallingConvention   `json:"convention,omitempty"`
	Params     []FunctionParameter `json:"params,omitempty"`
	IsVariadic bool                `json:"is_variadic,omitempty"`
}

// Canonical renders the abstract declarator spelling, e.g. "int(__cdecl*)(int,char*)"
func (s *FunctionSignature) Canonical(pointerDepth int) string {
	var sb strings.Builder
	sb.WriteString(s.Return.Canonical())
	sb.WriteString("(")
	sb.WriteString(string(s.Convention))
	sb.WriteString(strings.Repeat("*", pointerDepth))
	sb.WriteString(")(")
	for i, p := range s.Params {
		if i > 0 {
			sb.WriteString(",")
		}
		sb.WriteString(p.Type.Canonical())
	}
	if s.IsVariadic {
		if len(s.Params) > 0 {
			sb.WriteString(",")
		}
		sb.WriteString("...")
	}
	sb.WriteString(")")
	return sb.String()
}

// FunctionBody is a decompiled function definition or prototype
type FunctionBody struct {
	Name          string            `json:"name"`
	OwnerFQN      string            `json:"owner_fqn,omitempty"`
	Signature     FunctionSignature `json:"signature"`
	Address       string            `json:"address,omitempty"`
	Body          string            `json:"body,omitempty"`
	IsConstructor bool              `json:"is_constructor,omitempty"`
	IsDestructor  bool              `json:"is_destructor,omitempty"`
	IsOperator    bool              `json:"is_operator,omitempty"`
	IsUnreliable  bool              `json:"is_unreliable,omitempty"`
	Source        SourceLocation    `json:"source"`
}

// FQN returns the owner-qualified function name
func (f FunctionBody) FQN() string {
	if f.OwnerFQN == "" {
		return f.Name
	}
	return f.OwnerFQN + "::" + f.Name
}

// StaticVariable is a fixed-address variable, optionally owned by a type
type StaticVariable struct {
	Name     string         `json:"name"`
	OwnerFQN string         `json:"owner_fqn,omitempty"`
	Type     TypeReference  `json:"type"`
	Address  string         `json:"address"`
	Source   SourceLocation `json:"source"`
}

// EnumMember is one enumerator. Value is set when the spelling is numeric.
type EnumMember struct {
	Name  string `json:"name"`
	Raw   string `json:"raw,omitempty"`
	Value *int64 `json:"value,omitempty"`
}

// TypeEntity is a struct/class/union/enum/typedef/primitive in the graph
type TypeEntity struct {
	ID             EntityID           `json:"id"`
	Kind           TypeKind           `json:"kind"`
	Name           string             `json:"name"`
	Namespace      string             `json:"namespace,omitempty"`
	TemplateArgs   []TemplateArgument `json:"template_args,omitempty"`
	Bases          []TypeInheritance  `json:"bases,omitempty"`
	Members        []StructMember     `json:"members,omitempty"`
	EnumMembers    []EnumMember       `json:"enum_members,omitempty"`
	Functions      []FunctionBody     `json:"functions,omitempty"`
	Statics        []StaticVariable   `json:"statics,omitempty"`
	TypedefTarget  *TypeReference     `json:"typedef_target,omitempty"`
	UnderlyingType string             `json:"underlying_type,omitempty"`
	Alignment      int                `json:"alignment,omitempty"`
	Pack           int                `json:"pack,omitempty"` // active #pragma pack, 0 = default
	IsIgnored      bool               `json:"is_ignored,omitempty"`
	IsVtable       bool               `json:"is_vtable,omitempty"`
	IsBitmask      bool               `json:"is_bitmask,omitempty"`
	IsVolatile     bool               `json:"is_volatile,omitempty"`
	IsDefined      bool               `json:"is_defined,omitempty"`
	Source         SourceLocation     `json:"source"`

	ParentID  EntityID   `json:"parent_id,omitempty"`
	NestedIDs []EntityID `json:"nested_ids,omitempty"`

	Size          int  `json:"size,omitempty"`
	ComputedAlign int  `json:"computed_align,omitempty"`
	LayoutDone    bool `json:"layout_done,omitempty"`
}

// BaseName returns the name with template arguments, without namespace
func (t *TypeEntity) BaseName() string {
	if len(t.TemplateArgs) == 0 {
		return t.Name
	}
	args := make([]string, len(t.TemplateArgs))
	for i, a := range t.TemplateArgs {
		args[i] = a.Canonical()
	}
	return t.Name + "<" + strings.Join(args, ",") + ">"
}

// FQN returns the fully-qualified identity: namespace, name and template arguments
func (t *TypeEntity) FQN() string {
	if t.Namespace == "" {
		return t.BaseName()
	}
	return t.Namespace + "::" + t.BaseName()
}

// HasDestructor reports whether the entity itself declares a destructor body
func (t *TypeEntity) HasDestructor() bool {
	for _, f := range t.Functions {
		if f.IsDestructor {
			return true
		}
	}
	return false
}
