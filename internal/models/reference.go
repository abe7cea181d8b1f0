package models

import (
	"strconv"
	"strings"
)

// TypeReference is a use of a type: a member type, parameter, base, typedef target...
// PointerDepth is authoritative for pointer-ness; IsPointer is derived from it.
type TypeReference struct {
	Raw          string             `json:"raw"`
	Name         string             `json:"name"` // qualified name without the trailing template argument list
	Base         string             `json:"base"` // canonical qualified name including template arguments
	TemplateArgs []TemplateArgument `json:"template_args,omitempty"`
	IsConst      bool               `json:"is_const,omitempty"`
	IsVolatile   bool               `json:"is_volatile,omitempty"`
	PointerDepth int                `json:"pointer_depth,omitempty"`
	IsReference  bool               `json:"is_reference,omitempty"`
	IsArray      bool               `json:"is_array,omitempty"`
	ArraySize    *int               `json:"array_size,omitempty"` // nil with IsArray = flexible array
	FuncSig      *FunctionSignature `json:"func_sig,omitempty"`
	ResolvedID   EntityID           `json:"resolved_id,omitempty"`
}

// IsPointer reports whether the reference has at least one level of indirection
func (r TypeReference) IsPointer() bool {
	return r.PointerDepth >= 1
}

// IsResolved reports whether the reference points at an entity of the graph
func (r TypeReference) IsResolved() bool {
	return r.ResolvedID != 0
}

// IsVoid reports whether the base type is void
func (r TypeReference) IsVoid() bool {
	return r.FuncSig == nil && r.Base == "void"
}

// Count returns the element count for arrays (1 for scalars, 0 for flexible arrays)
func (r TypeReference) Count() int {
	if !r.IsArray {
		return 1
	}
	if r.ArraySize == nil {
		return 0
	}
	return *r.ArraySize
}

// Element returns the reference with the array dimension removed
func (r TypeReference) Element() TypeReference {
	e := r
	e.IsArray = false
	e.ArraySize = nil
	return e
}

// Canonical renders the reference in the canonical spelling used for identities
func (r TypeReference) Canonical() string {
	var sb strings.Builder
	if r.FuncSig != nil {
		sb.WriteString(r.FuncSig.Canonical(r.PointerDepth))
	} else {
		if r.IsConst {
			sb.WriteString("const ")
		}
		sb.WriteString(r.Base)
		sb.WriteString(strings.Repeat("*", r.PointerDepth))
	}
	if r.IsReference {
		sb.WriteString("&")
	}
	if r.IsArray {
		sb.WriteString("[")
		if r.ArraySize != nil {
			sb.WriteString(strconv.Itoa(*r.ArraySize))
		}
		sb.WriteString("]")
	}
	return sb.String()
}

// Shape is the tagged-union view of a TypeReference. Exactly one of the
// concrete shape types below implements it for any given reference.
type Shape interface {
	isShape()
}

// NamedShape is a plain (non-template) named type
type NamedShape struct {
	Name string
	ID   EntityID
}

// TemplateShape is a template instantiation
type TemplateShape struct {
	Name string
	Args []TemplateArgument
	ID   EntityID
}

// PointerShape is one level of indirection to Elem
type PointerShape struct {
	Elem Shape
}

// ArrayShape is a fixed (Len != nil) or flexible array of Elem
type ArrayShape struct {
	Elem Shape
	Len  *int
}

// FunctionShape is a function type; a function pointer is PointerShape{FunctionShape}
type FunctionShape struct {
	Sig *FunctionSignature
}

func (NamedShape) isShape()    {}
func (TemplateShape) isShape() {}
func (PointerShape) isShape()  {}
func (ArrayShape) isShape()    {}
func (FunctionShape) isShape() {}

// Shape converts the flat reference into its tagged form. References are treated
// as one level of indirection.
func (r TypeReference) Shape() Shape {
	var s Shape
	switch {
	case r.FuncSig != nil:
		s = FunctionShape{Sig: r.FuncSig}
	case len(r.TemplateArgs) > 0:
		s = TemplateShape{Name: r.Name, Args: r.TemplateArgs, ID: r.ResolvedID}
	default:
		s = NamedShape{Name: r.Base, ID: r.ResolvedID}
	}
	depth := r.PointerDepth
	if r.IsReference {
		depth++
	}
	for i := 0; i < depth; i++ {
		s = PointerShape{Elem: s}
	}
	if r.IsArray {
		s = ArrayShape{Elem: s, Len: r.ArraySize}
	}
	return s
}
