package generator

import (
	"context"
	"fmt"
	"strings"

	"github.com/trevis/ACDecompileHallucinator-sub002/internal/comments"
	"github.com/trevis/ACDecompileHallucinator-sub002/internal/mapping"
	"github.com/trevis/ACDecompileHallucinator-sub002/internal/models"
)

const (
	constructorHook = "_ConstructorInternal"
	destructorHook  = "_DestructorInternal"
)

// method is a function planned for emission
type method struct {
	fn       models.FunctionBody
	name     string
	instance bool
	disabled string // reason the method is emitted commented out
}

// disabledReason reports why a function cannot be bound, or ""
func disabledReason(f models.FunctionBody) string {
	if _, ok := mapping.ConventionName(f.Signature.Convention); !ok {
		return "register-located arguments"
	}
	switch {
	case f.IsOperator:
		return "operator"
	case f.IsUnreliable:
		return "unreliable signature"
	case f.Signature.IsVariadic:
		return "variadic"
	case f.Address == "":
		return "no address"
	}
	return ""
}

// planMethods names the functions of one scope. Hooks replace constructor
// and destructor names; repeated signatures get the address appended.
func (gen *Generator) planMethods(fns []models.FunctionBody, typeName string, scope names) []method {
	seen := make(map[string]bool)
	out := make([]method, 0, len(fns))
	for _, f := range fns {
		m := method{
			fn:       f,
			disabled: disabledReason(f),
			instance: typeName != "" && f.Signature.Convention.IsThisCall() && len(f.Signature.Params) > 0,
		}
		switch {
		case f.IsConstructor:
			m.name = constructorHook
		case f.IsDestructor:
			m.name = destructorHook
		default:
			m.name = mapping.SanitizeIdentifier(f.Name)
		}
		if m.name == typeName {
			m.name += "_"
		}

		key := m.name + "(" + gen.paramKey(m) + ")"
		if seen[key] {
			m.name += "_" + strings.TrimPrefix(f.Address, "0x")
		}
		seen[key] = true
		// fields and nested types own their names; overloads may share one
		if scope[m.name] {
			m.name = scope.unique(m.name)
		}
		out = append(out, m)
	}
	return out
}

func (gen *Generator) paramKey(m method) string {
	params := m.fn.Signature.Params
	if m.instance {
		params = params[1:]
	}
	parts := make([]string, len(params))
	for i, p := range params {
		parts[i] = gen.mapper.ParamTypeName(p.Type)
	}
	return strings.Join(parts, ",")
}

func paramName(name string, i int, used names) string {
	if name == "" {
		name = fmt.Sprintf("a%d", i+1)
	}
	return used.unique(mapping.SanitizeIdentifier(name))
}

func (gen *Generator) emitMethod(ctx context.Context, w *writer, m method) {
	sig := m.fn.Signature
	params := sig.Params
	var self *models.FunctionParameter
	if m.instance {
		self = &params[0]
		params = params[1:]
	}

	used := names{}
	decls := make([]string, 0, len(params))
	args := make([]string, 0, len(params)+1)
	if self != nil {
		args = append(args, fmt.Sprintf("(%s)Unsafe.AsPointer(ref this)", gen.mapper.ParamTypeName(self.Type)))
	}
	for i, p := range params {
		name := paramName(p.Name, i, used)
		decls = append(decls, gen.mapper.ParamTypeName(p.Type)+" "+name)
		args = append(args, name)
	}

	static := "static "
	if m.instance {
		static = ""
	}
	decl := fmt.Sprintf("public %s%s %s(%s) => ((%s)%s)(%s);",
		static, gen.mapper.TypeName(sig.Return), m.name, strings.Join(decls, ", "),
		gen.mapper.FunctionPointer(&sig), m.fn.Address, strings.Join(args, ", "))

	gen.summary(ctx, w, comments.KindMethod, m.fn.FQN())
	w.line("// %s %s", m.fn.Address, m.fn.FQN())
	if m.disabled != "" {
		w.line("// disabled (%s): %s", m.disabled, decl)
		return
	}
	w.line("%s", decl)
}

func (gen *Generator) emitStatic(w *writer, s models.StaticVariable, scope names) {
	name := scope.unique(mapping.SanitizeIdentifier(s.Name))
	if s.Address == "" {
		w.line("// %s has no address", name)
		return
	}
	ref := mapping.Unalias(gen.graph, s.Type)
	if ref.IsArray {
		elem := gen.mapper.TypeName(ref.Element())
		w.line("public static %s* %s => (%s*)%s;", elem, name, elem, s.Address)
		return
	}
	if ref.IsVoid() && ref.PointerDepth == 0 {
		w.line("public static void* %s => (void*)%s;", name, s.Address)
		return
	}
	typ := gen.mapper.TypeName(ref)
	w.line("public static ref %s %s => ref *(%s*)%s;", typ, name, typ, s.Address)
}

// emitGlobals writes free functions and global statics of one namespace
func (gen *Generator) emitGlobals(ctx context.Context, w *writer, fns []models.FunctionBody, statics []models.StaticVariable) {
	w.open("public static unsafe class Globals")
	scope := names{"Globals": true}
	for _, s := range statics {
		gen.emitStatic(w, s, scope)
	}
	if len(statics) > 0 && len(fns) > 0 {
		w.line("")
	}
	for _, m := range gen.planMethods(fns, "", scope) {
		gen.emitMethod(ctx, w, m)
	}
	w.close()
}

// ownHook returns the enabled destructor hook among methods, or ""
func ownHook(methods []method) string {
	for _, m := range methods {
		if m.fn.IsDestructor && m.disabled == "" && m.instance {
			return m.name
		}
	}
	return ""
}

// emitDispose calls the type's own destructor hook when it has one and the
// bases' Dispose otherwise; the own destructor already runs base cleanup.
func (gen *Generator) emitDispose(w *writer, t *models.TypeEntity, methods []method) {
	if !gen.dispose[t.ID] {
		return
	}
	w.line("")
	w.open("public void Dispose()")
	if hook := ownHook(methods); hook != "" {
		w.line("%s();", hook)
	} else {
		for _, b := range t.Bases {
			base := gen.baseEntity(b)
			if base != nil && gen.dispose[base.ID] {
				w.line("%s.Dispose();", baseFieldName(base))
			}
		}
	}
	w.close()
}

func hasBoundDestructor(t *models.TypeEntity) bool {
	for _, f := range t.Functions {
		if f.IsDestructor && disabledReason(f) == "" && f.Signature.Convention.IsThisCall() && len(f.Signature.Params) > 0 {
			return true
		}
	}
	return false
}

// computeDispose marks every record that has a bound destructor itself or
// through any base
func (gen *Generator) computeDispose() {
	gen.dispose = make(map[models.EntityID]bool)
	visiting := make(map[models.EntityID]bool)

	var visit func(t *models.TypeEntity) bool
	visit = func(t *models.TypeEntity) bool {
		if need, ok := gen.dispose[t.ID]; ok {
			return need
		}
		if visiting[t.ID] {
			return false
		}
		visiting[t.ID] = true
		need := hasBoundDestructor(t)
		for _, b := range t.Bases {
			if base := gen.baseEntity(b); base != nil && visit(base) {
				need = true
			}
		}
		gen.dispose[t.ID] = need
		return need
	}

	for _, t := range gen.graph.Types() {
		if t.Kind.IsRecord() {
			visit(t)
		}
	}
}
