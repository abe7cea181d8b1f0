package generator

import (
	"context"
	"fmt"

	"github.com/trevis/ACDecompileHallucinator-sub002/internal/comments"
	"github.com/trevis/ACDecompileHallucinator-sub002/internal/mapping"
	"github.com/trevis/ACDecompileHallucinator-sub002/internal/models"
)

// C# element types allowed in fixed-size buffers
var fixedBufferTypes = map[string]bool{
	"bool": true, "byte": true, "sbyte": true, "char": true,
	"short": true, "ushort": true, "int": true, "uint": true,
	"long": true, "ulong": true, "float": true, "double": true,
}

var integralTypes = map[string]bool{
	"byte": true, "sbyte": true, "char": true, "short": true, "ushort": true,
	"int": true, "uint": true, "long": true, "ulong": true,
}

func (gen *Generator) emitRecord(ctx context.Context, w *writer, t *models.TypeEntity) {
	info := gen.layout.Compute(t.ID)
	name := mapping.TypeIdentifier(t)

	gen.summary(ctx, w, comments.KindStruct, t.FQN())
	gen.provenance(w, t.Source)
	w.line("[StructLayout(LayoutKind.Explicit, Size = %d)]", info.Size)
	if gen.dispose[t.ID] {
		w.open("public unsafe struct %s : IDisposable", name)
	} else {
		w.open("public unsafe struct %s", name)
	}

	scope := names{name: true}
	gen.emitBases(w, t, scope)
	gen.emitMembers(w, t, scope)

	for _, child := range gen.graph.Children(t.ID) {
		if child.IsIgnored || child.Kind == models.KindTypedef {
			continue
		}
		if child.Kind.IsRecord() && !child.IsDefined {
			continue
		}
		w.line("")
		gen.emitEntity(ctx, w, child)
	}

	if len(t.Statics) > 0 {
		w.line("")
		for _, s := range t.Statics {
			gen.emitStatic(w, s, scope)
		}
	}

	methods := gen.planMethods(t.Functions, name, scope)
	if len(methods) > 0 {
		w.line("")
		for _, m := range methods {
			gen.emitMethod(ctx, w, m)
		}
	}
	gen.emitDispose(w, t, methods)
	w.close()
}

// baseEntity returns the usable entity a base edge names
func (gen *Generator) baseEntity(b models.TypeInheritance) *models.TypeEntity {
	ref := mapping.Unalias(gen.graph, b.Ref)
	if !ref.IsResolved() || !gen.mapper.Usable(ref.ResolvedID) {
		return nil
	}
	return gen.graph.Type(ref.ResolvedID)
}

func baseFieldName(base *models.TypeEntity) string {
	return "BaseClass_" + mapping.SanitizeIdentifier(mapping.Flatten(base.FQN()))
}

func (gen *Generator) emitBases(w *writer, t *models.TypeEntity, scope names) {
	for _, b := range t.Bases {
		base := gen.baseEntity(b)
		if base == nil {
			w.line("// base %s is not available", b.Raw)
			continue
		}
		w.line("[FieldOffset(%d)] public %s %s;", b.Offset, gen.mapper.EntityName(base), scope.unique(baseFieldName(base)))
	}
}

func memberName(m models.StructMember) string {
	name := mapping.SanitizeIdentifier(m.Name)
	if m.OverloadIndex > 0 {
		name = fmt.Sprintf("%s_%d", name, m.OverloadIndex)
	}
	return name
}

func (gen *Generator) emitMembers(w *writer, t *models.TypeEntity, scope names) {
	for i := 0; i < len(t.Members); i++ {
		m := t.Members[i]
		switch {
		case m.Offset == nil:
			w.line("// %s has no computed offset", m.Name)
		case m.IsIgnored:
			w.line("// ignored: %s %s", m.Type.Raw, m.Name)
		case m.IsBitfield():
			j := i
			for j+1 < len(t.Members) {
				next := t.Members[j+1]
				if !next.IsBitfield() || next.Offset == nil || *next.Offset != *m.Offset {
					break
				}
				j++
			}
			gen.emitBitfieldUnit(w, t.Members[i:j+1], scope)
			i = j
		default:
			gen.emitMember(w, m, scope)
		}
	}
}

func (gen *Generator) emitMember(w *writer, m models.StructMember, scope names) {
	off := *m.Offset
	ref := mapping.Unalias(gen.graph, m.Type)
	name := scope.unique(memberName(m))

	if ref.IsVoid() && ref.PointerDepth == 0 && !ref.IsReference {
		w.line("// %s has type void", name)
		return
	}
	if !ref.IsArray {
		w.line("[FieldOffset(%d)] public %s %s;", off, gen.mapper.TypeName(ref), name)
		return
	}

	elem := ref.Element()
	elemType := gen.mapper.TypeName(elem)
	count := ref.Count()
	if count > 0 && elem.PointerDepth == 0 && elem.FuncSig == nil && !elem.IsReference && fixedBufferTypes[elemType] {
		w.line("[FieldOffset(%d)] public fixed %s %s[%d];", off, elemType, name, count)
		return
	}

	total := gen.layout.SizeOf(ref).Size
	if total > 0 {
		raw := scope.unique(name + "_Raw")
		w.line("[FieldOffset(%d)] public fixed byte %s[%d];", off, raw, total)
		w.line("public %s* %s => (%s*)Unsafe.AsPointer(ref %s[0]);", elemType, name, elemType, raw)
		return
	}
	ptr := fmt.Sprintf("(%s*)((byte*)Unsafe.AsPointer(ref this) + %d)", elemType, off)
	if count > 0 {
		// element size unknown here; the runtime sizeof covers the storage
		w.line("public static int %s => sizeof(%s) * %d;", scope.unique(name+"_ByteSize"), elemType, count)
		w.line("public %s* %s => %s;", elemType, name, ptr)
		return
	}
	// flexible array: storage follows the struct
	w.line("public %s* %s => %s;", elemType, name, ptr)
}

func unsignedOfSize(size int) string {
	switch size {
	case 1:
		return "byte"
	case 2:
		return "ushort"
	case 8:
		return "ulong"
	}
	return "uint"
}

func maskLiteral(mask uint64, backing string) string {
	switch backing {
	case "uint":
		return fmt.Sprintf("0x%Xu", mask)
	case "ulong":
		return fmt.Sprintf("0x%XUL", mask)
	}
	return fmt.Sprintf("0x%X", mask)
}

// emitBitfieldUnit writes one backing field for bitfields sharing a storage
// unit and a masking property per bitfield
func (gen *Generator) emitBitfieldUnit(w *writer, unit []models.StructMember, scope names) {
	off := *unit[0].Offset
	size := 0
	for _, m := range unit {
		if s := gen.layout.SizeOf(m.Type).Size; s > size {
			size = s
		}
	}
	backing := unsignedOfSize(size)
	bits := size * 8
	if bits <= 0 {
		bits = 32
	}

	field := scope.unique(fmt.Sprintf("_bitfield_%d", off))
	w.line("[FieldOffset(%d)] public %s %s;", off, backing, field)

	for _, m := range unit {
		width := *m.BitWidth
		if width <= 0 {
			continue
		}
		if width > bits {
			width = bits
		}
		mask := ^uint64(0)
		if width < 64 {
			mask = uint64(1)<<uint(width) - 1
		}
		lit := maskLiteral(mask, backing)

		ptype := gen.mapper.TypeName(mapping.Unalias(gen.graph, m.Type))
		if !integralTypes[ptype] {
			ptype = backing
		}
		name := scope.unique(memberName(m))
		shift := m.BitOffset

		w.line("// bits %d..%d", shift, shift+width-1)
		w.open("public %s %s", ptype, name)
		w.line("get => (%s)((%s >> %d) & %s);", ptype, field, shift, lit)
		w.line("set => %s = (%s)((%s & ~(%s << %d)) | (((%s)value & %s) << %d));",
			field, backing, field, lit, shift, backing, lit, shift)
		w.close()
	}
}
