// Package layout computes 32-bit MSVC struct layouts: member offsets, bitfield
// placement, base sub-object offsets, alignment and size.
package layout

import (
	"log/slog"
	"sync"

	"github.com/trevis/ACDecompileHallucinator-sub002/internal/mapping"
	"github.com/trevis/ACDecompileHallucinator-sub002/internal/models"
)

const (
	DefaultPointerSize = 4
	DefaultMaxAlign    = 8

	// unknownSize is assumed for value types that never resolved
	unknownSize = 4
)

// Info is the computed size and alignment of a type
type Info struct {
	Size  int
	Align int
	Empty bool // record without data; occupies no space as a base
}

// Stats counts what a Calculator has done
type Stats struct {
	Computed     int
	UnknownTypes int
	Cycles       int
}

// Calculator computes and memoises layouts of one graph. Computed results are
// also written back to the entities (Size, ComputedAlign, LayoutDone, member
// and base offsets). All methods are safe for concurrent use.
type Calculator struct {
	graph       *models.Graph
	pointerSize int
	maxAlign    int

	mu     sync.Mutex
	cache  map[models.EntityID]Info
	active map[models.EntityID]bool
	stats  Stats
}

// Option configures a Calculator
type Option func(*Calculator)

// WithPointerSize overrides the pointer size (4 for x86)
func WithPointerSize(n int) Option {
	return func(c *Calculator) {
		if n > 0 {
			c.pointerSize = n
		}
	}
}

// WithMaxAlign overrides the default maximum natural alignment
func WithMaxAlign(n int) Option {
	return func(c *Calculator) {
		if n > 0 {
			c.maxAlign = n
		}
	}
}

// New creates a calculator for g
func New(g *models.Graph, opts ...Option) *Calculator {
	c := &Calculator{
		graph:       g,
		pointerSize: DefaultPointerSize,
		maxAlign:    DefaultMaxAlign,
		cache:       make(map[models.EntityID]Info),
		active:      make(map[models.EntityID]bool),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AlignOffset rounds offset up to the next multiple of alignment
func AlignOffset(offset, alignment int) int {
	if alignment <= 1 {
		return offset
	}
	return (offset + alignment - 1) / alignment * alignment
}

// Compute returns the layout of one entity, computing it on first use
func (c *Calculator) Compute(id models.EntityID) Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entity(id)
}

// ComputeAll lays out every entity of the graph in declaration order
func (c *Calculator) ComputeAll() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range c.graph.Types() {
		c.entity(t.ID)
	}
	return c.stats
}

// SizeOf returns the size and alignment of a reference: pointers and function
// pointers are pointer-sized, arrays multiply their element size.
func (c *Calculator) SizeOf(ref models.TypeReference) Info {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ref(ref)
}

// Stats returns the counters accumulated so far
func (c *Calculator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Calculator) unknown() Info {
	c.stats.UnknownTypes++
	return Info{Size: unknownSize, Align: unknownSize}
}

func (c *Calculator) entity(id models.EntityID) Info {
	if info, ok := c.cache[id]; ok {
		return info
	}
	t := c.graph.Type(id)
	if t == nil {
		return c.unknown()
	}
	if c.active[id] {
		c.stats.Cycles++
		slog.Warn("type contains itself by value", "type", t.FQN())
		return Info{Size: 0, Align: 1}
	}
	c.active[id] = true
	defer delete(c.active, id)

	var info Info
	switch {
	case t.Kind == models.KindEnum:
		info = enumInfo(t)
	case t.Kind == models.KindTypedef:
		if t.TypedefTarget == nil {
			info = c.unknown()
		} else {
			info = c.ref(*t.TypedefTarget)
		}
	case t.Kind == models.KindPrimitive:
		info = c.primitive(t.Name)
	case t.Kind.IsRecord() && t.IsDefined:
		info = c.record(t)
	default:
		info = c.unknown()
	}
	c.cache[id] = info
	c.stats.Computed++
	return info
}

func enumInfo(t *models.TypeEntity) Info {
	size := 4
	if s, ok := mapping.PrimitiveSize(t.UnderlyingType); ok && s > 0 {
		size = s
	}
	return Info{Size: size, Align: size}
}

func (c *Calculator) primitive(name string) Info {
	size, ok := mapping.PrimitiveSize(name)
	if !ok {
		return c.unknown()
	}
	align := size
	if align > c.maxAlign {
		align = c.maxAlign
	}
	if align < 1 {
		align = 1
	}
	return Info{Size: size, Align: align}
}

func (c *Calculator) ref(r models.TypeReference) Info {
	return c.shape(mapping.Unalias(c.graph, r).Shape())
}

func (c *Calculator) shape(s models.Shape) Info {
	switch s := s.(type) {
	case models.ArrayShape:
		elem := c.shape(s.Elem)
		if s.Len == nil {
			return Info{Size: 0, Align: elem.Align}
		}
		return Info{Size: elem.Size * *s.Len, Align: elem.Align}
	case models.PointerShape, models.FunctionShape:
		return Info{Size: c.pointerSize, Align: c.pointerSize}
	case models.TemplateShape:
		if s.ID != 0 {
			return c.entity(s.ID)
		}
	case models.NamedShape:
		switch {
		case s.Name == "void":
			return Info{Size: 0, Align: 1}
		case mapping.IsPrimitive(s.Name):
			return c.primitive(s.Name)
		case s.ID != 0:
			return c.entity(s.ID)
		}
	}
	return c.unknown()
}

// record lays out bases first, then members in declaration order
func (c *Calculator) record(t *models.TypeEntity) Info {
	limit := c.maxAlign
	if t.Pack > 0 && t.Pack < limit {
		limit = t.Pack
	}
	clamp := func(a int) int {
		if a > limit {
			a = limit
		}
		if a < 1 {
			a = 1
		}
		return a
	}

	offset, align := 0, 1
	empty := true

	for i := range t.Bases {
		b := &t.Bases[i]
		info := c.ref(b.Ref)
		if info.Empty {
			b.Offset = offset
			continue
		}
		empty = false
		a := clamp(info.Align)
		offset = AlignOffset(offset, a)
		b.Offset = offset
		offset += info.Size
		align = max(align, a)
	}

	isUnion := t.Kind == models.KindUnion
	unitStart, unitSize, unitUsed := -1, 0, 0

	for i := range t.Members {
		m := &t.Members[i]
		empty = false
		info := c.ref(m.Type)
		a := clamp(info.Align)
		align = max(align, a)

		if isUnion {
			off := 0
			m.Offset = &off
			m.BitOffset = 0
			offset = max(offset, info.Size)
			continue
		}

		if m.IsBitfield() {
			width := *m.BitWidth
			size := info.Size
			if size <= 0 {
				size = unknownSize
			}
			if width == 0 {
				offset = AlignOffset(offset, a)
				off := offset
				m.Offset = &off
				unitStart = -1
				continue
			}
			if unitStart < 0 || size != unitSize || unitUsed+width > size*8 {
				offset = AlignOffset(offset, a)
				unitStart, unitSize, unitUsed = offset, size, 0
				offset += size
			}
			off := unitStart
			m.Offset = &off
			m.BitOffset = unitUsed
			unitUsed += width
			continue
		}

		unitStart = -1
		offset = AlignOffset(offset, a)
		off := offset
		m.Offset = &off
		m.BitOffset = 0
		offset += info.Size
	}

	if t.Alignment > align {
		align = t.Alignment
	}
	size := AlignOffset(offset, align)
	if size == 0 {
		size = 1
	}
	t.Size, t.ComputedAlign, t.LayoutDone = size, align, true
	return Info{Size: size, Align: align, Empty: empty}
}
