package models

// Graph owns every TypeEntity of a corpus. Relationships between entities
// (parent, nested children, bases, resolved references) are EntityIDs that
// index into the arena rather than pointers.
type Graph struct {
	types []*TypeEntity
	byFQN map[string]EntityID

	// Functions and Statics hold free functions and global variables, and
	// owned ones whose owner has not been seen yet.
	Functions []FunctionBody
	Statics   []StaticVariable
}

// NewGraph creates an empty graph
func NewGraph() *Graph {
	return &Graph{
		byFQN: make(map[string]EntityID),
	}
}

// Len returns the number of entities in the graph
func (g *Graph) Len() int {
	return len(g.types)
}

// AddType inserts the entity and returns its ID. When an entity with the same
// identity exists, a definition replaces a forward declaration in place (the ID
// is kept) and added is false either way.
func (g *Graph) AddType(t *TypeEntity) (id EntityID, added bool) {
	fqn := t.FQN()
	if existingID, ok := g.byFQN[fqn]; ok {
		existing := g.types[existingID-1]
		replaces := !existing.IsDefined && t.IsDefined ||
			existing.Kind == KindTypedef && t.Kind != KindTypedef && t.IsDefined
		if replaces {
			t.ID = existingID
			t.Functions = append(existing.Functions, t.Functions...)
			t.Statics = append(existing.Statics, t.Statics...)
			g.types[existingID-1] = t
		}
		return existingID, false
	}

	g.types = append(g.types, t)
	t.ID = EntityID(len(g.types))
	g.byFQN[fqn] = t.ID
	return t.ID, true
}

// Type returns the entity for id, or nil
func (g *Graph) Type(id EntityID) *TypeEntity {
	if id <= 0 || int(id) > len(g.types) {
		return nil
	}
	return g.types[id-1]
}

// Lookup finds an entity by its fully-qualified name
func (g *Graph) Lookup(fqn string) (*TypeEntity, bool) {
	id, ok := g.byFQN[fqn]
	if !ok {
		return nil, false
	}
	return g.types[id-1], true
}

// Types returns all entities in declaration (ID) order
func (g *Graph) Types() []*TypeEntity {
	return g.types
}

// Roots returns entities without a parent, in declaration order
func (g *Graph) Roots() []*TypeEntity {
	var roots []*TypeEntity
	for _, t := range g.types {
		if t.ParentID == 0 {
			roots = append(roots, t)
		}
	}
	return roots
}

// Children returns the nested entities of id in declaration order
func (g *Graph) Children(id EntityID) []*TypeEntity {
	t := g.Type(id)
	if t == nil {
		return nil
	}
	children := make([]*TypeEntity, 0, len(t.NestedIDs))
	for _, cid := range t.NestedIDs {
		if c := g.Type(cid); c != nil {
			children = append(children, c)
		}
	}
	return children
}

// AddFunction records a function body. Owned functions are attached by AttachOwned.
func (g *Graph) AddFunction(f FunctionBody) {
	g.Functions = append(g.Functions, f)
}

// AddStatic records a static variable. Owned statics are attached by AttachOwned.
func (g *Graph) AddStatic(s StaticVariable) {
	g.Statics = append(g.Statics, s)
}

// AttachOwned moves functions and statics whose owner is an entity of the graph
// onto that entity. Anything left over is free (or owned by an absent type).
func (g *Graph) AttachOwned() {
	var freeFuncs []FunctionBody
	for _, f := range g.Functions {
		if owner, ok := g.Lookup(f.OwnerFQN); ok && f.OwnerFQN != "" {
			owner.Functions = append(owner.Functions, f)
			continue
		}
		freeFuncs = append(freeFuncs, f)
	}
	g.Functions = freeFuncs

	var freeStatics []StaticVariable
	for _, s := range g.Statics {
		if owner, ok := g.Lookup(s.OwnerFQN); ok && s.OwnerFQN != "" {
			owner.Statics = append(owner.Statics, s)
			continue
		}
		freeStatics = append(freeStatics, s)
	}
	g.Statics = freeStatics
}

// Merge moves every entity, function and static of other into g, in order.
// IDs of other are re-indexed; other must not be used afterwards.
func (g *Graph) Merge(other *Graph) {
	remap := make(map[EntityID]EntityID, other.Len())
	for _, t := range other.types {
		oldID := t.ID
		newID, _ := g.AddType(t)
		remap[oldID] = newID
	}
	for _, t := range other.types {
		if t.ParentID != 0 {
			t.ParentID = remap[t.ParentID]
		}
		for i, nid := range t.NestedIDs {
			t.NestedIDs[i] = remap[nid]
		}
	}
	// links made while parsing (inline records) carry other's IDs
	other.WalkReferences(func(_ *TypeEntity, ref *TypeReference) {
		if ref.ResolvedID != 0 {
			ref.ResolvedID = remap[ref.ResolvedID]
		}
	})
	g.Functions = append(g.Functions, other.Functions...)
	g.Statics = append(g.Statics, other.Statics...)
	g.AttachOwned()
}

// WalkReferences calls fn for every TypeReference reachable from the graph,
// including template arguments and function signatures, recursively. owner is
// nil for free functions and global statics.
func (g *Graph) WalkReferences(fn func(owner *TypeEntity, ref *TypeReference)) {
	for _, t := range g.types {
		for i := range t.TemplateArgs {
			walkTemplateArg(t, &t.TemplateArgs[i], fn)
		}
		for i := range t.Bases {
			walkRef(t, &t.Bases[i].Ref, fn)
		}
		for i := range t.Members {
			walkRef(t, &t.Members[i].Type, fn)
		}
		for i := range t.Functions {
			walkSig(t, &t.Functions[i].Signature, fn)
		}
		for i := range t.Statics {
			walkRef(t, &t.Statics[i].Type, fn)
		}
		if t.TypedefTarget != nil {
			walkRef(t, t.TypedefTarget, fn)
		}
	}
	for i := range g.Functions {
		walkSig(nil, &g.Functions[i].Signature, fn)
	}
	for i := range g.Statics {
		walkRef(nil, &g.Statics[i].Type, fn)
	}
}

func walkRef(owner *TypeEntity, ref *TypeReference, fn func(*TypeEntity, *TypeReference)) {
	if ref.FuncSig != nil {
		walkSig(owner, ref.FuncSig, fn)
		return
	}
	fn(owner, ref)
	for i := range ref.TemplateArgs {
		walkTemplateArg(owner, &ref.TemplateArgs[i], fn)
	}
}

func walkTemplateArg(owner *TypeEntity, arg *TemplateArgument, fn func(*TypeEntity, *TypeReference)) {
	if arg.Type != nil {
		walkRef(owner, arg.Type, fn)
	}
}

func walkSig(owner *TypeEntity, sig *FunctionSignature, fn func(*TypeEntity, *TypeReference)) {
	walkRef(owner, &sig.Return, fn)
	for i := range sig.Params {
		walkRef(owner, &sig.Params[i].Type, fn)
	}
}

// ResolveTypedef follows a chain of plain typedef aliases starting at id and
// returns the first entity that is not a plain alias. A typedef whose target
// is a pointer, array, function pointer or primitive ends the chain at that
// typedef. Cycles and dangling aliases return (0, false).
func (g *Graph) ResolveTypedef(id EntityID) (EntityID, bool) {
	visited := make(map[EntityID]bool)
	for {
		t := g.Type(id)
		if t == nil || visited[id] {
			return 0, false
		}
		visited[id] = true
		if t.Kind != KindTypedef || t.TypedefTarget == nil {
			return id, true
		}
		target := t.TypedefTarget
		if target.FuncSig != nil || target.PointerDepth > 0 || target.IsReference || target.IsArray {
			return id, true
		}
		if !target.IsResolved() {
			if target.Base == "" {
				return 0, false
			}
			return id, true
		}
		id = target.ResolvedID
	}
}
