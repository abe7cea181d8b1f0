// Package generator emits C# interop bindings whose memory layout matches the
// decompiled 32-bit types: explicit-layout structs, fixed buffers, bitfield
// accessors and address-bound function pointers.
package generator

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/trevis/ACDecompileHallucinator-sub002/internal/comments"
	"github.com/trevis/ACDecompileHallucinator-sub002/internal/errors"
	"github.com/trevis/ACDecompileHallucinator-sub002/internal/hierarchy"
	"github.com/trevis/ACDecompileHallucinator-sub002/internal/layout"
	"github.com/trevis/ACDecompileHallucinator-sub002/internal/mapping"
	"github.com/trevis/ACDecompileHallucinator-sub002/internal/models"
)

// Options controls generation
type Options struct {
	RootNamespace      string
	Workers            int
	EmitSourceComments bool
}

// File is one generated source file
type File struct {
	Path    string // "/"-separated, relative to the output root
	Content string
}

// Generator turns grouped entities into C# files. The graph must be linked
// and laid out; it is only read from here on.
type Generator struct {
	graph    *models.Graph
	mapper   *mapping.Mapper
	layout   *layout.Calculator
	comments comments.Provider
	opts     Options

	dispose map[models.EntityID]bool
}

// New creates a generator. A nil provider means no documentation comments.
func New(g *models.Graph, calc *layout.Calculator, provider comments.Provider, opts Options) *Generator {
	if provider == nil {
		provider = comments.Noop{}
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	gen := &Generator{
		graph:    g,
		mapper:   mapping.NewMapper(g, opts.RootNamespace),
		layout:   calc,
		comments: provider,
		opts:     opts,
	}
	gen.computeDispose()
	return gen
}

// Generate renders every group, in parallel up to Options.Workers. Files are
// returned in group order. Cancelling ctx stops groups that have not started.
func (gen *Generator) Generate(ctx context.Context, groups []*hierarchy.Group) ([]File, error) {
	files := make([]File, len(groups))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(gen.opts.Workers)
	for i, grp := range groups {
		i, grp := i, grp
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			f, err := gen.GenerateGroup(gctx, grp)
			if err != nil {
				return errors.GenerationErrorf(err, "failed to generate %s", grp.Path)
			}
			files[i] = f
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	slog.Info("bindings generated", "files", len(files))
	return files, nil
}

type nsBlock struct {
	name      string
	types     []*models.TypeEntity
	functions []models.FunctionBody
	statics   []models.StaticVariable
}

// GenerateGroup renders one output file
func (gen *Generator) GenerateGroup(ctx context.Context, grp *hierarchy.Group) (File, error) {
	var blocks []*nsBlock
	index := make(map[string]*nsBlock)
	block := func(cppNamespace string) *nsBlock {
		name := gen.mapper.Namespace(cppNamespace)
		b, ok := index[name]
		if !ok {
			b = &nsBlock{name: name}
			index[name] = b
			blocks = append(blocks, b)
		}
		return b
	}

	for _, id := range grp.TypeIDs {
		t := gen.graph.Type(id)
		if t == nil {
			return File{}, errors.InternalErrorf("group %s references unknown entity %d", grp.Path, id)
		}
		b := block(t.Namespace)
		b.types = append(b.types, t)
	}
	for _, f := range grp.Functions {
		b := block(f.OwnerFQN)
		b.functions = append(b.functions, f)
	}
	for _, s := range grp.Statics {
		b := block(s.OwnerFQN)
		b.statics = append(b.statics, s)
	}

	w := &writer{}
	writePreamble(w)
	for _, b := range blocks {
		w.line("")
		if b.name != "" {
			w.open("namespace %s", b.name)
		}
		for i, t := range b.types {
			if i > 0 {
				w.line("")
			}
			gen.emitEntity(ctx, w, t)
		}
		if len(b.functions) > 0 || len(b.statics) > 0 {
			if len(b.types) > 0 {
				w.line("")
			}
			gen.emitGlobals(ctx, w, b.functions, b.statics)
		}
		if b.name != "" {
			w.close()
		}
	}
	return File{Path: grp.Path, Content: w.String()}, nil
}

func writePreamble(w *writer) {
	w.line("// <auto-generated>")
	w.line("//     Generated by acbind from decompiled declarations. Do not edit.")
	w.line("// </auto-generated>")
	w.line("using System;")
	w.line("using System.Runtime.CompilerServices;")
	w.line("using System.Runtime.InteropServices;")
}

func (gen *Generator) emitEntity(ctx context.Context, w *writer, t *models.TypeEntity) {
	switch {
	case t.Kind == models.KindEnum:
		gen.emitEnum(ctx, w, t)
	case t.Kind.IsRecord() && t.IsDefined:
		gen.emitRecord(ctx, w, t)
	}
}

var xmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// summary writes the provider's comment for a declaration, if any. Lookup
// failures only cost the comment.
func (gen *Generator) summary(ctx context.Context, w *writer, kind comments.Kind, fqn string) {
	text, ok, err := gen.comments.Lookup(ctx, kind, fqn)
	if err != nil {
		slog.Warn("comment lookup failed", "kind", kind, "fqn", fqn, "severity", errors.GetSeverity(err), "error", err)
		return
	}
	text = strings.TrimSpace(text)
	if !ok || text == "" {
		return
	}
	w.line("/// <summary>")
	for _, l := range strings.Split(text, "\n") {
		w.line("/// %s", xmlEscaper.Replace(strings.TrimRight(l, "\r ")))
	}
	w.line("/// </summary>")
}

func (gen *Generator) provenance(w *writer, src models.SourceLocation) {
	if gen.opts.EmitSourceComments && src.File != "" {
		w.line("// Source: %s", src)
	}
}

// WriteFiles writes generated files below dir, creating directories as needed
func WriteFiles(dir string, files []File) error {
	for _, f := range files {
		path := filepath.Join(dir, filepath.FromSlash(f.Path))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return errors.FileSystemErrorf(err, "failed to create directory for %s", path)
		}
		if err := os.WriteFile(path, []byte(f.Content), 0644); err != nil {
			return errors.FileSystemErrorf(err, "failed to write %s", path)
		}
	}
	return nil
}
