// Package pipeline runs the stages between decompiler output and generated
// bindings: parse -> merge -> link -> layout -> group -> generate.
package pipeline

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/trevis/ACDecompileHallucinator-sub002/internal/comments"
	"github.com/trevis/ACDecompileHallucinator-sub002/internal/errors"
	"github.com/trevis/ACDecompileHallucinator-sub002/internal/generator"
	"github.com/trevis/ACDecompileHallucinator-sub002/internal/hierarchy"
	"github.com/trevis/ACDecompileHallucinator-sub002/internal/layout"
	"github.com/trevis/ACDecompileHallucinator-sub002/internal/models"
	"github.com/trevis/ACDecompileHallucinator-sub002/internal/parser"
)

// Config holds configuration for a pipeline run
type Config struct {
	Workers     int // concurrent parsers and generators (default: 4)
	PointerSize int
	MaxPack     int
	Rules       *hierarchy.RuleSet // nil = default placement, nothing ignored
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{Workers: 4, PointerSize: layout.DefaultPointerSize, MaxPack: layout.DefaultMaxAlign}
}

// Pipeline orchestrates parsing and generation
type Pipeline struct {
	config Config
	logger *slog.Logger
}

// New creates a pipeline. A nil logger uses the slog default.
func New(config Config, logger *slog.Logger) *Pipeline {
	if config.Workers <= 0 {
		config.Workers = 1
	}
	if config.Rules == nil {
		config.Rules = &hierarchy.RuleSet{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{config: config, logger: logger}
}

// FileResult is the parse outcome of one input file
type FileResult struct {
	Path        string
	Stats       parser.Stats
	Diagnostics []parser.Diagnostic
}

// IngestResult holds results from parsing a set of files
type IngestResult struct {
	Graph      *models.Graph
	Layout     *layout.Calculator
	Files      []FileResult
	References *hierarchy.Report
	Ignored    int
	Nested     int
	LayoutStat layout.Stats
	StartedAt  time.Time
	Duration   time.Duration
}

// Diagnostics returns the diagnostics of every file, in input order
func (r *IngestResult) Diagnostics() []parser.Diagnostic {
	var out []parser.Diagnostic
	for _, f := range r.Files {
		out = append(out, f.Diagnostics...)
	}
	return out
}

// Ingest parses paths concurrently, merges the per-file graphs in input
// order, then links and lays out the merged graph. A file that cannot be read
// fails the run; malformed declarations only produce diagnostics.
func (p *Pipeline) Ingest(ctx context.Context, paths []string) (*IngestResult, error) {
	start := time.Now()
	p.logger.Info("starting ingestion", "files", len(paths), "workers", p.config.Workers)

	results := make([]*parser.Result, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.config.Workers)
	for i, path := range paths {
		i, path := i, path
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := parser.ParseFile(path)
			if err != nil {
				return err
			}
			results[i] = res
			p.logger.Debug("parsed file",
				"path", path,
				"types", res.Stats.Types,
				"functions", res.Stats.Functions,
				"diagnostics", len(res.Diagnostics),
			)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged := models.NewGraph()
	result := &IngestResult{Graph: merged, StartedAt: start}
	for _, res := range results {
		merged.Merge(res.Graph)
		result.Files = append(result.Files, FileResult{
			Path:        res.File,
			Stats:       res.Stats,
			Diagnostics: res.Diagnostics,
		})
	}

	p.link(result)
	result.Duration = time.Since(start)

	p.logger.Info("ingestion complete",
		"types", merged.Len(),
		"functions", len(merged.Functions),
		"statics", len(merged.Statics),
		"unresolved", result.References.UnresolvedTotal(),
		"duration", result.Duration,
	)
	return result, nil
}

// Prepare links and lays out a graph that was not produced by Ingest, such
// as one loaded from storage. Already linked nesting is kept.
func (p *Pipeline) Prepare(g *models.Graph) *IngestResult {
	result := &IngestResult{Graph: g, StartedAt: time.Now()}
	p.link(result)
	result.Duration = time.Since(result.StartedAt)
	return result
}

func (p *Pipeline) link(result *IngestResult) {
	g := result.Graph
	result.Ignored = hierarchy.MarkIgnored(g, p.config.Rules.Ignore)
	result.References = hierarchy.NewResolver(g).LinkReferences()
	result.Nested = hierarchy.LinkNesting(g)

	result.Layout = layout.New(g,
		layout.WithPointerSize(p.config.PointerSize),
		layout.WithMaxAlign(p.config.MaxPack),
	)
	result.LayoutStat = result.Layout.ComputeAll()

	for _, top := range result.References.Top(5) {
		p.logger.Debug("unresolved type", "name", top.Name, "references", top.Count)
	}
	if result.LayoutStat.Cycles > 0 {
		p.logger.Warn("types containing themselves by value", "count", result.LayoutStat.Cycles)
	}
}

// GenerateOptions controls Generate
type GenerateOptions struct {
	RootNamespace      string
	EmitSourceComments bool
	OutputDir          string // empty = do not write files
}

// Generate groups the prepared graph and renders every group. With an output
// directory the files are written there too.
func (p *Pipeline) Generate(ctx context.Context, result *IngestResult, provider comments.Provider, opts GenerateOptions) ([]generator.File, error) {
	if result == nil || result.Layout == nil {
		return nil, errors.InternalErrorf("generate called on an unprepared graph")
	}
	start := time.Now()

	grouper := hierarchy.NewGrouper(result.Graph, p.config.Rules.Rules...)
	groups := grouper.Group()

	gen := generator.New(result.Graph, result.Layout, provider, generator.Options{
		RootNamespace:      opts.RootNamespace,
		Workers:            p.config.Workers,
		EmitSourceComments: opts.EmitSourceComments,
	})
	files, err := gen.Generate(ctx, groups)
	if err != nil {
		return nil, err
	}

	if opts.OutputDir != "" {
		if err := generator.WriteFiles(opts.OutputDir, files); err != nil {
			return nil, err
		}
	}

	p.logger.Info("generation complete",
		"groups", len(groups),
		"files", len(files),
		"output", opts.OutputDir,
		"duration", time.Since(start),
	)
	return files, nil
}
