package main

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/trevis/ACDecompileHallucinator-sub002/internal/comments"
	"github.com/trevis/ACDecompileHallucinator-sub002/internal/config"
	"github.com/trevis/ACDecompileHallucinator-sub002/internal/pipeline"
)

var (
	genOutput         string
	genNamespace      string
	genWorkers        int
	genRules          string
	genNoComments     bool
	genSourceComments bool
)

var generateCmd = &cobra.Command{
	Use:   "generate [file|dir]...",
	Short: "Generate C# bindings",
	Long: `Generate C# bindings from the stored type graph, or from the given
inputs when any are passed (the store is then only read for comments).

Types are grouped into files by the rules in generation.rules_file; without
rules every root type gets <namespace dirs>/<Name>.cs and free functions and
globals go to Globals.cs.

Examples:
  acbind generate
  acbind generate --output ../Bindings --namespace AC
  acbind generate acclient.h --no-comments`,
	RunE: runGenerate,
}

func init() {
	generateCmd.Flags().StringVarP(&genOutput, "output", "o", "", "Output directory (default: generation.output_dir)")
	generateCmd.Flags().StringVar(&genNamespace, "namespace", "", "Root C# namespace (default: generation.root_namespace)")
	generateCmd.Flags().IntVarP(&genWorkers, "workers", "w", 0, "Number of concurrent generators (default: generation.workers)")
	generateCmd.Flags().StringVar(&genRules, "rules", "", "Grouping rule file (default: generation.rules_file)")
	generateCmd.Flags().BoolVar(&genNoComments, "no-comments", false, "Do not emit documentation comments")
	generateCmd.Flags().BoolVar(&genSourceComments, "source-comments", false, "Emit the source location of every declaration")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	start := time.Now()

	if genOutput != "" {
		cfg.Generation.OutputDir = genOutput
	}
	if genNamespace != "" {
		cfg.Generation.RootNamespace = genNamespace
	}
	if genRules != "" {
		cfg.Generation.RulesFile = genRules
	}
	if genWorkers > 0 {
		cfg.Generation.Workers = genWorkers
	}
	if genNoComments {
		cfg.Comments.Enabled = false
	}
	if genSourceComments {
		cfg.Generation.EmitSourceComments = true
	}

	validation := cfg.Validate(config.ValidationContextGenerate)
	if err := validation.Err(); err != nil {
		return err
	}
	for _, w := range validation.Warnings {
		logger.Warn(w)
	}

	p, err := newPipeline(0)
	if err != nil {
		return err
	}

	needStore := len(args) == 0 || cfg.Comments.Enabled
	var provider comments.Provider = comments.Noop{}

	var prepared *pipeline.IngestResult
	if needStore {
		store, err := openStore()
		if err != nil {
			return err
		}
		defer store.Close()

		if len(args) == 0 {
			g, err := store.LoadGraph(ctx)
			if err != nil {
				return fmt.Errorf("failed to load graph: %w", err)
			}
			if g.Len() == 0 {
				return fmt.Errorf("the store holds no types; run 'acbind parse' first")
			}
			prepared = p.Prepare(g)
		}

		if cfg.Comments.Enabled {
			provider = comments.NewStoreProvider(store)
			if cfg.Comments.CachePath != "" {
				cached, err := comments.OpenCache(cfg.Comments.CachePath, provider)
				if err != nil {
					return err
				}
				defer cached.Close()
				provider = cached
			}
		}
	}

	if prepared == nil {
		files, err := pipeline.ExpandInputs(args)
		if err != nil {
			return err
		}
		prepared, err = p.Ingest(ctx, files)
		if err != nil {
			return fmt.Errorf("parsing failed: %w", err)
		}
	}

	files, err := p.Generate(ctx, prepared, provider, pipeline.GenerateOptions{
		RootNamespace:      cfg.Generation.RootNamespace,
		EmitSourceComments: cfg.Generation.EmitSourceComments,
		OutputDir:          cfg.Generation.OutputDir,
	})
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"files":    len(files),
		"output":   cfg.Generation.OutputDir,
		"comments": cfg.Comments.Enabled,
	}).Debug("Generation finished")
	fmt.Fprintf(cmd.OutOrStdout(), "Generated %d files in %s (%v)\n",
		len(files), cfg.Generation.OutputDir, time.Since(start).Round(time.Millisecond))
	return nil
}
