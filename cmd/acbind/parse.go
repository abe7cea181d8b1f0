package main

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/trevis/ACDecompileHallucinator-sub002/internal/config"
	"github.com/trevis/ACDecompileHallucinator-sub002/internal/pipeline"
	"github.com/trevis/ACDecompileHallucinator-sub002/internal/storage"
)

var (
	parseWorkers    int
	parseDryRun     bool
	parseShowDiags  int
	parseTopMissing int
)

var parseCmd = &cobra.Command{
	Use:   "parse <file|dir>...",
	Short: "Parse decompiler output into the type graph",
	Long: `Parse decompiler-exported headers and function bodies and store the
merged type graph.

Files are parsed concurrently and merged in argument order; directories are
walked for .h, .hpp, .c, .cpp and .txt files. Malformed declarations are
reported as diagnostics and skipped. Every run replaces the stored graph.

Examples:
  acbind parse acclient.h
  acbind parse exports/ --workers 8
  acbind parse acclient.h acclient.c --dry-run`,
	Args: cobra.MinimumNArgs(1),
	RunE: runParse,
}

func init() {
	parseCmd.Flags().IntVarP(&parseWorkers, "workers", "w", 0, "Number of concurrent parsers (default: generation.workers)")
	parseCmd.Flags().BoolVar(&parseDryRun, "dry-run", false, "Parse and report without storing")
	parseCmd.Flags().IntVar(&parseShowDiags, "diagnostics", 20, "Number of diagnostics to print (-1 for all)")
	parseCmd.Flags().IntVar(&parseTopMissing, "top-unresolved", 10, "Number of unresolved type names to print")
}

func runParse(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	if !parseDryRun {
		if err := cfg.Validate(config.ValidationContextParse).Err(); err != nil {
			return err
		}
	}

	files, err := pipeline.ExpandInputs(args)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no source files found in %v", args)
	}

	p, err := newPipeline(parseWorkers)
	if err != nil {
		return err
	}
	result, err := p.Ingest(ctx, files)
	if err != nil {
		return fmt.Errorf("parsing failed: %w", err)
	}

	g := result.Graph
	diags := result.Diagnostics()
	fmt.Fprintf(out, "Parsed %d files in %v\n", len(result.Files), result.Duration.Round(time.Millisecond))
	fmt.Fprintf(out, "  Types:       %d (%d nested, %d ignored)\n", g.Len(), result.Nested, result.Ignored)
	fmt.Fprintf(out, "  Functions:   %d free\n", len(g.Functions))
	fmt.Fprintf(out, "  Statics:     %d global\n", len(g.Statics))
	fmt.Fprintf(out, "  References:  %d resolved, %d unresolved\n",
		result.References.Resolved, result.References.UnresolvedTotal())
	fmt.Fprintf(out, "  Diagnostics: %d\n", len(diags))

	if top := result.References.Top(parseTopMissing); len(top) > 0 {
		fmt.Fprintln(out, "\nMost referenced unresolved types:")
		for _, u := range top {
			fmt.Fprintf(out, "  %-40s %d\n", u.Name, u.Count)
		}
	}

	if len(diags) > 0 && parseShowDiags != 0 {
		fmt.Fprintln(out, "\nDiagnostics:")
		for i, d := range diags {
			if parseShowDiags > 0 && i >= parseShowDiags {
				fmt.Fprintf(out, "  ... and %d more\n", len(diags)-i)
				break
			}
			fmt.Fprintf(out, "  %s\n", d)
		}
	}

	if parseDryRun {
		return nil
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	run := &storage.IngestRun{
		StartedAt:   result.StartedAt,
		FinishedAt:  time.Now(),
		Files:       len(result.Files),
		Types:       g.Len(),
		Functions:   len(g.Functions),
		Statics:     len(g.Statics),
		Diagnostics: len(diags),
		Unresolved:  result.References.Unresolved,
	}
	if err := store.SaveGraph(ctx, g, run); err != nil {
		return fmt.Errorf("failed to store graph: %w", err)
	}

	logger.WithFields(logrus.Fields{
		"run":   run.ID,
		"types": run.Types,
	}).Debug("Stored graph")
	fmt.Fprintf(out, "\nStored graph (run %s)\n", run.ID)
	return nil
}
