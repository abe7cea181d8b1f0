package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/trevis/ACDecompileHallucinator-sub002/internal/models"
	"github.com/trevis/ACDecompileHallucinator-sub002/internal/storage"
)

var layoutCmd = &cobra.Command{
	Use:   "layout <fqn>",
	Short: "Show the computed layout of a stored type",
	Long: `Print the size, alignment, base offsets and member offsets of one type
of the stored graph, as the generator lays it out.

Examples:
  acbind layout CPhysicsObj
  acbind layout "SmartArray<ContextMenuData,1>"`,
	Args: cobra.ExactArgs(1),
	RunE: runLayout,
}

var unresolvedLimit int

var unresolvedCmd = &cobra.Command{
	Use:   "unresolved",
	Short: "List type names the last parse could not resolve",
	RunE:  runUnresolved,
}

func init() {
	unresolvedCmd.Flags().IntVarP(&unresolvedLimit, "limit", "n", 25, "Number of names to show (0 for all)")
}

func runLayout(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	g, err := store.LoadGraph(ctx)
	if err != nil {
		return fmt.Errorf("failed to load graph: %w", err)
	}

	p, err := newPipeline(0)
	if err != nil {
		return err
	}
	prepared := p.Prepare(g)

	t, ok := g.Lookup(args[0])
	if !ok {
		return fmt.Errorf("type %q not found", args[0])
	}
	info := prepared.Layout.Compute(t.ID)
	printLayout(cmd.OutOrStdout(), t, info.Size, info.Align)
	return nil
}

func printLayout(out io.Writer, t *models.TypeEntity, size, align int) {
	fmt.Fprintf(out, "%s %s\n", t.Kind, t.FQN())
	fmt.Fprintf(out, "  size %d, align %d\n", size, align)
	if t.Source.File != "" {
		fmt.Fprintf(out, "  defined at %s\n", t.Source)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	defer tw.Flush()
	fmt.Fprintln(tw, "\nOFFSET\tNAME\tTYPE")
	for _, b := range t.Bases {
		fmt.Fprintf(tw, "%d\t(base)\t%s\n", b.Offset, b.Ref.Name)
	}
	for _, m := range t.Members {
		offset := "?"
		if m.Offset != nil {
			offset = fmt.Sprint(*m.Offset)
		}
		name := m.Name
		if m.BitWidth != nil {
			name = fmt.Sprintf("%s : %d", name, *m.BitWidth)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", offset, name, m.Type.Name)
	}
}

func runUnresolved(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	run, err := store.LatestIngestRun(ctx)
	if err == storage.ErrNotFound {
		fmt.Fprintln(out, "No parse runs recorded; run 'acbind parse' first")
		return nil
	}
	if err != nil {
		return err
	}

	refs, err := store.UnresolvedReferences(ctx, unresolvedLimit)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Run %s (%s): %d files, %d types, %d diagnostics\n",
		run.ID, run.StartedAt.Format("2006-01-02 15:04:05"), run.Files, run.Types, run.Diagnostics)
	if len(refs) == 0 {
		fmt.Fprintln(out, "Every type reference resolved")
		return nil
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	defer tw.Flush()
	fmt.Fprintln(tw, "NAME\tREFERENCES")
	for _, r := range refs {
		fmt.Fprintf(tw, "%s\t%d\n", r.Name, r.Count)
	}
	return nil
}
