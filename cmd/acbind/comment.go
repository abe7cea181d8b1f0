package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/trevis/ACDecompileHallucinator-sub002/internal/comments"
)

var commentCmd = &cobra.Command{
	Use:   "comment",
	Short: "Manage documentation comments",
	Long: `Read and write the documentation comments emitted above generated
enums, structs and methods. Methods are keyed by Owner::Name.`,
}

var commentGetCmd = &cobra.Command{
	Use:   "get <enum|struct|method> <fqn>",
	Short: "Print a stored comment",
	Args:  cobra.ExactArgs(2),
	RunE:  runCommentGet,
}

var commentFile string

var commentSetCmd = &cobra.Command{
	Use:   "set <enum|struct|method> <fqn> [text]",
	Short: "Store a comment",
	Long: `Store a comment, replacing any previous one.

Examples:
  acbind comment set struct CPhysicsObj "Physics state of a world object."
  acbind comment set method CPhysicsObj::SetPosition --file setpos.txt`,
	Args: cobra.RangeArgs(2, 3),
	RunE: runCommentSet,
}

func init() {
	commentCmd.AddCommand(commentGetCmd)
	commentCmd.AddCommand(commentSetCmd)
	commentSetCmd.Flags().StringVarP(&commentFile, "file", "f", "", "Read the comment text from a file")
}

func parseKind(s string) (comments.Kind, error) {
	switch k := comments.Kind(strings.ToLower(s)); k {
	case comments.KindEnum, comments.KindStruct, comments.KindMethod:
		return k, nil
	}
	return "", fmt.Errorf("unknown comment kind %q (want enum, struct or method)", s)
}

func runCommentGet(cmd *cobra.Command, args []string) error {
	kind, err := parseKind(args[0])
	if err != nil {
		return err
	}

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	text, ok, err := store.GetComment(cmd.Context(), string(kind), args[1])
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no %s comment for %s", kind, args[1])
	}
	fmt.Fprintln(cmd.OutOrStdout(), text)
	return nil
}

func runCommentSet(cmd *cobra.Command, args []string) error {
	kind, err := parseKind(args[0])
	if err != nil {
		return err
	}

	var text string
	switch {
	case commentFile != "":
		data, err := os.ReadFile(commentFile)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", commentFile, err)
		}
		text = string(data)
	case len(args) == 3:
		text = args[2]
	default:
		return fmt.Errorf("comment text or --file is required")
	}
	text = strings.TrimSpace(text)

	store, err := openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.SaveComment(cmd.Context(), string(kind), args[1], text); err != nil {
		return err
	}
	logger.WithField("fqn", args[1]).Debug("Stored comment")
	return invalidateCachedComment(kind, args[1])
}

// invalidateCachedComment drops a cached copy so the next generate reads the
// new text. A cache file that was never created is left alone.
func invalidateCachedComment(kind comments.Kind, fqn string) error {
	path := cfg.Comments.CachePath
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	cache, err := comments.OpenCache(path, comments.Noop{})
	if err != nil {
		return err
	}
	defer cache.Close()
	return cache.Invalidate(kind, fqn)
}
