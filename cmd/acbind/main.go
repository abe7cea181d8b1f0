package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/trevis/ACDecompileHallucinator-sub002/internal/config"
	"github.com/trevis/ACDecompileHallucinator-sub002/internal/errors"
	"github.com/trevis/ACDecompileHallucinator-sub002/internal/logging"
)

var (
	// Version information (set by build flags)
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"

	cfgFile string
	verbose bool
	logger  *logrus.Logger
	cfg     *config.Config
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if e, ok := errors.As(err); ok && verbose {
			fmt.Fprint(os.Stderr, e.DetailedString())
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 for critical failures (configuration, storage) and 1 for
// everything else
func exitCode(err error) int {
	if errors.IsFatal(err) {
		return 2
	}
	return 1
}

var rootCmd = &cobra.Command{
	Use:   "acbind",
	Short: "acbind - C# bindings from decompiled C++ declarations",
	Long: `acbind parses decompiler-exported C++ headers and function bodies,
stores the resulting type graph, and generates C# structs, enums and
function-pointer wrappers with explicit layouts that match the native binary.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Bootstrap logger until the configured one is up
		logger = logrus.New()
		logger.SetOutput(os.Stderr)
		if verbose {
			logger.SetLevel(logrus.DebugLevel)
		} else {
			logger.SetLevel(logrus.InfoLevel)
		}

		path := cfgFile
		if path == "" {
			path = config.GetString(config.EnvPrefix+"_CONFIG", "")
		}

		var err error
		cfg, err = config.Load(path)
		if err != nil {
			if path != "" {
				return err
			}
			logger.WithError(err).Warn("Failed to load config, using defaults")
			cfg = config.Default()
		}

		if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil && !verbose {
			logger.SetLevel(level)
		}
		if cfg.Logging.JSON {
			logger.SetFormatter(&logrus.JSONFormatter{})
		} else if !term.IsTerminal(int(os.Stderr.Fd())) {
			logger.SetFormatter(&logrus.TextFormatter{DisableColors: true, FullTimestamp: true})
		}

		return logging.Initialize(logging.FromSettings(cfg.Logging.Level, cfg.Logging.File, cfg.Logging.JSON, verbose))
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logging.Close()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: .acbind/config.yaml, or $ACBIND_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.SetVersionTemplate(`acbind {{.Version}}
Build time: ` + BuildTime + `
Git commit: ` + GitCommit + `
`)

	rootCmd.AddCommand(parseCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(layoutCmd)
	rootCmd.AddCommand(unresolvedCmd)
	rootCmd.AddCommand(commentCmd)
	rootCmd.AddCommand(configCmd)
}
