package cli

import (
	"fmt"
	"sort"

	"github.com/rawpipe/rawpipe/internal/version"
	"github.com/rawpipe/rawpipe/pkg/commands/download"
	"github.com/rawpipe/rawpipe/pkg/commands/list"
	"github.com/rawpipe/rawpipe/pkg/commands/setup"
	"github.com/rawpipe/rawpipe/pkg/commands/train"
	"github.com/rawpipe/rawpipe/pkg/commands/verify"
	"github.com/rawpipe/rawpipe/pkg/config"
	"github.com/rawpipe/rawpipe/pkg/logging"
	"github.com/rawpipe/rawpipe/pkg/paths"
	"github.com/rawpipe/rawpipe/pkg/runner"
	"github.com/rawpipe/rawpipe/pkg/style"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// NewRootCmd creates and returns the root command
func NewRootCmd() *cobra.Command {
	var (
		verbosity int
		dryRun    bool
		dataRoot  string
	)

	rootCmd := &cobra.Command{
		Use:   "rawpipe",
		Short: "Dataset pipeline for demosaicing networks",
		Long: `rawpipe manages the dataset side of a demosaicing training pipeline:
it sets up the working layout, downloads and verifies the dataset,
resolves listing files against the data root, and launches the external
training backend for the train and test targets.`,
		Version: version.Version,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Setup logging based on verbosity
			logging.SetupLogger(verbosity)
			log.Debug().Str("command", cmd.Name()).Msg("Command started")
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		DisableAutoGenTag: true,
	}

	// Global flags
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "Increase verbosity (-v INFO, -vv DEBUG, -vvv TRACE)")
	rootCmd.PersistentFlags().BoolVar(&dryRun, "dry-run", false, "Preview backend invocations without executing them")
	rootCmd.PersistentFlags().StringVar(&dataRoot, "data-root", "", "Dataset root directory (overrides config and RAWPIPE_DATA_ROOT)")

	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSetupCmd(&dataRoot))
	rootCmd.AddCommand(newDownloadCmd(&dataRoot))
	rootCmd.AddCommand(newVerifyCmd(&dataRoot))
	rootCmd.AddCommand(newListCmd(&dataRoot))
	rootCmd.AddCommand(newTrainCmd(&dataRoot, &dryRun, runner.ModeTrain))
	rootCmd.AddCommand(newTrainCmd(&dataRoot, &dryRun, runner.ModeTest))

	return rootCmd
}

// loadEnv resolves paths and configuration for a command invocation.
// Data-root priority: --data-root flag, config dataset.data_root,
// RAWPIPE_DATA_ROOT, ./data fallback.
func loadEnv(flagRoot string) (paths.Paths, *config.Config, error) {
	prelim, err := paths.New(flagRoot)
	if err != nil {
		return nil, nil, err
	}

	cfg, err := config.Load(prelim.ConfigFilePath())
	if err != nil {
		return nil, nil, err
	}

	p := prelim
	if flagRoot == "" && cfg.Dataset.DataRoot != "" {
		p, err = paths.New(cfg.Dataset.DataRoot)
		if err != nil {
			return nil, nil, err
		}
	}

	if p.UsedFallback() {
		log.Warn().Str("dataRoot", p.DataRoot()).Msg("No data root configured, falling back to ./data")
	}

	return p, cfg, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("rawpipe version %s\n", version.Version)
			fmt.Printf("  commit: %s\n", version.Commit)
			fmt.Printf("  built:  %s\n", version.Date)
		},
	}
}

func newSetupCmd(dataRoot *string) *cobra.Command {
	var (
		effective bool
		force     bool
	)

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Create the working layout and config file",
		Long: `Setup creates the data root, download cache, checkpoint and output
directories, writes a config file if none exists, and checks that the
training backend is reachable.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, cfg, err := loadEnv(*dataRoot)
			if err != nil {
				return err
			}

			result, err := setup.Setup(setup.Options{
				Paths:     p,
				Config:    cfg,
				Effective: effective,
				Force:     force,
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), style.RenderSetup(result))
			return nil
		},
	}

	cmd.Flags().BoolVar(&effective, "effective", false, "Write the merged configuration instead of the commented defaults")
	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}

func newDownloadCmd(dataRoot *string) *cobra.Command {
	var skipExtract bool

	cmd := &cobra.Command{
		Use:     "download",
		Aliases: []string{"download-data"},
		Short:   "Download and unpack the dataset",
		Long: `Download fetches the dataset archive, verifies its checksum, extracts
it into the data root, and generates a listing file for any split that
lacks one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, cfg, err := loadEnv(*dataRoot)
			if err != nil {
				return err
			}

			result, err := download.Download(download.Options{
				Config:      cfg,
				Paths:       p,
				SkipExtract: skipExtract,
			})
			if err != nil {
				return err
			}

			if result.Reused {
				fmt.Fprintf(cmd.OutOrStdout(), "archive : %s (cached)\n", result.Archive)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "archive : %s\n", result.Archive)
			}
			splits := make([]string, 0, len(result.SplitCounts))
			for split := range result.SplitCounts {
				splits = append(splits, split)
			}
			sort.Strings(splits)
			for _, split := range splits {
				fmt.Fprintf(cmd.OutOrStdout(), "%-7s : %d entries\n", split, result.SplitCounts[split])
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&skipExtract, "skip-extract", false, "Download and verify the archive without unpacking it")
	return cmd
}

func newVerifyCmd(dataRoot *string) *cobra.Command {
	return &cobra.Command{
		Use:   "verify [splits...]",
		Short: "Check that every listed image exists",
		Long: `Verify resolves every entry of the given splits' listing files against
the data root and reports entries whose image is missing. With no
arguments all configured splits are verified.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, cfg, err := loadEnv(*dataRoot)
			if err != nil {
				return err
			}

			splits := args
			if len(splits) == 0 {
				splits = cfg.Dataset.Splits
			}

			result, err := verify.Verify(cmd.Context(), verify.Options{
				Paths:  p,
				Splits: splits,
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), style.RenderVerify(result))
			if !result.OK() {
				return fmt.Errorf("verification failed: missing images")
			}
			return nil
		},
	}
}

func newListCmd(dataRoot *string) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list <split>",
		Short: "Print the resolved paths of a split's manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, _, err := loadEnv(*dataRoot)
			if err != nil {
				return err
			}

			result, err := list.List(list.Options{
				Paths: p,
				Split: args[0],
				Limit: limit,
			})
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), style.RenderList(result))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Print at most this many entries (0 = all)")
	return cmd
}

func newTrainCmd(dataRoot *string, dryRun *bool, mode runner.Mode) *cobra.Command {
	var (
		split     string
		extraArgs []string
	)

	short := "Train the demosaicing network via the backend"
	if mode == runner.ModeTest {
		short = "Evaluate a trained network via the backend"
	}

	cmd := &cobra.Command{
		Use:       string(mode) + " <pattern>",
		Short:     short,
		ValidArgs: []string{string(runner.PatternBayer), string(runner.PatternXtrans)},
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			pattern, err := runner.ParsePattern(args[0])
			if err != nil {
				return err
			}

			p, cfg, err := loadEnv(*dataRoot)
			if err != nil {
				return err
			}

			result, err := train.Run(cmd.Context(), train.Options{
				Config:    cfg,
				Paths:     p,
				Mode:      mode,
				Pattern:   pattern,
				Split:     split,
				DryRun:    *dryRun,
				ExtraArgs: extraArgs,
			})
			if err != nil {
				return err
			}

			if result.Skipped {
				fmt.Fprintf(cmd.OutOrStdout(), "dry run : %s %v\n", result.Command, result.Args)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "run %s finished in %s\n", result.RunID, result.Duration)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&split, "split", "", "Dataset split to use (default: the mode's split)")
	cmd.Flags().StringArrayVar(&extraArgs, "backend-arg", nil, "Extra argument passed through to the backend (repeatable)")
	return cmd
}
