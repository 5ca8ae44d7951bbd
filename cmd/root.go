package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/brettbedarf/cvfs"
	"github.com/brettbedarf/cvfs/config"
	"github.com/brettbedarf/cvfs/history"
	"github.com/brettbedarf/cvfs/internal/util"
	"github.com/brettbedarf/cvfs/shell"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// rootOptions holds the persistent flags shared by every command
type rootOptions struct {
	configPath string
	verbose    int
	capacity   int
	storePath  string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "cvfs",
		Short: "An in-memory virtual file system with undo and redo",
		Long: `cvfs keeps a virtual disk of documents and directories in memory.
Commands are read one per line from stdin. Every change can be undone and
redone, and the disk can be stored to and loaded from a file.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			util.InitializeLogger(cfg.LogLvl)

			mgr, err := cvfs.New(cfg)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runShell(ctx, cmd, mgr, cfg)
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&opts.configPath, "config", "c", "", "Path to a yaml or json config file")
	flags.IntVarP(&opts.verbose, "verbose", "v", config.InfoVerbose,
		"Log verbosity level between 1 (error) and 5 (trace)")
	flags.IntVar(&opts.capacity, "capacity", config.DefaultCapacity, "Capacity of the initial disk")
	flags.StringVar(&opts.storePath, "store", config.DefaultStorePath, "File used by store and load")

	cmd.AddCommand(versionCmd)
	cmd.AddCommand(newMountCommand(opts))

	return cmd
}

// loadConfig merges defaults, the config file and explicitly set flags, in
// that order.
func loadConfig(cmd *cobra.Command, opts *rootOptions) (*config.Config, error) {
	override := &config.ConfigOverride{}
	if opts.configPath != "" {
		var err error
		if override, err = config.LoadConfigOverrideFile(opts.configPath); err != nil {
			return nil, fmt.Errorf("load config: %w", err)
		}
	}

	flags := cmd.Flags()
	if flags.Changed("verbose") {
		override.LogLvl = &opts.verbose
	}
	if flags.Changed("capacity") {
		override.Capacity = &opts.capacity
	}
	if flags.Changed("store") {
		override.StorePath = &opts.storePath
	}
	return config.NewConfig(override), nil
}

func interactive(in io.Reader) bool {
	f, ok := in.(*os.File)
	return ok && (isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()))
}

// runShell runs the interpreter on the command's stdin until it ends or ctx
// is done. The prompt is only shown on a terminal.
func runShell(ctx context.Context, cmd *cobra.Command, mgr *history.Manager, cfg *config.Config) error {
	logger := util.GetLogger("main")
	in := cmd.InOrStdin()

	prompt := ""
	if interactive(in) {
		prompt = cfg.Prompt
	}
	sh := shell.New(mgr, cmd.OutOrStdout(), prompt)

	// Run blocks on reads, so a signal has to win the race from out here.
	done := make(chan error, 1)
	go func() {
		done <- sh.Run(ctx, in)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		logger.Info().Msg("Interrupted")
		return nil
	}
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
