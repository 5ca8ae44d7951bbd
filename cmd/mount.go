package main

import (
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"syscall"

	"github.com/brettbedarf/cvfs"
	"github.com/brettbedarf/cvfs/internal/util"
	"github.com/spf13/cobra"
)

func newMountCommand(opts *rootOptions) *cobra.Command {
	var (
		umount  bool
		noShell bool
	)

	cmd := &cobra.Command{
		Use:   "mount <dir>",
		Short: "Mount the disk read-only while the interpreter runs",
		Long: `Mount serves the live disk as a read-only FUSE file system at <dir>.
Changes made in the interpreter, including undo and redo, show up in the
mount immediately. The mount is removed when the interpreter exits.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			mnt := args[0]
			cfg, err := loadConfig(cmd, opts)
			if err != nil {
				return err
			}
			util.InitializeLogger(cfg.LogLvl)
			logger := util.GetLogger("main")

			if umount {
				// ignore the error if not already mounted
				exec.Command("fusermount", "-u", mnt).Run() // nolint:errcheck
			}

			mgr, err := cvfs.New(cfg)
			if err != nil {
				return err
			}
			srv, err := cvfs.Mount(mgr, cfg, mnt)
			if err != nil {
				return fmt.Errorf("mount %s: %w", mnt, err)
			}
			logger.Info().Str("mountpoint", mnt).Msg("Filesystem mounted successfully")

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)
			defer stop()

			if noShell {
				<-ctx.Done()
			} else if err := runShell(ctx, cmd, mgr, cfg); err != nil {
				logger.Error().Err(err).Msg("Interpreter stopped")
			}

			if err := srv.Unmount(); err != nil {
				logger.Error().Err(err).Msg("Failed to unmount filesystem")
				return err
			}
			logger.Info().Msg("Filesystem unmounted successfully")
			return nil
		},
	}

	cmd.Flags().BoolVarP(&umount, "umount", "u", false,
		"Unmount the fs first if needed before mounting again. Useful for debuggers that don't exit properly.")
	cmd.Flags().BoolVar(&noShell, "no-shell", false, "Serve until interrupted without reading commands")

	return cmd
}
