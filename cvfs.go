// Package cvfs is an in-memory virtual file system of documents and
// directories with per-command undo and redo and file persistence.
//
// The disk model lives in package filesystem, history and persistence in
// package history, and the command interpreter in package shell.
package cvfs

import (
	"github.com/brettbedarf/cvfs/config"
	"github.com/brettbedarf/cvfs/history"
	"github.com/brettbedarf/cvfs/internal/util"
	"github.com/brettbedarf/cvfs/server"
)

// New creates a history manager over an empty disk of cfg.Capacity. A nil
// cfg uses the defaults.
func New(cfg *config.Config) (*history.Manager, error) {
	logger := util.GetLogger("cvfs.New")
	if cfg == nil {
		cfg = config.NewConfig(nil)
	}

	mgr, err := history.New(cfg)
	if err != nil {
		logger.Error().Err(err).Int("capacity", cfg.Capacity).Msg("Failed to create disk")
		return nil, err
	}
	logger.Debug().Int("capacity", cfg.Capacity).Str("store", cfg.StorePath).Msg("Disk created")
	return mgr, nil
}

// Mount serves mgr's live disk read-only at mountPoint. Call Unmount on the
// returned server when done.
func Mount(mgr *history.Manager, cfg *config.Config, mountPoint string) (*server.Server, error) {
	srv := server.New(mgr, cfg)
	if err := srv.Serve(mountPoint); err != nil {
		return nil, err
	}
	return srv, nil
}
