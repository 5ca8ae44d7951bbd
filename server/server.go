// Package server exposes a live disk as a read-only FUSE mount.
package server

import (
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/brettbedarf/cvfs/config"
	"github.com/brettbedarf/cvfs/filesystem"
	"github.com/brettbedarf/cvfs/internal/util"
	"github.com/hanwen/go-fuse/v2/fs"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/puzpuzpuz/xsync/v4"
)

// DiskViewer gives read access to the current disk. Implemented by
// history.Manager, whose disk may be swapped wholesale by undo and redo.
type DiskViewer interface {
	View(fn func(d *filesystem.Disk))
}

// Server mounts a [DiskViewer] and serves kernel requests against whatever
// disk is live at the time of each request.
type Server struct {
	src     DiskViewer
	cfg     *config.Config
	server  *fuse.Server
	started time.Time
	inos    *xsync.Map[string, uint64] // kind and path to fuse Attr.Ino
	lastIno atomic.Uint64              // last Attr.Ino handed out
}

// New creates a Server for src. Nothing is mounted until [Server.Serve].
func New(src DiskViewer, cfg *config.Config) *Server {
	if cfg == nil {
		cfg = config.NewConfig(nil)
	}
	s := &Server{
		src:     src,
		cfg:     cfg,
		started: time.Now(),
		inos:    xsync.NewMap[string, uint64](),
	}
	s.lastIno.Store(fuse.FUSE_ROOT_ID)
	s.inos.Store(inoKey(filesystem.DirectoryKind, nil), fuse.FUSE_ROOT_ID)
	return s
}

func inoKey(kind filesystem.Kind, p []string) string {
	return kind.String() + ":/" + strings.Join(p, "/")
}

// inoFor returns the inode number for the entry of the given kind at p. The
// same path keeps its number across undo and redo as long as its kind does.
func (s *Server) inoFor(kind filesystem.Kind, p []string) uint64 {
	key := inoKey(kind, p)
	if ino, ok := s.inos.Load(key); ok {
		return ino
	}
	ino, _ := s.inos.LoadOrStore(key, s.lastIno.Add(1))
	return ino
}

// Root returns the node for the disk's root directory.
func (s *Server) Root() fs.InodeEmbedder {
	return &entryNode{srv: s}
}

func seconds(v float64) *time.Duration {
	d := time.Duration(v * float64(time.Second))
	return &d
}

// Serve mounts the disk at mountPoint and returns once the mount is ready.
func (s *Server) Serve(mountPoint string) error {
	logger := util.GetLogger("Server.Serve")
	opts := s.cfg.MountOptions

	srv, err := fs.Mount(mountPoint, s.Root(), &fs.Options{
		MountOptions: fuse.MountOptions{
			Name:   opts.Name,
			FsName: opts.FsName,
			Debug:  s.cfg.LogLvl == util.TraceLevel,
			Logger: util.NewLogLogger("FuseServer", util.DebugLevel),
		},
		AttrTimeout:  seconds(s.cfg.AttrTimeout),
		EntryTimeout: seconds(s.cfg.EntryTimeout),
		UID:          uint32(os.Getuid()),
		GID:          uint32(os.Getgid()),
		Logger:       util.NewLogLogger("FuseBridge", util.DebugLevel),
	})
	if err != nil {
		logger.Error().Err(err).Str("mountpoint", mountPoint).Msg("Failed to mount")
		return err
	}
	s.server = srv
	logger.Debug().Str("mountpoint", mountPoint).Msg("Mounted")
	return nil
}

// Unmount cleanly unmounts the filesystem.
func (s *Server) Unmount() error {
	if s.server == nil {
		return nil
	}
	return s.server.Unmount()
}
