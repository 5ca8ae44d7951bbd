// Package history wraps a live [filesystem.Disk] with undo and redo. Every
// mutating command first records a deep copy of the live disk, cursor
// included, so it can be reversed.
package history

import (
	"fmt"
	"sync"
	"time"

	"github.com/brettbedarf/cvfs/config"
	"github.com/brettbedarf/cvfs/diskimage"
	"github.com/brettbedarf/cvfs/filesystem"
	"github.com/brettbedarf/cvfs/internal/util"
	"github.com/google/uuid"
)

// snapshot is an independent copy of a disk owned by one of the stacks.
type snapshot struct {
	id    uuid.UUID
	op    string // command whose effect this snapshot reverses
	taken time.Time
	disk  *filesystem.Disk
}

// SnapshotInfo describes a history entry without exposing its disk.
type SnapshotInfo struct {
	ID    uuid.UUID
	Op    string
	Taken time.Time
	Cwd   []string
	Used  int
}

// Usage reports the space accounting of the live disk.
type Usage struct {
	Capacity int
	Used     int
	Free     int
}

// Manager owns the live disk and its undo/redo stacks.
//
// Commands run one at a time to completion. The lock only lets read-only
// observers such as the FUSE view look at the live disk from other goroutines.
type Manager struct {
	cfg  *config.Config
	mu   sync.RWMutex
	disk *filesystem.Disk
	undo []*snapshot
	redo []*snapshot
}

// New creates a manager with an empty disk of cfg.Capacity. The initial disk
// is not recorded in history.
func New(cfg *config.Config) (*Manager, error) {
	if cfg == nil {
		cfg = config.NewConfig(nil)
	}
	d, err := filesystem.NewDisk(cfg.Capacity)
	if err != nil {
		return nil, err
	}
	return &Manager{cfg: cfg, disk: d}, nil
}

func (m *Manager) capture(op string) *snapshot {
	return &snapshot{id: uuid.New(), op: op, taken: time.Now(), disk: m.disk.Clone()}
}

// mutate records the live disk, then runs fn. The snapshot stays on the undo
// stack when fn fails unless RollbackFailed is set.
// Caller must not hold m.mu.
func (m *Manager) mutate(op string, fn func() error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	logger := util.GetLogger("History.mutate")

	prevRedo := m.redo
	m.undo = append(m.undo, m.capture(op))
	m.redo = nil

	if err := fn(); err != nil {
		if m.cfg.RollbackFailed {
			m.undo = m.undo[:len(m.undo)-1]
			m.redo = prevRedo
		}
		logger.Debug().Err(err).Str("op", op).Int("undo", len(m.undo)).Msg("Command failed")
		return err
	}
	logger.Debug().Str("op", op).Int("undo", len(m.undo)).Msg("Command applied")
	return nil
}

// NewDisk replaces the live disk with an empty one of the given capacity.
func (m *Manager) NewDisk(capacity int) error {
	return m.mutate(fmt.Sprintf("newDisk %d", capacity), func() error {
		d, err := filesystem.NewDisk(capacity)
		if err != nil {
			return err
		}
		m.disk = d
		return nil
	})
}

// NewDoc creates a document in the working directory.
func (m *Manager) NewDoc(name, docType, content string) error {
	return m.mutate("newDoc "+name, func() error {
		return m.disk.MakeDocument(name, docType, content)
	})
}

// NewDir creates a directory in the working directory.
func (m *Manager) NewDir(name string) error {
	return m.mutate("newDir "+name, func() error {
		return m.disk.MakeDir(name)
	})
}

// Delete removes an entry of the working directory, recursively for directories.
func (m *Manager) Delete(name string) error {
	return m.mutate("delete "+name, func() error {
		return m.disk.DeleteFile(name)
	})
}

// Rename renames an entry of the working directory.
func (m *Manager) Rename(oldName, newName string) error {
	return m.mutate(fmt.Sprintf("rename %s %s", oldName, newName), func() error {
		return m.disk.Rename(oldName, newName)
	})
}

// ChangeDir moves the working directory; [filesystem.ParentToken] moves up.
func (m *Manager) ChangeDir(name string) error {
	return m.mutate("changeDir "+name, func() error {
		return m.disk.ChangeDir(name)
	})
}

// Store writes the live disk to the configured store path. History is untouched.
func (m *Manager) Store() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	logger := util.GetLogger("History.Store")

	if err := diskimage.Save(m.cfg.StorePath, m.disk); err != nil {
		logger.Error().Err(err).Str("path", m.cfg.StorePath).Msg("Failed to store disk")
		return &PersistenceError{Op: "store", Path: m.cfg.StorePath, Err: err}
	}
	logger.Info().Str("path", m.cfg.StorePath).Msg("Stored disk")
	return nil
}

// Load replaces the live disk with the one at the configured store path. The
// load itself is undoable. On failure the live disk is unchanged.
func (m *Manager) Load() error {
	logger := util.GetLogger("History.Load")
	return m.mutate("load", func() error {
		d, err := diskimage.Load(m.cfg.StorePath)
		if err != nil {
			logger.Error().Err(err).Str("path", m.cfg.StorePath).Msg("Failed to load disk")
			return &PersistenceError{Op: "load", Path: m.cfg.StorePath, Err: err}
		}
		m.disk = d
		logger.Info().Str("path", m.cfg.StorePath).Msg("Loaded disk")
		return nil
	})
}

// Undo restores the disk recorded before the most recent command.
func (m *Manager) Undo() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	logger := util.GetLogger("History.Undo")

	if len(m.undo) == 0 {
		return fmt.Errorf("undo: %w", ErrEmptyHistory)
	}
	snap := m.undo[len(m.undo)-1]
	m.undo = m.undo[:len(m.undo)-1]
	m.redo = append(m.redo, m.capture(snap.op))
	m.disk = snap.disk // popped, so the stack no longer owns it

	logger.Info().Str("op", snap.op).Int("undo", len(m.undo)).Int("redo", len(m.redo)).Msg("Undid command")
	return nil
}

// Redo reapplies the most recently undone command.
func (m *Manager) Redo() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	logger := util.GetLogger("History.Redo")

	if len(m.redo) == 0 {
		return fmt.Errorf("redo: %w", ErrEmptyHistory)
	}
	snap := m.redo[len(m.redo)-1]
	m.redo = m.redo[:len(m.redo)-1]
	m.undo = append(m.undo, m.capture(snap.op))
	m.disk = snap.disk

	logger.Info().Str("op", snap.op).Int("undo", len(m.undo)).Int("redo", len(m.redo)).Msg("Redid command")
	return nil
}

// List returns the direct children of the working directory.
func (m *Manager) List() []filesystem.EntryInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entries := m.disk.List()
	out := make([]filesystem.EntryInfo, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Info())
	}
	return out
}

// RList returns every entry below the working directory in pre-order.
func (m *Manager) RList() []filesystem.EntryInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()
	rows := m.disk.RList()
	out := make([]filesystem.EntryInfo, 0, len(rows))
	for _, row := range rows {
		out = append(out, row.Info())
	}
	return out
}

// IsDocument reports whether the named entry of the working directory is a document.
func (m *Manager) IsDocument(name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.disk.IsDocument(name)
}

// WorkingPath returns the names from the root to the working directory.
func (m *Manager) WorkingPath() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.disk.WorkingPath()
}

func (m *Manager) Usage() Usage {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Usage{Capacity: m.disk.Capacity(), Used: m.disk.Used(), Free: m.disk.Free()}
}

func (m *Manager) UndoDepth() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.undo)
}

func (m *Manager) RedoDepth() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.redo)
}

// History describes both stacks, most recent first.
func (m *Manager) History() (undo, redo []SnapshotInfo) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return describe(m.undo), describe(m.redo)
}

func describe(stack []*snapshot) []SnapshotInfo {
	out := make([]SnapshotInfo, 0, len(stack))
	for i := len(stack) - 1; i >= 0; i-- {
		s := stack[i]
		out = append(out, SnapshotInfo{
			ID:    s.id,
			Op:    s.op,
			Taken: s.taken,
			Cwd:   s.disk.WorkingPath(),
			Used:  s.disk.Used(),
		})
	}
	return out
}

// CopyDisk returns an independent copy of the live disk.
func (m *Manager) CopyDisk() *filesystem.Disk {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.disk.Clone()
}

// View runs fn with read access to the live disk. fn must not retain or
// modify the disk.
func (m *Manager) View(fn func(d *filesystem.Disk)) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	fn(m.disk)
}
