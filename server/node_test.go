package server

import (
	"context"
	"syscall"
	"testing"

	"github.com/brettbedarf/cvfs/config"
	"github.com/brettbedarf/cvfs/filesystem"
	"github.com/brettbedarf/cvfs/history"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// staticView serves a fixed disk
type staticView struct {
	d *filesystem.Disk
}

func (v staticView) View(fn func(d *filesystem.Disk)) {
	fn(v.d)
}

// createTestServer serves / with a ("hello") and d/b ("class B {}")
func createTestServer(t *testing.T) *Server {
	t.Helper()
	d, err := filesystem.NewDisk(1000)
	require.NoError(t, err)
	require.NoError(t, d.MakeDocument("a", "txt", "hello"))
	require.NoError(t, d.MakeDir("d"))
	require.NoError(t, d.ChangeDir("d"))
	require.NoError(t, d.MakeDocument("b", "java", "class B {}"))
	return New(staticView{d}, nil)
}

func node(s *Server, p ...string) *entryNode {
	return &entryNode{srv: s, path: p}
}

func TestInoFor(t *testing.T) {
	t.Parallel()
	s := createTestServer(t)

	assert.Equal(t, uint64(fuse.FUSE_ROOT_ID), s.inoFor(filesystem.DirectoryKind, nil))

	a := s.inoFor(filesystem.DocumentKind, []string{"a"})
	b := s.inoFor(filesystem.DocumentKind, []string{"d", "b"})
	assert.NotEqual(t, a, b)
	assert.Greater(t, a, uint64(fuse.FUSE_ROOT_ID))
	assert.Equal(t, a, s.inoFor(filesystem.DocumentKind, []string{"a"}), "stable per path")
	assert.NotEqual(t, a, s.inoFor(filesystem.DirectoryKind, []string{"a"}), "kind change gets a new inode")
}

func TestGetattr(t *testing.T) {
	t.Parallel()
	s := createTestServer(t)
	ctx := context.Background()

	var out fuse.AttrOut
	require.Equal(t, syscall.Errno(0), node(s).Getattr(ctx, nil, &out))
	assert.Equal(t, uint32(dirMode), out.Mode)
	assert.Equal(t, uint64(fuse.FUSE_ROOT_ID), out.Ino)

	out = fuse.AttrOut{}
	require.Equal(t, syscall.Errno(0), node(s, "a").Getattr(ctx, nil, &out))
	assert.Equal(t, uint32(fileMode), out.Mode)
	assert.Equal(t, uint64(len("hello")), out.Size)

	out = fuse.AttrOut{}
	require.Equal(t, syscall.Errno(0), node(s, "d").Getattr(ctx, nil, &out))
	assert.Equal(t, uint64(40+40+2*len("class B {}")), out.Size)

	assert.Equal(t, syscall.ENOENT, node(s, "ghost").Getattr(ctx, nil, &out))
	assert.Equal(t, syscall.ENOTDIR, node(s, "a", "x").Getattr(ctx, nil, &out))
}

func TestLookupChild(t *testing.T) {
	t.Parallel()
	s := createTestServer(t)

	var out fuse.EntryOut
	child, stable, errno := node(s, "d").lookupChild("b", &out)
	require.Equal(t, syscall.Errno(0), errno)
	assert.Equal(t, []string{"d", "b"}, child.path)
	assert.Equal(t, uint32(syscall.S_IFREG), stable.Mode)
	assert.Equal(t, out.Ino, stable.Ino)
	assert.Equal(t, uint64(len("class B {}")), out.Size)

	_, _, errno = node(s).lookupChild("ghost", &out)
	assert.Equal(t, syscall.ENOENT, errno)
	_, _, errno = node(s, "a").lookupChild("x", &out)
	assert.Equal(t, syscall.ENOTDIR, errno)
}

func TestReaddir(t *testing.T) {
	t.Parallel()
	s := createTestServer(t)

	ds, errno := node(s).Readdir(context.Background())
	require.Equal(t, syscall.Errno(0), errno)
	defer ds.Close()

	var got []fuse.DirEntry
	for ds.HasNext() {
		e, errno := ds.Next()
		require.Equal(t, syscall.Errno(0), errno)
		got = append(got, e)
	}
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Name)
	assert.Equal(t, uint32(syscall.S_IFREG), got[0].Mode)
	assert.Equal(t, "d", got[1].Name)
	assert.Equal(t, uint32(syscall.S_IFDIR), got[1].Mode)
	assert.Equal(t, s.inoFor(filesystem.DirectoryKind, []string{"d"}), got[1].Ino)

	_, errno = node(s, "a").Readdir(context.Background())
	assert.Equal(t, syscall.ENOTDIR, errno)
}

func TestOpen(t *testing.T) {
	t.Parallel()
	s := createTestServer(t)
	ctx := context.Background()

	_, flags, errno := node(s, "a").Open(ctx, syscall.O_RDONLY)
	require.Equal(t, syscall.Errno(0), errno)
	assert.Equal(t, uint32(fuse.FOPEN_DIRECT_IO), flags)

	_, _, errno = node(s, "a").Open(ctx, syscall.O_WRONLY)
	assert.Equal(t, syscall.EROFS, errno)
	_, _, errno = node(s, "d").Open(ctx, syscall.O_RDONLY)
	assert.Equal(t, syscall.EISDIR, errno)
	_, _, errno = node(s, "ghost").Open(ctx, syscall.O_RDONLY)
	assert.Equal(t, syscall.ENOENT, errno)
}

func TestRead(t *testing.T) {
	t.Parallel()
	s := createTestServer(t)
	ctx := context.Background()

	tests := []struct {
		name string
		off  int64
		size int
		want string
	}{
		{"whole", 0, 64, "class B {}"},
		{"offset", 6, 64, "B {}"},
		{"short_buffer", 0, 5, "class"},
		{"past_end", 100, 64, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, errno := node(s, "d", "b").Read(ctx, nil, make([]byte, tt.size), tt.off)
			require.Equal(t, syscall.Errno(0), errno)
			data, status := res.Bytes(nil)
			require.Equal(t, fuse.OK, status)
			assert.Equal(t, tt.want, string(data))
		})
	}

	_, errno := node(s, "d").Read(ctx, nil, make([]byte, 8), 0)
	assert.Equal(t, syscall.EISDIR, errno)
}

func TestStatfs(t *testing.T) {
	t.Parallel()
	s := createTestServer(t)

	var out fuse.StatfsOut
	require.Equal(t, syscall.Errno(0), node(s).Statfs(context.Background(), &out))
	assert.Equal(t, uint64(1000), out.Blocks)
	used := 50 + 40 + 40 + 2*len("class B {}")
	assert.Equal(t, uint64(1000-used), out.Bfree)
}

func TestNodeFollowsHistory(t *testing.T) {
	t.Parallel()
	m, err := history.New(config.NewConfig(nil))
	require.NoError(t, err)
	s := New(m, nil)
	ctx := context.Background()

	require.NoError(t, m.NewDoc("a", "txt", "v1"))
	require.NoError(t, m.Delete("a"))
	require.NoError(t, m.NewDir("a"))

	var out fuse.AttrOut
	require.Equal(t, syscall.Errno(0), node(s, "a").Getattr(ctx, nil, &out))
	assert.Equal(t, uint32(dirMode), out.Mode)

	require.NoError(t, m.Undo())
	assert.Equal(t, syscall.ENOENT, node(s, "a").Getattr(ctx, nil, &out))

	require.NoError(t, m.Undo())
	out = fuse.AttrOut{}
	require.Equal(t, syscall.Errno(0), node(s, "a").Getattr(ctx, nil, &out))
	assert.Equal(t, uint32(fileMode), out.Mode)

	res, errno := node(s, "a").Read(ctx, nil, make([]byte, 8), 0)
	require.Equal(t, syscall.Errno(0), errno)
	data, _ := res.Bytes(nil)
	assert.Equal(t, "v1", string(data))
}

func TestUnmountWithoutMount(t *testing.T) {
	t.Parallel()
	s := createTestServer(t)
	assert.NoError(t, s.Unmount())
	assert.NotNil(t, s.Root())
}
