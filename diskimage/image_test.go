package diskimage

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/brettbedarf/cvfs/filesystem"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// createTestDisk builds a small tree with the cursor inside /d/e
func createTestDisk(t *testing.T) *filesystem.Disk {
	t.Helper()
	d, err := filesystem.NewDisk(1000)
	require.NoError(t, err)
	require.NoError(t, d.MakeDocument("a", "txt", "hello"))
	require.NoError(t, d.MakeDir("d"))
	require.NoError(t, d.ChangeDir("d"))
	require.NoError(t, d.MakeDocument("b", "java", "class B {}"))
	require.NoError(t, d.MakeDir("e"))
	require.NoError(t, d.ChangeDir("e"))
	return d
}

func TestFormatFor(t *testing.T) {
	t.Parallel()

	assert.Equal(t, YAML, FormatFor("disk.yaml"))
	assert.Equal(t, YAML, FormatFor("disk.YML"))
	assert.Equal(t, JSON, FormatFor("disk.json"))
	assert.Equal(t, JSON, FormatFor("storedCVFS.CVFS"))
	assert.Equal(t, JSON, FormatFor("noext"))
}

func TestFromDisk(t *testing.T) {
	t.Parallel()

	img := FromDisk(createTestDisk(t))

	assert.Equal(t, Version, img.Version)
	assert.Equal(t, 1000, img.Capacity)
	assert.Equal(t, []string{"d", "e"}, img.Cwd)
	require.Len(t, img.Root.Children, 2)
	assert.Equal(t, Node{Name: "a", Kind: DocumentKind, Type: "txt", Content: "hello"}, img.Root.Children[0])
	assert.Equal(t, DirectoryKind, img.Root.Children[1].Kind)
}

func TestRoundTrip(t *testing.T) {
	t.Parallel()

	for _, format := range []Format{JSON, YAML} {
		orig := createTestDisk(t)

		data, err := Encode(FromDisk(orig), format)
		require.NoError(t, err)
		img, err := Decode(data, format)
		require.NoError(t, err)
		got, err := img.ToDisk()
		require.NoError(t, err)

		assert.Equal(t, orig, got, "format %d must reproduce tree, capacity and cursor", format)
		assert.Equal(t, []string{"d", "e"}, got.WorkingPath())
	}
}

func TestSaveLoad(t *testing.T) {
	t.Parallel()

	for _, name := range []string{"disk.json", "disk.yaml", "storedCVFS.CVFS"} {
		t.Run(name, func(t *testing.T) {
			t.Parallel()
			p := filepath.Join(t.TempDir(), name)
			orig := createTestDisk(t)

			require.NoError(t, Save(p, orig))
			got, err := Load(p)
			require.NoError(t, err)
			assert.Equal(t, orig, got)
		})
	}
}

func TestSave_Overwrites(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "disk.json")
	require.NoError(t, Save(p, createTestDisk(t)))

	empty, err := filesystem.NewDisk(10)
	require.NoError(t, err)
	require.NoError(t, Save(p, empty))

	got, err := Load(p)
	require.NoError(t, err)
	assert.Equal(t, 10, got.Capacity())
	assert.Empty(t, got.List())

	entries, err := os.ReadDir(filepath.Dir(p))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestLoad_Missing(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	require.Error(t, err)
	assert.True(t, os.IsNotExist(err))
}

func TestLoad_Corrupt(t *testing.T) {
	t.Parallel()

	p := filepath.Join(t.TempDir(), "disk.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"version": 1, "root": `), 0o600))

	_, err := Load(p)
	assert.ErrorIs(t, err, ErrInvalidImage)
}

func TestToDisk_Validation(t *testing.T) {
	t.Parallel()

	valid := func() *Image {
		return &Image{
			Version:  Version,
			Capacity: 1000,
			Root: Node{Kind: DirectoryKind, Children: []Node{
				{Name: "a", Kind: DocumentKind, Type: "txt", Content: "x"},
				{Name: "d", Kind: DirectoryKind},
			}},
		}
	}

	tests := []struct {
		name    string
		mutate  func(img *Image)
		wantErr error
	}{
		{"valid", func(img *Image) {}, nil},
		{"version", func(img *Image) { img.Version = 99 }, ErrInvalidImage},
		{"capacity", func(img *Image) { img.Capacity = 0 }, filesystem.ErrInvalidCapacity},
		{"overfull", func(img *Image) { img.Capacity = 50 }, filesystem.ErrCapacityExceeded},
		{"root_kind", func(img *Image) { img.Root.Kind = DocumentKind }, ErrInvalidImage},
		{"root_name", func(img *Image) { img.Root.Name = "root" }, ErrInvalidImage},
		{"duplicate", func(img *Image) {
			img.Root.Children = append(img.Root.Children, Node{Name: "a", Kind: DirectoryKind})
		}, filesystem.ErrDuplicateName},
		{"bad_name", func(img *Image) { img.Root.Children[0].Name = ".." }, filesystem.ErrInvalidName},
		{"unknown_kind", func(img *Image) { img.Root.Children[0].Kind = "symlink" }, ErrInvalidImage},
		{"doc_children", func(img *Image) {
			img.Root.Children[0].Children = []Node{{Name: "x", Kind: DocumentKind}}
		}, ErrInvalidImage},
		{"dir_content", func(img *Image) { img.Root.Children[1].Content = "x" }, ErrInvalidImage},
		{"cwd_missing", func(img *Image) { img.Cwd = []string{"nope"} }, filesystem.ErrNotFound},
		{"cwd_document", func(img *Image) { img.Cwd = []string{"a"} }, filesystem.ErrNotADirectory},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			img := valid()
			tt.mutate(img)

			d, err := img.ToDisk()
			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.NotNil(t, d)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, ErrInvalidImage)
			assert.Nil(t, d)
		})
	}
}

func TestToDisk_ReportsAllProblems(t *testing.T) {
	t.Parallel()

	img := &Image{
		Version:  Version,
		Capacity: 1000,
		Cwd:      []string{"missing"},
		Root: Node{Kind: DirectoryKind, Children: []Node{
			{Name: "", Kind: DocumentKind},
			{Name: "x", Kind: "weird"},
		}},
	}

	_, err := img.ToDisk()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "3 errors occurred")
}
