package diskimage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/brettbedarf/cvfs/filesystem"
	"github.com/brettbedarf/cvfs/internal/util"
	"github.com/facebookgo/atomicfile"
	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// ErrInvalidImage is wrapped by every decode or validation failure.
var ErrInvalidImage = errors.New("invalid disk image")

// Format selects the image encoding.
type Format int

const (
	JSON Format = iota
	YAML
)

// FormatFor picks the encoding from a file extension: .yaml and .yml select
// YAML, anything else JSON.
func FormatFor(p string) Format {
	switch strings.ToLower(filepath.Ext(p)) {
	case ".yaml", ".yml":
		return YAML
	default:
		return JSON
	}
}

// FromDisk captures the tree, capacity and cursor of d.
func FromDisk(d *filesystem.Disk) *Image {
	return &Image{
		Version:  Version,
		Capacity: d.Capacity(),
		Cwd:      d.WorkingPath(),
		Root:     fromEntry(d.Root()),
	}
}

func fromEntry(e *filesystem.Entry) Node {
	if e.IsDocument() {
		return Node{Name: e.Name(), Kind: DocumentKind, Type: e.Type(), Content: e.Content()}
	}
	children := e.Children()
	n := Node{Name: e.Name(), Kind: DirectoryKind, Children: make([]Node, 0, len(children))}
	for _, child := range children {
		n.Children = append(n.Children, fromEntry(child))
	}
	return n
}

// ToDisk rebuilds a disk from the image. Every problem found is reported in
// a single error; no disk is returned unless the image is fully valid.
func (img *Image) ToDisk() (*filesystem.Disk, error) {
	var result *multierror.Error

	if img.Version != Version {
		result = multierror.Append(result, fmt.Errorf("unsupported version %d", img.Version))
	}
	if img.Root.Kind != DirectoryKind {
		result = multierror.Append(result, fmt.Errorf("root: kind %q, want %q", img.Root.Kind, DirectoryKind))
	}
	if img.Root.Name != "" || img.Root.Type != "" || img.Root.Content != "" {
		result = multierror.Append(result, errors.New("root: must have no name, type or content"))
	}

	d, err := filesystem.NewDisk(img.Capacity)
	if err != nil {
		result = multierror.Append(result, err)
		return nil, invalid(result)
	}

	buildChildren(d.Root(), img.Root.Children, "/", &result)

	if d.Used() > d.Capacity() {
		result = multierror.Append(result, fmt.Errorf("%w: %d used of %d", filesystem.ErrCapacityExceeded, d.Used(), d.Capacity()))
	}
	if err := d.SetWorkingPath(img.Cwd); err != nil {
		result = multierror.Append(result, fmt.Errorf("cwd /%s: %w", strings.Join(img.Cwd, "/"), err))
	}

	if err := invalid(result); err != nil {
		return nil, err
	}
	return d, nil
}

func buildChildren(dir *filesystem.Entry, nodes []Node, prefix string, result **multierror.Error) {
	for _, n := range nodes {
		p := path.Join(prefix, n.Name)
		var (
			child *filesystem.Entry
			err   error
		)
		switch n.Kind {
		case DocumentKind:
			if len(n.Children) > 0 {
				*result = multierror.Append(*result, fmt.Errorf("%s: document has children", p))
			}
			child, err = filesystem.NewDocument(n.Name, n.Type, n.Content)
		case DirectoryKind:
			if n.Type != "" || n.Content != "" {
				*result = multierror.Append(*result, fmt.Errorf("%s: directory has type or content", p))
			}
			child, err = filesystem.NewDirectory(n.Name)
		default:
			*result = multierror.Append(*result, fmt.Errorf("%s: unknown kind %q", p, n.Kind))
			continue
		}
		if err != nil {
			*result = multierror.Append(*result, fmt.Errorf("%s: %w", p, err))
			continue
		}
		if err := dir.AddChild(child); err != nil {
			*result = multierror.Append(*result, fmt.Errorf("%s: %w", p, err))
			continue
		}
		if child.IsDirectory() {
			buildChildren(child, n.Children, p, result)
		}
	}
}

func invalid(result *multierror.Error) error {
	if err := result.ErrorOrNil(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	return nil
}

// Encode serializes img in the given format.
func Encode(img *Image, format Format) ([]byte, error) {
	switch format {
	case YAML:
		return yaml.Marshal(img)
	default:
		return json.MarshalIndent(img, "", "  ")
	}
}

// Decode parses data in the given format. It does not validate the tree; see
// [Image.ToDisk].
func Decode(data []byte, format Format) (*Image, error) {
	var img Image
	var err error
	switch format {
	case YAML:
		err = yaml.Unmarshal(data, &img)
	default:
		err = json.Unmarshal(data, &img)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidImage, err)
	}
	return &img, nil
}

// Save writes d to p, replacing any previous image. The file is written to a
// temporary sibling and renamed into place, so readers never see a partial image.
func Save(p string, d *filesystem.Disk) error {
	logger := util.GetLogger("DiskImage.Save")

	data, err := Encode(FromDisk(d), FormatFor(p))
	if err != nil {
		return fmt.Errorf("encode image: %w", err)
	}

	f, err := atomicfile.New(p, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Abort() // nolint:errcheck
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	logger.Debug().Str("path", p).Int("bytes", len(data)).Msg("Wrote disk image")
	return nil
}

// Load reads the image at p and rebuilds its disk.
func Load(p string) (*filesystem.Disk, error) {
	logger := util.GetLogger("DiskImage.Load")

	data, err := os.ReadFile(p)
	if err != nil {
		return nil, err
	}
	img, err := Decode(data, FormatFor(p))
	if err != nil {
		return nil, err
	}
	d, err := img.ToDisk()
	if err != nil {
		return nil, err
	}
	logger.Debug().Str("path", p).Int("bytes", len(data)).Msg("Read disk image")
	return d, nil
}
