// Package diskimage encodes a [filesystem.Disk] to and from the single file
// used by store and load.
package diskimage

// Version is the image layout written by this package.
const Version = 1

const (
	DocumentKind  = "document"
	DirectoryKind = "directory"
)

// Image is the serialized form of one disk: its tree, capacity and cursor.
type Image struct {
	Version  int      `json:"version" yaml:"version"`
	Capacity int      `json:"capacity" yaml:"capacity"`
	Cwd      []string `json:"cwd" yaml:"cwd"` // names from the root to the working directory
	Root     Node     `json:"root" yaml:"root"`
}

// Node is the serialized form of one entry.
type Node struct {
	Name     string `json:"name" yaml:"name"`
	Kind     string `json:"kind" yaml:"kind"`
	Type     string `json:"type,omitempty" yaml:"type,omitempty"`
	Content  string `json:"content,omitempty" yaml:"content,omitempty"`
	Children []Node `json:"children,omitempty" yaml:"children,omitempty"`
}
