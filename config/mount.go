package config

// MountOptions holds settings for the read-only FUSE view.
// No go-fuse types are exposed here.
type MountOptions struct {
	FsName string // mount's FsName
	Name   string // mount's Name
}
