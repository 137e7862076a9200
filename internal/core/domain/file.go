package domain

import (
	"io/fs"
	"path/filepath"
	"strings"
	"time"
)

// File is an in-memory file record flowing through a pipeline.
type File struct {
	// Path is the current absolute path. Renaming stages change it.
	Path string
	// Base is the absolute directory Path is relative to.
	Base string
	// Source is the absolute path the record was read from.
	Source   string
	Contents []byte
	ModTime  time.Time
	Mode     fs.FileMode
}

// Rel returns Path relative to Base using the host separator.
func (f *File) Rel() string {
	rel, err := filepath.Rel(f.Base, f.Path)
	if err != nil {
		return filepath.Base(f.Path)
	}
	return rel
}

// SlashRel returns Rel with forward slashes for logs and glob matching.
func (f *File) SlashRel() string {
	return filepath.ToSlash(f.Rel())
}

// Ext returns the lower-cased extension of the current path, including the dot.
func (f *File) Ext() string {
	return strings.ToLower(filepath.Ext(f.Path))
}

// SetExt replaces the extension of the current path.
func (f *File) SetExt(ext string) {
	f.Path = strings.TrimSuffix(f.Path, filepath.Ext(f.Path)) + ext
}

// Clone returns a deep copy of f.
func (f *File) Clone() *File {
	c := *f
	c.Contents = append([]byte(nil), f.Contents...)
	return &c
}
