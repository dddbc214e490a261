package vfs

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Node is an entry in the snapshot tree, either a *Dir or a *File. Nodes are
// never mutated after the snapshot is published.
type Node interface {
	Name() string
	Size() int64
	ModTime() time.Time
	IsDir() bool
}

// File is a leaf pointing at an upstream object by href.
type File struct {
	name    string
	size    int64
	href    string
	modTime time.Time
}

func NewFile(name string, size int64, href string, modTime time.Time) *File {
	return &File{name: name, size: size, href: href, modTime: modTime}
}

func (f *File) Name() string       { return f.name }
func (f *File) Size() int64        { return f.size }
func (f *File) ModTime() time.Time { return f.modTime }
func (f *File) IsDir() bool        { return false }

// Href returns the upstream path, still URL-encoded as listed.
func (f *File) Href() string { return f.href }

type Dir struct {
	name     string
	modTime  time.Time
	children map[string]Node
}

func NewDir(name string, modTime time.Time) *Dir {
	return &Dir{name: name, modTime: modTime, children: make(map[string]Node)}
}

func (d *Dir) Name() string       { return d.name }
func (d *Dir) Size() int64        { return 0 }
func (d *Dir) ModTime() time.Time { return d.modTime }
func (d *Dir) IsDir() bool        { return true }

func (d *Dir) Child(name string) (Node, bool) {
	n, ok := d.children[name]
	return n, ok
}

// Children returns the direct children sorted by name.
func (d *Dir) Children() []Node {
	nodes := make([]Node, 0, len(d.children))
	for _, n := range d.children {
		nodes = append(nodes, n)
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].Name() < nodes[j].Name() })
	return nodes
}

func (d *Dir) Len() int { return len(d.children) }

// getOrCreateDir returns the named child directory, creating it if absent.
// A file already holding the name is a collision.
func (d *Dir) getOrCreateDir(name string, modTime time.Time) (*Dir, error) {
	if existing, ok := d.children[name]; ok {
		sub, isDir := existing.(*Dir)
		if !isDir {
			return nil, fmt.Errorf("%q already exists as a file", name)
		}
		return sub, nil
	}
	sub := NewDir(name, modTime)
	d.children[name] = sub
	return sub, nil
}

// addFile inserts a leaf, refusing to overwrite an existing child.
func (d *Dir) addFile(f *File) error {
	if _, ok := d.children[f.name]; ok {
		return fmt.Errorf("%q already exists", f.name)
	}
	d.children[f.name] = f
	return nil
}

var (
	invalidPathChars = regexp.MustCompile(`[/\\:*?"<>|]`)
	multiSpace       = regexp.MustCompile(`\s+`)
)

// Sanitize makes a title safe as a single path segment. Characters that are
// path separators or reserved on common filesystems become spaces, and runs
// of whitespace collapse to one.
func Sanitize(name string) string {
	name = invalidPathChars.ReplaceAllString(name, " ")
	name = multiSpace.ReplaceAllString(name, " ")
	return strings.TrimSpace(name)
}
