package qnx4

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"strings"
	"time"

	"github.com/quentinwolf/QNX4-Extractor-MyGig-Infotainment/logger"
)

// Kind is the node type of a PathNode.
type Kind uint8

const (
	KindFile Kind = iota
	KindDir
	KindSymlink
	KindSpecial
)

func (k Kind) String() string {
	switch k {
	case KindDir:
		return "dir"
	case KindSymlink:
		return "symlink"
	case KindSpecial:
		return "special"
	default:
		return "file"
	}
}

// PathNode is one file or directory of the rebuilt hierarchy.
type PathNode struct {
	Name     string
	Path     string // Absolute, "/" for the root
	Inode    uint32
	Kind     Kind
	Size     int64
	Mode     fs.FileMode
	MTime    time.Time
	Children []*PathNode

	// Err is set when the node could not be fully resolved: a corrupt
	// inode, a truncated extent chain or a directory cycle. Directories
	// with an error may have fewer children than on disk.
	Err error

	parent *PathNode
}

// IsDir reports whether the node is a directory.
func (n *PathNode) IsDir() bool { return n.Kind == KindDir }

// Walk calls fn for n and its descendants in depth-first pre-order.
// Returning fs.SkipDir from fn skips a directory's children.
func (n *PathNode) Walk(fn func(*PathNode) error) error {
	stack := []*PathNode{n}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if err := fn(node); err != nil {
			if err == fs.SkipDir {
				continue
			}
			return err
		}
		for i := len(node.Children) - 1; i >= 0; i-- {
			stack = append(stack, node.Children[i])
		}
	}
	return nil
}

// Find returns the node at the slash-separated path p, relative to n.
func (n *PathNode) Find(p string) *PathNode {
	node := n
	for _, part := range splitPath(p) {
		var next *PathNode
		for _, c := range node.Children {
			if c.Name == part {
				next = c
				break
			}
		}
		if next == nil {
			return nil
		}
		node = next
	}
	return node
}

// onBranch returns n or its nearest ancestor with the given inode.
func (n *PathNode) onBranch(ino uint32) *PathNode {
	for p := n; p != nil; p = p.parent {
		if p.Inode == ino {
			return p
		}
	}
	return nil
}

// Tree is the result of a scan.
type Tree struct {
	Root *PathNode
	// Errors lists every node that could not be fully resolved, as
	// *fs.PathError values with Op "scan".
	Errors []error
	Files  int
	Dirs   int
}

func (t *Tree) report(n *PathNode, err error) {
	n.Err = err
	t.Errors = append(t.Errors, &fs.PathError{Op: "scan", Path: n.Path, Err: err})
	logger.Warn("%s: %v", n.Path, err)
}

// Scan rebuilds the whole hierarchy from the root directory.
func (f *FS) Scan(ctx context.Context) (*Tree, error) {
	root, err := f.Root()
	if err != nil {
		return nil, err
	}
	return f.BuildTree(ctx, root, "/")
}

// BuildTree rebuilds the hierarchy below dir, whose absolute path is
// dirPath. It walks an explicit work list rather than recursing. Child
// inodes are always read from the inode table; the records embedded in
// directory entries are not trusted.
//
// Only a cancelled context is returned as an error. Damage found along
// the way is recorded on the affected nodes and in Tree.Errors, and the
// walk carries on elsewhere.
func (f *FS) BuildTree(ctx context.Context, dir *Inode, dirPath string) (*Tree, error) {
	root := f.newNode(dir, path.Base(dirPath), dirPath, nil)
	tree := &Tree{Root: root, Dirs: 1}

	type frame struct {
		node *PathNode
		ino  *Inode
	}
	work := []frame{{root, dir}}

	for len(work) > 0 {
		if err := ctx.Err(); err != nil {
			return tree, err
		}
		cur := work[len(work)-1]
		work = work[:len(work)-1]

		entries, err := f.ReadDirEntries(cur.ino)
		if err != nil {
			tree.report(cur.node, err)
		}

		var dirs []frame
		for _, e := range entries {
			if e.Name == "." || e.Name == ".." || e.Name == "/" {
				continue
			}
			if strings.ContainsRune(e.Name, '/') {
				node := &PathNode{Name: e.Name, Path: cur.node.Path, Inode: e.Inode, Kind: KindSpecial, parent: cur.node}
				tree.report(node, &CorruptInodeError{Inode: e.Inode, Reason: fmt.Sprintf("entry name %q contains a slash", e.Name)})
				continue
			}
			childPath := path.Join(cur.node.Path, e.Name)

			child, err := f.Inode(e.Inode)
			if err != nil {
				node := &PathNode{Name: e.Name, Path: childPath, Inode: e.Inode, parent: cur.node}
				if e.Snapshot != nil {
					node.Kind = kindOf(e.Snapshot.Type)
					node.Size = int64(e.Snapshot.Size)
				}
				cur.node.Children = append(cur.node.Children, node)
				tree.report(node, err)
				continue
			}

			node := f.newNode(child, e.Name, childPath, cur.node)
			cur.node.Children = append(cur.node.Children, node)
			if !child.IsDir() {
				tree.Files++
				continue
			}
			tree.Dirs++

			if anc := cur.node.onBranch(child.Number); anc != nil {
				tree.report(node, &CyclicDirectoryError{Inode: child.Number, Path: childPath, Ancestor: anc.Path})
				continue
			}
			dirs = append(dirs, frame{node, child})
		}

		// Push in reverse so directories are visited in on-disk order.
		for i := len(dirs) - 1; i >= 0; i-- {
			work = append(work, dirs[i])
		}
	}
	return tree, nil
}

func (f *FS) newNode(ino *Inode, name, p string, parent *PathNode) *PathNode {
	return &PathNode{
		Name:   name,
		Path:   p,
		Inode:  ino.Number,
		Kind:   kindOf(ino.Type),
		Size:   int64(ino.Size),
		Mode:   ino.FileMode(),
		MTime:  ino.MTime,
		parent: parent,
	}
}

func kindOf(t FileType) Kind {
	switch t {
	case TypeDir:
		return KindDir
	case TypeSymlink:
		return KindSymlink
	case TypeRegular:
		return KindFile
	default:
		return KindSpecial
	}
}
