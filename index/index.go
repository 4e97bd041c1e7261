package index

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dendrascience/archivefs/archive"
)

// RootInode is the inode number of the root directory.
const RootInode uint64 = 1

// Index is the directory tree of one archive.
type Index struct {
	root      *Node
	nodes     int
	entries   int
	nextInode uint64
	log       logrus.FieldLogger
}

// Child is one row of a directory listing.
type Child struct {
	Name string
	Kind archive.Kind
}

// Option configures Build.
type Option func(*Index)

// WithLogger sets the logger used to report conflicting entries.
func WithLogger(l logrus.FieldLogger) Option {
	return func(ix *Index) {
		if l != nil {
			ix.log = l
		}
	}
}

func newIndex(opts ...Option) *Index {
	discard := logrus.New()
	discard.SetOutput(io.Discard)
	ix := &Index{
		nextInode: RootInode,
		log:       discard,
	}
	for _, opt := range opts {
		opt(ix)
	}
	ix.root = &Node{Inode: ix.allocInode(), Record: archive.Synthesized("")}
	ix.nodes = 1
	return ix
}

func (ix *Index) allocInode() uint64 {
	i := ix.nextInode
	ix.nextInode++
	return i
}

// BuildFromSource opens a stream on src, builds the index from it, and
// closes the stream on every path.
func BuildFromSource(src archive.Source, opts ...Option) (ix *Index, err error) {
	st, err := src.Open()
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := st.Close(); cerr != nil && err == nil {
			ix, err = nil, fmt.Errorf("close archive: %w", cerr)
		}
	}()
	return Build(st, opts...)
}

// Build consumes st from its current position to the end, inserting every
// header in the order the archive yields it. Unreadable headers and paths
// escaping the root fail with archive.ErrCorruptArchive.
func Build(st archive.Stream, opts ...Option) (*Index, error) {
	ix := newIndex(opts...)
	start := time.Now()

	for {
		h, err := st.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, ensureCorrupt(err)
		}
		rec, err := h.Record()
		if err != nil {
			return nil, ensureCorrupt(err)
		}
		if err := st.Skip(); err != nil {
			return nil, ensureCorrupt(err)
		}
		ix.insert(rec)
		ix.entries++
	}

	ix.log.WithFields(logrus.Fields{
		"entries":  ix.entries,
		"nodes":    ix.nodes,
		"duration": time.Since(start),
	}).Debug("index built")
	return ix, nil
}

func ensureCorrupt(err error) error {
	if errors.Is(err, archive.ErrCorruptArchive) {
		return err
	}
	return fmt.Errorf("%w: %w", archive.ErrCorruptArchive, err)
}

func (ix *Index) newNode(name string, rec archive.Record) *Node {
	ix.nodes++
	return &Node{Name: name, Inode: ix.allocInode(), Record: rec}
}

func (ix *Index) insert(rec archive.Record) {
	if rec.Path == "" {
		if rec.Kind != archive.KindDirectory {
			ix.log.WithField("kind", rec.Kind).Warn("ignoring non-directory entry for archive root")
			return
		}
		ix.root.Record = rec
		return
	}

	cur := ix.root
	offset := 0
	for component := range strings.SplitSeq(rec.Path, "/") {
		offset += len(component)
		isLast := offset >= len(rec.Path)
		prefix := rec.Path[:offset]
		offset++

		child, ok := cur.children[component]
		if !isLast {
			switch {
			case !ok:
				child = ix.newNode(component, archive.Synthesized(prefix))
				cur.addChild(child)
			case !child.IsDir():
				ix.log.WithFields(logrus.Fields{
					"path":  prefix,
					"kind":  child.Kind(),
					"under": rec.Path,
				}).Warn("entry used as directory; replacing with synthesized directory")
				child.Record = archive.Synthesized(prefix)
			}
			cur = child
			continue
		}

		switch {
		case !ok:
			cur.addChild(ix.newNode(component, rec))
		case rec.Kind == archive.KindDirectory:
			child.Record = rec
		case len(child.ordered) > 0:
			ix.log.WithFields(logrus.Fields{
				"path": rec.Path,
				"kind": rec.Kind,
			}).Warn("ignoring non-directory entry for populated directory")
		default:
			child.Record = rec
			child.children = nil
		}
	}
}

// Root returns the root directory.
func (ix *Index) Root() *Node {
	return ix.root
}

// Len returns the number of nodes, root and synthesized directories
// included.
func (ix *Index) Len() int {
	return ix.nodes
}

// Entries returns the number of archive headers consumed by Build.
func (ix *Index) Entries() int {
	return ix.entries
}

// Resolve descends from the root one segment at a time. Matching is exact
// and case-sensitive, and symlinks are never followed. Both "/a/b" and
// "a/b" name the same node; "/" and "" name the root.
func (ix *Index) Resolve(p string) (*Node, error) {
	cur := ix.root
	for seg := range strings.SplitSeq(strings.Trim(p, "/"), "/") {
		if seg == "" {
			continue
		}
		child, ok := cur.children[seg]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		cur = child
	}
	return cur, nil
}

// ListChildren returns the name and kind of every child of the directory
// at p, in first-seen order.
func (ix *Index) ListChildren(p string) ([]Child, error) {
	n, err := ix.Resolve(p)
	if err != nil {
		return nil, err
	}
	if !n.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotADirectory, p)
	}
	out := make([]Child, len(n.ordered))
	for i, c := range n.ordered {
		out[i] = Child{Name: c.Name, Kind: c.Kind()}
	}
	return out, nil
}

// Walk calls fn for every node in depth-first, first-seen order, starting
// with the root. Returning an error from fn stops the walk.
func (ix *Index) Walk(fn func(*Node) error) error {
	return walk(ix.root, fn)
}

func walk(n *Node, fn func(*Node) error) error {
	if err := fn(n); err != nil {
		return err
	}
	for _, c := range n.ordered {
		if err := walk(c, fn); err != nil {
			return err
		}
	}
	return nil
}
