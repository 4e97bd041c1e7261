package projection

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dendrascience/archivefs/archive"
	"github.com/dendrascience/archivefs/cache"
	"github.com/dendrascience/archivefs/extract"
	"github.com/dendrascience/archivefs/index"
)

// Attributes is the stat-like view of one node.
type Attributes struct {
	Inode      uint64
	Kind       archive.Kind
	Mode       fs.FileMode // permission bits only
	Nlink      uint32
	UID        uint32
	GID        uint32
	Size       uint64
	Atime      time.Time
	Mtime      time.Time
	LinkTarget string

	// SpecialType is the fifo or device type of a KindOther node, if known.
	SpecialType os.FileMode
}

// FileMode returns the permission bits combined with the type bits of the
// node's kind.
func (a Attributes) FileMode() os.FileMode {
	switch a.Kind {
	case archive.KindDirectory:
		return os.ModeDir | a.Mode
	case archive.KindSymlink:
		return os.ModeSymlink | a.Mode
	case archive.KindOther:
		if a.SpecialType != 0 {
			return a.SpecialType | a.Mode
		}
		return os.ModeIrregular | a.Mode
	default:
		return a.Mode
	}
}

// DirEntry is one row of ListDirectory.
type DirEntry struct {
	Name       string
	Attributes Attributes
}

// HandleID identifies an open file. Zero is never issued.
type HandleID uint64

type handle struct {
	path string
	node *index.Node
}

// Stats aggregates cache and cursor counters.
type Stats struct {
	Cache       cache.Stats
	Extract     extract.Stats
	OpenHandles int
}

// Service answers filesystem verbs against one archive.
type Service struct {
	cfg   Config
	ix    *index.Index
	cache *cache.Cache
	ex    *extract.Extractor
	log   logrus.FieldLogger

	mu         sync.RWMutex
	handles    map[HandleID]*handle
	nextHandle atomic.Uint64
}

// New validates cfg, indexes the archive and returns a ready Service.
// Any failure, including a corrupt archive, is returned before a Service
// exists.
func New(cfg Config) (*Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return NewFromSource(cfg, archive.NewFileSource(cfg.ArchivePath))
}

// NewFromSource builds a Service over src. cfg.ArchivePath is only used
// for logging.
func NewFromSource(cfg Config, src archive.Source) (*Service, error) {
	if cfg.CacheBytes < 0 {
		return nil, fmt.Errorf("%w: cache size must be >= 0, got %d", ErrInvalidConfig, cfg.CacheBytes)
	}
	if cfg.MountTime.IsZero() {
		cfg.MountTime = time.Now()
	}
	if cfg.Logger == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		cfg.Logger = discard
	}
	log := cfg.Logger.WithField("archive", cfg.ArchivePath)

	start := time.Now()
	ix, err := index.BuildFromSource(src, index.WithLogger(log))
	if err != nil {
		return nil, fmt.Errorf("index archive: %w", err)
	}
	log.WithFields(logrus.Fields{
		"entries":  ix.Entries(),
		"nodes":    ix.Len(),
		"duration": time.Since(start),
	}).Info("archive indexed")

	c := cache.New(cfg.CacheBytes, cache.WithLogger(log))
	return &Service{
		cfg:     cfg,
		ix:      ix,
		cache:   c,
		ex:      extract.New(src, c, extract.WithLogger(log)),
		log:     log,
		handles: make(map[HandleID]*handle),
	}, nil
}

// Config returns the configuration the Service was built with, defaults
// applied.
func (s *Service) Config() Config {
	return s.cfg
}

func (s *Service) attributes(n *index.Node) Attributes {
	rec := n.Record
	a := Attributes{
		Inode:      n.Inode,
		Kind:       rec.Kind,
		Mode:       rec.Mode,
		Nlink:      1,
		UID:        s.cfg.UID,
		GID:        s.cfg.GID,
		Mtime:      rec.ModTime,
		LinkTarget: rec.LinkTarget,

		SpecialType: rec.SpecialType,
	}
	switch rec.Kind {
	case archive.KindDirectory:
		a.Nlink = 2
	case archive.KindRegular:
		a.Size = uint64(rec.Size)
	case archive.KindSymlink:
		a.Size = uint64(len(rec.LinkTarget))
	}
	if a.Mtime.IsZero() {
		a.Mtime = s.cfg.MountTime
	}
	a.Atime = a.Mtime
	return a
}

// GetAttributes returns the attributes of the node at p.
func (s *Service) GetAttributes(p string) (Attributes, error) {
	n, err := s.ix.Resolve(p)
	if err != nil {
		return Attributes{}, err
	}
	return s.attributes(n), nil
}

// ListDirectory returns "." and ".." followed by the children of the
// directory at p in first-seen order.
func (s *Service) ListDirectory(p string) ([]DirEntry, error) {
	n, err := s.ix.Resolve(p)
	if err != nil {
		return nil, err
	}
	if !n.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotADirectory, p)
	}
	children := n.Children()
	out := make([]DirEntry, 0, len(children)+2)
	out = append(out,
		DirEntry{Name: ".", Attributes: s.attributes(n)},
		DirEntry{Name: "..", Attributes: s.attributes(n.Parent())},
	)
	for _, c := range children {
		out = append(out, DirEntry{Name: c.Name, Attributes: s.attributes(c)})
	}
	return out, nil
}

// Open validates that p names a regular file and returns a handle for it.
// No content is read.
func (s *Service) Open(p string) (HandleID, error) {
	n, err := s.ix.Resolve(p)
	if err != nil {
		return 0, err
	}
	if n.Kind() != archive.KindRegular {
		return 0, fmt.Errorf("%w: %s is %s", ErrIsADirectory, p, n.Kind())
	}

	id := HandleID(s.nextHandle.Add(1))
	s.mu.Lock()
	s.handles[id] = &handle{path: p, node: n}
	s.mu.Unlock()
	return id, nil
}

func (s *Service) lookupHandle(id HandleID) (*handle, error) {
	s.mu.RLock()
	h, ok := s.handles[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrInvalidHandle, id)
	}
	return h, nil
}

// Read returns up to length bytes of the open file starting at off.
func (s *Service) Read(id HandleID, off int64, length int) ([]byte, error) {
	h, err := s.lookupHandle(id)
	if err != nil {
		return nil, err
	}
	data, err := s.ex.ReadRange(h.node.Record, off, length)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", h.path, err)
	}
	return data, nil
}

// Release invalidates the handle. Cached content is kept.
func (s *Service) Release(id HandleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.handles[id]; !ok {
		return fmt.Errorf("%w: %d", ErrInvalidHandle, id)
	}
	delete(s.handles, id)
	return nil
}

// Walk calls fn with the absolute path and attributes of every node,
// parents before children, in first-seen order.
func (s *Service) Walk(fn func(p string, a Attributes) error) error {
	return s.ix.Walk(func(n *index.Node) error {
		return fn(path.Join("/", n.Record.Path), s.attributes(n))
	})
}

// Stats returns a snapshot of cache, cursor and handle counters.
func (s *Service) Stats() Stats {
	s.mu.RLock()
	open := len(s.handles)
	s.mu.RUnlock()
	return Stats{
		Cache:       s.cache.Stats(),
		Extract:     s.ex.Stats(),
		OpenHandles: open,
	}
}

// Close releases the archive stream held for extraction.
func (s *Service) Close() error {
	return s.ex.Close()
}
