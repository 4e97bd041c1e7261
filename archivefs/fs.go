package archivefs

import (
	"context"
	"io"
	"os"
	"path"
	"syscall"
	"time"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
	"github.com/sirupsen/logrus"

	"github.com/dendrascience/archivefs/archive"
	"github.com/dendrascience/archivefs/projection"
)

var (
	_ fs.FS = (*FS)(nil)

	_ fs.Node               = (*Dir)(nil)
	_ fs.NodeStringLookuper = (*Dir)(nil)
	_ fs.HandleReadDirAller = (*Dir)(nil)

	_ fs.Node       = (*File)(nil)
	_ fs.NodeOpener = (*File)(nil)

	_ fs.HandleReader   = (*fileHandle)(nil)
	_ fs.HandleReleaser = (*fileHandle)(nil)

	_ fs.Node           = (*Symlink)(nil)
	_ fs.NodeReadlinker = (*Symlink)(nil)

	_ fs.Node       = (*Special)(nil)
	_ fs.NodeOpener = (*Special)(nil)
)

// attrValid is how long the kernel may cache attributes. The archive never
// changes under a mount, so this is generous.
const attrValid = time.Minute

// FS implements the archivefs FUSE filesystem
type FS struct {
	svc *projection.Service
	log logrus.FieldLogger
}

// New returns a filesystem serving svc. A nil logger discards diagnostics.
func New(svc *projection.Service, log logrus.FieldLogger) *FS {
	if log == nil {
		discard := logrus.New()
		discard.SetOutput(io.Discard)
		log = discard
	}
	return &FS{svc: svc, log: log}
}

// Root returns the root directory node
func (fsys *FS) Root() (fs.Node, error) {
	return &Dir{fs: fsys, path: "/"}, nil
}

// node builds the fs.Node matching the kind of the entry at p.
func (fsys *FS) node(p string, a projection.Attributes) fs.Node {
	switch a.Kind {
	case archive.KindDirectory:
		return &Dir{fs: fsys, path: p}
	case archive.KindRegular:
		return &File{fs: fsys, path: p}
	case archive.KindSymlink:
		return &Symlink{fs: fsys, path: p}
	default:
		return &Special{fs: fsys, path: p}
	}
}

func (fsys *FS) attr(p string, a *fuse.Attr) error {
	attrs, err := fsys.svc.GetAttributes(p)
	if err != nil {
		return fsys.fail("getattr", p, err)
	}
	fillAttr(attrs, a)
	return nil
}

// fail logs unexpected errors and converts err to an errno.
func (fsys *FS) fail(op, p string, err error) error {
	errno := toErrno(err)
	if errno == fuse.Errno(syscall.EIO) {
		fsys.log.WithFields(logrus.Fields{
			"op":   op,
			"path": p,
		}).WithError(err).Error("request failed")
	} else {
		fsys.log.WithFields(logrus.Fields{
			"op":   op,
			"path": p,
		}).WithError(err).Debug("request rejected")
	}
	return errno
}

func fillAttr(attrs projection.Attributes, a *fuse.Attr) {
	a.Valid = attrValid
	a.Inode = attrs.Inode
	a.Mode = attrs.FileMode()
	a.Nlink = attrs.Nlink
	a.Uid = attrs.UID
	a.Gid = attrs.GID
	a.Size = attrs.Size
	a.Blocks = (attrs.Size + 511) / 512
	a.Atime = attrs.Atime
	a.Mtime = attrs.Mtime
	a.Ctime = attrs.Mtime
}

func direntType(a projection.Attributes) fuse.DirentType {
	switch a.Kind {
	case archive.KindDirectory:
		return fuse.DT_Dir
	case archive.KindRegular:
		return fuse.DT_File
	case archive.KindSymlink:
		return fuse.DT_Link
	}
	switch {
	case a.SpecialType&os.ModeNamedPipe != 0:
		return fuse.DT_FIFO
	case a.SpecialType&os.ModeCharDevice != 0:
		return fuse.DT_Char
	case a.SpecialType&os.ModeDevice != 0:
		return fuse.DT_Block
	default:
		return fuse.DT_Unknown
	}
}

// Dir is a directory of the archive, real or synthesized.
type Dir struct {
	fs   *FS
	path string
}

// Attr returns directory attributes
func (d *Dir) Attr(ctx context.Context, a *fuse.Attr) error {
	return d.fs.attr(d.path, a)
}

// Lookup resolves a name inside the directory.
func (d *Dir) Lookup(ctx context.Context, name string) (fs.Node, error) {
	p := path.Join(d.path, name)
	attrs, err := d.fs.svc.GetAttributes(p)
	if err != nil {
		return nil, d.fs.fail("lookup", p, err)
	}
	return d.fs.node(p, attrs), nil
}

// ReadDirAll lists ".", ".." and the children in archive order.
func (d *Dir) ReadDirAll(ctx context.Context) ([]fuse.Dirent, error) {
	entries, err := d.fs.svc.ListDirectory(d.path)
	if err != nil {
		return nil, d.fs.fail("readdir", d.path, err)
	}
	dirents := make([]fuse.Dirent, 0, len(entries))
	for _, e := range entries {
		dirents = append(dirents, fuse.Dirent{
			Inode: e.Attributes.Inode,
			Type:  direntType(e.Attributes),
			Name:  e.Name,
		})
	}
	return dirents, nil
}

// File is a regular file of the archive.
type File struct {
	fs   *FS
	path string
}

// Attr returns file attributes
func (f *File) Attr(ctx context.Context, a *fuse.Attr) error {
	return f.fs.attr(f.path, a)
}

// Open returns a handle backed by a Service handle. Only read-only opens
// are allowed.
func (f *File) Open(ctx context.Context, req *fuse.OpenRequest, resp *fuse.OpenResponse) (fs.Handle, error) {
	if !req.Flags.IsReadOnly() {
		return nil, fuse.Errno(syscall.EROFS)
	}
	id, err := f.fs.svc.Open(f.path)
	if err != nil {
		return nil, f.fs.fail("open", f.path, err)
	}
	resp.Flags |= fuse.OpenKeepCache
	return &fileHandle{fs: f.fs, path: f.path, id: id}, nil
}

type fileHandle struct {
	fs   *FS
	path string
	id   projection.HandleID
}

// Read serves the requested range. A short result marks end of file.
func (h *fileHandle) Read(ctx context.Context, req *fuse.ReadRequest, resp *fuse.ReadResponse) error {
	data, err := h.fs.svc.Read(h.id, req.Offset, req.Size)
	if err != nil {
		return h.fs.fail("read", h.path, err)
	}
	resp.Data = data
	return nil
}

func (h *fileHandle) Release(ctx context.Context, req *fuse.ReleaseRequest) error {
	if err := h.fs.svc.Release(h.id); err != nil {
		return h.fs.fail("release", h.path, err)
	}
	return nil
}

// Symlink is a symbolic link. Its target is returned verbatim and never
// resolved inside the archive.
type Symlink struct {
	fs   *FS
	path string
}

func (s *Symlink) Attr(ctx context.Context, a *fuse.Attr) error {
	return s.fs.attr(s.path, a)
}

func (s *Symlink) Readlink(ctx context.Context, req *fuse.ReadlinkRequest) (string, error) {
	attrs, err := s.fs.svc.GetAttributes(s.path)
	if err != nil {
		return "", s.fs.fail("readlink", s.path, err)
	}
	return attrs.LinkTarget, nil
}

// Special is any other entry: hard links, devices, fifos. It can be
// stat'ed but not opened.
type Special struct {
	fs   *FS
	path string
}

func (s *Special) Attr(ctx context.Context, a *fuse.Attr) error {
	return s.fs.attr(s.path, a)
}

// Open always fails. Without it bazil would hand the node back as a
// handle that cannot serve reads.
func (s *Special) Open(ctx context.Context, req *fuse.OpenRequest, resp *fuse.OpenResponse) (fs.Handle, error) {
	return nil, s.fs.fail("open", s.path, projection.ErrIsADirectory)
}
