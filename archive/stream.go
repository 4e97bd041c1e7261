package archive

import (
	"archive/tar"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
)

// Stream is one forward pass over an archive.
//
// Next advances to the following header, discarding whatever is left of the
// current body, and returns io.EOF after the last entry. Read reads the body
// of the current entry and returns io.EOF at its end. Skip abandons the
// current body. Close releases the underlying file and must be called on
// every stream returned by a Source.
type Stream interface {
	Next() (*Header, error)
	Read(p []byte) (int, error)
	Skip() error
	Close() error
}

// Source opens fresh streams over the same archive.
type Source interface {
	Open() (Stream, error)
}

// FileSource is a Source backed by an archive file on disk.
type FileSource struct {
	Path string
}

// NewFileSource returns a Source for the archive at path. The file is not
// touched until Open or Validate is called.
func NewFileSource(path string) *FileSource {
	return &FileSource{Path: path}
}

// Open opens the archive file and positions a new stream before its first
// header.
func (s *FileSource) Open() (Stream, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, fmt.Errorf("open archive %s: %w", s.Path, err)
	}
	dec, c, err := DecompressStream(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open archive %s: %w", s.Path, err)
	}
	return &tarStream{
		f:           f,
		dec:         dec,
		tr:          tar.NewReader(dec),
		compression: c,
	}, nil
}

// Validate checks that the archive exists, is a regular file, and that its
// first header (if any) can be read.
func (s *FileSource) Validate() error {
	info, err := os.Stat(s.Path)
	if err != nil {
		return fmt.Errorf("stat archive: %w", err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("%w: %s", ErrNotRegularFile, s.Path)
	}
	st, err := s.Open()
	if err != nil {
		return err
	}
	defer st.Close()
	if _, err := st.Next(); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("read archive %s: %w", s.Path, err)
	}
	return nil
}

type tarStream struct {
	f           *os.File
	dec         io.ReadCloser
	tr          *tar.Reader
	compression Compression
	seq         int64
}

func (s *tarStream) Next() (*Header, error) {
	for {
		h, err := s.tr.Next()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, fmt.Errorf("%w: header %d: %w", ErrCorruptArchive, s.seq, err)
		}
		// Global PAX headers carry defaults for later entries, not an entry.
		if h.Typeflag == tar.TypeXGlobalHeader {
			continue
		}
		hdr := headerFromTar(h, s.seq)
		s.seq++
		return hdr, nil
	}
}

func (s *tarStream) Read(p []byte) (int, error) {
	n, err := s.tr.Read(p)
	if err != nil && err != io.EOF {
		return n, fmt.Errorf("%w: entry %d: %w", ErrCorruptArchive, s.seq-1, err)
	}
	return n, err
}

// Skip leaves the body for tar.Reader, which discards it on the next call
// to Next.
func (s *tarStream) Skip() error {
	return nil
}

func (s *tarStream) Close() error {
	derr := s.dec.Close()
	ferr := s.f.Close()
	return errors.Join(derr, ferr)
}

func headerFromTar(h *tar.Header, seq int64) *Header {
	hdr := &Header{
		Name:       h.Name,
		Size:       h.Size,
		Mode:       h.Mode,
		ModTime:    h.ModTime,
		LinkTarget: h.Linkname,
		Seq:        seq,
	}
	switch h.Typeflag {
	case tar.TypeReg, tar.TypeGNUSparse, tar.TypeCont:
		hdr.Kind = KindRegular
	case tar.TypeDir:
		hdr.Kind = KindDirectory
	case tar.TypeSymlink:
		hdr.Kind = KindSymlink
	case tar.TypeFifo:
		hdr.Kind = KindOther
		hdr.SpecialType = fs.ModeNamedPipe
	case tar.TypeChar:
		hdr.Kind = KindOther
		hdr.SpecialType = fs.ModeDevice | fs.ModeCharDevice
	case tar.TypeBlock:
		hdr.Kind = KindOther
		hdr.SpecialType = fs.ModeDevice
	default:
		hdr.Kind = KindOther
	}
	return hdr
}
