package archive

import (
	"bufio"
	"bytes"
	"compress/bzip2"
	"fmt"
	"io"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Compression identifies the wrapping around a tar stream.
type Compression int

const (
	None  Compression = 0 // None represents the uncompressed.
	Gzip  Compression = 1 // Gzip is gzip compression algorithm.
	Bzip2 Compression = 2 // Bzip2 is bzip2 compression algorithm.
	Zstd  Compression = 3 // Zstd is zstd compression algorithm.
	Lz4   Compression = 4 // Lz4 is the lz4 frame format.
	Xz    Compression = 5 // Xz is recognised but not decoded.
)

var magicNumbers = []struct {
	c     Compression
	magic []byte
}{
	{Gzip, []byte{0x1F, 0x8B, 0x08}},
	{Bzip2, []byte{0x42, 0x5A, 0x68}},
	{Zstd, []byte{0x28, 0xB5, 0x2F, 0xFD}},
	{Lz4, []byte{0x04, 0x22, 0x4D, 0x18}},
	{Xz, []byte{0xFD, 0x37, 0x7A, 0x58, 0x5A, 0x00}},
}

// String returns the short name of the compression.
func (c Compression) String() string {
	switch c {
	case None:
		return "none"
	case Gzip:
		return "gzip"
	case Bzip2:
		return "bzip2"
	case Zstd:
		return "zstd"
	case Lz4:
		return "lz4"
	case Xz:
		return "xz"
	default:
		return fmt.Sprintf("unknown(%d)", int(c))
	}
}

// Extension returns the conventional file extension of a tar archive
// using c.
func (c Compression) Extension() string {
	switch c {
	case Gzip:
		return "tar.gz"
	case Bzip2:
		return "tar.bz2"
	case Zstd:
		return "tar.zst"
	case Lz4:
		return "tar.lz4"
	case Xz:
		return "tar.xz"
	default:
		return "tar"
	}
}

// ParseCompression parses the names produced by Compression.String.
func ParseCompression(name string) (Compression, error) {
	for _, c := range []Compression{None, Gzip, Bzip2, Zstd, Lz4, Xz} {
		if c.String() == name {
			return c, nil
		}
	}
	return None, fmt.Errorf("unknown compression %q", name)
}

// DetectCompression detects the compression algorithm of the source.
func DetectCompression(source []byte) Compression {
	for _, m := range magicNumbers {
		if bytes.HasPrefix(source, m.magic) {
			return m.c
		}
	}
	return None
}

type readCloserWrapper struct {
	io.Reader
	closer func() error
}

func (r *readCloserWrapper) Close() error {
	if r.closer != nil {
		return r.closer()
	}
	return nil
}

// DecompressStream wraps r in the decoder matching its magic bytes. The
// returned closer releases decoder resources only; r is left open.
func DecompressStream(r io.Reader) (io.ReadCloser, Compression, error) {
	buf := bufio.NewReaderSize(r, 32*1024)

	// Peek fails with io.EOF on inputs shorter than the longest magic,
	// which is fine: detection only needs what is there.
	bs, err := buf.Peek(10)
	if err != nil && err != io.EOF {
		return nil, None, fmt.Errorf("%w: %w", ErrCorruptArchive, err)
	}

	c := DetectCompression(bs)
	switch c {
	case None:
		return &readCloserWrapper{Reader: buf}, c, nil
	case Gzip:
		gz, err := gzip.NewReader(buf)
		if err != nil {
			return nil, c, fmt.Errorf("%w: gzip: %w", ErrCorruptArchive, err)
		}
		return &readCloserWrapper{Reader: gz, closer: gz.Close}, c, nil
	case Bzip2:
		return &readCloserWrapper{Reader: bzip2.NewReader(buf)}, c, nil
	case Zstd:
		zr, err := zstd.NewReader(buf, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, c, fmt.Errorf("%w: zstd: %w", ErrCorruptArchive, err)
		}
		return &readCloserWrapper{Reader: zr, closer: func() error {
			zr.Close()
			return nil
		}}, c, nil
	case Lz4:
		return &readCloserWrapper{Reader: lz4.NewReader(buf)}, c, nil
	default:
		return nil, c, fmt.Errorf("%w: %s", ErrUnsupportedCompression, c)
	}
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// CompressStream returns a writer that compresses into dest. Closing it
// flushes the compressor but does not close dest.
func CompressStream(dest io.Writer, c Compression) (io.WriteCloser, error) {
	switch c {
	case None:
		return nopWriteCloser{dest}, nil
	case Gzip:
		return gzip.NewWriter(dest), nil
	case Zstd:
		zw, err := zstd.NewWriter(dest)
		if err != nil {
			return nil, fmt.Errorf("zstd writer: %w", err)
		}
		return zw, nil
	case Lz4:
		return lz4.NewWriter(dest), nil
	default:
		return nil, fmt.Errorf("%w: cannot write %s", ErrUnsupportedCompression, c)
	}
}
