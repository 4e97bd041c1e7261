// Package testutil writes small tar archives for tests.
package testutil

import (
	"archive/tar"
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/dendrascience/archivefs/archive"
)

// Entry describes one member of a generated archive.
type Entry struct {
	Name     string
	Body     string
	Type     byte // tar typeflag; zero means a regular file
	Mode     int64
	Linkname string
	ModTime  time.Time
}

// File returns a regular file entry.
func File(name, body string) Entry {
	return Entry{Name: name, Body: body, Type: tar.TypeReg}
}

// Dir returns a directory entry.
func Dir(name string) Entry {
	return Entry{Name: name, Type: tar.TypeDir, Mode: 0o755}
}

// Symlink returns a symbolic link entry.
func Symlink(name, target string) Entry {
	return Entry{Name: name, Type: tar.TypeSymlink, Linkname: target, Mode: 0o777}
}

// ModTime is the timestamp given to entries that do not set one.
var ModTime = time.Date(2024, 5, 17, 9, 30, 0, 0, time.UTC)

// TarBytes builds the archive in memory, wrapped with c.
func TarBytes(tb testing.TB, c archive.Compression, entries ...Entry) []byte {
	tb.Helper()

	var buf bytes.Buffer
	cw, err := archive.CompressStream(&buf, c)
	if err != nil {
		tb.Fatalf("compress stream: %v", err)
	}
	tw := tar.NewWriter(cw)
	for _, e := range entries {
		typ := e.Type
		if typ == 0 {
			typ = tar.TypeReg
		}
		mode := e.Mode
		if mode == 0 && typ == tar.TypeReg {
			mode = 0o644
		}
		mt := e.ModTime
		if mt.IsZero() {
			mt = ModTime
		}
		hdr := &tar.Header{
			Name:     e.Name,
			Typeflag: typ,
			Mode:     mode,
			Linkname: e.Linkname,
			ModTime:  mt,
			Format:   tar.FormatPAX,
		}
		if typ == tar.TypeReg {
			hdr.Size = int64(len(e.Body))
		}
		if err := tw.WriteHeader(hdr); err != nil {
			tb.Fatalf("write header %s: %v", e.Name, err)
		}
		if typ == tar.TypeReg {
			if _, err := tw.Write([]byte(e.Body)); err != nil {
				tb.Fatalf("write body %s: %v", e.Name, err)
			}
		}
	}
	if err := tw.Close(); err != nil {
		tb.Fatalf("close tar writer: %v", err)
	}
	if err := cw.Close(); err != nil {
		tb.Fatalf("close compressor: %v", err)
	}
	return buf.Bytes()
}

// WriteTar writes the archive to a fresh temporary directory and returns
// its path.
func WriteTar(tb testing.TB, c archive.Compression, entries ...Entry) string {
	tb.Helper()
	return WriteRaw(tb, "test."+c.Extension(), TarBytes(tb, c, entries...))
}

// WriteRaw writes data verbatim under a temporary directory.
func WriteRaw(tb testing.TB, name string, data []byte) string {
	tb.Helper()
	p := filepath.Join(tb.TempDir(), name)
	if err := os.WriteFile(p, data, 0o644); err != nil {
		tb.Fatalf("write %s: %v", p, err)
	}
	return p
}

// ScenarioEntries is the two-file archive used across packages: a.txt
// holding "hello world!" and an empty dir/b.txt.
func ScenarioEntries() []Entry {
	return []Entry{
		File("a.txt", "hello world!"),
		File("dir/b.txt", ""),
	}
}
