package archive

import (
	"fmt"
	"io/fs"
	"strings"
	"time"
)

// Kind is the closed set of entry kinds an archive can record.
type Kind uint8

const (
	KindRegular Kind = iota
	KindDirectory
	KindSymlink
	KindOther
)

// String returns the human-readable name of a kind.
func (k Kind) String() string {
	switch k {
	case KindRegular:
		return "regular"
	case KindDirectory:
		return "directory"
	case KindSymlink:
		return "symlink"
	case KindOther:
		return "other"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// Default permission bits applied when an entry records none.
const (
	DefaultDirMode  fs.FileMode = 0o755
	DefaultFileMode fs.FileMode = 0o644
)

// Token locates an entry's body within the archive stream. It is the
// ordinal of the entry's header, counting from zero, and is stable across
// re-opens of the same archive.
type Token int64

// NoToken marks records that have no body in the archive, such as
// directories synthesized from intermediate path segments.
const NoToken Token = -1

// Record is the normalized view of one archive entry.
type Record struct {
	Path       string // slash separated, no leading "./" or "/"; "" is the root
	Kind       Kind
	Size       int64 // regular entries only
	Mode       fs.FileMode
	ModTime    time.Time // zero when the archive does not record one
	LinkTarget string    // symlinks and hard links
	Token      Token

	// SpecialType holds the type bits of KindOther entries that are fifos
	// or devices. Zero for hard links and every other kind.
	SpecialType fs.FileMode
}

// HasToken reports whether the record can be re-read from the archive.
func (r Record) HasToken() bool {
	return r.Token != NoToken
}

// Synthesized returns the record of a directory that the archive implies
// but never lists.
func Synthesized(path string) Record {
	return Record{
		Path:  path,
		Kind:  KindDirectory,
		Mode:  DefaultDirMode,
		Token: NoToken,
	}
}

// Header is one raw header as the stream yields it, before its name has
// been normalized.
type Header struct {
	Name       string
	Kind       Kind
	Size       int64
	Mode       int64
	ModTime    time.Time
	LinkTarget  string
	SpecialType fs.FileMode
	Seq         int64
}

// Record normalizes the header into a Record. Names that escape the
// archive root are rejected.
func (h *Header) Record() (Record, error) {
	p, err := NormalizePath(h.Name)
	if err != nil {
		return Record{}, err
	}
	r := Record{
		Path:       p,
		Kind:       h.Kind,
		Mode:       fs.FileMode(h.Mode).Perm(),
		LinkTarget: h.LinkTarget,
		Token:      Token(h.Seq),
	}
	if h.Kind == KindOther {
		r.SpecialType = h.SpecialType & fs.ModeType
	}
	if h.Kind == KindRegular {
		r.Size = h.Size
	}
	if !h.ModTime.IsZero() && h.ModTime.Unix() != 0 {
		r.ModTime = h.ModTime
	}
	if r.Mode == 0 {
		if h.Kind == KindDirectory {
			r.Mode = DefaultDirMode
		} else {
			r.Mode = DefaultFileMode
		}
	}
	return r, nil
}

// NormalizePath cleans an entry name into the slash separated form used
// by records. Leading "/" and "./" are dropped, "." segments vanish and ".."
// segments consume their parent. A ".." that would climb above the root
// fails with ErrPathEscapes.
func NormalizePath(name string) (string, error) {
	segments := make([]string, 0, strings.Count(name, "/")+1)
	for seg := range strings.SplitSeq(name, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			if len(segments) == 0 {
				return "", fmt.Errorf("%w: %w: %q", ErrCorruptArchive, ErrPathEscapes, name)
			}
			segments = segments[:len(segments)-1]
		default:
			segments = append(segments, seg)
		}
	}
	return strings.Join(segments, "/"), nil
}
