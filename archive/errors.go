package archive

import "errors"

// Sentinel errors for package archive.
// These errors can be checked with errors.Is() for specific error handling.
var (
	// ErrCorruptArchive is returned when the archive stream cannot be read
	// or a header is malformed.
	ErrCorruptArchive = errors.New("corrupt archive")

	// ErrPathEscapes is returned for entry paths that climb above the
	// archive root through ".." segments. It always wraps ErrCorruptArchive.
	ErrPathEscapes = errors.New("entry path escapes archive root")

	// ErrUnsupportedCompression is returned for compression formats that
	// are recognised but cannot be decoded or encoded.
	ErrUnsupportedCompression = errors.New("unsupported compression")

	// ErrNotRegularFile is returned when the archive path names something
	// other than a regular file.
	ErrNotRegularFile = errors.New("archive is not a regular file")
)
