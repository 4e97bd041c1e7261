// Package archive normalizes the entries of a sequential archive into
// metadata records and exposes the forward-only stream used to read them.
//
// An archive is consumed through a [Source], which opens a fresh [Stream]
// positioned before the first header on every call. A stream yields headers
// in archive order and, between two headers, the body of the current entry.
// Bodies cannot be revisited: going back requires a new stream.
//
// Tar archives are supported uncompressed or wrapped in gzip, bzip2, zstd or
// lz4. The wrapping is detected from the leading magic bytes, so the file
// extension is never consulted.
package archive
