// Package projection presents an archive as a read-only directory tree
// through the verbs a filesystem bridge issues: attribute lookup, directory
// listing, open, read and release.
//
// A Service is built from an immutable Config. Construction validates the
// archive, indexes it in one pass and fails if the archive cannot be read,
// so a Service that exists always answers from a complete index. All
// methods are safe for concurrent use.
package projection
