// Package index builds the directory tree of an archive from its flat,
// unordered entry stream and answers path queries against it.
//
// The tree is built once by a single pass over the stream and is immutable
// afterwards, so an *Index is safe for concurrent readers without locking.
package index
