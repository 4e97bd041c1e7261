// Package extract turns the forward-only archive stream into random access
// reads of individual entries.
//
// The first read of an entry materializes its whole body through a single
// shared cursor and stores it in the content cache; later reads of the same
// entry are served from the cache until it is evicted. A request for an
// entry behind the cursor re-opens the archive and scans from the start; a
// request ahead of it skips the intervening bodies.
package extract
