// Package cache holds materialized archive entry bodies under a byte
// budget, evicting least recently used entries first.
//
// Callers pin an entry for as long as they read from it. Pinned entries are
// never evicted, so a reader always sees a complete body. The cache is safe
// for concurrent use; hits on different entries only contend for the short
// critical section that updates recency.
package cache
