// Package main provides the archivefs command-line interface.
//
// archivefs mounts a tar archive, plain or compressed, as a read-only
// filesystem. The archive is indexed once at startup and file contents are
// decompressed on demand into a bounded cache.
//
// The binary supports multiple subcommands:
//   - mount: Mount an archive at a specified mountpoint
//   - ls: List the tree an archive would present
//   - cat: Print files from an archive
//   - validate: Check every file of an archive against its header
//   - seed: Generate a test archive
package main
