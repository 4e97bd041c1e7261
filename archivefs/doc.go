// Package archivefs exposes a projection.Service as a read-only FUSE
// filesystem through bazil.org/fuse.
//
// Every node is stateless apart from its path: attributes, listings and
// content are fetched from the Service on each request, so the kernel's
// view always matches the index built at startup. File handles map one to
// one onto Service handles and are released when the kernel releases them.
//
// Errors from the Service are translated into errno values:
//
//	ErrNotFound       ENOENT
//	ErrNotADirectory  ENOTDIR
//	ErrIsADirectory   EISDIR
//	ErrInvalidOffset  EINVAL
//	ErrInvalidHandle  EBADF
//	anything else     EIO
//
// Opening a file for writing fails with EROFS.
package archivefs
