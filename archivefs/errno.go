package archivefs

import (
	"errors"
	"syscall"

	"bazil.org/fuse"

	"github.com/dendrascience/archivefs/projection"
)

// toErrno maps a Service error onto the errno the kernel reports.
func toErrno(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, projection.ErrNotFound):
		return fuse.Errno(syscall.ENOENT)
	case errors.Is(err, projection.ErrNotADirectory):
		return fuse.Errno(syscall.ENOTDIR)
	case errors.Is(err, projection.ErrIsADirectory):
		return fuse.Errno(syscall.EISDIR)
	case errors.Is(err, projection.ErrInvalidOffset):
		return fuse.Errno(syscall.EINVAL)
	case errors.Is(err, projection.ErrInvalidHandle):
		return fuse.Errno(syscall.EBADF)
	default:
		return fuse.Errno(syscall.EIO)
	}
}
