package index

import "errors"

// Sentinel errors for package index.
var (
	ErrNotFound      = errors.New("no such file or directory")
	ErrNotADirectory = errors.New("not a directory")
)
