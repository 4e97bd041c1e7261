package projection

import (
	"errors"

	"github.com/dendrascience/archivefs/archive"
	"github.com/dendrascience/archivefs/extract"
	"github.com/dendrascience/archivefs/index"
)

// Errors returned by Service methods. They alias the errors of the lower
// layers so that errors.Is works whichever package produced them.
var (
	ErrNotFound       = index.ErrNotFound
	ErrNotADirectory  = index.ErrNotADirectory
	ErrIsADirectory   = extract.ErrIsADirectory
	ErrCorruptArchive = archive.ErrCorruptArchive
	ErrInvalidOffset  = extract.ErrInvalidOffset
	ErrInvalidHandle  = errors.New("invalid handle")
	ErrInvalidConfig  = errors.New("invalid configuration")
)
