package projection

import (
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/dendrascience/archivefs/archive"
	"github.com/dendrascience/archivefs/cache"
)

// Config is the immutable configuration of a Service.
type Config struct {
	// ArchivePath is the archive to project. Required.
	ArchivePath string

	// CacheBytes bounds the content cache. Zero keeps no bodies beyond the
	// read that materialized them.
	CacheBytes int64

	// UID and GID own every file and directory.
	UID uint32
	GID uint32

	// MountTime stands in for timestamps the archive does not record.
	// Zero means the time New is called.
	MountTime time.Time

	// Logger receives diagnostics. Nil discards them.
	Logger logrus.FieldLogger
}

// DefaultConfig returns the configuration used by the command line: the
// default cache budget and the identity of the calling process.
func DefaultConfig(archivePath string) Config {
	return Config{
		ArchivePath: archivePath,
		CacheBytes:  cache.DefaultMaxBytes,
		UID:         uint32(os.Getuid()),
		GID:         uint32(os.Getgid()),
	}
}

// Validate checks the configuration and that the archive can be opened
// and its first header read.
func (c Config) Validate() error {
	if c.ArchivePath == "" {
		return fmt.Errorf("%w: archive path is required", ErrInvalidConfig)
	}
	if c.CacheBytes < 0 {
		return fmt.Errorf("%w: cache size must be >= 0, got %d", ErrInvalidConfig, c.CacheBytes)
	}
	return archive.NewFileSource(c.ArchivePath).Validate()
}
