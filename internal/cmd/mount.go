package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"bazil.org/fuse"
	"bazil.org/fuse/fs"
	units "github.com/docker/go-units"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dendrascience/archivefs/archivefs"
	"github.com/dendrascience/archivefs/projection"
	"github.com/dendrascience/archivefs/version"
)

// defaultCacheSize matches cache.DefaultMaxBytes.
const defaultCacheSize = "64MiB"

// NewMountCmd creates and returns the mount subcommand for the archivefs CLI.
// It handles mounting an archive at a specified mountpoint.
func NewMountCmd() *cobra.Command {
	var (
		cacheSize  string
		allowOther bool
	)

	cmd := &cobra.Command{
		Use:   "mount ARCHIVE MOUNTPOINT",
		Short: "Mount an archive as a read-only filesystem",
		Long: `Mount a tar archive at the specified mountpoint.

ARCHIVE is the path to a tar file, optionally compressed.
MOUNTPOINT is the directory where the filesystem will be mounted.

The command blocks until the filesystem is unmounted or it receives
SIGINT or SIGTERM, in which case it unmounts and exits.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cacheBytes, err := units.RAMInBytes(cacheSize)
			if err != nil {
				return fmt.Errorf("invalid --cache-size %q: %w", cacheSize, err)
			}
			log, err := newLogger(cmd)
			if err != nil {
				return err
			}
			return runMount(log, args[0], args[1], cacheBytes, allowOther)
		},
	}

	cmd.Flags().StringVar(&cacheSize, "cache-size", defaultCacheSize, "Upper bound on cached file contents (e.g. 512MiB, 2g, 0 to disable)")
	cmd.Flags().BoolVar(&allowOther, "allow-other", false, "Allow other users to access the mount")

	return cmd
}

func runMount(log *logrus.Logger, archivePath, mountpoint string, cacheBytes int64, allowOther bool) error {
	archiveAbs, err := filepath.Abs(archivePath)
	if err != nil {
		return err
	}
	mountAbs, err := filepath.Abs(mountpoint)
	if err != nil {
		return err
	}
	if pathsOverlap(archiveAbs, mountAbs) {
		return fmt.Errorf("mountpoint %s would hide archive %s", mountAbs, archiveAbs)
	}

	entry := log.WithFields(logrus.Fields{
		"session":    uuid.NewString(),
		"mountpoint": mountAbs,
	})
	entry.WithField("version", version.GetFullVersion()).Info("archivefs starting")

	cfg := projection.DefaultConfig(archiveAbs)
	cfg.CacheBytes = cacheBytes
	cfg.Logger = entry
	svc, err := projection.New(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	options := []fuse.MountOption{
		fuse.ReadOnly(),
		fuse.FSName("archivefs"),
		fuse.Subtype("archivefs"),
		fuse.DefaultPermissions(),
	}
	if allowOther {
		options = append(options, fuse.AllowOther())
	}

	c, err := fuse.Mount(mountAbs, options...)
	if err != nil {
		return fmt.Errorf("mount %s: %w", mountAbs, err)
	}
	defer c.Close()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer func() {
		signal.Stop(sigChan)
		close(sigChan)
	}()
	go func() {
		sig, ok := <-sigChan
		if !ok {
			return
		}
		entry.WithField("signal", sig).Info("received signal, unmounting")
		if err := fuse.Unmount(mountAbs); err != nil {
			entry.WithError(err).Error("unmount failed")
		}
	}()

	entry.WithFields(logrus.Fields{
		"archive":    archiveAbs,
		"cache_size": units.BytesSize(float64(cacheBytes)),
	}).Info("archive mounted")

	serveErr := fs.Serve(c, archivefs.New(svc, entry))

	st := svc.Stats()
	entry.WithFields(logrus.Fields{
		"cache_hits":      st.Cache.Hits,
		"cache_misses":    st.Cache.Misses,
		"cache_evictions": st.Cache.Evictions,
		"cache_bytes":     st.Cache.Bytes,
		"archive_opens":   st.Extract.Opens,
		"rewinds":         st.Extract.Rewinds,
		"materialized":    st.Extract.Materialized,
		"failures":        st.Extract.Failures,
	}).Info("archive unmounted")

	if serveErr != nil && !errors.Is(serveErr, os.ErrClosed) {
		return serveErr
	}
	return nil
}

// pathsOverlap reports whether one path is equal to or nested inside the
// other. Both are cleaned first; relative paths are compared as given.
func pathsOverlap(a, b string) bool {
	a = filepath.Clean(a)
	b = filepath.Clean(b)
	if a == b {
		return true
	}
	return isWithin(a, b) || isWithin(b, a)
}

func isWithin(child, parent string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
