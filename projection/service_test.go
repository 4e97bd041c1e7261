package projection_test

import (
	"archive/tar"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/dendrascience/archivefs/archive"
	"github.com/dendrascience/archivefs/internal/testutil"
	"github.com/dendrascience/archivefs/projection"
)

var mountTime = time.Date(2025, 2, 3, 4, 5, 6, 0, time.UTC)

func newService(t *testing.T, c archive.Compression, entries ...testutil.Entry) *projection.Service {
	t.Helper()
	cfg := projection.Config{
		ArchivePath: testutil.WriteTar(t, c, entries...),
		CacheBytes:  1 << 20,
		UID:         1000,
		GID:         100,
		MountTime:   mountTime,
	}
	svc, err := projection.New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Close() })
	return svc
}

func entryNames(entries []projection.DirEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = e.Name
	}
	return out
}

func TestScenario_HelloWorld(t *testing.T) {
	svc := newService(t, archive.Gzip, testutil.ScenarioEntries()...)

	root, err := svc.ListDirectory("/")
	require.NoError(t, err)
	assert.Equal(t, []string{".", "..", "a.txt", "dir"}, entryNames(root))

	dir, err := svc.GetAttributes("/dir")
	require.NoError(t, err)
	assert.Equal(t, archive.KindDirectory, dir.Kind)

	h, err := svc.Open("/a.txt")
	require.NoError(t, err)
	got, err := svc.Read(h, 6, 5)
	require.NoError(t, err)
	assert.Equal(t, "world", string(got))
	require.NoError(t, svc.Release(h))

	_, err = svc.Open("/missing")
	assert.ErrorIs(t, err, projection.ErrNotFound)
}

func TestScenario_OutOfOrderEntries(t *testing.T) {
	svc := newService(t, archive.None,
		testutil.File("c/x", "x"),
		testutil.File("a", "a"),
		testutil.File("c/y", "y"),
	)
	root, err := svc.ListDirectory("/")
	require.NoError(t, err)
	assert.Equal(t, []string{".", "..", "c", "a"}, entryNames(root))

	c, err := svc.ListDirectory("/c")
	require.NoError(t, err)
	assert.Equal(t, []string{".", "..", "x", "y"}, entryNames(c))
}

func TestGetAttributes(t *testing.T) {
	recorded := time.Date(2021, 7, 8, 9, 10, 11, 0, time.UTC)
	svc := newService(t, archive.None,
		testutil.Entry{Name: "bin/tool", Body: "#!/bin/sh\n", Type: tar.TypeReg, Mode: 0o750, ModTime: recorded},
		testutil.Symlink("bin/link", "tool"),
		testutil.Entry{Name: "dev/fifo", Type: tar.TypeFifo, Mode: 0o600},
	)

	t.Run("regular file", func(t *testing.T) {
		a, err := svc.GetAttributes("/bin/tool")
		require.NoError(t, err)
		assert.Equal(t, archive.KindRegular, a.Kind)
		assert.Equal(t, uint64(10), a.Size)
		assert.Equal(t, 0o750, int(a.Mode))
		assert.Equal(t, 0o750, int(a.FileMode()))
		assert.Equal(t, uint32(1), a.Nlink)
		assert.Equal(t, uint32(1000), a.UID)
		assert.Equal(t, uint32(100), a.GID)
		assert.True(t, recorded.Equal(a.Mtime))
		assert.True(t, recorded.Equal(a.Atime))
	})

	t.Run("synthesized directory", func(t *testing.T) {
		a, err := svc.GetAttributes("/bin")
		require.NoError(t, err)
		assert.Equal(t, archive.KindDirectory, a.Kind)
		assert.Equal(t, 0o755, int(a.Mode))
		assert.True(t, a.FileMode().IsDir())
		assert.Equal(t, uint32(2), a.Nlink)
		assert.True(t, mountTime.Equal(a.Mtime))
		assert.Zero(t, a.Size)
	})

	t.Run("root", func(t *testing.T) {
		a, err := svc.GetAttributes("/")
		require.NoError(t, err)
		assert.Equal(t, uint64(1), a.Inode)
		assert.True(t, a.FileMode().IsDir())
	})

	t.Run("symlink reports target", func(t *testing.T) {
		a, err := svc.GetAttributes("/bin/link")
		require.NoError(t, err)
		assert.Equal(t, archive.KindSymlink, a.Kind)
		assert.Equal(t, "tool", a.LinkTarget)
		assert.Equal(t, uint64(4), a.Size)
		assert.NotZero(t, a.FileMode()&os.ModeSymlink)
	})

	t.Run("other kind", func(t *testing.T) {
		a, err := svc.GetAttributes("/dev/fifo")
		require.NoError(t, err)
		assert.Equal(t, archive.KindOther, a.Kind)
		assert.Equal(t, os.ModeNamedPipe|0o600, a.FileMode())

		_, err = svc.Open("/dev/fifo")
		assert.ErrorIs(t, err, projection.ErrIsADirectory)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := svc.GetAttributes("/bin/nope")
		assert.ErrorIs(t, err, projection.ErrNotFound)
	})
}

func TestListDirectory(t *testing.T) {
	svc := newService(t, archive.None,
		testutil.File("d/one", "1"),
		testutil.File("d/sub/two", "2"),
		testutil.File("d/three", "3"),
	)

	entries, err := svc.ListDirectory("/d")
	require.NoError(t, err)
	assert.Equal(t, []string{".", "..", "one", "sub", "three"}, entryNames(entries))

	d, err := svc.GetAttributes("/d")
	require.NoError(t, err)
	root, err := svc.GetAttributes("/")
	require.NoError(t, err)
	assert.Equal(t, d.Inode, entries[0].Attributes.Inode)
	assert.Equal(t, root.Inode, entries[1].Attributes.Inode)

	rootEntries, err := svc.ListDirectory("/")
	require.NoError(t, err)
	assert.Equal(t, root.Inode, rootEntries[1].Attributes.Inode, "root is its own parent")

	_, err = svc.ListDirectory("/d/one")
	assert.ErrorIs(t, err, projection.ErrNotADirectory)
	_, err = svc.ListDirectory("/nope")
	assert.ErrorIs(t, err, projection.ErrNotFound)
}

func TestHandleLifecycle(t *testing.T) {
	svc := newService(t, archive.None, testutil.File("f", "content"), testutil.Dir("d/"), testutil.Symlink("l", "f"))

	_, err := svc.Open("/d")
	assert.ErrorIs(t, err, projection.ErrIsADirectory)
	_, err = svc.Open("/l")
	assert.ErrorIs(t, err, projection.ErrIsADirectory)

	h1, err := svc.Open("/f")
	require.NoError(t, err)
	h2, err := svc.Open("/f")
	require.NoError(t, err)
	assert.NotEqual(t, h1, h2)
	assert.NotZero(t, h1)
	assert.Equal(t, 2, svc.Stats().OpenHandles)

	require.NoError(t, svc.Release(h1))
	_, err = svc.Read(h1, 0, 4)
	assert.ErrorIs(t, err, projection.ErrInvalidHandle)
	assert.ErrorIs(t, svc.Release(h1), projection.ErrInvalidHandle)

	// Releasing one handle leaves the other usable and the cache intact.
	got, err := svc.Read(h2, 0, 7)
	require.NoError(t, err)
	assert.Equal(t, "content", string(got))
	require.NoError(t, svc.Release(h2))
	assert.Equal(t, 1, svc.Stats().Cache.Entries)
	assert.Equal(t, 0, svc.Stats().OpenHandles)

	_, err = svc.Read(projection.HandleID(9999), 0, 1)
	assert.ErrorIs(t, err, projection.ErrInvalidHandle)
}

func TestRead_OffsetsAndIdempotence(t *testing.T) {
	body := strings.Repeat("0123456789", 100)
	svc := newService(t, archive.Zstd, testutil.File("x", "pad"), testutil.File("big", body))

	h, err := svc.Open("/big")
	require.NoError(t, err)
	defer svc.Release(h)

	first, err := svc.Read(h, 123, 456)
	require.NoError(t, err)
	second, err := svc.Read(h, 123, 456)
	require.NoError(t, err)
	assert.Equal(t, body[123:123+456], string(first))
	assert.Equal(t, first, second)

	tail, err := svc.Read(h, 990, 100)
	require.NoError(t, err)
	assert.Equal(t, body[990:], string(tail))

	empty, err := svc.Read(h, 5000, 10)
	require.NoError(t, err)
	assert.Empty(t, empty)

	_, err = svc.Read(h, -1, 10)
	assert.ErrorIs(t, err, projection.ErrInvalidOffset)
}

func TestRead_ParallelHandles(t *testing.T) {
	var entries []testutil.Entry
	want := map[string]string{}
	for i := range 20 {
		name := fmt.Sprintf("dir%d/file%d", i%4, i)
		body := strings.Repeat(string(rune('a'+i)), 100+i*31)
		entries = append(entries, testutil.File(name, body))
		want["/"+name] = body
	}
	svc := newService(t, archive.Lz4, entries...)

	var g errgroup.Group
	for p, body := range want {
		for range 3 {
			g.Go(func() error {
				h, err := svc.Open(p)
				if err != nil {
					return err
				}
				defer svc.Release(h)
				got, err := svc.Read(h, 0, len(body))
				if err != nil {
					return err
				}
				if string(got) != body {
					return fmt.Errorf("%s: wrong content", p)
				}
				return nil
			})
		}
	}

	done := make(chan error, 1)
	go func() { done <- g.Wait() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(20 * time.Second):
		t.Fatal("parallel reads deadlocked")
	}
	assert.Equal(t, 0, svc.Stats().OpenHandles)
}

func TestWalk(t *testing.T) {
	svc := newService(t, archive.None, testutil.ScenarioEntries()...)

	var paths []string
	require.NoError(t, svc.Walk(func(p string, _ projection.Attributes) error {
		paths = append(paths, p)
		return nil
	}))
	assert.Equal(t, []string{"/", "/a.txt", "/dir", "/dir/b.txt"}, paths)
}

func TestNew_Failures(t *testing.T) {
	t.Run("missing path", func(t *testing.T) {
		_, err := projection.New(projection.Config{})
		assert.ErrorIs(t, err, projection.ErrInvalidConfig)
	})
	t.Run("negative cache", func(t *testing.T) {
		p := testutil.WriteTar(t, archive.None, testutil.File("a", "a"))
		_, err := projection.New(projection.Config{ArchivePath: p, CacheBytes: -1})
		assert.ErrorIs(t, err, projection.ErrInvalidConfig)
	})
	t.Run("unreadable archive", func(t *testing.T) {
		_, err := projection.New(projection.Config{ArchivePath: "/does/not/exist.tar"})
		assert.Error(t, err)
	})
	t.Run("escaping entry aborts", func(t *testing.T) {
		p := testutil.WriteTar(t, archive.None, testutil.File("ok", "1"), testutil.File("../evil", "2"))
		_, err := projection.New(projection.Config{ArchivePath: p})
		assert.ErrorIs(t, err, projection.ErrCorruptArchive)
	})
	t.Run("truncated header aborts", func(t *testing.T) {
		data := testutil.TarBytes(t, archive.None, testutil.File("a", "1"), testutil.File("b", "2"))
		p := testutil.WriteRaw(t, "cut.tar", data[:1024+100])
		_, err := projection.New(projection.Config{ArchivePath: p})
		assert.ErrorIs(t, err, projection.ErrCorruptArchive)
	})
}

func TestDefaultConfig(t *testing.T) {
	cfg := projection.DefaultConfig("x.tar")
	assert.Equal(t, "x.tar", cfg.ArchivePath)
	assert.Equal(t, int64(64<<20), cfg.CacheBytes)
	assert.Equal(t, uint32(os.Getuid()), cfg.UID)
}
