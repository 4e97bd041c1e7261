package cmd

import (
	"archive/tar"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dendrascience/archivefs/archive"
)

// NewSeedCmd creates and returns the seed subcommand for the archivefs CLI.
// It generates a test archive with a randomized directory structure.
func NewSeedCmd() *cobra.Command {
	var (
		outputPath  string
		fileCount   int
		compression string
		withDirs    bool
		verbose     bool
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Generate a test archive with randomized directory structure",
		Long: `Generate a tar archive for testing archivefs.

Files are placed in a YYYY/MM/DD/HH directory structure with most files at
the deepest level. Each file contains a single UUID line. Entries are
written in random order, so the same directory is revisited throughout the
archive. By default no directory headers are written and every directory is
synthesized when the archive is indexed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := archive.ParseCompression(compression)
			if err != nil {
				return err
			}
			return runSeed(cmd.OutOrStdout(), outputPath, fileCount, c, withDirs, verbose)
		},
	}

	cmd.Flags().StringVarP(&outputPath, "output", "o", "", "Path to output archive (required)")
	cmd.Flags().IntVarP(&fileCount, "count", "c", 10000, "Number of files to generate")
	cmd.Flags().StringVarP(&compression, "compression", "z", "gzip", "Compression (none, gzip, zstd, lz4)")
	cmd.Flags().BoolVar(&withDirs, "dirs", false, "Write explicit directory headers")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")

	cmd.MarkFlagRequired("output")

	return cmd
}

func runSeed(out io.Writer, outputPath string, fileCount int, c archive.Compression, withDirs, verbose bool) (err error) {
	if verbose {
		fmt.Fprintf(out, "Generating %d test files in %s (%s)\n", fileCount, outputPath, c)
	}

	f, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()

	cw, err := archive.CompressStream(f, c)
	if err != nil {
		return err
	}
	tw := tar.NewWriter(cw)

	uuidPool := make([]string, 50)
	for i := range uuidPool {
		uuidPool[i] = uuid.New().String()
	}

	baseTime := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	seenDirs := make(map[string]bool)
	seenFiles := make(map[string]bool)

	for created := 0; created < fileCount; {
		fileTime := baseTime.
			AddDate(0, 0, rand.IntN(365)).
			Add(time.Duration(rand.IntN(24)) * time.Hour).
			Add(time.Duration(rand.IntN(3600)) * time.Second)

		dirPath := seedDir(fileTime, rand.IntN(100))
		if withDirs {
			if err := writeDirHeaders(tw, dirPath, fileTime, seenDirs); err != nil {
				return err
			}
		}

		ext := ".json"
		if rand.IntN(2) == 1 {
			ext = ".txt"
		}
		name := path.Join(dirPath, fmt.Sprintf("%08x%s", rand.Uint32(), ext))
		if seenFiles[name] {
			continue
		}
		seenFiles[name] = true

		content := uuidPool[rand.IntN(len(uuidPool))] + "\n"
		hdr := &tar.Header{
			Name:     name,
			Typeflag: tar.TypeReg,
			Mode:     0o644,
			Size:     int64(len(content)),
			ModTime:  fileTime,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return err
		}
		if _, err := io.WriteString(tw, content); err != nil {
			return err
		}

		created++
		if verbose && created%1000 == 0 {
			fmt.Fprintf(out, "Created %d/%d files...\n", created, fileCount)
		}
	}

	if err := tw.Close(); err != nil {
		return err
	}
	if err := cw.Close(); err != nil {
		return err
	}

	if verbose {
		fmt.Fprintf(out, "Successfully created %d files\n", fileCount)
	}
	return nil
}

// seedDir picks the directory for a file: 5% at year level, 5% at month,
// 15% at day and the rest at hour level.
func seedDir(t time.Time, roll int) string {
	parts := []string{
		fmt.Sprintf("%04d", t.Year()),
		fmt.Sprintf("%02d", t.Month()),
		fmt.Sprintf("%02d", t.Day()),
		fmt.Sprintf("%02d", t.Hour()),
	}
	switch {
	case roll < 5:
		parts = parts[:1]
	case roll < 10:
		parts = parts[:2]
	case roll < 25:
		parts = parts[:3]
	}
	return path.Join(parts...)
}

func writeDirHeaders(tw *tar.Writer, dirPath string, modTime time.Time, seen map[string]bool) error {
	for p := dirPath; p != "."; p = path.Dir(p) {
		if seen[p] {
			continue
		}
		seen[p] = true
		if err := tw.WriteHeader(&tar.Header{
			Name:     p + "/",
			Typeflag: tar.TypeDir,
			Mode:     0o755,
			ModTime:  modTime,
		}); err != nil {
			return err
		}
	}
	return nil
}
