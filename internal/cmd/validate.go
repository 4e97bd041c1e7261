package cmd

import (
	"fmt"
	"io"
	"sync"

	units "github.com/docker/go-units"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dendrascience/archivefs/archive"
	"github.com/dendrascience/archivefs/projection"
)

// NewValidateCmd creates and returns the validate subcommand for the archivefs CLI.
// It decompresses every regular file of each archive and checks the result
// against the size recorded in its header.
func NewValidateCmd() *cobra.Command {
	var (
		verbose  bool
		parallel int
	)

	cmd := &cobra.Command{
		Use:   "validate ARCHIVE...",
		Short: "Validate archives for corruption and consistency",
		Long: `Validate one or more archives.

Each archive is indexed exactly as mount would index it, then every regular
file is read in full through the extraction path. Files whose content is
shorter than their header claims, or that cannot be decompressed, are
reported. The command fails if any archive has errors.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if parallel < 1 {
				return fmt.Errorf("--parallel must be at least 1, got %d", parallel)
			}
			var failed int
			for _, p := range args {
				svc, err := openService(cmd, p, 0)
				if err != nil {
					fmt.Fprintf(cmd.OutOrStdout(), "%s: %v\n", p, err)
					failed++
					continue
				}
				report := validateArchive(svc, parallel)
				svc.Close()
				report.print(cmd.OutOrStdout(), p, verbose)
				if len(report.problems) > 0 {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d archives failed validation", failed, len(args))
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	cmd.Flags().IntVarP(&parallel, "parallel", "j", 1, "Number of files to read concurrently")

	return cmd
}

type validationReport struct {
	files    int
	dirs     int
	bytes    uint64
	problems []string
}

func (r validationReport) print(w io.Writer, archivePath string, verbose bool) {
	if len(r.problems) == 0 {
		fmt.Fprintf(w, "%s: OK (%d files, %d directories, %s)\n",
			archivePath, r.files, r.dirs, units.HumanSize(float64(r.bytes)))
		return
	}
	fmt.Fprintf(w, "%s has %d errors:\n", archivePath, len(r.problems))
	for _, p := range r.problems {
		fmt.Fprintf(w, "  - %s\n", p)
	}
	if verbose {
		fmt.Fprintf(w, "  checked %d files, %d directories\n", r.files, r.dirs)
	}
}

func validateArchive(svc *projection.Service, parallel int) validationReport {
	var (
		report validationReport
		mu     sync.Mutex
		g      errgroup.Group
	)
	g.SetLimit(parallel)

	problem := func(format string, args ...any) {
		mu.Lock()
		report.problems = append(report.problems, fmt.Sprintf(format, args...))
		mu.Unlock()
	}

	_ = svc.Walk(func(p string, a projection.Attributes) error {
		switch a.Kind {
		case archive.KindDirectory:
			report.dirs++
			return nil
		case archive.KindRegular:
		default:
			return nil
		}
		report.files++
		report.bytes += a.Size

		g.Go(func() error {
			n, err := readFull(svc, p, a.Size)
			if err != nil {
				problem("%s: %v", p, err)
				return nil
			}
			if n != a.Size {
				problem("%s: read %d bytes, header says %d", p, n, a.Size)
			}
			return nil
		})
		return nil
	})
	_ = g.Wait()
	return report
}

func readFull(svc *projection.Service, p string, size uint64) (uint64, error) {
	id, err := svc.Open(p)
	if err != nil {
		return 0, err
	}
	defer svc.Release(id)

	data, err := svc.Read(id, 0, int(size))
	return uint64(len(data)), err
}
