package cmd

import (
	"fmt"
	"io"
	"path"
	"strings"

	units "github.com/docker/go-units"
	"github.com/spf13/cobra"

	"github.com/dendrascience/archivefs/archive"
	"github.com/dendrascience/archivefs/projection"
)

// NewLsCmd creates and returns the ls subcommand for the archivefs CLI.
// It prints the tree an archive would present when mounted.
func NewLsCmd() *cobra.Command {
	var (
		long  bool
		human bool
	)

	cmd := &cobra.Command{
		Use:   "ls ARCHIVE [PATH]",
		Short: "List the tree of an archive",
		Long: `List every node an archive would present when mounted, parents before
children, in archive order. Synthesized directories are included.

If PATH is given only that node and its descendants are listed.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			prefix := "/"
			if len(args) > 1 {
				prefix = path.Join("/", args[1])
			}
			svc, err := openService(cmd, args[0], 0)
			if err != nil {
				return err
			}
			defer svc.Close()
			if _, err := svc.GetAttributes(prefix); err != nil {
				return err
			}
			return runLs(cmd.OutOrStdout(), svc, prefix, long, human)
		},
	}

	cmd.Flags().BoolVarP(&long, "long", "l", false, "Show mode, size and modification time")
	cmd.Flags().BoolVarP(&human, "human-readable", "H", false, "Print sizes in human readable form")

	return cmd
}

func runLs(w io.Writer, svc *projection.Service, prefix string, long, human bool) error {
	var files, dirs int
	err := svc.Walk(func(p string, a projection.Attributes) error {
		if !under(p, prefix) {
			return nil
		}
		switch a.Kind {
		case archive.KindDirectory:
			dirs++
		case archive.KindRegular:
			files++
		}
		if !long {
			_, err := fmt.Fprintln(w, p)
			return err
		}
		size := fmt.Sprintf("%d", a.Size)
		if human {
			size = units.HumanSize(float64(a.Size))
		}
		name := p
		if a.Kind == archive.KindSymlink {
			name += " -> " + a.LinkTarget
		}
		_, err := fmt.Fprintf(w, "%s %10s %s %s\n", a.FileMode(), size, a.Mtime.Format("2006-01-02 15:04"), name)
		return err
	})
	if err != nil {
		return err
	}
	if long {
		_, err = fmt.Fprintf(w, "%d directories, %d files\n", dirs, files)
	}
	return err
}

func under(p, prefix string) bool {
	if prefix == "/" || p == prefix {
		return true
	}
	return strings.HasPrefix(p, prefix+"/")
}
