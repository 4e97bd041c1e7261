package cmd

import (
	"fmt"
	"io"
	"path"

	"github.com/spf13/cobra"

	"github.com/dendrascience/archivefs/projection"
)

// NewCatCmd creates and returns the cat subcommand for the archivefs CLI.
func NewCatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cat ARCHIVE PATH...",
		Short: "Print files from an archive",
		Long: `Write the contents of one or more files inside an archive to stdout,
reading them through the same path a mounted filesystem uses.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := openService(cmd, args[0], 0)
			if err != nil {
				return err
			}
			defer svc.Close()
			for _, p := range args[1:] {
				if err := runCat(cmd.OutOrStdout(), svc, path.Join("/", p)); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

// runCat reads the whole file in one request. An entry that does not fit
// the cache would otherwise be decompressed again for every chunk.
func runCat(w io.Writer, svc *projection.Service, p string) error {
	attrs, err := svc.GetAttributes(p)
	if err != nil {
		return err
	}
	id, err := svc.Open(p)
	if err != nil {
		return err
	}
	defer svc.Release(id)

	data, err := svc.Read(id, 0, int(attrs.Size))
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", p, err)
	}
	return nil
}
