package cmd

import (
	"github.com/spf13/cobra"

	"github.com/dendrascience/archivefs/version"
)

// NewRootCmd creates and returns the root cobra command for the archivefs CLI.
// It sets up all subcommands, command groups, and the logging flags shared by
// every subcommand.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "archivefs",
		Short: "archivefs - Mount tar archives as read-only filesystems",
		Long: `archivefs projects a tar archive (optionally gzip, bzip2, zstd or lz4
compressed) as a read-only FUSE filesystem without unpacking it.

The archive is indexed once at startup. File contents are decompressed on
first read and kept in a bounded in-memory cache.

Use subcommands to perform different operations:
  - mount: Mount an archive at a specified mountpoint
  - ls: List the tree an archive would present
  - cat: Print files from an archive
  - validate: Decompress every file and check it against its header
  - seed: Generate a test archive`,
		Version:       version.GetFullVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	addLogFlags(rootCmd)

	groupUtilities := "utilities"
	groupFilesystem := "filesystem"

	rootCmd.AddGroup(&cobra.Group{
		ID:    groupFilesystem,
		Title: "Filesystem Operations",
	})
	rootCmd.AddGroup(&cobra.Group{
		ID:    groupUtilities,
		Title: "Utility Commands",
	})

	mountCmd := NewMountCmd()
	lsCmd := NewLsCmd()
	catCmd := NewCatCmd()
	validateCmd := NewValidateCmd()
	seedCmd := NewSeedCmd()

	mountCmd.GroupID = groupFilesystem
	lsCmd.GroupID = groupUtilities
	catCmd.GroupID = groupUtilities
	validateCmd.GroupID = groupUtilities
	seedCmd.GroupID = groupUtilities

	rootCmd.AddCommand(mountCmd)
	rootCmd.AddCommand(lsCmd)
	rootCmd.AddCommand(catCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(seedCmd)

	return rootCmd
}
