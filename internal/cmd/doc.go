// Package cmd provides the command-line interface implementation for archivefs.
//
// It uses the Cobra library for command structure and Fang for styling.
// Every subcommand has its own constructor returning a *cobra.Command:
//   - mount: serve an archive over FUSE until unmounted
//   - ls: print the tree an archive presents
//   - cat: print files from an archive
//   - validate: read every file back and check it against its header
//   - seed: write a randomized test archive
//
// All commands share the --log-level and --log-format flags and build their
// projection.Service the same way the mount command does.
package cmd
