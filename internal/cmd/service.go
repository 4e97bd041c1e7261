package cmd

import (
	"github.com/spf13/cobra"

	"github.com/dendrascience/archivefs/projection"
)

// openService indexes archivePath for the one-shot subcommands.
func openService(cmd *cobra.Command, archivePath string, cacheBytes int64) (*projection.Service, error) {
	log, err := newLogger(cmd)
	if err != nil {
		return nil, err
	}
	cfg := projection.DefaultConfig(archivePath)
	cfg.CacheBytes = cacheBytes
	cfg.Logger = log.WithField("command", cmd.Name())
	return projection.New(cfg)
}
