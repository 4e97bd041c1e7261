package cmd

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const (
	flagLogLevel  = "log-level"
	flagLogFormat = "log-format"
)

func addLogFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().String(flagLogLevel, "info", "Log level (trace, debug, info, warn, error)")
	cmd.PersistentFlags().String(flagLogFormat, "text", "Log format (text, json)")
}

// newLogger builds the logger described by the persistent log flags. Logs
// go to stderr so that cat and ls output stays clean.
func newLogger(cmd *cobra.Command) (*logrus.Logger, error) {
	levelName, _ := cmd.Flags().GetString(flagLogLevel)
	format, _ := cmd.Flags().GetString(flagLogFormat)

	level, err := logrus.ParseLevel(levelName)
	if err != nil {
		return nil, err
	}

	log := logrus.New()
	log.SetOutput(cmd.ErrOrStderr())
	log.SetLevel(level)

	switch strings.ToLower(format) {
	case "", "text":
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	case "json":
		log.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return log, nil
}
