package cli

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/five82/roster/internal/config"
	"github.com/five82/roster/internal/logtail"
)

var logLevels = []string{"debug", "info", "warn", "error"}

// logLines prints raw lines in text mode and parsed lines otherwise.
type logLines []logtail.Line

func (l logLines) WriteText(w io.Writer) error {
	for _, line := range l {
		if _, err := fmt.Fprintln(w, line.Raw); err != nil {
			return err
		}
	}
	return nil
}

// NewLogsCommand creates the logs command.
func NewLogsCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		lines int
		level string
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Show the end of the console log",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			level = strings.ToLower(level)
			if !slices.Contains(logLevels, level) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid --level %q: must be one of %v", level, logLevels))
			}
			if err := config.LoadDotEnv(""); err != nil {
				return WrapExitError(ExitCommandError, "load .env", err)
			}
			cfg, err := config.Load(rootOpts.ConfigPath)
			if err != nil {
				return WrapExitError(ExitCommandError, "load config", err)
			}

			path := cfg.LogPath()
			rootOpts.formatter(cmd).VerboseLog("reading %s", path)
			out, err := logtail.Tail(path, lines, level)
			if err != nil {
				return WrapExitError(ExitFailure, "read log", err)
			}
			return rootOpts.formatter(cmd).Success(logLines(out))
		},
	}

	cmd.Flags().IntVarP(&lines, "lines", "n", 50, "number of lines to read (0 for all)")
	cmd.Flags().StringVar(&level, "level", "debug", "minimum level (debug|info|warn|error)")

	return cmd
}
