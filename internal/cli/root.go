package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/spf13/cobra"

	"github.com/five82/roster/internal/api"
	"github.com/five82/roster/internal/app"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigPath string
	APIURL     string
	Verbose    bool
	Format     string // "text" | "json" | "yaml"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json", "yaml"}

// NewRootCommand creates the root command for the roster CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "roster",
		Short: "roster - school management console",
		Long: `Terminal client for the school management API.

Run "roster login" once, then "roster console" for the live dashboard or the
list/get/create/delete commands for scripting.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "config file (default ~/.config/roster/config.toml)")
	cmd.PersistentFlags().StringVar(&opts.APIURL, "api-url", "", "override the API base URL")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (text|json|yaml)")

	cmd.AddCommand(NewConsoleCommand(opts))
	cmd.AddCommand(NewLoginCommand(opts))
	cmd.AddCommand(NewLogoutCommand(opts))
	cmd.AddCommand(NewWhoamiCommand(opts))
	cmd.AddCommand(NewDashboardCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewGetCommand(opts))
	cmd.AddCommand(NewCreateCommand(opts))
	cmd.AddCommand(NewDeleteCommand(opts))
	cmd.AddCommand(NewUploadCommand(opts))
	cmd.AddCommand(NewAttendCommand(opts))
	cmd.AddCommand(NewScheduleCommand(opts))
	cmd.AddCommand(NewLogsCommand(opts))
	cmd.AddCommand(NewMockServerCommand(opts))

	return cmd
}

// Main runs the CLI with args and returns the process exit code. Errors are
// written to stderr, or to stdout as an error envelope in json/yaml mode.
func Main(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	cmd := NewRootCommand()
	cmd.SetArgs(args)
	cmd.SetOut(stdout)
	cmd.SetErr(stderr)

	err := cmd.ExecuteContext(ctx)
	if err == nil {
		return ExitSuccess
	}
	// Commands return ExitError or API errors; anything else is cobra
	// rejecting the arguments.
	var exitErr *ExitError
	if !errors.As(err, &exitErr) && api.KindOf(err) == api.KindUnknown {
		err = &ExitError{Code: ExitCommandError, Message: err.Error()}
	}

	format, _ := cmd.PersistentFlags().GetString("format")
	if format == "json" || format == "yaml" {
		f := &OutputFormatter{Format: format, Writer: stdout, ErrWriter: stderr}
		code, details := errorDetails(err)
		_ = f.Error(code, err.Error(), details)
	} else {
		fmt.Fprintf(stderr, "roster: %v\n", err)
	}
	return GetExitCode(err)
}

// formatter builds the output formatter for a command.
func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// appOptions maps global flags onto the application options. Verbose runs
// log to stderr instead of the log file.
func (o *RootOptions) appOptions(cmd *cobra.Command) app.Options {
	opts := app.Options{
		ConfigPath: o.ConfigPath,
		APIURL:     o.APIURL,
		Verbose:    o.Verbose,
	}
	if o.Verbose {
		opts.LogOutput = cmd.ErrOrStderr()
	}
	return opts
}

// openEnv wires the application for one command. The caller closes it.
func (o *RootOptions) openEnv(cmd *cobra.Command) (*app.Env, error) {
	env, err := app.Build(o.appOptions(cmd))
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "initialize", err)
	}
	return env, nil
}

// openSession is openEnv for commands that need a signed-in user.
func (o *RootOptions) openSession(cmd *cobra.Command) (*app.Env, error) {
	env, err := o.openEnv(cmd)
	if err != nil {
		return nil, err
	}
	if !env.Session.LoggedIn() {
		_ = env.Close()
		return nil, NewExitError(ExitAuth, "not signed in: run 'roster login' first")
	}
	return env, nil
}
