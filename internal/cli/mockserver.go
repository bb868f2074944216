package cli

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"github.com/five82/roster/internal/logging"
	"github.com/five82/roster/internal/mockapi"
)

// NewMockServerCommand creates the mock-server command.
func NewMockServerCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		addr   string
		secret string
		ttl    time.Duration
		quiet  bool
	)

	cmd := &cobra.Command{
		Use:   "mock-server",
		Short: "Serve an in-memory school API for local use",
		Long: `Serve a seeded, in-memory copy of the school management API. Data is
lost on exit.

Seeded accounts:
  ` + mockapi.AdminUsername + ` / ` + mockapi.AdminPassword + `      (ADMIN)
  ` + mockapi.TeacherUsername + ` / ` + mockapi.TeacherPassword + `  (TEACHER)`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := logging.New(cmd.ErrOrStderr(), rootOpts.Verbose)
			srv := mockapi.NewServer(mockapi.Options{
				Address:        addr,
				Secret:         []byte(secret),
				TokenTTL:       ttl,
				Logger:         logger,
				DisableReqLogs: quiet,
				Debug:          rootOpts.Verbose,
			})

			errc := make(chan error, 1)
			go func() { errc <- srv.Start() }()
			logger.Infof("mock api listening on http://%s/api", srv.Address())

			select {
			case err := <-errc:
				if err != nil {
					return WrapExitError(ExitUnavailable, "mock server", err)
				}
				return nil
			case <-cmd.Context().Done():
			}

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(ctx); err != nil {
				return WrapExitError(ExitFailure, "stop mock server", err)
			}
			logger.Infof("mock api stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	cmd.Flags().StringVar(&secret, "secret", "", "token signing secret (default built in)")
	cmd.Flags().DurationVar(&ttl, "token-ttl", 8*time.Hour, "issued token lifetime")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "do not log requests")

	return cmd
}
