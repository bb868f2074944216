package cli

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/five82/roster/internal/api"
	"github.com/five82/roster/internal/app"
)

// NewConsoleCommand creates the console command.
func NewConsoleCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		pollEvery time.Duration
		prefsPath string
	)

	cmd := &cobra.Command{
		Use:   "console",
		Short: "Open the live dashboard",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Fail with the auth exit code before the screen is taken over.
			env, err := rootOpts.openSession(cmd)
			if err != nil {
				return err
			}
			_ = env.Close()

			opts := rootOpts.appOptions(cmd)
			opts.LogOutput = nil
			opts.PollEvery = pollEvery
			opts.PrefsPath = prefsPath
			if err := app.Run(cmd.Context(), opts); err != nil {
				return WrapExitError(ExitFailure, "console", err)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&pollEvery, "poll", 0, "dashboard refresh interval (default from config)")
	cmd.Flags().StringVar(&prefsPath, "prefs", "", "preferences file (default next to the config file)")

	return cmd
}

// NewDashboardCommand creates the dashboard command.
func NewDashboardCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "dashboard",
		Short: "Print school-wide statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := rootOpts.openSession(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()

			stats, err := env.Store.Dashboard().Load(cmd.Context())
			if err != nil {
				return apiFailure("dashboard", err)
			}
			return rootOpts.formatter(cmd).Success(statsRecord(stats))
		},
	}
}

func statsRecord(s api.DashboardStats) record {
	return record{item: s, fields: [][2]string{
		{"Classes", strconv.Itoa(s.TotalClasses)},
		{"Students", strconv.Itoa(s.TotalStudents)},
		{"Teachers", strconv.Itoa(s.TotalTeachers)},
		{"Subjects", strconv.Itoa(s.TotalSubjects)},
		{"Active quizzes", strconv.Itoa(s.ActiveQuizzes)},
		{"Pending assignments", strconv.Itoa(s.PendingAssignments)},
		{"Attendance", fmt.Sprintf("%.1f%%", s.AttendanceRate)},
	}}
}
