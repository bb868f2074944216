package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/five82/roster/internal/api"
)

// UploadOptions holds flags for the upload command.
type UploadOptions struct {
	*RootOptions
	ClassID     int64
	Title       string
	Description string
}

// NewUploadCommand creates the upload command.
func NewUploadCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &UploadOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a learning material to a class",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpload(cmd, opts, args[0])
		},
	}

	cmd.Flags().Int64Var(&opts.ClassID, "class", 0, "class id (required)")
	cmd.Flags().StringVar(&opts.Title, "title", "", "material title (default: file name)")
	cmd.Flags().StringVar(&opts.Description, "description", "", "material description")
	_ = cmd.MarkFlagRequired("class")

	return cmd
}

func runUpload(cmd *cobra.Command, opts *UploadOptions, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return WrapExitError(ExitCommandError, "open material", err)
	}
	defer f.Close()

	name := filepath.Base(path)
	title := opts.Title
	if title == "" {
		title = strings.TrimSuffix(name, filepath.Ext(name))
	}

	env, err := opts.openSession(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	material, err := env.Store.UploadMaterial(cmd.Context(), api.MaterialUpload{
		ClassID:     opts.ClassID,
		Title:       title,
		Description: opts.Description,
		FileName:    name,
		Content:     f,
	}).Unwrap()
	if err != nil {
		return apiFailure("upload "+name, err)
	}
	return opts.formatter(cmd).Success(materialEntity.record(material))
}

// AttendOptions holds flags for the attend command.
type AttendOptions struct {
	*RootOptions
	ClassID int64
	Date    string
}

// NewAttendCommand creates the attend command.
func NewAttendCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &AttendOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "attend studentID=STATUS...",
		Short: "Record attendance for one class session",
		Long: `Record attendance for a class on one date. Each argument marks one
student; STATUS is PRESENT, ABSENT, LATE or EXCUSED. Marking a student twice
for the same date replaces the earlier mark.

Example:
  roster attend --class 11 --date 2025-10-20 4=present 5=late`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAttend(cmd, opts, args)
		},
	}

	cmd.Flags().Int64Var(&opts.ClassID, "class", 0, "class id (required)")
	cmd.Flags().StringVar(&opts.Date, "date", "", "session date as YYYY-MM-DD (default today)")
	_ = cmd.MarkFlagRequired("class")

	return cmd
}

func runAttend(cmd *cobra.Command, opts *AttendOptions, args []string) error {
	date := opts.Date
	if date == "" {
		date = time.Now().Format(time.DateOnly)
	}
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid --date %q: want YYYY-MM-DD", date))
	}

	in := api.AttendanceInput{ClassID: opts.ClassID, Date: date}
	for _, arg := range args {
		mark, err := parseMark(arg)
		if err != nil {
			return err
		}
		in.Records = append(in.Records, mark)
	}

	env, err := opts.openSession(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	rows, err := env.Store.MarkAttendance(cmd.Context(), in).Unwrap()
	if err != nil {
		return apiFailure("attend", err)
	}
	return opts.formatter(cmd).Success(attendanceEntity.listing(rows))
}

func parseMark(arg string) (api.AttendanceMark, error) {
	id, status, ok := strings.Cut(arg, "=")
	if !ok {
		return api.AttendanceMark{}, NewExitError(ExitCommandError, fmt.Sprintf("invalid mark %q: want studentID=STATUS", arg))
	}
	studentID, err := strconv.ParseInt(strings.TrimSpace(id), 10, 64)
	if err != nil || studentID <= 0 {
		return api.AttendanceMark{}, NewExitError(ExitCommandError, fmt.Sprintf("invalid student id in %q", arg))
	}
	return api.AttendanceMark{StudentID: studentID, Status: strings.ToUpper(strings.TrimSpace(status))}, nil
}

// NewScheduleCommand creates the schedule command group.
func NewScheduleCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage weekly class schedules",
	}
	cmd.AddCommand(newScheduleApplyCommand(rootOpts))
	return cmd
}

func newScheduleApplyCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		classID int64
		file    string
	)

	cmd := &cobra.Command{
		Use:   "apply",
		Short: "Replace a class's weekly patterns from a file",
		Long: `Replace every weekly pattern of a class in one request. The file holds a
"patterns" list; entries with an id update that pattern, entries without one
are created, and patterns missing from the file are deleted.

Example file:
  patterns:
    - id: 19
      dayOfWeek: 1
      startTime: "07:30"
      endTime: "09:00"
      room: A101
    - dayOfWeek: 4
      startTime: "13:00"
      endTime: "14:30"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := readPayload(cmd, "", file)
			if err != nil {
				return err
			}
			var batch api.ScheduleBatch
			if err := decodePayload(payload, &batch); err != nil {
				return err
			}
			if classID > 0 {
				batch.ClassID = classID
			}
			if batch.ClassID <= 0 {
				return NewExitError(ExitCommandError, "missing class: pass --class or set classId in the file")
			}

			env, err := rootOpts.openSession(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()

			patterns, err := env.Store.BatchUpdateSchedules(cmd.Context(), batch).Unwrap()
			if err != nil {
				return apiFailure("schedule apply", err)
			}
			return rootOpts.formatter(cmd).Success(scheduleEntity.listing(patterns))
		},
	}

	cmd.Flags().Int64Var(&classID, "class", 0, "class id (overrides classId in the file)")
	cmd.Flags().StringVarP(&file, "file", "f", "", "JSON or YAML patterns file (required, - for stdin)")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}
