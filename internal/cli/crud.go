package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/five82/roster/internal/state"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	ClassID int64
	Where   string
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list <resource>",
		Short: "List a resource",
		Long: `List classes, subjects, users, or the assignments, quizzes, attendance,
materials and schedules of one class.

Example:
  roster list classes --where 'schoolYear == 2025 && studentCount > 30'
  roster list materials --class 12 --format yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(cmd, opts, args[0])
		},
	}

	cmd.Flags().Int64Var(&opts.ClassID, "class", 0, "class id for class-scoped resources")
	cmd.Flags().StringVar(&opts.Where, "where", "", "filter expression over JSON fields")

	return cmd
}

func runList(cmd *cobra.Command, opts *ListOptions, name string) error {
	res, err := lookupResource(name)
	if err != nil {
		return err
	}
	if res.scoped && opts.ClassID <= 0 {
		return NewExitError(ExitCommandError, fmt.Sprintf("%s are listed per class: pass --class", res.name))
	}
	where, err := compileWhere(opts.Where)
	if err != nil {
		return err
	}

	env, err := opts.openSession(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	out, err := res.list(cmd.Context(), env.Store, opts.ClassID, where)
	if err != nil {
		return apiFailure("list "+res.name, err)
	}
	return opts.formatter(cmd).Success(out)
}

// NewGetCommand creates the get command.
func NewGetCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "get <resource> <id>",
		Short: "Show one item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := lookupResource(args[0])
			if err != nil {
				return err
			}
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			env, err := rootOpts.openSession(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()

			out, err := res.get(cmd.Context(), env.Client, id)
			if err != nil {
				return apiFailure(fmt.Sprintf("get %s %d", res.name, id), err)
			}
			return rootOpts.formatter(cmd).Success(out)
		},
	}
}

// CreateOptions holds flags for the create command.
type CreateOptions struct {
	*RootOptions
	Data string
	File string
}

// NewCreateCommand creates the create command.
func NewCreateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &CreateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "create <resource>",
		Short: "Create an item from JSON or YAML",
		Long: `Create an item. The payload uses the API's JSON field names and may be
given inline with --data or read from a JSON or YAML file with --file
("-" reads stdin).

Example:
  roster create subject --data '{"subjectName":"Hóa học","subjectCode":"CHEM10"}'
  roster create assignment --file homework.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCreate(cmd, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.Data, "data", "", "payload as JSON or YAML")
	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "read the payload from a file")

	return cmd
}

func runCreate(cmd *cobra.Command, opts *CreateOptions, name string) error {
	res, err := lookupResource(name)
	if err != nil {
		return err
	}
	if res.create == nil {
		return NewExitError(ExitCommandError, fmt.Sprintf("%s cannot be created here; see 'roster --help'", res.name))
	}
	payload, err := readPayload(cmd, opts.Data, opts.File)
	if err != nil {
		return err
	}

	env, err := opts.openSession(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	out, err := res.create(cmd.Context(), env.Store, payload)
	if err != nil {
		return apiFailure("create "+res.name, err)
	}
	return opts.formatter(cmd).Success(out)
}

func readPayload(cmd *cobra.Command, data, file string) ([]byte, error) {
	switch {
	case data != "" && file != "":
		return nil, NewExitError(ExitCommandError, "use either --data or --file")
	case data != "":
		return []byte(data), nil
	case file == "-":
		b, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "read stdin", err)
		}
		return b, nil
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "read payload", err)
		}
		return b, nil
	default:
		return nil, NewExitError(ExitCommandError, "missing payload: pass --data or --file")
	}
}

// NewDeleteCommand creates the delete command.
func NewDeleteCommand(rootOpts *RootOptions) *cobra.Command {
	var classID int64

	cmd := &cobra.Command{
		Use:   "delete <resource> <id>",
		Short: "Delete an item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := lookupResource(args[0])
			if err != nil {
				return err
			}
			if res.remove == nil {
				return NewExitError(ExitCommandError, fmt.Sprintf("%s cannot be deleted", res.name))
			}
			id, err := parseID(args[1])
			if err != nil {
				return err
			}
			env, err := rootOpts.openSession(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()

			if err := res.remove(cmd.Context(), env.Store, state.Ref{ClassID: classID, ID: id}); err != nil {
				return apiFailure(fmt.Sprintf("delete %s %d", res.name, id), err)
			}
			return rootOpts.formatter(cmd).Success(message{Text: fmt.Sprintf("deleted %s %d", res.name, id)})
		},
	}

	cmd.Flags().Int64Var(&classID, "class", 0, "class id the item belongs to")

	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, NewExitError(ExitCommandError, fmt.Sprintf("invalid id %q", s))
	}
	return id, nil
}
