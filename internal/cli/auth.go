package cli

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/five82/roster/internal/api"
)

// PasswordEnv is read by login when --password is not given.
const PasswordEnv = "ROSTER_PASSWORD"

// LoginOptions holds flags for the login command.
type LoginOptions struct {
	*RootOptions
	Username string
	Password string
}

// NewLoginCommand creates the login command.
func NewLoginCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LoginOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and store the session",
		Long: `Sign in against the API. The token is kept in the configured session
store until "roster logout" or until the server rejects it.

The password is taken from --password, then $` + PasswordEnv + `, then one line
of stdin.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLogin(cmd, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.Username, "username", "u", "", "account username (required)")
	cmd.Flags().StringVarP(&opts.Password, "password", "p", "", "account password")
	_ = cmd.MarkFlagRequired("username")

	return cmd
}

func runLogin(cmd *cobra.Command, opts *LoginOptions) error {
	password := opts.Password
	if password == "" {
		password = os.Getenv(PasswordEnv)
	}
	if password == "" {
		p, err := readLine(cmd.InOrStdin())
		if err != nil {
			return WrapExitError(ExitCommandError, "read password", err)
		}
		password = p
	}
	if password == "" {
		return NewExitError(ExitCommandError, "missing password")
	}

	env, err := opts.openEnv(cmd)
	if err != nil {
		return err
	}
	defer func() { _ = env.Close() }()

	user, err := env.Login(cmd.Context(), opts.Username, password)
	if err != nil {
		return apiFailure("login", err)
	}
	return opts.formatter(cmd).Success(userRecord(user))
}

func readLine(r io.Reader) (string, error) {
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// NewLogoutCommand creates the logout command.
func NewLogoutCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := rootOpts.openEnv(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()

			if err := env.Logout(); err != nil {
				return WrapExitError(ExitFailure, "logout", err)
			}
			return rootOpts.formatter(cmd).Success(message{Text: "signed out"})
		},
	}
}

// whoami is the signed-in user with the token's expiry.
type whoami struct {
	User      api.User   `json:"user"`
	Role      string     `json:"role"`
	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	Expired   bool       `json:"expired"`
}

func (w whoami) WriteText(out io.Writer) error {
	expiry := "never"
	if w.ExpiresAt != nil {
		expiry = w.ExpiresAt.Local().Format(time.RFC1123)
	}
	if w.Expired {
		expiry += " (expired)"
	}
	_, err := fmt.Fprintf(out, "%s (%s) as %s\ntoken expires: %s\n", w.User.FullName, w.User.Username, w.Role, expiry)
	return err
}

// NewWhoamiCommand creates the whoami command.
func NewWhoamiCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := rootOpts.openSession(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = env.Close() }()

			user, _ := env.Session.User()
			out := whoami{User: user, Role: user.Role}
			claims, err := env.Session.Claims()
			if err != nil {
				rootOpts.formatter(cmd).VerboseLog("token claims unreadable: %v", err)
			} else {
				if claims.Role != "" {
					out.Role = claims.Role
				}
				if !claims.ExpiresAt.IsZero() {
					exp := claims.ExpiresAt
					out.ExpiresAt = &exp
				}
				out.Expired = claims.Expired(time.Now())
			}
			return rootOpts.formatter(cmd).Success(out)
		},
	}
}

func userRecord(u api.User) record {
	return record{item: u, fields: [][2]string{
		{"ID", itoa(u.ID)},
		{"USERNAME", u.Username},
		{"NAME", u.FullName},
		{"ROLE", u.Role},
	}}
}
