package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"alliance.fr/admin/internal/auth"
	"alliance.fr/admin/internal/session"
)

const (
	defaultAPI     = "http://localhost:5000"
	requestTimeout = 30 * time.Second
)

// rootOptions holds the persistent flags shared by every subcommand.
type rootOptions struct {
	api         string
	sessionPath string
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "afctl",
		Short: "Alliance admin command line client",
		Long: `afctl logs an operator into the Alliance admin API, keeps the session
token between invocations and asks the route guard which area applies.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.api, "api", envOr("AF_API_URL", defaultAPI), "API base URL")
	root.PersistentFlags().StringVar(&opts.sessionPath, "session", os.Getenv("AF_SESSION_FILE"), "session file (default: user config dir)")

	root.AddCommand(
		newLoginCmd(opts),
		newWhoamiCmd(opts),
		newOpenCmd(opts),
		newLogoutCmd(opts),
		newHashCmd(),
	)
	return root
}

func (o *rootOptions) client() (*session.Client, error) {
	path := o.sessionPath
	if path == "" {
		var err error
		if path, err = session.DefaultPath(); err != nil {
			return nil, err
		}
	}
	return session.NewClient(o.api, session.NewFileStore(path), nil), nil
}

func newLoginCmd(opts *rootOptions) *cobra.Command {
	var (
		email         string
		passwordStdin bool
	)
	cmd := &cobra.Command{
		Use:   "login [email]",
		Short: "Log in and store the session token",
		Long: `Logs in with an email and password and stores the token for later commands.
The password is read from AF_PASSWORD, or from stdin with --password-stdin.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) > 0 {
				email = args[0]
			}
			if email == "" {
				return errors.New("email is required")
			}
			password := os.Getenv("AF_PASSWORD")
			if passwordStdin {
				var err error
				if password, err = readLine(cmd.InOrStdin()); err != nil {
					return err
				}
			}

			client, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			res, err := client.Login(ctx, email, password)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Logged in as %s (role %d), session valid until %s\n",
				res.Employe.Email, res.Employe.RoleID, res.ExpiresAt.Local().Format(time.RFC1123))
			if res.Redirect != nil {
				fmt.Fprintf(out, "Area: %s\n", *res.Redirect)
			}
			if res.Notice != "" {
				fmt.Fprintf(out, "Notice: %s\n", res.Notice)
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&email, "email", "e", "", "account email")
	cmd.Flags().BoolVar(&passwordStdin, "password-stdin", false, "read the password from stdin")
	return cmd
}

func newWhoamiCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the identity of the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			who, err := client.Whoami(ctx)
			if err != nil {
				return explain(err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "id:      %d\nemail:   %s\nrole:    %d\nservice: %s\nhome:    %s\n",
				who.Employe.ID, who.Employe.Email, who.Employe.RoleID, who.Employe.Service, who.Home)
			if who.Notice != "" {
				fmt.Fprintf(out, "notice:  %s\n", who.Notice)
			}
			return nil
		},
	}
}

func newOpenCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "open <route>",
		Short:   "Ask the route guard for an area",
		Example: "  afctl open dashboard-pedagogique",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), requestTimeout)
			defer cancel()
			res, err := client.Open(ctx, args[0])
			if err != nil {
				return explain(err)
			}
			if res.Decision == "redirect" {
				fmt.Fprintf(cmd.OutOrStdout(), "redirected to %s\n", res.Route)
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", res.Decision, res.Route)
			return nil
		},
	}
}

func newLogoutCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := opts.client()
			if err != nil {
				return err
			}
			if err := client.Logout(); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newHashCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash",
		Short: "Print the bcrypt hash of a password read from stdin",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := readLine(cmd.InOrStdin())
			if err != nil {
				return err
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}

func readLine(in io.Reader) (string, error) {
	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func explain(err error) error {
	switch {
	case errors.Is(err, session.ErrNoSession):
		return errors.New("not logged in, run afctl login first")
	case errors.Is(err, auth.ErrTokenExpired):
		return errors.New("session expired, please log in again")
	case errors.Is(err, auth.ErrInvalidToken):
		return errors.New("session is no longer valid, please log in again")
	}
	var apiErr *session.APIError
	if errors.As(err, &apiErr) && apiErr.Location != "" {
		return fmt.Errorf("%s (go to %s)", apiErr.Message, apiErr.Location)
	}
	return err
}

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}
