package cli

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

type appFunc func() *App

func newLoginCmd(app appFunc) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:     "login <username>",
		Short:   "Sign in and store the session token",
		Example: "  uwctl login admin --password admin123\n  UW_PASSWORD=admin123 uwctl login admin",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			if password == "" {
				password = os.Getenv("UW_PASSWORD")
			}
			if password == "" {
				return errors.New("password required: pass --password or set UW_PASSWORD")
			}
			resp, err := a.API.Auth.Login(cmd.Context(), args[0], password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			// a new identity invalidates every cached answer
			a.Gate.ClearCache()
			loc, err := a.Router.AfterLogin(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.Out, "signed in as %s, landing on %s\n", resp.User.Username, loc.Path)
			return nil
		},
	}
	cmd.Flags().StringVarP(&password, "password", "p", "", "Password (defaults to UW_PASSWORD)")
	return cmd
}

func newLogoutCmd(app appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			err := a.API.Auth.Logout(cmd.Context())
			a.Gate.ClearCache()
			if err != nil {
				// the local session is gone either way
				a.Log.Warn().Err(err).Msg("logout call failed")
			}
			fmt.Fprintln(a.Out, "signed out")
			return nil
		},
	}
}

func newWhoamiCmd(app appFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in operator",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			ctx := cmd.Context()
			if !a.Session.IsLoggedIn(ctx) {
				return errNotLoggedIn
			}
			u, err := a.Session.User(ctx)
			if err != nil {
				return err
			}
			role := "operator"
			if u.IsAdmin {
				role = "admin"
			}
			fmt.Fprintf(a.Out, "%s (id %d, %s)\n", u.Username, u.ID, role)
			return nil
		},
	}
}

func newCanCmd(app appFunc) *cobra.Command {
	return &cobra.Command{
		Use:     "can <permission>...",
		Short:   "Check permissions of the signed-in operator",
		Example: "  uwctl can channels:write rules:read",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			denied := 0
			for _, p := range args {
				ok := a.Gate.Check(cmd.Context(), p)
				verdict := "allowed"
				if !ok {
					verdict = "denied"
					denied++
				}
				fmt.Fprintf(a.Out, "%-24s %s\n", p, verdict)
			}
			if denied > 0 {
				return fmt.Errorf("%d of %d permissions denied", denied, len(args))
			}
			return nil
		},
	}
}

var errNotLoggedIn = errors.New("not signed in; run uwctl login")

// parseSet turns k=v pairs into a record. Values that parse as JSON scalars
// keep their type; everything else is a string.
func parseSet(pairs []string) (map[string]any, error) {
	out := make(map[string]any, len(pairs))
	for _, p := range pairs {
		k, v, ok := strings.Cut(p, "=")
		k = strings.TrimSpace(k)
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --set %q, expected key=value", p)
		}
		out[k] = scalar(v)
	}
	return out, nil
}
