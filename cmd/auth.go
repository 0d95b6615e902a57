package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"portal/internal/auth"
	"portal/internal/cli"
	"portal/internal/config"
	"portal/internal/session"
	"portal/pkg/logging"
)

// Logout-specific flags
var logoutForce bool

// Status-specific flags
var statusCheck bool

// authCmd represents the auth command group
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage authentication of the current account",
	Long: `Log in, log out and inspect the authentication state of the current
account, and maintain the session store.

Examples:
  portal auth status           # Show authentication status
  portal auth login            # Log in the current session
  portal auth logout           # Revoke tokens and remove the current account
  portal auth logout --force   # Also skip the login service's logout page
  portal auth retry            # Retry after the login service was unreachable
  portal auth watch            # Stream authentication events
  portal auth sanitize         # Remove orphaned session data
  portal auth purge            # Remove every account`,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show authentication status",
	Long: `Show the authentication status of the current account.

With --check the command exits with code 2 when the current account is not
logged in, for use in scripts.`,
	Args: cobra.NoArgs,
	RunE: runAuthStatus,
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in the current session",
	Long: `Log in through the browser. An unauthenticated current session is reused;
otherwise the login adds an account next to the existing ones.`,
	Args: cobra.NoArgs,
	RunE: runAuthLogin,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out the current account",
	Long: `Revoke the tokens of the current account at the login service, remove it
and switch to the first remaining account.

When the last account is logged out, the login service's logout page is
printed so the browser session can be ended too. --force skips it.`,
	Args: cobra.NoArgs,
	RunE: runAuthLogout,
}

var authPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Remove every account and session",
	Args:  cobra.NoArgs,
	RunE:  runAuthPurge,
}

var authSanitizeCmd = &cobra.Command{
	Use:   "sanitize",
	Short: "Remove session data that no account refers to",
	Args:  cobra.NoArgs,
	RunE:  runAuthSanitize,
}

var authRetryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Reload the login service configuration and resume the current session",
	Args:  cobra.NoArgs,
	RunE:  runAuthRetry,
}

var authWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream authentication events until interrupted",
	Long: `Print authentication events as they happen, including accounts removed
by other portal processes sharing the same store.`,
	Args: cobra.NoArgs,
	RunE: runAuthWatch,
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authStatusCmd)
	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authPurgeCmd)
	authCmd.AddCommand(authSanitizeCmd)
	authCmd.AddCommand(authRetryCmd)
	authCmd.AddCommand(authWatchCmd)

	authStatusCmd.Flags().BoolVar(&statusCheck, "check", false, "Exit with code 2 when the current account is not logged in")
	authLogoutCmd.Flags().BoolVar(&logoutForce, "force", false, "Do not print the login service's logout page")
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	application, err := startApp(cmd, false)
	if err != nil {
		return err
	}
	defer application.Close()

	svc := application.Services().Auth
	loggedIn, failure := svc.IsLoggedIn(cmd.Context())

	f, err := newFormatter(cmd)
	if err != nil {
		return err
	}
	if err := f.FormatStatus(cli.Status(svc.Status(), loggedIn, application.PortalConfig().Identity.Issuer, svc.Sessions().Metadata(), failure)); err != nil {
		return err
	}
	if !statusCheck {
		return nil
	}
	var current *session.AccountProfile
	if p, ok := svc.Sessions().CurrentProfile(); ok {
		current = &p
	}
	return cli.RequireAuthenticated(loggedIn, current)
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	application, err := startApp(cmd, false)
	if err != nil {
		return err
	}
	defer application.Close()

	if err := config.RequireIdentity(application.PortalConfig().Identity); err != nil {
		return err
	}

	svc := application.Services().Auth
	if loggedIn, _ := svc.IsLoggedIn(cmd.Context()); loggedIn {
		p, _ := svc.Sessions().CurrentProfile()
		if !globalFlags.Quiet {
			fmt.Fprintln(cmd.OutOrStdout(), cli.FormatSuccess(fmt.Sprintf("Already logged in as %s. Run: portal account add", p.DisplayName())))
		}
		return nil
	}

	ev, err := runOutcome(application, "Waiting for login...", func() auth.Event {
		return svc.AddContextAndLogin(cmd.Context())
	})
	if err != nil {
		return err
	}
	return printOutcome(cmd, application, ev)
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	application, err := startApp(cmd, false)
	if err != nil {
		return err
	}
	defer application.Close()

	svc := application.Services().Auth
	if p, ok := svc.Sessions().CurrentProfile(); !ok || !p.Authenticated {
		if !globalFlags.Quiet {
			fmt.Fprintln(cmd.OutOrStdout(), "Not logged in.")
		}
		return nil
	}

	ev, err := runOutcome(application, "Logging out...", func() auth.Event {
		return svc.Logout(cmd.Context(), logoutForce)
	})
	if err != nil {
		return err
	}
	return printOutcome(cmd, application, ev)
}

func runAuthPurge(cmd *cobra.Command, args []string) error {
	application, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	svc := application.Services().Auth
	if n := len(svc.Sessions().Profiles()); n > 0 && !globalFlags.Yes {
		prompter := cli.Prompter{Stdout: cmd.ErrOrStderr()}
		ok, err := prompter.Confirm(fmt.Sprintf("Remove all %d account(s)?", n))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "Cancelled.")
			return nil
		}
	}

	ev, err := runOutcome(application, "Removing all accounts...", func() auth.Event {
		return svc.Purge(cmd.Context())
	})
	if err != nil && !isProviderError(err) {
		return err
	}
	return printOutcome(cmd, application, ev)
}

func runAuthSanitize(cmd *cobra.Command, args []string) error {
	application, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	removed, err := application.Services().Sessions.SanitizeStorage(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to sanitize storage: %w", err)
	}
	if globalFlags.Quiet {
		return nil
	}
	out := cmd.OutOrStdout()
	if len(removed) == 0 {
		fmt.Fprintln(out, cli.FormatSuccess("No orphaned session data found"))
		return nil
	}
	for _, key := range removed {
		fmt.Fprintf(out, "  - %s\n", key)
	}
	fmt.Fprintln(out, cli.FormatSuccess(fmt.Sprintf("Removed %d orphaned entries", len(removed))))
	return nil
}

func runAuthRetry(cmd *cobra.Command, args []string) error {
	application, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer application.Close()

	svc := application.Services().Auth
	if err := svc.Sessions().Load(cmd.Context()); err != nil {
		return err
	}
	ev, err := runOutcome(application, "Contacting the login service...", func() auth.Event {
		return svc.RetryDiscovery(cmd.Context())
	})
	if err != nil {
		return err
	}
	return printOutcome(cmd, application, ev)
}

func runAuthWatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	application, err := newApp(cmd, false)
	if err != nil {
		return err
	}
	defer application.Close()

	f, err := newFormatter(cmd)
	if err != nil {
		return err
	}

	svc := application.Services().Auth
	stream := svc.Events(ctx)

	if _, err := application.Start(ctx); err != nil {
		return fmt.Errorf("failed to resume session: %w", err)
	}

	if w, ok := application.Watcher(); ok {
		if err := svc.WatchStore(ctx, w); err != nil {
			return fmt.Errorf("failed to watch the session store: %w", err)
		}
	} else {
		logging.Info("CLI", "The %s store does not report changes from other processes", application.PortalConfig().Storage.Backend)
	}

	for ev := range stream {
		if err := f.FormatEvent(cli.Record(ev, time.Now())); err != nil {
			return err
		}
	}
	return nil
}
