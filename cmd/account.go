package cmd

import (
	"errors"

	"github.com/spf13/cobra"

	"portal/internal/auth"
	"portal/internal/cli"
	"portal/internal/config"
)

// accountStudent is the --student flag of "portal account use".
var accountStudent string

// accountCmd represents the account command group
var accountCmd = &cobra.Command{
	Use:   "account",
	Short: "List and switch between logged in accounts",
	Long: `Manage the accounts portal keeps logged in.

Each account lives in its own session. Exactly one session is current;
switching loads its tokens and, for parents and guardians, the selected student.

Examples:
  portal account list                        # List all accounts
  portal account current                     # Show the current account
  portal account use 6a1f0a2e                # Switch by session ID prefix
  portal account use 6a1f0a2e --student <id> # Switch and select a student
  portal account add                         # Log in to another account
  portal account remove                      # Log out the current account`,
}

var accountListCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List all accounts",
	Args:    cobra.NoArgs,
	RunE:    runAccountList,
}

var accountCurrentCmd = &cobra.Command{
	Use:   "current",
	Short: "Show the current account",
	Args:  cobra.NoArgs,
	RunE:  runAccountCurrent,
}

var accountShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show one account and its students",
	Args:  cobra.ExactArgs(1),
	RunE:  runAccountShow,
}

var accountUseCmd = &cobra.Command{
	Use:   "use <session-id>",
	Short: "Switch to another account",
	Long: `Switch the current session.

Unless --yes is given you are asked to confirm the switch. With --student the
given student of a parent/guardian account is selected; a student that is not
linked to the account is ignored and the first linked student is used.`,
	Args: cobra.ExactArgs(1),
	RunE: runAccountUse,
}

var accountAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Log in to another account",
	Long: `Log in to an additional account next to the ones already logged in.

The login page opens in your browser. Student accounts cannot be added next
to other accounts, and staff accounts are not supported.`,
	Args: cobra.NoArgs,
	RunE: runAccountAdd,
}

var accountRemoveCmd = &cobra.Command{
	Use:     "remove [session-id]",
	Aliases: []string{"rm"},
	Short:   "Remove an account",
	Long: `Remove the current account, or the given one, and switch to the first
remaining account. Tokens are discarded locally; use "portal auth logout" to
also revoke them at the login service.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAccountRemove,
}

func init() {
	rootCmd.AddCommand(accountCmd)
	accountCmd.AddCommand(accountListCmd)
	accountCmd.AddCommand(accountCurrentCmd)
	accountCmd.AddCommand(accountShowCmd)
	accountCmd.AddCommand(accountUseCmd)
	accountCmd.AddCommand(accountAddCmd)
	accountCmd.AddCommand(accountRemoveCmd)

	accountUseCmd.Flags().StringVar(&accountStudent, "student", "", "UUID of the student to select")
}

func runAccountList(cmd *cobra.Command, args []string) error {
	application, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	f, err := newFormatter(cmd)
	if err != nil {
		return err
	}
	return f.FormatAccounts(cli.Accounts(application.Services().Sessions.Metadata()))
}

func runAccountCurrent(cmd *cobra.Command, args []string) error {
	application, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	sessions := application.Services().Sessions
	p, ok := sessions.CurrentProfile()
	if !ok {
		return errors.New("no current account. Run: portal account add")
	}
	f, err := newFormatter(cmd)
	if err != nil {
		return err
	}
	return f.FormatAccount(cli.Account(sessions.Metadata(), p))
}

func runAccountShow(cmd *cobra.Command, args []string) error {
	application, err := openApp(cmd)
	if err != nil {
		return err
	}
	defer application.Close()

	sessions := application.Services().Sessions
	id, err := parseSessionID(sessions, args[0])
	if err != nil {
		return err
	}
	p, _ := sessions.FindAccountProfile(id)
	f, err := newFormatter(cmd)
	if err != nil {
		return err
	}
	return f.FormatAccount(cli.Account(sessions.Metadata(), p))
}

func runAccountUse(cmd *cobra.Command, args []string) error {
	application, err := startApp(cmd, true)
	if err != nil {
		return err
	}
	defer application.Close()

	svc := application.Services().Auth
	id, err := parseSessionID(svc.Sessions(), args[0])
	if err != nil {
		return err
	}

	ev, err := runOutcome(application, "Switching account...", func() auth.Event {
		return svc.RequestSwitchToProfile(cmd.Context(), id, accountStudent)
	})
	if err != nil {
		return err
	}
	return printOutcome(cmd, application, ev)
}

func runAccountAdd(cmd *cobra.Command, args []string) error {
	application, err := startApp(cmd, true)
	if err != nil {
		return err
	}
	defer application.Close()

	if err := config.RequireIdentity(application.PortalConfig().Identity); err != nil {
		return err
	}

	svc := application.Services().Auth
	ev, err := runOutcome(application, "Waiting for login...", func() auth.Event {
		return svc.RequestAddContextAndLogin(cmd.Context())
	})
	if err != nil {
		return err
	}
	return printOutcome(cmd, application, ev)
}

func runAccountRemove(cmd *cobra.Command, args []string) error {
	application, err := startApp(cmd, false)
	if err != nil {
		return err
	}
	defer application.Close()

	svc := application.Services().Auth
	if len(args) == 1 {
		id, err := parseSessionID(svc.Sessions(), args[0])
		if err != nil {
			return err
		}
		if current, _ := svc.Sessions().CurrentSessionID(); current != id {
			if _, err := runOutcome(application, "Switching account...", func() auth.Event {
				return svc.SwitchContext(cmd.Context(), id, "")
			}); err != nil && !isProviderError(err) {
				return err
			}
		}
	}

	ev, err := runOutcome(application, "Removing account...", func() auth.Event {
		return svc.RemoveCurrentContextAndSwitchIfLast(cmd.Context())
	})
	if err != nil {
		return err
	}
	return printOutcome(cmd, application, ev)
}

// isProviderError reports whether err only means the provider could not be
// reached, which does not prevent local changes.
func isProviderError(err error) bool {
	var connErr *cli.ConnectionError
	return errors.As(err, &connErr)
}
