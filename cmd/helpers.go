package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"portal/internal/app"
	"portal/internal/auth"
	"portal/internal/cli"
	"portal/internal/formatting"
	"portal/internal/session"
	"portal/pkg/logging"
)

// openApp bootstraps the application and loads the persisted metadata
// without contacting the identity provider.
func openApp(cmd *cobra.Command) (*app.Application, error) {
	application, err := newApp(cmd, false)
	if err != nil {
		return nil, err
	}
	if err := application.Services().Sessions.Load(cmd.Context()); err != nil {
		application.Close()
		return nil, err
	}
	return application, nil
}

// startApp bootstraps the application and resumes the current session. With
// confirm set, requested switches are confirmed on the terminal unless --yes
// was given.
func startApp(cmd *cobra.Command, confirm bool) (*app.Application, error) {
	application, err := newApp(cmd, confirm)
	if err != nil {
		return nil, err
	}

	ev, err := cli.WithSpinner(globalFlags.Quiet, "Resuming session...", func() (auth.Event, error) {
		return application.Start(cmd.Context())
	})
	if err != nil {
		application.Close()
		return nil, fmt.Errorf("failed to resume session: %w", err)
	}
	if ev.Failed() {
		logging.Debug("CLI", "Resume finished with %s: %s", ev.Kind, ev.Message())
	}
	return application, nil
}

func newApp(cmd *cobra.Command, confirm bool) (*app.Application, error) {
	cfg, err := globalFlags.LoadConfig()
	if err != nil {
		return nil, err
	}

	appCfg := app.NewConfig(globalFlags.ConfigPath)
	appCfg.PortalConfig = &cfg
	appCfg.OnAuthURL = func(authURL string) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Opening the login page in your browser. If it does not open, visit:\n  %s\n", authURL)
	}
	if confirm && !globalFlags.Yes {
		appCfg.Interceptor = func(sessions *session.Manager) auth.Interceptor {
			prompter := cli.Prompter{Stdout: cmd.ErrOrStderr()}
			return cli.ConfirmInterceptor(prompter.Confirm, sessions)
		}
	}
	return app.NewApplication(appCfg)
}

// newFormatter creates the formatter selected by --output, writing to the
// command's output stream.
func newFormatter(cmd *cobra.Command) (formatting.Formatter, error) {
	opts, err := globalFlags.FormatterOptions()
	if err != nil {
		return nil, err
	}
	opts.Output = cmd.OutOrStdout()
	return formatting.New(opts), nil
}

// runOutcome runs op behind a spinner and turns a failed outcome into an error.
func runOutcome(application *app.Application, message string, op func() auth.Event) (auth.Event, error) {
	ev, _ := cli.WithSpinner(globalFlags.Quiet, message, func() (auth.Event, error) {
		return op(), nil
	})
	return ev, cli.ErrorForEvent(ev, application.PortalConfig().Identity.Issuer)
}

// printOutcome reports a successful outcome. Table output gets a one-line
// message, the other formats the resulting account.
func printOutcome(cmd *cobra.Command, application *app.Application, ev auth.Event) error {
	if globalFlags.OutputFormat != "" && globalFlags.OutputFormat != string(formatting.FormatTable) {
		f, err := newFormatter(cmd)
		if err != nil {
			return err
		}
		return f.FormatEvent(cli.Record(ev, time.Now()))
	}
	if globalFlags.Quiet {
		return nil
	}
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, cli.FormatSuccess(ev.Message()))
	if ev.LogoutURL != "" {
		fmt.Fprintf(out, "To end the session at the login service, visit:\n  %s\n", ev.LogoutURL)
	}
	if p, ok := application.Services().Sessions.CurrentProfile(); ok && !ev.Authenticated {
		fmt.Fprintln(out, cli.FormatWarning(fmt.Sprintf("%s is not logged in. Run: portal auth login", p.DisplayName())))
	}
	return nil
}

// parseSessionID accepts a full session ID or the unique prefix shown by
// "portal account list".
func parseSessionID(sessions *session.Manager, arg string) (session.ID, error) {
	if id, err := session.ParseID(arg); err == nil {
		return id, nil
	}
	var match session.ID
	matches := 0
	for _, p := range sessions.Profiles() {
		if arg != "" && strings.HasPrefix(p.SessionID.String(), arg) {
			match = p.SessionID
			matches++
		}
	}
	switch matches {
	case 0:
		return session.Nil, fmt.Errorf("no account matches %q. Run: portal account list", arg)
	case 1:
		return match, nil
	default:
		return session.Nil, fmt.Errorf("%q matches %d accounts, use more characters", arg, matches)
	}
}
