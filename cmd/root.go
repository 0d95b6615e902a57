package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"portal/internal/cli"
	"portal/internal/config"
)

// Exit codes for CLI commands.
const (
	// ExitCodeSuccess indicates successful execution.
	ExitCodeSuccess = 0
	// ExitCodeError indicates a general error (command failed, invalid arguments, provider unreachable).
	ExitCodeError = 1
	// ExitCodeAuthRequired indicates authentication is required but not available.
	ExitCodeAuthRequired = 2
	// ExitCodeAuthFailed indicates a login was attempted and rejected.
	ExitCodeAuthFailed = 3
)

// globalFlags holds the persistent flags shared by every command.
var globalFlags cli.GlobalFlags

// rootCmd represents the base command for the portal application.
// It is the entry point when the application is called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "portal",
	Short: "Switch between the school portal accounts you are logged in to",
	Long: `portal keeps several school portal accounts logged in at the same time
and switches between them. Parents and guardians can link multiple accounts
and pick the student they act for; a student account is always logged in alone.

Sessions are stored in the configured backend (a file by default) and
resumed on the next invocation.`,
	// SilenceUsage prevents Cobra from printing the usage message on errors that are handled by the application.
	SilenceUsage: true,
	// Errors are printed by Execute so that configuration errors get their details.
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return globalFlags.InitLogging()
	},
}

// SetVersion sets the version for the root command.
// This function is typically called from the main package to inject the application version at build time.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute is the main entry point for the CLI application.
// This function is called by main.main().
func Execute() {
	rootCmd.SetVersionTemplate(`{{printf "portal version %s\n" .Version}}`)

	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, errorMessage(err))
		os.Exit(getExitCode(err))
	}
}

// errorMessage renders err for the terminal. Configuration errors include
// the file, the error type and suggestions.
func errorMessage(err error) string {
	var ce config.ConfigurationError
	if errors.As(err, &ce) {
		return ce.DetailedError()
	}
	return cli.FormatError(err)
}

// getExitCode determines the appropriate exit code based on the error type.
// This provides semantic exit codes for scripting and automation.
func getExitCode(err error) int {
	if err == nil {
		return ExitCodeSuccess
	}

	var authRequired *cli.AuthRequiredError
	if errors.As(err, &authRequired) {
		return ExitCodeAuthRequired
	}

	var authExpired *cli.AuthExpiredError
	if errors.As(err, &authExpired) {
		return ExitCodeAuthRequired
	}

	var authFailed *cli.AuthFailedError
	if errors.As(err, &authFailed) {
		return ExitCodeAuthFailed
	}

	return ExitCodeError
}

func init() {
	cli.RegisterGlobalFlags(rootCmd, &globalFlags)
	rootCmd.AddCommand(newVersionCmd())
}
