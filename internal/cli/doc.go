// Package cli provides the building blocks shared by portal's commands.
//
// It keeps the commands themselves thin:
//
//   - GlobalFlags registers the persistent flags and turns them into a loaded
//     configuration and formatter options.
//   - ErrorForEvent maps failed authentication outcomes to typed errors that
//     carry actionable guidance and drive the process exit code.
//   - Accounts, Account, Status and Record convert session and auth types
//     into the pkg/auth views rendered by the formatting package.
//   - Prompter and ConfirmInterceptor ask for confirmation before a session
//     switch, using readline.
//   - WithSpinner shows a progress indicator around slow provider calls.
//
// Messages printed directly to the terminal use FormatError, FormatSuccess
// and FormatWarning for a consistent look.
package cli
