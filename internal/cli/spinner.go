package cli

import (
	"os"
	"time"

	"github.com/briandowns/spinner"
)

// WithSpinner runs fn while a spinner shows message on stderr. The spinner is
// skipped in quiet mode.
func WithSpinner[T any](quiet bool, message string, fn func() (T, error)) (T, error) {
	if quiet {
		return fn()
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(os.Stderr))
	s.Suffix = " " + message
	s.Start()
	defer s.Stop()
	return fn()
}
