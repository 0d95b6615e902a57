package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"

	"portal/internal/auth"
	"portal/internal/session"
	"portal/pkg/logging"
)

// Prompter asks yes/no questions on the terminal. Nil streams default to
// the process's stdin and stdout.
type Prompter struct {
	Stdin  io.ReadCloser
	Stdout io.Writer
}

// Confirm asks question and reports whether the answer was yes. Ctrl+C and
// Ctrl+D count as no.
func (p Prompter) Confirm(question string) (bool, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          question + " [y/N]: ",
		InterruptPrompt: "^C",
		EOFPrompt:       "no",
		Stdin:           p.Stdin,
		Stdout:          p.Stdout,
	})
	if err != nil {
		return false, fmt.Errorf("failed to create readline instance: %w", err)
	}
	defer rl.Close()

	line, err := rl.Readline()
	if errors.Is(err, readline.ErrInterrupt) || errors.Is(err, io.EOF) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("readline error: %w", err)
	}
	return isYes(line), nil
}

func isYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// ConfirmInterceptor returns a switch interceptor that asks confirm before
// every requested switch. The question runs in its own goroutine so that a
// cancelled switch does not wait for the user.
func ConfirmInterceptor(confirm func(question string) (bool, error), sessions *session.Manager) auth.Interceptor {
	return func(_ context.Context, req auth.SwitchRequest) auth.Answer {
		question := describeSwitch(req, sessions)
		answers := make(chan bool, 1)
		go func() {
			defer close(answers)
			ok, err := confirm(question)
			if err != nil {
				logging.Warn("CLI", "Confirmation prompt failed: %v", err)
				return
			}
			answers <- ok
		}()
		return auth.Stream(answers)
	}
}

func describeSwitch(req auth.SwitchRequest, sessions *session.Manager) string {
	if req.AddAccount {
		return "Log in to another account?"
	}
	p, ok := sessions.FindAccountProfile(req.SessionID)
	if !ok {
		return fmt.Sprintf("Switch to session %s?", req.SessionID)
	}
	if req.Student != "" {
		for _, s := range p.Students {
			if s.UUID == req.Student {
				return fmt.Sprintf("Switch to %s (student %s)?", p.DisplayName(), s.Name)
			}
		}
	}
	return fmt.Sprintf("Switch to %s?", p.DisplayName())
}
