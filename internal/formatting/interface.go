// Package formatting renders portal's account and authentication views as
// tables, JSON or YAML.
package formatting

import (
	"fmt"
	"io"
	"os"

	"portal/pkg/auth"
)

// OutputFormat represents the desired output format
type OutputFormat string

const (
	FormatTable OutputFormat = "table" // Rich table output
	FormatJSON  OutputFormat = "json"  // JSON output
	FormatYAML  OutputFormat = "yaml"  // YAML output
)

// ParseFormat validates an --output flag value.
func ParseFormat(s string) (OutputFormat, error) {
	switch f := OutputFormat(s); f {
	case FormatTable, FormatJSON, FormatYAML:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", fmt.Errorf("unsupported output format %q (use table, json or yaml)", s)
	}
}

// Options configures the formatter behavior
type Options struct {
	Format    OutputFormat
	NoHeaders bool      // Omit table headers
	Output    io.Writer // Defaults to os.Stdout
}

// Formatter renders portal views.
type Formatter interface {
	FormatAccounts(accounts []auth.AccountStatus) error
	FormatAccount(account auth.AccountStatus) error
	FormatStatus(status auth.StatusResponse) error
	// FormatEvent renders one event of a stream.
	FormatEvent(event auth.EventRecord) error
}

// New creates the formatter for options.Format.
func New(options Options) Formatter {
	if options.Output == nil {
		options.Output = os.Stdout
	}
	switch options.Format {
	case FormatJSON:
		return NewJSONFormatter(options)
	case FormatYAML:
		return NewYAMLFormatter(options)
	default:
		return NewTableFormatter(options)
	}
}
