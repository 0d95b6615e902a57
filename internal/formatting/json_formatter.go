package formatting

import (
	"encoding/json"
	"fmt"

	"portal/pkg/auth"
)

// JSONFormatter provides structured JSON output formatting
type JSONFormatter struct {
	options Options
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(options Options) *JSONFormatter {
	return &JSONFormatter{options: options}
}

func (f *JSONFormatter) FormatAccounts(accounts []auth.AccountStatus) error {
	if accounts == nil {
		accounts = []auth.AccountStatus{}
	}
	return f.write(accounts)
}

func (f *JSONFormatter) FormatAccount(account auth.AccountStatus) error {
	return f.write(account)
}

func (f *JSONFormatter) FormatStatus(status auth.StatusResponse) error {
	return f.write(status)
}

// FormatEvent writes one compact JSON object per line.
func (f *JSONFormatter) FormatEvent(event auth.EventRecord) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}
	_, err = fmt.Fprintln(f.options.Output, string(data))
	return err
}

func (f *JSONFormatter) write(v any) error {
	_, err := fmt.Fprintln(f.options.Output, PrettyJSON(v))
	return err
}
