package formatting

import (
	"fmt"

	"gopkg.in/yaml.v3"

	"portal/pkg/auth"
)

// YAMLFormatter provides YAML output formatting
type YAMLFormatter struct {
	options Options
}

// NewYAMLFormatter creates a new YAML formatter
func NewYAMLFormatter(options Options) *YAMLFormatter {
	return &YAMLFormatter{options: options}
}

func (f *YAMLFormatter) FormatAccounts(accounts []auth.AccountStatus) error {
	if accounts == nil {
		accounts = []auth.AccountStatus{}
	}
	return f.write(accounts)
}

func (f *YAMLFormatter) FormatAccount(account auth.AccountStatus) error {
	return f.write(account)
}

func (f *YAMLFormatter) FormatStatus(status auth.StatusResponse) error {
	return f.write(status)
}

// FormatEvent writes each event as its own YAML document.
func (f *YAMLFormatter) FormatEvent(event auth.EventRecord) error {
	if _, err := fmt.Fprintln(f.options.Output, "---"); err != nil {
		return err
	}
	return f.write(event)
}

func (f *YAMLFormatter) write(v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to format YAML: %w", err)
	}
	_, err = f.options.Output.Write(data)
	return err
}
