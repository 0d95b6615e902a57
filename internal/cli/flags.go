package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"portal/internal/config"
	"portal/internal/formatting"
	"portal/pkg/logging"
)

// GlobalFlags holds the persistent flag values shared by every portal command.
type GlobalFlags struct {
	// ConfigPath is the directory holding config.yaml
	ConfigPath string
	// Storage overrides storage.backend from the configuration
	Storage string
	// LogLevel is the minimum level written to stderr
	LogLevel string
	// LogFormat selects the text or json log handler
	LogFormat string
	// OutputFormat specifies the desired output format (table, json, yaml)
	OutputFormat string
	// NoHeaders suppresses the header row in table output
	NoHeaders bool
	// Quiet suppresses progress indicators and non-essential output
	Quiet bool
	// Yes skips confirmation prompts
	Yes bool
}

// RegisterGlobalFlags registers the persistent flags on the root command.
//
// The registered flags are:
//   - --config-path: Configuration directory (env: PORTAL_CONFIG_PATH)
//   - --storage: Storage backend override (file, keyring, redis, memory)
//   - --log-level: Log level (debug, info, warn, error)
//   - --log-format: Log format (text, json)
//   - --output/-o: Output format (table, json, yaml), default: "table"
//   - --no-headers: Suppress header row in table output
//   - --quiet/-q: Suppress non-essential output
//   - --yes/-y: Do not ask for confirmation
func RegisterGlobalFlags(cmd *cobra.Command, flags *GlobalFlags) {
	cmd.PersistentFlags().StringVar(&flags.ConfigPath, "config-path", defaultConfigPath(), "Configuration directory (env: PORTAL_CONFIG_PATH)")
	cmd.PersistentFlags().StringVar(&flags.Storage, "storage", "", "Storage backend: file, keyring, redis or memory (overrides config.yaml)")
	cmd.PersistentFlags().StringVar(&flags.LogLevel, "log-level", "warn", "Log level: debug, info, warn or error")
	cmd.PersistentFlags().StringVar(&flags.LogFormat, "log-format", string(logging.FormatText), "Log format: text or json")
	cmd.PersistentFlags().StringVarP(&flags.OutputFormat, "output", "o", string(formatting.FormatTable), "Output format (table, json, yaml)")
	cmd.PersistentFlags().BoolVar(&flags.NoHeaders, "no-headers", false, "Suppress header row in table output")
	cmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "Suppress non-essential output")
	cmd.PersistentFlags().BoolVarP(&flags.Yes, "yes", "y", false, "Do not ask for confirmation before switching accounts")
}

func defaultConfigPath() string {
	if p := os.Getenv("PORTAL_CONFIG_PATH"); p != "" {
		return p
	}
	p, err := config.GetDefaultConfigPath()
	if err != nil {
		return ""
	}
	return p
}

// InitLogging configures pkg/logging from the log flags.
func (f *GlobalFlags) InitLogging() error {
	level, err := logging.ParseLevel(f.LogLevel)
	if err != nil {
		return err
	}
	format := logging.Format(strings.ToLower(f.LogFormat))
	switch format {
	case logging.FormatText, logging.FormatJSON:
	default:
		return fmt.Errorf("unsupported log format %q (use text or json)", f.LogFormat)
	}
	logging.Init(level, format, os.Stderr)
	return nil
}

// LoadConfig loads config.yaml from ConfigPath and applies the --storage override.
func (f *GlobalFlags) LoadConfig() (config.PortalConfig, error) {
	cfg, err := config.LoadConfig(f.ConfigPath)
	if err != nil {
		return config.PortalConfig{}, err
	}
	if f.Storage != "" {
		allowed := []string{
			string(config.StorageBackendFile),
			string(config.StorageBackendKeyring),
			string(config.StorageBackendRedis),
			string(config.StorageBackendMemory),
		}
		if err := config.ValidateOneOf("--storage", f.Storage, allowed); err != nil {
			return config.PortalConfig{}, err
		}
		cfg.Storage.Backend = config.StorageBackend(f.Storage)
	}
	return cfg, nil
}

// FormatterOptions converts the output flags into formatting options.
func (f *GlobalFlags) FormatterOptions() (formatting.Options, error) {
	format, err := formatting.ParseFormat(f.OutputFormat)
	if err != nil {
		return formatting.Options{}, err
	}
	return formatting.Options{
		Format:    format,
		NoHeaders: f.NoHeaders,
	}, nil
}
