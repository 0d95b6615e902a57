package config

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidationError represents a validation error with context
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

// Error implements the error interface
func (ve ValidationError) Error() string {
	if ve.Field == "" {
		return ve.Message
	}
	return fmt.Sprintf("field '%s': %s", ve.Field, ve.Message)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for multiple validation errors
func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	if len(ve) == 1 {
		return ve[0].Error()
	}

	var messages []string
	for _, err := range ve {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(messages, "; "))
}

// HasErrors returns true if there are any validation errors
func (ve ValidationErrors) HasErrors() bool {
	return len(ve) > 0
}

// Add adds a new validation error
func (ve *ValidationErrors) Add(field, message string, value ...interface{}) {
	var val interface{}
	if len(value) > 0 {
		val = value[0]
	}
	*ve = append(*ve, ValidationError{
		Field:   field,
		Value:   val,
		Message: message,
	})
}

// ValidateOneOf checks if a value is in a list of allowed values
func ValidateOneOf(field, value string, allowed []string) error {
	for _, allowedValue := range allowed {
		if value == allowedValue {
			return nil
		}
	}
	return ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

// ValidateURL checks that value is an absolute http(s) URL. Empty values pass.
func ValidateURL(field, value string) error {
	if value == "" {
		return nil
	}
	u, err := url.Parse(value)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return ValidationError{
			Field:   field,
			Value:   value,
			Message: "must be an absolute http or https URL",
		}
	}
	return nil
}

// Validate checks a loaded configuration. The identity issuer and client ID
// are not required here: commands that talk to the provider check them with
// RequireIdentity.
func Validate(cfg PortalConfig) error {
	var errs ValidationErrors

	if err := ValidateURL("identity.issuer", cfg.Identity.Issuer); err != nil {
		errs = append(errs, err.(ValidationError))
	}
	if err := ValidateURL("identity.redirectURI", cfg.Identity.RedirectURI); err != nil {
		errs = append(errs, err.(ValidationError))
	}
	if err := ValidateURL("identity.postLogoutRedirectURI", cfg.Identity.PostLogoutRedirectURI); err != nil {
		errs = append(errs, err.(ValidationError))
	}
	if p := cfg.Identity.CallbackPort; p < 0 || p > 65535 {
		errs.Add("identity.callbackPort", "must be between 1 and 65535", p)
	}

	backends := []string{
		string(StorageBackendFile), string(StorageBackendKeyring),
		string(StorageBackendRedis), string(StorageBackendMemory),
	}
	if cfg.Storage.Backend != "" {
		if err := ValidateOneOf("storage.backend", string(cfg.Storage.Backend), backends); err != nil {
			errs = append(errs, err.(ValidationError))
		}
	}
	if cfg.Storage.Backend == StorageBackendRedis && cfg.Storage.Redis.Addr == "" {
		errs.Add("storage.redis.addr", "is required for the redis backend")
	}

	if cfg.Timeouts.LoginCheck < 0 {
		errs.Add("timeouts.loginCheck", "must not be negative", cfg.Timeouts.LoginCheck)
	}
	if cfg.Timeouts.Revoke < 0 {
		errs.Add("timeouts.revoke", "must not be negative", cfg.Timeouts.Revoke)
	}

	if !errs.HasErrors() {
		return nil
	}

	suggestions := make([]string, 0, len(errs))
	for _, e := range errs {
		suggestions = append(suggestions, fmt.Sprintf("Fix %s", e.Field))
	}
	return ConfigurationError{
		ErrorType:   "validation",
		Message:     "invalid configuration",
		Details:     errs.Error(),
		Suggestions: suggestions,
	}
}

// RequireIdentity checks the identity settings needed to reach the provider.
func RequireIdentity(cfg IdentityConfig) error {
	var errs ValidationErrors
	if cfg.Issuer == "" {
		errs.Add("identity.issuer", "is required to log in")
	}
	if cfg.ClientID == "" {
		errs.Add("identity.clientID", "is required to log in")
	}
	if !errs.HasErrors() {
		return nil
	}
	return ConfigurationError{
		ErrorType: "validation",
		Message:   "identity provider is not configured",
		Details:   errs.Error(),
		Suggestions: []string{
			"Set identity.issuer and identity.clientID in config.yaml",
		},
	}
}
