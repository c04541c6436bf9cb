package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// RegisterCustomValidators registers Warden-specific validation rules.
// Must be called before validating Config.
func RegisterCustomValidators(v *validator.Validate) error {
	if err := v.RegisterValidation("telemetry_output", validateTelemetryOutput); err != nil {
		return fmt.Errorf("failed to register telemetry_output validator: %w", err)
	}
	if err := v.RegisterValidation("key_hash", validateKeyHash); err != nil {
		return fmt.Errorf("failed to register key_hash validator: %w", err)
	}
	return nil
}

// validateTelemetryOutput accepts "off", "stdout", or "file://<absolute-path>".
func validateTelemetryOutput(fl validator.FieldLevel) bool {
	output := fl.Field().String()

	if output == "off" || output == "stdout" {
		return true
	}
	if strings.HasPrefix(output, "file://") {
		path := strings.TrimPrefix(output, "file://")
		return path != "" && filepath.IsAbs(path)
	}
	return false
}

// validateKeyHash accepts "sha256:<hex>" or PHC-format Argon2id key hashes.
func validateKeyHash(fl validator.FieldLevel) bool {
	h := fl.Field().String()
	return strings.HasPrefix(h, "sha256:") || strings.HasPrefix(h, "$argon2id$")
}

// Validate validates the Config using struct tags and cross-field rules.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())

	if err := RegisterCustomValidators(v); err != nil {
		return err
	}

	if err := v.Struct(c); err != nil {
		return formatValidationErrors(err)
	}

	if err := c.validateDurations(); err != nil {
		return err
	}

	if c.Journal.Backend == "sqlite" && c.Journal.Path == "" {
		return errors.New("journal: path is required when backend is sqlite")
	}
	return nil
}

// validateDurations checks every duration-typed string field parses.
func (c *Config) validateDurations() error {
	fields := map[string]string{
		"server.shutdown_timeout":  c.Server.ShutdownTimeout,
		"approvals.ttl":            c.Approvals.TTL,
		"approvals.sweep_interval": c.Approvals.SweepInterval,
	}
	for name, value := range fields {
		if value == "" {
			continue
		}
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("%s: invalid duration %q", name, value)
		}
	}
	return nil
}

// formatValidationErrors converts validator.ValidationErrors to user-friendly
// messages.
func formatValidationErrors(err error) error {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		var messages []string
		for _, e := range validationErrors {
			messages = append(messages, formatSingleValidationError(e))
		}
		return errors.New(strings.Join(messages, "; "))
	}
	return err
}

// formatSingleValidationError creates a user-friendly message for one error.
func formatSingleValidationError(e validator.FieldError) string {
	field := e.Namespace()
	tag := e.Tag()

	switch tag {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, e.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, e.Param())
	case "hostname_port":
		return fmt.Sprintf("%s must be a valid host:port", field)
	case "telemetry_output":
		return fmt.Sprintf("%s must be 'off', 'stdout', or 'file://<absolute-path>'", field)
	case "key_hash":
		return fmt.Sprintf("%s must start with 'sha256:' or '$argon2id$'", field)
	default:
		return fmt.Sprintf("%s failed validation: %s", field, tag)
	}
}
