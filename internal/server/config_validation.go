// config_validation.go - Startup validation of the environment.
//
// Every problem is collected and reported at once so a misconfigured
// deployment fails before it accepts a request.
package server

import (
	"fmt"
	"mime"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// ConfigValidationError represents a configuration validation error.
type ConfigValidationError struct {
	Field   string
	Message string
}

func (e ConfigValidationError) Error() string {
	return fmt.Sprintf("config validation failed for %s: %s", e.Field, e.Message)
}

// ConfigValidator collects validation errors.
type ConfigValidator struct {
	errors []ConfigValidationError
}

func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{}
}

func (v *ConfigValidator) AddError(field, message string) {
	v.errors = append(v.errors, ConfigValidationError{Field: field, Message: message})
}

func (v *ConfigValidator) HasErrors() bool {
	return len(v.errors) > 0
}

func (v *ConfigValidator) Errors() []ConfigValidationError {
	return v.errors
}

// ErrorString returns a formatted string of all errors.
func (v *ConfigValidator) ErrorString() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Configuration validation failed with %d error(s):\n", len(v.errors))
	for i, err := range v.errors {
		fmt.Fprintf(&sb, "  %d. %s\n", i+1, err.Error())
	}
	return sb.String()
}

// ValidateAddr accepts ":port" or "host:port" with a port in 1-65535.
func (v *ConfigValidator) ValidateAddr(key, value string) {
	if value == "" {
		return
	}
	i := strings.LastIndex(value, ":")
	if i < 0 {
		v.AddError(key, "must be host:port or :port")
		return
	}
	port, err := strconv.Atoi(value[i+1:])
	if err != nil {
		v.AddError(key, "port must be a number")
		return
	}
	if port < 1 || port > 65535 {
		v.AddError(key, "port must be between 1 and 65535")
	}
}

// ValidatePostgresURL checks for a postgres:// or postgresql:// URL.
func (v *ConfigValidator) ValidatePostgresURL(key, value string) {
	if value == "" {
		return
	}
	u, err := url.Parse(value)
	if err != nil {
		v.AddError(key, fmt.Sprintf("invalid URL format: %v", err))
		return
	}
	if u.Scheme != "postgres" && u.Scheme != "postgresql" {
		v.AddError(key, "must be a valid PostgreSQL connection string")
	}
}

// ValidateFileName rejects names carrying a directory component.
func (v *ConfigValidator) ValidateFileName(key, value string) {
	if value == "" {
		v.AddError(key, "must not be empty")
		return
	}
	if value != filepath.Base(value) || value == "." || value == ".." {
		v.AddError(key, "must be a plain file name without directories")
	}
}

// ValidateMediaType checks value parses as a MIME media type.
func (v *ConfigValidator) ValidateMediaType(key, value string) {
	if value == "" {
		return
	}
	if _, _, err := mime.ParseMediaType(value); err != nil {
		v.AddError(key, fmt.Sprintf("invalid media type: %v", err))
	}
}

// ValidateDuration checks value parses as a positive Go duration.
func (v *ConfigValidator) ValidateDuration(key, value string) {
	if value == "" {
		return
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		v.AddError(key, "must be a valid duration (e.g., 10m, 1h)")
		return
	}
	if d <= 0 {
		v.AddError(key, "must be positive")
	}
}

// ValidateEnum validates that a value is one of allowed options.
func (v *ConfigValidator) ValidateEnum(key, value string, allowed []string) {
	for _, opt := range allowed {
		if value == opt {
			return
		}
	}
	v.AddError(key, fmt.Sprintf("must be one of: %s (got: %s)", strings.Join(allowed, ", "), value))
}

// ValidateConfig checks the resolved server configuration together with the
// environment-only settings.
func ValidateConfig(cfg Config, databaseURL string) error {
	v := NewConfigValidator()

	v.ValidateAddr("SLOTDROP_ADDR", cfg.Addr)
	if cfg.DataDir == "" {
		v.AddError("SLOTDROP_DATA_DIR", "must not be empty")
	}
	v.ValidateFileName("SLOTDROP_SLOT_NAME", cfg.SlotName)
	if strings.HasPrefix(cfg.SlotName, stagingPrefix) {
		v.AddError("SLOTDROP_SLOT_NAME", "must not start with "+stagingPrefix)
	}
	v.ValidateMediaType("SLOTDROP_CONTENT_TYPE", cfg.ContentType)
	v.ValidatePostgresURL("DATABASE_URL", databaseURL)

	if mc, ok := LoadMirrorConfig(); ok {
		if _, _, err := normaliseEndpoint(mc.Endpoint); err != nil {
			v.AddError("SLOTDROP_S3_ENDPOINT", err.Error())
		}
		required := [][2]string{
			{"SLOTDROP_S3_ACCESS_KEY", mc.AccessKey},
			{"SLOTDROP_S3_SECRET_KEY", mc.SecretKey},
			{"SLOTDROP_BUCKET", mc.Bucket},
		}
		for _, kv := range required {
			if kv[1] == "" {
				v.AddError(kv[0], "required when SLOTDROP_S3_ENDPOINT is set")
			}
		}
	}

	v.ValidateDuration("SLOTDROP_SWEEP_INTERVAL", os.Getenv("SLOTDROP_SWEEP_INTERVAL"))
	v.ValidateDuration("SLOTDROP_SWEEP_MAX_AGE", os.Getenv("SLOTDROP_SWEEP_MAX_AGE"))
	v.ValidateEnum("SLOTDROP_LOG_FORMAT", os.Getenv("SLOTDROP_LOG_FORMAT"), []string{"", "json", "text"})
	v.ValidateEnum("SLOTDROP_LOG_LEVEL", os.Getenv("SLOTDROP_LOG_LEVEL"), []string{"", "debug", "info", "warn", "error"})
	v.ValidateEnum("SLOTDROP_ENV", os.Getenv("SLOTDROP_ENV"), []string{"", "development", "production", "staging"})

	if v.HasErrors() {
		return fmt.Errorf("%s", v.ErrorString())
	}
	return nil
}
