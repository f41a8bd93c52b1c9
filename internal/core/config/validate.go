package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/hay-kot/criterio"

	"github.com/colonyops/linglenz/internal/core/styles"
)

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// ValidateDeep performs comprehensive validation of the configuration including
// file accessibility, durations and listen addresses. The configPath argument
// specifies the config file location to validate (empty string skips config file check).
// This calls Validate() first for basic structural validation.
func (c *Config) ValidateDeep(configPath string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	return criterio.ValidateStruct(
		c.validateFileAccess(configPath),
		c.validateCorrection(),
		c.validateCapture(),
		criterio.Run("server.addr", c.Server.Addr, validListenAddr),
		criterio.Run("sessions.poll_interval", c.Sessions.PollInterval, positiveDuration),
	)
}

// Warnings returns non-fatal configuration issues.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	if c.Correction.Endpoint == "" && c.APIKey() == "" {
		warnings = append(warnings, ValidationWarning{
			Category: "Correction",
			Item:     c.Correction.APIKeyEnv,
			Message:  "no Gemini API key found in the environment; corrections will fail",
		})
	}

	if len(c.Correction.Models) == 1 {
		warnings = append(warnings, ValidationWarning{
			Category: "Correction",
			Item:     "models",
			Message:  "a single model leaves the waterfall without a fallback",
		})
	}

	if _, ok := styles.GetPalette(c.Theme); !ok {
		warnings = append(warnings, ValidationWarning{
			Category: "Output",
			Item:     "theme",
			Message:  fmt.Sprintf("unknown theme %q, using %s (available: %s)", c.Theme, styles.DefaultTheme, strings.Join(styles.ThemeNames(), ", ")),
		})
	}

	if c.Sessions.PollInterval > 5*time.Second {
		warnings = append(warnings, ValidationWarning{
			Category: "Sessions",
			Item:     "poll_interval",
			Message:  "active session changes may be observed more than a few seconds late",
		})
	}

	return warnings
}

// validateFileAccess checks config file and data directory.
func (c *Config) validateFileAccess(configPath string) error {
	return criterio.ValidateStruct(
		validateConfigFile(configPath),
		criterio.Run("data_dir", c.DataDir, isDirectoryOrNotExist),
	)
}

func validateConfigFile(configPath string) error {
	if configPath == "" {
		return nil
	}

	info, err := os.Stat(configPath)
	if os.IsNotExist(err) {
		return nil // not found is fine, using defaults
	}
	if err != nil {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("cannot access: %w", err))
	}
	if info.IsDir() {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("%s is a directory, not a file", configPath))
	}
	return nil
}

// isDirectoryOrNotExist validates that a path is a directory or doesn't exist.
func isDirectoryOrNotExist(path string) error {
	if path == "" {
		return nil
	}
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil // will be created
	}
	if err != nil {
		return fmt.Errorf("cannot access: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("exists but is not a directory")
	}
	return nil
}

func (c *Config) validateCorrection() error {
	var errs criterio.FieldErrorsBuilder

	seen := make(map[string]bool, len(c.Correction.Models))
	for i, m := range c.Correction.Models {
		if seen[m] {
			errs = errs.Append(fmt.Sprintf("correction.models[%d]", i), fmt.Errorf("duplicate model %q", m))
		}
		seen[m] = true
	}

	if c.Correction.PerModelTimeout <= 0 {
		errs = errs.Append("correction.per_model_timeout", fmt.Errorf("must be positive"))
	}
	if c.Correction.CacheSize < 0 {
		errs = errs.Append("correction.cache_size", fmt.Errorf("cannot be negative"))
	}
	if c.Analysis.AutoRetryDelay < 0 {
		errs = errs.Append("analysis.auto_retry_delay", fmt.Errorf("cannot be negative"))
	}

	return errs.ToError()
}

func (c *Config) validateCapture() error {
	var errs criterio.FieldErrorsBuilder

	if c.Capture.SegmentInterval < 500*time.Millisecond {
		errs = errs.Append("capture.segment_interval", fmt.Errorf("must be at least 500ms, got %s", c.Capture.SegmentInterval))
	}
	if c.Capture.SampleRate < 8000 {
		errs = errs.Append("capture.sample_rate", fmt.Errorf("must be at least 8000 Hz"))
	}
	if c.Capture.Channels < 1 || c.Capture.Channels > 2 {
		errs = errs.Append("capture.channels", fmt.Errorf("must be 1 or 2"))
	}
	if c.Capture.SilenceThreshold < 0 || c.Capture.SilenceThreshold >= 1 {
		errs = errs.Append("capture.silence_threshold", fmt.Errorf("must be in [0, 1)"))
	}

	return errs.ToError()
}

func validListenAddr(addr string) error {
	if addr == "" {
		return fmt.Errorf("cannot be empty")
	}
	if _, _, err := net.SplitHostPort(addr); err != nil {
		return fmt.Errorf("invalid listen address: %w", err)
	}
	return nil
}

func positiveDuration(d time.Duration) error {
	if d <= 0 {
		return fmt.Errorf("must be positive")
	}
	return nil
}
