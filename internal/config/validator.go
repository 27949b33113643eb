package config

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gobwas/glob"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string // The config field path (e.g., "lock.max_wait_ms")
	Value   any    // The invalid value
	Message string // Human-readable error description
}

// Error implements the error interface for ValidationError
func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

// Error implements the error interface for ValidationErrors
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// ValidLogLevels returns the list of valid log levels
func ValidLogLevels() []string {
	return []string{"debug", "info", "warn", "error"}
}

// ValidBackoffStrategies returns the list of valid retry backoff strategies
func ValidBackoffStrategies() []string {
	return []string{"fixed", "exponential", "exponential-jitter"}
}

// ValidErrorCategories returns the categories the classifier can produce
func ValidErrorCategories() []string {
	return []string{"transient", "resource", "logic", "permanent", "timeout", "unknown"}
}

// ValidColorModes returns the accepted ui.color values
func ValidColorModes() []string {
	return []string{"auto", "always", "never"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	errors = append(errors, c.validateState()...)
	errors = append(errors, c.validateLock()...)
	errors = append(errors, c.validateRetry()...)
	errors = append(errors, c.validateLogging()...)
	errors = append(errors, c.validatePlans()...)
	errors = append(errors, c.validateMetrics()...)
	errors = append(errors, c.validateUI()...)

	return errors
}

func (c *Config) validateState() []ValidationError {
	if strings.TrimSpace(c.State.DefaultPath) == "" {
		return []ValidationError{{
			Field:   "state.default_path",
			Value:   c.State.DefaultPath,
			Message: "must not be empty",
		}}
	}
	return nil
}

// validateLock validates the LockConfig
func (c *Config) validateLock() []ValidationError {
	var errors []ValidationError

	positive := []struct {
		field string
		value int
	}{
		{"lock.max_wait_ms", c.Lock.MaxWaitMs},
		{"lock.stale_after_ms", c.Lock.StaleAfterMs},
		{"lock.initial_delay_ms", c.Lock.InitialDelayMs},
		{"lock.max_delay_ms", c.Lock.MaxDelayMs},
	}
	for _, p := range positive {
		if p.value <= 0 {
			errors = append(errors, ValidationError{
				Field:   p.field,
				Value:   p.value,
				Message: "must be positive",
			})
		}
	}

	if c.Lock.InitialDelayMs > 0 && c.Lock.MaxDelayMs > 0 && c.Lock.InitialDelayMs > c.Lock.MaxDelayMs {
		errors = append(errors, ValidationError{
			Field:   "lock.initial_delay_ms",
			Value:   c.Lock.InitialDelayMs,
			Message: fmt.Sprintf("must not exceed lock.max_delay_ms (%d)", c.Lock.MaxDelayMs),
		})
	}

	return errors
}

// validateRetry validates the default RetryPolicy
func (c *Config) validateRetry() []ValidationError {
	var errors []ValidationError

	if c.Retry.MaxRetries < 0 {
		errors = append(errors, ValidationError{
			Field:   "retry.max_retries",
			Value:   c.Retry.MaxRetries,
			Message: "must be non-negative",
		})
	}

	if !slices.Contains(ValidBackoffStrategies(), c.Retry.BackoffStrategy) {
		errors = append(errors, ValidationError{
			Field:   "retry.backoff_strategy",
			Value:   c.Retry.BackoffStrategy,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidBackoffStrategies(), ", ")),
		})
	}

	if c.Retry.InitialDelayMs < 0 {
		errors = append(errors, ValidationError{
			Field:   "retry.initial_delay_ms",
			Value:   c.Retry.InitialDelayMs,
			Message: "must be non-negative",
		})
	}
	if c.Retry.MaxDelayMs < c.Retry.InitialDelayMs {
		errors = append(errors, ValidationError{
			Field:   "retry.max_delay_ms",
			Value:   c.Retry.MaxDelayMs,
			Message: fmt.Sprintf("must be at least retry.initial_delay_ms (%d)", c.Retry.InitialDelayMs),
		})
	}

	for i, cat := range c.Retry.RetryableCategories {
		if !slices.Contains(ValidErrorCategories(), cat) {
			errors = append(errors, ValidationError{
				Field:   fmt.Sprintf("retry.retryable_categories[%d]", i),
				Value:   cat,
				Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidErrorCategories(), ", ")),
			})
		}
	}

	return errors
}

// validateLogging validates the LoggingConfig
func (c *Config) validateLogging() []ValidationError {
	var errors []ValidationError

	for field, level := range map[string]string{
		"logging.level":         c.Logging.Level,
		"logging.console_level": c.Logging.ConsoleLevel,
	} {
		if level != "" && !slices.Contains(ValidLogLevels(), strings.ToLower(level)) {
			errors = append(errors, ValidationError{
				Field:   field,
				Value:   level,
				Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidLogLevels(), ", ")),
			})
		}
	}

	if c.Logging.MaxSizeMB < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_size_mb",
			Value:   c.Logging.MaxSizeMB,
			Message: "must be non-negative",
		})
	}
	if c.Logging.MaxBackups < 0 {
		errors = append(errors, ValidationError{
			Field:   "logging.max_backups",
			Value:   c.Logging.MaxBackups,
			Message: "must be non-negative",
		})
	}

	// Map iteration order is random; keep output stable.
	slices.SortFunc(errors, func(a, b ValidationError) int { return strings.Compare(a.Field, b.Field) })
	return errors
}

// validatePlans checks that every discovery pattern compiles
func (c *Config) validatePlans() []ValidationError {
	var errors []ValidationError

	check := func(field string, patterns []string) {
		for i, p := range patterns {
			if _, err := glob.Compile(p, '/'); err != nil {
				errors = append(errors, ValidationError{
					Field:   fmt.Sprintf("%s[%d]", field, i),
					Value:   p,
					Message: fmt.Sprintf("invalid glob pattern: %v", err),
				})
			}
		}
	}
	check("plans.include", c.Plans.Include)
	check("plans.exclude", c.Plans.Exclude)

	return errors
}

func (c *Config) validateMetrics() []ValidationError {
	if c.Metrics.Enabled && strings.TrimSpace(c.Metrics.TextfilePath) == "" {
		return []ValidationError{{
			Field:   "metrics.textfile_path",
			Value:   c.Metrics.TextfilePath,
			Message: "is required when metrics.enabled is true",
		}}
	}
	return nil
}

// validateUI validates the UIConfig
func (c *Config) validateUI() []ValidationError {
	var errors []ValidationError

	if !slices.Contains(ValidColorModes(), c.UI.Color) {
		errors = append(errors, ValidationError{
			Field:   "ui.color",
			Value:   c.UI.Color,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidColorModes(), ", ")),
		})
	}
	if c.UI.StatusBarWidth < 1 || c.UI.StatusBarWidth > 100 {
		errors = append(errors, ValidationError{
			Field:   "ui.status_bar_width",
			Value:   c.UI.StatusBarWidth,
			Message: "must be between 1 and 100",
		})
	}
	if c.UI.RunningListWidth < 4 {
		errors = append(errors, ValidationError{
			Field:   "ui.running_list_width",
			Value:   c.UI.RunningListWidth,
			Message: "must be at least 4",
		})
	}

	return errors
}
