package config

import (
	"fmt"
	"net/url"
	"slices"
	"strings"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/lucasb-eyer/go-colorful"
)

// ValidationError represents a single validation failure
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s (got: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

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

// ValidBackends returns the list of valid capture backends
func ValidBackends() []string {
	return []string{"screenshot", "coregraphics"}
}

// ValidPolicies returns the list of valid detection policies
func ValidPolicies() []string {
	return []string{"markers", "components"}
}

// Validate checks the Config for invalid values and returns all validation errors found
func (c *Config) Validate() []ValidationError {
	var errs []ValidationError
	errs = append(errs, c.validateCapture()...)
	errs = append(errs, c.validateDetect()...)
	errs = append(errs, c.validateOverlay()...)
	errs = append(errs, c.validateSuspend()...)
	errs = append(errs, c.validateLogging()...)
	errs = append(errs, c.validateTelemetry()...)
	return errs
}

func (c *Config) validateCapture() []ValidationError {
	var errs []ValidationError
	if !slices.Contains(ValidBackends(), c.Capture.Backend) {
		errs = append(errs, ValidationError{
			Field:   "capture.backend",
			Value:   c.Capture.Backend,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidBackends(), ", ")),
		})
	}
	if c.Capture.Display < 0 {
		errs = append(errs, ValidationError{Field: "capture.display", Value: c.Capture.Display, Message: "must not be negative"})
	}
	if c.Capture.IntervalMs < 1 || c.Capture.IntervalMs > 10000 {
		errs = append(errs, ValidationError{Field: "capture.interval_ms", Value: c.Capture.IntervalMs, Message: "must be between 1 and 10000"})
	}
	if c.Capture.AcquireTimeoutMs < 0 || c.Capture.AcquireTimeoutMs > c.Capture.IntervalMs {
		errs = append(errs, ValidationError{
			Field:   "capture.acquire_timeout_ms",
			Value:   c.Capture.AcquireTimeoutMs,
			Message: "must be between 0 and capture.interval_ms",
		})
	}
	return errs
}

func (c *Config) validateDetect() []ValidationError {
	var errs []ValidationError
	if !slices.Contains(ValidPolicies(), c.Detect.Policy) {
		errs = append(errs, ValidationError{
			Field:   "detect.policy",
			Value:   c.Detect.Policy,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(ValidPolicies(), ", ")),
		})
	}
	if c.Detect.MarkerSize < 1 {
		errs = append(errs, ValidationError{Field: "detect.marker_size", Value: c.Detect.MarkerSize, Message: "must be at least 1"})
	}
	if c.Detect.Padding < 0 {
		errs = append(errs, ValidationError{Field: "detect.padding", Value: c.Detect.Padding, Message: "must not be negative"})
	}
	return errs
}

func (c *Config) validateOverlay() []ValidationError {
	var errs []ValidationError
	for _, f := range []struct{ field, value string }{
		{"overlay.color", c.Overlay.Color},
		{"overlay.demo_color", c.Overlay.DemoColor},
	} {
		if _, err := colorful.Hex(f.value); err != nil {
			errs = append(errs, ValidationError{Field: f.field, Value: f.value, Message: "must be a hex color like #ff0000"})
		}
	}
	if c.Overlay.Alpha < 0 || c.Overlay.Alpha > 1 {
		errs = append(errs, ValidationError{Field: "overlay.alpha", Value: c.Overlay.Alpha, Message: "must be between 0 and 1"})
	}
	if c.Overlay.StrokeWidth < 0 {
		errs = append(errs, ValidationError{Field: "overlay.stroke_width", Value: c.Overlay.StrokeWidth, Message: "must not be negative"})
	}
	return errs
}

func (c *Config) validateSuspend() []ValidationError {
	var errs []ValidationError
	if c.Suspend.BackoffInitialMs < 1 {
		errs = append(errs, ValidationError{Field: "suspend.backoff_initial_ms", Value: c.Suspend.BackoffInitialMs, Message: "must be at least 1"})
	}
	if c.Suspend.BackoffMaxMs < c.Suspend.BackoffInitialMs {
		errs = append(errs, ValidationError{
			Field:   "suspend.backoff_max_ms",
			Value:   c.Suspend.BackoffMaxMs,
			Message: "must not be smaller than suspend.backoff_initial_ms",
		})
	}
	return errs
}

func (c *Config) validateLogging() []ValidationError {
	var lvl logger.Level
	if err := lvl.Set(c.Logging.Level); err != nil {
		return []ValidationError{{Field: "logging.level", Value: c.Logging.Level, Message: err.Error()}}
	}
	return nil
}

func (c *Config) validateTelemetry() []ValidationError {
	if c.Telemetry.URL == "" {
		return nil
	}
	u, err := url.Parse(c.Telemetry.URL)
	if err != nil || (u.Scheme != "ws" && u.Scheme != "wss") || u.Host == "" {
		return []ValidationError{{Field: "telemetry.url", Value: c.Telemetry.URL, Message: "must be a ws:// or wss:// URL"}}
	}
	return nil
}
