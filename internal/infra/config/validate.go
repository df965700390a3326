package config

import (
	"fmt"
	"strings"
)

// ValidationError accumulates config validation errors.
type ValidationError struct {
	Errors []string
}

func (v *ValidationError) Error() string {
	return "config validation failed:\n  - " + strings.Join(v.Errors, "\n  - ")
}

// HasErrors reports whether any validation errors have been recorded.
func (v *ValidationError) HasErrors() bool {
	return len(v.Errors) > 0
}

// Add records a formatted validation error.
func (v *ValidationError) Add(format string, args ...interface{}) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}

// Validate checks cfg for structural correctness. It returns a
// *ValidationError when one or more problems are found, allowing callers to
// inspect all issues at once.
func Validate(cfg *Config) error {
	ve := &ValidationError{}
	validateData(cfg, ve)
	validateScheduler(cfg, ve)
	validateExecutor(cfg, ve)
	validateNotify(cfg, ve)
	validateLogger(cfg, ve)
	validateTracer(cfg, ve)
	if ve.HasErrors() {
		return ve
	}
	return nil
}

func validateData(cfg *Config, ve *ValidationError) {
	if cfg.Data.Dir == "" {
		ve.Add("data.dir must not be empty")
	}
}

func validateScheduler(cfg *Config, ve *ValidationError) {
	if cfg.Scheduler.PollInterval <= 0 {
		ve.Add("scheduler.poll_interval must be > 0")
	}
}

func validateExecutor(cfg *Config, ve *ValidationError) {
	if cfg.Executor.Timeout <= 0 {
		ve.Add("executor.timeout must be > 0")
	}
	if cfg.Executor.RunnerPath == "" {
		ve.Add("executor.runner_path must not be empty")
	}
	if cfg.Executor.DefaultRuntime == "" {
		ve.Add("executor.default_runtime must not be empty")
	}
}

func validateNotify(cfg *Config, ve *ValidationError) {
	if cfg.Notify.RatePerMinute <= 0 {
		ve.Add("notify.rate_per_minute must be > 0")
	}
	if cfg.Notify.Burst <= 0 {
		ve.Add("notify.burst must be > 0")
	}
	if cfg.Notify.CircuitBreaker.Enabled {
		if cfg.Notify.CircuitBreaker.MaxFailures == 0 {
			ve.Add("notify.circuit_breaker.max_failures must be > 0 when enabled")
		}
		if cfg.Notify.CircuitBreaker.Timeout <= 0 {
			ve.Add("notify.circuit_breaker.timeout must be > 0 when enabled")
		}
	}
}

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "warning": true, "error": true,
}

func validateLogger(cfg *Config, ve *ValidationError) {
	if !validLogLevels[strings.ToLower(cfg.Logger.Level)] {
		ve.Add("logger.level %q is not one of debug|info|warn|error", cfg.Logger.Level)
	}
	switch strings.ToLower(cfg.Logger.Format) {
	case "text", "json":
	default:
		ve.Add("logger.format %q is not one of text|json", cfg.Logger.Format)
	}
}

func validateTracer(cfg *Config, ve *ValidationError) {
	switch cfg.Tracer.Exporter {
	case "", "noop", "stdout":
	default:
		ve.Add("tracer.exporter %q is not one of noop|stdout", cfg.Tracer.Exporter)
	}
}
