package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Data      DataConfig      `yaml:"data"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Executor  ExecutorConfig  `yaml:"executor"`
	Notify    NotifyConfig    `yaml:"notify"`
	Logger    LoggerConfig    `yaml:"logger"`
	Tracer    TracerConfig    `yaml:"tracer"`
}

// DataConfig locates the persistent job state on disk.
type DataConfig struct {
	Dir        string `yaml:"dir"`         // root data directory
	JobsFile   string `yaml:"jobs_file"`   // defaults to <dir>/jobs.json
	LogsDir    string `yaml:"logs_dir"`    // defaults to <dir>/logs
	ResultsDir string `yaml:"results_dir"` // defaults to <dir>/results
}

// SchedulerConfig holds the polling loop settings.
type SchedulerConfig struct {
	PollInterval time.Duration `yaml:"poll_interval"`
}

// ExecutorConfig holds execution backend settings.
type ExecutorConfig struct {
	Timeout           time.Duration     `yaml:"timeout"`
	WorkingDir        string            `yaml:"working_dir"`
	RunnerPath        string            `yaml:"runner_path"`
	AgentsConfigPath  string            `yaml:"agents_config_path"`
	DefaultAgent      string            `yaml:"default_agent"`
	DefaultRuntime    string            `yaml:"default_runtime"`
	DefaultModel      string            `yaml:"default_model"`
	RuntimeModels     map[string]string `yaml:"runtime_models,omitempty"`
	BypassPermissions bool              `yaml:"bypass_permissions"`
}

// NotifyConfig holds notification dispatch settings.
type NotifyConfig struct {
	CredentialsDir string               `yaml:"credentials_dir"` // defaults to data dir
	RatePerMinute  int                  `yaml:"rate_per_minute"`
	Burst          int                  `yaml:"burst"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuit_breaker"`
}

// CircuitBreakerConfig holds circuit breaker settings for message senders.
type CircuitBreakerConfig struct {
	Enabled     bool          `yaml:"enabled"`
	MaxFailures uint32        `yaml:"max_failures"`
	Timeout     time.Duration `yaml:"timeout"`
	Interval    time.Duration `yaml:"interval"`
}

// LoggerConfig holds logging settings.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig holds tracing settings.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
	Endpoint string `yaml:"endpoint"`
}

// defaultDataDir returns the persistent data directory under
// $HOME/.taskpilot. Falls back to "./data" if $HOME cannot be determined.
func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./data"
	}
	return filepath.Join(home, ".taskpilot")
}

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Data: DataConfig{
			Dir: defaultDataDir(),
		},
		Scheduler: SchedulerConfig{
			PollInterval: time.Second,
		},
		Executor: ExecutorConfig{
			Timeout:        300 * time.Second,
			RunnerPath:     "agent-runner",
			DefaultAgent:   "general",
			DefaultRuntime: "claude",
			DefaultModel:   "sonnet",
			RuntimeModels: map[string]string{
				"claude":   "sonnet",
				"copilot":  "gpt-4.1",
				"gemini":   "gemini-1.5-pro",
				"opencode": "gpt-4o",
			},
		},
		Notify: NotifyConfig{
			RatePerMinute: 20,
			Burst:         5,
			CircuitBreaker: CircuitBreakerConfig{
				Enabled:     true,
				MaxFailures: 5,
				Timeout:     60 * time.Second,
				Interval:    120 * time.Second,
			},
		},
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{
			Enabled:  false,
			Exporter: "noop",
		},
	}
}

// Load reads a YAML config file and applies env var overrides. A missing
// file is not an error: defaults plus env overrides are returned.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			ApplyEnvOverrides(cfg)
			cfg.fillDerived()
			if err := Validate(cfg); err != nil {
				return nil, err
			}
			return cfg, nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}
	if err := validatePermissions(absPath); err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	ApplyEnvOverrides(cfg)
	cfg.fillDerived()

	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// fillDerived resolves paths that default relative to the data dir.
func (c *Config) fillDerived() {
	if c.Data.JobsFile == "" {
		c.Data.JobsFile = filepath.Join(c.Data.Dir, "jobs.json")
	}
	if c.Data.LogsDir == "" {
		c.Data.LogsDir = filepath.Join(c.Data.Dir, "logs")
	}
	if c.Data.ResultsDir == "" {
		c.Data.ResultsDir = filepath.Join(c.Data.Dir, "results")
	}
	if c.Notify.CredentialsDir == "" {
		c.Notify.CredentialsDir = c.Data.Dir
	}
	if c.Executor.AgentsConfigPath == "" {
		c.Executor.AgentsConfigPath = filepath.Join(c.Data.Dir, "agents.yaml")
	}
}

// ApplyEnvOverrides maps TASKPILOT_* env vars to config fields.
func ApplyEnvOverrides(cfg *Config) {
	if v := os.Getenv("TASKPILOT_DATA_DIR"); v != "" {
		cfg.Data.Dir = v
	}
	if v := os.Getenv("TASKPILOT_JOBS_FILE"); v != "" {
		cfg.Data.JobsFile = v
	}
	if v := os.Getenv("TASKPILOT_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Scheduler.PollInterval = d
		}
	}
	if v := os.Getenv("TASKPILOT_EXECUTOR_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Executor.Timeout = d
		}
	}
	if v := os.Getenv("TASKPILOT_EXECUTOR_WORKING_DIR"); v != "" {
		cfg.Executor.WorkingDir = v
	}
	if v := os.Getenv("TASKPILOT_RUNNER_PATH"); v != "" {
		cfg.Executor.RunnerPath = v
	}
	if v := os.Getenv("TASKPILOT_AGENTS_CONFIG"); v != "" {
		cfg.Executor.AgentsConfigPath = v
	}
	if v := os.Getenv("TASKPILOT_DEFAULT_AGENT"); v != "" {
		cfg.Executor.DefaultAgent = v
	}
	if v := os.Getenv("TASKPILOT_DEFAULT_RUNTIME"); v != "" {
		cfg.Executor.DefaultRuntime = v
	}
	if v := os.Getenv("TASKPILOT_DEFAULT_MODEL"); v != "" {
		cfg.Executor.DefaultModel = v
	}
	if v := os.Getenv("TASKPILOT_BYPASS_PERMISSIONS"); v == "true" {
		cfg.Executor.BypassPermissions = true
	}
	if v := os.Getenv("TASKPILOT_NOTIFY_RATE_PER_MINUTE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Notify.RatePerMinute = n
		}
	}
	if v := os.Getenv("TASKPILOT_NOTIFY_BREAKER_ENABLED"); v == "false" {
		cfg.Notify.CircuitBreaker.Enabled = false
	}
	if v := os.Getenv("TASKPILOT_LOGGER_LEVEL"); v != "" {
		cfg.Logger.Level = v
	}
	if v := os.Getenv("TASKPILOT_LOGGER_FORMAT"); v != "" {
		cfg.Logger.Format = v
	}
	if v := os.Getenv("TASKPILOT_TRACER_ENABLED"); v == "true" {
		cfg.Tracer.Enabled = true
	}
	if v := os.Getenv("TASKPILOT_TRACER_EXPORTER"); v != "" {
		cfg.Tracer.Exporter = v
	}
}

// validatePermissions refuses group/world-readable config files since they
// may hold credentials. Skipped on Windows where the mode bits are synthetic.
func validatePermissions(path string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat config: %w", err)
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		return fmt.Errorf("config file %s has permissions %04o, want 0600 or stricter", path, perm)
	}
	return nil
}
