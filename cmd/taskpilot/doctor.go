package main

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"taskpilot/internal/domain"
	"taskpilot/internal/infra/config"
	"taskpilot/internal/usecase/jobs"
	"taskpilot/internal/usecase/schedule"
)

// CheckStatus represents the result of a health check.
type CheckStatus string

const (
	StatusPass CheckStatus = "PASS"
	StatusWarn CheckStatus = "WARN"
	StatusFail CheckStatus = "FAIL"
)

// CheckResult holds the outcome of a single health check.
type CheckResult struct {
	Name    string
	Status  CheckStatus
	Message string
	Fix     string // optional fix suggestion
}

// Check is a named health check function.
type Check struct {
	Name string
	Fn   func(cfg *config.Config) CheckResult
}

// runDoctor executes all health checks and reports results.
func runDoctor() error {
	cfgPath := configPath()

	// Try to load config — most checks need it, some degrade gracefully.
	cfg, cfgErr := config.Load(cfgPath)

	checks := []Check{
		{Name: "Config file", Fn: checkConfigFile(cfgPath, cfgErr)},
		{Name: "Data directory", Fn: checkDataDir},
		{Name: "Jobs file", Fn: checkJobsFile},
		{Name: "Logs directory", Fn: checkWritableDir(func(c *config.Config) string { return c.Data.LogsDir })},
		{Name: "Results directory", Fn: checkWritableDir(func(c *config.Config) string { return c.Data.ResultsDir })},
		{Name: "Agent runner", Fn: checkAgentRunner},
		{Name: "Notification channels", Fn: checkChannels},
		{Name: "Job schedules", Fn: checkSchedules},
	}

	fmt.Println("taskpilot doctor")
	fmt.Println(strings.Repeat("=", 50))
	fmt.Println()

	var pass, warn, fail int
	for _, check := range checks {
		result := check.Fn(cfg)
		result.Name = check.Name

		fmt.Printf("  %s %s: %s\n", statusIcon(result.Status), result.Name, result.Message)
		if result.Fix != "" {
			fmt.Printf("      Fix: %s\n", result.Fix)
		}

		switch result.Status {
		case StatusPass:
			pass++
		case StatusWarn:
			warn++
		case StatusFail:
			fail++
		}
	}

	fmt.Println()
	fmt.Println(strings.Repeat("-", 50))
	fmt.Printf("Results: %d passed, %d warnings, %d failed\n", pass, warn, fail)

	if fail > 0 {
		fmt.Println("\nFix the FAIL issues above to ensure taskpilot runs correctly.")
		return fmt.Errorf("%d check(s) failed", fail)
	}
	if warn > 0 {
		fmt.Println("\ntaskpilot should work, but consider addressing the warnings.")
	} else {
		fmt.Println("\nAll checks passed! taskpilot is ready to run.")
	}
	return nil
}

func statusIcon(s CheckStatus) string {
	switch s {
	case StatusPass:
		return "[PASS]"
	case StatusWarn:
		return "[WARN]"
	case StatusFail:
		return "[FAIL]"
	default:
		return "[????]"
	}
}

// checkConfigFile returns a check that verifies the config file parses. A
// missing file is fine: the defaults cover everything.
func checkConfigFile(cfgPath string, cfgErr error) func(*config.Config) CheckResult {
	return func(_ *config.Config) CheckResult {
		if cfgErr != nil {
			return CheckResult{
				Status:  StatusFail,
				Message: fmt.Sprintf("config error: %v", cfgErr),
				Fix:     "Check config.yaml syntax and file permissions (must not be group/world readable)",
			}
		}
		if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
			return CheckResult{
				Status:  StatusPass,
				Message: fmt.Sprintf("no config file at %s, using defaults", cfgPath),
			}
		}
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("config loaded from %s", cfgPath),
		}
	}
}

func checkDataDir(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check — config not loaded"}
	}
	return probeWritable(cfg.Data.Dir)
}

// checkWritableDir returns a check that probes one of the data subdirectories.
func checkWritableDir(pick func(*config.Config) string) func(*config.Config) CheckResult {
	return func(cfg *config.Config) CheckResult {
		if cfg == nil {
			return CheckResult{Status: StatusFail, Message: "cannot check — config not loaded"}
		}
		return probeWritable(pick(cfg))
	}
}

// probeWritable creates the directory if needed and writes a temp file in it.
func probeWritable(dir string) CheckResult {
	if dir == "" {
		return CheckResult{
			Status:  StatusFail,
			Message: "directory not configured",
			Fix:     "Set data.dir in config.yaml or TASKPILOT_DATA_DIR",
		}
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("cannot create %s: %v", dir, err),
		}
	}
	probe := filepath.Join(dir, ".doctor-check")
	if err := os.WriteFile(probe, []byte("ok"), 0o600); err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("%s is not writable: %v", dir, err),
			Fix:     fmt.Sprintf("Check ownership and permissions of %s", dir),
		}
	}
	os.Remove(probe)
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%s is writable", dir),
	}
}

// checkJobsFile verifies the jobs document exists and parses.
func checkJobsFile(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check — config not loaded"}
	}

	path := cfg.Data.JobsFile
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return CheckResult{
			Status:  StatusPass,
			Message: fmt.Sprintf("no jobs file yet at %s (created on first schedule)", path),
		}
	}

	doc, err := jobs.ReadDocument(path)
	if err != nil {
		return CheckResult{
			Status:  StatusFail,
			Message: fmt.Sprintf("jobs file does not parse: %v", err),
			Fix:     fmt.Sprintf("Inspect %s; restore from a backup or delete it to start fresh", path),
		}
	}

	enabled := 0
	for _, j := range doc.Jobs {
		if j.Enabled {
			enabled++
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("%d job(s), %d enabled", len(doc.Jobs), enabled),
	}
}

// checkAgentRunner verifies the runner binary used for AI-mode jobs resolves.
func checkAgentRunner(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check — config not loaded"}
	}

	path := cfg.Executor.RunnerPath
	if filepath.IsAbs(path) {
		if _, err := os.Stat(path); err != nil {
			return CheckResult{
				Status:  StatusWarn,
				Message: fmt.Sprintf("runner %s not found (command-mode jobs still work)", path),
				Fix:     "Install the agent runner or set executor.runner_path",
			}
		}
		return CheckResult{Status: StatusPass, Message: fmt.Sprintf("runner at %s", path)}
	}

	resolved, err := exec.LookPath(path)
	if err != nil {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("runner %q not on PATH (command-mode jobs still work)", path),
			Fix:     "Install the agent runner or set executor.runner_path to its location",
		}
	}
	return CheckResult{Status: StatusPass, Message: fmt.Sprintf("runner at %s", resolved)}
}

// checkChannels reports which notification channels have credentials.
func checkChannels(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check — config not loaded"}
	}

	creds := []struct {
		name   string
		file   string
		envVar string
	}{
		{"telegram", "telegram.json", "TELEGRAM_BOT_TOKEN"},
		{"webex", "webex.json", "WEBEX_BOT_TOKEN"},
		{"discord", "discord.json", "DISCORD_BOT_TOKEN"},
		{"slack", "slack.json", "SLACK_BOT_TOKEN"},
	}

	var configured []string
	for _, c := range creds {
		if os.Getenv(c.envVar) != "" {
			configured = append(configured, c.name)
			continue
		}
		if _, err := os.Stat(filepath.Join(cfg.Notify.CredentialsDir, c.file)); err == nil {
			configured = append(configured, c.name)
		}
	}

	if len(configured) == 0 {
		return CheckResult{
			Status:  StatusWarn,
			Message: "no notification channels configured (jobs with --notify will log a skip)",
			Fix:     fmt.Sprintf("Add credential files under %s or set *_BOT_TOKEN env vars", cfg.Notify.CredentialsDir),
		}
	}
	return CheckResult{
		Status:  StatusPass,
		Message: fmt.Sprintf("configured: %s", strings.Join(configured, ", ")),
	}
}

// checkSchedules re-parses every enabled recurring schedule phrase.
func checkSchedules(cfg *config.Config) CheckResult {
	if cfg == nil {
		return CheckResult{Status: StatusFail, Message: "cannot check — config not loaded"}
	}

	doc, err := jobs.ReadDocument(cfg.Data.JobsFile)
	if err != nil {
		return CheckResult{Status: StatusWarn, Message: "skipped — jobs file not readable"}
	}

	var broken []string
	for _, j := range doc.Jobs {
		if !j.Enabled || !j.Recurring {
			continue
		}
		if _, err := schedule.Next(j.Schedule, domain.UTCNow()); err != nil {
			broken = append(broken, fmt.Sprintf("%s (%q)", j.ID, j.Schedule))
		}
	}

	if len(broken) > 0 {
		return CheckResult{
			Status:  StatusWarn,
			Message: fmt.Sprintf("unparseable schedules: %s", strings.Join(broken, ", ")),
			Fix:     "Delete and re-create these jobs with a supported schedule phrase",
		}
	}
	return CheckResult{Status: StatusPass, Message: "all enabled schedules parse"}
}
