package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"taskpilot/internal/infra/config"
	"taskpilot/internal/usecase/jobs"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Defaults()
	cfg.Data.Dir = dir
	cfg.Data.JobsFile = filepath.Join(dir, "jobs.json")
	cfg.Data.LogsDir = filepath.Join(dir, "logs")
	cfg.Data.ResultsDir = filepath.Join(dir, "results")
	cfg.Notify.CredentialsDir = dir
	return cfg
}

func writeJobsFile(t *testing.T, path string, doc any) {
	t.Helper()
	data, err := json.Marshal(doc)
	if err != nil {
		t.Fatalf("marshal jobs doc: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write jobs file: %v", err)
	}
}

func TestCheckConfigFile_Missing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	check := checkConfigFile(path, nil)

	result := check(nil)
	if result.Status != StatusPass {
		t.Errorf("status = %s, want PASS (missing config means defaults)", result.Status)
	}
	if !strings.Contains(result.Message, "defaults") {
		t.Errorf("message = %q, want mention of defaults", result.Message)
	}
}

func TestCheckConfigFile_LoadError(t *testing.T) {
	check := checkConfigFile("config.yaml", os.ErrPermission)

	result := check(nil)
	if result.Status != StatusFail {
		t.Errorf("status = %s, want FAIL", result.Status)
	}
	if result.Fix == "" {
		t.Error("expected a fix suggestion")
	}
}

func TestProbeWritable(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")

	result := probeWritable(dir)
	if result.Status != StatusPass {
		t.Fatalf("status = %s, want PASS: %s", result.Status, result.Message)
	}
	if _, err := os.Stat(dir); err != nil {
		t.Errorf("probe should have created %s: %v", dir, err)
	}
	if _, err := os.Stat(filepath.Join(dir, ".doctor-check")); !os.IsNotExist(err) {
		t.Error("probe file should be removed after the check")
	}
}

func TestProbeWritable_Unconfigured(t *testing.T) {
	result := probeWritable("")
	if result.Status != StatusFail {
		t.Errorf("status = %s, want FAIL", result.Status)
	}
}

func TestCheckJobsFile_MissingIsPass(t *testing.T) {
	cfg := testConfig(t)

	result := checkJobsFile(cfg)
	if result.Status != StatusPass {
		t.Errorf("status = %s, want PASS: %s", result.Status, result.Message)
	}
}

func TestCheckJobsFile_CountsJobs(t *testing.T) {
	cfg := testConfig(t)
	writeJobsFile(t, cfg.Data.JobsFile, map[string]any{
		"jobs": []map[string]any{
			{"id": "a", "name": "A", "enabled": true},
			{"id": "b", "name": "B", "enabled": false},
		},
	})

	result := checkJobsFile(cfg)
	if result.Status != StatusPass {
		t.Fatalf("status = %s, want PASS: %s", result.Status, result.Message)
	}
	if !strings.Contains(result.Message, "2 job(s), 1 enabled") {
		t.Errorf("message = %q", result.Message)
	}
}

func TestCheckJobsFile_Corrupt(t *testing.T) {
	cfg := testConfig(t)
	if err := os.WriteFile(cfg.Data.JobsFile, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}

	result := checkJobsFile(cfg)
	if result.Status != StatusFail {
		t.Errorf("status = %s, want FAIL", result.Status)
	}
	if result.Fix == "" {
		t.Error("expected a fix suggestion")
	}
}

func TestCheckAgentRunner_NotOnPath(t *testing.T) {
	cfg := testConfig(t)
	cfg.Executor.RunnerPath = "definitely-not-a-real-binary-xyz"

	result := checkAgentRunner(cfg)
	if result.Status != StatusWarn {
		t.Errorf("status = %s, want WARN (command-mode jobs still work)", result.Status)
	}
}

func TestCheckAgentRunner_AbsolutePath(t *testing.T) {
	cfg := testConfig(t)
	runner := filepath.Join(t.TempDir(), "agent-runner")
	if err := os.WriteFile(runner, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	cfg.Executor.RunnerPath = runner

	result := checkAgentRunner(cfg)
	if result.Status != StatusPass {
		t.Errorf("status = %s, want PASS: %s", result.Status, result.Message)
	}
}

func TestCheckChannels_NoneConfigured(t *testing.T) {
	for _, v := range []string{"TELEGRAM_BOT_TOKEN", "WEBEX_BOT_TOKEN", "DISCORD_BOT_TOKEN", "SLACK_BOT_TOKEN"} {
		t.Setenv(v, "")
	}
	cfg := testConfig(t)

	result := checkChannels(cfg)
	if result.Status != StatusWarn {
		t.Errorf("status = %s, want WARN", result.Status)
	}
}

func TestCheckChannels_FromFileAndEnv(t *testing.T) {
	for _, v := range []string{"WEBEX_BOT_TOKEN", "DISCORD_BOT_TOKEN", "SLACK_BOT_TOKEN"} {
		t.Setenv(v, "")
	}
	t.Setenv("TELEGRAM_BOT_TOKEN", "tok")
	cfg := testConfig(t)
	creds := filepath.Join(cfg.Notify.CredentialsDir, "slack.json")
	if err := os.WriteFile(creds, []byte(`{"bot_token":"xoxb"}`), 0o600); err != nil {
		t.Fatal(err)
	}

	result := checkChannels(cfg)
	if result.Status != StatusPass {
		t.Fatalf("status = %s, want PASS: %s", result.Status, result.Message)
	}
	if !strings.Contains(result.Message, "telegram") || !strings.Contains(result.Message, "slack") {
		t.Errorf("message = %q, want both telegram and slack", result.Message)
	}
}

func TestCheckSchedules(t *testing.T) {
	cfg := testConfig(t)
	log := testLogger()
	journal, err := jobs.NewJournal(cfg.Data.LogsDir, cfg.Data.ResultsDir, log)
	if err != nil {
		t.Fatal(err)
	}
	store, err := jobs.NewStore(cfg.Data.JobsFile, journal, log)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.Create(jobs.CreateParams{
		Name:      "Daily Report",
		Schedule:  "every day at 09:00",
		Agent:     "general",
		Runtime:   "claude",
		Task:      "summarize",
		Recurring: true,
	}); err != nil {
		t.Fatal(err)
	}

	result := checkSchedules(cfg)
	if result.Status != StatusPass {
		t.Fatalf("status = %s, want PASS: %s", result.Status, result.Message)
	}

	// Corrupt the stored schedule phrase and re-check.
	doc := store.LoadDocument()
	doc.Jobs[0].Schedule = "when the mood strikes"
	if err := store.SaveDocument(doc); err != nil {
		t.Fatal(err)
	}

	result = checkSchedules(cfg)
	if result.Status != StatusWarn {
		t.Errorf("status = %s, want WARN", result.Status)
	}
	if !strings.Contains(result.Message, "daily-report") {
		t.Errorf("message = %q, want the broken job id", result.Message)
	}
}

func TestChecksHandleNilConfig(t *testing.T) {
	checks := []func(*config.Config) CheckResult{
		checkDataDir,
		checkJobsFile,
		checkAgentRunner,
		checkChannels,
		checkSchedules,
	}
	for _, fn := range checks {
		if got := fn(nil); got.Status != StatusFail {
			t.Errorf("nil config: status = %s, want FAIL", got.Status)
		}
	}
}

func TestStatusIcon(t *testing.T) {
	if got := statusIcon(StatusPass); got != "[PASS]" {
		t.Errorf("statusIcon(PASS) = %q", got)
	}
	if got := statusIcon(StatusFail); got != "[FAIL]" {
		t.Errorf("statusIcon(FAIL) = %q", got)
	}
}
