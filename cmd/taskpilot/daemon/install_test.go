package daemon

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

func TestSystemdTemplateRender(t *testing.T) {
	cfg := ServiceConfig{
		Name:       "taskpilot",
		BinaryPath: "/usr/local/bin/taskpilot",
		ConfigPath: "/home/ops/.taskpilot/config.yaml",
		DataDir:    "/home/ops/.taskpilot",
		User:       "ops",
		LogPath:    "/home/ops/.taskpilot/logs",
		HomeDir:    "/home/ops",
	}

	content, err := RenderSystemdUnit(cfg)
	if err != nil {
		t.Fatalf("RenderSystemdUnit: %v", err)
	}

	checks := []string{
		"[Unit]",
		"Description=taskpilot task scheduler",
		"ExecStart=/usr/local/bin/taskpilot run --config /home/ops/.taskpilot/config.yaml",
		"WorkingDirectory=/home/ops/.taskpilot",
		"User=ops",
		"StandardOutput=append:/home/ops/.taskpilot/logs/taskpilot.log",
		"Environment=HOME=/home/ops",
		"[Install]",
		"WantedBy=multi-user.target",
	}
	for _, check := range checks {
		if !strings.Contains(content, check) {
			t.Errorf("systemd unit missing %q:\n%s", check, content)
		}
	}
}

func TestLaunchdTemplateRender(t *testing.T) {
	cfg := ServiceConfig{
		Name:       "taskpilot",
		BinaryPath: "/usr/local/bin/taskpilot",
		ConfigPath: "/Users/test/.taskpilot/config.yaml",
		DataDir:    "/Users/test/.taskpilot",
		LogPath:    "/Users/test/.taskpilot/logs",
		HomeDir:    "/Users/test",
	}

	content, err := RenderLaunchdPlist(cfg)
	if err != nil {
		t.Fatalf("RenderLaunchdPlist: %v", err)
	}

	checks := []string{
		"io.taskpilot.taskpilot",
		"/usr/local/bin/taskpilot",
		"<string>run</string>",
		"--config",
		"/Users/test/.taskpilot/config.yaml",
		"RunAtLoad",
		"KeepAlive",
		"taskpilot.log",
	}
	for _, check := range checks {
		if !strings.Contains(content, check) {
			t.Errorf("launchd plist missing %q:\n%s", check, content)
		}
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Name != "taskpilot" {
		t.Errorf("Name = %q", cfg.Name)
	}
	if cfg.BinaryPath == "" {
		t.Error("BinaryPath should not be empty")
	}
	if cfg.User == "" {
		t.Error("User should not be empty")
	}
	if !strings.HasSuffix(cfg.DataDir, ".taskpilot") {
		t.Errorf("DataDir = %q, want under ~/.taskpilot", cfg.DataDir)
	}
}

func TestInstallUnsupportedPlatform(t *testing.T) {
	if runtime.GOOS == "linux" || runtime.GOOS == "darwin" {
		t.Skip("skipping on supported platform")
	}
	err := Install(DefaultConfig())
	if err == nil {
		t.Fatal("expected unsupported platform error")
	}
	if !strings.Contains(err.Error(), "unsupported platform") {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestServiceConfigValidation(t *testing.T) {
	cfg := ServiceConfig{}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty name")
	}

	cfg = ServiceConfig{Name: "taskpilot"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty binary path")
	}

	cfg = ServiceConfig{Name: "taskpilot", BinaryPath: "/nonexistent/binary"}
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for non-existent binary")
	}

	exe, err := os.Executable()
	if err != nil {
		t.Skipf("cannot determine executable: %v", err)
	}
	cfg = ServiceConfig{Name: "taskpilot", BinaryPath: exe}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate: %v", err)
	}
}

func TestServiceConfigValidateNotExecutable(t *testing.T) {
	notExec := filepath.Join(t.TempDir(), "notexec")
	if err := os.WriteFile(notExec, []byte("#!/bin/sh"), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := ServiceConfig{Name: "taskpilot", BinaryPath: notExec}
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error for non-executable binary")
	}
	if !strings.Contains(err.Error(), "not executable") {
		t.Errorf("unexpected error: %v", err)
	}
}
