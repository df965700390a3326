package main

import (
	"io"
	"log/slog"
	"testing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want Command
		rest int
	}{
		{"no args shows help", []string{"taskpilot"}, CmdHelp, 0},
		{"run", []string{"taskpilot", "run"}, CmdRun, 0},
		{"schedule with args", []string{"taskpilot", "schedule", "Backup", "every hour"}, CmdSchedule, 2},
		{"results", []string{"taskpilot", "results", "backup", "--latest"}, CmdResults, 2},
		{"doctor", []string{"taskpilot", "doctor"}, CmdDoctor, 0},
		{"help flag", []string{"taskpilot", "--help"}, CmdHelp, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd, rest, err := parseCommand(tt.args)
			if err != nil {
				t.Fatalf("parseCommand(%v) error: %v", tt.args, err)
			}
			if cmd != tt.want {
				t.Errorf("command = %d, want %d", cmd, tt.want)
			}
			if len(rest) != tt.rest {
				t.Errorf("rest = %v, want %d args", rest, tt.rest)
			}
		})
	}
}

func TestParseCommandRejectsUnknown(t *testing.T) {
	_, _, err := parseCommand([]string{"taskpilot", "shedule"})
	if err == nil {
		t.Fatal("expected error for misspelled command")
	}
	if got := err.Error(); got != "unknown command: shedule" {
		t.Errorf("error = %q", got)
	}
}

func TestParseFlags(t *testing.T) {
	positional, flags := parseFlags(
		[]string{"Daily Report", "every day at 09:00", "--notify", "--channel", "telegram", "--identity=12345", "general"},
		map[string]bool{"notify": true},
	)

	if len(positional) != 3 || positional[0] != "Daily Report" || positional[2] != "general" {
		t.Errorf("positional = %v", positional)
	}
	if flags["notify"] != "true" {
		t.Errorf("notify = %q, want %q", flags["notify"], "true")
	}
	if flags["channel"] != "telegram" {
		t.Errorf("channel = %q", flags["channel"])
	}
	if flags["identity"] != "12345" {
		t.Errorf("identity = %q", flags["identity"])
	}
}

func TestParseFlagsTrailingValueFlag(t *testing.T) {
	_, flags := parseFlags([]string{"--model"}, nil)
	if v, ok := flags["model"]; !ok || v != "" {
		t.Errorf("flags = %v, want empty model entry", flags)
	}
}
