package domain

import (
	"context"
	"strings"
	"time"
)

// TimestampLayout is the wire format for every persisted timestamp:
// UTC ISO-8601 with second precision.
const TimestampLayout = "2006-01-02T15:04:05Z"

// UTCNow returns the current time in UTC truncated to second precision,
// matching TimestampLayout.
func UTCNow() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}

// ExecMode selects the execution backend for a job.
type ExecMode string

const (
	// ModeAI delegates the task text to the external agent runner.
	ModeAI ExecMode = "ai"
	// ModeCommand runs the task text directly as a shell command.
	ModeCommand ExecMode = "command"
)

// Creator records who scheduled a job and on which channel, so that
// execution results can be routed back to them.
type Creator struct {
	Identity string `json:"identity,omitempty"` // chat id, email, or user id — channel-appropriate
	Channel  string `json:"channel,omitempty"`  // "telegram", "webex", "discord", "slack"
	Username string `json:"username,omitempty"`
}

// Job is a persisted unit of scheduled work.
type Job struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	Agent      string     `json:"agent,omitempty"`
	Runtime    string     `json:"runtime,omitempty"`
	Model      string     `json:"model,omitempty"`
	Task       string     `json:"task"`
	Mode       ExecMode   `json:"mode,omitempty"` // empty means ModeAI
	Schedule   string     `json:"schedule"`
	Recurring  bool       `json:"recurring"`
	Notify     bool       `json:"notify"`
	CreatedBy  Creator    `json:"created_by,omitempty"`
	WorkingDir string     `json:"working_dir,omitempty"`
	Enabled    bool       `json:"enabled"`
	NextRun    *time.Time `json:"next_run"`
	LastRun    *time.Time `json:"last_run"`
	CreatedAt  time.Time  `json:"created_at"`
	Retries    int        `json:"retries"` // reserved for a future retry policy; never incremented
}

// EffectiveMode resolves the job's execution mode, defaulting to AI.
func (j *Job) EffectiveMode() ExecMode {
	if j.Mode == ModeCommand {
		return ModeCommand
	}
	return ModeAI
}

// Due reports whether the job should be dispatched at the given instant.
// Disabled jobs and jobs without a computed next_run are never due.
func (j *Job) Due(now time.Time) bool {
	if !j.Enabled || j.NextRun == nil {
		return false
	}
	return !j.NextRun.After(now)
}

// JobID derives the store key from a job name: lowercased, spaces to hyphens.
func JobID(name string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "-")
}

// Document is the full persisted job list. Order is insertion order.
type Document struct {
	Jobs []Job `json:"jobs"`
}

// Find returns a pointer into the document's job slice, or nil.
func (d *Document) Find(id string) *Job {
	for i := range d.Jobs {
		if d.Jobs[i].ID == id {
			return &d.Jobs[i]
		}
	}
	return nil
}

// OutcomeKind classifies how an execution attempt ended.
type OutcomeKind string

const (
	OutcomeSuccess OutcomeKind = "success"
	OutcomeFailure OutcomeKind = "failure"
	OutcomeTimeout OutcomeKind = "timeout"
	OutcomeError   OutcomeKind = "error" // internal dispatch error, not a task failure
)

// Outcome is the result of running one due job to completion.
type Outcome struct {
	Kind    OutcomeKind
	Success bool
	Output  string
	Error   string
}

// ExecutionResult is one immutable line in a job's result ledger.
type ExecutionResult struct {
	Timestamp string `json:"timestamp"`
	RunID     string `json:"run_id"`
	JobID     string `json:"job_id"`
	JobName   string `json:"job_name"`
	Success   bool   `json:"success"`
	Output    string `json:"output"`
	Error     string `json:"error"`
}

// Notifier delivers a free-text message to a job's creator. It must never
// return an error: delivery failures are downgraded to false and logged.
type Notifier interface {
	Notify(ctx context.Context, job *Job, message string) bool
}

// RunRequest describes one subprocess invocation for the Runner port.
type RunRequest struct {
	Argv    []string // argv[0] is the binary; empty means shell mode
	Shell   string   // shell command line, run as `sh -c`; used when Argv is empty
	Dir     string
	Timeout time.Duration
}

// RunResult carries everything the executor needs from a finished subprocess.
type RunResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
	Err      error // spawn/wait error unrelated to the command's own exit status
}

// Runner is the external-process port. The production implementation spawns
// real subprocesses; tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, req RunRequest) RunResult
}
