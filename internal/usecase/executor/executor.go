// Package executor runs one due job to completion through the configured
// backend (external AI-agent runner or direct shell command), records the
// outcome in the job's journal, and reports it to the job's creator.
// Nothing in here may crash the scheduler loop: every failure path,
// including panics, degrades to a failed outcome.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel/trace"

	"taskpilot/internal/domain"
	"taskpilot/internal/infra/tracer"
	"taskpilot/internal/usecase/jobs"
)

// DefaultTimeout bounds a single execution attempt.
const DefaultTimeout = 300 * time.Second

// Snippet bounds used in notification templates.
const (
	taskSnippetLen    = 100
	payloadSnippetLen = 500
	errorSnippetLen   = 200
)

// Config holds everything the executor needs beyond the job itself.
type Config struct {
	Timeout    time.Duration // per-attempt bound (default DefaultTimeout)
	WorkingDir string        // default working directory for command mode

	RunnerPath       string // agent runner binary for AI mode
	AgentsConfigPath string // --config value passed to the runner
	DefaultAgent     string
	DefaultRuntime   string
	DefaultModel     string            // fallback when the runtime has no table entry
	RuntimeModels    map[string]string // per-runtime default model table

	// BypassPermissions appends --bypass-permissions to the runner argv so
	// scheduled AI tasks run unattended. Off by default.
	BypassPermissions bool
}

// Executor dispatches one job per call. It is not concurrency-safe for the
// same job; the scheduler loop serializes all dispatch.
type Executor struct {
	cfg      Config
	runner   domain.Runner
	journal  *jobs.Journal
	notifier domain.Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// New creates an Executor. notifier may be nil when notification is
// globally disabled.
func New(cfg Config, runner domain.Runner, journal *jobs.Journal, notifier domain.Notifier, logger *slog.Logger) *Executor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Executor{
		cfg:      cfg,
		runner:   runner,
		journal:  journal,
		notifier: notifier,
		logger:   logger,
		now:      domain.UTCNow,
	}
}

// Execute runs the job through its backend and performs the mandatory side
// effects: journal log lines, one result record, and (when job.notify) one
// notification. It never returns an error and never panics.
func (e *Executor) Execute(ctx context.Context, job *domain.Job) (outcome domain.Outcome) {
	ctx, span := tracer.StartSpan(ctx, "job.execute",
		trace.WithAttributes(
			tracer.StringAttr("job.id", job.ID),
			tracer.StringAttr("job.mode", string(job.EffectiveMode())),
		),
	)
	defer span.End()

	func() {
		defer func() {
			if r := recover(); r != nil {
				e.logger.Error("panic during job dispatch", "id", job.ID, "panic", r)
				outcome = domain.Outcome{
					Kind:  domain.OutcomeError,
					Error: fmt.Sprintf("internal error: %v", r),
				}
			}
		}()
		outcome = e.run(ctx, job)
	}()

	e.record(ctx, job, outcome)

	if outcome.Success {
		tracer.SetOK(span)
	} else {
		tracer.RecordError(span, fmt.Errorf("%s: %s", outcome.Kind, outcome.Error))
	}
	return outcome
}

func (e *Executor) run(ctx context.Context, job *domain.Job) domain.Outcome {
	switch job.EffectiveMode() {
	case domain.ModeCommand:
		return e.runCommand(ctx, job)
	default:
		return e.runAgent(ctx, job)
	}
}

func (e *Executor) runCommand(ctx context.Context, job *domain.Job) domain.Outcome {
	dir := job.WorkingDir
	if dir == "" {
		dir = e.cfg.WorkingDir
	}

	e.logger.Info("executing job", "id", job.ID, "mode", "command", "task", snippet(job.Task, 60))
	e.journal.Log(job.ID, fmt.Sprintf("Starting direct command execution (working_dir: %s)", dir))

	res := e.runner.Run(ctx, domain.RunRequest{
		Shell:   job.Task,
		Dir:     dir,
		Timeout: e.cfg.Timeout,
	})
	return e.classify(job, res)
}

func (e *Executor) runAgent(ctx context.Context, job *domain.Job) domain.Outcome {
	agent := job.Agent
	if agent == "" {
		agent = e.cfg.DefaultAgent
	}
	runtime := job.Runtime
	if runtime == "" {
		runtime = e.cfg.DefaultRuntime
	}
	model := e.resolveModel(job, runtime)
	sessionID := fmt.Sprintf("scheduled-%s-%d", job.ID, e.now().Unix())

	argv := []string{
		e.cfg.RunnerPath,
		"--config", e.cfg.AgentsConfigPath,
		"--agent", agent,
		"--runtime", runtime,
		"--model", model,
	}
	if e.cfg.BypassPermissions {
		argv = append(argv, "--bypass-permissions")
	}
	argv = append(argv, job.Task, sessionID)

	e.logger.Info("executing job", "id", job.ID, "mode", "ai",
		"agent", agent, "runtime", runtime, "model", model, "session", sessionID)
	e.journal.Log(job.ID, fmt.Sprintf("Starting execution via agent runner (AI mode, session: %s)", sessionID))

	res := e.runner.Run(ctx, domain.RunRequest{
		Argv:    argv,
		Timeout: e.cfg.Timeout,
	})
	return e.classify(job, res)
}

// resolveModel picks the job's model, falling back to the per-runtime
// default table and then the global default.
func (e *Executor) resolveModel(job *domain.Job, runtime string) string {
	if job.Model != "" {
		return job.Model
	}
	if m, ok := e.cfg.RuntimeModels[runtime]; ok {
		return m
	}
	return e.cfg.DefaultModel
}

func (e *Executor) classify(job *domain.Job, res domain.RunResult) domain.Outcome {
	switch {
	case res.TimedOut:
		return domain.Outcome{
			Kind:  domain.OutcomeTimeout,
			Error: fmt.Sprintf("execution timed out after %s", e.cfg.Timeout),
		}
	case res.Err != nil:
		return domain.Outcome{
			Kind:  domain.OutcomeError,
			Error: res.Err.Error(),
		}
	case res.ExitCode == 0:
		return domain.Outcome{
			Kind:    domain.OutcomeSuccess,
			Success: true,
			Output:  strings.TrimSpace(res.Stdout),
		}
	default:
		errText := res.Stderr
		if errText == "" {
			errText = res.Stdout
		}
		if errText == "" {
			errText = fmt.Sprintf("command failed with exit code %d", res.ExitCode)
		}
		return domain.Outcome{
			Kind:  domain.OutcomeFailure,
			Error: errText,
		}
	}
}

// record writes the end-state log line and result record, then notifies the
// creator when the job asks for it.
func (e *Executor) record(ctx context.Context, job *domain.Job, outcome domain.Outcome) {
	switch outcome.Kind {
	case domain.OutcomeSuccess:
		e.journal.Log(job.ID, "Execution succeeded")
		e.logger.Info("job completed", "id", job.ID)
	case domain.OutcomeTimeout:
		e.journal.Log(job.ID, outcome.Error)
		e.logger.Error("job timed out", "id", job.ID)
	case domain.OutcomeError:
		e.journal.Log(job.ID, fmt.Sprintf("Internal error: %s", snippet(outcome.Error, errorSnippetLen)))
		e.logger.Error("job dispatch error", "id", job.ID, "error", outcome.Error)
	default:
		e.journal.Log(job.ID, fmt.Sprintf("Execution failed: %s", snippet(outcome.Error, errorSnippetLen)))
		e.logger.Error("job failed", "id", job.ID)
	}

	e.journal.SaveResult(job.ID, job.Name, outcome.Success, outcome.Output, outcome.Error)

	if !job.Notify {
		return
	}
	if e.notifier == nil {
		e.logger.Warn("notify requested but no notifier configured", "id", job.ID)
		return
	}
	e.notifier.Notify(ctx, job, NotificationText(job, outcome, e.cfg.Timeout))
}

// NotificationText renders the outcome-specific message sent back to the
// job's creator. Each outcome kind keeps a distinct marker and template;
// command mode uses Command wording, AI mode uses Job/Task wording.
func NotificationText(job *domain.Job, outcome domain.Outcome, timeout time.Duration) string {
	taskLabel, unitLabel := "Task", "Job"
	payloadLabel := "Result"
	if job.EffectiveMode() == domain.ModeCommand {
		taskLabel, unitLabel = "Command", "Command"
		payloadLabel = "Output"
	}
	task := snippet(job.Task, taskSnippetLen)

	switch outcome.Kind {
	case domain.OutcomeSuccess:
		return fmt.Sprintf("✅ %s Completed: %s\n\n%s: %s\n\n%s:\n%s",
			unitLabel, job.Name, taskLabel, task, payloadLabel, snippet(outcome.Output, payloadSnippetLen))
	case domain.OutcomeTimeout:
		return fmt.Sprintf("⏱️ %s Timeout: %s\n\n%s: %s\n\nExecution exceeded the %s limit",
			unitLabel, job.Name, taskLabel, task, timeout)
	case domain.OutcomeError:
		return fmt.Sprintf("⚠️ %s Error: %s\n\n%s: %s\n\nError:\n%s",
			unitLabel, job.Name, taskLabel, task, snippet(outcome.Error, errorSnippetLen))
	default:
		return fmt.Sprintf("❌ %s Failed: %s\n\n%s: %s\n\nError:\n%s",
			unitLabel, job.Name, taskLabel, task, snippet(outcome.Error, payloadSnippetLen))
	}
}

func snippet(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
