package executor

import (
	"bytes"
	"context"
	"errors"
	"os/exec"

	"taskpilot/internal/domain"
)

// ExecRunner is the production Runner: it spawns a real subprocess and
// waits for it, bounded by the request timeout. Exceeding the timeout
// kills the process group via the context and is reported through the
// TimedOut flag rather than as an error.
type ExecRunner struct{}

// NewExecRunner returns the subprocess-backed Runner.
func NewExecRunner() *ExecRunner { return &ExecRunner{} }

func (r *ExecRunner) Run(ctx context.Context, req domain.RunRequest) domain.RunResult {
	runCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	var cmd *exec.Cmd
	if len(req.Argv) > 0 {
		cmd = exec.CommandContext(runCtx, req.Argv[0], req.Argv[1:]...)
	} else {
		cmd = exec.CommandContext(runCtx, "sh", "-c", req.Shell)
	}
	cmd.Dir = req.Dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()

	res := domain.RunResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		res.TimedOut = true
		return res
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
		} else {
			// Spawn failure (missing binary, bad working dir, ...).
			res.Err = err
		}
	}

	return res
}

var _ domain.Runner = (*ExecRunner)(nil)
