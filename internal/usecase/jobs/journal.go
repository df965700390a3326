package jobs

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"

	"taskpilot/internal/domain"
)

// maxCapturedChars bounds how much of stdout/stderr is kept per result
// record. Record count is unbounded; record size is not.
const maxCapturedChars = 5000

// Journal owns the per-job append-only files: `<id>.log` for human-readable
// trace lines and `<id>.jsonl` for structured execution results. Every
// append opens, writes, and closes the file so each line survives a crash.
type Journal struct {
	logsDir    string
	resultsDir string
	logger     *slog.Logger
	now        func() time.Time
}

// NewJournal creates the journal, creating both directories if missing.
func NewJournal(logsDir, resultsDir string, logger *slog.Logger) (*Journal, error) {
	for _, dir := range []string{logsDir, resultsDir} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return nil, fmt.Errorf("journal: create dir %s: %w", dir, err)
		}
	}
	return &Journal{
		logsDir:    logsDir,
		resultsDir: resultsDir,
		logger:     logger,
		now:        domain.UTCNow,
	}, nil
}

// Log appends one timestamped line to the job's log file. Append failures
// are logged and swallowed: journaling must never fail an execution.
func (j *Journal) Log(jobID, message string) {
	line := fmt.Sprintf("[%s] %s\n", j.now().Format(domain.TimestampLayout), message)
	if err := appendLine(j.logPath(jobID), line); err != nil {
		j.logger.Error("job log append failed", "id", jobID, "error", err)
	}
}

// ReadLog returns the accumulated log text for a job.
func (j *Journal) ReadLog(jobID string) (string, error) {
	data, err := os.ReadFile(j.logPath(jobID))
	if err != nil {
		if os.IsNotExist(err) {
			return "", domain.NewSubSystemError("journal", "Journal.ReadLog", domain.ErrNotFound, jobID)
		}
		return "", fmt.Errorf("journal: read log: %w", err)
	}
	return string(data), nil
}

// SaveResult appends one execution result record to the job's ledger.
// Output and error are truncated to the capture bound; the run id and
// timestamp are filled in here.
func (j *Journal) SaveResult(jobID, jobName string, success bool, output, errText string) {
	rec := domain.ExecutionResult{
		Timestamp: j.now().Format(domain.TimestampLayout),
		RunID:     newRunID(),
		JobID:     jobID,
		JobName:   jobName,
		Success:   success,
		Output:    truncate(output, maxCapturedChars),
		Error:     truncate(errText, maxCapturedChars),
	}

	data, err := json.Marshal(rec)
	if err != nil {
		j.logger.Error("result marshal failed", "id", jobID, "error", err)
		return
	}
	if err := appendLine(j.resultPath(jobID), string(data)+"\n"); err != nil {
		j.logger.Error("result append failed", "id", jobID, "error", err)
	}
}

// ReadResults parses the job's result ledger line by line, in chronological
// (file) order. Blank lines are skipped; a malformed line fails the read so
// corruption is not silently dropped.
func (j *Journal) ReadResults(jobID string) ([]domain.ExecutionResult, error) {
	f, err := os.Open(j.resultPath(jobID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.NewSubSystemError("results", "Journal.ReadResults", domain.ErrNotFound, jobID)
		}
		return nil, fmt.Errorf("journal: open results: %w", err)
	}
	defer f.Close()

	var results []domain.ExecutionResult
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec domain.ExecutionResult
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			return nil, fmt.Errorf("journal: parse result line: %w", err)
		}
		results = append(results, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("journal: scan results: %w", err)
	}
	return results, nil
}

// LogsDir returns the log directory (used by doctor).
func (j *Journal) LogsDir() string { return j.logsDir }

// ResultsDir returns the results directory (used by doctor).
func (j *Journal) ResultsDir() string { return j.resultsDir }

func (j *Journal) logPath(jobID string) string {
	return filepath.Join(j.logsDir, jobID+".log")
}

func (j *Journal) resultPath(jobID string) string {
	return filepath.Join(j.resultsDir, jobID+".jsonl")
}

func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	if _, err := f.WriteString(line); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

func newRunID() string {
	t := time.Now()
	entropy := ulid.Monotonic(rand.New(rand.NewSource(t.UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}
