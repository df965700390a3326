// Package jobs owns the persistent job document and the per-job execution
// journal (log + result ledger). The document is a single human-readable
// JSON file; every mutating operation is a full read-modify-write, on the
// assumption that exactly one scheduling process owns the store.
package jobs

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"taskpilot/internal/domain"
	"taskpilot/internal/usecase/schedule"
)

// Store persists the full job list as one JSON document.
type Store struct {
	path    string
	journal *Journal
	logger  *slog.Logger
	mu      sync.Mutex
	now     func() time.Time
}

// NewStore creates a file-backed job store. The parent directory and an
// empty document are created if missing.
func NewStore(path string, journal *Journal, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("jobstore: create dir: %w", err)
	}

	s := &Store{
		path:    path,
		journal: journal,
		logger:  logger,
		now:     domain.UTCNow,
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if err := s.save(&domain.Document{Jobs: []domain.Job{}}); err != nil {
			return nil, fmt.Errorf("jobstore: init: %w", err)
		}
	}

	return s, nil
}

// CreateParams holds the inputs for scheduling a new job.
type CreateParams struct {
	Name       string
	Schedule   string
	Agent      string
	Runtime    string
	Model      string
	Task       string
	Mode       domain.ExecMode
	Notify     bool
	Recurring  bool
	CreatedBy  domain.Creator
	WorkingDir string
}

// Create computes the job id and initial next_run, appends the job to the
// document, and persists it. It fails when the schedule phrase is
// unparseable or the derived id already exists.
func (s *Store) Create(params CreateParams) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if params.Name == "" || params.Task == "" {
		return nil, domain.NewSubSystemError("store", "Store.Create", domain.ErrInvalidInput, "name and task are required")
	}

	now := s.now()
	next, err := schedule.Next(params.Schedule, now)
	if err != nil {
		return nil, domain.WrapOp("Store.Create", err)
	}
	next = next.Truncate(time.Second)

	doc, err := s.load()
	if err != nil {
		return nil, err
	}

	id := domain.JobID(params.Name)
	if doc.Find(id) != nil {
		return nil, domain.NewSubSystemError("store", "Store.Create", domain.ErrDuplicate, id)
	}

	job := domain.Job{
		ID:         id,
		Name:       params.Name,
		Agent:      params.Agent,
		Runtime:    params.Runtime,
		Model:      params.Model,
		Task:       params.Task,
		Mode:       params.Mode,
		Schedule:   params.Schedule,
		Recurring:  params.Recurring,
		Notify:     params.Notify,
		CreatedBy:  params.CreatedBy,
		WorkingDir: params.WorkingDir,
		Enabled:    true,
		NextRun:    &next,
		CreatedAt:  now,
	}

	doc.Jobs = append(doc.Jobs, job)
	if err := s.save(doc); err != nil {
		return nil, err
	}

	s.journal.Log(id, fmt.Sprintf("Scheduled task: %s (schedule: %s, next run: %s)",
		params.Name, params.Schedule, next.Format(domain.TimestampLayout)))
	s.logger.Info("job created", "id", id, "schedule", params.Schedule, "mode", job.EffectiveMode())

	return &job, nil
}

// List returns all jobs in storage (insertion) order.
func (s *Store) List() ([]domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return nil, err
	}
	return doc.Jobs, nil
}

// Pause disables a job. Pausing an already-paused job succeeds.
func (s *Store) Pause(id string) error {
	return s.setEnabled(id, false, "Job paused")
}

// Resume enables a job. Resuming an already-enabled job succeeds.
func (s *Store) Resume(id string) error {
	return s.setEnabled(id, true, "Job resumed")
}

func (s *Store) setEnabled(id string, enabled bool, logLine string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}

	job := doc.Find(id)
	if job == nil {
		return domain.NewSubSystemError("store", "Store.SetEnabled", domain.ErrNotFound, id)
	}

	job.Enabled = enabled
	if err := s.save(doc); err != nil {
		return err
	}

	s.journal.Log(id, logLine)
	s.logger.Info("job state changed", "id", id, "enabled", enabled)
	return nil
}

// Delete removes exactly one job by id.
func (s *Store) Delete(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		return err
	}

	kept := doc.Jobs[:0]
	found := false
	for _, j := range doc.Jobs {
		if j.ID == id {
			found = true
			continue
		}
		kept = append(kept, j)
	}
	if !found {
		return domain.NewSubSystemError("store", "Store.Delete", domain.ErrNotFound, id)
	}

	doc.Jobs = kept
	if err := s.save(doc); err != nil {
		return err
	}

	s.journal.Log(id, "Job deleted")
	s.logger.Info("job deleted", "id", id)
	return nil
}

// Logs returns the accumulated log text for a job.
func (s *Store) Logs(id string) (string, error) {
	return s.journal.ReadLog(id)
}

// LoadDocument returns the current document for the scheduler loop.
// A corrupted document degrades to an empty job list so the loop never
// crashes on bad data; the corruption is logged and left on disk for
// inspection (doctor reports it).
func (s *Store) LoadDocument() *domain.Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.load()
	if err != nil {
		s.logger.Error("job document unreadable, treating as empty", "path", s.path, "error", err)
		return &domain.Document{Jobs: []domain.Job{}}
	}
	return doc
}

// SaveDocument persists the document. Called once per loop tick.
func (s *Store) SaveDocument(doc *domain.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(doc)
}

// Path returns the document location (used by doctor).
func (s *Store) Path() string { return s.path }

// --- persistence ---

// ReadDocument reads and parses a jobs document. A missing file yields an
// empty document.
func ReadDocument(path string) (*domain.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &domain.Document{Jobs: []domain.Job{}}, nil
		}
		return nil, fmt.Errorf("jobstore: read: %w", err)
	}

	var doc domain.Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("jobstore: parse %s: %w", path, err)
	}
	if doc.Jobs == nil {
		doc.Jobs = []domain.Job{}
	}
	return &doc, nil
}

// load parses the full document. Mutating operations propagate the error
// rather than masking corruption: overwriting a corrupt document with an
// empty one would silently destroy jobs.
func (s *Store) load() (*domain.Document, error) {
	return ReadDocument(s.path)
}

// save atomically writes the document as indented JSON.
func (s *Store) save(doc *domain.Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return domain.WrapOp("jobstore: marshal", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return domain.WrapOp("jobstore: write", err)
	}
	return os.Rename(tmp, s.path)
}
