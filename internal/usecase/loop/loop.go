// Package loop drives the scheduler: a single goroutine polls the job
// document on a fixed interval and runs every due job sequentially. One
// writer means no job can overlap itself and the document is saved at most
// once per tick.
package loop

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"taskpilot/internal/domain"
	"taskpilot/internal/infra/tracer"
	"taskpilot/internal/usecase/jobs"
	"taskpilot/internal/usecase/schedule"
)

// Executor runs one due job to completion. The production implementation
// lives in the executor package; tests substitute a fake.
type Executor interface {
	Execute(ctx context.Context, job *domain.Job) domain.Outcome
}

// Loop is the polling scheduler.
type Loop struct {
	store    *jobs.Store
	journal  *jobs.Journal
	exec     Executor
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a scheduler loop. A non-positive interval falls back to 1s.
func New(store *jobs.Store, journal *jobs.Journal, exec Executor, interval time.Duration, logger *slog.Logger) *Loop {
	if interval <= 0 {
		interval = time.Second
	}
	return &Loop{
		store:    store,
		journal:  journal,
		exec:     exec,
		interval: interval,
		logger:   logger,
		now:      domain.UTCNow,
	}
}

// Run polls until ctx is cancelled. A tick in progress completes before the
// loop returns.
func (l *Loop) Run(ctx context.Context) {
	l.logger.Info("scheduler started", "interval", l.interval)

	ticker := time.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			l.logger.Info("scheduler stopped")
			return
		case <-ticker.C:
			l.Tick(ctx)
		}
	}
}

// Tick runs one poll cycle: load the document, execute every due job in
// storage order, then persist the updated state. A failing tick never kills
// the loop.
func (l *Loop) Tick(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("panic in scheduler tick", "panic", r)
		}
	}()

	ctx, span := tracer.StartSpan(ctx, "scheduler.tick")
	defer span.End()

	doc := l.store.LoadDocument()
	now := l.now()

	dispatched := 0
	for i := range doc.Jobs {
		job := &doc.Jobs[i]
		if !job.Due(now) {
			continue
		}

		l.logger.Info("dispatching job", "id", job.ID,
			"scheduled_for", job.NextRun.Format(domain.TimestampLayout))
		l.exec.Execute(ctx, job)

		ran := l.now()
		job.LastRun = &ran
		l.reschedule(job, ran)
		dispatched++
	}

	if dispatched == 0 {
		return
	}
	span.SetAttributes(tracer.IntAttr("jobs.dispatched", dispatched))

	if err := l.store.SaveDocument(doc); err != nil {
		tracer.RecordError(span, err)
		l.logger.Error("saving job document failed", "error", err)
	}
}

// reschedule computes the job's state after an attempt: recurring jobs get a
// fresh next_run, one-time jobs are disabled. A recurring schedule that no
// longer parses disables the job rather than retrying it every tick.
func (l *Loop) reschedule(job *domain.Job, ran time.Time) {
	if !job.Recurring {
		job.Enabled = false
		job.NextRun = nil
		l.journal.Log(job.ID, "One-time job completed, disabled")
		return
	}

	next, err := schedule.Next(job.Schedule, ran)
	if err != nil {
		job.Enabled = false
		job.NextRun = nil
		l.journal.Log(job.ID, fmt.Sprintf("Schedule %q no longer parses, job disabled", job.Schedule))
		l.logger.Error("recurring job disabled", "id", job.ID, "schedule", job.Schedule, "error", err)
		return
	}
	next = next.Truncate(time.Second)
	job.NextRun = &next
	l.journal.Log(job.ID, fmt.Sprintf("Next run scheduled for %s", next.Format(domain.TimestampLayout)))
}
