// Package notify delivers execution results back to the person who scheduled
// a job, routed by the creator channel recorded on the job. The dispatcher
// never returns an error: any delivery problem is logged, journaled, and
// reported as false so the scheduler loop is unaffected.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"taskpilot/internal/domain"
	"taskpilot/internal/infra/config"
	"taskpilot/internal/usecase/jobs"
)

// Sender delivers one message to one recipient on a specific channel.
type Sender interface {
	Name() string
	Send(ctx context.Context, identity, message string) error
}

// Dispatcher routes notifications to the registered channel senders.
type Dispatcher struct {
	senders map[string]Sender
	journal *jobs.Journal
	limiter *rate.Limiter
	logger  *slog.Logger
}

// NewDispatcher builds a dispatcher with every sender whose credentials can
// be resolved from cfg.CredentialsDir. Channels without credentials are
// skipped with a debug log; they can still be configured later via env vars
// and a restart.
func NewDispatcher(cfg config.NotifyConfig, journal *jobs.Journal, logger *slog.Logger) *Dispatcher {
	d := &Dispatcher{
		senders: make(map[string]Sender),
		journal: journal,
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.RatePerMinute)/60.0), cfg.Burst),
		logger:  logger,
	}

	builders := []func(string, *slog.Logger) (Sender, error){
		newTelegramSender,
		newWebexSender,
		newDiscordSender,
		newSlackSender,
	}
	for _, build := range builders {
		s, err := build(cfg.CredentialsDir, logger)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			logger.Warn("notification sender unavailable", "error", err)
			continue
		}
		d.Register(s, cfg.CircuitBreaker)
	}
	return d
}

// Register adds a sender, wrapping it with a circuit breaker when enabled.
func (d *Dispatcher) Register(s Sender, cb config.CircuitBreakerConfig) {
	if cb.Enabled {
		s = newBreakerSender(s, cb, d.logger)
	}
	d.senders[s.Name()] = s
	d.logger.Info("notification channel registered", "channel", s.Name())
}

// Channels lists the registered channel names (used by doctor).
func (d *Dispatcher) Channels() []string {
	names := make([]string, 0, len(d.senders))
	for name := range d.senders {
		names = append(names, name)
	}
	return names
}

// Notify implements domain.Notifier.
func (d *Dispatcher) Notify(ctx context.Context, job *domain.Job, message string) bool {
	creator := job.CreatedBy
	if creator.Channel == "" || creator.Identity == "" {
		d.logger.Warn("notification skipped", "id", job.ID, "reason", "no creator info")
		d.journal.Log(job.ID, "Notification skipped: no created_by info")
		return false
	}

	sender, ok := d.senders[creator.Channel]
	if !ok {
		d.logger.Warn("notification skipped", "id", job.ID, "channel", creator.Channel, "reason", "unknown channel")
		d.journal.Log(job.ID, fmt.Sprintf("Notification failed: unknown channel %q", creator.Channel))
		return false
	}

	if !d.limiter.Allow() {
		d.logger.Warn("notification rate limited", "id", job.ID, "channel", creator.Channel)
		d.journal.Log(job.ID, "Notification failed: rate limit exceeded")
		return false
	}

	if err := sender.Send(ctx, creator.Identity, message); err != nil {
		d.logger.Error("notification failed", "id", job.ID, "channel", creator.Channel, "error", err)
		d.journal.Log(job.ID, fmt.Sprintf("Notification failed: %s", err))
		return false
	}

	d.journal.Log(job.ID, fmt.Sprintf("Notification sent to %s (%s)", creator.Channel, creator.Identity))
	return true
}

var _ domain.Notifier = (*Dispatcher)(nil)

// breakerSender wraps a Sender with circuit breaker protection. When a
// channel's API fails repeatedly, the circuit opens and subsequent sends
// fail fast without reaching the network, preventing retry storms.
type breakerSender struct {
	inner   Sender
	breaker *gobreaker.CircuitBreaker[struct{}]
}

func newBreakerSender(inner Sender, cfg config.CircuitBreakerConfig, logger *slog.Logger) *breakerSender {
	cb := gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        "notify:" + inner.Name(),
		MaxRequests: 1, // allow 1 probe in half-open state
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("circuit breaker state change",
				"breaker", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	})
	return &breakerSender{inner: inner, breaker: cb}
}

func (b *breakerSender) Name() string { return b.inner.Name() }

func (b *breakerSender) Send(ctx context.Context, identity, message string) error {
	_, err := b.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, b.inner.Send(ctx, identity, message)
	})
	if err != nil {
		if err == gobreaker.ErrOpenState || err == gobreaker.ErrTooManyRequests {
			return fmt.Errorf("channel %q circuit open: %w", b.inner.Name(), err)
		}
		return err
	}
	return nil
}
