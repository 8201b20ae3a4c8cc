package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"x402probe/internal/contract"
	"x402probe/internal/core/domain"
	"x402probe/internal/core/ports"
)

// Defaults matching the service's processing budget (~10 minutes).
const (
	DefaultPollInterval = 4 * time.Second
	DefaultMaxPolls     = 150
)

// ErrPollTimeout is returned when the job never reaches a terminal status
// within the attempt budget.
var ErrPollTimeout = errors.New("timed out waiting for job to complete")

// StatusFetcher fetches the current job record.
type StatusFetcher func(ctx context.Context) (*ports.StatusResult, error)

// realSleeper sleeps on the wall clock, honoring context cancellation.
type realSleeper struct{}

func (realSleeper) Sleep(ctx context.Context, d time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// NewSleeper returns the wall-clock sleeper.
func NewSleeper() ports.Sleeper {
	return realSleeper{}
}

// Poller drives a job to a terminal status with bounded fixed-interval
// polling. No backoff, no jitter; the attempt budget is the only limit.
type Poller struct {
	Interval    time.Duration
	MaxAttempts int
	Sleeper     ports.Sleeper
	Validator   *contract.Validator
	Logger      *zap.Logger

	// OnProgress is called after each non-terminal attempt.
	OnProgress func(attempt, max int, status string)
}

// Poll repeatedly fetches the job status until it is terminal or the attempt
// budget runs out. Transport failures and contract violations abort
// immediately; they are never retried.
func (p *Poller) Poll(ctx context.Context, fetch StatusFetcher) (*domain.PollOutcome, error) {
	interval := p.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	maxAttempts := p.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxPolls
	}
	sleeper := p.Sleeper
	if sleeper == nil {
		sleeper = realSleeper{}
	}
	logger := p.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	start := time.Now()
	prevStatus := ""

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := sleeper.Sleep(ctx, interval); err != nil {
			return nil, err
		}

		result, err := fetch(ctx)
		if err != nil {
			return nil, err
		}
		if p.Validator != nil {
			if err := p.Validator.ValidateJob(result.RawBody); err != nil {
				return nil, err
			}
		}

		job := result.Job
		if !domain.CanTransition(prevStatus, job.Status) {
			return nil, fmt.Errorf("server reported invalid status transition %q -> %q", prevStatus, job.Status)
		}
		prevStatus = job.Status

		logger.Debug("poll attempt",
			zap.Int("attempt", attempt),
			zap.Int("max", maxAttempts),
			zap.String("status", job.Status))

		if domain.IsTerminalStatus(job.Status) {
			return &domain.PollOutcome{
				Job:      job,
				Attempts: attempt,
				Elapsed:  time.Since(start),
			}, nil
		}
		if p.OnProgress != nil {
			p.OnProgress(attempt, maxAttempts, job.Status)
		}
	}

	return &domain.PollOutcome{
		Attempts: maxAttempts,
		Elapsed:  time.Since(start),
		TimedOut: true,
	}, ErrPollTimeout
}
