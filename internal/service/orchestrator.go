// Package service orchestrates the probe run against an x402-gated
// summarization service.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"x402probe/internal/core/domain"
	"x402probe/internal/core/ports"
	"x402probe/internal/report"
)

// ErrRunFailed marks a run that completed its sequence but did not pass.
var ErrRunFailed = errors.New("probe run failed")

// RunInput carries the per-run parameters.
type RunInput struct {
	ServiceURL    string
	WalletAddress string
	Document      string
}

// Orchestrator coordinates the probe workflow: health check, unpaid probe,
// paid request, replay probe, polling, report.
type Orchestrator struct {
	service  ports.SummaryService
	store    ports.ReportStore
	poller   *Poller
	renderer *report.Renderer
	logger   *zap.Logger
}

// NewOrchestrator creates an Orchestrator.
func NewOrchestrator(
	svc ports.SummaryService,
	store ports.ReportStore,
	poller *Poller,
	renderer *report.Renderer,
	logger *zap.Logger,
) *Orchestrator {
	return &Orchestrator{
		service:  svc,
		store:    store,
		poller:   poller,
		renderer: renderer,
		logger:   logger,
	}
}

// Run executes a complete probe run. The returned report is always non-nil;
// the error is nil only when every probe passed and the job completed.
func (o *Orchestrator) Run(ctx context.Context, in RunInput) (*domain.RunReport, error) {
	runID := uuid.New().String()
	rep := &domain.RunReport{
		RunID:         runID,
		ServiceURL:    in.ServiceURL,
		WalletAddress: in.WalletAddress,
		DocumentChars: len(in.Document),
		StartedAt:     time.Now().UTC(),
	}
	o.logger.Info("starting probe run",
		zap.String("run_id", runID),
		zap.String("service_url", in.ServiceURL),
		zap.Int("document_chars", len(in.Document)))

	if err := o.store.InitRun(runID); err != nil {
		return o.finish(rep, err)
	}

	// Connectivity comes first; everything else is pointless against a dead
	// service.
	o.renderer.Section("Checking service")
	provider, err := o.service.Health(ctx)
	if err != nil {
		o.renderer.Fail("service unreachable: %v", err)
		return o.finish(rep, fmt.Errorf("health check: %w", err))
	}
	rep.Provider = provider
	o.renderer.Pass("service is running")
	o.renderer.Info("wallet: %s", in.WalletAddress)

	o.runUnpaidProbe(ctx, rep, in.Document)
	if rep.ErrorMessage != "" {
		return o.finish(rep, errors.New(rep.ErrorMessage))
	}

	o.renderer.Section("Requesting paid summary")
	submitted, err := o.service.SubmitPaid(ctx, in.Document)
	if err != nil {
		o.renderer.Fail("paid request failed: %v", err)
		return o.finish(rep, fmt.Errorf("paid submit: %w", err))
	}
	if submitted.Provider != "" {
		rep.Provider = submitted.Provider
	}
	o.renderer.Pass("job created: %s (status %s)", submitted.JobID, submitted.Status)
	o.logger.Info("job created",
		zap.String("run_id", runID),
		zap.String("job_id", submitted.JobID),
		zap.String("status", submitted.Status))

	o.runReplayProbe(ctx, rep, in.Document)
	if rep.ErrorMessage != "" {
		return o.finish(rep, errors.New(rep.ErrorMessage))
	}

	o.renderer.Section("Polling for result")
	outcome, err := o.poller.Poll(ctx, func(ctx context.Context) (*ports.StatusResult, error) {
		return o.service.JobStatus(ctx, submitted.JobID)
	})
	if outcome != nil {
		rep.PollAttempts = outcome.Attempts
	}
	if err != nil {
		o.renderer.Fail("%v", err)
		return o.finish(rep, err)
	}

	job := outcome.Job
	rep.Job = &job
	rep.Settlement = o.service.LastSettlement()

	if job.Status == domain.StatusFailed {
		o.renderer.Fail("job failed: %s", job.Error)
		if job.ErrorDetails != "" {
			o.renderer.Info("details: %s", job.ErrorDetails)
		}
		return o.finish(rep, fmt.Errorf("job failed: %s", job.Error))
	}

	o.renderer.Pass("completed after %d polls (~%s)", outcome.Attempts, outcome.Elapsed.Round(time.Second))
	if err := o.store.SaveSummary(runID, job.Summary); err != nil {
		o.logger.Warn("save summary artifact", zap.Error(err))
	}

	rep.Success = allProbesPassed(rep.Probes)
	if !rep.Success {
		return o.finish(rep, ErrRunFailed)
	}
	return o.finish(rep, nil)
}

// runUnpaidProbe verifies the service rejects requests without payment.
// Transport failures are recorded as fatal; an unexpected status is only a
// failed verdict and the run continues.
func (o *Orchestrator) runUnpaidProbe(ctx context.Context, rep *domain.RunReport, document string) {
	o.renderer.Section("Testing without payment")
	code, _, err := o.service.SubmitUnpaid(ctx, document)
	if err != nil {
		o.renderer.Fail("request failed: %v", err)
		rep.ErrorMessage = fmt.Sprintf("unpaid probe: %v", err)
		return
	}
	probe := domain.ProbeResult{
		Name:       "unpaid request rejected",
		StatusCode: code,
		Passed:     code == http.StatusPaymentRequired,
	}
	if probe.Passed {
		o.renderer.Pass("correctly rejected with 402 Payment Required")
	} else {
		probe.Detail = fmt.Sprintf("expected 402, got %d", code)
		o.renderer.Fail("unexpected status: %d", code)
	}
	rep.Probes = append(rep.Probes, probe)
}

// runReplayProbe verifies a consumed payment header cannot be reused. The
// server contract is ambiguous between 402 and 400 here; both count as a
// rejection.
func (o *Orchestrator) runReplayProbe(ctx context.Context, rep *domain.RunReport, document string) {
	header := o.service.LastPaymentHeader()
	if header == "" {
		o.renderer.Info("no payment was required; skipping replay probe")
		return
	}

	o.renderer.Section("Testing payment reuse")
	code, _, err := o.service.SubmitWithPayment(ctx, document, header)
	if err != nil {
		o.renderer.Fail("request failed: %v", err)
		rep.ErrorMessage = fmt.Sprintf("replay probe: %v", err)
		return
	}
	probe := domain.ProbeResult{
		Name:       "payment replay rejected",
		StatusCode: code,
		Passed:     code == http.StatusPaymentRequired || code == http.StatusBadRequest,
	}
	if probe.Passed {
		o.renderer.Pass("correctly rejected payment reuse with %d", code)
	} else {
		probe.Detail = fmt.Sprintf("expected 402 or 400, got %d", code)
		o.renderer.Fail("unexpected status: %d", code)
	}
	rep.Probes = append(rep.Probes, probe)
}

// finish stamps the report, persists it, renders it, and maps the run to its
// final error.
func (o *Orchestrator) finish(rep *domain.RunReport, runErr error) (*domain.RunReport, error) {
	rep.CompletedAt = time.Now().UTC()
	if runErr != nil && rep.ErrorMessage == "" {
		rep.ErrorMessage = runErr.Error()
	}
	if err := o.store.SaveReport(rep.RunID, rep); err != nil {
		o.logger.Warn("save run report", zap.Error(err))
	}
	o.renderer.Report(rep)
	o.logger.Info("probe run finished",
		zap.String("run_id", rep.RunID),
		zap.Bool("success", rep.Success),
		zap.Int("poll_attempts", rep.PollAttempts))
	return rep, runErr
}

func allProbesPassed(probes []domain.ProbeResult) bool {
	for _, p := range probes {
		if !p.Passed {
			return false
		}
	}
	return true
}
