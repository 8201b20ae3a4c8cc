package ports

import (
	"context"
	"time"

	"x402probe/internal/core/domain"
)

// SubmitResult holds the response to a paid submission.
type SubmitResult struct {
	JobID     string `json:"job_id"`
	Status    string `json:"status"`
	StatusURL string `json:"status_url"`
	Provider  string `json:"provider,omitempty"`
}

// StatusResult pairs the decoded job with the raw response body so callers
// can run contract checks on exactly what the server sent.
type StatusResult struct {
	Job     domain.Job
	RawBody []byte
}

// SummaryService is the contract for talking to the summarization API.
type SummaryService interface {
	// Health checks the service root. Returns the advertised AI provider,
	// if any. A non-200 response is an error.
	Health(ctx context.Context) (provider string, err error)

	// SubmitUnpaid posts the document without payment credentials and
	// returns the observed HTTP status code and body.
	SubmitUnpaid(ctx context.Context, document string) (statusCode int, body []byte, err error)

	// SubmitPaid posts the document through the paying client. The payment
	// negotiation happens inside the transport.
	SubmitPaid(ctx context.Context, document string) (*SubmitResult, error)

	// SubmitWithPayment replays a previously captured payment header and
	// returns the observed status code and body.
	SubmitWithPayment(ctx context.Context, document, paymentHeader string) (statusCode int, body []byte, err error)

	// JobStatus fetches the current job record. Non-200 responses and
	// undecodable bodies are errors.
	JobStatus(ctx context.Context, jobID string) (*StatusResult, error)

	// LastPaymentHeader returns the payment credential attached to the most
	// recent paid submission, empty if none was made.
	LastPaymentHeader() string

	// LastSettlement returns the settlement the server reported for the most
	// recent payment, nil if none.
	LastSettlement() *domain.Settlement
}

// DocumentSource resolves the document to summarize from a path or URL.
type DocumentSource interface {
	// Load returns the document text. Empty documents are an error.
	Load(ctx context.Context, ref string) (string, error)
}

// ReportStore persists run artifacts.
type ReportStore interface {
	// InitRun creates the run directory structure.
	InitRun(runID string) error

	// SaveReport writes the run report.
	SaveReport(runID string, report *domain.RunReport) error

	// SaveSummary writes the completed summary text.
	SaveSummary(runID string, summary string) error

	// RunPath returns the filesystem path for a run.
	RunPath(runID string) string
}

// Sleeper suspends between poll attempts. Injectable so the polling loop is
// testable without wall-clock delays.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}
