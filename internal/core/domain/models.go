package domain

import "time"

// Job statuses as reported by the summarization service.
const (
	StatusQueued     = "queued"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

var allowedTransitions = map[string]map[string]bool{
	"": {
		StatusQueued:     true,
		StatusProcessing: true,
		StatusCompleted:  true,
		StatusFailed:     true,
	},
	StatusQueued: {
		StatusQueued:     true,
		StatusProcessing: true,
		StatusCompleted:  true,
		StatusFailed:     true,
	},
	StatusProcessing: {
		StatusProcessing: true,
		StatusCompleted:  true,
		StatusFailed:     true,
	},
	// Terminal states absorb; the server must not resurrect a finished job.
	StatusCompleted: {
		StatusCompleted: true,
	},
	StatusFailed: {
		StatusFailed: true,
	},
}

func IsKnownStatus(status string) bool {
	_, ok := allowedTransitions[status]
	return ok
}

func IsTerminalStatus(status string) bool {
	return status == StatusCompleted || status == StatusFailed
}

// CanTransition reports whether a status observed after "from" is consistent
// with the server-owned job lifecycle.
func CanTransition(from, to string) bool {
	next, ok := allowedTransitions[from]
	if !ok {
		return false
	}
	return next[to]
}

// Job is the server-side work item as observed through the status endpoint.
type Job struct {
	ID           string `json:"job_id"`
	Status       string `json:"status"`
	Summary      string `json:"summary,omitempty"`
	WordCount    int    `json:"word_count,omitempty"`
	ReadingTime  string `json:"reading_time,omitempty"`
	Error        string `json:"error,omitempty"`
	ErrorDetails string `json:"error_details,omitempty"`
	Provider     string `json:"provider,omitempty"`
}

// ProbeResult records one pass/fail verdict from a payment-gate probe.
type ProbeResult struct {
	Name       string `json:"name"`
	Passed     bool   `json:"passed"`
	StatusCode int    `json:"status_code"`
	Detail     string `json:"detail,omitempty"`
}

// PollOutcome is the result of driving the polling loop to its end.
type PollOutcome struct {
	Job      Job           `json:"job"`
	Attempts int           `json:"attempts"`
	Elapsed  time.Duration `json:"elapsed"`
	TimedOut bool          `json:"timed_out"`
}

// Settlement describes the payment settlement reported by the server in the
// X-Payment-Response header.
type Settlement struct {
	Success     bool   `json:"success"`
	Transaction string `json:"transaction,omitempty"`
	Network     string `json:"network,omitempty"`
	Payer       string `json:"payer,omitempty"`
}

// RunReport holds the outcome of a complete probe run.
type RunReport struct {
	RunID         string        `json:"run_id"`
	ServiceURL    string        `json:"service_url"`
	WalletAddress string        `json:"wallet_address"`
	DocumentChars int           `json:"document_chars"`
	Provider      string        `json:"provider,omitempty"`
	Probes        []ProbeResult `json:"probes"`
	Job           *Job          `json:"job,omitempty"`
	PollAttempts  int           `json:"poll_attempts"`
	Settlement    *Settlement   `json:"settlement,omitempty"`
	Success       bool          `json:"success"`
	ErrorMessage  string        `json:"error_message,omitempty"`
	StartedAt     time.Time     `json:"started_at"`
	CompletedAt   time.Time     `json:"completed_at"`
}
