package summary

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"x402probe/internal/core/domain"
	"x402probe/internal/x402"
)

const devKey = "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80"

func newClient(t *testing.T, baseURL string) *Client {
	t.Helper()
	wallet, err := x402.NewWallet(devKey)
	require.NoError(t, err)
	return NewClient(baseURL, wallet, 10000, 60*time.Second)
}

func TestHealth(t *testing.T) {
	t.Run("200 with provider", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/", r.URL.Path)
			_ = json.NewEncoder(w).Encode(map[string]string{"ai_provider": "openai"})
		}))
		defer srv.Close()

		provider, err := newClient(t, srv.URL).Health(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "openai", provider)
	})

	t.Run("non-200 is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "maintenance", http.StatusServiceUnavailable)
		}))
		defer srv.Close()

		_, err := newClient(t, srv.URL).Health(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "503")
	})

	t.Run("unreachable service", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		_, err := newClient(t, srv.URL).Health(context.Background())
		require.Error(t, err)
	})
}

func TestSubmitUnpaid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/summarize-doc", r.URL.Path)
		assert.Empty(t, r.Header.Get(x402.PaymentHeader))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "some text", body["document"])
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"x402Version":1,"accepts":[]}`))
	}))
	defer srv.Close()

	code, body, err := newClient(t, srv.URL).SubmitUnpaid(context.Background(), "some text")
	require.NoError(t, err)
	assert.Equal(t, http.StatusPaymentRequired, code)
	assert.Contains(t, string(body), "x402Version")
}

func TestSubmitWithPayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "stale-header", r.Header.Get(x402.PaymentHeader))
		http.Error(w, `{"error":"payment already used"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	code, _, err := newClient(t, srv.URL).SubmitWithPayment(context.Background(), "doc", "stale-header")
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestSubmitPaid(t *testing.T) {
	t.Run("negotiates payment and parses result", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get(x402.PaymentHeader) == "" {
				w.WriteHeader(http.StatusPaymentRequired)
				_ = json.NewEncoder(w).Encode(x402.PaymentRequired{
					X402Version: x402.Version,
					Accepts: []x402.PaymentRequirements{{
						Scheme:            x402.SchemeExact,
						Network:           "base-sepolia",
						MaxAmountRequired: "100",
						PayTo:             "0x209693Bc6afc0C5328bA36FaF03C514EF312287C",
						Asset:             "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
					}},
				})
				return
			}
			_ = json.NewEncoder(w).Encode(map[string]string{
				"job_id":     "job-42",
				"status":     "queued",
				"status_url": "/summarize-doc/job-42",
				"provider":   "openai",
			})
		}))
		defer srv.Close()

		client := newClient(t, srv.URL)
		result, err := client.SubmitPaid(context.Background(), "doc")
		require.NoError(t, err)
		assert.Equal(t, "job-42", result.JobID)
		assert.Equal(t, "queued", result.Status)
		assert.Equal(t, "openai", result.Provider)
		assert.NotEmpty(t, client.LastPaymentHeader())
	})

	t.Run("missing job_id is an error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"status":"queued"}`))
		}))
		defer srv.Close()

		_, err := newClient(t, srv.URL).SubmitPaid(context.Background(), "doc")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "job_id")
	})

	t.Run("unexpected status includes body dump", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := newClient(t, srv.URL).SubmitPaid(context.Background(), "doc")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "500")
		assert.Contains(t, err.Error(), "boom")
	})
}

func TestJobStatus(t *testing.T) {
	t.Run("decodes job and keeps raw body", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/summarize-doc/job-42", r.URL.Path)
			_, _ = w.Write([]byte(`{"job_id":"job-42","status":"completed","summary":"short","word_count":120,"reading_time":"1 min"}`))
		}))
		defer srv.Close()

		result, err := newClient(t, srv.URL).JobStatus(context.Background(), "job-42")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusCompleted, result.Job.Status)
		assert.Equal(t, "short", result.Job.Summary)
		assert.Equal(t, 120, result.Job.WordCount)
		assert.Contains(t, string(result.RawBody), "reading_time")
	})

	t.Run("non-200 is fatal", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "not found", http.StatusNotFound)
		}))
		defer srv.Close()

		_, err := newClient(t, srv.URL).JobStatus(context.Background(), "missing")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "404")
	})

	t.Run("unparsable body is fatal", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte("<html>oops</html>"))
		}))
		defer srv.Close()

		_, err := newClient(t, srv.URL).JobStatus(context.Background(), "job-42")
		require.Error(t, err)
	})
}
