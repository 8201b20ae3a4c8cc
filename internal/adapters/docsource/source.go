// Package docsource resolves the document to summarize from a local file or
// an HTTP URL.
package docsource

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
)

// DefaultDocument is used when no document argument is given.
const DefaultDocument = "test_document.txt"

// Source implements ports.DocumentSource.
type Source struct {
	client *http.Client
}

// NewSource creates a document source with a scoped HTTP client for URL refs.
func NewSource() *Source {
	return &Source{
		client: &http.Client{Timeout: 2 * time.Minute},
	}
}

// Load reads the document text from a file path or http(s) URL.
func (s *Source) Load(ctx context.Context, ref string) (string, error) {
	if ref == "" {
		ref = DefaultDocument
	}

	var (
		text string
		err  error
	)
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		text, err = s.fetch(ctx, ref)
	} else {
		text, err = readFile(ref)
	}
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("document %s is empty", ref)
	}
	return text, nil
}

func readFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read document %s: %w", path, err)
	}
	return string(data), nil
}

func (s *Source) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build document request: %w", err)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch document %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetch document %s: unexpected status %d", url, resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return "", fmt.Errorf("read document %s: %w", url, err)
	}
	return string(data), nil
}
