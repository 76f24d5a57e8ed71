package modelz

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/codex-k8s/nightly/internal/nightly"
)

// InferenceProber sends a single empty inference request to a deployment endpoint.
type InferenceProber struct {
	apiKey string
	http   *http.Client
}

var _ nightly.Prober = (*InferenceProber)(nil)

// NewInferenceProber builds a prober authenticated by apiKey. Requests are bounded
// only by the caller's context.
func NewInferenceProber(apiKey string) *InferenceProber {
	return &InferenceProber{apiKey: apiKey, http: &http.Client{}}
}

// Probe posts to {endpoint}/inference and reports transport or status failures.
func (p *InferenceProber) Probe(ctx context.Context, endpoint string) error {
	target := strings.TrimRight(endpoint, "/") + "/inference"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, http.NoBody)
	if err != nil {
		return fmt.Errorf("build inference request: %w", err)
	}
	req.Header.Set("X-API-Key", p.apiKey)

	resp, err := p.http.Do(req)
	if err != nil {
		return fmt.Errorf("inference request: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	if resp.StatusCode >= 500 {
		return fmt.Errorf("inference returned status %d", resp.StatusCode)
	}
	return nil
}
