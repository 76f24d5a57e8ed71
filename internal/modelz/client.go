// Package modelz is a thin REST client for the Modelz deployment platform.
package modelz

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/codex-k8s/nightly/internal/supabase"
)

const maxErrorBody = 4 << 10

// APIError reports a non-2xx platform response.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("modelz %s %s returned status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// IsAPIError reports whether err is an APIError.
func IsAPIError(err error) bool {
	var target *APIError
	return errors.As(err, &target)
}

// Client calls the platform account and template endpoints.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient builds a client for the API at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type apiKeyResponse struct {
	Key string `json:"key"`
}

// FetchAPIKey returns the API key of the signed-in user.
func (c *Client) FetchAPIKey(ctx context.Context, sess supabase.Session) (string, error) {
	var out apiKeyResponse
	path := "/users/" + url.PathEscape(sess.UserID) + "/api_keys"
	if err := c.do(ctx, http.MethodGet, path, bearer(sess.AccessToken), nil, &out); err != nil {
		return "", fmt.Errorf("fetch api key: %w", err)
	}
	if out.Key == "" {
		return "", errors.New("fetch api key: empty key in response")
	}
	return out.Key, nil
}

// ListTemplates returns the public template catalog of the platform.
func (c *Client) ListTemplates(ctx context.Context, sess supabase.Session) ([]PublicTemplate, error) {
	var out []PublicTemplate
	if err := c.do(ctx, http.MethodGet, "/public/templates", bearer(sess.AccessToken), nil, &out); err != nil {
		return nil, fmt.Errorf("list public templates: %w", err)
	}
	if len(out) == 0 {
		return nil, errors.New("list public templates: platform returned no templates")
	}
	return out, nil
}

// Deployments returns the deployment API of one user cluster authenticated by apiKey.
func (c *Client) Deployments(login, cluster, apiKey string) *Deployments {
	return &Deployments{
		client: c,
		prefix: "/users/" + url.PathEscape(login) + "/clusters/" + url.PathEscape(cluster) + "/deployments",
		header: apiKeyHeader(apiKey),
	}
}

func bearer(token string) http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	return h
}

func apiKeyHeader(key string) http.Header {
	h := http.Header{}
	h.Set("X-API-Key", key)
	return h
}

// do sends a JSON request and decodes the JSON response into out when out is non-nil.
func (c *Client) do(ctx context.Context, method, path string, header http.Header, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("modelz request", "method", method, "path", path, "status", resp.StatusCode, "duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s response: %w", method, path, err)
	}
	return nil
}
