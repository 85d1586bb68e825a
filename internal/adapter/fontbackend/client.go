// Package fontbackend is the HTTP client for the font-processing backend that
// extracts metadata, builds subsets and encodes export formats.
package fontbackend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/pscheid92/fontsubset/internal/adapter/metrics"
	"github.com/pscheid92/fontsubset/internal/domain"
)

const (
	opMetadata    = "metadata"
	opSubset      = "subset"
	opExport      = "export"
	opDownload    = "download"
	opDownloadAll = "download_all"
	opDelete      = "delete_session"
	opPing        = "ping"
)

// maxErrorBody bounds how much of an error response is read for its detail.
const maxErrorBody = 64 * 1024

// Client talks to the backend over HTTP. It sets no timeouts of its own;
// callers bound each call through the context.
type Client struct {
	baseURL string
	http    *http.Client
	breaker circuitbreaker.CircuitBreaker[any]
	metrics *metrics.BackendMetrics
}

var _ domain.FontBackend = (*Client)(nil)

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithMetrics records request counts, latency and breaker state.
func WithMetrics(m *metrics.BackendMetrics) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a backend client rooted at baseURL (e.g. "http://backend:8000").
func NewClient(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse backend URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("backend URL must be absolute, got %q", baseURL)
	}

	c := &Client{
		baseURL: strings.TrimRight(u.String(), "/"),
		http:    &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	c.breaker = newBreaker(c.metrics)
	return c, nil
}

func (c *Client) endpoint(segments ...string) string {
	var b strings.Builder
	b.WriteString(c.baseURL)
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

// --- Pipeline operations ---

func (c *Client) ExtractMetadata(ctx context.Context, file domain.FontFile, sessionID string) (*domain.FontRecord, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	part, err := mw.CreateFormFile("file", file.Filename)
	if err != nil {
		return nil, fmt.Errorf("failed to create multipart file part: %w", err)
	}
	if _, err := part.Write(file.Data); err != nil {
		return nil, fmt.Errorf("failed to write multipart file part: %w", err)
	}
	if sessionID != "" {
		if err := mw.WriteField("session_id", sessionID); err != nil {
			return nil, fmt.Errorf("failed to write session_id field: %w", err)
		}
	}
	if err := mw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint("api", "upload"), &body)
	if err != nil {
		return nil, fmt.Errorf("failed to build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var resp metadataResponse
	if err := c.doJSON(opMetadata, req, &resp); err != nil {
		return nil, err
	}
	return resp.toRecord(file.Filename), nil
}

func (c *Client) Subset(ctx context.Context, r domain.SubsetRequest) (*domain.SubsetResult, error) {
	req, err := c.newJSONRequest(ctx, c.endpoint("api", "subset"), subsetRequest{
		SessionID:      r.SessionID,
		Characters:     r.Characters,
		FontNameSuffix: r.NameSuffix,
		CustomFontName: r.CustomFontName,
	})
	if err != nil {
		return nil, err
	}

	var resp subsetResponse
	if err := c.doJSON(opSubset, req, &resp); err != nil {
		return nil, err
	}
	return &domain.SubsetResult{
		Reference:      resp.SubsetPath,
		FontCount:      resp.SubsetCount,
		CharacterCount: resp.CharacterCount,
	}, nil
}

func (c *Client) Export(ctx context.Context, r domain.ExportRequest) ([]domain.ExportedArtifact, error) {
	formats := make([]string, len(r.Formats))
	for i, f := range r.Formats {
		formats[i] = string(f)
	}

	req, err := c.newJSONRequest(ctx, c.endpoint("api", "export"), exportRequest{
		SessionID: r.SessionID,
		Formats:   formats,
		FontName:  r.FontName,
	})
	if err != nil {
		return nil, err
	}

	var resp exportResponse
	if err := c.doJSON(opExport, req, &resp); err != nil {
		return nil, err
	}

	artifacts := make([]domain.ExportedArtifact, 0, len(resp.Files))
	for _, f := range resp.Files {
		format, _ := domain.ParseFontFormat(f.Format)
		artifacts = append(artifacts, domain.ExportedArtifact{
			Filename: f.Filename,
			Format:   format,
			Size:     f.Size,
			Path:     f.Path,
		})
	}
	return artifacts, nil
}

func (c *Client) Download(ctx context.Context, sessionID, filename string) (*domain.Download, error) {
	return c.download(ctx, opDownload, filename, c.endpoint("api", "download", sessionID, filename))
}

func (c *Client) DownloadAll(ctx context.Context, sessionID string) (*domain.Download, error) {
	return c.download(ctx, opDownloadAll, "", c.endpoint("api", "download-all", sessionID))
}

func (c *Client) download(ctx context.Context, op, fallbackName, target string) (*domain.Download, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build download request: %w", err)
	}

	resp, err := c.do(op, req)
	if err != nil {
		return nil, err
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	return &domain.Download{
		Body:          resp.Body,
		ContentType:   contentType,
		Filename:      attachmentName(resp.Header.Get("Content-Disposition"), fallbackName),
		ContentLength: resp.ContentLength,
	}, nil
}

// DeleteSession is idempotent: a session the backend no longer knows counts as deleted.
func (c *Client) DeleteSession(ctx context.Context, sessionID string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, c.endpoint("api", "session", sessionID), nil)
	if err != nil {
		return fmt.Errorf("failed to build delete request: %w", err)
	}

	resp, err := c.do(opDelete, req)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	drain(resp.Body)
	return nil
}

// Ping checks that the backend answers its root health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/", nil)
	if err != nil {
		return fmt.Errorf("failed to build ping request: %w", err)
	}
	resp, err := c.do(opPing, req)
	if err != nil {
		return err
	}
	drain(resp.Body)
	return nil
}

// --- Transport ---

func (c *Client) newJSONRequest(ctx context.Context, target string, payload any) (*http.Request, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

func (c *Client) doJSON(op string, req *http.Request, out any) error {
	req.Header.Set("Accept", "application/json")
	resp, err := c.do(op, req)
	if err != nil {
		return err
	}
	defer drain(resp.Body)

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.BackendError{Op: op, StatusCode: resp.StatusCode, Reason: "malformed response body", Err: err}
	}
	return nil
}

// do sends req through the circuit breaker. Any non-2xx answer becomes a
// *domain.BackendError carrying the backend's detail message. On success the
// caller owns resp.Body.
func (c *Client) do(op string, req *http.Request) (*http.Response, error) {
	if !c.breaker.TryAcquirePermit() {
		c.observe(op, "breaker_open", 0)
		return nil, &domain.BackendError{Op: op, Reason: "backend unavailable (circuit open)", Err: circuitbreaker.ErrOpen}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	elapsed := time.Since(start)

	if err != nil {
		if req.Context().Err() != nil {
			// the caller gave up; hand the permit back without blaming the backend
			c.breaker.RecordSuccess()
		} else {
			c.breaker.RecordError(err)
		}
		c.observe(op, "transport_error", elapsed)
		return nil, &domain.BackendError{Op: op, Reason: err.Error(), Err: err}
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		c.breaker.RecordFailure()
	} else {
		c.breaker.RecordSuccess()
	}
	c.observe(op, statusClass(resp.StatusCode), elapsed)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer drain(resp.Body)
		return nil, &domain.BackendError{Op: op, StatusCode: resp.StatusCode, Reason: readDetail(resp)}
	}
	return resp, nil
}

func (c *Client) observe(op, status string, elapsed time.Duration) {
	if c.metrics == nil {
		return
	}
	c.metrics.RequestsTotal.WithLabelValues(op, status).Inc()
	if elapsed > 0 {
		c.metrics.RequestDuration.WithLabelValues(op).Observe(elapsed.Seconds())
	}
}

func statusClass(code int) string {
	return fmt.Sprintf("%dxx", code/100)
}

// readDetail extracts {"detail": "..."} error bodies, falling back to
// the raw text and finally to the status text.
func readDetail(resp *http.Response) string {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var er errorResponse
	if json.Unmarshal(raw, &er) == nil && er.Detail != "" {
		return er.Detail
	}
	if text := strings.TrimSpace(string(raw)); text != "" {
		return text
	}
	return http.StatusText(resp.StatusCode)
}

func attachmentName(disposition, fallback string) string {
	if disposition != "" {
		if _, params, err := mime.ParseMediaType(disposition); err == nil && params["filename"] != "" {
			return params["filename"]
		}
	}
	return fallback
}

func drain(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, body)
	_ = body.Close()
}
