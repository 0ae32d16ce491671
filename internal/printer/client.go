package printer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"printlapse/internal/config"
	"printlapse/internal/services"
)

const (
	userAgent       = "printlapse/0.1.0"
	maxResponseBody = 1 << 20
	maxErrorBody    = 2048
)

// ErrStatusFetch marks failures to obtain a printer status snapshot.
var ErrStatusFetch = errors.New("printer status fetch failed")

// Snapshot is one status report from the printer.
type Snapshot struct {
	State    string
	JobID    string
	JobLabel string
}

// HasJob reports whether the printer named a job.
func (s Snapshot) HasJob() bool {
	return s.JobID != ""
}

// Source produces status snapshots.
type Source interface {
	FetchStatus(ctx context.Context) (Snapshot, error)
}

// Doer is the subset of *http.Client the client needs.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient injects a custom HTTP client (primarily for tests).
func WithHTTPClient(d Doer) Option {
	return func(c *Client) {
		if d != nil {
			c.http = d
		}
	}
}

// Client polls a printer's HTTP status endpoint and extracts state and job
// fields from the JSON response by dotted path.
type Client struct {
	url        string
	apiKey     string
	stateField []string
	jobIDField []string
	labelField []string
	http       Doer
}

// NewClient builds a status client from cfg.
func NewClient(cfg *config.Config, opts ...Option) *Client {
	timeout := cfg.PrinterRequestTimeout()
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	c := &Client{
		url:        cfg.StatusURL(),
		apiKey:     strings.TrimSpace(cfg.Printer.APIKey),
		stateField: splitPath(cfg.Printer.StateField),
		jobIDField: splitPath(cfg.Printer.JobIDField),
		labelField: splitPath(cfg.Printer.JobLabelField),
		http:       &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// FetchStatus performs one GET against the status endpoint.
func (c *Client) FetchStatus(ctx context.Context) (Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return Snapshot{}, fetchError("build request", services.ErrConfiguration, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-Api-Key", c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		marker := services.ErrTransient
		if errors.Is(err, context.DeadlineExceeded) {
			marker = services.ErrTimeout
		}
		return Snapshot{}, fetchError("request", marker, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return Snapshot{}, fetchError("request", services.ErrTransient,
			fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return Snapshot{}, fetchError("read body", services.ErrTransient, err)
	}
	return c.decode(data)
}

func (c *Client) decode(data []byte) (Snapshot, error) {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.UseNumber()
	var doc any
	if err := decoder.Decode(&doc); err != nil {
		return Snapshot{}, fetchError("decode", services.ErrValidation, err)
	}
	state, ok := lookup(doc, c.stateField)
	if !ok {
		return Snapshot{}, fetchError("decode", services.ErrValidation,
			fmt.Errorf("state field %q missing", strings.Join(c.stateField, ".")))
	}
	snap := Snapshot{State: scalarString(state)}
	if id, ok := lookup(doc, c.jobIDField); ok {
		snap.JobID = scalarString(id)
	}
	if label, ok := lookup(doc, c.labelField); ok {
		snap.JobLabel = scalarString(label)
	}
	return snap, nil
}

func fetchError(operation string, marker, err error) error {
	return fmt.Errorf("%w: %w", ErrStatusFetch, services.Wrap(marker, "printer", operation, "", err))
}

func splitPath(path string) []string {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	return strings.Split(path, ".")
}

// lookup walks nested JSON objects along path. Numeric segments index arrays.
func lookup(doc any, path []string) (any, bool) {
	if len(path) == 0 {
		return nil, false
	}
	current := doc
	for _, segment := range path {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = next
		case []any:
			idx, err := strconv.Atoi(segment)
			if err != nil || idx < 0 || idx >= len(node) {
				return nil, false
			}
			current = node[idx]
		default:
			return nil, false
		}
	}
	if current == nil {
		return nil, false
	}
	return current, true
}

func scalarString(value any) string {
	switch v := value.(type) {
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}
