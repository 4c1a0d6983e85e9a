package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

const (
	// FetchSubject is the request/reply subject of the retrieval service.
	FetchSubject = "rag.context.fetch"

	// DefaultTimeout bounds one retrieval request.
	DefaultTimeout = 5 * time.Second
)

// Requester is the request/reply half of a NATS connection.
// *nats.Conn implements it.
type Requester interface {
	RequestWithContext(ctx context.Context, subj string, data []byte) (*nats.Msg, error)
}

// FetchRequest is the payload sent to the retrieval service.
type FetchRequest struct {
	Query string `json:"query"`
	K     int    `json:"k"`
}

// FetchResponse is the retrieval service reply.
type FetchResponse struct {
	Excerpts []Excerpt `json:"excerpts"`
	Error    string    `json:"error,omitempty"`
}

// NATSFetcher asks the retrieval service over NATS request/reply.
type NATSFetcher struct {
	conn    Requester
	subject string
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a NATSFetcher.
type Option func(*NATSFetcher)

// WithSubject overrides the request subject.
func WithSubject(subject string) Option {
	return func(f *NATSFetcher) {
		if subject != "" {
			f.subject = subject
		}
	}
}

// WithTimeout overrides the request timeout.
func WithTimeout(d time.Duration) Option {
	return func(f *NATSFetcher) {
		if d > 0 {
			f.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(f *NATSFetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// NewNATSFetcher creates a fetcher over a NATS connection.
func NewNATSFetcher(conn Requester, opts ...Option) *NATSFetcher {
	f := &NATSFetcher{
		conn:    conn,
		subject: FetchSubject,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// FetchContext implements Fetcher.
func (f *NATSFetcher) FetchContext(ctx context.Context, query string, k int) (string, error) {
	if k <= 0 {
		k = DefaultK
	}
	data, err := json.Marshal(FetchRequest{Query: query, K: k})
	if err != nil {
		return "", fmt.Errorf("marshal fetch request: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	start := time.Now()
	msg, err := f.conn.RequestWithContext(reqCtx, f.subject, data)
	if err != nil {
		return "", fmt.Errorf("request %s: %w", f.subject, err)
	}

	var resp FetchResponse
	if err := json.Unmarshal(msg.Data, &resp); err != nil {
		return "", fmt.Errorf("decode fetch response: %w", err)
	}
	if resp.Error != "" {
		return "", fmt.Errorf("retrieval service: %s", resp.Error)
	}

	f.logger.Debug("Fetched reference context",
		"subject", f.subject,
		"k", k,
		"excerpts", len(resp.Excerpts),
		"elapsed", time.Since(start))

	return FormatExcerpts(resp.Excerpts), nil
}
