package source

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// DefaultMaxBytes caps the size of a single HTTP response.
const DefaultMaxBytes = 512 << 20

// HTTPSource reads http(s) references.
type HTTPSource struct {
	client   *http.Client
	maxBytes int64
	logger   *zap.Logger
}

// HTTPOption is a functional option for configuring an HTTPSource.
type HTTPOption func(*HTTPSource)

// WithHTTPClient sets the client used for requests.
//
// Parameters:
//   - c: the client
//
// Returns:
//   - HTTPOption: a function that applies the client to a source
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(s *HTTPSource) {
		s.client = c
	}
}

// WithMaxBytes caps the response size.
//
// Parameters:
//   - n: the limit in bytes
//
// Returns:
//   - HTTPOption: a function that applies the limit to a source
func WithMaxBytes(n int64) HTTPOption {
	return func(s *HTTPSource) {
		s.maxBytes = n
	}
}

// WithHTTPLogger sets the logger used for request logging.
//
// Parameters:
//   - logger: the logger
//
// Returns:
//   - HTTPOption: a function that applies the logger to a source
func WithHTTPLogger(logger *zap.Logger) HTTPOption {
	return func(s *HTTPSource) {
		s.logger = logger
	}
}

// NewHTTPSource creates an HTTP source with a 60 second client timeout.
//
// Parameters:
//   - options: source options
//
// Returns:
//   - *HTTPSource: the source
func NewHTTPSource(options ...HTTPOption) *HTTPSource {
	s := &HTTPSource{
		client:   &http.Client{Timeout: 60 * time.Second},
		maxBytes: DefaultMaxBytes,
		logger:   zap.NewNop(),
	}
	for _, opt := range options {
		opt(s)
	}
	return s
}

// ReadBytes fetches ref with a GET request.
func (s *HTTPSource) ReadBytes(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "build request for %s", ref)
	}
	start := time.Now()
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", ref)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.Wrapf(ErrNotFound, "%s", ref)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, errors.Errorf("get %s: unexpected status %s", ref, resp.Status)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, s.maxBytes+1))
	if err != nil {
		return nil, errors.Wrapf(err, "read body of %s", ref)
	}
	if int64(len(data)) > s.maxBytes {
		return nil, errors.Errorf("get %s: response exceeds %d bytes", ref, s.maxBytes)
	}
	s.logger.Debug("fetched reference",
		zap.String("ref", ref),
		zap.Int("bytes", len(data)),
		zap.Duration("latency", time.Since(start)),
	)
	return data, nil
}
