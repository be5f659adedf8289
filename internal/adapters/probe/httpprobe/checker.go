package httpprobe

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/bnema/offlinectl/internal/ports"
	"golang.org/x/net/http2"
)

const (
	DefaultPath = "/api/health"

	maxDrainBytes = 4 << 10
)

var ErrUnhealthyStatus = errors.New("health endpoint returned non-2xx status")

type Checker struct {
	endpoint   string
	httpClient *http.Client
	userAgent  string
}

var _ ports.HealthChecker = (*Checker)(nil)

type Options struct {
	BaseURL    string
	Path       string
	HTTPClient *http.Client
	UserAgent  string
}

func NewChecker(opts Options) (*Checker, error) {
	path := opts.Path
	if path == "" {
		path = DefaultPath
	}

	endpoint, err := buildAPIURL(opts.BaseURL, path)
	if err != nil {
		return nil, err
	}

	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}

	return &Checker{endpoint: endpoint, httpClient: client, userAgent: opts.UserAgent}, nil
}

func (c *Checker) Endpoint() string {
	return c.endpoint
}

// Check sends one HEAD request to the health endpoint. Any 2xx status is healthy.
// The caller bounds the request through ctx.
func (c *Checker) Check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.endpoint, nil)
	if err != nil {
		return fmt.Errorf("create health request: %w", err)
	}
	req.Header.Set("Cache-Control", "no-cache")
	req.Header.Set("Pragma", "no-cache")
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request health endpoint: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxDrainBytes))

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("%w: %s", ErrUnhealthyStatus, resp.Status)
	}

	return nil
}

// BuildHTTP2Client returns a client that speaks HTTP/2 only. Plain http base URLs use
// HTTP/2 with prior knowledge (h2c).
func BuildHTTP2Client(baseURL string, tlsConfig *tls.Config) (*http.Client, error) {
	parsed, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse api base url: %w", err)
	}

	transport := &http2.Transport{TLSClientConfig: tlsConfig}
	if strings.EqualFold(parsed.Scheme, "http") {
		transport.AllowHTTP = true
		transport.DialTLSContext = func(ctx context.Context, network, addr string, _ *tls.Config) (net.Conn, error) {
			var dialer net.Dialer
			return dialer.DialContext(ctx, network, addr)
		}
	}

	return &http.Client{Transport: transport}, nil
}

func buildAPIURL(baseURL string, path string) (string, error) {
	if baseURL == "" {
		return "", errors.New("api base url is required")
	}

	parsed, err := url.Parse(baseURL)
	if err != nil {
		return "", fmt.Errorf("parse api base url: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", errors.New("api base url must use http or https")
	}
	if parsed.Host == "" {
		return "", errors.New("api base url host is required")
	}

	endpoint, err := parsed.Parse(path)
	if err != nil {
		return "", fmt.Errorf("parse api path: %w", err)
	}
	return endpoint.String(), nil
}
