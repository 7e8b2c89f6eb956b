// Package transporthttp is the default spi.Transporter: a retrying HTTP
// client with resumable range GETs, PUT uploads, and optional HTTP/SOCKS5
// proxying.
package transporthttp

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/net/proxy"

	"repoconnector/internal"
	"repoconnector/ratelimit"
	"repoconnector/spi"
)

// RetryConfig governs the exponential-backoff retry loop around Get.
// Peek, Put and Fetch make a single attempt and are not retried.
type RetryConfig struct {
	MaxAttempts   int
	BaseDelay     time.Duration
	MaxDelay      time.Duration
	Multiplier    float64
	JitterPercent float64
}

func DefaultRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:   3,
		BaseDelay:     1 * time.Second,
		MaxDelay:      30 * time.Second,
		Multiplier:    2.0,
		JitterPercent: 0.1,
	}
}

// Config is the client's construction-time wiring.
type Config struct {
	BaseURL     string
	Timeout     time.Duration
	ProxyURL    string
	RetryConfig *RetryConfig
	Headers     map[string]string

	// RateLimiter governs both directions' bandwidth; nil means unlimited.
	RateLimiter ratelimit.Limiter
}

// Client is the default Transporter: locations are resolved relative to
// BaseURL, Get carries range-resume and retry handling, and Close shuts
// down idle connections.
type Client struct {
	baseURL     string
	client      *http.Client
	retryConfig *RetryConfig
	headers     map[string]string
	limiter     ratelimit.Limiter
}

func New(cfg Config) (*Client, error) {
	if cfg.RetryConfig == nil {
		cfg.RetryConfig = DefaultRetryConfig()
	}

	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ResponseHeaderTimeout: 15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   10,
		IdleConnTimeout:       90 * time.Second,
		TLSClientConfig:       &tls.Config{InsecureSkipVerify: false},
	}

	if cfg.ProxyURL != "" {
		if err := configureProxy(transport, cfg.ProxyURL); err != nil {
			return nil, internal.Wrap(internal.ErrTransfer, "configuring proxy", err)
		}
	}

	httpClient := &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= 10 {
				return fmt.Errorf("too many redirects")
			}
			return nil
		},
	}

	return &Client{
		baseURL:     strings.TrimSuffix(cfg.BaseURL, "/"),
		client:      httpClient,
		retryConfig: cfg.RetryConfig,
		headers:     cfg.Headers,
		limiter:     cfg.RateLimiter,
	}, nil
}

func configureProxy(transport *http.Transport, proxyURL string) error {
	parsed, err := url.Parse(proxyURL)
	if err != nil {
		return fmt.Errorf("invalid proxy URL: %w", err)
	}

	switch parsed.Scheme {
	case "http", "https":
		transport.Proxy = http.ProxyURL(parsed)
	case "socks5":
		dialer, err := proxy.SOCKS5("tcp", parsed.Host, nil, proxy.Direct)
		if err != nil {
			return fmt.Errorf("creating SOCKS5 dialer: %w", err)
		}
		transport.DialContext = func(ctx context.Context, network, addr string) (net.Conn, error) {
			return dialer.Dial(network, addr)
		}
	default:
		return fmt.Errorf("unsupported proxy scheme: %s", parsed.Scheme)
	}
	return nil
}

func (c *Client) resolve(location string) string {
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		return location
	}
	return c.baseURL + "/" + strings.TrimPrefix(location, "/")
}

func (c *Client) Peek(ctx context.Context, location string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.resolve(location), nil)
	if err != nil {
		return internal.Wrap(internal.ErrTransfer, "building peek request", err)
	}
	c.applyHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return internal.Wrap(internal.ErrTransfer, "peek request failed", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return internal.New(internal.ErrNotFound, "resource does not exist: "+location)
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return nil
	default:
		return internal.New(internal.ErrTransfer, fmt.Sprintf("unexpected status %d peeking %s", resp.StatusCode, location))
	}
}

func (c *Client) Get(ctx context.Context, location string, dst io.WriterAt, resumeOffset int64, listener spi.ProgressListener) (*spi.GetResult, error) {
	if listener == nil {
		listener = spi.NoopProgressListener{}
	}

	var lastErr error
	for attempt := 0; attempt < c.retryConfig.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(c.backoffDelay(attempt)):
			case <-ctx.Done():
				return nil, internal.Wrap(internal.ErrCancelled, "get cancelled during backoff", ctx.Err())
			}
		}

		result, retryable, err := c.doGet(ctx, location, dst, resumeOffset, listener)
		if err == nil {
			return result, nil
		}
		if !retryable {
			return nil, err
		}
		lastErr = err
	}
	return nil, internal.Wrap(internal.ErrTransfer, "get failed after retries", lastErr)
}

func (c *Client) doGet(ctx context.Context, location string, dst io.WriterAt, resumeOffset int64, listener spi.ProgressListener) (*spi.GetResult, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve(location), nil)
	if err != nil {
		return nil, false, internal.Wrap(internal.ErrTransfer, "building get request", err)
	}
	c.applyHeaders(req)
	if resumeOffset > 0 {
		req.Header.Set("Range", fmt.Sprintf("bytes=%d-", resumeOffset))
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, true, internal.Wrap(internal.ErrTransfer, "get request failed", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusNotFound:
		return nil, false, internal.New(internal.ErrNotFound, "resource does not exist: "+location)
	case http.StatusRequestedRangeNotSatisfiable, http.StatusPreconditionFailed:
		return &spi.GetResult{ResourceChanged: true}, false, nil
	case http.StatusOK:
		if resumeOffset > 0 {
			// Server ignored the Range request entirely; the resource must
			// be re-fetched from byte 0.
			return &spi.GetResult{ResourceChanged: true}, false, nil
		}
	case http.StatusPartialContent:
	default:
		retryable := resp.StatusCode >= 500
		return nil, retryable, internal.New(internal.ErrTransfer, fmt.Sprintf("unexpected status %d from %s", resp.StatusCode, location))
	}

	written := resumeOffset
	buf := make([]byte, 32*1024)
	for {
		n, rerr := resp.Body.Read(buf)
		if n > 0 {
			if c.limiter != nil {
				if werr := c.limiter.Wait(ctx, n); werr != nil {
					return nil, false, internal.Wrap(internal.ErrCancelled, "transfer cancelled by rate limiter", werr)
				}
			}
			if _, werr := dst.WriteAt(buf[:n], written); werr != nil {
				return nil, false, internal.Wrap(internal.ErrTransfer, "writing response body", werr)
			}
			written += int64(n)
			if perr := listener.Progress(int64(n)); perr != nil {
				return nil, false, internal.Wrap(internal.ErrCancelled, "transfer cancelled by listener", perr)
			}
		}
		if rerr == io.EOF {
			break
		}
		if rerr != nil {
			return nil, true, internal.Wrap(internal.ErrTransfer, "reading response body", rerr)
		}
	}

	return &spi.GetResult{InlinedChecksums: extractInlinedChecksums(resp.Header)}, false, nil
}

func (c *Client) Put(ctx context.Context, location string, src io.ReadSeeker, size int64, listener spi.ProgressListener) error {
	if listener == nil {
		listener = spi.NoopProgressListener{}
	}
	if _, err := src.Seek(0, io.SeekStart); err != nil {
		return internal.Wrap(internal.ErrTransfer, "seeking upload source", err)
	}

	reader := &progressReader{ctx: ctx, r: src, listener: listener, limiter: c.limiter}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.resolve(location), reader)
	if err != nil {
		return internal.Wrap(internal.ErrTransfer, "building put request", err)
	}
	c.applyHeaders(req)
	req.ContentLength = size

	resp, err := c.client.Do(req)
	if err != nil {
		return internal.Wrap(internal.ErrTransfer, "put request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return internal.New(internal.ErrTransfer, fmt.Sprintf("unexpected status %d uploading %s", resp.StatusCode, location))
	}
	return nil
}

// Fetch retrieves a small remote sidecar payload in full, satisfying
// checksum.Fetcher. Sidecar contents are a few dozen bytes of hex text,
// so buffering the whole response in memory needs no scratch file.
func (c *Client) Fetch(ctx context.Context, uri string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.resolve(uri), nil)
	if err != nil {
		return nil, false, internal.Wrap(internal.ErrTransfer, "building fetch request", err)
	}
	c.applyHeaders(req)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, false, internal.Wrap(internal.ErrTransfer, "fetch request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, false, internal.New(internal.ErrTransfer, fmt.Sprintf("unexpected status %d fetching %s", resp.StatusCode, uri))
	}

	content, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, internal.Wrap(internal.ErrTransfer, "reading fetch response", err)
	}
	return content, true, nil
}

func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

func (c *Client) applyHeaders(req *http.Request) {
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
}

func (c *Client) backoffDelay(attempt int) time.Duration {
	delay := float64(c.retryConfig.BaseDelay) * math.Pow(c.retryConfig.Multiplier, float64(attempt-1))
	jitter := delay * c.retryConfig.JitterPercent * (rand.Float64()*2 - 1)
	delay += jitter
	if delay > float64(c.retryConfig.MaxDelay) {
		delay = float64(c.retryConfig.MaxDelay)
	}
	if delay < 0 {
		delay = float64(c.retryConfig.BaseDelay)
	}
	return time.Duration(delay)
}

// extractInlinedChecksums reads the X-Checksum-<Algo> response header
// convention some repository servers use to avoid a separate sidecar
// fetch.
func extractInlinedChecksums(header http.Header) map[string]string {
	out := make(map[string]string)
	for key := range header {
		const prefix = "X-Checksum-"
		if !strings.HasPrefix(key, prefix) && !strings.HasPrefix(strings.ToLower(key), strings.ToLower(prefix)) {
			continue
		}
		name := strings.TrimPrefix(key, prefix)
		if name == key {
			continue
		}
		name = strings.ToUpper(name)
		if strings.HasPrefix(name, "SHA") && !strings.HasPrefix(name, "SHA-") {
			name = "SHA-" + name[3:] // "Sha1" header suffix -> "SHA-1" algorithm name
		}
		out[name] = strings.TrimSpace(header.Get(key))
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

type progressReader struct {
	ctx      context.Context
	r        io.Reader
	listener spi.ProgressListener
	limiter  ratelimit.Limiter
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		if p.limiter != nil {
			if lerr := p.limiter.Wait(p.ctx, n); lerr != nil {
				return n, lerr
			}
		}
		if perr := p.listener.Progress(int64(n)); perr != nil {
			return n, perr
		}
	}
	return n, err
}
