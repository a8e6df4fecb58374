// Package apiclient talks to the laundry REST API.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/fjod/go_laundry/internal/apperr"
	"github.com/fjod/go_laundry/internal/auth"
	"github.com/fjod/go_laundry/pkg/circuitbreaker"
	"github.com/fjod/go_laundry/pkg/logger"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const maxResponseBody = 4 << 20

type Options struct {
	BaseURL   string
	Timeout   time.Duration
	RateLimit float64 // requests per second, 0 disables limiting
	Transport http.RoundTripper
	Logger    *zap.Logger
	Breaker   circuitbreaker.Settings
}

type Client struct {
	baseURL string
	http    *http.Client
	timeout time.Duration
	limiter *rate.Limiter
	breaker *circuitbreaker.Breaker[*response]
	log     *zap.Logger
}

type response struct {
	status int
	body   []byte
}

func New(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	transport := opts.Transport
	if transport == nil {
		transport = http.DefaultTransport
	}

	limiter := rate.NewLimiter(rate.Inf, 0)
	if opts.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), int(opts.RateLimit)+1)
	}

	bs := opts.Breaker
	if bs.Name == "" {
		bs.Name = "laundry-api"
	}
	bs.IsFailure = func(err error) bool {
		return errors.Is(err, apperr.ErrUnavailable)
	}

	return &Client{
		baseURL: opts.BaseURL,
		http:    &http.Client{Transport: otelhttp.NewTransport(transport)},
		timeout: opts.Timeout,
		limiter: limiter,
		breaker: circuitbreaker.New[*response](bs, opts.Logger),
		log:     opts.Logger,
	}
}

// do sends one request and returns the raw "data" member of the envelope.
func (c *Client) do(ctx context.Context, method, path string, body any, header http.Header) (gjson.Result, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return gjson.Result{}, fmt.Errorf("rate limit wait: %w", err)
	}

	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return gjson.Result{}, fmt.Errorf("marshal request: %w", err)
		}
	}

	resp, err := c.breaker.Execute(func() (*response, error) {
		return c.send(ctx, method, path, payload, header)
	})
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return gjson.Result{}, fmt.Errorf("%w: %w", apperr.ErrUnavailable, err)
	}
	if err != nil {
		return gjson.Result{}, err
	}

	if resp.status >= http.StatusBadRequest {
		return gjson.Result{}, apperr.NewRemoteError(resp.status, gjson.GetBytes(resp.body, "message").String())
	}
	if !gjson.ValidBytes(resp.body) {
		return gjson.Result{}, fmt.Errorf("%w: %s %s returned invalid JSON", apperr.ErrMalformedResponse, method, path)
	}
	env := gjson.ParseBytes(resp.body)
	if ok := env.Get("success"); ok.Exists() && !ok.Bool() {
		return gjson.Result{}, fmt.Errorf("%w: %s", apperr.ErrMalformedResponse, env.Get("message").String())
	}
	return env.Get("data"), nil
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte, header http.Header) (*response, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if p, ok := auth.FromContext(ctx); ok && p.Token != "" {
		req.Header.Set("Authorization", "Bearer "+p.Token)
	}

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s %s: %w", method, path, ctxErr)
		}
		return nil, fmt.Errorf("%w: %s %s: %v", apperr.ErrUnavailable, method, path, err)
	}
	defer res.Body.Close()

	data, err := io.ReadAll(io.LimitReader(res.Body, maxResponseBody))
	if err != nil {
		return nil, fmt.Errorf("%w: read %s %s: %v", apperr.ErrUnavailable, method, path, err)
	}

	logger.WithContext(ctx, c.log).Debug("laundry api call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", res.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	out := &response{status: res.StatusCode, body: data}
	if res.StatusCode >= http.StatusInternalServerError {
		return out, apperr.NewRemoteError(res.StatusCode, gjson.GetBytes(data, "message").String())
	}
	return out, nil
}

func decode(r gjson.Result, what string, dst any) error {
	if !r.Exists() || r.Type == gjson.Null {
		return fmt.Errorf("%w: %s missing from response", apperr.ErrMalformedResponse, what)
	}
	if err := json.Unmarshal([]byte(r.Raw), dst); err != nil {
		return fmt.Errorf("%w: decode %s: %v", apperr.ErrMalformedResponse, what, err)
	}
	return nil
}
