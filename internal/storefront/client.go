// Package storefront is the HTTP client for the storefront backend: order
// fetch, coupon redemption and transaction verification.
package storefront

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/jx"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/bes-checkout/internal/domain/discount"
	"github.com/xenking/bes-checkout/internal/domain/order"
	"github.com/xenking/bes-checkout/internal/domain/reconcile"
	"github.com/xenking/bes-checkout/pkg/httpmiddleware"
)

const (
	defaultTimeout = 15 * time.Second
	maxBodySize    = 1 << 20
)

// Endpoint paths relative to the base URL.
const (
	ordersPath = "orders/"
	couponPath = "coupons/redeem/"
	verifyPath = "payments/verify/"
)

// Options configures a Client.
type Options struct {
	// Timeout bounds every request. Defaults to 15s.
	Timeout time.Duration
	// Transport is wrapped with OpenTelemetry instrumentation. Defaults to
	// http.DefaultTransport.
	Transport http.RoundTripper

	MeterProvider  metric.MeterProvider
	TracerProvider trace.TracerProvider
}

// Client talks to the storefront API. It is safe for concurrent use; bind a
// shopper's token with WithToken.
type Client struct {
	base  *url.URL
	http  *http.Client
	token string
}

var (
	_ order.Source          = (*Client)(nil)
	_ discount.Redeemer     = (*Client)(nil)
	_ reconcile.Verifier    = (*Client)(nil)
	_ order.DetailError     = (*APIError)(nil)
	_ discount.FieldErrors  = (*APIError)(nil)
	_ reconcile.FieldErrors = (*APIError)(nil)
)

// New creates a Client for the API rooted at baseURL.
func New(baseURL string, opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return nil, errors.Wrap(err, "parse base url")
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, errors.Errorf("base url %q must be absolute", baseURL)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}

	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.Transport == nil {
		opts.Transport = http.DefaultTransport
	}
	if opts.MeterProvider == nil {
		opts.MeterProvider = otel.GetMeterProvider()
	}
	if opts.TracerProvider == nil {
		opts.TracerProvider = otel.GetTracerProvider()
	}

	return &Client{
		base: u,
		http: &http.Client{
			Timeout: opts.Timeout,
			Transport: otelhttp.NewTransport(opts.Transport,
				otelhttp.WithMeterProvider(opts.MeterProvider),
				otelhttp.WithTracerProvider(opts.TracerProvider),
			),
		},
	}, nil
}

// WithToken returns a copy of c that authenticates as the token's owner.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// GetOrder fetches an order by internal id.
func (c *Client) GetOrder(ctx context.Context, id string) (*order.Snapshot, error) {
	body, err := c.do(ctx, http.MethodGet, ordersPath+url.PathEscape(id)+"/", nil, anySuccess)
	if err != nil {
		return nil, err
	}
	return decodeOrder(jx.DecodeBytes(body))
}

// RedeemCoupon redeems code for the authenticated shopper and returns the
// server's confirmation message.
func (c *Client) RedeemCoupon(ctx context.Context, code string) (string, error) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("discountCode", func(e *jx.Encoder) { e.Str(code) })
	})

	body, err := c.do(ctx, http.MethodPost, couponPath, e.Bytes(), anySuccess)
	if err != nil {
		return "", err
	}
	return decodeMessage(jx.DecodeBytes(body))
}

// VerifyTransaction asks the storefront to confirm a provider transaction.
func (c *Client) VerifyTransaction(ctx context.Context, v reconcile.Verification) (*reconcile.VerifyResult, error) {
	var e jx.Encoder
	e.Obj(func(e *jx.Encoder) {
		e.Field("order", func(e *jx.Encoder) { e.Str(v.OrderID) })
		e.Field("transaction_id", func(e *jx.Encoder) { e.Str(v.TransactionID) })
	})

	// Only a 200 carries a verified transaction.
	body, err := c.do(ctx, http.MethodPost, verifyPath, e.Bytes(), http.StatusOK)
	if err != nil {
		return nil, err
	}
	status, ref, err := decodeVerifyResult(jx.DecodeBytes(body))
	if err != nil {
		return nil, err
	}
	return &reconcile.VerifyResult{Status: status, OrderRef: ref}, nil
}

// Ping reports whether the storefront answers at all. Any response below
// 500 counts as reachable.
func (c *Client) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.base.String(), nil)
	if err != nil {
		return errors.Wrap(err, "create request")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrap(err, "ping storefront")
	}
	_ = resp.Body.Close()
	if resp.StatusCode >= http.StatusInternalServerError {
		return errors.Errorf("storefront returned %d", resp.StatusCode)
	}
	return nil
}

// anySuccess accepts every 2xx status in do.
const anySuccess = 0

// do performs the request and returns the body. A status other than want,
// or outside 2xx when want is anySuccess, is returned as *APIError.
func (c *Client) do(ctx context.Context, method, path string, payload []byte, want int) ([]byte, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return nil, errors.Wrap(err, "parse path")
	}
	u := c.base.ResolveReference(ref)

	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, errors.Wrap(err, "create request")
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if id := httpmiddleware.RequestIDFromContext(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", method, path)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, errors.Wrap(err, "read body")
	}

	zctx.From(ctx).Debug("Storefront call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("took", time.Since(start)),
	)

	ok := resp.StatusCode >= 200 && resp.StatusCode <= 299
	if want != anySuccess {
		ok = resp.StatusCode == want
	}
	if !ok {
		return nil, decodeAPIError(resp.StatusCode, data)
	}
	return data, nil
}
