package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"
)

var tracer = otel.Tracer("screenlist/httpclient")

var (
	// ErrUnexpectedStatus is returned when a page answers with a non-200 status
	ErrUnexpectedStatus = errors.New("unexpected status code")
	// ErrEmptyBody is returned when a page answers 200 with nothing in it
	ErrEmptyBody = errors.New("empty response body")
)

// ClientType represents the type of HTTP client configuration
type ClientType string

const (
	// BrowserClient uses browser-like headers to avoid 406 (Not Acceptable) errors
	// and routes through the cloudflare bypass transport
	BrowserClient ClientType = "browser"

	// CloudflareClient uses simple headers (like curl) to avoid 403 (Forbidden) errors
	// Used for Cloudflare-protected sites that block browser-like User-Agents
	CloudflareClient ClientType = "cloudflare"
)

const browserUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// Options configures an HTTPClient
type Options struct {
	Type      ClientType
	Timeout   time.Duration
	UserAgent string // overrides the profile's User-Agent when set

	// RatePerSecond limits outgoing requests. 0 disables the limiter.
	RatePerSecond float64
	Burst         int
}

// HTTPClient wraps a resty client with a header profile and an optional rate limit
type HTTPClient struct {
	client     *resty.Client
	clientType ClientType
	limiter    *rate.Limiter
}

// NewClient creates a new HTTP client with the specified type and default options
func NewClient(clientType ClientType) *HTTPClient {
	return NewClientWithOptions(Options{Type: clientType, Timeout: 30 * time.Second})
}

// NewClientWithOptions creates a new HTTP client
func NewClientWithOptions(opts Options) *HTTPClient {
	client := resty.New()
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	if opts.Type == BrowserClient {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}

	c := &HTTPClient{
		client:     client,
		clientType: opts.Type,
	}
	c.setHeaders(opts.UserAgent)

	if opts.RatePerSecond > 0 {
		burst := opts.Burst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RatePerSecond), burst)
		client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
			return c.limiter.Wait(req.Context())
		})
	}

	return c
}

// Resty exposes the underlying resty client
func (c *HTTPClient) Resty() *resty.Client {
	return c.client
}

// Get performs a GET request and returns the raw response
func (c *HTTPClient) Get(ctx context.Context, url string) (*resty.Response, error) {
	return c.client.R().SetContext(ctx).Get(url)
}

// GetHTML fetches a page and returns its body, failing on non-200 or empty responses
func (c *HTTPClient) GetHTML(ctx context.Context, url string) (string, error) {
	ctx, span := tracer.Start(ctx, "GetHTML")
	defer span.End()
	span.SetAttributes(attribute.String("url", url))

	resp, err := c.Get(ctx, url)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("failed to fetch URL: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		err := fmt.Errorf("%w: %d", ErrUnexpectedStatus, resp.StatusCode())
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	body := resp.String()
	if strings.TrimSpace(body) == "" {
		span.SetStatus(codes.Error, ErrEmptyBody.Error())
		return "", ErrEmptyBody
	}

	return body, nil
}

// setHeaders sets the appropriate headers based on client type
func (c *HTTPClient) setHeaders(userAgent string) {
	switch c.clientType {
	case BrowserClient:
		c.client.SetHeader("User-Agent", browserUserAgent)
		c.client.SetHeader("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		c.client.SetHeader("Accept-Language", "en-US,en;q=0.9")
		c.client.SetHeader("Upgrade-Insecure-Requests", "1")

	case CloudflareClient:
		// Cloudflare allows simple tools like curl but blocks browser-like User-Agents
		c.client.SetHeader("User-Agent", "curl/8.7.1")
	}

	if userAgent != "" {
		c.client.SetHeader("User-Agent", userAgent)
	}
}
