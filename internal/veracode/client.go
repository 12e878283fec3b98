package veracode

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL = "https://api.veracode.com/risk-manager/api-server"
	DefaultTimeout = 30 * time.Second

	graphQLPath = "/v1/graphql"
)

// APIError is returned when the service answers with a non-2xx status.
type APIError struct {
	StatusCode int
	Method     string
	URL        string
	Body       []byte
}

func (e *APIError) Error() string {
	body := strings.TrimSpace(string(e.Body))
	if len(body) > 512 {
		body = body[:512] + "..."
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.URL, e.StatusCode, body)
}

// GraphQLError is returned when a query response carries an errors list.
type GraphQLError struct {
	Messages []string
}

func (e *GraphQLError) Error() string {
	return fmt.Sprintf("graphql errors: %s", strings.Join(e.Messages, "; "))
}

// Caller issues signed REST requests.
type Caller interface {
	Call(ctx context.Context, method string, path string, payload any, params url.Values) ([]byte, error)
}

// Querier issues signed GraphQL queries.
type Querier interface {
	Query(ctx context.Context, query string, variables map[string]any, out any) error
}

// Client talks to the risk-manager API. Every request is HMAC signed.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	signer  *Signer
	limiter *rate.Limiter
	logger  *zap.Logger
}

type Option func(*Client)

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		c.http = h
	}
}

// WithTimeout caps how long a single call may take.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithRateLimit limits outgoing requests per second. 0 disables limiting.
func WithRateLimit(perSecond float64) Option {
	return func(c *Client) {
		if perSecond > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(perSecond), 1)
		}
	}
}

func New(baseURL string, signer *Signer, opts ...Option) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base URL: %q", baseURL)
	}
	if signer == nil {
		return nil, fmt.Errorf("signer is required")
	}

	c := &Client{
		baseURL: u,
		http:    &http.Client{Timeout: DefaultTimeout},
		signer:  signer,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Call sends payload as JSON to path and returns the raw response body.
func (c *Client) Call(ctx context.Context, method string, path string, payload any, params url.Values) ([]byte, error) {
	u := c.baseURL.JoinPath(path)
	if len(params) > 0 {
		u.RawQuery = params.Encode()
	}

	var body io.Reader
	if payload != nil {
		bs, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(bs)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := c.signer.Sign(req); err != nil {
		return nil, fmt.Errorf("signing request: %w", err)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	c.logger.Info("request", zap.String("method", method), zap.String("url", u.String()))

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Error("request failed",
			zap.String("method", method),
			zap.String("url", u.String()),
			zap.Error(err),
		)
		return nil, fmt.Errorf("%s %s: %w", method, u.String(), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	c.logger.Info("response",
		zap.String("method", method),
		zap.String("url", u.String()),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(respBody)),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &APIError{
			StatusCode: resp.StatusCode,
			Method:     method,
			URL:        u.String(),
			Body:       respBody,
		}
	}

	return respBody, nil
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

// Query runs a GraphQL query and decodes the data member into out.
func (c *Client) Query(ctx context.Context, query string, variables map[string]any, out any) error {
	bs, err := c.Call(ctx, http.MethodPost, graphQLPath, graphQLRequest{
		Query:     query,
		Variables: variables,
	}, nil)
	if err != nil {
		return err
	}

	var resp graphQLResponse
	if err := json.Unmarshal(bs, &resp); err != nil {
		return fmt.Errorf("decoding graphql response: %w", err)
	}

	if len(resp.Errors) > 0 {
		gqlErr := &GraphQLError{}
		for _, e := range resp.Errors {
			gqlErr.Messages = append(gqlErr.Messages, e.Message)
		}
		c.logger.Error("graphql errors", zap.Strings("errors", gqlErr.Messages))
		return gqlErr
	}

	if len(resp.Data) == 0 || string(resp.Data) == "null" {
		return fmt.Errorf("graphql response has no data")
	}

	if err := json.Unmarshal(resp.Data, out); err != nil {
		return fmt.Errorf("decoding graphql data: %w", err)
	}
	return nil
}
