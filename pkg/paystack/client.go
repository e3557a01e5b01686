// Package paystack is a small client for the Paystack REST API covering
// hosted-checkout charges, transfers to bank accounts and the bank directory.
//
// Every failure is returned as *Error: transport problems, non-2xx
// responses, undecodable bodies and envelopes with status=false alike.
// Calls go through a circuit breaker that only counts outages (transport
// failures and 5xx), so a burst of declined charges never takes the
// gateway offline.
package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"money-saver/pkg/logging"
	"money-saver/pkg/metrics"
	"money-saver/pkg/resilience"

	"go.uber.org/zap"
)

// DefaultBaseURL is the production API root.
const DefaultBaseURL = "https://api.paystack.co"

// Config configures a Client.
type Config struct {
	BaseURL   string
	SecretKey string

	// Timeout bounds every call. It overrides Breaker.Timeout when set.
	Timeout time.Duration

	// Country and Currency scope the bank list and transfer recipients.
	Country  string
	Currency string

	// Breaker configures the circuit breaker in front of the API.
	Breaker resilience.Config

	// HTTPClient is used for requests. Default: a client without its own
	// timeout, the breaker bounds each call.
	HTTPClient *http.Client
}

// DefaultConfig returns a configuration for the Nigerian market.
func DefaultConfig() Config {
	return Config{
		BaseURL:  DefaultBaseURL,
		Timeout:  15 * time.Second,
		Country:  "nigeria",
		Currency: "NGN",
		Breaker:  resilience.GatewayConfig(),
	}
}

// Client talks to Paystack. It is safe for concurrent use.
type Client struct {
	baseURL  string
	secret   string
	country  string
	currency string
	http     *http.Client
	breaker  *resilience.Breaker
	metrics  metrics.Collector
	logger   *logging.Logger
}

// New creates a client. collector and logger may be nil.
func New(config Config, collector metrics.Collector, logger *logging.Logger) (*Client, error) {
	if config.SecretKey == "" {
		return nil, errors.New("paystack: secret key is required")
	}
	defaults := DefaultConfig()
	if config.BaseURL == "" {
		config.BaseURL = defaults.BaseURL
	}
	if config.Country == "" {
		config.Country = defaults.Country
	}
	if config.Currency == "" {
		config.Currency = defaults.Currency
	}
	if config.Breaker.ReadyToTrip == nil && config.Breaker.OpenTimeout == 0 {
		config.Breaker = defaults.Breaker
	}
	if config.Timeout > 0 {
		config.Breaker = config.Breaker.WithTimeout(config.Timeout)
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}

	collector = metrics.OrNoOp(collector)
	return &Client{
		baseURL:  strings.TrimRight(config.BaseURL, "/"),
		secret:   config.SecretKey,
		country:  config.Country,
		currency: config.Currency,
		http:     config.HTTPClient,
		breaker:  resilience.NewBreaker("paystack", config.Breaker.WithFailureFilter(IsOutage), collector, logger),
		metrics:  collector,
		logger:   logging.OrNoOp(logger).Named("paystack"),
	}, nil
}

// envelope is the shape of every Paystack response.
type envelope struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// do performs one call through the breaker and decodes data into out.
func (c *Client) do(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	start := time.Now()

	err := c.breaker.Execute(ctx, func(ctx context.Context) error {
		return c.roundTrip(ctx, op, method, path, query, body, out)
	})
	switch {
	case errors.Is(err, resilience.ErrCircuitOpen):
		err = &Error{Op: op, Message: "payment gateway unavailable", Err: err, outage: true}
	case errors.Is(err, resilience.ErrTimeout):
		err = &Error{Op: op, Message: "payment gateway timed out", Err: err, outage: true}
	}

	elapsed := time.Since(start)
	c.metrics.RecordGatewayCall(op, outcome(err), elapsed)

	if err != nil {
		c.logger.Warn("gateway call failed",
			logging.Op(op),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		return err
	}
	c.logger.Debug("gateway call", logging.Op(op), zap.Duration("duration", elapsed))
	return nil
}

func (c *Client) roundTrip(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &Error{Op: op, Message: "could not encode request", Err: err}
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return &Error{Op: op, Message: "could not build request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &Error{Op: op, Message: "payment gateway unreachable", Err: err, outage: true}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &Error{Op: op, StatusCode: resp.StatusCode, Message: "could not read gateway response", Err: err, outage: true}
	}

	var env envelope
	decodeErr := json.Unmarshal(raw, &env)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := env.Message
		if decodeErr != nil || msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return &Error{Op: op, StatusCode: resp.StatusCode, Message: msg, outage: resp.StatusCode >= 500}
	}
	if decodeErr != nil {
		return &Error{Op: op, StatusCode: resp.StatusCode, Message: "invalid gateway response", Err: decodeErr, outage: true}
	}
	if !env.Status {
		msg := env.Message
		if msg == "" {
			msg = "request rejected by payment gateway"
		}
		return &Error{Op: op, StatusCode: resp.StatusCode, Message: msg}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return &Error{Op: op, StatusCode: resp.StatusCode, Message: "invalid gateway response", Err: err, outage: true}
		}
	}
	return nil
}

func outcome(err error) metrics.Outcome {
	if err == nil {
		return metrics.OutcomeOK
	}
	var e *Error
	if !errors.As(err, &e) {
		return metrics.OutcomeError
	}
	switch {
	case errors.Is(e.Err, resilience.ErrCircuitOpen):
		return metrics.OutcomeUnavailable
	case e.outage:
		return metrics.OutcomeError
	default:
		return metrics.OutcomeRejected
	}
}

func (c *Client) String() string {
	return fmt.Sprintf("paystack(%s)", c.baseURL)
}
