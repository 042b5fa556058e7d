// Package remote is the client of the upstream complaint RPC API. Every
// operation is an HTTPS POST of a {RequestId, AuthToken, Payload} envelope to
// an operation path; every reply is a {Success, Message, Data} envelope whose
// field casing varies between endpoints.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"

	"complaintdesk/internal/obs"
)

// ErrUnauthenticated is returned when the remote API answers 401. The caller
// must drop the session.
var ErrUnauthenticated = errors.New("remote: unauthenticated")

// Failure is a remote call that did not succeed: a transport error, a non-2xx
// status, an unreadable reply, or a reply with Success=false. Message is safe
// to show to the user.
type Failure struct {
	Op         string
	StatusCode int
	Message    string
	Err        error
}

func (f *Failure) Error() string {
	msg := fmt.Sprintf("remote %s failed", f.Op)
	if f.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", f.StatusCode)
	}
	if f.Message != "" {
		msg += ": " + f.Message
	}
	if f.Err != nil {
		msg += ": " + f.Err.Error()
	}
	return msg
}

func (f *Failure) Unwrap() error { return f.Err }

// Rejected reports whether the remote API processed the call and refused
// it, as opposed to being unreachable or broken.
func (f *Failure) Rejected() bool {
	return f.Err == nil && f.StatusCode >= 200 && f.StatusCode < 300
}

// Envelope is the request body of every call.
type Envelope struct {
	RequestId string      `json:"RequestId"`
	AuthToken string      `json:"AuthToken"`
	Payload   interface{} `json:"Payload"`
}

// Response is a decoded reply envelope.
type Response struct {
	Success bool
	Message string
	Data    json.RawMessage
}

// Options configures a Client.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// Client calls the remote API. It is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
	log     *logrus.Entry
	newID   func() string
}

// New creates a Client. Consecutive transport or server failures open a
// circuit breaker; while it is open calls fail fast with a *Failure.
func New(opts Options, logger *logrus.Logger) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = 10 * time.Second
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}

	log := logger.WithField("component", "remote")
	c := &Client{
		baseURL: strings.TrimRight(opts.BaseURL, "/"),
		http:    httpClient,
		log:     log,
		newID:   uuid.NewString,
	}

	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "remote-api",
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		// A 401 or a refused request means the API is up.
		IsSuccessful: func(err error) bool {
			var f *Failure
			return err == nil || errors.Is(err, ErrUnauthenticated) || (errors.As(err, &f) && f.Rejected())
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(logrus.Fields{
				"circuit_breaker": name,
				"from":            from.String(),
				"to":              to.String(),
			}).Warn("circuit breaker state changed")
		},
	})

	return c
}

// BreakerState reports the circuit breaker state for health checks.
func (c *Client) BreakerState() string {
	return c.breaker.State().String()
}

// Call posts payload to op and returns the decoded reply. A reply with
// Success=false is returned as a *Failure carrying the remote message.
func (c *Client) Call(ctx context.Context, op, authToken string, payload interface{}) (*Response, error) {
	start := time.Now()
	requestID := c.newID()

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(ctx, op, Envelope{RequestId: requestID, AuthToken: authToken, Payload: payload})
	})

	outcome := "ok"
	switch {
	case err == nil:
	case errors.Is(err, ErrUnauthenticated):
		outcome = "unauthenticated"
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		outcome = "circuit_open"
		err = &Failure{Op: op, Message: "service temporarily unavailable", Err: err}
	default:
		outcome = "failed"
	}
	obs.ObserveRemoteCall(op, outcome, time.Since(start))

	entry := c.log.WithFields(logrus.Fields{
		"op":          op,
		"request_id":  requestID,
		"outcome":     outcome,
		"duration_ms": time.Since(start).Milliseconds(),
	})
	if err != nil {
		entry.WithError(err).Warn("remote call failed")
		return nil, err
	}
	entry.Debug("remote call")

	return result.(*Response), nil
}

// Do is Call followed by decoding Data into out. out may be nil.
func (c *Client) Do(ctx context.Context, op, authToken string, payload, out interface{}) error {
	resp, err := c.Call(ctx, op, authToken, payload)
	if err != nil {
		return err
	}
	if out == nil || len(resp.Data) == 0 || string(resp.Data) == "null" {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return &Failure{Op: op, StatusCode: http.StatusOK, Message: "unexpected response from server", Err: err}
	}
	return nil
}

func (c *Client) post(ctx context.Context, op string, env Envelope) (*Response, error) {
	body, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("encode %s request: %w", op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+op, bytes.NewReader(body))
	if err != nil {
		return nil, &Failure{Op: op, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", env.RequestId)
	if env.AuthToken != "" {
		req.Header.Set("Authorization", "Bearer "+env.AuthToken)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, &Failure{Op: op, Message: "could not reach server", Err: err}
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusUnauthorized {
		return nil, ErrUnauthenticated
	}

	raw, err := io.ReadAll(io.LimitReader(res.Body, 8<<20))
	if err != nil {
		return nil, &Failure{Op: op, StatusCode: res.StatusCode, Err: err}
	}

	resp, decodeErr := decodeResponse(raw)
	if res.StatusCode < 200 || res.StatusCode > 299 {
		f := &Failure{Op: op, StatusCode: res.StatusCode, Message: "server error"}
		if decodeErr == nil && resp.Message != "" {
			f.Message = resp.Message
		}
		return nil, f
	}
	if decodeErr != nil {
		return nil, &Failure{Op: op, StatusCode: res.StatusCode, Message: "unexpected response from server", Err: decodeErr}
	}
	if !resp.Success {
		msg := resp.Message
		if msg == "" {
			msg = "request was not accepted"
		}
		return nil, &Failure{Op: op, StatusCode: res.StatusCode, Message: msg}
	}
	return resp, nil
}

// decodeResponse reads a reply envelope, accepting both "Success" and
// "success" style keys. When both casings are present the capitalized one
// wins.
func decodeResponse(raw []byte) (*Response, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	resp := &Response{}

	successRaw, ok := pick(fields, "Success", "success")
	if !ok {
		return nil, errors.New("decode envelope: missing success flag")
	}
	if err := json.Unmarshal(successRaw, &resp.Success); err != nil {
		return nil, fmt.Errorf("decode envelope success: %w", err)
	}

	if msgRaw, ok := pick(fields, "Message", "message"); ok {
		// Some endpoints send null or a non-string message; keep whatever text there is.
		if err := json.Unmarshal(msgRaw, &resp.Message); err != nil {
			resp.Message = strings.Trim(string(msgRaw), `"`)
		}
	}

	if dataRaw, ok := pick(fields, "Data", "data"); ok {
		resp.Data = dataRaw
	}
	return resp, nil
}

func pick(fields map[string]json.RawMessage, keys ...string) (json.RawMessage, bool) {
	for _, k := range keys {
		if v, ok := fields[k]; ok {
			return v, true
		}
	}
	return nil, false
}
