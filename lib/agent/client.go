// Copyright 2026 The Alcheme Authors
// SPDX-License-Identifier: Apache-2.0

// Package agent is the client for the external agent (reasoning)
// service. The service speaks JSON over HTTP and streams chat
// responses as Server-Sent Events; this package exposes the stream as
// an [EventStream] of parsed events.
//
// The service is untrusted from this process's point of view: both
// timeouts are explicit, responses are size- and time-bounded, and a
// failure here must never take a user request down with it. The HTTP
// layer converts stream failures into a synthesized fallback
// response.
package agent

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

// Default timeouts. Connect covers dialing plus waiting for response
// headers; the agent can think for tens of seconds before the first
// event. Stream bounds the entire response, which for long recipes
// can run minutes.
const (
	DefaultConnectTimeout = 30 * time.Second
	DefaultStreamTimeout  = 150 * time.Second
)

// Config holds the parameters for an agent service client.
type Config struct {
	// BaseURL is the root of the agent service, without a trailing
	// slash. Required.
	BaseURL string

	// APIKey is sent as the X-API-Key header when non-empty.
	APIKey string

	// ConnectTimeout bounds dialing and the wait for response
	// headers. Zero selects DefaultConnectTimeout.
	ConnectTimeout time.Duration

	// StreamTimeout bounds the whole streaming response. Zero selects
	// DefaultStreamTimeout.
	StreamTimeout time.Duration

	// HTTPClient overrides the default client. When set,
	// ConnectTimeout is not applied; the caller owns transport
	// configuration.
	HTTPClient *http.Client

	// Logger receives operational messages. If nil, a no-op logger is
	// used.
	Logger *slog.Logger
}

// ChatRequest is one chat turn sent to the agent service. UserID is
// always assigned by this process from the authenticated session,
// never taken from the client request body.
type ChatRequest struct {
	Message       string `json:"message"`
	UserID        string `json:"user_id"`
	ImageBase64   string `json:"image_base64,omitempty"`
	ImageMimeType string `json:"image_mime_type,omitempty"`
}

// Error is an agent service error response.
type Error struct {
	StatusCode int
	Message    string
}

func (err *Error) Error() string {
	return fmt.Sprintf("agent: HTTP %d: %s", err.StatusCode, err.Message)
}

// Client talks to the agent service. Safe for concurrent use.
type Client struct {
	baseURL       string
	apiKey        string
	httpClient    *http.Client
	streamTimeout time.Duration
	logger        *slog.Logger
}

// New creates a Client. Returns an error when BaseURL is missing.
func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("agent: BaseURL is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = DefaultConnectTimeout
	}
	streamTimeout := cfg.StreamTimeout
	if streamTimeout <= 0 {
		streamTimeout = DefaultStreamTimeout
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{
			Transport: &http.Transport{
				DialContext:           (&net.Dialer{Timeout: connectTimeout}).DialContext,
				ResponseHeaderTimeout: connectTimeout,
			},
		}
	}

	return &Client{
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:        cfg.APIKey,
		httpClient:    httpClient,
		streamTimeout: streamTimeout,
		logger:        logger,
	}, nil
}

// Stream sends a chat request and returns the event stream of the
// response. The stream carries its own deadline; the caller must
// Close it even when iteration ends early. Cancelling ctx aborts the
// upstream request.
func (c *Client) Stream(ctx context.Context, request ChatRequest) (*EventStream, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return nil, fmt.Errorf("agent: marshaling request: %w", err)
	}

	streamCtx, cancel := context.WithTimeout(ctx, c.streamTimeout)

	httpRequest, err := http.NewRequestWithContext(streamCtx, http.MethodPost,
		c.baseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("agent: creating request: %w", err)
	}
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("Accept", "text/event-stream")
	if c.apiKey != "" {
		httpRequest.Header.Set("X-API-Key", c.apiKey)
	}

	httpResponse, err := c.httpClient.Do(httpRequest)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("agent: sending request: %w", err)
	}

	if httpResponse.StatusCode != http.StatusOK {
		defer cancel()
		defer httpResponse.Body.Close()
		return nil, readError(httpResponse)
	}

	scanner := newSSEScanner(httpResponse.Body)
	return &EventStream{
		scanner: scanner,
		body:    httpResponse.Body,
		cancel:  cancel,
	}, nil
}

// EventStream iterates the events of one streaming chat response.
// Not safe for concurrent use.
type EventStream struct {
	scanner *sseScanner
	body    io.Closer
	cancel  context.CancelFunc
	done    bool
}

// Next returns the next event. Returns io.EOF at the clean end of the
// stream; any other error means the stream broke mid-response.
func (stream *EventStream) Next() (Event, error) {
	if stream.done {
		return Event{}, io.EOF
	}
	if !stream.scanner.next() {
		stream.done = true
		if err := stream.scanner.scanErr(); err != nil {
			return Event{}, fmt.Errorf("agent: reading stream: %w", err)
		}
		return Event{}, io.EOF
	}
	return stream.scanner.event(), nil
}

// Close releases the response body and the stream deadline. Must be
// called when done, even if iteration ended early.
func (stream *EventStream) Close() error {
	stream.cancel()
	return stream.body.Close()
}

// readError parses a non-200 agent response. The service reports
// errors as {"error":"..."}; anything else surfaces raw, truncated.
func readError(httpResponse *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(httpResponse.Body, 4096))

	var wireError struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &wireError) == nil && wireError.Error != "" {
		return &Error{StatusCode: httpResponse.StatusCode, Message: wireError.Error}
	}
	return &Error{StatusCode: httpResponse.StatusCode, Message: string(body)}
}
