// Copyright 2026 The Alcheme Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alcheme/alcheme/lib/testutil"
)

func sseHandler(t *testing.T, events ...string) http.HandlerFunc {
	t.Helper()
	return func(writer http.ResponseWriter, request *http.Request) {
		writer.Header().Set("Content-Type", "text/event-stream")
		flusher := writer.(http.Flusher)
		for _, event := range events {
			if _, err := io.WriteString(writer, event); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}

func TestStreamDeliversEvents(t *testing.T) {
	server := httptest.NewServer(sseHandler(t,
		"data: {\"type\":\"text_delta\",\"data\":\"Hello\"}\n\n",
		"data: {\"type\":\"text_delta\",\"data\":\" there\"}\n\n",
		"data: {\"type\":\"done\"}\n\n",
	))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	stream, err := client.Stream(context.Background(), ChatRequest{Message: "hi", UserID: "user-1"})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer stream.Close()

	var payloads []string
	for {
		event, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		payloads = append(payloads, event.Data)
	}

	if len(payloads) != 3 {
		t.Fatalf("got %d events, want 3", len(payloads))
	}
	if payloads[0] != `{"type":"text_delta","data":"Hello"}` {
		t.Errorf("first event = %q", payloads[0])
	}
	if payloads[2] != `{"type":"done"}` {
		t.Errorf("last event = %q", payloads[2])
	}
}

func TestStreamSendsRequestAndHeaders(t *testing.T) {
	var gotKey, gotAccept string
	var gotRequest ChatRequest

	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		gotKey = request.Header.Get("X-API-Key")
		gotAccept = request.Header.Get("Accept")
		if err := json.NewDecoder(request.Body).Decode(&gotRequest); err != nil {
			t.Errorf("decoding request: %v", err)
		}
		io.WriteString(writer, "data: {\"type\":\"done\"}\n\n")
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL, APIKey: "secret-key"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	stream, err := client.Stream(context.Background(), ChatRequest{
		Message:       "what lip color suits a spring palette?",
		UserID:        "user-42",
		ImageBase64:   "aGk=",
		ImageMimeType: "image/png",
	})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	stream.Close()

	if gotKey != "secret-key" {
		t.Errorf("X-API-Key = %q", gotKey)
	}
	if gotAccept != "text/event-stream" {
		t.Errorf("Accept = %q", gotAccept)
	}
	if gotRequest.UserID != "user-42" || gotRequest.ImageMimeType != "image/png" {
		t.Errorf("request = %+v", gotRequest)
	}
}

func TestStreamErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(writer, `{"error":"model overloaded"}`)
	}))
	defer server.Close()

	client, err := New(Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_, err = client.Stream(context.Background(), ChatRequest{Message: "hi", UserID: "u"})
	var agentErr *Error
	if !errors.As(err, &agentErr) {
		t.Fatalf("err = %v, want *Error", err)
	}
	if agentErr.StatusCode != http.StatusServiceUnavailable || agentErr.Message != "model overloaded" {
		t.Errorf("agentErr = %+v", agentErr)
	}
}

func TestStreamUnreachableUpstream(t *testing.T) {
	client, err := New(Config{BaseURL: "http://127.0.0.1:1"})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if _, err := client.Stream(context.Background(), ChatRequest{Message: "hi", UserID: "u"}); err == nil {
		t.Error("Stream to unreachable upstream succeeded")
	}
}

func TestStreamContextCancellation(t *testing.T) {
	started := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		io.WriteString(writer, "data: {\"type\":\"text_delta\",\"data\":\"a\"}\n\n")
		writer.(http.Flusher).Flush()
		close(started)
		<-request.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	client, err := New(Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	stream, err := client.Stream(ctx, ChatRequest{Message: "hi", UserID: "u"})
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}
	defer stream.Close()

	if _, err := stream.Next(); err != nil {
		t.Fatalf("first Next: %v", err)
	}

	testutil.RequireClosed(t, started, 5*time.Second, "waiting for upstream to receive the request")
	cancel()

	if _, err := stream.Next(); err == nil || err == io.EOF {
		t.Errorf("Next after cancel = %v, want transport error", err)
	}
}

func TestNewRequiresBaseURL(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New without BaseURL succeeded")
	}
}
