// Copyright 2026 The Alcheme Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/alcheme/alcheme/lib/agent"
	"github.com/alcheme/alcheme/lib/apierror"
)

// Fallback wording when the agent cannot answer. The user sees an
// apology instead of a broken stream; the wording distinguishes a
// connection failure from an upstream that answered with nothing.
const (
	fallbackUnreachable = "Sorry, I couldn't reach the beauty assistant just now. Please try again in a moment."
	fallbackEmptyReply  = "Sorry, the beauty assistant didn't send a reply. Please try asking again."
)

// chatRequest is the chat body. The user id never comes from here; it
// is assigned from the session before the upstream call.
type chatRequest struct {
	Message       string `json:"message"`
	ImageBase64   string `json:"image_base64"`
	ImageMimeType string `json:"image_mime_type"`
}

// handleChat relays one chat turn as a Server-Sent Event stream.
//
// Ordering is load-bearing: authentication and message validation
// happen before any upstream contact, and once the 200 and SSE
// headers are written the response can only ever carry events. Every
// failure after that point degrades to the fallback events; the
// stream always terminates with a done event.
func (s *Server) handleChat(writer http.ResponseWriter, request *http.Request) {
	var body chatRequest
	if err := readJSON(request, &body); err != nil {
		s.writeError(writer, request, err)
		return
	}
	if strings.TrimSpace(body.Message) == "" {
		s.writeError(writer, request, apierror.New(apierror.KindInvalidArgument, "message is required"))
		return
	}

	start := s.clock.Now()

	// The upstream request inherits the client's context: a client
	// disconnect cancels the upstream call instead of orphaning it.
	stream, err := s.agent.Stream(request.Context(), agent.ChatRequest{
		Message:       body.Message,
		UserID:        userID(request.Context()),
		ImageBase64:   body.ImageBase64,
		ImageMimeType: body.ImageMimeType,
	})
	if err != nil {
		s.logger.Warn("agent unreachable", "error", err)
		s.writeFallbackStream(writer, fallbackUnreachable)
		return
	}
	defer stream.Close()

	flusher, ok := writer.(http.Flusher)
	if !ok {
		s.logger.Error("response writer does not support streaming")
		s.writeFallbackStream(writer, fallbackUnreachable)
		return
	}

	writer.Header().Set("Content-Type", "text/event-stream")
	writer.Header().Set("Cache-Control", "no-cache")
	writer.Header().Set("X-Accel-Buffering", "no")
	writer.WriteHeader(http.StatusOK)
	flusher.Flush()

	relayed := 0
	sawDone := false
	for {
		event, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			s.logger.Warn("agent stream broke",
				"relayed_events", relayed,
				"duration", time.Since(start),
				"error", err,
			)
			break
		}

		if relayed == 0 && isDisconnected(request) {
			return
		}
		if writeSSE(writer, event) != nil {
			// Client went away; the deferred Close cancels upstream.
			s.logger.Info("client disconnected during chat stream",
				"relayed_events", relayed,
				"duration", time.Since(start),
			)
			return
		}
		flusher.Flush()
		relayed++
		if eventIsDone(event) {
			sawDone = true
			break
		}
	}

	switch {
	case relayed == 0:
		// Upstream connected but sent nothing usable.
		writeSSE(writer, textDeltaEvent(fallbackEmptyReply))
		writeSSE(writer, doneEvent())
		flusher.Flush()
	case !sawDone:
		writeSSE(writer, doneEvent())
		flusher.Flush()
	}

	s.logger.Info("chat stream complete",
		"relayed_events", relayed,
		"duration", time.Since(start),
	)
}

// writeFallbackStream serves the whole fallback response when the
// upstream failed before anything was streamed. Still a 200 SSE
// stream: the client's chat UI only speaks events.
func (s *Server) writeFallbackStream(writer http.ResponseWriter, message string) {
	writer.Header().Set("Content-Type", "text/event-stream")
	writer.Header().Set("Cache-Control", "no-cache")
	writer.Header().Set("X-Accel-Buffering", "no")
	writer.WriteHeader(http.StatusOK)

	writeSSE(writer, textDeltaEvent(message))
	writeSSE(writer, doneEvent())
	if flusher, ok := writer.(http.Flusher); ok {
		flusher.Flush()
	}
}

// writeSSE frames one event on the wire.
func writeSSE(writer io.Writer, event agent.Event) error {
	if event.Type != "" {
		if _, err := fmt.Fprintf(writer, "event: %s\n", event.Type); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintf(writer, "data: %s\n\n", event.Data)
	return err
}

// eventIsDone reports whether the event payload is the agent's
// terminal {"type":"done"} marker.
func eventIsDone(event agent.Event) bool {
	var payload struct {
		Type string `json:"type"`
	}
	if json.Unmarshal([]byte(event.Data), &payload) != nil {
		return false
	}
	return payload.Type == "done"
}

func textDeltaEvent(text string) agent.Event {
	data, _ := json.Marshal(map[string]string{"type": "text_delta", "data": text})
	return agent.Event{Data: string(data)}
}

func doneEvent() agent.Event {
	return agent.Event{Data: `{"type":"done"}`}
}

// isDisconnected reports whether the client already went away.
func isDisconnected(request *http.Request) bool {
	select {
	case <-request.Context().Done():
		return true
	default:
		return false
	}
}
