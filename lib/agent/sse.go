// Copyright 2026 The Alcheme Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"bufio"
	"io"
	"strings"
)

// Event is a single Server-Sent Event from the agent service. Type is
// the "event:" field, empty when the service sends the default event
// type. Data is the payload assembled from the "data:" lines; for the
// agent service this is a JSON object like
// {"type":"text_delta","data":"..."}.
type Event struct {
	Type string
	Data string
}

// sseScanner reads Server-Sent Events from an io.Reader. Events are
// delimited by blank lines; "data:" lines carry the payload and
// multiple data lines join with newlines. Comment lines (":") and
// fields other than data/event are ignored per the SSE specification.
type sseScanner struct {
	reader  *bufio.Reader
	current Event
	err     error
}

func newSSEScanner(reader io.Reader) *sseScanner {
	return &sseScanner{reader: bufio.NewReaderSize(reader, 64*1024)}
}

// next advances to the next event. Returns false at end of stream or
// on error; err() distinguishes the two.
func (scanner *sseScanner) next() bool {
	scanner.current = Event{}

	var dataLines []string
	var eventType string
	hasData := false

	for {
		line, readErr := scanner.reader.ReadString('\n')

		if readErr != nil && line == "" {
			if readErr == io.EOF {
				// A final event without a trailing blank line still
				// counts.
				if hasData {
					scanner.current = Event{Type: eventType, Data: strings.Join(dataLines, "\n")}
					scanner.err = io.EOF
					return true
				}
				return false
			}
			scanner.err = readErr
			return false
		}

		line = strings.TrimRight(line, "\r\n")

		if line == "" {
			if hasData {
				scanner.current = Event{Type: eventType, Data: strings.Join(dataLines, "\n")}
				return true
			}
			eventType = ""
			continue
		}

		if strings.HasPrefix(line, ":") {
			continue
		}

		field, value, hasColon := strings.Cut(line, ":")
		if !hasColon {
			field = line
			value = ""
		} else {
			// One leading space after the colon is part of the framing,
			// not the value.
			value = strings.TrimPrefix(value, " ")
		}

		switch field {
		case "data":
			dataLines = append(dataLines, value)
			hasData = true
		case "event":
			eventType = value
		}
	}
}

// event returns the event parsed by the last successful next call.
func (scanner *sseScanner) event() Event {
	return scanner.current
}

// scanErr returns the first scan error, or nil on clean EOF.
func (scanner *sseScanner) scanErr() error {
	if scanner.err == io.EOF {
		return nil
	}
	return scanner.err
}
