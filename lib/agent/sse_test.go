// Copyright 2026 The Alcheme Authors
// SPDX-License-Identifier: Apache-2.0

package agent

import (
	"strings"
	"testing"
)

func scanAll(t *testing.T, input string) []Event {
	t.Helper()
	scanner := newSSEScanner(strings.NewReader(input))
	var events []Event
	for scanner.next() {
		events = append(events, scanner.event())
	}
	if err := scanner.scanErr(); err != nil {
		t.Fatalf("scan error: %v", err)
	}
	return events
}

func TestScannerBasicEvents(t *testing.T) {
	events := scanAll(t, "data: one\n\ndata: two\n\n")
	if len(events) != 2 || events[0].Data != "one" || events[1].Data != "two" {
		t.Errorf("events = %+v", events)
	}
}

func TestScannerEventTypes(t *testing.T) {
	events := scanAll(t, "event: delta\ndata: payload\n\ndata: untyped\n\n")
	if len(events) != 2 {
		t.Fatalf("got %d events", len(events))
	}
	if events[0].Type != "delta" || events[0].Data != "payload" {
		t.Errorf("typed event = %+v", events[0])
	}
	if events[1].Type != "" {
		t.Errorf("second event type = %q, want empty", events[1].Type)
	}
}

func TestScannerMultilineData(t *testing.T) {
	events := scanAll(t, "data: line one\ndata: line two\n\n")
	if len(events) != 1 || events[0].Data != "line one\nline two" {
		t.Errorf("events = %+v", events)
	}
}

func TestScannerIgnoresCommentsAndUnknownFields(t *testing.T) {
	events := scanAll(t, ": keepalive\nid: 7\nretry: 100\ndata: real\n\n")
	if len(events) != 1 || events[0].Data != "real" {
		t.Errorf("events = %+v", events)
	}
}

func TestScannerFinalEventWithoutTrailingBlank(t *testing.T) {
	events := scanAll(t, "data: last")
	if len(events) != 1 || events[0].Data != "last" {
		t.Errorf("events = %+v", events)
	}
}

func TestScannerCarriageReturns(t *testing.T) {
	events := scanAll(t, "data: windows\r\n\r\n")
	if len(events) != 1 || events[0].Data != "windows" {
		t.Errorf("events = %+v", events)
	}
}
