// Copyright 2026 The Alcheme Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"net/http"

	"github.com/alcheme/alcheme/lib/inventory"
)

func (s *Server) handleListInventory(writer http.ResponseWriter, request *http.Request) {
	items, err := s.inventory.ListItems(request.Context(), userID(request.Context()))
	if err != nil {
		s.writeError(writer, request, err)
		return
	}
	if items == nil {
		items = []inventory.Item{}
	}
	s.writeJSON(writer, map[string]any{"items": items})
}

func (s *Server) handleCreateInventoryItem(writer http.ResponseWriter, request *http.Request) {
	var body inventory.NewItem
	if err := readJSON(request, &body); err != nil {
		s.writeError(writer, request, err)
		return
	}

	item, err := s.inventory.CreateItem(request.Context(), userID(request.Context()), body)
	if err != nil {
		s.writeError(writer, request, err)
		return
	}
	s.writeJSON(writer, item)
}

func (s *Server) handleUpdateInventoryItem(writer http.ResponseWriter, request *http.Request) {
	itemID := request.PathValue("itemID")
	if itemID == "" {
		s.writeError(writer, request, errMissingPathValue("item id"))
		return
	}

	var body inventory.NewItem
	if err := readJSON(request, &body); err != nil {
		s.writeError(writer, request, err)
		return
	}

	item, err := s.inventory.UpdateItem(request.Context(), userID(request.Context()), itemID, body)
	if err != nil {
		s.writeError(writer, request, err)
		return
	}
	s.writeJSON(writer, item)
}

func (s *Server) handleDeleteInventoryItem(writer http.ResponseWriter, request *http.Request) {
	itemID := request.PathValue("itemID")
	if itemID == "" {
		s.writeError(writer, request, errMissingPathValue("item id"))
		return
	}

	if err := s.inventory.DeleteItem(request.Context(), userID(request.Context()), itemID); err != nil {
		s.writeError(writer, request, err)
		return
	}
	s.writeJSON(writer, map[string]string{"status": "deleted"})
}

func (s *Server) handleListSuggestions(writer http.ResponseWriter, request *http.Request) {
	suggestions, err := s.inventory.ListSuggestions(request.Context(), userID(request.Context()))
	if err != nil {
		s.writeError(writer, request, err)
		return
	}
	if suggestions == nil {
		suggestions = []inventory.Suggestion{}
	}
	s.writeJSON(writer, map[string]any{"suggestions": suggestions})
}

func (s *Server) handleRecordSuggestion(writer http.ResponseWriter, request *http.Request) {
	var body inventory.NewSuggestion
	if err := readJSON(request, &body); err != nil {
		s.writeError(writer, request, err)
		return
	}

	suggestion, err := s.inventory.RecordSuggestion(request.Context(), userID(request.Context()), body)
	if err != nil {
		s.writeError(writer, request, err)
		return
	}
	s.writeJSON(writer, suggestion)
}
