// Copyright 2026 The Alcheme Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"net/http"

	"github.com/alcheme/alcheme/lib/conversation"
)

func (s *Server) handleListConversations(writer http.ResponseWriter, request *http.Request) {
	listing, err := s.conversations.List(request.Context(), userID(request.Context()))
	if err != nil {
		s.writeError(writer, request, err)
		return
	}
	if listing == nil {
		listing = []conversation.Conversation{}
	}
	s.writeJSON(writer, map[string]any{"conversations": listing})
}

func (s *Server) handleCreateConversation(writer http.ResponseWriter, request *http.Request) {
	var body struct {
		Title string `json:"title"`
	}
	if request.ContentLength > 0 {
		if err := readJSON(request, &body); err != nil {
			s.writeError(writer, request, err)
			return
		}
	}

	conv, err := s.conversations.Create(request.Context(), userID(request.Context()), body.Title)
	if err != nil {
		s.writeError(writer, request, err)
		return
	}
	s.writeJSON(writer, conv)
}

func (s *Server) handleGetConversation(writer http.ResponseWriter, request *http.Request) {
	conversationID := request.PathValue("conversationID")
	if conversationID == "" {
		s.writeError(writer, request, errMissingPathValue("conversation id"))
		return
	}

	conv, messages, err := s.conversations.Get(request.Context(), userID(request.Context()), conversationID)
	if err != nil {
		s.writeError(writer, request, err)
		return
	}
	if messages == nil {
		messages = []conversation.Message{}
	}
	s.writeJSON(writer, map[string]any{"conversation": conv, "messages": messages})
}

func (s *Server) handleRenameConversation(writer http.ResponseWriter, request *http.Request) {
	conversationID := request.PathValue("conversationID")
	if conversationID == "" {
		s.writeError(writer, request, errMissingPathValue("conversation id"))
		return
	}

	var body struct {
		Title string `json:"title"`
	}
	if err := readJSON(request, &body); err != nil {
		s.writeError(writer, request, err)
		return
	}

	conv, err := s.conversations.Rename(request.Context(), userID(request.Context()), conversationID, body.Title)
	if err != nil {
		s.writeError(writer, request, err)
		return
	}
	s.writeJSON(writer, conv)
}

func (s *Server) handleDeleteConversation(writer http.ResponseWriter, request *http.Request) {
	conversationID := request.PathValue("conversationID")
	if conversationID == "" {
		s.writeError(writer, request, errMissingPathValue("conversation id"))
		return
	}

	if err := s.conversations.Delete(request.Context(), userID(request.Context()), conversationID); err != nil {
		s.writeError(writer, request, err)
		return
	}
	s.writeJSON(writer, map[string]string{"status": "deleted"})
}

func (s *Server) handleAppendMessage(writer http.ResponseWriter, request *http.Request) {
	conversationID := request.PathValue("conversationID")
	if conversationID == "" {
		s.writeError(writer, request, errMissingPathValue("conversation id"))
		return
	}

	var body conversation.NewMessage
	if err := readJSON(request, &body); err != nil {
		s.writeError(writer, request, err)
		return
	}

	message, err := s.conversations.AppendMessage(request.Context(), userID(request.Context()), conversationID, body)
	if err != nil {
		s.writeError(writer, request, err)
		return
	}
	s.writeJSON(writer, message)
}
