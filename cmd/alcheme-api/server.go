// Copyright 2026 The Alcheme Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alcheme/alcheme/lib/agent"
	"github.com/alcheme/alcheme/lib/apierror"
	"github.com/alcheme/alcheme/lib/clock"
	"github.com/alcheme/alcheme/lib/conversation"
	"github.com/alcheme/alcheme/lib/inventory"
	"github.com/alcheme/alcheme/lib/recipes"
	"github.com/alcheme/alcheme/lib/sessiontoken"
	"github.com/alcheme/alcheme/lib/social"
)

// sessionCookieName is the cookie carrying the signed session token.
const sessionCookieName = "session"

// Server holds the wired services behind the HTTP surface.
type Server struct {
	social        *social.Service
	inventory     *inventory.Service
	recipes       *recipes.Service
	conversations *conversation.Service
	agent         *agent.Client
	clock         clock.Clock
	logger        *slog.Logger

	sessionPrivate  ed25519.PrivateKey
	sessionPublic   ed25519.PublicKey
	identityPublic  ed25519.PublicKey
	sessionLifetime time.Duration
}

// contextKey is the private type for request context values.
type contextKey struct{ name string }

var userIDKey = contextKey{"user-id"}

// userID returns the authenticated user id placed by withAuth.
func userID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}

// Handler builds the route table. Every route except /healthz and the
// session exchange sits behind withAuth.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("POST /api/auth/session", s.handleCreateSession)
	mux.HandleFunc("DELETE /api/auth/session", s.handleDeleteSession)

	mux.Handle("POST /api/social/follow", s.withAuth(s.handleToggleFollow))
	mux.Handle("POST /api/social/posts/{postID}/like", s.withAuth(s.handleToggleLike))
	mux.Handle("GET /api/social/posts", s.withAuth(s.handleListFeed))
	mux.Handle("POST /api/social/posts", s.withAuth(s.handleCreatePost))
	mux.Handle("GET /api/social/posts/{postID}", s.withAuth(s.handleGetPost))
	mux.Handle("DELETE /api/social/posts/{postID}", s.withAuth(s.handleDeletePost))
	mux.Handle("GET /api/social/posts/{postID}/comments", s.withAuth(s.handleListComments))
	mux.Handle("POST /api/social/posts/{postID}/comments", s.withAuth(s.handleAddComment))
	mux.Handle("GET /api/social/users/{userID}", s.withAuth(s.handleGetUser))

	mux.Handle("GET /api/users/me", s.withAuth(s.handleGetMe))
	mux.Handle("PATCH /api/users/me", s.withAuth(s.handleUpdateMe))

	mux.Handle("POST /api/chat", s.withAuth(s.handleChat))

	mux.Handle("GET /api/conversations", s.withAuth(s.handleListConversations))
	mux.Handle("POST /api/conversations", s.withAuth(s.handleCreateConversation))
	mux.Handle("GET /api/conversations/{conversationID}", s.withAuth(s.handleGetConversation))
	mux.Handle("PATCH /api/conversations/{conversationID}", s.withAuth(s.handleRenameConversation))
	mux.Handle("DELETE /api/conversations/{conversationID}", s.withAuth(s.handleDeleteConversation))
	mux.Handle("POST /api/conversations/{conversationID}/messages", s.withAuth(s.handleAppendMessage))

	mux.Handle("GET /api/recipes", s.withAuth(s.handleListRecipes))
	mux.Handle("POST /api/recipes", s.withAuth(s.handleSaveRecipe))
	mux.Handle("GET /api/recipes/{recipeID}", s.withAuth(s.handleGetRecipe))
	mux.Handle("DELETE /api/recipes/{recipeID}", s.withAuth(s.handleDeleteRecipe))
	mux.Handle("POST /api/recipes/{recipeID}/favorite", s.withAuth(s.handleToggleRecipeFavorite))
	mux.Handle("POST /api/recipes/{recipeID}/publish", s.withAuth(s.handlePublishRecipe))
	mux.Handle("DELETE /api/recipes/{recipeID}/publish", s.withAuth(s.handleUnpublishRecipe))
	mux.Handle("POST /api/recipes/{recipeID}/feedback", s.withAuth(s.handleRecipeFeedback))

	mux.Handle("GET /api/inventory", s.withAuth(s.handleListInventory))
	mux.Handle("POST /api/inventory", s.withAuth(s.handleCreateInventoryItem))
	mux.Handle("PUT /api/inventory/{itemID}", s.withAuth(s.handleUpdateInventoryItem))
	mux.Handle("DELETE /api/inventory/{itemID}", s.withAuth(s.handleDeleteInventoryItem))

	mux.Handle("GET /api/suggestions", s.withAuth(s.handleListSuggestions))
	mux.Handle("POST /api/suggestions", s.withAuth(s.handleRecordSuggestion))

	return mux
}

// withAuth resolves the session cookie to a user id before the
// handler runs. An absent or invalid cookie is 401 without touching
// the store.
func (s *Server) withAuth(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		cookie, err := request.Cookie(sessionCookieName)
		if err != nil {
			apierror.WriteJSON(writer, apierror.New(apierror.KindUnauthenticated, "authentication required"))
			return
		}

		token, err := sessiontoken.Verify(s.sessionPublic, cookie.Value, s.clock.Now())
		if err != nil {
			s.logger.Debug("session verification failed", "error", err)
			apierror.WriteJSON(writer, apierror.New(apierror.KindUnauthenticated, "authentication required"))
			return
		}

		ctx := context.WithValue(request.Context(), userIDKey, token.Subject)
		next(writer, request.WithContext(ctx))
	})
}

// handleHealthz is the liveness probe.
func (s *Server) handleHealthz(writer http.ResponseWriter, request *http.Request) {
	writer.Header().Set("Content-Type", "application/json")
	writer.Write([]byte(`{"status":"ok"}`))
}

// writeJSON renders a 200 JSON response.
func (s *Server) writeJSON(writer http.ResponseWriter, v any) {
	writer.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(writer).Encode(v); err != nil {
		s.logger.Error("encoding response", "error", err)
	}
}

// writeError renders an error through the apierror taxonomy, logging
// internals the client never sees.
func (s *Server) writeError(writer http.ResponseWriter, request *http.Request, err error) {
	if apierror.KindOf(err) == apierror.KindInternal {
		s.logger.Error("request failed",
			"method", request.Method,
			"path", request.URL.Path,
			"error", err,
		)
	}
	apierror.WriteJSON(writer, err)
}

// readJSON decodes a request body, rejecting oversized or malformed
// payloads as InvalidArgument.
func readJSON(request *http.Request, v any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(nil, request.Body, 1<<20))
	if err := decoder.Decode(v); err != nil {
		return apierror.Wrap(apierror.KindInvalidArgument, "malformed request body", err)
	}
	return nil
}

// errMissingPathValue builds the InvalidArgument for an empty path
// parameter. With method patterns this only happens for requests like
// POST /api/social/posts//like.
func errMissingPathValue(name string) error {
	return apierror.New(apierror.KindInvalidArgument, fmt.Sprintf("missing %s", name))
}
