// Copyright 2026 The Alcheme Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"net/http"

	"github.com/alcheme/alcheme/lib/apierror"
	"github.com/alcheme/alcheme/lib/sessiontoken"
	"github.com/alcheme/alcheme/lib/social"
)

// sessionRequest is the session exchange body. IDToken is a signed
// assertion from the identity provider naming the user; the profile
// fields refresh the public user document.
type sessionRequest struct {
	IDToken     string `json:"id_token"`
	DisplayName string `json:"display_name"`
	PhotoURL    string `json:"photo_url"`
}

// handleCreateSession exchanges an identity-provider token for a
// session cookie. The only unauthenticated write path, and the write
// happens only after the identity token verifies.
func (s *Server) handleCreateSession(writer http.ResponseWriter, request *http.Request) {
	var body sessionRequest
	if err := readJSON(request, &body); err != nil {
		s.writeError(writer, request, err)
		return
	}
	if body.IDToken == "" {
		s.writeError(writer, request, apierror.New(apierror.KindInvalidArgument, "id_token is required"))
		return
	}

	identity, err := sessiontoken.Verify(s.identityPublic, body.IDToken, s.clock.Now())
	if err != nil {
		s.logger.Info("identity token rejected", "error", err)
		s.writeError(writer, request, apierror.New(apierror.KindUnauthenticated, "invalid identity token"))
		return
	}

	value, err := sessiontoken.Mint(s.sessionPrivate, identity.Subject, s.clock.Now(), s.sessionLifetime)
	if err != nil {
		s.writeError(writer, request, err)
		return
	}

	if err := s.social.UpsertUser(request.Context(), social.User{
		ID:          identity.Subject,
		DisplayName: body.DisplayName,
		PhotoURL:    body.PhotoURL,
	}); err != nil {
		s.writeError(writer, request, err)
		return
	}

	lifetime := s.sessionLifetime
	if lifetime <= 0 {
		lifetime = sessiontoken.DefaultLifetime
	}
	http.SetCookie(writer, &http.Cookie{
		Name:     sessionCookieName,
		Value:    value,
		Path:     "/",
		MaxAge:   int(lifetime.Seconds()),
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})

	s.writeJSON(writer, map[string]string{"user_id": identity.Subject})
}

// handleDeleteSession clears the session cookie. Deliberately
// unauthenticated: logging out with an expired session must succeed.
func (s *Server) handleDeleteSession(writer http.ResponseWriter, request *http.Request) {
	http.SetCookie(writer, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	})
	s.writeJSON(writer, map[string]string{"status": "signed_out"})
}
