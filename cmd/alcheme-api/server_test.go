// Copyright 2026 The Alcheme Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alcheme/alcheme/lib/agent"
	"github.com/alcheme/alcheme/lib/clock"
	"github.com/alcheme/alcheme/lib/conversation"
	"github.com/alcheme/alcheme/lib/docstore"
	"github.com/alcheme/alcheme/lib/inventory"
	"github.com/alcheme/alcheme/lib/recipes"
	"github.com/alcheme/alcheme/lib/sessiontoken"
	"github.com/alcheme/alcheme/lib/social"
)

// testHarness wires a full Server against a temp store and a
// caller-supplied agent upstream.
type testHarness struct {
	server          *Server
	api             *httptest.Server
	store           *docstore.Store
	sessionPrivate  ed25519.PrivateKey
	identityPrivate ed25519.PrivateKey
}

func newHarness(t *testing.T, agentUpstream http.Handler) *testHarness {
	t.Helper()

	sessionPublic, sessionPrivate, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generating session keys: %v", err)
	}
	identityPublic, identityPrivate, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generating identity keys: %v", err)
	}

	store, err := docstore.Open(docstore.Config{Path: filepath.Join(t.TempDir(), "api.db")})
	if err != nil {
		t.Fatalf("opening store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	agentBase := "http://127.0.0.1:1"
	if agentUpstream != nil {
		upstream := httptest.NewServer(agentUpstream)
		t.Cleanup(upstream.Close)
		agentBase = upstream.URL
	}
	agentClient, err := agent.New(agent.Config{BaseURL: agentBase})
	if err != nil {
		t.Fatalf("agent client: %v", err)
	}

	logger := slog.New(slog.DiscardHandler)
	socialService := social.New(store, logger)
	server := &Server{
		social:         socialService,
		inventory:      inventory.New(store, logger),
		recipes:        recipes.New(store, socialService, logger),
		conversations:  conversation.New(store, logger),
		agent:          agentClient,
		clock:          clock.Real(),
		logger:         logger,
		sessionPrivate: sessionPrivate,
		sessionPublic:  sessionPublic,
		identityPublic: identityPublic,
	}

	api := httptest.NewServer(server.Handler())
	t.Cleanup(api.Close)

	return &testHarness{
		server:          server,
		api:             api,
		store:           store,
		sessionPrivate:  sessionPrivate,
		identityPrivate: identityPrivate,
	}
}

// sessionCookie mints a valid session cookie for userID.
func (h *testHarness) sessionCookie(t *testing.T, userID string) *http.Cookie {
	t.Helper()
	value, err := sessiontoken.Mint(h.sessionPrivate, userID, time.Now(), time.Hour)
	if err != nil {
		t.Fatalf("minting session: %v", err)
	}
	return &http.Cookie{Name: sessionCookieName, Value: value}
}

// do sends an authenticated JSON request and decodes the response
// into out (when non-nil), returning the status code.
func (h *testHarness) do(t *testing.T, method, path, userID, body string, out any) int {
	t.Helper()
	request, err := http.NewRequest(method, h.api.URL+path, strings.NewReader(body))
	if err != nil {
		t.Fatalf("building request: %v", err)
	}
	if userID != "" {
		request.AddCookie(h.sessionCookie(t, userID))
	}
	response, err := http.DefaultClient.Do(request)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer response.Body.Close()
	if out != nil {
		if err := json.NewDecoder(response.Body).Decode(out); err != nil {
			t.Fatalf("decoding %s %s response: %v", method, path, err)
		}
	}
	return response.StatusCode
}

func (h *testHarness) createPost(t *testing.T, userID string) social.Post {
	t.Helper()
	var post social.Post
	status := h.do(t, http.MethodPost, "/api/social/posts", userID, `{"recipe_name":"dewy base"}`, &post)
	if status != http.StatusOK {
		t.Fatalf("create post: status %d", status)
	}
	return post
}

func TestHealthzIsUnauthenticated(t *testing.T) {
	h := newHarness(t, nil)
	if status := h.do(t, http.MethodGet, "/healthz", "", "", nil); status != http.StatusOK {
		t.Errorf("healthz status = %d", status)
	}
}

func TestMissingSessionIs401WithZeroWrites(t *testing.T) {
	h := newHarness(t, nil)

	status := h.do(t, http.MethodPost, "/api/social/follow", "", `{"target_user_id":"bob"}`, nil)
	if status != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", status)
	}

	// The rejected request must not have touched the store.
	exists, err := h.store.Exists(t.Context(), "user_stats", "bob")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Error("unauthenticated request wrote to the store")
	}
}

func TestExpiredSessionIs401(t *testing.T) {
	h := newHarness(t, nil)

	value, err := sessiontoken.Mint(h.sessionPrivate, "alice", time.Now().Add(-2*time.Hour), time.Hour)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	request, _ := http.NewRequest(http.MethodGet, h.api.URL+"/api/social/posts", nil)
	request.AddCookie(&http.Cookie{Name: sessionCookieName, Value: value})
	response, err := http.DefaultClient.Do(request)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	response.Body.Close()
	if response.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", response.StatusCode)
	}
}

func TestSessionExchangeSetsCookie(t *testing.T) {
	h := newHarness(t, nil)

	idToken, err := sessiontoken.Mint(h.identityPrivate, "alice", time.Now(), time.Hour)
	if err != nil {
		t.Fatalf("minting identity token: %v", err)
	}

	response, err := http.Post(h.api.URL+"/api/auth/session", "application/json",
		strings.NewReader(`{"id_token":"`+idToken+`","display_name":"Alice"}`))
	if err != nil {
		t.Fatalf("POST session: %v", err)
	}
	defer response.Body.Close()
	if response.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(response.Body)
		t.Fatalf("status = %d, body %s", response.StatusCode, body)
	}

	var cookie *http.Cookie
	for _, c := range response.Cookies() {
		if c.Name == sessionCookieName {
			cookie = c
		}
	}
	if cookie == nil {
		t.Fatal("no session cookie set")
	}
	if !cookie.HttpOnly || !cookie.Secure || cookie.SameSite != http.SameSiteLaxMode || cookie.Path != "/" {
		t.Errorf("cookie attributes = %+v", cookie)
	}
	if want := int(sessiontoken.DefaultLifetime.Seconds()); cookie.MaxAge != want {
		t.Errorf("cookie MaxAge = %d, want %d", cookie.MaxAge, want)
	}

	// The minted cookie authenticates follow-up requests, and the
	// exchange upserted the profile.
	request, _ := http.NewRequest(http.MethodGet, h.api.URL+"/api/social/users/alice", nil)
	request.AddCookie(cookie)
	profileResponse, err := http.DefaultClient.Do(request)
	if err != nil {
		t.Fatalf("profile request: %v", err)
	}
	defer profileResponse.Body.Close()
	var profile userProfileResponse
	if err := json.NewDecoder(profileResponse.Body).Decode(&profile); err != nil {
		t.Fatalf("decoding profile: %v", err)
	}
	if profile.DisplayName != "Alice" {
		t.Errorf("DisplayName = %q", profile.DisplayName)
	}
}

func TestSessionExchangeRejectsForgedToken(t *testing.T) {
	h := newHarness(t, nil)

	// A token signed with the session key instead of the identity key
	// must not pass the exchange.
	forged, err := sessiontoken.Mint(h.sessionPrivate, "mallory", time.Now(), time.Hour)
	if err != nil {
		t.Fatalf("Mint: %v", err)
	}
	response, err := http.Post(h.api.URL+"/api/auth/session", "application/json",
		strings.NewReader(`{"id_token":"`+forged+`"}`))
	if err != nil {
		t.Fatalf("POST session: %v", err)
	}
	response.Body.Close()
	if response.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", response.StatusCode)
	}
}

func TestDeleteSessionClearsCookie(t *testing.T) {
	h := newHarness(t, nil)

	request, _ := http.NewRequest(http.MethodDelete, h.api.URL+"/api/auth/session", nil)
	response, err := http.DefaultClient.Do(request)
	if err != nil {
		t.Fatalf("DELETE session: %v", err)
	}
	response.Body.Close()

	for _, c := range response.Cookies() {
		if c.Name == sessionCookieName {
			if c.MaxAge >= 0 {
				t.Errorf("cookie MaxAge = %d, want negative", c.MaxAge)
			}
			return
		}
	}
	t.Error("no session cookie in response")
}

func TestLikeEndpoint(t *testing.T) {
	h := newHarness(t, nil)
	post := h.createPost(t, "author")

	var result social.LikeResult
	status := h.do(t, http.MethodPost, "/api/social/posts/"+post.ID+"/like", "viewer", "", &result)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if !result.Liked || result.LikeCount != 1 {
		t.Errorf("result = %+v", result)
	}

	status = h.do(t, http.MethodPost, "/api/social/posts/missing/like", "viewer", "", nil)
	if status != http.StatusNotFound {
		t.Errorf("missing post status = %d, want 404", status)
	}
}

func TestFollowEndpoint(t *testing.T) {
	h := newHarness(t, nil)

	var result social.FollowResult
	status := h.do(t, http.MethodPost, "/api/social/follow", "alice", `{"target_user_id":"bob"}`, &result)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if !result.Following || result.FollowerCount != 1 {
		t.Errorf("result = %+v", result)
	}

	status = h.do(t, http.MethodPost, "/api/social/follow", "alice", `{"target_user_id":"alice"}`, nil)
	if status != http.StatusBadRequest {
		t.Errorf("self-follow status = %d, want 400", status)
	}

	status = h.do(t, http.MethodPost, "/api/social/follow", "alice", `{}`, nil)
	if status != http.StatusBadRequest {
		t.Errorf("missing target status = %d, want 400", status)
	}
}

func TestFeedEndpoint(t *testing.T) {
	h := newHarness(t, nil)
	h.createPost(t, "author")
	h.createPost(t, "author")

	var page social.FeedPage
	status := h.do(t, http.MethodGet, "/api/social/posts?limit=1", "viewer", "", &page)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	if len(page.Items) != 1 || page.NextCursor == "" {
		t.Errorf("page = %d items, cursor %q", len(page.Items), page.NextCursor)
	}

	status = h.do(t, http.MethodGet, "/api/social/posts?limit=x", "viewer", "", nil)
	if status != http.StatusBadRequest {
		t.Errorf("bad limit status = %d, want 400", status)
	}
}

func TestDeletePostForbiddenForNonOwner(t *testing.T) {
	h := newHarness(t, nil)
	post := h.createPost(t, "author")

	status := h.do(t, http.MethodDelete, "/api/social/posts/"+post.ID, "intruder", "", nil)
	if status != http.StatusForbidden {
		t.Errorf("status = %d, want 403", status)
	}
}

func TestCommentsEndpoint(t *testing.T) {
	h := newHarness(t, nil)
	post := h.createPost(t, "author")

	var comment social.Comment
	status := h.do(t, http.MethodPost, "/api/social/posts/"+post.ID+"/comments", "viewer",
		`{"type":"comment","text":"lovely"}`, &comment)
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}

	status = h.do(t, http.MethodPost, "/api/social/posts/"+post.ID+"/comments", "viewer",
		`{"type":"reaction","reaction_key":"nope"}`, nil)
	if status != http.StatusBadRequest {
		t.Errorf("bad reaction status = %d, want 400", status)
	}

	var listing struct {
		Comments []social.Comment `json:"comments"`
	}
	status = h.do(t, http.MethodGet, "/api/social/posts/"+post.ID+"/comments", "viewer", "", &listing)
	if status != http.StatusOK {
		t.Fatalf("list status = %d", status)
	}
	if len(listing.Comments) != 1 || listing.Comments[0].Text != "lovely" {
		t.Errorf("comments = %+v", listing.Comments)
	}
}

func TestInventoryEndpoints(t *testing.T) {
	h := newHarness(t, nil)

	var item inventory.Item
	status := h.do(t, http.MethodPost, "/api/inventory", "alice",
		`{"brand":"Kate","product_name":"Designing Eyebrow"}`, &item)
	if status != http.StatusOK {
		t.Fatalf("create status = %d", status)
	}

	status = h.do(t, http.MethodPut, "/api/inventory/"+item.ID, "alice",
		`{"brand":"Kate","product_name":"Designing Eyebrow","color_code":"EX-5"}`, &item)
	if status != http.StatusOK || item.ColorCode != "EX-5" {
		t.Fatalf("update status = %d, item %+v", status, item)
	}

	// Owner scoping: another user cannot touch the item.
	status = h.do(t, http.MethodDelete, "/api/inventory/"+item.ID, "bob", "", nil)
	if status != http.StatusNotFound {
		t.Errorf("cross-user delete status = %d, want 404", status)
	}

	status = h.do(t, http.MethodDelete, "/api/inventory/"+item.ID, "alice", "", nil)
	if status != http.StatusOK {
		t.Errorf("delete status = %d", status)
	}
}

func TestSuggestionEndpointsDedupe(t *testing.T) {
	h := newHarness(t, nil)

	var first inventory.Suggestion
	h.do(t, http.MethodPost, "/api/suggestions", "alice",
		`{"brand":"Canmake","product_name":"Cream Cheek","color_code":"16"}`, &first)
	var second inventory.Suggestion
	h.do(t, http.MethodPost, "/api/suggestions", "alice",
		`{"brand":"CANMAKE","product_name":"cream cheek","color_code":"16"}`, &second)

	if second.RecommendationCount != 2 {
		t.Errorf("RecommendationCount = %d, want 2", second.RecommendationCount)
	}

	var listing struct {
		Suggestions []inventory.Suggestion `json:"suggestions"`
	}
	status := h.do(t, http.MethodGet, "/api/suggestions", "alice", "", &listing)
	if status != http.StatusOK || len(listing.Suggestions) != 1 {
		t.Errorf("status %d, %d suggestions", status, len(listing.Suggestions))
	}
}

func TestProfileEndpoints(t *testing.T) {
	h := newHarness(t, nil)

	// A user who never saved a profile gets a null profile.
	var empty struct {
		Profile *social.User `json:"profile"`
	}
	status := h.do(t, http.MethodGet, "/api/users/me", "alice", "", &empty)
	if status != http.StatusOK || empty.Profile != nil {
		t.Fatalf("status %d, profile %+v", status, empty.Profile)
	}

	var updated struct {
		Profile social.User `json:"profile"`
	}
	status = h.do(t, http.MethodPatch, "/api/users/me", "alice",
		`{"display_name":"Alice","bio":"coral lip enthusiast","preferences":{"personal_color":"spring"}}`, &updated)
	if status != http.StatusOK {
		t.Fatalf("patch status = %d", status)
	}
	if updated.Profile.Bio != "coral lip enthusiast" || updated.Profile.DisplayName != "Alice" {
		t.Errorf("profile = %+v", updated.Profile)
	}

	// A partial patch leaves the other fields alone.
	status = h.do(t, http.MethodPatch, "/api/users/me", "alice", `{"display_name":"Alice B"}`, &updated)
	if status != http.StatusOK || updated.Profile.Bio != "coral lip enthusiast" {
		t.Errorf("partial patch status %d, profile %+v", status, updated.Profile)
	}

	var fetched struct {
		Profile *social.User `json:"profile"`
	}
	status = h.do(t, http.MethodGet, "/api/users/me", "alice", "", &fetched)
	if status != http.StatusOK || fetched.Profile == nil || fetched.Profile.DisplayName != "Alice B" {
		t.Errorf("get status %d, profile %+v", status, fetched.Profile)
	}
}
