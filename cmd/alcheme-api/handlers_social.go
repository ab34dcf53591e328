// Copyright 2026 The Alcheme Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"net/http"
	"strconv"

	"github.com/alcheme/alcheme/lib/apierror"
	"github.com/alcheme/alcheme/lib/social"
)

// handleToggleFollow flips the follow relationship from the
// authenticated user to target_user_id.
func (s *Server) handleToggleFollow(writer http.ResponseWriter, request *http.Request) {
	var body struct {
		TargetUserID string `json:"target_user_id"`
	}
	if err := readJSON(request, &body); err != nil {
		s.writeError(writer, request, err)
		return
	}
	if body.TargetUserID == "" {
		s.writeError(writer, request, apierror.New(apierror.KindInvalidArgument, "target_user_id is required"))
		return
	}

	result, err := s.social.ToggleFollow(request.Context(), userID(request.Context()), body.TargetUserID)
	if err != nil {
		s.writeError(writer, request, err)
		return
	}
	s.writeJSON(writer, result)
}

// handleToggleLike flips the authenticated user's like on a post.
func (s *Server) handleToggleLike(writer http.ResponseWriter, request *http.Request) {
	postID := request.PathValue("postID")
	if postID == "" {
		s.writeError(writer, request, errMissingPathValue("post id"))
		return
	}

	result, err := s.social.ToggleLike(request.Context(), postID, userID(request.Context()))
	if err != nil {
		s.writeError(writer, request, err)
		return
	}
	s.writeJSON(writer, result)
}

// handleListFeed returns a page of the post feed.
func (s *Server) handleListFeed(writer http.ResponseWriter, request *http.Request) {
	query := request.URL.Query()

	limit := 0
	if raw := query.Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(writer, request, apierror.New(apierror.KindInvalidArgument, "limit must be an integer"))
			return
		}
		limit = parsed
	}

	page, err := s.social.ListFeed(request.Context(), userID(request.Context()), social.FeedOptions{
		Cursor:        query.Get("cursor"),
		Limit:         limit,
		FollowingOnly: query.Get("following") == "true",
	})
	if err != nil {
		s.writeError(writer, request, err)
		return
	}
	if page.Items == nil {
		page.Items = []social.FeedItem{}
	}
	s.writeJSON(writer, page)
}

// createPostRequest is the post submission body. The author fields
// come from the session, never the body.
type createPostRequest struct {
	RecipeID        string   `json:"recipe_id"`
	RecipeName      string   `json:"recipe_name"`
	PreviewImageURL string   `json:"preview_image_url"`
	StepsSummary    []string `json:"steps_summary"`
	CharacterTheme  string   `json:"character_theme"`
	Visibility      string   `json:"visibility"`
	Tags            []string `json:"tags"`
}

func (s *Server) handleCreatePost(writer http.ResponseWriter, request *http.Request) {
	var body createPostRequest
	if err := readJSON(request, &body); err != nil {
		s.writeError(writer, request, err)
		return
	}

	viewer := userID(request.Context())
	profile, err := s.social.GetUser(request.Context(), viewer)
	if err != nil && apierror.KindOf(err) != apierror.KindNotFound {
		s.writeError(writer, request, err)
		return
	}

	post, err := s.social.CreatePost(request.Context(), social.NewPost{
		UserID:            viewer,
		AuthorDisplayName: profile.DisplayName,
		AuthorPhotoURL:    profile.PhotoURL,
		RecipeID:          body.RecipeID,
		RecipeName:        body.RecipeName,
		PreviewImageURL:   body.PreviewImageURL,
		StepsSummary:      body.StepsSummary,
		CharacterTheme:    body.CharacterTheme,
		Visibility:        body.Visibility,
		Tags:              body.Tags,
	})
	if err != nil {
		s.writeError(writer, request, err)
		return
	}
	s.writeJSON(writer, post)
}

func (s *Server) handleGetPost(writer http.ResponseWriter, request *http.Request) {
	postID := request.PathValue("postID")
	if postID == "" {
		s.writeError(writer, request, errMissingPathValue("post id"))
		return
	}

	item, err := s.social.GetPost(request.Context(), postID, userID(request.Context()))
	if err != nil {
		s.writeError(writer, request, err)
		return
	}
	s.writeJSON(writer, item)
}

func (s *Server) handleDeletePost(writer http.ResponseWriter, request *http.Request) {
	postID := request.PathValue("postID")
	if postID == "" {
		s.writeError(writer, request, errMissingPathValue("post id"))
		return
	}

	if err := s.social.DeletePost(request.Context(), postID, userID(request.Context())); err != nil {
		s.writeError(writer, request, err)
		return
	}
	s.writeJSON(writer, map[string]string{"status": "deleted"})
}

// addCommentRequest is the comment submission body.
type addCommentRequest struct {
	Type        string `json:"type"`
	Text        string `json:"text"`
	ReactionKey string `json:"reaction_key"`
}

func (s *Server) handleAddComment(writer http.ResponseWriter, request *http.Request) {
	postID := request.PathValue("postID")
	if postID == "" {
		s.writeError(writer, request, errMissingPathValue("post id"))
		return
	}

	var body addCommentRequest
	if err := readJSON(request, &body); err != nil {
		s.writeError(writer, request, err)
		return
	}

	viewer := userID(request.Context())
	profile, err := s.social.GetUser(request.Context(), viewer)
	if err != nil && apierror.KindOf(err) != apierror.KindNotFound {
		s.writeError(writer, request, err)
		return
	}

	comment, err := s.social.AddComment(request.Context(), postID, viewer, social.NewComment{
		AuthorDisplayName: profile.DisplayName,
		AuthorPhotoURL:    profile.PhotoURL,
		Type:              body.Type,
		Text:              body.Text,
		ReactionKey:       body.ReactionKey,
	})
	if err != nil {
		s.writeError(writer, request, err)
		return
	}
	s.writeJSON(writer, comment)
}

func (s *Server) handleListComments(writer http.ResponseWriter, request *http.Request) {
	postID := request.PathValue("postID")
	if postID == "" {
		s.writeError(writer, request, errMissingPathValue("post id"))
		return
	}

	comments, err := s.social.ListComments(request.Context(), postID)
	if err != nil {
		s.writeError(writer, request, err)
		return
	}
	s.writeJSON(writer, map[string]any{"comments": comments})
}

// handleGetMe returns the caller's own profile. A user who has never
// saved a profile gets a null profile, not an error.
func (s *Server) handleGetMe(writer http.ResponseWriter, request *http.Request) {
	user, err := s.social.GetUser(request.Context(), userID(request.Context()))
	if err != nil {
		if apierror.KindOf(err) == apierror.KindNotFound {
			s.writeJSON(writer, map[string]any{"profile": nil})
			return
		}
		s.writeError(writer, request, err)
		return
	}
	s.writeJSON(writer, map[string]any{"profile": user})
}

// handleUpdateMe applies a partial profile update. Absent fields are
// left unchanged.
func (s *Server) handleUpdateMe(writer http.ResponseWriter, request *http.Request) {
	var body social.ProfileUpdate
	if err := readJSON(request, &body); err != nil {
		s.writeError(writer, request, err)
		return
	}

	user, err := s.social.UpdateProfile(request.Context(), userID(request.Context()), body)
	if err != nil {
		s.writeError(writer, request, err)
		return
	}
	s.writeJSON(writer, map[string]any{"profile": user})
}

// userProfileResponse is the public profile view.
type userProfileResponse struct {
	social.User
	Stats       social.UserStats `json:"stats"`
	IsFollowing bool             `json:"is_following"`
}

func (s *Server) handleGetUser(writer http.ResponseWriter, request *http.Request) {
	targetID := request.PathValue("userID")
	if targetID == "" {
		s.writeError(writer, request, errMissingPathValue("user id"))
		return
	}

	user, err := s.social.GetUser(request.Context(), targetID)
	if err != nil {
		s.writeError(writer, request, err)
		return
	}

	stats, err := s.social.Stats(request.Context(), targetID)
	if err != nil {
		s.writeError(writer, request, err)
		return
	}

	viewer := userID(request.Context())
	isFollowing := false
	if viewer != targetID {
		isFollowing, err = s.social.IsFollowing(request.Context(), viewer, targetID)
		if err != nil {
			s.writeError(writer, request, err)
			return
		}
	}

	s.writeJSON(writer, userProfileResponse{
		User:        user,
		Stats:       stats,
		IsFollowing: isFollowing,
	})
}
