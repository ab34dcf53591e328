// Copyright 2026 The Alcheme Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"net/http"

	"github.com/alcheme/alcheme/lib/recipes"
)

func (s *Server) handleListRecipes(writer http.ResponseWriter, request *http.Request) {
	listing, err := s.recipes.List(request.Context(), userID(request.Context()), request.URL.Query().Get("item_id"))
	if err != nil {
		s.writeError(writer, request, err)
		return
	}
	if listing == nil {
		listing = []recipes.Recipe{}
	}
	s.writeJSON(writer, map[string]any{"recipes": listing, "count": len(listing)})
}

func (s *Server) handleSaveRecipe(writer http.ResponseWriter, request *http.Request) {
	var body recipes.NewRecipe
	if err := readJSON(request, &body); err != nil {
		s.writeError(writer, request, err)
		return
	}

	recipe, err := s.recipes.Save(request.Context(), userID(request.Context()), body)
	if err != nil {
		s.writeError(writer, request, err)
		return
	}
	s.writeJSON(writer, recipe)
}

func (s *Server) handleGetRecipe(writer http.ResponseWriter, request *http.Request) {
	recipeID := request.PathValue("recipeID")
	if recipeID == "" {
		s.writeError(writer, request, errMissingPathValue("recipe id"))
		return
	}

	recipe, err := s.recipes.Get(request.Context(), userID(request.Context()), recipeID)
	if err != nil {
		s.writeError(writer, request, err)
		return
	}
	s.writeJSON(writer, map[string]any{"recipe": recipe})
}

func (s *Server) handleDeleteRecipe(writer http.ResponseWriter, request *http.Request) {
	recipeID := request.PathValue("recipeID")
	if recipeID == "" {
		s.writeError(writer, request, errMissingPathValue("recipe id"))
		return
	}

	if err := s.recipes.Delete(request.Context(), userID(request.Context()), recipeID); err != nil {
		s.writeError(writer, request, err)
		return
	}
	s.writeJSON(writer, map[string]string{"status": "deleted"})
}

func (s *Server) handleToggleRecipeFavorite(writer http.ResponseWriter, request *http.Request) {
	recipeID := request.PathValue("recipeID")
	if recipeID == "" {
		s.writeError(writer, request, errMissingPathValue("recipe id"))
		return
	}

	favorite, err := s.recipes.ToggleFavorite(request.Context(), userID(request.Context()), recipeID)
	if err != nil {
		s.writeError(writer, request, err)
		return
	}
	s.writeJSON(writer, map[string]bool{"is_favorite": favorite})
}

func (s *Server) handlePublishRecipe(writer http.ResponseWriter, request *http.Request) {
	recipeID := request.PathValue("recipeID")
	if recipeID == "" {
		s.writeError(writer, request, errMissingPathValue("recipe id"))
		return
	}

	// The body is optional; publishing with no tags is the common case.
	var body struct {
		Tags []string `json:"tags"`
	}
	if request.ContentLength > 0 {
		if err := readJSON(request, &body); err != nil {
			s.writeError(writer, request, err)
			return
		}
	}

	postID, err := s.recipes.Publish(request.Context(), userID(request.Context()), recipeID, body.Tags)
	if err != nil {
		s.writeError(writer, request, err)
		return
	}
	s.writeJSON(writer, map[string]string{"post_id": postID})
}

func (s *Server) handleUnpublishRecipe(writer http.ResponseWriter, request *http.Request) {
	recipeID := request.PathValue("recipeID")
	if recipeID == "" {
		s.writeError(writer, request, errMissingPathValue("recipe id"))
		return
	}

	if err := s.recipes.Unpublish(request.Context(), userID(request.Context()), recipeID); err != nil {
		s.writeError(writer, request, err)
		return
	}
	s.writeJSON(writer, map[string]string{"status": "unpublished"})
}

func (s *Server) handleRecipeFeedback(writer http.ResponseWriter, request *http.Request) {
	recipeID := request.PathValue("recipeID")
	if recipeID == "" {
		s.writeError(writer, request, errMissingPathValue("recipe id"))
		return
	}

	var body struct {
		Rating string `json:"rating"`
	}
	if err := readJSON(request, &body); err != nil {
		s.writeError(writer, request, err)
		return
	}

	if err := s.recipes.RecordFeedback(request.Context(), userID(request.Context()), recipeID, body.Rating); err != nil {
		s.writeError(writer, request, err)
		return
	}
	s.writeJSON(writer, map[string]string{"status": "recorded"})
}
