// Copyright 2026 The Alcheme Authors
// SPDX-License-Identifier: Apache-2.0

// Package recipes stores a user's saved makeup recipes and bridges
// them into the social feed. Recipes live in per-user collections;
// publishing one creates a social post and records the post id back
// on the recipe, both in a single transaction.
package recipes

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alcheme/alcheme/lib/apierror"
	"github.com/alcheme/alcheme/lib/docstore"
	"github.com/alcheme/alcheme/lib/social"
)

// Step is one instruction in a recipe, optionally tied to an
// inventory item.
type Step struct {
	Step        int    `json:"step"`
	Area        string `json:"area,omitempty"`
	ItemID      string `json:"item_id,omitempty"`
	ItemName    string `json:"item_name,omitempty"`
	Instruction string `json:"instruction,omitempty"`
	Brand       string `json:"brand,omitempty"`
	ColorCode   string `json:"color_code,omitempty"`
	ColorName   string `json:"color_name,omitempty"`
}

// Feedback rating values.
const (
	RatingLiked    = "liked"
	RatingNeutral  = "neutral"
	RatingDisliked = "disliked"
)

// Feedback is the user's rating of a recipe.
type Feedback struct {
	Rating    string    `json:"user_rating"`
	CreatedAt time.Time `json:"created_at"`
}

// Recipe is a saved makeup recipe. PublishedPostID links the social
// post created by Publish and is empty while unpublished.
type Recipe struct {
	ID              string         `json:"id"`
	Name            string         `json:"recipe_name"`
	UserRequest     string         `json:"user_request,omitempty"`
	Steps           []Step         `json:"steps"`
	Context         map[string]any `json:"context,omitempty"`
	Source          string         `json:"source"`
	MatchScore      int            `json:"match_score"`
	IsFavorite      bool           `json:"is_favorite"`
	ProTips         []string       `json:"pro_tips,omitempty"`
	ThinkingProcess []string       `json:"thinking_process,omitempty"`
	Feedback        *Feedback      `json:"feedback,omitempty"`
	PreviewImageURL string         `json:"preview_image_url,omitempty"`
	CharacterTheme  string         `json:"character_theme,omitempty"`
	PublishedPostID string         `json:"published_post_id,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

// NewRecipe is the caller-supplied part of a manually saved recipe.
type NewRecipe struct {
	Name            string         `json:"recipe_name"`
	UserRequest     string         `json:"user_request"`
	Steps           []Step         `json:"steps"`
	Context         map[string]any `json:"context"`
	Source          string         `json:"source"`
	ProTips         []string       `json:"pro_tips"`
	ThinkingProcess []string       `json:"thinking_process"`
	PreviewImageURL string         `json:"preview_image_url"`
	CharacterTheme  string         `json:"character_theme"`
}

// summarySteps caps how many step instructions a published post
// carries as its preview.
const summarySteps = 3

// Service implements recipe storage and publishing. Safe for
// concurrent use.
type Service struct {
	store  *docstore.Store
	social *social.Service
	logger *slog.Logger
}

// New creates a Service. A nil logger discards.
func New(store *docstore.Store, socialService *social.Service, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{store: store, social: socialService, logger: logger}
}

func recipesCollection(userID string) string {
	return "recipes/" + userID
}

func validateNewRecipe(r *NewRecipe) error {
	if len(r.Steps) == 0 {
		return apierror.New(apierror.KindInvalidArgument, "at least one step is required")
	}
	if r.Name == "" {
		r.Name = "My recipe"
	}
	if r.Source == "" {
		r.Source = "manual"
	}
	// Step numbering is authoritative here, whatever the client sent.
	for i := range r.Steps {
		r.Steps[i].Step = i + 1
	}
	return nil
}

// List returns a user's recipes, newest first. A non-empty itemID
// keeps only recipes with a step using that inventory item.
func (s *Service) List(ctx context.Context, userID, itemID string) ([]Recipe, error) {
	docs, err := s.store.List(ctx, recipesCollection(userID), docstore.ListOptions{Descending: true})
	if err != nil {
		return nil, err
	}

	recipes := make([]Recipe, 0, len(docs))
	for _, doc := range docs {
		var recipe Recipe
		if err := doc.Decode(&recipe); err != nil {
			return nil, err
		}
		recipe.ID = doc.ID
		recipe.CreatedAt = doc.CreatedAt
		recipe.UpdatedAt = doc.UpdatedAt
		if itemID != "" && !usesItem(recipe, itemID) {
			continue
		}
		recipes = append(recipes, recipe)
	}
	return recipes, nil
}

func usesItem(recipe Recipe, itemID string) bool {
	for _, step := range recipe.Steps {
		if step.ItemID == itemID {
			return true
		}
	}
	return false
}

// Save stores a manually assembled recipe.
func (s *Service) Save(ctx context.Context, userID string, newRecipe NewRecipe) (Recipe, error) {
	if err := validateNewRecipe(&newRecipe); err != nil {
		return Recipe{}, err
	}

	recipe := Recipe{
		ID:              uuid.NewString(),
		Name:            newRecipe.Name,
		UserRequest:     newRecipe.UserRequest,
		Steps:           newRecipe.Steps,
		Context:         newRecipe.Context,
		Source:          newRecipe.Source,
		MatchScore:      100,
		ProTips:         newRecipe.ProTips,
		ThinkingProcess: newRecipe.ThinkingProcess,
		PreviewImageURL: newRecipe.PreviewImageURL,
		CharacterTheme:  newRecipe.CharacterTheme,
	}
	err := s.store.RunTransaction(ctx, func(tx *docstore.Tx) error {
		recipe.CreatedAt = tx.Now()
		recipe.UpdatedAt = tx.Now()
		return tx.Put(recipesCollection(userID), recipe.ID, recipe)
	})
	if err != nil {
		return Recipe{}, err
	}
	return recipe, nil
}

// Get returns one recipe. NotFound when absent from this user's
// collection.
func (s *Service) Get(ctx context.Context, userID, recipeID string) (Recipe, error) {
	var recipe Recipe
	doc, err := s.store.Get(ctx, recipesCollection(userID), recipeID, &recipe)
	if err != nil {
		if apierror.KindOf(err) == apierror.KindNotFound {
			return Recipe{}, apierror.New(apierror.KindNotFound, "recipe not found")
		}
		return Recipe{}, err
	}
	recipe.ID = recipeID
	recipe.CreatedAt = doc.CreatedAt
	recipe.UpdatedAt = doc.UpdatedAt
	return recipe, nil
}

// Delete removes a recipe. A published recipe's social post and the
// author's post_count are cleaned up in the same transaction.
func (s *Service) Delete(ctx context.Context, userID, recipeID string) error {
	return s.store.RunTransaction(ctx, func(tx *docstore.Tx) error {
		var recipe Recipe
		if _, err := tx.Get(recipesCollection(userID), recipeID, &recipe); err != nil {
			if apierror.KindOf(err) == apierror.KindNotFound {
				return apierror.New(apierror.KindNotFound, "recipe not found")
			}
			return err
		}

		if recipe.PublishedPostID != "" {
			if err := s.social.UnpublishPost(tx, recipe.PublishedPostID, userID); err != nil {
				return err
			}
		}
		return tx.Delete(recipesCollection(userID), recipeID)
	})
}

// ToggleFavorite flips a recipe's favorite flag and returns the new
// state.
func (s *Service) ToggleFavorite(ctx context.Context, userID, recipeID string) (bool, error) {
	var favorite bool
	err := s.store.RunTransaction(ctx, func(tx *docstore.Tx) error {
		var recipe Recipe
		if _, err := tx.Get(recipesCollection(userID), recipeID, &recipe); err != nil {
			if apierror.KindOf(err) == apierror.KindNotFound {
				return apierror.New(apierror.KindNotFound, "recipe not found")
			}
			return err
		}
		recipe.IsFavorite = !recipe.IsFavorite
		favorite = recipe.IsFavorite
		return tx.Put(recipesCollection(userID), recipeID, recipe)
	})
	if err != nil {
		return false, err
	}
	return favorite, nil
}

// RecordFeedback stores the user's rating of a recipe, replacing any
// earlier rating.
func (s *Service) RecordFeedback(ctx context.Context, userID, recipeID, rating string) error {
	switch rating {
	case RatingLiked, RatingNeutral, RatingDisliked:
	default:
		return apierror.Newf(apierror.KindInvalidArgument, "unknown rating %q", rating)
	}

	return s.store.RunTransaction(ctx, func(tx *docstore.Tx) error {
		var recipe Recipe
		if _, err := tx.Get(recipesCollection(userID), recipeID, &recipe); err != nil {
			if apierror.KindOf(err) == apierror.KindNotFound {
				return apierror.New(apierror.KindNotFound, "recipe not found")
			}
			return err
		}
		recipe.Feedback = &Feedback{Rating: rating, CreatedAt: tx.Now()}
		return tx.Put(recipesCollection(userID), recipeID, recipe)
	})
}

// Publish creates a public social post from a recipe and records the
// post id on the recipe, atomically. Conflict when the recipe is
// already published.
func (s *Service) Publish(ctx context.Context, userID, recipeID string, tags []string) (string, error) {
	// The author fields are a snapshot of the profile at publish time,
	// same as direct post creation.
	profile, err := s.social.GetUser(ctx, userID)
	if err != nil && apierror.KindOf(err) != apierror.KindNotFound {
		return "", err
	}

	var postID string
	err = s.store.RunTransaction(ctx, func(tx *docstore.Tx) error {
		var recipe Recipe
		if _, err := tx.Get(recipesCollection(userID), recipeID, &recipe); err != nil {
			if apierror.KindOf(err) == apierror.KindNotFound {
				return apierror.New(apierror.KindNotFound, "recipe not found")
			}
			return err
		}
		if recipe.PublishedPostID != "" {
			return apierror.New(apierror.KindConflict, "recipe is already published")
		}

		post, err := s.social.PublishPost(tx, social.NewPost{
			UserID:            userID,
			AuthorDisplayName: profile.DisplayName,
			AuthorPhotoURL:    profile.PhotoURL,
			RecipeID:          recipeID,
			RecipeName:        recipe.Name,
			PreviewImageURL:   recipe.PreviewImageURL,
			StepsSummary:      stepsSummary(recipe.Steps),
			CharacterTheme:    recipe.CharacterTheme,
			Visibility:        social.VisibilityPublic,
			Tags:              tags,
		})
		if err != nil {
			return err
		}

		recipe.PublishedPostID = post.ID
		postID = post.ID
		return tx.Put(recipesCollection(userID), recipeID, recipe)
	})
	if err != nil {
		return "", err
	}
	return postID, nil
}

// Unpublish removes a recipe's social post and clears the link.
// InvalidArgument when the recipe is not published.
func (s *Service) Unpublish(ctx context.Context, userID, recipeID string) error {
	return s.store.RunTransaction(ctx, func(tx *docstore.Tx) error {
		var recipe Recipe
		if _, err := tx.Get(recipesCollection(userID), recipeID, &recipe); err != nil {
			if apierror.KindOf(err) == apierror.KindNotFound {
				return apierror.New(apierror.KindNotFound, "recipe not found")
			}
			return err
		}
		if recipe.PublishedPostID == "" {
			return apierror.New(apierror.KindInvalidArgument, "recipe is not published")
		}

		if err := s.social.UnpublishPost(tx, recipe.PublishedPostID, userID); err != nil {
			return err
		}
		recipe.PublishedPostID = ""
		return tx.Put(recipesCollection(userID), recipeID, recipe)
	})
}

// stepsSummary builds the short preview a published post carries.
func stepsSummary(steps []Step) []string {
	var summary []string
	for _, step := range steps {
		if len(summary) == summarySteps {
			break
		}
		text := step.Instruction
		if text == "" {
			text = step.ItemName
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		summary = append(summary, text)
	}
	return summary
}
