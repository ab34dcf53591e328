// Copyright 2026 The Alcheme Authors
// SPDX-License-Identifier: Apache-2.0

// Package inventory manages a user's cosmetics inventory and the AI
// product suggestions recorded against it. Both live in per-user
// collections, so ownership is enforced by construction: a request
// can only ever address the collections of its authenticated user.
package inventory

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alcheme/alcheme/lib/apierror"
	"github.com/alcheme/alcheme/lib/docstore"
)

// Item is one product in a user's inventory.
type Item struct {
	ID          string    `json:"id"`
	Brand       string    `json:"brand"`
	ProductName string    `json:"product_name"`
	Category    string    `json:"category,omitempty"`
	ColorCode   string    `json:"color_code,omitempty"`
	ImageURL    string    `json:"image_url,omitempty"`
	Notes       string    `json:"notes,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// NewItem is the caller-supplied part of an inventory item.
type NewItem struct {
	Brand       string `json:"brand"`
	ProductName string `json:"product_name"`
	Category    string `json:"category"`
	ColorCode   string `json:"color_code"`
	ImageURL    string `json:"image_url"`
	Notes       string `json:"notes"`
}

// Suggestion is a deduplicated AI product recommendation. The same
// product recommended again bumps RecommendationCount and appends to
// History instead of creating a new document.
type Suggestion struct {
	Key                 string            `json:"key"`
	Brand               string            `json:"brand"`
	ProductName         string            `json:"product_name"`
	ColorCode           string            `json:"color_code,omitempty"`
	Reason              string            `json:"reason,omitempty"`
	RecommendationCount int64             `json:"recommendation_count"`
	History             []SuggestionEvent `json:"history"`
	CreatedAt           time.Time         `json:"created_at"`
	UpdatedAt           time.Time         `json:"updated_at"`
}

// SuggestionEvent is one recommendation occurrence.
type SuggestionEvent struct {
	RecommendedAt time.Time `json:"recommended_at"`
	Source        string    `json:"source,omitempty"`
}

// NewSuggestion is the caller-supplied part of a suggestion.
type NewSuggestion struct {
	Brand       string `json:"brand"`
	ProductName string `json:"product_name"`
	ColorCode   string `json:"color_code"`
	Reason      string `json:"reason"`
	Source      string `json:"source"`
}

// Service implements inventory and suggestion storage. Safe for
// concurrent use.
type Service struct {
	store  *docstore.Store
	logger *slog.Logger
}

// New creates a Service. A nil logger discards.
func New(store *docstore.Store, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{store: store, logger: logger}
}

func itemsCollection(userID string) string {
	return "inventory/" + userID
}

func suggestionsCollection(userID string) string {
	return "suggestions/" + userID
}

// SuggestionKey builds the dedupe key for a recommended product.
// Case differences in brand, product name, or color code never create
// separate suggestion documents.
func SuggestionKey(brand, productName, colorCode string) string {
	return strings.ToLower(brand) + "::" + strings.ToLower(productName) + "::" + strings.ToLower(colorCode)
}

func validateItem(item NewItem) error {
	if strings.TrimSpace(item.Brand) == "" || strings.TrimSpace(item.ProductName) == "" {
		return apierror.New(apierror.KindInvalidArgument, "brand and product_name are required")
	}
	return nil
}

// ListItems returns a user's inventory, oldest first.
func (s *Service) ListItems(ctx context.Context, userID string) ([]Item, error) {
	docs, err := s.store.List(ctx, itemsCollection(userID), docstore.ListOptions{})
	if err != nil {
		return nil, err
	}
	items := make([]Item, 0, len(docs))
	for _, doc := range docs {
		var item Item
		if err := doc.Decode(&item); err != nil {
			return nil, err
		}
		item.ID = doc.ID
		item.CreatedAt = doc.CreatedAt
		item.UpdatedAt = doc.UpdatedAt
		items = append(items, item)
	}
	return items, nil
}

// CreateItem adds a product to the user's inventory.
func (s *Service) CreateItem(ctx context.Context, userID string, newItem NewItem) (Item, error) {
	if err := validateItem(newItem); err != nil {
		return Item{}, err
	}

	item := Item{
		ID:          uuid.NewString(),
		Brand:       newItem.Brand,
		ProductName: newItem.ProductName,
		Category:    newItem.Category,
		ColorCode:   newItem.ColorCode,
		ImageURL:    newItem.ImageURL,
		Notes:       newItem.Notes,
	}
	err := s.store.RunTransaction(ctx, func(tx *docstore.Tx) error {
		item.CreatedAt = tx.Now()
		item.UpdatedAt = tx.Now()
		return tx.Put(itemsCollection(userID), item.ID, item)
	})
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

// UpdateItem replaces an existing item's fields. NotFound when the
// item does not exist in this user's inventory.
func (s *Service) UpdateItem(ctx context.Context, userID, itemID string, newItem NewItem) (Item, error) {
	if err := validateItem(newItem); err != nil {
		return Item{}, err
	}

	var item Item
	err := s.store.RunTransaction(ctx, func(tx *docstore.Tx) error {
		doc, err := tx.Get(itemsCollection(userID), itemID, &item)
		if err != nil {
			if apierror.KindOf(err) == apierror.KindNotFound {
				return apierror.New(apierror.KindNotFound, "inventory item not found")
			}
			return err
		}

		item = Item{
			ID:          itemID,
			Brand:       newItem.Brand,
			ProductName: newItem.ProductName,
			Category:    newItem.Category,
			ColorCode:   newItem.ColorCode,
			ImageURL:    newItem.ImageURL,
			Notes:       newItem.Notes,
			CreatedAt:   doc.CreatedAt,
			UpdatedAt:   tx.Now(),
		}
		return tx.Put(itemsCollection(userID), itemID, item)
	})
	if err != nil {
		return Item{}, err
	}
	return item, nil
}

// DeleteItem removes an item. NotFound when absent.
func (s *Service) DeleteItem(ctx context.Context, userID, itemID string) error {
	return s.store.RunTransaction(ctx, func(tx *docstore.Tx) error {
		exists, err := tx.Exists(itemsCollection(userID), itemID)
		if err != nil {
			return err
		}
		if !exists {
			return apierror.New(apierror.KindNotFound, "inventory item not found")
		}
		return tx.Delete(itemsCollection(userID), itemID)
	})
}

// ListSuggestions returns a user's recorded suggestions, oldest
// first.
func (s *Service) ListSuggestions(ctx context.Context, userID string) ([]Suggestion, error) {
	docs, err := s.store.List(ctx, suggestionsCollection(userID), docstore.ListOptions{})
	if err != nil {
		return nil, err
	}
	suggestions := make([]Suggestion, 0, len(docs))
	for _, doc := range docs {
		var suggestion Suggestion
		if err := doc.Decode(&suggestion); err != nil {
			return nil, err
		}
		suggestion.CreatedAt = doc.CreatedAt
		suggestion.UpdatedAt = doc.UpdatedAt
		suggestions = append(suggestions, suggestion)
	}
	return suggestions, nil
}

// RecordSuggestion stores a recommendation. A product already
// suggested to this user bumps its recommendation_count and appends a
// history entry in the same transaction.
func (s *Service) RecordSuggestion(ctx context.Context, userID string, newSuggestion NewSuggestion) (Suggestion, error) {
	if strings.TrimSpace(newSuggestion.Brand) == "" || strings.TrimSpace(newSuggestion.ProductName) == "" {
		return Suggestion{}, apierror.New(apierror.KindInvalidArgument, "brand and product_name are required")
	}

	key := SuggestionKey(newSuggestion.Brand, newSuggestion.ProductName, newSuggestion.ColorCode)

	var suggestion Suggestion
	err := s.store.RunTransaction(ctx, func(tx *docstore.Tx) error {
		_, err := tx.Get(suggestionsCollection(userID), key, &suggestion)
		switch {
		case err == nil:
		case apierror.KindOf(err) == apierror.KindNotFound:
			suggestion = Suggestion{
				Key:         key,
				Brand:       newSuggestion.Brand,
				ProductName: newSuggestion.ProductName,
				ColorCode:   newSuggestion.ColorCode,
				CreatedAt:   tx.Now(),
			}
		default:
			return err
		}

		if newSuggestion.Reason != "" {
			suggestion.Reason = newSuggestion.Reason
		}
		suggestion.RecommendationCount++
		suggestion.History = append(suggestion.History, SuggestionEvent{
			RecommendedAt: tx.Now(),
			Source:        newSuggestion.Source,
		})
		suggestion.UpdatedAt = tx.Now()
		return tx.Put(suggestionsCollection(userID), key, suggestion)
	})
	if err != nil {
		return Suggestion{}, err
	}
	return suggestion, nil
}
