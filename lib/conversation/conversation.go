// Copyright 2026 The Alcheme Authors
// SPDX-License-Identifier: Apache-2.0

// Package conversation stores chat history: per-user conversation
// documents with a message subcollection each. The chat stream itself
// is relayed live; clients persist the turns here so history survives
// reloads.
package conversation

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/alcheme/alcheme/lib/apierror"
	"github.com/alcheme/alcheme/lib/docstore"
)

// Message roles.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// listLimit caps how many conversations List returns.
const listLimit = 50

// Conversation is a chat thread. MessageCount moves with message
// appends in the same transaction.
type Conversation struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	MessageCount int64     `json:"message_count"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Message is one chat turn. Data carries structured agent output
// (a recipe, a product list) opaque to this service.
type Message struct {
	ID              string          `json:"id"`
	Role            string          `json:"role"`
	Content         string          `json:"content"`
	ImageURL        string          `json:"image_url,omitempty"`
	PreviewImageURL string          `json:"preview_image_url,omitempty"`
	AgentUsed       string          `json:"agent_used,omitempty"`
	Data            json.RawMessage `json:"data,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// NewMessage is the caller-supplied part of a message.
type NewMessage struct {
	Role            string          `json:"role"`
	Content         string          `json:"content"`
	ImageURL        string          `json:"image_url"`
	PreviewImageURL string          `json:"preview_image_url"`
	AgentUsed       string          `json:"agent_used"`
	Data            json.RawMessage `json:"data"`
}

// Service implements conversation storage. Safe for concurrent use.
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

func conversationsCollection(userID string) string {
	return "conversations/" + userID
}

func messagesCollection(userID, conversationID string) string {
	return "conversations/" + userID + "/" + conversationID + "/messages"
}

// List returns the user's conversations, most recently updated first,
// capped at fifty.
func (s *Service) List(ctx context.Context, userID string) ([]Conversation, error) {
	docs, err := s.store.List(ctx, conversationsCollection(userID), docstore.ListOptions{})
	if err != nil {
		return nil, err
	}

	conversations := make([]Conversation, 0, len(docs))
	for _, doc := range docs {
		conv, err := decodeConversation(doc)
		if err != nil {
			return nil, err
		}
		conversations = append(conversations, conv)
	}

	// Activity ordering, not creation ordering: appending a message
	// moves the conversation to the top.
	sort.Slice(conversations, func(i, j int) bool {
		return conversations[i].UpdatedAt.After(conversations[j].UpdatedAt)
	})
	if len(conversations) > listLimit {
		conversations = conversations[:listLimit]
	}
	return conversations, nil
}

// Create starts a new conversation.
func (s *Service) Create(ctx context.Context, userID, title string) (Conversation, error) {
	if title == "" {
		title = "New chat"
	}

	conv := Conversation{ID: uuid.NewString(), Title: title}
	err := s.store.RunTransaction(ctx, func(tx *docstore.Tx) error {
		conv.CreatedAt = tx.Now()
		conv.UpdatedAt = tx.Now()
		return tx.Put(conversationsCollection(userID), conv.ID, conv)
	})
	if err != nil {
		return Conversation{}, err
	}
	return conv, nil
}

// Get returns a conversation and its messages, oldest message first.
func (s *Service) Get(ctx context.Context, userID, conversationID string) (Conversation, []Message, error) {
	doc, err := s.store.Get(ctx, conversationsCollection(userID), conversationID, nil)
	if err != nil {
		if apierror.KindOf(err) == apierror.KindNotFound {
			return Conversation{}, nil, apierror.New(apierror.KindNotFound, "conversation not found")
		}
		return Conversation{}, nil, err
	}
	conv, err := decodeConversation(doc)
	if err != nil {
		return Conversation{}, nil, err
	}

	docs, err := s.store.List(ctx, messagesCollection(userID, conversationID), docstore.ListOptions{})
	if err != nil {
		return Conversation{}, nil, err
	}
	messages := make([]Message, 0, len(docs))
	for _, doc := range docs {
		var message Message
		if err := doc.Decode(&message); err != nil {
			return Conversation{}, nil, err
		}
		message.ID = doc.ID
		message.CreatedAt = doc.CreatedAt
		messages = append(messages, message)
	}
	return conv, messages, nil
}

// Rename changes a conversation's title.
func (s *Service) Rename(ctx context.Context, userID, conversationID, title string) (Conversation, error) {
	if title == "" {
		return Conversation{}, apierror.New(apierror.KindInvalidArgument, "title is required")
	}

	var conv Conversation
	err := s.store.RunTransaction(ctx, func(tx *docstore.Tx) error {
		if _, err := tx.Get(conversationsCollection(userID), conversationID, &conv); err != nil {
			if apierror.KindOf(err) == apierror.KindNotFound {
				return apierror.New(apierror.KindNotFound, "conversation not found")
			}
			return err
		}
		conv.Title = title
		conv.UpdatedAt = tx.Now()
		return tx.Put(conversationsCollection(userID), conversationID, conv)
	})
	if err != nil {
		return Conversation{}, err
	}
	return conv, nil
}

// Delete removes a conversation and all its messages.
func (s *Service) Delete(ctx context.Context, userID, conversationID string) error {
	return s.store.RunTransaction(ctx, func(tx *docstore.Tx) error {
		exists, err := tx.Exists(conversationsCollection(userID), conversationID)
		if err != nil {
			return err
		}
		if !exists {
			return apierror.New(apierror.KindNotFound, "conversation not found")
		}

		messages, err := tx.List(messagesCollection(userID, conversationID), docstore.ListOptions{})
		if err != nil {
			return err
		}
		for _, message := range messages {
			if err := tx.Delete(message.Collection, message.ID); err != nil {
				return err
			}
		}
		return tx.Delete(conversationsCollection(userID), conversationID)
	})
}

// AppendMessage stores one chat turn and bumps the conversation's
// message_count and activity time in the same transaction.
func (s *Service) AppendMessage(ctx context.Context, userID, conversationID string, newMessage NewMessage) (Message, error) {
	if newMessage.Role != RoleUser && newMessage.Role != RoleAssistant {
		return Message{}, apierror.Newf(apierror.KindInvalidArgument, "unknown role %q", newMessage.Role)
	}

	message := Message{
		ID:              uuid.NewString(),
		Role:            newMessage.Role,
		Content:         newMessage.Content,
		ImageURL:        newMessage.ImageURL,
		PreviewImageURL: newMessage.PreviewImageURL,
		AgentUsed:       newMessage.AgentUsed,
		Data:            newMessage.Data,
	}
	err := s.store.RunTransaction(ctx, func(tx *docstore.Tx) error {
		var conv Conversation
		if _, err := tx.Get(conversationsCollection(userID), conversationID, &conv); err != nil {
			if apierror.KindOf(err) == apierror.KindNotFound {
				return apierror.New(apierror.KindNotFound, "conversation not found")
			}
			return err
		}

		message.CreatedAt = tx.Now()
		if err := tx.Put(messagesCollection(userID, conversationID), message.ID, message); err != nil {
			return err
		}

		conv.MessageCount++
		conv.UpdatedAt = tx.Now()
		return tx.Put(conversationsCollection(userID), conversationID, conv)
	})
	if err != nil {
		return Message{}, err
	}
	return message, nil
}

// decodeConversation rebuilds a Conversation from its stored document.
func decodeConversation(doc docstore.Doc) (Conversation, error) {
	var conv Conversation
	if err := doc.Decode(&conv); err != nil {
		return Conversation{}, err
	}
	conv.ID = doc.ID
	conv.CreatedAt = doc.CreatedAt
	return conv, nil
}
