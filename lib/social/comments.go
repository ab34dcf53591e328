// Copyright 2026 The Alcheme Authors
// SPDX-License-Identifier: Apache-2.0

package social

import (
	"context"

	"github.com/google/uuid"

	"github.com/alcheme/alcheme/lib/apierror"
	"github.com/alcheme/alcheme/lib/docstore"
)

// AddComment appends a comment or reaction to a post and increments
// the post's comment_count in one transaction. Returns NotFound when
// the post does not exist.
func (s *Service) AddComment(ctx context.Context, postID, userID string, newComment NewComment) (Comment, error) {
	if postID == "" || userID == "" {
		return Comment{}, apierror.New(apierror.KindInvalidArgument, "post id and user id are required")
	}
	if err := validateNewComment(newComment); err != nil {
		return Comment{}, err
	}

	comment := Comment{
		ID:                uuid.NewString(),
		UserID:            userID,
		AuthorDisplayName: newComment.AuthorDisplayName,
		AuthorPhotoURL:    newComment.AuthorPhotoURL,
		Text:              newComment.Text,
		Type:              newComment.Type,
		ReactionKey:       newComment.ReactionKey,
	}

	err := s.store.RunTransaction(ctx, func(tx *docstore.Tx) error {
		var post Post
		if _, err := tx.Get(postsCollection, postID, &post); err != nil {
			if apierror.KindOf(err) == apierror.KindNotFound {
				return apierror.New(apierror.KindNotFound, "post not found")
			}
			return err
		}

		comment.CreatedAt = tx.Now()
		if err := tx.Put(commentsCollection(postID), comment.ID, comment); err != nil {
			return err
		}

		post.CommentCount++
		return tx.Put(postsCollection, postID, post)
	})
	if err != nil {
		return Comment{}, err
	}
	return comment, nil
}

// ListComments returns a post's comments, oldest first. Returns
// NotFound when the post does not exist.
func (s *Service) ListComments(ctx context.Context, postID string) ([]Comment, error) {
	exists, err := s.store.Exists(ctx, postsCollection, postID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, apierror.New(apierror.KindNotFound, "post not found")
	}

	docs, err := s.store.List(ctx, commentsCollection(postID), docstore.ListOptions{})
	if err != nil {
		return nil, err
	}

	comments := make([]Comment, 0, len(docs))
	for _, doc := range docs {
		var comment Comment
		if err := doc.Decode(&comment); err != nil {
			return nil, err
		}
		comment.ID = doc.ID
		comment.CreatedAt = doc.CreatedAt
		comments = append(comments, comment)
	}
	return comments, nil
}
