// Copyright 2026 The Alcheme Authors
// SPDX-License-Identifier: Apache-2.0

package social

import (
	"context"

	"github.com/google/uuid"

	"github.com/alcheme/alcheme/lib/apierror"
	"github.com/alcheme/alcheme/lib/docstore"
)

// CreatePost stores a new post and increments the author's post_count
// in one transaction.
func (s *Service) CreatePost(ctx context.Context, newPost NewPost) (Post, error) {
	var post Post
	err := s.store.RunTransaction(ctx, func(tx *docstore.Tx) error {
		var err error
		post, err = s.PublishPost(tx, newPost)
		return err
	})
	if err != nil {
		return Post{}, err
	}
	return post, nil
}

// PublishPost writes a post and increments the author's post_count
// within the caller's transaction. Callers that also mutate other
// documents (recipe publishing) get the post and their own writes
// atomically.
func (s *Service) PublishPost(tx *docstore.Tx, newPost NewPost) (Post, error) {
	if err := validateNewPost(&newPost); err != nil {
		return Post{}, err
	}

	post := Post{
		ID:                uuid.NewString(),
		UserID:            newPost.UserID,
		AuthorDisplayName: newPost.AuthorDisplayName,
		AuthorPhotoURL:    newPost.AuthorPhotoURL,
		RecipeID:          newPost.RecipeID,
		RecipeName:        newPost.RecipeName,
		PreviewImageURL:   newPost.PreviewImageURL,
		StepsSummary:      newPost.StepsSummary,
		CharacterTheme:    newPost.CharacterTheme,
		Visibility:        newPost.Visibility,
		Tags:              newPost.Tags,
		CreatedAt:         tx.Now(),
		UpdatedAt:         tx.Now(),
	}
	if err := tx.Put(postsCollection, post.ID, post); err != nil {
		return Post{}, err
	}

	stats, err := statsOrZero(tx, post.UserID)
	if err != nil {
		return Post{}, err
	}
	stats.PostCount++
	if err := tx.Put(statsCollection, post.UserID, stats); err != nil {
		return Post{}, err
	}
	return post, nil
}

// UnpublishPost removes a post and floors the author's post_count
// within the caller's transaction. A post that is already gone is a
// no-op, so cleanup after an out-of-band deletion still succeeds.
func (s *Service) UnpublishPost(tx *docstore.Tx, postID, userID string) error {
	var post Post
	if _, err := tx.Get(postsCollection, postID, &post); err != nil {
		if apierror.KindOf(err) == apierror.KindNotFound {
			return nil
		}
		return err
	}
	if post.UserID != userID {
		return apierror.New(apierror.KindForbidden, "only the author can remove a post")
	}

	if err := tx.Delete(postsCollection, postID); err != nil {
		return err
	}
	stats, err := statsOrZero(tx, post.UserID)
	if err != nil {
		return err
	}
	stats.PostCount = s.floorDecrement(stats.PostCount, "post_count", "user_id", post.UserID)
	return tx.Put(statsCollection, post.UserID, stats)
}

// DeletePost removes a post and decrements the author's post_count.
// Only the author may delete; anyone else gets Forbidden. Like and
// comment documents under the post are left behind, unreachable once
// the post is gone.
func (s *Service) DeletePost(ctx context.Context, postID, userID string) error {
	return s.store.RunTransaction(ctx, func(tx *docstore.Tx) error {
		var post Post
		if _, err := tx.Get(postsCollection, postID, &post); err != nil {
			if apierror.KindOf(err) == apierror.KindNotFound {
				return apierror.New(apierror.KindNotFound, "post not found")
			}
			return err
		}
		if post.UserID != userID {
			return apierror.New(apierror.KindForbidden, "only the author can delete a post")
		}

		if err := tx.Delete(postsCollection, postID); err != nil {
			return err
		}

		stats, err := statsOrZero(tx, post.UserID)
		if err != nil {
			return err
		}
		stats.PostCount = s.floorDecrement(stats.PostCount, "post_count", "user_id", post.UserID)
		return tx.Put(statsCollection, post.UserID, stats)
	})
}

// GetPost returns one post annotated with the viewer's like state.
// Private posts are visible only to their author and surface as
// NotFound to anyone else.
func (s *Service) GetPost(ctx context.Context, postID, viewerID string) (FeedItem, error) {
	var post Post
	doc, err := s.store.Get(ctx, postsCollection, postID, &post)
	if err != nil {
		if apierror.KindOf(err) == apierror.KindNotFound {
			return FeedItem{}, apierror.New(apierror.KindNotFound, "post not found")
		}
		return FeedItem{}, err
	}
	post.CreatedAt = doc.CreatedAt
	post.UpdatedAt = doc.UpdatedAt

	if post.Visibility == VisibilityPrivate && post.UserID != viewerID {
		return FeedItem{}, apierror.New(apierror.KindNotFound, "post not found")
	}

	liked, err := s.store.Exists(ctx, likesCollection(postID), viewerID)
	if err != nil {
		return FeedItem{}, err
	}
	return FeedItem{Post: post, IsLiked: liked}, nil
}

// ListFeed returns a page of posts, newest first, annotated with the
// viewer's like state. Private posts appear only in their author's
// own feed.
func (s *Service) ListFeed(ctx context.Context, viewerID string, opts FeedOptions) (FeedPage, error) {
	limit := opts.Limit
	if limit <= 0 {
		limit = defaultFeedLimit
	}
	if limit > maxFeedLimit {
		limit = maxFeedLimit
	}

	cursor, err := decodeCursor(opts.Cursor)
	if err != nil {
		return FeedPage{}, err
	}

	var followed map[string]bool
	if opts.FollowingOnly {
		ids, err := s.Following(ctx, viewerID)
		if err != nil {
			return FeedPage{}, err
		}
		if len(ids) == 0 {
			return FeedPage{}, nil
		}
		followed = make(map[string]bool, len(ids))
		for _, id := range ids {
			followed[id] = true
		}
	}

	// Fetch limit+1 matching posts to learn whether a next page
	// exists. Visibility and follow filtering can discard rows, so
	// keep fetching batches until the quota fills or the collection
	// runs out.
	var matched []docstore.Doc
	var posts []Post
	batchAfter := cursor
	for len(posts) <= limit {
		batch, err := s.store.List(ctx, postsCollection, docstore.ListOptions{
			Descending: true,
			Limit:      limit + 1,
			After:      batchAfter,
		})
		if err != nil {
			return FeedPage{}, err
		}
		if len(batch) == 0 {
			break
		}

		for _, doc := range batch {
			var post Post
			if err := doc.Decode(&post); err != nil {
				return FeedPage{}, err
			}
			post.CreatedAt = doc.CreatedAt
			post.UpdatedAt = doc.UpdatedAt

			if post.Visibility == VisibilityPrivate && post.UserID != viewerID {
				continue
			}
			if followed != nil && !followed[post.UserID] {
				continue
			}
			matched = append(matched, doc)
			posts = append(posts, post)
			if len(posts) > limit {
				break
			}
		}

		if len(batch) <= limit {
			break
		}
		last := batch[len(batch)-1]
		batchAfter = &docstore.Cursor{CreatedAt: last.CreatedAt, ID: last.ID}
	}

	page := FeedPage{}
	if len(posts) > limit {
		posts = posts[:limit]
		matched = matched[:limit]
		last := matched[len(matched)-1]
		page.NextCursor = encodeCursor(docstore.Cursor{CreatedAt: last.CreatedAt, ID: last.ID})
	}

	for _, post := range posts {
		liked := false
		if viewerID != "" {
			liked, err = s.store.Exists(ctx, likesCollection(post.ID), viewerID)
			if err != nil {
				return FeedPage{}, err
			}
		}
		page.Items = append(page.Items, FeedItem{Post: post, IsLiked: liked})
	}
	return page, nil
}
