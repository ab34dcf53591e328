// Copyright 2026 The Alcheme Authors
// SPDX-License-Identifier: Apache-2.0

package social

import (
	"context"
	"log/slog"

	"github.com/alcheme/alcheme/lib/apierror"
	"github.com/alcheme/alcheme/lib/docstore"
)

// Service implements the social graph over the document store. Safe
// for concurrent use.
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

// ToggleLike flips userID's like on a post and returns the resulting
// state. The edge and the post's like_count change in one
// transaction. Returns NotFound when the post does not exist.
func (s *Service) ToggleLike(ctx context.Context, postID, userID string) (LikeResult, error) {
	if postID == "" || userID == "" {
		return LikeResult{}, apierror.New(apierror.KindInvalidArgument, "post id and user id are required")
	}

	var result LikeResult
	err := s.store.RunTransaction(ctx, func(tx *docstore.Tx) error {
		var post Post
		if _, err := tx.Get(postsCollection, postID, &post); err != nil {
			if apierror.KindOf(err) == apierror.KindNotFound {
				return apierror.New(apierror.KindNotFound, "post not found")
			}
			return err
		}

		liked, err := tx.Exists(likesCollection(postID), userID)
		if err != nil {
			return err
		}

		if liked {
			if err := tx.Delete(likesCollection(postID), userID); err != nil {
				return err
			}
			post.LikeCount = s.floorDecrement(post.LikeCount, "like_count", "post_id", postID)
		} else {
			if err := tx.Put(likesCollection(postID), userID, Edge{CreatedAt: tx.Now()}); err != nil {
				return err
			}
			post.LikeCount++
		}

		result = LikeResult{Liked: !liked, LikeCount: post.LikeCount}
		return tx.Put(postsCollection, postID, post)
	})
	if err != nil {
		return LikeResult{}, err
	}
	return result, nil
}

// ToggleFollow flips followerID's follow of followeeID and returns
// the resulting state. Both edge directions and both users' stats
// change in one transaction. A self-follow is rejected before any
// read.
func (s *Service) ToggleFollow(ctx context.Context, followerID, followeeID string) (FollowResult, error) {
	if followerID == "" || followeeID == "" {
		return FollowResult{}, apierror.New(apierror.KindInvalidArgument, "follower and followee ids are required")
	}
	if followerID == followeeID {
		return FollowResult{}, apierror.New(apierror.KindInvalidArgument, "cannot follow yourself")
	}

	var result FollowResult
	err := s.store.RunTransaction(ctx, func(tx *docstore.Tx) error {
		following, err := tx.Exists(followingCollection(followerID), followeeID)
		if err != nil {
			return err
		}

		followerStats, err := statsOrZero(tx, followerID)
		if err != nil {
			return err
		}
		followeeStats, err := statsOrZero(tx, followeeID)
		if err != nil {
			return err
		}

		if following {
			if err := tx.Delete(followingCollection(followerID), followeeID); err != nil {
				return err
			}
			if err := tx.Delete(followersCollection(followeeID), followerID); err != nil {
				return err
			}
			followerStats.FollowingCount = s.floorDecrement(followerStats.FollowingCount, "following_count", "user_id", followerID)
			followeeStats.FollowerCount = s.floorDecrement(followeeStats.FollowerCount, "follower_count", "user_id", followeeID)
		} else {
			edge := Edge{CreatedAt: tx.Now()}
			if err := tx.Put(followingCollection(followerID), followeeID, edge); err != nil {
				return err
			}
			if err := tx.Put(followersCollection(followeeID), followerID, edge); err != nil {
				return err
			}
			followerStats.FollowingCount++
			followeeStats.FollowerCount++
		}

		if err := tx.Put(statsCollection, followerID, followerStats); err != nil {
			return err
		}
		if err := tx.Put(statsCollection, followeeID, followeeStats); err != nil {
			return err
		}

		result = FollowResult{Following: !following, FollowerCount: followeeStats.FollowerCount}
		return nil
	})
	if err != nil {
		return FollowResult{}, err
	}
	return result, nil
}

// Stats returns a user's counters, zero-valued when the user has no
// stats document yet.
func (s *Service) Stats(ctx context.Context, userID string) (UserStats, error) {
	var stats UserStats
	_, err := s.store.Get(ctx, statsCollection, userID, &stats)
	if err != nil {
		if apierror.KindOf(err) == apierror.KindNotFound {
			return UserStats{}, nil
		}
		return UserStats{}, err
	}
	return stats, nil
}

// Following returns the user ids userID follows, oldest first.
func (s *Service) Following(ctx context.Context, userID string) ([]string, error) {
	return s.edgeIDs(ctx, followingCollection(userID))
}

// Followers returns the user ids following userID, oldest first.
func (s *Service) Followers(ctx context.Context, userID string) ([]string, error) {
	return s.edgeIDs(ctx, followersCollection(userID))
}

// IsFollowing reports whether followerID follows followeeID.
func (s *Service) IsFollowing(ctx context.Context, followerID, followeeID string) (bool, error) {
	return s.store.Exists(ctx, followingCollection(followerID), followeeID)
}

// UpsertUser refreshes the identity-provider fields of a profile on
// session exchange. Bio and preferences set through profile updates
// survive the refresh.
func (s *Service) UpsertUser(ctx context.Context, user User) error {
	if user.ID == "" {
		return apierror.New(apierror.KindInvalidArgument, "user id is required")
	}
	return s.store.RunTransaction(ctx, func(tx *docstore.Tx) error {
		var existing User
		if _, err := tx.Get(usersCollection, user.ID, &existing); err != nil {
			if apierror.KindOf(err) != apierror.KindNotFound {
				return err
			}
			existing = User{ID: user.ID}
		}
		existing.DisplayName = user.DisplayName
		existing.PhotoURL = user.PhotoURL
		return tx.Put(usersCollection, user.ID, existing)
	})
}

// UpdateProfile applies a partial profile mutation and returns the
// resulting profile. A user with no profile document yet gets one.
func (s *Service) UpdateProfile(ctx context.Context, userID string, update ProfileUpdate) (User, error) {
	if userID == "" {
		return User{}, apierror.New(apierror.KindInvalidArgument, "user id is required")
	}

	var user User
	err := s.store.RunTransaction(ctx, func(tx *docstore.Tx) error {
		if _, err := tx.Get(usersCollection, userID, &user); err != nil {
			if apierror.KindOf(err) != apierror.KindNotFound {
				return err
			}
			user = User{ID: userID}
		}
		if update.DisplayName != nil {
			user.DisplayName = *update.DisplayName
		}
		if update.PhotoURL != nil {
			user.PhotoURL = *update.PhotoURL
		}
		if update.Bio != nil {
			user.Bio = *update.Bio
		}
		if update.Preferences != nil {
			user.Preferences = update.Preferences
		}
		return tx.Put(usersCollection, userID, user)
	})
	if err != nil {
		return User{}, err
	}
	return user, nil
}

// GetUser returns a public profile. NotFound when absent.
func (s *Service) GetUser(ctx context.Context, userID string) (User, error) {
	var user User
	doc, err := s.store.Get(ctx, usersCollection, userID, &user)
	if err != nil {
		if apierror.KindOf(err) == apierror.KindNotFound {
			return User{}, apierror.New(apierror.KindNotFound, "user not found")
		}
		return User{}, err
	}
	user.ID = userID
	user.CreatedAt = doc.CreatedAt
	return user, nil
}

// edgeIDs lists the document ids of an edge collection.
func (s *Service) edgeIDs(ctx context.Context, collection string) ([]string, error) {
	docs, err := s.store.List(ctx, collection, docstore.ListOptions{})
	if err != nil {
		return nil, err
	}
	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
	}
	return ids, nil
}

// floorDecrement decrements a counter, flooring at zero. A floor hit
// means the counter no longer matches its edges and is logged as an
// invariant violation.
func (s *Service) floorDecrement(current int64, counter, idKey, id string) int64 {
	if current <= 0 {
		s.logger.Warn("counter invariant violation: decrement below zero",
			"counter", counter,
			idKey, id,
			"value", current,
		)
		return 0
	}
	return current - 1
}

// statsOrZero reads a stats document inside a transaction,
// synthesizing zero values when it does not exist yet.
func statsOrZero(tx *docstore.Tx, userID string) (UserStats, error) {
	var stats UserStats
	if _, err := tx.Get(statsCollection, userID, &stats); err != nil {
		if apierror.KindOf(err) == apierror.KindNotFound {
			return UserStats{}, nil
		}
		return UserStats{}, err
	}
	return stats, nil
}
