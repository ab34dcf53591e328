// Copyright 2026 The Alcheme Authors
// SPDX-License-Identifier: Apache-2.0

package social

import (
	"encoding/base64"
	"strconv"
	"strings"
	"time"

	"github.com/alcheme/alcheme/lib/apierror"
	"github.com/alcheme/alcheme/lib/docstore"
)

// Visibility values for posts.
const (
	VisibilityPublic  = "public"
	VisibilityPrivate = "private"
)

// Comment types. A reaction is a stamp selected from a fixed set; a
// comment carries free text.
const (
	CommentTypeComment  = "comment"
	CommentTypeReaction = "reaction"
)

// reactionKeys is the set of valid reaction stamps.
var reactionKeys = map[string]bool{
	"suteki":  true,
	"manetai": true,
	"sanko":   true,
}

// Post is a shared recipe post. LikeCount and CommentCount are
// maintained transactionally with their edge documents and are never
// negative.
type Post struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	AuthorDisplayName string    `json:"author_display_name"`
	AuthorPhotoURL    string    `json:"author_photo_url,omitempty"`
	RecipeID          string    `json:"recipe_id,omitempty"`
	RecipeName        string    `json:"recipe_name,omitempty"`
	PreviewImageURL   string    `json:"preview_image_url,omitempty"`
	StepsSummary      []string  `json:"steps_summary,omitempty"`
	CharacterTheme    string    `json:"character_theme,omitempty"`
	Visibility        string    `json:"visibility"`
	Tags              []string  `json:"tags,omitempty"`
	LikeCount         int64     `json:"like_count"`
	CommentCount      int64     `json:"comment_count"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// NewPost is the caller-supplied part of a post.
type NewPost struct {
	UserID            string
	AuthorDisplayName string
	AuthorPhotoURL    string
	RecipeID          string
	RecipeName        string
	PreviewImageURL   string
	StepsSummary      []string
	CharacterTheme    string
	Visibility        string
	Tags              []string
}

// Edge is an existence-only graph edge (a like, or one direction of a
// follow).
type Edge struct {
	CreatedAt time.Time `json:"created_at"`
}

// UserStats holds a user's derived counters. All fields are
// non-negative.
type UserStats struct {
	PostCount      int64 `json:"post_count"`
	FollowerCount  int64 `json:"follower_count"`
	FollowingCount int64 `json:"following_count"`
}

// User is a public profile document. DisplayName and PhotoURL track
// the identity provider; Bio and Preferences are set only through
// profile updates.
type User struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	PhotoURL    string         `json:"photo_url,omitempty"`
	Bio         string         `json:"bio,omitempty"`
	Preferences map[string]any `json:"preferences,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

// ProfileUpdate is a partial profile mutation. Nil fields are left
// unchanged.
type ProfileUpdate struct {
	DisplayName *string        `json:"display_name"`
	PhotoURL    *string        `json:"photo_url"`
	Bio         *string        `json:"bio"`
	Preferences map[string]any `json:"preferences"`
}

// Comment is a comment or reaction on a post.
type Comment struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	AuthorDisplayName string    `json:"author_display_name"`
	AuthorPhotoURL    string    `json:"author_photo_url,omitempty"`
	Text              string    `json:"text,omitempty"`
	Type              string    `json:"type"`
	ReactionKey       string    `json:"reaction_key,omitempty"`
	CreatedAt         time.Time `json:"created_at"`
}

// NewComment is the caller-supplied part of a comment.
type NewComment struct {
	AuthorDisplayName string
	AuthorPhotoURL    string
	Text              string
	Type              string
	ReactionKey       string
}

// LikeResult is the post-toggle like state.
type LikeResult struct {
	Liked     bool  `json:"liked"`
	LikeCount int64 `json:"like_count"`
}

// FollowResult is the post-toggle follow state. FollowerCount is the
// followee's count.
type FollowResult struct {
	Following     bool  `json:"following"`
	FollowerCount int64 `json:"follower_count"`
}

// FeedItem is a post annotated with the viewer's like state.
type FeedItem struct {
	Post
	IsLiked bool `json:"is_liked"`
}

// FeedPage is one page of the feed. NextCursor is empty on the last
// page.
type FeedPage struct {
	Items      []FeedItem `json:"items"`
	NextCursor string     `json:"next_cursor,omitempty"`
}

// FeedOptions controls feed pagination.
type FeedOptions struct {
	// Cursor resumes after a previous page's NextCursor. Empty starts
	// at the newest post.
	Cursor string

	// Limit caps the page size. Clamped to [1, 50]; zero selects the
	// default of 20.
	Limit int

	// FollowingOnly restricts the feed to authors the viewer follows.
	FollowingOnly bool
}

const (
	defaultFeedLimit = 20
	maxFeedLimit     = 50
)

// encodeCursor serializes a feed position for the client.
func encodeCursor(c docstore.Cursor) string {
	raw := strconv.FormatInt(c.CreatedAt.UnixMilli(), 10) + ":" + c.ID
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// decodeCursor parses a client-supplied cursor. Malformed cursors are
// InvalidArgument.
func decodeCursor(s string) (*docstore.Cursor, error) {
	if s == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindInvalidArgument, "malformed cursor", err)
	}
	millis, id, ok := strings.Cut(string(raw), ":")
	if !ok || id == "" {
		return nil, apierror.New(apierror.KindInvalidArgument, "malformed cursor")
	}
	unix, err := strconv.ParseInt(millis, 10, 64)
	if err != nil {
		return nil, apierror.Wrap(apierror.KindInvalidArgument, "malformed cursor", err)
	}
	return &docstore.Cursor{CreatedAt: time.UnixMilli(unix).UTC(), ID: id}, nil
}

// Collection layout. Likes and comments are per-post collections;
// follow edges are stored in both directions so either side is a
// point lookup.
const (
	postsCollection = "posts"
	statsCollection = "user_stats"
	usersCollection = "users"
)

func likesCollection(postID string) string {
	return "likes/" + postID
}

func commentsCollection(postID string) string {
	return "comments/" + postID
}

func followingCollection(userID string) string {
	return "follows/" + userID + "/following"
}

func followersCollection(userID string) string {
	return "follows/" + userID + "/followers"
}

// validateNewComment checks the type-specific required fields.
func validateNewComment(c NewComment) error {
	switch c.Type {
	case CommentTypeComment:
		if strings.TrimSpace(c.Text) == "" {
			return apierror.New(apierror.KindInvalidArgument, "comment text is required")
		}
	case CommentTypeReaction:
		if !reactionKeys[c.ReactionKey] {
			return apierror.Newf(apierror.KindInvalidArgument, "unknown reaction key %q", c.ReactionKey)
		}
	default:
		return apierror.Newf(apierror.KindInvalidArgument, "unknown comment type %q", c.Type)
	}
	return nil
}

// validateNewPost normalizes and checks a post submission.
func validateNewPost(p *NewPost) error {
	if p.UserID == "" {
		return apierror.New(apierror.KindInvalidArgument, "user id is required")
	}
	if p.Visibility == "" {
		p.Visibility = VisibilityPublic
	}
	if p.Visibility != VisibilityPublic && p.Visibility != VisibilityPrivate {
		return apierror.Newf(apierror.KindInvalidArgument, "unknown visibility %q", p.Visibility)
	}
	return nil
}
