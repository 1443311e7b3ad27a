// Package store is the relational persistence layer. Services depend on the
// Store interface; Postgres is the production implementation and memstore
// the in-process one.
package store

import (
	"context"
	"errors"
	"time"

	"socialnet/internal/models"
)

var (
	ErrNotFound = errors.New("store: not found")
	// ErrConflict reports a unique constraint violation.
	ErrConflict = errors.New("store: conflict")
	// ErrMissingRef reports a write that references a row that does not exist.
	ErrMissingRef = errors.New("store: referenced row missing")
)

// Queries is every statement the services issue. Deleting a post also
// removes its likes, comments and reports.
type Queries interface {
	CreateUser(ctx context.Context, u *models.User) error
	UserByID(ctx context.Context, id string) (*models.User, error)
	UserByEmail(ctx context.Context, email string) (*models.User, error)
	UpdateUserName(ctx context.Context, id string, name models.Name) error
	UpdateUserPassword(ctx context.Context, id, hash string) error
	SetUserOnline(ctx context.Context, id string, online bool) error
	IncrementProfileViews(ctx context.Context, id string) error
	DeleteUser(ctx context.Context, id string) error
	SearchUsers(ctx context.Context, q string) ([]models.UserSummary, error)
	UsersByCountry(ctx context.Context, country, excludeID string, limit int) ([]models.UserSummary, error)

	FollowExists(ctx context.Context, followerID, followeeID string) (bool, error)
	CreateFollow(ctx context.Context, followerID, followeeID string) error
	DeleteFollow(ctx context.Context, followerID, followeeID string) (bool, error)
	// DeleteFollowsOf removes every edge where userID is follower or followee.
	DeleteFollowsOf(ctx context.Context, userID string) error
	Followers(ctx context.Context, userID string) ([]models.UserSummary, error)
	Followees(ctx context.Context, userID string) ([]models.UserSummary, error)

	CreatePost(ctx context.Context, p *models.Post) error
	PostByID(ctx context.Context, id string) (*models.Post, error)
	PostsByAuthor(ctx context.Context, authorID string) ([]models.Post, error)
	// FeedPosts returns up to perAuthor random posts of every followee.
	FeedPosts(ctx context.Context, followerID string, perAuthor int) ([]models.Post, error)
	SearchPosts(ctx context.Context, q string) ([]models.Post, error)
	AdjustPostCounters(ctx context.Context, postID string, likes, comments int) error
	DeletePost(ctx context.Context, id string) error
	DeletePostsByAuthor(ctx context.Context, authorID string) error

	LikeExists(ctx context.Context, postID, likerID string) (bool, error)
	CreateLike(ctx context.Context, postID, likerID string) error
	DeleteLike(ctx context.Context, postID, likerID string) (bool, error)
	CountLikes(ctx context.Context, postID string) (int, error)
	// DeleteLikesBy removes the user's likes and decrements the counters of
	// the affected posts.
	DeleteLikesBy(ctx context.Context, likerID string) error

	CreateComment(ctx context.Context, c *models.Comment) error
	CommentsByPost(ctx context.Context, postID string) ([]models.CommentView, error)
	// DeleteCommentsBy removes the user's comments and decrements the
	// counters of the affected posts.
	DeleteCommentsBy(ctx context.Context, authorID string) error

	CreateNotification(ctx context.Context, n *models.Notification) error
	NotificationsFor(ctx context.Context, userID string) ([]models.Notification, error)
	MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error)
	DeleteNotificationsFor(ctx context.Context, userID string) error

	CreateReport(ctx context.Context, r models.Report) error
	DeleteReportsBy(ctx context.Context, reporterID string) error

	SaveToken(ctx context.Context, token, userID string, expiresAt time.Time) error
	TokenExists(ctx context.Context, token string) (bool, error)
	DeleteToken(ctx context.Context, token string) error
	DeleteTokensFor(ctx context.Context, userID string) error
}

// Store runs Queries directly or inside a transaction. WithTx commits when
// fn returns nil and rolls back otherwise.
type Store interface {
	Queries
	WithTx(ctx context.Context, fn func(q Queries) error) error
}
