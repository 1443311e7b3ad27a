// Package service implements the domain operations. Every operation takes
// the verified caller id explicitly and runs its writes in one store
// transaction.
package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"socialnet/internal/auth"
	"socialnet/internal/models"
	"socialnet/internal/store"
)

// Recorder counts notifications once their transaction has committed.
type Recorder interface {
	NotificationCreated(kind string)
}

type nopRecorder struct{}

func (nopRecorder) NotificationCreated(string) {}

const (
	kindFollow = "follow"
	kindLike   = "like"
	kindView   = "view"
)

type deps struct {
	st       store.Store
	sessions *auth.Sessions
	log      logrus.FieldLogger
	rec      Recorder
	now      func() time.Time
}

type Service struct {
	Users         *Users
	Follows       *Follows
	Posts         *Posts
	Comments      *Comments
	Notifications *Notifications
}

func New(st store.Store, sessions *auth.Sessions, log logrus.FieldLogger, rec Recorder) *Service {
	if rec == nil {
		rec = nopRecorder{}
	}
	d := &deps{st: st, sessions: sessions, log: log, rec: rec, now: time.Now}
	return &Service{
		Users:         &Users{d},
		Follows:       &Follows{d},
		Posts:         &Posts{d},
		Comments:      &Comments{d},
		Notifications: &Notifications{d},
	}
}

// fail logs unexpected store errors and hides them behind KindStore.
// Errors already classified pass through untouched.
func (d *deps) fail(op string, err error) error {
	var se *Error
	if errors.As(err, &se) {
		return err
	}
	d.log.WithError(err).WithField("op", op).Error("store failure")
	return &Error{Kind: KindStore, Message: "internal error", Err: err}
}

func (d *deps) notify(ctx context.Context, q store.Queries, userID, text string) error {
	return q.CreateNotification(ctx, &models.Notification{
		ID:        uuid.NewString(),
		UserID:    userID,
		Text:      text,
		CreatedAt: d.now().UTC(),
	})
}

func owns(caller, id string) error {
	if caller == "" || caller != id {
		return forbidden()
	}
	return nil
}

func (d *deps) userExists(ctx context.Context, q store.Queries, id string) (*models.User, error) {
	u, err := q.UserByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("user")
	}
	return u, err
}

func (d *deps) postExists(ctx context.Context, q store.Queries, id string) (*models.Post, error) {
	p, err := q.PostByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("post")
	}
	return p, err
}
