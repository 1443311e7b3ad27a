package service

import (
	"context"
	"errors"

	"socialnet/internal/models"
	"socialnet/internal/store"
)

type Follows struct{ *deps }

func (s *Follows) Follow(ctx context.Context, caller, followerID, followeeID string) error {
	if err := owns(caller, followerID); err != nil {
		return err
	}
	if err := checkID("followeeId", followeeID); err != nil {
		return err
	}
	if followerID == followeeID {
		return invalid("cannot follow yourself")
	}
	err := s.st.WithTx(ctx, func(q store.Queries) error {
		if _, err := s.userExists(ctx, q, followeeID); err != nil {
			return err
		}
		exists, err := q.FollowExists(ctx, followerID, followeeID)
		if err != nil {
			return err
		}
		if exists {
			return conflict("already following")
		}
		if err := q.CreateFollow(ctx, followerID, followeeID); err != nil {
			switch {
			case errors.Is(err, store.ErrConflict):
				return conflict("already following")
			case errors.Is(err, store.ErrMissingRef):
				return notFound("user")
			}
			return err
		}
		return s.notify(ctx, q, followeeID, "Someone followed you.")
	})
	if err != nil {
		return s.fail("follows.follow", err)
	}
	s.rec.NotificationCreated(kindFollow)
	return nil
}

// Unfollow keeps the notification created by the matching Follow.
func (s *Follows) Unfollow(ctx context.Context, caller, followerID, followeeID string) error {
	if err := owns(caller, followerID); err != nil {
		return err
	}
	if err := checkID("followeeId", followeeID); err != nil {
		return err
	}
	if _, err := s.st.DeleteFollow(ctx, followerID, followeeID); err != nil {
		return s.fail("follows.unfollow", err)
	}
	return nil
}

func (s *Follows) Followers(ctx context.Context, userID string) ([]models.UserSummary, error) {
	if err := checkID("userId", userID); err != nil {
		return nil, err
	}
	users, err := s.st.Followers(ctx, userID)
	if err != nil {
		return nil, s.fail("follows.followers", err)
	}
	return users, nil
}

func (s *Follows) Followees(ctx context.Context, userID string) ([]models.UserSummary, error) {
	if err := checkID("userId", userID); err != nil {
		return nil, err
	}
	users, err := s.st.Followees(ctx, userID)
	if err != nil {
		return nil, s.fail("follows.followees", err)
	}
	return users, nil
}
