package service

import (
	"context"

	"github.com/sirupsen/logrus"

	"socialnet/internal/models"
)

type Notifications struct{ *deps }

func (s *Notifications) List(ctx context.Context, caller, userID string) (*models.NotificationList, error) {
	if err := owns(caller, userID); err != nil {
		return nil, err
	}
	notes, err := s.st.NotificationsFor(ctx, userID)
	if err != nil {
		return nil, s.fail("notifications.list", err)
	}
	out := &models.NotificationList{Notifications: notes}
	for _, n := range notes {
		if !n.Read {
			out.Unread++
		}
	}
	return out, nil
}

func (s *Notifications) MarkAllRead(ctx context.Context, caller, userID string) error {
	if err := owns(caller, userID); err != nil {
		return err
	}
	n, err := s.st.MarkAllNotificationsRead(ctx, userID)
	if err != nil {
		return s.fail("notifications.mark_all_read", err)
	}
	s.log.WithFields(logrus.Fields{"user_id": userID, "count": n}).Debug("notifications marked read")
	return nil
}
