package service

import (
	"context"

	"github.com/google/uuid"

	"socialnet/internal/models"
	"socialnet/internal/store"
)

type Comments struct{ *deps }

func (s *Comments) Create(ctx context.Context, caller, authorID, postID string, content models.CommentContent) (*models.Comment, error) {
	if err := owns(caller, authorID); err != nil {
		return nil, err
	}
	if err := checkID("postId", postID); err != nil {
		return nil, err
	}
	if err := check(content); err != nil {
		return nil, err
	}
	c := &models.Comment{
		ID:        uuid.NewString(),
		AuthorID:  authorID,
		PostID:    postID,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}
	err := s.st.WithTx(ctx, func(q store.Queries) error {
		if _, err := s.postExists(ctx, q, postID); err != nil {
			return err
		}
		if err := q.CreateComment(ctx, c); err != nil {
			return err
		}
		return q.AdjustPostCounters(ctx, postID, 0, 1)
	})
	if err != nil {
		return nil, s.fail("comments.create", err)
	}
	return c, nil
}

func (s *Comments) ForPost(ctx context.Context, postID string) ([]models.CommentView, error) {
	if err := checkID("postId", postID); err != nil {
		return nil, err
	}
	comments, err := s.st.CommentsByPost(ctx, postID)
	if err != nil {
		return nil, s.fail("comments.for_post", err)
	}
	return comments, nil
}
