package service

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"socialnet/internal/models"
	"socialnet/internal/store"
)

const feedPostsPerAuthor = 5

type Posts struct{ *deps }

func (s *Posts) Create(ctx context.Context, caller, authorID string, content models.PostContent) (*models.Post, error) {
	if err := owns(caller, authorID); err != nil {
		return nil, err
	}
	if err := check(content); err != nil {
		return nil, err
	}
	if content.Attachments == nil {
		content.Attachments = []string{}
	}
	p := &models.Post{
		ID:        uuid.NewString(),
		AuthorID:  authorID,
		Content:   content,
		CreatedAt: s.now().UTC(),
	}
	err := s.st.WithTx(ctx, func(q store.Queries) error {
		if _, err := s.userExists(ctx, q, authorID); err != nil {
			return err
		}
		return q.CreatePost(ctx, p)
	})
	if err != nil {
		return nil, s.fail("posts.create", err)
	}
	return p, nil
}

// Delete removes a post together with its likes, comments and reports.
func (s *Posts) Delete(ctx context.Context, caller, postID string) error {
	if err := checkID("postId", postID); err != nil {
		return err
	}
	err := s.st.WithTx(ctx, func(q store.Queries) error {
		p, err := s.postExists(ctx, q, postID)
		if err != nil {
			return err
		}
		if err := owns(caller, p.AuthorID); err != nil {
			return err
		}
		return q.DeletePost(ctx, postID)
	})
	if err != nil {
		return s.fail("posts.delete", err)
	}
	return nil
}

func (s *Posts) ByAuthor(ctx context.Context, authorID string) ([]models.Post, error) {
	if err := checkID("userId", authorID); err != nil {
		return nil, err
	}
	if _, err := s.userExists(ctx, s.st, authorID); err != nil {
		return nil, s.fail("posts.by_author", err)
	}
	posts, err := s.st.PostsByAuthor(ctx, authorID)
	if err != nil {
		return nil, s.fail("posts.by_author", err)
	}
	return posts, nil
}

// View recounts likes from the like edges and fills LikedByUser for viewer.
// An anonymous viewer never likes the post.
func (s *Posts) View(ctx context.Context, viewer, postID string) (*models.Post, error) {
	if err := checkID("postId", postID); err != nil {
		return nil, err
	}
	p, err := s.postExists(ctx, s.st, postID)
	if err != nil {
		return nil, s.fail("posts.view", err)
	}
	n, err := s.st.CountLikes(ctx, postID)
	if err != nil {
		return nil, s.fail("posts.view", err)
	}
	p.LikesNumber = n
	if viewer != "" {
		if p.LikedByUser, err = s.st.LikeExists(ctx, postID, viewer); err != nil {
			return nil, s.fail("posts.view", err)
		}
	}
	return p, nil
}

func (s *Posts) Like(ctx context.Context, caller, postID, likerID string) error {
	if err := owns(caller, likerID); err != nil {
		return err
	}
	if err := checkID("postId", postID); err != nil {
		return err
	}
	notified := false
	err := s.st.WithTx(ctx, func(q store.Queries) error {
		p, err := s.postExists(ctx, q, postID)
		if err != nil {
			return err
		}
		liked, err := q.LikeExists(ctx, postID, likerID)
		if err != nil {
			return err
		}
		if liked {
			return conflict("post already liked")
		}
		if err := q.CreateLike(ctx, postID, likerID); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return conflict("post already liked")
			}
			return err
		}
		if err := q.AdjustPostCounters(ctx, postID, 1, 0); err != nil {
			return err
		}
		if p.AuthorID == likerID {
			return nil
		}
		liker, err := s.userExists(ctx, q, likerID)
		if err != nil {
			return err
		}
		notified = true
		return s.notify(ctx, q, p.AuthorID, liker.Name.First+" liked your post")
	})
	if err != nil {
		return s.fail("posts.like", err)
	}
	if notified {
		s.rec.NotificationCreated(kindLike)
	}
	return nil
}

func (s *Posts) Unlike(ctx context.Context, caller, postID, likerID string) error {
	if err := owns(caller, likerID); err != nil {
		return err
	}
	if err := checkID("postId", postID); err != nil {
		return err
	}
	err := s.st.WithTx(ctx, func(q store.Queries) error {
		deleted, err := q.DeleteLike(ctx, postID, likerID)
		if err != nil || !deleted {
			return err
		}
		return q.AdjustPostCounters(ctx, postID, -1, 0)
	})
	if err != nil {
		return s.fail("posts.unlike", err)
	}
	return nil
}

// Report flags a post. A post can be reported once, by anyone.
func (s *Posts) Report(ctx context.Context, caller, reporterID, postID string) error {
	if err := owns(caller, reporterID); err != nil {
		return err
	}
	if err := checkID("postId", postID); err != nil {
		return err
	}
	err := s.st.WithTx(ctx, func(q store.Queries) error {
		if _, err := s.postExists(ctx, q, postID); err != nil {
			return err
		}
		err := q.CreateReport(ctx, models.Report{ReporterID: reporterID, PostID: postID})
		if errors.Is(err, store.ErrConflict) {
			return conflict("post already reported")
		}
		return err
	})
	if err != nil {
		return s.fail("posts.report", err)
	}
	return nil
}

func (s *Posts) Search(ctx context.Context, term string) ([]models.Post, error) {
	if term == "" {
		return nil, invalid("q is required")
	}
	posts, err := s.st.SearchPosts(ctx, term)
	if err != nil {
		return nil, s.fail("posts.search", err)
	}
	return posts, nil
}

// Feed samples a few posts from every account the caller follows.
func (s *Posts) Feed(ctx context.Context, caller string) ([]models.Post, error) {
	if caller == "" {
		return nil, forbidden()
	}
	posts, err := s.st.FeedPosts(ctx, caller, feedPostsPerAuthor)
	if err != nil {
		return nil, s.fail("posts.feed", err)
	}
	return posts, nil
}
