package httpx

import (
	"net/http"

	"socialnet/internal/auth"
	"socialnet/internal/models"
	"socialnet/internal/service"
	"socialnet/internal/util"
)

type likeBody struct {
	LikerID string `json:"likerId"`
	PostID  string `json:"postId"`
}

type postRefBody struct {
	UserID string `json:"userId"`
	PostID string `json:"postId"`
}

func (s *Server) handleCreatePost(w http.ResponseWriter, r *http.Request) error {
	body, err := decode[struct {
		AuthorID string             `json:"authorId"`
		Content  models.PostContent `json:"content"`
	}](w, r)
	if err != nil {
		return err
	}
	p, err := s.svc.Posts.Create(r.Context(), auth.UserIDFrom(r.Context()), body.AuthorID, body.Content)
	if err != nil {
		return err
	}
	util.OK(w, p)
	return nil
}

func (s *Server) handleLike(w http.ResponseWriter, r *http.Request) error {
	body, err := decode[likeBody](w, r)
	if err != nil {
		return err
	}
	if err := s.svc.Posts.Like(r.Context(), auth.UserIDFrom(r.Context()), body.PostID, body.LikerID); err != nil {
		return err
	}
	util.OK(w, nil)
	return nil
}

func (s *Server) handleUnlike(w http.ResponseWriter, r *http.Request) error {
	body, err := decode[likeBody](w, r)
	if err != nil {
		return err
	}
	if err := s.svc.Posts.Unlike(r.Context(), auth.UserIDFrom(r.Context()), body.PostID, body.LikerID); err != nil {
		return err
	}
	util.OK(w, nil)
	return nil
}

func (s *Server) handleViewPost(w http.ResponseWriter, r *http.Request) error {
	postID, err := query(r, "postId")
	if err != nil {
		return err
	}
	p, err := s.svc.Posts.View(r.Context(), auth.UserIDFrom(r.Context()), postID)
	if err != nil {
		return err
	}
	util.OK(w, p)
	return nil
}

func (s *Server) handlePostsFromUser(w http.ResponseWriter, r *http.Request) error {
	body, err := decode[userBody](w, r)
	if err != nil {
		return err
	}
	posts, err := s.svc.Posts.ByAuthor(r.Context(), body.UserID)
	if err != nil {
		return err
	}
	util.OK(w, posts)
	return nil
}

func (s *Server) handleDeletePost(w http.ResponseWriter, r *http.Request) error {
	body, err := decode[postRefBody](w, r)
	if err != nil {
		return err
	}
	caller := auth.UserIDFrom(r.Context())
	if body.UserID != "" && body.UserID != caller {
		return &service.Error{Kind: service.KindOwnership, Message: "not allowed to act on behalf of another user"}
	}
	if err := s.svc.Posts.Delete(r.Context(), caller, body.PostID); err != nil {
		return err
	}
	util.OK(w, nil)
	return nil
}

func (s *Server) handleSearchPosts(w http.ResponseWriter, r *http.Request) error {
	q, err := query(r, "q")
	if err != nil {
		return err
	}
	posts, err := s.svc.Posts.Search(r.Context(), q)
	if err != nil {
		return err
	}
	util.OK(w, posts)
	return nil
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) error {
	body, err := decode[postRefBody](w, r)
	if err != nil {
		return err
	}
	if err := s.svc.Posts.Report(r.Context(), auth.UserIDFrom(r.Context()), body.UserID, body.PostID); err != nil {
		return err
	}
	util.OK(w, nil)
	return nil
}

func (s *Server) handleComments(w http.ResponseWriter, r *http.Request) error {
	postID, err := query(r, "postId")
	if err != nil {
		return err
	}
	comments, err := s.svc.Comments.ForPost(r.Context(), postID)
	if err != nil {
		return err
	}
	util.OK(w, comments)
	return nil
}

func (s *Server) handleCreateComment(w http.ResponseWriter, r *http.Request) error {
	body, err := decode[struct {
		AuthorID string                `json:"authorId"`
		PostID   string                `json:"postId"`
		Content  models.CommentContent `json:"content"`
	}](w, r)
	if err != nil {
		return err
	}
	c, err := s.svc.Comments.Create(r.Context(), auth.UserIDFrom(r.Context()), body.AuthorID, body.PostID, body.Content)
	if err != nil {
		return err
	}
	util.OK(w, c)
	return nil
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) error {
	posts, err := s.svc.Posts.Feed(r.Context(), auth.UserIDFrom(r.Context()))
	if err != nil {
		return err
	}
	util.OK(w, posts)
	return nil
}
