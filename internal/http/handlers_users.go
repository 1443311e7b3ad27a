package httpx

import (
	"net/http"

	"socialnet/internal/auth"
	"socialnet/internal/models"
	"socialnet/internal/service"
	"socialnet/internal/util"
)

type followBody struct {
	FollowerID string `json:"followerId"`
	FolloweeID string `json:"followeeId"`
}

type userBody struct {
	UserID string `json:"userId"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) error {
	in, err := decode[service.RegisterInput](w, r)
	if err != nil {
		return err
	}
	u, err := s.svc.Users.Register(r.Context(), in)
	if err != nil {
		return err
	}
	util.Render(w, http.StatusOK, util.Envelope{Message: "user registered", Data: u.Summary()})
	return nil
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) error {
	in, err := decode[service.LoginInput](w, r)
	if err != nil {
		return err
	}
	res, err := s.svc.Users.Login(r.Context(), in)
	if err != nil {
		return err
	}
	util.Render(w, http.StatusOK, util.Envelope{Data: res.User, Token: res.Token})
	return nil
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) error {
	if err := s.svc.Users.Logout(r.Context(), auth.UserIDFrom(r.Context()), r.Header.Get(tokenHeader)); err != nil {
		return err
	}
	util.OK(w, nil)
	return nil
}

func (s *Server) handleFollow(w http.ResponseWriter, r *http.Request) error {
	body, err := decode[followBody](w, r)
	if err != nil {
		return err
	}
	if err := s.svc.Follows.Follow(r.Context(), auth.UserIDFrom(r.Context()), body.FollowerID, body.FolloweeID); err != nil {
		return err
	}
	util.OK(w, nil)
	return nil
}

func (s *Server) handleUnfollow(w http.ResponseWriter, r *http.Request) error {
	body, err := decode[followBody](w, r)
	if err != nil {
		return err
	}
	if err := s.svc.Follows.Unfollow(r.Context(), auth.UserIDFrom(r.Context()), body.FollowerID, body.FolloweeID); err != nil {
		return err
	}
	util.OK(w, nil)
	return nil
}

func (s *Server) handleFollowees(w http.ResponseWriter, r *http.Request) error {
	userID, err := query(r, "userId")
	if err != nil {
		return err
	}
	users, err := s.svc.Follows.Followees(r.Context(), userID)
	if err != nil {
		return err
	}
	util.OK(w, users)
	return nil
}

func (s *Server) handleFollowers(w http.ResponseWriter, r *http.Request) error {
	userID, err := query(r, "userId")
	if err != nil {
		return err
	}
	users, err := s.svc.Follows.Followers(r.Context(), userID)
	if err != nil {
		return err
	}
	util.OK(w, users)
	return nil
}

// handleSearchUsers reads q from the query string, falling back to the body.
func (s *Server) handleSearchUsers(w http.ResponseWriter, r *http.Request) error {
	q := r.URL.Query().Get("q")
	if q == "" && r.ContentLength != 0 {
		body, err := decode[struct {
			Q string `json:"q"`
		}](w, r)
		if err != nil {
			return err
		}
		q = body.Q
	}
	users, err := s.svc.Users.Search(r.Context(), q)
	if err != nil {
		return err
	}
	util.OK(w, users)
	return nil
}

func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) error {
	target, err := query(r, "targetUserId")
	if err != nil {
		return err
	}
	p, err := s.svc.Users.Profile(r.Context(), auth.UserIDFrom(r.Context()), target)
	if err != nil {
		return err
	}
	util.OK(w, p)
	return nil
}

func (s *Server) handleNotifications(w http.ResponseWriter, r *http.Request) error {
	userID, err := query(r, "userId")
	if err != nil {
		return err
	}
	list, err := s.svc.Notifications.List(r.Context(), auth.UserIDFrom(r.Context()), userID)
	if err != nil {
		return err
	}
	util.OK(w, list)
	return nil
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) error {
	body, err := decode[userBody](w, r)
	if err != nil {
		return err
	}
	if err := s.svc.Notifications.MarkAllRead(r.Context(), auth.UserIDFrom(r.Context()), body.UserID); err != nil {
		return err
	}
	util.OK(w, nil)
	return nil
}

func (s *Server) handleRecommendations(w http.ResponseWriter, r *http.Request) error {
	userID, err := query(r, "userId")
	if err != nil {
		return err
	}
	users, err := s.svc.Users.Recommendations(r.Context(), auth.UserIDFrom(r.Context()), userID)
	if err != nil {
		return err
	}
	util.OK(w, users)
	return nil
}

func (s *Server) handleDeleteUser(w http.ResponseWriter, r *http.Request) error {
	body, err := decode[userBody](w, r)
	if err != nil {
		return err
	}
	if err := s.svc.Users.Delete(r.Context(), auth.UserIDFrom(r.Context()), body.UserID); err != nil {
		return err
	}
	util.OK(w, nil)
	return nil
}

func (s *Server) handleUpdateName(w http.ResponseWriter, r *http.Request) error {
	body, err := decode[struct {
		FirstName string `json:"firstName"`
		LastName  string `json:"lastName"`
		UserID    string `json:"userId"`
	}](w, r)
	if err != nil {
		return err
	}
	name := models.Name{First: body.FirstName, Last: body.LastName}
	if err := s.svc.Users.UpdateName(r.Context(), auth.UserIDFrom(r.Context()), body.UserID, name); err != nil {
		return err
	}
	util.OK(w, nil)
	return nil
}

func (s *Server) handleUpdatePassword(w http.ResponseWriter, r *http.Request) error {
	body, err := decode[struct {
		OldPassword string `json:"oldPassWord"`
		NewPassword string `json:"newPassWord"`
		UserID      string `json:"userId"`
	}](w, r)
	if err != nil {
		return err
	}
	err = s.svc.Users.UpdatePassword(r.Context(), auth.UserIDFrom(r.Context()), body.UserID, body.OldPassword, body.NewPassword)
	if err != nil {
		return err
	}
	util.Render(w, http.StatusOK, util.Envelope{Message: "password updated, sign in again"})
	return nil
}
