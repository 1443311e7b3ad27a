package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"socialnet/internal/auth"
	"socialnet/internal/models"
	"socialnet/internal/store"
)

const recommendationLimit = 50

type Users struct{ *deps }

type RegisterInput struct {
	Email     string           `json:"email" validate:"required,email"`
	Password  string           `json:"password" validate:"required"`
	Name      models.Name      `json:"name"`
	BirthDate models.BirthDate `json:"birthDate"`
	Gender    string           `json:"gender" validate:"required,oneof=Male Female"`
	Country   string           `json:"country" validate:"required,max=100"`
}

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type LoginResult struct {
	User  models.UserSummary
	Token string
}

func (s *Users) Register(ctx context.Context, in RegisterInput) (*models.User, error) {
	in.Email = normalizeEmail(in.Email)
	if err := check(in); err != nil {
		return nil, err
	}
	if err := auth.CheckPasswordStrength(in.Password); err != nil {
		return nil, invalid("password must be at least 8 characters with 2 digits, 2 symbols, 4 lowercase and 1 uppercase letter")
	}
	if !validBirthDate(in.BirthDate) {
		return nil, invalid("birth date is not valid")
	}
	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return nil, s.fail("users.register", fmt.Errorf("hash password: %w", err))
	}

	u := &models.User{
		ID:           uuid.NewString(),
		Email:        in.Email,
		PasswordHash: hash,
		Name:         in.Name,
		BirthDate:    in.BirthDate,
		Gender:       in.Gender,
		Country:      in.Country,
		CreatedAt:    s.now().UTC(),
	}
	err = s.st.WithTx(ctx, func(q store.Queries) error {
		if _, err := q.UserByEmail(ctx, u.Email); err == nil {
			return conflict("email already registered")
		} else if !errors.Is(err, store.ErrNotFound) {
			return err
		}
		if err := q.CreateUser(ctx, u); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return conflict("email already registered")
			}
			return err
		}
		return nil
	})
	if err != nil {
		return nil, s.fail("users.register", err)
	}
	s.log.WithField("user_id", u.ID).Info("user registered")
	return u, nil
}

// Login returns the same error for an unknown email and a wrong password.
func (s *Users) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	in.Email = normalizeEmail(in.Email)
	if err := check(in); err != nil {
		return nil, err
	}
	u, err := s.st.UserByEmail(ctx, in.Email)
	if errors.Is(err, store.ErrNotFound) {
		return nil, unauthorized("wrong email or password")
	}
	if err != nil {
		return nil, s.fail("users.login", err)
	}
	if !auth.CheckPassword(u.PasswordHash, in.Password) {
		return nil, unauthorized("wrong email or password")
	}

	var token string
	err = s.st.WithTx(ctx, func(q store.Queries) error {
		var err error
		token, err = s.sessions.IssueWith(ctx, q, auth.Payload{UserID: u.ID, Name: fullName(u.Name), Email: u.Email})
		if err != nil {
			return err
		}
		return q.SetUserOnline(ctx, u.ID, true)
	})
	if err != nil {
		return nil, s.fail("users.login", err)
	}
	u.IsOnline = true
	return &LoginResult{User: u.Summary(), Token: token}, nil
}

func (s *Users) Logout(ctx context.Context, caller, token string) error {
	err := s.st.WithTx(ctx, func(q store.Queries) error {
		if err := s.sessions.RevokeWith(ctx, q, token); err != nil {
			return err
		}
		err := q.SetUserOnline(ctx, caller, false)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	})
	if err != nil {
		return s.fail("users.logout", err)
	}
	return nil
}

// Delete removes the account and everything that references it.
func (s *Users) Delete(ctx context.Context, caller, id string) error {
	if err := owns(caller, id); err != nil {
		return err
	}
	err := s.st.WithTx(ctx, func(q store.Queries) error {
		if _, err := s.userExists(ctx, q, id); err != nil {
			return err
		}
		steps := []func(context.Context, string) error{
			q.DeleteLikesBy,
			q.DeleteReportsBy,
			q.DeleteCommentsBy,
			q.DeletePostsByAuthor,
			q.DeleteNotificationsFor,
			q.DeleteFollowsOf,
			q.DeleteTokensFor,
			q.DeleteUser,
		}
		for _, step := range steps {
			if err := step(ctx, id); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return s.fail("users.delete", err)
	}
	s.log.WithField("user_id", id).Info("user deleted")
	return nil
}

func (s *Users) UpdateName(ctx context.Context, caller, id string, name models.Name) error {
	if err := owns(caller, id); err != nil {
		return err
	}
	if err := check(name); err != nil {
		return err
	}
	err := s.st.UpdateUserName(ctx, id, name)
	if errors.Is(err, store.ErrNotFound) {
		return notFound("user")
	}
	if err != nil {
		return s.fail("users.update_name", err)
	}
	return nil
}

// UpdatePassword revokes every session of the user once the new hash is
// stored.
func (s *Users) UpdatePassword(ctx context.Context, caller, id, oldPassword, newPassword string) error {
	if err := owns(caller, id); err != nil {
		return err
	}
	if err := auth.CheckPasswordStrength(newPassword); err != nil {
		return invalid("new password does not meet the strength policy")
	}
	u, err := s.userExists(ctx, s.st, id)
	if err != nil {
		return s.fail("users.update_password", err)
	}
	if !auth.CheckPassword(u.PasswordHash, oldPassword) {
		return unauthorized("wrong password")
	}
	hash, err := auth.HashPassword(newPassword)
	if err != nil {
		return s.fail("users.update_password", fmt.Errorf("hash password: %w", err))
	}
	err = s.st.WithTx(ctx, func(q store.Queries) error {
		if err := q.UpdateUserPassword(ctx, id, hash); err != nil {
			return err
		}
		return q.DeleteTokensFor(ctx, id)
	})
	if err != nil {
		return s.fail("users.update_password", err)
	}
	return nil
}

// Profile returns the public profile of target. Views by anyone other than
// the owner bump the counter and notify the owner.
func (s *Users) Profile(ctx context.Context, viewer, target string) (*models.Profile, error) {
	if err := checkID("targetUserId", target); err != nil {
		return nil, err
	}
	var out models.Profile
	counted := false
	err := s.st.WithTx(ctx, func(q store.Queries) error {
		u, err := s.userExists(ctx, q, target)
		if err != nil {
			return err
		}
		if viewer != "" && viewer == target {
			out = u.Profile()
			return nil
		}
		if err := q.IncrementProfileViews(ctx, target); err != nil {
			return err
		}
		who := "Someone"
		if viewer != "" {
			if v, err := q.UserByID(ctx, viewer); err == nil {
				who = v.Name.First
			} else if !errors.Is(err, store.ErrNotFound) {
				return err
			}
		}
		if err := s.notify(ctx, q, target, who+" visited your profile."); err != nil {
			return err
		}
		u.ProfileViews++
		out = u.Profile()
		counted = true
		return nil
	})
	if err != nil {
		return nil, s.fail("users.profile", err)
	}
	if counted {
		s.rec.NotificationCreated(kindView)
	}
	return &out, nil
}

func (s *Users) Search(ctx context.Context, term string) ([]models.UserSummary, error) {
	if term == "" {
		return nil, invalid("q is required")
	}
	users, err := s.st.SearchUsers(ctx, term)
	if err != nil {
		return nil, s.fail("users.search", err)
	}
	return users, nil
}

// Recommendations suggests random users from the caller's country.
func (s *Users) Recommendations(ctx context.Context, caller, id string) ([]models.UserSummary, error) {
	if err := owns(caller, id); err != nil {
		return nil, err
	}
	u, err := s.userExists(ctx, s.st, id)
	if err != nil {
		return nil, s.fail("users.recommendations", err)
	}
	users, err := s.st.UsersByCountry(ctx, u.Country, u.ID, recommendationLimit)
	if err != nil {
		return nil, s.fail("users.recommendations", err)
	}
	return users, nil
}
