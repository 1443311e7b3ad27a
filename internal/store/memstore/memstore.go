// Package memstore is an in-process store.Store. It mirrors the Postgres
// constraints (unique keys, foreign keys, cascades) closely enough for the
// service and handler tests, and backs the server when DATABASE_URL is
// "memory".
package memstore

import (
	"context"
	"math/rand/v2"
	"sort"
	"strings"
	"sync"
	"time"

	"socialnet/internal/models"
	"socialnet/internal/store"
)

type tokenRow struct {
	userID    string
	expiresAt time.Time
}

type state struct {
	users         map[string]models.User
	follows       []models.Follow
	posts         map[string]models.Post
	postOrder     []string
	likes         map[models.Like]struct{}
	comments      []models.Comment
	notifications []models.Notification
	reports       map[string]string
	tokens        map[string]tokenRow
}

func newState() *state {
	return &state{
		users:   map[string]models.User{},
		posts:   map[string]models.Post{},
		likes:   map[models.Like]struct{}{},
		reports: map[string]string{},
		tokens:  map[string]tokenRow{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.users {
		c.users[k] = v
	}
	c.follows = append([]models.Follow(nil), s.follows...)
	for k, v := range s.posts {
		v.Content.Attachments = append([]string(nil), v.Content.Attachments...)
		c.posts[k] = v
	}
	c.postOrder = append([]string(nil), s.postOrder...)
	for k := range s.likes {
		c.likes[k] = struct{}{}
	}
	c.comments = append([]models.Comment(nil), s.comments...)
	c.notifications = append([]models.Notification(nil), s.notifications...)
	for k, v := range s.reports {
		c.reports[k] = v
	}
	for k, v := range s.tokens {
		c.tokens[k] = v
	}
	return c
}

type Store struct {
	mu   *sync.Mutex
	st   *state
	inTx bool
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return &Store{mu: &sync.Mutex{}, st: newState()}
}

// lock is a no-op inside WithTx, which already holds the mutex.
func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// WithTx runs fn against a copy of the state and swaps it in on success.
func (s *Store) WithTx(ctx context.Context, fn func(q store.Queries) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &Store{mu: s.mu, st: s.st.clone(), inTx: true}
	if err := fn(tx); err != nil {
		return err
	}
	s.st = tx.st
	return nil
}

func matches(haystack, q string) bool {
	haystack = strings.ToLower(haystack)
	terms := strings.Fields(strings.ToLower(q))
	if len(terms) == 0 {
		return false
	}
	for _, term := range terms {
		if !strings.Contains(haystack, term) {
			return false
		}
	}
	return true
}

func copyPost(p models.Post) models.Post {
	p.Content.Attachments = append([]string{}, p.Content.Attachments...)
	return p
}

// ---- users ----

func (s *Store) CreateUser(_ context.Context, u *models.User) error {
	defer s.lock()()
	if _, ok := s.st.users[u.ID]; ok {
		return store.ErrConflict
	}
	for _, other := range s.st.users {
		if other.Email == u.Email {
			return store.ErrConflict
		}
	}
	s.st.users[u.ID] = *u
	return nil
}

func (s *Store) UserByID(_ context.Context, id string) (*models.User, error) {
	defer s.lock()()
	u, ok := s.st.users[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &u, nil
}

func (s *Store) UserByEmail(_ context.Context, email string) (*models.User, error) {
	defer s.lock()()
	for _, u := range s.st.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) updateUser(id string, fn func(u *models.User)) error {
	defer s.lock()()
	u, ok := s.st.users[id]
	if !ok {
		return store.ErrNotFound
	}
	fn(&u)
	s.st.users[id] = u
	return nil
}

func (s *Store) UpdateUserName(_ context.Context, id string, name models.Name) error {
	return s.updateUser(id, func(u *models.User) { u.Name = name })
}

func (s *Store) UpdateUserPassword(_ context.Context, id, hash string) error {
	return s.updateUser(id, func(u *models.User) { u.PasswordHash = hash })
}

func (s *Store) SetUserOnline(_ context.Context, id string, online bool) error {
	return s.updateUser(id, func(u *models.User) { u.IsOnline = online })
}

func (s *Store) IncrementProfileViews(_ context.Context, id string) error {
	return s.updateUser(id, func(u *models.User) { u.ProfileViews++ })
}

func (s *Store) DeleteUser(_ context.Context, id string) error {
	defer s.lock()()
	if _, ok := s.st.users[id]; !ok {
		return store.ErrNotFound
	}
	st := s.st
	for _, pid := range append([]string(nil), st.postOrder...) {
		if st.posts[pid].AuthorID == id {
			st.deletePost(pid)
		}
	}
	for l := range st.likes {
		if l.LikerID == id {
			st.unlike(l)
		}
	}
	kept := st.comments[:0]
	for _, c := range st.comments {
		if c.AuthorID == id {
			st.bumpComments(c.PostID, -1)
			continue
		}
		kept = append(kept, c)
	}
	st.comments = kept
	st.notifications = filter(st.notifications, func(n models.Notification) bool { return n.UserID != id })
	st.follows = filter(st.follows, func(f models.Follow) bool { return f.FollowerID != id && f.FolloweeID != id })
	for pid, rid := range st.reports {
		if rid == id {
			delete(st.reports, pid)
		}
	}
	for tok, row := range st.tokens {
		if row.userID == id {
			delete(st.tokens, tok)
		}
	}
	delete(st.users, id)
	return nil
}

func (s *Store) SearchUsers(_ context.Context, q string) ([]models.UserSummary, error) {
	defer s.lock()()
	out := []models.UserSummary{}
	for _, u := range s.st.users {
		if matches(u.Name.First+" "+u.Name.Last, q) {
			out = append(out, u.Summary())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UsersByCountry(_ context.Context, country, excludeID string, limit int) ([]models.UserSummary, error) {
	defer s.lock()()
	out := []models.UserSummary{}
	for _, u := range s.st.users {
		if u.Country == country && u.ID != excludeID {
			out = append(out, u.Summary())
		}
	}
	rand.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// ---- follows ----

func (s *Store) FollowExists(_ context.Context, followerID, followeeID string) (bool, error) {
	defer s.lock()()
	return s.st.followIndex(followerID, followeeID) >= 0, nil
}

func (st *state) followIndex(followerID, followeeID string) int {
	for i, f := range st.follows {
		if f.FollowerID == followerID && f.FolloweeID == followeeID {
			return i
		}
	}
	return -1
}

func (s *Store) CreateFollow(_ context.Context, followerID, followeeID string) error {
	defer s.lock()()
	if !s.st.hasUser(followerID) || !s.st.hasUser(followeeID) {
		return store.ErrMissingRef
	}
	if s.st.followIndex(followerID, followeeID) >= 0 {
		return store.ErrConflict
	}
	s.st.follows = append(s.st.follows, models.Follow{FollowerID: followerID, FolloweeID: followeeID})
	return nil
}

func (s *Store) DeleteFollow(_ context.Context, followerID, followeeID string) (bool, error) {
	defer s.lock()()
	i := s.st.followIndex(followerID, followeeID)
	if i < 0 {
		return false, nil
	}
	s.st.follows = append(s.st.follows[:i:i], s.st.follows[i+1:]...)
	return true, nil
}

func (s *Store) DeleteFollowsOf(_ context.Context, userID string) error {
	defer s.lock()()
	s.st.follows = filter(s.st.follows, func(f models.Follow) bool {
		return f.FollowerID != userID && f.FolloweeID != userID
	})
	return nil
}

func (s *Store) Followers(_ context.Context, userID string) ([]models.UserSummary, error) {
	defer s.lock()()
	out := []models.UserSummary{}
	for _, f := range s.st.follows {
		if u, ok := s.st.users[f.FollowerID]; ok && f.FolloweeID == userID {
			out = append(out, u.Summary())
		}
	}
	return out, nil
}

func (s *Store) Followees(_ context.Context, userID string) ([]models.UserSummary, error) {
	defer s.lock()()
	out := []models.UserSummary{}
	for _, f := range s.st.follows {
		if u, ok := s.st.users[f.FolloweeID]; ok && f.FollowerID == userID {
			out = append(out, u.Summary())
		}
	}
	return out, nil
}

// ---- posts ----

func (st *state) hasUser(id string) bool {
	_, ok := st.users[id]
	return ok
}

func (st *state) hasPost(id string) bool {
	_, ok := st.posts[id]
	return ok
}

func (st *state) bumpComments(postID string, delta int) {
	if p, ok := st.posts[postID]; ok {
		p.CommentsNumber = max(p.CommentsNumber+delta, 0)
		st.posts[postID] = p
	}
}

func (st *state) unlike(l models.Like) {
	delete(st.likes, l)
	if p, ok := st.posts[l.PostID]; ok {
		p.LikesNumber = max(p.LikesNumber-1, 0)
		st.posts[l.PostID] = p
	}
}

func (st *state) deletePost(id string) {
	delete(st.posts, id)
	st.postOrder = filter(st.postOrder, func(pid string) bool { return pid != id })
	for l := range st.likes {
		if l.PostID == id {
			delete(st.likes, l)
		}
	}
	st.comments = filter(st.comments, func(c models.Comment) bool { return c.PostID != id })
	delete(st.reports, id)
}

func (s *Store) CreatePost(_ context.Context, p *models.Post) error {
	defer s.lock()()
	if !s.st.hasUser(p.AuthorID) {
		return store.ErrMissingRef
	}
	if s.st.hasPost(p.ID) {
		return store.ErrConflict
	}
	s.st.posts[p.ID] = copyPost(*p)
	s.st.postOrder = append(s.st.postOrder, p.ID)
	return nil
}

func (s *Store) PostByID(_ context.Context, id string) (*models.Post, error) {
	defer s.lock()()
	p, ok := s.st.posts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	p = copyPost(p)
	return &p, nil
}

// postsWhere returns matching posts newest first.
func (st *state) postsWhere(keep func(models.Post) bool) []models.Post {
	out := []models.Post{}
	for i := len(st.postOrder) - 1; i >= 0; i-- {
		p := st.posts[st.postOrder[i]]
		if keep(p) {
			out = append(out, copyPost(p))
		}
	}
	return out
}

func (s *Store) PostsByAuthor(_ context.Context, authorID string) ([]models.Post, error) {
	defer s.lock()()
	return s.st.postsWhere(func(p models.Post) bool { return p.AuthorID == authorID }), nil
}

func (s *Store) FeedPosts(_ context.Context, followerID string, perAuthor int) ([]models.Post, error) {
	defer s.lock()()
	out := []models.Post{}
	for _, f := range s.st.follows {
		if f.FollowerID != followerID {
			continue
		}
		own := s.st.postsWhere(func(p models.Post) bool { return p.AuthorID == f.FolloweeID })
		rand.Shuffle(len(own), func(i, j int) { own[i], own[j] = own[j], own[i] })
		if len(own) > perAuthor {
			own = own[:perAuthor]
		}
		out = append(out, own...)
	}
	return out, nil
}

func (s *Store) SearchPosts(_ context.Context, q string) ([]models.Post, error) {
	defer s.lock()()
	return s.st.postsWhere(func(p models.Post) bool {
		return matches(p.Content.Title+" "+p.Content.Text, q)
	}), nil
}

func (s *Store) AdjustPostCounters(_ context.Context, postID string, likes, comments int) error {
	defer s.lock()()
	p, ok := s.st.posts[postID]
	if !ok {
		return store.ErrNotFound
	}
	p.LikesNumber = max(p.LikesNumber+likes, 0)
	p.CommentsNumber = max(p.CommentsNumber+comments, 0)
	s.st.posts[postID] = p
	return nil
}

func (s *Store) DeletePost(_ context.Context, id string) error {
	defer s.lock()()
	if !s.st.hasPost(id) {
		return store.ErrNotFound
	}
	s.st.deletePost(id)
	return nil
}

func (s *Store) DeletePostsByAuthor(_ context.Context, authorID string) error {
	defer s.lock()()
	for _, pid := range append([]string(nil), s.st.postOrder...) {
		if s.st.posts[pid].AuthorID == authorID {
			s.st.deletePost(pid)
		}
	}
	return nil
}

// ---- likes ----

func (s *Store) LikeExists(_ context.Context, postID, likerID string) (bool, error) {
	defer s.lock()()
	_, ok := s.st.likes[models.Like{PostID: postID, LikerID: likerID}]
	return ok, nil
}

func (s *Store) CreateLike(_ context.Context, postID, likerID string) error {
	defer s.lock()()
	if !s.st.hasPost(postID) || !s.st.hasUser(likerID) {
		return store.ErrMissingRef
	}
	l := models.Like{PostID: postID, LikerID: likerID}
	if _, ok := s.st.likes[l]; ok {
		return store.ErrConflict
	}
	s.st.likes[l] = struct{}{}
	return nil
}

func (s *Store) DeleteLike(_ context.Context, postID, likerID string) (bool, error) {
	defer s.lock()()
	l := models.Like{PostID: postID, LikerID: likerID}
	if _, ok := s.st.likes[l]; !ok {
		return false, nil
	}
	delete(s.st.likes, l)
	return true, nil
}

func (s *Store) CountLikes(_ context.Context, postID string) (int, error) {
	defer s.lock()()
	n := 0
	for l := range s.st.likes {
		if l.PostID == postID {
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteLikesBy(_ context.Context, likerID string) error {
	defer s.lock()()
	for l := range s.st.likes {
		if l.LikerID == likerID {
			s.st.unlike(l)
		}
	}
	return nil
}

// ---- comments ----

func (s *Store) CreateComment(_ context.Context, c *models.Comment) error {
	defer s.lock()()
	if !s.st.hasPost(c.PostID) || !s.st.hasUser(c.AuthorID) {
		return store.ErrMissingRef
	}
	s.st.comments = append(s.st.comments, *c)
	return nil
}

func (s *Store) CommentsByPost(_ context.Context, postID string) ([]models.CommentView, error) {
	defer s.lock()()
	out := []models.CommentView{}
	for _, c := range s.st.comments {
		u, ok := s.st.users[c.AuthorID]
		if !ok || c.PostID != postID {
			continue
		}
		out = append(out, models.CommentView{Comment: c, AuthorName: u.Name, AuthorIsOnline: u.IsOnline})
	}
	return out, nil
}

func (s *Store) DeleteCommentsBy(_ context.Context, authorID string) error {
	defer s.lock()()
	s.st.comments = filter(s.st.comments, func(c models.Comment) bool {
		if c.AuthorID == authorID {
			s.st.bumpComments(c.PostID, -1)
			return false
		}
		return true
	})
	return nil
}

// ---- notifications ----

func (s *Store) CreateNotification(_ context.Context, n *models.Notification) error {
	defer s.lock()()
	if !s.st.hasUser(n.UserID) {
		return store.ErrMissingRef
	}
	s.st.notifications = append(s.st.notifications, *n)
	return nil
}

func (s *Store) NotificationsFor(_ context.Context, userID string) ([]models.Notification, error) {
	defer s.lock()()
	out := []models.Notification{}
	for i := len(s.st.notifications) - 1; i >= 0; i-- {
		if n := s.st.notifications[i]; n.UserID == userID {
			out = append(out, n)
		}
	}
	return out, nil
}

func (s *Store) MarkAllNotificationsRead(_ context.Context, userID string) (int64, error) {
	defer s.lock()()
	var n int64
	for i := range s.st.notifications {
		if s.st.notifications[i].UserID == userID && !s.st.notifications[i].Read {
			s.st.notifications[i].Read = true
			n++
		}
	}
	return n, nil
}

func (s *Store) DeleteNotificationsFor(_ context.Context, userID string) error {
	defer s.lock()()
	s.st.notifications = filter(s.st.notifications, func(n models.Notification) bool { return n.UserID != userID })
	return nil
}

// ---- reports ----

func (s *Store) CreateReport(_ context.Context, r models.Report) error {
	defer s.lock()()
	if !s.st.hasPost(r.PostID) || !s.st.hasUser(r.ReporterID) {
		return store.ErrMissingRef
	}
	if _, ok := s.st.reports[r.PostID]; ok {
		return store.ErrConflict
	}
	s.st.reports[r.PostID] = r.ReporterID
	return nil
}

func (s *Store) DeleteReportsBy(_ context.Context, reporterID string) error {
	defer s.lock()()
	for pid, rid := range s.st.reports {
		if rid == reporterID {
			delete(s.st.reports, pid)
		}
	}
	return nil
}

// ---- tokens ----

func (s *Store) SaveToken(_ context.Context, token, userID string, expiresAt time.Time) error {
	defer s.lock()()
	if !s.st.hasUser(userID) {
		return store.ErrMissingRef
	}
	if _, ok := s.st.tokens[token]; ok {
		return store.ErrConflict
	}
	s.st.tokens[token] = tokenRow{userID: userID, expiresAt: expiresAt}
	return nil
}

func (s *Store) TokenExists(_ context.Context, token string) (bool, error) {
	defer s.lock()()
	_, ok := s.st.tokens[token]
	return ok, nil
}

func (s *Store) DeleteToken(_ context.Context, token string) error {
	defer s.lock()()
	delete(s.st.tokens, token)
	return nil
}

func (s *Store) DeleteTokensFor(_ context.Context, userID string) error {
	defer s.lock()()
	for tok, row := range s.st.tokens {
		if row.userID == userID {
			delete(s.st.tokens, tok)
		}
	}
	return nil
}

func filter[T any](in []T, keep func(T) bool) []T {
	out := in[:0]
	for _, v := range in {
		if keep(v) {
			out = append(out, v)
		}
	}
	return out
}
