package service

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"socialnet/internal/auth"
	"socialnet/internal/models"
	"socialnet/internal/store"
	"socialnet/internal/store/memstore"
)

const strongPassword = "abcdE12!?"

type countingRecorder map[string]int

func (c countingRecorder) NotificationCreated(kind string) { c[kind]++ }

type fixture struct {
	svc      *Service
	st       *memstore.Store
	sessions *auth.Sessions
	rec      countingRecorder
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, memstore.New())
}

func newFixtureWith(t *testing.T, st store.Store) *fixture {
	t.Helper()
	sessions := auth.NewSessions("test-secret", 30*time.Minute, st, auth.WithLogger(quietLogger()))
	rec := countingRecorder{}
	f := &fixture{svc: New(st, sessions, quietLogger(), rec), sessions: sessions, rec: rec}
	if ms, ok := st.(*memstore.Store); ok {
		f.st = ms
	}
	return f
}

func registerInput(email, first, country string) RegisterInput {
	return RegisterInput{
		Email:     email,
		Password:  strongPassword,
		Name:      models.Name{First: first, Last: "Tester"},
		BirthDate: models.BirthDate{Day: 12, Month: 4, Year: 1990},
		Gender:    "Female",
		Country:   country,
	}
}

func (f *fixture) register(t *testing.T, email, first string) *models.User {
	t.Helper()
	u, err := f.svc.Users.Register(context.Background(), registerInput(email, first, "NL"))
	require.NoError(t, err)
	return u
}

func (f *fixture) notifications(t *testing.T, userID string) *models.NotificationList {
	t.Helper()
	list, err := f.svc.Notifications.List(context.Background(), userID, userID)
	require.NoError(t, err)
	return list
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.register(t, "ann@example.com", "Ann")

	_, err := f.svc.Users.Register(context.Background(), registerInput("  ANN@example.com ", "Other", "NL"))
	assert.Equal(t, KindConflict, KindOf(err))

	u, err := f.st.UserByEmail(context.Background(), "ann@example.com")
	require.NoError(t, err)
	assert.Equal(t, "Ann", u.Name.First)
}

func TestRegisterValidation(t *testing.T) {
	f := newFixture(t)
	cases := map[string]func(in *RegisterInput){
		"weak password":   func(in *RegisterInput) { in.Password = "password" },
		"too young":       func(in *RegisterInput) { in.BirthDate.Year = 2020 },
		"impossible date": func(in *RegisterInput) { in.BirthDate = models.BirthDate{Day: 31, Month: 2, Year: 1990} },
		"month 13":        func(in *RegisterInput) { in.BirthDate.Month = 13 },
		"gender":          func(in *RegisterInput) { in.Gender = "Other" },
		"email":           func(in *RegisterInput) { in.Email = "not-an-email" },
		"empty name":      func(in *RegisterInput) { in.Name.First = "" },
		"missing country": func(in *RegisterInput) { in.Country = "" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			in := registerInput("v@example.com", "Val", "NL")
			mutate(&in)
			_, err := f.svc.Users.Register(context.Background(), in)
			assert.Equal(t, KindValidation, KindOf(err), "err = %v", err)
		})
	}
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.register(t, "ann@example.com", "Ann")

	res, err := f.svc.Users.Login(ctx, LoginInput{Email: "Ann@Example.com", Password: strongPassword})
	require.NoError(t, err)
	assert.Equal(t, u.ID, res.User.ID)
	assert.True(t, res.User.IsOnline)

	p, ok, err := f.sessions.Verify(ctx, res.Token)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, u.ID, p.UserID)
	assert.Equal(t, "Ann Tester", p.Name)

	_, err = f.svc.Users.Login(ctx, LoginInput{Email: "ann@example.com", Password: "abcdE12!!"})
	assert.Equal(t, KindAuth, KindOf(err))
	_, err = f.svc.Users.Login(ctx, LoginInput{Email: "nobody@example.com", Password: strongPassword})
	assert.Equal(t, KindAuth, KindOf(err))
	_, err = f.svc.Users.Login(ctx, LoginInput{Email: "nope", Password: strongPassword})
	assert.Equal(t, KindValidation, KindOf(err))
}

func TestLogoutRevokesToken(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	u := f.register(t, "ann@example.com", "Ann")
	res, err := f.svc.Users.Login(ctx, LoginInput{Email: "ann@example.com", Password: strongPassword})
	require.NoError(t, err)

	require.NoError(t, f.svc.Users.Logout(ctx, u.ID, res.Token))

	_, ok, err := f.sessions.Verify(ctx, res.Token)
	require.NoError(t, err)
	assert.False(t, ok)
	stored, err := f.st.UserByID(ctx, u.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsOnline)
}

func TestFollowScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.register(t, "a@example.com", "Ann")
	b := f.register(t, "b@example.com", "Bob")

	require.NoError(t, f.svc.Follows.Follow(ctx, a.ID, a.ID, b.ID))
	assert.Equal(t, 1, f.notifications(t, b.ID).Unread)
	assert.Equal(t, "Someone followed you.", f.notifications(t, b.ID).Notifications[0].Text)

	err := f.svc.Follows.Follow(ctx, a.ID, a.ID, b.ID)
	assert.Equal(t, KindConflict, KindOf(err))
	followers, err := f.svc.Follows.Followers(ctx, b.ID)
	require.NoError(t, err)
	assert.Len(t, followers, 1)

	require.NoError(t, f.svc.Follows.Unfollow(ctx, a.ID, a.ID, b.ID))
	followers, err = f.svc.Follows.Followers(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, followers)
	assert.Len(t, f.notifications(t, b.ID).Notifications, 1)
	assert.Equal(t, 1, f.rec[kindFollow])
}

func TestFollowRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.register(t, "a@example.com", "Ann")
	b := f.register(t, "b@example.com", "Bob")

	assert.Equal(t, KindValidation, KindOf(f.svc.Follows.Follow(ctx, a.ID, a.ID, a.ID)))
	assert.Equal(t, KindOwnership, KindOf(f.svc.Follows.Follow(ctx, b.ID, a.ID, b.ID)))
	assert.Equal(t, KindNotFound, KindOf(f.svc.Follows.Follow(ctx, a.ID, a.ID, "8d1f0b8e-6a7b-4f57-9c55-2a9f3b7c1e00")))
}

func TestLikeScenario(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.register(t, "a@example.com", "Ann")
	b := f.register(t, "b@example.com", "Bob")
	c := f.register(t, "c@example.com", "Cid")

	post, err := f.svc.Posts.Create(ctx, a.ID, a.ID, models.PostContent{Title: "Hello", Text: "First post"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Posts.Like(ctx, b.ID, post.ID, b.ID))

	byB, err := f.svc.Posts.View(ctx, b.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, byB.LikesNumber)
	assert.True(t, byB.LikedByUser)

	byC, err := f.svc.Posts.View(ctx, c.ID, post.ID)
	require.NoError(t, err)
	assert.False(t, byC.LikedByUser)

	anon, err := f.svc.Posts.View(ctx, "", post.ID)
	require.NoError(t, err)
	assert.False(t, anon.LikedByUser)

	notes := f.notifications(t, a.ID)
	require.Len(t, notes.Notifications, 1)
	assert.Equal(t, "Bob liked your post", notes.Notifications[0].Text)

	assert.Equal(t, KindConflict, KindOf(f.svc.Posts.Like(ctx, b.ID, post.ID, b.ID)))

	require.NoError(t, f.svc.Posts.Unlike(ctx, b.ID, post.ID, b.ID))
	after, err := f.svc.Posts.View(ctx, b.ID, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, after.LikesNumber)
	assert.False(t, after.LikedByUser)

	stored, err := f.st.PostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, stored.LikesNumber)
}

func TestSelfLikeDoesNotNotify(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.register(t, "a@example.com", "Ann")
	post, err := f.svc.Posts.Create(ctx, a.ID, a.ID, models.PostContent{Title: "Mine", Text: "text"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Posts.Like(ctx, a.ID, post.ID, a.ID))
	assert.Empty(t, f.notifications(t, a.ID).Notifications)
	assert.Zero(t, f.rec[kindLike])
}

func TestDeleteSomeoneElsesPost(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.register(t, "a@example.com", "Ann")
	b := f.register(t, "b@example.com", "Bob")
	post, err := f.svc.Posts.Create(ctx, a.ID, a.ID, models.PostContent{Title: "Keep", Text: "me"})
	require.NoError(t, err)

	assert.Equal(t, KindOwnership, KindOf(f.svc.Posts.Delete(ctx, b.ID, post.ID)))
	_, err = f.st.PostByID(ctx, post.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.Posts.Delete(ctx, a.ID, post.ID))
	assert.Equal(t, KindNotFound, KindOf(f.svc.Posts.Delete(ctx, a.ID, post.ID)))
}

func TestCreatePostRules(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.register(t, "a@example.com", "Ann")
	b := f.register(t, "b@example.com", "Bob")

	_, err := f.svc.Posts.Create(ctx, b.ID, a.ID, models.PostContent{Title: "t", Text: "x"})
	assert.Equal(t, KindOwnership, KindOf(err))
	_, err = f.svc.Posts.Create(ctx, a.ID, a.ID, models.PostContent{Title: "", Text: "x"})
	assert.Equal(t, KindValidation, KindOf(err))

	p, err := f.svc.Posts.Create(ctx, a.ID, a.ID, models.PostContent{Title: "t", Text: "x"})
	require.NoError(t, err)
	assert.Zero(t, p.LikesNumber)
	assert.Zero(t, p.CommentsNumber)
	assert.NotNil(t, p.Content.Attachments)

	posts, err := f.svc.Posts.ByAuthor(ctx, a.ID)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, p.ID, posts[0].ID)

	_, err = f.svc.Posts.ByAuthor(ctx, "3f0c9a52-6f5e-4c8e-9a53-1f0b6f8d2a11")
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestReportTwice(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.register(t, "a@example.com", "Ann")
	b := f.register(t, "b@example.com", "Bob")
	post, err := f.svc.Posts.Create(ctx, a.ID, a.ID, models.PostContent{Title: "Spam", Text: "buy now"})
	require.NoError(t, err)

	require.NoError(t, f.svc.Posts.Report(ctx, b.ID, b.ID, post.ID))
	assert.Equal(t, KindConflict, KindOf(f.svc.Posts.Report(ctx, b.ID, b.ID, post.ID)))
}

func TestCommentsCountAndListing(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.register(t, "a@example.com", "Ann")
	b := f.register(t, "b@example.com", "Bob")
	post, err := f.svc.Posts.Create(ctx, a.ID, a.ID, models.PostContent{Title: "Talk", Text: "to me"})
	require.NoError(t, err)

	_, err = f.svc.Comments.Create(ctx, b.ID, b.ID, post.ID, models.CommentContent{Text: "hi"})
	require.NoError(t, err)
	_, err = f.svc.Comments.Create(ctx, b.ID, b.ID, post.ID, models.CommentContent{Text: ""})
	assert.Equal(t, KindValidation, KindOf(err))
	_, err = f.svc.Comments.Create(ctx, b.ID, b.ID, "8d1f0b8e-6a7b-4f57-9c55-2a9f3b7c1e00", models.CommentContent{Text: "x"})
	assert.Equal(t, KindNotFound, KindOf(err))

	stored, err := f.st.PostByID(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, stored.CommentsNumber)

	comments, err := f.svc.Comments.ForPost(ctx, post.ID)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, "Bob", comments[0].AuthorName.First)
}

func TestDeleteUserCascades(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.register(t, "a@example.com", "Ann")
	b := f.register(t, "b@example.com", "Bob")

	require.NoError(t, f.svc.Follows.Follow(ctx, a.ID, a.ID, b.ID))
	require.NoError(t, f.svc.Follows.Follow(ctx, b.ID, b.ID, a.ID))
	postA, err := f.svc.Posts.Create(ctx, a.ID, a.ID, models.PostContent{Title: "A", Text: "a"})
	require.NoError(t, err)
	postB, err := f.svc.Posts.Create(ctx, b.ID, b.ID, models.PostContent{Title: "B", Text: "b"})
	require.NoError(t, err)
	require.NoError(t, f.svc.Posts.Like(ctx, a.ID, postB.ID, a.ID))
	_, err = f.svc.Comments.Create(ctx, a.ID, a.ID, postB.ID, models.CommentContent{Text: "nice"})
	require.NoError(t, err)
	_, err = f.svc.Users.Login(ctx, LoginInput{Email: "a@example.com", Password: strongPassword})
	require.NoError(t, err)

	assert.Equal(t, KindOwnership, KindOf(f.svc.Users.Delete(ctx, b.ID, a.ID)))
	require.NoError(t, f.svc.Users.Delete(ctx, a.ID, a.ID))

	_, err = f.st.UserByID(ctx, a.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = f.st.PostByID(ctx, postA.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	followers, err := f.svc.Follows.Followers(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, followers)
	followees, err := f.svc.Follows.Followees(ctx, b.ID)
	require.NoError(t, err)
	assert.Empty(t, followees)

	after, err := f.st.PostByID(ctx, postB.ID)
	require.NoError(t, err)
	assert.Zero(t, after.LikesNumber)
	assert.Zero(t, after.CommentsNumber)
}

func TestProfileViews(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.register(t, "a@example.com", "Ann")
	b := f.register(t, "b@example.com", "Bob")

	p, err := f.svc.Users.Profile(ctx, "", a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.ProfileViews)

	p, err = f.svc.Users.Profile(ctx, a.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, p.ProfileViews)

	p, err = f.svc.Users.Profile(ctx, b.ID, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, p.ProfileViews)

	notes := f.notifications(t, a.ID).Notifications
	require.Len(t, notes, 2)
	assert.Equal(t, "Bob visited your profile.", notes[0].Text)
	assert.Equal(t, "Someone visited your profile.", notes[1].Text)

	_, err = f.svc.Users.Profile(ctx, "", "8d1f0b8e-6a7b-4f57-9c55-2a9f3b7c1e00")
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestNotificationsMarkAllRead(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.register(t, "a@example.com", "Ann")
	b := f.register(t, "b@example.com", "Bob")
	require.NoError(t, f.svc.Follows.Follow(ctx, a.ID, a.ID, b.ID))
	_, err := f.svc.Users.Profile(ctx, a.ID, b.ID)
	require.NoError(t, err)

	assert.Equal(t, 2, f.notifications(t, b.ID).Unread)
	_, err = f.svc.Notifications.List(ctx, a.ID, b.ID)
	assert.Equal(t, KindOwnership, KindOf(err))

	require.NoError(t, f.svc.Notifications.MarkAllRead(ctx, b.ID, b.ID))
	list := f.notifications(t, b.ID)
	assert.Zero(t, list.Unread)
	assert.Len(t, list.Notifications, 2)
}

func TestUpdateNameAndPassword(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.register(t, "a@example.com", "Ann")

	require.NoError(t, f.svc.Users.UpdateName(ctx, a.ID, a.ID, models.Name{First: "Anna", Last: "Smith"}))
	assert.Equal(t, KindValidation, KindOf(f.svc.Users.UpdateName(ctx, a.ID, a.ID, models.Name{First: "", Last: "Smith"})))

	res, err := f.svc.Users.Login(ctx, LoginInput{Email: "a@example.com", Password: strongPassword})
	require.NoError(t, err)

	assert.Equal(t, KindAuth, KindOf(f.svc.Users.UpdatePassword(ctx, a.ID, a.ID, "wrongE12!?", "newpE34#$")))
	assert.Equal(t, KindValidation, KindOf(f.svc.Users.UpdatePassword(ctx, a.ID, a.ID, strongPassword, "weak")))
	require.NoError(t, f.svc.Users.UpdatePassword(ctx, a.ID, a.ID, strongPassword, "newpE34#$"))

	_, ok, err := f.sessions.Verify(ctx, res.Token)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = f.svc.Users.Login(ctx, LoginInput{Email: "a@example.com", Password: "newpE34#$"})
	require.NoError(t, err)
}

func TestRecommendationsAndFeed(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.register(t, "a@example.com", "Ann")
	b := f.register(t, "b@example.com", "Bob")
	_, err := f.svc.Users.Register(ctx, registerInput("c@example.com", "Cid", "FR"))
	require.NoError(t, err)

	recs, err := f.svc.Users.Recommendations(ctx, a.ID, a.ID)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, b.ID, recs[0].ID)

	require.NoError(t, f.svc.Follows.Follow(ctx, a.ID, a.ID, b.ID))
	for i := 0; i < 7; i++ {
		_, err := f.svc.Posts.Create(ctx, b.ID, b.ID, models.PostContent{Title: "t", Text: "x"})
		require.NoError(t, err)
	}
	feed, err := f.svc.Posts.Feed(ctx, a.ID)
	require.NoError(t, err)
	assert.Len(t, feed, 5)
}

func TestSearch(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	a := f.register(t, "a@example.com", "Grace")
	_, err := f.svc.Posts.Create(ctx, a.ID, a.ID, models.PostContent{Title: "Compilers", Text: "notes on parsing"})
	require.NoError(t, err)

	users, err := f.svc.Users.Search(ctx, "grace")
	require.NoError(t, err)
	assert.Len(t, users, 1)

	posts, err := f.svc.Posts.Search(ctx, "parsing")
	require.NoError(t, err)
	assert.Len(t, posts, 1)

	_, err = f.svc.Posts.Search(ctx, "")
	assert.Equal(t, KindValidation, KindOf(err))
}

type failingNotes struct{ store.Queries }

func (failingNotes) CreateNotification(context.Context, *models.Notification) error {
	return errors.New("disk full")
}

type failingStore struct{ *memstore.Store }

func (f failingStore) WithTx(ctx context.Context, fn func(q store.Queries) error) error {
	return f.Store.WithTx(ctx, func(q store.Queries) error { return fn(failingNotes{q}) })
}

func TestFollowRollsBackWhenNotifyFails(t *testing.T) {
	ctx := context.Background()
	mem := memstore.New()
	ok := newFixtureWith(t, mem)
	a := ok.register(t, "a@example.com", "Ann")
	b := ok.register(t, "b@example.com", "Bob")

	f := newFixtureWith(t, failingStore{mem})
	err := f.svc.Follows.Follow(ctx, a.ID, a.ID, b.ID)
	assert.Equal(t, KindStore, KindOf(err))
	assert.Equal(t, "internal error", MessageOf(err))

	exists, err := mem.FollowExists(ctx, a.ID, b.ID)
	require.NoError(t, err)
	assert.False(t, exists)
}
