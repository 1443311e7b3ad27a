package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"

	"socialnet/internal/models"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

var tracer = otel.Tracer("socialnet/store")

// Postgres implements Store on top of a sqlx handle opened with the pgx
// stdlib driver.
type Postgres struct {
	*queries
	db *sqlx.DB
}

func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{queries: &queries{db: db}, db: db}
}

func (p *Postgres) WithTx(ctx context.Context, fn func(q Queries) error) (err error) {
	ctx, span := tracer.Start(ctx, "store.WithTx")
	defer span.End()

	tx, err := p.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			_ = tx.Rollback()
			return
		}
		if cerr := tx.Commit(); cerr != nil {
			err = fmt.Errorf("commit tx: %w", translate(cerr))
			span.SetStatus(codes.Error, err.Error())
		}
	}()

	return fn(&queries{db: tx})
}

// queries runs statements against either the pool or an open transaction.
type queries struct {
	db sqlx.ExtContext
}

func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return fmt.Errorf("%w: %s", ErrConflict, pgErr.ConstraintName)
		case pgForeignKeyViolation:
			return fmt.Errorf("%w: %s", ErrMissingRef, pgErr.ConstraintName)
		}
	}
	return err
}

func affected(res sql.Result) (int64, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return n, nil
}

// ---- rows ----

type userRow struct {
	ID           string    `db:"id"`
	Email        string    `db:"email"`
	Password     string    `db:"password"`
	FirstName    string    `db:"first_name"`
	LastName     string    `db:"last_name"`
	BirthDay     int       `db:"birth_day"`
	BirthMonth   int       `db:"birth_month"`
	BirthYear    int       `db:"birth_year"`
	Gender       string    `db:"gender"`
	Country      string    `db:"country"`
	TopWriter    bool      `db:"top_writer"`
	IsOnline     bool      `db:"is_online"`
	ProfileViews int       `db:"profile_views"`
	CreatedAt    time.Time `db:"created_at"`
}

const userColumns = `id, email, password, first_name, last_name, birth_day, birth_month, birth_year,
	gender, country, top_writer, is_online, profile_views, created_at`

func (r userRow) model() *models.User {
	return &models.User{
		ID:           r.ID,
		Email:        r.Email,
		PasswordHash: r.Password,
		Name:         models.Name{First: r.FirstName, Last: r.LastName},
		BirthDate:    models.BirthDate{Day: r.BirthDay, Month: r.BirthMonth, Year: r.BirthYear},
		Gender:       r.Gender,
		Country:      r.Country,
		TopWriter:    r.TopWriter,
		IsOnline:     r.IsOnline,
		ProfileViews: r.ProfileViews,
		CreatedAt:    r.CreatedAt,
	}
}

type summaryRow struct {
	ID        string `db:"id"`
	FirstName string `db:"first_name"`
	LastName  string `db:"last_name"`
	IsOnline  bool   `db:"is_online"`
	TopWriter bool   `db:"top_writer"`
}

func summaries(rows []summaryRow) []models.UserSummary {
	out := make([]models.UserSummary, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.UserSummary{
			ID:        r.ID,
			Name:      models.Name{First: r.FirstName, Last: r.LastName},
			IsOnline:  r.IsOnline,
			TopWriter: r.TopWriter,
		})
	}
	return out
}

// stringList is stored as a JSON array.
type stringList []string

func (l *stringList) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*l = nil
		return nil
	case []byte:
		return json.Unmarshal(v, l)
	case string:
		return json.Unmarshal([]byte(v), l)
	}
	return fmt.Errorf("store: cannot scan %T into string list", src)
}

func (l stringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(l))
	return string(b), err
}

type postRow struct {
	ID             string     `db:"post_id"`
	AuthorID       string     `db:"author_id"`
	Title          string     `db:"title"`
	Text           string     `db:"text"`
	Attachments    stringList `db:"attachments"`
	LikesNumber    int        `db:"likes_number"`
	CommentsNumber int        `db:"comments_number"`
	CreatedAt      time.Time  `db:"created_at"`
}

const postColumns = `post_id, author_id, title, text, attachments, likes_number, comments_number, created_at`

func (r postRow) model() models.Post {
	attachments := []string(r.Attachments)
	if attachments == nil {
		attachments = []string{}
	}
	return models.Post{
		ID:             r.ID,
		AuthorID:       r.AuthorID,
		Content:        models.PostContent{Title: r.Title, Text: r.Text, Attachments: attachments},
		LikesNumber:    r.LikesNumber,
		CommentsNumber: r.CommentsNumber,
		CreatedAt:      r.CreatedAt,
	}
}

func posts(rows []postRow) []models.Post {
	out := make([]models.Post, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.model())
	}
	return out
}

type commentRow struct {
	ID        string    `db:"comment_id"`
	AuthorID  string    `db:"author_id"`
	PostID    string    `db:"post_id"`
	Text      string    `db:"text"`
	CreatedAt time.Time `db:"created_at"`
	FirstName string    `db:"first_name"`
	LastName  string    `db:"last_name"`
	IsOnline  bool      `db:"is_online"`
}

type notificationRow struct {
	ID        string    `db:"notification_id"`
	UserID    string    `db:"user_id"`
	Text      string    `db:"text"`
	Read      bool      `db:"read"`
	CreatedAt time.Time `db:"created_at"`
}

// ---- users ----

func (q *queries) CreateUser(ctx context.Context, u *models.User) error {
	_, err := q.db.ExecContext(ctx, `
INSERT INTO users (id, email, password, first_name, last_name, birth_day, birth_month, birth_year,
                   gender, country, top_writer, is_online, profile_views, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		u.ID, u.Email, u.PasswordHash, u.Name.First, u.Name.Last,
		u.BirthDate.Day, u.BirthDate.Month, u.BirthDate.Year,
		u.Gender, u.Country, u.TopWriter, u.IsOnline, u.ProfileViews, u.CreatedAt)
	return translate(err)
}

func (q *queries) UserByID(ctx context.Context, id string) (*models.User, error) {
	var r userRow
	if err := sqlx.GetContext(ctx, q.db, &r, `SELECT `+userColumns+` FROM users WHERE id = $1`, id); err != nil {
		return nil, translate(err)
	}
	return r.model(), nil
}

func (q *queries) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var r userRow
	if err := sqlx.GetContext(ctx, q.db, &r, `SELECT `+userColumns+` FROM users WHERE email = $1`, email); err != nil {
		return nil, translate(err)
	}
	return r.model(), nil
}

func (q *queries) execOne(ctx context.Context, query string, args ...any) error {
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return translate(err)
	}
	n, err := affected(res)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (q *queries) UpdateUserName(ctx context.Context, id string, name models.Name) error {
	return q.execOne(ctx, `UPDATE users SET first_name = $2, last_name = $3 WHERE id = $1`, id, name.First, name.Last)
}

func (q *queries) UpdateUserPassword(ctx context.Context, id, hash string) error {
	return q.execOne(ctx, `UPDATE users SET password = $2 WHERE id = $1`, id, hash)
}

func (q *queries) SetUserOnline(ctx context.Context, id string, online bool) error {
	return q.execOne(ctx, `UPDATE users SET is_online = $2 WHERE id = $1`, id, online)
}

func (q *queries) IncrementProfileViews(ctx context.Context, id string) error {
	return q.execOne(ctx, `UPDATE users SET profile_views = profile_views + 1 WHERE id = $1`, id)
}

func (q *queries) DeleteUser(ctx context.Context, id string) error {
	return q.execOne(ctx, `DELETE FROM users WHERE id = $1`, id)
}

func (q *queries) SearchUsers(ctx context.Context, term string) ([]models.UserSummary, error) {
	var rows []summaryRow
	err := sqlx.SelectContext(ctx, q.db, &rows, `
SELECT id, first_name, last_name, is_online, top_writer
  FROM users
 WHERE to_tsvector('simple', first_name || ' ' || last_name) @@ websearch_to_tsquery('simple', $1)
 ORDER BY ts_rank(to_tsvector('simple', first_name || ' ' || last_name), websearch_to_tsquery('simple', $1)) DESC
 LIMIT 100`, term)
	if err != nil {
		return nil, translate(err)
	}
	return summaries(rows), nil
}

func (q *queries) UsersByCountry(ctx context.Context, country, excludeID string, limit int) ([]models.UserSummary, error) {
	var rows []summaryRow
	err := sqlx.SelectContext(ctx, q.db, &rows, `
SELECT id, first_name, last_name, is_online, top_writer
  FROM users
 WHERE country = $1 AND id <> $2
 ORDER BY random()
 LIMIT $3`, country, excludeID, limit)
	if err != nil {
		return nil, translate(err)
	}
	return summaries(rows), nil
}

// ---- follows ----

func (q *queries) FollowExists(ctx context.Context, followerID, followeeID string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, q.db, &exists,
		`SELECT EXISTS (SELECT 1 FROM follows WHERE follower_id = $1 AND followee_id = $2)`,
		followerID, followeeID)
	return exists, translate(err)
}

func (q *queries) CreateFollow(ctx context.Context, followerID, followeeID string) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO follows (follower_id, followee_id) VALUES ($1, $2)`, followerID, followeeID)
	return translate(err)
}

func (q *queries) DeleteFollow(ctx context.Context, followerID, followeeID string) (bool, error) {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM follows WHERE follower_id = $1 AND followee_id = $2`, followerID, followeeID)
	if err != nil {
		return false, translate(err)
	}
	n, err := affected(res)
	return n > 0, err
}

func (q *queries) DeleteFollowsOf(ctx context.Context, userID string) error {
	_, err := q.db.ExecContext(ctx,
		`DELETE FROM follows WHERE follower_id = $1 OR followee_id = $1`, userID)
	return translate(err)
}

func (q *queries) Followers(ctx context.Context, userID string) ([]models.UserSummary, error) {
	var rows []summaryRow
	err := sqlx.SelectContext(ctx, q.db, &rows, `
SELECT u.id, u.first_name, u.last_name, u.is_online, u.top_writer
  FROM follows f
  JOIN users u ON u.id = f.follower_id
 WHERE f.followee_id = $1
 ORDER BY f.created_at`, userID)
	if err != nil {
		return nil, translate(err)
	}
	return summaries(rows), nil
}

func (q *queries) Followees(ctx context.Context, userID string) ([]models.UserSummary, error) {
	var rows []summaryRow
	err := sqlx.SelectContext(ctx, q.db, &rows, `
SELECT u.id, u.first_name, u.last_name, u.is_online, u.top_writer
  FROM follows f
  JOIN users u ON u.id = f.followee_id
 WHERE f.follower_id = $1
 ORDER BY f.created_at`, userID)
	if err != nil {
		return nil, translate(err)
	}
	return summaries(rows), nil
}

// ---- posts ----

func (q *queries) CreatePost(ctx context.Context, p *models.Post) error {
	_, err := q.db.ExecContext(ctx, `
INSERT INTO posts (post_id, author_id, title, text, attachments, likes_number, comments_number, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		p.ID, p.AuthorID, p.Content.Title, p.Content.Text, stringList(p.Content.Attachments),
		p.LikesNumber, p.CommentsNumber, p.CreatedAt)
	return translate(err)
}

func (q *queries) PostByID(ctx context.Context, id string) (*models.Post, error) {
	var r postRow
	if err := sqlx.GetContext(ctx, q.db, &r, `SELECT `+postColumns+` FROM posts WHERE post_id = $1`, id); err != nil {
		return nil, translate(err)
	}
	p := r.model()
	return &p, nil
}

func (q *queries) PostsByAuthor(ctx context.Context, authorID string) ([]models.Post, error) {
	var rows []postRow
	err := sqlx.SelectContext(ctx, q.db, &rows,
		`SELECT `+postColumns+` FROM posts WHERE author_id = $1 ORDER BY created_at DESC`, authorID)
	if err != nil {
		return nil, translate(err)
	}
	return posts(rows), nil
}

func (q *queries) FeedPosts(ctx context.Context, followerID string, perAuthor int) ([]models.Post, error) {
	var rows []postRow
	err := sqlx.SelectContext(ctx, q.db, &rows, `
SELECT p.post_id, p.author_id, p.title, p.text, p.attachments, p.likes_number, p.comments_number, p.created_at
  FROM follows f
 CROSS JOIN LATERAL (
        SELECT *
          FROM posts
         WHERE author_id = f.followee_id
         ORDER BY random()
         LIMIT $2
       ) p
 WHERE f.follower_id = $1`, followerID, perAuthor)
	if err != nil {
		return nil, translate(err)
	}
	return posts(rows), nil
}

func (q *queries) SearchPosts(ctx context.Context, term string) ([]models.Post, error) {
	var rows []postRow
	err := sqlx.SelectContext(ctx, q.db, &rows, `
SELECT `+postColumns+`
  FROM posts
 WHERE to_tsvector('english', title || ' ' || text) @@ websearch_to_tsquery('english', $1)
 ORDER BY ts_rank(to_tsvector('english', title || ' ' || text), websearch_to_tsquery('english', $1)) DESC
 LIMIT 100`, term)
	if err != nil {
		return nil, translate(err)
	}
	return posts(rows), nil
}

func (q *queries) AdjustPostCounters(ctx context.Context, postID string, likes, comments int) error {
	return q.execOne(ctx, `
UPDATE posts
   SET likes_number    = GREATEST(likes_number + $2, 0),
       comments_number = GREATEST(comments_number + $3, 0)
 WHERE post_id = $1`, postID, likes, comments)
}

// DeletePost relies on ON DELETE CASCADE for likes, comments and reports.
func (q *queries) DeletePost(ctx context.Context, id string) error {
	return q.execOne(ctx, `DELETE FROM posts WHERE post_id = $1`, id)
}

func (q *queries) DeletePostsByAuthor(ctx context.Context, authorID string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM posts WHERE author_id = $1`, authorID)
	return translate(err)
}

// ---- likes ----

func (q *queries) LikeExists(ctx context.Context, postID, likerID string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, q.db, &exists,
		`SELECT EXISTS (SELECT 1 FROM posts_likes WHERE post_id = $1 AND liker_id = $2)`, postID, likerID)
	return exists, translate(err)
}

func (q *queries) CreateLike(ctx context.Context, postID, likerID string) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO posts_likes (post_id, liker_id) VALUES ($1, $2)`, postID, likerID)
	return translate(err)
}

func (q *queries) DeleteLike(ctx context.Context, postID, likerID string) (bool, error) {
	res, err := q.db.ExecContext(ctx,
		`DELETE FROM posts_likes WHERE post_id = $1 AND liker_id = $2`, postID, likerID)
	if err != nil {
		return false, translate(err)
	}
	n, err := affected(res)
	return n > 0, err
}

func (q *queries) CountLikes(ctx context.Context, postID string) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, q.db, &n, `SELECT COUNT(*) FROM posts_likes WHERE post_id = $1`, postID)
	return n, translate(err)
}

func (q *queries) DeleteLikesBy(ctx context.Context, likerID string) error {
	_, err := q.db.ExecContext(ctx, `
WITH removed AS (
    DELETE FROM posts_likes WHERE liker_id = $1 RETURNING post_id
)
UPDATE posts p
   SET likes_number = GREATEST(p.likes_number - r.n, 0)
  FROM (SELECT post_id, COUNT(*) AS n FROM removed GROUP BY post_id) r
 WHERE p.post_id = r.post_id`, likerID)
	return translate(err)
}

// ---- comments ----

func (q *queries) CreateComment(ctx context.Context, c *models.Comment) error {
	_, err := q.db.ExecContext(ctx, `
INSERT INTO comments (comment_id, author_id, post_id, text, created_at)
VALUES ($1, $2, $3, $4, $5)`, c.ID, c.AuthorID, c.PostID, c.Content.Text, c.CreatedAt)
	return translate(err)
}

func (q *queries) CommentsByPost(ctx context.Context, postID string) ([]models.CommentView, error) {
	var rows []commentRow
	err := sqlx.SelectContext(ctx, q.db, &rows, `
SELECT c.comment_id, c.author_id, c.post_id, c.text, c.created_at,
       u.first_name, u.last_name, u.is_online
  FROM comments c
  JOIN users u ON u.id = c.author_id
 WHERE c.post_id = $1
 ORDER BY c.created_at ASC`, postID)
	if err != nil {
		return nil, translate(err)
	}
	out := make([]models.CommentView, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.CommentView{
			Comment: models.Comment{
				ID:        r.ID,
				AuthorID:  r.AuthorID,
				PostID:    r.PostID,
				Content:   models.CommentContent{Text: r.Text},
				CreatedAt: r.CreatedAt,
			},
			AuthorName:     models.Name{First: r.FirstName, Last: r.LastName},
			AuthorIsOnline: r.IsOnline,
		})
	}
	return out, nil
}

func (q *queries) DeleteCommentsBy(ctx context.Context, authorID string) error {
	_, err := q.db.ExecContext(ctx, `
WITH removed AS (
    DELETE FROM comments WHERE author_id = $1 RETURNING post_id
)
UPDATE posts p
   SET comments_number = GREATEST(p.comments_number - r.n, 0)
  FROM (SELECT post_id, COUNT(*) AS n FROM removed GROUP BY post_id) r
 WHERE p.post_id = r.post_id`, authorID)
	return translate(err)
}

// ---- notifications ----

func (q *queries) CreateNotification(ctx context.Context, n *models.Notification) error {
	_, err := q.db.ExecContext(ctx, `
INSERT INTO notifications (notification_id, user_id, text, read, created_at)
VALUES ($1, $2, $3, $4, $5)`, n.ID, n.UserID, n.Text, n.Read, n.CreatedAt)
	return translate(err)
}

func (q *queries) NotificationsFor(ctx context.Context, userID string) ([]models.Notification, error) {
	var rows []notificationRow
	err := sqlx.SelectContext(ctx, q.db, &rows, `
SELECT notification_id, user_id, text, read, created_at
  FROM notifications
 WHERE user_id = $1
 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, translate(err)
	}
	out := make([]models.Notification, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.Notification(r))
	}
	return out, nil
}

func (q *queries) MarkAllNotificationsRead(ctx context.Context, userID string) (int64, error) {
	res, err := q.db.ExecContext(ctx,
		`UPDATE notifications SET read = TRUE WHERE user_id = $1 AND read = FALSE`, userID)
	if err != nil {
		return 0, translate(err)
	}
	return affected(res)
}

func (q *queries) DeleteNotificationsFor(ctx context.Context, userID string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM notifications WHERE user_id = $1`, userID)
	return translate(err)
}

// ---- reports ----

func (q *queries) CreateReport(ctx context.Context, r models.Report) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO reported_posts (reporter_id, post_id) VALUES ($1, $2)`, r.ReporterID, r.PostID)
	return translate(err)
}

func (q *queries) DeleteReportsBy(ctx context.Context, reporterID string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM reported_posts WHERE reporter_id = $1`, reporterID)
	return translate(err)
}

// ---- tokens ----

func (q *queries) SaveToken(ctx context.Context, token, userID string, expiresAt time.Time) error {
	_, err := q.db.ExecContext(ctx,
		`INSERT INTO tokens (token, user_id, expires_at) VALUES ($1, $2, $3)`, token, userID, expiresAt)
	return translate(err)
}

func (q *queries) TokenExists(ctx context.Context, token string) (bool, error) {
	var exists bool
	err := sqlx.GetContext(ctx, q.db, &exists, `SELECT EXISTS (SELECT 1 FROM tokens WHERE token = $1)`, token)
	return exists, translate(err)
}

func (q *queries) DeleteToken(ctx context.Context, token string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM tokens WHERE token = $1`, token)
	return translate(err)
}

func (q *queries) DeleteTokensFor(ctx context.Context, userID string) error {
	_, err := q.db.ExecContext(ctx, `DELETE FROM tokens WHERE user_id = $1`, userID)
	return translate(err)
}
