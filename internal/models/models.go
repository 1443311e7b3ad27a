package models

import "time"

type Name struct {
	First string `json:"first" validate:"required,max=100"`
	Last  string `json:"last" validate:"required,max=100"`
}

type BirthDate struct {
	Day   int `json:"day" validate:"required"`
	Month int `json:"month" validate:"required"`
	Year  int `json:"year" validate:"required"`
}

type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         Name      `json:"name"`
	BirthDate    BirthDate `json:"birthDate"`
	Gender       string    `json:"gender"`
	Country      string    `json:"country"`
	TopWriter    bool      `json:"topWriter"`
	IsOnline     bool      `json:"isOnline"`
	ProfileViews int       `json:"profileViews"`
	CreatedAt    time.Time `json:"createdAt"`
}

// UserSummary is the public projection used by listings and search.
type UserSummary struct {
	ID        string `json:"id"`
	Name      Name   `json:"name"`
	IsOnline  bool   `json:"isOnline"`
	TopWriter bool   `json:"topWriter"`
}

type Profile struct {
	ID           string    `json:"id"`
	Name         Name      `json:"name"`
	BirthDate    BirthDate `json:"birthDate"`
	Country      string    `json:"country"`
	IsOnline     bool      `json:"isOnline"`
	TopWriter    bool      `json:"topWriter"`
	ProfileViews int       `json:"profileViews"`
}

func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, IsOnline: u.IsOnline, TopWriter: u.TopWriter}
}

func (u User) Profile() Profile {
	return Profile{
		ID:           u.ID,
		Name:         u.Name,
		BirthDate:    u.BirthDate,
		Country:      u.Country,
		IsOnline:     u.IsOnline,
		TopWriter:    u.TopWriter,
		ProfileViews: u.ProfileViews,
	}
}

type PostContent struct {
	Title       string   `json:"title" validate:"required,max=300"`
	Text        string   `json:"text" validate:"required"`
	Attachments []string `json:"attachments"`
}

type Post struct {
	ID             string      `json:"postId"`
	AuthorID       string      `json:"authorId"`
	Content        PostContent `json:"content"`
	LikesNumber    int         `json:"likesNumber"`
	CommentsNumber int         `json:"commentsNumber"`
	// LikedByUser is computed per viewer and never stored.
	LikedByUser bool      `json:"likedByUser"`
	CreatedAt   time.Time `json:"createdAt"`
}

type CommentContent struct {
	Text string `json:"text" validate:"required"`
}

type Comment struct {
	ID        string         `json:"commentId"`
	AuthorID  string         `json:"authorId"`
	PostID    string         `json:"postId"`
	Content   CommentContent `json:"content"`
	CreatedAt time.Time      `json:"createdAt"`
}

// CommentView is a comment joined with its author.
type CommentView struct {
	Comment
	AuthorName     Name `json:"name"`
	AuthorIsOnline bool `json:"isOnline"`
}

type Notification struct {
	ID        string    `json:"notificationId"`
	UserID    string    `json:"userId"`
	Text      string    `json:"text"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

type NotificationList struct {
	Unread        int            `json:"unread"`
	Notifications []Notification `json:"notifications"`
}

type Follow struct {
	FollowerID string
	FolloweeID string
}

type Like struct {
	PostID  string
	LikerID string
}

type Report struct {
	ReporterID string
	PostID     string
}
