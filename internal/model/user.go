package model

import (
	"errors"
	"time"
)

// User represents a registered author.
type User struct {
	ID             int64     `db:"id"`
	Username       string    `db:"username"`
	PasswordHashed string    `db:"password_hashed"`
	DisplayName    *string   `db:"display_name"`
	FollowerCount  int       `db:"follower_count"`
	FollowingCount int       `db:"following_count"`
	PostCount      int       `db:"post_count"`
	CreatedAt      time.Time `db:"created_at"`
	UpdatedAt      time.Time `db:"updated_at"`
}

// Name returns the display name, falling back to the username.
func (u *User) Name() string {
	if u.DisplayName != nil && *u.DisplayName != "" {
		return *u.DisplayName
	}
	return u.Username
}

// SignupForm is the data submitted on the sign-up page.
type SignupForm struct {
	Username        string
	DisplayName     string
	Password        string
	PasswordConfirm string
}

// LoginForm is the data submitted on the log-in page.
type LoginForm struct {
	Username string
	Password string
}

// Username and password constraints
const (
	MaxUsernameLength = 150
	MinPasswordLength = 8
)

var (
	// ErrUserNotFound is returned when a user cannot be found
	ErrUserNotFound = errors.New("user not found")

	// ErrUsernameExists is returned when attempting to create a user with a taken username
	ErrUsernameExists = errors.New("username already exists")

	// ErrInvalidCredentials is returned when login credentials are incorrect
	ErrInvalidCredentials = errors.New("invalid credentials")
)
