package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"yatube/internal/config"
	"yatube/internal/model"
)

// SessionCookieName is the cookie holding the signed access token.
const SessionCookieName = "access_token"

// ErrInvalidToken covers malformed, expired and wrongly signed tokens.
var ErrInvalidToken = errors.New("invalid session token")

// Session is what a valid token says about its bearer.
type Session struct {
	UserID   int64
	Username string
}

// AuthService issues and verifies the HS256 session tokens stored in the session cookie.
type AuthService struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

func NewAuthService(cfg *config.Config) *AuthService {
	return &AuthService{
		secret: []byte(cfg.JWTSecret),
		maxAge: time.Duration(cfg.AccessTokenMaxAge) * time.Second,
		now:    time.Now,
	}
}

// MaxAge is how long an issued token stays valid.
func (s *AuthService) MaxAge() time.Duration {
	return s.maxAge
}

func (s *AuthService) IssueToken(user *model.User) (string, error) {
	now := s.now()
	claims := jwt.MapClaims{
		"user_id":  user.ID,
		"username": user.Username,
		"exp":      now.Add(s.maxAge).Unix(),
		"iat":      now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (s *AuthService) ParseToken(tokenString string) (*Session, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	userIDFloat, ok := claims["user_id"].(float64)
	if !ok {
		return nil, ErrInvalidToken
	}
	username, _ := claims["username"].(string)

	return &Session{UserID: int64(userIDFloat), Username: username}, nil
}
