// Package auth is the credential service: account registration, login, and
// bearer-token validation. The synchronization core takes no dependency on
// it beyond the username string a client supplies at join time.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/Tejasvjadhav2004/Codify-Real-Time-Collaborative-Coding-Platform/internal/db"
)

const bcryptCost = 10

var (
	ErrUserExists     = errors.New("user already exists")
	ErrUnknownUser    = errors.New("user does not exist")
	ErrBadCredentials = errors.New("incorrect password")
	ErrInvalidToken   = errors.New("invalid token")
)

// Claims carried in every issued token
type Claims struct {
	Username string `json:"username"`
	UserID   int64  `json:"id"`
	jwt.RegisteredClaims
}

type Service struct {
	database *db.Database
	secret   []byte
	tokenTTL time.Duration
}

func New(database *db.Database, secret string, tokenTTL time.Duration) *Service {
	return &Service{
		database: database,
		secret:   []byte(secret),
		tokenTTL: tokenTTL,
	}
}

// Register creates a new account with a bcrypt-hashed password
func (s *Service) Register(username, email, password string) error {
	existing, err := s.database.GetUserByEmail(email)
	if err != nil {
		return fmt.Errorf("lookup user: %w", err)
	}
	if existing != nil {
		return ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if _, err := s.database.CreateUser(username, email, string(hash)); err != nil {
		// The username may collide even when the email did not
		return ErrUserExists
	}
	return nil
}

// Login verifies the credentials and returns a signed bearer token. The
// identifier may be either the username or the email.
func (s *Service) Login(identifier, password string) (string, error) {
	user, err := s.database.GetUserByUsernameOrEmail(identifier)
	if err != nil {
		return "", fmt.Errorf("lookup user: %w", err)
	}
	if user == nil {
		return "", ErrUnknownUser
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return "", ErrBadCredentials
	}

	now := time.Now()
	claims := Claims{
		Username: user.Username,
		UserID:   user.ID,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(s.tokenTTL)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// ValidateToken parses and verifies a bearer token
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
