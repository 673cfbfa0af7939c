// Package auth gates the back office: allow-listed admin emails log in with
// a bcrypt-checked password and receive an HS256 session token.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrInvalidToken       = errors.New("invalid or expired token")
	ErrNotAdmin           = errors.New("account is not an admin")
)

const issuer = "storefront"

type Claims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Session is the identity behind a verified token.
type Session struct {
	Email     string    `json:"email"`
	ExpiresAt time.Time `json:"expires_at"`
}

type Authenticator struct {
	secret    []byte
	ttl       time.Duration
	allowList map[string]struct{}
	passwords map[string]string
	now       func() time.Time
}

// New builds an authenticator. passwords maps admin email to bcrypt hash;
// only emails in allowList can hold a session.
func New(secret string, ttl time.Duration, allowList []string, passwords map[string]string) *Authenticator {
	a := &Authenticator{
		secret:    []byte(secret),
		ttl:       ttl,
		allowList: make(map[string]struct{}, len(allowList)),
		passwords: make(map[string]string, len(passwords)),
		now:       time.Now,
	}
	for _, e := range allowList {
		a.allowList[normalizeEmail(e)] = struct{}{}
	}
	for e, h := range passwords {
		a.passwords[normalizeEmail(e)] = h
	}
	return a
}

func normalizeEmail(e string) string {
	return strings.ToLower(strings.TrimSpace(e))
}

// IsAdmin reports whether email is on the allow-list.
func (a *Authenticator) IsAdmin(email string) bool {
	_, ok := a.allowList[normalizeEmail(email)]
	return ok
}

// Login checks credentials and issues a signed token.
func (a *Authenticator) Login(email, password string) (string, *Session, error) {
	email = normalizeEmail(email)
	hash, ok := a.passwords[email]
	if !ok || !a.IsAdmin(email) {
		return "", nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return "", nil, ErrInvalidCredentials
	}

	now := a.now()
	claims := &Claims{
		Email: email,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   email,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
	if err != nil {
		return "", nil, fmt.Errorf("sign token: %w", err)
	}
	return token, &Session{Email: email, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// CurrentSession verifies a token and re-checks the allow-list.
func (a *Authenticator) CurrentSession(token string) (*Session, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return a.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithTimeFunc(a.now),
	)
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	if !a.IsAdmin(claims.Email) {
		return nil, ErrNotAdmin
	}
	return &Session{Email: claims.Email, ExpiresAt: claims.ExpiresAt.Time}, nil
}

// HashPassword produces a bcrypt hash for the admin password config.
func HashPassword(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}
