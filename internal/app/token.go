package app

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"kuex/internal/domain"
)

// Tokens issues and verifies HS256 session tokens carrying the user identity.
type Tokens struct {
	secret []byte
	ttl    time.Duration
}

func NewTokens(secret string, ttl time.Duration) *Tokens {
	return &Tokens{secret: []byte(secret), ttl: ttl}
}

func (t *Tokens) Issue(userID, email string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"userId": userID,
		"email":  email,
		"iat":    now.Unix(),
		"exp":    now.Add(t.ttl).Unix(),
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Verify returns the user id carried by a valid token.
func (t *Tokens) Verify(raw string) (string, error) {
	tok, err := jwt.Parse(raw, func(tk *jwt.Token) (any, error) {
		if _, ok := tk.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", tk.Header["alg"])
		}
		return t.secret, nil
	})
	if err != nil || !tok.Valid {
		return "", domain.ErrInvalidToken
	}
	claims, ok := tok.Claims.(jwt.MapClaims)
	if !ok {
		return "", domain.ErrInvalidToken
	}
	userID, _ := claims["userId"].(string)
	if userID == "" {
		return "", domain.ErrInvalidToken
	}
	return userID, nil
}
