// Package auth verifies the identity credential presented at connection
// time. Minting credentials (the login flow) happens in an external service;
// this package only asserts that a presented token is genuine and extracts
// the identity bound to it.
package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Identity is the verified (user id, username, avatar) tuple a connection is
// bound to.
type Identity struct {
	UserID    string
	Username  string
	AvatarURL string
}

// Verifier asserts a raw credential and returns the identity it encodes.
type Verifier interface {
	Verify(credential string) (Identity, error)
}

// JWTVerifier validates HS256 tokens carrying id/username/avatarUrl claims,
// the shape the login service issues into the `token` cookie.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier returns a verifier for tokens signed with the given secret.
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// Verify parses and validates the token and extracts the identity claims.
func (v *JWTVerifier) Verify(credential string) (Identity, error) {
	token, err := jwt.Parse(credential, func(t *jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Identity{}, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Identity{}, fmt.Errorf("unexpected claims type %T", token.Claims)
	}

	id, _ := claims["id"].(string)
	username, _ := claims["username"].(string)
	if id == "" || username == "" {
		return Identity{}, fmt.Errorf("token missing identity claims")
	}
	avatar, _ := claims["avatarUrl"].(string)

	return Identity{UserID: id, Username: username, AvatarURL: avatar}, nil
}

// Sign mints a token for the given identity, valid for ttl. Used by tests
// and local tooling; production tokens come from the login service.
func (v *JWTVerifier) Sign(identity Identity, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"id":       identity.UserID,
		"username": identity.Username,
		"iat":      now.Unix(),
		"exp":      now.Add(ttl).Unix(),
	}
	if identity.AvatarURL != "" {
		claims["avatarUrl"] = identity.AvatarURL
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
