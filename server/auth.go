// Copyright (C) 2025 Thinline Dynamic Solutions
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>

package main

import (
	"crypto/rand"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"golang.org/x/crypto/bcrypt"
)

// Sessions tokens expire well after any realistic live session
const sessionTokenLifetime = 12 * time.Hour

// Auth issues and verifies signed session tokens and checks the
// optional upload API password
type Auth struct {
	config     *Config
	signingKey []byte
}

// NewAuth creates an authenticator with an ephemeral signing key.
// Tokens do not survive a restart; live sessions don't either.
func NewAuth(config *Config) *Auth {
	key := make([]byte, 32)
	rand.Read(key)
	return &Auth{config: config, signingKey: key}
}

// GenerateSessionToken returns a signed token bound to one session id
func (auth *Auth) GenerateSessionToken(sessionId string) (string, error) {
	claims := jwt.RegisteredClaims{
		Subject:   sessionId,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(sessionTokenLifetime)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(auth.signingKey)
}

// VerifySessionToken checks a token and that it belongs to sessionId
func (auth *Auth) VerifySessionToken(tokenString string, sessionId string) error {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return auth.signingKey, nil
	})
	if err != nil {
		return fmt.Errorf("invalid session token: %v", err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return fmt.Errorf("invalid session token")
	}

	if claims.Subject != sessionId {
		return fmt.Errorf("session token does not match session id")
	}

	return nil
}

// CheckPassword verifies the upload API password against the stored
// bcrypt hash. With no hash configured the API is open.
func (auth *Auth) CheckPassword(password string) bool {
	if auth.config.PasswordHash == "" {
		return true
	}
	return bcrypt.CompareHashAndPassword([]byte(auth.config.PasswordHash), []byte(password)) == nil
}

// HashPassword produces a bcrypt hash for storage in the config file
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}
