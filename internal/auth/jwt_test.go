// Relay - Real-Time Notification Delivery for Pharmacy Operations
// Copyright 2026 Pharmex Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/pharmex/relay

package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pharmex/relay/internal/config"
	"github.com/pharmex/relay/internal/models"
)

const testSecret = "0123456789abcdef0123456789abcdef"

func newTestManager(t *testing.T) *JWTManager {
	t.Helper()
	m, err := NewJWTManager(&config.SecurityConfig{JWTSecret: testSecret, SessionTimeout: time.Hour})
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestNewJWTManagerRejectsEmptySecret(t *testing.T) {
	if _, err := NewJWTManager(&config.SecurityConfig{}); err == nil {
		t.Fatal("NewJWTManager() accepted empty secret")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	m := newTestManager(t)
	want := models.Identity{UserID: "user-1", Role: models.RolePharmacist}

	token, err := m.GenerateToken(want)
	if err != nil {
		t.Fatalf("GenerateToken() error = %v", err)
	}
	got, err := m.VerifyToken(token)
	if err != nil {
		t.Fatalf("VerifyToken() error = %v", err)
	}
	if got != want {
		t.Errorf("identity = %+v, want %+v", got, want)
	}
}

func TestVerifyTokenRejections(t *testing.T) {
	m := newTestManager(t)

	sign := func(claims *Claims, method jwt.SigningMethod, secret interface{}) string {
		t.Helper()
		token, err := jwt.NewWithClaims(method, claims).SignedString(secret)
		if err != nil {
			t.Fatal(err)
		}
		return token
	}
	validWindow := jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		IssuedAt:  jwt.NewNumericDate(time.Now()),
	}

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", sign(&Claims{UserID: "u", Role: models.RoleAdmin, RegisteredClaims: validWindow},
			jwt.SigningMethodHS256, []byte("another-secret-another-secret-32"))},
		{"expired", sign(&Claims{UserID: "u", Role: models.RoleAdmin, RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
		}}, jwt.SigningMethodHS256, []byte(testSecret))},
		{"missing user", sign(&Claims{Role: models.RoleAdmin, RegisteredClaims: validWindow},
			jwt.SigningMethodHS256, []byte(testSecret))},
		{"unknown role", sign(&Claims{UserID: "u", Role: "superuser", RegisteredClaims: validWindow},
			jwt.SigningMethodHS256, []byte(testSecret))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.VerifyToken(tt.token)
			if err == nil {
				t.Fatal("VerifyToken() accepted invalid token")
			}
			if !errors.Is(err, ErrInvalidToken) {
				t.Errorf("error %v does not wrap ErrInvalidToken", err)
			}
		})
	}
}

func TestVerifyTokenRejectsNoneAlgorithm(t *testing.T) {
	m := newTestManager(t)
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
		UserID: "u", Role: models.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := m.VerifyToken(token); err == nil {
		t.Fatal("VerifyToken() accepted alg=none token")
	}
}
