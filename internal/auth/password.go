/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package auth

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is returned when a login attempt fails.
// Callers must not distinguish unknown user from wrong password.
var ErrInvalidCredentials = errors.New("invalid credentials")

// HashPassword produces a bcrypt hash suitable for the admin password env var.
func HashPassword(password string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyAdminLogin checks the supplied credentials against the configured
// admin account and returns admin claims on success.
func VerifyAdminLogin(adminUser, adminHash, user, password string) (*Claims, error) {
	if adminHash == "" || user != adminUser {
		return nil, ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(adminHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return &Claims{
		UserID: adminUser,
		Roles:  []string{"admin"},
	}, nil
}
