// Copyright (c) 2025-2026 Oleg Ivanchenko
// SPDX-License-Identifier: GPL-3.0-or-later

package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
)

// AdminSecret checks candidate passwords against the configured admin secret.
type AdminSecret struct {
	hash  string
	plain [32]byte
}

// NewAdminSecret accepts an argon2id hash or a plain-text secret.
func NewAdminSecret(configured string) (*AdminSecret, error) {
	if configured == "" {
		return nil, errors.New("auth: empty admin secret")
	}
	if IsHash(configured) {
		if _, err := decodeHash(configured); err != nil {
			return nil, err
		}
		return &AdminSecret{hash: configured}, nil
	}
	return &AdminSecret{plain: sha256.Sum256([]byte(configured))}, nil
}

// Verify reports whether candidate matches. Plain secrets are compared as
// SHA-256 digests so the comparison does not depend on length.
func (a *AdminSecret) Verify(candidate string) bool {
	if a.hash != "" {
		ok, err := CheckPassword(candidate, a.hash)
		return err == nil && ok
	}
	sum := sha256.Sum256([]byte(candidate))
	return subtle.ConstantTimeCompare(sum[:], a.plain[:]) == 1
}
