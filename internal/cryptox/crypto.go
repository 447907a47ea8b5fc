// Package cryptox derives and checks password hashes for stored credentials.
package cryptox

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/teadiary/internal/common"
	"golang.org/x/crypto/argon2"
)

// HashPrefix marks a credential produced by HashCredential.
const HashPrefix = "argon2id$"

var ErrMalformedHash = errors.New("malformed credential hash")

// DeriveKey stretches password with salt using argon2id.
func DeriveKey(password []byte, salt []byte) []byte {
	return argon2.IDKey(password, salt, 1, 64*1024, 4, 32)
}

// MakeVerifier hashes a derived key once more so the key itself is never stored.
func MakeVerifier(key []byte) []byte {
	hash := sha256.Sum256(key)
	return hash[:]
}

// HashCredential returns "argon2id$<salt>$<verifier>" with both parts in
// unpadded base64.
func HashCredential(password []byte) string {
	salt := common.GenerateRandByteArray(16)
	verifier := MakeVerifier(DeriveKey(password, salt))
	return HashPrefix +
		base64.RawStdEncoding.EncodeToString(salt) + "$" +
		base64.RawStdEncoding.EncodeToString(verifier)
}

// IsHashed reports whether stored looks like a HashCredential value.
func IsHashed(stored string) bool {
	return strings.HasPrefix(stored, HashPrefix)
}

// VerifyCredential checks password against a HashCredential value in
// constant time.
func VerifyCredential(stored string, password []byte) (bool, error) {
	parts := strings.Split(strings.TrimPrefix(stored, HashPrefix), "$")
	if !IsHashed(stored) || len(parts) != 2 {
		return false, ErrMalformedHash
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[0])
	if err != nil {
		return false, fmt.Errorf("%w: salt: %v", ErrMalformedHash, err)
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[1])
	if err != nil {
		return false, fmt.Errorf("%w: verifier: %v", ErrMalformedHash, err)
	}

	got := MakeVerifier(DeriveKey(password, salt))
	return subtle.ConstantTimeCompare(want, got) == 1, nil
}
