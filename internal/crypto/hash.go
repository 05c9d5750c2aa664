// Package crypto provides password hashing for the admin login.
package crypto

import (
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/scrypt"
)

// N=16384 (2^14), r=8, p=1 are recommended for interactive logins.
const (
	scryptN      = 16384
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32
)

// HashWithScrypt hashes an input string using scrypt with the given salt.
// The salt is lowercased before use. Returns hex-encoded hash.
func HashWithScrypt(input, salt string) (string, error) {
	saltBytes := []byte(strings.ToLower(salt))
	dk, err := scrypt.Key([]byte(input), saltBytes, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return "", fmt.Errorf("scrypt key derivation failed: %w", err)
	}
	return hex.EncodeToString(dk), nil
}

// VerifyPassword reports whether password hashes to expectedHex under salt.
// The comparison is constant time. An empty expected hash never matches.
func VerifyPassword(password, salt, expectedHex string) (bool, error) {
	if expectedHex == "" {
		return false, nil
	}
	got, err := HashWithScrypt(password, salt)
	if err != nil {
		return false, err
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(strings.ToLower(expectedHex))) == 1, nil
}
