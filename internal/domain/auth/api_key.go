// Package auth validates admin API keys against configured hashes.
package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"

	"github.com/alexedwards/argon2id"
)

// ErrInvalidKey is returned when an API key matches no configured hash.
var ErrInvalidKey = errors.New("invalid api key")

// argon2idParams uses OWASP minimum parameters for Argon2id.
var argon2idParams = &argon2id.Params{
	Memory:      47 * 1024, // 47 MiB
	Iterations:  1,
	Parallelism: 1,
	SaltLength:  16,
	KeyLength:   32,
}

// HashKeySHA256 returns "sha256:<hex>" for the raw key. Kept for keys seeded
// from config where Argon2id hashing on every request would be too slow.
func HashKeySHA256(rawKey string) string {
	hash := sha256.Sum256([]byte(rawKey))
	return "sha256:" + hex.EncodeToString(hash[:])
}

// HashKeyArgon2id returns an Argon2id hash of the raw key in PHC format
// ($argon2id$v=19$...), including a random salt.
func HashKeyArgon2id(rawKey string) (string, error) {
	return argon2id.CreateHash(rawKey, argon2idParams)
}

// VerifyKey checks a raw key against a stored hash. Both "sha256:<hex>" and
// PHC-format Argon2id hashes are supported.
func VerifyKey(rawKey, storedHash string) (bool, error) {
	switch {
	case strings.HasPrefix(storedHash, "$argon2id$"):
		return argon2id.ComparePasswordAndHash(rawKey, storedHash)
	case strings.HasPrefix(storedHash, "sha256:"):
		want := strings.TrimPrefix(storedHash, "sha256:")
		hash := sha256.Sum256([]byte(rawKey))
		got := hex.EncodeToString(hash[:])
		return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1, nil
	default:
		return false, errors.New("unknown hash format")
	}
}

// Keyring holds the configured API keys and answers validation queries.
type Keyring struct {
	hashes map[string]string // key name -> stored hash
}

// NewKeyring builds a Keyring from name -> hash pairs.
func NewKeyring(hashes map[string]string) *Keyring {
	kr := &Keyring{hashes: make(map[string]string, len(hashes))}
	for name, h := range hashes {
		kr.hashes[name] = h
	}
	return kr
}

// Empty reports whether no keys are configured.
func (k *Keyring) Empty() bool {
	return len(k.hashes) == 0
}

// Validate returns the key name matching the raw key, or ErrInvalidKey.
func (k *Keyring) Validate(rawKey string) (string, error) {
	for name, stored := range k.hashes {
		match, err := VerifyKey(rawKey, stored)
		if err != nil {
			continue
		}
		if match {
			return name, nil
		}
	}
	return "", ErrInvalidKey
}
