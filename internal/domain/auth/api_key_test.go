package auth

import (
	"errors"
	"strings"
	"testing"
)

func TestVerifyKeySHA256(t *testing.T) {
	t.Parallel()

	hash := HashKeySHA256("hunter2")
	if !strings.HasPrefix(hash, "sha256:") {
		t.Fatalf("unexpected hash format: %s", hash)
	}

	ok, err := VerifyKey("hunter2", hash)
	if err != nil || !ok {
		t.Errorf("expected match, got ok=%v err=%v", ok, err)
	}
	ok, err = VerifyKey("hunter3", hash)
	if err != nil || ok {
		t.Errorf("expected mismatch, got ok=%v err=%v", ok, err)
	}
}

func TestVerifyKeyArgon2id(t *testing.T) {
	t.Parallel()

	hash, err := HashKeyArgon2id("hunter2")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Fatalf("expected PHC format, got %s", hash)
	}

	ok, err := VerifyKey("hunter2", hash)
	if err != nil || !ok {
		t.Errorf("expected match, got ok=%v err=%v", ok, err)
	}
	ok, err = VerifyKey("wrong", hash)
	if err != nil || ok {
		t.Errorf("expected mismatch, got ok=%v err=%v", ok, err)
	}
}

func TestVerifyKeyUnknownFormat(t *testing.T) {
	t.Parallel()

	if _, err := VerifyKey("x", "md5:abcdef"); err == nil {
		t.Error("expected error for unknown hash format")
	}
}

func TestKeyringValidate(t *testing.T) {
	t.Parallel()

	kr := NewKeyring(map[string]string{
		"ci":    HashKeySHA256("ci-key"),
		"admin": HashKeySHA256("admin-key"),
	})
	if kr.Empty() {
		t.Fatal("keyring should not be empty")
	}

	name, err := kr.Validate("admin-key")
	if err != nil || name != "admin" {
		t.Errorf("expected admin, got %q err=%v", name, err)
	}
	if _, err := kr.Validate("nope"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
}

func TestKeyringEmpty(t *testing.T) {
	t.Parallel()

	kr := NewKeyring(nil)
	if !kr.Empty() {
		t.Error("nil keyring should be empty")
	}
	if _, err := kr.Validate("anything"); !errors.Is(err, ErrInvalidKey) {
		t.Errorf("expected ErrInvalidKey, got %v", err)
	}
}
