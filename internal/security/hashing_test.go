package security

import (
	"errors"
	"strings"
	"testing"
)

func TestHasher_HashAndCompare(t *testing.T) {
	h := NewHasher(10)
	password := []byte("secret123")
	hash, err := h.Hash(password)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "" {
		t.Fatal("Hash returned empty")
	}
	if err := h.Compare(hash, password); err != nil {
		t.Fatalf("Compare: %v", err)
	}
}

func TestHasher_CompareWrongPassword(t *testing.T) {
	h := NewHasher(10)
	hash, _ := h.Hash([]byte("secret123"))
	if err := h.Compare(hash, []byte("wrong")); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("Compare with wrong password: want ErrPasswordMismatch, got %v", err)
	}
}

func TestHasher_Cost(t *testing.T) {
	h := NewHasher(12)
	if h.Cost != 12 {
		t.Errorf("Cost want 12, got %d", h.Cost)
	}
	h0 := NewHasher(0)
	if h0.Cost < 4 {
		t.Errorf("zero cost should be clamped to at least MinCost, got %d", h0.Cost)
	}
	if h.Algorithm() != "bcrypt" {
		t.Errorf("Algorithm = %q, want bcrypt", h.Algorithm())
	}
}

func testArgon2Params() Argon2idParams {
	return Argon2idParams{MemoryKiB: 8 * 1024, Iterations: 1, Parallelism: 1, SaltLength: 16, KeyLength: 32}
}

func TestArgon2idHasher_HashAndCompare(t *testing.T) {
	h := NewArgon2idHasher(testArgon2Params(), 4)
	if h.Algorithm() != "argon2id" {
		t.Errorf("Algorithm = %q, want argon2id", h.Algorithm())
	}
	hash, err := h.Hash([]byte("correct-pw"))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$v=19$m=8192,t=1,p=1$") {
		t.Fatalf("unexpected PHC encoding: %s", hash)
	}
	if err := h.Compare(hash, []byte("correct-pw")); err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if err := h.Compare(hash, []byte("wrong")); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("Compare wrong: want ErrPasswordMismatch, got %v", err)
	}
}

func TestArgon2idHasher_SaltedHashesDiffer(t *testing.T) {
	h := NewArgon2idHasher(testArgon2Params(), 4)
	a, _ := h.Hash([]byte("same"))
	b, _ := h.Hash([]byte("same"))
	if a == b {
		t.Fatal("two hashes of the same password should differ")
	}
}

func TestHasher_CompareAcrossAlgorithms(t *testing.T) {
	bc := NewHasher(4)
	ar := NewArgon2idHasher(testArgon2Params(), 4)
	bcHash, _ := bc.Hash([]byte("pw"))
	arHash, _ := ar.Hash([]byte("pw"))

	if err := ar.Compare(bcHash, []byte("pw")); err != nil {
		t.Errorf("argon2id hasher should verify bcrypt hash: %v", err)
	}
	if err := bc.Compare(arHash, []byte("pw")); err != nil {
		t.Errorf("bcrypt hasher should verify argon2id hash: %v", err)
	}
}

func TestHasher_CompareUnsupported(t *testing.T) {
	h := NewHasher(4)
	for _, hash := range []string{
		"",
		"plaintext",
		"$argon2id$v=19$m=8192,t=1,p=1$bad",
		"$argon2id$v=18$m=8192,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
		"$argon2id$v=19$m=99999999,t=1,p=1$c2FsdHNhbHRzYWx0c2FsdA$aGFzaGhhc2hoYXNoaGFzaA",
	} {
		if err := h.Compare(hash, []byte("pw")); !errors.Is(err, ErrUnsupportedHash) {
			t.Errorf("Compare(%q): want ErrUnsupportedHash, got %v", hash, err)
		}
	}
}

func TestNewHasherFor(t *testing.T) {
	for alg, want := range map[string]string{"": "bcrypt", "bcrypt": "bcrypt", "argon2id": "argon2id"} {
		h, err := NewHasherFor(alg, 4)
		if err != nil {
			t.Fatalf("NewHasherFor(%q): %v", alg, err)
		}
		if h.Algorithm() != want {
			t.Errorf("NewHasherFor(%q).Algorithm() = %q, want %q", alg, h.Algorithm(), want)
		}
	}
	if _, err := NewHasherFor("md5", 4); err == nil {
		t.Error("unknown algorithm should fail")
	}
}
