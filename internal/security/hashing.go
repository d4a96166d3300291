package security

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/bcrypt"
)

// ErrPasswordMismatch is returned by Compare when the password does not match the hash.
var ErrPasswordMismatch = errors.New("password mismatch")

// ErrUnsupportedHash is returned by Compare for a hash in an unknown or corrupt format.
var ErrUnsupportedHash = errors.New("unsupported password hash")

const argon2idPrefix = "$argon2id$"

// Argon2idParams are the Argon2id cost parameters used for new hashes.
type Argon2idParams struct {
	MemoryKiB   uint32
	Iterations  uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultArgon2idParams returns interactive-login parameters (64 MiB, 3 passes).
func DefaultArgon2idParams() Argon2idParams {
	return Argon2idParams{MemoryKiB: 64 * 1024, Iterations: 3, Parallelism: 2, SaltLength: 16, KeyLength: 32}
}

// Hasher hashes and verifies passwords. New hashes use bcrypt unless the Hasher was built
// with NewArgon2idHasher; Compare accepts both formats so stored hashes keep working when
// the algorithm changes. Callers must not log or persist plaintext passwords.
type Hasher struct {
	Cost  int
	argon *Argon2idParams
}

// NewHasher returns a bcrypt Hasher with the given cost (4–31). Cost 12 is a
// reasonable default for interactive login.
func NewHasher(cost int) *Hasher {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	if cost > bcrypt.MaxCost {
		cost = bcrypt.MaxCost
	}
	return &Hasher{Cost: cost}
}

// NewArgon2idHasher returns a Hasher producing PHC-encoded Argon2id hashes. bcryptCost is kept
// for symmetry with NewHasher and only matters if the Hasher is later asked to hash with bcrypt.
func NewArgon2idHasher(p Argon2idParams, bcryptCost int) *Hasher {
	if p.Parallelism == 0 {
		p.Parallelism = 1
	}
	if p.Iterations == 0 {
		p.Iterations = 1
	}
	if p.MemoryKiB < 8*1024 {
		p.MemoryKiB = 8 * 1024
	}
	if p.SaltLength < 16 {
		p.SaltLength = 16
	}
	if p.KeyLength < 16 {
		p.KeyLength = 32
	}
	h := NewHasher(bcryptCost)
	h.argon = &p
	return h
}

// Algorithm returns "argon2id" or "bcrypt".
func (h *Hasher) Algorithm() string {
	if h.argon != nil {
		return "argon2id"
	}
	return "bcrypt"
}

// Hash produces a salted hash of password suitable for storage.
func (h *Hasher) Hash(password []byte) (string, error) {
	if h.argon != nil {
		return hashArgon2id(password, *h.argon)
	}
	b, err := bcrypt.GenerateFromPassword(password, h.Cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Compare verifies password against the stored hash in constant time. Returns nil on match,
// ErrPasswordMismatch on mismatch, ErrUnsupportedHash for an unreadable hash.
func (h *Hasher) Compare(hash string, password []byte) error {
	if strings.HasPrefix(hash, argon2idPrefix) {
		return compareArgon2id(hash, password)
	}
	err := bcrypt.CompareHashAndPassword([]byte(hash), password)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrPasswordMismatch
	default:
		return ErrUnsupportedHash
	}
}

func hashArgon2id(password []byte, p Argon2idParams) (string, error) {
	salt := make([]byte, p.SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey(password, salt, p.Iterations, p.MemoryKiB, p.Parallelism, p.KeyLength)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, p.MemoryKiB, p.Iterations, p.Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// maxArgon2MemoryKiB caps the memory a stored hash may demand during verification.
const maxArgon2MemoryKiB = 1024 * 1024

func compareArgon2id(encoded string, password []byte) error {
	// $argon2id$v=19$m=65536,t=3,p=2$<salt>$<hash>
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 {
		return ErrUnsupportedHash
	}
	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return ErrUnsupportedHash
	}
	var memory, iterations uint32
	var parallelism uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return ErrUnsupportedHash
	}
	if memory == 0 || memory > maxArgon2MemoryKiB || iterations == 0 || iterations > 64 || parallelism == 0 {
		return ErrUnsupportedHash
	}
	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil || len(salt) == 0 {
		return ErrUnsupportedHash
	}
	want, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil || len(want) < 16 {
		return ErrUnsupportedHash
	}
	got := argon2.IDKey(password, salt, iterations, memory, parallelism, uint32(len(want)))
	if subtle.ConstantTimeCompare(got, want) != 1 {
		return ErrPasswordMismatch
	}
	return nil
}

// NewHasherFor returns the Hasher for algorithm ("bcrypt" or "argon2id"). Argon2id uses
// DefaultArgon2idParams.
func NewHasherFor(algorithm string, bcryptCost int) (*Hasher, error) {
	switch algorithm {
	case "", "bcrypt":
		return NewHasher(bcryptCost), nil
	case "argon2id":
		return NewArgon2idHasher(DefaultArgon2idParams(), bcryptCost), nil
	}
	return nil, fmt.Errorf("unknown password hash algorithm %q", algorithm)
}
