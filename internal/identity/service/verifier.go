package service

import (
	"context"
	"crypto/rand"
	"errors"
	"log"

	"golang.org/x/sync/semaphore"

	"session-auth/backend/internal/security"
	userdomain "session-auth/backend/internal/user/domain"
)

// UserRepo is the minimal user repository needed by the credential verifier.
type UserRepo interface {
	GetByUsername(ctx context.Context, username string) (*userdomain.User, error)
}

// CredentialVerifier checks a username/password against the stored hash.
// Hash comparisons run under a weighted semaphore so a burst of logins cannot take every CPU.
type CredentialVerifier struct {
	users     UserRepo
	hasher    *security.Hasher
	sem       *semaphore.Weighted
	dummyHash string
}

// NewCredentialVerifier returns a verifier allowing at most concurrency parallel hash comparisons.
func NewCredentialVerifier(users UserRepo, hasher *security.Hasher, concurrency int) (*CredentialVerifier, error) {
	if users == nil || hasher == nil {
		return nil, errors.New("identity: user repo and hasher are required")
	}
	if concurrency < 1 {
		concurrency = 1
	}
	// Unknown users are compared against a throwaway hash so the response time matches a real miss.
	pw := make([]byte, 32)
	if _, err := rand.Read(pw); err != nil {
		return nil, err
	}
	dummy, err := hasher.Hash(pw)
	if err != nil {
		return nil, err
	}
	return &CredentialVerifier{
		users:     users,
		hasher:    hasher,
		sem:       semaphore.NewWeighted(int64(concurrency)),
		dummyHash: dummy,
	}, nil
}

// Verify returns the user when password matches. Errors: ErrUserNotFound, ErrInvalidCredentials,
// ErrUserInactive (only after a correct password), ErrPersistence, or the context error while
// waiting for a hashing slot.
func (v *CredentialVerifier) Verify(ctx context.Context, username, password string) (*userdomain.User, error) {
	user, err := v.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, persistenceErr(err)
	}
	if user == nil {
		if err := v.compare(ctx, v.dummyHash, password); err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrUserNotFound
	}
	if err := v.compare(ctx, user.PasswordHash, password); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		if errors.Is(err, security.ErrUnsupportedHash) {
			log.Printf("identity: unreadable password hash for user %s", user.ID)
		}
		return nil, ErrInvalidCredentials
	}
	if !user.Active {
		return nil, ErrUserInactive
	}
	return user, nil
}

func (v *CredentialVerifier) compare(ctx context.Context, hash, password string) error {
	if err := v.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer v.sem.Release(1)
	return v.hasher.Compare(hash, []byte(password))
}
