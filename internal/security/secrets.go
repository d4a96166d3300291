package security

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

// ErrInvalidSecret is returned when a signing secret is empty or unreadable.
var ErrInvalidSecret = errors.New("invalid secret")

const filePrefix = "file:"

// LoadSecret returns the secret bytes for s. s is either the inline secret or "file:<path>",
// in which case the file content is read and surrounding whitespace trimmed.
func LoadSecret(s string) ([]byte, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrInvalidSecret
	}
	if !strings.HasPrefix(s, filePrefix) {
		return []byte(s), nil
	}
	path := strings.TrimSpace(strings.TrimPrefix(s, filePrefix))
	if path == "" {
		return nil, ErrInvalidSecret
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, ErrInvalidSecret
	}
	return b, nil
}

// ProviderConfig describes a TokenProvider. Secrets are inline or "file:<path>".
type ProviderConfig struct {
	AccessSecret  string
	RefreshSecret string
	Issuer        string
	Audience      string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// NewTokenProviderFromConfig loads both secrets and builds the access and refresh codecs.
func NewTokenProviderFromConfig(cfg ProviderConfig) (*TokenProvider, error) {
	accessSecret, err := LoadSecret(cfg.AccessSecret)
	if err != nil {
		return nil, fmt.Errorf("access secret: %w", err)
	}
	refreshSecret, err := LoadSecret(cfg.RefreshSecret)
	if err != nil {
		return nil, fmt.Errorf("refresh secret: %w", err)
	}
	if bytes.Equal(accessSecret, refreshSecret) {
		return nil, fmt.Errorf("access and refresh secrets must differ: %w", ErrInvalidSecret)
	}
	access, err := NewCodec(CodecConfig{Class: ClassAccess, Secret: accessSecret, Issuer: cfg.Issuer, Audience: cfg.Audience})
	if err != nil {
		return nil, err
	}
	refresh, err := NewCodec(CodecConfig{Class: ClassRefresh, Secret: refreshSecret, Issuer: cfg.Issuer, Audience: cfg.Audience})
	if err != nil {
		return nil, err
	}
	return NewTokenProvider(access, refresh, cfg.AccessTTL, cfg.RefreshTTL)
}
