package security

import (
	"crypto/rand"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/oklog/ulid/v2"
)

var (
	// ErrTokenMalformed is returned when a token cannot be decoded or lacks a required claim.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrTokenSignatureInvalid is returned when the signature or signing method does not verify.
	ErrTokenSignatureInvalid = errors.New("token signature invalid")
	// ErrTokenExpired is returned for an authentic token past its exp. Callers treat it as routine.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenPairMismatch is returned when an access/refresh pair was not minted together.
	ErrTokenPairMismatch = errors.New("token pair mismatch")
)

// TokenClass distinguishes access tokens from refresh tokens. It is carried in the typ claim.
type TokenClass string

const (
	ClassAccess  TokenClass = "access"
	ClassRefresh TokenClass = "refresh"
)

// UserInfo is the identity block embedded in every token. Roles are carried opaquely.
type UserInfo struct {
	UserID   string   `json:"userId"`
	Username string   `json:"username"`
	Roles    []string `json:"roles"`
}

// Claims is the fixed claim set of both token classes. RegisteredClaims.ID is the token identifier (jti)
// shared by an access/refresh pair.
type Claims struct {
	UserInfo  UserInfo   `json:"userInfo"`
	SessionID string     `json:"sessionId"`
	Class     TokenClass `json:"typ"`
	jwt.RegisteredClaims
}

// TokenID returns the jti.
func (c *Claims) TokenID() string { return c.ID }

// CodecConfig configures a Codec. Secret must be non-empty; Now defaults to time.Now.
type CodecConfig struct {
	Class    TokenClass
	Secret   []byte
	Issuer   string
	Audience string
	Leeway   time.Duration
	Now      func() time.Time
}

// Codec signs and verifies one class of token with its own HS256 secret.
type Codec struct {
	class    TokenClass
	secret   []byte
	issuer   string
	audience string
	leeway   time.Duration
	now      func() time.Time
}

// NewCodec returns a Codec for cfg.Class.
func NewCodec(cfg CodecConfig) (*Codec, error) {
	if cfg.Class != ClassAccess && cfg.Class != ClassRefresh {
		return nil, errors.New("unsupported token class")
	}
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token secret is required")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)
	return &Codec{
		class:    cfg.Class,
		secret:   secret,
		issuer:   cfg.Issuer,
		audience: cfg.Audience,
		leeway:   cfg.Leeway,
		now:      now,
	}, nil
}

// Class returns the token class this codec issues and accepts.
func (c *Codec) Class() TokenClass { return c.class }

// Issue signs claims with iat = now, exp = now + ttl and jti = tokenID.
// Registered claims already present on claims are replaced.
func (c *Codec) Issue(claims Claims, ttl time.Duration, tokenID string) (string, time.Time, error) {
	if ttl <= 0 {
		return "", time.Time{}, errors.New("token ttl must be positive")
	}
	if tokenID == "" {
		return "", time.Time{}, errors.New("token id is required")
	}
	now := c.now().UTC()
	expiresAt := now.Add(ttl)
	claims.Class = c.class
	claims.RegisteredClaims = jwt.RegisteredClaims{
		ID:        tokenID,
		Subject:   claims.UserInfo.UserID,
		Issuer:    c.issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	if c.audience != "" {
		claims.Audience = jwt.ClaimStrings{c.audience}
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

// Verify parses and validates tokenString (signature, alg, exp, iat, iss, aud, required claims).
// For an authentic but expired token it returns the claims together with ErrTokenExpired;
// for every other failure the claims are nil.
func (c *Codec) Verify(tokenString string) (*Claims, error) {
	tokenString = strings.TrimSpace(tokenString)
	if tokenString == "" {
		return nil, ErrTokenMalformed
	}
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(c.now),
	}
	if c.leeway > 0 {
		options = append(options, jwt.WithLeeway(c.leeway))
	}
	if c.issuer != "" {
		options = append(options, jwt.WithIssuer(c.issuer))
	}
	if c.audience != "" {
		options = append(options, jwt.WithAudience(c.audience))
	}

	claims := &Claims{}
	_, err := jwt.NewParser(options...).ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenMalformed):
			return nil, ErrTokenMalformed
		case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
			return nil, ErrTokenSignatureInvalid
		case errors.Is(err, jwt.ErrTokenExpired) && onlyExpired(err):
			if reqErr := c.checkRequired(claims); reqErr != nil {
				return nil, reqErr
			}
			return claims, ErrTokenExpired
		default:
			return nil, ErrTokenMalformed
		}
	}
	if err := c.checkRequired(claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// onlyExpired reports whether exp is the sole failed claim check. The validator joins every
// failed check, so an expired token with a foreign issuer is still rejected as malformed.
func onlyExpired(err error) bool {
	for _, other := range []error{
		jwt.ErrTokenInvalidIssuer,
		jwt.ErrTokenInvalidAudience,
		jwt.ErrTokenUsedBeforeIssued,
		jwt.ErrTokenNotValidYet,
		jwt.ErrTokenRequiredClaimMissing,
	} {
		if errors.Is(err, other) {
			return false
		}
	}
	return true
}

func (c *Codec) checkRequired(claims *Claims) error {
	switch {
	case claims.UserInfo.UserID == "",
		claims.UserInfo.Username == "",
		claims.SessionID == "",
		claims.ID == "",
		claims.IssuedAt == nil,
		claims.ExpiresAt == nil:
		return ErrTokenMalformed
	case claims.Class != c.class:
		return ErrTokenMalformed
	}
	return nil
}

// NewTokenID returns a fresh ULID for use as a jti.
func NewTokenID() (string, error) {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// TokenPair is an access/refresh pair minted together under one token id.
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	TokenID          string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// TokenProvider issues and validates access/refresh pairs using two independent codecs,
// so a leaked secret of one class cannot forge the other.
type TokenProvider struct {
	access     *Codec
	refresh    *Codec
	accessTTL  time.Duration
	refreshTTL time.Duration
}

// NewTokenProvider returns a TokenProvider. access and refresh must be codecs of the matching class.
func NewTokenProvider(access, refresh *Codec, accessTTL, refreshTTL time.Duration) (*TokenProvider, error) {
	if access == nil || refresh == nil {
		return nil, errors.New("both token codecs are required")
	}
	if access.Class() != ClassAccess || refresh.Class() != ClassRefresh {
		return nil, errors.New("token codec classes do not match")
	}
	if accessTTL <= 0 || refreshTTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	return &TokenProvider{access: access, refresh: refresh, accessTTL: accessTTL, refreshTTL: refreshTTL}, nil
}

// IssuePair mints an access and a refresh token sharing tokenID and sessionID.
func (p *TokenProvider) IssuePair(info UserInfo, sessionID, tokenID string) (*TokenPair, error) {
	claims := Claims{UserInfo: info, SessionID: sessionID}
	access, accessExp, err := p.access.Issue(claims, p.accessTTL, tokenID)
	if err != nil {
		return nil, err
	}
	refresh, refreshExp, err := p.refresh.Issue(claims, p.refreshTTL, tokenID)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		TokenID:          tokenID,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// ValidateAccess verifies an access token strictly (expiry included).
func (p *TokenProvider) ValidateAccess(token string) (*Claims, error) {
	return p.access.Verify(token)
}

// ValidateRefresh verifies a refresh token strictly (expiry included).
func (p *TokenProvider) ValidateRefresh(token string) (*Claims, error) {
	return p.refresh.Verify(token)
}

// ValidatePair verifies both tokens for a refresh. The access token may be expired but must be
// authentic; the refresh token must be fully valid. The two must share user, session and jti.
func (p *TokenProvider) ValidatePair(accessToken, refreshToken string) (access, refresh *Claims, err error) {
	return p.validatePair(accessToken, refreshToken, false)
}

// ValidatePairForLogout is ValidatePair with expiry tolerated on both tokens, so an expired
// pair can still be deny-listed.
func (p *TokenProvider) ValidatePairForLogout(accessToken, refreshToken string) (access, refresh *Claims, err error) {
	return p.validatePair(accessToken, refreshToken, true)
}

func (p *TokenProvider) validatePair(accessToken, refreshToken string, refreshMayBeExpired bool) (*Claims, *Claims, error) {
	access, err := p.access.Verify(accessToken)
	if err != nil && !errors.Is(err, ErrTokenExpired) {
		return nil, nil, err
	}
	refresh, err := p.refresh.Verify(refreshToken)
	if err != nil && !(refreshMayBeExpired && errors.Is(err, ErrTokenExpired)) {
		return nil, nil, err
	}
	if err := MatchPair(access, refresh); err != nil {
		return nil, nil, err
	}
	return access, refresh, nil
}

// MatchPair checks that access and refresh were minted together: same user, session and jti.
func MatchPair(access, refresh *Claims) error {
	if access == nil || refresh == nil {
		return ErrTokenPairMismatch
	}
	if access.Class != ClassAccess || refresh.Class != ClassRefresh {
		return ErrTokenPairMismatch
	}
	if access.SessionID != refresh.SessionID ||
		access.ID != refresh.ID ||
		access.UserInfo.UserID != refresh.UserInfo.UserID {
		return ErrTokenPairMismatch
	}
	return nil
}
