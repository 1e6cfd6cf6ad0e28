package auth

import (
	"crypto/ed25519"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/roach88/vesting/internal/ir"
)

// Defaults used when Config leaves a field empty.
const (
	DefaultIssuer   = "vesting-cli"
	DefaultAudience = "vesting"
	DefaultTTL      = time.Minute
)

// Config is shared by Signer and Verifier.
type Config struct {
	Issuer   string
	Audience string
	TTL      time.Duration
	Now      func() time.Time
}

func (c Config) withDefaults() Config {
	if strings.TrimSpace(c.Issuer) == "" {
		c.Issuer = DefaultIssuer
	}
	if strings.TrimSpace(c.Audience) == "" {
		c.Audience = DefaultAudience
	}
	if c.TTL <= 0 {
		c.TTL = DefaultTTL
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// Signer issues caller tokens for one key.
type Signer struct {
	key ed25519.PrivateKey
	cfg Config
}

// NewSigner creates a Signer for key.
func NewSigner(key ed25519.PrivateKey, cfg Config) (*Signer, error) {
	if len(key) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("signer: key must be %d bytes", ed25519.PrivateKeySize)
	}
	return &Signer{key: key, cfg: cfg.withDefaults()}, nil
}

// Identity returns the identity tokens from s assert.
func (s *Signer) Identity() ir.Address {
	return IdentityOf(s.key.Public().(ed25519.PublicKey))
}

// Sign returns a fresh token.
func (s *Signer) Sign() (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("sign: token id: %w", err)
	}
	now := s.cfg.Now().UTC()
	claims := jwt.RegisteredClaims{
		Issuer:    s.cfg.Issuer,
		Subject:   string(s.Identity()),
		Audience:  jwt.ClaimStrings{s.cfg.Audience},
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(s.cfg.TTL)),
		ID:        id.String(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodEdDSA, claims).SignedString(s.key)
	if err != nil {
		return "", fmt.Errorf("sign: %w", err)
	}
	return token, nil
}

// Verifier turns tokens into callers.
type Verifier struct {
	cfg Config
}

// NewVerifier creates a Verifier.
func NewVerifier(cfg Config) *Verifier {
	return &Verifier{cfg: cfg.withDefaults()}
}

// Verify checks the signature against the subject's key, then issuer,
// audience and expiry. All failures are Unauthorized.
func (v *Verifier) Verify(token string) (Caller, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Caller{}, ir.NewError(ir.CodeUnauthorized, "token is required")
	}

	var claims jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		c, ok := t.Claims.(*jwt.RegisteredClaims)
		if !ok {
			return nil, errors.New("unexpected claims type")
		}
		return PublicKey(ir.Address(c.Subject))
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodEdDSA.Alg()}),
		jwt.WithIssuer(v.cfg.Issuer),
		jwt.WithAudience(v.cfg.Audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(v.cfg.Now),
	)
	if err != nil {
		return Caller{}, ir.WrapError(ir.CodeUnauthorized, mapJWTError(err), "verify token")
	}
	if claims.ID == "" {
		return Caller{}, ir.NewError(ir.CodeUnauthorized, "token jti is required")
	}
	identity, err := ir.ParseAddress(claims.Subject)
	if err != nil {
		return Caller{}, ir.WrapError(ir.CodeUnauthorized, err, "token subject")
	}

	return Caller{
		identity:  identity,
		tokenID:   claims.ID,
		expiresAt: claims.ExpiresAt.Time.UTC(),
	}, nil
}

// mapJWTError keeps the jwt sentinel in the chain and shortens the message.
func mapJWTError(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return fmt.Errorf("token is expired: %w", jwt.ErrTokenExpired)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return fmt.Errorf("signature does not match subject: %w", jwt.ErrTokenSignatureInvalid)
	case errors.Is(err, jwt.ErrTokenInvalidIssuer), errors.Is(err, jwt.ErrTokenInvalidAudience):
		return fmt.Errorf("token is for another issuer or audience: %w", err)
	default:
		return err
	}
}
