package auth

import (
	"time"

	"github.com/goliatone/go-errors"
)

// Defaults applied by SimpleConfig when a field is zero.
const (
	DefaultTokenTTL      = 24 * time.Hour
	DefaultSigningMethod = "HS256"
	DefaultContextKey    = "session"
	DefaultAuthScheme    = "Bearer"
)

// DefaultTokenLookup checks the session cookie first, then the
// Authorization header.
var DefaultTokenLookup = "cookie:" + DefaultContextKey + ",header:Authorization"

// SimpleConfig is an immutable Config value. Build it once at process start,
// call Validate, and share it; nothing mutates it afterwards.
type SimpleConfig struct {
	SigningKey    string
	SigningMethod string
	ContextKey    string
	TokenTTL      time.Duration
	HashCost      int
	TokenLookup   string
	AuthScheme    string
	Issuer        string
	Audience      []string
}

var _ Config = SimpleConfig{}

// Validate fails fast on configuration the service cannot run without.
func (c SimpleConfig) Validate() error {
	if c.SigningKey == "" {
		return errors.New("auth config requires a signing key", errors.CategoryOperation)
	}

	if c.TokenTTL < 0 {
		return errors.New("auth config token TTL must be non-negative", errors.CategoryOperation)
	}

	return nil
}

func (c SimpleConfig) GetSigningKey() string {
	return c.SigningKey
}

func (c SimpleConfig) GetSigningMethod() string {
	if c.SigningMethod == "" {
		return DefaultSigningMethod
	}
	return c.SigningMethod
}

func (c SimpleConfig) GetContextKey() string {
	if c.ContextKey == "" {
		return DefaultContextKey
	}
	return c.ContextKey
}

func (c SimpleConfig) GetTokenTTL() time.Duration {
	if c.TokenTTL == 0 {
		return DefaultTokenTTL
	}
	return c.TokenTTL
}

func (c SimpleConfig) GetHashCost() int {
	if c.HashCost == 0 {
		return passwordHashCost()
	}
	return c.HashCost
}

func (c SimpleConfig) GetTokenLookup() string {
	if c.TokenLookup == "" {
		return DefaultTokenLookup
	}
	return c.TokenLookup
}

func (c SimpleConfig) GetAuthScheme() string {
	if c.AuthScheme == "" {
		return DefaultAuthScheme
	}
	return c.AuthScheme
}

func (c SimpleConfig) GetIssuer() string {
	return c.Issuer
}

func (c SimpleConfig) GetAudience() []string {
	return c.Audience
}
