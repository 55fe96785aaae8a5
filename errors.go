package auth

import (
	"strings"

	"github.com/goliatone/go-errors"
)

const (
	// TextCodeInvalidCreds marks any credential mismatch during login.
	TextCodeInvalidCreds = "INVALID_CREDENTIALS"
	// TextCodeEmailTaken marks an email uniqueness conflict.
	TextCodeEmailTaken = "EMAIL_TAKEN"
	// TextCodeAccountNotFound marks operations against a missing account.
	TextCodeAccountNotFound = "ACCOUNT_NOT_FOUND"
	// TextCodeTokenExpired marks an expired session token.
	TextCodeTokenExpired = "TOKEN_EXPIRED"
	// TextCodeTokenMalformed marks a token that failed signature or shape checks.
	TextCodeTokenMalformed = "TOKEN_MALFORMED"
	// TextCodeSessionNotFound marks requests carrying no session token.
	TextCodeSessionNotFound = "SESSION_NOT_FOUND"
	// TextCodeSessionDecodeError marks tokens whose claims could not be decoded.
	TextCodeSessionDecodeError = "SESSION_DECODE_ERROR"
	// TextCodeClaimsMappingError marks claims that could not be mapped to a session.
	TextCodeClaimsMappingError = "CLAIMS_MAPPING_ERROR"
	// TextCodeEmptyPassword marks attempts to hash an empty password.
	TextCodeEmptyPassword = "EMPTY_PASSWORD"
	// TextCodeInvalidInput marks credential input that failed validation.
	TextCodeInvalidInput = "INVALID_CREDENTIAL_INPUT"
)

// ErrIdentityNotFound is returned when a token resolves to an account that no
// longer exists (e.g. a stale token held after account deletion).
var ErrIdentityNotFound = errors.New("identity not found", errors.CategoryNotFound).
	WithTextCode(TextCodeAccountNotFound).
	WithCode(errors.CodeNotFound)

// ErrMismatchedHashAndPassword is the uniform login failure. Unknown email and
// wrong password both collapse into this value so callers cannot probe which
// part was wrong.
var ErrMismatchedHashAndPassword = errors.New("the credentials provided are invalid", errors.CategoryAuth).
	WithTextCode(TextCodeInvalidCreds).
	WithCode(errors.CodeUnauthorized)

// ErrEmailTaken is returned when a create or update would violate email
// uniqueness.
var ErrEmailTaken = errors.New("email already registered", errors.CategoryConflict).
	WithTextCode(TextCodeEmailTaken).
	WithCode(errors.CodeConflict)

// ErrTokenExpired is returned by token validation when the expiry has elapsed.
var ErrTokenExpired = errors.New("session token expired", errors.CategoryAuth).
	WithTextCode(TextCodeTokenExpired).
	WithCode(errors.CodeUnauthorized)

// ErrTokenMalformed is returned by token validation for any signature or
// structural failure. Same category and code as ErrTokenExpired: the two are
// deliberately indistinguishable at the HTTP boundary.
var ErrTokenMalformed = errors.New("session token malformed", errors.CategoryAuth).
	WithTextCode(TextCodeTokenMalformed).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToFindSession is returned when a request carries no session token.
var ErrUnableToFindSession = errors.New("unable to find session", errors.CategoryAuth).
	WithTextCode(TextCodeSessionNotFound).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToDecodeSession is returned when claims cannot be decoded from an
// otherwise parseable token.
var ErrUnableToDecodeSession = errors.New("unable to decode session", errors.CategoryAuth).
	WithTextCode(TextCodeSessionDecodeError).
	WithCode(errors.CodeUnauthorized)

// ErrUnableToMapClaims is returned when token claims cannot be mapped to a
// session object.
var ErrUnableToMapClaims = errors.New("unable to map claims", errors.CategoryAuth).
	WithTextCode(TextCodeClaimsMappingError).
	WithCode(errors.CodeUnauthorized)

// ErrNoEmptyString is returned when hashing an empty password.
var ErrNoEmptyString = errors.New("password must not be empty", errors.CategoryValidation).
	WithTextCode(TextCodeEmptyPassword).
	WithCode(errors.CodeBadRequest)

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.TextCode == TextCodeTokenExpired {
		return true
	}

	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}

	var richErr *errors.Error
	if errors.As(err, &richErr) && richErr.TextCode == TextCodeTokenMalformed {
		return true
	}

	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}

// IsUniqueViolation reports whether err is a uniqueness violation surfaced by
// the underlying driver. Matched by message since drivers do not share a
// common sentinel.
func IsUniqueViolation(err error) bool {
	if err == nil {
		return false
	}

	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "duplicate key value violates unique constraint") ||
		strings.Contains(msg, "Duplicate entry")
}
