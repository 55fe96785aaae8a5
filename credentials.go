package auth

import (
	"errors"
	"unicode"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
	goerrors "github.com/goliatone/go-errors"
)

// Password policy: length plus character classes. Checked before any storage
// work so invalid input never reaches the hasher or the store. The max is
// bcrypt's 72-byte input limit; anything longer would pass validation and
// then fail to hash.
const (
	PasswordMinLength = 8
	PasswordMaxLength = 72
)

var (
	errPasswordStrength = errors.New("must contain a lower case letter, an upper case letter, and a digit")
	errPasswordTooLong  = errors.New("must be no more than 72 bytes")
)

// CredentialInput is the transient signup/login value object. It is validated,
// consumed, and discarded; the plaintext password is never persisted.
type CredentialInput struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// Validate will run validation rules
func (c CredentialInput) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(
			&c.Email,
			validation.Required,
			validation.Length(6, 100),
			is.Email,
		),
		validation.Field(
			&c.Password,
			validation.Required,
			validation.Length(PasswordMinLength, PasswordMaxLength),
			validation.By(validatePasswordStrength),
		),
	)
}

// ProfilePatch carries optional profile updates; empty fields are untouched.
type ProfilePatch struct {
	Email    string `form:"email" json:"email"`
	Password string `form:"password" json:"password"`
}

// IsZero reports whether the patch changes anything.
func (p ProfilePatch) IsZero() bool {
	return p.Email == "" && p.Password == ""
}

// Validate will run validation rules on the fields that are present.
func (p ProfilePatch) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(
			&p.Email,
			validation.Length(6, 100),
			is.Email,
		),
		validation.Field(
			&p.Password,
			validation.Length(PasswordMinLength, PasswordMaxLength),
			validation.By(skipEmpty(validatePasswordStrength)),
		),
	)
}

func validatePasswordStrength(value any) error {
	s, _ := value.(string)

	// Length checks rune count; bcrypt's limit is bytes.
	if len(s) > PasswordMaxLength {
		return errPasswordTooLong
	}

	var hasLower, hasUpper, hasDigit bool
	for _, r := range s {
		switch {
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}

	if !hasLower || !hasUpper || !hasDigit {
		return errPasswordStrength
	}

	return nil
}

func skipEmpty(rule validation.RuleFunc) validation.RuleFunc {
	return func(value any) error {
		if s, _ := value.(string); s == "" {
			return nil
		}
		return rule(value)
	}
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field -> message map for transports and error metadata.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}
	if err == nil {
		return out
	}

	if verrs, ok := err.(validation.Errors); ok {
		for field, ferr := range verrs {
			if ferr != nil {
				out[field] = ferr.Error()
			}
		}
		return out
	}

	out["input"] = err.Error()
	return out
}

// asValidationError wraps an ozzo validation result into the rich taxonomy,
// keeping per-field messages as metadata.
func asValidationError(err error) error {
	if err == nil {
		return nil
	}

	fields := FormatValidationErrorToMap(err)
	meta := make(map[string]any, len(fields))
	for k, v := range fields {
		meta[k] = v
	}

	return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid credential input").
		WithTextCode(TextCodeInvalidInput).
		WithCode(goerrors.CodeBadRequest).
		WithMetadata(meta)
}
