// Package validate holds the synchronous format rules for account fields.
// These run locally on every change, independent of the server-side
// availability checks.
package validate

import (
	"errors"
	"regexp"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
)

const (
	// MinPasswordLen matches the server's minimum password length.
	MinPasswordLen = 8
	// MaxNameLen bounds display names.
	MaxNameLen = 50
)

var (
	usernameCharset = regexp.MustCompile(`^[a-zA-Z0-9._]+$`)
	nameNoDigits    = regexp.MustCompile(`^[^0-9]*$`)
)

// NameRules returns the rule chain for display names.
func NameRules() []validation.Rule {
	return []validation.Rule{
		validation.Required.Error("name is required"),
		validation.RuneLength(1, MaxNameLen).Error("name is too long"),
		validation.Match(nameNoDigits).Error("name cannot contain numbers"),
	}
}

// UsernameRules returns the rule chain for usernames.
func UsernameRules() []validation.Rule {
	return []validation.Rule{
		validation.Required.Error("username is required"),
		validation.Match(usernameCharset).Error("username can only contain letters, numbers, dots, and underscores"),
		validation.By(usernameContent),
	}
}

// EmailRules returns the rule chain for email addresses.
func EmailRules() []validation.Rule {
	return []validation.Rule{
		validation.Required.Error("email is required"),
		is.EmailFormat.Error("email is not valid"),
	}
}

// PasswordRules returns the rule chain for passwords.
func PasswordRules() []validation.Rule {
	return []validation.Rule{
		validation.Required.Error("password is required"),
		validation.RuneLength(MinPasswordLen, 100).Error("password must have at least 8 characters"),
	}
}

// Name validates a display name.
func Name(v string) error { return validation.Validate(v, NameRules()...) }

// Username validates a username.
func Username(v string) error { return validation.Validate(v, UsernameRules()...) }

// Email validates an email address.
func Email(v string) error { return validation.Validate(v, EmailRules()...) }

// Password validates a password.
func Password(v string) error { return validation.Validate(v, PasswordRules()...) }

// IsEmail reports whether v is shaped like an email address. Used to
// classify sign-in identifiers and to gate availability checks.
func IsEmail(v string) bool {
	return validation.Validate(v, validation.Required, is.EmailFormat) == nil
}

// IsResetToken reports whether v is a well-formed recovery token.
// Recovery links carry UUID tokens; anything else is rejected before any
// network call.
func IsResetToken(v string) bool {
	_, err := uuid.Parse(v)
	return err == nil
}

// usernameContent rejects usernames that pass the charset check but carry
// no identifying content, or that stack separators.
func usernameContent(value any) error {
	v, _ := value.(string)
	if v == "" {
		return nil
	}
	if strings.Trim(v, "0123456789") == "" {
		return errors.New("username cannot consist of only numbers")
	}
	if strings.Contains(v, "..") {
		return errors.New("username cannot contain consecutive dots")
	}
	if strings.Trim(v, ".") == "" {
		return errors.New("username cannot consist of only dots")
	}
	if strings.Trim(v, "_") == "" {
		return errors.New("username cannot consist of only underscores")
	}
	return nil
}
