package client

import (
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/techblitz/techblitz-go/validate"
)

// SignUpInput is the payload for account creation. All fields are
// validated locally before the request is sent.
type SignUpInput struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (in SignUpInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.Name, validate.NameRules()...),
		validation.Field(&in.Username, validate.UsernameRules()...),
		validation.Field(&in.Email, validate.EmailRules()...),
		validation.Field(&in.Password, validate.PasswordRules()...),
	)
}

// ProfileUpdate carries the editable profile fields for PATCH auth/user.
// Zero-valued fields are omitted from the request body; Bio is a pointer
// so an empty string can clear it.
type ProfileUpdate struct {
	Name      string  `json:"name,omitempty"`
	Username  string  `json:"username,omitempty"`
	Email     string  `json:"email,omitempty"`
	Bio       *string `json:"bio,omitempty"`
	AvatarURL string  `json:"avatar_url,omitempty"`
}

func (in ProfileUpdate) Validate() error {
	fields := make([]*validation.FieldRules, 0, 3)
	if in.Name != "" {
		fields = append(fields, validation.Field(&in.Name, validate.NameRules()...))
	}
	if in.Username != "" {
		fields = append(fields, validation.Field(&in.Username, validate.UsernameRules()...))
	}
	if in.Email != "" {
		fields = append(fields, validation.Field(&in.Email, validate.EmailRules()...))
	}
	return validation.ValidateStruct(&in, fields...)
}

// ChangePasswordInput is the payload for auth/change-password.
type ChangePasswordInput struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (in ChangePasswordInput) Validate() error {
	return validation.ValidateStruct(&in,
		validation.Field(&in.OldPassword, validate.PasswordRules()...),
		validation.Field(&in.NewPassword,
			append(validate.PasswordRules(),
				validation.By(func(any) error {
					if in.NewPassword == in.OldPassword {
						return errNewPasswordUnchanged
					}
					return nil
				}))...),
	)
}

var errNewPasswordUnchanged = validation.NewError(
	"validation_new_password_unchanged",
	"New password must be different from current password.",
)
