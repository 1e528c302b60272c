package client

import (
	"context"
	"net/http"
	"time"

	goerrors "github.com/goliatone/go-errors"

	"github.com/techblitz/techblitz-go/internal/util"
	"github.com/techblitz/techblitz-go/validate"
)

// ForgotPassword asks the server to send a recovery email and returns
// when the recovery window expires. The caller feeds the expiry into the
// countdown so resends stay disabled until it passes.
func (c *Client) ForgotPassword(ctx context.Context, email string) (time.Time, error) {
	email = util.NormalizeIdentifier(email)
	if err := validate.Email(email); err != nil {
		return time.Time{}, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid email")
	}

	raw, err := c.call(ctx, http.MethodPost, "/auth/forgot-password",
		map[string]string{"email": email}, false)
	if err != nil {
		return time.Time{}, err
	}

	resp, err := decodeData[struct {
		ExpirationDateInMillis int64 `json:"expiration_date_in_millis"`
	}](raw)
	if err != nil {
		return time.Time{}, err
	}
	return time.UnixMilli(resp.ExpirationDateInMillis), nil
}

// ResetPassword sets a new password using a recovery token from the
// emailed link. Tokens that are not UUIDs are rejected before any
// network traffic; a mangled link cannot be a valid token.
func (c *Client) ResetPassword(ctx context.Context, token, password string) error {
	if !validate.IsResetToken(token) {
		return goerrors.New("malformed recovery token", goerrors.CategoryValidation)
	}
	if err := validate.Password(password); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid password")
	}

	_, err := c.call(ctx, http.MethodPost, "/auth/reset-password",
		map[string]string{"token": token, "password": password}, false)
	return err
}
