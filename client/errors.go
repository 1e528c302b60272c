package client

import (
	"errors"
	"fmt"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
)

// ErrUploadFailed is returned for any failure inside the avatar upload
// pipeline. Callers show a single generic message rather than leaking
// storage-provider details.
var ErrUploadFailed = goerrors.New("avatar upload failed", goerrors.CategoryOperation).
	WithTextCode("UPLOAD_FAILED")

// APIError is the structured error body the API returns for 4xx/5xx
// responses.
type APIError struct {
	ErrorCode  string   `json:"error"`
	Message    string   `json:"message"`
	Errors     []string `json:"errors,omitempty"`
	StatusCode int      `json:"status_code"`
	Timestamp  string   `json:"timestamp"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api: %s (%d): %s", e.ErrorCode, e.StatusCode, e.Message)
}

// wrapAPIError classifies a decoded API error body into a go-errors error
// that carries the status code and the original body as metadata.
func wrapAPIError(apiErr *APIError) error {
	category := goerrors.CategoryBadInput
	code := goerrors.CodeBadRequest
	switch {
	case apiErr.StatusCode == http.StatusUnauthorized:
		category = goerrors.CategoryAuth
		code = goerrors.CodeUnauthorized
	case apiErr.StatusCode == http.StatusConflict:
		category = goerrors.CategoryConflict
		code = goerrors.CodeConflict
	case apiErr.StatusCode >= http.StatusInternalServerError:
		category = goerrors.CategoryInternal
		code = goerrors.CodeInternal
	}
	return goerrors.Wrap(apiErr, category, apiErr.Message).
		WithCode(code).
		WithMetadata(map[string]any{
			"error":       apiErr.ErrorCode,
			"status_code": apiErr.StatusCode,
		})
}

// IsUnauthorized reports whether err represents a 401 response.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == http.StatusUnauthorized
	}
	return false
}

// Notification derives the toast to show for err. Field-level errors are
// preferred over the summary message; anything unstructured falls back to
// a generic apology.
func Notification(err error) (title, message string) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		if len(apiErr.Errors) > 0 {
			return apiErr.ErrorCode, apiErr.Errors[0]
		}
		if apiErr.Message != "" {
			return apiErr.ErrorCode, apiErr.Message
		}
	}
	return "Oops!", "Something went wrong. Try again later."
}
