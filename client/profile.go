package client

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"

	goerrors "github.com/goliatone/go-errors"

	"github.com/techblitz/techblitz-go/internal/util"
	"github.com/techblitz/techblitz-go/session"
)

// allowedAvatarTypes mirrors the accepted image extensions setting of
// the upload form.
var allowedAvatarTypes = map[string]struct{}{
	"image/png":  {},
	"image/jpeg": {},
	"image/webp": {},
	"image/gif":  {},
}

// Update patches the signed-in user's profile and replaces the stored
// user with the full record the server returns. On failure the session
// store is left untouched.
func (c *Client) Update(ctx context.Context, in ProfileUpdate) (*session.User, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()
	return c.update(ctx, in)
}

// update is Update without the operation lock, for callers that already
// hold it.
func (c *Client) update(ctx context.Context, in ProfileUpdate) (*session.User, error) {
	in.Name = util.NormalizeIdentifier(in.Name)
	in.Username = util.NormalizeIdentifier(in.Username)
	in.Email = util.NormalizeIdentifier(in.Email)
	if err := in.Validate(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryValidation, "invalid profile update")
	}

	raw, err := c.call(ctx, http.MethodPatch, "/auth/user", in, false)
	if err != nil {
		return nil, err
	}
	user, err := decodeData[*session.User](raw)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, errMissingUser
	}
	c.sessions.SetUser(user)
	c.log.Info("profile updated", "user_id", user.ID)
	return c.sessions.User(), nil
}

// ChangePassword rotates the signed-in user's password. The server keeps
// the current session alive, so no local state changes.
func (c *Client) ChangePassword(ctx context.Context, in ChangePasswordInput) error {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if err := in.Validate(); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryValidation, "invalid change password input")
	}
	_, err := c.call(ctx, http.MethodPost, "/auth/change-password", in, false)
	return err
}

// uploadGrant is the main API's answer to an upload authorization
// request.
type uploadGrant struct {
	URL string `json:"url"`
}

// uploadedFile is what the storage endpoint returns for a stored blob.
type uploadedFile struct {
	URL         string `json:"url"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// UpdateAvatar uploads a new avatar and points the profile at it. The
// flow is authorize on the main API, upload the bytes to the storage
// endpoint, then patch the profile with the returned URL. Failures on
// the storage side are reported as ErrUploadFailed so provider details
// never reach the user; main API failures keep their structured payload.
func (c *Client) UpdateAvatar(ctx context.Context, filename, contentType string, content io.Reader) (*session.User, error) {
	c.opMu.Lock()
	defer c.opMu.Unlock()

	if _, ok := allowedAvatarTypes[contentType]; !ok {
		return nil, goerrors.New("unsupported avatar image type", goerrors.CategoryValidation).
			WithMetadata(map[string]any{"content_type": contentType})
	}

	raw, err := c.call(ctx, http.MethodPost, "/storage",
		map[string]string{"type": "avatars", "context": "upload"}, false)
	if err != nil {
		return nil, err
	}
	grant, err := decodeData[uploadGrant](raw)
	if err != nil {
		return nil, err
	}

	stored, err := c.uploadAvatar(ctx, grant, filename, contentType, content)
	if err != nil {
		c.log.Warn("avatar upload failed", "error", err)
		return nil, ErrUploadFailed
	}

	return c.update(ctx, ProfileUpdate{AvatarURL: stored.URL})
}

// uploadAvatar sends the file bytes to the storage endpoint as a
// multipart form.
func (c *Client) uploadAvatar(ctx context.Context, grant uploadGrant, filename, contentType string, content io.Reader) (*uploadedFile, error) {
	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, content); err != nil {
		return nil, err
	}
	if err := form.Close(); err != nil {
		return nil, err
	}

	target := grant.URL
	if target == "" {
		target = c.storageURL + "/avatars"
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return nil, goerrors.New("storage endpoint rejected the upload", goerrors.CategoryOperation).
			WithMetadata(map[string]any{"status": resp.StatusCode})
	}

	var env apiEnvelope[uploadedFile]
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, err
	}
	return &env.Data, nil
}
