// Package apitest runs in-process fakes of the Techblitz API and its
// storage endpoint. Client and integration tests point a real client at
// them instead of mocking the transport.
package apitest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/techblitz/techblitz-go/session"
)

// SessionCookie is the cookie the fake API issues on sign in.
const SessionCookie = "techblitz_session"

// RecoveryWindow is how long a fake recovery email stays valid.
const RecoveryWindow = 5 * time.Minute

type account struct {
	user     session.User
	password string
}

// Server is a fake Techblitz backend. API serves the main REST surface,
// Storage serves blob uploads on a separate host so clients exercise the
// two-endpoint avatar flow.
type Server struct {
	API     *httptest.Server
	Storage *httptest.Server

	mu          sync.Mutex
	accounts    map[string]*account // keyed by username
	sessions    map[string]string   // cookie value -> username
	resetTokens map[string]string   // token -> username
	now         func() time.Time
	storageDown bool
}

// NewServer starts both fake servers. Callers own Close.
func NewServer() *Server {
	s := &Server{
		accounts:    make(map[string]*account),
		sessions:    make(map[string]string),
		resetTokens: make(map[string]string),
		now:         time.Now,
	}
	s.Storage = httptest.NewServer(s.storageRouter())
	s.API = httptest.NewServer(s.apiRouter())
	return s
}

// Close shuts both servers down.
func (s *Server) Close() {
	s.API.Close()
	s.Storage.Close()
}

// Seed registers an account directly, bypassing the HTTP surface.
func (s *Server) Seed(u session.User, password string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	s.accounts[u.Username] = &account{user: u, password: password}
}

// ExpireAll invalidates every active session so the next authenticated
// request sees a 401.
func (s *Server) ExpireAll() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = make(map[string]string)
}

// IssueResetToken mints a recovery token for the given username, as the
// emailed link would carry.
func (s *Server) IssueResetToken(username string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	token := uuid.NewString()
	s.resetTokens[token] = username
	return token
}

// SetStorageDown makes the storage endpoint fail every upload.
func (s *Server) SetStorageDown(down bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.storageDown = down
}

// User returns a copy of the stored account record.
func (s *Server) User(username string) (session.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acct, ok := s.accounts[username]
	if !ok {
		return session.User{}, false
	}
	return acct.user, true
}

func (s *Server) apiRouter() chi.Router {
	r := chi.NewRouter()
	r.Post("/auth/register", s.register)
	r.Post("/auth/login", s.login)
	r.Post("/auth/logout", s.logout)
	r.Get("/auth/user", s.currentUser)
	r.Patch("/auth/user", s.updateUser)
	r.Get("/auth/check", s.checkAvailability)
	r.Post("/auth/change-password", s.changePassword)
	r.Post("/auth/forgot-password", s.forgotPassword)
	r.Post("/auth/reset-password", s.resetPassword)
	r.Post("/storage", s.authorizeUpload)
	return r
}

func (s *Server) storageRouter() chi.Router {
	r := chi.NewRouter()
	r.Post("/avatars", s.storeAvatar)
	return r
}

// writeData wraps payload in the standard success envelope.
func (s *Server) writeData(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]any{
		"data":        payload,
		"timestamp":   s.now().UTC().Format(time.RFC3339),
		"status_code": status,
	})
}

// writeError emits the structured error body the real API uses.
func (s *Server) writeError(w http.ResponseWriter, status int, code, message string, fieldErrors ...string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	body := map[string]any{
		"error":       code,
		"message":     message,
		"status_code": status,
		"timestamp":   s.now().UTC().Format(time.RFC3339),
	}
	if len(fieldErrors) > 0 {
		body["errors"] = fieldErrors
	}
	json.NewEncoder(w).Encode(body)
}

// authed resolves the session cookie to an account, or answers 401.
func (s *Server) authed(w http.ResponseWriter, r *http.Request) *account {
	cookie, err := r.Cookie(SessionCookie)
	if err != nil {
		s.writeError(w, http.StatusUnauthorized, "Unauthorized", "Session expired or missing.")
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	username, ok := s.sessions[cookie.Value]
	if !ok {
		s.writeError(w, http.StatusUnauthorized, "Unauthorized", "Session expired or missing.")
		return nil
	}
	return s.accounts[username]
}

func (s *Server) startSession(w http.ResponseWriter, username string) {
	token := uuid.NewString()
	s.mu.Lock()
	s.sessions[token] = username
	s.mu.Unlock()
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
	})
}

func decodeBody[T any](w http.ResponseWriter, r *http.Request, s *Server) (T, bool) {
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		s.writeError(w, http.StatusBadRequest, "Bad Request", "Malformed request body.")
		return v, false
	}
	return v, true
}

func avatarFallback(name string) string {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "?"
	}
	fallback := strings.ToUpper(parts[0][:1])
	if len(parts) > 1 {
		fallback += strings.ToUpper(parts[len(parts)-1][:1])
	}
	return fallback
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeBody[struct {
		Name     string `json:"name"`
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}](w, r, s)
	if !ok {
		return
	}

	s.mu.Lock()
	if _, exists := s.accounts[body.Username]; exists {
		s.mu.Unlock()
		s.writeError(w, http.StatusConflict, "Conflict", "Account already exists.",
			"Username is already taken.")
		return
	}
	for _, acct := range s.accounts {
		if acct.user.Email == body.Email {
			s.mu.Unlock()
			s.writeError(w, http.StatusConflict, "Conflict", "Account already exists.",
				"Email is already taken.")
			return
		}
	}
	now := s.now().UTC()
	user := session.User{
		ID:             uuid.NewString(),
		Name:           body.Name,
		Username:       body.Username,
		Email:          body.Email,
		AvatarFallback: avatarFallback(body.Name),
		Role:           session.RoleUser,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	s.accounts[body.Username] = &account{user: user, password: body.Password}
	s.mu.Unlock()

	s.startSession(w, body.Username)
	s.writeData(w, http.StatusCreated, map[string]any{"user": user})
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeBody[struct {
		Username string `json:"username"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}](w, r, s)
	if !ok {
		return
	}

	s.mu.Lock()
	var match *account
	for _, acct := range s.accounts {
		if (body.Username != "" && acct.user.Username == body.Username) ||
			(body.Email != "" && acct.user.Email == body.Email) {
			match = acct
			break
		}
	}
	s.mu.Unlock()

	if match == nil || match.password != body.Password {
		s.writeError(w, http.StatusUnauthorized, "Unauthorized", "Invalid credentials.")
		return
	}
	s.startSession(w, match.user.Username)
	s.writeData(w, http.StatusOK, map[string]any{"user": match.user})
}

func (s *Server) logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		s.mu.Lock()
		delete(s.sessions, cookie.Value)
		s.mu.Unlock()
	}
	s.writeData(w, http.StatusOK, map[string]any{})
}

func (s *Server) currentUser(w http.ResponseWriter, r *http.Request) {
	acct := s.authed(w, r)
	if acct == nil {
		return
	}
	s.writeData(w, http.StatusOK, acct.user)
}

func (s *Server) updateUser(w http.ResponseWriter, r *http.Request) {
	acct := s.authed(w, r)
	if acct == nil {
		return
	}
	body, ok := decodeBody[struct {
		Name      string  `json:"name"`
		Username  string  `json:"username"`
		Email     string  `json:"email"`
		Bio       *string `json:"bio"`
		AvatarURL string  `json:"avatar_url"`
	}](w, r, s)
	if !ok {
		return
	}

	s.mu.Lock()
	if body.Username != "" && body.Username != acct.user.Username {
		if _, taken := s.accounts[body.Username]; taken {
			s.mu.Unlock()
			s.writeError(w, http.StatusConflict, "Conflict", "Could not update account.",
				"Username is already taken.")
			return
		}
		delete(s.accounts, acct.user.Username)
		acct.user.Username = body.Username
		s.accounts[body.Username] = acct
	}
	if body.Name != "" {
		acct.user.Name = body.Name
		acct.user.AvatarFallback = avatarFallback(body.Name)
	}
	if body.Email != "" {
		acct.user.Email = body.Email
	}
	if body.Bio != nil {
		acct.user.Bio = *body.Bio
	}
	if body.AvatarURL != "" {
		acct.user.AvatarURL = body.AvatarURL
	}
	acct.user.UpdatedAt = s.now().UTC()
	user := acct.user
	s.mu.Unlock()

	s.writeData(w, http.StatusOK, user)
}

func (s *Server) checkAvailability(w http.ResponseWriter, r *http.Request) {
	field := r.URL.Query().Get("field")
	value := r.URL.Query().Get("value")

	s.mu.Lock()
	valid := true
	for _, acct := range s.accounts {
		if (field == "username" && acct.user.Username == value) ||
			(field == "email" && acct.user.Email == value) {
			valid = false
			break
		}
	}
	s.mu.Unlock()

	s.writeData(w, http.StatusOK, map[string]any{
		"valid": valid,
		"field": field,
		"value": value,
	})
}

func (s *Server) changePassword(w http.ResponseWriter, r *http.Request) {
	acct := s.authed(w, r)
	if acct == nil {
		return
	}
	body, ok := decodeBody[struct {
		OldPassword string `json:"old_password"`
		NewPassword string `json:"new_password"`
	}](w, r, s)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if acct.password != body.OldPassword {
		s.writeError(w, http.StatusBadRequest, "Bad Request", "Could not change password.",
			"Current password is incorrect.")
		return
	}
	acct.password = body.NewPassword
	s.writeData(w, http.StatusOK, map[string]any{})
}

func (s *Server) forgotPassword(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeBody[struct {
		Email string `json:"email"`
	}](w, r, s)
	if !ok {
		return
	}

	s.mu.Lock()
	for username, acct := range s.accounts {
		if acct.user.Email == body.Email {
			s.resetTokens[uuid.NewString()] = username
			break
		}
	}
	s.mu.Unlock()

	// Whether the account exists or not, the answer looks the same.
	expiry := s.now().Add(RecoveryWindow).UnixMilli()
	s.writeData(w, http.StatusOK, map[string]any{
		"expiration_date_in_millis": expiry,
	})
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) {
	body, ok := decodeBody[struct {
		Token    string `json:"token"`
		Password string `json:"password"`
	}](w, r, s)
	if !ok {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	username, valid := s.resetTokens[body.Token]
	if !valid {
		s.writeError(w, http.StatusBadRequest, "Bad Request", "Invalid or expired recovery token.")
		return
	}
	delete(s.resetTokens, body.Token)
	s.accounts[username].password = body.Password
	s.writeData(w, http.StatusOK, map[string]any{})
}

func (s *Server) authorizeUpload(w http.ResponseWriter, r *http.Request) {
	acct := s.authed(w, r)
	if acct == nil {
		return
	}
	body, ok := decodeBody[struct {
		Type    string `json:"type"`
		Context string `json:"context"`
	}](w, r, s)
	if !ok {
		return
	}
	if body.Type != "avatars" || body.Context != "upload" {
		s.writeError(w, http.StatusBadRequest, "Bad Request", "Unknown storage request.")
		return
	}
	s.writeData(w, http.StatusOK, map[string]any{
		"url": s.Storage.URL + "/avatars",
	})
}

func (s *Server) storeAvatar(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	down := s.storageDown
	s.mu.Unlock()
	if down {
		s.writeError(w, http.StatusServiceUnavailable, "Service Unavailable", "Storage backend offline.")
		return
	}

	if err := r.ParseMultipartForm(8 << 20); err != nil {
		s.writeError(w, http.StatusBadRequest, "Bad Request", "Malformed multipart body.")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "Bad Request", "Missing file part.")
		return
	}
	defer file.Close()

	s.writeData(w, http.StatusCreated, map[string]any{
		"url":          fmt.Sprintf("%s/avatars/%s", s.Storage.URL, uuid.NewString()),
		"filename":     header.Filename,
		"content_type": header.Header.Get("Content-Type"),
		"size":         header.Size,
	})
}
