package handlers

import (
	"net/http"

	"github.com/vaultd/vaultd/pkg/api/middleware"
	"github.com/vaultd/vaultd/pkg/models"
	"github.com/vaultd/vaultd/pkg/session"
	"github.com/vaultd/vaultd/pkg/user"
)

// TOTPIssuer names vaultd in the provisioning URI an authenticator app
// displays next to the account (§4.8 TOTP Regenerate).
const TOTPIssuer = "vaultd"

// AuthHandler serves the account lifecycle endpoints: register, login,
// logout, profile, and TOTP management.
type AuthHandler struct {
	users    *user.Service
	sessions *session.Service
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(users *user.Service, sessions *session.Service) *AuthHandler {
	return &AuthHandler{users: users, sessions: sessions}
}

// RegisterRequest is the body of POST /api/register.
type RegisterRequest struct {
	Username string  `json:"username"`
	Password string  `json:"password"`
	Email    *string `json:"email,omitempty"`

	PublicKey           string `json:"public_key"`
	PrivateKeyIV        string `json:"private_key_iv"`
	PrivateKeySalt      string `json:"private_key_salt"`
	EncryptedPrivateKey string `json:"encrypted_private_key"`
}

// Register handles POST /api/register (§4.8 Register).
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	u, err := h.users.Register(r.Context(), user.RegisterInput{
		Username:            req.Username,
		Password:            req.Password,
		Email:               req.Email,
		PublicKey:           req.PublicKey,
		PrivateKeyIV:        req.PrivateKeyIV,
		PrivateKeySalt:      req.PrivateKeySalt,
		EncryptedPrivateKey: req.EncryptedPrivateKey,
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteJSONCreated(w, u.ToSessionView())
}

// LoginRequest is the body of POST /api/login.
type LoginRequest struct {
	Username string  `json:"username"`
	Password string  `json:"password"`
	TOTPCode *string `json:"totp_code,omitempty"`
}

// Login handles POST /api/login: 200 with a session cookie on success, 307
// with the same body echoed back when the account needs a TOTP code the
// request didn't supply, 401 on bad credentials (§4.8 Login, §6).
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	u, err := h.users.Login(r.Context(), w, req.Username, req.Password, req.TOTPCode, r.UserAgent())
	if err != nil {
		if err == models.ErrTOTPRequired {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTemporaryRedirect)
			_ = writeJSONBody(w, req)
			return
		}
		WriteError(w, err)
		return
	}
	WriteJSONOK(w, u.ToSessionView())
}

// Logout handles POST /api/logout: clears the session cookie and revokes the
// underlying session row so the cookie can't be replayed.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	sess := middleware.GetSessionFromContext(r.Context())
	h.sessions.Clear(w)
	if sess != nil {
		_ = h.sessions.Revoke(r.Context(), sess.UserID, sess.Number)
	}
	WriteNoContent(w)
}

// Profile handles GET /api/profile.
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	u := middleware.GetUserFromContext(r.Context())
	WriteJSONOK(w, u.ToSessionView())
}

// ProfileUpdateRequest is the body of PUT /api/profile.
type ProfileUpdateRequest struct {
	Username *string `json:"username,omitempty"`
	Email    *string `json:"email,omitempty"`

	NewPassword            *string `json:"new_password,omitempty"`
	NewEncryptedPrivateKey *string `json:"new_encrypted_private_key,omitempty"`
	NewPrivateKeyIV        *string `json:"new_private_key_iv,omitempty"`
	NewPrivateKeySalt      *string `json:"new_private_key_salt,omitempty"`
}

// UpdateProfile handles PUT /api/profile (§4.8 Profile update).
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	u := middleware.GetUserFromContext(r.Context())
	var req ProfileUpdateRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	err := h.users.UpdateProfile(r.Context(), u.ID, user.ProfileUpdateInput{
		Username:               req.Username,
		Email:                  req.Email,
		NewPassword:            req.NewPassword,
		NewEncryptedPrivateKey: req.NewEncryptedPrivateKey,
		NewPrivateKeyIV:        req.NewPrivateKeyIV,
		NewPrivateKeySalt:      req.NewPrivateKeySalt,
	})
	if err != nil {
		WriteError(w, err)
		return
	}
	WriteNoContent(w)
}

// TOTPAction is the PUT /api/totp request's discriminator (§4.8 TOTP).
type TOTPAction string

const (
	TOTPEnable     TOTPAction = "enable"
	TOTPRegenerate TOTPAction = "regenerate"
	TOTPVerify     TOTPAction = "verify"
	TOTPDisable    TOTPAction = "disable"
)

// TOTPRequest is the body of PUT /api/totp.
type TOTPRequest struct {
	Action TOTPAction `json:"action"`
	Code   string     `json:"code,omitempty"`
}

// TOTPResponse carries the provisioning material returned by Regenerate.
type TOTPResponse struct {
	Secret          string `json:"secret,omitempty"`
	ProvisioningURI string `json:"provisioning_uri,omitempty"`
}

// UpdateTOTP handles PUT /api/totp, dispatching on the action the client
// requested (§4.8 TOTP Enable/Regenerate/Verify/Disable).
func (h *AuthHandler) UpdateTOTP(w http.ResponseWriter, r *http.Request) {
	u := middleware.GetUserFromContext(r.Context())
	var req TOTPRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}

	switch req.Action {
	case TOTPRegenerate:
		secret, uri, err := h.users.RegenerateTOTP(r.Context(), u.ID, TOTPIssuer)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSONOK(w, TOTPResponse{Secret: secret, ProvisioningURI: uri})
	case TOTPVerify:
		if err := h.users.VerifyTOTP(r.Context(), u.ID, req.Code); err != nil {
			WriteError(w, err)
			return
		}
		WriteNoContent(w)
	case TOTPEnable:
		if err := h.users.EnableTOTP(r.Context(), u.ID); err != nil {
			WriteError(w, err)
			return
		}
		WriteNoContent(w)
	case TOTPDisable:
		if err := h.users.DisableTOTP(r.Context(), u.ID); err != nil {
			WriteError(w, err)
			return
		}
		WriteNoContent(w)
	default:
		BadRequest(w, "unknown totp action")
	}
}
