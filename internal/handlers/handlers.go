package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/licenseguard/licenseguard/internal/models"
	"github.com/licenseguard/licenseguard/internal/services"
	"go.uber.org/zap"
)

// FingerprintHeader carries the client's hardware fingerprint on
// authenticated requests; the core treats it as an opaque device identity.
const FingerprintHeader = "X-Device-Fingerprint"

// Registry is the license/account surface the transport invokes.
type Registry interface {
	Activate(ctx context.Context, input services.ActivateInput) (*models.Account, error)
	Login(ctx context.Context, input services.LoginInput) (*models.Account, error)
	CheckLicense(ctx context.Context, code string) (services.CheckResult, error)
	ProvisionLicense(ctx context.Context, code string) (*models.Account, error)
	ListDevices(ctx context.Context, accountID uuid.UUID) ([]*models.Device, error)
	RemoveDevice(ctx context.Context, accountID uuid.UUID, fingerprint string) error
}

// Sessions is the session authority surface the transport invokes.
type Sessions interface {
	Issue(ctx context.Context, account *models.Account, fingerprint string) (*services.IssuedSession, error)
	Verify(ctx context.Context, token, fingerprint string) (*models.Account, error)
	Revoke(ctx context.Context, token string) error
	RevokeDevice(ctx context.Context, accountID uuid.UUID, fingerprint string) error
}

type Handler struct {
	registry Registry
	sessions Sessions
	logger   *zap.Logger
}

func NewHandler(registry Registry, sessions Sessions, logger *zap.Logger) *Handler {
	return &Handler{registry: registry, sessions: sessions, logger: logger}
}

func (h *Handler) Routes(r chi.Router) {
	r.Post("/api/activate", h.Activate)
	r.Post("/api/login", h.Login)
	r.Post("/api/logout", h.Logout)
	r.Get("/api/session", h.VerifySession)
	r.Get("/api/license/{code}", h.CheckLicense)
	r.Post("/api/licenses", h.ProvisionLicense)
	r.Get("/api/devices", h.ListDevices)
	r.Delete("/api/devices/{fingerprint}", h.RemoveDevice)
}

type authResponse struct {
	Account *models.Account         `json:"account"`
	Session *services.IssuedSession `json:"session"`
}

func (h *Handler) Activate(w http.ResponseWriter, r *http.Request) {
	var input services.ActivateInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeError(w, services.ErrInvalidInput)
		return
	}

	account, err := h.registry.Activate(r.Context(), input)
	if err != nil {
		h.writeError(w, err)
		return
	}

	session, err := h.sessions.Issue(r.Context(), account, input.Fingerprint)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, authResponse{Account: account, Session: session})
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var input services.LoginInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		h.writeError(w, services.ErrInvalidInput)
		return
	}

	account, err := h.registry.Login(r.Context(), input)
	if err != nil {
		h.writeError(w, err)
		return
	}

	session, err := h.sessions.Issue(r.Context(), account, input.Fingerprint)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, authResponse{Account: account, Session: session})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.sessions.Revoke(r.Context(), bearerToken(r)); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) VerifySession(w http.ResponseWriter, r *http.Request) {
	account, err := h.sessions.Verify(r.Context(), bearerToken(r), r.Header.Get(FingerprintHeader))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, account)
}

func (h *Handler) CheckLicense(w http.ResponseWriter, r *http.Request) {
	result, err := h.registry.CheckLicense(r.Context(), chi.URLParam(r, "code"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, result)
}

func (h *Handler) ProvisionLicense(w http.ResponseWriter, r *http.Request) {
	var body struct {
		LicenseCode string `json:"license_code"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			h.writeError(w, services.ErrInvalidInput)
			return
		}
	}

	account, err := h.registry.ProvisionLicense(r.Context(), body.LicenseCode)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, account)
}

func (h *Handler) ListDevices(w http.ResponseWriter, r *http.Request) {
	account, err := h.sessions.Verify(r.Context(), bearerToken(r), r.Header.Get(FingerprintHeader))
	if err != nil {
		h.writeError(w, err)
		return
	}

	devices, err := h.registry.ListDevices(r.Context(), account.ID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, devices)
}

func (h *Handler) RemoveDevice(w http.ResponseWriter, r *http.Request) {
	account, err := h.sessions.Verify(r.Context(), bearerToken(r), r.Header.Get(FingerprintHeader))
	if err != nil {
		h.writeError(w, err)
		return
	}

	fingerprint := chi.URLParam(r, "fingerprint")
	if err := h.registry.RemoveDevice(r.Context(), account.ID, fingerprint); err != nil {
		h.writeError(w, err)
		return
	}
	if err := h.sessions.RevokeDevice(r.Context(), account.ID, fingerprint); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func bearerToken(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(auth) > len(prefix) && auth[:len(prefix)] == prefix {
		return auth[len(prefix):]
	}
	return ""
}

type errorResponse struct {
	Status string `json:"status"`
	Code   string `json:"code"`
	Error  string `json:"error"`
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status, code := errStatus(err)
	if status == http.StatusServiceUnavailable || status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}
	h.writeJSON(w, status, errorResponse{
		Status: http.StatusText(status),
		Code:   code,
		Error:  err.Error(),
	})
}

// errStatus maps the core error kinds to HTTP status codes and stable
// application codes.
func errStatus(err error) (int, string) {
	switch {
	case errors.Is(err, services.ErrInvalidInput):
		return http.StatusBadRequest, "INVALID_INPUT"
	case errors.Is(err, services.ErrWeakPassword):
		return http.StatusBadRequest, "WEAK_PASSWORD"
	case errors.Is(err, services.ErrInvalidCode):
		return http.StatusNotFound, "INVALID_LICENSE_CODE"
	case errors.Is(err, services.ErrAlreadyActivated):
		return http.StatusConflict, "ALREADY_ACTIVATED"
	case errors.Is(err, services.ErrUsernameTaken):
		return http.StatusConflict, "USERNAME_TAKEN"
	case errors.Is(err, services.ErrInvalidCredentials):
		return http.StatusUnauthorized, "INVALID_CREDENTIALS"
	case errors.Is(err, services.ErrNotActivated):
		return http.StatusForbidden, "NOT_ACTIVATED"
	case errors.Is(err, services.ErrDeviceLimitExceeded):
		return http.StatusForbidden, "DEVICE_LIMIT_EXCEEDED"
	case errors.Is(err, services.ErrSessionNotFound):
		return http.StatusUnauthorized, "SESSION_NOT_FOUND"
	case errors.Is(err, services.ErrSessionExpired):
		return http.StatusUnauthorized, "SESSION_EXPIRED"
	case errors.Is(err, services.ErrDeviceMismatch):
		return http.StatusUnauthorized, "DEVICE_MISMATCH"
	case errors.Is(err, services.ErrStorageUnavailable):
		return http.StatusServiceUnavailable, "STORAGE_UNAVAILABLE"
	default:
		return http.StatusInternalServerError, "INTERNAL_ERROR"
	}
}
