package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/barberia/backoffice/internal/platform/httpx"
	"github.com/barberia/backoffice/internal/shared"
)

// Handler wires authentication routes.
type Handler struct {
	logger   *slog.Logger
	service  *Service
	sessions *shared.SessionManager
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, sessions *shared.SessionManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, sessions: sessions}
}

// MountPublic registers routes reachable without a staff session.
func (h *Handler) MountPublic(r chi.Router) {
	r.Post("/auth/login", h.login)
}

// MountRoutes registers routes that require a staff session.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/auth/logout", h.logout)
	r.Get("/auth/me", h.me)
}

type loginRequest struct {
	Username string `json:"username" validate:"required,max=150"`
	Password string `json:"password" validate:"required"`
}

func (h *Handler) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeAndValidate(r, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	user, err := h.service.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		if httpx.IsServerError(err) {
			h.logger.Error("login", slog.Any("error", err))
		} else {
			h.logger.Warn("login rejected", slog.String("username", req.Username), slog.String("ip", r.RemoteAddr))
		}
		httpx.RespondError(w, err)
		return
	}
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	sess.SetUser(user.ID, user.Username, user.IsStaff)
	httpx.JSON(w, http.StatusOK, Me{UserID: user.ID, Username: user.Username, IsStaff: user.IsStaff})
}

func (h *Handler) logout(w http.ResponseWriter, r *http.Request) {
	h.sessions.Destroy(shared.SessionFromContext(r.Context()))
	httpx.NoContent(w)
}

func (h *Handler) me(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess.UserID() == 0 {
		httpx.RespondError(w, shared.ErrUnauthorized)
		return
	}
	httpx.JSON(w, http.StatusOK, Me{UserID: sess.UserID(), Username: sess.Username(), IsStaff: sess.IsStaff()})
}
