// Package handler exposes the server component over HTTP: the broker-facing
// gateway RPC and the end-user login/logout/user endpoints.
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hihaowen/easysso/internal/platform/middleware"
	"github.com/hihaowen/easysso/internal/sso/models"
	"github.com/hihaowen/easysso/internal/sso/server"
	"github.com/hihaowen/easysso/internal/sso/session"
	dErrors "github.com/hihaowen/easysso/pkg/domain-errors"
)

// sessionCookie is the ambient end-user session cookie. Brokers never see it;
// they only ever hold their own scoped tokens.
const sessionCookie = "sso_session"

// Handler is the thin HTTP layer over the server service. It owns cookie I/O
// and the wire envelope; protocol logic stays in the service.
type Handler struct {
	logger  *slog.Logger
	service *server.Service
}

func New(service *server.Service, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, service: service}
}

// Register wires the server routes onto the router.
func (h *Handler) Register(r chi.Router) {
	sr := chi.NewRouter()
	sr.Use(middleware.RequestID)
	sr.Use(middleware.Recovery(h.logger))
	sr.Use(middleware.Logger(h.logger))
	sr.Use(middleware.Timeout(10 * time.Second))
	sr.Post("/sso/gateway", h.handleGateway)
	sr.Post("/sso/login", h.handleLogin)
	sr.Get("/sso/sync-login", h.handleSyncLogin)
	sr.Post("/sso/logout", h.handleLogout)
	sr.Get("/sso/user", h.handleUser)
	r.Mount("/", sr)
}

// handleGateway is the broker-facing RPC surface:
// POST form command/broker_id/token/check_sum, JSON envelope out.
func (h *Handler) handleGateway(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeEnvelopeError(w, dErrors.New(dErrors.CodeBadRequest, "malformed form body"))
		return
	}

	command, err := server.ParseCommand(r.PostFormValue("command"))
	if err != nil {
		writeEnvelopeError(w, err)
		return
	}

	result, err := h.service.Facade(r.Context(), command, server.Params{
		BrokerID: r.PostFormValue("broker_id"),
		Token:    r.PostFormValue("token"),
		Checksum: r.PostFormValue("check_sum"),
	})
	if err != nil {
		writeEnvelopeError(w, err)
		return
	}

	switch {
	case result.User != nil:
		writeEnvelope(w, map[string]any{
			"login_id":   result.User.LoginID,
			"login_name": result.User.LoginName,
		})
	case result.Logout != nil:
		writeEnvelope(w, map[string]any{
			"script_src": result.Logout.CallbackURLs,
		})
	default:
		writeEnvelopeError(w, dErrors.New(dErrors.CodeInternal, "empty facade result"))
	}
}

// handleLogin binds an identity to the ambient session. The identity fields
// come from the host application's authentication step; this endpoint only
// runs the protocol side.
func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		writeEnvelopeError(w, dErrors.New(dErrors.CodeBadRequest, "malformed form body"))
		return
	}

	sess := h.ambientSession(w, r)
	result, err := h.service.Login(r.Context(), sess, models.LoginUser{
		LoginID:   r.PostFormValue("login_id"),
		LoginName: r.PostFormValue("login_name"),
	}, r.PostFormValue("return_url"))
	if err != nil {
		writeEnvelopeError(w, err)
		return
	}

	writeEnvelope(w, loginPayload(result))
}

// handleSyncLogin re-establishes sync for one broker joining after login.
func (h *Handler) handleSyncLogin(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.existingSession(r)
	if !ok {
		writeEnvelopeError(w, dErrors.New(dErrors.CodeUnauthenticated, "no ambient session"))
		return
	}

	result, err := h.service.SyncBrokerLogin(r.Context(), sess, r.URL.Query().Get("broker_id"), r.URL.Query().Get("return_url"))
	if err != nil {
		writeEnvelopeError(w, err)
		return
	}

	writeEnvelope(w, loginPayload(result))
}

// handleLogout terminates the ambient session and reports the cascade URLs.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.existingSession(r)
	if !ok {
		// Nothing to log out; idempotent like the service.
		writeEnvelope(w, map[string]any{"script_src": []string{}})
		return
	}

	result, err := h.service.Logout(r.Context(), sess)
	if err != nil {
		writeEnvelopeError(w, err)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	writeEnvelope(w, map[string]any{"script_src": result.CallbackURLs})
}

// handleUser is the server's own end-user view; unauthenticated reads as an
// empty identity, not an error.
func (h *Handler) handleUser(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.existingSession(r)
	if !ok {
		writeEnvelope(w, map[string]any{"login_id": "", "login_name": ""})
		return
	}

	user, err := h.service.User(r.Context(), sess)
	if err != nil {
		writeEnvelopeError(w, err)
		return
	}
	writeEnvelope(w, map[string]any{
		"login_id":   user.LoginID,
		"login_name": user.LoginName,
	})
}

// ambientSession returns the handle for the request's session cookie,
// starting a new session (and setting the cookie) when none exists.
func (h *Handler) ambientSession(w http.ResponseWriter, r *http.Request) *session.Handle {
	if sess, ok := h.existingSession(r); ok {
		return sess
	}
	sess := h.service.Sessions().Start()
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    sess.ID(),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	return sess
}

func (h *Handler) existingSession(r *http.Request) (*session.Handle, bool) {
	c, err := r.Cookie(sessionCookie)
	if err != nil || c.Value == "" {
		return nil, false
	}
	sess, err := h.service.Sessions().Acquire(c.Value)
	if err != nil {
		return nil, false
	}
	return sess, true
}

func loginPayload(result *models.LoginResult) map[string]any {
	return map[string]any{
		"login_id":   result.User.LoginID,
		"login_name": result.User.LoginName,
		"return_url": result.ReturnURL,
		"script_src": result.CallbackURLs,
	}
}
