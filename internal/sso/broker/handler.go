package broker

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hihaowen/easysso/internal/platform/middleware"
	dErrors "github.com/hihaowen/easysso/pkg/domain-errors"
)

// Handler exposes the broker over HTTP: the sync endpoint the server calls
// back, plus the pages a hosting application needs (current user, logout).
type Handler struct {
	logger *slog.Logger
	broker *Broker
}

func NewHandler(b *Broker, logger *slog.Logger) *Handler {
	return &Handler{logger: logger, broker: b}
}

// Register wires the broker routes onto the router.
func (h *Handler) Register(r chi.Router) {
	br := chi.NewRouter()
	br.Use(middleware.RequestID)
	br.Use(middleware.Recovery(h.logger))
	br.Use(middleware.Logger(h.logger))
	br.Use(middleware.Timeout(10 * time.Second))
	br.Get("/sync", h.handleSync)
	br.Get("/user", h.handleUser)
	br.Post("/logout", h.handleLogout)
	br.Get("/", h.handleIndex)
	r.Mount("/", br)
}

// handleSync is the server's callback target:
// GET /sync?command={login|logout}&broker_id&token&check_sum.
// On a bad signature the cookie stays untouched.
func (h *Handler) handleSync(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	command, err := ParseSyncCommand(q.Get("command"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	mutation, err := h.broker.Facade(command, SyncParams{
		BrokerID: q.Get("broker_id"),
		Token:    q.Get("token"),
		Checksum: q.Get("check_sum"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	applyCookie(w, mutation)
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// handleUser resolves the current identity through the gateway.
func (h *Handler) handleUser(w http.ResponseWriter, r *http.Request) {
	tok, _ := h.broker.TokenFromRequest(r)
	user, err := h.broker.User(r.Context(), tok)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(user)
}

// handleLogout logs the shared session out server-side, clears the local
// cookie, and hands the sibling callback URLs to the page for fan-out.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	tok, _ := h.broker.TokenFromRequest(r)
	urls, err := h.broker.Logout(r.Context(), tok)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	applyCookie(w, &CookieMutation{Name: h.broker.CookieName(), Clear: true})
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{"script_src": urls})
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	h.handleUser(w, r)
}

// writeError translates domain errors; NeedLogin becomes a redirect hint with
// the configured login URL.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	code := dErrors.CodeOf(err)
	if code == dErrors.CodeSignatureInvalid {
		h.logger.WarnContext(r.Context(), "rejected sync callback",
			"path", r.URL.Path,
		)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(dErrors.ToHTTPStatus(code))

	var needLogin *NeedLoginError
	if errors.As(err, &needLogin) {
		_ = json.NewEncoder(w).Encode(map[string]string{
			"error":     string(code),
			"login_url": needLogin.LoginURL,
		})
		return
	}
	_ = json.NewEncoder(w).Encode(map[string]string{"error": string(code)})
}

func applyCookie(w http.ResponseWriter, m *CookieMutation) {
	c := &http.Cookie{
		Name:     m.Name,
		Value:    m.Value,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	if m.Clear {
		c.Value = ""
		c.MaxAge = -1
	}
	http.SetCookie(w, c)
}
