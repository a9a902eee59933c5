// Package broker implements the application side of the session-sharing
// protocol: it holds the per-broker token as an access cookie, resolves the
// current identity through the server's gateway, and accepts the server's
// signed sync callbacks.
package broker

import (
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/hihaowen/easysso/internal/token"
	dErrors "github.com/hihaowen/easysso/pkg/domain-errors"
)

// Broker is one registered application. It never learns the server's
// canonical session id; its token is its only credential.
type Broker struct {
	gateway  string
	brokerID string
	secret   []byte
	loginURL string
	client   *http.Client
	logger   *slog.Logger
}

// Option configures a Broker.
type Option func(*Broker)

// WithHTTPClient overrides the outbound client; tests point it at an
// httptest server.
func WithHTTPClient(client *http.Client) Option {
	return func(b *Broker) { b.client = client }
}

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(b *Broker) { b.logger = logger }
}

// New constructs a broker client for one registration. loginURL is where the
// hosting application should send unauthenticated users.
func New(gateway, brokerID, secret, loginURL string, opts ...Option) *Broker {
	b := &Broker{
		gateway:  gateway,
		brokerID: brokerID,
		secret:   []byte(secret),
		loginURL: loginURL,
		client:   newProtocolClient(),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// newProtocolClient builds the outbound client with the protocol's short
// bounds: 1s to connect, 2s end to end, no retries.
func newProtocolClient() *http.Client {
	return &http.Client{
		Timeout: 2 * time.Second,
		Transport: &http.Transport{
			DialContext: (&net.Dialer{Timeout: time.Second}).DialContext,
		},
	}
}

// CookieName returns the name of this broker's access cookie.
func (b *Broker) CookieName() string {
	return token.CookieName(b.brokerID)
}

// TokenFromRequest reads the access cookie from an inbound request. A missing
// or empty cookie means the user is unauthenticated locally.
func (b *Broker) TokenFromRequest(r *http.Request) (string, bool) {
	c, err := r.Cookie(b.CookieName())
	if err != nil || c.Value == "" {
		return "", false
	}
	return c.Value, true
}

// NeedLoginError says the caller holds no usable credential. It carries the
// configured login URL so hosts can redirect.
type NeedLoginError struct {
	LoginURL string
}

func (e *NeedLoginError) Error() string {
	return fmt.Sprintf("not logged in, redirect to %s", e.LoginURL)
}

func (b *Broker) needLogin() error {
	return dErrors.Wrap(&NeedLoginError{LoginURL: b.loginURL}, dErrors.CodeNeedLogin, "no broker token")
}
