// Package server implements the identity-holding side of the session-sharing
// protocol: it owns the canonical login session, mints per-broker tokens,
// fans out signed sync callbacks, and answers broker queries on the facade.
package server

import (
	"log/slog"
	"net/url"
	"sort"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/hihaowen/easysso/internal/platform/audit"
	"github.com/hihaowen/easysso/internal/platform/metrics"
	"github.com/hihaowen/easysso/internal/sso/models"
	"github.com/hihaowen/easysso/internal/sso/session"
	"github.com/hihaowen/easysso/internal/sso/store"
	"github.com/hihaowen/easysso/internal/token"
)

// Service is the server component. All methods take an explicit session
// handle or resolve one from a broker token; there is no ambient session.
type Service struct {
	logger   *slog.Logger
	registry models.Registry
	store    store.SessionStore
	sessions *session.Manager
	metrics  *metrics.Metrics
	audit    audit.Publisher
	tracer   trace.Tracer
	// host is the server's own host, trusted for return URLs alongside the
	// registered broker hosts.
	host string
}

// Option configures a Service.
type Option func(*Service)

// WithMetrics attaches protocol metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAudit attaches an audit publisher.
func WithAudit(p audit.Publisher) Option {
	return func(s *Service) { s.audit = p }
}

// WithHost sets the server's own host for the return-URL allow-list.
func WithHost(host string) Option {
	return func(s *Service) { s.host = host }
}

// New constructs the server component.
func New(logger *slog.Logger, registry models.Registry, st store.SessionStore, sessions *session.Manager, opts ...Option) *Service {
	s := &Service{
		logger:   logger,
		registry: registry,
		store:    st,
		sessions: sessions,
		audit:    audit.NopPublisher{},
		tracer:   otel.Tracer("easysso/server"),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Sessions exposes the session manager so the HTTP layer can bind cookie
// sessions to handles.
func (s *Service) Sessions() *session.Manager { return s.sessions }

// brokerIDs returns registry keys in stable order so callback lists are
// deterministic.
func (s *Service) brokerIDs() []string {
	ids := make([]string, 0, len(s.registry))
	for id := range s.registry {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// syncCallbackURL builds the signed sync URL for one broker:
// syncUrl?command=...&broker_id=...&token=...&check_sum=...
func syncCallbackURL(reg models.BrokerRegistration, command string, tok string) (string, error) {
	u, err := url.Parse(reg.SyncURL)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("command", command)
	q.Set("broker_id", reg.ID)
	q.Set("token", tok)
	q.Set("check_sum", token.Sign(reg.ID, reg.SecretBytes(), tok))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
