package server

import (
	"context"

	"github.com/hihaowen/easysso/internal/platform/audit"
	"github.com/hihaowen/easysso/internal/sso/models"
	"github.com/hihaowen/easysso/internal/sso/session"
	"github.com/hihaowen/easysso/internal/sso/store"
	dErrors "github.com/hihaowen/easysso/pkg/domain-errors"
)

// Logout clears the session's identity and cascades: every broker holding a
// token for this session gets its forward entry deleted and a signed logout
// callback URL emitted. Idempotent; a second call yields an empty list.
func (s *Service) Logout(ctx context.Context, sess *session.Handle) (*models.LogoutResult, error) {
	ctx, span := s.tracer.Start(ctx, "server.Logout")
	defer span.End()

	if err := sess.ClearIdentity(ctx); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "clear session identity")
	}
	urls, err := s.cascadeLogout(ctx, sess.ID())
	if err != nil {
		return nil, err
	}

	s.emitAudit(ctx, audit.Event{
		Type:      audit.EventLogout,
		SessionID: sess.ID(),
	})
	s.logger.InfoContext(ctx, "logout",
		"session_id", sess.ID(),
		"brokers", len(urls),
	)

	return &models.LogoutResult{CallbackURLs: urls}, nil
}

// cascadeLogout walks the session's reverse set, deleting each forward entry
// and collecting signed logout callback URLs, then deletes the set itself.
// The reverse set is authoritative; a ref whose broker is no longer
// registered is dropped with a warning rather than failing the cascade.
func (s *Service) cascadeLogout(ctx context.Context, sessionID string) ([]string, error) {
	members, err := s.store.Members(ctx, store.ReverseKey(sessionID))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "list session brokers")
	}

	urls := make([]string, 0, len(members))
	for _, member := range members {
		ref, err := store.DecodeMember(member)
		if err != nil {
			s.logger.WarnContext(ctx, "skipping malformed reverse-set member",
				"session_id", sessionID,
				"error", err,
			)
			continue
		}

		if err := s.store.Delete(ctx, store.ForwardKey(ref)); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "delete forward entry")
		}

		reg, ok := s.registry.Lookup(ref.BrokerID)
		if !ok {
			s.logger.WarnContext(ctx, "token ref for unregistered broker",
				"session_id", sessionID,
				"broker_id", ref.BrokerID,
			)
			continue
		}
		u, err := syncCallbackURL(reg, commandLogout, ref.Token)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "build sync callback URL")
		}
		urls = append(urls, u)
	}

	if len(members) > 0 {
		if err := s.store.Delete(ctx, store.ReverseKey(sessionID)); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "delete reverse set")
		}
		if s.metrics != nil {
			s.metrics.CascadeLogouts.Inc()
		}
		s.emitAudit(ctx, audit.Event{
			Type:      audit.EventCascadeLogout,
			SessionID: sessionID,
		})
	}

	return urls, nil
}
