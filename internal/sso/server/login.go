package server

import (
	"context"
	"time"

	"github.com/hihaowen/easysso/internal/platform/audit"
	"github.com/hihaowen/easysso/internal/sso/models"
	"github.com/hihaowen/easysso/internal/sso/session"
	"github.com/hihaowen/easysso/internal/sso/store"
	"github.com/hihaowen/easysso/internal/token"
	dErrors "github.com/hihaowen/easysso/pkg/domain-errors"
)

// Login binds an identity to the session and issues a fresh token to every
// registered broker. Each token is persisted as a forward entry plus a
// reverse-set membership before its callback URL is emitted, so a dispatched
// callback always refers to a resolvable token.
//
// The returned callback URLs are the caller's to dispatch; redirect chains,
// iframe fan-out, and server-to-server calls are all valid transports.
func (s *Service) Login(ctx context.Context, sess *session.Handle, identity models.LoginUser, returnURL string) (*models.LoginResult, error) {
	ctx, span := s.tracer.Start(ctx, "server.Login")
	defer span.End()

	if identity.LoginID == "" {
		return nil, dErrors.New(dErrors.CodeUnauthenticated, "login requires a non-empty login id")
	}
	if err := s.ValidateReturnURL(returnURL); err != nil {
		return nil, err
	}

	urls := make([]string, 0, len(s.registry))
	for _, brokerID := range s.brokerIDs() {
		u, err := s.issueBrokerToken(ctx, sess, s.registry[brokerID], commandLogin)
		if err != nil {
			return nil, err
		}
		urls = append(urls, u)
	}

	if err := sess.SetIdentity(ctx, identity); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "store session identity")
	}

	if s.metrics != nil {
		s.metrics.Logins.Inc()
	}
	s.emitAudit(ctx, audit.Event{
		Type:      audit.EventLogin,
		SessionID: sess.ID(),
		LoginID:   identity.LoginID,
	})
	s.logger.InfoContext(ctx, "login",
		"session_id", sess.ID(),
		"login_id", identity.LoginID,
		"brokers", len(urls),
	)

	return &models.LoginResult{
		User:         identity,
		SessionID:    sess.ID(),
		ReturnURL:    returnURL,
		CallbackURLs: urls,
	}, nil
}

// SyncBrokerLogin re-establishes sync for a single broker joining after the
// initial login. The session must already hold an identity.
func (s *Service) SyncBrokerLogin(ctx context.Context, sess *session.Handle, brokerID, returnURL string) (*models.LoginResult, error) {
	ctx, span := s.tracer.Start(ctx, "server.SyncBrokerLogin")
	defer span.End()

	reg, ok := s.registry.Lookup(brokerID)
	if !ok {
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "unknown broker %q", brokerID)
	}
	if err := s.ValidateReturnURL(returnURL); err != nil {
		return nil, err
	}

	identity, err := sess.Identity(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load session identity")
	}
	if identity.IsEmpty() {
		return nil, dErrors.New(dErrors.CodeUnauthenticated, "session holds no identity")
	}

	u, err := s.issueBrokerToken(ctx, sess, reg, commandLogin)
	if err != nil {
		return nil, err
	}

	s.emitAudit(ctx, audit.Event{
		Type:      audit.EventSyncLogin,
		SessionID: sess.ID(),
		BrokerID:  brokerID,
		LoginID:   identity.LoginID,
	})
	s.logger.InfoContext(ctx, "sync broker login",
		"session_id", sess.ID(),
		"broker_id", brokerID,
	)

	return &models.LoginResult{
		User:         identity,
		SessionID:    sess.ID(),
		ReturnURL:    returnURL,
		CallbackURLs: []string{u},
	}, nil
}

// User reads the server's own end-user view of the session. Unauthenticated
// sessions yield an empty LoginUser, not an error; that distinction belongs
// to the broker-facing facade.
func (s *Service) User(ctx context.Context, sess *session.Handle) (models.LoginUser, error) {
	identity, err := sess.Identity(ctx)
	if err != nil {
		return models.LoginUser{}, dErrors.Wrap(err, dErrors.CodeInternal, "load session identity")
	}
	return identity, nil
}

// issueBrokerToken mints one token ref for (broker, session), persists the
// forward entry and reverse membership, and returns the signed callback URL.
func (s *Service) issueBrokerToken(ctx context.Context, sess *session.Handle, reg models.BrokerRegistration, command string) (string, error) {
	tok, err := token.NewBrokerToken()
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "mint broker token")
	}
	ref := models.TokenRef{BrokerID: reg.ID, Token: tok}

	if err := s.store.Set(ctx, store.ForwardKey(ref), sess.ID()); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "persist forward entry")
	}
	if err := s.store.AddMember(ctx, store.ReverseKey(sess.ID()), store.EncodeMember(ref)); err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "persist reverse membership")
	}

	u, err := syncCallbackURL(reg, command, tok)
	if err != nil {
		return "", dErrors.Wrap(err, dErrors.CodeInternal, "build sync callback URL")
	}

	if s.metrics != nil {
		s.metrics.TokensIssued.Inc()
	}
	return u, nil
}

func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	event.Timestamp = time.Now()
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed",
			"error", err,
			"event", string(event.Type),
		)
	}
}
