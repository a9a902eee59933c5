package server

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hihaowen/easysso/internal/platform/audit"
	"github.com/hihaowen/easysso/internal/sso/models"
	"github.com/hihaowen/easysso/internal/sso/store"
	"github.com/hihaowen/easysso/internal/token"
	dErrors "github.com/hihaowen/easysso/pkg/domain-errors"
	"github.com/hihaowen/easysso/pkg/platform/sentinel"
)

// Sync commands carried in callback URLs to brokers.
const (
	commandLogin  = "login"
	commandLogout = "logout"
)

// Command is a broker-facing facade command.
type Command string

const (
	CommandUser   Command = "user"
	CommandLogout Command = "logout"
)

// ParseCommand maps a wire command onto the enum, rejecting anything else.
func ParseCommand(s string) (Command, error) {
	switch Command(s) {
	case CommandUser:
		return CommandUser, nil
	case CommandLogout:
		return CommandLogout, nil
	default:
		return "", dErrors.Newf(dErrors.CodeBadRequest, "unsupported command %q", s)
	}
}

// Params are the authenticated fields every facade call carries.
type Params struct {
	BrokerID string
	Token    string
	Checksum string
}

// FacadeResult is the union of facade responses; exactly one field is set,
// matching the command.
type FacadeResult struct {
	User   *models.LoginUser
	Logout *models.LogoutResult
}

// Facade is the broker-facing RPC surface. It authenticates the call (known
// broker, valid checksum) before dispatching through the command switch.
func (s *Service) Facade(ctx context.Context, command Command, params Params) (*FacadeResult, error) {
	ctx, span := s.tracer.Start(ctx, "server.Facade")
	defer span.End()
	if s.metrics != nil {
		defer s.metrics.ObserveFacade(string(command), time.Now())
	}

	reg, ok := s.registry.Lookup(params.BrokerID)
	if !ok || !token.Verify(params.BrokerID, reg.SecretBytes(), params.Token, params.Checksum) {
		// One rejection path for unknown broker and bad checksum; the caller
		// learns nothing about which field was wrong.
		if s.metrics != nil {
			s.metrics.SignatureFailures.Inc()
		}
		s.emitAudit(ctx, audit.Event{
			Type:     audit.EventSignatureFailure,
			BrokerID: params.BrokerID,
			Detail:   string(command),
		})
		s.logger.WarnContext(ctx, "facade signature rejected",
			"broker_id", params.BrokerID,
			"command", string(command),
		)
		return nil, dErrors.New(dErrors.CodeSignatureInvalid, "signature verification failed")
	}

	switch command {
	case CommandUser:
		user, err := s.onUser(ctx, params.BrokerID, params.Token)
		if err != nil {
			return nil, err
		}
		return &FacadeResult{User: user}, nil
	case CommandLogout:
		result, err := s.onLogout(ctx, params.BrokerID, params.Token)
		if err != nil {
			return nil, err
		}
		return &FacadeResult{Logout: result}, nil
	default:
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "unsupported command %q", command)
	}
}

// onUser resolves the broker's token to a session and returns its identity.
// An unresolvable token and a logged-out session both mean the broker needs
// a fresh login.
func (s *Service) onUser(ctx context.Context, brokerID, tok string) (*models.LoginUser, error) {
	sessionID, err := s.resolveSession(ctx, brokerID, tok)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNeedLogin, "no session for token")
		}
		return nil, err
	}

	sess, err := s.sessions.Acquire(sessionID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "acquire session")
	}
	identity, err := sess.Identity(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "load session identity")
	}
	if identity.IsEmpty() {
		// Session exists but was logged out or expired underneath the broker.
		return nil, dErrors.New(dErrors.CodeNeedLogin, "session holds no identity")
	}
	return &identity, nil
}

// onLogout resolves the broker's token to a session, clears the identity, and
// cascades logout to every sibling broker. The returned callback URLs let the
// initiating broker fan out logout pings.
func (s *Service) onLogout(ctx context.Context, brokerID, tok string) (*models.LogoutResult, error) {
	sessionID, err := s.resolveSession(ctx, brokerID, tok)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no session for token")
		}
		return nil, err
	}

	sess, err := s.sessions.Acquire(sessionID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "acquire session")
	}
	if err := sess.ClearIdentity(ctx); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "clear session identity")
	}

	urls, err := s.cascadeLogout(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "broker-initiated logout",
		"session_id", sessionID,
		"broker_id", brokerID,
		"brokers", len(urls),
	)
	return &models.LogoutResult{CallbackURLs: urls}, nil
}

func (s *Service) resolveSession(ctx context.Context, brokerID, tok string) (string, error) {
	ref := models.TokenRef{BrokerID: brokerID, Token: tok}
	sessionID, err := s.store.Get(ctx, store.ForwardKey(ref))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return "", err
		}
		return "", dErrors.Wrap(err, dErrors.CodeInternal, fmt.Sprintf("resolve session for broker %s", brokerID))
	}
	return sessionID, nil
}
