package server

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/hihaowen/easysso/internal/platform/audit"
	"github.com/hihaowen/easysso/internal/platform/logger"
	"github.com/hihaowen/easysso/internal/sso/models"
	"github.com/hihaowen/easysso/internal/sso/session"
	"github.com/hihaowen/easysso/internal/sso/store"
	"github.com/hihaowen/easysso/internal/token"
	dErrors "github.com/hihaowen/easysso/pkg/domain-errors"
)

type ServiceSuite struct {
	suite.Suite
	service *Service
	store   *store.InMemoryStore
	audit   *audit.MemoryPublisher
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	registry, err := models.NewRegistry([]models.BrokerRegistration{
		{ID: "b1", Secret: "s1", SyncURL: "https://b1.example.com/sync", Host: "b1.example.com"},
		{ID: "b2", Secret: "s2", SyncURL: "https://b2.example.com/sync", Host: "b2.example.com"},
	})
	s.Require().NoError(err)

	s.store = store.NewInMemoryStore()
	s.audit = audit.NewMemoryPublisher()
	s.service = New(
		logger.Discard(),
		registry,
		s.store,
		session.NewManager(session.NewInMemoryState()),
		WithAudit(s.audit),
		WithHost("sso.example.com"),
	)
}

func (s *ServiceSuite) login() *models.LoginResult {
	sess := s.service.Sessions().Start()
	result, err := s.service.Login(context.Background(), sess, models.LoginUser{LoginID: "u1", LoginName: "Alice"}, "")
	s.Require().NoError(err)
	return result
}

// parseCallback splits one sync callback URL into its base and query fields.
func (s *ServiceSuite) parseCallback(raw string) (base string, q url.Values) {
	u, err := url.Parse(raw)
	s.Require().NoError(err)
	q = u.Query()
	u.RawQuery = ""
	return u.String(), q
}

func (s *ServiceSuite) TestLoginIssuesOneTokenPerBroker() {
	ctx := context.Background()
	result := s.login()

	s.Len(result.CallbackURLs, 2)
	s.Equal("u1", result.User.LoginID)

	members, err := s.store.Members(ctx, store.ReverseKey(result.SessionID))
	s.Require().NoError(err)
	s.Len(members, 2)

	// Every reverse member resolves through its forward entry back to the
	// same session.
	for _, m := range members {
		ref, err := store.DecodeMember(m)
		s.Require().NoError(err)
		sessionID, err := s.store.Get(ctx, store.ForwardKey(ref))
		s.Require().NoError(err)
		s.Equal(result.SessionID, sessionID)
	}
}

func (s *ServiceSuite) TestLoginCallbackURLIsSigned() {
	result := s.login()

	base, q := s.parseCallback(result.CallbackURLs[0])
	s.Equal("https://b1.example.com/sync", base)
	s.Equal("login", q.Get("command"))
	s.Equal("b1", q.Get("broker_id"))
	s.NotEmpty(q.Get("token"))
	s.True(token.Verify("b1", []byte("s1"), q.Get("token"), q.Get("check_sum")))
}

func (s *ServiceSuite) TestLoginRejectsEmptyIdentity() {
	sess := s.service.Sessions().Start()
	_, err := s.service.Login(context.Background(), sess, models.LoginUser{LoginName: "Nameless"}, "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthenticated))
}

func (s *ServiceSuite) TestFacadeUserReturnsIdentity() {
	result := s.login()
	_, q := s.parseCallback(result.CallbackURLs[0])
	tok := q.Get("token")

	got, err := s.service.Facade(context.Background(), CommandUser, Params{
		BrokerID: "b1",
		Token:    tok,
		Checksum: token.Sign("b1", []byte("s1"), tok),
	})
	s.Require().NoError(err)
	s.Require().NotNil(got.User)
	s.Equal("u1", got.User.LoginID)
	s.Equal("Alice", got.User.LoginName)
}

func (s *ServiceSuite) TestFacadeRejectsTamperedChecksum() {
	result := s.login()
	_, q := s.parseCallback(result.CallbackURLs[0])
	tok := q.Get("token")

	sum := token.Sign("b1", []byte("s1"), tok)
	tampered := "0" + sum[1:]
	if tampered == sum {
		tampered = "1" + sum[1:]
	}

	_, err := s.service.Facade(context.Background(), CommandUser, Params{
		BrokerID: "b1",
		Token:    tok,
		Checksum: tampered,
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeSignatureInvalid))
}

func (s *ServiceSuite) TestFacadeRejectsUnknownBroker() {
	_, err := s.service.Facade(context.Background(), CommandUser, Params{
		BrokerID: "nope",
		Token:    "t",
		Checksum: token.Sign("nope", []byte(""), "t"),
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeSignatureInvalid))
}

func (s *ServiceSuite) TestFacadeUserNeedsLoginForUnknownToken() {
	tok := strings.Repeat("ab", 16)
	_, err := s.service.Facade(context.Background(), CommandUser, Params{
		BrokerID: "b1",
		Token:    tok,
		Checksum: token.Sign("b1", []byte("s1"), tok),
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNeedLogin))
}

func (s *ServiceSuite) TestLogoutCascadesAndInvalidatesAllTokens() {
	ctx := context.Background()
	result := s.login()

	tokens := make(map[string]string)
	for _, raw := range result.CallbackURLs {
		_, q := s.parseCallback(raw)
		tokens[q.Get("broker_id")] = q.Get("token")
	}

	sess, err := s.service.Sessions().Acquire(result.SessionID)
	s.Require().NoError(err)
	logout, err := s.service.Logout(ctx, sess)
	s.Require().NoError(err)
	s.Len(logout.CallbackURLs, 2)
	for _, raw := range logout.CallbackURLs {
		_, q := s.parseCallback(raw)
		s.Equal("logout", q.Get("command"))
	}

	members, err := s.store.Members(ctx, store.ReverseKey(result.SessionID))
	s.Require().NoError(err)
	s.Empty(members)

	// Any prior token now fails the user command with NeedLogin.
	for brokerID, tok := range tokens {
		secret := []byte("s1")
		if brokerID == "b2" {
			secret = []byte("s2")
		}
		_, err := s.service.Facade(ctx, CommandUser, Params{
			BrokerID: brokerID,
			Token:    tok,
			Checksum: token.Sign(brokerID, secret, tok),
		})
		s.Require().Error(err, "broker %s token should be dead", brokerID)
		s.True(dErrors.HasCode(err, dErrors.CodeNeedLogin))
	}
}

func (s *ServiceSuite) TestLogoutIsIdempotent() {
	ctx := context.Background()
	result := s.login()

	sess, err := s.service.Sessions().Acquire(result.SessionID)
	s.Require().NoError(err)

	first, err := s.service.Logout(ctx, sess)
	s.Require().NoError(err)
	s.Len(first.CallbackURLs, 2)

	second, err := s.service.Logout(ctx, sess)
	s.Require().NoError(err)
	s.Empty(second.CallbackURLs)
}

func (s *ServiceSuite) TestFacadeLogoutCascadesToSiblings() {
	ctx := context.Background()
	result := s.login()
	_, q := s.parseCallback(result.CallbackURLs[0])
	tok := q.Get("token")

	got, err := s.service.Facade(ctx, CommandLogout, Params{
		BrokerID: "b1",
		Token:    tok,
		Checksum: token.Sign("b1", []byte("s1"), tok),
	})
	s.Require().NoError(err)
	s.Require().NotNil(got.Logout)
	s.Len(got.Logout.CallbackURLs, 2, "initiator gets pings for every broker of the session")

	// The session identity is gone; the server's own view is empty.
	sess, err := s.service.Sessions().Acquire(result.SessionID)
	s.Require().NoError(err)
	user, err := s.service.User(ctx, sess)
	s.Require().NoError(err)
	s.True(user.IsEmpty())
}

func (s *ServiceSuite) TestFacadeLogoutUnknownTokenIsLookupError() {
	tok := strings.Repeat("cd", 16)
	_, err := s.service.Facade(context.Background(), CommandLogout, Params{
		BrokerID: "b1",
		Token:    tok,
		Checksum: token.Sign("b1", []byte("s1"), tok),
	})
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestSyncBrokerLoginAddsOneRef() {
	ctx := context.Background()
	result := s.login()

	sess, err := s.service.Sessions().Acquire(result.SessionID)
	s.Require().NoError(err)
	sync, err := s.service.SyncBrokerLogin(ctx, sess, "b2", "")
	s.Require().NoError(err)
	s.Len(sync.CallbackURLs, 1)
	s.Equal("u1", sync.User.LoginID)

	members, err := s.store.Members(ctx, store.ReverseKey(result.SessionID))
	s.Require().NoError(err)
	s.Len(members, 3, "two from login plus the re-sync")
}

func (s *ServiceSuite) TestSyncBrokerLoginRequiresIdentity() {
	sess := s.service.Sessions().Start()
	_, err := s.service.SyncBrokerLogin(context.Background(), sess, "b1", "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeUnauthenticated))
}

func (s *ServiceSuite) TestSyncBrokerLoginUnknownBroker() {
	sess := s.service.Sessions().Start()
	_, err := s.service.SyncBrokerLogin(context.Background(), sess, "nope", "")
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
}

func (s *ServiceSuite) TestValidateReturnURL() {
	cases := []struct {
		name      string
		returnURL string
		ok        bool
	}{
		{"empty is allowed", "", true},
		{"server host", "https://sso.example.com/after", true},
		{"broker host", "https://b2.example.com/app", true},
		{"foreign host", "https://evil.example.com/", false},
		{"relative URL", "/after", false},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			err := s.service.ValidateReturnURL(tc.returnURL)
			if tc.ok {
				s.NoError(err)
			} else {
				s.Require().Error(err)
				s.True(dErrors.HasCode(err, dErrors.CodeUntrustedReturnURL))
			}
		})
	}
}

func (s *ServiceSuite) TestParseCommand() {
	for _, good := range []string{"user", "logout"} {
		cmd, err := ParseCommand(good)
		s.NoError(err)
		s.Equal(good, string(cmd))
	}
	_, err := ParseCommand("login")
	s.Error(err, "login is a broker sync command, not a facade command")
	_, err = ParseCommand(fmt.Sprintf("sync%s", "User"))
	s.Error(err)
}

func (s *ServiceSuite) TestAuditTrail() {
	ctx := context.Background()
	result := s.login()
	sess, err := s.service.Sessions().Acquire(result.SessionID)
	s.Require().NoError(err)
	_, err = s.service.Logout(ctx, sess)
	s.Require().NoError(err)

	var types []audit.EventType
	for _, e := range s.audit.Events() {
		types = append(types, e.Type)
	}
	s.Contains(types, audit.EventLogin)
	s.Contains(types, audit.EventCascadeLogout)
	s.Contains(types, audit.EventLogout)
}
