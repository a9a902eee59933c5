package broker

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/hihaowen/easysso/internal/sso/models"
	"github.com/hihaowen/easysso/internal/token"
	dErrors "github.com/hihaowen/easysso/pkg/domain-errors"
)

// envelope mirrors the gateway's wire format.
type envelope struct {
	Errno int             `json:"errno"`
	Error string          `json:"error"`
	Data  json.RawMessage `json:"data"`
}

// User resolves the identity behind tok via the gateway's user command.
func (b *Broker) User(ctx context.Context, tok string) (models.LoginUser, error) {
	if tok == "" {
		return models.LoginUser{}, b.needLogin()
	}

	data, err := b.request(ctx, "user", tok)
	if err != nil {
		return models.LoginUser{}, err
	}

	var user models.LoginUser
	if err := json.Unmarshal(data, &user); err != nil {
		return models.LoginUser{}, dErrors.Wrap(err, dErrors.CodeProtocol, "malformed user payload")
	}
	return user, nil
}

// Logout terminates the session behind tok server-side and returns the
// sibling logout callback URLs for fan-out. The caller clears the local
// cookie on success.
func (b *Broker) Logout(ctx context.Context, tok string) ([]string, error) {
	if tok == "" {
		return nil, b.needLogin()
	}

	data, err := b.request(ctx, "logout", tok)
	if err != nil {
		return nil, err
	}

	var payload struct {
		ScriptSrc []string `json:"script_src"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeProtocol, "malformed logout payload")
	}
	return payload.ScriptSrc, nil
}

// request is the sole network primitive: a signed POST to the gateway.
// Transport failures, malformed bodies, and application errnos map onto the
// transport/protocol/remote error codes; nothing is retried.
func (b *Broker) request(ctx context.Context, command, tok string) (json.RawMessage, error) {
	form := url.Values{}
	form.Set("command", command)
	form.Set("broker_id", b.brokerID)
	form.Set("token", tok)
	form.Set("check_sum", token.Sign(b.brokerID, b.secret, tok))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, b.gateway, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTransport, "build gateway request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTransport, "gateway unreachable")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeTransport, "read gateway response")
	}
	if len(body) == 0 {
		return nil, dErrors.New(dErrors.CodeProtocol, "empty gateway response")
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeProtocol, "malformed gateway response")
	}
	if resp.StatusCode != http.StatusOK || env.Errno != 0 {
		b.logger.WarnContext(ctx, "gateway returned error",
			"command", command,
			"status", resp.StatusCode,
			"errno", env.Errno,
			"error", env.Error,
		)
		if env.Errno == errnoNeedLogin {
			return nil, dErrors.Wrap(&NeedLoginError{LoginURL: b.loginURL}, dErrors.CodeNeedLogin, "server requires login")
		}
		return nil, dErrors.Newf(dErrors.CodeRemote, "gateway errno %d: %s", env.Errno, env.Error)
	}
	return env.Data, nil
}

// errnoNeedLogin is the gateway's application code for "no usable session".
const errnoNeedLogin = 401
