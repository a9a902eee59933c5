package broker

import (
	"github.com/hihaowen/easysso/internal/token"
	dErrors "github.com/hihaowen/easysso/pkg/domain-errors"
)

// SyncCommand is a server-initiated sync command.
type SyncCommand string

const (
	SyncLogin  SyncCommand = "login"
	SyncLogout SyncCommand = "logout"
)

// ParseSyncCommand maps a wire command onto the enum, rejecting anything else.
func ParseSyncCommand(s string) (SyncCommand, error) {
	switch SyncCommand(s) {
	case SyncLogin:
		return SyncLogin, nil
	case SyncLogout:
		return SyncLogout, nil
	default:
		return "", dErrors.Newf(dErrors.CodeBadRequest, "unsupported command %q", s)
	}
}

// SyncParams are the signed fields of a sync callback.
type SyncParams struct {
	BrokerID string
	Token    string
	Checksum string
}

// CookieMutation is the outcome of a sync command: either store the token as
// the access cookie or clear it. Cookie I/O stays at the HTTP edge.
type CookieMutation struct {
	Name  string
	Value string
	Clear bool
}

// Facade is the server-facing sync surface. It verifies the checksum against
// the local secret before honoring the command; a forged callback changes
// nothing.
func (b *Broker) Facade(command SyncCommand, params SyncParams) (*CookieMutation, error) {
	if !token.Verify(params.BrokerID, b.secret, params.Token, params.Checksum) {
		return nil, dErrors.New(dErrors.CodeSignatureInvalid, "signature verification failed")
	}

	switch command {
	case SyncLogin:
		return &CookieMutation{Name: b.CookieName(), Value: params.Token}, nil
	case SyncLogout:
		return &CookieMutation{Name: b.CookieName(), Clear: true}, nil
	default:
		return nil, dErrors.Newf(dErrors.CodeBadRequest, "unsupported command %q", command)
	}
}
