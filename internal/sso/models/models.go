// Package models holds the data model of the session-sharing protocol. These
// are plain values; behavior lives in the server and broker services.
package models

import (
	"encoding/json"
	"fmt"
	"os"
)

// BrokerRegistration is the server's static knowledge of one broker:
// identity, shared secret, the sync endpoint called back on login/logout, and
// the host trusted for return URLs. Immutable at runtime.
type BrokerRegistration struct {
	ID      string `json:"broker_id"`
	Secret  string `json:"secret"`
	SyncURL string `json:"sync_url"`
	Host    string `json:"host"`
}

// SecretBytes returns the shared secret as the key material the checksum
// primitives expect.
func (b BrokerRegistration) SecretBytes() []byte { return []byte(b.Secret) }

// LoginUser is the identity a broker resolves for its caller. Transient; never
// persisted on the broker side.
type LoginUser struct {
	LoginID   string `json:"login_id"`
	LoginName string `json:"login_name"`
}

// IsEmpty reports whether no user is logged in. The server's own user view
// returns an empty LoginUser rather than an error when unauthenticated.
func (u LoginUser) IsEmpty() bool { return u.LoginID == "" }

// TokenRef names one opaque token issued to one broker for one session. The
// pair is stored forward (ref -> session id) and as a member of the session's
// reverse set.
type TokenRef struct {
	BrokerID string
	Token    string
}

// LoginResult is what Server.Login returns: the identity now bound to the
// session plus one signed sync callback URL per broker for the caller's
// dispatch mechanism.
type LoginResult struct {
	User         LoginUser
	SessionID    string
	ReturnURL    string
	CallbackURLs []string
}

// LogoutResult carries the signed logout callback URLs produced by a cascade.
// An already-logged-out session yields an empty list, not an error.
type LogoutResult struct {
	CallbackURLs []string
}

// Registry is the server's broker table, keyed by broker id.
type Registry map[string]BrokerRegistration

// NewRegistry builds a Registry from a list of registrations, rejecting
// duplicates and incomplete entries up front so misconfiguration fails at
// startup rather than mid-protocol.
func NewRegistry(regs []BrokerRegistration) (Registry, error) {
	r := make(Registry, len(regs))
	for _, reg := range regs {
		if reg.ID == "" || reg.Secret == "" || reg.SyncURL == "" {
			return nil, fmt.Errorf("broker registration %q missing id, secret or sync_url", reg.ID)
		}
		if _, ok := r[reg.ID]; ok {
			return nil, fmt.Errorf("duplicate broker registration %q", reg.ID)
		}
		r[reg.ID] = reg
	}
	return r, nil
}

// LoadRegistry reads broker registrations from a JSON file.
func LoadRegistry(path string) (Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read brokers file: %w", err)
	}
	var regs []BrokerRegistration
	if err := json.Unmarshal(data, &regs); err != nil {
		return nil, fmt.Errorf("parse brokers file: %w", err)
	}
	return NewRegistry(regs)
}

// Lookup returns the registration for a broker id.
func (r Registry) Lookup(brokerID string) (BrokerRegistration, bool) {
	reg, ok := r[brokerID]
	return reg, ok
}
