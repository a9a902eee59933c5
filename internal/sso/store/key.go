package store

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/hihaowen/easysso/internal/sso/models"
)

// Namespace partitions the store's key space.
type Namespace string

const (
	// NamespaceBrokerSession holds forward entries: (broker, token) -> session id.
	NamespaceBrokerSession Namespace = "broker_session"
	// NamespaceSessionBrokers holds reverse sets: session id -> token refs.
	NamespaceSessionBrokers Namespace = "session_brokers"
)

// Key is a structured store key. Fields are kept separate until the store
// serializes them, so a broker id containing the join delimiter cannot forge
// or shadow another key.
type Key struct {
	Namespace Namespace
	BrokerID  string
	Token     string
	SessionID string
}

// ForwardKey names the forward entry for one token ref.
func ForwardKey(ref models.TokenRef) Key {
	return Key{Namespace: NamespaceBrokerSession, BrokerID: ref.BrokerID, Token: ref.Token}
}

// ReverseKey names the reverse set of one session.
func ReverseKey(sessionID string) Key {
	return Key{Namespace: NamespaceSessionBrokers, SessionID: sessionID}
}

// String serializes the key with percent-escaped fields so the delimiter is
// unambiguous regardless of field contents.
func (k Key) String() string {
	switch k.Namespace {
	case NamespaceBrokerSession:
		return fmt.Sprintf("sso:%s:%s:%s", k.Namespace, url.QueryEscape(k.BrokerID), url.QueryEscape(k.Token))
	case NamespaceSessionBrokers:
		return fmt.Sprintf("sso:%s:%s", k.Namespace, url.QueryEscape(k.SessionID))
	default:
		return fmt.Sprintf("sso:%s", k.Namespace)
	}
}

// Member is a serialized token ref held in a reverse set.
type Member string

// EncodeMember serializes a token ref for set membership using the same
// escaping rules as Key.
func EncodeMember(ref models.TokenRef) Member {
	return Member(url.QueryEscape(ref.BrokerID) + ":" + url.QueryEscape(ref.Token))
}

// DecodeMember parses a reverse-set member back into a token ref.
func DecodeMember(m Member) (models.TokenRef, error) {
	brokerPart, tokenPart, ok := strings.Cut(string(m), ":")
	if !ok {
		return models.TokenRef{}, fmt.Errorf("malformed set member %q", m)
	}
	brokerID, err := url.QueryUnescape(brokerPart)
	if err != nil {
		return models.TokenRef{}, fmt.Errorf("malformed set member %q: %w", m, err)
	}
	tok, err := url.QueryUnescape(tokenPart)
	if err != nil {
		return models.TokenRef{}, fmt.Errorf("malformed set member %q: %w", m, err)
	}
	return models.TokenRef{BrokerID: brokerID, Token: tok}, nil
}
