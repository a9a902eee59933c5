package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Stores and transport layers return
// these (optionally wrapped) so the server and broker services can translate
// them into domain errors.
//
// These represent factual states about resources, not validation failures:
// - ErrNotFound: store key or set member does not exist
// - ErrExpired: session or token ref has expired out of the store
// - ErrUnavailable: store or remote endpoint temporarily unreachable
//
// For protocol-level failures (bad signature, missing login), use
// pkg/domain-errors directly.
var (
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrExpired     = errors.New("expired")
	ErrUnavailable = errors.New("unavailable")
)
