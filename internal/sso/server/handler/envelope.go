package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "github.com/hihaowen/easysso/pkg/domain-errors"
)

// envelope is the wire format of the gateway: errno 0 plus data on success,
// non-zero errno plus a message on failure. Brokers treat HTTP status and
// errno together as the success signal.
type envelope struct {
	Errno int    `json:"errno"`
	Error string `json:"error"`
	Data  any    `json:"data"`
}

// errnoOf maps domain error codes onto stable application error numbers.
func errnoOf(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNeedLogin, dErrors.CodeUnauthenticated:
		return 401
	case dErrors.CodeSignatureInvalid:
		return 403
	case dErrors.CodeNotFound:
		return 404
	case dErrors.CodeUntrustedReturnURL, dErrors.CodeBadRequest:
		return 400
	default:
		return 500
	}
}

func writeEnvelope(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(envelope{Errno: 0, Data: data})
}

func writeEnvelopeError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	message := "internal error"
	var de *dErrors.Error
	if errors.As(err, &de) {
		message = de.Message
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(dErrors.ToHTTPStatus(code))
	_ = json.NewEncoder(w).Encode(envelope{Errno: errnoOf(code), Error: message})
}
