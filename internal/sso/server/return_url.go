package server

import (
	"net/url"

	dErrors "github.com/hihaowen/easysso/pkg/domain-errors"
)

// ValidateReturnURL enforces the open-redirect allow-list: an empty return
// URL is fine (no redirect), otherwise the URL's host must be the server's
// own host or a registered broker's host.
func (s *Service) ValidateReturnURL(returnURL string) error {
	if returnURL == "" {
		return nil
	}
	u, err := url.Parse(returnURL)
	if err != nil || u.Host == "" {
		return dErrors.New(dErrors.CodeUntrustedReturnURL, "return URL is not absolute")
	}
	if s.host != "" && u.Host == s.host {
		return nil
	}
	for _, reg := range s.registry {
		if reg.Host != "" && u.Host == reg.Host {
			return nil
		}
	}
	return dErrors.Newf(dErrors.CodeUntrustedReturnURL, "host %q is not a registered origin", u.Host)
}
