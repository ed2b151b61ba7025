package portal

import (
	"errors"
	"net/http"
)

// StatusFor maps a portal-side failure to the status the API answers with.
// Transport failures are the portal's fault, not the caller's.
func StatusFor(err error) int {
	var te *TransportError
	if errors.As(err, &te) {
		return http.StatusBadGateway
	}
	var upstream interface{ Upstream() bool }
	if errors.As(err, &upstream) && upstream.Upstream() {
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}
