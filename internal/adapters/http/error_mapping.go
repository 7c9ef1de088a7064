package httpadapter

import (
	"net/http"

	"github.com/probe365/advocacia-ia-sub000/internal/core/domain"
)

// statusByKind is checked in order; the first kind present in the chain wins.
// A cold-start classifier is unavailable rather than broken, hence 503.
var statusByKind = []struct {
	kind   error
	status int
}{
	{domain.ErrInvalidInput, http.StatusBadRequest},
	{domain.ErrUnauthorized, http.StatusUnauthorized},
	{domain.ErrDocumentNotFound, http.StatusNotFound},
	{domain.ErrClassifierColdStart, http.StatusServiceUnavailable},
	{domain.ErrTemporary, http.StatusServiceUnavailable},
	{domain.ErrExternalCollaborator, http.StatusBadGateway},
}

func mapErrorToHTTPStatus(err error) int {
	for _, m := range statusByKind {
		if domain.IsKind(err, m.kind) {
			return m.status
		}
	}
	return http.StatusInternalServerError
}
