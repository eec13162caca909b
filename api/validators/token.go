package validators

import (
	"errors"
	"net/http"
	"strings"
)

var ErrMissingToken = errors.New("missing auth token")

// BearerToken extracts the access token from the Authorization header. When
// allowQuery is set the token query parameter is accepted as a fallback, since
// browsers cannot attach headers to websocket upgrades.
func BearerToken(r *http.Request, allowQuery bool) (string, error) {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if raw == "" && allowQuery {
		raw = strings.TrimSpace(r.URL.Query().Get("token"))
	}
	token := raw
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		return "", ErrMissingToken
	}
	return token, nil
}
