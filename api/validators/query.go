package validators

import (
	"net/http"
	"strconv"
	"strings"

	pkgerrors "github.com/angelmondragon/buildmart-backend/pkg/errors"
)

// QueryString returns the sanitized value of a query parameter.
func QueryString(r *http.Request, key string, maxRunes int) string {
	return SanitizeString(r.URL.Query().Get(key), maxRunes)
}

// ParseQueryInt reads an integer query parameter within [min, max]. An absent
// parameter yields defaultVal.
func ParseQueryInt(r *http.Request, key string, defaultVal, min, max int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(key))
	if raw == "" {
		return defaultVal, nil
	}
	details := map[string]any{"field": key, "min": min, "max": max}
	value, err := strconv.Atoi(raw)
	switch {
	case err != nil:
		return 0, pkgerrors.New(pkgerrors.CodeValidation, key+" must be a whole number").WithDetails(details)
	case value < min || value > max:
		return 0, pkgerrors.New(pkgerrors.CodeValidation, key+" is out of range").WithDetails(details)
	}
	return value, nil
}
