package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/angelmondragon/buildmart-backend/api/middleware"
	"github.com/angelmondragon/buildmart-backend/internal/session"
	pkgerrors "github.com/angelmondragon/buildmart-backend/pkg/errors"
)

func callerSession(r *http.Request) (session.Context, error) {
	sc, ok := middleware.SessionFromContext(r.Context())
	if !ok {
		return session.Context{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "session context missing")
	}
	return sc, nil
}

func pathParam(r *http.Request, name string) (string, error) {
	value := strings.TrimSpace(chi.URLParam(r, name))
	if value == "" {
		return "", pkgerrors.New(pkgerrors.CodeValidation, name+" is required")
	}
	return value, nil
}

func unavailable(name string) error {
	return pkgerrors.New(pkgerrors.CodeInternal, name+" unavailable")
}
