package middleware

import (
	"net/http"

	"github.com/angelmondragon/buildmart-backend/api/responses"
	"github.com/angelmondragon/buildmart-backend/api/validators"
	"github.com/angelmondragon/buildmart-backend/internal/session"
	pkgAuth "github.com/angelmondragon/buildmart-backend/pkg/auth"
	authsession "github.com/angelmondragon/buildmart-backend/pkg/auth/session"
	"github.com/angelmondragon/buildmart-backend/pkg/config"
	"github.com/angelmondragon/buildmart-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/buildmart-backend/pkg/errors"
	"github.com/angelmondragon/buildmart-backend/pkg/logger"
)

// Auth validates a bearer token and seeds the request context with the caller.
func Auth(cfg config.JWTConfig, verifier authsession.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return authenticate(cfg, verifier, logg, false)
}

// StreamAuth is Auth for websocket upgrades, which may carry the token in the
// token query parameter.
func StreamAuth(cfg config.JWTConfig, verifier authsession.AccessSessionChecker, logg *logger.Logger) func(http.Handler) http.Handler {
	return authenticate(cfg, verifier, logg, true)
}

func authenticate(cfg config.JWTConfig, verifier authsession.AccessSessionChecker, logg *logger.Logger, allowQuery bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := validators.BearerToken(r, allowQuery)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}

			claims, err := pkgAuth.ParseAccessToken(cfg, token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token"))
				return
			}

			if claims.ID == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing session id"))
				return
			}

			if verifier != nil {
				ok, err := verifier.HasSession(r.Context(), claims.ID)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "validate session"))
					return
				}
				if !ok {
					responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "session unavailable"))
					return
				}
			}

			sc, err := session.FromSubject(claims.Role, claims.Subject, claims.Name)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token subject"))
				return
			}

			ctx := WithSession(r.Context(), sc)
			ctx = withAccessID(ctx, claims.ID)

			if logg != nil {
				ctx = logg.WithActorRole(ctx, string(sc.Role))
				switch sc.Role {
				case enums.RoleCustomer:
					ctx = logg.WithCustomerID(ctx, sc.CustomerID)
				case enums.RoleVendor:
					ctx = logg.WithVendorID(ctx, sc.VendorID)
				case enums.RoleAdmin:
					ctx = logg.WithField(ctx, "admin", sc.Username)
				}
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
