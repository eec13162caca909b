package responses

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/angelmondragon/buildmart-backend/pkg/docstore"
	pkgerrors "github.com/angelmondragon/buildmart-backend/pkg/errors"
	"github.com/angelmondragon/buildmart-backend/pkg/logger"
)

// retryAfterSeconds is advertised on 429 and 503 responses.
const retryAfterSeconds = 2

func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, SuccessEnvelope{Data: data})
}

// WriteError renders err as the error envelope. Typed errors keep their code;
// raw document store failures are classified before falling back to INTERNAL_ERROR.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}

	typed := pkgerrors.As(err)
	if typed == nil {
		typed = classify(err)
	}

	meta := pkgerrors.MetadataFor(typed.Code())

	msg := meta.PublicMessage
	if meta.HTTPStatus < http.StatusInternalServerError {
		if m := typed.Message(); m != "" {
			msg = m
		}
	}
	if public := typed.PublicMessage(); public != "" {
		msg = public
	}

	payload := ErrorEnvelope{
		Error: APIError{
			Code:    string(typed.Code()),
			Message: msg,
		},
	}
	if meta.DetailsAllowed {
		if details := typed.Details(); details != nil {
			payload.Error.Details = details
		}
	}

	if logg != nil {
		logRequestError(ctx, logg, meta.HTTPStatus, err)
	}

	if meta.HTTPStatus == http.StatusServiceUnavailable || meta.HTTPStatus == http.StatusTooManyRequests {
		w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	}
	writeJSON(w, meta.HTTPStatus, payload)
}

func classify(err error) *pkgerrors.Error {
	switch {
	case docstore.IsUnavailable(err):
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "document store unavailable")
	case errors.Is(err, docstore.ErrContention):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "too many concurrent updates, retry the request")
	case errors.Is(err, docstore.ErrPreconditionFailed):
		return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "document changed concurrently")
	case errors.Is(err, docstore.ErrInvalidPath), errors.Is(err, docstore.ErrInvalidValue):
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid identifier")
	case errors.Is(err, context.DeadlineExceeded):
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "request timed out")
	default:
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
}

// logRequestError logs client mistakes at warn and everything else at error.
func logRequestError(ctx context.Context, logg *logger.Logger, status int, err error) {
	fields := pkgerrors.Dump(err).Fields()
	fields["status"] = status
	ctx = logg.WithFields(ctx, fields)

	if status < http.StatusInternalServerError {
		logg.Warn(ctx, "request.rejected")
		return
	}
	logg.Error(ctx, "request.error", err)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf(`{"level":"error","msg":"failed to encode response","err":"%v"}`, err)
	}
}
