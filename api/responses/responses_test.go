package responses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sony/gobreaker"

	"github.com/angelmondragon/buildmart-backend/pkg/docstore"
	pkgerrors "github.com/angelmondragon/buildmart-backend/pkg/errors"
)

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccess(w, map[string]string{"hello": "world"})

	if got := w.Code; got != http.StatusOK {
		t.Fatalf("expected status 200 but got %d", got)
	}

	var body SuccessEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode success envelope: %v", err)
	}
	if body.Data.(map[string]any)["hello"] != "world" {
		t.Fatalf("unexpected payload %v", body.Data)
	}
}

func TestWriteErrorMapsTypedError(t *testing.T) {
	w := httptest.NewRecorder()
	err := pkgerrors.New(pkgerrors.CodeValidation, "bad input").
		WithDetails(map[string]string{"field": "demo"})
	WriteError(context.Background(), nil, w, err)

	if got := w.Code; got != http.StatusBadRequest {
		t.Fatalf("expected status 400 but got %d", got)
	}

	var body ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	if body.Error.Code != string(pkgerrors.CodeValidation) {
		t.Fatalf("unexpected code %s", body.Error.Code)
	}
	if body.Error.Message != "bad input" {
		t.Fatalf("unexpected message %s", body.Error.Message)
	}
	if body.Error.Details == nil {
		t.Fatalf("expected details in public payload")
	}
}

func TestWriteErrorDefaultsToInternalForUntrustedErrors(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, errors.New("boom"))

	if got := w.Code; got != http.StatusInternalServerError {
		t.Fatalf("expected status 500 but got %d", got)
	}

	var body ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	if body.Error.Code != string(pkgerrors.CodeInternal) {
		t.Fatalf("unexpected code %s", body.Error.Code)
	}
	if body.Error.Details != nil {
		t.Fatalf("details should be omitted for internal errors")
	}
}

func TestWriteErrorPrefersPublicMessage(t *testing.T) {
	w := httptest.NewRecorder()
	cause := errors.New("redis: connection refused")
	err := pkgerrors.Wrap(pkgerrors.CodeDependency, cause, "write vendor order").
		WithPublicMessage("Order failed. Please try again.")
	WriteError(context.Background(), nil, w, err)

	if got := w.Code; got != http.StatusServiceUnavailable {
		t.Fatalf("expected status 503 but got %d", got)
	}
	var body ErrorEnvelope
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error envelope: %v", err)
	}
	if body.Error.Message != "Order failed. Please try again." {
		t.Fatalf("unexpected message %q", body.Error.Message)
	}
}

func TestWriteErrorClassifiesDocumentStoreFailures(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		status     int
		code       pkgerrors.Code
		retryAfter bool
	}{
		{"breaker open", fmt.Errorf("get cart: %w", gobreaker.ErrOpenState), http.StatusServiceUnavailable, pkgerrors.CodeDependency, true},
		{"contention", fmt.Errorf("commit: %w", docstore.ErrContention), http.StatusConflict, pkgerrors.CodeConflict, false},
		{"bad segment", fmt.Errorf("path: %w", docstore.ErrInvalidPath), http.StatusBadRequest, pkgerrors.CodeValidation, false},
		{"deadline", context.DeadlineExceeded, http.StatusServiceUnavailable, pkgerrors.CodeDependency, true},
	}

	for _, tt := range tests {
		w := httptest.NewRecorder()
		WriteError(context.Background(), nil, w, tt.err)

		if w.Code != tt.status {
			t.Fatalf("%s: expected status %d got %d", tt.name, tt.status, w.Code)
		}
		var body ErrorEnvelope
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("%s: decode: %v", tt.name, err)
		}
		if body.Error.Code != string(tt.code) {
			t.Fatalf("%s: expected code %s got %s", tt.name, tt.code, body.Error.Code)
		}
		if got := w.Header().Get("Retry-After") != ""; got != tt.retryAfter {
			t.Fatalf("%s: expected Retry-After present=%v", tt.name, tt.retryAfter)
		}
	}
}
