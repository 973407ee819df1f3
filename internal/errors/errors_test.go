package errors

import (
	"encoding/json"
	goerrors "errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	validation "github.com/go-ozzo/ozzo-validation"

	"github.com/offerboard/backend/internal/logger"
)

func TestWriteError_AppError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, "req-1", NotFound("Unable to find offer with id: abc"))

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	if got := w.Header().Get(RequestIDHeader); got != "req-1" {
		t.Errorf("expected request id header req-1, got %q", got)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if resp.Error.Code != http.StatusNotFound {
		t.Errorf("expected envelope code 404, got %d", resp.Error.Code)
	}
	if resp.Error.Message != "Unable to find offer with id: abc" {
		t.Errorf("unexpected message %q", resp.Error.Message)
	}
}

func TestWriteError_UnknownErrorIsInternal(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, "", goerrors.New("connection reset"))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", w.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if resp.Error.Code != 500 {
		t.Errorf("expected envelope code 500, got %d", resp.Error.Code)
	}
}

func TestWriteError_WrappedAppError(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, "", fmt.Errorf("handler: %w", Conflict("The emailCode is incorrect")))

	if w.Code != http.StatusConflict {
		t.Fatalf("expected 409 from wrapped AppError, got %d", w.Code)
	}
}

func TestConstructorsStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    *AppError
		status int
	}{
		{"validation", ValidationError("bad"), http.StatusBadRequest},
		{"invalid id", InvalidID("x"), http.StatusBadRequest},
		{"unauthorized", Unauthorized("no"), http.StatusUnauthorized},
		{"forbidden", Forbidden("no"), http.StatusForbidden},
		{"route", RouteNotFound("/nope"), http.StatusNotFound},
		{"email exists", EmailExists("a.b@igs-buchholz.de"), http.StatusConflict},
		{"code expired", CodeExpired("old"), http.StatusConflict},
		{"internal", InternalError("x"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.err.HTTPStatus != tt.status {
				t.Errorf("expected %d, got %d", tt.status, tt.err.HTTPStatus)
			}
		})
	}
}

func TestRouteNotFoundMessage(t *testing.T) {
	err := RouteNotFound("/does/not/exist")
	if err.Message != "Unable to find route: /does/not/exist" {
		t.Errorf("unexpected message %q", err.Message)
	}
}

func TestCategories(t *testing.T) {
	if !IsClientError(Conflict("x")) {
		t.Error("conflict should be a client error")
	}
	if IsServerError(Conflict("x")) {
		t.Error("conflict should not be a server error")
	}
	if !IsServerError(goerrors.New("raw")) {
		t.Error("unknown errors should count as server errors")
	}
	if !IsServerError(DatabaseError("x")) {
		t.Error("database error should be a server error")
	}
}

func TestHandleFunc(t *testing.T) {
	h := HandleFunc(func(w http.ResponseWriter, r *http.Request) error {
		return Unauthorized("Authorization failed")
	})

	req := httptest.NewRequest(http.MethodGet, "/offer", nil)
	req = req.WithContext(logger.WithRequestID(req.Context(), "abc"))
	w := httptest.NewRecorder()
	h(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", w.Code)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if resp.Error.RequestID != "abc" {
		t.Errorf("expected request id abc, got %q", resp.Error.RequestID)
	}
}

func TestHandleFunc_NoError(t *testing.T) {
	h := HandleFunc(func(w http.ResponseWriter, r *http.Request) error {
		WriteJSON(w, "", http.StatusOK, map[string]int{"count": 0})
		return nil
	})

	w := httptest.NewRecorder()
	h(w, httptest.NewRequest(http.MethodGet, "/", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestFromValidation(t *testing.T) {
	if FromValidation(nil) != nil {
		t.Error("expected nil for nil input")
	}

	fieldErr := validation.Errors{"year": goerrors.New("must be no less than 5")}
	appErr := AsAppError(FromValidation(fieldErr))
	if appErr.HTTPStatus != http.StatusBadRequest {
		t.Errorf("expected 400, got %d", appErr.HTTPStatus)
	}
	if appErr.Message != "Validation error: year: must be no less than 5." {
		t.Errorf("unexpected message %q", appErr.Message)
	}

	appErr = AsAppError(FromValidation(goerrors.New("bad rule")))
	if appErr.HTTPStatus != http.StatusInternalServerError {
		t.Errorf("expected 500 for non-field errors, got %d", appErr.HTTPStatus)
	}
}
