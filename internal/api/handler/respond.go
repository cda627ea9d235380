package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"loan-manager/internal/api/handler/dto"
	"loan-manager/internal/api/middleware"
	"loan-manager/internal/pkg/apperrors"

	"github.com/go-chi/chi/v5"
)

func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil || r.Body == http.NoBody {
		return fmt.Errorf("%w: request body is required", apperrors.ErrInvalidArgument)
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return fmt.Errorf("%w: malformed JSON body: %v", apperrors.ErrInvalidArgument, err)
	}
	return nil
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Default().Error("Failed to marshal JSON response", "error", err)
		http.Error(w, `{"message":"Internal server error"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(response)
}

func respondError(w http.ResponseWriter, err error) {
	status, resp := errorResponse(err)
	if status == http.StatusInternalServerError {
		slog.Default().Error("Unhandled internal error", "error", err)
	}
	respondJSON(w, status, resp)
}

func errorResponse(err error) (int, dto.ErrorResponse) {
	var validationError *apperrors.ValidationError
	var appErr *apperrors.AppError

	switch {
	case errors.As(err, &validationError):
		return http.StatusBadRequest, dto.ErrorResponse{Message: validationError.Error(), Code: "VALIDATION_ERROR", Field: validationError.Field}
	case errors.Is(err, apperrors.ErrValidation), errors.Is(err, apperrors.ErrInvalidArgument):
		return http.StatusBadRequest, dto.ErrorResponse{Message: err.Error(), Code: "INVALID_ARGUMENT"}
	case errors.Is(err, apperrors.ErrUnauthorized):
		return http.StatusUnauthorized, dto.ErrorResponse{Message: err.Error(), Code: "UNAUTHORIZED"}
	case errors.Is(err, apperrors.ErrForbidden):
		msg := "Forbidden"
		if errors.As(err, &appErr) {
			msg = appErr.Message
		}
		return http.StatusForbidden, dto.ErrorResponse{Message: msg, Code: "FORBIDDEN"}
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, dto.ErrorResponse{Message: err.Error(), Code: "NOT_FOUND"}
	case errors.Is(err, apperrors.ErrInvalidTransition):
		return http.StatusConflict, dto.ErrorResponse{Message: err.Error(), Code: "INVALID_TRANSITION"}
	case errors.Is(err, apperrors.ErrConflict), errors.Is(err, apperrors.ErrAlreadyExists):
		return http.StatusConflict, dto.ErrorResponse{Message: err.Error(), Code: "CONFLICT"}
	default:
		return http.StatusInternalServerError, dto.ErrorResponse{Message: "An unexpected error occurred.", Code: "INTERNAL"}
	}
}

// requireUser reads the caller placed in the context by the auth middleware.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		respondError(w, apperrors.ErrUnauthorized)
		return "", false
	}
	return userID, true
}

func urlParam(r *http.Request, name string) (string, error) {
	v := chi.URLParam(r, name)
	if v == "" {
		return "", fmt.Errorf("%w: %s not found in URL path", apperrors.ErrInvalidArgument, name)
	}
	return v, nil
}
