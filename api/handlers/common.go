// Package handlers implements the REST and streaming surface of the
// council service. Payload shapes are part of the client contract; change
// them together with the frontend.
package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"go.uber.org/zap"

	"github.com/adam-wood/llm-council/types"
)

type contextKey string

const userIDKey contextKey = "user_id"

// localUser is the identity used when authentication is disabled.
const localUser = "local"

// WithUserID stores the authenticated user ID in the request context.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// UserID returns the authenticated user for a request. Requests that never
// went through the auth middleware belong to the local user.
func UserID(r *http.Request) string {
	if id, ok := r.Context().Value(userIDKey).(string); ok && id != "" {
		return id
	}
	return localUser
}

// ErrorInfo is the wire shape of an API error.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorBody struct {
	Error ErrorInfo `json:"error"`
}

// WriteJSON writes a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError writes a structured error response, mapping the error code to
// an HTTP status unless one is already set.
func WriteError(w http.ResponseWriter, err *types.Error, logger *zap.Logger) {
	status := err.HTTPStatus
	if status == 0 {
		status = mapErrorCodeToHTTPStatus(err.Code)
	}
	if logger != nil {
		logger.Warn("request failed",
			zap.String("code", string(err.Code)),
			zap.Int("status", status),
			zap.Error(err))
	}
	WriteJSON(w, status, errorBody{Error: ErrorInfo{
		Code:    string(err.Code),
		Message: err.Message,
	}})
}

// WriteErrorMessage writes a one-off error without building a types.Error
// at the call site.
func WriteErrorMessage(w http.ResponseWriter, code types.ErrorCode, message string, logger *zap.Logger) {
	WriteError(w, types.NewError(code, message), logger)
}

// DecodeJSONBody decodes the request body into dst, rejecting unknown
// fields. On failure the 400 response has already been written.
func DecodeJSONBody(w http.ResponseWriter, r *http.Request, dst any, logger *zap.Logger) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		WriteError(w, types.NewError(types.ErrInvalidRequest, "invalid JSON body").WithCause(err), logger)
		return err
	}
	return nil
}

func mapErrorCodeToHTTPStatus(code types.ErrorCode) int {
	switch code {
	case types.ErrInvalidRequest:
		return http.StatusBadRequest
	case types.ErrUnauthorized:
		return http.StatusUnauthorized
	case types.ErrForbidden:
		return http.StatusForbidden
	case types.ErrNotFound:
		return http.StatusNotFound
	case types.ErrRateLimited:
		return http.StatusTooManyRequests
	case types.ErrQuotaExceeded:
		return http.StatusPaymentRequired
	case types.ErrUpstreamTimeout:
		return http.StatusGatewayTimeout
	case types.ErrUpstreamError:
		return http.StatusBadGateway
	case types.ErrServiceUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
