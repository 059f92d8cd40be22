package transport

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/frahmantamala/account-registry/internal"
	"github.com/frahmantamala/account-registry/pkg/logger"
)

const (
	HeaderToken     = "Token"
	HeaderAccountID = "AccountId"

	maxBodyBytes = 1 << 20
)

// BaseHandler provides common functionality for HTTP handlers
type BaseHandler struct {
	Logger *slog.Logger
}

// NewBaseHandler creates a base handler with logger
func NewBaseHandler(lg *slog.Logger) *BaseHandler {
	if lg == nil {
		lg = logger.LoggerWrapper()
	}
	return &BaseHandler{Logger: lg}
}

// WriteJSON writes a JSON response
func (h *BaseHandler) WriteJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.Logger.Error("failed to encode JSON response", "error", err)
	}
}

// WriteError writes a generic error response for the given status.
func (h *BaseHandler) WriteError(w http.ResponseWriter, status int, message string) {
	var appErr *internal.AppError
	switch {
	case status == http.StatusUnauthorized:
		appErr = internal.ErrAuthenticationFailed.WithMessage(message)
	case status == http.StatusForbidden:
		appErr = internal.ErrForbidden.WithMessage(message)
	case status == http.StatusNotFound:
		appErr = internal.NewNotFoundError(message, internal.ErrCodeResourceNotFound)
	case status >= 500:
		appErr = internal.NewInternalError(message, nil)
	default:
		appErr = internal.NewValidationError(message, internal.ErrCodeValidationFailed)
	}
	appErr.StatusCode = status
	h.writeAppError(w, appErr)
}

// WriteAppError renders err with the status of its type. Anything that is not an
// *internal.AppError becomes a 500 whose cause is logged but not exposed.
func (h *BaseHandler) WriteAppError(w http.ResponseWriter, err error) {
	appErr, ok := internal.IsAppError(err)
	if !ok {
		h.Logger.Error("unhandled error", "error", err)
		appErr = internal.NewInternalError("Internal server error", err)
	}
	h.writeAppError(w, appErr)
}

func (h *BaseHandler) writeAppError(w http.ResponseWriter, appErr *internal.AppError) {
	if appErr.StatusCode >= 500 {
		h.Logger.Error("http error", "status", appErr.StatusCode, "code", appErr.Code, "error", appErr)
	} else {
		h.Logger.Debug("http error", "status", appErr.StatusCode, "code", appErr.Code, "message", appErr.Message)
	}
	status, body := appErr.ToHTTPResponse()
	h.WriteJSON(w, status, body)
}

// DecodeJSON reads a JSON request body into v, rejecting unknown fields.
func (h *BaseHandler) DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) *internal.AppError {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var appErr *internal.AppError
		if errors.As(err, &appErr) {
			return appErr
		}
		return internal.NewValidationError(fmt.Sprintf("invalid request body: %v", err), internal.ErrCodeValidationFailed)
	}
	return nil
}

// ExtractTokenFromHeader reads the Token header, falling back to an
// Authorization Bearer token.
func (h *BaseHandler) ExtractTokenFromHeader(r *http.Request) string {
	return ExtractToken(r)
}

func ExtractToken(r *http.Request) string {
	if t := strings.TrimSpace(r.Header.Get(HeaderToken)); t != "" {
		return t
	}

	authHeader := r.Header.Get("Authorization")
	if len(authHeader) < 7 || !strings.EqualFold(authHeader[:7], "Bearer ") {
		return ""
	}
	return strings.TrimSpace(authHeader[7:])
}

// ParseCredentials reads the claimed account ID and token from the request headers.
func ParseCredentials(r *http.Request) (internal.Credentials, *internal.AppError) {
	raw := strings.TrimSpace(r.Header.Get(HeaderAccountID))
	if raw == "" {
		return internal.Credentials{}, internal.ErrAuthenticationFailed.WithMessage("missing AccountId header")
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return internal.Credentials{}, internal.NewValidationError(
			fmt.Sprintf("AccountId header %q is not a decimal account id", raw),
			internal.ErrCodeInvalidAccountID,
		)
	}

	token := ExtractToken(r)
	if token == "" {
		return internal.Credentials{}, internal.ErrInvalidToken.WithMessage("missing token")
	}
	return internal.Credentials{AccountID: id, Token: token}, nil
}

// Credentials returns the credentials stored by the credentials middleware, or
// parses them from the headers when the middleware did not run.
func (h *BaseHandler) Credentials(r *http.Request) (internal.Credentials, *internal.AppError) {
	if creds, ok := internal.CredentialsFromContext(r.Context()); ok {
		return creds, nil
	}
	return ParseCredentials(r)
}

// SuccessResponse is the envelope of every successful call.
type SuccessResponse struct {
	Status string `json:"status"`
}

func Success() SuccessResponse {
	return SuccessResponse{Status: "success"}
}
