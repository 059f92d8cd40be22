package auth

import (
	"log/slog"
	"net/http"

	"github.com/frahmantamala/account-registry/internal/transport"
)

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(svc ServiceAPI, lg *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(lg),
		Service:     svc,
	}
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var dto LoginDTO
	if err := h.DecodeJSON(w, r, &dto); err != nil {
		h.WriteAppError(w, err)
		return
	}

	result, err := h.Service.Login(r.Context(), dto)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, LoginResponse{Status: "success", LoginResult: *result})
}

func (h *Handler) Logout(w http.ResponseWriter, r *http.Request) {
	creds, appErr := h.Credentials(r)
	if appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	if err := h.Service.Logout(r.Context(), creds); err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, transport.Success())
}
