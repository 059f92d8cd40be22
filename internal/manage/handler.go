package manage

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

func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	creds, appErr := h.Credentials(r)
	if appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	var desc CreateDescriptor
	if err := h.DecodeJSON(w, r, &desc); err != nil {
		h.WriteAppError(w, err)
		return
	}

	id, err := h.Service.Create(r.Context(), creds, desc)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, CreateResponse{Status: "success", AccountID: id})
}

func (h *Handler) View(w http.ResponseWriter, r *http.Request) {
	creds, appErr := h.Credentials(r)
	if appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	var desc ViewDescriptor
	if err := h.DecodeJSON(w, r, &desc); err != nil {
		h.WriteAppError(w, err)
		return
	}

	results, err := h.Service.View(r.Context(), creds, desc)
	if err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ViewResponse{Status: "success", Results: results})
}

func (h *Handler) Modify(w http.ResponseWriter, r *http.Request) {
	creds, appErr := h.Credentials(r)
	if appErr != nil {
		h.WriteAppError(w, appErr)
		return
	}

	var desc ModifyDescriptor
	if err := h.DecodeJSON(w, r, &desc); err != nil {
		h.WriteAppError(w, err)
		return
	}

	if err := h.Service.Modify(r.Context(), creds, desc); err != nil {
		h.WriteAppError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, transport.Success())
}
