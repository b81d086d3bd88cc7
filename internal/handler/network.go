package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/capitalize-ai/proconnect/internal/middleware"
	"github.com/capitalize-ai/proconnect/internal/model"
	"github.com/capitalize-ai/proconnect/internal/service"
	"github.com/capitalize-ai/proconnect/pkg/logger"
)

// NetworkHandler handles profile and connection endpoints.
type NetworkHandler struct {
	network *service.NetworkService
	logger  *logger.Logger
}

// NewNetworkHandler creates a new network handler.
func NewNetworkHandler(network *service.NetworkService, log *logger.Logger) *NetworkHandler {
	return &NetworkHandler{
		network: network,
		logger:  log.Component("network_handler"),
	}
}

// ListConnectionsResponse is the response for listing connections.
type ListConnectionsResponse struct {
	Connections []model.Connection `json:"connections"`
}

// Profile handles GET /api/v1/network/profiles/{id}
func (h *NetworkHandler) Profile(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	profile, err := h.network.Profile(r.Context(), id)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to get profile")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// Connections handles GET /api/v1/network/connections?status=
func (h *NetworkHandler) Connections(w http.ResponseWriter, r *http.Request) {
	status := model.ConnectionStatus(r.URL.Query().Get("status"))
	if err := middleware.ValidateConnectionStatus(status); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conns, err := h.network.Connections(r.Context(), middleware.GetUserID(r.Context()), status)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to list connections")
		return
	}
	writeJSON(w, http.StatusOK, &ListConnectionsResponse{Connections: conns})
}

// Count handles GET /api/v1/network/connections/count
func (h *NetworkHandler) Count(w http.ResponseWriter, r *http.Request) {
	n, err := h.network.CountAccepted(r.Context(), middleware.GetUserID(r.Context()))
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to count connections")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"count": n})
}

// Request handles POST /api/v1/network/connections
func (h *NetworkHandler) Request(w http.ResponseWriter, r *http.Request) {
	var req model.ConnectionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := middleware.ValidateID(req.AddresseeID); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	conn, err := h.network.Request(r.Context(), middleware.GetUserID(r.Context()), &req)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to request connection")
		return
	}
	writeJSON(w, http.StatusCreated, conn)
}

// Respond handles PUT /api/v1/network/connections/{id}
func (h *NetworkHandler) Respond(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req model.RespondConnectionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conn, err := h.network.Respond(r.Context(), middleware.GetUserID(r.Context()), id, req.Status)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to respond to connection")
		return
	}
	writeJSON(w, http.StatusOK, conn)
}

// Cancel handles DELETE /api/v1/network/connections/{id}
func (h *NetworkHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := middleware.ValidateID(id); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.network.Cancel(r.Context(), middleware.GetUserID(r.Context()), id); err != nil {
		writeServiceError(w, h.logger, err, "failed to cancel connection")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Path handles GET /api/v1/network/path/{target}
func (h *NetworkHandler) Path(w http.ResponseWriter, r *http.Request) {
	target := chi.URLParam(r, "target")
	if err := middleware.ValidateID(target); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	path, err := h.network.Path(r.Context(), middleware.GetUserID(r.Context()), target)
	if err != nil {
		writeServiceError(w, h.logger, err, "failed to find connection path")
		return
	}
	writeJSON(w, http.StatusOK, path)
}
