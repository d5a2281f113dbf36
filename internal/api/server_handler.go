package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/devflow/devflow/internal/domain"
)

// ListServers возвращает список серверов.
// GET /api/v1/servers
func (h *Handler) ListServers(w http.ResponseWriter, r *http.Request) {
	servers, err := h.serverRepo.List(r.Context())
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]ServerResponse, len(servers))
	for i, s := range servers {
		result[i] = ServerFromDomain(s)
	}

	List(w, result, len(result))
}

// CreateServer создаёт новый сервер.
// POST /api/v1/servers
func (h *Handler) CreateServer(w http.ResponseWriter, r *http.Request) {
	var req CreateServerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}
	if !req.IsLocal && req.Host == "" {
		BadRequest(w, "host is required for remote servers")
		return
	}

	port := req.Port
	if port == 0 {
		port = 22
	}

	server := &domain.Server{
		ID:        uuid.New(),
		Name:      req.Name,
		Host:      req.Host,
		Port:      port,
		Username:  req.Username,
		Status:    domain.ServerStatusOffline,
		IsLocal:   req.IsLocal,
		CreatedAt: time.Now(),
	}

	if err := h.serverRepo.Create(r.Context(), server); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Created(w, ServerFromDomain(*server))
}

// GetServer возвращает сервер по ID.
// GET /api/v1/servers/{id}
func (h *Handler) GetServer(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid server id")
		return
	}

	server, err := h.serverRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "server not found") {
		return
	}

	Success(w, ServerFromDomain(*server))
}

// SetServerStatus обновляет статус сервера (online/offline).
// PUT /api/v1/servers/{id}/status
func (h *Handler) SetServerStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid server id")
		return
	}

	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	status := domain.ServerStatus(req.Status)
	if status != domain.ServerStatusOnline && status != domain.ServerStatusOffline {
		BadRequest(w, "status must be online or offline")
		return
	}

	if err := h.serverRepo.UpdateStatus(r.Context(), id, status); HandleRepoError(w, h.logger, err, "server not found") {
		return
	}

	server, err := h.serverRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "server not found") {
		return
	}

	Success(w, ServerFromDomain(*server))
}
