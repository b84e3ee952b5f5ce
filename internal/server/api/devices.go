package api

import (
	"net/http"

	"github.com/Danz17/txmtc-relay/internal/server/services"
	"github.com/Danz17/txmtc-relay/internal/server/storage"
	"github.com/Danz17/txmtc-relay/pkg/models"
	"github.com/go-chi/chi/v5"
)

const defaultDevicePort = 8728

type DeviceHandler struct {
	devices    *storage.DeviceRepository
	dispatcher *services.CommandDispatcher
	status     *services.StatusAggregator
}

func NewDeviceHandler(
	devices *storage.DeviceRepository,
	dispatcher *services.CommandDispatcher,
	status *services.StatusAggregator,
) *DeviceHandler {
	return &DeviceHandler{
		devices:    devices,
		dispatcher: dispatcher,
		status:     status,
	}
}

// ListDevices handles GET /devices
func (h *DeviceHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	list := h.devices.List(r.Context())
	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"count":   len(list),
		"devices": list,
	})
}

// AddDevice handles POST /devices
func (h *DeviceHandler) AddDevice(w http.ResponseWriter, r *http.Request) {
	var req models.AddDeviceRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErrorJSON(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" || req.Host == "" || req.Username == "" || req.Secret == "" {
		respondErrorJSON(w, http.StatusBadRequest, "name, host, username and secret are required")
		return
	}
	if req.Name == "all" {
		// Reserved by the fan-out routes.
		respondErrorJSON(w, http.StatusBadRequest, `"all" is a reserved device name`)
		return
	}
	if req.Port == 0 {
		req.Port = defaultDevicePort
	}

	view, err := h.devices.Add(r.Context(), models.DeviceRecord{
		Name:        req.Name,
		Host:        req.Host,
		Port:        req.Port,
		UseTLS:      req.UseTLS,
		Username:    req.Username,
		Secret:      req.Secret,
		Description: req.Description,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"device":  view,
	})
}

// GetDevice handles GET /devices/{name}
func (h *DeviceHandler) GetDevice(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	view, err := h.devices.Get(r.Context(), name)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"device":  view,
	})
}

// DeleteDevice handles DELETE /devices/{name}
func (h *DeviceHandler) DeleteDevice(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if err := h.devices.Remove(r.Context(), name); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"name":    name,
		"status":  "removed",
	})
}

// GetStatus handles GET /devices/{name}/status
func (h *DeviceHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if _, err := h.devices.Get(r.Context(), name); err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, h.status.Status(r.Context(), name))
}

// Execute handles POST /devices/{name}/execute. An unreachable device is a
// success=false Result with HTTP 200: the request to attempt the command
// succeeded, the command did not.
func (h *DeviceHandler) Execute(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if _, err := h.devices.Get(r.Context(), name); err != nil {
		respondServiceError(w, err)
		return
	}

	req, op, ok := decodeExecuteRequest(w, r)
	if !ok {
		return
	}

	result := h.dispatcher.Execute(r.Context(), name, req.Command, op, req.Method, req.Args)
	respondJSON(w, http.StatusOK, result)
}

// ExecuteOnAll handles POST /devices/all/execute
func (h *DeviceHandler) ExecuteOnAll(w http.ResponseWriter, r *http.Request) {
	req, op, ok := decodeExecuteRequest(w, r)
	if !ok {
		return
	}

	results := h.dispatcher.ExecuteOnAll(r.Context(), req.Command, op, req.Method, req.Args)

	successful := 0
	for _, res := range results {
		if res.Success {
			successful++
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success":    successful == len(results),
		"total":      len(results),
		"successful": successful,
		"failed":     len(results) - successful,
		"results":    results,
	})
}

// GetAllStatus handles GET /devices/all/status
func (h *DeviceHandler) GetAllStatus(w http.ResponseWriter, r *http.Request) {
	snapshots := h.status.StatusAll(r.Context())

	online := 0
	for _, snap := range snapshots {
		if snap.Online {
			online++
		}
	}

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"total":   len(snapshots),
		"online":  online,
		"offline": len(snapshots) - online,
		"devices": snapshots,
	})
}

func decodeExecuteRequest(w http.ResponseWriter, r *http.Request) (models.ExecuteRequest, services.Operation, bool) {
	var req models.ExecuteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondErrorJSON(w, http.StatusBadRequest, "invalid request body")
		return req, 0, false
	}
	if req.Command == "" {
		respondErrorJSON(w, http.StatusBadRequest, "command is required")
		return req, 0, false
	}

	op, err := services.ParseOperation(req.Operation)
	if err != nil {
		respondServiceError(w, err)
		return req, 0, false
	}
	return req, op, true
}
