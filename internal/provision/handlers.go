package provision

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/HerbHall/netvoucher/internal/devices"
	"github.com/HerbHall/netvoucher/internal/routeros"
	"github.com/HerbHall/netvoucher/pkg/plugin"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "POST", Path: "", Handler: m.handleProvision},
	}
}

// handleProvision provisions one voucher on the active device.
//
//	@Summary		Provision a voucher
//	@Tags			provision
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body	Request	true	"Voucher to provision"
//	@Success		201	{object}	Result
//	@Failure		400	{object}	map[string]any
//	@Failure		409	{object}	map[string]any
//	@Failure		502	{object}	map[string]any
//	@Router			/provision [post]
func (m *Module) handleProvision(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	res, err := m.Provision(r.Context(), req)
	if err != nil {
		writeProvisionError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

// writeProvisionError maps the device client error taxonomy onto HTTP.
func writeProvisionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, routeros.ErrInvalidDataLimit),
		errors.Is(err, routeros.ErrInvalidProfile):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, routeros.ErrDuplicateUsername):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, devices.ErrNoActiveDevice):
		writeError(w, http.StatusServiceUnavailable, "no active device configured")
	case routeros.IsConnectionError(err):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"type":   "https://netvoucher.dev/problems/" + http.StatusText(status),
		"title":  http.StatusText(status),
		"status": status,
		"detail": detail,
	})
}
