package devices

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/HerbHall/netvoucher/internal/routeros"
	"github.com/HerbHall/netvoucher/pkg/plugin"
	"go.uber.org/zap"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "", Handler: m.handleList},
		{Method: "POST", Path: "", Handler: m.handleCreate},
		{Method: "GET", Path: "/{id}", Handler: m.handleGet},
		{Method: "PUT", Path: "/{id}", Handler: m.handleUpdate},
		{Method: "DELETE", Path: "/{id}", Handler: m.handleDelete},
		{Method: "POST", Path: "/{id}/activate", Handler: m.handleActivate},
		{Method: "POST", Path: "/{id}/test", Handler: m.handleTestConnection},
		{Method: "POST", Path: "/{id}/ping", Handler: m.handlePing},
		{Method: "GET", Path: "/{id}/profiles", Handler: m.handleProfiles},
		{Method: "GET", Path: "/{id}/active-users", Handler: m.handleActiveUsers},
		{Method: "GET", Path: "/{id}/users", Handler: m.handleUsersByProfile},
	}
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// writeError writes an RFC 7807 problem detail response.
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

// writeDeviceError maps device-operation errors onto HTTP statuses.
func writeDeviceError(w http.ResponseWriter, err error) {
	switch {
	case routeros.IsConnectionError(err):
		writeError(w, http.StatusBadGateway, err.Error())
	case errors.Is(err, routeros.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

// DeviceRequest is the request body for creating or updating a device.
type DeviceRequest struct {
	Name             string `json:"name"`
	Host             string `json:"host"`
	Port             int    `json:"port"`
	Username         string `json:"username"`
	Password         string `json:"password"`
	Version          string `json:"version"`
	UseTLS           bool   `json:"use_tls"`
	TimeoutSeconds   int    `json:"timeout_seconds"`
	DefaultProfile   string `json:"default_profile"`
	HotspotInterface string `json:"hotspot_interface"`
}

func (r *DeviceRequest) validate(requirePassword bool) error {
	if r.Name == "" {
		return errors.New("name is required")
	}
	if r.Host == "" {
		return errors.New("host is required")
	}
	if r.Username == "" {
		return errors.New("username is required")
	}
	if requirePassword && r.Password == "" {
		return errors.New("password is required")
	}
	switch routeros.Version(r.Version) {
	case "", routeros.VersionV6, routeros.VersionV7:
	default:
		return errors.New("version must be v6 or v7")
	}
	return nil
}

func (m *Module) deviceFromRequest(req *DeviceRequest) *Device {
	version := routeros.Version(req.Version)
	if version == "" {
		version = routeros.VersionV6
	}
	timeout := m.cfg.DefaultTimeout
	if req.TimeoutSeconds > 0 {
		timeout = time.Duration(req.TimeoutSeconds) * time.Second
	}
	return &Device{
		Name:             req.Name,
		Host:             req.Host,
		Port:             req.Port,
		Username:         req.Username,
		Password:         req.Password,
		Version:          version,
		UseTLS:           req.UseTLS,
		Timeout:          timeout,
		DefaultProfile:   req.DefaultProfile,
		HotspotInterface: req.HotspotInterface,
	}
}

// handleList returns all registered devices.
//
//	@Summary		List devices
//	@Tags			devices
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{array}	Device
//	@Router			/devices [get]
func (m *Module) handleList(w http.ResponseWriter, r *http.Request) {
	devices, err := m.store.List(r.Context())
	if err != nil {
		m.logger.Error("failed to list devices", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list devices")
		return
	}
	if devices == nil {
		devices = []*Device{}
	}
	writeJSON(w, http.StatusOK, devices)
}

// handleCreate registers a new device.
//
//	@Summary		Register device
//	@Tags			devices
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body		DeviceRequest	true	"device settings"
//	@Success		201		{object}	Device
//	@Router			/devices [post]
func (m *Module) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req DeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if err := req.validate(true); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	device := m.deviceFromRequest(&req)
	if err := m.store.Create(r.Context(), device); err != nil {
		m.logger.Error("failed to create device", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create device")
		return
	}

	m.bus.PublishAsync(r.Context(), plugin.Event{
		Topic: TopicDeviceCreated, Source: "devices", Payload: device,
	})
	writeJSON(w, http.StatusCreated, device)
}

func (m *Module) handleGet(w http.ResponseWriter, r *http.Request) {
	device, err := m.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			writeError(w, http.StatusNotFound, "device not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, device)
}

func (m *Module) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var req DeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	// Empty password on update means keep the stored one.
	if err := req.validate(false); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	device := m.deviceFromRequest(&req)
	device.ID = r.PathValue("id")
	if err := m.store.Update(r.Context(), device); err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			writeError(w, http.StatusNotFound, "device not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	m.bus.PublishAsync(r.Context(), plugin.Event{
		Topic: TopicDeviceUpdated, Source: "devices", Payload: device,
	})
	writeJSON(w, http.StatusOK, device)
}

func (m *Module) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := m.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			writeError(w, http.StatusNotFound, "device not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	m.bus.PublishAsync(r.Context(), plugin.Event{
		Topic: TopicDeviceDeleted, Source: "devices", Payload: map[string]string{"id": id},
	})
	w.WriteHeader(http.StatusNoContent)
}

// handleActivate makes this device the active one for provisioning.
func (m *Module) handleActivate(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := m.store.SetActive(r.Context(), id); err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			writeError(w, http.StatusNotFound, "device not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	m.bus.PublishAsync(r.Context(), plugin.Event{
		Topic: TopicDeviceActivated, Source: "devices", Payload: map[string]string{"id": id},
	})
	w.WriteHeader(http.StatusNoContent)
}

// TestConnectionResponse is the result of a connection test.
type TestConnectionResponse struct {
	Status string               `json:"status"`
	Info   *routeros.SystemInfo `json:"info,omitempty"`
	Error  string               `json:"error,omitempty"`
}

// handleTestConnection opens a session to the device and reads its system
// information. The outcome is recorded on the device row either way.
//
//	@Summary		Test device connection
//	@Tags			devices
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	TestConnectionResponse
//	@Router			/devices/{id}/test [post]
func (m *Module) handleTestConnection(w http.ResponseWriter, r *http.Request) {
	device, err := m.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			writeError(w, http.StatusNotFound, "device not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	info, err := m.newClient(device.ClientConfig()).TestConnection(r.Context())
	m.ReportOutcome(r.Context(), device.ID, err)
	if err != nil {
		writeJSON(w, http.StatusOK, TestConnectionResponse{
			Status: string(routeros.StatusFailed),
			Error:  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, TestConnectionResponse{
		Status: string(routeros.StatusConnected),
		Info:   info,
	})
}

// handlePing runs an ICMP diagnostic against the device host. It answers
// whether the box is reachable at all when the API handshake fails.
func (m *Module) handlePing(w http.ResponseWriter, r *http.Request) {
	device, err := m.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			writeError(w, http.StatusNotFound, "device not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	result, err := m.ping.ping(r.Context(), device.Host)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "ping failed: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleProfiles lists the hotspot user profiles defined on the device.
func (m *Module) handleProfiles(w http.ResponseWriter, r *http.Request) {
	device, err := m.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			writeError(w, http.StatusNotFound, "device not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	profiles, err := m.newClient(device.ClientConfig()).ListProfiles(r.Context())
	m.ReportOutcome(r.Context(), device.ID, err)
	if err != nil {
		writeDeviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, profiles)
}

// handleActiveUsers lists the sessions currently logged in to the hotspot.
func (m *Module) handleActiveUsers(w http.ResponseWriter, r *http.Request) {
	device, err := m.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			writeError(w, http.StatusNotFound, "device not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	sessions, err := m.newClient(device.ClientConfig()).GetActiveUsers(r.Context())
	m.ReportOutcome(r.Context(), device.ID, err)
	if err != nil {
		writeDeviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessions)
}

// handleUsersByProfile lists hotspot users filtered by ?profile=.
func (m *Module) handleUsersByProfile(w http.ResponseWriter, r *http.Request) {
	profile := r.URL.Query().Get("profile")
	if profile == "" {
		writeError(w, http.StatusBadRequest, "profile query parameter is required")
		return
	}

	device, err := m.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			writeError(w, http.StatusNotFound, "device not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	users, err := m.newClient(device.ClientConfig()).GetUsersByProfile(r.Context(), profile)
	m.ReportOutcome(r.Context(), device.ID, err)
	if err != nil {
		writeDeviceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}
