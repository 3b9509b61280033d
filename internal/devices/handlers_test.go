package devices

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/HerbHall/netvoucher/internal/event"
	"github.com/HerbHall/netvoucher/internal/routeros"
	"go.uber.org/zap/zaptest"
)

// fakeAPI is a scripted device API for handler tests.
type fakeAPI struct {
	info     *routeros.SystemInfo
	profiles []routeros.ServiceProfile
	sessions []routeros.ActiveSession
	users    []routeros.VoucherAccount
	err      error
}

func (f *fakeAPI) TestConnection(context.Context) (*routeros.SystemInfo, error) {
	return f.info, f.err
}
func (f *fakeAPI) ListProfiles(context.Context) ([]routeros.ServiceProfile, error) {
	return f.profiles, f.err
}
func (f *fakeAPI) GetActiveUsers(context.Context) ([]routeros.ActiveSession, error) {
	return f.sessions, f.err
}
func (f *fakeAPI) GetUsersByProfile(context.Context, string) ([]routeros.VoucherAccount, error) {
	return f.users, f.err
}

func testModule(t *testing.T, api *fakeAPI) *Module {
	t.Helper()
	logger := zaptest.NewLogger(t)
	m := &Module{
		logger:    logger,
		cfg:       DefaultConfig(),
		store:     testDeviceStore(t),
		bus:       event.NewBus(logger),
		newClient: func(routeros.DeviceConfig) deviceAPI { return api },
	}
	m.ping = newPinger(m.cfg, logger)
	return m
}

func serveModule(m *Module) *http.ServeMux {
	mux := http.NewServeMux()
	for _, route := range m.Routes() {
		mux.HandleFunc(route.Method+" /api/v1/devices"+route.Path, route.Handler)
	}
	return mux
}

func createTestDevice(t *testing.T, m *Module) *Device {
	t.Helper()
	d := testDevice("gw-1")
	if err := m.store.Create(context.Background(), d); err != nil {
		t.Fatalf("create device: %v", err)
	}
	return d
}

func TestHandleCreateDevice(t *testing.T) {
	m := testModule(t, &fakeAPI{})
	mux := serveModule(m)

	body, _ := json.Marshal(DeviceRequest{
		Name:     "gw-1",
		Host:     "192.168.88.1",
		Username: "admin",
		Password: "pass",
		Version:  "v7",
	})
	req := httptest.NewRequest("POST", "/api/v1/devices", bytes.NewReader(body))
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var d Device
	json.NewDecoder(w.Body).Decode(&d)
	if d.ID == "" || !d.Active {
		t.Errorf("created device = %+v, want active with ID", d)
	}
	if bytes.Contains(w.Body.Bytes(), []byte("pass")) {
		t.Error("response leaked the device password")
	}
}

func TestHandleCreateDeviceValidation(t *testing.T) {
	m := testModule(t, &fakeAPI{})
	mux := serveModule(m)

	tests := []struct {
		name string
		req  DeviceRequest
	}{
		{"missing host", DeviceRequest{Name: "x", Username: "u", Password: "p"}},
		{"missing password", DeviceRequest{Name: "x", Host: "h", Username: "u"}},
		{"bad version", DeviceRequest{Name: "x", Host: "h", Username: "u", Password: "p", Version: "v9"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, _ := json.Marshal(tt.req)
			req := httptest.NewRequest("POST", "/api/v1/devices", bytes.NewReader(body))
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", w.Code)
			}
		})
	}
}

func TestHandleTestConnectionSuccess(t *testing.T) {
	m := testModule(t, &fakeAPI{info: &routeros.SystemInfo{Identity: "hotspot-gw", OSVersion: "7.14"}})
	mux := serveModule(m)
	d := createTestDevice(t, m)

	req := httptest.NewRequest("POST", "/api/v1/devices/"+d.ID+"/test", http.NoBody)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp TestConnectionResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Status != "connected" || resp.Info.Identity != "hotspot-gw" {
		t.Errorf("resp = %+v", resp)
	}

	got, _ := m.store.Get(context.Background(), d.ID)
	if got.ConnectionStatus != routeros.StatusConnected {
		t.Errorf("stored status = %s, want connected", got.ConnectionStatus)
	}
	if got.LastConnected == nil {
		t.Error("last_connected not stamped")
	}
}

func TestHandleTestConnectionFailure(t *testing.T) {
	connErr := &routeros.ConnectionError{Addr: "192.168.88.1:8728", Err: errors.New("connection refused")}
	m := testModule(t, &fakeAPI{err: connErr})
	mux := serveModule(m)
	d := createTestDevice(t, m)

	req := httptest.NewRequest("POST", "/api/v1/devices/"+d.ID+"/test", http.NoBody)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp TestConnectionResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Status != "failed" || resp.Error == "" {
		t.Errorf("resp = %+v", resp)
	}

	got, _ := m.store.Get(context.Background(), d.ID)
	if got.ConnectionStatus != routeros.StatusFailed {
		t.Errorf("stored status = %s, want failed", got.ConnectionStatus)
	}
	if got.ErrorMessage == "" {
		t.Error("error message not recorded")
	}
}

func TestHandleProfiles(t *testing.T) {
	m := testModule(t, &fakeAPI{profiles: []routeros.ServiceProfile{
		{Name: "default", Default: true},
		{Name: "1hour", RateLimit: "2M/2M"},
	}})
	mux := serveModule(m)
	d := createTestDevice(t, m)

	req := httptest.NewRequest("GET", "/api/v1/devices/"+d.ID+"/profiles", http.NoBody)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var profiles []routeros.ServiceProfile
	json.NewDecoder(w.Body).Decode(&profiles)
	if len(profiles) != 2 || profiles[1].RateLimit != "2M/2M" {
		t.Errorf("profiles = %+v", profiles)
	}
}

func TestHandleProfilesDeviceUnreachable(t *testing.T) {
	connErr := &routeros.ConnectionError{Addr: "x", Err: errors.New("timeout")}
	m := testModule(t, &fakeAPI{err: connErr})
	mux := serveModule(m)
	d := createTestDevice(t, m)

	req := httptest.NewRequest("GET", "/api/v1/devices/"+d.ID+"/profiles", http.NoBody)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
}

func TestHandleUsersByProfileRequiresProfile(t *testing.T) {
	m := testModule(t, &fakeAPI{})
	mux := serveModule(m)
	d := createTestDevice(t, m)

	req := httptest.NewRequest("GET", "/api/v1/devices/"+d.ID+"/users", http.NoBody)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestHandleActivate(t *testing.T) {
	m := testModule(t, &fakeAPI{})
	mux := serveModule(m)
	d1 := createTestDevice(t, m)
	d2 := testDevice("gw-2")
	if err := m.store.Create(context.Background(), d2); err != nil {
		t.Fatalf("create d2: %v", err)
	}

	req := httptest.NewRequest("POST", "/api/v1/devices/"+d2.ID+"/activate", http.NoBody)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("status = %d", w.Code)
	}
	active, err := m.ActiveDevice(context.Background())
	if err != nil {
		t.Fatalf("ActiveDevice: %v", err)
	}
	if active.ID != d2.ID {
		t.Errorf("active = %s, want %s", active.ID, d2.ID)
	}
	_ = d1
}

func TestHandleGetUnknownDevice(t *testing.T) {
	m := testModule(t, &fakeAPI{})
	mux := serveModule(m)

	req := httptest.NewRequest("GET", "/api/v1/devices/nope", http.NoBody)
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
