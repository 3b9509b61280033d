// Package devices manages NAS device registrations: connection settings,
// password-at-rest encryption, the single-active-device selection, and
// connection diagnostics.
package devices

import (
	"context"
	"errors"
	"strconv"

	"github.com/HerbHall/netvoucher/internal/routeros"
	"github.com/HerbHall/netvoucher/pkg/plugin"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HTTPProvider  = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
	_ plugin.Validator     = (*Module)(nil)
)

// deviceAPI is the slice of the device client the module's handlers use.
type deviceAPI interface {
	TestConnection(ctx context.Context) (*routeros.SystemInfo, error)
	ListProfiles(ctx context.Context) ([]routeros.ServiceProfile, error)
	GetActiveUsers(ctx context.Context) ([]routeros.ActiveSession, error)
	GetUsersByProfile(ctx context.Context, profile string) ([]routeros.VoucherAccount, error)
}

// Module implements the devices plugin.
type Module struct {
	logger *zap.Logger
	cfg    DevicesConfig
	store  *DeviceStore
	bus    plugin.EventBus
	ping   *pinger

	// newClient is swapped in tests for a fake device API.
	newClient func(cfg routeros.DeviceConfig) deviceAPI
}

// New creates a new devices plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "devices",
		Version:     "0.1.0",
		Description: "NAS device registration and connection management",
		Roles:       []string{"device_source"},
		Required:    true,
		APIVersion:  plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.bus = deps.Bus

	m.cfg = DefaultConfig()
	if deps.Config != nil {
		m.cfg.Secret = deps.Config.GetString("secret")
		if d := deps.Config.GetDuration("default_timeout"); d > 0 {
			m.cfg.DefaultTimeout = d
		}
		if d := deps.Config.GetDuration("ping_timeout"); d > 0 {
			m.cfg.PingTimeout = d
		}
		if v := deps.Config.GetInt("ping_count"); v > 0 {
			m.cfg.PingCount = v
		}
	}

	if err := deps.Store.Migrate(ctx, "devices", migrations()); err != nil {
		return err
	}

	salt, err := loadOrCreateSalt(ctx, deps.Store.DB())
	if err != nil {
		return err
	}
	crypto, err := newCryptor(m.cfg.Secret, salt)
	if err != nil {
		return err
	}

	m.store = NewDeviceStore(deps.Store.DB(), crypto)
	m.ping = newPinger(m.cfg, m.logger.Named("ping"))
	if m.newClient == nil {
		m.newClient = func(cfg routeros.DeviceConfig) deviceAPI {
			return routeros.NewClient(cfg, m.logger)
		}
	}

	m.logger.Info("devices module initialized")
	return nil
}

// ValidateConfig implements plugin.Validator.
func (m *Module) ValidateConfig() error {
	if m.cfg.Secret == "" {
		return errors.New("devices.secret must be set (used to encrypt device passwords at rest)")
	}
	return nil
}

func (m *Module) Start(_ context.Context) error {
	m.logger.Info("devices module started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("devices module stopped")
	return nil
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(ctx context.Context) plugin.HealthStatus {
	all, err := m.store.List(ctx)
	if err != nil {
		return plugin.HealthStatus{Status: "degraded", Details: map[string]string{"error": err.Error()}}
	}

	details := map[string]string{"devices": strconv.Itoa(len(all))}
	status := "healthy"
	if active, err := m.store.GetActive(ctx); err == nil {
		details["active_device"] = active.Name
		details["active_status"] = string(active.ConnectionStatus)
	} else {
		status = "degraded"
		details["active_device"] = "none"
	}
	return plugin.HealthStatus{Status: status, Details: details}
}

// ActiveDevice returns the single active device with credentials loaded.
// Other modules resolve this via the registry.
func (m *Module) ActiveDevice(ctx context.Context) (*Device, error) {
	return m.store.GetActive(ctx)
}

// ReportOutcome records the connectivity outcome of a device operation.
// Connection failures mark the device failed; everything else (including
// domain errors like a duplicate username) proves the device was reachable.
func (m *Module) ReportOutcome(ctx context.Context, deviceID string, opErr error) {
	status := routeros.StatusConnected
	msg := ""
	if routeros.IsConnectionError(opErr) {
		status = routeros.StatusFailed
		msg = opErr.Error()
	}

	if err := m.store.UpdateConnectionStatus(ctx, deviceID, status, msg); err != nil {
		m.logger.Warn("failed to record connection status",
			zap.String("device_id", deviceID),
			zap.Error(err),
		)
		return
	}
	if m.bus != nil {
		m.bus.PublishAsync(ctx, plugin.Event{
			Topic:  TopicStatusChanged,
			Source: "devices",
			Payload: StatusEvent{
				DeviceID: deviceID,
				Status:   string(status),
				Error:    msg,
			},
		})
	}
}
