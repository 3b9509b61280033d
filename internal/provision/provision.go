// Package provision turns a paid voucher product into a live hotspot account
// on the active NAS device. It owns credential generation and the voucher
// code format; it does not own retry policy, which belongs to the caller.
package provision

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/HerbHall/netvoucher/internal/devices"
	"github.com/HerbHall/netvoucher/internal/routeros"
	"github.com/HerbHall/netvoucher/pkg/plugin"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HTTPProvider  = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
)

// Event topics published by the provision module.
const (
	TopicVoucherProvisioned = "provision.voucher.created"
	TopicVoucherFailed      = "provision.voucher.failed"
)

const defaultUsernamePrefix = "hs"

// deviceSource is the slice of the devices module this module needs.
type deviceSource interface {
	ActiveDevice(ctx context.Context) (*devices.Device, error)
	ReportOutcome(ctx context.Context, deviceID string, opErr error)
}

// voucherCreator is the single device-client operation provisioning uses.
type voucherCreator interface {
	CreateVoucher(ctx context.Context, spec routeros.VoucherSpec) (*routeros.VoucherAccount, error)
}

// Request describes one voucher to provision. Username and Password are
// optional; empty values get generated credentials.
type Request struct {
	OrderID   string `json:"order_id,omitempty"`
	Profile   string `json:"profile"`
	TimeLimit string `json:"time_limit,omitempty"`
	DataLimit string `json:"data_limit,omitempty"`
	Username  string `json:"username,omitempty"`
	Password  string `json:"password,omitempty"`
	Comment   string `json:"comment,omitempty"`
}

// Result is a successfully provisioned voucher. VoucherCode is the
// customer-facing "username/password" pair printed on receipts.
type Result struct {
	Username    string `json:"username"`
	Password    string `json:"password"`
	Profile     string `json:"profile"`
	VoucherCode string `json:"voucher_code"`
	DeviceID    string `json:"device_id"`
}

// FailureEvent is the payload of TopicVoucherFailed.
type FailureEvent struct {
	OrderID string `json:"order_id,omitempty"`
	Error   string `json:"error"`
}

// Module implements the provision plugin.
type Module struct {
	logger         *zap.Logger
	bus            plugin.EventBus
	devices        deviceSource
	usernamePrefix string

	// newClient builds a device client per call; replaced in tests.
	newClient func(routeros.DeviceConfig) voucherCreator
}

// New creates a new provision plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:         "provision",
		Version:      "0.1.0",
		Description:  "Voucher provisioning orchestrator",
		Dependencies: []string{"devices"},
		Required:     true,
		Roles:        []string{"provisioner"},
		APIVersion:   plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(_ context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.bus = deps.Bus

	m.usernamePrefix = defaultUsernamePrefix
	if deps.Config != nil && deps.Config.IsSet("username_prefix") {
		m.usernamePrefix = deps.Config.GetString("username_prefix")
	}

	p, ok := deps.Plugins.Resolve("devices")
	if !ok {
		return errors.New("provision requires the devices module")
	}
	src, ok := p.(deviceSource)
	if !ok {
		return errors.New("devices module does not provide device access")
	}
	m.devices = src

	if m.newClient == nil {
		m.newClient = func(cfg routeros.DeviceConfig) voucherCreator {
			return routeros.NewClient(cfg, m.logger)
		}
	}

	m.logger.Info("provision module initialized",
		zap.String("username_prefix", m.usernamePrefix))
	return nil
}

func (m *Module) Start(_ context.Context) error {
	m.logger.Info("provision module started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("provision module stopped")
	return nil
}

// Health implements plugin.HealthChecker. Provisioning is only as healthy
// as its ability to name a target device.
func (m *Module) Health(ctx context.Context) plugin.HealthStatus {
	dev, err := m.devices.ActiveDevice(ctx)
	if err != nil {
		return plugin.HealthStatus{
			Status:  "degraded",
			Message: "no active device to provision against",
		}
	}
	return plugin.HealthStatus{
		Status:  "healthy",
		Details: map[string]string{"active_device": dev.Name},
	}
}

// Provision creates the hotspot account for req on the active device.
//
// There is no retry: on failure the device client's error comes back
// untouched so the caller can classify it and decide. The device
// connectivity status side-write is best-effort and never masks the result.
func (m *Module) Provision(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()
	res, err := m.provision(ctx, req)
	observeProvision(start, err)

	if err != nil {
		m.bus.PublishAsync(ctx, plugin.Event{
			Topic:   TopicVoucherFailed,
			Source:  "provision",
			Payload: FailureEvent{OrderID: req.OrderID, Error: err.Error()},
		})
		return nil, err
	}

	m.bus.PublishAsync(ctx, plugin.Event{
		Topic:   TopicVoucherProvisioned,
		Source:  "provision",
		Payload: res,
	})
	m.logger.Info("voucher provisioned",
		zap.String("order_id", req.OrderID),
		zap.String("username", res.Username),
		zap.String("profile", res.Profile),
	)
	return res, nil
}

func (m *Module) provision(ctx context.Context, req Request) (*Result, error) {
	dev, err := m.devices.ActiveDevice(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve active device: %w", err)
	}

	username := req.Username
	if username == "" {
		if username, err = routeros.GenerateUsername(m.usernamePrefix); err != nil {
			return nil, err
		}
	}
	password := req.Password
	if password == "" {
		if password, err = routeros.GeneratePassword(); err != nil {
			return nil, err
		}
	}
	profile := req.Profile
	if profile == "" {
		profile = dev.DefaultProfile
	}
	comment := req.Comment
	if comment == "" && req.OrderID != "" {
		comment = "order " + req.OrderID
	}

	account, err := m.newClient(dev.ClientConfig()).CreateVoucher(ctx, routeros.VoucherSpec{
		Username:  username,
		Password:  password,
		Profile:   profile,
		TimeLimit: req.TimeLimit,
		DataLimit: req.DataLimit,
		Comment:   comment,
	})
	m.devices.ReportOutcome(ctx, dev.ID, err)
	if err != nil {
		return nil, err
	}

	return &Result{
		Username:    account.Username,
		Password:    password,
		Profile:     account.Profile,
		VoucherCode: account.Username + "/" + password,
		DeviceID:    dev.ID,
	}, nil
}
