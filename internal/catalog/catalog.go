// Package catalog manages voucher products: named bundles of hotspot profile,
// time limit, data limit, and price that orders reference.
package catalog

import (
	"context"
	"strconv"

	"github.com/HerbHall/netvoucher/pkg/plugin"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HTTPProvider  = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
)

// Module implements the catalog plugin.
type Module struct {
	logger *zap.Logger
	store  *ProductStore
	bus    plugin.EventBus
}

// New creates a new catalog plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:        "catalog",
		Version:     "0.1.0",
		Description: "Voucher product catalog",
		Roles:       []string{"product_source"},
		APIVersion:  plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.bus = deps.Bus

	if err := deps.Store.Migrate(ctx, "catalog", migrations()); err != nil {
		return err
	}
	m.store = NewProductStore(deps.Store.DB())

	m.logger.Info("catalog module initialized")
	return nil
}

func (m *Module) Start(_ context.Context) error {
	m.logger.Info("catalog module started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("catalog module stopped")
	return nil
}

// Health implements plugin.HealthChecker.
func (m *Module) Health(ctx context.Context) plugin.HealthStatus {
	products, err := m.store.List(ctx, false)
	if err != nil {
		return plugin.HealthStatus{Status: "degraded", Details: map[string]string{"error": err.Error()}}
	}
	return plugin.HealthStatus{
		Status:  "healthy",
		Details: map[string]string{"products": strconv.Itoa(len(products))},
	}
}

// GetProduct returns a product by ID for other modules (orders, provision).
func (m *Module) GetProduct(ctx context.Context, id string) (*Product, error) {
	return m.store.Get(ctx, id)
}
