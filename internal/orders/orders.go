// Package orders records voucher purchases and drives their provisioning.
// An order survives a device failure: the purchase is persisted first, the
// hotspot account is created second, and a failed second step leaves the
// order queued for retry instead of rolling anything back.
package orders

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/HerbHall/netvoucher/internal/catalog"
	"github.com/HerbHall/netvoucher/internal/provision"
	"github.com/HerbHall/netvoucher/pkg/plugin"
	"go.uber.org/zap"
)

// Compile-time interface guards.
var (
	_ plugin.Plugin        = (*Module)(nil)
	_ plugin.HTTPProvider  = (*Module)(nil)
	_ plugin.HealthChecker = (*Module)(nil)
)

// Event topics published by the orders module.
const (
	TopicOrderCreated     = "orders.order.created"
	TopicOrderProvisioned = "orders.order.provisioned"
	TopicOrderFailed      = "orders.order.failed"
)

// ErrAlreadyProvisioned is returned when retrying an order that already has
// its device account.
var ErrAlreadyProvisioned = errors.New("order already provisioned")

// productSource is the slice of the catalog module this module needs.
type productSource interface {
	GetProduct(ctx context.Context, id string) (*catalog.Product, error)
}

// provisioner is the slice of the provision module this module needs.
type provisioner interface {
	Provision(ctx context.Context, req provision.Request) (*provision.Result, error)
}

// Module implements the orders plugin.
type Module struct {
	logger      *zap.Logger
	bus         plugin.EventBus
	store       *OrderStore
	catalog     productSource
	provisioner provisioner
}

// New creates a new orders plugin instance.
func New() *Module {
	return &Module{}
}

func (m *Module) Info() plugin.PluginInfo {
	return plugin.PluginInfo{
		Name:         "orders",
		Version:      "0.1.0",
		Description:  "Voucher purchase records and provisioning outcomes",
		Dependencies: []string{"catalog", "provision"},
		Roles:        []string{"order_store"},
		APIVersion:   plugin.APIVersionCurrent,
	}
}

func (m *Module) Init(ctx context.Context, deps plugin.Dependencies) error {
	m.logger = deps.Logger
	m.bus = deps.Bus

	if err := deps.Store.Migrate(ctx, "orders", migrations()); err != nil {
		return err
	}
	m.store = NewOrderStore(deps.Store.DB())

	p, ok := deps.Plugins.Resolve("catalog")
	if !ok {
		return errors.New("orders requires the catalog module")
	}
	src, ok := p.(productSource)
	if !ok {
		return errors.New("catalog module does not provide product lookup")
	}
	m.catalog = src

	p, ok = deps.Plugins.Resolve("provision")
	if !ok {
		return errors.New("orders requires the provision module")
	}
	prov, ok := p.(provisioner)
	if !ok {
		return errors.New("provision module does not provide provisioning")
	}
	m.provisioner = prov

	m.logger.Info("orders module initialized")
	return nil
}

func (m *Module) Start(_ context.Context) error {
	m.logger.Info("orders module started")
	return nil
}

func (m *Module) Stop(_ context.Context) error {
	m.logger.Info("orders module stopped")
	return nil
}

// Health implements plugin.HealthChecker. Orders stuck without a device
// account degrade the module.
func (m *Module) Health(ctx context.Context) plugin.HealthStatus {
	pending, err := m.store.ListPendingProvisioning(ctx)
	if err != nil {
		return plugin.HealthStatus{Status: "degraded", Details: map[string]string{"error": err.Error()}}
	}
	status := "healthy"
	if len(pending) > 0 {
		status = "degraded"
	}
	return plugin.HealthStatus{
		Status:  status,
		Details: map[string]string{"pending_provisioning": strconv.Itoa(len(pending))},
	}
}

// PlaceOrder persists the purchase, then provisions its voucher. The record
// is written before the device is touched so a crash or device failure can
// never lose a paid order. The returned order reflects the provisioning
// outcome; a device failure is not an error here.
func (m *Module) PlaceOrder(ctx context.Context, productID, customer, externalRef string) (*Order, error) {
	product, err := m.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if !product.Active {
		return nil, fmt.Errorf("product %q is not for sale", product.Name)
	}

	order := &Order{
		ProductID:   product.ID,
		ProductName: product.Name,
		Profile:     product.Profile,
		TimeLimit:   product.TimeLimit,
		DataLimit:   product.DataLimit,
		AmountCents: product.PriceCents,
		Currency:    product.Currency,
		Customer:    customer,
		ExternalRef: externalRef,
	}
	if err := m.store.Create(ctx, order); err != nil {
		return nil, err
	}
	m.bus.PublishAsync(ctx, plugin.Event{
		Topic: TopicOrderCreated, Source: "orders", Payload: order,
	})

	return m.provisionOrder(ctx, order)
}

// Retry re-attempts provisioning for an order whose device account is
// missing. Already-provisioned orders are refused; the device would reject
// the duplicate username anyway.
func (m *Module) Retry(ctx context.Context, id string) (*Order, error) {
	order, err := m.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if order.VoucherCreated {
		return nil, ErrAlreadyProvisioned
	}
	return m.provisionOrder(ctx, order)
}

func (m *Module) provisionOrder(ctx context.Context, order *Order) (*Order, error) {
	res, provErr := m.provisioner.Provision(ctx, provision.Request{
		OrderID:   order.ID,
		Profile:   order.Profile,
		TimeLimit: order.TimeLimit,
		DataLimit: order.DataLimit,
	})
	if provErr != nil {
		if err := m.store.MarkFailed(ctx, order.ID, provErr.Error()); err != nil {
			return nil, err
		}
		m.logger.Warn("order provisioning failed",
			zap.String("order_id", order.ID),
			zap.Error(provErr),
		)
		m.bus.PublishAsync(ctx, plugin.Event{
			Topic: TopicOrderFailed, Source: "orders",
			Payload: map[string]string{"order_id": order.ID, "error": provErr.Error()},
		})
		return m.store.Get(ctx, order.ID)
	}

	if err := m.store.MarkProvisioned(ctx, order.ID, res.Username, res.Password, res.VoucherCode); err != nil {
		return nil, err
	}
	m.bus.PublishAsync(ctx, plugin.Event{
		Topic: TopicOrderProvisioned, Source: "orders",
		Payload: map[string]string{"order_id": order.ID, "voucher_code": res.VoucherCode},
	})
	return m.store.Get(ctx, order.ID)
}
