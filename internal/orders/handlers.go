package orders

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/HerbHall/netvoucher/internal/catalog"
	"github.com/HerbHall/netvoucher/pkg/plugin"
	"go.uber.org/zap"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "", Handler: m.handleList},
		{Method: "POST", Path: "", Handler: m.handleCreate},
		{Method: "GET", Path: "/pending", Handler: m.handlePending},
		{Method: "GET", Path: "/{id}", Handler: m.handleGet},
		{Method: "POST", Path: "/{id}/retry", Handler: m.handleRetry},
	}
}

// OrderRequest is the create-order payload.
type OrderRequest struct {
	ProductID   string `json:"product_id"`
	Customer    string `json:"customer,omitempty"`
	ExternalRef string `json:"external_ref,omitempty"`
}

// handleCreate records a purchase and provisions its voucher.
//
//	@Summary		Place a voucher order
//	@Tags			orders
//	@Accept			json
//	@Produce		json
//	@Security		BearerAuth
//	@Param			request	body	OrderRequest	true	"Order to place"
//	@Success		201	{object}	Order
//	@Router			/orders [post]
func (m *Module) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.ProductID == "" {
		writeError(w, http.StatusBadRequest, "product_id is required")
		return
	}

	order, err := m.PlaceOrder(r.Context(), req.ProductID, req.Customer, req.ExternalRef)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		m.logger.Error("failed to place order", zap.Error(err))
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// A failed provisioning is still a placed order; the status field and
	// error_message carry the outcome.
	writeJSON(w, http.StatusCreated, order)
}

func (m *Module) handleList(w http.ResponseWriter, r *http.Request) {
	status := Status(r.URL.Query().Get("status"))
	switch status {
	case "", StatusPending, StatusProvisioned, StatusFailed:
	default:
		writeError(w, http.StatusBadRequest, "unknown status filter")
		return
	}

	list, err := m.store.List(r.Context(), status)
	if err != nil {
		m.logger.Error("failed to list orders", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list orders")
		return
	}
	if list == nil {
		list = []*Order{}
	}
	writeJSON(w, http.StatusOK, list)
}

// handlePending lists orders awaiting a device account.
func (m *Module) handlePending(w http.ResponseWriter, r *http.Request) {
	list, err := m.store.ListPendingProvisioning(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list pending orders")
		return
	}
	if list == nil {
		list = []*Order{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (m *Module) handleGet(w http.ResponseWriter, r *http.Request) {
	order, err := m.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, ErrOrderNotFound) {
			writeError(w, http.StatusNotFound, "order not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (m *Module) handleRetry(w http.ResponseWriter, r *http.Request) {
	order, err := m.Retry(r.Context(), r.PathValue("id"))
	if err != nil {
		switch {
		case errors.Is(err, ErrOrderNotFound):
			writeError(w, http.StatusNotFound, "order not found")
		case errors.Is(err, ErrAlreadyProvisioned):
			writeError(w, http.StatusConflict, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, order)
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
