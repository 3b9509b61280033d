package catalog

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/HerbHall/netvoucher/pkg/plugin"
	"go.uber.org/zap"
)

// Event topics published by the catalog module.
const (
	TopicProductCreated = "catalog.product.created"
	TopicProductUpdated = "catalog.product.updated"
	TopicProductDeleted = "catalog.product.deleted"
)

// Routes implements plugin.HTTPProvider.
func (m *Module) Routes() []plugin.Route {
	return []plugin.Route{
		{Method: "GET", Path: "/products", Handler: m.handleList},
		{Method: "POST", Path: "/products", Handler: m.handleCreate},
		{Method: "GET", Path: "/products/{id}", Handler: m.handleGet},
		{Method: "PUT", Path: "/products/{id}", Handler: m.handleUpdate},
		{Method: "DELETE", Path: "/products/{id}", Handler: m.handleDelete},
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

// handleList returns products; ?active=true filters to sellable ones.
//
//	@Summary		List products
//	@Tags			catalog
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{array}	Product
//	@Router			/catalog/products [get]
func (m *Module) handleList(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	products, err := m.store.List(r.Context(), activeOnly)
	if err != nil {
		m.logger.Error("failed to list products", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to list products")
		return
	}
	if products == nil {
		products = []*Product{}
	}
	writeJSON(w, http.StatusOK, products)
}

func (m *Module) handleCreate(w http.ResponseWriter, r *http.Request) {
	var p Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	p.ID = ""
	p.Active = true
	if err := p.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := m.store.Create(r.Context(), &p); err != nil {
		m.logger.Error("failed to create product", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to create product")
		return
	}

	m.bus.PublishAsync(r.Context(), plugin.Event{
		Topic: TopicProductCreated, Source: "catalog", Payload: &p,
	})
	writeJSON(w, http.StatusCreated, &p)
}

func (m *Module) handleGet(w http.ResponseWriter, r *http.Request) {
	p, err := m.store.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, ErrProductNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (m *Module) handleUpdate(w http.ResponseWriter, r *http.Request) {
	var p Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	p.ID = r.PathValue("id")
	if err := p.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := m.store.Update(r.Context(), &p); err != nil {
		if errors.Is(err, ErrProductNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	m.bus.PublishAsync(r.Context(), plugin.Event{
		Topic: TopicProductUpdated, Source: "catalog", Payload: &p,
	})
	writeJSON(w, http.StatusOK, &p)
}

func (m *Module) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if err := m.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, ErrProductNotFound) {
			writeError(w, http.StatusNotFound, "product not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	m.bus.PublishAsync(r.Context(), plugin.Event{
		Topic: TopicProductDeleted, Source: "catalog", Payload: map[string]string{"id": id},
	})
	w.WriteHeader(http.StatusNoContent)
}
