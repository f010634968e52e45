// Package handler exposes the catalog and carts over HTTP.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	models "shop-inventory/model"
	"shop-inventory/service"
)

const malformedBody = "The request body is not valid JSON."

// Handler is the HTTP layer that talks to the inventory Coordinator
type Handler struct {
	svc    service.ServiceInterface
	logger *zap.Logger
}

// NewHandler returns a Handler instance
func NewHandler(s service.ServiceInterface, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: s, logger: logger}
}

// RegisterRoutes registers all routes on the provided router
func (h *Handler) RegisterRoutes(r *mux.Router) {
	// Catalog
	r.HandleFunc("/catalog", h.CreateProduct).Methods(http.MethodPut)
	r.HandleFunc("/catalog", h.ListProducts).Methods(http.MethodGet)
	r.HandleFunc("/catalog/{id}", h.GetProduct).Methods(http.MethodGet)
	r.HandleFunc("/catalog/{id}", h.ReplaceProduct).Methods(http.MethodPost)
	r.HandleFunc("/catalog/{id}", h.DeleteProduct).Methods(http.MethodDelete)
	r.HandleFunc("/platform", h.Platforms).Methods(http.MethodGet)

	// Carts
	r.HandleFunc("/cart", h.CreateCart).Methods(http.MethodPut)
	r.HandleFunc("/cart", h.ListCarts).Methods(http.MethodGet)
	r.HandleFunc("/cart/{id}", h.GetCart).Methods(http.MethodGet)
	r.HandleFunc("/cart/{id}", h.ReplaceCart).Methods(http.MethodPost)
	r.HandleFunc("/cart/{id}", h.DeleteCart).Methods(http.MethodDelete)

	// Line items
	r.HandleFunc("/cart/{id}/product", h.AddProductToCart).Methods(http.MethodPut)
	r.HandleFunc("/cart/{id}/product/{product_id}", h.RemoveLineItem).Methods(http.MethodDelete)

	r.HandleFunc("/healthz", h.Health).Methods(http.MethodGet)
}

// NewRouter wires the routes behind the request id, logging and CORS middleware.
func NewRouter(s service.ServiceInterface, logger *zap.Logger) http.Handler {
	h := NewHandler(s, logger)
	r := mux.NewRouter()
	h.RegisterRoutes(r)
	return WithRequestID(WithLogging(h.logger)(WithCORS(r)))
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeErr(w, http.StatusBadRequest, malformedBody)
		return false
	}
	return true
}

// GetProduct handles GET /catalog/{id}
func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	p, err := h.svc.GetProduct(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// CreateProduct handles PUT /catalog
// body: { "title": "...", "type": "...", "stock": 3, "price": 9.5, "platforms": ["pc"] }
func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var in models.ProductInput
	if !decode(w, r, &in) {
		return
	}
	p, err := h.svc.CreateProduct(r.Context(), in)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// ListProducts handles GET /catalog?type=...
func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ps, err := h.svc.ListProducts(r.Context(), r.URL.Query().Get("type"))
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"catalog": ps})
}

// ReplaceProduct handles POST /catalog/{id}
func (h *Handler) ReplaceProduct(w http.ResponseWriter, r *http.Request) {
	var in models.ProductInput
	if !decode(w, r, &in) {
		return
	}
	p, err := h.svc.ReplaceProduct(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// DeleteProduct handles DELETE /catalog/{id}
func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteProduct(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "ok")
}

// Platforms handles GET /platform
func (h *Handler) Platforms(w http.ResponseWriter, r *http.Request) {
	counts, err := h.svc.Platforms(r.Context())
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"platforms": counts})
}

// CreateCart handles PUT /cart
// body: { "session": "..." }
func (h *Handler) CreateCart(w http.ResponseWriter, r *http.Request) {
	var in models.CartInput
	if !decode(w, r, &in) {
		return
	}
	c, err := h.svc.CreateCart(r.Context(), in)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ListCarts handles GET /cart
func (h *Handler) ListCarts(w http.ResponseWriter, r *http.Request) {
	cs, err := h.svc.ListCarts(r.Context())
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"carts": cs})
}

// GetCart handles GET /cart/{id}
func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.GetCart(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ReplaceCart handles POST /cart/{id}. Only the session is taken from the body.
func (h *Handler) ReplaceCart(w http.ResponseWriter, r *http.Request) {
	var in models.CartInput
	if !decode(w, r, &in) {
		return
	}
	c, err := h.svc.ReplaceCart(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// DeleteCart handles DELETE /cart/{id}
func (h *Handler) DeleteCart(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.DeleteCart(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "ok")
}

// AddProductToCart handles PUT /cart/{id}/product
// body: { "_id": "<product id>", "quantity": 2, ...any other attributes }
func (h *Handler) AddProductToCart(w http.ResponseWriter, r *http.Request) {
	var item models.LineItem
	if !decode(w, r, &item) {
		return
	}
	added, err := h.svc.AddProductToCart(r.Context(), mux.Vars(r)["id"], item)
	if err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, added)
}

// RemoveLineItem handles DELETE /cart/{id}/product/{product_id}
func (h *Handler) RemoveLineItem(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	if err := h.svc.RemoveLineItemFromCart(r.Context(), vars["id"], vars["product_id"]); err != nil {
		writeServiceErr(w, err)
		return
	}
	writeJSON(w, http.StatusOK, "ok")
}

// Health handles GET /healthz
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
