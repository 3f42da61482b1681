package transport

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"stockroom/internal/apperror"
	"stockroom/internal/domain"
	"stockroom/internal/middleware"
	"stockroom/internal/query"
	"stockroom/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ProductRequest is the body of POST and PUT. Every field except
// description, image_url and is_available must be present.
type ProductRequest struct {
	Name        string           `json:"name" validate:"required"`
	Description string           `json:"description"`
	Category    string           `json:"category" validate:"required"`
	Price       *decimal.Decimal `json:"price" validate:"required"`
	Stock       *int             `json:"stock" validate:"required"`
	ImageURL    string           `json:"image_url"`
	IsAvailable *bool            `json:"is_available"`
}

// ProductPatchRequest is the body of PATCH. Absent fields are left unchanged.
type ProductPatchRequest struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Category    *string          `json:"category"`
	Price       *decimal.Decimal `json:"price"`
	Stock       *int             `json:"stock"`
	ImageURL    *string          `json:"image_url"`
	IsAvailable *bool            `json:"is_available"`
}

// AdjustStockRequest accepts the adjustment as a JSON integer or a numeric string
type AdjustStockRequest struct {
	Adjustment json.RawMessage `json:"adjustment"`
}

// ProductResponse is a product plus the derived fields clients display
type ProductResponse struct {
	*domain.Product
	CategoryLabel string `json:"category_label"`
	InStock       bool   `json:"in_stock"`
}

// AdjustStockResponse reports the stock on both sides of an adjustment
type AdjustStockResponse struct {
	Message  string          `json:"message"`
	OldStock int             `json:"old_stock"`
	NewStock int             `json:"new_stock"`
	Product  ProductResponse `json:"product"`
}

// ProductListResponse is one page of the catalog
type ProductListResponse struct {
	Items      []ProductResponse `json:"items"`
	Total      int               `json:"total"`
	Page       int               `json:"page"`
	PageSize   int               `json:"page_size"`
	TotalPages int               `json:"total_pages"`
	Sort       string            `json:"sort"`
}

// HistoryResponse lists ledger entries, newest first
type HistoryResponse struct {
	Changes []*domain.ChangeEntry `json:"changes"`
}

func newProductResponse(p *domain.Product) ProductResponse {
	return ProductResponse{Product: p, CategoryLabel: p.Category.Label(), InStock: p.InStock()}
}

// ProductHandler serves the product REST API
type ProductHandler struct {
	products service.ProductService
	limits   query.Limits
	logger   *zap.Logger
}

func NewProductHandler(products service.ProductService, limits query.Limits, logger *zap.Logger) *ProductHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductHandler{products: products, limits: limits, logger: logger}
}

// RegisterRoutes mounts /api/products. Reads accept anonymous callers;
// writes go through requireAuth and then writeLimit.
func (h *ProductHandler) RegisterRoutes(r chi.Router, optionalAuth, requireAuth, writeLimit func(http.Handler) http.Handler) {
	r.Route("/api/products", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(optionalAuth)
			r.Get("/", h.List)
			r.Get("/categories", h.Categories)
			r.Get("/{id}", h.Get)
			r.Get("/{id}/history", h.History)
		})

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Use(writeLimit)
			r.Post("/", h.Create)
			r.Put("/{id}", h.Replace)
			r.Patch("/{id}", h.Patch)
			r.Delete("/{id}", h.Delete)
			r.Post("/{id}/adjust-stock", h.AdjustStock)
		})
	})
}

func (h *ProductHandler) List(w http.ResponseWriter, r *http.Request) {
	q := query.ParseListQuery(r.URL.Query(), middleware.ActorFromContext(r.Context()), h.limits)

	page, err := h.products.List(r.Context(), q)
	if err != nil {
		middleware.RespondWithAppError(w, err, h.logger)
		return
	}

	items := make([]ProductResponse, 0, len(page.Items))
	for _, p := range page.Items {
		items = append(items, newProductResponse(p))
	}
	middleware.RespondWithJSON(w, http.StatusOK, ProductListResponse{
		Items:      items,
		Total:      page.Total,
		Page:       page.Page,
		PageSize:   page.PageSize,
		TotalPages: page.TotalPages,
		Sort:       q.Sort.Token(),
	})
}

// Categories returns the category enumeration as value -> label
func (h *ProductHandler) Categories(w http.ResponseWriter, r *http.Request) {
	categories := make(map[string]string)
	for _, c := range h.products.Categories() {
		categories[c.Value] = c.Label
	}
	middleware.RespondWithJSON(w, http.StatusOK, map[string]interface{}{"categories": categories})
}

func (h *ProductHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithAppError(w, err, h.logger)
		return
	}
	product, err := h.products.Get(r.Context(), id)
	if err != nil {
		middleware.RespondWithAppError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, newProductResponse(product))
}

func (h *ProductHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !decode(w, r, &req, h.logger) {
		return
	}

	product, err := h.products.Create(r.Context(), middleware.ActorFromContext(r.Context()), service.ProductInput{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Price:       *req.Price,
		Stock:       *req.Stock,
		ImageURL:    req.ImageURL,
		IsAvailable: req.IsAvailable,
	})
	if err != nil {
		middleware.RespondWithAppError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusCreated, newProductResponse(product))
}

// Replace handles PUT: all required fields must be sent
func (h *ProductHandler) Replace(w http.ResponseWriter, r *http.Request) {
	var req ProductRequest
	if !decode(w, r, &req, h.logger) {
		return
	}
	h.update(w, r, service.ProductUpdate{
		Name:        &req.Name,
		Description: &req.Description,
		Category:    &req.Category,
		Price:       req.Price,
		Stock:       req.Stock,
		ImageURL:    &req.ImageURL,
		IsAvailable: req.IsAvailable,
	})
}

// Patch handles PATCH: only the sent fields change
func (h *ProductHandler) Patch(w http.ResponseWriter, r *http.Request) {
	var req ProductPatchRequest
	if !decode(w, r, &req, h.logger) {
		return
	}
	h.update(w, r, service.ProductUpdate{
		Name:        req.Name,
		Description: req.Description,
		Category:    req.Category,
		Price:       req.Price,
		Stock:       req.Stock,
		ImageURL:    req.ImageURL,
		IsAvailable: req.IsAvailable,
	})
}

func (h *ProductHandler) update(w http.ResponseWriter, r *http.Request, upd service.ProductUpdate) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithAppError(w, err, h.logger)
		return
	}
	product, err := h.products.Update(r.Context(), middleware.ActorFromContext(r.Context()), id, upd)
	if err != nil {
		middleware.RespondWithAppError(w, err, h.logger)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, newProductResponse(product))
}

func (h *ProductHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithAppError(w, err, h.logger)
		return
	}
	if err := h.products.Delete(r.Context(), middleware.ActorFromContext(r.Context()), id); err != nil {
		middleware.RespondWithAppError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithAppError(w, err, h.logger)
		return
	}

	var req AdjustStockRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	delta, err := parseAdjustment(req.Adjustment)
	if err != nil {
		middleware.RespondWithAppError(w, err, h.logger)
		return
	}

	result, err := h.products.AdjustStock(r.Context(), middleware.ActorFromContext(r.Context()), id, delta)
	if err != nil {
		middleware.RespondWithAppError(w, err, h.logger)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, AdjustStockResponse{
		Message:  "Stock updated successfully",
		OldStock: result.OldStock,
		NewStock: result.NewStock,
		Product:  newProductResponse(result.Product),
	})
}

func (h *ProductHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		middleware.RespondWithAppError(w, err, h.logger)
		return
	}
	entries, err := h.products.History(r.Context(), id, limitParam(r, 50))
	if err != nil {
		middleware.RespondWithAppError(w, err, h.logger)
		return
	}
	if entries == nil {
		entries = []*domain.ChangeEntry{}
	}
	middleware.RespondWithJSON(w, http.StatusOK, HistoryResponse{Changes: entries})
}

// parseAdjustment accepts 5, -3 or "5". Fractions, booleans and other
// strings are rejected.
func parseAdjustment(raw json.RawMessage) (int, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, apperror.InvalidField("adjustment", "Adjustment value required")
	}

	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		s = strings.TrimSpace(s)
		if s == "" {
			return 0, apperror.InvalidField("adjustment", "Adjustment value required")
		}
		if n, err := strconv.Atoi(s); err == nil {
			return n, nil
		}
	}
	return 0, apperror.InvalidField("adjustment", "Invalid adjustment value")
}
