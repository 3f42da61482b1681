package web

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"net/http"
	"strconv"

	"stockroom/internal/access"
	"stockroom/internal/apperror"
	"stockroom/internal/domain"
	"stockroom/internal/middleware"
	"stockroom/internal/query"
	"stockroom/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

//go:embed templates/*.html
var templateFS embed.FS

const historyLimit = 20

var changeLabels = map[domain.ChangeType]string{
	domain.ChangeCreated:       "Created",
	domain.ChangePriceChanged:  "Price changed",
	domain.ChangeStockAdjusted: "Stock adjusted",
	domain.ChangeDeleted:       "Deleted",
}

var funcs = template.FuncMap{
	"changeLabel": func(t domain.ChangeType) string {
		if label, ok := changeLabels[t]; ok {
			return label
		}
		return string(t)
	},
	"nullValue": func(v decimal.NullDecimal) string {
		if !v.Valid {
			return "-"
		}
		return v.Decimal.String()
	},
}

type option struct {
	Value string
	Label string
}

var sortOptions = []option{
	{"name", "Name (A-Z)"},
	{"-name", "Name (Z-A)"},
	{"price", "Price (low to high)"},
	{"-price", "Price (high to low)"},
	{"-stock", "Stock (most first)"},
	{"-created_date", "Newest"},
}

type listPage struct {
	Query       query.ListQuery
	Sort        string
	Page        query.Page[*domain.Product]
	Categories  []domain.CategoryOption
	SortOptions []option
	PrevURL     string
	NextURL     string
}

type detailPage struct {
	Product *domain.Product
	History []*domain.ChangeEntry
	CanEdit bool
}

type errorPage struct {
	Status  string
	Message string
}

// Handler renders the read-only catalog pages
type Handler struct {
	products service.ProductService
	checker  access.Checker
	limits   query.Limits
	logger   *zap.Logger
	pages    map[string]*template.Template
}

// New parses the embedded templates
func New(products service.ProductService, limits query.Limits, logger *zap.Logger) (*Handler, error) {
	pages := make(map[string]*template.Template)
	for _, name := range []string{"product_list", "product_detail", "error"} {
		tmpl, err := template.New(name).Funcs(funcs).ParseFS(templateFS, "templates/layout.html", "templates/"+name+".html")
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s template: %w", name, err)
		}
		pages[name] = tmpl
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		products: products,
		checker:  access.OwnerOrStaff{},
		limits:   limits,
		logger:   logger,
		pages:    pages,
	}, nil
}

func (h *Handler) RegisterRoutes(r chi.Router, optionalAuth func(http.Handler) http.Handler) {
	r.Group(func(r chi.Router) {
		r.Use(optionalAuth)
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			http.Redirect(w, r, "/products", http.StatusFound)
		})
		r.Get("/products", h.List)
		r.Get("/products/{id}", h.Detail)
	})
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	values := r.URL.Query()
	q := query.ParseListQuery(values, middleware.ActorFromContext(r.Context()), h.limits)

	page, err := h.products.List(r.Context(), q)
	if err != nil {
		h.renderError(w, err)
		return
	}

	h.render(w, http.StatusOK, "product_list", listPage{
		Query:       q,
		Sort:        q.Sort.Token(),
		Page:        page,
		Categories:  h.products.Categories(),
		SortOptions: sortOptions,
		PrevURL:     pageURL(r, page.Page-1),
		NextURL:     pageURL(r, page.Page+1),
	})
}

func (h *Handler) Detail(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.renderError(w, apperror.New(apperror.KindNotFound, "Product not found"))
		return
	}

	product, err := h.products.Get(r.Context(), id)
	if err != nil {
		h.renderError(w, err)
		return
	}
	history, err := h.products.History(r.Context(), id, historyLimit)
	if err != nil {
		h.renderError(w, err)
		return
	}

	h.render(w, http.StatusOK, "product_detail", detailPage{
		Product: product,
		History: history,
		CanEdit: h.checker.CanMutate(middleware.ActorFromContext(r.Context()), product),
	})
}

func (h *Handler) renderError(w http.ResponseWriter, err error) {
	appErr := apperror.As(err)
	if appErr == nil {
		appErr = apperror.Wrap(apperror.KindInternal, err, "")
	}
	status := apperror.HTTPStatus(appErr.Kind())
	if status >= http.StatusInternalServerError {
		h.logger.Error("Page failed", zap.Error(err))
	}
	h.render(w, status, "error", errorPage{Status: http.StatusText(status), Message: appErr.Message()})
}

// render executes into a buffer so a template failure never leaves a half-written page
func (h *Handler) render(w http.ResponseWriter, status int, name string, data interface{}) {
	var buf bytes.Buffer
	if err := h.pages[name].ExecuteTemplate(&buf, "layout", data); err != nil {
		h.logger.Error("Template execution failed", zap.String("template", name), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

func pageURL(r *http.Request, page int) string {
	values := r.URL.Query()
	values.Set("page", strconv.Itoa(page))
	return r.URL.Path + "?" + values.Encode()
}
