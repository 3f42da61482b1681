package query

import (
	"math"
	"net/url"
	"strconv"
	"strings"

	"stockroom/internal/domain"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// DefaultPageSize is used when the caller does not ask for one
	DefaultPageSize = 10
	// MaxPageSize caps any requested page size
	MaxPageSize = 100
)

// Limits configures pagination bounds
type Limits struct {
	DefaultPageSize int
	MaxPageSize     int
}

// DefaultLimits returns the standard pagination bounds
func DefaultLimits() Limits {
	return Limits{DefaultPageSize: DefaultPageSize, MaxPageSize: MaxPageSize}
}

func (l Limits) normalized() Limits {
	if l.MaxPageSize <= 0 {
		l.MaxPageSize = MaxPageSize
	}
	if l.DefaultPageSize <= 0 {
		l.DefaultPageSize = DefaultPageSize
	}
	if l.DefaultPageSize > l.MaxPageSize {
		l.DefaultPageSize = l.MaxPageSize
	}
	return l
}

// NormalizePageSize applies the default and clamps to the ceiling
func (l Limits) NormalizePageSize(size int) int {
	l = l.normalized()
	if size <= 0 {
		return l.DefaultPageSize
	}
	if size > l.MaxPageSize {
		return l.MaxPageSize
	}
	return size
}

// SortKey is a column from the sort allow-list plus a direction
type SortKey struct {
	Field string
	Desc  bool
}

var sortColumns = map[string]string{
	"name":         "name",
	"price":        "price",
	"stock":        "stock",
	"created_date": "created_at",
	"createddate":  "created_at",
	"created_at":   "created_at",
}

// DefaultSort orders by name ascending
var DefaultSort = SortKey{Field: "name"}

// ParseSort resolves a sort token such as "price" or "-created_date".
// Anything outside the allow-list falls back to DefaultSort.
func ParseSort(raw string) SortKey {
	raw = strings.TrimSpace(raw)
	desc := strings.HasPrefix(raw, "-")
	raw = strings.ToLower(strings.TrimPrefix(raw, "-"))

	column, ok := sortColumns[raw]
	if !ok {
		return DefaultSort
	}
	return SortKey{Field: column, Desc: desc}
}

// Column returns the SQL column for the key; always an allow-listed value
func (k SortKey) Column() string {
	for _, c := range sortColumns {
		if c == k.Field {
			return c
		}
	}
	return DefaultSort.Field
}

// Direction returns ASC or DESC
func (k SortKey) Direction() string {
	if k.Desc {
		return "DESC"
	}
	return "ASC"
}

// Token renders the key back to its query-string form
func (k SortKey) Token() string {
	name := k.Field
	if name == "created_at" {
		name = "created_date"
	}
	if k.Desc {
		return "-" + name
	}
	return name
}

// ListQuery is the parsed product list request
type ListQuery struct {
	Search      string
	Category    string
	MinPrice    *decimal.Decimal
	MaxPrice    *decimal.Decimal
	InStockOnly bool
	Available   *bool
	OwnerID     *uuid.UUID
	Sort        SortKey
	Page        int
	PageSize    int
}

// Offset is the number of rows skipped before the current page
func (q ListQuery) Offset() int {
	if q.Page <= 1 {
		return 0
	}
	if q.PageSize > 0 && q.Page-1 > math.MaxInt/q.PageSize {
		return math.MaxInt
	}
	return (q.Page - 1) * q.PageSize
}

// ParseListQuery builds a ListQuery from query-string values. It never fails:
// unparsable bounds, flags and sort keys are ignored or replaced by defaults.
func ParseListQuery(values url.Values, actor *domain.Actor, limits Limits) ListQuery {
	q := ListQuery{
		Search: strings.TrimSpace(values.Get("search")),
		Sort:   DefaultSort,
		Page:   1,
	}

	if raw := strings.TrimSpace(values.Get("category")); raw != "" && !strings.EqualFold(raw, "all") {
		if c, err := domain.ParseCategory(raw); err == nil {
			q.Category = string(c)
		} else {
			// unknown values still filter, and simply match nothing
			q.Category = strings.ToLower(raw)
		}
	}

	q.MinPrice = parseDecimal(values.Get("min_price"))
	q.MaxPrice = parseDecimal(values.Get("max_price"))
	q.InStockOnly = isTruthy(values.Get("in_stock_only"))

	availableRaw := values.Get("available")
	if availableRaw == "" {
		availableRaw = values.Get("is_available")
	}
	q.Available = parseBool(strings.TrimSpace(availableRaw))

	if isTruthy(values.Get("owner_only")) && actor != nil {
		id := actor.ID
		q.OwnerID = &id
	}

	sortRaw := values.Get("sort")
	if sortRaw == "" {
		sortRaw = values.Get("ordering")
	}
	if sortRaw != "" {
		q.Sort = ParseSort(sortRaw)
	}

	if page, err := strconv.Atoi(strings.TrimSpace(values.Get("page"))); err == nil && page > 0 {
		q.Page = page
	}

	size, err := strconv.Atoi(strings.TrimSpace(values.Get("page_size")))
	if err != nil {
		size = 0
	}
	q.PageSize = limits.NormalizePageSize(size)

	// keeps Offset within int range for absurd page numbers
	if maxPage := math.MaxInt/q.PageSize + 1; q.Page > maxPage {
		q.Page = maxPage
	}

	return q
}

func parseDecimal(raw string) *decimal.Decimal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	d, err := decimal.NewFromString(raw)
	if err != nil {
		return nil
	}
	return &d
}

func parseBool(raw string) *bool {
	if raw == "" {
		return nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &b
}

func isTruthy(raw string) bool {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "t", "true", "yes", "on":
		return true
	}
	return false
}

// Page is one page of an ordered result set
type Page[T any] struct {
	Items      []T `json:"items"`
	Total      int `json:"total"`
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalPages int `json:"total_pages"`
}

// NewPage assembles a page from the rows of the current window and the total count
func NewPage[T any](items []T, total int, q ListQuery) Page[T] {
	if items == nil {
		items = []T{}
	}
	totalPages := 0
	if q.PageSize > 0 {
		totalPages = (total + q.PageSize - 1) / q.PageSize
	}
	return Page[T]{
		Items:      items,
		Total:      total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: totalPages,
	}
}

// HasNext reports whether a page follows this one
func (p Page[T]) HasNext() bool {
	return p.Page < p.TotalPages
}

// HasPrevious reports whether a page precedes this one
func (p Page[T]) HasPrevious() bool {
	return p.Page > 1
}
