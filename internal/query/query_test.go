package query

import (
	"math"
	"net/url"
	"strconv"
	"testing"

	"stockroom/internal/domain"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseListQueryDefaults(t *testing.T) {
	q := ParseListQuery(url.Values{}, nil, DefaultLimits())

	assert.Empty(t, q.Search)
	assert.Empty(t, q.Category)
	assert.Nil(t, q.MinPrice)
	assert.Nil(t, q.MaxPrice)
	assert.False(t, q.InStockOnly)
	assert.Nil(t, q.Available)
	assert.Nil(t, q.OwnerID)
	assert.Equal(t, DefaultSort, q.Sort)
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, 10, q.PageSize)
	assert.Equal(t, 0, q.Offset())
}

func TestParseListQueryFilters(t *testing.T) {
	actor := &domain.Actor{ID: uuid.New(), Role: domain.RoleUser}
	values := url.Values{
		"search":        {" lamp "},
		"category":      {"Home-And-Garden"},
		"min_price":     {"5"},
		"max_price":     {"20.50"},
		"in_stock_only": {"true"},
		"available":     {"false"},
		"owner_only":    {"1"},
		"sort":          {"-price"},
		"page":          {"3"},
		"page_size":     {"25"},
	}

	q := ParseListQuery(values, actor, DefaultLimits())

	assert.Equal(t, "lamp", q.Search)
	assert.Equal(t, "home", q.Category)
	require.NotNil(t, q.MinPrice)
	assert.Equal(t, "5", q.MinPrice.String())
	require.NotNil(t, q.MaxPrice)
	assert.Equal(t, "20.5", q.MaxPrice.String())
	assert.True(t, q.InStockOnly)
	require.NotNil(t, q.Available)
	assert.False(t, *q.Available)
	require.NotNil(t, q.OwnerID)
	assert.Equal(t, actor.ID, *q.OwnerID)
	assert.Equal(t, SortKey{Field: "price", Desc: true}, q.Sort)
	assert.Equal(t, 3, q.Page)
	assert.Equal(t, 25, q.PageSize)
	assert.Equal(t, 50, q.Offset())
}

func TestParseListQueryLenientInputs(t *testing.T) {
	values := url.Values{
		"category":   {"all"},
		"min_price":  {"cheap"},
		"max_price":  {"1e"},
		"available":  {"maybe"},
		"owner_only": {"true"},
		"sort":       {"password_hash"},
		"page":       {"-2"},
		"page_size":  {"lots"},
	}

	q := ParseListQuery(values, nil, DefaultLimits())

	assert.Empty(t, q.Category)
	assert.Nil(t, q.MinPrice)
	assert.Nil(t, q.MaxPrice)
	assert.Nil(t, q.Available)
	assert.Nil(t, q.OwnerID, "owner_only is ignored for anonymous callers")
	assert.Equal(t, DefaultSort, q.Sort)
	assert.Equal(t, 1, q.Page)
	assert.Equal(t, DefaultPageSize, q.PageSize)
}

func TestParseListQueryUnknownCategoryStillFilters(t *testing.T) {
	q := ParseListQuery(url.Values{"category": {"Toys"}}, nil, DefaultLimits())
	assert.Equal(t, "toys", q.Category)
}

func TestOrderingAlias(t *testing.T) {
	q := ParseListQuery(url.Values{"ordering": {"-created_date"}}, nil, DefaultLimits())
	assert.Equal(t, SortKey{Field: "created_at", Desc: true}, q.Sort)

	q = ParseListQuery(url.Values{"ordering": {"stock"}, "sort": {"price"}}, nil, DefaultLimits())
	assert.Equal(t, "price", q.Sort.Field, "sort wins over ordering")
}

func TestParseSort(t *testing.T) {
	cases := map[string]SortKey{
		"name":          {Field: "name"},
		"-name":         {Field: "name", Desc: true},
		"price":         {Field: "price"},
		"-stock":        {Field: "stock", Desc: true},
		"createdDate":   {Field: "created_at"},
		"-created_date": {Field: "created_at", Desc: true},
		"":              DefaultSort,
		"name; DROP":    DefaultSort,
		"--price":       DefaultSort,
	}
	for raw, want := range cases {
		assert.Equal(t, want, ParseSort(raw), raw)
	}
}

func TestSortKeyRendering(t *testing.T) {
	k := SortKey{Field: "created_at", Desc: true}
	assert.Equal(t, "created_at", k.Column())
	assert.Equal(t, "DESC", k.Direction())
	assert.Equal(t, "-created_date", k.Token())

	assert.Equal(t, "name", SortKey{Field: "bogus"}.Column())
}

// Feature: stock-management, Property 6: Page size is clamped, never rejected
func TestProperty_PageSizeIsClamped(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("page_size always lands in [1, max]", prop.ForAll(
		func(size int) bool {
			q := ParseListQuery(url.Values{"page_size": {strconv.Itoa(size)}}, nil, DefaultLimits())
			switch {
			case size <= 0:
				return q.PageSize == DefaultPageSize
			case size > MaxPageSize:
				return q.PageSize == MaxPageSize
			default:
				return q.PageSize == size
			}
		},
		gen.IntRange(-1000, 100000),
	))

	properties.Property("invalid sort keys fall back to name ascending", prop.ForAll(
		func(raw string) bool {
			if _, ok := sortColumns[raw]; ok {
				return true
			}
			return ParseSort("x"+raw) == DefaultSort
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestPageSize500ClampsTo100(t *testing.T) {
	q := ParseListQuery(url.Values{"page_size": {"500"}}, nil, DefaultLimits())
	assert.Equal(t, 100, q.PageSize)
}

func TestHugePageKeepsOffsetNonNegative(t *testing.T) {
	q := ParseListQuery(url.Values{"page": {"100000000000000000"}, "page_size": {"100"}}, nil, DefaultLimits())

	assert.Equal(t, 100, q.PageSize)
	assert.Positive(t, q.Offset())

	huge := ListQuery{Page: math.MaxInt, PageSize: 100}
	assert.Equal(t, math.MaxInt, huge.Offset())
}

func TestCustomLimits(t *testing.T) {
	limits := Limits{DefaultPageSize: 20, MaxPageSize: 50}
	assert.Equal(t, 20, limits.NormalizePageSize(0))
	assert.Equal(t, 50, limits.NormalizePageSize(75))

	assert.Equal(t, 10, Limits{}.NormalizePageSize(0))
}

func TestNewPage(t *testing.T) {
	q := ListQuery{Page: 2, PageSize: 10}
	page := NewPage([]string{"a", "b"}, 12, q)

	assert.Equal(t, 2, page.TotalPages)
	assert.True(t, page.HasPrevious())
	assert.False(t, page.HasNext())

	empty := NewPage[string](nil, 0, ListQuery{Page: 1, PageSize: 10})
	assert.NotNil(t, empty.Items)
	assert.Equal(t, 0, empty.TotalPages)
}
