package domain

import (
	"fmt"
	"strings"
)

// Category is the closed set of product categories
type Category string

const (
	CategoryElectronics Category = "electronics"
	CategoryClothing    Category = "clothing"
	CategoryBooks       Category = "books"
	CategoryHome        Category = "home"
	CategoryOther       Category = "other"
)

var categoryOrder = []Category{
	CategoryElectronics,
	CategoryClothing,
	CategoryBooks,
	CategoryHome,
	CategoryOther,
}

var categoryLabels = map[Category]string{
	CategoryElectronics: "Electronics",
	CategoryClothing:    "Clothing",
	CategoryBooks:       "Books",
	CategoryHome:        "Home & Garden",
	CategoryOther:       "Other",
}

// accepted spellings that are not the stored value
var categoryAliases = map[string]Category{
	"home-and-garden": CategoryHome,
	"home_and_garden": CategoryHome,
	"home & garden":   CategoryHome,
}

// IsValid reports whether c is one of the known categories
func (c Category) IsValid() bool {
	_, ok := categoryLabels[c]
	return ok
}

// Label returns the human readable name of the category
func (c Category) Label() string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	return string(c)
}

func (c Category) String() string {
	return string(c)
}

// ParseCategory resolves raw input to a Category, case-insensitively
func ParseCategory(raw string) (Category, error) {
	normalized := strings.ToLower(strings.TrimSpace(raw))
	if c := Category(normalized); c.IsValid() {
		return c, nil
	}
	if c, ok := categoryAliases[normalized]; ok {
		return c, nil
	}
	return "", fmt.Errorf("invalid category %q", raw)
}

// CategoryOption is a value/label pair used by pickers and the categories endpoint
type CategoryOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// Categories lists all categories in display order
func Categories() []CategoryOption {
	options := make([]CategoryOption, 0, len(categoryOrder))
	for _, c := range categoryOrder {
		options = append(options, CategoryOption{Value: string(c), Label: c.Label()})
	}
	return options
}
