package validation

import (
	"fmt"
	"math"
	"strings"
	"unicode/utf8"

	"stockroom/internal/apperror"
	"stockroom/internal/domain"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const (
	MaxNameLength     = 255
	MaxImageURLLength = 200

	// price column is NUMERIC(10,2)
	PriceDecimalPlaces = 2
	PriceIntegerDigits = 8

	// stock column is INTEGER
	MaxStock = math.MaxInt32
)

var validate = validator.New()

// ValidatePrice fails unless price is strictly positive
func ValidatePrice(price decimal.Decimal) error {
	if !price.IsPositive() {
		return apperror.InvalidField("price", "Price must be greater than zero")
	}
	return nil
}

// ValidatePriceScale checks that price fits the stored precision
func ValidatePriceScale(price decimal.Decimal) error {
	if -price.Exponent() > PriceDecimalPlaces && !price.Equal(price.Round(PriceDecimalPlaces)) {
		return apperror.InvalidField("price", "Price must have at most 2 decimal places")
	}
	if price.Abs().GreaterThanOrEqual(decimal.New(1, PriceIntegerDigits)) {
		return apperror.InvalidField("price", "Price must be less than 100000000")
	}
	return nil
}

// ValidateStock fails when stock is negative or does not fit the stock column
func ValidateStock(stock int) error {
	if stock < 0 {
		return apperror.InvalidField("stock", "Stock cannot be negative")
	}
	if stock > MaxStock {
		return apperror.InvalidField("stock", fmt.Sprintf("Stock cannot exceed %d", MaxStock))
	}
	return nil
}

// ValidateCategory resolves raw to a known category
func ValidateCategory(raw string) (domain.Category, error) {
	c, err := domain.ParseCategory(raw)
	if err != nil {
		return "", apperror.InvalidField("category", "Select a valid category")
	}
	return c, nil
}

// ValidateName trims and checks the product name
func ValidateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperror.InvalidField("name", "Name is required")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return "", apperror.InvalidField("name", "Name must be at most 255 characters")
	}
	return name, nil
}

// ValidateImageURL accepts an empty value or an absolute URL
func ValidateImageURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if len(raw) > MaxImageURLLength {
		return "", apperror.InvalidField("image_url", "Image URL must be at most 200 characters")
	}
	if err := validate.Var(raw, "url"); err != nil {
		return "", apperror.InvalidField("image_url", "Enter a valid URL")
	}
	return raw, nil
}

// ProductFields is the full set of writable product fields
type ProductFields struct {
	Name        string
	Description string
	Category    string
	Price       decimal.Decimal
	Stock       int
	ImageURL    string
	IsAvailable bool
}

// Product validates every field and returns the normalized values.
// The first failing field is reported.
func Product(in ProductFields) (ProductFields, error) {
	out := in

	name, err := ValidateName(in.Name)
	if err != nil {
		return out, err
	}
	out.Name = name

	category, err := ValidateCategory(in.Category)
	if err != nil {
		return out, err
	}
	out.Category = string(category)

	if err := ValidatePrice(in.Price); err != nil {
		return out, err
	}
	if err := ValidatePriceScale(in.Price); err != nil {
		return out, err
	}
	if err := ValidateStock(in.Stock); err != nil {
		return out, err
	}

	imageURL, err := ValidateImageURL(in.ImageURL)
	if err != nil {
		return out, err
	}
	out.ImageURL = imageURL
	out.Description = strings.TrimSpace(in.Description)

	return out, nil
}
