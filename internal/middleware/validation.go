package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
	// report fields by their JSON names
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

// ValidateRequest validates the request body against a struct with validation tags
func ValidateRequest(v interface{}) error {
	return validate.Struct(v)
}

// DecodeAndValidate decodes JSON request body and validates it
func DecodeAndValidate(r *http.Request, v interface{}) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return err
	}
	return ValidateRequest(v)
}

// ValidationError is one field-level failure in a response body
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var fixedMessages = map[string]string{
	"required": "This field is required",
	"email":    "Invalid email format",
	"min":      "Value is too short",
	"max":      "Value is too long",
	"url":      "Enter a valid URL",
	"uuid":     "Invalid identifier",
}

var boundMessages = map[string]string{
	"gte":   "Value must be greater than or equal to ",
	"lte":   "Value must be less than or equal to ",
	"gt":    "Value must be greater than ",
	"lt":    "Value must be less than ",
	"oneof": "Must be one of: ",
}

// FormatValidationErrors flattens validator errors keyed by JSON field name.
// Errors that did not come from the validator yield nil.
func FormatValidationErrors(err error) []ValidationError {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil
	}

	out := make([]ValidationError, 0, len(fieldErrs))
	for _, e := range fieldErrs {
		out = append(out, ValidationError{Field: e.Field(), Message: messageFor(e)})
	}
	return out
}

func messageFor(e validator.FieldError) string {
	if msg, ok := fixedMessages[e.Tag()]; ok {
		return msg
	}
	if prefix, ok := boundMessages[e.Tag()]; ok {
		return prefix + e.Param()
	}
	return "Invalid value"
}
