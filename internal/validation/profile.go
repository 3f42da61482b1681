package validation

import (
	"strings"
	"unicode/utf8"

	"stockroom/internal/apperror"
)

const (
	MaxPhoneLength      = 20
	MaxPositionLength   = 60
	MaxDepartmentLength = 100

	DefaultCountryCode = "256"
)

// NormalizePhone rewrites a phone number into "+<country code><subscriber>" form.
// Only digits and a leading '+' are kept. Local numbers written with a trunk
// zero ("0700..." or "+0700...") have the zero replaced by countryCode, and any
// other number not already carrying countryCode gets it prepended.
// Empty input is returned unchanged.
func NormalizePhone(raw, countryCode string) string {
	if raw == "" {
		return raw
	}
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	countryCode = strings.TrimPrefix(countryCode, "+")

	var b strings.Builder
	b.Grow(len(raw) + 1)
	for _, r := range raw {
		if (r >= '0' && r <= '9') || (r == '+' && b.Len() == 0) {
			b.WriteRune(r)
		}
	}

	cleaned := b.String()
	if !strings.HasPrefix(cleaned, "+") {
		cleaned = "+" + cleaned
	}

	prefix := "+" + countryCode
	switch {
	case strings.HasPrefix(cleaned, "+0"):
		return prefix + cleaned[2:]
	case strings.HasPrefix(cleaned, prefix):
		return cleaned
	default:
		return prefix + strings.TrimPrefix(cleaned, "+")
	}
}

// ValidatePhone checks an already normalized phone number
func ValidatePhone(phone, countryCode string) error {
	if phone == "" {
		return nil
	}
	if len(phone) > MaxPhoneLength {
		return apperror.InvalidField("phone", "Phone number must be at most 20 characters")
	}
	if countryCode == "" {
		countryCode = DefaultCountryCode
	}
	if len(phone) <= len(countryCode)+1 {
		return apperror.InvalidField("phone", "Enter a valid phone number")
	}
	return nil
}

// ProfileFields are the user-editable profile fields
type ProfileFields struct {
	Position   string
	Department string
	Bio        string
	Phone      string
}

// Profile trims the fields, normalizes the phone and validates lengths
func Profile(in ProfileFields, countryCode string) (ProfileFields, error) {
	out := ProfileFields{
		Position:   strings.TrimSpace(in.Position),
		Department: strings.TrimSpace(in.Department),
		Bio:        strings.TrimSpace(in.Bio),
		Phone:      NormalizePhone(strings.TrimSpace(in.Phone), countryCode),
	}

	if utf8.RuneCountInString(out.Position) > MaxPositionLength {
		return out, apperror.InvalidField("position", "Position must be at most 60 characters")
	}
	if utf8.RuneCountInString(out.Department) > MaxDepartmentLength {
		return out, apperror.InvalidField("department", "Department must be at most 100 characters")
	}
	if err := ValidatePhone(out.Phone, countryCode); err != nil {
		return out, err
	}
	return out, nil
}
