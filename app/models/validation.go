package models

import (
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

// NewValidator returns a validator with the custom "singleline" rule: the
// field must not contain control characters such as CR or LF. Names and
// titles end up in mail headers and must stay on one line.
func NewValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("singleline", func(fl validator.FieldLevel) bool {
		return IsSingleLine(fl.Field().String())
	})
	return v
}

// IsSingleLine reports whether s is free of control characters.
func IsSingleLine(s string) bool {
	return strings.IndexFunc(s, unicode.IsControl) < 0
}
