package http

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"collateral-loans/internal/domain/loan"
)

// Reusable error payload
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}
type ErrorResponse struct {
	Error   string       `json:"error"`
	Details []FieldError `json:"details,omitempty"`
}

type CustomValidator struct{ v *validator.Validate }

func NewValidator() *CustomValidator {
	v := validator.New()

	// report json names, not Go field names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return f.Name
		}
		return name
	})
	// token amount = base-10 integer that fits in 256 bits
	_ = v.RegisterValidation("uint256", func(fl validator.FieldLevel) bool {
		_, err := loan.ParseAmount(fl.Field().String())
		return err == nil
	})
	// strictly positive token amount
	_ = v.RegisterValidation("amount", func(fl validator.FieldLevel) bool {
		a, err := loan.ParseAmount(fl.Field().String())
		return err == nil && !a.IsZero()
	})

	return &CustomValidator{v: v}
}

func (cv *CustomValidator) Validate(i any) error { return cv.v.Struct(i) }

// Map validator.ValidationErrors → []FieldError with readable messages.
func ToFieldErrors(err error) []FieldError {
	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return []FieldError{{Field: "_", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(ve))
	for _, e := range ve {
		field := e.Namespace()
		if i := strings.IndexByte(field, '.'); i >= 0 {
			field = field[i+1:]
		}
		switch e.Tag() {
		case "required":
			out = append(out, FieldError{Field: field, Message: "is required"})
		case "eth_addr":
			out = append(out, FieldError{Field: field, Message: "must be a 0x-prefixed 20-byte hex address"})
		case "uint256":
			out = append(out, FieldError{Field: field, Message: "must be a base-10 integer below 2^256"})
		case "amount":
			out = append(out, FieldError{Field: field, Message: "must be a positive base-10 integer below 2^256"})
		case "hexadecimal":
			out = append(out, FieldError{Field: field, Message: "must be 0x-prefixed hex"})
		case "gt":
			out = append(out, FieldError{Field: field, Message: "must be greater than " + e.Param()})
		case "gte":
			out = append(out, FieldError{Field: field, Message: "must be greater than or equal to " + e.Param()})
		case "lte":
			out = append(out, FieldError{Field: field, Message: "must be less than or equal to " + e.Param()})
		default:
			out = append(out, FieldError{Field: field, Message: e.Tag() + " validation failed"})
		}
	}
	return out
}
