package http

import (
	"errors"
	"reflect"
	"strings"

	"chainlend-backend/internal/domain/money"

	"github.com/ethereum/go-ethereum/common"
	"github.com/go-playground/validator/v10"
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error   string       `json:"error"`
	Details []FieldError `json:"details,omitempty"`
}

// CustomValidator plugs go-playground/validator into echo.
type CustomValidator struct{ v *validator.Validate }

func isHexAddr(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	return strings.HasPrefix(s, "0x") && common.IsHexAddress(s)
}

func isU256(fl validator.FieldLevel) bool {
	_, err := money.Parse(fl.Field().String())
	return err == nil
}

func isAsset(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "USDC", "ETH", "CL":
		return true
	}
	return false
}

// jsonName reports fields under their wire name so clients can match them.
func jsonName(f reflect.StructField) string {
	name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

func NewValidator() *CustomValidator {
	v := validator.New()
	v.RegisterTagNameFunc(jsonName)
	_ = v.RegisterValidation("hexaddr", isHexAddr)
	_ = v.RegisterValidation("u256", isU256)
	_ = v.RegisterValidation("asset", isAsset)
	return &CustomValidator{v: v}
}

func (cv *CustomValidator) Validate(i any) error { return cv.v.Struct(i) }

var tagMessages = map[string]string{
	"required": "is required",
	"hexaddr":  "must be a 0x-prefixed 20-byte hex address",
	"u256":     "must be a base-unit integer string",
	"asset":    "must be one of USDC, ETH, CL",
}

func fieldMessage(e validator.FieldError) string {
	if m, ok := tagMessages[e.Tag()]; ok {
		return m
	}
	switch e.Tag() {
	case "gte":
		return "must be greater than or equal to " + e.Param()
	case "lte":
		return "must be less than or equal to " + e.Param()
	}
	return e.Tag() + " validation failed"
}

// ToFieldErrors flattens validator output; anything else becomes a single
// entry under "_".
func ToFieldErrors(err error) []FieldError {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return []FieldError{{Field: "_", Message: err.Error()}}
	}
	out := make([]FieldError, 0, len(ve))
	for _, e := range ve {
		out = append(out, FieldError{Field: e.Field(), Message: fieldMessage(e)})
	}
	return out
}
