// internal/utils/validator.go
package utils

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	validate.RegisterValidation("sale_type", validateSaleType)
	validate.RegisterValidation("seller_tier", validateSellerTier)
}

func ValidateStruct(s interface{}) error {
	return validate.Struct(s)
}

// The enum values live in models; they are repeated here to keep utils import-free.
func validateSaleType(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "STANDARD", "PROMO", "NO_EXTRA", "GIFT", "WHOLESALE":
		return true
	}
	return false
}

func validateSellerTier(fl validator.FieldLevel) bool {
	switch fl.Field().String() {
	case "PARTNER", "NETWORK", "ORGANIZER":
		return true
	}
	return false
}

// Validation tags for common fields
type ValidationError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

func GetValidationErrors(err error) []ValidationError {
	var validationErrors []ValidationError

	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		for _, e := range validationErrs {
			validationErrors = append(validationErrors, ValidationError{
				Field:   strings.ToLower(e.Field()),
				Tag:     e.Tag(),
				Message: getValidationMessage(e),
			})
		}
	}

	return validationErrors
}

func getValidationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return e.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		return e.Field() + " must be at least " + e.Param()
	case "max":
		return e.Field() + " must be at most " + e.Param()
	case "oneof":
		return e.Field() + " must be one of " + e.Param()
	case "sale_type":
		return "Sale type must be STANDARD, PROMO, NO_EXTRA, GIFT or WHOLESALE"
	case "seller_tier":
		return "Seller tier must be PARTNER, NETWORK or ORGANIZER"
	default:
		return e.Field() + " is invalid"
	}
}
