package validator

import (
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	// checkout session ids and payment intent ids as issued by Stripe
	paymentReferenceRgx = regexp.MustCompile(`^(cs|pi)_[A-Za-z0-9_]{1,250}$`)
)

func NewValidator() *validator.Validate {
	validator := validator.New(validator.WithRequiredStructEnabled())

	validator.RegisterValidation("payment_reference", validatePaymentReference)

	return validator
}

func validatePaymentReference(fl validator.FieldLevel) bool {
	return paymentReferenceRgx.MatchString(fl.Field().String())
}

// ValidationMessage converts validator errors into readable messages
func ValidationMessage(err validator.FieldError) string {
	switch err.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s characters long", err.Param())
	case "max":
		return fmt.Sprintf("must be at most %s characters long", err.Param())
	case "payment_reference":
		return "must be a checkout session or payment intent id"
	default:
		return "is invalid"
	}
}
