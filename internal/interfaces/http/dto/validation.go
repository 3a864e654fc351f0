package dto

import (
	"github.com/finbooks/backend/internal/domain/shared/valueobject"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

var supportedCurrencies = map[valueobject.Currency]bool{
	valueobject.USD: true,
	valueobject.EUR: true,
	valueobject.GBP: true,
	valueobject.CAD: true,
	valueobject.AUD: true,
}

// RegisterValidations installs custom request validators on gin's binding
// engine. Call once during router setup.
func RegisterValidations() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("currency", validCurrency)
	}
}

// validCurrency accepts an empty code (the domain falls back to the default
// currency) or one of the supported ISO 4217 codes
func validCurrency(fl validator.FieldLevel) bool {
	code := valueobject.Currency(fl.Field().String())
	if code == "" {
		return true
	}
	return supportedCurrencies[code]
}
