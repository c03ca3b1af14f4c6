package service

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// validateStruct runs struct tag validation and reports the first failure
// as a ValidationError.
func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return &ValidationError{Field: "request", Reason: "invalid input"}
	}

	fe := fieldErrs[0]
	return &ValidationError{Field: fe.Field(), Reason: describeTag(fe)}
}

func describeTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "numeric":
		return "must contain digits only"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at least %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("must be at most %s characters", fe.Param())
		}
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "email":
		return "must be a valid email address"
	case "credit_card":
		return "is not a valid card number"
	case "gtfield":
		return "must be after " + fieldLabel(fe.Param())
	}
	return "is invalid"
}

func fieldLabel(structField string) string {
	switch structField {
	case "StartDate":
		return "start_date"
	}
	return strings.ToLower(structField)
}

// CardInput is raw card data supplied at checkout. It is passed straight to
// the gateway for tokenization and never stored.
type CardInput struct {
	Number   string `json:"card_number" validate:"required,numeric,credit_card"`
	ExpMonth int    `json:"exp_month" validate:"required,min=1,max=12"`
	ExpYear  int    `json:"exp_year" validate:"required,min=2000,max=2100"`
	CVC      string `json:"cvc" validate:"required,numeric,min=3,max=4"`
}

// BillingInput is optional payer information forwarded to the gateway.
type BillingInput struct {
	Name  string `json:"name" validate:"omitempty,max=120"`
	Email string `json:"email" validate:"omitempty,email"`
	Phone string `json:"phone" validate:"omitempty,max=32"`
}

func validateCard(card *CardInput, now time.Time) error {
	if card == nil {
		return &ValidationError{Field: "card", Reason: "is required for card payments"}
	}
	if err := validateStruct(card); err != nil {
		return err
	}

	year, month, _ := now.Date()
	if card.ExpYear < year || (card.ExpYear == year && card.ExpMonth < int(month)) {
		return &ValidationError{Field: "exp_year", Reason: "card has expired"}
	}
	return nil
}
