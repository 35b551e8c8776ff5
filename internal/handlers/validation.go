package handlers

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

// ValidationError represents a single validation error
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// fieldLabels maps bound struct fields to the labels shown on the page
var fieldLabels = map[string]string{
	"FormToken":      "Form token",
	"RecaptchaToken": "Captcha",
	"ID":             "Dealer id",
}

// ParseValidationErrors converts validator errors to user-friendly format
func ParseValidationErrors(err error) []ValidationError {
	var result []ValidationError

	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		for _, fieldError := range validationErrors {
			result = append(result, ValidationError{
				Field:   fieldError.Field(),
				Message: getErrorMessage(fieldError),
			})
		}
	}

	return result
}

// firstValidationMessage returns the message for the first failing field, or fallback
func firstValidationMessage(err error, fallback string) string {
	if errs := ParseValidationErrors(err); len(errs) > 0 {
		return errs[0].Message
	}
	return fallback
}

func getErrorMessage(fe validator.FieldError) string {
	label, ok := fieldLabels[fe.Field()]
	if !ok {
		label = fe.Field()
	}

	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "min":
		return label + " must be at least " + fe.Param()
	case "uuid":
		return label + " is invalid, please reload the page"
	default:
		return label + " is invalid"
	}
}
