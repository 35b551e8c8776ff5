package reviewform

import (
	"strconv"
	"strings"

	"github.com/bestcars/dealer-review/internal/models"
)

// Accepted car model years, inclusive.
const (
	MinCarYear = 2015
	MaxCarYear = 2023
)

// Field names a draft field in validation errors and metrics.
type Field string

const (
	FieldReview       Field = "review"
	FieldPurchaseDate Field = "purchase_date"
	FieldMakeModel    Field = "car"
	FieldYear         Field = "car_year"
)

const (
	MsgReviewRequired       = "Review text is required"
	MsgPurchaseDateRequired = "Purchase date is required"
	MsgMakeModelRequired    = "Car make and model are required"
	MsgInvalidYear          = "Please enter a valid car year (2015-2023)"
)

// Validate checks the draft in a fixed order and reports only the first failure.
func Validate(draft models.ReviewDraft) error {
	if strings.TrimSpace(draft.ReviewText) == "" {
		return validationError(FieldReview, MsgReviewRequired)
	}
	if draft.PurchaseDate == "" {
		return validationError(FieldPurchaseDate, MsgPurchaseDateRequired)
	}
	if draft.MakeModel == "" {
		return validationError(FieldMakeModel, MsgMakeModelRequired)
	}
	if _, ok := ParseYear(draft.Year); !ok {
		return validationError(FieldYear, MsgInvalidYear)
	}
	return nil
}

// ParseYear parses a car year written as plain digits and reports whether it is
// within the accepted range. Signs are rejected.
func ParseYear(value string) (int, bool) {
	value = strings.TrimSpace(value)
	if value == "" || strings.IndexFunc(value, notDigit) >= 0 {
		return 0, false
	}
	year, err := strconv.Atoi(value)
	if err != nil {
		return 0, false
	}
	return year, year >= MinCarYear && year <= MaxCarYear
}

func notDigit(r rune) bool {
	return r < '0' || r > '9'
}

func validationError(field Field, message string) *FormError {
	return &FormError{Kind: KindValidation, Field: field, Message: message}
}
