package reviewform

import (
	"strconv"
	"testing"

	"github.com/bestcars/dealer-review/internal/models"
	apperrors "github.com/bestcars/dealer-review/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validDraft() models.ReviewDraft {
	return models.ReviewDraft{
		ReviewText:   "Friendly staff and a fair price",
		PurchaseDate: "2023-04-12",
		MakeModel:    "Toyota Corolla Hybrid",
		Year:         "2021",
	}
}

func assertValidation(t *testing.T, err error, field Field, message string) {
	t.Helper()
	require.Error(t, err)
	var formErr *FormError
	require.ErrorAs(t, err, &formErr)
	assert.Equal(t, KindValidation, formErr.Kind)
	assert.Equal(t, field, formErr.Field)
	assert.Equal(t, message, formErr.Message)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestValidate_ValidDraft(t *testing.T) {
	assert.NoError(t, Validate(validDraft()))
}

func TestValidate_ReviewText(t *testing.T) {
	for _, text := range []string{"", " ", "\t\n  "} {
		draft := validDraft()
		draft.ReviewText = text
		assertValidation(t, Validate(draft), FieldReview, MsgReviewRequired)
	}
}

func TestValidate_ReviewTextRejectedRegardlessOfOtherFields(t *testing.T) {
	err := Validate(models.ReviewDraft{ReviewText: "   "})
	assertValidation(t, err, FieldReview, MsgReviewRequired)
}

func TestValidate_FirstFailureWins(t *testing.T) {
	tests := []struct {
		name    string
		draft   models.ReviewDraft
		field   Field
		message string
	}{
		{
			name:    "missing date before missing car",
			draft:   models.ReviewDraft{ReviewText: "ok"},
			field:   FieldPurchaseDate,
			message: MsgPurchaseDateRequired,
		},
		{
			name:    "missing car before missing year",
			draft:   models.ReviewDraft{ReviewText: "ok", PurchaseDate: "2022-01-01"},
			field:   FieldMakeModel,
			message: MsgMakeModelRequired,
		},
		{
			name:    "missing year",
			draft:   models.ReviewDraft{ReviewText: "ok", PurchaseDate: "2022-01-01", MakeModel: "Audi A4"},
			field:   FieldYear,
			message: MsgInvalidYear,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assertValidation(t, Validate(tt.draft), tt.field, tt.message)
		})
	}
}

func TestValidate_YearBounds(t *testing.T) {
	for year := 2010; year <= 2028; year++ {
		draft := validDraft()
		draft.Year = strconv.Itoa(year)
		err := Validate(draft)
		if year >= MinCarYear && year <= MaxCarYear {
			assert.NoError(t, err, "year %d should be accepted", year)
		} else {
			assertValidation(t, err, FieldYear, MsgInvalidYear)
		}
	}
}

func TestValidate_NonNumericYear(t *testing.T) {
	for _, year := range []string{"abc", "2020.5", "20 21", "-2020", "+2020", "２０２０"} {
		draft := validDraft()
		draft.Year = year
		assertValidation(t, Validate(draft), FieldYear, MsgInvalidYear)
	}
}

func TestParseYear(t *testing.T) {
	year, ok := ParseYear(" 2015 ")
	assert.True(t, ok)
	assert.Equal(t, 2015, year)

	year, ok = ParseYear("2024")
	assert.False(t, ok)
	assert.Equal(t, 2024, year)

	_, ok = ParseYear("")
	assert.False(t, ok)

	_, ok = ParseYear("+2020")
	assert.False(t, ok)
}
