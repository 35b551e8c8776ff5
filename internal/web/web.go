// Package web renders the review page.
package web

import (
	"embed"
	"html/template"
	"strconv"
	"time"

	"github.com/bestcars/dealer-review/internal/reviewform"
)

// PostReviewTemplate is the name the review page is rendered under
const PostReviewTemplate = "post_review.html"

// earliestPurchaseDate is the lower bound of the purchase date picker
const earliestPurchaseDate = "2015-01-01"

//go:embed templates/*.html
var templateFS embed.FS

// PageData is everything the review page template reads
type PageData struct {
	View             reviewform.View
	Action           string
	FormToken        string
	DateMin          string
	DateMax          string
	MinYear          int
	MaxYear          int
	RecaptchaSiteKey string
}

// NewPageData fills the fixed page bounds around view. The latest purchase date
// is the end of the current year.
func NewPageData(view reviewform.View, formToken, recaptchaSiteKey string, now time.Time) PageData {
	return PageData{
		View:             view,
		Action:           reviewform.PagePath(view.DealerID),
		FormToken:        formToken,
		DateMin:          earliestPurchaseDate,
		DateMax:          strconv.Itoa(now.Year()) + "-12-31",
		MinYear:          reviewform.MinCarYear,
		MaxYear:          reviewform.MaxCarYear,
		RecaptchaSiteKey: recaptchaSiteKey,
	}
}

// Templates parses the embedded page templates
func Templates() (*template.Template, error) {
	return template.ParseFS(templateFS, "templates/*.html")
}
