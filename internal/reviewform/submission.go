package reviewform

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/bestcars/dealer-review/internal/models"
)

const (
	// AnonymousReviewer is used when the session carries no usable name
	AnonymousReviewer = "Anonymous"

	nullSessionValue = "null"

	pageSegment     = "postreview"
	upstreamSegment = "djangoapp/"
)

// ReviewerName derives the display name stored with the review:
// "first last" when both are known, then the username, then "Anonymous".
func ReviewerName(identity models.Identity) string {
	first, last := present(identity.FirstName), present(identity.LastName)
	if first != "" && last != "" {
		return first + " " + last
	}
	if username := present(identity.Username); username != "" {
		return username
	}
	return AnonymousReviewer
}

func present(value string) string {
	if value == nullSessionValue {
		return ""
	}
	return value
}

// SplitMakeModel splits a selection key on its first space. The make is assumed
// to be a single word, so "Alfa Romeo Giulia" yields make "Alfa".
func SplitMakeModel(key string) (carMake, carModel string) {
	carMake, carModel, _ = strings.Cut(key, " ")
	return carMake, carModel
}

// BuildSubmission derives the POST body from a validated draft.
func BuildSubmission(dealerID int, draft models.ReviewDraft, identity models.Identity) *models.ReviewSubmission {
	carMake, carModel := SplitMakeModel(draft.MakeModel)
	year, _ := ParseYear(draft.Year)

	return &models.ReviewSubmission{
		Name:         ReviewerName(identity),
		DealershipID: dealerID,
		Review:       strings.TrimSpace(draft.ReviewText),
		Purchase:     true,
		PurchaseDate: draft.PurchaseDate,
		CarMake:      carMake,
		CarModel:     carModel,
		CarYear:      year,
	}
}

// DealerPath is where the browser goes after a successful submission
func DealerPath(dealerID int) string {
	return "/dealer/" + strconv.Itoa(dealerID)
}

// PagePath is the review page for a dealer
func PagePath(dealerID int) string {
	return "/" + pageSegment + "/" + strconv.Itoa(dealerID)
}

// BaseURLFromPage derives the collaborator base URL from the review page URL by
// cutting it at the "postreview" segment, e.g.
// "https://cars.example/postreview/15" -> "https://cars.example/djangoapp/".
func BaseURLFromPage(pageURL string) (string, error) {
	u, err := url.Parse(pageURL)
	if err != nil {
		return "", fmt.Errorf("invalid page URL %q: %w", pageURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("page URL %q is not absolute", pageURL)
	}
	idx := strings.Index(pageURL, pageSegment)
	if idx < 0 {
		return "", fmt.Errorf("page URL %q has no %s segment", pageURL, pageSegment)
	}
	return pageURL[:idx] + upstreamSegment, nil
}
