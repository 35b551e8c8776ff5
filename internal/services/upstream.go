package services

import (
	"context"

	"github.com/bestcars/dealer-review/internal/cache"
	"github.com/bestcars/dealer-review/internal/reviewform"
	"github.com/bestcars/dealer-review/pkg/dealerapi"
	apperrors "github.com/bestcars/dealer-review/pkg/errors"
)

// APIResolver returns the collaborator API serving the page at pageURL
type APIResolver func(ctx context.Context, pageURL string) (dealerapi.API, error)

// NewUpstreamResolver resolves every page to client. With an empty fixedBase the
// base URL is derived from the page URL; otherwise fixedBase is used as is.
// Car catalogs go through catalogCache when it is enabled.
func NewUpstreamResolver(client *dealerapi.Client, fixedBase string, catalogCache *cache.CatalogCache) APIResolver {
	fixed := client.WithBaseURL(fixedBase)

	return func(_ context.Context, pageURL string) (dealerapi.API, error) {
		if fixedBase != "" {
			return catalogCache.Wrap(fixed, fixed.BaseURL()), nil
		}

		base, err := reviewform.BaseURLFromPage(pageURL)
		if err != nil {
			return nil, apperrors.InvalidInputError("page_url", err.Error())
		}
		api := client.WithBaseURL(base)
		return catalogCache.Wrap(api, api.BaseURL()), nil
	}
}
