package handlers

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/bestcars/dealer-review/internal/middleware"
	"github.com/bestcars/dealer-review/internal/models"
	"github.com/bestcars/dealer-review/internal/reviewform"
	"github.com/bestcars/dealer-review/internal/services"
	"github.com/bestcars/dealer-review/internal/web"
	apperrors "github.com/bestcars/dealer-review/pkg/errors"
	"github.com/bestcars/dealer-review/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	msgInvalidDealer   = "Invalid dealer id"
	msgInvalidRequest  = "Invalid request body"
	msgPageUnavailable = "This review page is not available"
)

// ReviewPageHandler serves the review page and its JSON API
type ReviewPageHandler struct {
	service          services.ReviewPageServiceInterface
	recaptchaSiteKey string
	origins          []string
	now              func() time.Time
}

// NewReviewPageHandler creates a new review page handler. publicOrigins are the
// scheme://host values the site is served under; the first one is used for any
// request whose Host is not among them.
func NewReviewPageHandler(service services.ReviewPageServiceInterface, recaptchaSiteKey string, publicOrigins []string) *ReviewPageHandler {
	origins := make([]string, 0, len(publicOrigins))
	for _, origin := range publicOrigins {
		if origin = strings.TrimRight(strings.TrimSpace(origin), "/"); origin != "" {
			origins = append(origins, origin)
		}
	}
	return &ReviewPageHandler{
		service:          service,
		recaptchaSiteKey: recaptchaSiteKey,
		origins:          origins,
		now:              time.Now,
	}
}

// ShowPage handles GET /postreview/:id
func (h *ReviewPageHandler) ShowPage(c *gin.Context) {
	var uri models.DealerURI
	if err := c.ShouldBindUri(&uri); err != nil {
		respondPageError(c, http.StatusNotFound, msgInvalidDealer, err)
		return
	}

	page, err := h.service.LoadPage(c.Request.Context(), &services.PageRequest{
		DealerID: uri.ID,
		PageURL:  h.pageURL(c),
	})
	if err != nil {
		respondPageError(c, http.StatusBadRequest, msgPageUnavailable, err)
		return
	}

	h.render(c, page)
}

// SubmitPage handles POST /postreview/:id. A posted review redirects to the
// dealer page; anything else renders the form again with the draft kept.
func (h *ReviewPageHandler) SubmitPage(c *gin.Context) {
	var uri models.DealerURI
	if err := c.ShouldBindUri(&uri); err != nil {
		respondPageError(c, http.StatusNotFound, msgInvalidDealer, err)
		return
	}

	pageURL := h.pageURL(c)

	var form models.PostReviewForm
	if err := c.ShouldBind(&form); err != nil {
		attachError(c, err)
		// binding fills the values before validating them
		page, loadErr := h.service.LoadPage(c.Request.Context(), &services.PageRequest{DealerID: uri.ID, PageURL: pageURL})
		if loadErr != nil {
			respondPageError(c, http.StatusBadRequest, msgPageUnavailable, loadErr)
			return
		}
		page.View.Draft = form.ReviewDraft
		page.View.Error = firstValidationMessage(err, msgInvalidRequest)
		h.render(c, page)
		return
	}

	outcome, err := h.service.Submit(c.Request.Context(), &services.SubmitRequest{
		DealerID:       uri.ID,
		PageURL:        pageURL,
		Draft:          form.ReviewDraft,
		Identity:       middleware.GetIdentity(c),
		FormToken:      form.FormToken,
		RecaptchaToken: form.RecaptchaToken,
	})
	if err == nil {
		c.Redirect(http.StatusSeeOther, h.origin(c)+outcome.Redirect.Path)
		return
	}

	if outcome == nil || outcome.Page == nil {
		respondPageError(c, http.StatusBadRequest, msgPageUnavailable, err)
		return
	}
	attachError(c, err)
	h.render(c, outcome.Page)
}

// GetState handles GET /api/v1/postreview/:id
func (h *ReviewPageHandler) GetState(c *gin.Context) {
	var uri models.DealerURI
	if err := c.ShouldBindUri(&uri); err != nil {
		respondError(c, http.StatusBadRequest, msgInvalidDealer, err)
		return
	}

	page, err := h.service.LoadPage(c.Request.Context(), &services.PageRequest{
		DealerID: uri.ID,
		PageURL:  h.apiPageURL(c, uri.ID),
	})
	if err != nil {
		respondError(c, http.StatusBadRequest, msgPageUnavailable, err)
		return
	}

	c.JSON(http.StatusOK, pageState(page))
}

// PostReview handles POST /api/v1/postreview/:id
func (h *ReviewPageHandler) PostReview(c *gin.Context) {
	var uri models.DealerURI
	if err := c.ShouldBindUri(&uri); err != nil {
		respondError(c, http.StatusBadRequest, msgInvalidDealer, err)
		return
	}

	var req models.PostReviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondErrorWithDetails(c, http.StatusBadRequest, msgInvalidRequest, ParseValidationErrors(err), err)
		return
	}

	outcome, err := h.service.Submit(c.Request.Context(), &services.SubmitRequest{
		DealerID:       uri.ID,
		PageURL:        h.apiPageURL(c, uri.ID),
		Draft:          req.ReviewDraft,
		Identity:       middleware.GetIdentity(c),
		FormToken:      req.FormToken,
		RecaptchaToken: req.RecaptchaToken,
	})
	if err == nil {
		c.JSON(http.StatusOK, models.PostReviewResponse{Redirect: outcome.Redirect.Path, Status: "ok"})
		return
	}

	message := msgPageUnavailable
	if outcome != nil && outcome.Page != nil && outcome.Page.View.Error != "" {
		message = outcome.Page.View.Error
	}

	switch {
	case errors.Is(err, reviewform.ErrSubmitInProgress):
		respondError(c, http.StatusConflict, services.MsgAlreadyPosting, err)
	case errors.Is(err, apperrors.ErrInvalidInput):
		respondError(c, http.StatusBadRequest, message, err)
	case errors.Is(err, apperrors.ErrUnavailable):
		respondError(c, http.StatusServiceUnavailable, message, err)
	default:
		respondError(c, http.StatusBadGateway, message, err)
	}
}

func (h *ReviewPageHandler) render(c *gin.Context, page *services.ReviewPage) {
	c.HTML(http.StatusOK, web.PostReviewTemplate, web.NewPageData(page.View, page.FormToken, h.recaptchaSiteKey, h.now()))
}

func pageState(page *services.ReviewPage) models.ReviewPageState {
	carModels := page.View.CarModels
	if carModels == nil {
		carModels = []models.CarModel{}
	}
	return models.ReviewPageState{
		DealerID:  page.View.DealerID,
		Heading:   page.View.Heading,
		Dealer:    page.View.Dealer,
		CarModels: carModels,
		Status:    page.View.Status.String(),
		Error:     page.View.Error,
		FormToken: page.FormToken,
	}
}

// origin is the public origin for the request. A Host that is not a configured
// origin never reaches upstream URLs or redirects.
func (h *ReviewPageHandler) origin(c *gin.Context) string {
	candidate := requestOrigin(c)
	for _, origin := range h.origins {
		if origin == candidate {
			return origin
		}
	}
	if len(h.origins) == 0 {
		return ""
	}
	logger.Warn("Request origin is not a public origin",
		zap.String("origin", candidate),
		zap.String("using", h.origins[0]))
	return h.origins[0]
}

// requestOrigin is scheme://host of the request as the browser sees it
func requestOrigin(c *gin.Context) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}
	return scheme + "://" + c.Request.Host
}

func (h *ReviewPageHandler) pageURL(c *gin.Context) string {
	return h.origin(c) + c.Request.URL.RequestURI()
}

// apiPageURL is the page URL the JSON API acts on behalf of
func (h *ReviewPageHandler) apiPageURL(c *gin.Context, dealerID int) string {
	return h.origin(c) + reviewform.PagePath(dealerID)
}
