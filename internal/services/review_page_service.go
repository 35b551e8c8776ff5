package services

import (
	"context"
	"errors"

	"github.com/bestcars/dealer-review/internal/guard"
	"github.com/bestcars/dealer-review/internal/models"
	"github.com/bestcars/dealer-review/internal/reviewform"
	"github.com/bestcars/dealer-review/pkg/httpclient"
	"github.com/bestcars/dealer-review/pkg/logger"
	"github.com/bestcars/dealer-review/pkg/metrics"
	"github.com/bestcars/dealer-review/pkg/trigger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	MsgCaptchaFailed  = "Captcha verification failed"
	MsgAlreadyPosting = "This review has already been sent. Check the dealer page before posting again."

	fieldCaptcha reviewform.Field = "recaptcha"
)

// PageRequest asks for a freshly loaded review page
type PageRequest struct {
	DealerID int
	PageURL  string
}

// ReviewPage is a loaded page ready to render
type ReviewPage struct {
	View      reviewform.View
	FormToken string
}

// SubmitRequest is one posted review form
type SubmitRequest struct {
	DealerID       int
	PageURL        string
	Draft          models.ReviewDraft
	Identity       models.Identity
	FormToken      string
	RecaptchaToken string
}

// SubmitOutcome holds either the redirect of a posted review or the page to
// render again with the draft and the error message.
type SubmitOutcome struct {
	Redirect *reviewform.Redirect
	Page     *ReviewPage
}

// ReviewPageService runs review forms against the collaborator services
type ReviewPageService struct {
	resolve    APIResolver
	guard      guard.Guard
	captcha    CaptchaVerifier
	httpClient httpclient.Client
	triggerURL string
}

// ReviewPageServiceOptions holds the optional collaborators of the service
type ReviewPageServiceOptions struct {
	Captcha    CaptchaVerifier // nil disables captcha checks
	HTTPClient httpclient.Client
	TriggerURL string
}

// NewReviewPageService creates a new review page service
func NewReviewPageService(resolve APIResolver, submissionGuard guard.Guard, opts ReviewPageServiceOptions) *ReviewPageService {
	return &ReviewPageService{
		resolve:    resolve,
		guard:      submissionGuard,
		captcha:    opts.Captcha,
		httpClient: opts.HTTPClient,
		triggerURL: opts.TriggerURL,
	}
}

// LoadPage loads dealer and catalog for a fresh form and issues its form token.
// Loader failures are part of the page, not errors; only an unresolvable page
// URL is returned as an error.
func (s *ReviewPageService) LoadPage(ctx context.Context, req *PageRequest) (*ReviewPage, error) {
	api, err := s.resolve(ctx, req.PageURL)
	if err != nil {
		logger.Warn("Cannot resolve upstream for review page",
			zap.Int("dealer_id", req.DealerID),
			zap.String("page_url", req.PageURL),
			zap.Error(err))
		return nil, err
	}

	form := reviewform.New(api, req.DealerID)
	form.Load(ctx)

	return &ReviewPage{View: form.View(), FormToken: uuid.NewString()}, nil
}

// Submit posts one review. The draft is validated before the captcha is
// checked. On success the outcome carries the redirect and the optional
// review-posted trigger is fired. On failure the returned error says why and the
// outcome carries the page to show again.
func (s *ReviewPageService) Submit(ctx context.Context, req *SubmitRequest) (*SubmitOutcome, error) {
	api, err := s.resolve(ctx, req.PageURL)
	if err != nil {
		return nil, err
	}

	form := reviewform.New(api, req.DealerID)
	form.SetDraft(req.Draft)

	if err := reviewform.Validate(req.Draft); err != nil {
		var formErr *reviewform.FormError
		if errors.As(err, &formErr) {
			metrics.ReviewValidationFailures.WithLabelValues(string(formErr.Field)).Inc()
		}
		return s.failedOutcome(ctx, form, req, messageOf(err)), err
	}

	if s.captcha != nil {
		if err := s.captcha.Verify(ctx, req.RecaptchaToken); err != nil {
			metrics.ReviewSubmissions.WithLabelValues("captcha_failed").Inc()
			logger.Warn("ReCAPTCHA verification failed for review",
				zap.Int("dealer_id", req.DealerID),
				zap.Error(err))
			formErr := &reviewform.FormError{
				Kind:    reviewform.KindValidation,
				Field:   fieldCaptcha,
				Message: MsgCaptchaFailed,
				Err:     err,
			}
			return s.failedOutcome(ctx, form, req, formErr.Message), formErr
		}
	}

	release, acquired := s.acquire(ctx, req)
	if !acquired {
		metrics.ReviewSubmissions.WithLabelValues("duplicate").Inc()
		logger.Info("Duplicate review submission ignored",
			zap.Int("dealer_id", req.DealerID),
			zap.String("form_token", req.FormToken))
		return s.failedOutcome(ctx, form, req, MsgAlreadyPosting), reviewform.ErrSubmitInProgress
	}

	// A posted token stays held until it expires, so a resent form is a duplicate
	redirect, err := form.Submit(ctx, req.Identity)
	if err != nil {
		release()
		return s.failedOutcome(ctx, form, req, messageOf(err)), err
	}

	if s.httpClient != nil {
		trigger.CallAsync(ctx, s.triggerURL, req.DealerID, s.httpClient)
	}

	return &SubmitOutcome{Redirect: redirect}, nil
}

// acquire marks the form token as in flight. Requests without a token are not
// guarded. A failing guard store lets the submission through.
func (s *ReviewPageService) acquire(ctx context.Context, req *SubmitRequest) (func(), bool) {
	noop := func() {}
	if s.guard == nil || req.FormToken == "" {
		return noop, true
	}

	ok, err := s.guard.Acquire(ctx, req.FormToken)
	if err != nil {
		logger.LogError(err, "Submission guard unavailable, posting unguarded",
			zap.Int("dealer_id", req.DealerID))
		return noop, true
	}
	if !ok {
		return noop, false
	}

	return func() {
		if err := s.guard.Release(context.WithoutCancel(ctx), req.FormToken); err != nil {
			logger.Warn("Failed to release submission token", zap.Error(err))
		}
	}, true
}

func messageOf(err error) string {
	var formErr *reviewform.FormError
	if errors.As(err, &formErr) {
		return formErr.Message
	}
	return ""
}

// failedOutcome reloads dealer and catalog so the draft can be shown again.
// The submission message takes precedence over loader messages.
func (s *ReviewPageService) failedOutcome(ctx context.Context, form *reviewform.Form, req *SubmitRequest, message string) *SubmitOutcome {
	form.Load(ctx)
	view := form.View()
	if message != "" {
		view.Error = message
	}

	token := req.FormToken
	if token == "" {
		token = uuid.NewString()
	}
	return &SubmitOutcome{Page: &ReviewPage{View: view, FormToken: token}}
}
