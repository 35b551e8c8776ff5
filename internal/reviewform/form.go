// Package reviewform holds the dealership review page: its loaders, its draft
// state, validation, and submission.
package reviewform

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bestcars/dealer-review/internal/models"
	"github.com/bestcars/dealer-review/pkg/dealerapi"
	"github.com/bestcars/dealer-review/pkg/logger"
	"github.com/bestcars/dealer-review/pkg/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Status drives rendering only.
type Status int

const (
	StatusIdle Status = iota
	StatusLoading
	StatusSubmitting
)

func (s Status) String() string {
	switch s {
	case StatusLoading:
		return "loading"
	case StatusSubmitting:
		return "submitting"
	default:
		return "idle"
	}
}

// Redirect is the effect of a successful submission; the host decides how to navigate.
type Redirect struct {
	Path string
}

// View is a consistent copy of the form state for rendering.
type View struct {
	DealerID  int
	Heading   string
	Dealer    models.Dealer
	CarModels []models.CarModel
	Draft     models.ReviewDraft
	Status    Status
	Error     string
}

// Loading reports whether the dealer is still being fetched and nothing can be shown yet.
func (v View) Loading() bool {
	return v.Status == StatusLoading && v.Dealer.FullName == ""
}

// Submitting reports whether the submit control must be disabled.
func (v View) Submitting() bool {
	return v.Status == StatusSubmitting
}

// Form is the state of one review page for one dealer.
type Form struct {
	api      dealerapi.API
	dealerID int

	mu        sync.Mutex
	dealer    models.Dealer
	carModels []models.CarModel
	draft     models.ReviewDraft
	status    Status
	errMsg    string
}

// New creates an empty form for dealerID backed by api.
func New(api dealerapi.API, dealerID int) *Form {
	return &Form{
		api:      api,
		dealerID: dealerID,
		status:   StatusIdle,
	}
}

// DealerID returns the dealer the form reviews
func (f *Form) DealerID() int {
	return f.dealerID
}

// SetDraft replaces the draft with user input. It never validates.
func (f *Form) SetDraft(draft models.ReviewDraft) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.draft = draft
}

// View returns a snapshot of the current state
func (f *Form) View() View {
	f.mu.Lock()
	defer f.mu.Unlock()

	carModels := make([]models.CarModel, len(f.carModels))
	copy(carModels, f.carModels)

	return View{
		DealerID:  f.dealerID,
		Heading:   f.dealer.DisplayName(),
		Dealer:    f.dealer,
		CarModels: carModels,
		Draft:     f.draft,
		Status:    f.status,
		Error:     f.errMsg,
	}
}

// Load runs both loaders concurrently and returns once both have settled.
// Loader failures only set the error message; they are never returned. When both
// fail, the dealer message is the one shown.
func (f *Form) Load(ctx context.Context) {
	var dealerErr, carsErr *FormError

	var g errgroup.Group
	g.Go(func() error {
		dealerErr = f.loadDealer(ctx)
		return nil
	})
	g.Go(func() error {
		carsErr = f.loadCarModels(ctx)
		return nil
	})
	_ = g.Wait()

	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case dealerErr != nil:
		f.errMsg = dealerErr.Message
	case carsErr != nil:
		f.errMsg = carsErr.Message
	}
}

func (f *Form) loadDealer(ctx context.Context) *FormError {
	f.mu.Lock()
	f.status = StatusLoading
	f.mu.Unlock()

	result, err := f.api.GetDealer(ctx, f.dealerID)

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.status == StatusLoading {
		f.status = StatusIdle
	}

	if err != nil {
		metrics.ReviewFormLoads.WithLabelValues("dealer", "error").Inc()
		logger.Error("Error fetching dealer", zap.Int("dealer_id", f.dealerID), zap.Error(err))
		return &FormError{Kind: KindFetch, Message: MsgDealerLoadFailed, Err: err}
	}

	if !result.OK() || len(result.Payload) == 0 {
		metrics.ReviewFormLoads.WithLabelValues("dealer", "empty").Inc()
		logger.Warn("Dealer not found",
			zap.Int("dealer_id", f.dealerID),
			zap.Int("status", result.Status))
		return nil
	}

	metrics.ReviewFormLoads.WithLabelValues("dealer", "success").Inc()
	f.dealer = result.Payload[0]
	return nil
}

func (f *Form) loadCarModels(ctx context.Context) *FormError {
	result, err := f.api.GetCarModels(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()

	if err != nil {
		metrics.ReviewFormLoads.WithLabelValues("car_models", "error").Inc()
		logger.Error("Error fetching cars", zap.Error(err))
		return &FormError{Kind: KindFetch, Message: MsgCarsLoadFailed, Err: err}
	}

	metrics.ReviewFormLoads.WithLabelValues("car_models", "success").Inc()
	if result.Payload != nil {
		f.carModels = result.Payload
	}
	return nil
}

// Submit validates the draft and posts it. It moves the form
// idle -> submitting -> idle and returns a Redirect only on success; on any
// failure the draft is kept and the returned *FormError carries the message now
// shown by the form. While a submission is in flight it returns
// ErrSubmitInProgress without contacting the review endpoint.
//
// The POST is not cancelled when ctx is: it resolves or fails on the transport's
// own terms.
func (f *Form) Submit(ctx context.Context, identity models.Identity) (*Redirect, error) {
	f.mu.Lock()
	if f.status == StatusSubmitting {
		f.mu.Unlock()
		return nil, ErrSubmitInProgress
	}
	if err := Validate(f.draft); err != nil {
		var formErr *FormError
		if errors.As(err, &formErr) {
			f.errMsg = formErr.Message
			metrics.ReviewValidationFailures.WithLabelValues(string(formErr.Field)).Inc()
		}
		f.mu.Unlock()
		return nil, err
	}
	f.errMsg = ""
	f.status = StatusSubmitting
	submission := BuildSubmission(f.dealerID, f.draft, identity)
	f.mu.Unlock()

	start := time.Now()
	result, err := f.api.AddReview(context.WithoutCancel(ctx), submission)
	metrics.ReviewSubmitDuration.Observe(metrics.MeasureDuration(start))

	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = StatusIdle

	if err != nil {
		formErr := classifySubmitError(err)
		f.errMsg = formErr.Message
		metrics.ReviewSubmissions.WithLabelValues(formErr.Kind.String()).Inc()
		logger.Error("Error posting review",
			zap.Int("dealer_id", f.dealerID),
			zap.String("kind", formErr.Kind.String()),
			zap.Error(err))
		return nil, formErr
	}

	if !result.OK() {
		message := result.Message
		if message == "" {
			message = MsgSubmitFailed
		}
		f.errMsg = message
		metrics.ReviewSubmissions.WithLabelValues("rejected").Inc()
		logger.Warn("Review rejected",
			zap.Int("dealer_id", f.dealerID),
			zap.Int("status", result.Status),
			zap.String("message", result.Message))
		return nil, &FormError{Kind: KindSubmission, Message: message}
	}

	metrics.ReviewSubmissions.WithLabelValues("success").Inc()
	logger.Info("Review posted",
		zap.Int("dealer_id", f.dealerID),
		zap.String("car_make", submission.CarMake),
		zap.Int("car_year", submission.CarYear))

	return &Redirect{Path: DealerPath(f.dealerID)}, nil
}

func classifySubmitError(err error) *FormError {
	if errors.Is(err, dealerapi.ErrMalformedResponse) {
		return &FormError{Kind: KindSubmission, Message: MsgSubmitFailed, Err: err}
	}
	if errors.Is(err, dealerapi.ErrTransport) {
		return &FormError{Kind: KindNetwork, Message: MsgNetworkFailed, Err: err}
	}
	return &FormError{Kind: KindSubmission, Message: MsgSubmitFailed, Err: err}
}
