package services_test

import (
	"context"

	"github.com/bestcars/dealer-review/internal/models"
	"github.com/bestcars/dealer-review/pkg/dealerapi"
	"github.com/bestcars/dealer-review/pkg/logger"
	"github.com/stretchr/testify/mock"
)

func init() {
	if err := logger.Initialize(logger.Config{
		Level:       "debug",
		Environment: "development",
		ServiceName: "dealer-review-test",
	}); err != nil {
		panic(err)
	}
}

// MockAPI is a mock implementation of dealerapi.API
type MockAPI struct {
	mock.Mock
}

func (m *MockAPI) GetDealer(ctx context.Context, dealerID int) (*dealerapi.Result[[]models.Dealer], error) {
	args := m.Called(ctx, dealerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dealerapi.Result[[]models.Dealer]), args.Error(1)
}

func (m *MockAPI) GetCarModels(ctx context.Context) (*dealerapi.Result[[]models.CarModel], error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dealerapi.Result[[]models.CarModel]), args.Error(1)
}

func (m *MockAPI) AddReview(ctx context.Context, submission *models.ReviewSubmission) (*dealerapi.Result[struct{}], error) {
	args := m.Called(ctx, submission)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dealerapi.Result[struct{}]), args.Error(1)
}

// MockCaptcha is a mock implementation of services.CaptchaVerifier
type MockCaptcha struct {
	mock.Mock
}

func (m *MockCaptcha) Verify(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}

// MockGuard is a mock implementation of guard.Guard
type MockGuard struct {
	mock.Mock
}

func (m *MockGuard) Acquire(ctx context.Context, token string) (bool, error) {
	args := m.Called(ctx, token)
	return args.Bool(0), args.Error(1)
}

func (m *MockGuard) Release(ctx context.Context, token string) error {
	args := m.Called(ctx, token)
	return args.Error(0)
}
