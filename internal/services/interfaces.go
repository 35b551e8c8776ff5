package services

import (
	"context"
)

// ReviewPageServiceInterface defines the review page operations used by handlers
type ReviewPageServiceInterface interface {
	LoadPage(ctx context.Context, req *PageRequest) (*ReviewPage, error)
	Submit(ctx context.Context, req *SubmitRequest) (*SubmitOutcome, error)
}

// CaptchaVerifier checks a captcha token; a nil verifier is not called
type CaptchaVerifier interface {
	Verify(ctx context.Context, token string) error
}
