package trigger

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/bestcars/dealer-review/pkg/httpclient"
	"github.com/bestcars/dealer-review/pkg/logger"
	"go.uber.org/zap"
)

// CallAsync notifies triggerURL that a review was posted for dealerID. The call
// runs in the background; failures are logged and never reach the caller.
// The returned channel is closed once the call has finished.
func CallAsync(ctx context.Context, triggerURL string, dealerID int, httpClient httpclient.Client) <-chan struct{} {
	done := make(chan struct{})
	if triggerURL == "" {
		close(done)
		return done
	}

	// the request outlives the handler that posted the review
	ctx = context.WithoutCancel(ctx)

	go func() {
		defer close(done)

		targetURL, err := withDealer(triggerURL, dealerID)
		fields := []zap.Field{zap.String("url", targetURL), zap.Int("dealer_id", dealerID)}
		if err != nil {
			logger.Error("Invalid trigger URL", append(fields, zap.Error(err))...)
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, targetURL, http.NoBody)
		if err != nil {
			logger.Error("Failed to build trigger request", append(fields, zap.Error(err))...)
			return
		}

		resp, err := httpClient.Do(req)
		if err != nil {
			logger.Error("Failed to call trigger URL", append(fields, zap.Error(err))...)
			return
		}
		defer resp.Body.Close()

		fields = append(fields, zap.Int("status_code", resp.StatusCode))
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			logger.Info("Review trigger called", fields...)
		} else {
			logger.Warn("Review trigger returned non-success status", fields...)
		}
	}()

	return done
}

func withDealer(triggerURL string, dealerID int) (string, error) {
	u, err := url.Parse(triggerURL)
	if err != nil {
		return triggerURL, err
	}
	q := u.Query()
	q.Set("dealer_id", strconv.Itoa(dealerID))
	u.RawQuery = q.Encode()
	return u.String(), nil
}
