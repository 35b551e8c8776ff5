package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/bestcars/dealer-review/pkg/logger"
	"github.com/bestcars/dealer-review/pkg/metrics"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// redactedFormFields never reach the logs, even on failed requests
var redactedFormFields = map[string]bool{
	"review":               true,
	"form_token":           true,
	"g-recaptcha-response": true,
}

// ObservabilityMiddleware records request metrics and one log line per request
func ObservabilityMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method

		// route is unknown until after routing
		metrics.ActiveRequests.WithLabelValues(method).Inc()
		defer metrics.ActiveRequests.WithLabelValues(method).Dec()

		c.Next()

		// route template keeps dealer ids out of label values
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}

		duration := metrics.MeasureDuration(start)
		status := c.Writer.Status()
		statusStr := strconv.Itoa(status)

		metrics.HTTPRequestDuration.WithLabelValues(method, route, statusStr).Observe(duration)
		metrics.HTTPRequestTotal.WithLabelValues(method, route, statusStr).Inc()

		fields := []zap.Field{
			zap.String("route", route),
			zap.String("client_ip", c.ClientIP()),
			zap.String("user_agent", c.Request.UserAgent()),
			zap.Int("response_size", c.Writer.Size()),
		}

		if id := c.Param("id"); id != "" {
			fields = append(fields, zap.String("dealer_id", id))
		}

		if status >= 400 {
			if query := sanitizedValues(c.Request.URL.Query()); len(query) > 0 {
				fields = append(fields, zap.Any("query_params", query))
			}
			if len(c.Errors) > 0 {
				fields = append(fields, zap.String("error", c.Errors.String()))
			}
		}

		logger.LogHTTPRequest(c.Request.Context(), method, c.Request.URL.Path, status, duration, fields...)
	}
}

func sanitizedValues(values map[string][]string) map[string]string {
	sanitized := make(map[string]string, len(values))
	for k, v := range values {
		if redactedFormFields[strings.ToLower(k)] || len(v) == 0 {
			continue
		}
		sanitized[k] = v[0]
	}
	return sanitized
}
