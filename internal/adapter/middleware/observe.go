package middleware

import (
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"
)

// HTTPMetrics receives one observation per handled request.
type HTTPMetrics interface {
	ObserveHTTP(method, route string, status int, took time.Duration)
}

// RequestLogger writes one zerolog line per request and feeds m when set.
func RequestLogger(logger zerolog.Logger, m HTTPMetrics) echo.MiddlewareFunc {
	logger = logger.With().Str("module", "http").Logger()
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogRoutePath: true,
		LogStatus:    true,
		LogLatency:   true,
		LogError:     true,
		HandleError:  true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			if m != nil {
				m.ObserveHTTP(v.Method, v.RoutePath, v.Status, v.Latency)
			}
			ev := logger.Info()
			if v.Error != nil || v.Status >= 500 {
				ev = logger.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("ax_request_id", c.Request().Header.Get(HeaderRequestID)).
				Msg("request")
			return nil
		},
	})
}
