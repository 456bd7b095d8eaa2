package middleware

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

type httpObservation struct {
	method, route string
	status        int
}

type recordingMetrics struct{ seen []httpObservation }

func (r *recordingMetrics) ObserveHTTP(method, route string, status int, _ time.Duration) {
	r.seen = append(r.seen, httpObservation{method, route, status})
}

func TestRequestLogger_LogsAndObserves(t *testing.T) {
	var buf bytes.Buffer
	m := &recordingMetrics{}

	e := echo.New()
	e.Use(RequestLogger(zerolog.New(&buf), m))
	e.GET("/loans/:loan_id", func(c echo.Context) error {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "loan not found"})
	})

	req := httptest.NewRequest(http.MethodGet, "/loans/7", nil)
	req.Header.Set(HeaderRequestID, "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d", rec.Code)
	}
	if len(m.seen) != 1 || m.seen[0] != (httpObservation{http.MethodGet, "/loans/:loan_id", http.StatusNotFound}) {
		t.Fatalf("observations = %+v", m.seen)
	}

	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line not json: %v (%q)", err, buf.String())
	}
	if line["module"] != "http" || line["uri"] != "/loans/7" || line["status"] != float64(404) {
		t.Fatalf("unexpected log line: %v", line)
	}
	if line["ax_request_id"] != "aaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa" || line["level"] != "info" {
		t.Fatalf("unexpected log line: %v", line)
	}
}

func TestRequestLogger_ErrorLevelOnHandlerError(t *testing.T) {
	var buf bytes.Buffer
	e := echo.New()
	e.Use(RequestLogger(zerolog.New(&buf), nil))
	e.GET("/boom", func(c echo.Context) error {
		return echo.NewHTTPError(http.StatusInternalServerError, "boom")
	})

	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/boom", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d", rec.Code)
	}
	var line map[string]any
	if err := json.Unmarshal(buf.Bytes(), &line); err != nil {
		t.Fatalf("log line not json: %v", err)
	}
	if line["level"] != "error" || line["status"] != float64(500) {
		t.Fatalf("unexpected log line: %v", line)
	}
}
