package telemetry

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golos/golosmind/pkg/config"
)

func TestDisabled(t *testing.T) {
	shutdown, err := Init(&config.TelemetryConfig{Enabled: false})
	if err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	shutdown()

	ctx, span := StartSpan(context.Background(), "test")
	defer span.End()
	if ctx == nil {
		t.Fatal("StartSpan returned nil context")
	}

	RecordRequest(ctx, "database_api.get_state", 10*time.Millisecond, nil)
	RecordRequest(ctx, "database_api.get_state", time.Millisecond, errors.New("failed"))
	RecordBlock(ctx)
	RecordOperation(ctx, "worker_proposal")
}

func TestMetricsHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Errorf("Expected 200 from metrics handler, got %d", rec.Code)
	}
}
