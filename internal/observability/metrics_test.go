package observability

import (
	"errors"
	"testing"
	"time"
)

func TestRegisterMetricsAndRecordersAreSafe(t *testing.T) {
	RegisterMetrics()
	RegisterMetrics()

	RecordHTTPRequest("charta.test", "GET", "/health", 200, 12*time.Millisecond)
	RecordContextOpened("wiki", "local")
	RecordContextClosed("wiki", "local", "saved", 24*time.Millisecond)
	RecordContextClosed("wiki", "global", "discarded", 3*time.Millisecond)
	RecordEngineBuild("wiki", nil)
	RecordEngineBuild("portal", errors.New("backend unavailable"))
}
