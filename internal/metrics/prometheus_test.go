package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveVerdict(t *testing.T) {
	normalBefore := testutil.ToFloat64(PacketsClassified.WithLabelValues(VerdictNormal))
	maliciousBefore := testutil.ToFloat64(PacketsClassified.WithLabelValues(VerdictMalicious))

	ObserveVerdict(true, time.Microsecond)
	ObserveVerdict(false, time.Microsecond)
	ObserveVerdict(false, time.Microsecond)

	if got := testutil.ToFloat64(PacketsClassified.WithLabelValues(VerdictMalicious)) - maliciousBefore; got != 1 {
		t.Errorf("expected 1 malicious observation, got %v", got)
	}
	if got := testutil.ToFloat64(PacketsClassified.WithLabelValues(VerdictNormal)) - normalBefore; got != 2 {
		t.Errorf("expected 2 normal observations, got %v", got)
	}
}

func TestSetArtifactReplacesPrevious(t *testing.T) {
	SetArtifact("standard", "logistic_regression", "aaaa")
	SetArtifact("minmax", "random_forest", "bbbb")

	if n := testutil.CollectAndCount(ArtifactInfo); n != 1 {
		t.Fatalf("expected exactly one artifact series, got %d", n)
	}
	if v := testutil.ToFloat64(ArtifactInfo.WithLabelValues("minmax", "random_forest", "bbbb")); v != 1 {
		t.Errorf("expected current artifact gauge = 1, got %v", v)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	PacketsSkipped.Inc()

	srv := httptest.NewServer(Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "ids_packets_skipped_total") {
		t.Error("expected ids_packets_skipped_total in exposition")
	}
}
