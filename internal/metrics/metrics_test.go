package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveLookup(t *testing.T) {
	before := testutil.ToFloat64(lookupsTotal.WithLabelValues(SignalRegistry, "found"))
	ObserveLookup(SignalRegistry, "found", 20*time.Millisecond)
	after := testutil.ToFloat64(lookupsTotal.WithLabelValues(SignalRegistry, "found"))
	if after != before+1 {
		t.Errorf("lookups_total = %v, want %v", after, before+1)
	}
}

func TestRecordAnalysisAndPackage(t *testing.T) {
	beforeA := testutil.ToFloat64(analysesTotal.WithLabelValues("ok"))
	beforeP := testutil.ToFloat64(packagesTotal.WithLabelValues("high"))

	RecordAnalysis("ok")
	RecordPackage("high")
	RecordPackage("high")

	if got := testutil.ToFloat64(analysesTotal.WithLabelValues("ok")); got != beforeA+1 {
		t.Errorf("analyses_total = %v, want %v", got, beforeA+1)
	}
	if got := testutil.ToFloat64(packagesTotal.WithLabelValues("high")); got != beforeP+2 {
		t.Errorf("packages_total = %v, want %v", got, beforeP+2)
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "/v1/analyze", "200"))
	RecordHTTPRequest("POST", "/v1/analyze", "200", time.Millisecond)
	if got := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("POST", "/v1/analyze", "200")); got != before+1 {
		t.Errorf("http_requests_total = %v, want %v", got, before+1)
	}
}
