package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://Example.com/path", "example.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"just host", "example.com", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"variant url", "https://istorepreowned.co.za/products/x?variant=1", "istorepreowned.co.za"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInitIdempotent(t *testing.T) {
	Init()
	Init()

	if runsTotal == nil || fetchesTotal == nil || variantsCheckedTotal == nil ||
		httpRequestsTotal == nil || httpRequestDurationSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObserveRunAndFetch(t *testing.T) {
	Init()

	before := testutil.ToFloat64(runsTotal.WithLabelValues("out_of_stock"))
	ObserveRun("out_of_stock", 2*time.Second)
	if got := testutil.ToFloat64(runsTotal.WithLabelValues("out_of_stock")); got != before+1 {
		t.Errorf("expected runs counter %f, got %f", before+1, got)
	}

	fetchBefore := testutil.ToFloat64(fetchesTotal.WithLabelValues("shop.test", "200"))
	ObserveFetch("https://shop.test/collections/x", "200", 10*time.Millisecond)
	if got := testutil.ToFloat64(fetchesTotal.WithLabelValues("shop.test", "200")); got != fetchBefore+1 {
		t.Errorf("expected fetch counter %f, got %f", fetchBefore+1, got)
	}

	variantBefore := testutil.ToFloat64(variantsCheckedTotal.WithLabelValues("true"))
	ObserveVariant(true)
	if got := testutil.ToFloat64(variantsCheckedTotal.WithLabelValues("true")); got != variantBefore+1 {
		t.Errorf("expected variant counter %f, got %f", variantBefore+1, got)
	}

	ObserveRateLimitDelay("shop.test", 150*time.Millisecond)
	if got := testutil.CollectAndCount(rateLimitDelaySeconds); got < 1 {
		t.Errorf("expected rate limit delay series, got %d", got)
	}
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://google.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
