package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInit(t *testing.T) {
	// Call Init multiple times to test idempotency.
	Init()
	Init()

	if ingestItemsTotal == nil || ingestDuplicatesTotal == nil ||
		ingestValidationFailuresTotal == nil || breakerState == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}

	ObserveIngested("WEB", 512)
	if val := testutil.ToFloat64(ingestItemsTotal.WithLabelValues("WEB")); val != 1 {
		t.Errorf("expected ingest_items_total{WEB} = 1, got %f", val)
	}
	if val := testutil.ToFloat64(ingestBytesTotal.WithLabelValues("WEB")); val != 512 {
		t.Errorf("expected ingest_bytes_total{WEB} = 512, got %f", val)
	}

	ObserveDuplicate("RSS")
	if val := testutil.ToFloat64(ingestDuplicatesTotal.WithLabelValues("RSS")); val != 1 {
		t.Errorf("expected ingest_duplicates_total{RSS} = 1, got %f", val)
	}

	SetBreakerState("content_store", 2)
	if val := testutil.ToFloat64(breakerState.WithLabelValues("content_store")); val != 2 {
		t.Errorf("expected ingest_breaker_state{content_store} = 2, got %f", val)
	}
}
