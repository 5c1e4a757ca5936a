package metrics

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"chainlend-backend/internal/domain/ledgererr"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveOperation_Results(t *testing.T) {
	m := New()
	m.ObserveOperation("fund_loan", nil)
	m.ObserveOperation("fund_loan", nil)
	m.ObserveOperation("fund_loan", ledgererr.InvalidRequest(3, ledgererr.ReasonSelfFunding))
	m.ObserveOperation("fund_loan", errors.New("db down"))

	tests := []struct {
		result string
		want   float64
	}{
		{"ok", 2},
		{"InvalidRequest", 1},
		{"error", 1},
	}
	for _, tc := range tests {
		if got := testutil.ToFloat64(m.operations.WithLabelValues("fund_loan", tc.result)); got != tc.want {
			t.Fatalf("result=%s: got %v, want %v", tc.result, got, tc.want)
		}
	}
}

func TestObserveOracleFetch(t *testing.T) {
	m := New()
	m.ObserveOracleFetch("ETH/USD", 20*time.Millisecond, nil)
	m.ObserveOracleFetch("ETH/USD", time.Second, errors.New("timeout"))
	if n := testutil.CollectAndCount(m.oracle); n != 2 {
		t.Fatalf("series = %d, want 2", n)
	}
}

func TestHandler_Exposes(t *testing.T) {
	m := New()
	m.ObserveOperation("repay_loan", nil)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `chainlend_ledger_operations_total{operation="repay_loan",result="ok"} 1`) {
		t.Fatalf("metric not exposed:\n%s", rec.Body.String())
	}
}
