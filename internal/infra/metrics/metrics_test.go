package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestIncNotification_NormalizesLabel(t *testing.T) {
	before := testutil.ToFloat64(notificationsTotal.WithLabelValues("no_address"))
	IncNotification(" NO_ADDRESS ")
	after := testutil.ToFloat64(notificationsTotal.WithLabelValues("no_address"))
	if after != before+1 {
		t.Errorf("expected counter to grow by 1, got %v -> %v", before, after)
	}
}

func TestMustRegister_Idempotent(t *testing.T) {
	MustRegister()
	MustRegister() // must not panic on duplicate registration
}

func TestIncDirectoryOp(t *testing.T) {
	before := testutil.ToFloat64(directoryOperationsTotal.WithLabelValues("memory", "evict"))
	IncDirectoryOp("Memory", "evict")
	if got := testutil.ToFloat64(directoryOperationsTotal.WithLabelValues("memory", "evict")); got != before+1 {
		t.Errorf("expected %v, got %v", before+1, got)
	}
}

func TestIncDirectoryCacheLookup(t *testing.T) {
	before := testutil.ToFloat64(directoryCacheLookups.WithLabelValues("hit"))
	IncDirectoryCacheLookup("HIT")
	if got := testutil.ToFloat64(directoryCacheLookups.WithLabelValues("hit")); got != before+1 {
		t.Errorf("expected %v, got %v", before+1, got)
	}
}

func TestSetPostgresPool(t *testing.T) {
	SetPostgresPool(10, 4, 3, 1)
	for state, want := range map[string]float64{"max": 10, "total": 4, "idle": 3, "acquired": 1} {
		if got := testutil.ToFloat64(postgresPoolConns.WithLabelValues(state)); got != want {
			t.Errorf("%s: expected %v, got %v", state, want, got)
		}
	}
}
