package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheus_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPrometheus(reg)

	m.RecordRequest("paginas_amarillas", "success")
	m.RecordRequest("paginas_amarillas", "success")
	m.RecordRequest("paginas_amarillas", "error")
	m.RecordLeadProcessed("paginas_amarillas", "saved")
	m.RecordSession("completed", 3*time.Second)

	expected := `
# HELP leadgen_requests_total Outbound directory requests by source and outcome.
# TYPE leadgen_requests_total counter
leadgen_requests_total{outcome="error",source="paginas_amarillas"} 1
leadgen_requests_total{outcome="success",source="paginas_amarillas"} 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "leadgen_requests_total"))

	assert.Equal(t, float64(1), testutil.ToFloat64(m.leadsProcessed.WithLabelValues("paginas_amarillas", "saved")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.sessions.WithLabelValues("completed")))
}

func TestNop_DoesNotPanic(t *testing.T) {
	var r Recorder = Nop{}
	r.RecordRequest("s", "success")
	r.RecordLeadProcessed("s", "saved")
	r.RecordSession("failed", time.Second)
}
