package observability

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveHTTP("GET", "/x", 200, time.Millisecond)
	m.IncDeadLetter("analysis")
	m.AddRoutingChange("created", 2)
	assert.Nil(t, m.Registry())
}

func TestMetricsCountAndServe(t *testing.T) {
	m := NewMetrics()
	m.IncDeadLetter("analysis")
	m.IncDeadLetter("analysis")
	m.AddRoutingChange("deleted", 3)
	m.ObserveSearchCache(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.deadLetters.WithLabelValues("analysis")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.routingChanges.WithLabelValues("deleted")))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "caseforge_persist_dead_letters_total"))
}

func TestParseHeaders(t *testing.T) {
	h := ParseHeaders(" a=1, b = 2 ,bad,=x")
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, h)
	assert.Nil(t, ParseHeaders(""))
}
