package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector(t *testing.T) {
	c := NewCollector("guildhall")

	c.RecordCounterDrift("memberCount", "store_unavailable")
	c.RecordCounterDrift("memberCount", "store_unavailable")
	c.RecordLikeToggle(true)
	c.RecordHTTPRequest(http.MethodGet, "/api/v1/guilds", http.StatusOK, 15*time.Millisecond)

	assert.Equal(t, float64(2), testutil.ToFloat64(c.CounterDrift.WithLabelValues("memberCount", "store_unavailable")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.LikeToggles.WithLabelValues("true")))
	assert.Equal(t, float64(1), testutil.ToFloat64(c.HTTPRequests.WithLabelValues("GET", "/api/v1/guilds", "200")))

	w := httptest.NewRecorder()
	c.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "guildhall_counter_drift_suspected_total")
}

func TestNilCollectorIsSafe(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.RecordGuildCreated()
		c.RecordCounterDrift("likes", "underflow")
		c.RecordHTTPRequest(http.MethodPost, "/", http.StatusCreated, time.Millisecond)
		c.RecordCacheHit()
	})
}

func TestCollectorsAreIndependent(t *testing.T) {
	a := NewCollector("guildhall")
	b := NewCollector("guildhall")
	a.RecordPostCreated()
	assert.Equal(t, float64(1), testutil.ToFloat64(a.PostsCreated))
	assert.Equal(t, float64(0), testutil.ToFloat64(b.PostsCreated))
}
