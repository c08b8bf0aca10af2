package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestCollector_Observe(t *testing.T) {
	c := NewCollector()

	c.ObserveModelCall("gemini", "phase1", nil, 2*time.Second, 1200)
	c.ObserveModelCall("gemini", "phase1", errors.New("quota"), time.Second, 0)
	c.ObserveParse("phase1", "fenced")
	c.ObserveBackendCall("get_person_sessions", nil)
	c.ObserveSearchBatch(0.35, 7)
	c.ObserveCache("session", true)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.ModelCalls.WithLabelValues("gemini", "phase1", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ModelCalls.WithLabelValues("gemini", "phase1", "error")))
	assert.Equal(t, 1200.0, testutil.ToFloat64(c.ModelTokens.WithLabelValues("gemini", "phase1")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.ParseStages.WithLabelValues("phase1", "fenced")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.SearchBatches.WithLabelValues("0.35")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.CacheLookups.WithLabelValues("session", "hit")))
}

func TestCollector_NilIsNoop(t *testing.T) {
	var c *Collector
	assert.NotPanics(t, func() {
		c.ObserveModelCall("x", "y", nil, 0, 0)
		c.ObserveParse("x", "y")
		c.ObserveBackendCall("x", nil)
		c.ObserveSearchBatch(0.1, 0)
		c.ObserveCache("x", false)
	})
	assert.Nil(t, c.Registry())
}
