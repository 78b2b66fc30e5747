package metrics_test

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/cardinal-rs/cardinal/internal/metrics"
)

func TestObserveRequestIncrementsCounterAndHistogram(t *testing.T) {
	before := testutil.ToFloat64(metrics.Collectors.RequestsTotal.WithLabelValues("svc-a", "200"))
	metrics.ObserveRequest("svc-a", "200", 0.05)
	after := testutil.ToFloat64(metrics.Collectors.RequestsTotal.WithLabelValues("svc-a", "200"))
	assert.Equal(t, before+1, after)
}

func TestObservePluginOnlyIncrementsErrorsOnFailure(t *testing.T) {
	beforeInv := testutil.ToFloat64(metrics.Collectors.PluginInvocations.WithLabelValues("restricted_route", "inbound"))
	beforeErr := testutil.ToFloat64(metrics.Collectors.PluginErrors.WithLabelValues("restricted_route", "inbound"))

	metrics.ObservePlugin("restricted_route", "inbound", nil)
	assert.Equal(t, beforeInv+1, testutil.ToFloat64(metrics.Collectors.PluginInvocations.WithLabelValues("restricted_route", "inbound")))
	assert.Equal(t, beforeErr, testutil.ToFloat64(metrics.Collectors.PluginErrors.WithLabelValues("restricted_route", "inbound")))

	metrics.ObservePlugin("restricted_route", "inbound", errors.New("boom"))
	assert.Equal(t, beforeInv+2, testutil.ToFloat64(metrics.Collectors.PluginInvocations.WithLabelValues("restricted_route", "inbound")))
	assert.Equal(t, beforeErr+1, testutil.ToFloat64(metrics.Collectors.PluginErrors.WithLabelValues("restricted_route", "inbound")))
}

func TestObserveRetryIncrementsCounter(t *testing.T) {
	before := testutil.ToFloat64(metrics.Collectors.RetriesTotal.WithLabelValues("svc-b"))
	metrics.ObserveRetry("svc-b")
	after := testutil.ToFloat64(metrics.Collectors.RetriesTotal.WithLabelValues("svc-b"))
	assert.Equal(t, before+1, after)
}
