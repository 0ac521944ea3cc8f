package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheMetricsCountsPerFamily(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCacheMetrics(reg)
	m.Hit("product")
	m.Hit("product")
	m.Miss("products:list")
	m.Error("product", "set")
	m.Invalidated("products:list", "family")

	mfs, err := reg.Gather()
	require.NoError(t, err)

	hits, err := fetchCounterValue(mfs, "storefront_cache_hits_total", map[string]string{"family": "product"})
	require.NoError(t, err)
	assert.Equal(t, float64(2), hits)

	misses, err := fetchCounterValue(mfs, "storefront_cache_misses_total", map[string]string{"family": "products:list"})
	require.NoError(t, err)
	assert.Equal(t, float64(1), misses)

	errs, err := fetchCounterValue(mfs, "storefront_cache_errors_total", map[string]string{"family": "product", "op": "set"})
	require.NoError(t, err)
	assert.Equal(t, float64(1), errs)

	inv, err := fetchCounterValue(mfs, "storefront_cache_invalidations_total", map[string]string{"family": "products:list", "kind": "family"})
	require.NoError(t, err)
	assert.Equal(t, float64(1), inv)
}

func TestHTTPMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewHTTPMetrics(reg)
	m.Start()
	m.Observe("POST", "/api/v1/orders", 201, 20*time.Millisecond)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	sum, err := fetchHistogramSum(mfs, "storefront_http_request_duration_seconds", map[string]string{"route": "/api/v1/orders", "status": "201"})
	require.NoError(t, err)
	assert.Greater(t, sum, 0.0)
}
