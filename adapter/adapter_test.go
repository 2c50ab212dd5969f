package adapter

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/srediag/shm-atomic/pkg/shm"
)

type fakeBuffer struct {
	mapped, closed bool
	used, capacity int
}

func (f *fakeBuffer) Mapped() bool { return f.mapped }
func (f *fakeBuffer) Closed() bool { return f.closed }
func (f *fakeBuffer) Len() int     { return f.used }
func (f *fakeBuffer) Cap() int     { return f.capacity }

func status(t *testing.T, h http.Handler, path string) int {
	rw := httptest.NewRecorder()
	req, err := http.NewRequest(http.MethodGet, path, nil)
	require.NoError(t, err)
	h.ServeHTTP(rw, req)
	return rw.Code
}

func TestHealthAdapterWatchBuffer(t *testing.T) {
	buf := &fakeBuffer{mapped: true}
	a := NewHealthAdapter(nil)
	a.WatchBuffer("ring", buf)

	assert.Equal(t, http.StatusOK, status(t, a.Handler(), "/live"))
	assert.Equal(t, http.StatusOK, status(t, a.Handler(), "/ready"))

	buf.closed = true
	assert.Equal(t, http.StatusOK, status(t, a.Handler(), "/live"))
	assert.Equal(t, http.StatusServiceUnavailable, status(t, a.Handler(), "/ready"))

	buf.mapped = false
	assert.Equal(t, http.StatusServiceUnavailable, status(t, a.Handler(), "/live"))
}

func TestHealthAdapterWithRealBuffer(t *testing.T) {
	ctx := context.Background()
	cfg := shm.DefaultConfig()
	cfg.Size = 1024
	buf, err := shm.Open(ctx, cfg)
	if err != nil {
		t.Skipf("platform not implemented: %v", err)
	}
	reg := prometheus.NewRegistry()
	a := NewHealthAdapter(reg)
	a.WatchBuffer("real", buf)
	assert.Equal(t, http.StatusOK, status(t, a.Handler(), "/ready"))

	require.NoError(t, buf.Close())
	assert.Equal(t, http.StatusServiceUnavailable, status(t, a.Handler(), "/live"))
	assert.Equal(t, http.StatusServiceUnavailable, status(t, a.Handler(), "/ready"))
}

func TestBufferCollectorAfterClose(t *testing.T) {
	ctx := context.Background()
	cfg := shm.DefaultConfig()
	cfg.Size = 1024
	buf, err := shm.Open(ctx, cfg)
	if err != nil {
		t.Skipf("platform not implemented: %v", err)
	}
	require.NoError(t, buf.WriteMessage(ctx, []byte("pending")))

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(NewBufferCollector("closed", buf)))
	require.NoError(t, buf.Close())

	got := gaugeValues(t, reg)
	require.Len(t, got["shm_atomic_buffer_used_bytes"], 1)
	assert.Equal(t, 0.0, got["shm_atomic_buffer_used_bytes"][0].GetGauge().GetValue())
}

func gaugeValues(t *testing.T, reg *prometheus.Registry) map[string][]*dto.Metric {
	families, err := reg.Gather()
	require.NoError(t, err)
	out := make(map[string][]*dto.Metric, len(families))
	for _, f := range families {
		out[f.GetName()] = f.GetMetric()
	}
	return out
}

func TestBufferCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(NewBufferCollector("ring", &fakeBuffer{used: 12, capacity: 64})))

	got := gaugeValues(t, reg)
	require.Len(t, got["shm_atomic_buffer_used_bytes"], 1)
	assert.Equal(t, 12.0, got["shm_atomic_buffer_used_bytes"][0].GetGauge().GetValue())
	assert.Equal(t, 64.0, got["shm_atomic_buffer_capacity_bytes"][0].GetGauge().GetValue())
	assert.Equal(t, "ring", got["shm_atomic_buffer_used_bytes"][0].GetLabel()[0].GetValue())
}

func TestPoolCollector(t *testing.T) {
	bm, err := shm.NewBufferManager(make([]byte, 64<<10), []shm.SizePercentPair{{Size: 1024, Percent: 100}})
	require.NoError(t, err)
	_, err = bm.Alloc(512)
	require.NoError(t, err)

	reg := prometheus.NewRegistry()
	require.NoError(t, reg.Register(NewPoolCollector("slab", bm)))
	got := gaugeValues(t, reg)
	require.Len(t, got["shm_atomic_pool_free_slices"], 1)
	total := got["shm_atomic_pool_slices"][0].GetGauge().GetValue()
	assert.Equal(t, total-1, got["shm_atomic_pool_free_slices"][0].GetGauge().GetValue())
}
