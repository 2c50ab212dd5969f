// Package adapter provides adapters for shm-atomic integration with external systems.
package adapter

import (
	"errors"
	"net/http"

	"github.com/heptiolabs/healthcheck"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	metricsNamespace = "shm_atomic"
	maxGoroutines    = 10000
)

var (
	errNotMapped = errors.New("buffer region is not mapped")
	errClosed    = errors.New("buffer closed for writing")
)

// BufferProbe is the view of a shared memory buffer the health checks need.
// *shm.Buffer implements it.
type BufferProbe interface {
	Mapped() bool
	Closed() bool
}

// HealthAdapter exposes liveness and readiness endpoints for buffers.
type HealthAdapter struct {
	handler healthcheck.Handler
}

// NewHealthAdapter returns a HealthAdapter. When reg is not nil every check
// result is also exported as a Prometheus gauge.
func NewHealthAdapter(reg prometheus.Registerer) *HealthAdapter {
	var h healthcheck.Handler
	if reg != nil {
		h = healthcheck.NewMetricsHandler(reg, metricsNamespace)
	} else {
		h = healthcheck.NewHandler()
	}
	h.AddLivenessCheck("goroutine-threshold", healthcheck.GoroutineCountCheck(maxGoroutines))
	return &HealthAdapter{handler: h}
}

// WatchBuffer adds a liveness check that the buffer is mapped and a
// readiness check that its writer has not closed it.
func (a *HealthAdapter) WatchBuffer(name string, buf BufferProbe) {
	a.handler.AddLivenessCheck("buffer-"+name+"-mapped", func() error {
		if !buf.Mapped() {
			return errNotMapped
		}
		return nil
	})
	a.handler.AddReadinessCheck("buffer-"+name+"-open", func() error {
		if buf.Closed() {
			return errClosed
		}
		return nil
	})
}

// AddReadinessCheck registers an arbitrary readiness check.
func (a *HealthAdapter) AddReadinessCheck(name string, check func() error) {
	a.handler.AddReadinessCheck(name, check)
}

// Handler serves /live and /ready.
func (a *HealthAdapter) Handler() http.Handler {
	return a.handler
}
