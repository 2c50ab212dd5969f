package shm

import (
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	minBufferCap     = 64
	maxBufferCap     = 1 << 30
	defaultBufferCap = 64 << 10
)

// ErrInvalidSize is returned by VerifyConfig for an unusable capacity.
var ErrInvalidSize = errors.New("shm: invalid buffer size")

// Config holds buffer creation parameters.
type Config struct {
	// Name is the shared memory name. Empty maps anonymous memory usable
	// only inside this process.
	Name string
	// Size is the ring capacity in bytes: a power of two. Zero opens an
	// existing buffer with its stored capacity.
	Size uint64
	// Create initialises the buffer when the region is new.
	Create bool

	// RetryInitialInterval and RetryMaxInterval bound the backoff of the
	// *Wait operations.
	RetryInitialInterval time.Duration
	RetryMaxInterval     time.Duration

	Meter  metric.Meter
	Tracer trace.Tracer
}

// DefaultConfig returns a Config creating a 64 KiB anonymous buffer.
func DefaultConfig() Config {
	return Config{
		Size:                 defaultBufferCap,
		Create:               true,
		RetryInitialInterval: 50 * time.Microsecond,
		RetryMaxInterval:     10 * time.Millisecond,
	}
}

// VerifyConfig checks cfg and fills zero retry intervals with defaults.
func VerifyConfig(cfg *Config) error {
	if cfg.Size == 0 && (cfg.Create || cfg.Name == "") {
		return fmt.Errorf("%w: a new buffer needs a size", ErrInvalidSize)
	}
	if cfg.Size != 0 {
		if cfg.Size < minBufferCap || cfg.Size > maxBufferCap {
			return fmt.Errorf("%w: %d not in [%d, %d]", ErrInvalidSize, cfg.Size, minBufferCap, maxBufferCap)
		}
		if cfg.Size&(cfg.Size-1) != 0 {
			return fmt.Errorf("%w: %d is not a power of two", ErrInvalidSize, cfg.Size)
		}
	}
	def := DefaultConfig()
	if cfg.RetryInitialInterval <= 0 {
		cfg.RetryInitialInterval = def.RetryInitialInterval
	}
	if cfg.RetryMaxInterval < cfg.RetryInitialInterval {
		cfg.RetryMaxInterval = max(def.RetryMaxInterval, cfg.RetryInitialInterval)
	}
	return nil
}
