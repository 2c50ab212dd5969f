// Command atomic-check reports which atomics backend was compiled in and
// runs the litmus suite against it.
//
//	go run ./cmd/atomic-check                      # host backend
//	go run -tags stdpar_gpu ./cmd/atomic-check     # system-scope backend (cgo)
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/srediag/shm-atomic/adapter"
	"github.com/srediag/shm-atomic/internal/litmus"
	"github.com/srediag/shm-atomic/internal/logger"
	"github.com/srediag/shm-atomic/pkg/atomics"
)

// envDebugPort is read when -listen is not given.
const envDebugPort = "SHM_ATOMIC_DEBUG_PORT"

var log = logger.New("atomic-check", os.Stderr)

func main() {
	def := litmus.DefaultConfig()
	iterations := flag.Int("iterations", def.Iterations, "trials per litmus test")
	workers := flag.Int("workers", def.Workers, "worker pool size")
	listen := flag.String("listen", "", "serve /metrics, /live and /ready on this address and keep running")
	flag.Parse()

	if *listen == "" {
		if port := os.Getenv(envDebugPort); port != "" {
			*listen = ":" + port
		}
	}
	os.Exit(run(*iterations, *workers, *listen))
}

func run(iterations, workers int, listen string) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("backend: %s\nscope:   %s\n", atomics.Backend, atomics.ActiveScope)

	reg := prometheus.NewRegistry()
	runner, err := litmus.NewRunner(litmus.Config{Iterations: iterations, Workers: workers, Registerer: reg})
	if err != nil {
		log.Errorf("%v", err)
		return 2
	}
	defer runner.Close()

	results, err := runner.Run(ctx)
	if err != nil {
		log.Errorf("litmus run: %v", err)
		return 2
	}
	failed := false
	for _, res := range results {
		fmt.Println(res)
		failed = failed || !res.Passed()
	}

	if listen != "" {
		if err := serve(ctx, listen, reg, failed); err != nil {
			log.Errorf("serve %s: %v", listen, err)
			return 2
		}
	}
	if failed {
		return 1
	}
	return 0
}

func serve(ctx context.Context, addr string, reg *prometheus.Registry, failed bool) error {
	health := adapter.NewHealthAdapter(reg)
	health.AddReadinessCheck("litmus", func() error {
		if failed {
			return errors.New("litmus violations observed")
		}
		return nil
	})

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	mux.Handle("/live", health.Handler())
	mux.Handle("/ready", health.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Infof("serving on %s", addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
