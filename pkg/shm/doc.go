// Package shm provides a lock-free shared memory ring buffer and slab pool for
// inter-process communication (IPC).
//
// All coordination goes through atomics.Ref words stored inside the mapped
// region, so the same source runs on the host backend and, built with the
// stdpar_gpu tag, on the system-scope backend. The package is instrumented
// with OpenTelemetry metrics and tracing (OTel Go SDK v1.30.0).
//
// Example usage:
//
//	cfg := shm.DefaultConfig()
//	cfg.Name = "myshm"
//	cfg.Create = true
//	buf, err := shm.Open(ctx, cfg)
//	// ...
//	err = buf.WriteMessage(ctx, []byte("hello"))
//
// Platform-specific helpers are in internal/shm.
package shm
