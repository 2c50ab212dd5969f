package shm

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"slices"

	"github.com/cenkalti/backoff/v4"
	"github.com/valyala/bytebufferpool"
	"go.opentelemetry.io/otel/metric"
	metricnoop "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"

	"github.com/srediag/shm-atomic/internal/logger"
	internalshm "github.com/srediag/shm-atomic/internal/shm"
	"github.com/srediag/shm-atomic/pkg/atomics"
)

const instrumentationName = "github.com/srediag/shm-atomic/pkg/shm"

// Header layout. head and tail sit on their own cache lines.
const (
	bufferMagic   = 0x414d4853 // "SHMA"
	magicInitting = 1
	layoutVersion = 1

	magicOffset    = 0
	versionOffset  = 4
	capOffset      = 8
	headOffset     = 64
	tailOffset     = 128
	closedOffset   = 192
	bufferHdrSize  = 256
	msgHeaderBytes = 4
)

var (
	// ErrFull is returned when the ring has no room for the write.
	ErrFull = errors.New("shm: buffer full")
	// ErrEmpty is returned when there is nothing to read.
	ErrEmpty = errors.New("shm: buffer empty")
	// ErrClosed is returned by writes after CloseWrite and by every
	// operation after Close.
	ErrClosed = errors.New("shm: buffer closed for writing")
	// ErrTooLarge is returned for a message that can never fit the ring.
	ErrTooLarge = errors.New("shm: message larger than buffer")
	// ErrNotInitialized is returned when opening a region no creator has set up.
	ErrNotInitialized = errors.New("shm: buffer not initialized")
	// ErrCorrupt is returned when the ring does not hold a whole message.
	ErrCorrupt = errors.New("shm: corrupt message framing")

	log = logger.New("buffer", nil)
)

// Buffer is a lock-free single-producer/single-consumer ring buffer in shared
// memory. One goroutine (or process) writes and one reads.
type Buffer struct {
	region   *internalshm.MappedRegion
	data     []byte
	capacity uint64
	mask     uint64

	head   atomics.Ref[uint64]
	tail   atomics.Ref[uint64]
	closed atomics.Ref[uint32]

	cfg    Config
	tracer trace.Tracer

	bytesWritten metric.Int64Counter
	bytesRead    metric.Int64Counter
	waits        metric.Int64Counter
}

// Open creates or opens a shared memory buffer.
func Open(ctx context.Context, cfg Config) (*Buffer, error) {
	if err := VerifyConfig(&cfg); err != nil {
		return nil, err
	}
	size := 0
	if cfg.Size != 0 {
		size = bufferHdrSize + int(cfg.Size)
	}
	region, err := internalshm.Acquire(ctx, internalshm.MapOptions{
		Name:   cfg.Name,
		Size:   size,
		Create: cfg.Create,
	})
	if err != nil {
		return nil, err
	}
	b := &Buffer{region: region, cfg: cfg}
	if err := b.attach(); err != nil {
		_ = internalshm.Release(ctx, region)
		return nil, err
	}
	if err := b.instrument(); err != nil {
		_ = internalshm.Release(ctx, region)
		return nil, err
	}
	log.Debugf("buffer %q opened, capacity %d", cfg.Name, b.capacity)
	return b, nil
}

func (b *Buffer) attach() error {
	mem := b.region.Addr
	if len(mem) < bufferHdrSize+minBufferCap {
		return fmt.Errorf("%w: region of %d bytes", ErrInvalidSize, len(mem))
	}
	magic, err := b.region.Uint32At(magicOffset)
	if err != nil {
		return err
	}
	version, _ := b.region.Uint32At(versionOffset)
	capacity, _ := b.region.Uint64At(capOffset)
	b.head, _ = b.region.Uint64At(headOffset)
	b.tail, _ = b.region.Uint64At(tailOffset)
	b.closed, _ = b.region.Uint32At(closedOffset)

	if b.cfg.Create && magic.CompareAndSwap(0, magicInitting, atomics.OrderAcqRel) {
		version.Store(layoutVersion, atomics.OrderRelaxed)
		capacity.Store(b.cfg.Size, atomics.OrderRelaxed)
		b.head.Store(0, atomics.OrderRelaxed)
		b.tail.Store(0, atomics.OrderRelaxed)
		b.closed.Store(0, atomics.OrderRelaxed)
		magic.Store(bufferMagic, atomics.OrderRelease)
	} else if m := magic.Load(atomics.OrderAcquire); m != bufferMagic {
		return fmt.Errorf("%w: magic %#x", ErrNotInitialized, m)
	}
	if v := version.Load(atomics.OrderRelaxed); v != layoutVersion {
		return fmt.Errorf("%w: layout version %d", ErrNotInitialized, v)
	}

	c := capacity.Load(atomics.OrderRelaxed)
	if c == 0 || c&(c-1) != 0 || uint64(len(mem)-bufferHdrSize) < c {
		return fmt.Errorf("%w: stored capacity %d, region %d", ErrInvalidSize, c, len(mem))
	}
	if b.cfg.Size != 0 && b.cfg.Size != c {
		return fmt.Errorf("%w: stored capacity %d, requested %d", ErrInvalidSize, c, b.cfg.Size)
	}
	b.capacity = c
	b.mask = c - 1
	b.data = mem[bufferHdrSize : bufferHdrSize+int(c)]
	return nil
}

func (b *Buffer) instrument() (err error) {
	meter := b.cfg.Meter
	if meter == nil {
		meter = metricnoop.NewMeterProvider().Meter(instrumentationName)
	}
	b.tracer = b.cfg.Tracer
	if b.tracer == nil {
		b.tracer = tracenoop.NewTracerProvider().Tracer(instrumentationName)
	}
	if b.bytesWritten, err = meter.Int64Counter("shm.buffer.bytes_written",
		metric.WithDescription("Bytes published to the ring."), metric.WithUnit("By")); err != nil {
		return err
	}
	if b.bytesRead, err = meter.Int64Counter("shm.buffer.bytes_read",
		metric.WithDescription("Bytes consumed from the ring."), metric.WithUnit("By")); err != nil {
		return err
	}
	b.waits, err = meter.Int64Counter("shm.buffer.waits",
		metric.WithDescription("Retries of blocking operations on a full or empty ring."))
	return err
}

// Cap returns the ring capacity in bytes.
func (b *Buffer) Cap() int { return int(b.capacity) }

// Len returns the number of unread bytes, 0 once the buffer is closed.
func (b *Buffer) Len() int {
	if !b.Mapped() {
		return 0
	}
	head := b.head.Load(atomics.OrderAcquire)
	tail := b.tail.Load(atomics.OrderAcquire)
	return int(tail - head)
}

// Closed reports whether the writer called CloseWrite or the buffer was
// closed.
func (b *Buffer) Closed() bool {
	if !b.Mapped() {
		return true
	}
	return b.closed.Load(atomics.OrderAcquire) != 0
}

// Mapped reports whether the buffer still holds its region.
func (b *Buffer) Mapped() bool {
	return b.region != nil && b.region.Addr != nil
}

// free returns the producer's tail and the room left after it.
func (b *Buffer) free() (tail, free uint64) {
	tail = b.tail.Load(atomics.OrderRelaxed)
	head := b.head.Load(atomics.OrderAcquire)
	return tail, b.capacity - (tail - head)
}

// available returns the consumer's head, the bytes ready after it and
// whether the writer had closed before they were published.
func (b *Buffer) available() (head, avail uint64, closed bool) {
	closed = b.closed.Load(atomics.OrderAcquire) != 0
	head = b.head.Load(atomics.OrderRelaxed)
	tail := b.tail.Load(atomics.OrderAcquire)
	return head, tail - head, closed
}

func (b *Buffer) copyIn(pos uint64, p []byte) {
	n := copy(b.data[pos&b.mask:], p)
	copy(b.data, p[n:])
}

func (b *Buffer) copyOut(pos uint64, p []byte) {
	n := copy(p, b.data[pos&b.mask:])
	copy(p[n:], b.data)
}

// Write copies as much of p as fits and publishes it. It returns ErrFull
// when nothing fits.
func (b *Buffer) Write(ctx context.Context, p []byte) (int, error) {
	if b.Closed() {
		return 0, ErrClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	tail, free := b.free()
	n := min(uint64(len(p)), free)
	if n == 0 {
		return 0, ErrFull
	}
	b.copyIn(tail, p[:n])
	b.tail.Store(tail+n, atomics.OrderRelease)
	b.bytesWritten.Add(ctx, int64(n))
	return int(n), nil
}

// Read copies unread bytes into buf. It returns ErrEmpty when nothing is
// ready and io.EOF once the writer closed and everything was read.
func (b *Buffer) Read(ctx context.Context, buf []byte) (int, error) {
	if !b.Mapped() {
		return 0, ErrClosed
	}
	head, avail, closed := b.available()
	if avail == 0 {
		if closed {
			return 0, io.EOF
		}
		return 0, ErrEmpty
	}
	n := min(uint64(len(buf)), avail)
	b.copyOut(head, buf[:n])
	b.head.Store(head+n, atomics.OrderRelease)
	b.bytesRead.Add(ctx, int64(n))
	return int(n), nil
}

// WriteMessage publishes msg as one length-prefixed frame, all or nothing.
func (b *Buffer) WriteMessage(ctx context.Context, msg []byte) error {
	if b.Closed() {
		return ErrClosed
	}
	total := uint64(msgHeaderBytes + len(msg))
	if total > b.capacity {
		return fmt.Errorf("%w: %d bytes, capacity %d", ErrTooLarge, len(msg), b.capacity)
	}
	tail, free := b.free()
	if free < total {
		return ErrFull
	}
	var hdr [msgHeaderBytes]byte
	binary.LittleEndian.PutUint32(hdr[:], uint32(len(msg)))
	b.copyIn(tail, hdr[:])
	b.copyIn(tail+msgHeaderBytes, msg)
	b.tail.Store(tail+total, atomics.OrderRelease)
	b.bytesWritten.Add(ctx, int64(total))
	return nil
}

// ReadMessage appends the next frame's payload to dst.
func (b *Buffer) ReadMessage(ctx context.Context, dst *bytebufferpool.ByteBuffer) error {
	if !b.Mapped() {
		return ErrClosed
	}
	head, avail, closed := b.available()
	if avail == 0 {
		if closed {
			return io.EOF
		}
		return ErrEmpty
	}
	if avail < msgHeaderBytes {
		return fmt.Errorf("%w: %d bytes pending", ErrCorrupt, avail)
	}
	var hdr [msgHeaderBytes]byte
	b.copyOut(head, hdr[:])
	n := uint64(binary.LittleEndian.Uint32(hdr[:]))
	if msgHeaderBytes+n > avail {
		return fmt.Errorf("%w: frame of %d bytes, %d pending", ErrCorrupt, n, avail)
	}
	start := len(dst.B)
	dst.B = slices.Grow(dst.B, int(n))[:start+int(n)]
	b.copyOut(head+msgHeaderBytes, dst.B[start:])
	b.head.Store(head+msgHeaderBytes+n, atomics.OrderRelease)
	b.bytesRead.Add(ctx, int64(msgHeaderBytes+n))
	return nil
}

// WriteMessageWait is WriteMessage retried with backoff while the ring is
// full, until ctx is done.
func (b *Buffer) WriteMessageWait(ctx context.Context, msg []byte) error {
	ctx, span := b.tracer.Start(ctx, "shm.Buffer.WriteMessageWait")
	defer span.End()
	err := b.retry(ctx, ErrFull, func() error { return b.WriteMessage(ctx, msg) })
	if err != nil {
		span.RecordError(err)
	}
	return err
}

// ReadMessageWait is ReadMessage retried with backoff while the ring is
// empty, until ctx is done.
func (b *Buffer) ReadMessageWait(ctx context.Context, dst *bytebufferpool.ByteBuffer) error {
	ctx, span := b.tracer.Start(ctx, "shm.Buffer.ReadMessageWait")
	defer span.End()
	err := b.retry(ctx, ErrEmpty, func() error { return b.ReadMessage(ctx, dst) })
	if err != nil && !errors.Is(err, io.EOF) {
		span.RecordError(err)
	}
	return err
}

func (b *Buffer) retry(ctx context.Context, retryable error, op func() error) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = b.cfg.RetryInitialInterval
	bo.MaxInterval = b.cfg.RetryMaxInterval
	bo.MaxElapsedTime = 0
	bo.Reset()
	return backoff.Retry(func() error {
		err := op()
		if err == nil {
			return nil
		}
		if errors.Is(err, retryable) {
			b.waits.Add(ctx, 1)
			return err
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(bo, ctx))
}

// CloseWrite marks the buffer closed. The reader drains what was written and
// then gets io.EOF.
func (b *Buffer) CloseWrite() {
	if !b.Mapped() {
		return
	}
	b.closed.Store(1, atomics.OrderRelease)
}

// Close unmaps the buffer's region. The shared contents survive for other
// mappings. Afterwards the buffer reports itself closed and empty.
func (b *Buffer) Close() error {
	if b.region == nil {
		return nil
	}
	region := b.region
	b.region = nil
	b.data = nil
	b.head = atomics.Ref[uint64]{}
	b.tail = atomics.Ref[uint64]{}
	b.closed = atomics.Ref[uint32]{}
	return internalshm.Release(context.Background(), region)
}
