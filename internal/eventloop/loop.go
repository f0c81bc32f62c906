// Package eventloop multiplexes all registered log sources on a single
// readiness-driven thread of control and drives every successfully read
// payload through parsing and into the store.
//
// Fairness: each wake-up serves every ready descriptor exactly once with
// one bounded read. A busy source simply becomes ready again on the next
// wait; it can never starve a quiet one. Appends are synchronous, so a
// slow store throttles ingestion instead of growing buffers.
package eventloop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sys/unix"

	"github.com/squealog/squealogd/internal/record"
	"github.com/squealog/squealogd/internal/source"
	"github.com/squealog/squealogd/internal/syslog"
)

// readBufferSize bounds a single read: one datagram or one kernel
// record. Larger payloads are truncated by the kernel, which is the
// accepted datagram-syslog behavior.
const readBufferSize = 8192

// pollTimeout bounds each wait so context cancellation is observed even
// when no source ever becomes ready.
const pollTimeout = 1 * time.Second

// defaultRetryDelay is the pause before the single append retry.
const defaultRetryDelay = 100 * time.Millisecond

// ErrAllSourcesFailed is returned when every registered source has been
// deregistered due to read errors; the daemon has nothing left to serve.
var ErrAllSourcesFailed = errors.New("all log sources failed")

// Appender is the store-facing side of the pipeline.
type Appender interface {
	Append(ctx context.Context, rec *record.Record) error
}

// Config carries the loop's collaborators.
type Config struct {
	// Store receives every record. Required.
	Store Appender

	// KernelDecoder decodes payloads of KernelDevice sources. Required
	// when the inventory contains one.
	KernelDecoder func(data []byte) []*record.Record

	// Now stamps ReceivedAt. Defaults to time.Now.
	Now func() time.Time

	// Logger receives diagnostics. Defaults to slog.Default().
	Logger *slog.Logger

	// RetryDelay is the pause before the single append retry.
	RetryDelay time.Duration
}

// Loop owns the source handles for its lifetime. Not safe for
// concurrent use; Run is the single thread of control.
type Loop struct {
	sources    []source.Source
	store      Appender
	decode     func(data []byte) []*record.Record
	now        func() time.Time
	log        *slog.Logger
	retryDelay time.Duration
	buf        []byte
}

// New validates the inventory and builds the loop. The loop takes
// ownership of every source handle; they are closed when Run returns.
func New(sources []source.Source, cfg Config) (*Loop, error) {
	if len(sources) == 0 {
		return nil, errors.New("no log sources to serve")
	}
	if cfg.Store == nil {
		return nil, errors.New("store is required")
	}
	for _, src := range sources {
		if src.Kind == source.KernelDevice && cfg.KernelDecoder == nil {
			return nil, fmt.Errorf("source %q needs a kernel decoder", src.Name)
		}
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = defaultRetryDelay
	}
	return &Loop{
		sources:    append([]source.Source(nil), sources...),
		store:      cfg.Store,
		decode:     cfg.KernelDecoder,
		now:        cfg.Now,
		log:        cfg.Logger,
		retryDelay: cfg.RetryDelay,
		buf:        make([]byte, readBufferSize),
	}, nil
}

// Run blocks serving sources until ctx is cancelled (returns nil after
// finishing the in-flight wake-up) or a fatal condition occurs: the
// poller itself failing, a persistent store failure, or the last source
// deregistering.
func (l *Loop) Run(ctx context.Context) error {
	defer l.closeAll()

	fds := make([]unix.PollFd, 0, len(l.sources))
	for {
		if ctx.Err() != nil {
			l.log.Info("shutting down", "sources", len(l.sources))
			return nil
		}
		if len(l.sources) == 0 {
			return ErrAllSourcesFailed
		}

		fds = fds[:0]
		for _, src := range l.sources {
			fds = append(fds, unix.PollFd{Fd: int32(src.FD), Events: unix.POLLIN})
		}

		n, err := unix.Poll(fds, int(pollTimeout.Milliseconds()))
		if err != nil {
			if err == unix.EINTR {
				continue
			}
			return fmt.Errorf("poll: %w", err)
		}
		if n == 0 {
			continue
		}

		// One bounded read per ready descriptor, in registration order.
		var failed []int
		for i := range fds {
			if fds[i].Revents == 0 {
				continue
			}
			alive, err := l.serveOne(ctx, l.sources[i])
			if err != nil {
				return err
			}
			if !alive {
				failed = append(failed, i)
			}
		}
		l.deregister(failed)
	}
}

// serveOne performs one bounded read on a ready source and routes the
// payload. Returns alive=false when the source must be deregistered and
// a non-nil error only for process-fatal conditions.
func (l *Loop) serveOne(ctx context.Context, src source.Source) (alive bool, err error) {
	n, err := unix.Read(src.FD, l.buf)
	if err != nil {
		if !recoverableReadError(err, src.Kind) {
			l.log.Warn("source read failed, deregistering",
				"source", src.Name, "kind", src.Kind.String(), "error", err)
			return false, nil
		}
		if err == unix.EPIPE {
			// The kernel ring buffer wrapped past our read position;
			// the next read resumes at the oldest surviving record.
			l.log.Warn("kernel records lost to ring buffer overrun", "source", src.Name)
		}
		return true, nil
	}
	if n == 0 {
		if src.Kind == source.KernelDevice {
			l.log.Warn("kernel device closed, deregistering", "source", src.Name)
			return false, nil
		}
		// Empty datagram: nothing to store.
		return true, nil
	}

	data := l.buf[:n]
	received := l.now()

	switch src.Kind {
	case source.KernelDevice:
		for _, rec := range l.decode(data) {
			rec.ReceivedAt = received
			rec.SourceName = src.Name
			if err := l.append(ctx, rec); err != nil {
				return false, err
			}
		}
	default:
		rec, ok := syslog.Parse(data, received)
		if !ok {
			return true, nil
		}
		rec.ReceivedAt = received
		rec.SourceName = src.Name
		if err := l.append(ctx, rec); err != nil {
			return false, err
		}
	}
	return true, nil
}

// recoverableReadError reports whether a failed read leaves the source
// serviceable. EPIPE from the kernel log device signals records lost to
// a ring buffer overrun, not a dead descriptor.
func recoverableReadError(err error, kind source.Kind) bool {
	if err == unix.EAGAIN || err == unix.EINTR {
		return true
	}
	return err == unix.EPIPE && kind == source.KernelDevice
}

// append hands a record to the store, retrying once before escalating.
// Dropping log data defeats the daemon's purpose, so a persistent
// storage failure is fatal rather than swallowed. Records already read
// from a source are written even when ctx was cancelled mid-wake-up;
// shutdown must not lose them.
func (l *Loop) append(ctx context.Context, rec *record.Record) error {
	ctx = context.WithoutCancel(ctx)
	err := l.store.Append(ctx, rec)
	if err == nil {
		return nil
	}
	l.log.Warn("append failed, retrying once", "source", rec.SourceName, "error", err)
	time.Sleep(l.retryDelay)
	if err := l.store.Append(ctx, rec); err != nil {
		return fmt.Errorf("store append failed after retry: %w", err)
	}
	return nil
}

// deregister closes and removes the sources at the given indices.
// Indices must be in ascending order.
func (l *Loop) deregister(indices []int) {
	for i := len(indices) - 1; i >= 0; i-- {
		idx := indices[i]
		src := l.sources[idx]
		if err := src.Close(); err != nil {
			l.log.Warn("closing failed source", "source", src.Name, "error", err)
		}
		l.sources = append(l.sources[:idx], l.sources[idx+1:]...)
	}
}

func (l *Loop) closeAll() {
	for i := range l.sources {
		if err := l.sources[i].Close(); err != nil {
			l.log.Warn("closing source", "source", l.sources[i].Name, "error", err)
		}
	}
	l.sources = nil
}
