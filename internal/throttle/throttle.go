// Package throttle provides byte-rate limited io wrappers for snapshot
// transfers.
package throttle

import (
	"context"
	"io"

	"golang.org/x/time/rate"
)

// Limiter enforces a bytes-per-second budget across readers and writers
// that share it.
type Limiter struct {
	l *rate.Limiter
}

// NewLimiter creates a limiter allowing bytesPerSec throughput. A zero or
// negative rate disables limiting.
func NewLimiter(bytesPerSec int64) *Limiter {
	if bytesPerSec <= 0 {
		return &Limiter{}
	}
	return &Limiter{l: rate.NewLimiter(rate.Limit(bytesPerSec), int(bytesPerSec))}
}

// acquire blocks until n bytes fit in the budget or ctx is canceled.
// Requests larger than the burst are split.
func (lm *Limiter) acquire(ctx context.Context, n int) error {
	if lm == nil || lm.l == nil || n <= 0 {
		return nil
	}
	burst := lm.l.Burst()
	for n > 0 {
		chunk := n
		if chunk > burst {
			chunk = burst
		}
		if err := lm.l.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}

// Reader wraps r with the limiter's byte budget.
func (lm *Limiter) Reader(ctx context.Context, r io.Reader) io.Reader {
	if lm == nil || lm.l == nil {
		return r
	}
	return &reader{ctx: ctx, lm: lm, r: r}
}

// Writer wraps w with the limiter's byte budget.
func (lm *Limiter) Writer(ctx context.Context, w io.Writer) io.Writer {
	if lm == nil || lm.l == nil {
		return w
	}
	return &writer{ctx: ctx, lm: lm, w: w}
}

type reader struct {
	ctx context.Context
	lm  *Limiter
	r   io.Reader
}

func (r *reader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	if n > 0 {
		if werr := r.lm.acquire(r.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}

type writer struct {
	ctx context.Context
	lm  *Limiter
	w   io.Writer
}

func (w *writer) Write(p []byte) (int, error) {
	if err := w.lm.acquire(w.ctx, len(p)); err != nil {
		return 0, err
	}
	return w.w.Write(p)
}
