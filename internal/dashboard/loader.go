package dashboard

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// ErrStale is returned for a load that was overtaken by a newer one.
var ErrStale = errors.New("dashboard: stale result discarded")

// Loader serialises the loads of one view.  Each Load takes a new
// generation and cancels the previous load; a result whose generation is
// no longer current is dropped and reported as ErrStale, so a slow
// response can never overwrite a newer one.
type Loader[T any] struct {
	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
}

// Load runs fn under a context that is cancelled when ctx is, or when a
// newer Load starts.
func (l *Loader[T]) Load(ctx context.Context, fn func(context.Context) (T, error)) (T, error) {
	l.mu.Lock()
	l.gen++
	gen := l.gen
	if l.cancel != nil {
		l.cancel()
	}
	ctx, cancel := context.WithCancel(ctx)
	l.cancel = cancel
	l.mu.Unlock()
	defer cancel()

	v, err := fn(ctx)

	l.mu.Lock()
	current := gen == l.gen
	if current {
		l.cancel = nil
	}
	l.mu.Unlock()

	if !current {
		var zero T
		return zero, ErrStale
	}
	return v, err
}

// Generation returns the generation of the latest load.
func (l *Loader[T]) Generation() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.gen
}
