package sim

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/wzhhnet/esp32-mg-server/internal/logging"
	"github.com/wzhhnet/esp32-mg-server/internal/wifi"
)

type item struct {
	due     time.Time
	resolve func() (wifi.Event, bool)
}

// queue delivers notifications in FIFO order. push never blocks, so the
// driver can be called from the sink's own goroutine.
type queue struct {
	mu     sync.Mutex
	items  []item
	wake   chan struct{}
	done   chan struct{}
	closed bool
}

func newQueue() *queue {
	return &queue{
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
}

func (q *queue) push(it item) {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.items = append(q.items, it)
	q.mu.Unlock()
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *queue) pop() (item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return item{}, false
	}
	it := q.items[0]
	q.items = q.items[1:]
	return it, true
}

func (q *queue) close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	q.items = nil
	q.mu.Unlock()
	close(q.done)
}

func (q *queue) run(sink Sink) {
	for {
		it, ok := q.pop()
		if !ok {
			select {
			case <-q.wake:
				continue
			case <-q.done:
				return
			}
		}
		if d := time.Until(it.due); d > 0 {
			t := time.NewTimer(d)
			select {
			case <-t.C:
			case <-q.done:
				t.Stop()
				return
			}
		}
		ev, ok := it.resolve()
		if !ok {
			continue
		}
		logging.Debug("Radio notification", zap.String("event", ev.Name()))
		if err := sink.Notify(ev); err != nil {
			logging.Debug("Radio notification dropped", zap.String("event", ev.Name()), zap.Error(err))
			return
		}
	}
}
