package middleware

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/eapache/queue/v2"
	"github.com/teilomillet/parley/errors"
	"github.com/teilomillet/parley/server/metrics"
)

// Queue bounds the number of requests in flight. Each admitted request
// holds its own slot in a FIFO ordered by admission time; once MaxSize
// requests are in flight, new requests are rejected with 503.
type Queue struct {
	mu      sync.Mutex
	slots   *queue.Queue[*slot]
	active  int
	maxSize int64
	metrics *metrics.Metrics
}

// slot is one admitted request. Finished slots stay in the FIFO until
// every slot ahead of them has finished too.
type slot struct {
	admitted time.Time
	done     bool
}

// NewQueue creates a queue admitting maxSize concurrent requests.
// A non-positive maxSize admits everything. m may be nil.
func NewQueue(maxSize int64, m *metrics.Metrics) *Queue {
	return &Queue{
		slots:   queue.New[*slot](),
		maxSize: maxSize,
		metrics: m,
	}
}

// Len returns the number of requests in flight.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active
}

// MaxSize returns the admission limit.
func (q *Queue) MaxSize() int64 {
	return q.maxSize
}

func (q *Queue) admit() *slot {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.maxSize > 0 && int64(q.active) >= q.maxSize {
		return nil
	}
	s := &slot{admitted: time.Now()}
	q.slots.Add(s)
	q.active++
	q.setGauge()
	return s
}

// OldestWait returns how long the oldest request still in flight has
// been held.
func (q *Queue) OldestWait() time.Duration {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.slots.Length() == 0 {
		return 0
	}
	return time.Since(q.slots.Peek().admitted)
}

func (q *Queue) release(s *slot) {
	q.mu.Lock()
	defer q.mu.Unlock()
	s.done = true
	q.active--
	for q.slots.Length() > 0 && q.slots.Peek().done {
		q.slots.Remove()
	}
	q.setGauge()
}

func (q *Queue) setGauge() {
	if q.metrics != nil {
		q.metrics.ActiveRequests.WithLabelValues("processing").Set(float64(q.active))
	}
}

// Handler admits the request or writes a queue_full error.
func (q *Queue) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s := q.admit()
		if s == nil {
			if q.metrics != nil {
				q.metrics.ErrorsTotal.WithLabelValues("queue_full").Inc()
			}
			errors.WriteError(w, errors.NewQueueFullError(GetRequestID(r.Context()), q.maxSize))
			return
		}
		defer q.release(s)

		next.ServeHTTP(w, r)
	})
}

// Shutdown waits until every admitted request has completed or ctx ends.
func (q *Queue) Shutdown(ctx context.Context) error {
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		if q.Len() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			if q.metrics != nil {
				q.metrics.ErrorsTotal.WithLabelValues("queue_shutdown_timeout").Inc()
			}
			return ctx.Err()
		case <-ticker.C:
		}
	}
}
