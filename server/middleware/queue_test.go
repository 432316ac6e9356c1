package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teilomillet/parley/errors"
	"github.com/teilomillet/parley/server/metrics"
)

func TestQueueRejectsWhenFull(t *testing.T) {
	m := metrics.NewMetrics()
	q := NewQueue(2, m)

	release := make(chan struct{})
	started := make(chan struct{}, 2)
	handler := q.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		<-release
		w.WriteHeader(http.StatusOK)
	}))

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
		}()
	}
	<-started
	<-started
	assert.Equal(t, 2, q.Len())
	assert.GreaterOrEqual(t, q.OldestWait(), time.Duration(0))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ActiveRequests.WithLabelValues("processing")))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body errors.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
	assert.Equal(t, errors.QueueFullError, body.Type)
	assert.EqualValues(t, 2, body.Details["max_size"])
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ErrorsTotal.WithLabelValues("queue_full")))

	close(release)
	wg.Wait()
	assert.Equal(t, 0, q.Len())
	assert.Zero(t, q.OldestWait())
	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveRequests.WithLabelValues("processing")))
}

func TestQueueOldestWaitTracksUnfinishedRequests(t *testing.T) {
	q := NewQueue(0, nil)

	first := q.admit()
	time.Sleep(50 * time.Millisecond)
	second := q.admit()
	require.Equal(t, 2, q.Len())
	assert.GreaterOrEqual(t, q.OldestWait(), 50*time.Millisecond)

	// the newer request finishing leaves the older one as the oldest
	q.release(second)
	assert.Equal(t, 1, q.Len())
	assert.GreaterOrEqual(t, q.OldestWait(), 50*time.Millisecond)

	third := q.admit()
	q.release(first)
	assert.Equal(t, 1, q.Len())
	assert.Less(t, q.OldestWait(), 50*time.Millisecond, "only the newest request is in flight")

	q.release(third)
	assert.Equal(t, 0, q.Len())
	assert.Zero(t, q.OldestWait())
}

func TestQueueUnbounded(t *testing.T) {
	q := NewQueue(0, nil)
	handler := q.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	for i := 0; i < 10; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
	}
	assert.EqualValues(t, 0, q.MaxSize())
}

func TestQueueShutdown(t *testing.T) {
	q := NewQueue(1, nil)

	release := make(chan struct{})
	started := make(chan struct{})
	handler := q.Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(started)
		<-release
	}))

	done := make(chan struct{})
	go func() {
		defer close(done)
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	}()
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, q.Shutdown(ctx), context.DeadlineExceeded)

	close(release)
	<-done
	assert.NoError(t, q.Shutdown(context.Background()))
}
