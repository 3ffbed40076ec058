package jobqueue

import (
	"context"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/cockroachdb/errors"

	"github.com/riskibarqy/fantasy-roster/internal/platform/logging"
	"github.com/riskibarqy/fantasy-roster/internal/platform/metrics"
)

const localDedupWindow = 24 * time.Hour

var errQueueClosed = errors.New("local job queue is closed")

// LocalHandler runs one job inside the process.
type LocalHandler func(ctx context.Context, payload map[string]any) error

// LocalQueue runs internal jobs in-process after their delay. It stands in
// for QStash on single-replica deployments and honours the same
// deduplication ids.
type LocalQueue struct {
	mu       sync.Mutex
	handlers map[string]LocalHandler
	timers   map[string]*time.Timer
	seen     map[string]time.Time
	closed   bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	logger *logging.Logger
	now    func() time.Time
}

func NewLocalQueue(logger *logging.Logger) *LocalQueue {
	if logger == nil {
		logger = logging.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &LocalQueue{
		handlers: make(map[string]LocalHandler),
		timers:   make(map[string]*time.Timer),
		seen:     make(map[string]time.Time),
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger.Named("jobqueue.local"),
		now:      time.Now,
	}
}

// Handle registers fn for a job path such as /v1/internal/jobs/lock-day.
func (q *LocalQueue) Handle(path string, fn LocalHandler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[path] = fn
}

func (q *LocalQueue) Enqueue(ctx context.Context, path string, payload any, delay time.Duration, deduplicationID string) (err error) {
	job := jobName(path)
	defer func() {
		metrics.JobsEnqueuedTotal.WithLabelValues(job, metrics.Outcome(err)).Inc()
	}()

	body, err := toPayloadMap(payload)
	if err != nil {
		return errors.Wrapf(err, "encode payload for %s", path)
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return errQueueClosed
	}
	handler, ok := q.handlers[path]
	if !ok {
		return errors.Newf("no local handler registered for %s", path)
	}

	now := q.now()
	q.pruneLocked(now)
	key := deduplicationID
	if key != "" {
		if _, dup := q.seen[key]; dup {
			q.logger.DebugContext(ctx, "duplicate job dropped", "job", job, "dedup_id", key)
			return nil
		}
		q.seen[key] = now
	} else {
		key = path + "@" + now.Format(time.RFC3339Nano)
	}
	if delay < 0 {
		delay = 0
	}

	q.wg.Add(1)
	q.timers[key] = time.AfterFunc(delay, func() {
		defer q.wg.Done()
		q.mu.Lock()
		delete(q.timers, key)
		q.mu.Unlock()

		if q.ctx.Err() != nil {
			return
		}
		if err := handler(q.ctx, body); err != nil {
			q.logger.Error("local job failed", "job", job, "dedup_id", deduplicationID, "error", err)
			return
		}
		q.logger.Debug("local job finished", "job", job, "dedup_id", deduplicationID)
	})
	return nil
}

// Pending is the number of scheduled jobs that have not started yet.
func (q *LocalQueue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.timers)
}

// Close drops jobs that have not started and waits for running ones.
func (q *LocalQueue) Close(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		for key, timer := range q.timers {
			if timer.Stop() {
				q.wg.Done()
			}
			delete(q.timers, key)
		}
	}
	q.mu.Unlock()
	q.cancel()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "wait for local jobs")
	}
}

func (q *LocalQueue) pruneLocked(now time.Time) {
	for key, at := range q.seen {
		if now.Sub(at) > localDedupWindow {
			delete(q.seen, key)
		}
	}
}

func toPayloadMap(payload any) (map[string]any, error) {
	switch v := payload.(type) {
	case nil:
		return map[string]any{}, nil
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, value := range v {
			out[key] = value
		}
		return out, nil
	}

	raw, err := sonic.Marshal(payload)
	if err != nil {
		return nil, err
	}
	out := make(map[string]any)
	if err := sonic.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// PayloadString reads a string field from a job payload.
func PayloadString(payload map[string]any, key string) string {
	v, _ := payload[key].(string)
	return v
}
