package persistence

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jpillora/backoff"
	"github.com/sirupsen/logrus"

	"github.com/wricardo/warmap/game/grid"
)

const (
	defaultSaveAttempts = 3
	defaultSaveTimeout  = 10 * time.Second
)

// SaverStats counts what an AsyncSaver has done so far
type SaverStats struct {
	Saved      int64 `json:"saved"`
	Failed     int64 `json:"failed"`
	Superseded int64 `json:"superseded"`
}

// AsyncSaver writes snapshots to a Gateway from a background goroutine. At most
// one snapshot is pending; a newer one replaces it. A write in flight is never
// cancelled.
type AsyncSaver struct {
	gateway  Gateway
	log      *logrus.Entry
	attempts int
	minWait  time.Duration
	maxWait  time.Duration
	timeout  time.Duration

	mu      sync.Mutex
	closed  bool
	pending chan grid.Snapshot
	done    chan struct{}
	wg      sync.WaitGroup

	saved      atomic.Int64
	failed     atomic.Int64
	superseded atomic.Int64
}

// SaverOption configures an AsyncSaver
type SaverOption func(*AsyncSaver)

// WithAttempts sets how many times a snapshot is tried before it is dropped
func WithAttempts(n int) SaverOption {
	return func(s *AsyncSaver) {
		if n > 0 {
			s.attempts = n
		}
	}
}

// WithBackoff sets the wait bounds between attempts
func WithBackoff(min, max time.Duration) SaverOption {
	return func(s *AsyncSaver) {
		s.minWait = min
		s.maxWait = max
	}
}

// WithSaveTimeout bounds a single attempt
func WithSaveTimeout(d time.Duration) SaverOption {
	return func(s *AsyncSaver) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithLogger sets the logger used for save results
func WithLogger(log *logrus.Entry) SaverOption {
	return func(s *AsyncSaver) {
		if log != nil {
			s.log = log
		}
	}
}

// NewAsyncSaver starts a saver writing to g
func NewAsyncSaver(g Gateway, opts ...SaverOption) *AsyncSaver {
	s := &AsyncSaver{
		gateway:  g,
		log:      logrus.NewEntry(logrus.StandardLogger()),
		attempts: defaultSaveAttempts,
		minWait:  200 * time.Millisecond,
		maxWait:  5 * time.Second,
		timeout:  defaultSaveTimeout,
		pending:  make(chan grid.Snapshot, 1),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.wg.Add(1)
	go s.run()
	return s
}

// Save queues snap for writing and returns immediately
func (s *AsyncSaver) Save(snap grid.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		s.log.Warn("save requested after saver was closed; dropping snapshot")
		return
	}

	select {
	case <-s.pending:
		s.superseded.Add(1)
	default:
	}
	s.pending <- snap
}

// Close writes any pending snapshot and stops the background goroutine
func (s *AsyncSaver) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.done)
	s.mu.Unlock()

	s.wg.Wait()
}

// Stats returns the saver's counters
func (s *AsyncSaver) Stats() SaverStats {
	return SaverStats{
		Saved:      s.saved.Load(),
		Failed:     s.failed.Load(),
		Superseded: s.superseded.Load(),
	}
}

func (s *AsyncSaver) run() {
	defer s.wg.Done()
	for {
		select {
		case snap := <-s.pending:
			s.write(snap)
		case <-s.done:
			select {
			case snap := <-s.pending:
				s.write(snap)
			default:
			}
			return
		}
	}
}

func (s *AsyncSaver) write(snap grid.Snapshot) {
	state := grid.ToPersisted(snap)
	b := &backoff.Backoff{
		Min:    s.minWait,
		Max:    s.maxWait,
		Factor: 2,
		Jitter: true,
	}

	for attempt := 1; attempt <= s.attempts; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		err := s.gateway.Save(ctx, state)
		cancel()
		if err == nil {
			s.saved.Add(1)
			s.log.WithField("attempt", attempt).Debug("map saved")
			return
		}

		entry := s.log.WithError(err).WithFields(logrus.Fields{
			"attempt":  attempt,
			"attempts": s.attempts,
		})
		if attempt == s.attempts {
			s.failed.Add(1)
			entry.Error("map save failed; giving up")
			return
		}
		wait := b.Duration()
		entry.WithField("retry_in", wait).Warn("map save failed; retrying")
		time.Sleep(wait)
	}
}
