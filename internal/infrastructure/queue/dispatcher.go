package queue

import (
	"context"
	"hash/fnv"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/learnhub/account-service/internal/api/metrics"
	"github.com/learnhub/account-service/internal/core/ports"
)

const (
	defaultWorkers = 4
	channelBuffer  = 256
)

// Dispatcher routes reset notifications to a fixed set of workers using
// consistent hashing on the user id, so notifications for one user are sent
// in the order they were issued.
type Dispatcher struct {
	workers []chan ports.ResetNotification
	mailer  ports.ResetMailer
	log     zerolog.Logger
	wg      sync.WaitGroup
}

// NewDispatcher creates a Dispatcher with numWorkers sharded workers.
// If numWorkers <= 0, defaultWorkers is used.
func NewDispatcher(numWorkers int, mailer ports.ResetMailer, log zerolog.Logger) *Dispatcher {
	if numWorkers <= 0 {
		numWorkers = defaultWorkers
	}
	d := &Dispatcher{
		workers: make([]chan ports.ResetNotification, numWorkers),
		mailer:  mailer,
		log:     log,
	}
	for i := range d.workers {
		d.workers[i] = make(chan ports.ResetNotification, channelBuffer)
	}
	return d
}

// Start launches all worker goroutines. Workers stop when ctx is cancelled;
// Wait blocks until they have returned.
func (d *Dispatcher) Start(ctx context.Context) {
	for i, ch := range d.workers {
		d.wg.Add(1)
		go d.runWorker(ctx, i, ch)
	}
}

func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Enqueue hands a notification to the worker responsible for its user.
// When that worker's buffer is full the notification is dropped and logged;
// the reset request itself is already persisted, so the user can ask again.
func (d *Dispatcher) Enqueue(n ports.ResetNotification) {
	idx := d.shardIndex(n.UserID)
	select {
	case d.workers[idx] <- n:
		metrics.NotifyQueueDepth.WithLabelValues(strconv.Itoa(idx)).Set(float64(len(d.workers[idx])))
	default:
		d.log.Warn().
			Str("user_id", n.UserID).
			Int("worker_id", idx).
			Msg("notification queue full, dropping reset notification")
	}
}

// shardIndex maps a user id deterministically to a worker index.
func (d *Dispatcher) shardIndex(userID string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(userID))
	return int(h.Sum32() % uint32(len(d.workers)))
}

func (d *Dispatcher) runWorker(ctx context.Context, id int, ch <-chan ports.ResetNotification) {
	defer d.wg.Done()
	label := strconv.Itoa(id)
	for {
		select {
		case <-ctx.Done():
			return
		case n := <-ch:
			metrics.NotifyQueueDepth.WithLabelValues(label).Set(float64(len(ch)))

			start := time.Now()
			err := d.mailer.Send(ctx, n)
			result := "sent"
			if err != nil {
				result = "error"
				d.log.Error().Err(err).
					Str("user_id", n.UserID).
					Int("worker_id", id).
					Msg("reset notification failed")
			}
			metrics.NotifyDuration.WithLabelValues(result).Observe(time.Since(start).Seconds())
		}
	}
}
