package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"intake/internal/model"

	"golang.org/x/time/rate"
)

var (
	// ErrQueueFull is returned when the dispatcher cannot accept more work.
	ErrQueueFull = errors.New("notification queue is full")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("notification dispatcher is closed")
)

const sendTimeout = 30 * time.Second

type job struct {
	name string
	ref  string
	run  func(ctx context.Context) error
}

// Dispatcher queues notifications and delivers them from a single worker,
// throttled to a fixed rate. Enqueueing never blocks the caller.
type Dispatcher struct {
	next    Notifier
	queue   chan job
	limiter *rate.Limiter
	logger  *slog.Logger

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewDispatcher starts a worker delivering to next. A non-positive
// perSecond disables throttling.
func NewDispatcher(next Notifier, queueSize int, perSecond float64, logger *slog.Logger) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 100
	}
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	d := &Dispatcher{
		next:    next,
		queue:   make(chan job, queueSize),
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.With("component", "dispatcher"),
	}
	d.wg.Add(1)
	go d.worker()
	return d
}

func (d *Dispatcher) enqueue(j job) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- j:
		return nil
	default:
		d.logger.Error("Failed to queue notification: queue is full", "job", j.name, "ref", j.ref)
		return ErrQueueFull
	}
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	d.logger.Info("Starting notification worker.")
	for j := range d.queue {
		if err := d.limiter.Wait(context.Background()); err != nil {
			d.logger.Warn("Rate limiter wait failed", "error", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		if err := j.run(ctx); err != nil {
			d.logger.Error("Notification failed", "job", j.name, "ref", j.ref, "error", err)
		} else {
			d.logger.Debug("Notification delivered", "job", j.name, "ref", j.ref)
		}
		cancel()
	}
	d.logger.Info("Notification worker stopped.")
}

// ApplicationReceived queues the receipt. The application is copied.
func (d *Dispatcher) ApplicationReceived(_ context.Context, app *model.PartnerApplication) error {
	snapshot := *app
	return d.enqueue(job{name: "application_received", ref: app.ID, run: func(ctx context.Context) error {
		return d.next.ApplicationReceived(ctx, &snapshot)
	}})
}

// NotifyStatusChange queues a status notification. The application is copied.
func (d *Dispatcher) NotifyStatusChange(_ context.Context, app *model.PartnerApplication, from, to model.ApplicationStatus) error {
	snapshot := *app
	return d.enqueue(job{name: "status_change", ref: app.ID, run: func(ctx context.Context) error {
		return d.next.NotifyStatusChange(ctx, &snapshot, from, to)
	}})
}

// ContactReceived queues the contact acknowledgement. The message is copied.
func (d *Dispatcher) ContactReceived(_ context.Context, msg *model.ContactMessage) error {
	snapshot := *msg
	return d.enqueue(job{name: "contact_received", ref: msg.ID, run: func(ctx context.Context) error {
		return d.next.ContactReceived(ctx, &snapshot)
	}})
}

// Close stops accepting work and waits until queued notifications are delivered.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()
	d.wg.Wait()
	d.logger.Info("Dispatcher shutdown complete.")
}
