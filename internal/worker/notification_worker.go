package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/repairdesk/repair-service/internal/events"
)

// EventHandler reacts to domain events.
type EventHandler interface {
	EventTypes() []events.EventType
	Handle(ctx context.Context, event events.Event) error
}

// NotificationWorker takes notification work off the request path: the
// dispatcher subscription only enqueues, and a single goroutine runs the handler.
type NotificationWorker struct {
	handler       EventHandler
	queue         chan events.Event
	logger        *zap.Logger
	handleTimeout time.Duration

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewNotificationWorker builds a worker with the given queue capacity.
func NewNotificationWorker(handler EventHandler, size int, logger *zap.Logger) *NotificationWorker {
	if size <= 0 {
		size = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &NotificationWorker{
		handler:       handler,
		queue:         make(chan events.Event, size),
		logger:        logger,
		handleTimeout: 10 * time.Second,
	}
}

// Attach subscribes the worker to every event type its handler understands.
func (w *NotificationWorker) Attach(d events.Dispatcher) {
	for _, t := range w.handler.EventTypes() {
		d.Subscribe(t, w.enqueue)
	}
}

func (w *NotificationWorker) enqueue(_ context.Context, event events.Event) error {
	select {
	case w.queue <- event:
		return nil
	default:
		w.logger.Warn("notification queue full; dropping event",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID))
		return nil
	}
}

// Start launches the handling loop.
func (w *NotificationWorker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for event := range w.queue {
			w.handle(event)
		}
	}()
}

// Stop closes the queue and waits for queued events to be handled. Events
// published after Stop panic on the closed channel, so stop the HTTP server first.
func (w *NotificationWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.queue)
	})
	w.wg.Wait()
}

func (w *NotificationWorker) handle(event events.Event) {
	ctx, cancel := context.WithTimeout(context.Background(), w.handleTimeout)
	defer cancel()
	if err := w.handler.Handle(ctx, event); err != nil {
		w.logger.Warn("notification failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}
