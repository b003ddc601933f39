package worker

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/repairdesk/repair-service/internal/mail"
)

// ErrQueueFull is returned when the mail queue cannot accept more messages.
var ErrQueueFull = errors.New("mail queue full")

// Sender delivers a composed message.
type Sender interface {
	Send(ctx context.Context, msg mail.Message) error
}

// MailWorker drains a bounded queue of outgoing mail on a single goroutine.
// A nil sender logs and drops every message.
type MailWorker struct {
	sender      Sender
	queue       chan mail.Message
	logger      *zap.Logger
	sendTimeout time.Duration

	wg       sync.WaitGroup
	stopOnce sync.Once
}

// NewMailWorker builds a worker with the given queue capacity.
func NewMailWorker(sender Sender, size int, logger *zap.Logger) *MailWorker {
	if size <= 0 {
		size = 1
	}
	return &MailWorker{
		sender:      sender,
		queue:       make(chan mail.Message, size),
		logger:      logger,
		sendTimeout: 30 * time.Second,
	}
}

// Enqueue hands msg to the worker without blocking.
func (w *MailWorker) Enqueue(msg mail.Message) error {
	select {
	case w.queue <- msg:
		return nil
	default:
		w.logger.Warn("mail queue full; dropping message", zap.String("subject", msg.Subject))
		return ErrQueueFull
	}
}

// Start launches the delivery loop.
func (w *MailWorker) Start() {
	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		for msg := range w.queue {
			w.deliver(msg)
		}
	}()
}

// Stop closes the queue and waits until queued mail is handled.
func (w *MailWorker) Stop() {
	w.stopOnce.Do(func() {
		close(w.queue)
	})
	w.wg.Wait()
}

func (w *MailWorker) deliver(msg mail.Message) {
	if w.sender == nil {
		w.logger.Info("email delivery disabled; dropping message",
			zap.Strings("to", msg.To),
			zap.String("subject", msg.Subject))
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), w.sendTimeout)
	defer cancel()
	if err := w.sender.Send(ctx, msg); err != nil {
		w.logger.Error("email delivery failed",
			zap.Strings("to", msg.To),
			zap.String("subject", msg.Subject),
			zap.Error(err))
		return
	}
	w.logger.Info("email sent", zap.Strings("to", msg.To), zap.String("subject", msg.Subject))
}
