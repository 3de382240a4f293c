package event

import (
	"context"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
)

type worker struct {
	mu            sync.RWMutex
	subscriptions map[string][]func(event Queueable)
}

var (
	instance = &worker{
		subscriptions: map[string][]func(event Queueable){},
	}
	l = log.WithField("context", "event_worker")
)

// Subscribe registers a handler for the given event type. Handlers run on the
// worker goroutine, one event at a time.
func Subscribe(eventType string, handler func(event Queueable)) {
	instance.mu.Lock()
	defer instance.mu.Unlock()
	instance.subscriptions[eventType] = append(instance.subscriptions[eventType], handler)
}

func RunWorker() context.CancelFunc {
	ctx, cancelFunc := context.WithCancel(context.Background())
	instance.Run(ctx)
	return cancelFunc
}

func (w *worker) Run(ctx context.Context) {
	done := ctx.Done()

	go func() {
		l.Trace("events runner go")
		var event Queueable
		for {
			select {
			case <-done:
				l.Info("shutting down event worker by cancelled context")
				return
			default:
				time.Sleep(1 * time.Millisecond)
				event = Bus.dequeue()
				if event == nil {
					continue
				}

				if event.Expired() {
					continue
				}

				w.mu.RLock()
				subscribers, ok := w.subscriptions[event.Type()]
				w.mu.RUnlock()
				if !ok {
					Bus.Enqueue(event)
					continue
				}
				for _, sub := range subscribers {
					sub(event)
					if event.IsDropped() {
						break
					}
				}

				if event.IsDropped() {
					continue
				}
				if !event.IsProcessed() {
					Bus.Enqueue(event)
				}
			}
		}
	}()
}
