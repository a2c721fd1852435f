package mailer

import (
	"context"

	log "github.com/sirupsen/logrus"
)

// queue decouples the moderation transitions from delivery latency: handlers
// enqueue after their state change is committed and the worker drains the
// channel in the background.
var queue = make(chan Message, 256)

// Enqueue hands a message to the delivery worker without blocking. A full
// queue drops the message with a warning; notifications never stall or fail
// the primary operation.
func Enqueue(msg Message) {
	if msg.To == "" {
		return
	}
	select {
	case queue <- msg:
	default:
		log.WithFields(log.Fields{"to": msg.To, "subject": msg.Subject}).
			Warn("mail queue full, dropping notification")
	}
}

// StartWorker launches the single delivery goroutine. It drains the queue
// until ctx is cancelled.
func StartWorker(ctx context.Context) {
	go func() {
		log.Info("mail worker started")
		for {
			select {
			case msg := <-queue:
				if err := send(msg); err != nil {
					log.WithError(err).WithFields(log.Fields{"to": msg.To, "subject": msg.Subject}).
						Warn("mail delivery failed")
				}
			case <-ctx.Done():
				log.Info("mail worker stopping")
				return
			}
		}
	}()
}
