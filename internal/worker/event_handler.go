package worker

import (
	"fmt"

	"billtrack/internal/amqp"
	"billtrack/internal/log"
)

// EventHandler decodes messages from the bill exchange and hands them to
// the configured callbacks. Nil callbacks only log.
type EventHandler struct {
	OnBillEvent func(*amqp.BillEvent)
	OnReminder  func(*amqp.ReminderMessage)

	logger *log.Logger
}

func NewEventHandler(logger *log.Logger) *EventHandler {
	if logger == nil {
		logger = log.Discard()
	}
	return &EventHandler{logger: logger.WithComponent(log.ComponentWorker)}
}

// Handle matches the amqp.Client.Consume handler signature. Undecodable
// bodies are reported as amqp.ErrMalformed so they are not redelivered.
func (h *EventHandler) Handle(routingKey string, body []byte) error {
	switch routingKey {
	case amqp.RoutingBillEvent:
		ev, err := amqp.BillEventFromJSON(body)
		if err != nil {
			return fmt.Errorf("%w: bill event: %v", amqp.ErrMalformed, err)
		}
		h.logger.Info("Bill event received",
			"type", string(ev.Type),
			log.FieldBillID, ev.BillID,
			log.FieldBackend, ev.Backend)
		if h.OnBillEvent != nil {
			h.OnBillEvent(ev)
		}
	case amqp.RoutingReminder:
		r, err := amqp.ReminderMessageFromJSON(body)
		if err != nil {
			return fmt.Errorf("%w: reminder: %v", amqp.ErrMalformed, err)
		}
		h.logger.Info("Reminder received", "kind", r.Kind, log.FieldBillID, r.BillID, "message", r.Message)
		if h.OnReminder != nil {
			h.OnReminder(r)
		}
	default:
		h.logger.Warn("Ignoring message with unknown routing key", "routing_key", routingKey)
	}
	return nil
}
