package amqp

import (
	"encoding/json"
	"fmt"
	"time"

	"billtrack/internal/core"
)

// Routing keys on the topic exchange.
const (
	RoutingBillEvent = "bill.event"
	RoutingReminder  = "bill.reminder"
)

type EventType string

const (
	EventCreated  EventType = "created"
	EventUpdated  EventType = "updated"
	EventPaid     EventType = "paid"
	EventDeleted  EventType = "deleted"
	EventExported EventType = "exported"
)

// BillEvent announces a change to a bill. Bill is absent for deletions and exports.
type BillEvent struct {
	Type      EventType  `json:"type"`
	BillID    string     `json:"billId,omitempty"`
	Bill      *core.Bill `json:"bill,omitempty"`
	Backend   string     `json:"backend"`
	Count     int        `json:"count,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// NewBillEvent stamps an event for b. backend is "local" when no adapter is connected.
func NewBillEvent(typ EventType, b core.Bill, backend string) *BillEvent {
	return &BillEvent{
		Type:      typ,
		BillID:    b.ID,
		Bill:      &b,
		Backend:   backend,
		Timestamp: time.Now(),
	}
}

func (m *BillEvent) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func BillEventFromJSON(data []byte) (*BillEvent, error) {
	var msg BillEvent
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.Type == "" {
		return nil, fmt.Errorf("bill event without type")
	}
	return &msg, nil
}

// ReminderMessage is one due reminder for one bill.
type ReminderMessage struct {
	Kind      string    `json:"kind"`
	BillID    string    `json:"billId"`
	Name      string    `json:"name"`
	Amount    string    `json:"amount"`
	DueDate   string    `json:"dueDate"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

func (m *ReminderMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

func ReminderMessageFromJSON(data []byte) (*ReminderMessage, error) {
	var msg ReminderMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
