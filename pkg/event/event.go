package event

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// TriggerNotification is the event name published when a token is ready
// for out-of-band delivery by an external notification service.
const TriggerNotification = "TRIGGER_NOTIFICATION"

// Property keys carried by TriggerNotification events.
const (
	PropertyUsername     = "username"
	PropertyUserStore    = "userstore-domain"
	PropertyTenant       = "tenant-domain"
	PropertySendTo       = "send-to"
	PropertyTemplateType = "TEMPLATE_TYPE"
	PropertyToken        = "otpToken"
)

// TemplateTypeOTP selects the notification template for token delivery.
const TemplateTypeOTP = "otp"

var (
	// ErrMissingName is returned when publishing an event without a name.
	ErrMissingName = errors.New("event: name is required")
	// ErrMissingDestination is returned when a publisher has no subject or channel.
	ErrMissingDestination = errors.New("event: destination is required")
)

// Event is a named bag of properties handed to a message broker.
type Event struct {
	ID         uuid.UUID      `json:"id"`
	Name       string         `json:"name"`
	Properties map[string]any `json:"properties,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// New returns an Event with a fresh ID stamped at the current time.
func New(name string, props map[string]any) Event {
	return Event{
		ID:         uuid.New(),
		Name:       name,
		Properties: props,
		OccurredAt: time.Now().UTC(),
	}
}

func (e Event) marshal() ([]byte, error) {
	if e.Name == "" {
		return nil, ErrMissingName
	}
	return json.Marshal(e)
}
