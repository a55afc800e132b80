package webhook

import (
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// EventKind is the dispatch key for inbound provider events. Unknown event
// types map to EventUnhandled, which is acknowledged as a no-op so that
// provider-side additions never break delivery.
type EventKind int

const (
	EventUnhandled EventKind = iota
	EventSubscriptionUpdated
	EventSubscriptionDeleted
	EventTrialWillEnd
	EventChargeSucceeded
	EventChargeFailed
	EventChargePending
)

func (k EventKind) String() string {
	switch k {
	case EventSubscriptionUpdated:
		return "CustomerSubscriptionUpdated"
	case EventSubscriptionDeleted:
		return "CustomerSubscriptionDeleted"
	case EventTrialWillEnd:
		return "CustomerSubscriptionTrialWillEnd"
	case EventChargeSucceeded:
		return "ChargeSucceeded"
	case EventChargeFailed:
		return "ChargeFailed"
	case EventChargePending:
		return "ChargePending"
	default:
		return "Unhandled"
	}
}

// ParseEventType maps a provider event type string to its kind. Separator
// style (`.` vs `_`) and casing do not matter.
func ParseEventType(eventType string) EventKind {
	normalized := strings.ToLower(eventType)
	normalized = strings.ReplaceAll(normalized, ".", "")
	normalized = strings.ReplaceAll(normalized, "_", "")

	switch normalized {
	case "customersubscriptionupdated":
		return EventSubscriptionUpdated
	case "customersubscriptiondeleted":
		return EventSubscriptionDeleted
	case "customersubscriptiontrialwillend":
		return EventTrialWillEnd
	case "chargesucceeded":
		return EventChargeSucceeded
	case "chargefailed":
		return EventChargeFailed
	case "chargepending":
		return EventChargePending
	default:
		return EventUnhandled
	}
}

var ErrMissingEventType = errors.New("webhook payload is missing the event type")

// Event is one inbound provider delivery, already decoded from JSON.
type Event struct {
	ID       string
	Type     string
	Kind     EventKind
	IsMobile bool
	Raw      []byte

	object        eventObject
	receiptDate   string
	mobilePaid    bool
	mobileStatus  string
}

type eventObject struct {
	Customer string `json:"customer"`
	Created  int64  `json:"created"`
	Paid     bool   `json:"paid"`
	Status   string `json:"status"`
}

type rawEvent struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	IsMobile bool   `json:"is_mobile"`
	Data     struct {
		Object eventObject `json:"object"`
	} `json:"data"`

	// Mobile receipt shape carries payment fields at the top level.
	ReceiptCreationDate string `json:"receipt_creation_date"`
	PaidStatus          bool   `json:"paid_status"`
	SubscriptionStatus  string `json:"subscription_status"`
}

// ParseEvent decodes an inbound delivery. A missing type is a validation
// error; an unknown type is not.
func ParseEvent(payload []byte) (*Event, error) {
	var raw rawEvent
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, err
	}
	if strings.TrimSpace(raw.Type) == "" {
		return nil, ErrMissingEventType
	}

	return &Event{
		ID:           strings.TrimSpace(raw.ID),
		Type:         raw.Type,
		Kind:         ParseEventType(raw.Type),
		IsMobile:     raw.IsMobile,
		Raw:          append([]byte(nil), payload...),
		object:       raw.Data.Object,
		receiptDate:  raw.ReceiptCreationDate,
		mobilePaid:   raw.PaidStatus,
		mobileStatus: raw.SubscriptionStatus,
	}, nil
}

// CustomerID returns the provider customer id used to look up the local
// company group.
func (e *Event) CustomerID() string {
	return strings.TrimSpace(e.object.Customer)
}

// PaymentStatus is the payment state extracted from an event. The two source
// shapes (mobile receipts vs provider webhook objects) are normalized here.
type PaymentStatus struct {
	Paid       bool
	ChargeDate *time.Time
	Status     string
}

const receiptDateLayout = "2006-01-02 15:04:05"

// PaymentStatus extracts paid flag, charge date and subscription status,
// branching on the mobile flag to pick field names and formats.
func (e *Event) PaymentStatus() PaymentStatus {
	if e.IsMobile {
		status := PaymentStatus{
			Paid:   e.mobilePaid,
			Status: strings.TrimSpace(e.mobileStatus),
		}
		if t, err := time.ParseInLocation(receiptDateLayout, e.receiptDate, time.Local); err == nil {
			status.ChargeDate = &t
		}
		return status
	}

	status := PaymentStatus{
		Paid:   e.object.Paid,
		Status: strings.TrimSpace(e.object.Status),
	}
	if e.object.Created > 0 {
		t := time.Unix(e.object.Created, 0)
		status.ChargeDate = &t
	}
	return status
}
