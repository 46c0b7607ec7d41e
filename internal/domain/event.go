package domain

import "time"

// EventType enumerates the types of email lifecycle events.
type EventType string

const (
	EventSent        EventType = "sent"
	EventDelivered   EventType = "delivered"
	EventOpen        EventType = "open"
	EventClick       EventType = "click"
	EventBounce      EventType = "bounce"
	EventComplaint   EventType = "complaint"
	EventUnsubscribe EventType = "unsubscribe"
)

// AnalyticsEvent is a persisted record of an email lifecycle occurrence
// tied to a contact and campaign.
type AnalyticsEvent struct {
	ID         string            `json:"id" db:"id"`
	OrgID      int               `json:"org_id" db:"org_id"`
	CampaignID int               `json:"campaign_id" db:"campaign_id"`
	ContactID  int               `json:"contact_id" db:"contact_id"`
	Variant    string            `json:"variant,omitempty" db:"variant"`
	EventType  EventType         `json:"event_type" db:"event_type"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at" db:"created_at"`
}

// SendOutcome is the per-recipient result of one send attempt. Failures are
// not retried automatically; they are aggregated and reported to the caller.
type SendOutcome struct {
	Provider  string `json:"provider"`
	MessageID string `json:"messageId,omitempty"`
	Success   bool   `json:"success"`
	Error     string `json:"error,omitempty"`
}
