package domain

import "time"

// CampaignStatus enumerates the lifecycle states of a campaign.
type CampaignStatus string

const (
	CampaignDraft   CampaignStatus = "draft"
	CampaignSending CampaignStatus = "sending"
	CampaignSent    CampaignStatus = "sent"
	CampaignFailed  CampaignStatus = "failed"
)

// Campaign represents a named content-send unit, optionally split into
// variants for A/B comparison.
type Campaign struct {
	ID        int            `json:"id" db:"id"`
	OrgID     int            `json:"org_id" db:"org_id"`
	Name      string         `json:"name" db:"name"`
	Subject   string         `json:"subject" db:"subject"`
	FromEmail string         `json:"from_email" db:"from_email"`
	FromName  string         `json:"from_name" db:"from_name"`
	Status    CampaignStatus `json:"status" db:"status"`
	CreatedAt time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt time.Time      `json:"updated_at" db:"updated_at"`
}

// CampaignArtifact is the renderable content of a campaign for one variant.
// The empty variant is the campaign's default content.
type CampaignArtifact struct {
	ID          int    `json:"id" db:"id"`
	CampaignID  int    `json:"campaign_id" db:"campaign_id"`
	Variant     string `json:"variant" db:"variant"`
	HTMLContent string `json:"html_content" db:"html_content"`
	TextContent string `json:"text_content" db:"text_content"`
}

// RecipientStatus enumerates per-recipient delivery states.
type RecipientStatus string

const (
	RecipientPending      RecipientStatus = "pending"
	RecipientSent         RecipientStatus = "sent"
	RecipientDelivered    RecipientStatus = "delivered"
	RecipientBounced      RecipientStatus = "bounced"
	RecipientComplained   RecipientStatus = "complained"
	RecipientUnsubscribed RecipientStatus = "unsubscribed"
	RecipientFailed       RecipientStatus = "failed"
)

// CampaignRecipient tracks one contact's send state within one campaign.
type CampaignRecipient struct {
	ID          int             `json:"id" db:"id"`
	CampaignID  int             `json:"campaign_id" db:"campaign_id"`
	ContactID   int             `json:"contact_id" db:"contact_id"`
	Email       string          `json:"email" db:"email"`
	Variant     string          `json:"variant" db:"variant"`
	Status      RecipientStatus `json:"status" db:"status"`
	Provider    string          `json:"provider" db:"provider"`
	MessageID   string          `json:"message_id" db:"message_id"`
	OpenCount   int             `json:"open_count" db:"open_count"`
	ClickCount  int             `json:"click_count" db:"click_count"`
	SentAt      *time.Time      `json:"sent_at" db:"sent_at"`
	DeliveredAt *time.Time      `json:"delivered_at" db:"delivered_at"`
	LastOpenAt  *time.Time      `json:"last_open_at" db:"last_open_at"`
	LastClickAt *time.Time      `json:"last_click_at" db:"last_click_at"`
}
