// Package store provides postgres persistence for campaigns, contacts,
// recipients and analytics events, plus redis-backed event deduplication.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/cookaing/campaign-engine/internal/domain"
)

// Store provides database operations for campaign entities.
type Store struct {
	db *sql.DB
}

// NewStore creates a new campaign store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetCampaign retrieves a campaign by ID. Returns nil when no row exists.
func (s *Store) GetCampaign(ctx context.Context, campaignID int) (*domain.Campaign, error) {
	query := `SELECT id, org_id, name, subject, from_email, from_name, status, created_at, updated_at
		FROM campaigns WHERE id = $1`

	c := &domain.Campaign{}
	err := s.db.QueryRowContext(ctx, query, campaignID).Scan(
		&c.ID, &c.OrgID, &c.Name, &c.Subject, &c.FromEmail, &c.FromName,
		&c.Status, &c.CreatedAt, &c.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return c, err
}

// GetArtifact retrieves the campaign content for one variant. The empty
// variant is the default content. Returns nil when no row exists.
func (s *Store) GetArtifact(ctx context.Context, campaignID int, variant string) (*domain.CampaignArtifact, error) {
	query := `SELECT id, campaign_id, variant, html_content, text_content
		FROM campaign_artifacts WHERE campaign_id = $1 AND variant = $2`

	a := &domain.CampaignArtifact{}
	err := s.db.QueryRowContext(ctx, query, campaignID, variant).Scan(
		&a.ID, &a.CampaignID, &a.Variant, &a.HTMLContent, &a.TextContent)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return a, err
}

// GetSegments retrieves the given segments scoped to one organization.
// Requested IDs that do not exist (or belong to another org) are simply
// absent from the result, which callers use to reject unknown segments.
func (s *Store) GetSegments(ctx context.Context, orgID int, segmentIDs []int) ([]*domain.Segment, error) {
	query := `SELECT id, org_id, name, created_at FROM segments
		WHERE org_id = $1 AND id = ANY($2) ORDER BY id`

	rows, err := s.db.QueryContext(ctx, query, orgID, pq.Array(segmentIDs))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var segments []*domain.Segment
	for rows.Next() {
		seg := &domain.Segment{}
		if err := rows.Scan(&seg.ID, &seg.OrgID, &seg.Name, &seg.CreatedAt); err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	return segments, rows.Err()
}

// ResolveRecipients returns the active contacts a campaign should reach.
// With segment IDs it takes the union of the segments' members; without, it
// takes every active contact in the organization. Contacts in multiple
// segments appear once.
func (s *Store) ResolveRecipients(ctx context.Context, orgID int, segmentIDs []int) ([]*domain.Contact, error) {
	var rows *sql.Rows
	var err error

	if len(segmentIDs) == 0 {
		query := `SELECT id, org_id, email, first_name, last_name, status
			FROM contacts WHERE org_id = $1 AND status = 'active' ORDER BY id`
		rows, err = s.db.QueryContext(ctx, query, orgID)
	} else {
		query := `SELECT DISTINCT c.id, c.org_id, c.email, c.first_name, c.last_name, c.status
			FROM contacts c
			JOIN segment_members sm ON sm.contact_id = c.id
			WHERE c.org_id = $1 AND c.status = 'active' AND sm.segment_id = ANY($2)
			ORDER BY c.id`
		rows, err = s.db.QueryContext(ctx, query, orgID, pq.Array(segmentIDs))
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var contacts []*domain.Contact
	for rows.Next() {
		c := &domain.Contact{}
		err := rows.Scan(&c.ID, &c.OrgID, &c.Email, &c.FirstName, &c.LastName, &c.Status)
		if err != nil {
			return nil, err
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

// RecordSendResult persists the outcome of one send attempt as a
// campaign_recipients row. Successful sends get status sent and a sent_at
// timestamp; failures get status failed with the aggregated provider error.
func (s *Store) RecordSendResult(ctx context.Context, campaignID int, contact *domain.Contact, variant string, outcome domain.SendOutcome) error {
	status := domain.RecipientSent
	var sentAt *time.Time
	if outcome.Success {
		now := time.Now()
		sentAt = &now
	} else {
		status = domain.RecipientFailed
	}

	query := `INSERT INTO campaign_recipients
		(campaign_id, contact_id, email, variant, status, provider, message_id, error_message, sent_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (campaign_id, contact_id) DO UPDATE SET
		status = EXCLUDED.status, provider = EXCLUDED.provider,
		message_id = EXCLUDED.message_id, error_message = EXCLUDED.error_message,
		sent_at = EXCLUDED.sent_at`

	_, err := s.db.ExecContext(ctx, query, campaignID, contact.ID, contact.Email,
		variant, status, outcome.Provider, outcome.MessageID, outcome.Error, sentAt)
	return err
}

// UpdateCampaignStatus moves a campaign through its lifecycle.
func (s *Store) UpdateCampaignStatus(ctx context.Context, campaignID int, status domain.CampaignStatus) error {
	query := `UPDATE campaigns SET status = $1, updated_at = NOW() WHERE id = $2`
	_, err := s.db.ExecContext(ctx, query, status, campaignID)
	return err
}

// FindRecipient locates a campaign recipient from webhook identifiers. The
// provider message ID is the strongest match; when absent or unknown the
// most recent send to the email address is used.
func (s *Store) FindRecipient(ctx context.Context, email, messageID string) (*domain.CampaignRecipient, error) {
	if messageID != "" {
		r, err := s.scanRecipient(ctx,
			`SELECT id, campaign_id, contact_id, email, variant, status
			FROM campaign_recipients WHERE message_id = $1`, messageID)
		if err != nil || r != nil {
			return r, err
		}
	}
	if email == "" {
		return nil, nil
	}
	return s.scanRecipient(ctx,
		`SELECT id, campaign_id, contact_id, email, variant, status
		FROM campaign_recipients WHERE email = $1 ORDER BY id DESC LIMIT 1`, email)
}

func (s *Store) scanRecipient(ctx context.Context, query string, arg interface{}) (*domain.CampaignRecipient, error) {
	r := &domain.CampaignRecipient{}
	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&r.ID, &r.CampaignID, &r.ContactID, &r.Email, &r.Variant, &r.Status)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return r, err
}

// RecordEvent persists an analytics event and updates the matching recipient
// row's counters. The organization is resolved from the campaign record so
// events carry the right tenant even when the caller only knows link params.
func (s *Store) RecordEvent(ctx context.Context, campaignID, contactID int, variant string, eventType domain.EventType, metadata map[string]string) error {
	var orgID int
	err := s.db.QueryRowContext(ctx,
		`SELECT org_id FROM campaigns WHERE id = $1`, campaignID).Scan(&orgID)
	if err != nil {
		return err
	}

	ev := domain.AnalyticsEvent{
		ID:         uuid.New().String(),
		OrgID:      orgID,
		CampaignID: campaignID,
		ContactID:  contactID,
		Variant:    variant,
		EventType:  eventType,
		Metadata:   metadata,
		CreatedAt:  time.Now(),
	}

	var meta []byte
	if len(ev.Metadata) > 0 {
		meta, err = json.Marshal(ev.Metadata)
		if err != nil {
			return err
		}
	}

	query := `INSERT INTO analytics_events
		(id, org_id, campaign_id, contact_id, variant, event_type, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err = s.db.ExecContext(ctx, query, ev.ID, ev.OrgID, ev.CampaignID,
		ev.ContactID, ev.Variant, ev.EventType, meta, ev.CreatedAt)
	if err != nil {
		return err
	}

	return s.applyEventToRecipient(ctx, campaignID, contactID, eventType)
}

func (s *Store) applyEventToRecipient(ctx context.Context, campaignID, contactID int, eventType domain.EventType) error {
	var query string
	switch eventType {
	case domain.EventDelivered:
		query = `UPDATE campaign_recipients SET status = 'delivered', delivered_at = NOW()
			WHERE campaign_id = $1 AND contact_id = $2`
	case domain.EventOpen:
		query = `UPDATE campaign_recipients SET open_count = open_count + 1, last_open_at = NOW()
			WHERE campaign_id = $1 AND contact_id = $2`
	case domain.EventClick:
		query = `UPDATE campaign_recipients SET click_count = click_count + 1, last_click_at = NOW()
			WHERE campaign_id = $1 AND contact_id = $2`
	case domain.EventBounce:
		query = `UPDATE campaign_recipients SET status = 'bounced'
			WHERE campaign_id = $1 AND contact_id = $2`
	case domain.EventComplaint:
		query = `UPDATE campaign_recipients SET status = 'complained'
			WHERE campaign_id = $1 AND contact_id = $2`
	case domain.EventUnsubscribe:
		query = `UPDATE campaign_recipients SET status = 'unsubscribed'
			WHERE campaign_id = $1 AND contact_id = $2`
	default:
		return nil
	}
	_, err := s.db.ExecContext(ctx, query, campaignID, contactID)
	if err != nil {
		return err
	}

	// Hard deliverability signals also flip the contact record so future
	// sends skip the address.
	var contactStatus domain.ContactStatus
	switch eventType {
	case domain.EventBounce:
		contactStatus = domain.ContactBounced
	case domain.EventComplaint:
		contactStatus = domain.ContactComplained
	case domain.EventUnsubscribe:
		contactStatus = domain.ContactUnsubscribed
	default:
		return nil
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE contacts SET status = $1, updated_at = NOW() WHERE id = $2`,
		contactStatus, contactID)
	return err
}
