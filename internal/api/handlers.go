package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/cookaing/campaign-engine/internal/config"
	"github.com/cookaing/campaign-engine/internal/domain"
	"github.com/cookaing/campaign-engine/internal/email"
	"github.com/cookaing/campaign-engine/internal/personalize"
	"github.com/cookaing/campaign-engine/internal/pkg/httputil"
	"github.com/cookaing/campaign-engine/internal/pkg/logger"
	"github.com/cookaing/campaign-engine/internal/store"
	"github.com/cookaing/campaign-engine/internal/tracking"
)

// CampaignStore is the persistence surface the handlers need.
type CampaignStore interface {
	GetCampaign(ctx context.Context, campaignID int) (*domain.Campaign, error)
	GetArtifact(ctx context.Context, campaignID int, variant string) (*domain.CampaignArtifact, error)
	GetSegments(ctx context.Context, orgID int, segmentIDs []int) ([]*domain.Segment, error)
	ResolveRecipients(ctx context.Context, orgID int, segmentIDs []int) ([]*domain.Contact, error)
	RecordSendResult(ctx context.Context, campaignID int, contact *domain.Contact, variant string, outcome domain.SendOutcome) error
	UpdateCampaignStatus(ctx context.Context, campaignID int, status domain.CampaignStatus) error
	FindRecipient(ctx context.Context, email, messageID string) (*domain.CampaignRecipient, error)
	RecordEvent(ctx context.Context, campaignID, contactID int, variant string, eventType domain.EventType, metadata map[string]string) error
}

// MessageSender is the provider-chain surface the handlers need.
type MessageSender interface {
	Send(ctx context.Context, msg email.Message) (domain.SendOutcome, error)
	Providers() []string
}

// EventDeduper suppresses redelivered webhook events. A claimed identity
// must be forgotten when the event fails to persist, so the provider's
// retry still gets recorded.
type EventDeduper interface {
	Seen(ctx context.Context, messageID, eventType string) bool
	Forget(ctx context.Context, messageID, eventType string)
}

// LockFactory builds a per-campaign send lock. Nil disables locking, which
// tests and single-instance deployments without redis can live with.
type LockFactory func(campaignID int) store.SendLock

// Handlers carries the wired dependencies for the HTTP surface.
type Handlers struct {
	store      CampaignStore
	dispatcher MessageSender
	signer     *tracking.Signer
	renderer   *personalize.Renderer
	dedup      EventDeduper
	locks      LockFactory
	defaults   config.SenderConfig
}

// NewHandlers wires the HTTP handlers.
func NewHandlers(st CampaignStore, dispatcher MessageSender, signer *tracking.Signer, renderer *personalize.Renderer, dedup EventDeduper, locks LockFactory, defaults config.SenderConfig) *Handlers {
	return &Handlers{
		store:      st,
		dispatcher: dispatcher,
		signer:     signer,
		renderer:   renderer,
		dedup:      dedup,
		locks:      locks,
		defaults:   defaults,
	}
}

// HealthCheck reports service liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"service":   "campaign-engine",
		"providers": h.dispatcher.Providers(),
		"time":      time.Now().UTC().Format(time.RFC3339),
	})
}

type sendRequest struct {
	CampaignID int    `json:"campaignId"`
	Variant    string `json:"variant"`
	SegmentIDs []int  `json:"segmentIds"`
	DryRun     bool   `json:"dryRun"`
}

type sendError struct {
	Email string `json:"email"`
	Error string `json:"error"`
}

type sendResults struct {
	Sent   int         `json:"sent"`
	Failed int         `json:"failed"`
	Errors []sendError `json:"errors"`
}

// SendCampaign resolves a campaign's audience and either previews it
// (dryRun) or personalizes, signs and dispatches one email per recipient.
// Recipients are processed sequentially; a failed recipient is recorded and
// the loop continues.
func (h *Handlers) SendCampaign(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.BadRequest(w, "invalid request body")
		return
	}
	if req.CampaignID <= 0 {
		httputil.BadRequest(w, "campaignId is required")
		return
	}

	campaign, err := h.store.GetCampaign(ctx, req.CampaignID)
	if err != nil {
		httputil.ServerError(w, "failed to load campaign")
		return
	}
	if campaign == nil {
		httputil.NotFound(w, "campaign "+strconv.Itoa(req.CampaignID)+" not found")
		return
	}

	if len(req.SegmentIDs) > 0 {
		segments, err := h.store.GetSegments(ctx, campaign.OrgID, req.SegmentIDs)
		if err != nil {
			httputil.ServerError(w, "failed to load segments")
			return
		}
		if len(segments) != len(req.SegmentIDs) {
			httputil.BadRequest(w, "unknown segment id")
			return
		}
	}

	recipients, err := h.store.ResolveRecipients(ctx, campaign.OrgID, req.SegmentIDs)
	if err != nil {
		httputil.ServerError(w, "failed to resolve recipients")
		return
	}

	if req.DryRun {
		previews := make([]string, 0, 5)
		for _, c := range recipients {
			if len(previews) == 5 {
				break
			}
			previews = append(previews, c.Email)
		}
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"success":           true,
			"dryRun":            true,
			"recipients":        len(recipients),
			"previewRecipients": previews,
		})
		return
	}

	if len(h.dispatcher.Providers()) == 0 {
		httputil.ServerError(w, "no email provider configured")
		return
	}

	artifact, err := h.store.GetArtifact(ctx, req.CampaignID, req.Variant)
	if err != nil {
		httputil.ServerError(w, "failed to load campaign content")
		return
	}
	if artifact == nil {
		httputil.NotFound(w, "campaign content not found")
		return
	}

	if h.locks != nil {
		lock := h.locks(req.CampaignID)
		claimed, err := lock.Acquire(ctx)
		if err != nil {
			logger.Warn("send lock unavailable, proceeding unlocked",
				"campaign_id", req.CampaignID, "error", err.Error())
		} else if !claimed {
			httputil.Error(w, http.StatusConflict, "campaign send already in progress")
			return
		} else {
			defer lock.Release(ctx)
		}
	}

	if err := h.store.UpdateCampaignStatus(ctx, campaign.ID, domain.CampaignSending); err != nil {
		logger.Warn("failed to mark campaign sending", "campaign_id", campaign.ID, "error", err.Error())
	}

	results := sendResults{Errors: []sendError{}}
	for _, contact := range recipients {
		if !domain.ValidateEmail(contact.Email) {
			outcome := domain.SendOutcome{Success: false, Error: "invalid email address"}
			if err := h.store.RecordSendResult(ctx, campaign.ID, contact, req.Variant, outcome); err != nil {
				logger.Error("failed to record send result", "campaign_id", campaign.ID, "error", err.Error())
			}
			results.Failed++
			results.Errors = append(results.Errors, sendError{Email: contact.Email, Error: outcome.Error})
			continue
		}
		outcome := h.sendOne(ctx, campaign, artifact, contact, req.Variant)
		if outcome.Success {
			results.Sent++
		} else {
			results.Failed++
			results.Errors = append(results.Errors, sendError{Email: contact.Email, Error: outcome.Error})
		}
	}

	finalStatus := domain.CampaignSent
	if results.Sent == 0 && results.Failed > 0 {
		finalStatus = domain.CampaignFailed
	}
	if err := h.store.UpdateCampaignStatus(ctx, campaign.ID, finalStatus); err != nil {
		logger.Warn("failed to finalize campaign status", "campaign_id", campaign.ID, "error", err.Error())
	}

	logger.Info("campaign send complete", "campaign_id", campaign.ID,
		"sent", results.Sent, "failed", results.Failed)

	httputil.JSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"campaign": map[string]interface{}{
			"id":      campaign.ID,
			"name":    campaign.Name,
			"variant": req.Variant,
		},
		"results": results,
	})
}

func (h *Handlers) sendOne(ctx context.Context, campaign *domain.Campaign, artifact *domain.CampaignArtifact, contact *domain.Contact, variant string) domain.SendOutcome {
	bindings := personalize.ContactBindings(*contact)

	subject, err := h.renderer.Render(campaign.Subject, bindings)
	if err != nil {
		logger.Warn("subject personalization failed", "campaign_id", campaign.ID, "error", err.Error())
	}
	html, err := h.renderer.Render(artifact.HTMLContent, bindings)
	if err != nil {
		logger.Warn("content personalization failed", "campaign_id", campaign.ID, "error", err.Error())
	}

	html = h.signer.SignHTML(html, contact.ID, campaign.ID, variant)
	html = h.signer.InjectOpenPixel(html, contact.ID, campaign.ID, variant)

	fromEmail, fromName := campaign.FromEmail, campaign.FromName
	if fromEmail == "" {
		fromEmail = h.defaults.FromEmail
	}
	if fromName == "" {
		fromName = h.defaults.FromName
	}

	outcome, err := h.dispatcher.Send(ctx, email.Message{
		To:        contact.Email,
		FromEmail: fromEmail,
		FromName:  fromName,
		Subject:   subject,
		HTML:      html,
		Text:      artifact.TextContent,
	})
	if err != nil && outcome.Error == "" {
		outcome.Error = err.Error()
	}

	if recErr := h.store.RecordSendResult(ctx, campaign.ID, contact, variant, outcome); recErr != nil {
		logger.Error("failed to record send result", "campaign_id", campaign.ID, "error", recErr.Error())
	}
	if outcome.Success {
		meta := map[string]string{"provider": outcome.Provider}
		if outcome.MessageID != "" {
			meta["messageId"] = outcome.MessageID
		}
		if recErr := h.store.RecordEvent(ctx, campaign.ID, contact.ID, variant, domain.EventSent, meta); recErr != nil {
			logger.Error("failed to record sent event", "campaign_id", campaign.ID, "error", recErr.Error())
		}
	}
	return outcome
}
