package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/cookaing/campaign-engine/internal/domain"
	"github.com/cookaing/campaign-engine/internal/pkg/httputil"
	"github.com/cookaing/campaign-engine/internal/pkg/logger"
)

// brevoEvent is the payload Brevo posts per event. Field names follow the
// provider's webhook format, message-id included.
type brevoEvent struct {
	Event     string `json:"event"`
	Email     string `json:"email"`
	MessageID string `json:"message-id"`
	Reason    string `json:"reason"`
	Link      string `json:"link"`
	TS        int64  `json:"ts"`
}

// brevoEventTypes maps provider event names onto internal event types.
// Blocked addresses count as bounces, spam reports as complaints. Includes
// the provider's current names alongside the legacy ones some accounts
// still emit.
var brevoEventTypes = map[string]domain.EventType{
	"delivered":     domain.EventDelivered,
	"opens":         domain.EventOpen,
	"opened":        domain.EventOpen,
	"unique_opened": domain.EventOpen,
	"clicks":        domain.EventClick,
	"click":         domain.EventClick,
	"bounce":        domain.EventBounce,
	"hard_bounce":   domain.EventBounce,
	"soft_bounce":   domain.EventBounce,
	"blocked":       domain.EventBounce,
	"spam":          domain.EventComplaint,
	"unsubscribed":  domain.EventUnsubscribe,
}

// BrevoWebhook ingests delivery events from Brevo and attributes them to
// campaign recipients. Unknown event types are acknowledged and dropped so
// the provider does not redeliver them forever.
func (h *Handlers) BrevoWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	r.Body = http.MaxBytesReader(w, r.Body, 1*1024*1024)

	var ev brevoEvent
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		httputil.BadRequest(w, "invalid webhook payload")
		return
	}

	eventType, known := brevoEventTypes[ev.Event]
	if !known {
		logger.Debug("ignoring unknown webhook event", "event", ev.Event)
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"received": true,
			"ignored":  true,
		})
		return
	}

	dedupKey := ev.MessageID
	if dedupKey == "" {
		dedupKey = fmt.Sprintf("%s:%d", ev.Email, ev.TS)
	}
	if h.dedup != nil && h.dedup.Seen(ctx, dedupKey, ev.Event) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"received":  true,
			"duplicate": true,
		})
		return
	}

	recipient, err := h.store.FindRecipient(ctx, ev.Email, ev.MessageID)
	if err != nil {
		httputil.ServerError(w, "failed to look up recipient")
		return
	}
	if recipient == nil {
		logger.Warn("webhook event for unknown recipient",
			"event", ev.Event, "email", ev.Email, "message_id", ev.MessageID)
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"received": true,
			"matched":  false,
		})
		return
	}

	metadata := map[string]string{"source": "brevo"}
	if ev.MessageID != "" {
		metadata["messageId"] = ev.MessageID
	}
	if ev.Reason != "" {
		metadata["reason"] = ev.Reason
	}
	if ev.Link != "" {
		metadata["link"] = ev.Link
	}

	err = h.store.RecordEvent(ctx, recipient.CampaignID, recipient.ContactID,
		recipient.Variant, eventType, metadata)
	if err != nil {
		// The claim above marked this event as handled; give it back so the
		// provider's retry is not swallowed as a duplicate.
		if h.dedup != nil {
			h.dedup.Forget(ctx, dedupKey, ev.Event)
		}
		logger.Error("failed to record webhook event",
			"event", ev.Event, "campaign_id", recipient.CampaignID, "error", err.Error())
		httputil.ServerError(w, "failed to record event")
		return
	}

	httputil.JSON(w, http.StatusOK, map[string]interface{}{"received": true})
}
