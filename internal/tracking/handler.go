package tracking

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/cookaing/campaign-engine/internal/domain"
	"github.com/cookaing/campaign-engine/internal/pkg/logger"
)

// EventRecorder persists engagement events extracted from verified links.
type EventRecorder interface {
	RecordEvent(ctx context.Context, campaignID, contactID int, variant string, eventType domain.EventType, metadata map[string]string) error
}

// transparent 1x1 GIF served for open-tracking pixels.
var pixelGIF = []byte{
	0x47, 0x49, 0x46, 0x38, 0x39, 0x61, 0x01, 0x00, 0x01, 0x00, 0x80, 0x00,
	0x00, 0x00, 0x00, 0x00, 0xff, 0xff, 0xff, 0x21, 0xf9, 0x04, 0x01, 0x00,
	0x00, 0x00, 0x00, 0x2c, 0x00, 0x00, 0x00, 0x00, 0x01, 0x00, 0x01, 0x00,
	0x00, 0x02, 0x02, 0x44, 0x01, 0x00, 0x3b,
}

// Handler serves the recipient-facing tracking endpoints. Bad input must
// never crash the server or strand the recipient, so every failure path
// degrades to "serve the pixel" or "redirect without recording".
type Handler struct {
	verifier *Verifier
	events   EventRecorder
	bots     *BotDetector
}

// NewHandler creates a tracking handler.
func NewHandler(verifier *Verifier, events EventRecorder) *Handler {
	return &Handler{
		verifier: verifier,
		events:   events,
		bots:     NewBotDetector(),
	}
}

// Routes returns the tracking sub-router, intended to be mounted at /t.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/o", h.HandleOpen)
	r.Get("/c", h.HandleClick)
	return r
}

// HandleOpen verifies an open-pixel hit and records an open event. The pixel
// is always served, even for invalid or bot requests.
func (h *Handler) HandleOpen(w http.ResponseWriter, r *http.Request) {
	res := h.verifier.Verify(r.URL.String())
	if res.Valid && !h.bots.IsBot(r.UserAgent()) {
		err := h.events.RecordEvent(r.Context(), res.Params.CampaignID, res.Params.ContactID,
			res.Params.Variant, domain.EventOpen, map[string]string{
				"ip":         clientIP(r),
				"user_agent": r.UserAgent(),
				"device":     detectDevice(r.UserAgent()),
			})
		if err != nil {
			logger.Error("record open event failed",
				"campaign_id", res.Params.CampaignID, "error", err.Error())
		}
	} else if !res.Valid {
		logger.Debug("open pixel rejected", "reason", res.Reason)
	}

	w.Header().Set("Content-Type", "image/gif")
	w.Header().Set("Cache-Control", "no-store, no-cache")
	w.WriteHeader(http.StatusOK)
	w.Write(pixelGIF)
}

// HandleClick verifies a signed destination URL passed in the "url" query
// parameter, records a click event on success, and redirects the recipient
// to the clean destination. An invalid signature still redirects when the
// destination is parseable; nothing is recorded in that case.
func (h *Handler) HandleClick(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("url")
	if raw == "" {
		http.Error(w, "missing url", http.StatusBadRequest)
		return
	}

	dest := StripTrackingParams(raw)
	if !strings.HasPrefix(dest, "http://") && !strings.HasPrefix(dest, "https://") {
		http.Error(w, "invalid destination", http.StatusBadRequest)
		return
	}

	res := h.verifier.Verify(raw)
	switch {
	case !res.Valid:
		logger.Warn("click verification failed", "reason", res.Reason)
	case h.bots.IsBot(r.UserAgent()):
		logger.Debug("bot click ignored", "user_agent", r.UserAgent())
	default:
		err := h.events.RecordEvent(r.Context(), res.Params.CampaignID, res.Params.ContactID,
			res.Params.Variant, domain.EventClick, map[string]string{
				"url":        dest,
				"ip":         clientIP(r),
				"user_agent": r.UserAgent(),
				"device":     detectDevice(r.UserAgent()),
			})
		if err != nil {
			logger.Error("record click event failed",
				"campaign_id", res.Params.CampaignID, "error", err.Error())
		}
	}

	http.Redirect(w, r, dest, http.StatusFound)
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	return strings.Split(r.RemoteAddr, ":")[0]
}

func detectDevice(userAgent string) string {
	ua := strings.ToLower(userAgent)
	if strings.Contains(ua, "mobile") || strings.Contains(ua, "android") || strings.Contains(ua, "iphone") {
		return "mobile"
	}
	if strings.Contains(ua, "tablet") || strings.Contains(ua, "ipad") {
		return "tablet"
	}
	return "desktop"
}

// BotDetector filters automated scanner traffic out of engagement events.
type BotDetector struct {
	patterns []string
}

// NewBotDetector creates a bot detector with the default pattern set.
func NewBotDetector() *BotDetector {
	return &BotDetector{
		patterns: []string{
			"bot", "crawler", "spider", "slurp", "googlebot", "bingbot",
			"yahoo", "baidu", "yandex", "preview", "proxy", "scanner",
		},
	}
}

// IsBot checks if the user agent matches a known bot pattern.
func (bd *BotDetector) IsBot(userAgent string) bool {
	ua := strings.ToLower(userAgent)
	for _, p := range bd.patterns {
		if strings.Contains(ua, p) {
			return true
		}
	}
	return false
}
