package tracking

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/cookaing/campaign-engine/internal/pkg/logger"
)

// Signer attaches tracking parameters and a valid signature to destination
// URLs, and applies this to every anchor in an HTML email body.
type Signer struct {
	secret  []byte
	baseURL string // tracking endpoint base, used for open pixels
	now     func() time.Time
}

// NewSigner creates a signer. baseURL is the externally reachable base of the
// tracking endpoints (no trailing slash).
func NewSigner(secret, baseURL string) *Signer {
	return &Signer{
		secret:  []byte(secret),
		baseURL: strings.TrimRight(baseURL, "/"),
		now:     time.Now,
	}
}

// SignURL appends tracking parameters and a signature to a destination URL,
// preserving any pre-existing query parameters. Signing failure never blocks
// delivery: on an unparseable URL the original is returned unchanged and a
// warning is logged.
func (s *Signer) SignURL(raw string, contactID, campaignID int, variant string) string {
	signed, err := s.signURL(raw, contactID, campaignID, variant)
	if err != nil {
		logger.Warn("link signing failed, passing original through",
			"url", raw, "campaign_id", campaignID, "error", err.Error())
		return raw
	}
	return signed
}

func (s *Signer) signURL(raw string, contactID, campaignID int, variant string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	p := Params{
		ContactID:  contactID,
		CampaignID: campaignID,
		Variant:    variant,
		SignedAt:   s.now().UnixMilli(),
	}

	vals := p.values()
	q := u.Query()
	for k, v := range vals {
		q.Set(k, v)
	}
	q.Set(ParamSignature, Signature(vals, s.secret))
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// SignHTML rewrites every trackable anchor href in the document to its signed
// equivalent. mailto:, tel: and in-page fragment links are left alone, as are
// links that already carry tracking parameters, so re-running on signed
// content is a no-op per link. A failure signing one link leaves that link
// unmodified and processing continues.
func (s *Signer) SignHTML(html string, contactID, campaignID int, variant string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		logger.Warn("html parse failed, skipping link signing",
			"campaign_id", campaignID, "error", err.Error())
		return html
	}

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if skipHref(href) || alreadySigned(href) {
			return
		}
		signed, err := s.signURL(href, contactID, campaignID, variant)
		if err != nil {
			logger.Warn("link signing failed, leaving link unmodified",
				"url", href, "campaign_id", campaignID, "error", err.Error())
			return
		}
		sel.SetAttr("href", signed)
	})

	out, err := doc.Html()
	if err != nil {
		logger.Warn("html serialize failed, returning original",
			"campaign_id", campaignID, "error", err.Error())
		return html
	}
	return out
}

// OpenPixelURL returns a signed tracking-pixel URL for the given recipient.
func (s *Signer) OpenPixelURL(contactID, campaignID int, variant string) string {
	p := Params{
		ContactID:  contactID,
		CampaignID: campaignID,
		Variant:    variant,
		SignedAt:   s.now().UnixMilli(),
	}
	vals := p.values()

	q := url.Values{}
	for k, v := range vals {
		q.Set(k, v)
	}
	q.Set(ParamSignature, Signature(vals, s.secret))

	return s.baseURL + "/t/o?" + q.Encode()
}

// InjectOpenPixel inserts a 1x1 open-tracking image before the closing body
// tag, or appends it when the document has no body tag.
func (s *Signer) InjectOpenPixel(html string, contactID, campaignID int, variant string) string {
	pixel := fmt.Sprintf(`<img src="%s" width="1" height="1" style="display:none" alt="" />`,
		s.OpenPixelURL(contactID, campaignID, variant))

	if strings.Contains(html, "</body>") {
		return strings.Replace(html, "</body>", pixel+"</body>", 1)
	}
	return html + pixel
}

// skipHref reports whether an href is not a trackable destination.
func skipHref(href string) bool {
	h := strings.TrimSpace(strings.ToLower(href))
	return strings.HasPrefix(h, "mailto:") ||
		strings.HasPrefix(h, "tel:") ||
		strings.HasPrefix(h, "#")
}

// alreadySigned reports whether a link carries both contact and campaign
// parameters, meaning a previous signing pass produced it.
func alreadySigned(href string) bool {
	u, err := url.Parse(href)
	if err != nil {
		return false
	}
	q := u.Query()
	return q.Get(ParamContact) != "" && q.Get(ParamCampaign) != ""
}
