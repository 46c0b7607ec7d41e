package tracking

import (
	"net/url"
	"strconv"
	"time"
)

// DefaultMaxAge bounds the window during which a leaked or forwarded
// tracking link can be replayed.
const DefaultMaxAge = 24 * time.Hour

// Result is the structured outcome of verifying an inbound signed URL.
// Verification never panics on malformed input; every failure path yields
// Valid=false with a reason, because this sits on a request path driven by
// external recipient input.
type Result struct {
	Valid  bool
	Reason string
	Params Params
}

// Verifier recomputes and checks signatures on inbound tracking URLs.
type Verifier struct {
	secret []byte
	maxAge time.Duration
	now    func() time.Time
}

// NewVerifier creates a verifier. maxAge <= 0 selects DefaultMaxAge.
func NewVerifier(secret string, maxAge time.Duration) *Verifier {
	if maxAge <= 0 {
		maxAge = DefaultMaxAge
	}
	return &Verifier{
		secret: []byte(secret),
		maxAge: maxAge,
		now:    time.Now,
	}
}

func invalid(reason string) Result {
	return Result{Valid: false, Reason: reason}
}

// Verify checks a fully-qualified URL's tracking parameters for authenticity
// and currency. Any mutation of cid, cmp, v or t after signing fails with
// "invalid signature"; a correct but stale signature fails with
// "link expired".
func (v *Verifier) Verify(raw string) Result {
	u, err := url.Parse(raw)
	if err != nil {
		return invalid("malformed URL")
	}
	q := u.Query()

	sig := q.Get(ParamSignature)
	if sig == "" {
		return invalid("missing signature")
	}

	for _, name := range []string{ParamContact, ParamCampaign, ParamTimestamp} {
		if q.Get(name) == "" {
			return invalid("missing parameter: " + name)
		}
	}

	payload := map[string]string{
		ParamContact:   q.Get(ParamContact),
		ParamCampaign:  q.Get(ParamCampaign),
		ParamTimestamp: q.Get(ParamTimestamp),
	}
	if variant := q.Get(ParamVariant); variant != "" {
		payload[ParamVariant] = variant
	}

	if !signatureMatches(payload, v.secret, sig) {
		return invalid("invalid signature")
	}

	// The signature only proves the strings are untouched; parse them back
	// to their semantic types before trusting them.
	contactID, err := strconv.Atoi(payload[ParamContact])
	if err != nil {
		return invalid("invalid parameter: " + ParamContact)
	}
	campaignID, err := strconv.Atoi(payload[ParamCampaign])
	if err != nil {
		return invalid("invalid parameter: " + ParamCampaign)
	}
	signedAt, err := strconv.ParseInt(payload[ParamTimestamp], 10, 64)
	if err != nil {
		return invalid("invalid parameter: " + ParamTimestamp)
	}

	if v.now().UnixMilli()-signedAt > v.maxAge.Milliseconds() {
		return invalid("link expired")
	}

	return Result{
		Valid: true,
		Params: Params{
			ContactID:  contactID,
			CampaignID: campaignID,
			Variant:    q.Get(ParamVariant),
			SignedAt:   signedAt,
		},
	}
}

// StripTrackingParams removes tracking query parameters from a URL so the
// recipient lands on the clean destination. Returns the input unchanged when
// it cannot be parsed.
func StripTrackingParams(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	q := u.Query()
	for _, name := range []string{ParamContact, ParamCampaign, ParamVariant, ParamTimestamp, ParamSignature} {
		q.Del(name)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
