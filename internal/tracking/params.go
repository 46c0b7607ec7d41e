// Package tracking implements signed-link generation and verification for
// email engagement attribution.
//
// Every link in an outgoing campaign email is rewritten per recipient to
// carry tracking query parameters plus a truncated HMAC-SHA256 signature.
// Inbound hits are verified before any event is recorded: a link is trusted
// only if all required parameters are present, the recomputed signature
// matches, and the signing timestamp is within the validity window.
package tracking

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strconv"
	"strings"
)

// Query parameter names used on signed links.
const (
	ParamContact   = "cid"
	ParamCampaign  = "cmp"
	ParamVariant   = "v"
	ParamTimestamp = "t"
	ParamSignature = "sig"
)

// SignatureLength is the number of hex characters kept from the HMAC digest.
// 16 hex chars = 64 bits of entropy, short enough for readable URLs.
const SignatureLength = 16

// Params is the canonical set of tracking fields embedded in a signed link.
// A fresh Params is constructed per recipient per link at send time; it is
// never updated, only verified and discarded.
type Params struct {
	ContactID  int
	CampaignID int
	Variant    string // optional A/B variant
	SignedAt   int64  // epoch milliseconds at signing time
}

// values returns the wire-format key/value mapping, excluding the signature.
func (p Params) values() map[string]string {
	m := map[string]string{
		ParamContact:   strconv.Itoa(p.ContactID),
		ParamCampaign:  strconv.Itoa(p.CampaignID),
		ParamTimestamp: strconv.FormatInt(p.SignedAt, 10),
	}
	if p.Variant != "" {
		m[ParamVariant] = p.Variant
	}
	return m
}

// Signature computes the truncated HMAC-SHA256 signature over a parameter
// mapping. Entries are sorted by key ascending and joined as key=value pairs
// with "&"; the signature field itself must never be part of the input.
// Pure function of the input and the secret.
func Signature(params map[string]string, secret []byte) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	pairs := make([]string, 0, len(keys))
	for _, k := range keys {
		pairs = append(pairs, k+"="+params[k])
	}

	h := hmac.New(sha256.New, secret)
	h.Write([]byte(strings.Join(pairs, "&")))
	return hex.EncodeToString(h.Sum(nil))[:SignatureLength]
}

// signatureMatches compares a supplied signature against the expected one in
// constant time.
func signatureMatches(params map[string]string, secret []byte, supplied string) bool {
	expected := Signature(params, secret)
	return hmac.Equal([]byte(expected), []byte(supplied))
}
