package tracking

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSignatureDeterminism(t *testing.T) {
	secret := []byte("test-secret")
	params := map[string]string{
		"cid": "42",
		"cmp": "7",
		"v":   "A",
		"t":   "1700000000000",
	}

	first := Signature(params, secret)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Signature(params, secret))
	}
}

func TestSignatureFormat(t *testing.T) {
	sig := Signature(map[string]string{"cid": "1", "cmp": "2", "t": "3"}, []byte("k"))
	assert.Len(t, sig, SignatureLength)
	assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{16}$`), sig)
}

func TestSignatureOrderIndependence(t *testing.T) {
	secret := []byte("test-secret")

	// Maps built in different insertion orders must canonicalize identically.
	a := map[string]string{}
	a["t"] = "1700000000000"
	a["v"] = "B"
	a["cmp"] = "7"
	a["cid"] = "42"

	b := map[string]string{}
	b["cid"] = "42"
	b["cmp"] = "7"
	b["v"] = "B"
	b["t"] = "1700000000000"

	assert.Equal(t, Signature(a, secret), Signature(b, secret))
}

func TestSignatureSecretSensitivity(t *testing.T) {
	params := map[string]string{"cid": "42", "cmp": "7", "t": "1700000000000"}
	assert.NotEqual(t, Signature(params, []byte("secret-a")), Signature(params, []byte("secret-b")))
}

func TestSignatureValueSensitivity(t *testing.T) {
	secret := []byte("test-secret")
	base := map[string]string{"cid": "42", "cmp": "7", "t": "1700000000000"}
	baseSig := Signature(base, secret)

	mutations := []map[string]string{
		{"cid": "43", "cmp": "7", "t": "1700000000000"},
		{"cid": "42", "cmp": "8", "t": "1700000000000"},
		{"cid": "42", "cmp": "7", "t": "1700000000001"},
		{"cid": "42", "cmp": "7", "t": "1700000000000", "v": "A"},
	}
	for _, m := range mutations {
		assert.NotEqual(t, baseSig, Signature(m, secret))
	}
}

func TestParamsValues(t *testing.T) {
	p := Params{ContactID: 42, CampaignID: 7, Variant: "A", SignedAt: 1700000000000}
	vals := p.values()
	assert.Equal(t, "42", vals[ParamContact])
	assert.Equal(t, "7", vals[ParamCampaign])
	assert.Equal(t, "A", vals[ParamVariant])
	assert.Equal(t, "1700000000000", vals[ParamTimestamp])
	_, hasSig := vals[ParamSignature]
	assert.False(t, hasSig, "signature must never be part of the signed payload")
}

func TestParamsValuesOmitsEmptyVariant(t *testing.T) {
	vals := Params{ContactID: 1, CampaignID: 2, SignedAt: 3}.values()
	_, ok := vals[ParamVariant]
	assert.False(t, ok)
}
