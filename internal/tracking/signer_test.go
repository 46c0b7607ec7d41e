package tracking

import (
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "unit-test-secret"

func newTestSigner() *Signer {
	s := NewSigner(testSecret, "https://track.cookaing.test")
	s.now = func() time.Time { return time.UnixMilli(1700000000000) }
	return s
}

func TestSignURL(t *testing.T) {
	s := newTestSigner()

	signed := s.SignURL("https://example.com/product?ref=x", 42, 7, "A")
	u, err := url.Parse(signed)
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "x", q.Get("ref"), "pre-existing query params are preserved")
	assert.Equal(t, "42", q.Get("cid"))
	assert.Equal(t, "7", q.Get("cmp"))
	assert.Equal(t, "A", q.Get("v"))
	assert.Equal(t, "1700000000000", q.Get("t"))
	assert.Len(t, q.Get("sig"), SignatureLength)
	assert.Equal(t, "example.com", u.Host)
	assert.Equal(t, "/product", u.Path)
}

func TestSignURLNoVariant(t *testing.T) {
	s := newTestSigner()

	signed := s.SignURL("https://example.com/", 1, 2, "")
	u, err := url.Parse(signed)
	require.NoError(t, err)
	assert.Empty(t, u.Query().Get("v"))
	assert.NotEmpty(t, u.Query().Get("sig"))
}

func TestSignURLUnparseablePassesThrough(t *testing.T) {
	s := newTestSigner()

	raw := "https://example.com/%zz"
	assert.Equal(t, raw, s.SignURL(raw, 1, 2, ""))
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	s := newTestSigner()
	v := NewVerifier(testSecret, 0)
	v.now = func() time.Time { return time.UnixMilli(1700000000000).Add(time.Hour) }

	signed := s.SignURL("https://example.com/product?ref=x", 42, 7, "A")

	res := v.Verify(signed)
	require.True(t, res.Valid, "reason: %s", res.Reason)
	assert.Equal(t, 42, res.Params.ContactID)
	assert.Equal(t, 7, res.Params.CampaignID)
	assert.Equal(t, "A", res.Params.Variant)
}

func TestSignHTMLRewritesAnchors(t *testing.T) {
	s := newTestSigner()

	html := `<html><body>
		<a href="https://example.com/one">one</a>
		<a href="https://example.com/two?ref=nl">two</a>
	</body></html>`

	out := s.SignHTML(html, 42, 7, "")

	assert.Equal(t, 2, strings.Count(out, "sig="))
	assert.Contains(t, out, "cid=42")
	assert.Contains(t, out, "cmp=7")
	assert.Contains(t, out, "ref=nl")
}

func TestSignHTMLSkipsNonTrackableLinks(t *testing.T) {
	s := newTestSigner()

	html := `<html><body>
		<a href="mailto:team@example.com">email us</a>
		<a href="tel:+15551234567">call us</a>
		<a href="#section">jump</a>
	</body></html>`

	out := s.SignHTML(html, 42, 7, "")

	assert.Contains(t, out, `href="mailto:team@example.com"`)
	assert.Contains(t, out, `href="tel:+15551234567"`)
	assert.Contains(t, out, `href="#section"`)
	assert.NotContains(t, out, "sig=")
}

func TestSignHTMLIdempotent(t *testing.T) {
	s := newTestSigner()

	html := `<html><body><a href="https://example.com/one">one</a></body></html>`

	once := s.SignHTML(html, 42, 7, "A")
	twice := s.SignHTML(once, 42, 7, "A")

	assert.Equal(t, once, twice)
	assert.Equal(t, 1, strings.Count(twice, "sig="))
}

func TestSignHTMLPartialFailureContinues(t *testing.T) {
	s := newTestSigner()

	html := `<html><body>
		<a href="https://example.com/%zz">broken</a>
		<a href="https://example.com/good">good</a>
	</body></html>`

	out := s.SignHTML(html, 42, 7, "")

	// Broken link left untouched, good link still signed.
	assert.Contains(t, out, `href="https://example.com/%zz"`)
	assert.Equal(t, 1, strings.Count(out, "sig="))
}

func TestOpenPixelURLVerifies(t *testing.T) {
	s := newTestSigner()
	v := NewVerifier(testSecret, 0)
	v.now = func() time.Time { return time.UnixMilli(1700000000000) }

	pixel := s.OpenPixelURL(42, 7, "B")
	assert.True(t, strings.HasPrefix(pixel, "https://track.cookaing.test/t/o?"))

	res := v.Verify(pixel)
	require.True(t, res.Valid, "reason: %s", res.Reason)
	assert.Equal(t, "B", res.Params.Variant)
}

func TestInjectOpenPixel(t *testing.T) {
	s := newTestSigner()

	withBody := s.InjectOpenPixel("<html><body><p>hi</p></body></html>", 1, 2, "")
	assert.Contains(t, withBody, `<img src="https://track.cookaing.test/t/o?`)
	assert.True(t, strings.HasSuffix(withBody, "</body></html>"))

	noBody := s.InjectOpenPixel("<p>hi</p>", 1, 2, "")
	assert.Contains(t, noBody, "/t/o?")
}

func TestSkipHref(t *testing.T) {
	tests := []struct {
		href string
		want bool
	}{
		{"mailto:a@b.com", true},
		{"MAILTO:a@b.com", true},
		{"tel:+1555", true},
		{"#top", true},
		{"https://example.com", false},
		{"http://example.com", false},
		{"/relative/path", false},
	}

	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			if got := skipHref(tt.href); got != tt.want {
				t.Errorf("skipHref(%q) = %v, want %v", tt.href, got, tt.want)
			}
		})
	}
}

func TestAlreadySigned(t *testing.T) {
	tests := []struct {
		href string
		want bool
	}{
		{"https://example.com/?cid=1&cmp=2", true},
		{"https://example.com/?cid=1", false},
		{"https://example.com/?cmp=2", false},
		{"https://example.com/", false},
	}

	for _, tt := range tests {
		t.Run(tt.href, func(t *testing.T) {
			if got := alreadySigned(tt.href); got != tt.want {
				t.Errorf("alreadySigned(%q) = %v, want %v", tt.href, got, tt.want)
			}
		})
	}
}
