// Package personalize renders campaign content per recipient using the
// Liquid template language ({{ first_name }}, {{ email }}, filters).
package personalize

import (
	"crypto/md5"
	"fmt"
	"sync"

	"github.com/osteele/liquid"

	"github.com/cookaing/campaign-engine/internal/domain"
)

// Renderer renders Liquid templates with parsed-template caching. Missing
// variables render as empty strings, so a half-filled contact record never
// blocks a send.
type Renderer struct {
	engine *liquid.Engine
	cache  sync.Map // map[string]*liquid.Template keyed by content hash
}

// NewRenderer creates a renderer with the standard filter set.
func NewRenderer() *Renderer {
	return &Renderer{engine: liquid.NewEngine()}
}

// Render renders template content against the given bindings. On a parse or
// render error the original content is returned along with the error, so
// callers can choose to send unpersonalized content rather than nothing.
func (r *Renderer) Render(content string, bindings map[string]interface{}) (string, error) {
	if content == "" {
		return content, nil
	}

	tpl, err := r.parse(content)
	if err != nil {
		return content, fmt.Errorf("parse template: %w", err)
	}

	out, err := tpl.RenderString(bindings)
	if err != nil {
		return content, fmt.Errorf("render template: %w", err)
	}
	return out, nil
}

func (r *Renderer) parse(content string) (*liquid.Template, error) {
	key := fmt.Sprintf("%x", md5.Sum([]byte(content)))
	if cached, ok := r.cache.Load(key); ok {
		return cached.(*liquid.Template), nil
	}

	tpl, err := r.engine.ParseString(content)
	if err != nil {
		return nil, err
	}
	r.cache.Store(key, tpl)
	return tpl, nil
}

// ContactBindings builds the per-recipient variable set exposed to templates.
func ContactBindings(c domain.Contact) map[string]interface{} {
	return map[string]interface{}{
		"email":      c.Email,
		"first_name": c.FirstName,
		"last_name":  c.LastName,
	}
}
