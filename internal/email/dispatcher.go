package email

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cookaing/campaign-engine/internal/domain"
	"github.com/cookaing/campaign-engine/internal/pkg/logger"
)

// ErrNoProviders is returned when dispatch is attempted with no configured
// provider.
var ErrNoProviders = errors.New("no email provider configured")

// Dispatcher delivers messages through an ordered provider chain. The first
// provider that accepts the message wins; failures fall through to the next.
// Failed sends are never re-attempted by the dispatcher itself — the outcome
// is reported to the caller, who aggregates per-recipient failures.
type Dispatcher struct {
	providers []Provider
}

// NewDispatcher creates a dispatcher over the given providers, tried in order.
func NewDispatcher(providers ...Provider) *Dispatcher {
	return &Dispatcher{providers: providers}
}

// Providers returns the names of the configured chain, primary first.
func (d *Dispatcher) Providers() []string {
	names := make([]string, 0, len(d.providers))
	for _, p := range d.providers {
		names = append(names, p.Name())
	}
	return names
}

// Send attempts delivery through the chain and returns a per-attempt outcome.
// The error is non-nil only when every configured provider failed (or none
// is configured); the outcome always describes what happened.
func (d *Dispatcher) Send(ctx context.Context, msg Message) (domain.SendOutcome, error) {
	if len(d.providers) == 0 {
		return domain.SendOutcome{Success: false, Error: ErrNoProviders.Error()}, ErrNoProviders
	}

	var failures []string
	for _, p := range d.providers {
		messageID, err := p.Send(ctx, msg)
		if err == nil {
			return domain.SendOutcome{
				Provider:  p.Name(),
				MessageID: messageID,
				Success:   true,
			}, nil
		}

		logger.Warn("provider send failed, trying next",
			"provider", p.Name(), "recipient", msg.To,
			"recipient_domain", domain.EmailDomain(msg.To), "error", err.Error())
		failures = append(failures, fmt.Sprintf("%s: %v", p.Name(), err))
	}

	combined := strings.Join(failures, "; ")
	return domain.SendOutcome{
		Provider: d.providers[len(d.providers)-1].Name(),
		Success:  false,
		Error:    combined,
	}, fmt.Errorf("all providers failed: %s", combined)
}
