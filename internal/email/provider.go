// Package email sends campaign messages through transactional providers.
//
// Providers are pluggable; the Dispatcher walks them in configured order and
// falls back to the next one when a send fails. Callers treat dispatch as an
// opaque capability and make no assumption about which provider delivered.
package email

import "context"

// Message is one outbound email.
type Message struct {
	To        string
	FromEmail string
	FromName  string
	Subject   string
	HTML      string
	Text      string
}

// Provider is a transactional email service capable of delivering a message.
type Provider interface {
	// Name identifies the provider in outcomes and logs.
	Name() string
	// Send delivers the message and returns the provider-assigned message id.
	Send(ctx context.Context, msg Message) (string, error)
}
