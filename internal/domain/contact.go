package domain

import (
	"net/url"
	"strings"
	"time"
)

// ContactStatus enumerates the deliverability states of a contact.
type ContactStatus string

const (
	ContactActive       ContactStatus = "active"
	ContactBounced      ContactStatus = "bounced"
	ContactComplained   ContactStatus = "complained"
	ContactUnsubscribed ContactStatus = "unsubscribed"
)

// Contact represents a recipient record tracked per organization.
type Contact struct {
	ID        int           `json:"id" db:"id"`
	OrgID     int           `json:"org_id" db:"org_id"`
	Email     string        `json:"email" db:"email"`
	FirstName string        `json:"first_name" db:"first_name"`
	LastName  string        `json:"last_name" db:"last_name"`
	Status    ContactStatus `json:"status" db:"status"`
	CreatedAt time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt time.Time     `json:"updated_at" db:"updated_at"`
}

// Segment is a named subset of an organization's contacts.
type Segment struct {
	ID        int       `json:"id" db:"id"`
	OrgID     int       `json:"org_id" db:"org_id"`
	Name      string    `json:"name" db:"name"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ValidateEmail performs basic structural email validation.
func ValidateEmail(email string) bool {
	email = strings.TrimSpace(email)
	if len(email) < 3 || len(email) > 254 {
		return false
	}

	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return false
	}

	local, dom := parts[0], parts[1]
	if len(local) == 0 || len(local) > 64 {
		return false
	}
	if len(dom) == 0 || len(dom) > 253 {
		return false
	}
	if !strings.Contains(dom, ".") {
		return false
	}

	_, err := url.Parse("mailto:" + email)
	return err == nil
}

// EmailDomain extracts the lowercase domain part of an email address.
func EmailDomain(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) == 2 && parts[1] != "" {
		return strings.ToLower(parts[1])
	}
	return ""
}
