package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRedactEmail(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"jane.doe@example.com", "ja***@example.com"},
		{"ab@example.com", "***@example.com"},
		{"a@example.com", "***@example.com"},
		{"not-an-email", "***@***"},
		{"", "***@***"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, RedactEmail(tc.in), tc.in)
	}
}

func TestRedactValueKeyedFields(t *testing.T) {
	assert.Equal(t, "ja***@example.com", redactValue("email", "jane@example.com"))
	assert.Equal(t, "ja***@example.com", redactValue("Recipient", "jane@example.com"))
	assert.Equal(t, "us***@example.com", redactValue("contact_email", "user1@example.com"))
}

func TestRedactValueEmbeddedEmail(t *testing.T) {
	got := redactValue("error", "send to jane.doe@example.com failed")
	assert.Equal(t, "send to ja***@example.com failed", got)
}

func TestRedactValuePlainField(t *testing.T) {
	assert.Equal(t, "campaign 7", redactValue("detail", "campaign 7"))
}
