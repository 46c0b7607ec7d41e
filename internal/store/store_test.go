package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cookaing/campaign-engine/internal/domain"
)

func newMockStore(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewStore(db), mock
}

func TestGetCampaign(t *testing.T) {
	s, mock := newMockStore(t)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "org_id", "name", "subject", "from_email", "from_name", "status", "created_at", "updated_at"}).
		AddRow(7, 1, "Weekly Digest", "Your picks", "hello@cookaing.com", "CookAIng", "draft", now, now)
	mock.ExpectQuery("SELECT id, org_id, name, subject").
		WithArgs(7).
		WillReturnRows(rows)

	c, err := s.GetCampaign(context.Background(), 7)
	require.NoError(t, err)
	require.NotNil(t, c)
	assert.Equal(t, 7, c.ID)
	assert.Equal(t, "Weekly Digest", c.Name)
	assert.Equal(t, domain.CampaignDraft, c.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetCampaignNotFound(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT id, org_id, name, subject").
		WithArgs(99).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	c, err := s.GetCampaign(context.Background(), 99)
	require.NoError(t, err)
	assert.Nil(t, c)
}

func TestGetArtifactDefaultVariant(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "campaign_id", "variant", "html_content", "text_content"}).
		AddRow(3, 7, "", "<p>Hi {{ first_name }}</p>", "Hi")
	mock.ExpectQuery("SELECT id, campaign_id, variant, html_content").
		WithArgs(7, "").
		WillReturnRows(rows)

	a, err := s.GetArtifact(context.Background(), 7, "")
	require.NoError(t, err)
	require.NotNil(t, a)
	assert.Equal(t, "<p>Hi {{ first_name }}</p>", a.HTMLContent)
}

func TestGetSegments(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "org_id", "name", "created_at"}).
		AddRow(10, 1, "Weekly openers", time.Now())
	mock.ExpectQuery(`FROM segments`).
		WithArgs(1, sqlmock.AnyArg()).
		WillReturnRows(rows)

	segments, err := s.GetSegments(context.Background(), 1, []int{10, 99})
	require.NoError(t, err)
	require.Len(t, segments, 1, "unknown segment 99 is absent, not an error")
	assert.Equal(t, "Weekly openers", segments[0].Name)
}

func TestResolveRecipientsAllContacts(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "org_id", "email", "first_name", "last_name", "status"}).
		AddRow(1, 1, "a@example.com", "Ann", "Lee", "active").
		AddRow(2, 1, "b@example.com", "Ben", "Kim", "active")
	mock.ExpectQuery(`FROM contacts WHERE org_id = \$1 AND status = 'active'`).
		WithArgs(1).
		WillReturnRows(rows)

	contacts, err := s.ResolveRecipients(context.Background(), 1, nil)
	require.NoError(t, err)
	require.Len(t, contacts, 2)
	assert.Equal(t, "a@example.com", contacts[0].Email)
}

func TestResolveRecipientsSegments(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "org_id", "email", "first_name", "last_name", "status"}).
		AddRow(5, 1, "c@example.com", "Cy", "Wu", "active")
	mock.ExpectQuery(`SELECT DISTINCT c.id`).
		WithArgs(1, sqlmock.AnyArg()).
		WillReturnRows(rows)

	contacts, err := s.ResolveRecipients(context.Background(), 1, []int{10, 11})
	require.NoError(t, err)
	require.Len(t, contacts, 1)
	assert.Equal(t, 5, contacts[0].ID)
}

func TestRecordSendResultSuccess(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO campaign_recipients").
		WithArgs(7, 1, "a@example.com", "A", domain.RecipientSent, "brevo", "msg-1", "", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := s.RecordSendResult(context.Background(), 7,
		&domain.Contact{ID: 1, Email: "a@example.com"}, "A",
		domain.SendOutcome{Provider: "brevo", MessageID: "msg-1", Success: true})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordSendResultFailure(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectExec("INSERT INTO campaign_recipients").
		WithArgs(7, 2, "b@example.com", "", domain.RecipientFailed, "resend", "", "all providers failed", nil).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := s.RecordSendResult(context.Background(), 7,
		&domain.Contact{ID: 2, Email: "b@example.com"}, "",
		domain.SendOutcome{Provider: "resend", Success: false, Error: "all providers failed"})
	require.NoError(t, err)
}

func TestRecordEventOpen(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT org_id FROM campaigns").
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"org_id"}).AddRow(1))
	mock.ExpectExec("INSERT INTO analytics_events").
		WithArgs(sqlmock.AnyArg(), 1, 7, 42, "A", domain.EventOpen, sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE campaign_recipients SET open_count = open_count \+ 1`).
		WithArgs(7, 42).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.RecordEvent(context.Background(), 7, 42, "A", domain.EventOpen,
		map[string]string{"device": "mobile"})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordEventBounceFlipsContact(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT org_id FROM campaigns").
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"org_id"}).AddRow(1))
	mock.ExpectExec("INSERT INTO analytics_events").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(`UPDATE campaign_recipients SET status = 'bounced'`).
		WithArgs(7, 42).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE contacts SET status = \$1`).
		WithArgs(domain.ContactBounced, 42).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.RecordEvent(context.Background(), 7, 42, "", domain.EventBounce, nil)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRecordEventUnknownCampaign(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery("SELECT org_id FROM campaigns").
		WithArgs(99).
		WillReturnError(errors.New("sql: no rows in result set"))

	err := s.RecordEvent(context.Background(), 99, 1, "", domain.EventOpen, nil)
	assert.Error(t, err)
}

func TestFindRecipientByMessageID(t *testing.T) {
	s, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "campaign_id", "contact_id", "email", "variant", "status"}).
		AddRow(11, 7, 42, "a@example.com", "A", "sent")
	mock.ExpectQuery(`WHERE message_id = \$1`).
		WithArgs("msg-1").
		WillReturnRows(rows)

	r, err := s.FindRecipient(context.Background(), "a@example.com", "msg-1")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, 42, r.ContactID)
}

func TestFindRecipientFallsBackToEmail(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`WHERE message_id = \$1`).
		WithArgs("unknown-id").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	rows := sqlmock.NewRows([]string{"id", "campaign_id", "contact_id", "email", "variant", "status"}).
		AddRow(12, 7, 43, "b@example.com", "", "sent")
	mock.ExpectQuery(`WHERE email = \$1 ORDER BY id DESC`).
		WithArgs("b@example.com").
		WillReturnRows(rows)

	r, err := s.FindRecipient(context.Background(), "b@example.com", "unknown-id")
	require.NoError(t, err)
	require.NotNil(t, r)
	assert.Equal(t, 43, r.ContactID)
}

func TestFindRecipientNoMatch(t *testing.T) {
	s, mock := newMockStore(t)

	mock.ExpectQuery(`WHERE email = \$1 ORDER BY id DESC`).
		WithArgs("nobody@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	r, err := s.FindRecipient(context.Background(), "nobody@example.com", "")
	require.NoError(t, err)
	assert.Nil(t, r)
}
