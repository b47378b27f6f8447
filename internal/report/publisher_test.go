package report

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/domain"
)

type publishedMessage struct {
	key string
	msg amqp.Publishing
}

type fakeChannel struct {
	published []publishedMessage
	err       error
}

func (f *fakeChannel) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, publishedMessage{key: key, msg: msg})
	return nil
}

func TestPublisher_PublishReportToEveryRecipient(t *testing.T) {
	ch := &fakeChannel{}
	p := NewPublisher(ch, "email_queue", []string{"ops@example.com", "lead@example.com"})

	require.NoError(t, p.PublishReport(context.Background(), sampleResult()))
	require.Len(t, ch.published, 2)

	var message struct {
		Type string                              `json:"type"`
		To   string                              `json:"to"`
		Data domain.ReconciliationReportMailData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(ch.published[1].msg.Body, &message))

	assert.Equal(t, "email_queue", ch.published[1].key)
	assert.Equal(t, "application/json", ch.published[1].msg.ContentType)
	assert.Equal(t, domain.MailTypeReconciliationReport, message.Type)
	assert.Equal(t, "lead@example.com", message.To)
	assert.Equal(t, "2026-01-05", message.Data.TargetDate)
	assert.Equal(t, 3, message.Data.MarkedAbsent)
	assert.Equal(t, 2, message.Data.Skipped)
}

func TestPublisher_PublishFailure(t *testing.T) {
	ch := &fakeChannel{}
	p := NewPublisher(ch, "email_queue", []string{"ops@example.com"})

	require.NoError(t, p.PublishFailure(context.Background(), "2026-01-05", errors.New("数据库不可用")))
	require.Len(t, ch.published, 1)

	var message struct {
		Type string                              `json:"type"`
		Data domain.ReconciliationFailedMailData `json:"data"`
	}
	require.NoError(t, json.Unmarshal(ch.published[0].msg.Body, &message))
	assert.Equal(t, domain.MailTypeReconciliationFailed, message.Type)
	assert.Equal(t, "数据库不可用", message.Data.Error)
}

func TestPublisher_NoRecipients(t *testing.T) {
	ch := &fakeChannel{err: errors.New("should not be called")}
	p := NewPublisher(ch, "email_queue", nil)

	assert.NoError(t, p.PublishReport(context.Background(), sampleResult()))
}

func TestPublisher_ChannelError(t *testing.T) {
	ch := &fakeChannel{err: amqp.ErrClosed}
	p := NewPublisher(ch, "email_queue", []string{"ops@example.com"})

	assert.ErrorIs(t, p.PublishReport(context.Background(), sampleResult()), amqp.ErrClosed)
}
