package report

import (
	"context"
	"encoding/json"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sysu-ecnc-dev/incubation-attendance/backend/internal/domain"
)

// Channel 是 *amqp.Channel 中发布消息所需的部分
type Channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// Publisher 将对账报告以邮件消息的形式发送到邮件队列，由 mail worker 负责真正发送
type Publisher struct {
	ch         Channel
	queue      string
	recipients []string
}

func NewPublisher(ch Channel, queue string, recipients []string) *Publisher {
	return &Publisher{
		ch:         ch,
		queue:      queue,
		recipients: recipients,
	}
}

func (p *Publisher) PublishReport(ctx context.Context, result *domain.ReconciliationResult) error {
	data := domain.ReconciliationReportMailData{
		RunID:         result.RunID,
		TargetDate:    result.TargetDate,
		ParsedUsers:   result.ParsedUsers,
		MarkedAbsent:  result.MarkedAbsent,
		MarkedHoliday: result.MarkedHoliday,
		Skipped:       result.SkippedExisting + result.NonWorking,
	}
	return p.publishToAll(ctx, domain.MailTypeReconciliationReport, data)
}

func (p *Publisher) PublishFailure(ctx context.Context, targetDate string, runErr error) error {
	data := domain.ReconciliationFailedMailData{
		TargetDate: targetDate,
		Error:      runErr.Error(),
	}
	return p.publishToAll(ctx, domain.MailTypeReconciliationFailed, data)
}

func (p *Publisher) publishToAll(ctx context.Context, mailType string, data any) error {
	for _, to := range p.recipients {
		mailMessage := domain.MailMessage{
			Type: mailType,
			To:   to,
			Data: data,
		}

		body, err := json.Marshal(mailMessage)
		if err != nil {
			return err
		}

		if err := p.ch.PublishWithContext(
			ctx,
			"",
			p.queue,
			true,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				Body:         body,
			},
		); err != nil {
			return err
		}
	}

	return nil
}
