// Package notify fans out appointment lifecycle notices to group members.
package notify

import (
	"context"

	"github.com/carelink-health/agenda-platform/pkg/logging"
)

// EmailMessage is one outbound email.
type EmailMessage struct {
	To      string
	Subject string
	Body    string
	HTML    string
}

// EmailSender abstracts outbound email delivery.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// LogSender logs instead of sending. Used when SES is not configured.
type LogSender struct {
	logger *logging.Logger
}

// NewLogSender creates a log-only email sender.
func NewLogSender(logger *logging.Logger) *LogSender {
	if logger == nil {
		logger = logging.Default()
	}
	return &LogSender{logger: logger}
}

// Send logs the message without delivering it.
func (s *LogSender) Send(_ context.Context, msg EmailMessage) error {
	s.logger.Info("log email sender: would send", "to", msg.To, "subject", msg.Subject)
	return nil
}

var _ EmailSender = (*LogSender)(nil)
