package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/carelink-health/agenda-platform/internal/groups"
	"github.com/carelink-health/agenda-platform/pkg/logging"
)

// Service fans notices out to group members by email. Delivery is
// best-effort: a failed send is logged and skipped so one bounced
// address never blocks the rest of the group.
type Service struct {
	sender EmailSender
	logger *logging.Logger
}

// NewService creates a notification service. A nil sender falls back to
// log-only delivery.
func NewService(sender EmailSender, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if sender == nil {
		sender = NewLogSender(logger)
	}
	return &Service{sender: sender, logger: logger}
}

// CancellationNotice describes a cancelled appointment for member
// notification.
type CancellationNotice struct {
	Title          string
	ScheduledAt    time.Time
	SeriesCanceled bool
	RefundEligible bool
	Warning        string
}

// SendCancellation emails every member with an address about the
// cancellation. The policy warning is included verbatim when the
// cancellation was not refund eligible.
func (s *Service) SendCancellation(ctx context.Context, members []groups.Member, notice CancellationNotice) error {
	subject := fmt.Sprintf("Appointment cancelled: %s", notice.Title)
	if notice.SeriesCanceled {
		subject = fmt.Sprintf("Appointment series cancelled: %s", notice.Title)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "The appointment %q scheduled for %s was cancelled.\n",
		notice.Title, notice.ScheduledAt.Format("Monday, 2 Jan 2006 at 15:04 MST"))
	if notice.SeriesCanceled {
		b.WriteString("All future occurrences of this appointment were removed.\n")
	}
	if !notice.RefundEligible && notice.Warning != "" {
		b.WriteString("\n" + notice.Warning + "\n")
	}

	return s.broadcast(ctx, members, EmailMessage{Subject: subject, Body: b.String()})
}

// StartedNotice describes a teleconsultation that has just begun.
type StartedNotice struct {
	Title       string
	ScheduledAt time.Time
	DoctorName  string
}

// SendConsultationStarted tells the group the doctor is in the room.
func (s *Service) SendConsultationStarted(ctx context.Context, members []groups.Member, notice StartedNotice) error {
	subject := fmt.Sprintf("Consultation started: %s", notice.Title)

	var b strings.Builder
	fmt.Fprintf(&b, "The teleconsultation %q scheduled for %s has started.\n",
		notice.Title, notice.ScheduledAt.Format("Monday, 2 Jan 2006 at 15:04 MST"))
	if notice.DoctorName != "" {
		fmt.Fprintf(&b, "Dr. %s is waiting in the virtual room.\n", notice.DoctorName)
	}
	b.WriteString("Open the app to join.\n")

	return s.broadcast(ctx, members, EmailMessage{Subject: subject, Body: b.String()})
}

func (s *Service) broadcast(ctx context.Context, members []groups.Member, msg EmailMessage) error {
	var sent, failed int
	for _, m := range members {
		if m.Email == "" {
			continue
		}
		msg.To = m.Email
		if err := s.sender.Send(ctx, msg); err != nil {
			failed++
			s.logger.Error("notify: send failed",
				"user_id", m.UserID.String(),
				"error", err)
			continue
		}
		sent++
	}
	s.logger.Info("notify: broadcast done", "subject", msg.Subject, "sent", sent, "failed", failed)
	if sent == 0 && failed > 0 {
		return fmt.Errorf("notify: all %d sends failed", failed)
	}
	return nil
}
