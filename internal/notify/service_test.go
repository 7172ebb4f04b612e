package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carelink-health/agenda-platform/internal/groups"
)

type captureSender struct {
	sent    []EmailMessage
	failFor map[string]error
}

func (c *captureSender) Send(_ context.Context, msg EmailMessage) error {
	if err, ok := c.failFor[msg.To]; ok {
		return err
	}
	c.sent = append(c.sent, msg)
	return nil
}

func members(emails ...string) []groups.Member {
	out := make([]groups.Member, 0, len(emails))
	for _, e := range emails {
		out = append(out, groups.Member{UserID: uuid.New(), Email: e, Name: "M"})
	}
	return out
}

func TestSendCancellationIncludesWarningWhenNotRefundable(t *testing.T) {
	sender := &captureSender{}
	svc := NewService(sender, nil)

	notice := CancellationNotice{
		Title:          "Cardiology follow-up",
		ScheduledAt:    time.Date(2026, 3, 10, 14, 0, 0, 0, time.UTC),
		RefundEligible: false,
		Warning:        "The amount paid will NOT be refunded.",
	}
	err := svc.SendCancellation(context.Background(), members("a@example.com", "b@example.com"), notice)
	require.NoError(t, err)
	require.Len(t, sender.sent, 2)
	assert.Contains(t, sender.sent[0].Subject, "Appointment cancelled")
	assert.Contains(t, sender.sent[0].Body, "NOT be refunded")
}

func TestSendCancellationOmitsWarningWhenRefundable(t *testing.T) {
	sender := &captureSender{}
	svc := NewService(sender, nil)

	notice := CancellationNotice{
		Title:          "Physio",
		ScheduledAt:    time.Now().Add(48 * time.Hour),
		RefundEligible: true,
	}
	require.NoError(t, svc.SendCancellation(context.Background(), members("a@example.com"), notice))
	require.Len(t, sender.sent, 1)
	assert.NotContains(t, sender.sent[0].Body, "refunded")
}

func TestSendCancellationSeriesSubject(t *testing.T) {
	sender := &captureSender{}
	svc := NewService(sender, nil)

	notice := CancellationNotice{Title: "Daily meds check", ScheduledAt: time.Now(), SeriesCanceled: true}
	require.NoError(t, svc.SendCancellation(context.Background(), members("a@example.com"), notice))
	assert.Contains(t, sender.sent[0].Subject, "series cancelled")
	assert.Contains(t, sender.sent[0].Body, "future occurrences")
}

func TestBroadcastSkipsMembersWithoutEmail(t *testing.T) {
	sender := &captureSender{}
	svc := NewService(sender, nil)

	ms := append(members("a@example.com"), groups.Member{UserID: uuid.New(), Name: "No email"})
	require.NoError(t, svc.SendConsultationStarted(context.Background(), ms, StartedNotice{
		Title:       "Teleconsult",
		ScheduledAt: time.Now(),
		DoctorName:  "Lima",
	}))
	require.Len(t, sender.sent, 1)
	assert.Contains(t, sender.sent[0].Body, "Dr. Lima")
}

func TestBroadcastPartialFailureIsNotFatal(t *testing.T) {
	sender := &captureSender{failFor: map[string]error{"bad@example.com": errors.New("bounce")}}
	svc := NewService(sender, nil)

	err := svc.SendCancellation(context.Background(), members("bad@example.com", "ok@example.com"), CancellationNotice{
		Title:       "Exam",
		ScheduledAt: time.Now(),
	})
	require.NoError(t, err)
	require.Len(t, sender.sent, 1)
}

func TestBroadcastAllFailed(t *testing.T) {
	sender := &captureSender{failFor: map[string]error{"bad@example.com": errors.New("bounce")}}
	svc := NewService(sender, nil)

	err := svc.SendCancellation(context.Background(), members("bad@example.com"), CancellationNotice{
		Title:       "Exam",
		ScheduledAt: time.Now(),
	})
	require.Error(t, err)
}
