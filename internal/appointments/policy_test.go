package appointments

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEvaluateCancellationWindowBoundaries(t *testing.T) {
	scheduledAt := time.Date(2026, 5, 20, 15, 0, 0, 0, time.UTC)
	app := &Appointment{Type: TypeCommon, ScheduledAt: scheduledAt, PaymentStatus: PaymentPaid}

	cases := []struct {
		name       string
		now        time.Time
		within     bool
		refundable bool
	}{
		{"61 minutes before", scheduledAt.Add(-61 * time.Minute), false, true},
		{"exactly one hour before", scheduledAt.Add(-60 * time.Minute), false, true},
		{"59 minutes before", scheduledAt.Add(-59 * time.Minute), true, false},
		{"one minute before", scheduledAt.Add(-time.Minute), true, false},
		{"exactly at start", scheduledAt, false, true},
		{"after start", scheduledAt.Add(10 * time.Minute), false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			v := EvaluateCancellation(tc.now, app)
			assert.Equal(t, tc.within, v.WithinOneHour)
			assert.Equal(t, tc.refundable, v.RefundEligible)
			assert.True(t, v.IsPaid)
			if v.RefundEligible {
				assert.Empty(t, v.Warning)
			} else {
				assert.NotEmpty(t, v.Warning)
			}
		})
	}
}

func TestEvaluateCancellationUnpaidAlwaysRefundable(t *testing.T) {
	scheduledAt := time.Date(2026, 5, 20, 15, 0, 0, 0, time.UTC)
	app := &Appointment{Type: TypeMedical, ScheduledAt: scheduledAt, PaymentStatus: PaymentNone}

	v := EvaluateCancellation(scheduledAt.Add(-30*time.Minute), app)
	assert.True(t, v.WithinOneHour)
	assert.False(t, v.IsPaid)
	assert.True(t, v.RefundEligible)
	assert.Empty(t, v.Warning)
}

func TestEvaluateCancellationPriorityOrder(t *testing.T) {
	scheduledAt := time.Date(2026, 5, 20, 15, 0, 0, 0, time.UTC)
	now := scheduledAt.Add(-30 * time.Minute)

	t.Run("teleconsultation wins even over paid medical", func(t *testing.T) {
		app := &Appointment{
			Type:               TypeMedical,
			ScheduledAt:        scheduledAt,
			PaymentStatus:      PaymentPaidHeld,
			IsTeleconsultation: true,
		}
		v := EvaluateCancellation(now, app)
		assert.False(t, v.RefundEligible)
		assert.Contains(t, v.Warning, "teleconsultation")
	})

	t.Run("unpaid teleconsultation still forfeits", func(t *testing.T) {
		app := &Appointment{
			Type:               TypeCommon,
			ScheduledAt:        scheduledAt,
			PaymentStatus:      PaymentNone,
			IsTeleconsultation: true,
		}
		v := EvaluateCancellation(now, app)
		assert.False(t, v.RefundEligible)
		assert.Contains(t, v.Warning, "teleconsultation")
	})

	t.Run("paid medical", func(t *testing.T) {
		app := &Appointment{Type: TypeMedical, ScheduledAt: scheduledAt, PaymentStatus: PaymentPaid}
		v := EvaluateCancellation(now, app)
		assert.False(t, v.RefundEligible)
		assert.Contains(t, v.Warning, "medical")
	})

	t.Run("paid other", func(t *testing.T) {
		app := &Appointment{Type: TypeFisioterapia, ScheduledAt: scheduledAt, PaymentStatus: PaymentPaid}
		v := EvaluateCancellation(now, app)
		assert.False(t, v.RefundEligible)
		assert.NotContains(t, v.Warning, "medical")
		assert.NotContains(t, v.Warning, "teleconsultation")
	})
}

func TestEvaluateCancellationHeldPaymentCloseToStart(t *testing.T) {
	scheduledAt := time.Date(2026, 5, 20, 15, 0, 0, 0, time.UTC)
	app := &Appointment{
		Type:               TypeCommon,
		ScheduledAt:        scheduledAt,
		PaymentStatus:      PaymentPaidHeld,
		IsTeleconsultation: true,
	}

	v := EvaluateCancellation(scheduledAt.Add(-30*time.Minute), app)
	assert.True(t, v.IsPaid)
	assert.True(t, v.WithinOneHour)
	assert.False(t, v.RefundEligible)
	assert.NotEmpty(t, v.Warning)
}

func TestEvaluateCancellationReleasedPayment(t *testing.T) {
	// An already-released payment still reads as paid; the evaluator
	// reports it non-refundable rather than pretending a reversal exists.
	scheduledAt := time.Date(2026, 5, 20, 15, 0, 0, 0, time.UTC)
	app := &Appointment{Type: TypeMedical, ScheduledAt: scheduledAt, PaymentStatus: PaymentReleased}

	v := EvaluateCancellation(scheduledAt.Add(-10*time.Minute), app)
	assert.True(t, v.IsPaid)
	assert.False(t, v.RefundEligible)
}

func TestEvaluateCancellationIsDeterministic(t *testing.T) {
	scheduledAt := time.Date(2026, 5, 20, 15, 0, 0, 0, time.UTC)
	app := &Appointment{Type: TypeMedical, ScheduledAt: scheduledAt, PaymentStatus: PaymentPaid}
	now := scheduledAt.Add(-45 * time.Minute)

	first := EvaluateCancellation(now, app)
	second := EvaluateCancellation(now, app)
	assert.Equal(t, first, second)
}
