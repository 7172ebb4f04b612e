package appointments

import "time"

// cancellationWindow is the final stretch before the scheduled time in
// which cancelling a paid appointment forfeits the amount.
const cancellationWindow = time.Hour

// Refund warnings surfaced to confirmation dialogs. Any refund-ineligible
// deletion must show its warning before the destructive action is
// confirmed; committing without surfacing it is a defect.
const (
	warningTeleconsultation = "This teleconsultation is being cancelled less than one hour before its start. The amount paid will NOT be refunded."
	warningPaidMedical      = "This paid medical appointment is being cancelled less than one hour before its start. The amount paid will NOT be refunded."
	warningPaid             = "This paid appointment is being cancelled less than one hour before its start. The amount paid will NOT be refunded."
)

// CancellationVerdict is the outcome of the refund policy table.
type CancellationVerdict struct {
	IsPaid         bool   `json:"is_paid"`
	WithinOneHour  bool   `json:"within_one_hour"`
	RefundEligible bool   `json:"refund_eligible"`
	Warning        string `json:"warning,omitempty"`
}

// EvaluateCancellation applies the refund decision table. It is a total,
// deterministic function: identical inputs always produce the identical
// verdict, and it never fails.
//
// The one-hour window is strict on both ends: an appointment whose start
// time has already passed is not "within the window", and neither is one
// exactly an hour away.
func EvaluateCancellation(now time.Time, app *Appointment) CancellationVerdict {
	v := CancellationVerdict{
		IsPaid:         app.PaymentStatus.IsPaid(),
		RefundEligible: true,
	}

	untilStart := app.ScheduledAt.Sub(now)
	v.WithinOneHour = untilStart > 0 && untilStart < cancellationWindow
	if !v.WithinOneHour {
		return v
	}

	// Priority order matters: teleconsultations forfeit regardless of
	// payment flags, then paid medical, then any other paid appointment.
	switch {
	case app.IsTeleconsultation:
		v.RefundEligible = false
		v.Warning = warningTeleconsultation
	case app.IsMedical() && v.IsPaid:
		v.RefundEligible = false
		v.Warning = warningPaidMedical
	case v.IsPaid:
		v.RefundEligible = false
		v.Warning = warningPaid
	}
	return v
}
