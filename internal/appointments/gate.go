package appointments

import "time"

// startLeadTime is how early a scheduled consultation may become active.
const startLeadTime = 15 * time.Minute

// StartGate decides when a scheduled consultation may transition to
// InProgress. Pure and deterministic; safe for concurrent use.
type StartGate struct{}

// CanStart reports whether the session may begin. The boundary is
// inclusive: exactly 15 minutes before the scheduled time is allowed.
func (StartGate) CanStart(now, scheduledAt time.Time) bool {
	return !now.Before(scheduledAt.Add(-startLeadTime))
}

// MinutesUntilStart returns how many whole minutes remain until the gate
// opens, rounded up, never negative. Meant for display.
func (StartGate) MinutesUntilStart(now, scheduledAt time.Time) int {
	remaining := scheduledAt.Add(-startLeadTime).Sub(now)
	if remaining <= 0 {
		return 0
	}
	minutes := int(remaining / time.Minute)
	if remaining%time.Minute != 0 {
		minutes++
	}
	return minutes
}
