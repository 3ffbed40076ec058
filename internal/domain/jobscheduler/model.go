package jobscheduler

import "time"

type DispatchStatus string

const (
	StatusSent      DispatchStatus = "sent"
	StatusCompleted DispatchStatus = "completed"
	StatusFailed    DispatchStatus = "failed"
)

const (
	JobProcessWaivers  = "process-waivers"
	JobClearWaivers    = "clear-waivers"
	JobRepairSnapshots = "repair-snapshots"
	JobLockDay         = "lock-day"
)

// DispatchEvent tracks one scheduled job from enqueue to completion so an
// operator can see which league jobs ran.
type DispatchEvent struct {
	DispatchID   string
	JobName      string
	JobPath      string
	LeagueID     string
	Status       DispatchStatus
	Payload      map[string]any
	ErrorMessage string
	OccurredAt   time.Time
	TraceID      string
	SpanID       string
}
