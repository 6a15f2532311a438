package batch

// Status is the provider-reported state of a batch job.
type Status string

// Job statuses reported by the provider. Values are matched exactly and case-sensitively.
const (
	StatusSubmitted Status = "submitted"
	StatusAccepted  Status = "accepted"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
	StatusDeleted   Status = "deleted"
)

// Terminal reports whether no further transition can happen after s.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled, StatusDeleted:
		return true
	default:
		return false
	}
}

// Succeeded reports whether s is the only successful terminal status.
func (s Status) Succeeded() bool {
	return s == StatusCompleted
}
