package model

// Status represents the lifecycle state of a download task.
type Status string

const (
	// StatusPending means the task is accepted but no worker has picked it up.
	StatusPending Status = "pending"

	// StatusDownloading means a worker is running the engine for this task.
	StatusDownloading Status = "downloading"

	// StatusCompleted means the engine finished and a result is attached.
	StatusCompleted Status = "completed"

	// StatusFailed means the engine failed and an error record is attached.
	StatusFailed Status = "failed"
)

// String returns the string representation of Status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true once the task can no longer change state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// rank orders statuses along the lifecycle. Terminal states share the
// highest rank because neither can follow the other.
func (s Status) rank() int {
	switch s {
	case StatusPending:
		return 0
	case StatusDownloading:
		return 1
	case StatusCompleted, StatusFailed:
		return 2
	}
	return -1
}

// CanTransitionTo reports whether moving from s to next is a forward
// transition. Tasks never move backward and never leave a terminal state.
func (s Status) CanTransitionTo(next Status) bool {
	if s.rank() < 0 || next.rank() < 0 {
		return false
	}
	if s.IsTerminal() {
		return false
	}
	return next.rank() > s.rank()
}
