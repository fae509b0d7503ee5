package jobrun

import "time"

// Registered names. The API side starts and signals workflows by these
// strings so it never has to import the workflow function itself.
const (
	WorkflowName = "job_run"
	ActivityTick = "job_run_tick"
	SignalResume = "job_resume"
)

// TickResult is what one Tick reports back to the workflow: the job row's
// status snapshot plus an optional wait hint for the next poll.
type TickResult struct {
	JobID     string     `json:"job_id"`
	Status    string     `json:"status"`
	Stage     string     `json:"stage,omitempty"`
	Progress  int        `json:"progress,omitempty"`
	Message   string     `json:"message,omitempty"`
	WaitUntil *time.Time `json:"wait_until,omitempty"`
}
