// Package job holds the process-wide table of long-running workflow records.
// Jobs live only in memory: a process restart loses in-flight job
// visibility, which is accepted because jobs are observed promptly by
// polling and are not required to survive restarts.
package job

import "time"

// Kind identifies the workflow a job runs.
type Kind string

const (
	KindExport           Kind = "export"
	KindImport           Kind = "import"
	KindStorageMigration Kind = "storage-migration"
)

// Status is the lifecycle state of a job.
// pending -> running -> completed | failed | cancelled.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Job is one ephemeral workflow record. The running workflow mutates it
// through Store.Update; pollers read copies through Store.Get.
type Job struct {
	ID          string
	Kind        Kind
	Status      Status
	Progress    int
	Total       int
	CurrentItem string
	Error       string
	Result      map[string]any
	Cancelled   bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Done reports whether the job has reached a terminal status.
func (j *Job) Done() bool {
	switch j.Status {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}
