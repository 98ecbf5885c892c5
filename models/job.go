package models

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// MaxPrice is the largest price a decimal(12,2) column holds
var MaxPrice = decimal.RequireFromString("9999999999.99")

// JobStatus is a step of the job lifecycle
type JobStatus string

const (
	JobStatusPending          JobStatus = "pending"
	JobStatusInProgress       JobStatus = "in_progress"
	JobStatusAwaitingApproval JobStatus = "awaiting_approval"
	JobStatusCompleted        JobStatus = "completed"
)

var nextStatus = map[JobStatus]JobStatus{
	JobStatusPending:          JobStatusInProgress,
	JobStatusInProgress:       JobStatusAwaitingApproval,
	JobStatusAwaitingApproval: JobStatusCompleted,
}

// Valid reports whether s is a known status
func (s JobStatus) Valid() bool {
	_, ok := nextStatus[s]
	return ok || s == JobStatusCompleted
}

// Next returns the only status s may move to. Completed is terminal.
func (s JobStatus) Next() (JobStatus, bool) {
	next, ok := nextStatus[s]
	return next, ok
}

// CanTransitionTo reports whether moving from s to target is a single forward step
func (s JobStatus) CanTransitionTo(target JobStatus) bool {
	next, ok := s.Next()
	return ok && next == target
}

// Proof is the evidence a worker attaches before asking for approval
type Proof struct {
	ImageRef    string     `json:"image_ref,omitempty"`
	Description string     `gorm:"type:text" json:"description,omitempty"`
	Latitude    *float64   `json:"latitude,omitempty"`
	Longitude   *float64   `json:"longitude,omitempty"`
	CapturedAt  *time.Time `json:"captured_at,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
}

// Job represents a gig posted by a client
type Job struct {
	ID            uint                        `gorm:"primaryKey" json:"id"`
	Title         string                      `gorm:"not null" json:"title"`
	Description   string                      `gorm:"type:text" json:"description"`
	Location      string                      `json:"location"`
	Category      string                      `gorm:"index" json:"category"`
	Skills        datatypes.JSONSlice[string] `json:"skills"`
	Price         decimal.Decimal             `gorm:"type:decimal(12,2);not null" json:"price"`
	Status        JobStatus                   `gorm:"type:varchar(32);not null;default:'pending';index" json:"status"`
	ClientID      uint                        `gorm:"not null;index" json:"client_id"`
	Client        *User                       `gorm:"foreignKey:ClientID" json:"-"`
	WorkerID      *uint                       `gorm:"index" json:"worker_id"` // set once, on acceptance
	Worker        *User                       `gorm:"foreignKey:WorkerID" json:"-"`
	AcceptedAt    *time.Time                  `json:"accepted_at,omitempty"`
	CompletedAt   *time.Time                  `json:"completed_at,omitempty"`
	Proof         Proof                       `gorm:"embedded;embeddedPrefix:proof_" json:"-"`
	ProofImageURL string                      `gorm:"-" json:"proof_image_url,omitempty"` // computed, not stored
	CreatedAt     time.Time                   `json:"created_at"`
	UpdatedAt     time.Time                   `json:"updated_at"`
}

// TableName specifies the table name for the Job model
func (Job) TableName() string {
	return "jobs"
}

// HasProof reports whether the worker has submitted proof of work
func (j *Job) HasProof() bool {
	return j.Proof.SubmittedAt != nil
}

// AssignedTo reports whether userID is the worker holding the job
func (j *Job) AssignedTo(userID uint) bool {
	return j.WorkerID != nil && *j.WorkerID == userID
}

// RedactProof drops the proof of work, which only the job's client and
// worker may see
func (j *Job) RedactProof() {
	j.Proof = Proof{}
	j.ProofImageURL = ""
}

// MarshalJSON renders the client and worker as public views and includes the
// proof only once it has been submitted
func (j Job) MarshalJSON() ([]byte, error) {
	type job Job
	out := struct {
		job
		Client *PublicUser `json:"client,omitempty"`
		Worker *PublicUser `json:"worker,omitempty"`
		Proof  *Proof      `json:"proof,omitempty"`
	}{
		job:    job(j),
		Client: j.Client.Public(),
		Worker: j.Worker.Public(),
	}
	if j.HasProof() {
		proof := j.Proof
		out.Proof = &proof
	}
	return json.Marshal(out)
}
