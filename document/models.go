package document

import (
	"time"

	"docflow/auth"
)

// Status is the position of a document in the approval pipeline.
type Status string

const (
	StatusSubmitted           Status = "submitted"
	StatusInReviewConsultant  Status = "inReviewConsultant"
	StatusInReviewEngineering Status = "inReviewEngineering"
	StatusInReviewManager     Status = "inReviewManager"
	StatusApprovedWithNotes   Status = "approvedWithNotes"
	StatusApproved            Status = "approved"
	StatusReturnForCorrection Status = "returnForCorrection"
	StatusRejected            Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusSubmitted, StatusInReviewConsultant, StatusInReviewEngineering, StatusInReviewManager,
		StatusApprovedWithNotes, StatusApproved, StatusReturnForCorrection, StatusRejected:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no review action in the base table leaves s.
func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// Type is the domain category of a document. It does not affect transitions.
type Type string

const (
	TypeCivil      Type = "civil"
	TypeProtection Type = "protection"
)

func (t Type) Valid() bool {
	return t == TypeCivil || t == TypeProtection
}

// Progress narratives written by vendor-side actions.
const (
	NarrativeSubmitted   = "Submitted by vendor"
	NarrativeResubmitted = "Resubmitted by vendor"
	NarrativeFileUpdated = "File updated"
)

// Outbox topics emitted alongside document writes.
const (
	TopicStatusChanged = "document.status_changed"
	TopicResubmitted   = "document.resubmitted"
	TopicFileUpdated   = "document.file_updated"
)

// UserRef is the subset of a user attached to projections.
type UserRef struct {
	ID    string
	Name  string
	Email string
	Role  auth.Role
}

// Document mirrors the documents table plus the joined contract number and
// submitter used by the projections.
type Document struct {
	ID              string
	Name            string
	FilePath        string
	Version         int
	Status          Status
	Type            Type
	ContractID      *string
	ContractNumber  *string
	SubmittedByID   string
	SubmittedBy     *UserRef
	ReviewedByID    *string
	OverallDeadline *time.Time
	Remarks         *string
	Progress        string
	CreatedAt       time.Time
	UpdatedAt       time.Time
	Approvals       []Approval
}

// Approval is an immutable audit record of one review transition.
type Approval struct {
	ID           string
	DocumentID   string
	Type         Type
	ApprovedByID string
	ApprovedBy   *UserRef
	Status       Status
	Notes        *string
	Deadline     time.Time
	CreatedAt    time.Time
}

// ProgressView is the per-document timeline returned to Dalkon and Manager.
// Approvals are in append order.
type ProgressView struct {
	DocumentID string
	Name       string
	Status     Status
	Progress   string
	Approvals  []Approval
}

// SubmitParams carries the vendor-supplied fields of a new document.
type SubmitParams struct {
	Name            string
	FilePath        string
	ContractID      *string
	Type            Type
	OverallDeadline *time.Time
	Remarks         *string
}
