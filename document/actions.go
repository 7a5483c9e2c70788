package document

import (
	"fmt"
	"strings"

	"docflow/auth"
)

// Stage is one of the three review roles that act on a document in sequence.
type Stage string

const (
	StageConsultant  Stage = "consultant"
	StageEngineering Stage = "engineering"
	StageManager     Stage = "manager"
)

// RequiredRole is the only role allowed to act at the stage.
func (s Stage) RequiredRole() auth.Role {
	switch s {
	case StageConsultant:
		return auth.RoleDalkon
	case StageEngineering:
		return auth.RoleEngineer
	case StageManager:
		return auth.RoleManager
	default:
		return ""
	}
}

// Action is a review decision at one stage. The set of implementations is
// closed: each variant carries only the fields its stage accepts.
type Action interface {
	Stage() Stage
	Name() string
	outcome() (Status, string)
}

// Action names accepted on the wire.
const (
	ActionApprove             = "approve"
	ActionApproveWithNotes    = "approveWithNotes"
	ActionReturnForCorrection = "returnForCorrection"
	ActionReject              = "reject"
)

type ConsultantApprove struct{}

func (ConsultantApprove) Stage() Stage { return StageConsultant }
func (ConsultantApprove) Name() string { return ActionApprove }
func (ConsultantApprove) outcome() (Status, string) {
	return StatusInReviewEngineering, "Forwarded to Engineering"
}

type ConsultantReturn struct{}

func (ConsultantReturn) Stage() Stage { return StageConsultant }
func (ConsultantReturn) Name() string { return ActionReturnForCorrection }
func (ConsultantReturn) outcome() (Status, string) {
	return StatusReturnForCorrection, "Returned to Vendor"
}

type ConsultantReject struct{}

func (ConsultantReject) Stage() Stage { return StageConsultant }
func (ConsultantReject) Name() string { return ActionReject }
func (ConsultantReject) outcome() (Status, string) {
	return StatusRejected, "Rejected by Dalkon"
}

type EngineeringApprove struct{}

func (EngineeringApprove) Stage() Stage { return StageEngineering }
func (EngineeringApprove) Name() string { return ActionApprove }
func (EngineeringApprove) outcome() (Status, string) {
	return StatusApproved, "Approved by Engineer"
}

type EngineeringApproveWithNotes struct {
	Notes string
}

func (EngineeringApproveWithNotes) Stage() Stage { return StageEngineering }
func (EngineeringApproveWithNotes) Name() string { return ActionApproveWithNotes }
func (a EngineeringApproveWithNotes) outcome() (Status, string) {
	return StatusApprovedWithNotes, notesOr(a.Notes, "Approved with notes")
}

type EngineeringReturn struct {
	Notes string
}

func (EngineeringReturn) Stage() Stage { return StageEngineering }
func (EngineeringReturn) Name() string { return ActionReturnForCorrection }
func (a EngineeringReturn) outcome() (Status, string) {
	return StatusReturnForCorrection, notesOr(a.Notes, "Returned for correction")
}

type ManagerApprove struct{}

func (ManagerApprove) Stage() Stage { return StageManager }
func (ManagerApprove) Name() string { return ActionApprove }
func (ManagerApprove) outcome() (Status, string) {
	return StatusApproved, "Approved by Manager"
}

type ManagerReturn struct{}

func (ManagerReturn) Stage() Stage { return StageManager }
func (ManagerReturn) Name() string { return ActionReturnForCorrection }
func (ManagerReturn) outcome() (Status, string) {
	return StatusReturnForCorrection, "Returned by Manager"
}

// ParseAction maps a wire action name to the stage's variant. Notes are kept
// only by the engineering variants that carry them.
func ParseAction(stage Stage, name, notes string) (Action, error) {
	name = strings.TrimSpace(name)
	switch stage {
	case StageConsultant:
		switch name {
		case ActionApprove:
			return ConsultantApprove{}, nil
		case ActionReturnForCorrection:
			return ConsultantReturn{}, nil
		case ActionReject:
			return ConsultantReject{}, nil
		}
	case StageEngineering:
		switch name {
		case ActionApprove:
			return EngineeringApprove{}, nil
		case ActionApproveWithNotes:
			return EngineeringApproveWithNotes{Notes: notes}, nil
		case ActionReturnForCorrection:
			return EngineeringReturn{Notes: notes}, nil
		}
	case StageManager:
		switch name {
		case ActionApprove:
			return ManagerApprove{}, nil
		case ActionReturnForCorrection:
			return ManagerReturn{}, nil
		}
	default:
		return nil, fmt.Errorf("%w: unknown stage %q", ErrInvalidAction, stage)
	}
	return nil, fmt.Errorf("%w: %q is not valid at the %s stage", ErrInvalidAction, name, stage)
}

func notesOr(notes, fallback string) string {
	if trimmed := strings.TrimSpace(notes); trimmed != "" {
		return trimmed
	}
	return fallback
}
