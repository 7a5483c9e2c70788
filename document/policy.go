package document

import "fmt"

// stageEntry lists the statuses from which each stage may act when strict
// transitions are enabled.
var stageEntry = map[Stage][]Status{
	StageConsultant:  {StatusSubmitted, StatusInReviewConsultant},
	StageEngineering: {StatusInReviewEngineering},
	StageManager:     {StatusInReviewManager, StatusApprovedWithNotes},
}

func checkStage(stage Stage, current Status) error {
	for _, s := range stageEntry[stage] {
		if s == current {
			return nil
		}
	}
	return fmt.Errorf("%w: %s stage cannot act on a %s document", ErrInvalidTransition, stage, current)
}
