package review

import (
	"errors"
	"fmt"
)

var (
	ErrUnauthorizedReviewer   = errors.New("reviewer is not authorized for stage")
	ErrInvalidStageTransition = errors.New("invalid stage transition")
	ErrStageNotUnlocked       = errors.New("final stage is not unlocked")
	ErrStaleStageState        = errors.New("stale stage state")
	ErrUnknownStage           = errors.New("unknown stage")
	ErrInvalidVerdict         = errors.New("verdict must be approved or rejected")
	ErrApplicationNotFound    = errors.New("application not found")
	ErrDocumentsNotCleared    = errors.New("application documents have not cleared security scanning")
	ErrInvalidTopology        = errors.New("invalid stage topology")

	// ErrApplicationAlreadyFinalized is also an ErrInvalidStageTransition so callers
	// that only distinguish "wrong lifecycle phase" keep working.
	ErrApplicationAlreadyFinalized = fmt.Errorf("%w: application already finalized", ErrInvalidStageTransition)
)
