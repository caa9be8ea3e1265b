package review

import (
	"fmt"
	"strings"
)

const (
	StageDocumentVerification = "document_verification"
	StageAcademicReview       = "academic_review"
	StageFinancialReview      = "financial_review"
	StageFinalApproval        = "final_approval"
)

// Topology is the fixed stage layout: parallel required stages converging on
// one final stage. Roles binds each stage to the single committee role that
// may decide it.
type Topology struct {
	Required      []string
	Final         string
	Roles         map[string]string
	DocumentStage string
}

func DefaultTopology() Topology {
	return Topology{
		Required: []string{StageDocumentVerification, StageAcademicReview, StageFinancialReview},
		Final:    StageFinalApproval,
		Roles: map[string]string{
			StageDocumentVerification: "registrar",
			StageAcademicReview:       "academic_committee",
			StageFinancialReview:      "financial_committee",
			StageFinalApproval:        "scholarship_board",
		},
		DocumentStage: StageDocumentVerification,
	}
}

func (t Topology) Validate() error {
	if len(t.Required) == 0 {
		return fmt.Errorf("%w: at least one required stage is needed", ErrInvalidTopology)
	}
	final := strings.TrimSpace(t.Final)
	if final == "" {
		return fmt.Errorf("%w: final stage is required", ErrInvalidTopology)
	}

	seen := make(map[string]struct{}, len(t.Required)+1)
	for _, stage := range append(append([]string(nil), t.Required...), final) {
		name := strings.TrimSpace(stage)
		if name == "" {
			return fmt.Errorf("%w: empty stage name", ErrInvalidTopology)
		}
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: duplicate stage %q", ErrInvalidTopology, name)
		}
		seen[name] = struct{}{}
		if strings.TrimSpace(t.Roles[name]) == "" {
			return fmt.Errorf("%w: stage %q has no role", ErrInvalidTopology, name)
		}
	}

	if t.DocumentStage != "" && !t.IsRequired(t.DocumentStage) {
		return fmt.Errorf("%w: document stage %q must be a required stage", ErrInvalidTopology, t.DocumentStage)
	}
	return nil
}

func (t Topology) IsRequired(stage string) bool {
	for _, s := range t.Required {
		if s == stage {
			return true
		}
	}
	return false
}

func (t Topology) IsFinal(stage string) bool {
	return stage == t.Final
}

func (t Topology) IsKnown(stage string) bool {
	return t.IsFinal(stage) || t.IsRequired(stage)
}

func (t Topology) RoleFor(stage string) (string, bool) {
	if !t.IsKnown(stage) {
		return "", false
	}
	role, ok := t.Roles[stage]
	return role, ok && role != ""
}

// Stages lists required stages in declaration order followed by the final stage.
func (t Topology) Stages() []string {
	out := make([]string, 0, len(t.Required)+1)
	out = append(out, t.Required...)
	return append(out, t.Final)
}

// NewStageMap returns a stage-status map with every stage pending.
func (t Topology) NewStageMap() map[string]StageState {
	stages := make(map[string]StageState, len(t.Required)+1)
	for _, stage := range t.Stages() {
		stages[stage] = StageState{Decision: DecisionPending}
	}
	return stages
}
