package review

import (
	"fmt"
	"strings"
	"time"
)

type Status string

const (
	StatusDraft               Status = "draft"
	StatusSubmitted           Status = "submitted"
	StatusEndorsedToCommittee Status = "endorsed_to_committee"
	StatusInFinalApproval     Status = "in_final_approval"
	StatusApproved            Status = "approved"
	StatusRejected            Status = "rejected"
)

func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected
}

type Decision string

const (
	DecisionPending  Decision = "pending"
	DecisionApproved Decision = "approved"
	DecisionRejected Decision = "rejected"
)

// ParseVerdict accepts the two reviewer outcomes; pending is not a verdict.
func ParseVerdict(raw string) (Decision, error) {
	switch Decision(strings.ToLower(strings.TrimSpace(raw))) {
	case DecisionApproved, "approve":
		return DecisionApproved, nil
	case DecisionRejected, "reject":
		return DecisionRejected, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidVerdict, raw)
	}
}

type StageState struct {
	Decision  Decision   `json:"decision"`
	DecidedBy string     `json:"decided_by,omitempty"`
	DecidedAt *time.Time `json:"decided_at,omitempty"`
	Notes     string     `json:"notes,omitempty"`
}

// Application is an immutable snapshot. Version is the optimistic-lock token
// the snapshot was read at.
type Application struct {
	ID                         string
	ApplicantID                string
	Status                     Status
	Stages                     map[string]StageState
	AllRequiredStagesCompleted bool
	ReadyForFinalAt            *time.Time
	FinalizedAt                *time.Time
	Version                    int64
	CreatedAt                  time.Time
	UpdatedAt                  time.Time
}

func (a Application) Clone() Application {
	out := a
	out.Stages = make(map[string]StageState, len(a.Stages))
	for k, v := range a.Stages {
		out.Stages[k] = v
	}
	return out
}

// NewApplication opens a draft with every stage of t pending.
func NewApplication(t Topology, id string, applicantID string, at time.Time) Application {
	return Application{
		ID:          id,
		ApplicantID: applicantID,
		Status:      StatusDraft,
		Stages:      t.NewStageMap(),
		CreatedAt:   at,
		UpdatedAt:   at,
	}
}

type DecisionInput struct {
	Stage    string
	Reviewer string
	Verdict  Decision
	Notes    string
	At       time.Time
}

type Outcome struct {
	Application    Application
	Stage          string
	Verdict        Decision
	PreviousStatus Status
	UnlockedFinal  bool
	Finalized      bool
}

// Decide applies one stage decision to app and returns the post-write snapshot.
// app is not modified.
func Decide(t Topology, app Application, in DecisionInput) (Outcome, error) {
	if !t.IsKnown(in.Stage) {
		return Outcome{}, fmt.Errorf("%w: %q", ErrUnknownStage, in.Stage)
	}
	if in.Verdict != DecisionApproved && in.Verdict != DecisionRejected {
		return Outcome{}, fmt.Errorf("%w: %q", ErrInvalidVerdict, in.Verdict)
	}
	if app.Status.IsTerminal() {
		return Outcome{}, fmt.Errorf("%w: application %s is %s", ErrApplicationAlreadyFinalized, app.ID, app.Status)
	}

	current, ok := app.Stages[in.Stage]
	if !ok {
		return Outcome{}, fmt.Errorf("%w: stage %q missing from application %s", ErrInvalidStageTransition, in.Stage, app.ID)
	}
	if current.Decision != DecisionPending {
		return Outcome{}, fmt.Errorf("%w: stage %q already %s", ErrStaleStageState, in.Stage, current.Decision)
	}

	if t.IsFinal(in.Stage) {
		if app.Status != StatusInFinalApproval {
			return Outcome{}, fmt.Errorf("%w: application %s is %s", ErrStageNotUnlocked, app.ID, app.Status)
		}
	} else if app.Status != StatusEndorsedToCommittee {
		return Outcome{}, fmt.Errorf("%w: stage %q cannot be decided while application is %s", ErrInvalidStageTransition, in.Stage, app.Status)
	}

	at := in.At.UTC()
	next := app.Clone()
	next.Stages[in.Stage] = StageState{
		Decision:  in.Verdict,
		DecidedBy: in.Reviewer,
		DecidedAt: &at,
		Notes:     in.Notes,
	}
	next.UpdatedAt = at

	out := Outcome{
		Stage:          in.Stage,
		Verdict:        in.Verdict,
		PreviousStatus: app.Status,
	}

	switch {
	case in.Verdict == DecisionRejected:
		// Any single stage vetoes the whole application.
		next.Status = StatusRejected
		next.FinalizedAt = &at
		out.Finalized = true
	case t.IsFinal(in.Stage):
		next.Status = StatusApproved
		next.FinalizedAt = &at
		out.Finalized = true
	default:
		next.AllRequiredStagesCompleted = allRequiredApproved(t, next.Stages)
		if next.AllRequiredStagesCompleted {
			next.ReadyForFinalAt = &at
			next.Status = StatusInFinalApproval
			out.UnlockedFinal = true
		}
	}

	out.Application = next
	return out, nil
}

func allRequiredApproved(t Topology, stages map[string]StageState) bool {
	for _, stage := range t.Required {
		if stages[stage].Decision != DecisionApproved {
			return false
		}
	}
	return true
}

// Submit moves a draft into the submitted state.
func Submit(app Application, at time.Time) (Application, error) {
	return advance(app, StatusDraft, StatusSubmitted, at)
}

// Endorse hands a submitted application to the review committee.
func Endorse(app Application, at time.Time) (Application, error) {
	return advance(app, StatusSubmitted, StatusEndorsedToCommittee, at)
}

func advance(app Application, from Status, to Status, at time.Time) (Application, error) {
	if app.Status.IsTerminal() {
		return Application{}, fmt.Errorf("%w: application %s is %s", ErrApplicationAlreadyFinalized, app.ID, app.Status)
	}
	if app.Status != from {
		return Application{}, fmt.Errorf("%w: cannot move application %s from %s to %s", ErrInvalidStageTransition, app.ID, app.Status, to)
	}
	next := app.Clone()
	next.Status = to
	next.UpdatedAt = at.UTC()
	return next, nil
}

// CheckInvariants reports the first violated stage-map invariant, if any.
func CheckInvariants(t Topology, app Application) error {
	if len(app.Stages) != len(t.Required)+1 {
		return fmt.Errorf("stage map has %d entries, want %d", len(app.Stages), len(t.Required)+1)
	}
	for _, stage := range t.Stages() {
		if _, ok := app.Stages[stage]; !ok {
			return fmt.Errorf("stage map is missing %q", stage)
		}
	}
	if app.Stages[t.Final].Decision == DecisionApproved && !allRequiredApproved(t, app.Stages) {
		return fmt.Errorf("final stage approved before every required stage")
	}
	if app.AllRequiredStagesCompleted != allRequiredApproved(t, app.Stages) && app.Status != StatusRejected {
		return fmt.Errorf("all_required_stages_completed out of sync with stage map")
	}
	for _, stage := range t.Stages() {
		if app.Stages[stage].Decision == DecisionRejected && app.Status != StatusRejected {
			return fmt.Errorf("stage %q rejected but application is %s", stage, app.Status)
		}
	}
	return nil
}
