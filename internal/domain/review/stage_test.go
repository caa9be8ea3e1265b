package review

import (
	"errors"
	"testing"
)

func TestDefaultTopologyIsValid(t *testing.T) {
	topo := DefaultTopology()
	if err := topo.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}
	if got := topo.Stages(); len(got) != 4 || got[3] != StageFinalApproval {
		t.Fatalf("Stages() = %v", got)
	}
	if role, ok := topo.RoleFor(StageFinancialReview); !ok || role != "financial_committee" {
		t.Fatalf("RoleFor(financial_review) = %q, %v", role, ok)
	}
	if _, ok := topo.RoleFor("sports_review"); ok {
		t.Fatalf("RoleFor(unknown) ok = true")
	}
}

func TestTopologyValidateRejectsBadLayouts(t *testing.T) {
	cases := map[string]Topology{
		"no required": {Final: "final", Roles: map[string]string{"final": "board"}},
		"no final":    {Required: []string{"a"}, Roles: map[string]string{"a": "x"}},
		"duplicate":   {Required: []string{"a", "a"}, Final: "f", Roles: map[string]string{"a": "x", "f": "y"}},
		"final twice": {Required: []string{"a", "f"}, Final: "f", Roles: map[string]string{"a": "x", "f": "y"}},
		"no role":     {Required: []string{"a"}, Final: "f", Roles: map[string]string{"f": "y"}},
		"doc stage":   {Required: []string{"a"}, Final: "f", Roles: map[string]string{"a": "x", "f": "y"}, DocumentStage: "f"},
	}
	for name, topo := range cases {
		if err := topo.Validate(); !errors.Is(err, ErrInvalidTopology) {
			t.Fatalf("%s: Validate() error = %v, want ErrInvalidTopology", name, err)
		}
	}
}

func TestParseVerdict(t *testing.T) {
	if v, err := ParseVerdict(" Approve "); err != nil || v != DecisionApproved {
		t.Fatalf("ParseVerdict(approve) = %q, %v", v, err)
	}
	if v, err := ParseVerdict("rejected"); err != nil || v != DecisionRejected {
		t.Fatalf("ParseVerdict(rejected) = %q, %v", v, err)
	}
	if _, err := ParseVerdict("pending"); !errors.Is(err, ErrInvalidVerdict) {
		t.Fatalf("ParseVerdict(pending) error = %v", err)
	}
}
