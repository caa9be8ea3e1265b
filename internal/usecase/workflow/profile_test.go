package workflow

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"scholarflow/internal/domain/review"
)

func TestLoadTopologyDefaultsWithoutProfile(t *testing.T) {
	topology, err := LoadTopology("")
	require.NoError(t, err)
	require.Equal(t, review.DefaultTopology(), topology)
}

func TestLoadTopologyFromProfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "committee.toml")
	raw := `version = 1
required = ["document_verification", "academic_review", "financial_review", "interview"]
final = "final_approval"
document_stage = "document_verification"

[roles]
document_verification = "registrar"
academic_review = "academic_committee"
financial_review = "financial_committee"
interview = "interview_panel"
final_approval = "scholarship_board"
`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o600))

	topology, err := LoadTopology(path)
	require.NoError(t, err)
	require.Len(t, topology.Required, 4)
	role, ok := topology.RoleFor("interview")
	require.True(t, ok)
	require.Equal(t, "interview_panel", role)
}

func TestParseTopologyRejectsInvalidProfiles(t *testing.T) {
	cases := map[string]string{
		"wrong version": `version = 2
required = ["a"]
final = "f"
[roles]
a = "r1"
f = "r2"`,
		"final also required": `version = 1
required = ["a", "f"]
final = "f"
[roles]
a = "r1"
f = "r2"`,
		"missing role": `version = 1
required = ["a", "b"]
final = "f"
[roles]
a = "r1"
f = "r2"`,
		"role for unknown stage": `version = 1
required = ["a"]
final = "f"
[roles]
a = "r1"
f = "r2"
z = "r3"`,
		"document stage not required": `version = 1
required = ["a"]
final = "f"
document_stage = "f"
[roles]
a = "r1"
f = "r2"`,
	}

	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseTopology([]byte(raw))
			require.Error(t, err)
		})
	}
}
