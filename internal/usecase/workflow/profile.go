package workflow

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"scholarflow/internal/domain/review"
	"scholarflow/internal/errs"
)

type committeeProfile struct {
	Version       int               `toml:"version"`
	Required      []string          `toml:"required"`
	Final         string            `toml:"final"`
	DocumentStage string            `toml:"document_stage"`
	Roles         map[string]string `toml:"roles"`
}

// LoadTopology reads a committee profile. An empty path yields the built-in
// topology.
func LoadTopology(profileFile string) (review.Topology, error) {
	path := strings.TrimSpace(profileFile)
	if path == "" {
		return review.DefaultTopology(), nil
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		return review.Topology{}, errs.Wrapf(err, "read committee profile %s", path)
	}
	return ParseTopology(raw)
}

func ParseTopology(raw []byte) (review.Topology, error) {
	var profile committeeProfile
	if err := toml.Unmarshal(raw, &profile); err != nil {
		return review.Topology{}, errs.Wrap(err, "decode committee profile")
	}
	if profile.Version != 1 {
		return review.Topology{}, errors.New("unsupported committee profile: expected version = 1")
	}

	topology := review.Topology{
		Final:         strings.TrimSpace(profile.Final),
		DocumentStage: strings.TrimSpace(profile.DocumentStage),
		Roles:         make(map[string]string, len(profile.Roles)),
	}
	for _, stage := range profile.Required {
		topology.Required = append(topology.Required, strings.TrimSpace(stage))
	}
	for stage, role := range profile.Roles {
		topology.Roles[strings.TrimSpace(stage)] = strings.TrimSpace(role)
	}
	for stage := range topology.Roles {
		if !topology.IsKnown(stage) {
			return review.Topology{}, fmt.Errorf("%w: role bound to unknown stage %q", review.ErrInvalidTopology, stage)
		}
	}

	if err := topology.Validate(); err != nil {
		return review.Topology{}, err
	}
	return topology, nil
}
