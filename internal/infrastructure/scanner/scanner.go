package scanner

import (
	"fmt"
	"strings"

	"scholarflow/internal/bootstrap/config"
)

// New builds the configured backend wrapped in an Engine. allowDisabled
// gates the disabled backend to non-production environments.
func New(cfg config.ScannerConfig, allowDisabled bool) (*Engine, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.Backend)) {
	case "clamd", "":
		backend, err := NewClamd(cfg.Clamd.Network, cfg.Clamd.Address)
		if err != nil {
			return nil, err
		}
		return NewEngine(backend, cfg.Timeout), nil
	case "cli":
		backend, err := NewCLI(cfg.CLI.Program, cfg.CLI.Args)
		if err != nil {
			return nil, err
		}
		return NewEngine(backend, cfg.Timeout), nil
	case "api":
		backend, err := NewAPI(APIOptions{
			BaseURL:            cfg.API.BaseURL,
			APIKey:             cfg.API.APIKey,
			RequestsPerSecond:  cfg.API.RequestsPerSecond,
			MaliciousThreshold: cfg.API.MaliciousThreshold,
		})
		if err != nil {
			return nil, err
		}
		return NewEngine(backend, cfg.Timeout), nil
	case "disabled":
		if !allowDisabled {
			return nil, fmt.Errorf("scanner backend disabled is not allowed in this environment")
		}
		return NewEngine(Disabled{}, cfg.Timeout), nil
	default:
		return nil, fmt.Errorf("unknown scanner backend %q", cfg.Backend)
	}
}
