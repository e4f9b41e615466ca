package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v6"
	"github.com/joho/godotenv"
)

// Settings holds process-wide tunables read from the environment.
type Settings struct {
	Timeout       time.Duration `env:"FLEET_TIMEOUT" envDefault:"10s"`
	Concurrency   int           `env:"FLEET_CONCURRENCY" envDefault:"8"`
	Cores         float64       `env:"FLEET_CORES" envDefault:"4"`
	SSHSyncConfig string        `env:"FLEET_SSHSYNC_CONFIG"`
	SSHConfig     string        `env:"FLEET_SSH_CONFIG"`
	SSHBinary     string        `env:"FLEET_SSH_BIN" envDefault:"ssh"`
	LogLevel      string        `env:"FLEET_LOG_LEVEL" envDefault:"info"`
	PlanDir       string        `env:"FLEET_PLAN_DIR" envDefault:".fleet/plans"`
}

// LoadSettings reads Settings from the environment. When dotenv names an
// existing file its variables are loaded first; variables already set in
// the environment take precedence.
func LoadSettings(dotenv string) (*Settings, error) {
	if dotenv != "" {
		if err := godotenv.Load(dotenv); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("loading %s: %w", dotenv, err)
		}
	}

	var s Settings
	if err := env.Parse(&s); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}
	if s.SSHSyncConfig == "" {
		s.SSHSyncConfig = DefaultSSHSyncConfig()
	}
	if s.SSHConfig == "" {
		s.SSHConfig = DefaultSSHConfig()
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks that every setting is in range.
func (s *Settings) Validate() error {
	if err := ValidateTimeout(s.Timeout); err != nil {
		return fmt.Errorf("FLEET_TIMEOUT: %w", err)
	}
	if s.Concurrency < 1 {
		return fmt.Errorf("FLEET_CONCURRENCY: %w: must be at least 1, got %d", ErrValidation, s.Concurrency)
	}
	if s.Cores <= 0 {
		return fmt.Errorf("FLEET_CORES: %w: must be positive, got %g", ErrValidation, s.Cores)
	}
	return nil
}
