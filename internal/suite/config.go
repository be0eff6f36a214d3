package suite

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"seadog/internal/events"
	"seadog/internal/logging"
	"seadog/internal/model"
	"seadog/internal/scenario"
	"seadog/internal/unit"
)

// LoadConfig reads and validates a suite configuration from a YAML file.
func LoadConfig(path string) (model.SuiteConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.SuiteConfig{}, fmt.Errorf("read suite config: %w", err)
	}

	var cfg model.SuiteConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return model.SuiteConfig{}, fmt.Errorf("parse suite config %s: %w", path, err)
	}
	if err := ValidateConfig(cfg); err != nil {
		return model.SuiteConfig{}, fmt.Errorf("invalid suite config %s: %w", path, err)
	}
	return cfg, nil
}

func ValidateConfig(cfg model.SuiteConfig) error {
	switch cfg.SuiteType {
	case model.SuiteReconnaissance, model.SuiteStressTesting, model.SuiteFullSpectrum:
	default:
		return fmt.Errorf("unknown suite type %q", cfg.SuiteType)
	}
	if len(cfg.Targets) == 0 {
		return fmt.Errorf("no targets configured")
	}
	if cfg.ExecutionTimeoutSec < 0 {
		return fmt.Errorf("negative execution timeout")
	}
	return nil
}

// NewReconnaissanceConfig builds the standard recon suite configuration.
func NewReconnaissanceConfig(targets []string) model.SuiteConfig {
	return model.SuiteConfig{
		SuiteType:           model.SuiteReconnaissance,
		Targets:             targets,
		ExecutionTimeoutSec: 600,
		Parallel:            false,
		OutputDir:           "reports",
	}
}

// NewStressConfig builds the standard stress suite configuration.
func NewStressConfig(targets []string) model.SuiteConfig {
	return model.SuiteConfig{
		SuiteType:           model.SuiteStressTesting,
		Targets:             targets,
		ExecutionTimeoutSec: 1200,
		Parallel:            false,
		OutputDir:           "reports",
	}
}

// NewFullSpectrumConfig builds the combined suite configuration. Scenarios
// run in parallel since the full spectrum is the long one.
func NewFullSpectrumConfig(targets []string) model.SuiteConfig {
	return model.SuiteConfig{
		SuiteType:           model.SuiteFullSpectrum,
		Targets:             targets,
		ExecutionTimeoutSec: 1800,
		Parallel:            true,
		OutputDir:           "reports",
	}
}

// BuildScenarios assembles the scenario set the configured suite type calls
// for, wiring in the supplied units.
func BuildScenarios(cfg model.SuiteConfig, units []*unit.Operator, bus *events.Bus, logger *logging.Logger) ([]scenario.Scenario, error) {
	switch cfg.SuiteType {
	case model.SuiteReconnaissance:
		return []scenario.Scenario{
			scenario.NewReconScenario(cfg.Targets, units, bus, logger),
		}, nil
	case model.SuiteStressTesting:
		return []scenario.Scenario{
			scenario.NewStressScenario(cfg.Targets, units, bus, logger),
		}, nil
	case model.SuiteFullSpectrum:
		// Parallel scenarios cannot share operators, a deployed unit is not
		// on standby for the other scenario. Split the roster.
		reconUnits, stressUnits := units, units
		if cfg.Parallel && len(units) > 1 {
			half := len(units) / 2
			reconUnits, stressUnits = units[:half], units[half:]
		}
		return []scenario.Scenario{
			scenario.NewReconScenario(cfg.Targets, reconUnits, bus, logger),
			scenario.NewStressScenario(cfg.Targets, stressUnits, bus, logger),
		}, nil
	default:
		return nil, fmt.Errorf("unknown suite type %q", cfg.SuiteType)
	}
}
