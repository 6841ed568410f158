// Package loader parses strategy definition files.
package loader

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/tradekit/stratrunner/pkg/models"
)

// StrategyLoader parses YAML strategy definitions
type StrategyLoader struct{}

// NewStrategyLoader creates a new strategy loader
func NewStrategyLoader() *StrategyLoader {
	return &StrategyLoader{}
}

// Parse converts YAML content into a strategy definition
func (l *StrategyLoader) Parse(content []byte) (models.StrategyDefinition, error) {
	var def models.StrategyDefinition
	if err := yaml.Unmarshal(content, &def); err != nil {
		return models.StrategyDefinition{}, fmt.Errorf("failed to parse strategy YAML: %w", err)
	}

	if err := l.validate(def); err != nil {
		return models.StrategyDefinition{}, err
	}

	// Assign an id for definitions that do not carry one
	if def.ID == "" {
		def.ID = uuid.New().String()
	}

	return def, nil
}

// LoadFile reads and parses a strategy definition file
func (l *StrategyLoader) LoadFile(path string) (models.StrategyDefinition, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return models.StrategyDefinition{}, fmt.Errorf("failed to read strategy file: %w", err)
	}

	return l.Parse(content)
}

// validate checks the required fields of a strategy definition
func (l *StrategyLoader) validate(def models.StrategyDefinition) error {
	if def.Name == "" {
		return fmt.Errorf("strategy name is required")
	}
	if def.Code == "" {
		return fmt.Errorf("strategy code is required")
	}

	return nil
}
