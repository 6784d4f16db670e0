package stats

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Rules holds the variance bucket thresholds, in seconds.
type Rules struct {
	LowBelow      float64 `json:"lowBelow" yaml:"low_below"`
	HighAtOrAbove float64 `json:"highAtOrAbove" yaml:"high_at_or_above"`
}

// DefaultRules returns the built-in thresholds: Low under 1s, High from 3s.
func DefaultRules() Rules {
	return Rules{LowBelow: 1.0, HighAtOrAbove: 3.0}
}

// Bucket classifies a cycle-time deviation.
func (r Rules) Bucket(variance float64) VarianceBucket {
	switch {
	case variance < r.LowBelow:
		return VarianceLow
	case variance < r.HighAtOrAbove:
		return VarianceMedium
	default:
		return VarianceHigh
	}
}

// Validate checks that the thresholds are ordered and positive.
func (r Rules) Validate() error {
	if r.LowBelow <= 0 {
		return fmt.Errorf("low_below must be positive, got %v", r.LowBelow)
	}
	if r.HighAtOrAbove < r.LowBelow {
		return fmt.Errorf("high_at_or_above (%v) must not be below low_below (%v)", r.HighAtOrAbove, r.LowBelow)
	}
	return nil
}

// LoadRules reads thresholds from a YAML file. Keys missing from the file
// keep their default values.
func LoadRules(path string) (Rules, error) {
	file, err := os.Open(path)
	if err != nil {
		return Rules{}, fmt.Errorf("opening variance rules: %w", err)
	}
	defer file.Close()

	return LoadRulesFromReader(file)
}

// LoadRulesFromReader parses rules from an io.Reader.
func LoadRulesFromReader(r io.Reader) (Rules, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return Rules{}, err
	}

	rules := DefaultRules()
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return Rules{}, fmt.Errorf("parsing variance rules: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return Rules{}, err
	}
	return rules, nil
}
