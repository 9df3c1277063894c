package detect

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// PassThresholds tunes one numeric detection pass. A disagreement is flagged
// only when it exceeds BOTH the relative tolerance and the absolute floor:
// the floor keeps small accounts from flagging trivial dollar gaps, the
// relative bound keeps huge accounts from flagging trivial percentage gaps.
type PassThresholds struct {
	RelativeTolerance float64 `yaml:"relative_tolerance"`
	AbsoluteFloorUSD  float64 `yaml:"absolute_floor_usd"`
	CriticalAboveUSD  float64 `yaml:"critical_above_usd"`
	HighAboveUSD      float64 `yaml:"high_above_usd"`
	// ImpactFactor scales the raw diff into estimated dollar impact.
	ImpactFactor float64 `yaml:"impact_factor"`
}

// Thresholds holds the tuning for the three numeric passes.
type Thresholds struct {
	Cash              PassThresholds `yaml:"cash"`
	Revenue           PassThresholds `yaml:"revenue"`
	RecurringExpenses PassThresholds `yaml:"recurring_expenses"`
}

// DefaultThresholds returns the production tuning.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Cash: PassThresholds{
			RelativeTolerance: 0.05,
			AbsoluteFloorUSD:  1_000,
			CriticalAboveUSD:  50_000,
			HighAboveUSD:      10_000,
			ImpactFactor:      1.0,
		},
		Revenue: PassThresholds{
			RelativeTolerance: 0.10,
			AbsoluteFloorUSD:  5_000,
			CriticalAboveUSD:  100_000,
			HighAboveUSD:      25_000,
			// Revenue gaps are less directly actionable than cash gaps.
			ImpactFactor: 0.3,
		},
		RecurringExpenses: PassThresholds{
			RelativeTolerance: 0.15,
			AbsoluteFloorUSD:  5_000,
			CriticalAboveUSD:  50_000,
			HighAboveUSD:      15_000,
			ImpactFactor:      0.2,
		},
	}
}

// LoadThresholds reads a YAML override file on top of the defaults. Fields
// absent from the file keep their default value. An empty path returns the
// defaults unchanged.
func LoadThresholds(path string) (Thresholds, error) {
	t := DefaultThresholds()
	if path == "" {
		return t, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return t, eris.Wrap(err, "detect: read thresholds file")
	}
	if err := yaml.Unmarshal(data, &t); err != nil {
		return t, eris.Wrap(err, "detect: parse thresholds file")
	}
	return t, nil
}
