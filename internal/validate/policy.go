package validate

import (
	"errors"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/torqueline/estimator/internal/signal"
)

// UnitMode selects which numeric signal observations are expected to carry.
type UnitMode string

const (
	ModePrice UnitMode = "price"
	ModeHours UnitMode = "hours"
)

// Policy configures a Validator: which domains count as trusted, which
// phrases signal availability, and which unit the extractor looks for.
type Policy struct {
	Mode            UnitMode      `yaml:"mode"`
	TrustedDomains  []string      `yaml:"trusted_domains"`
	PositivePhrases []string      `yaml:"positive_phrases"`
	NegativePhrases []string      `yaml:"negative_phrases"`
	Bounds          *BoundsConfig `yaml:"bounds,omitempty"`
}

// BoundsConfig overrides the extractor bounds from a policy file.
type BoundsConfig struct {
	CurrencyMin float64 `yaml:"currency_min"`
	CurrencyMax float64 `yaml:"currency_max"`
	HoursMin    float64 `yaml:"hours_min"`
	HoursMax    float64 `yaml:"hours_max"`
}

// DefaultPolicy returns the built-in policy for a mode. Trusted domains
// cover the major US parts retailers; callers with a supplier list of
// their own override them.
func DefaultPolicy(mode UnitMode) Policy {
	return Policy{
		Mode: mode,
		TrustedDomains: []string{
			"rockauto.com",
			"autozone.com",
			"oreillyauto.com",
			"advanceautoparts.com",
			"napaonline.com",
			"summitracing.com",
			"partsgeek.com",
			"amazon.com",
		},
		PositivePhrases: []string{"in stock", "available", "ships", "add to cart"},
		NegativePhrases: []string{"out of stock", "discontinued", "backorder"},
	}
}

// LoadPolicy reads a validation policy from a YAML file. A missing file
// yields the zero policy; New fills any gaps from the defaults.
func LoadPolicy(path string) (Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Policy{}, nil
		}
		return Policy{}, eris.Wrapf(err, "validate: read policy %s", path)
	}

	var wrapper struct {
		Validation Policy `yaml:"validation"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return Policy{}, eris.Wrap(err, "validate: parse policy")
	}
	return wrapper.Validation, nil
}

// withDefaults fills unset policy fields from DefaultPolicy.
func (p Policy) withDefaults() Policy {
	if p.Mode == "" {
		p.Mode = ModePrice
	}
	def := DefaultPolicy(p.Mode)
	if len(p.TrustedDomains) == 0 {
		p.TrustedDomains = def.TrustedDomains
	}
	if len(p.PositivePhrases) == 0 {
		p.PositivePhrases = def.PositivePhrases
	}
	if len(p.NegativePhrases) == 0 {
		p.NegativePhrases = def.NegativePhrases
	}
	return p
}

// signalBounds resolves the extractor bounds for this policy. The hours
// mode raises the duration floor the way flat-rate lookups expect.
func (p Policy) signalBounds() signal.Bounds {
	if p.Bounds != nil {
		return signal.Bounds{
			CurrencyMin: p.Bounds.CurrencyMin,
			CurrencyMax: p.Bounds.CurrencyMax,
			HoursMin:    p.Bounds.HoursMin,
			HoursMax:    p.Bounds.HoursMax,
		}
	}
	if p.Mode == ModeHours {
		return signal.LaborBounds()
	}
	return signal.DefaultBounds()
}
