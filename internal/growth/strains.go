package growth

import (
	_ "embed"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"helixsim/internal/model"
	"helixsim/internal/numeric"
)

const DefaultStrainKey = "ecoli"

//go:embed strains.yaml
var presetYAML []byte

var presets = mustParseStrains(presetYAML)

type strainCatalog struct {
	Strains []model.Strain `yaml:"strains"`
}

// Presets returns the built-in strains in catalog order.
func Presets() []model.Strain {
	return append([]model.Strain(nil), presets...)
}

// LookupStrain finds a preset by key, ignoring case.
func LookupStrain(key string) (model.Strain, bool) {
	return lookup(presets, key)
}

func lookup(strains []model.Strain, key string) (model.Strain, bool) {
	key = strings.ToLower(strings.TrimSpace(key))
	for _, s := range strains {
		if s.Key == key {
			return s, true
		}
	}
	return model.Strain{}, false
}

// CustomStrain is the editable starting point for a user-defined strain.
func CustomStrain() model.Strain {
	return model.Strain{
		Key:                "custom",
		Name:               "Custom Strain",
		Description:        "User-defined strain",
		BaseGrowthRate:     0.3,
		OptimalTemperature: 37,
	}
}

// LoadStrains decodes a YAML strain catalog in the same shape as the
// built-in one.
func LoadStrains(r io.Reader) ([]model.Strain, error) {
	var catalog strainCatalog
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&catalog); err != nil {
		return nil, fmt.Errorf("decode strain catalog: %w", err)
	}
	seen := make(map[string]struct{}, len(catalog.Strains))
	for i := range catalog.Strains {
		s := &catalog.Strains[i]
		s.Key = strings.ToLower(strings.TrimSpace(s.Key))
		if err := ValidateStrain(*s); err != nil {
			return nil, fmt.Errorf("strain %d: %w", i, err)
		}
		if _, dup := seen[s.Key]; dup {
			return nil, fmt.Errorf("duplicate strain key: %s", s.Key)
		}
		seen[s.Key] = struct{}{}
	}
	return catalog.Strains, nil
}

func ValidateStrain(s model.Strain) error {
	if s.Key == "" {
		return fmt.Errorf("strain key is required")
	}
	if s.Name == "" {
		return fmt.Errorf("strain %s: name is required", s.Key)
	}
	if !numeric.Finite(s.BaseGrowthRate) || s.BaseGrowthRate < 0 {
		return fmt.Errorf("strain %s: invalid growth rate %v", s.Key, s.BaseGrowthRate)
	}
	if !numeric.Finite(s.OptimalTemperature) {
		return fmt.Errorf("strain %s: invalid optimal temperature", s.Key)
	}
	if !numeric.Finite(s.BaselineResistance) || s.BaselineResistance < 0 || s.BaselineResistance > 1 {
		return fmt.Errorf("strain %s: resistance must be within [0, 1]", s.Key)
	}
	return nil
}

func mustParseStrains(data []byte) []model.Strain {
	strains, err := LoadStrains(strings.NewReader(string(data)))
	if err != nil {
		panic(err)
	}
	return strains
}
