// Package amr is a rule-based antimicrobial resistance predictor: a static
// marker knowledge base, drug-class aggregation and synergy rules.
package amr

import (
	_ "embed"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"

	"helixsim/internal/numeric"
)

//go:embed knowledge.yaml
var defaultKnowledge []byte

type Marker struct {
	Gene       string  `json:"gene" yaml:"gene"`
	Antibiotic string  `json:"antibiotic" yaml:"antibiotic"`
	DrugClass  string  `json:"drugClass" yaml:"drug_class"`
	Mechanism  string  `json:"mechanism" yaml:"mechanism"`
	Organism   string  `json:"organism,omitempty" yaml:"organism"`
	Impact     float64 `json:"impact" yaml:"impact"`
}

// SynergyRule overrides a drug class score when every required gene is
// selected and the class already has a detected marker.
type SynergyRule struct {
	GenesRequired []string `json:"genesRequired" yaml:"genes_required"`
	DrugClass     string   `json:"drugClass" yaml:"drug_class"`
	BoostedImpact float64  `json:"boostedImpact" yaml:"boosted_impact"`
	Note          string   `json:"note" yaml:"note"`
}

type ReferenceRecord struct {
	ID         string  `json:"id" yaml:"id"`
	Gene       string  `json:"gene" yaml:"gene"`
	Antibiotic string  `json:"antibiotic" yaml:"antibiotic"`
	DrugClass  string  `json:"drugClass" yaml:"drug_class"`
	Mechanism  string  `json:"mechanism" yaml:"mechanism"`
	Organism   string  `json:"organism" yaml:"organism"`
	Impact     float64 `json:"impact" yaml:"impact"`
}

type KnowledgeBase struct {
	Markers          []Marker          `yaml:"markers"`
	SynergyRules     []SynergyRule     `yaml:"synergy_rules"`
	Organisms        []string          `yaml:"organisms"`
	ReferenceRecords []ReferenceRecord `yaml:"reference_records"`

	byGene map[string]int
}

// DefaultKnowledgeBase returns the built-in knowledge base.
func DefaultKnowledgeBase() *KnowledgeBase {
	kb, err := LoadKnowledgeBase(strings.NewReader(string(defaultKnowledge)))
	if err != nil {
		panic(err)
	}
	return kb
}

// LoadKnowledgeBase decodes and validates a YAML knowledge base.
func LoadKnowledgeBase(r io.Reader) (*KnowledgeBase, error) {
	var kb KnowledgeBase
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&kb); err != nil {
		return nil, fmt.Errorf("decode knowledge base: %w", err)
	}
	if err := kb.index(); err != nil {
		return nil, err
	}
	return &kb, nil
}

func (kb *KnowledgeBase) index() error {
	kb.byGene = make(map[string]int, len(kb.Markers))
	for i, m := range kb.Markers {
		if m.Gene == "" || m.DrugClass == "" {
			return fmt.Errorf("marker %d: gene and drug class are required", i)
		}
		if !validImpact(m.Impact) {
			return fmt.Errorf("marker %s: impact must be within [0, 1]", m.Gene)
		}
		key := geneKey(m.Gene)
		if _, dup := kb.byGene[key]; dup {
			return fmt.Errorf("duplicate marker gene: %s", m.Gene)
		}
		kb.byGene[key] = i
	}
	for i, rule := range kb.SynergyRules {
		if len(rule.GenesRequired) == 0 || rule.DrugClass == "" {
			return fmt.Errorf("synergy rule %d: required genes and drug class are required", i)
		}
		if !validImpact(rule.BoostedImpact) {
			return fmt.Errorf("synergy rule %d: boosted impact must be within [0, 1]", i)
		}
	}
	return nil
}

// Marker looks a gene up by name, ignoring case.
func (kb *KnowledgeBase) Marker(gene string) (Marker, bool) {
	i, ok := kb.byGene[geneKey(gene)]
	if !ok {
		return Marker{}, false
	}
	return kb.Markers[i], true
}

// Genes lists the marker genes in knowledge-base order.
func (kb *KnowledgeBase) Genes() []string {
	out := make([]string, 0, len(kb.Markers))
	for _, m := range kb.Markers {
		out = append(out, m.Gene)
	}
	return out
}

// Search matches term as a case-insensitive substring of a reference
// record's gene, antibiotic or organism. An empty term matches everything.
func (kb *KnowledgeBase) Search(term string) []ReferenceRecord {
	needle := strings.ToLower(strings.TrimSpace(term))
	out := make([]ReferenceRecord, 0, len(kb.ReferenceRecords))
	for _, rec := range kb.ReferenceRecords {
		if strings.Contains(strings.ToLower(rec.Gene), needle) ||
			strings.Contains(strings.ToLower(rec.Antibiotic), needle) ||
			strings.Contains(strings.ToLower(rec.Organism), needle) {
			out = append(out, rec)
		}
	}
	return out
}

func geneKey(gene string) string {
	return strings.ToLower(strings.TrimSpace(gene))
}

func validImpact(v float64) bool {
	return numeric.Finite(v) && v >= 0 && v <= 1
}
