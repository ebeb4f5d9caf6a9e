package amr

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/ncruces/go-strftime"

	"helixsim/internal/model"
)

var ErrNoGenes = errors.New("at least one gene must be selected")

const (
	Disclaimer      = "Research tool only. Not for clinical use."
	ModelType       = "Rule-based (Synergy-aware)"
	TimestampFormat = "%Y-%m-%d %H:%M:%S"

	highConfidence   = 0.9
	mediumConfidence = 0.7
)

// Analyze builds the resistance profile for the selected genes. Unknown
// genes and markers bound to another organism are ignored; drug classes keep
// the order in which they were first hit.
func (kb *KnowledgeBase) Analyze(organism string, genes []string, now time.Time) (model.ResistanceDocument, error) {
	selected := dedupe(genes)
	if len(selected) == 0 {
		return model.ResistanceDocument{}, ErrNoGenes
	}

	var order []string
	byClass := make(map[string]*model.ResistanceProfileItem)
	selectedKeys := make(map[string]struct{}, len(selected))
	for _, gene := range selected {
		selectedKeys[geneKey(gene)] = struct{}{}
		marker, ok := kb.Marker(gene)
		if !ok || !matchesOrganism(marker, organism) {
			continue
		}
		item, ok := byClass[marker.DrugClass]
		if !ok {
			item = &model.ResistanceProfileItem{Antibiotic: marker.DrugClass}
			byClass[marker.DrugClass] = item
			order = append(order, marker.DrugClass)
		}
		item.Genes = append(item.Genes, marker.Gene)
		item.Mechanisms = append(item.Mechanisms, marker.Mechanism)
		if marker.Impact > item.Confidence.Score {
			item.Confidence.Score = marker.Impact
		}
	}

	for _, rule := range kb.SynergyRules {
		item, ok := byClass[rule.DrugClass]
		if !ok || !containsAll(selectedKeys, rule.GenesRequired) {
			continue
		}
		item.Confidence.Score = rule.BoostedImpact
		item.IsSynergistic = true
		item.SynergyNote = rule.Note
	}

	profile := make([]model.ResistanceProfileItem, 0, len(order))
	for _, class := range order {
		item := byClass[class]
		item.Confidence = ConfidenceFor(item.Confidence.Score)
		profile = append(profile, *item)
	}
	return model.ResistanceDocument{
		Metadata: model.ReportMetadata{
			Organism:   organism,
			Timestamp:  strftime.Format(TimestampFormat, now),
			Disclaimer: Disclaimer,
			ModelType:  ModelType,
		},
		DetectedResistance: profile,
		GenesAnalyzed:      selected,
	}, nil
}

// ConfidenceFor labels a score High at 0.9 and above, Medium at 0.7 and
// above, and Low otherwise.
func ConfidenceFor(score float64) model.Confidence {
	level := "Low"
	switch {
	case score >= highConfidence:
		level = "High"
	case score >= mediumConfidence:
		level = "Medium"
	}
	return model.Confidence{Level: level, Score: score}
}

func WriteJSON(w io.Writer, doc model.ResistanceDocument) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode resistance report: %w", err)
	}
	return nil
}

func matchesOrganism(m Marker, organism string) bool {
	return m.Organism == "" || organism == "" || strings.EqualFold(m.Organism, strings.TrimSpace(organism))
}

func containsAll(set map[string]struct{}, genes []string) bool {
	for _, g := range genes {
		if _, ok := set[geneKey(g)]; !ok {
			return false
		}
	}
	return true
}

func dedupe(genes []string) []string {
	seen := make(map[string]struct{}, len(genes))
	out := make([]string, 0, len(genes))
	for _, g := range genes {
		g = strings.TrimSpace(g)
		if g == "" {
			continue
		}
		key := geneKey(g)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, g)
	}
	return out
}
