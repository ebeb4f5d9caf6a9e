package amr

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

var fixedNow = time.Date(2024, 1, 12, 9, 30, 5, 0, time.UTC)

func TestSynergyOverridesClassScore(t *testing.T) {
	kb := DefaultKnowledgeBase()
	doc, err := kb.Analyze("E. coli", []string{"gyrA", "parC"}, fixedNow)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(doc.DetectedResistance) != 1 {
		t.Fatalf("expected one drug class, got %+v", doc.DetectedResistance)
	}
	item := doc.DetectedResistance[0]
	if item.Antibiotic != "Fluoroquinolones" || !item.IsSynergistic {
		t.Fatalf("expected synergistic fluoroquinolone entry, got %+v", item)
	}
	if item.Confidence.Score != 0.9 || item.Confidence.Level != "High" {
		t.Fatalf("expected boosted score 0.9/High, got %+v", item.Confidence)
	}
	if strings.Join(item.Genes, ",") != "gyrA,parC" || len(item.Mechanisms) != 2 {
		t.Fatalf("unexpected markers %+v", item)
	}
	if item.SynergyNote == "" {
		t.Fatal("expected synergy note to be attached")
	}
}

func TestSingleMarkerWithoutSynergy(t *testing.T) {
	kb := DefaultKnowledgeBase()
	doc, err := kb.Analyze("", []string{"gyrA"}, fixedNow)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	item := doc.DetectedResistance[0]
	if item.IsSynergistic || item.Confidence.Score != 0.4 || item.Confidence.Level != "Low" {
		t.Fatalf("unexpected single-marker entry %+v", item)
	}
}

func TestClassesKeepFirstSeenOrder(t *testing.T) {
	kb := DefaultKnowledgeBase()
	doc, err := kb.Analyze("S. aureus", []string{"tetM", "mecA", "unknownGene", "tetm", "blaCTX-M"}, fixedNow)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	var classes []string
	for _, item := range doc.DetectedResistance {
		classes = append(classes, item.Antibiotic)
	}
	if got := strings.Join(classes, ","); got != "Tetracyclines,Beta-lactams,Cephalosporins" {
		t.Fatalf("unexpected class order %s", got)
	}
	if doc.DetectedResistance[0].Confidence.Level != "Medium" {
		t.Fatalf("expected tetM to be Medium, got %+v", doc.DetectedResistance[0].Confidence)
	}
	if len(doc.GenesAnalyzed) != 4 {
		t.Fatalf("expected duplicates dropped from analyzed genes, got %v", doc.GenesAnalyzed)
	}
}

func TestOrganismFilter(t *testing.T) {
	kb, err := LoadKnowledgeBase(strings.NewReader(`
markers:
  - {gene: geneX, antibiotic: DrugX, drug_class: ClassX, mechanism: M, organism: S. aureus, impact: 0.8}
  - {gene: geneY, antibiotic: DrugY, drug_class: ClassY, mechanism: M, impact: 0.5}
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	doc, err := kb.Analyze("E. coli", []string{"geneX", "geneY"}, fixedNow)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(doc.DetectedResistance) != 1 || doc.DetectedResistance[0].Antibiotic != "ClassY" {
		t.Fatalf("expected organism-bound marker to be skipped, got %+v", doc.DetectedResistance)
	}
	doc, err = kb.Analyze("s. aureus", []string{"geneX"}, fixedNow)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if len(doc.DetectedResistance) != 1 {
		t.Fatalf("expected matching organism to keep marker, got %+v", doc.DetectedResistance)
	}
}

func TestSynergyNeedsDetectedClass(t *testing.T) {
	kb, err := LoadKnowledgeBase(strings.NewReader(`
markers:
  - {gene: a, antibiotic: D, drug_class: Other, mechanism: M, impact: 0.2}
synergy_rules:
  - {genes_required: [a, b], drug_class: Target, boosted_impact: 0.95}
`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	doc, err := kb.Analyze("", []string{"a", "b"}, fixedNow)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	for _, item := range doc.DetectedResistance {
		if item.IsSynergistic || item.Antibiotic == "Target" {
			t.Fatalf("rule should not fire without a detected marker in its class: %+v", item)
		}
	}
}

func TestAnalyzeRequiresGenes(t *testing.T) {
	kb := DefaultKnowledgeBase()
	if _, err := kb.Analyze("E. coli", []string{" ", ""}, fixedNow); !errors.Is(err, ErrNoGenes) {
		t.Fatalf("expected ErrNoGenes, got %v", err)
	}
}

func TestUnknownGenesYieldEmptyProfile(t *testing.T) {
	doc, err := DefaultKnowledgeBase().Analyze("E. coli", []string{"notAGene"}, fixedNow)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if doc.DetectedResistance == nil || len(doc.DetectedResistance) != 0 {
		t.Fatalf("expected empty, non-nil profile, got %#v", doc.DetectedResistance)
	}
}

func TestReportJSON(t *testing.T) {
	doc, err := DefaultKnowledgeBase().Analyze("K. pneumoniae", []string{"blaOXA-48"}, fixedNow)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	var buf bytes.Buffer
	if err := WriteJSON(&buf, doc); err != nil {
		t.Fatalf("write json: %v", err)
	}
	var decoded struct {
		Metadata struct {
			Organism   string `json:"organism"`
			Timestamp  string `json:"timestamp"`
			Disclaimer string `json:"disclaimer"`
			ModelType  string `json:"modelType"`
		} `json:"metadata"`
		DetectedResistance []map[string]any `json:"detectedResistance"`
		GenesAnalyzed      []string         `json:"genesAnalyzed"`
	}
	if err := json.Unmarshal(buf.Bytes(), &decoded); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Metadata.Timestamp != "2024-01-12 09:30:05" {
		t.Fatalf("unexpected timestamp %q", decoded.Metadata.Timestamp)
	}
	if decoded.Metadata.Disclaimer != Disclaimer || decoded.Metadata.ModelType != ModelType {
		t.Fatalf("unexpected metadata %+v", decoded.Metadata)
	}
	if len(decoded.DetectedResistance) != 1 || decoded.DetectedResistance[0]["isSynergistic"] != false {
		t.Fatalf("unexpected profile %+v", decoded.DetectedResistance)
	}
	if _, ok := decoded.DetectedResistance[0]["synergyNote"]; ok {
		t.Fatal("expected synergy note omitted for non-synergistic entries")
	}
}

func TestConfidenceThresholds(t *testing.T) {
	cases := map[float64]string{0.95: "High", 0.9: "High", 0.89: "Medium", 0.7: "Medium", 0.69: "Low", 0: "Low"}
	for score, want := range cases {
		if got := ConfidenceFor(score).Level; got != want {
			t.Fatalf("ConfidenceFor(%v) = %s, want %s", score, got, want)
		}
	}
}

func TestSearchReferenceRecords(t *testing.T) {
	kb := DefaultKnowledgeBase()
	if got := kb.Search(""); len(got) != 5 {
		t.Fatalf("expected all 5 records for empty term, got %d", len(got))
	}
	got := kb.Search("AUREUS")
	if len(got) != 1 || got[0].ID != "AMR004" {
		t.Fatalf("expected organism match AMR004, got %+v", got)
	}
	got = kb.Search("macro")
	if len(got) != 1 || got[0].Gene != "erm(B)" {
		t.Fatalf("expected antibiotic match erm(B), got %+v", got)
	}
	if got := kb.Search("zzz"); len(got) != 0 {
		t.Fatalf("expected no matches, got %+v", got)
	}
}

func TestLoadKnowledgeBaseValidates(t *testing.T) {
	if _, err := LoadKnowledgeBase(strings.NewReader("markers:\n  - {gene: a, drug_class: C, impact: 1.5}\n")); err == nil {
		t.Fatal("expected impact range error")
	}
	if _, err := LoadKnowledgeBase(strings.NewReader("markers:\n  - {gene: a, drug_class: C, impact: 0.5}\n  - {gene: A, drug_class: C, impact: 0.5}\n")); err == nil {
		t.Fatal("expected duplicate gene error")
	}
	if _, err := LoadKnowledgeBase(strings.NewReader("unknown_section: []\n")); err == nil {
		t.Fatal("expected unknown field error")
	}
	kb := DefaultKnowledgeBase()
	if len(kb.Genes()) != 7 || len(kb.Organisms) != 4 {
		t.Fatalf("unexpected default knowledge base sizes: %d genes, %d organisms", len(kb.Genes()), len(kb.Organisms))
	}
}
