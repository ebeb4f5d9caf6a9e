package growth

import (
	"bufio"
	"fmt"
	"io"
	"math"
	"strings"

	"helixsim/internal/model"
	"helixsim/internal/sequence"
)

// resistancePatterns are counted in the FASTA header only.
var resistancePatterns = []string{"gyrA", "rpoB", "katG", "efflux", "beta"}

const largeGenomeThreshold = 5_000_000

// GenomeEstimate is a placeholder heuristic, not an annotation: it derives
// strain parameters from header keywords and GC content.
type GenomeEstimate struct {
	Header              string  `json:"header"`
	Length              int     `json:"length"`
	GCContent           float64 `json:"gcContent"`
	ResistanceGenes     int     `json:"resistanceGenes"`
	EstimatedGrowthRate float64 `json:"estimatedGrowthRate"`
	EstimatedResistance float64 `json:"estimatedResistance"`
}

// EstimateFromFASTA scans raw FASTA text. The last header line wins and
// every other non-blank line is taken as sequence without filtering.
func EstimateFromFASTA(r io.Reader) (GenomeEstimate, error) {
	var (
		header string
		seq    strings.Builder
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		switch {
		case strings.HasPrefix(line, ">"):
			header = line[1:]
		case line != "":
			seq.WriteString(line)
		}
	}
	if err := scanner.Err(); err != nil {
		return GenomeEstimate{}, fmt.Errorf("read fasta: %w", err)
	}
	if seq.Len() == 0 {
		return GenomeEstimate{}, sequence.ErrNoSequence
	}
	return Estimate(header, seq.String()), nil
}

func Estimate(header, raw string) GenomeEstimate {
	length := len(raw)
	gc := 0
	for i := 0; i < length; i++ {
		switch raw[i] {
		case 'G', 'C', 'g', 'c':
			gc++
		}
	}
	gcContent := float64(gc) / float64(length) * 100

	lowered := strings.ToLower(header)
	hits := 0
	for _, p := range resistancePatterns {
		hits += strings.Count(lowered, strings.ToLower(p))
	}

	growthRate := MaxGrowthRate
	if length > largeGenomeThreshold {
		growthRate -= 0.05
	}
	return GenomeEstimate{
		Header:              header,
		Length:              length,
		GCContent:           gcContent,
		ResistanceGenes:     hits,
		EstimatedGrowthRate: math.Max(0.1, growthRate),
		EstimatedResistance: math.Min(0.8, float64(hits)*0.15+gcContent/100*0.1),
	}
}

// Strain turns the estimate into a selectable strain.
func (g GenomeEstimate) Strain() model.Strain {
	name := g.Header
	if name == "" {
		name = "FASTA Strain"
	}
	return model.Strain{
		Key:  "genome",
		Name: name,
		Description: fmt.Sprintf("Genome: %d bp | GC: %.1f%% | Resistance Genes: %d",
			g.Length, g.GCContent, g.ResistanceGenes),
		BaseGrowthRate:     g.EstimatedGrowthRate,
		OptimalTemperature: optimalTemperature,
		BaselineResistance: g.EstimatedResistance,
	}
}
