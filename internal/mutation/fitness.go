package mutation

import (
	"helixsim/internal/codon"
	"helixsim/internal/model"
	"helixsim/internal/numeric"
)

const (
	maxFitness           = 100.0
	missensePenalty      = 1.5
	indelPenalty         = 10.0
	prematureStopPenalty = 5.0
)

// Fitness scores a mutation history against the sequence it produced. It walks
// the whole ledger every call, which is fine for short runs over small
// sequences but grows with generations times mutations.
func Fitness(ledger []model.MutationRecord, final string) float64 {
	score := maxFitness
	for _, m := range ledger {
		switch m.Type {
		case model.MutationSubstitution:
			if m.Context == model.ContextCoding && m.AminoAcidChange != model.NoAminoAcidChange {
				score -= missensePenalty
			}
		case model.MutationInsertion, model.MutationDeletion:
			score -= indelPenalty
		}
	}
	score -= prematureStopPenalty * float64(PrematureStops(final))
	return numeric.Clamp(score, 0, maxFitness)
}

// PrematureStops counts stop codons among the non-overlapping frame-0 triples
// of seq, ignoring the last complete triple.
func PrematureStops(seq string) int {
	triples := len(seq) / 3
	stops := 0
	for k := 0; k < triples-1; k++ {
		if codon.IsStop(seq[k*3 : k*3+3]) {
			stops++
		}
	}
	return stops
}
