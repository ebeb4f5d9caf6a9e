// Package mutation implements the generation-stepped nucleotide substitution
// engine. A Run owns its reference sequence, working copy, ledger, statistics
// and random stream; callers drive it one generation at a time.
package mutation

import (
	"fmt"

	"helixsim/internal/codon"
	"helixsim/internal/model"
	"helixsim/internal/rng"
	"helixsim/internal/sequence"
)

const gap = "-"

var nucleotides = [4]byte{'A', 'C', 'G', 'T'}

var transitions = map[byte]byte{
	'A': 'G',
	'G': 'A',
	'C': 'T',
	'T': 'C',
}

var transversions = map[byte][2]byte{
	'A': {'C', 'T'},
	'G': {'C', 'T'},
	'C': {'A', 'G'},
	'T': {'A', 'G'},
}

type Options struct {
	// Seed for the run's random stream. Zero picks a wall-clock seed which
	// is then reported by Seed.
	Seed int64
	// ReseedPerGeneration derives a fresh deterministic seed from the run
	// seed at the start of every generation instead of continuing one stream.
	ReseedPerGeneration bool
	// IndelRate widens the per-position draw window beyond the substitution
	// rate; draws landing in it insert or delete a base.
	IndelRate float64
	// NonCodingTail is the number of trailing bases labelled non-coding.
	// Zero selects DefaultNonCodingTail; a negative value labels every
	// position coding.
	NonCodingTail int
}

// GenerationResult is what one Step produced.
type GenerationResult struct {
	Generation int                    `json:"generation"`
	Mutations  []model.MutationRecord `json:"mutations"`
	Stats      model.GenerationStats  `json:"stats"`
	Sequence   string                 `json:"sequence"`
}

type Run struct {
	reference string
	params    model.SimulationParameters
	opts      Options
	rate      float64

	rng        *rng.LCG
	working    []byte
	generation int
	ledger     []model.MutationRecord
	stats      []model.GenerationStats
}

// NewRun validates the inputs and returns a run positioned at generation 0.
func NewRun(reference string, params model.SimulationParameters, opts Options) (*Run, error) {
	normalized := sequence.Normalize(reference)
	if normalized == "" {
		return nil, sequence.ErrNoSequence
	}
	params, err := NormalizeParameters(params)
	if err != nil {
		return nil, err
	}
	if !validIndelRate(opts.IndelRate) {
		return nil, fmt.Errorf("%w: indel rate must be within [0, %v]", ErrInvalidParameter, MaxSubstitutionRate)
	}
	if opts.NonCodingTail == 0 {
		opts.NonCodingTail = DefaultNonCodingTail
	}

	r := &Run{
		reference: normalized,
		params:    params,
		opts:      opts,
		rate:      EffectiveRate(params),
		rng:       rng.New(opts.Seed),
	}
	r.opts.Seed = r.rng.Seed()
	r.working = []byte(normalized)
	return r, nil
}

func (r *Run) Seed() int64 {
	return r.opts.Seed
}

func (r *Run) Parameters() model.SimulationParameters {
	return r.params
}

func (r *Run) Reference() string {
	return r.reference
}

func (r *Run) EffectiveRate() float64 {
	return r.rate
}

func (r *Run) Generation() int {
	return r.generation
}

// Done reports whether the configured generation count has been reached.
func (r *Run) Done() bool {
	return r.generation >= r.params.NumGenerations
}

// Step advances exactly one generation. Once the run is done it is a no-op
// and reports advanced=false.
func (r *Run) Step() (result GenerationResult, advanced bool) {
	if r.Done() {
		return GenerationResult{}, false
	}
	generation := r.generation + 1
	if r.opts.ReseedPerGeneration {
		r.rng.Reseed(rng.GenerationSeed(r.opts.Seed, generation))
	}

	pre := r.working
	n := len(pre)
	next := make([]byte, 0, n)
	added := make([]model.MutationRecord, 0)
	indelLimit := r.rate + r.opts.IndelRate

	for i := 0; i < n; i++ {
		base := pre[i]
		draw := r.rng.Float64()
		if base == 'N' {
			next = append(next, base)
			continue
		}
		switch {
		case draw < r.rate:
			mutated := r.substitute(base)
			next = append(next, mutated)
			added = append(added, model.MutationRecord{
				Generation:      generation,
				Position:        i,
				Type:            model.MutationSubstitution,
				OriginalBase:    string(base),
				MutatedBase:     string(mutated),
				AminoAcidChange: aminoAcidChange(pre, i, mutated),
				Context:         r.context(i, n),
			})
		case draw < indelLimit:
			record := model.MutationRecord{
				Generation:      generation,
				Position:        i,
				AminoAcidChange: model.NoAminoAcidChange,
				Context:         r.context(i, n),
			}
			if r.rng.Float64() < 0.5 {
				inserted := nucleotides[r.rng.Intn(len(nucleotides))]
				next = append(next, base, inserted)
				record.Type = model.MutationInsertion
				record.OriginalBase = gap
				record.MutatedBase = string(inserted)
			} else {
				record.Type = model.MutationDeletion
				record.OriginalBase = string(base)
				record.MutatedBase = gap
			}
			added = append(added, record)
		default:
			next = append(next, base)
		}
	}

	r.working = next
	r.generation = generation
	r.ledger = append(r.ledger, added...)

	cumulative := len(added)
	if len(r.stats) > 0 {
		cumulative += r.stats[len(r.stats)-1].CumulativeMutations
	}
	stats := model.GenerationStats{
		Generation:          generation,
		Fitness:             Fitness(r.ledger, string(r.working)),
		MutationCount:       len(added),
		CumulativeMutations: cumulative,
		Progress:            float64(generation) / float64(r.params.NumGenerations) * 100,
	}
	r.stats = append(r.stats, stats)

	return GenerationResult{
		Generation: generation,
		Mutations:  added,
		Stats:      stats,
		Sequence:   string(r.working),
	}, true
}

// Reset rewinds to generation 0 and reseeds with the run seed, so a reset
// run replays the same trajectory.
func (r *Run) Reset() {
	r.generation = 0
	r.ledger = nil
	r.stats = nil
	r.working = []byte(r.reference)
	r.rng.Reseed(r.opts.Seed)
}

type Snapshot struct {
	Seed            int64                   `json:"seed"`
	Generation      int                     `json:"generation"`
	NumGenerations  int                     `json:"numGenerations"`
	EffectiveRate   float64                 `json:"effectiveRate"`
	Sequence        string                  `json:"sequence"`
	Mutations       []model.MutationRecord  `json:"mutations"`
	GenerationStats []model.GenerationStats `json:"generationStats"`
	Done            bool                    `json:"done"`
}

func (r *Run) Snapshot() Snapshot {
	return Snapshot{
		Seed:            r.opts.Seed,
		Generation:      r.generation,
		NumGenerations:  r.params.NumGenerations,
		EffectiveRate:   r.rate,
		Sequence:        string(r.working),
		Mutations:       append([]model.MutationRecord(nil), r.ledger...),
		GenerationStats: append([]model.GenerationStats(nil), r.stats...),
		Done:            r.Done(),
	}
}

func (r *Run) substitute(base byte) byte {
	if r.rng.Float64() < transitionProbability {
		return transitions[base]
	}
	choices := transversions[base]
	return choices[r.rng.Intn(len(choices))]
}

func (r *Run) context(position, length int) model.CodingContext {
	if r.opts.NonCodingTail > 0 && position >= length-r.opts.NonCodingTail {
		return model.ContextNonCoding
	}
	return model.ContextCoding
}

// aminoAcidChange classifies a substitution at position against the codon
// read from the pre-step sequence.
func aminoAcidChange(pre []byte, position int, mutated byte) string {
	start := position / 3 * 3
	if start+3 > len(pre) {
		return model.NoAminoAcidChange
	}
	original := string(pre[start : start+3])
	variant := []byte(original)
	variant[position%3] = mutated

	before, ok := codon.Translate(original)
	if !ok {
		return model.NoAminoAcidChange
	}
	after, ok := codon.Translate(string(variant))
	if !ok || before == after {
		return model.NoAminoAcidChange
	}
	return before + "->" + after
}

func validIndelRate(v float64) bool {
	return v >= 0 && v <= MaxSubstitutionRate
}
