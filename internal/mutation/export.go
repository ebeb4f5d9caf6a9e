package mutation

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"helixsim/internal/model"
)

type Summary struct {
	TotalMutations  int `json:"totalMutations"`
	Substitutions   int `json:"substitutions"`
	Insertions      int `json:"insertions"`
	Deletions       int `json:"deletions"`
	FinalGeneration int `json:"finalGeneration"`
}

// Document is the structured export of a run.
type Document struct {
	FinalSequence   string                  `json:"finalSequence"`
	Mutations       []model.MutationRecord  `json:"mutations"`
	GenerationStats []model.GenerationStats `json:"generationStats"`
	Summary         Summary                 `json:"summary"`
}

func (r *Run) Export() Document {
	return NewDocument(string(r.working), r.ledger, r.stats, r.generation)
}

func NewDocument(final string, ledger []model.MutationRecord, stats []model.GenerationStats, generation int) Document {
	doc := Document{
		FinalSequence:   final,
		Mutations:       append([]model.MutationRecord{}, ledger...),
		GenerationStats: append([]model.GenerationStats{}, stats...),
		Summary: Summary{
			TotalMutations:  len(ledger),
			FinalGeneration: generation,
		},
	}
	for _, m := range ledger {
		switch m.Type {
		case model.MutationSubstitution:
			doc.Summary.Substitutions++
		case model.MutationInsertion:
			doc.Summary.Insertions++
		case model.MutationDeletion:
			doc.Summary.Deletions++
		}
	}
	return doc
}

// DocumentFromRecord rebuilds the export of a persisted run.
func DocumentFromRecord(run model.MutationRun) Document {
	generation := 0
	if n := len(run.GenerationStats); n > 0 {
		generation = run.GenerationStats[n-1].Generation
	}
	return NewDocument(run.FinalSequence, run.Mutations, run.GenerationStats, generation)
}

func (d Document) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(d); err != nil {
		return fmt.Errorf("encode mutation export: %w", err)
	}
	return nil
}

// WriteLedgerCSV writes one row per ledger entry.
func (d Document) WriteLedgerCSV(w io.Writer) error {
	return WriteLedgerCSV(w, d.Mutations)
}

func WriteLedgerCSV(w io.Writer, ledger []model.MutationRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"position", "reference", "variant", "type"}); err != nil {
		return err
	}
	for _, m := range ledger {
		if err := cw.Write([]string{
			strconv.Itoa(m.Position),
			m.OriginalBase,
			m.MutatedBase,
			string(m.Type),
		}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func (r *Run) WriteJSON(w io.Writer) error {
	return r.Export().WriteJSON(w)
}

func (r *Run) WriteLedgerCSV(w io.Writer) error {
	return WriteLedgerCSV(w, r.ledger)
}

// Record converts the run into its persisted form. Identity fields are left
// for the caller to assign.
func (r *Run) Record(header string) model.MutationRun {
	snap := r.Snapshot()
	return model.MutationRun{
		Header:          header,
		Reference:       r.reference,
		Seed:            snap.Seed,
		Parameters:      r.params,
		FinalSequence:   snap.Sequence,
		Mutations:       snap.Mutations,
		GenerationStats: snap.GenerationStats,
	}
}
