package storage

import "helixsim/internal/model"

func sampleMutationRun(id, created string) model.MutationRun {
	return model.MutationRun{
		VersionedRecord: CurrentVersion(),
		ID:              id,
		CreatedAtUTC:    created,
		Header:          "demo",
		Reference:       "ATGCATGC",
		Seed:            42,
		FinalSequence:   "ATGCGTGC",
		Mutations: []model.MutationRecord{{
			Generation: 1, Position: 4, Type: model.MutationSubstitution,
			OriginalBase: "A", MutatedBase: "G", AminoAcidChange: "H->R", Context: model.ContextCoding,
		}},
		GenerationStats: []model.GenerationStats{{Generation: 1, Fitness: 98.5, MutationCount: 1, CumulativeMutations: 1, Progress: 100}},
	}
}

func sampleGrowthRun(id, created string) model.GrowthRun {
	return model.GrowthRun{
		VersionedRecord: CurrentVersion(),
		ID:              id,
		CreatedAtUTC:    created,
		Strain:          model.Strain{Key: "ecoli", Name: "E. coli"},
		Seed:            7,
		Ticks:           2,
		FinalPopulation: 1400,
		GrowthHistory:   []model.GrowthPoint{{Time: 1, Population: 1200}, {Time: 2, Population: 1400}},
		AdaptationLog:   []string{"Culture inoculated."},
	}
}

func sampleReport(id, created string) model.ResistanceReport {
	return model.ResistanceReport{
		VersionedRecord: CurrentVersion(),
		ID:              id,
		CreatedAtUTC:    created,
		Document: model.ResistanceDocument{
			Metadata: model.ReportMetadata{Organism: "E. coli"},
			DetectedResistance: []model.ResistanceProfileItem{{
				Antibiotic:    "Fluoroquinolones",
				Confidence:    model.Confidence{Level: "High", Score: 0.9},
				Genes:         []string{"gyrA", "parC"},
				Mechanisms:    []string{"DNA Gyrase mutation", "Topoisomerase IV mutation"},
				IsSynergistic: true,
			}},
			GenesAnalyzed: []string{"gyrA", "parC"},
		},
	}
}
