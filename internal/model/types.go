package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

type MutationType string

const (
	MutationSubstitution MutationType = "substitution"
	MutationInsertion    MutationType = "insertion"
	MutationDeletion     MutationType = "deletion"
)

type CodingContext string

const (
	ContextCoding    CodingContext = "coding"
	ContextNonCoding CodingContext = "non-coding"
)

// NoAminoAcidChange marks a synonymous (or unclassifiable) mutation.
const NoAminoAcidChange = "none"

type MutationRecord struct {
	Generation      int           `json:"generation"`
	Position        int           `json:"position"`
	Type            MutationType  `json:"type"`
	OriginalBase    string        `json:"originalBase"`
	MutatedBase     string        `json:"mutatedBase"`
	AminoAcidChange string        `json:"aminoAcidChange"`
	Context         CodingContext `json:"context"`
}

type GenerationStats struct {
	Generation          int     `json:"generation"`
	Fitness             float64 `json:"fitness"`
	MutationCount       int     `json:"mutationCount"`
	CumulativeMutations int     `json:"cumulativeMutations"`
	Progress            float64 `json:"progress"`
}

type SimulationParameters struct {
	Temperature      float64       `json:"temperature"`
	TempUnit         TempUnit      `json:"tempUnit"`
	SubstitutionRate float64       `json:"substitutionRate"`
	NumGenerations   int           `json:"numGenerations"`
	PH               float64       `json:"pH"`
	Nutrients        NutrientLevel `json:"nutrientLevel"`
	Oxygen           OxygenLevel   `json:"oxygenLevel"`
}

type MutationRun struct {
	VersionedRecord
	ID              string               `json:"id"`
	CreatedAtUTC    string               `json:"created_at_utc"`
	Header          string               `json:"header"`
	Reference       string               `json:"reference"`
	Seed            int64                `json:"seed"`
	Parameters      SimulationParameters `json:"parameters"`
	FinalSequence   string               `json:"final_sequence"`
	Mutations       []MutationRecord     `json:"mutations"`
	GenerationStats []GenerationStats    `json:"generation_stats"`
}

type Strain struct {
	Key                string  `json:"key" yaml:"key"`
	Name               string  `json:"name" yaml:"name"`
	Description        string  `json:"description" yaml:"description"`
	BaseGrowthRate     float64 `json:"base_growth_rate" yaml:"growth_rate"`
	OptimalTemperature float64 `json:"optimal_temperature" yaml:"temp_optimal"`
	BaselineResistance float64 `json:"baseline_resistance" yaml:"resistance"`
}

type Environment struct {
	Temperature             float64 `json:"temperature"`
	PH                      float64 `json:"pH"`
	Nutrients               float64 `json:"nutrients"`
	Oxygen                  float64 `json:"oxygen"`
	AntibioticConcentration float64 `json:"antibioticConc"`
}

type GrowthPoint struct {
	Time       int `json:"time"`
	Population int `json:"population"`
}

type GrowthRun struct {
	VersionedRecord
	ID              string        `json:"id"`
	CreatedAtUTC    string        `json:"created_at_utc"`
	Strain          Strain        `json:"strain"`
	Seed            int64         `json:"seed"`
	Ticks           int           `json:"ticks"`
	FinalPopulation int           `json:"final_population"`
	FinalResistance float64       `json:"final_resistance"`
	Collapsed       bool          `json:"collapsed"`
	Environment     Environment   `json:"environment"`
	GrowthHistory   []GrowthPoint `json:"growth_history"`
	AdaptationLog   []string      `json:"adaptation_log"`
}

type Confidence struct {
	Level string  `json:"level"`
	Score float64 `json:"score"`
}

type ResistanceProfileItem struct {
	Antibiotic    string     `json:"antibiotic"`
	Confidence    Confidence `json:"confidence"`
	Genes         []string   `json:"genes"`
	Mechanisms    []string   `json:"mechanisms"`
	IsSynergistic bool       `json:"isSynergistic"`
	SynergyNote   string     `json:"synergyNote,omitempty"`
}

type ReportMetadata struct {
	Organism   string `json:"organism"`
	Timestamp  string `json:"timestamp"`
	Disclaimer string `json:"disclaimer"`
	ModelType  string `json:"modelType"`
}

// ResistanceDocument is the exported shape of a resistance analysis.
type ResistanceDocument struct {
	Metadata           ReportMetadata          `json:"metadata"`
	DetectedResistance []ResistanceProfileItem `json:"detectedResistance"`
	GenesAnalyzed      []string                `json:"genesAnalyzed"`
}

type ResistanceReport struct {
	VersionedRecord
	ID           string             `json:"id"`
	CreatedAtUTC string             `json:"created_at_utc"`
	Document     ResistanceDocument `json:"document"`
}
