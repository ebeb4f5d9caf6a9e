package stats

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"helixsim/internal/amr"
	"helixsim/internal/growth"
	"helixsim/internal/model"
	"helixsim/internal/mutation"
)

const runIndexFile = "run_index.json"

type RunKind string

const (
	KindMutation   RunKind = "mutation"
	KindGrowth     RunKind = "growth"
	KindResistance RunKind = "resistance"
)

// RunConfig records how a run was produced so it can be replayed.
type RunConfig struct {
	RunID               string                      `json:"run_id"`
	Kind                RunKind                     `json:"kind"`
	CreatedAtUTC        string                      `json:"created_at_utc"`
	Seed                int64                       `json:"seed,omitempty"`
	InputPath           string                      `json:"input_path,omitempty"`
	Header              string                      `json:"header,omitempty"`
	Parameters          *model.SimulationParameters `json:"parameters,omitempty"`
	EffectiveRate       float64                     `json:"effective_rate,omitempty"`
	IndelRate           float64                     `json:"indel_rate,omitempty"`
	ReseedPerGeneration bool                        `json:"reseed_per_generation,omitempty"`
	NonCodingTail       int                         `json:"non_coding_tail,omitempty"`
	Strain              *model.Strain               `json:"strain,omitempty"`
	Environment         *model.Environment          `json:"environment,omitempty"`
	Ticks               int                         `json:"ticks,omitempty"`
	Organism            string                      `json:"organism,omitempty"`
	Genes               []string                    `json:"genes,omitempty"`
}

type RunIndexEntry struct {
	RunID        string  `json:"run_id"`
	Kind         RunKind `json:"kind"`
	Label        string  `json:"label"`
	Seed         int64   `json:"seed,omitempty"`
	Steps        int     `json:"steps"`
	Outcome      float64 `json:"outcome"`
	CreatedAtUTC string  `json:"created_at_utc"`
}

func WriteMutationArtifacts(baseDir string, cfg RunConfig, run model.MutationRun) (string, error) {
	runDir, err := prepareRunDir(baseDir, cfg, KindMutation)
	if err != nil {
		return "", err
	}
	doc := mutation.DocumentFromRecord(run)
	if err := writeWith(filepath.Join(runDir, "export.json"), doc.WriteJSON); err != nil {
		return "", err
	}
	if err := writeWith(filepath.Join(runDir, "ledger.csv"), doc.WriteLedgerCSV); err != nil {
		return "", err
	}
	if err := writeWith(filepath.Join(runDir, "generation_stats.csv"), func(w io.Writer) error {
		return writeGenerationStats(w, run.GenerationStats)
	}); err != nil {
		return "", err
	}
	if err := RenderFitnessChart(filepath.Join(runDir, "fitness.png"), run.GenerationStats); err != nil {
		return "", err
	}
	return runDir, nil
}

func WriteGrowthArtifacts(baseDir string, cfg RunConfig, run model.GrowthRun) (string, error) {
	runDir, err := prepareRunDir(baseDir, cfg, KindGrowth)
	if err != nil {
		return "", err
	}
	level := int(math.Round(run.FinalResistance * 100))
	if err := writeWith(filepath.Join(runDir, "growth.csv"), func(w io.Writer) error {
		return growth.WriteCSV(w, run.GrowthHistory, level)
	}); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "adaptation_log.json"), run.AdaptationLog); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "summary.json"), map[string]any{
		"strain":           run.Strain.Name,
		"ticks":            run.Ticks,
		"final_population": run.FinalPopulation,
		"resistance_level": level,
		"collapsed":        run.Collapsed,
		"environment":      run.Environment,
	}); err != nil {
		return "", err
	}
	if err := RenderPopulationChart(filepath.Join(runDir, "population.png"), run.GrowthHistory); err != nil {
		return "", err
	}
	return runDir, nil
}

func WriteResistanceArtifacts(baseDir string, cfg RunConfig, report model.ResistanceReport) (string, error) {
	runDir, err := prepareRunDir(baseDir, cfg, KindResistance)
	if err != nil {
		return "", err
	}
	if err := writeWith(filepath.Join(runDir, "report.json"), func(w io.Writer) error {
		return amr.WriteJSON(w, report.Document)
	}); err != nil {
		return "", err
	}
	return runDir, nil
}

func prepareRunDir(baseDir string, cfg RunConfig, kind RunKind) (string, error) {
	if strings.TrimSpace(cfg.RunID) == "" {
		return "", fmt.Errorf("run id is required")
	}
	cfg.Kind = kind
	runDir := filepath.Join(baseDir, cfg.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "config.json"), cfg); err != nil {
		return "", err
	}
	return runDir, nil
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns the index newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// ExportRunArtifacts copies every file of a run directory into outDir/runID.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	entries, err := os.ReadDir(src)
	if err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		if err := copyFile(filepath.Join(src, entry.Name()), filepath.Join(dst, entry.Name())); err != nil {
			return "", err
		}
	}
	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	path := filepath.Join(baseDir, runID, "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return RunConfig{}, false, nil
		}
		return RunConfig{}, false, err
	}

	var cfg RunConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return RunConfig{}, false, err
	}
	return cfg, true, nil
}

func writeGenerationStats(w io.Writer, stats []model.GenerationStats) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"generation", "fitness", "mutation_count", "cumulative_mutations", "progress"}); err != nil {
		return err
	}
	for _, s := range stats {
		if err := writer.Write([]string{
			strconv.Itoa(s.Generation),
			strconv.FormatFloat(s.Fitness, 'f', -1, 64),
			strconv.Itoa(s.MutationCount),
			strconv.Itoa(s.CumulativeMutations),
			strconv.FormatFloat(s.Progress, 'f', -1, 64),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func writeWith(path string, write func(io.Writer) error) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := write(file); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}
