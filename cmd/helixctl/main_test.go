package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"helixsim/internal/growth"
	"helixsim/internal/model"
	"helixsim/internal/stats"
)

const testFASTA = `>sample_gene test sequence
ATGGCTAAAGGTCCGTTTGAACTGATCCGTGGCAAACTGTAA
>variant
ATGGCTAAAGGTCCGTTTGAACTGATCCGTGGCAAACTGTGA
`

// chdirTemp runs the test from an empty directory with no config file
// reachable through HOME.
func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("HOME", dir)
	return dir
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	err := run(context.Background(), args, &stdout, &stderr)
	return stdout.String(), err
}

func mustRunCLI(t *testing.T, args ...string) string {
	t.Helper()
	out, err := runCLI(t, args...)
	if err != nil {
		t.Fatalf("helixctl %s: %v", strings.Join(args, " "), err)
	}
	return out
}

func writeFASTA(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "sample.fasta")
	if err := os.WriteFile(path, []byte(testFASTA), 0o644); err != nil {
		t.Fatalf("write fasta: %v", err)
	}
	return path
}

func TestMutateWritesArtifacts(t *testing.T) {
	dir := chdirTemp(t)
	fasta := writeFASTA(t, dir)

	out := mustRunCLI(t, "--store", "memory", "mutate", fasta,
		"--seed", "7", "--generations", "3", "--rate", "0.2", "--interval", "0s")
	if !strings.Contains(out, "generations=3") || !strings.Contains(out, "seed=7") {
		t.Fatalf("unexpected mutate output: %s", out)
	}

	entries, err := stats.ListRunIndex("runs")
	if err != nil {
		t.Fatalf("list run index: %v", err)
	}
	if len(entries) != 1 || entries[0].Kind != stats.KindMutation || entries[0].Seed != 7 {
		t.Fatalf("unexpected index: %+v", entries)
	}
	if !strings.Contains(out, "run_id="+entries[0].RunID) {
		t.Fatalf("output missing run id %s: %s", entries[0].RunID, out)
	}
	for _, file := range []string{"config.json", "export.json", "ledger.csv", "generation_stats.csv", "fitness.png"} {
		if _, err := os.Stat(filepath.Join("runs", entries[0].RunID, file)); err != nil {
			t.Fatalf("expected artifact %s: %v", file, err)
		}
	}
}

func TestMutateRejectsEmptySequence(t *testing.T) {
	dir := chdirTemp(t)
	path := filepath.Join(dir, "empty.fasta")
	if err := os.WriteFile(path, []byte(">nothing\n\n"), 0o644); err != nil {
		t.Fatalf("write fasta: %v", err)
	}
	if _, err := runCLI(t, "--store", "memory", "mutate", path, "--interval", "0s"); err == nil {
		t.Fatal("expected an error for a FASTA without sequence")
	}
}

func TestGrowUnderAntibiotic(t *testing.T) {
	chdirTemp(t)

	out := mustRunCLI(t, "--store", "memory", "grow", "--strain", "ecoli", "--ticks", "20",
		"--seed", "3", "--antibiotic", "--interval", "0s", "--json")
	var snap growth.Snapshot
	if err := json.Unmarshal([]byte(out), &snap); err != nil {
		t.Fatalf("decode snapshot: %v\n%s", err, out)
	}
	if snap.TimeStep != 20 || len(snap.GrowthHistory) != 20 {
		t.Fatalf("expected 20 ticks, got step=%d history=%d", snap.TimeStep, len(snap.GrowthHistory))
	}
	if snap.Environment.AntibioticConcentration != growth.AntibioticOnDose {
		t.Fatalf("expected antibiotic dose %v, got %v", growth.AntibioticOnDose, snap.Environment.AntibioticConcentration)
	}
	if snap.Strain.Key != "ecoli" {
		t.Fatalf("unexpected strain: %+v", snap.Strain)
	}
}

func TestGrowEnvironmentFlags(t *testing.T) {
	chdirTemp(t)

	out := mustRunCLI(t, "--store", "memory", "grow", "--ticks", "2", "--interval", "0s",
		"--temperature", "50", "--ph", "4", "--json")
	var snap growth.Snapshot
	if err := json.Unmarshal([]byte(out), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Environment.Temperature != 50 || snap.Environment.PH != 4 {
		t.Fatalf("environment flags not applied: %+v", snap.Environment)
	}
	if len(snap.Warnings) != 2 {
		t.Fatalf("expected temperature and pH warnings, got %v", snap.Warnings)
	}
	// No growth at 50°C; the population can only hold.
	if snap.Population > growth.InitialPopulation {
		t.Fatalf("population grew outside the viable range: %d", snap.Population)
	}
}

func TestGrowEnvironmentLevels(t *testing.T) {
	chdirTemp(t)

	out := mustRunCLI(t, "--store", "memory", "grow", "--ticks", "2", "--interval", "0s",
		"--nutrient-level", "excess", "--oxygen-level", "Anaerobic", "--json")
	var snap growth.Snapshot
	if err := json.Unmarshal([]byte(out), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Environment.Oxygen != model.OxygenAnaerobic.Concentration() {
		t.Fatalf("oxygen level not applied: %+v", snap.Environment)
	}
	if snap.Environment.Nutrients <= model.NutrientHigh.Concentration() {
		t.Fatalf("expected excess nutrients, got %+v", snap.Environment)
	}

	if _, err := runCLI(t, "--store", "memory", "grow", "--interval", "0s", "--nutrients", "10", "--nutrient-level", "low"); err == nil {
		t.Fatal("expected --nutrients with --nutrient-level to fail")
	}
	if _, err := runCLI(t, "--store", "memory", "grow", "--interval", "0s", "--oxygen-level", "thin"); err == nil {
		t.Fatal("expected unknown oxygen level to fail")
	}
}

func TestGrowFromGenomeEstimate(t *testing.T) {
	dir := chdirTemp(t)
	fasta := writeFASTA(t, dir)

	out := mustRunCLI(t, "--store", "memory", "grow", "--genome", fasta, "--ticks", "3", "--interval", "0s", "--json")
	var snap growth.Snapshot
	if err := json.Unmarshal([]byte(out), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.Strain.Key != "genome" || snap.Strain.Name != "variant" {
		t.Fatalf("expected strain estimated from the last header, got %+v", snap.Strain)
	}
}

func TestGrowRejectsNonFiniteSetpoints(t *testing.T) {
	chdirTemp(t)
	for _, raw := range []string{"NaN", "+Inf", "warm"} {
		if _, err := runCLI(t, "--store", "memory", "grow", "--temperature", raw, "--interval", "0s"); err == nil {
			t.Fatalf("expected --temperature %s to fail", raw)
		}
	}
}

func TestGrowUnknownStrain(t *testing.T) {
	chdirTemp(t)
	if _, err := runCLI(t, "--store", "memory", "grow", "--strain", "nope", "--interval", "0s"); err == nil {
		t.Fatal("expected unknown strain to fail")
	}
}

func TestAMRReportsSynergy(t *testing.T) {
	chdirTemp(t)

	out := mustRunCLI(t, "--store", "memory", "amr", "gyrA", "parC", "--json")
	var doc model.ResistanceDocument
	if err := json.Unmarshal([]byte(out), &doc); err != nil {
		t.Fatalf("decode report: %v\n%s", err, out)
	}
	if doc.Metadata.Organism != "E. coli" {
		t.Fatalf("expected default organism, got %q", doc.Metadata.Organism)
	}
	if len(doc.DetectedResistance) != 1 {
		t.Fatalf("expected one drug class, got %+v", doc.DetectedResistance)
	}
	item := doc.DetectedResistance[0]
	if !item.IsSynergistic || item.Confidence.Score != 0.9 || item.Confidence.Level != "High" {
		t.Fatalf("expected synergy boost, got %+v", item)
	}

	text := mustRunCLI(t, "--store", "memory", "amr", "gyrA", "parC")
	if !strings.Contains(text, "synergy: Fluoroquinolones") {
		t.Fatalf("text report missing synergy note: %s", text)
	}
}

func TestAMRRequiresGenes(t *testing.T) {
	chdirTemp(t)
	if _, err := runCLI(t, "--store", "memory", "amr"); err == nil {
		t.Fatal("expected amr without genes to fail")
	}
}

func TestRunsListsAndSummarizes(t *testing.T) {
	dir := chdirTemp(t)
	fasta := writeFASTA(t, dir)

	mustRunCLI(t, "--store", "memory", "mutate", fasta, "--seed", "1", "--interval", "0s")
	mustRunCLI(t, "--store", "memory", "amr", "gyrA", "tetM")

	out := mustRunCLI(t, "--store", "memory", "runs", "--json")
	var entries []stats.RunIndexEntry
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode runs: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected two runs, got %+v", entries)
	}

	out = mustRunCLI(t, "--store", "memory", "runs", "--kind", "resistance", "--json")
	entries = nil
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("decode runs: %v", err)
	}
	if len(entries) != 1 || entries[0].Kind != stats.KindResistance || entries[0].Outcome != 2 {
		t.Fatalf("unexpected filtered runs: %+v", entries)
	}

	out = mustRunCLI(t, "--store", "memory", "runs", "--summary")
	if !strings.Contains(out, "kind=mutation runs=1") || !strings.Contains(out, "kind=resistance runs=1") {
		t.Fatalf("unexpected summary: %s", out)
	}
}

func TestExportLatestCopiesArtifacts(t *testing.T) {
	chdirTemp(t)

	mustRunCLI(t, "--store", "memory", "grow", "--ticks", "5", "--seed", "2", "--interval", "0s")
	entries, err := stats.ListRunIndex("runs")
	if err != nil || len(entries) != 1 {
		t.Fatalf("list run index: %v %+v", err, entries)
	}

	out := mustRunCLI(t, "--store", "memory", "export", "--latest")
	if !strings.Contains(out, "exported run_id="+entries[0].RunID) {
		t.Fatalf("unexpected export output: %s", out)
	}
	for _, file := range []string{"config.json", "growth.csv", "summary.json", "adaptation_log.json", "population.png"} {
		if _, err := os.Stat(filepath.Join("exports", entries[0].RunID, file)); err != nil {
			t.Fatalf("expected exported artifact %s: %v", file, err)
		}
	}

	if _, err := runCLI(t, "--store", "memory", "export"); err == nil {
		t.Fatal("expected export without a selector to fail")
	}
}

func TestCatalogCommands(t *testing.T) {
	chdirTemp(t)

	out := mustRunCLI(t, "strains")
	for _, key := range []string{"ecoli", "bacillus", "pseudomonas"} {
		if !strings.Contains(out, key) {
			t.Fatalf("strains output missing %s: %s", key, out)
		}
	}

	out = mustRunCLI(t, "genes", "gyr")
	if !strings.Contains(out, "gyrA") {
		t.Fatalf("genes search missing gyrA: %s", out)
	}
	out = mustRunCLI(t, "genes", "no-such-gene")
	if !strings.Contains(out, "no reference records match") {
		t.Fatalf("expected empty search message: %s", out)
	}
	out = mustRunCLI(t, "genes", "--markers")
	if !strings.Contains(out, "parC") || !strings.Contains(out, "Fluoroquinolones") {
		t.Fatalf("markers output incomplete: %s", out)
	}
}

func TestEstimateAndScan(t *testing.T) {
	dir := chdirTemp(t)
	fasta := writeFASTA(t, dir)

	out := mustRunCLI(t, "estimate", fasta, "--json")
	var estimate growth.GenomeEstimate
	if err := json.Unmarshal([]byte(out), &estimate); err != nil {
		t.Fatalf("decode estimate: %v", err)
	}
	if estimate.Header != "variant" || estimate.Length != 84 {
		t.Fatalf("unexpected estimate: %+v", estimate)
	}

	out = mustRunCLI(t, "scan", fasta)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected two records and one variant, got:\n%s", out)
	}
	if !strings.Contains(lines[1], "variants=1") || strings.TrimSpace(lines[2]) != "41 A>G" {
		t.Fatalf("unexpected scan output:\n%s", out)
	}
}

func TestConfigFileSuppliesFlagDefaults(t *testing.T) {
	dir := chdirTemp(t)
	cfg := "growth:\n  ticks: 7\n  interval: 0s\n  strain: bacillus\nstore:\n  kind: memory\n"
	if err := os.WriteFile(filepath.Join(dir, "helixsim.yaml"), []byte(cfg), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	out := mustRunCLI(t, "grow", "--json")
	var snap growth.Snapshot
	if err := json.Unmarshal([]byte(out), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.TimeStep != 7 || snap.Strain.Key != "bacillus" {
		t.Fatalf("config defaults not applied: step=%d strain=%s", snap.TimeStep, snap.Strain.Key)
	}

	out = mustRunCLI(t, "grow", "--ticks", "4", "--json")
	if err := json.Unmarshal([]byte(out), &snap); err != nil {
		t.Fatalf("decode snapshot: %v", err)
	}
	if snap.TimeStep != 4 {
		t.Fatalf("flag should override config, got %d ticks", snap.TimeStep)
	}
}

func TestExplicitConfigMustExist(t *testing.T) {
	chdirTemp(t)
	if _, err := runCLI(t, "--config", "missing.yaml", "strains"); err == nil {
		t.Fatal("expected missing explicit config to fail")
	}
}

func TestServeRecordsCultureOnShutdown(t *testing.T) {
	chdirTemp(t)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	var stdout, stderr bytes.Buffer
	err := run(ctx, []string{"--store", "memory", "serve", "--addr", "127.0.0.1:0",
		"--seed", "5", "--interval", "1ms", "--max-ticks", "5", "--record"}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("serve: %v\n%s", err, stderr.String())
	}
	out := stdout.String()
	if !strings.Contains(out, "listening=127.0.0.1:") || !strings.Contains(out, "ticks=5") {
		t.Fatalf("unexpected serve output: %s", out)
	}
	entries, err := stats.ListRunIndex("runs")
	if err != nil || len(entries) != 1 || entries[0].Kind != stats.KindGrowth || entries[0].Steps != 5 {
		t.Fatalf("expected one recorded growth run: %v %+v", err, entries)
	}
}

func TestServeCancelledShutsDownCleanly(t *testing.T) {
	chdirTemp(t)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	time.AfterFunc(200*time.Millisecond, cancel)
	var stdout, stderr bytes.Buffer
	err := run(ctx, []string{"--store", "memory", "serve", "--addr", "127.0.0.1:0",
		"--seed", "5", "--interval", "1ms", "--max-ticks", "3"}, &stdout, &stderr)
	if err != nil {
		t.Fatalf("cancelled serve should exit cleanly: %v\n%s", err, stderr.String())
	}
	if !strings.Contains(stdout.String(), "listening=127.0.0.1:") {
		t.Fatalf("unexpected serve output: %s", stdout.String())
	}
}

func TestShutdownErrorClassification(t *testing.T) {
	cases := []struct {
		err  error
		want bool
	}{
		{context.Canceled, true},
		{context.DeadlineExceeded, true},
		{fmt.Errorf("serve: %w", context.DeadlineExceeded), true},
		{errors.New("address already in use"), false},
	}
	for _, tc := range cases {
		if got := shutdownError(tc.err); got != tc.want {
			t.Fatalf("shutdownError(%v)=%t want %t", tc.err, got, tc.want)
		}
	}
}

func TestUnknownCommandFails(t *testing.T) {
	chdirTemp(t)
	if _, err := runCLI(t, "bogus"); err == nil {
		t.Fatal("expected unknown command to fail")
	}
}

func TestConfigPathFromArgs(t *testing.T) {
	cases := []struct {
		args []string
		want string
	}{
		{nil, ""},
		{[]string{"--config", "a.yaml", "runs"}, "a.yaml"},
		{[]string{"runs", "--config=b.yaml"}, "b.yaml"},
		{[]string{"scan", "--", "--config", "c.yaml"}, ""},
		{[]string{"--config"}, ""},
	}
	for _, tc := range cases {
		if got := configPathFromArgs(tc.args); got != tc.want {
			t.Errorf("configPathFromArgs(%v) = %q, want %q", tc.args, got, tc.want)
		}
	}
}
