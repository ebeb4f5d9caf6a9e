// Package helixsim is the programmatic entry point: it runs the mutation and
// growth simulators and the resistance analyzer, persists the results and
// writes per-run artifact directories.
package helixsim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"helixsim/internal/amr"
	"helixsim/internal/growth"
	"helixsim/internal/logging"
	"helixsim/internal/model"
	"helixsim/internal/mutation"
	"helixsim/internal/platform"
	"helixsim/internal/sequence"
	"helixsim/internal/stats"
	"helixsim/internal/storage"
)

const (
	defaultRunsDir     = "runs"
	defaultExportsDir  = "exports"
	defaultDBPath      = "helixsim.db"
	defaultGrowthTicks = 100
	defaultRunsLimit   = 20
)

var ErrRunNotFound = errors.New("run not found")

type Options struct {
	StoreKind  string
	DBPath     string
	RunsDir    string
	ExportsDir string
	Logger     *log.Logger
	// KnowledgeBase replaces the built-in AMR knowledge base.
	KnowledgeBase *amr.KnowledgeBase
	// Now is the clock used for run timestamps.
	Now func() time.Time
}

type Client struct {
	store  storage.Store
	kb     *amr.KnowledgeBase
	logger *log.Logger
	now    func() time.Time

	runsDir    string
	exportsDir string
}

func New(opts Options) (*Client, error) {
	if opts.DBPath == "" {
		opts.DBPath = defaultDBPath
	}
	if opts.RunsDir == "" {
		opts.RunsDir = defaultRunsDir
	}
	if opts.ExportsDir == "" {
		opts.ExportsDir = defaultExportsDir
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	if opts.KnowledgeBase == nil {
		opts.KnowledgeBase = amr.DefaultKnowledgeBase()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	store, err := storage.NewStore(opts.StoreKind, opts.DBPath)
	if err != nil {
		return nil, err
	}
	if err := store.Init(context.Background()); err != nil {
		_ = storage.CloseIfSupported(store)
		return nil, fmt.Errorf("init store: %w", err)
	}

	return &Client{
		store:      store,
		kb:         opts.KnowledgeBase,
		logger:     opts.Logger,
		now:        opts.Now,
		runsDir:    opts.RunsDir,
		exportsDir: opts.ExportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

type MutationRequest struct {
	Header     string
	Sequence   string
	Parameters model.SimulationParameters
	Options    mutation.Options
	// Interval between generations; zero runs them back to back.
	Interval     time.Duration
	OnGeneration func(mutation.GenerationResult)
}

type MutationSummary struct {
	RunID         string
	ArtifactsDir  string
	Seed          int64
	EffectiveRate float64
	FinalSequence string
	FinalFitness  float64
	Summary       mutation.Summary
	Variants      []sequence.Variant
}

// RunMutation drives a mutation run to completion and records it.
func (c *Client) RunMutation(ctx context.Context, req MutationRequest) (MutationSummary, error) {
	run, err := mutation.NewRun(req.Sequence, req.Parameters, req.Options)
	if err != nil {
		return MutationSummary{}, err
	}
	logger := c.logger.With("kind", stats.KindMutation, "seed", run.Seed())
	logger.Info("mutation run started",
		"length", len(run.Reference()),
		"generations", run.Parameters().NumGenerations,
		"effective_rate", run.EffectiveRate())

	stepper := &platform.MutationStepper{Run: run, OnGeneration: func(result mutation.GenerationResult) {
		logger.Debug("generation complete",
			"generation", result.Generation,
			"mutations", len(result.Mutations),
			"fitness", result.Stats.Fitness)
		if req.OnGeneration != nil {
			req.OnGeneration(result)
		}
	}}
	if err := platform.NewDriver(req.Interval).Run(ctx, stepper); err != nil {
		return MutationSummary{}, err
	}

	now := c.now().UTC()
	record := run.Record(req.Header)
	record.VersionedRecord = storage.CurrentVersion()
	record.ID = uuid.NewString()
	record.CreatedAtUTC = now.Format(time.RFC3339Nano)
	if err := c.store.SaveMutationRun(ctx, record); err != nil {
		return MutationSummary{}, err
	}

	params := record.Parameters
	runDir, err := stats.WriteMutationArtifacts(c.runsDir, stats.RunConfig{
		RunID:               record.ID,
		CreatedAtUTC:        record.CreatedAtUTC,
		Seed:                record.Seed,
		Header:              record.Header,
		Parameters:          &params,
		EffectiveRate:       run.EffectiveRate(),
		IndelRate:           req.Options.IndelRate,
		ReseedPerGeneration: req.Options.ReseedPerGeneration,
		NonCodingTail:       req.Options.NonCodingTail,
	}, record)
	if err != nil {
		return MutationSummary{}, err
	}

	doc := run.Export()
	fitness := finalFitness(record.GenerationStats)
	if err := stats.AppendRunIndex(c.runsDir, stats.RunIndexEntry{
		RunID:        record.ID,
		Kind:         stats.KindMutation,
		Label:        labelOr(record.Header, "sequence"),
		Seed:         record.Seed,
		Steps:        doc.Summary.FinalGeneration,
		Outcome:      fitness,
		CreatedAtUTC: record.CreatedAtUTC,
	}); err != nil {
		return MutationSummary{}, err
	}
	logger.Info("mutation run finished", "run_id", record.ID, "mutations", doc.Summary.TotalMutations, "fitness", fitness)

	return MutationSummary{
		RunID:         record.ID,
		ArtifactsDir:  filepath.Clean(runDir),
		Seed:          record.Seed,
		EffectiveRate: run.EffectiveRate(),
		FinalSequence: record.FinalSequence,
		FinalFitness:  fitness,
		Summary:       doc.Summary,
		Variants:      sequence.Diff(record.Reference, record.FinalSequence),
	}, nil
}

type GrowthRequest struct {
	// StrainKey selects a preset; Strain is used when it is empty.
	StrainKey   string
	Strain      *model.Strain
	Seed        int64
	Ticks       int
	Environment growth.EnvironmentUpdate
	Interval    time.Duration
	OnTick      func(growth.Snapshot, []growth.Event)
}

type GrowthSummary struct {
	RunID        string
	ArtifactsDir string
	Seed         int64
	Snapshot     growth.Snapshot
	Events       []growth.Event
}

// RunGrowth advances a culture for the requested number of ticks and
// records it.
func (c *Client) RunGrowth(ctx context.Context, req GrowthRequest) (GrowthSummary, error) {
	strain, err := c.resolveStrain(req)
	if err != nil {
		return GrowthSummary{}, err
	}
	if req.Ticks < 0 {
		return GrowthSummary{}, errors.New("ticks must be >= 0")
	}
	if req.Ticks == 0 {
		req.Ticks = defaultGrowthTicks
	}

	sim := growth.NewSimulation(strain, req.Seed)
	if err := sim.UpdateEnvironment(req.Environment); err != nil {
		return GrowthSummary{}, err
	}
	logger := c.logger.With("kind", stats.KindGrowth, "seed", sim.Seed())
	logger.Info("growth run started", "strain", strain.Name, "ticks", req.Ticks)

	var events []growth.Event
	stepper := &platform.GrowthStepper{Sim: sim, MaxTicks: req.Ticks, OnTick: func(snap growth.Snapshot, tickEvents []growth.Event) {
		for _, event := range tickEvents {
			logger.Info("adaptation event", "event", event.Kind, "step", event.Step, "message", event.Message)
		}
		events = append(events, tickEvents...)
		if req.OnTick != nil {
			req.OnTick(snap, tickEvents)
		}
	}}
	if err := platform.NewDriver(req.Interval).Run(ctx, stepper); err != nil {
		return GrowthSummary{}, err
	}

	summary, err := c.recordGrowth(ctx, sim, logger)
	if err != nil {
		return GrowthSummary{}, err
	}
	summary.Events = events
	return summary, nil
}

// RecordCulture persists the current state of a live simulation, such as
// the one driven by helixctl serve, as a growth run.
func (c *Client) RecordCulture(ctx context.Context, sim *growth.Simulation) (GrowthSummary, error) {
	return c.recordGrowth(ctx, sim, c.logger.With("kind", stats.KindGrowth, "seed", sim.Seed()))
}

func (c *Client) recordGrowth(ctx context.Context, sim *growth.Simulation, logger *log.Logger) (GrowthSummary, error) {
	record := sim.Record()
	record.VersionedRecord = storage.CurrentVersion()
	record.ID = uuid.NewString()
	record.CreatedAtUTC = c.now().UTC().Format(time.RFC3339Nano)
	if err := c.store.SaveGrowthRun(ctx, record); err != nil {
		return GrowthSummary{}, err
	}

	strain := record.Strain
	env := record.Environment
	runDir, err := stats.WriteGrowthArtifacts(c.runsDir, stats.RunConfig{
		RunID:        record.ID,
		CreatedAtUTC: record.CreatedAtUTC,
		Seed:         record.Seed,
		Strain:       &strain,
		Environment:  &env,
		Ticks:        record.Ticks,
	}, record)
	if err != nil {
		return GrowthSummary{}, err
	}
	if err := stats.AppendRunIndex(c.runsDir, stats.RunIndexEntry{
		RunID:        record.ID,
		Kind:         stats.KindGrowth,
		Label:        strain.Name,
		Seed:         record.Seed,
		Steps:        record.Ticks,
		Outcome:      float64(record.FinalPopulation),
		CreatedAtUTC: record.CreatedAtUTC,
	}); err != nil {
		return GrowthSummary{}, err
	}
	logger.Info("growth run recorded", "run_id", record.ID, "population", record.FinalPopulation, "collapsed", record.Collapsed)

	return GrowthSummary{
		RunID:        record.ID,
		ArtifactsDir: filepath.Clean(runDir),
		Seed:         record.Seed,
		Snapshot:     sim.Snapshot(),
	}, nil
}

func (c *Client) resolveStrain(req GrowthRequest) (model.Strain, error) {
	if strings.TrimSpace(req.StrainKey) != "" {
		return ResolveStrain(req.StrainKey)
	}
	if req.Strain != nil {
		if err := growth.ValidateStrain(*req.Strain); err != nil {
			return model.Strain{}, err
		}
		return *req.Strain, nil
	}
	strain, _ := growth.LookupStrain(growth.DefaultStrainKey)
	return strain, nil
}

// ResolveStrain maps a preset key, or "custom", to its strain.
func ResolveStrain(key string) (model.Strain, error) {
	key = strings.TrimSpace(key)
	if strings.EqualFold(key, "custom") {
		return growth.CustomStrain(), nil
	}
	strain, ok := growth.LookupStrain(key)
	if !ok {
		return model.Strain{}, fmt.Errorf("unknown strain %q", key)
	}
	return strain, nil
}

type AnalyzeRequest struct {
	Organism string
	Genes    []string
}

type ResistanceSummary struct {
	RunID        string
	ArtifactsDir string
	Document     model.ResistanceDocument
}

func (c *Client) AnalyzeResistance(ctx context.Context, req AnalyzeRequest) (ResistanceSummary, error) {
	now := c.now().UTC()
	doc, err := c.kb.Analyze(req.Organism, req.Genes, now)
	if err != nil {
		return ResistanceSummary{}, err
	}
	report := model.ResistanceReport{
		VersionedRecord: storage.CurrentVersion(),
		ID:              uuid.NewString(),
		CreatedAtUTC:    now.Format(time.RFC3339Nano),
		Document:        doc,
	}
	if err := c.store.SaveResistanceReport(ctx, report); err != nil {
		return ResistanceSummary{}, err
	}
	runDir, err := stats.WriteResistanceArtifacts(c.runsDir, stats.RunConfig{
		RunID:        report.ID,
		CreatedAtUTC: report.CreatedAtUTC,
		Organism:     req.Organism,
		Genes:        doc.GenesAnalyzed,
	}, report)
	if err != nil {
		return ResistanceSummary{}, err
	}
	if err := stats.AppendRunIndex(c.runsDir, stats.RunIndexEntry{
		RunID:        report.ID,
		Kind:         stats.KindResistance,
		Label:        labelOr(req.Organism, "any organism"),
		Steps:        len(doc.GenesAnalyzed),
		Outcome:      float64(len(doc.DetectedResistance)),
		CreatedAtUTC: report.CreatedAtUTC,
	}); err != nil {
		return ResistanceSummary{}, err
	}
	c.logger.Info("resistance analysis recorded",
		"run_id", report.ID,
		"genes", len(doc.GenesAnalyzed),
		"classes", len(doc.DetectedResistance))
	return ResistanceSummary{RunID: report.ID, ArtifactsDir: filepath.Clean(runDir), Document: doc}, nil
}

// EstimateStrain derives placeholder strain parameters from raw FASTA.
func (c *Client) EstimateStrain(r io.Reader) (growth.GenomeEstimate, error) {
	return EstimateGenome(r)
}

// EstimateGenome is EstimateStrain without a client.
func EstimateGenome(r io.Reader) (growth.GenomeEstimate, error) {
	return growth.EstimateFromFASTA(r)
}

type ScanResult struct {
	Header      string               `json:"header"`
	Length      int                  `json:"length"`
	GCContent   float64              `json:"gcContent"`
	Composition sequence.Composition `json:"composition"`
	// Variants against the first record; empty for the first record itself.
	Variants []sequence.Variant `json:"variants,omitempty"`
}

// Scan summarizes every record of a FASTA file and diffs each one against
// the first.
func (c *Client) Scan(r io.Reader) ([]ScanResult, error) {
	return ScanFASTA(r)
}

func ScanFASTA(r io.Reader) ([]ScanResult, error) {
	records, err := sequence.ReadFASTA(r)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, sequence.ErrNoSequence
	}
	out := make([]ScanResult, 0, len(records))
	for i, rec := range records {
		result := ScanResult{
			Header:      rec.Header,
			Length:      rec.Len(),
			GCContent:   sequence.GCContent(rec.Sequence),
			Composition: sequence.Compose(rec.Sequence),
		}
		if i > 0 {
			result.Variants = sequence.Diff(records[0].Sequence, rec.Sequence)
		}
		out = append(out, result)
	}
	return out, nil
}

type RunsRequest struct {
	Limit int
	Kind  stats.RunKind
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]stats.RunIndexEntry, error) {
	if req.Limit <= 0 {
		req.Limit = defaultRunsLimit
	}
	entries, err := stats.ListRunIndex(c.runsDir)
	if err != nil {
		return nil, err
	}
	out := make([]stats.RunIndexEntry, 0, len(entries))
	for _, e := range entries {
		if req.Kind != "" && e.Kind != req.Kind {
			continue
		}
		out = append(out, e)
		if len(out) == req.Limit {
			break
		}
	}
	return out, nil
}

// RunSummaries aggregates the whole run index by kind.
func (c *Client) RunSummaries(_ context.Context) ([]stats.KindSummary, error) {
	entries, err := stats.ListRunIndex(c.runsDir)
	if err != nil {
		return nil, err
	}
	return stats.SummarizeRuns(entries), nil
}

// LookupRun finds an index entry by id, or the newest one when latest is
// set.
func (c *Client) LookupRun(_ context.Context, runID string, latest bool) (stats.RunIndexEntry, error) {
	if runID != "" && latest {
		return stats.RunIndexEntry{}, errors.New("use either run id or latest")
	}
	if runID == "" && !latest {
		return stats.RunIndexEntry{}, errors.New("run id or latest is required")
	}
	entries, err := stats.ListRunIndex(c.runsDir)
	if err != nil {
		return stats.RunIndexEntry{}, err
	}
	for _, e := range entries {
		if latest || e.RunID == runID {
			return e, nil
		}
	}
	if latest {
		return stats.RunIndexEntry{}, errors.New("no runs available")
	}
	return stats.RunIndexEntry{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

func (c *Client) Export(ctx context.Context, req ExportRequest) (ExportSummary, error) {
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	entry, err := c.LookupRun(ctx, req.RunID, req.Latest)
	if err != nil {
		return ExportSummary{}, err
	}
	exportedDir, err := stats.ExportRunArtifacts(c.runsDir, entry.RunID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: entry.RunID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) MutationRun(ctx context.Context, id string) (model.MutationRun, error) {
	run, ok, err := c.store.GetMutationRun(ctx, id)
	if err != nil {
		return model.MutationRun{}, err
	}
	if !ok {
		return model.MutationRun{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, nil
}

func (c *Client) GrowthRun(ctx context.Context, id string) (model.GrowthRun, error) {
	run, ok, err := c.store.GetGrowthRun(ctx, id)
	if err != nil {
		return model.GrowthRun{}, err
	}
	if !ok {
		return model.GrowthRun{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return run, nil
}

func (c *Client) ResistanceReport(ctx context.Context, id string) (model.ResistanceReport, error) {
	report, ok, err := c.store.GetResistanceReport(ctx, id)
	if err != nil {
		return model.ResistanceReport{}, err
	}
	if !ok {
		return model.ResistanceReport{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return report, nil
}

func (c *Client) Strains() []model.Strain {
	return PresetStrains()
}

func PresetStrains() []model.Strain {
	return growth.Presets()
}

func (c *Client) Markers() []amr.Marker {
	return append([]amr.Marker(nil), c.kb.Markers...)
}

func (c *Client) SearchGenes(term string) []amr.ReferenceRecord {
	return c.kb.Search(term)
}

func finalFitness(history []model.GenerationStats) float64 {
	if len(history) == 0 {
		return 100
	}
	return history[len(history)-1].Fitness
}

func labelOr(label, fallback string) string {
	if strings.TrimSpace(label) == "" {
		return fallback
	}
	return label
}
