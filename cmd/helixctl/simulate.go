package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"gopkg.in/alecthomas/kingpin.v2"
	"gopkg.in/cheggaaa/pb.v1"

	"helixsim/internal/config"
	"helixsim/internal/growth"
	"helixsim/internal/model"
	"helixsim/internal/mutation"
	"helixsim/internal/numeric"
	"helixsim/internal/sequence"
	helix "helixsim/pkg/helixsim"
)

type mutateCommand struct {
	input         *string
	temperature   *float64
	unit          *string
	rate          *float64
	generations   *int
	ph            *float64
	nutrients     *string
	oxygen        *string
	seed          *int64
	indelRate     *float64
	reseed        *bool
	nonCodingTail *int
	interval      *time.Duration
	progress      *bool
	jsonOut       *bool
}

func newMutateCommand(app *kingpin.Application, cfg config.Config) *mutateCommand {
	m := cfg.Mutation
	cmd := app.Command("mutate", "Evolve the first record of a FASTA file through substitution generations.")
	return &mutateCommand{
		input:         cmd.Arg("fasta", "FASTA file, - for stdin.").Required().String(),
		temperature:   cmd.Flag("temperature", "Incubation temperature.").Short('t').Default(formatFloat(m.Temperature)).Float64(),
		unit:          cmd.Flag("unit", "Temperature unit (C or F).").Default(m.TempUnit).String(),
		rate:          cmd.Flag("rate", "Substitution rate per base per generation.").Default(formatFloat(m.SubstitutionRate)).Float64(),
		generations:   cmd.Flag("generations", "Generations to simulate (1-10).").Short('g').Default(strconv.Itoa(m.Generations)).Int(),
		ph:            cmd.Flag("ph", "Medium pH.").Default(formatFloat(m.PH)).Float64(),
		nutrients:     cmd.Flag("nutrients", "Nutrient level (Low, Medium, High, Excess).").Default(m.Nutrients).String(),
		oxygen:        cmd.Flag("oxygen", "Oxygen level (Anaerobic, Low, Normal, High).").Default(m.Oxygen).String(),
		seed:          cmd.Flag("seed", "Random seed; 0 picks one.").Default("0").Int64(),
		indelRate:     cmd.Flag("indel-rate", "Extra per-base rate of insertions and deletions.").Default(formatFloat(m.IndelRate)).Float64(),
		reseed:        cmd.Flag("reseed", "Derive a fresh seed every generation.").Default(strconv.FormatBool(m.ReseedPerGeneration)).Bool(),
		nonCodingTail: cmd.Flag("non-coding-tail", "Trailing bases labelled non-coding; negative labels all coding.").Default(strconv.Itoa(m.NonCodingTail)).Int(),
		interval:      cmd.Flag("interval", "Delay between generations.").Default(m.Interval.String()).Duration(),
		progress:      cmd.Flag("progress", "Show a progress bar on a terminal.").Default("true").Bool(),
		jsonOut:       cmd.Flag("json", "Print the run summary as JSON.").Bool(),
	}
}

func (c *mutateCommand) run(ctx context.Context, e *env) error {
	record, err := readFirstRecord(*c.input)
	if err != nil {
		return err
	}
	client, err := e.openClient()
	if err != nil {
		return err
	}
	defer client.Close()

	params := model.SimulationParameters{
		Temperature:      *c.temperature,
		TempUnit:         model.TempUnit(*c.unit),
		SubstitutionRate: *c.rate,
		NumGenerations:   *c.generations,
		PH:               *c.ph,
		Nutrients:        model.NutrientLevel(*c.nutrients),
		Oxygen:           model.OxygenLevel(*c.oxygen),
	}
	bar := newProgressBar(e.stderr, *c.progress, *c.generations, "generations ")
	summary, err := client.RunMutation(ctx, helix.MutationRequest{
		Header:     record.Header,
		Sequence:   record.Sequence,
		Parameters: params,
		Options: mutation.Options{
			Seed:                *c.seed,
			ReseedPerGeneration: *c.reseed,
			IndelRate:           *c.indelRate,
			NonCodingTail:       *c.nonCodingTail,
		},
		Interval: *c.interval,
		OnGeneration: func(mutation.GenerationResult) {
			bar.Increment()
		},
	})
	bar.Finish()
	if err != nil {
		return err
	}

	if *c.jsonOut {
		return e.printJSON(summary)
	}
	fmt.Fprintf(e.stdout, "run_id=%s seed=%d generations=%d effective_rate=%.4f\n",
		summary.RunID, summary.Seed, summary.Summary.FinalGeneration, summary.EffectiveRate)
	fmt.Fprintf(e.stdout, "mutations=%d substitutions=%d insertions=%d deletions=%d variants=%d fitness=%.2f\n",
		summary.Summary.TotalMutations, summary.Summary.Substitutions, summary.Summary.Insertions,
		summary.Summary.Deletions, len(summary.Variants), summary.FinalFitness)
	fmt.Fprintf(e.stdout, "artifacts=%s\n", summary.ArtifactsDir)
	return nil
}

type growCommand struct {
	strain        *string
	genome        *string
	ticks         *int
	seed          *int64
	temp          optionalFloat
	ph            optionalFloat
	nutrients     optionalFloat
	oxygen        optionalFloat
	dose          optionalFloat
	nutrientLevel *string
	oxygenLevel   *string
	antibiotic    *bool
	interval      *time.Duration
	progress      *bool
	jsonOut       *bool
}

func newGrowCommand(app *kingpin.Application, cfg config.Config) *growCommand {
	cmd := app.Command("grow", "Grow a bacterial culture under environmental stress.")
	c := &growCommand{
		strain:        cmd.Flag("strain", "Preset strain key, or custom.").Short('s').Default(cfg.Growth.Strain).String(),
		genome:        cmd.Flag("genome", "Estimate the strain from a genome FASTA instead of a preset.").PlaceHolder("FASTA").ExistingFile(),
		ticks:         cmd.Flag("ticks", "Time steps to simulate.").Short('n').Default(strconv.Itoa(cfg.Growth.Ticks)).Int(),
		seed:          cmd.Flag("seed", "Random seed; 0 picks one.").Default("0").Int64(),
		nutrientLevel: cmd.Flag("nutrient-level", "Nutrient level (Low, Medium, High, Excess) instead of --nutrients.").String(),
		oxygenLevel:   cmd.Flag("oxygen-level", "Oxygen level (Anaerobic, Low, Normal, High) instead of --oxygen.").String(),
		antibiotic:    cmd.Flag("antibiotic", "Apply the standard antibiotic dose.").Bool(),
		interval:      cmd.Flag("interval", "Delay between ticks.").Default(cfg.Growth.Interval.String()).Duration(),
		progress:      cmd.Flag("progress", "Show a progress bar on a terminal.").Default("true").Bool(),
		jsonOut:       cmd.Flag("json", "Print the final snapshot as JSON.").Bool(),
	}
	cmd.Flag("temperature", "Temperature setpoint in °C; defaults to the strain optimum.").Short('t').SetValue(&c.temp)
	cmd.Flag("ph", "pH setpoint.").SetValue(&c.ph)
	cmd.Flag("nutrients", "Initial substrate concentration.").SetValue(&c.nutrients)
	cmd.Flag("oxygen", "Dissolved oxygen percentage.").SetValue(&c.oxygen)
	cmd.Flag("dose", "Antibiotic concentration; overridden by --antibiotic.").SetValue(&c.dose)
	return c
}

func (c *growCommand) run(ctx context.Context, e *env) error {
	client, err := e.openClient()
	if err != nil {
		return err
	}
	defer client.Close()

	req := helix.GrowthRequest{
		StrainKey: *c.strain,
		Seed:      *c.seed,
		Ticks:     *c.ticks,
		Interval:  *c.interval,
		Environment: growth.EnvironmentUpdate{
			Temperature:             c.temp.v,
			PH:                      c.ph.v,
			Nutrients:               c.nutrients.v,
			Oxygen:                  c.oxygen.v,
			AntibioticConcentration: c.dose.v,
		},
	}
	if *c.nutrientLevel != "" {
		req.Environment.NutrientLevel = c.nutrientLevel
	}
	if *c.oxygenLevel != "" {
		req.Environment.OxygenLevel = c.oxygenLevel
	}
	if *c.antibiotic {
		on := true
		req.Environment.AntibioticOn = &on
	}
	if *c.genome != "" {
		estimate, err := estimateFile(client, *c.genome)
		if err != nil {
			return err
		}
		strain := estimate.Strain()
		req.StrainKey = ""
		req.Strain = &strain
		e.logger.Info("strain estimated from genome", "header", estimate.Header, "growth_rate", estimate.EstimatedGrowthRate)
	}

	total := req.Ticks
	if total == 0 {
		total = 100
	}
	bar := newProgressBar(e.stderr, *c.progress, total, "ticks ")
	req.OnTick = func(growth.Snapshot, []growth.Event) {
		bar.Increment()
	}
	summary, err := client.RunGrowth(ctx, req)
	bar.Finish()
	if err != nil {
		return err
	}

	if *c.jsonOut {
		return e.printJSON(summary.Snapshot)
	}
	snap := summary.Snapshot
	fmt.Fprintf(e.stdout, "run_id=%s strain=%q seed=%d ticks=%d\n", summary.RunID, snap.Strain.Name, summary.Seed, snap.TimeStep)
	fmt.Fprintf(e.stdout, "population=%s resistance=%d%% collapsed=%t events=%d\n",
		humanize.Comma(int64(snap.Population)), snap.ResistanceLevel, snap.Collapsed, len(summary.Events))
	for _, w := range snap.Warnings {
		fmt.Fprintf(e.stdout, "warning: %s\n", w)
	}
	for _, line := range snap.AdaptationLog {
		fmt.Fprintf(e.stdout, "  %s\n", line)
	}
	fmt.Fprintf(e.stdout, "artifacts=%s\n", summary.ArtifactsDir)
	return nil
}

// optionalFloat is a kingpin value that remembers whether it was set.
type optionalFloat struct {
	v *float64
}

func (o *optionalFloat) Set(raw string) error {
	f, err := numeric.ParseFloat(raw)
	if err != nil {
		return err
	}
	o.v = &f
	return nil
}

func (o *optionalFloat) String() string {
	if o.v == nil {
		return ""
	}
	return formatFloat(*o.v)
}

// newProgressBar returns a bar drawing to w, or a silent one when w is not a
// terminal or progress is off.
func newProgressBar(w io.Writer, progress bool, total int, prefix string) *pb.ProgressBar {
	bar := pb.New(total).Prefix(prefix)
	bar.ShowSpeed = false
	if progress && isTerminal(w) {
		bar.Output = w
	} else {
		bar.NotPrint = true
	}
	return bar.Start()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

func readFirstRecord(path string) (sequence.Record, error) {
	in, err := openInput(path)
	if err != nil {
		return sequence.Record{}, err
	}
	defer in.Close()
	return sequence.ReadFirst(in)
}

func estimateFile(client *helix.Client, path string) (growth.GenomeEstimate, error) {
	in, err := openInput(path)
	if err != nil {
		return growth.GenomeEstimate{}, err
	}
	defer in.Close()
	return client.EstimateStrain(in)
}
