package main

import (
	"context"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/alecthomas/kingpin.v2"

	"helixsim/internal/stats"
	helix "helixsim/pkg/helixsim"
)

type runsCommand struct {
	limit   *int
	kind    *string
	summary *bool
	jsonOut *bool
}

func newRunsCommand(app *kingpin.Application) *runsCommand {
	cmd := app.Command("runs", "List recorded runs, newest first.")
	return &runsCommand{
		limit:   cmd.Flag("limit", "Maximum runs to list.").Default("20").Int(),
		kind:    cmd.Flag("kind", "Only list runs of this kind.").Enum(string(stats.KindMutation), string(stats.KindGrowth), string(stats.KindResistance)),
		summary: cmd.Flag("summary", "Aggregate outcomes per run kind.").Bool(),
		jsonOut: cmd.Flag("json", "Print as JSON.").Bool(),
	}
}

func (c *runsCommand) run(ctx context.Context, e *env) error {
	client, err := e.openClient()
	if err != nil {
		return err
	}
	defer client.Close()

	if *c.summary {
		summaries, err := client.RunSummaries(ctx)
		if err != nil {
			return err
		}
		if *c.jsonOut {
			return e.printJSON(summaries)
		}
		if len(summaries) == 0 {
			fmt.Fprintln(e.stdout, "no runs recorded")
			return nil
		}
		for _, s := range summaries {
			fmt.Fprintf(e.stdout, "kind=%s runs=%d outcome_avg=%.3f outcome_std=%.3f outcome_min=%.3f outcome_max=%.3f steps_avg=%.1f latest=%s\n",
				s.Kind, s.Runs, s.AvgOutcome, s.StdOutcome, s.MinOutcome, s.MaxOutcome, s.AvgSteps, s.LatestRun)
		}
		return nil
	}

	entries, err := client.Runs(ctx, helix.RunsRequest{Limit: *c.limit, Kind: stats.RunKind(*c.kind)})
	if err != nil {
		return err
	}
	if *c.jsonOut {
		return e.printJSON(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(e.stdout, "no runs recorded")
		return nil
	}
	tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN ID\tKIND\tLABEL\tSTEPS\tOUTCOME\tCREATED")
	for _, entry := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\t%s\n",
			entry.RunID, entry.Kind, entry.Label, entry.Steps, formatOutcome(entry), age(entry.CreatedAtUTC))
	}
	return tw.Flush()
}

type showCommand struct {
	runID   *string
	latest  *bool
	jsonOut *bool
}

func newShowCommand(app *kingpin.Application) *showCommand {
	cmd := app.Command("show", "Show a recorded run.")
	return &showCommand{
		runID:   cmd.Arg("run-id", "Run id.").String(),
		latest:  cmd.Flag("latest", "Show the most recent run.").Bool(),
		jsonOut: cmd.Flag("json", "Print the stored record as JSON.").Bool(),
	}
}

func (c *showCommand) run(ctx context.Context, e *env) error {
	client, err := e.openClient()
	if err != nil {
		return err
	}
	defer client.Close()

	entry, err := client.LookupRun(ctx, *c.runID, *c.latest)
	if err != nil {
		return err
	}
	switch entry.Kind {
	case stats.KindMutation:
		run, err := client.MutationRun(ctx, entry.RunID)
		if err != nil {
			return err
		}
		if *c.jsonOut {
			return e.printJSON(run)
		}
		p := run.Parameters
		fmt.Fprintf(e.stdout, "run_id=%s kind=%s created=%s header=%q seed=%d\n", run.ID, entry.Kind, run.CreatedAtUTC, run.Header, run.Seed)
		fmt.Fprintf(e.stdout, "temperature=%g%s rate=%g generations=%d ph=%g nutrients=%s oxygen=%s\n",
			p.Temperature, p.TempUnit, p.SubstitutionRate, p.NumGenerations, p.PH, p.Nutrients, p.Oxygen)
		fmt.Fprintf(e.stdout, "reference_length=%d final_length=%d mutations=%d\n", len(run.Reference), len(run.FinalSequence), len(run.Mutations))
		for _, g := range run.GenerationStats {
			fmt.Fprintf(e.stdout, "generation=%d fitness=%.2f mutations=%d cumulative=%d\n",
				g.Generation, g.Fitness, g.MutationCount, g.CumulativeMutations)
		}
	case stats.KindGrowth:
		run, err := client.GrowthRun(ctx, entry.RunID)
		if err != nil {
			return err
		}
		if *c.jsonOut {
			return e.printJSON(run)
		}
		fmt.Fprintf(e.stdout, "run_id=%s kind=%s created=%s strain=%q seed=%d\n", run.ID, entry.Kind, run.CreatedAtUTC, run.Strain.Name, run.Seed)
		fmt.Fprintf(e.stdout, "ticks=%d population=%s resistance=%.1f%% collapsed=%t\n",
			run.Ticks, humanize.Comma(int64(run.FinalPopulation)), run.FinalResistance*100, run.Collapsed)
		setpoints := run.Environment
		fmt.Fprintf(e.stdout, "temperature=%g ph=%g nutrients=%.1f oxygen=%g antibiotic=%g\n",
			setpoints.Temperature, setpoints.PH, setpoints.Nutrients, setpoints.Oxygen, setpoints.AntibioticConcentration)
		for _, line := range run.AdaptationLog {
			fmt.Fprintf(e.stdout, "  %s\n", line)
		}
	case stats.KindResistance:
		report, err := client.ResistanceReport(ctx, entry.RunID)
		if err != nil {
			return err
		}
		if *c.jsonOut {
			return e.printJSON(report)
		}
		doc := report.Document
		fmt.Fprintf(e.stdout, "run_id=%s kind=%s created=%s organism=%q genes=%s\n",
			report.ID, entry.Kind, report.CreatedAtUTC, doc.Metadata.Organism, strings.Join(doc.GenesAnalyzed, ","))
		return printProfile(e.stdout, doc)
	default:
		return fmt.Errorf("run %s has unsupported kind %q", entry.RunID, entry.Kind)
	}
	return nil
}

type exportCommand struct {
	runID  *string
	latest *bool
	out    *string
}

func newExportCommand(app *kingpin.Application) *exportCommand {
	cmd := app.Command("export", "Copy a run's artifact directory.")
	return &exportCommand{
		runID:  cmd.Flag("run-id", "Run id.").String(),
		latest: cmd.Flag("latest", "Export the most recent run.").Bool(),
		out:    cmd.Flag("out", "Export output directory.").Default("exports").String(),
	}
}

func (c *exportCommand) run(ctx context.Context, e *env) error {
	if *c.runID == "" && !*c.latest {
		return usageError("export requires --run-id or --latest")
	}
	client, err := e.openClient()
	if err != nil {
		return err
	}
	defer client.Close()

	exported, err := client.Export(ctx, helix.ExportRequest{RunID: *c.runID, Latest: *c.latest, OutDir: *c.out})
	if err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "exported run_id=%s to=%s\n", exported.RunID, exported.Directory)
	return nil
}

func formatOutcome(entry stats.RunIndexEntry) string {
	switch entry.Kind {
	case stats.KindMutation:
		return fmt.Sprintf("fitness %.1f", entry.Outcome)
	case stats.KindGrowth:
		return "population " + humanize.Comma(int64(entry.Outcome))
	case stats.KindResistance:
		return fmt.Sprintf("%d classes", int(entry.Outcome))
	}
	return fmt.Sprintf("%g", entry.Outcome)
}

func age(createdAtUTC string) string {
	t, err := time.Parse(time.RFC3339Nano, createdAtUTC)
	if err != nil {
		return createdAtUTC
	}
	return humanize.Time(t)
}
