package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"gopkg.in/alecthomas/kingpin.v2"

	"helixsim/internal/amr"
	"helixsim/internal/config"
	"helixsim/internal/model"
	helix "helixsim/pkg/helixsim"
)

type amrCommand struct {
	organism *string
	genes    *[]string
	jsonOut  *bool
}

func newAMRCommand(app *kingpin.Application, cfg config.Config) *amrCommand {
	cmd := app.Command("amr", "Predict antibiotic resistance from a set of marker genes.")
	return &amrCommand{
		organism: cmd.Flag("organism", "Organism the genes were found in.").Short('o').Default(cfg.AMR.Organism).String(),
		genes:    cmd.Arg("genes", "Marker genes, e.g. gyrA parC blaTEM-1.").Required().Strings(),
		jsonOut:  cmd.Flag("json", "Print the report document as JSON.").Bool(),
	}
}

func (c *amrCommand) run(ctx context.Context, e *env) error {
	client, err := e.openClient()
	if err != nil {
		return err
	}
	defer client.Close()

	summary, err := client.AnalyzeResistance(ctx, helix.AnalyzeRequest{Organism: *c.organism, Genes: *c.genes})
	if err != nil {
		return err
	}
	if *c.jsonOut {
		return amr.WriteJSON(e.stdout, summary.Document)
	}

	doc := summary.Document
	fmt.Fprintf(e.stdout, "run_id=%s organism=%q genes=%s timestamp=%q\n",
		summary.RunID, doc.Metadata.Organism, strings.Join(doc.GenesAnalyzed, ","), doc.Metadata.Timestamp)
	if err := printProfile(e.stdout, doc); err != nil {
		return err
	}
	fmt.Fprintf(e.stdout, "artifacts=%s\n", summary.ArtifactsDir)
	return nil
}

type genesCommand struct {
	term    *string
	markers *bool
	jsonOut *bool
}

func newGenesCommand(app *kingpin.Application) *genesCommand {
	cmd := app.Command("genes", "Search the reference resistance gene records.")
	return &genesCommand{
		term:    cmd.Arg("term", "Substring of a gene, antibiotic or organism.").String(),
		markers: cmd.Flag("markers", "List the markers used by amr instead.").Bool(),
		jsonOut: cmd.Flag("json", "Print as JSON.").Bool(),
	}
}

func (c *genesCommand) run(_ context.Context, e *env) error {
	kb := amr.DefaultKnowledgeBase()
	tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	if *c.markers {
		if *c.jsonOut {
			return e.printJSON(kb.Markers)
		}
		fmt.Fprintln(tw, "GENE\tCLASS\tANTIBIOTIC\tIMPACT\tORGANISM\tMECHANISM")
		for _, m := range kb.Markers {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%s\t%s\n", m.Gene, m.DrugClass, m.Antibiotic, m.Impact, orDash(m.Organism), m.Mechanism)
		}
		return tw.Flush()
	}

	records := kb.Search(*c.term)
	if *c.jsonOut {
		return e.printJSON(records)
	}
	if len(records) == 0 {
		fmt.Fprintf(e.stdout, "no reference records match %q\n", *c.term)
		return nil
	}
	fmt.Fprintln(tw, "ID\tGENE\tANTIBIOTIC\tCLASS\tORGANISM\tIMPACT")
	for _, r := range records {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%.2f\n", r.ID, r.Gene, r.Antibiotic, r.DrugClass, r.Organism, r.Impact)
	}
	return tw.Flush()
}

type strainsCommand struct {
	jsonOut *bool
}

func newStrainsCommand(app *kingpin.Application) *strainsCommand {
	cmd := app.Command("strains", "List the preset bacterial strains.")
	return &strainsCommand{jsonOut: cmd.Flag("json", "Print as JSON.").Bool()}
}

func (c *strainsCommand) run(_ context.Context, e *env) error {
	strains := helix.PresetStrains()
	if *c.jsonOut {
		return e.printJSON(strains)
	}
	tw := tabwriter.NewWriter(e.stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tNAME\tGROWTH\tTEMP\tRESISTANCE\tDESCRIPTION")
	for _, s := range strains {
		fmt.Fprintf(tw, "%s\t%s\t%.2f\t%.0f\t%.2f\t%s\n", s.Key, s.Name, s.BaseGrowthRate, s.OptimalTemperature, s.BaselineResistance, s.Description)
	}
	return tw.Flush()
}

type estimateCommand struct {
	input   *string
	jsonOut *bool
}

func newEstimateCommand(app *kingpin.Application) *estimateCommand {
	cmd := app.Command("estimate", "Estimate growth and resistance parameters from a genome FASTA.")
	return &estimateCommand{
		input:   cmd.Arg("fasta", "FASTA file, - for stdin.").Required().String(),
		jsonOut: cmd.Flag("json", "Print as JSON.").Bool(),
	}
}

func (c *estimateCommand) run(_ context.Context, e *env) error {
	in, err := openInput(*c.input)
	if err != nil {
		return err
	}
	defer in.Close()
	estimate, err := helix.EstimateGenome(in)
	if err != nil {
		return err
	}
	if *c.jsonOut {
		return e.printJSON(estimate)
	}
	fmt.Fprintf(e.stdout, "header=%q length=%s bp gc=%.1f%% resistance_genes=%d\n",
		estimate.Header, humanize.Comma(int64(estimate.Length)), estimate.GCContent, estimate.ResistanceGenes)
	fmt.Fprintf(e.stdout, "growth_rate=%.3f resistance=%.3f\n", estimate.EstimatedGrowthRate, estimate.EstimatedResistance)
	return nil
}

type scanCommand struct {
	input   *string
	limit   *int
	jsonOut *bool
}

func newScanCommand(app *kingpin.Application) *scanCommand {
	cmd := app.Command("scan", "Summarize every FASTA record and diff it against the first.")
	return &scanCommand{
		input:   cmd.Arg("fasta", "FASTA file, - for stdin.").Required().String(),
		limit:   cmd.Flag("variants", "Variants to print per record.").Default("10").Int(),
		jsonOut: cmd.Flag("json", "Print as JSON.").Bool(),
	}
}

func (c *scanCommand) run(_ context.Context, e *env) error {
	in, err := openInput(*c.input)
	if err != nil {
		return err
	}
	defer in.Close()
	results, err := helix.ScanFASTA(in)
	if err != nil {
		return err
	}
	if *c.jsonOut {
		return e.printJSON(results)
	}
	for i, r := range results {
		fmt.Fprintf(e.stdout, "record=%d header=%q length=%s gc=%.2f%% a=%d c=%d g=%d t=%d n=%d other=%d",
			i, r.Header, humanize.Comma(int64(r.Length)), r.GCContent,
			r.Composition.A, r.Composition.C, r.Composition.G, r.Composition.T, r.Composition.N, r.Composition.Other)
		if i > 0 {
			fmt.Fprintf(e.stdout, " variants=%d", len(r.Variants))
		}
		fmt.Fprintln(e.stdout)
		for j, v := range r.Variants {
			if j == *c.limit {
				fmt.Fprintf(e.stdout, "  ... %d more\n", len(r.Variants)-j)
				break
			}
			fmt.Fprintf(e.stdout, "  %d %s>%s\n", v.Position+1, v.Reference, v.Alternate)
		}
	}
	return nil
}

func printProfile(w io.Writer, doc model.ResistanceDocument) error {
	if len(doc.DetectedResistance) == 0 {
		fmt.Fprintln(w, "no resistance detected")
	} else {
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "CLASS\tCONFIDENCE\tSCORE\tGENES\tMECHANISMS")
		for _, item := range doc.DetectedResistance {
			fmt.Fprintf(tw, "%s\t%s\t%.2f\t%s\t%s\n", item.Antibiotic, item.Confidence.Level, item.Confidence.Score,
				strings.Join(item.Genes, ","), strings.Join(item.Mechanisms, "; "))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		for _, item := range doc.DetectedResistance {
			if item.IsSynergistic {
				fmt.Fprintf(w, "synergy: %s: %s\n", item.Antibiotic, item.SynergyNote)
			}
		}
	}
	_, err := fmt.Fprintf(w, "note: %s\n", doc.Metadata.Disclaimer)
	return err
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
