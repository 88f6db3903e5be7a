// Command nexus-cli runs the nexus engine over a JSON snapshot file without
// a database.
//
//	nexus-cli -vda CA,TX snapshot.json
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"taxnexus/internal/nexus"
	"taxnexus/internal/service"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

func main() {
	log.SetPrefix("[nexus-cli] ")
	log.SetFlags(0)
	if err := run(os.Args[1:], os.Stdout); err != nil {
		log.Fatal(err)
	}
}

func run(args []string, stdout io.Writer) error {
	fs := flag.NewFlagSet("nexus-cli", flag.ContinueOnError)
	vda := fs.String("vda", "", "comma-separated jurisdictions to model a voluntary disclosure for")
	asJSON := fs.Bool("json", false, "print the analysis as JSON")
	workers := fs.Int("workers", 4, "jurisdictions computed concurrently")
	ratio := fs.String("ratio", "0.85", "share of a threshold reported as approaching")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: nexus-cli [flags] <snapshot.json>")
	}

	approaching, err := decimal.NewFromString(*ratio)
	if err != nil {
		return fmt.Errorf("invalid -ratio %q: %w", *ratio, err)
	}

	f, err := os.Open(fs.Arg(0))
	if err != nil {
		return err
	}
	defer f.Close()

	snap, err := service.DecodeSnapshot(f)
	if err != nil {
		return err
	}

	start := time.Now()
	analysis, err := nexus.NewEngine(nexus.Options{ApproachingRatio: approaching, Workers: *workers}).Run(snap)
	if err != nil {
		return fmt.Errorf("engine run failed: %w", err)
	}
	log.Printf("%d results for %d transactions in %s", len(analysis.Results), len(snap.Transactions), time.Since(start).Round(time.Millisecond))

	var scenario *nexus.VDAScenario
	if *vda != "" {
		s := analysis.ModelVDA(strings.Split(*vda, ","))
		scenario = &s
	}

	if *asJSON {
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(struct {
			*nexus.Analysis
			VDA *nexus.VDAScenario `json:"vda,omitempty"`
		}{analysis, scenario})
	}

	printResults(stdout, analysis)
	if scenario != nil {
		printVDA(stdout, scenario)
	}
	return nil
}

func printResults(out io.Writer, a *nexus.Analysis) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "STATE\tYEAR\tSTATUS\tNEXUS DATE\tGROSS\tTHRESHOLD %\tTAX\tINTEREST\tPENALTY\tTOTAL\t")
	for _, r := range a.Results {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			r.Jurisdiction, r.Year, statusLabel(r),
			dateOrDash(r.NexusDate),
			money(r.GrossSales),
			percent(r.ThresholdPercent),
			nullMoney(r.EstimatedTax), nullMoney(r.Interest), nullMoney(r.Penalties), nullMoney(r.TotalLiability),
		)
	}
	w.Flush()

	s := a.Summary
	fmt.Fprintf(out, "\nAs of %s: %d states with nexus, total liability $%s (tax %s, interest %s, penalties %s)\n",
		a.AsOf.Format("2006-01-02"), s.JurisdictionsWithNexus,
		money(s.TotalLiability), money(s.TotalTax), money(s.TotalInterest), money(s.TotalPenalties))
	if s.ResultsNeedingReview > 0 {
		fmt.Fprintf(out, "%d results in %d states need manual review:\n", s.ResultsNeedingReview, s.JurisdictionsFlagged)
		for _, r := range a.Results {
			for _, issue := range r.Issues {
				fmt.Fprintf(out, "  %s %d  %s: %s\n", r.Jurisdiction, r.Year, issue.Code, issue.Message)
			}
		}
	}
}

func printVDA(out io.Writer, s *nexus.VDAScenario) {
	fmt.Fprintln(out, "\nVoluntary disclosure")
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "STATE\tBEFORE\tWITH VDA\tSAVINGS\tYEARS COVERED\tOUTSIDE LOOKBACK\t")
	for _, b := range s.Breakdown {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t\n",
			b.Jurisdiction, nullMoney(b.BeforeVDA), nullMoney(b.WithVDA), nullMoney(b.Savings),
			years(b.YearsCovered), years(b.YearsOutsideLookback))
	}
	w.Flush()
	fmt.Fprintf(out, "Total: $%s before, $%s with VDA, $%s saved\n",
		money(s.BeforeTotal), money(s.AfterTotal), money(s.TotalSavings))
}

func statusLabel(r nexus.StateYearResult) string {
	if r.NeedsManualReview {
		return string(r.Status) + "*"
	}
	return string(r.Status)
}

func money(d decimal.Decimal) string {
	return humanize.CommafWithDigits(d.Round(2).InexactFloat64(), 2)
}

func nullMoney(d decimal.NullDecimal) string {
	if !d.Valid {
		return "n/a"
	}
	return money(d.Decimal)
}

func percent(d *decimal.Decimal) string {
	if d == nil {
		return "-"
	}
	return d.StringFixed(1)
}

func dateOrDash(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}

func years(ys []int) string {
	if len(ys) == 0 {
		return "-"
	}
	parts := make([]string, len(ys))
	for i, y := range ys {
		parts[i] = fmt.Sprint(y)
	}
	return strings.Join(parts, ",")
}
