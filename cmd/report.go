package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/etas-sim/etas-sim/sim/accum"
	"github.com/etas-sim/etas-sim/sim/codec"
	"github.com/etas-sim/etas-sim/sim/ensemble"
	"github.com/etas-sim/etas-sim/sim/store"
)

// buildForecast snapshots the accumulators of a finished run.
func buildForecast(cfg *ForecastConfig, comp *components, sum ensemble.Summary) store.Forecast {
	f := store.NewForecast(cfg.Name)
	f.Key = cfg.Run.Seed
	f.Params = codec.FromCatalogParams(&comp.params)
	f.Limits = codec.FromCatalogLimits(&comp.limits)
	f.Seed = codec.FromSeedParams(&comp.seedParams)

	results := make(map[string]int, len(sum.ResultCounts))
	for rc, n := range sum.ResultCounts {
		results[rc.String()] = n
	}
	f.Summary = store.RunSummary{
		Catalogs:       sum.Catalogs,
		Ruptures:       sum.Ruptures,
		Retries:        sum.Retries,
		Results:        results,
		ElapsedSeconds: sum.Elapsed.Seconds(),
	}

	ro := &cfg.Readouts
	f.Time = timeReadout(comp.time, ro.Fractiles, ro.ProbCount)
	if comp.genMag != nil {
		f.GenMag = genMagReadout(comp.genMag, ro.Fractiles, ro.ProbCount)
	}
	return f
}

func timeReadout(acc *accum.TimeAccumulator, fractiles []float64, probCount int) *store.TimeReadout {
	nb := acc.BinCount()
	tr := &store.TimeReadout{
		TimeValues: acc.TimeValues(),
		MagThresh:  acc.MagThresh(),
		Fractiles:  append([]float64(nil), fractiles...),
		Completing: make([]int, nb),
		ProbOccur:  make([]float64, nb),
	}
	for n := 0; n < nb; n++ {
		tr.Completing[n] = acc.CompletingCount(n)
		tr.ProbOccur[n] = acc.ProbOccur(n, probCount)
	}
	for _, fr := range fractiles {
		counts := make([]int, nb)
		mags := make([]float64, nb)
		for n := 0; n < nb; n++ {
			counts[n] = acc.BinFractile(n, fr)
			mags[n] = acc.HighMagFractile(n, fr, true)
		}
		tr.Counts = append(tr.Counts, counts)
		tr.HighMag = append(tr.HighMag, mags)
		tr.Survival = append(tr.Survival, acc.SurvivalBins(fr))
	}
	return tr
}

func genMagReadout(acc *accum.GenMagAccumulator, fractiles []float64, probCount int) *store.GenMagReadout {
	gr := &store.GenMagReadout{
		MagValues: acc.MagValues(),
		Fractiles: append([]float64(nil), fractiles...),
		ProbOccur: acc.ProbOccurArray(probCount),
	}
	for _, fr := range fractiles {
		gr.Counts = append(gr.Counts, acc.FractileArray(fr))
	}
	return gr
}

// printReport writes a human-readable summary of f.
func printReport(w io.Writer, f *store.Forecast, probCount int) {
	fmt.Fprintln(w, "=== Forecast ===")
	fmt.Fprintf(w, "Name                 : %s\n", f.Name)
	fmt.Fprintf(w, "ID                   : %s\n", f.ID)
	fmt.Fprintf(w, "Seed                 : %d\n", f.Key)
	fmt.Fprintf(w, "Catalogs             : %d\n", f.Summary.Catalogs)
	fmt.Fprintf(w, "Ruptures             : %d\n", f.Summary.Ruptures)
	fmt.Fprintf(w, "Retries              : %d\n", f.Summary.Retries)
	fmt.Fprintf(w, "Results              : %s\n", formatResults(f.Summary.Results))
	fmt.Fprintf(w, "Elapsed              : %.3fs\n", f.Summary.ElapsedSeconds)

	if tr := f.Time; tr != nil {
		fmt.Fprintf(w, "\n=== Counts with magnitude >= %.2f ===\n", tr.MagThresh)
		fmt.Fprintf(w, "%-22s %10s", "bin", "complete")
		for _, fr := range tr.Fractiles {
			fmt.Fprintf(w, " %9s", fmt.Sprintf("q%.4g", fr))
		}
		fmt.Fprintf(w, " %9s\n", fmt.Sprintf("P(>%d)", probCount))
		for n := range tr.Completing {
			fmt.Fprintf(w, "%-22s %10d", fmt.Sprintf("[%g, %g)", tr.TimeValues[n], tr.TimeValues[n+1]), tr.Completing[n])
			for i := range tr.Fractiles {
				fmt.Fprintf(w, " %9d", tr.Counts[i][n])
			}
			fmt.Fprintf(w, " %9.4f\n", tr.ProbOccur[n])
		}

		fmt.Fprintln(w, "\n=== Largest magnitude ===")
		for n := range tr.Completing {
			fmt.Fprintf(w, "%-22s", fmt.Sprintf("[%g, %g)", tr.TimeValues[0], tr.TimeValues[n+1]))
			for i := range tr.Fractiles {
				fmt.Fprintf(w, " %9s", formatMag(tr.HighMag[i][n]))
			}
			fmt.Fprintln(w)
		}

		fmt.Fprintln(w, "\n=== Survival ===")
		for i, fr := range tr.Fractiles {
			fmt.Fprintf(w, "stop fraction %-7.4g: %d of %d bins\n", fr, tr.Survival[i], len(tr.Completing))
		}
	}

	if gr := f.GenMag; gr != nil {
		fmt.Fprintf(w, "\n=== Generation by magnitude, P(>%d) ===\n", probCount)
		fmt.Fprintf(w, "%-6s", "gen")
		for _, m := range gr.MagValues {
			fmt.Fprintf(w, " %8s", fmt.Sprintf("M%.2f", m))
		}
		fmt.Fprintln(w)
		for g, row := range gr.ProbOccur {
			fmt.Fprintf(w, "%-6d", g+1)
			for _, p := range row {
				fmt.Fprintf(w, " %8.4f", p)
			}
			fmt.Fprintln(w)
		}
	}
}

func formatResults(results map[string]int) string {
	keys := make([]string, 0, len(results))
	for k := range results {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = fmt.Sprintf("%s=%d", k, results[k])
	}
	return strings.Join(parts, ", ")
}

// formatMag renders the high-magnitude sentinels as words.
func formatMag(m float64) string {
	switch {
	case m >= accum.HighMagPositive:
		return "n/a"
	case m <= accum.HighMagNegative:
		return "none"
	default:
		return fmt.Sprintf("%.2f", m)
	}
}
