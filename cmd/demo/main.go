package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"energy-dashboard/internal/charts"
	"energy-dashboard/internal/coordinator"
	"energy-dashboard/internal/dataset"
	"energy-dashboard/internal/services"
	"energy-dashboard/internal/views"
	"energy-dashboard/pkg/logging"
	"energy-dashboard/pkg/metrics"
)

const (
	banner  = "════════════════════════════════════════════════════════════════"
	divider = "─────────────────────────────────────────────────────────────"
	topN    = 10
)

// Renders the dashboard views for one selection without a server or database
func main() {
	csvPath := flag.String("csv", "data/owid-energy-data.csv", "OWID energy CSV to load")
	countries := flag.String("countries", "India,United States", "Comma-separated countries to select")
	metric := flag.String("metric", "oil_consumption", "Metric key")
	format := flag.String("format", "csv", "Export format: csv or xlsx")
	outDir := flag.String("out", ".", "Directory for the export file and dashboard.html")
	flag.Parse()

	fmt.Println(banner)
	fmt.Println("WORLD ENERGY DASHBOARD - OFFLINE REPORT")
	fmt.Println(banner)
	fmt.Println()

	logger := logging.NewStructuredLogger("energy-demo", "1.0.0", logging.WarnLevel)
	collector := metrics.NewCollectorWithRegisterer("energy_demo", prometheus.NewRegistry())
	ctx := context.Background()

	table, err := dataset.Load(ctx, dataset.CSVSource{Path: *csvPath}, logger, collector)
	if err != nil {
		fmt.Printf("Error loading dataset: %v\n", err)
		os.Exit(1)
	}
	first, last, _ := table.YearRange()
	fmt.Printf("Loaded %d rows for %d countries (%d-%d)\n\n", table.Len(), len(table.Countries()), first, last)

	svc := services.NewDashboardService(table, logger, collector)
	coord := coordinator.New(svc, logger, collector)

	coord.SelectCountries(ctx, strings.Split(*countries, ",")...)
	if _, err := coord.SelectMetric(ctx, *metric); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	update := coord.Refresh(ctx)

	printTimeSeries(update.TimeSeries)
	printGeo(update.Map)

	exportFormat, err := views.ParseFormat(*format)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	res, err := coord.Export(ctx, exportFormat)
	if err != nil {
		fmt.Printf("Error exporting: %v\n", err)
		os.Exit(1)
	}

	exportPath := filepath.Join(*outDir, res.Artifact.Filename)
	if err := os.WriteFile(exportPath, res.Artifact.Data, 0o644); err != nil {
		fmt.Printf("Error writing export: %v\n", err)
		os.Exit(1)
	}

	htmlPath := filepath.Join(*outDir, "dashboard.html")
	f, err := os.Create(htmlPath)
	if err != nil {
		fmt.Printf("Error creating %s: %v\n", htmlPath, err)
		os.Exit(1)
	}
	defer f.Close()
	if err := charts.RenderDashboard(f, update.TimeSeries, update.Map); err != nil {
		fmt.Printf("Error rendering dashboard: %v\n", err)
		os.Exit(1)
	}

	fmt.Println(banner)
	fmt.Printf("Export:    %s (%d rows)\n", exportPath, res.Artifact.Rows)
	fmt.Printf("Dashboard: %s\n", htmlPath)
	fmt.Println(banner)
}

func printTimeSeries(ts *views.TimeSeries) {
	fmt.Println(divider)
	fmt.Printf("%s: %s\n", ts.Title, ts.Label)
	fmt.Println(divider)

	names, byCountry := ts.Series()
	if len(names) == 0 {
		fmt.Println("  (no rows for the selected countries)")
	}
	for _, c := range names {
		points := byCountry[c]
		gaps := 0
		for _, p := range points {
			if p.Value == nil {
				gaps++
			}
		}
		fmt.Printf("  %-24s %4d-%4d  %3d points  %3d missing\n",
			c, points[0].Year, points[len(points)-1].Year, len(points), gaps)
	}
	fmt.Println()
}

func printGeo(agg *views.GeoAggregate) {
	fmt.Println(divider)
	fmt.Println(agg.Title)
	fmt.Println(divider)

	rows := make([]views.GeoRow, len(agg.Rows))
	copy(rows, agg.Rows)
	sort.SliceStable(rows, func(i, j int) bool {
		return rows[i].TotalConsumption > rows[j].TotalConsumption
	})

	_, skipped, _, _ := charts.MapPoints(agg)
	for i, r := range rows {
		if i == topN {
			break
		}
		iso := "-"
		if r.ISOCode != nil {
			iso = *r.ISOCode
		}
		fmt.Printf("  %2d. %-24s %-10s %14.2f\n", i+1, r.Country, iso, r.TotalConsumption)
	}
	fmt.Printf("\n  %d countries aggregated, %d without a map region\n\n", len(agg.Rows), skipped)
}
