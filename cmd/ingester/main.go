package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"

	"energy-dashboard/internal/config"
	"energy-dashboard/internal/dataset"
	"energy-dashboard/internal/repository"
	"energy-dashboard/internal/services"
	"energy-dashboard/pkg/database"
	"energy-dashboard/pkg/logging"
	"energy-dashboard/pkg/metrics"
)

func main() {
	csvPath := flag.String("csv", "data/owid-energy-data.csv", "OWID energy CSV to load")
	batchSize := flag.Int("batch-size", 1000, "Number of records to insert in each batch")
	truncate := flag.Bool("truncate", false, "Empty the energy_records table before loading")
	flag.Parse()

	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Database.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid database configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.NewStructuredLogger("energy-ingester", "1.0.0", cfg.LogLevel())

	ctx := context.Background()
	logger.Info(ctx, "[INGESTER_START] Starting energy data ingestion", logging.Fields{
		"version":    "1.0.0",
		"csv":        *csvPath,
		"batch_size": *batchSize,
		"truncate":   *truncate,
	})

	metricsCollector := metrics.NewCollector("energy_ingester")

	db, err := database.NewPostgresDB(ctx, cfg.Database.Connection(), logger, metricsCollector)
	if err != nil {
		logger.Fatal(ctx, "[INGESTER_ERROR] Failed to connect to database", logging.Fields{}, err)
	}
	defer db.Close()

	repo := repository.NewEnergyRepository(db, logger, metricsCollector)
	ingestionService := services.NewIngestionService(repo, logger, metricsCollector)

	result, err := ingestionService.Ingest(ctx, dataset.CSVSource{Path: *csvPath}, services.IngestionOptions{
		BatchSize: *batchSize,
		Truncate:  *truncate,
	})
	if err != nil {
		logger.Fatal(ctx, "[INGESTION_ERROR] Ingestion failed", logging.Fields{
			"csv": *csvPath,
		}, err)
	}

	stored, err := repo.CountRecords(ctx)
	if err != nil {
		logger.Error(ctx, "[INGESTER_COUNT_ERROR] Failed to count stored records", logging.Fields{}, err)
	}

	fmt.Println(strings.Repeat("=", 80))
	fmt.Println("INGESTION COMPLETE")
	fmt.Println(strings.Repeat("=", 80))
	fmt.Printf("Source:             %s\n", result.Source)
	fmt.Printf("Total Rows:         %d\n", result.TotalRecords)
	fmt.Printf("Successful Records: %d\n", result.SuccessfulRecords)
	fmt.Printf("Dropped Rows:       %d\n", result.FailedRecords)
	fmt.Printf("Batches:            %d\n", result.Batches)
	fmt.Printf("Rows In Table:      %d\n", stored)
	fmt.Printf("Duration:           %v\n", result.Duration)
	if secs := result.Duration.Seconds(); secs > 0 {
		fmt.Printf("Records/Second:     %.2f\n", float64(result.SuccessfulRecords)/secs)
	}

	if len(result.DroppedByReason) > 0 {
		reasons := make([]string, 0, len(result.DroppedByReason))
		for reason := range result.DroppedByReason {
			reasons = append(reasons, reason)
		}
		sort.Strings(reasons)

		fmt.Println("\nDropped rows by reason:")
		for _, reason := range reasons {
			fmt.Printf("  - %-20s %d\n", reason, result.DroppedByReason[reason])
		}
	}
}
