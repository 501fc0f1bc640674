package services

import (
	"context"
	"fmt"
	"time"

	"energy-dashboard/internal/dataset"
	"energy-dashboard/internal/models"
	"energy-dashboard/internal/repository"
	"energy-dashboard/pkg/logging"
	"energy-dashboard/pkg/metrics"
)

// IngestionService copies a dataset snapshot into PostgreSQL
type IngestionService struct {
	repo    repository.EnergyRepository
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// IngestionResult contains ingestion statistics
type IngestionResult struct {
	Source            string
	TotalRecords      int
	SuccessfulRecords int
	FailedRecords     int
	Batches           int
	Duration          time.Duration
	DroppedByReason   map[string]int
}

// IngestionOptions controls a single ingestion run
type IngestionOptions struct {
	BatchSize int
	// Truncate empties the table first so the store mirrors the snapshot exactly
	Truncate bool
}

// NewIngestionService creates a new ingestion service
func NewIngestionService(repo repository.EnergyRepository, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *IngestionService {
	return &IngestionService{
		repo:    repo,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Ingest reads every record from src and writes them to the repository in batches
func (s *IngestionService) Ingest(ctx context.Context, src dataset.Source, opts IngestionOptions) (*IngestionResult, error) {
	startTime := time.Now()
	if opts.BatchSize <= 0 {
		opts.BatchSize = 1000
	}

	s.logger.Info(ctx, "[INGEST_START] Starting data ingestion", logging.Fields{
		"source":     src.Name(),
		"batch_size": opts.BatchSize,
		"truncate":   opts.Truncate,
		"stage":      "INITIALIZATION",
	})

	records, stats, err := src.Records(ctx)
	if err != nil {
		s.metrics.RecordIngestionError("source_error")
		s.logger.Error(ctx, "[INGEST_SOURCE_ERROR] Failed to read source", logging.Fields{
			"source": src.Name(),
			"stage":  "SOURCE",
		}, err)
		return nil, fmt.Errorf("failed to read source: %w", err)
	}

	result := &IngestionResult{
		Source:          src.Name(),
		TotalRecords:    stats.TotalRows,
		FailedRecords:   stats.DroppedRows(),
		DroppedByReason: stats.Dropped,
	}
	for reason, n := range stats.Dropped {
		s.metrics.IngestionErrorsTotal.WithLabelValues(reason).Add(float64(n))
	}

	if opts.Truncate {
		if err := s.repo.TruncateRecords(ctx); err != nil {
			return nil, err
		}
	}

	batch := make([]*models.EnergyRecord, 0, opts.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.repo.CreateRecordsBatch(ctx, batch); err != nil {
			s.metrics.RecordIngestionError("batch_error")
			return fmt.Errorf("failed to insert batch %d: %w", result.Batches+1, err)
		}
		result.SuccessfulRecords += len(batch)
		result.Batches++
		batch = batch[:0]
		return nil
	}

	for i := range records {
		batch = append(batch, &records[i])
		if len(batch) >= opts.BatchSize {
			if err := flush(); err != nil {
				return nil, err
			}
		}
	}
	if err := flush(); err != nil {
		return nil, err
	}

	result.Duration = time.Since(startTime)
	s.metrics.IngestionDuration.Observe(result.Duration.Seconds())

	s.logger.Info(ctx, "[INGEST_COMPLETE] Data ingestion completed", logging.Fields{
		"source":             result.Source,
		"total_records":      result.TotalRecords,
		"successful_records": result.SuccessfulRecords,
		"failed_records":     result.FailedRecords,
		"batches":            result.Batches,
		"duration_seconds":   result.Duration.Seconds(),
		"stage":              "COMPLETE",
	})

	return result, nil
}
