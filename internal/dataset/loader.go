package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"energy-dashboard/internal/models"
	"energy-dashboard/pkg/logging"
	"energy-dashboard/pkg/metrics"
)

// Source supplies the records the table is built from
type Source interface {
	Name() string
	Records(ctx context.Context) ([]models.EnergyRecord, *LoadStats, error)
}

// LoadStats reports what a source read and what it excluded
type LoadStats struct {
	TotalRows  int
	LoadedRows int
	Dropped    map[string]int // reason -> count
}

func newLoadStats() *LoadStats {
	return &LoadStats{Dropped: make(map[string]int)}
}

// DroppedRows returns the total number of excluded rows
func (s *LoadStats) DroppedRows() int {
	n := 0
	for _, c := range s.Dropped {
		n += c
	}
	return n
}

// CSVSource reads an OWID-style energy CSV file
type CSVSource struct {
	Path string
}

func (s CSVSource) Name() string {
	return "csv:" + s.Path
}

// Records opens the file and parses it with ParseCSV
func (s CSVSource) Records(ctx context.Context) ([]models.EnergyRecord, *LoadStats, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open dataset: %w", err)
	}
	defer f.Close()

	return ParseCSV(ctx, f)
}

// RecordLister is the slice of the repository the Postgres source needs
type RecordLister interface {
	ListRecords(ctx context.Context) ([]models.EnergyRecord, error)
}

// PostgresSource reads the table previously written by the ingester
type PostgresSource struct {
	Repo RecordLister
}

func (s PostgresSource) Name() string {
	return "postgres:energy_records"
}

// Records lists all stored rows; the schema already enforces country and year
func (s PostgresSource) Records(ctx context.Context) ([]models.EnergyRecord, *LoadStats, error) {
	records, err := s.Repo.ListRecords(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list energy records: %w", err)
	}
	stats := newLoadStats()
	stats.TotalRows = len(records)
	stats.LoadedRows = len(records)
	return records, stats, nil
}

// columns maps the CSV header to the positions the loader reads
type columns struct {
	country int
	iso     int
	year    int
	metrics map[models.Metric]int
}

func resolveColumns(header []string) (*columns, error) {
	cols := &columns{country: -1, iso: -1, year: -1, metrics: make(map[models.Metric]int)}

	for i, h := range header {
		key := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		switch key {
		case "country":
			cols.country = i
		case "iso_code":
			cols.iso = i
		case "year":
			cols.year = i
		default:
			if m := models.Metric(key); m.Valid() {
				cols.metrics[m] = i
			}
		}
	}

	if cols.country < 0 {
		return nil, fmt.Errorf("dataset header has no %q column", "country")
	}
	if cols.year < 0 {
		return nil, fmt.Errorf("dataset header has no %q column", "year")
	}
	return cols, nil
}

func cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return row[idx]
}

// ParseCSV parses energy CSV data. Columns are located by header name; rows
// without a country or year are dropped and counted in the returned stats.
func ParseCSV(ctx context.Context, r io.Reader) ([]models.EnergyRecord, *LoadStats, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	cols, err := resolveColumns(header)
	if err != nil {
		return nil, nil, err
	}

	stats := newLoadStats()
	records := make([]models.EnergyRecord, 0, 1024)

	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var parseErr *csv.ParseError
			if errors.As(err, &parseErr) {
				stats.TotalRows++
				stats.Dropped["malformed_row"]++
				continue
			}
			return nil, nil, fmt.Errorf("failed to read CSV: %w", err)
		}

		stats.TotalRows++
		if stats.TotalRows%10000 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, nil, err
			}
		}

		raw := models.RawEnergyRecord{
			Country: cell(row, cols.country),
			ISOCode: cell(row, cols.iso),
			Year:    cell(row, cols.year),
			Values:  make(map[models.Metric]string, len(cols.metrics)),
		}
		for m, idx := range cols.metrics {
			raw.Values[m] = cell(row, idx)
		}

		rec, err := raw.ToRecord()
		if err != nil {
			var vErr *models.ValidationError
			if errors.As(err, &vErr) {
				stats.Dropped["invalid_"+vErr.Field]++
				continue
			}
			return nil, nil, err
		}

		records = append(records, *rec)
	}

	stats.LoadedRows = len(records)
	return records, stats, nil
}

// Load reads all records from src and freezes them into a Table
func Load(ctx context.Context, src Source, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) (*Table, error) {
	startTime := time.Now()

	logger.Info(ctx, "[DATASET_LOAD_START] Loading energy dataset", logging.Fields{
		"source": src.Name(),
		"stage":  "INITIALIZATION",
	})

	records, stats, err := src.Records(ctx)
	if err != nil {
		logger.Error(ctx, "[DATASET_LOAD_ERROR] Failed to load dataset", logging.Fields{
			"source": src.Name(),
		}, err)
		return nil, err
	}

	table := NewTable(records)
	duration := time.Since(startTime)

	metricsCollector.DatasetLoadDuration.Observe(duration.Seconds())
	metricsCollector.DatasetRowsLoaded.Set(float64(table.Len()))
	for reason, n := range stats.Dropped {
		metricsCollector.RecordRowsDropped(reason, n)
	}

	fields := logging.Fields{
		"source":       src.Name(),
		"total_rows":   stats.TotalRows,
		"loaded_rows":  stats.LoadedRows,
		"dropped_rows": stats.DroppedRows(),
		"countries":    len(table.Countries()),
		"duration_ms":  duration.Milliseconds(),
		"stage":        "COMPLETE",
	}
	if first, last, ok := table.YearRange(); ok {
		fields["first_year"] = first
		fields["last_year"] = last
	}
	if stats.DroppedRows() > 0 {
		fields["dropped_by_reason"] = stats.Dropped
	}

	logger.Info(ctx, "[DATASET_LOAD_COMPLETE] Energy dataset loaded", fields)

	return table, nil
}
