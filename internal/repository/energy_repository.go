package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"energy-dashboard/internal/models"
	"energy-dashboard/pkg/database"
	"energy-dashboard/pkg/logging"
	"energy-dashboard/pkg/metrics"
)

// EnergyRepository provides data access for the stored energy table
type EnergyRepository interface {
	CreateRecordsBatch(ctx context.Context, records []*models.EnergyRecord) error
	ListRecords(ctx context.Context) ([]models.EnergyRecord, error)
	GetRecord(ctx context.Context, country string, year int) (*models.EnergyRecord, error)
	CountRecords(ctx context.Context) (int, error)
	TruncateRecords(ctx context.Context) error

	HealthCheck(ctx context.Context) error
}

const recordColumns = `country, iso_code, year,
		       coal_consumption, oil_consumption, gas_consumption,
		       renewables_consumption, nuclear_consumption`

// energyRepository implements EnergyRepository
type energyRepository struct {
	db      *database.PostgresDB
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewEnergyRepository creates a new energy repository
func NewEnergyRepository(db *database.PostgresDB, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) EnergyRepository {
	return &energyRepository{
		db:      db,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// CreateRecordsBatch upserts records keyed by (country, year) in a single transaction
func (r *energyRepository) CreateRecordsBatch(ctx context.Context, records []*models.EnergyRecord) error {
	if len(records) == 0 {
		return nil
	}

	timer := time.Now()
	defer func() {
		duration := time.Since(timer)
		r.metrics.IngestionBatchSize.Observe(float64(len(records)))
		r.logger.Debug(ctx, "[REPO_BATCH_INSERT] Batch insert completed", logging.Fields{
			"count":       len(records),
			"duration_ms": duration.Milliseconds(),
		})
	}()

	tx, err := r.db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO energy_records (
			country, iso_code, year,
			coal_consumption, oil_consumption, gas_consumption,
			renewables_consumption, nuclear_consumption
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (country, year) DO UPDATE SET
			iso_code = EXCLUDED.iso_code,
			coal_consumption = EXCLUDED.coal_consumption,
			oil_consumption = EXCLUDED.oil_consumption,
			gas_consumption = EXCLUDED.gas_consumption,
			renewables_consumption = EXCLUDED.renewables_consumption,
			nuclear_consumption = EXCLUDED.nuclear_consumption
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, rec := range records {
		_, err := stmt.ExecContext(ctx,
			rec.Country,
			rec.ISOCode,
			rec.Year,
			rec.CoalConsumption,
			rec.OilConsumption,
			rec.GasConsumption,
			rec.RenewablesConsumption,
			rec.NuclearConsumption,
		)
		if err != nil {
			return fmt.Errorf("failed to insert record %s/%d: %w", rec.Country, rec.Year, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	r.metrics.IngestionRecordsTotal.Add(float64(len(records)))

	return nil
}

// ListRecords returns every stored record in ingestion order
func (r *energyRepository) ListRecords(ctx context.Context) ([]models.EnergyRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM energy_records
		ORDER BY id
	`

	var records []models.EnergyRecord
	if err := r.db.SelectContext(ctx, "list_records", &records, query); err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}

	return records, nil
}

// GetRecord retrieves the record of one country and year
func (r *energyRepository) GetRecord(ctx context.Context, country string, year int) (*models.EnergyRecord, error) {
	query := `
		SELECT ` + recordColumns + `
		FROM energy_records
		WHERE country = $1 AND year = $2
	`

	var rec models.EnergyRecord
	err := r.db.GetContext(ctx, "get_record", &rec, query, country, year)

	if err == sql.ErrNoRows {
		return nil, &NotFoundError{
			Resource: "energy_record",
			ID:       fmt.Sprintf("%s:%d", country, year),
		}
	}

	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	return &rec, nil
}

// CountRecords returns the number of stored records
func (r *energyRepository) CountRecords(ctx context.Context) (int, error) {
	var count int
	if err := r.db.GetContext(ctx, "count_records", &count, `SELECT COUNT(*) FROM energy_records`); err != nil {
		return 0, fmt.Errorf("failed to count records: %w", err)
	}
	return count, nil
}

// TruncateRecords removes every stored record before a full reload
func (r *energyRepository) TruncateRecords(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, "truncate_records", `TRUNCATE TABLE energy_records RESTART IDENTITY`); err != nil {
		return fmt.Errorf("failed to truncate records: %w", err)
	}

	r.logger.Info(ctx, "[REPO_TRUNCATE] Energy records truncated", logging.Fields{})

	return nil
}

// HealthCheck performs a repository health check
func (r *energyRepository) HealthCheck(ctx context.Context) error {
	return r.db.HealthCheck(ctx)
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) IsTransient() bool {
	return false
}
