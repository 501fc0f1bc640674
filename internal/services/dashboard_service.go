package services

import (
	"context"

	"energy-dashboard/internal/dataset"
	"energy-dashboard/internal/models"
	"energy-dashboard/internal/selection"
	"energy-dashboard/internal/views"
	"energy-dashboard/pkg/logging"
	"energy-dashboard/pkg/metrics"
)

// DashboardService computes the dashboard views over the shared table
type DashboardService struct {
	table   *dataset.Table
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewDashboardService creates a new dashboard service
func NewDashboardService(table *dataset.Table, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *DashboardService {
	return &DashboardService{
		table:   table,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// Metrics returns the metric catalog
func (s *DashboardService) Metrics() []models.MetricInfo {
	return models.Metrics()
}

// Countries returns the country picker options, sorted
func (s *DashboardService) Countries() []string {
	return s.table.SortedCountries()
}

// TimeSeries computes the time-series view for sel
func (s *DashboardService) TimeSeries(ctx context.Context, sel selection.Selection) *views.TimeSeries {
	timer := s.metrics.NewTimer(s.metrics.ViewComputationDuration.WithLabelValues("timeseries"))
	ts := views.ComputeTimeSeries(s.table, sel)
	duration := timer.ObserveDuration()
	s.metrics.RecordViewComputation("timeseries", string(sel.Metric))

	s.logger.Debug(ctx, "[VIEW_TIMESERIES] Time series computed", logging.Fields{
		"countries":   sel.Countries,
		"metric":      sel.Metric,
		"points":      len(ts.Points),
		"duration_ms": duration.Milliseconds(),
	})

	return ts
}

// GeoAggregate computes the map view for metric
func (s *DashboardService) GeoAggregate(ctx context.Context, metric models.Metric) *views.GeoAggregate {
	timer := s.metrics.NewTimer(s.metrics.ViewComputationDuration.WithLabelValues("map"))
	agg := views.ComputeGeoAggregate(s.table, metric)
	duration := timer.ObserveDuration()
	s.metrics.RecordViewComputation("map", string(metric))

	s.logger.Debug(ctx, "[VIEW_MAP] Geographic aggregate computed", logging.Fields{
		"metric":      metric,
		"rows":        len(agg.Rows),
		"duration_ms": duration.Milliseconds(),
	})

	return agg
}

// Export serializes sel in the requested format
func (s *DashboardService) Export(ctx context.Context, sel selection.Selection, format views.Format) (*views.ExportArtifact, error) {
	timer := s.metrics.NewTimer(s.metrics.ViewComputationDuration.WithLabelValues("export"))
	artifact, err := views.Export(s.table, sel, format)
	duration := timer.ObserveDuration()
	if err != nil {
		s.logger.Error(ctx, "[VIEW_EXPORT_ERROR] Export failed", logging.Fields{
			"countries": sel.Countries,
			"metric":    sel.Metric,
			"format":    format,
		}, err)
		return nil, err
	}

	s.metrics.RecordViewComputation("export", string(sel.Metric))
	s.metrics.RecordExport(string(format), len(artifact.Data))

	s.logger.Info(ctx, "[VIEW_EXPORT] Export generated", logging.Fields{
		"filename":    artifact.Filename,
		"format":      format,
		"rows":        artifact.Rows,
		"bytes":       len(artifact.Data),
		"duration_ms": duration.Milliseconds(),
	})

	return artifact, nil
}
