// Package coordinator routes selection changes to the views that depend on
// them. Each session owns one Coordinator.
package coordinator

import (
	"context"
	"sync"

	"energy-dashboard/internal/models"
	"energy-dashboard/internal/selection"
	"energy-dashboard/internal/views"
	"energy-dashboard/pkg/logging"
	"energy-dashboard/pkg/metrics"
)

// View names a derived artifact
type View string

const (
	ViewTimeSeries View = "timeseries"
	ViewMap        View = "map"
	ViewExport     View = "export"
)

// Dependencies declares the selection inputs each view reads. A reactive
// view is recomputed when, and only when, one of these inputs changed since
// its last computation. The map must never depend on countries.
var Dependencies = map[View]selection.Input{
	ViewTimeSeries: selection.Countries | selection.Metric,
	ViewMap:        selection.Metric,
	ViewExport:     selection.Countries | selection.Metric,
}

// reactive lists the views recomputed on selection changes, in emit order.
// The export is only computed on an explicit request.
var reactive = []View{ViewTimeSeries, ViewMap}

// ViewComputer produces the artifacts; implemented by services.DashboardService
type ViewComputer interface {
	TimeSeries(ctx context.Context, sel selection.Selection) *views.TimeSeries
	GeoAggregate(ctx context.Context, metric models.Metric) *views.GeoAggregate
	Export(ctx context.Context, sel selection.Selection, format views.Format) (*views.ExportArtifact, error)
}

// Update carries the views recomputed for one selection event. A nil field
// means that view's inputs did not change and the previous artifact stands.
type Update struct {
	Seq        uint64              `json:"seq"`
	Selection  selection.Selection `json:"selection"`
	TimeSeries *views.TimeSeries   `json:"timeseries,omitempty"`
	Map        *views.GeoAggregate `json:"map,omitempty"`
}

// Empty reports whether no view was recomputed
func (u Update) Empty() bool {
	return u.TimeSeries == nil && u.Map == nil
}

// ExportResult is an export artifact stamped with the selection sequence it was built from
type ExportResult struct {
	Seq      uint64
	Artifact *views.ExportArtifact
}

// Coordinator holds one session's selection and the revision each view was
// last computed at. Methods are safe for concurrent use.
type Coordinator struct {
	mu       sync.Mutex
	state    *selection.State
	views    ViewComputer
	logger   *logging.StructuredLogger
	metrics  *metrics.Collector
	computed map[View]selection.Revision
	seq      uint64
}

// New creates a coordinator with the default selection
func New(computer ViewComputer, logger *logging.StructuredLogger, metricsCollector *metrics.Collector) *Coordinator {
	return &Coordinator{
		state:    selection.New(),
		views:    computer,
		logger:   logger,
		metrics:  metricsCollector,
		computed: make(map[View]selection.Revision),
	}
}

// Selection returns the current selection
func (c *Coordinator) Selection() selection.Selection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.Snapshot()
}

// Refresh recomputes every reactive view regardless of revisions. Sessions
// call it on connect and when the client asks to redraw.
func (c *Coordinator) Refresh(ctx context.Context) Update {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, v := range reactive {
		delete(c.computed, v)
	}
	return c.recompute(ctx)
}

// SelectCountries replaces the country selection and recomputes the views
// that depend on it
func (c *Coordinator) SelectCountries(ctx context.Context, countries ...string) Update {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state.SetCountries(countries...)
	return c.recompute(ctx)
}

// SelectMetric changes the metric. An unknown key returns
// *models.UnknownMetricError and leaves the selection and views untouched.
func (c *Coordinator) SelectMetric(ctx context.Context, key string) (Update, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.state.SetMetric(key); err != nil {
		c.logger.Warn(ctx, "[SELECTION_REJECTED] Unknown metric", logging.Fields{
			"metric": key,
		})
		return Update{}, err
	}
	return c.recompute(ctx), nil
}

// Export builds the export artifact for the current selection. The
// selection is captured under the lock; serialization runs outside it so a
// large export does not hold up selection changes.
func (c *Coordinator) Export(ctx context.Context, format views.Format) (*ExportResult, error) {
	c.mu.Lock()
	sel := c.state.Snapshot()
	seq := c.seq
	c.mu.Unlock()

	artifact, err := c.views.Export(ctx, sel, format)
	if err != nil {
		return nil, err
	}
	return &ExportResult{Seq: seq, Artifact: artifact}, nil
}

// Stale reports whether view must be recomputed for the current selection
func (c *Coordinator) Stale(v View) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stale(v)
}

func (c *Coordinator) stale(v View) bool {
	last, ok := c.computed[v]
	if !ok {
		return true
	}
	current := c.state.Revision()
	deps := Dependencies[v]
	for _, in := range []selection.Input{selection.Countries, selection.Metric} {
		if deps&in != 0 && current.Of(in) != last.Of(in) {
			return true
		}
	}
	return false
}

// recompute must be called with mu held
func (c *Coordinator) recompute(ctx context.Context) Update {
	c.seq++
	sel := c.state.Snapshot()
	rev := c.state.Revision()
	update := Update{Seq: c.seq, Selection: sel}

	for _, v := range reactive {
		if !c.stale(v) {
			c.metrics.RecordViewSkip(string(v))
			continue
		}

		switch v {
		case ViewTimeSeries:
			update.TimeSeries = c.views.TimeSeries(ctx, sel)
		case ViewMap:
			update.Map = c.views.GeoAggregate(ctx, sel.Metric)
		}
		c.computed[v] = rev
	}

	c.logger.Debug(ctx, "[SELECTION_APPLIED] Selection routed to views", logging.Fields{
		"seq":                   update.Seq,
		"countries":             sel.Countries,
		"metric":                sel.Metric,
		"timeseries_recomputed": update.TimeSeries != nil,
		"map_recomputed":        update.Map != nil,
	})

	return update
}
