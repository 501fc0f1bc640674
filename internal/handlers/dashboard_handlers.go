package handlers

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"

	"energy-dashboard/internal/charts"
	"energy-dashboard/internal/models"
	"energy-dashboard/internal/selection"
	"energy-dashboard/internal/services"
	"energy-dashboard/internal/views"
	"energy-dashboard/pkg/logging"
	"energy-dashboard/pkg/metrics"
)

// Error codes returned in ErrorResponse.Error
const (
	codeUnknownMetric     = "unknown_metric"
	codeUnsupportedFormat = "unsupported_format"
	codeBadRequest        = "bad_request"
	codeInternal          = "internal_error"
	codeUnavailable       = "unavailable"
)

// HealthChecker reports whether a backing store is reachable
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// DashboardHandler handles the dashboard REST endpoints
type DashboardHandler struct {
	service *services.DashboardService
	health  HealthChecker
	logger  *logging.StructuredLogger
	metrics *metrics.Collector
}

// NewDashboardHandler creates a new dashboard handler. health may be nil
// when the table was loaded from a file and no database is in use.
func NewDashboardHandler(
	service *services.DashboardService,
	health HealthChecker,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *DashboardHandler {
	return &DashboardHandler{
		service: service,
		health:  health,
		logger:  logger,
		metrics: metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

// CountriesResponse lists the country picker options
type CountriesResponse struct {
	Countries []string `json:"countries"`
	Total     int      `json:"total"`
}

// selectionFromQuery builds a selection from the request. An absent
// country parameter keeps the default countries; a present but blank one
// selects nothing. An absent metric keeps the default.
func selectionFromQuery(r *http.Request) (selection.Selection, error) {
	state := selection.New()
	q := r.URL.Query()

	if countries, ok := q["country"]; ok {
		state.SetCountries(countries...)
	}
	if q.Has("metric") {
		if _, err := state.SetMetric(q.Get("metric")); err != nil {
			return selection.Selection{}, err
		}
	}

	return state.Snapshot(), nil
}

// GetMetrics handles GET /api/metrics
func (h *DashboardHandler) GetMetrics(w http.ResponseWriter, r *http.Request) {
	defer h.observe("/api/metrics", time.Now())

	h.metrics.RecordAPIRequest("/api/metrics", "GET", "200")
	h.sendJSON(w, h.service.Metrics(), http.StatusOK)
}

// GetCountries handles GET /api/countries
func (h *DashboardHandler) GetCountries(w http.ResponseWriter, r *http.Request) {
	defer h.observe("/api/countries", time.Now())

	countries := h.service.Countries()

	h.metrics.RecordAPIRequest("/api/countries", "GET", "200")
	h.sendJSON(w, CountriesResponse{Countries: countries, Total: len(countries)}, http.StatusOK)
}

// GetTimeSeries handles GET /api/timeseries
func (h *DashboardHandler) GetTimeSeries(w http.ResponseWriter, r *http.Request) {
	defer h.observe("/api/timeseries", time.Now())

	sel, err := selectionFromQuery(r)
	if err != nil {
		h.sendDomainError(w, r, "/api/timeseries", err)
		return
	}

	ts := h.service.TimeSeries(r.Context(), sel)

	h.metrics.RecordAPIRequest("/api/timeseries", "GET", "200")
	h.sendJSON(w, ts, http.StatusOK)
}

// GetMap handles GET /api/map. Country parameters are ignored.
func (h *DashboardHandler) GetMap(w http.ResponseWriter, r *http.Request) {
	defer h.observe("/api/map", time.Now())

	sel, err := selectionFromQuery(r)
	if err != nil {
		h.sendDomainError(w, r, "/api/map", err)
		return
	}

	agg := h.service.GeoAggregate(r.Context(), sel.Metric)

	h.metrics.RecordAPIRequest("/api/map", "GET", "200")
	h.sendJSON(w, agg, http.StatusOK)
}

// GetExport handles GET /api/export and streams the file as an attachment
func (h *DashboardHandler) GetExport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observe("/api/export", time.Now())

	sel, err := selectionFromQuery(r)
	if err != nil {
		h.sendDomainError(w, r, "/api/export", err)
		return
	}

	format, err := views.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		h.sendDomainError(w, r, "/api/export", err)
		return
	}

	artifact, err := h.service.Export(ctx, sel, format)
	if err != nil {
		h.sendDomainError(w, r, "/api/export", err)
		return
	}

	w.Header().Set("Content-Type", artifact.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": artifact.Filename}))
	w.Header().Set("Content-Length", strconv.Itoa(len(artifact.Data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(artifact.Data); err != nil {
		h.logger.Warn(ctx, "[API_EXPORT_WRITE_ERROR] Client went away during export", logging.Fields{
			"filename": artifact.Filename,
			"error":    err.Error(),
		})
	}

	h.metrics.RecordAPIRequest("/api/export", "GET", "200")
}

// GetDashboard handles GET /dashboard and renders both charts as HTML
func (h *DashboardHandler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	defer h.observe("/dashboard", time.Now())

	sel, err := selectionFromQuery(r)
	if err != nil {
		h.sendDomainError(w, r, "/dashboard", err)
		return
	}

	var buf bytes.Buffer
	ts := h.service.TimeSeries(ctx, sel)
	agg := h.service.GeoAggregate(ctx, sel.Metric)
	if err := charts.RenderDashboard(&buf, ts, agg); err != nil {
		h.logger.Error(ctx, "[API_DASHBOARD_ERROR] Failed to render dashboard", logging.Fields{
			"countries": sel.Countries,
			"metric":    sel.Metric,
		}, err)
		h.metrics.RecordAPIError(codeInternal, "/dashboard")
		h.sendError(w, r, codeInternal, "failed to render dashboard", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())

	h.metrics.RecordAPIRequest("/dashboard", "GET", "200")
}

// HealthCheck handles GET /health
func (h *DashboardHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if h.health != nil {
		if err := h.health.HealthCheck(ctx); err != nil {
			h.logger.Warn(ctx, "[HEALTH_CHECK_FAILED] Backing store unreachable", logging.Fields{
				"error": err.Error(),
			})
			h.sendError(w, r, codeUnavailable, err.Error(), http.StatusServiceUnavailable)
			return
		}
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{})
	h.sendJSON(w, status, http.StatusOK)
}

// observe records request latency; deferred by each handler
func (h *DashboardHandler) observe(endpoint string, start time.Time) {
	h.metrics.APIRequestDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// sendJSON sends a JSON response
func (h *DashboardHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	body, err := json.Marshal(data)
	if err != nil {
		h.logger.Error(context.Background(), "[API_ENCODE_ERROR] Failed to encode response", logging.Fields{
			"status": statusCode,
		}, err)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		fmt.Fprintf(w, `{"error":%q,"message":"failed to encode response","code":%d}`+"\n", codeInternal, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	w.Write(append(body, '\n'))
}

// sendError sends an error response
func (h *DashboardHandler) sendError(w http.ResponseWriter, r *http.Request, code, message string, statusCode int) {
	h.metrics.RecordAPIRequest(r.URL.Path, r.Method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:   code,
		Message: message,
		Code:    statusCode,
	}

	h.sendJSON(w, response, statusCode)
}

// sendDomainError maps typed errors to client errors and everything else to a 500
func (h *DashboardHandler) sendDomainError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	code, status := classifyError(err)
	if status == http.StatusInternalServerError {
		h.logger.Error(r.Context(), "[API_REQUEST_ERROR] Request failed", logging.Fields{
			"endpoint": endpoint,
		}, err)
		h.metrics.RecordAPIError(code, endpoint)
		h.sendError(w, r, code, "failed to process request", status)
		return
	}

	h.metrics.RecordAPIError(code, endpoint)
	h.sendError(w, r, code, err.Error(), status)
}

// classifyError returns the error code and HTTP status for err
func classifyError(err error) (string, int) {
	var unknownMetric *models.UnknownMetricError
	var unsupported *views.UnsupportedFormatError
	var validation *models.ValidationError

	switch {
	case errors.As(err, &unknownMetric):
		return codeUnknownMetric, http.StatusBadRequest
	case errors.As(err, &unsupported):
		return codeUnsupportedFormat, http.StatusBadRequest
	case errors.As(err, &validation):
		return codeBadRequest, http.StatusBadRequest
	default:
		return codeInternal, http.StatusInternalServerError
	}
}

// RegisterRoutes registers all dashboard routes
func (h *DashboardHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/metrics", h.GetMetrics).Methods("GET")
	router.HandleFunc("/api/countries", h.GetCountries).Methods("GET")
	router.HandleFunc("/api/timeseries", h.GetTimeSeries).Methods("GET")
	router.HandleFunc("/api/map", h.GetMap).Methods("GET")
	router.HandleFunc("/api/export", h.GetExport).Methods("GET")
	router.HandleFunc("/dashboard", h.GetDashboard).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
}
