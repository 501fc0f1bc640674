package handlers

import (
	"context"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"

	"energy-dashboard/internal/dataset/datasettest"
	"energy-dashboard/internal/services"
	"energy-dashboard/internal/views"
	"energy-dashboard/pkg/logging"
	"energy-dashboard/pkg/metrics"
)

type stubHealth struct {
	err error
}

func (s stubHealth) HealthCheck(ctx context.Context) error { return s.err }

func newTestRouter(health HealthChecker) *mux.Router {
	logger := logging.NewNopLogger()
	collector := metrics.NewCollectorWithRegisterer("energy_test", prometheus.NewRegistry())
	svc := services.NewDashboardService(datasettest.Sample(), logger, collector)

	router := mux.NewRouter()
	router.Use(RequestID())
	NewDashboardHandler(svc, health, logger, collector).RegisterRoutes(router)
	NewSessionHandler(svc, logger, collector).RegisterRoutes(router)
	router.HandleFunc("/api/docs/openapi.json", OpenAPISpec).Methods("GET")
	router.HandleFunc("/api/docs", SwaggerUI).Methods("GET")
	return router
}

func serve(t *testing.T, router http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestDashboardHandler_TimeSeries(t *testing.T) {
	router := newTestRouter(nil)

	tests := []struct {
		name        string
		target      string
		wantStatus  int
		checkValues func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name:       "single country",
			target:     "/api/timeseries?country=India&metric=oil_consumption",
			wantStatus: http.StatusOK,
			checkValues: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var ts views.TimeSeries
				if err := json.Unmarshal(rec.Body.Bytes(), &ts); err != nil {
					t.Fatal(err)
				}
				if len(ts.Points) != 4 {
					t.Fatalf("points = %d, want 4", len(ts.Points))
				}
				if ts.Points[1].Year != 1961 || ts.Points[1].Value != nil {
					t.Errorf("1961 should be a gap, got %+v", ts.Points[1])
				}
			},
		},
		{
			name:       "defaults when no parameters",
			target:     "/api/timeseries",
			wantStatus: http.StatusOK,
			checkValues: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var ts views.TimeSeries
				json.Unmarshal(rec.Body.Bytes(), &ts)
				// India 1960, 1961, 2000, 2024 and United States 1965, 2010
				if len(ts.Points) != 6 || ts.Metric != "oil_consumption" {
					t.Errorf("got %d points for %s, want 6 for oil_consumption", len(ts.Points), ts.Metric)
				}
			},
		},
		{
			name:       "blank country selects nothing",
			target:     "/api/timeseries?country=",
			wantStatus: http.StatusOK,
			checkValues: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var ts views.TimeSeries
				json.Unmarshal(rec.Body.Bytes(), &ts)
				if len(ts.Points) != 0 {
					t.Errorf("points = %d, want 0", len(ts.Points))
				}
				if !strings.Contains(rec.Body.String(), `"points":[]`) {
					t.Errorf("empty series should encode as an empty array: %s", rec.Body.String())
				}
			},
		},
		{
			name:       "unknown metric",
			target:     "/api/timeseries?metric=hydro_power",
			wantStatus: http.StatusBadRequest,
			checkValues: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var resp ErrorResponse
				json.Unmarshal(rec.Body.Bytes(), &resp)
				if resp.Error != codeUnknownMetric || resp.Code != http.StatusBadRequest {
					t.Errorf("response = %+v", resp)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, router, tt.target)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			if rec.Header().Get(requestIDHeader) == "" {
				t.Error("missing request ID header")
			}
			tt.checkValues(t, rec)
		})
	}
}

func TestDashboardHandler_MapIgnoresCountries(t *testing.T) {
	router := newTestRouter(nil)

	var all, filtered views.GeoAggregate
	json.Unmarshal(serve(t, router, "/api/map?metric=nuclear_consumption").Body.Bytes(), &all)
	json.Unmarshal(serve(t, router, "/api/map?metric=nuclear_consumption&country=France").Body.Bytes(), &filtered)

	if len(all.Rows) != 5 || len(filtered.Rows) != 5 {
		t.Fatalf("rows = %d/%d, want 5", len(all.Rows), len(filtered.Rows))
	}
	for i := range all.Rows {
		if all.Rows[i].Country != filtered.Rows[i].Country || all.Rows[i].TotalConsumption != filtered.Rows[i].TotalConsumption {
			t.Errorf("row %d differs: %+v vs %+v", i, all.Rows[i], filtered.Rows[i])
		}
	}
	if all.StartYear != 2000 || all.EndYear != 2024 {
		t.Errorf("window = %d-%d", all.StartYear, all.EndYear)
	}
}

func TestDashboardHandler_Export(t *testing.T) {
	router := newTestRouter(nil)

	tests := []struct {
		name        string
		target      string
		wantStatus  int
		checkValues func(*testing.T, *httptest.ResponseRecorder)
	}{
		{
			name:       "csv attachment",
			target:     "/api/export?country=India",
			wantStatus: http.StatusOK,
			checkValues: func(t *testing.T, rec *httptest.ResponseRecorder) {
				if got := rec.Header().Get("Content-Type"); got != views.FormatCSV.ContentType() {
					t.Errorf("Content-Type = %q", got)
				}
				if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "India_oil_consumption.csv") {
					t.Errorf("Content-Disposition = %q", got)
				}
				lines := strings.Split(strings.TrimSpace(rec.Body.String()), "\n")
				// header plus the time-series rows 1960, 1961, 2000, 2024; 1955 is below the floor
				if len(lines) != 5 || lines[0] != "country,year,oil_consumption" {
					t.Fatalf("body = %q", rec.Body.String())
				}
				if strings.TrimSpace(lines[2]) != "India,1961," {
					t.Errorf("null should be an empty field, got %q", lines[2])
				}
			},
		},
		{
			name:       "xlsx attachment",
			target:     "/api/export?country=India&country=France&format=xlsx",
			wantStatus: http.StatusOK,
			checkValues: func(t *testing.T, rec *httptest.ResponseRecorder) {
				if got := rec.Header().Get("Content-Disposition"); !strings.Contains(got, "France_India_oil_consumption.xlsx") {
					t.Errorf("Content-Disposition = %q", got)
				}
				if rec.Body.Len() == 0 {
					t.Error("empty workbook")
				}
			},
		},
		{
			name:       "unsupported format",
			target:     "/api/export?format=pdf",
			wantStatus: http.StatusBadRequest,
			checkValues: func(t *testing.T, rec *httptest.ResponseRecorder) {
				var resp ErrorResponse
				json.Unmarshal(rec.Body.Bytes(), &resp)
				if resp.Error != codeUnsupportedFormat {
					t.Errorf("error = %q, want %q", resp.Error, codeUnsupportedFormat)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, router, tt.target)
			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d: %s", rec.Code, tt.wantStatus, rec.Body.String())
			}
			tt.checkValues(t, rec)
		})
	}
}

func TestDashboardHandler_Catalogs(t *testing.T) {
	router := newTestRouter(nil)

	var countries CountriesResponse
	json.Unmarshal(serve(t, router, "/api/countries").Body.Bytes(), &countries)
	if countries.Total != 5 || countries.Countries[0] != "Atlantis" {
		t.Errorf("countries = %+v", countries)
	}

	rec := serve(t, router, "/api/metrics")
	for _, key := range []string{"coal_consumption", "oil_consumption", "gas_consumption", "renewables_consumption", "nuclear_consumption"} {
		if !strings.Contains(rec.Body.String(), key) {
			t.Errorf("metrics response missing %s", key)
		}
	}
}

func TestDashboardHandler_PagesAndDocs(t *testing.T) {
	router := newTestRouter(nil)

	rec := serve(t, router, "/dashboard?country=India")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "World Energy Dashboard") {
		t.Errorf("dashboard status = %d", rec.Code)
	}

	rec = serve(t, router, "/api/docs/openapi.json")
	var doc map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &doc); err != nil {
		t.Fatalf("openapi document: %v", err)
	}
	paths, _ := doc["paths"].(map[string]interface{})
	if _, ok := paths["/api/export"]; !ok {
		t.Error("openapi document missing /api/export")
	}

	rec = serve(t, router, "/api/docs")
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("docs content type = %q", ct)
	}
	for _, want := range []string{
		"World Energy Dashboard API",
		`href="/api/docs/openapi.json"`,
		`href="/dashboard"`,
		`href="/metrics"`,
		"/ws",
	} {
		if !strings.Contains(rec.Body.String(), want) {
			t.Errorf("docs page missing %q", want)
		}
	}
}

func TestDashboardHandler_Health(t *testing.T) {
	tests := []struct {
		name       string
		health     HealthChecker
		wantStatus int
	}{
		{name: "no database", health: nil, wantStatus: http.StatusOK},
		{name: "database up", health: stubHealth{}, wantStatus: http.StatusOK},
		{name: "database down", health: stubHealth{err: errors.New("connection refused")}, wantStatus: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := serve(t, newTestRouter(tt.health), "/health")
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestRequestID_ReusesCallerHeader(t *testing.T) {
	router := newTestRouter(nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(requestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if got := rec.Header().Get(requestIDHeader); got != "abc-123" {
		t.Errorf("request ID = %q, want abc-123", got)
	}
}

func TestDecodeCountries(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []string
		wantErr bool
	}{
		{name: "scalar", raw: `"India"`, want: []string{"India"}},
		{name: "array", raw: `["India","France"]`, want: []string{"India", "France"}},
		{name: "null", raw: `null`, want: nil},
		{name: "absent", raw: ``, want: nil},
		{name: "number", raw: `42`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeCountries(json.RawMessage(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("error = %v, wantErr %v", err, tt.wantErr)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}

// wireMessage mirrors ServerMessage with the payload left raw
type wireMessage struct {
	Type     string          `json:"type"`
	Seq      uint64          `json:"seq"`
	Data     json.RawMessage `json:"data"`
	Filename string          `json:"filename"`
	Error    string          `json:"error"`
}

func readMessage(t *testing.T, conn *websocket.Conn) wireMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg wireMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return msg
}

func send(t *testing.T, conn *websocket.Conn, msg string) {
	t.Helper()
	if err := conn.WriteMessage(websocket.TextMessage, []byte(msg)); err != nil {
		t.Fatalf("write: %v", err)
	}
}

func TestSessionHandler_ReactiveFlow(t *testing.T) {
	srv := httptest.NewServer(newTestRouter(nil))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Initial render: both views at seq 1
	first, second := readMessage(t, conn), readMessage(t, conn)
	if first.Type != msgTimeSeries || second.Type != msgMap || first.Seq != 1 || second.Seq != 1 {
		t.Fatalf("initial messages = %s/%d, %s/%d", first.Type, first.Seq, second.Type, second.Seq)
	}

	// Country change redraws only the time series
	send(t, conn, `{"action":"select_countries","countries":"France"}`)
	msg := readMessage(t, conn)
	if msg.Type != msgTimeSeries || msg.Seq != 2 {
		t.Fatalf("after select_countries got %s/%d", msg.Type, msg.Seq)
	}
	var ts views.TimeSeries
	json.Unmarshal(msg.Data, &ts)
	if len(ts.Countries) != 1 || ts.Countries[0] != "France" {
		t.Errorf("time series countries = %v", ts.Countries)
	}

	// Unknown metric is rejected without touching the views
	send(t, conn, `{"action":"select_metric","metric":"hydro_power"}`)
	msg = readMessage(t, conn)
	if msg.Type != msgError || msg.Error != codeUnknownMetric {
		t.Fatalf("got %+v, want unknown_metric error", msg)
	}

	// Metric change redraws both views
	send(t, conn, `{"action":"select_metric","metric":"nuclear_consumption"}`)
	first, second = readMessage(t, conn), readMessage(t, conn)
	if first.Type != msgTimeSeries || second.Type != msgMap || first.Seq != 3 || second.Seq != 3 {
		t.Fatalf("after select_metric got %s/%d, %s/%d", first.Type, first.Seq, second.Type, second.Seq)
	}

	// Export runs only on request and reflects the current selection
	send(t, conn, `{"action":"export","format":"csv"}`)
	msg = readMessage(t, conn)
	if msg.Type != msgExport || msg.Filename != "France_nuclear_consumption.csv" || msg.Seq != 3 {
		t.Fatalf("export message = %+v", msg)
	}
	var payload []byte
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		t.Fatalf("export payload: %v", err)
	}
	if !strings.HasPrefix(string(payload), "country,year,nuclear_consumption\n") {
		t.Errorf("export payload = %q", payload)
	}

	send(t, conn, `{"action":"dance"}`)
	if msg = readMessage(t, conn); msg.Type != msgError || msg.Error != codeBadRequest {
		t.Errorf("unknown action got %+v", msg)
	}
}

func TestDashboardHandler_SendJSONEncodeFailure(t *testing.T) {
	logger := logging.NewNopLogger()
	collector := metrics.NewCollectorWithRegisterer("energy_test", prometheus.NewRegistry())
	svc := services.NewDashboardService(datasettest.Sample(), logger, collector)
	h := NewDashboardHandler(svc, nil, logger, collector)

	tests := []struct {
		name       string
		data       interface{}
		wantStatus int
	}{
		{name: "finite payload", data: map[string]float64{"total": 15}, wantStatus: http.StatusOK},
		{name: "NaN payload", data: map[string]float64{"total": math.NaN()}, wantStatus: http.StatusInternalServerError},
		{name: "infinite payload", data: map[string]float64{"total": math.Inf(1)}, wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			h.sendJSON(rec, tt.data, http.StatusOK)

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var body map[string]interface{}
			if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
				t.Errorf("body is not valid JSON: %q", rec.Body.String())
			}
		})
	}
}
