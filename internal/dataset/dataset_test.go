package dataset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"energy-dashboard/internal/models"
	"energy-dashboard/pkg/logging"
	"energy-dashboard/pkg/metrics"
)

const sampleCSV = `country,year,iso_code,population,coal_consumption,oil_consumption,gas_consumption,renewables_consumption,nuclear_consumption,hydro_consumption
India,1960,IND,445954582,300.5,60,,,0,12
India,1961,IND,456351883,310,,,,0,13
,1962,,,1,1,1,1,1,1
India,,IND,,1,1,1,1,1,1
World,2000,,6148898975,26000,41000,27000,2000,7000,7000
France,2001,FRA,,,920,,,4200.25,
`

func TestParseCSV(t *testing.T) {
	records, stats, err := ParseCSV(context.Background(), strings.NewReader(sampleCSV))
	if err != nil {
		t.Fatalf("ParseCSV() unexpected error: %v", err)
	}

	if len(records) != 4 {
		t.Fatalf("Expected 4 rows, got %d", len(records))
	}
	if stats.TotalRows != 6 || stats.LoadedRows != 4 {
		t.Errorf("stats = %+v, want total 6 loaded 4", stats)
	}
	if stats.Dropped["invalid_country"] != 1 || stats.Dropped["invalid_year"] != 1 {
		t.Errorf("Dropped = %v", stats.Dropped)
	}

	india := records[0]
	if india.Country != "India" || india.Year != 1960 {
		t.Errorf("Row 0 = %s/%d", india.Country, india.Year)
	}
	if india.CoalConsumption == nil || *india.CoalConsumption != 300.5 {
		t.Errorf("Row 0 coal = %v, want 300.5", india.CoalConsumption)
	}
	if india.GasConsumption != nil {
		t.Error("Row 0 gas should be NULL")
	}
	if india.NuclearConsumption == nil || *india.NuclearConsumption != 0 {
		t.Error("Row 0 nuclear should be a reported zero, not NULL")
	}

	if records[1].OilConsumption != nil {
		t.Error("Row 1 oil should be NULL")
	}

	world := records[2]
	if world.ISOCode != nil {
		t.Errorf("World should have no ISO code, got %v", *world.ISOCode)
	}

	france := records[3]
	if france.NuclearConsumption == nil || *france.NuclearConsumption != 4200.25 {
		t.Errorf("France nuclear = %v, want 4200.25", france.NuclearConsumption)
	}
}

func TestParseCSV_HeaderErrors(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "empty input", data: ""},
		{name: "no country column", data: "nation,year\nIndia,2000\n"},
		{name: "no year column", data: "country,period\nIndia,2000\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, _, err := ParseCSV(context.Background(), strings.NewReader(tt.data)); err == nil {
				t.Error("Expected error but got none")
			}
		})
	}
}

func TestParseCSV_MissingMetricColumns(t *testing.T) {
	records, _, err := ParseCSV(context.Background(), strings.NewReader("country,year\nIndia,2000\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 row, got %d", len(records))
	}
	for _, info := range models.Metrics() {
		if records[0].Value(info.Key) != nil {
			t.Errorf("%s should be NULL when its column is absent", info.Key)
		}
	}
}

func TestParseCSV_MalformedRow(t *testing.T) {
	data := "country,year,oil_consumption\nIndia,2000,1\n\"Broken,2001,2\nFrance,2002,3\n"
	_, stats, err := ParseCSV(context.Background(), strings.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stats.Dropped["malformed_row"] == 0 {
		t.Errorf("expected malformed rows to be counted, got %v", stats.Dropped)
	}
}

func TestTable_ReadOnlyAccess(t *testing.T) {
	iso := "IND"
	oil := 10.0
	src := []models.EnergyRecord{
		{Country: "India", ISOCode: &iso, Year: 2000, OilConsumption: &oil},
		{Country: "World", Year: 1990},
		{Country: "India", ISOCode: &iso, Year: 1980},
	}

	table := NewTable(src)

	// Mutating the caller's records must not reach the table
	oil = 99
	iso = "XXX"
	src[0].Country = "Changed"

	if table.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", table.Len())
	}
	if table.Country(0) != "India" {
		t.Errorf("Country(0) = %q, want India", table.Country(0))
	}
	if v, ok := table.Value(0, models.OilConsumption); !ok || v != 10 {
		t.Errorf("Value(0, oil) = %v, %v; want 10, true", v, ok)
	}
	if code, ok := table.ISOCode(0); !ok || code != "IND" {
		t.Errorf("ISOCode(0) = %q, %v; want IND, true", code, ok)
	}
	if _, ok := table.ISOCode(1); ok {
		t.Error("ISOCode(1) should be absent for World")
	}
	if _, ok := table.Value(1, models.OilConsumption); ok {
		t.Error("Value(1, oil) should be absent")
	}

	rec := table.Record(0)
	*rec.OilConsumption = -1
	if v, _ := table.Value(0, models.OilConsumption); v != 10 {
		t.Errorf("Record() leaked a mutable handle, value now %v", v)
	}

	countries := table.Countries()
	if len(countries) != 2 || countries[0] != "India" || countries[1] != "World" {
		t.Errorf("Countries() = %v", countries)
	}
	countries[0] = "Mutated"
	if table.Countries()[0] != "India" {
		t.Error("Countries() leaked the internal slice")
	}

	first, last, ok := table.YearRange()
	if !ok || first != 1980 || last != 2000 {
		t.Errorf("YearRange() = %d, %d, %v", first, last, ok)
	}
}

func TestTable_SortedCountries(t *testing.T) {
	table := NewTable([]models.EnergyRecord{
		{Country: "Zimbabwe", Year: 2000},
		{Country: "Algeria", Year: 2000},
		{Country: "India", Year: 2000},
	})

	got := table.SortedCountries()
	want := []string{"Algeria", "India", "Zimbabwe"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("SortedCountries() = %v, want %v", got, want)
		}
	}

	if _, _, ok := NewTable(nil).YearRange(); ok {
		t.Error("empty table should report no year range")
	}
}

type fakeLister struct {
	records []models.EnergyRecord
	err     error
}

func (f *fakeLister) ListRecords(ctx context.Context) ([]models.EnergyRecord, error) {
	return f.records, f.err
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "owid-energy-data.csv")
	if err := os.WriteFile(path, []byte(sampleCSV), 0o644); err != nil {
		t.Fatal(err)
	}

	collector := metrics.NewCollectorWithRegisterer("energy_test", prometheus.NewRegistry())
	table, err := Load(context.Background(), CSVSource{Path: path}, logging.NewNopLogger(), collector)
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}

	if table.Len() != 4 {
		t.Errorf("Len() = %d, want 4", table.Len())
	}
	if got := testutil.ToFloat64(collector.DatasetRowsLoaded); got != 4 {
		t.Errorf("rows loaded gauge = %v, want 4", got)
	}
	if got := testutil.ToFloat64(collector.DatasetRowsDropped.WithLabelValues("invalid_year")); got != 1 {
		t.Errorf("dropped invalid_year = %v, want 1", got)
	}
}

func TestLoad_Errors(t *testing.T) {
	collector := metrics.NewCollectorWithRegisterer("energy_test", prometheus.NewRegistry())

	_, err := Load(context.Background(), CSVSource{Path: filepath.Join(t.TempDir(), "missing.csv")}, logging.NewNopLogger(), collector)
	if err == nil {
		t.Error("expected error for missing file")
	}

	boom := errors.New("connection refused")
	_, err = Load(context.Background(), PostgresSource{Repo: &fakeLister{err: boom}}, logging.NewNopLogger(), collector)
	if !errors.Is(err, boom) {
		t.Errorf("expected wrapped repository error, got %v", err)
	}
}

func TestPostgresSource(t *testing.T) {
	lister := &fakeLister{records: []models.EnergyRecord{
		{Country: "India", Year: 2000},
		{Country: "France", Year: 2000},
	}}

	records, stats, err := PostgresSource{Repo: lister}.Records(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(records) != 2 || stats.LoadedRows != 2 || stats.DroppedRows() != 0 {
		t.Errorf("records = %d, stats = %+v", len(records), stats)
	}
}
