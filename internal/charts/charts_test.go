package charts

import (
	"bytes"
	"strings"
	"testing"

	"github.com/biter777/countries"

	"energy-dashboard/internal/dataset/datasettest"
	"energy-dashboard/internal/models"
	"energy-dashboard/internal/selection"
	"energy-dashboard/internal/views"
)

func TestAlignSeries(t *testing.T) {
	ts := views.ComputeTimeSeries(datasettest.Sample(), selection.Selection{
		Countries: []string{"India", "United States"},
		Metric:    models.OilConsumption,
	})

	years, series := AlignSeries(ts)

	wantYears := []int{1960, 1961, 1965, 2000, 2010, 2024}
	if len(years) != len(wantYears) {
		t.Fatalf("years = %v, want %v", years, wantYears)
	}
	if len(series) != 2 {
		t.Fatalf("series = %d, want 2", len(series))
	}

	india := series[0]
	if india.Country != "India" || len(india.Values) != len(years) {
		t.Fatalf("series[0] = %s with %d values", india.Country, len(india.Values))
	}
	// 1961 is a NULL, 1965 and 2010 have no India record
	for _, i := range []int{1, 2, 4} {
		if india.Values[i] != nil {
			t.Errorf("India %d should be a gap, got %v", years[i], *india.Values[i])
		}
	}
	if india.Values[0] == nil || *india.Values[0] != 60 {
		t.Errorf("India 1960 = %v, want 60", india.Values[0])
	}

	us := series[1]
	if us.Values[2] == nil || *us.Values[2] != 10000 {
		t.Errorf("United States 1965 = %v, want 10000", us.Values[2])
	}
}

func TestRegionName(t *testing.T) {
	iso := func(s string) *string { return &s }

	tests := []struct {
		name     string
		iso      *string
		wantName string
		wantOK   bool
	}{
		{name: "no code", iso: nil},
		{name: "OWID pseudo-code", iso: iso("OWID_WRL")},
		{name: "unknown code", iso: iso("ATL")},
		{name: "short name", iso: iso("FRA"), wantName: countries.ByName("FRA").String(), wantOK: true},
		{name: "Russia", iso: iso("RUS"), wantName: "Russia", wantOK: true},
		{name: "DR Congo", iso: iso("COD"), wantName: "Dem. Rep. Congo", wantOK: true},
		{name: "South Korea", iso: iso("KOR"), wantName: "Korea", wantOK: true},
		{name: "Iran", iso: iso("IRN"), wantName: "Iran", wantOK: true},
		{name: "Czechia", iso: iso("CZE"), wantName: "Czech Rep.", wantOK: true},
		{name: "United States", iso: iso("USA"), wantName: "United States", wantOK: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			name, ok := RegionName(tt.iso)
			if ok != tt.wantOK {
				t.Fatalf("RegionName() ok = %v, want %v", ok, tt.wantOK)
			}
			if name != tt.wantName {
				t.Errorf("RegionName() = %q, want %q", name, tt.wantName)
			}
		})
	}
}

func TestMapPoints(t *testing.T) {
	agg := views.ComputeGeoAggregate(datasettest.Sample(), models.OilConsumption)

	data, skipped, low, high := MapPoints(agg)

	// World has no ISO code and cannot be plotted
	if skipped < 1 {
		t.Errorf("skipped = %d, want at least 1", skipped)
	}
	if len(data)+skipped != len(agg.Rows) {
		t.Errorf("plotted %d + skipped %d != %d rows", len(data), skipped, len(agg.Rows))
	}
	if low != 0 {
		t.Errorf("low = %v, want 0", low)
	}
	if high != 10500 {
		t.Errorf("high = %v, want 10500 (World is not plotted)", high)
	}
}

func TestWorldMap_ScaleCoversTotals(t *testing.T) {
	fra, ind := "FRA", "IND"

	tests := []struct {
		name     string
		rows     []views.GeoRow
		wantLow  float32
		wantHigh float32
	}{
		{
			name: "positive totals start at zero",
			rows: []views.GeoRow{
				{Country: "France", ISOCode: &fra, TotalConsumption: 15},
				{Country: "India", ISOCode: &ind, TotalConsumption: 300},
			},
			wantLow:  0,
			wantHigh: 300,
		},
		{
			name: "negative total lowers the scale",
			rows: []views.GeoRow{
				{Country: "France", ISOCode: &fra, TotalConsumption: -50},
				{Country: "India", ISOCode: &ind, TotalConsumption: 300},
			},
			wantLow:  -50,
			wantHigh: 300,
		},
		{
			name: "unplotted rows do not move the scale",
			rows: []views.GeoRow{
				{Country: "World", TotalConsumption: -1000},
				{Country: "France", ISOCode: &fra, TotalConsumption: 20},
			},
			wantLow:  0,
			wantHigh: 20,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			agg := &views.GeoAggregate{Metric: models.NuclearConsumption, Rows: tt.rows}

			m := WorldMap(agg)
			if len(m.VisualMapList) != 1 {
				t.Fatalf("visual maps = %d, want 1", len(m.VisualMapList))
			}
			vm := m.VisualMapList[0]
			if vm.Min != tt.wantLow || vm.Max != tt.wantHigh {
				t.Errorf("scale = [%v, %v], want [%v, %v]", vm.Min, vm.Max, tt.wantLow, tt.wantHigh)
			}
		})
	}
}

func TestRenderDashboard(t *testing.T) {
	table := datasettest.Sample()
	sel := selection.Selection{Countries: []string{"France"}, Metric: models.NuclearConsumption}

	var buf bytes.Buffer
	if err := RenderDashboard(&buf, views.ComputeTimeSeries(table, sel), views.ComputeGeoAggregate(table, sel.Metric)); err != nil {
		t.Fatalf("RenderDashboard() unexpected error: %v", err)
	}

	html := buf.String()
	for _, want := range []string{PageTitle, "Consumption Over Time", "Total Nuclear Consumption"} {
		if !strings.Contains(html, want) {
			t.Errorf("page is missing %q", want)
		}
	}
}
