// Package views derives the dashboard artifacts from the energy table and a
// selection. Every function here is pure: it reads the shared table, never
// writes to it, and may be called concurrently from any number of sessions.
package views

import (
	"sort"

	"energy-dashboard/internal/dataset"
	"energy-dashboard/internal/models"
	"energy-dashboard/internal/selection"
)

const (
	// TimeSeriesFloorYear is the earliest year shown in the time series and export
	TimeSeriesFloorYear = 1960

	TimeSeriesTitle      = "Consumption Over Time"
	TimeSeriesXAxisLabel = "Year"
	TimeSeriesYAxisLabel = "Energy (TWh)"
)

// Point is one (country, year) observation. A nil Value is a gap in the series.
type Point struct {
	Country string   `json:"country"`
	Year    int      `json:"year"`
	Value   *float64 `json:"value"`
}

// TimeSeries is the per-country history of the selected metric
type TimeSeries struct {
	Metric     models.Metric `json:"metric"`
	Label      string        `json:"label"`
	Title      string        `json:"title"`
	XAxisLabel string        `json:"x_axis_label"`
	YAxisLabel string        `json:"y_axis_label"`
	Countries  []string      `json:"countries"`
	Points     []Point       `json:"points"`
}

// Series groups the points by country, in the order countries first appear
// in Points. Used by the chart renderer to draw one line per country.
func (ts *TimeSeries) Series() (countries []string, byCountry map[string][]Point) {
	byCountry = make(map[string][]Point)
	for _, p := range ts.Points {
		if _, ok := byCountry[p.Country]; !ok {
			countries = append(countries, p.Country)
		}
		byCountry[p.Country] = append(byCountry[p.Country], p)
	}
	return countries, byCountry
}

// Years returns the distinct years present in Points, ascending
func (ts *TimeSeries) Years() []int {
	seen := make(map[int]bool)
	var years []int
	for _, p := range ts.Points {
		if !seen[p.Year] {
			seen[p.Year] = true
			years = append(years, p.Year)
		}
	}
	sort.Ints(years)
	return years
}

// ComputeTimeSeries selects the records of the selected countries from 1960
// onwards and projects the selected metric. NULL values are kept as gaps.
// An empty country selection yields an empty series.
func ComputeTimeSeries(table *dataset.Table, sel selection.Selection) *TimeSeries {
	ts := &TimeSeries{
		Metric:     sel.Metric,
		Label:      sel.Metric.Label(),
		Title:      TimeSeriesTitle,
		XAxisLabel: TimeSeriesXAxisLabel,
		YAxisLabel: TimeSeriesYAxisLabel,
		Countries:  append([]string{}, sel.Countries...),
	}

	rows := selectRows(table, sel)
	ts.Points = make([]Point, 0, len(rows))
	for _, i := range rows {
		p := Point{Country: table.Country(i), Year: table.Year(i)}
		if v, ok := table.Value(i, sel.Metric); ok {
			p.Value = &v
		}
		ts.Points = append(ts.Points, p)
	}

	return ts
}

// selectRows returns the indices of the records in the selected countries
// with year >= TimeSeriesFloorYear, ordered by year ascending. Records of the
// same year keep their table order. The time series and the export both read
// through this predicate so they always agree on the rows.
func selectRows(table *dataset.Table, sel selection.Selection) []int {
	if len(sel.Countries) == 0 {
		return nil
	}

	wanted := sel.CountrySet()
	var rows []int
	for i := 0; i < table.Len(); i++ {
		if table.Year(i) < TimeSeriesFloorYear {
			continue
		}
		if _, ok := wanted[table.Country(i)]; !ok {
			continue
		}
		rows = append(rows, i)
	}

	sort.SliceStable(rows, func(a, b int) bool {
		return table.Year(rows[a]) < table.Year(rows[b])
	})
	return rows
}
