package views

import (
	"fmt"
	"sort"

	"energy-dashboard/internal/dataset"
	"energy-dashboard/internal/models"
)

// Inclusive year window of the geographic aggregate
const (
	GeoWindowStart = 2000
	GeoWindowEnd   = 2024
)

// GeoRow is the windowed total of one (country, ISO code) group.
// ISOCode is nil for aggregates such as "World"; such rows are kept here but
// cannot be placed on the map.
type GeoRow struct {
	Country          string  `json:"country"`
	ISOCode          *string `json:"iso_code"`
	TotalConsumption float64 `json:"total_consumption"`
}

// GeoAggregate is the choropleth dataset for one metric
type GeoAggregate struct {
	Metric    models.Metric `json:"metric"`
	Label     string        `json:"label"`
	Title     string        `json:"title"`
	StartYear int           `json:"start_year"`
	EndYear   int           `json:"end_year"`
	Rows      []GeoRow      `json:"rows"`
}

// GeoTitle formats the map title for a metric
func GeoTitle(m models.Metric) string {
	return fmt.Sprintf("Total %s Consumption (%d–%d)", m.Label(), GeoWindowStart, GeoWindowEnd)
}

type geoKey struct {
	country string
	iso     string
	hasISO  bool
}

// ComputeGeoAggregate sums metric over 2000–2024 for every (country, ISO code)
// pair in the table. It does not look at the country selection. NULL values
// contribute nothing to the sum and a group with no reported value totals 0.
// Rows are ordered by country, then ISO code.
func ComputeGeoAggregate(table *dataset.Table, metric models.Metric) *GeoAggregate {
	totals := make(map[geoKey]float64)
	var keys []geoKey

	for i := 0; i < table.Len(); i++ {
		year := table.Year(i)
		if year < GeoWindowStart || year > GeoWindowEnd {
			continue
		}

		k := geoKey{country: table.Country(i)}
		k.iso, k.hasISO = table.ISOCode(i)

		if _, ok := totals[k]; !ok {
			totals[k] = 0
			keys = append(keys, k)
		}
		if v, ok := table.Value(i, metric); ok {
			totals[k] += v
		}
	}

	sort.Slice(keys, func(a, b int) bool {
		if keys[a].country != keys[b].country {
			return keys[a].country < keys[b].country
		}
		if keys[a].hasISO != keys[b].hasISO {
			return keys[a].hasISO
		}
		return keys[a].iso < keys[b].iso
	})

	agg := &GeoAggregate{
		Metric:    metric,
		Label:     metric.Label(),
		Title:     GeoTitle(metric),
		StartYear: GeoWindowStart,
		EndYear:   GeoWindowEnd,
		Rows:      make([]GeoRow, 0, len(keys)),
	}
	for _, k := range keys {
		row := GeoRow{Country: k.country, TotalConsumption: totals[k]}
		if k.hasISO {
			iso := k.iso
			row.ISOCode = &iso
		}
		agg.Rows = append(agg.Rows, row)
	}

	return agg
}

// Row returns the aggregate row for country, if present
func (g *GeoAggregate) Row(country string) (GeoRow, bool) {
	for _, r := range g.Rows {
		if r.Country == country {
			return r, true
		}
	}
	return GeoRow{}, false
}
