// Package charts renders the dashboard views with go-echarts.
package charts

import (
	"io"
	"math"
	"strconv"

	"github.com/biter777/countries"
	echarts "github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"energy-dashboard/internal/views"
)

const (
	PageTitle   = "World Energy Dashboard"
	chartWidth  = "1100px"
	chartHeight = "520px"
)

// viridis is the continuous color scale of the choropleth, low to high
var viridis = []string{
	"#440154", "#482878", "#3e4989", "#31688e", "#26828e",
	"#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725",
}

// LineSeries is one country's values aligned to the shared year axis.
// Years the country has no record for, and NULL values, are nil.
type LineSeries struct {
	Country string
	Values  []*float64
}

// AlignSeries lays the time-series points out on a single year axis
func AlignSeries(ts *views.TimeSeries) (years []int, series []LineSeries) {
	years = ts.Years()
	index := make(map[int]int, len(years))
	for i, y := range years {
		index[y] = i
	}

	names, byCountry := ts.Series()
	for _, c := range names {
		values := make([]*float64, len(years))
		for _, p := range byCountry[c] {
			values[index[p.Year]] = p.Value
		}
		series = append(series, LineSeries{Country: c, Values: values})
	}
	return years, series
}

// LineChart builds the consumption-over-time chart, one line per country.
// Gaps are drawn as breaks, never interpolated.
func LineChart(ts *views.TimeSeries) *echarts.Line {
	line := echarts.NewLine()
	line.SetGlobalOptions(
		echarts.WithInitializationOpts(opts.Initialization{
			Width:  chartWidth,
			Height: chartHeight,
		}),
		echarts.WithTitleOpts(opts.Title{
			Title:    ts.Title,
			Subtitle: ts.Label,
		}),
		echarts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "axis",
		}),
		echarts.WithLegendOpts(opts.Legend{
			Show:  opts.Bool(true),
			Right: "10",
		}),
		echarts.WithXAxisOpts(opts.XAxis{
			Name:         ts.XAxisLabel,
			NameLocation: "center",
			NameGap:      30,
		}),
		echarts.WithYAxisOpts(opts.YAxis{
			Name:         ts.YAxisLabel,
			NameLocation: "center",
			NameGap:      60,
		}),
	)

	years, series := AlignSeries(ts)
	labels := make([]string, len(years))
	for i, y := range years {
		labels[i] = strconv.Itoa(y)
	}
	line.SetXAxis(labels)

	for _, s := range series {
		data := make([]opts.LineData, len(s.Values))
		for i, v := range s.Values {
			if v == nil {
				data[i] = opts.LineData{Value: nil}
				continue
			}
			data[i] = opts.LineData{Value: *v}
		}
		line.AddSeries(s.Country, data)
	}

	line.SetSeriesOptions(
		echarts.WithLineChartOpts(opts.LineChart{ConnectNulls: opts.Bool(false)}),
	)

	return line
}

// worldNames holds the codes whose region name in the echarts world map
// differs from the ISO short name
var worldNames = map[string]string{
	"BHS": "Bahamas",
	"BIH": "Bosnia and Herz.",
	"BOL": "Bolivia",
	"BRN": "Brunei",
	"CAF": "Central African Rep.",
	"CIV": "Côte d'Ivoire",
	"COD": "Dem. Rep. Congo",
	"COG": "Congo",
	"CZE": "Czech Rep.",
	"DOM": "Dominican Rep.",
	"ESH": "W. Sahara",
	"FLK": "Falkland Is.",
	"GBR": "United Kingdom",
	"GMB": "Gambia",
	"GNQ": "Eq. Guinea",
	"IRN": "Iran",
	"KOR": "Korea",
	"LAO": "Lao PDR",
	"MDA": "Moldova",
	"MKD": "Macedonia",
	"PRK": "Dem. Rep. Korea",
	"PSE": "Palestine",
	"RUS": "Russia",
	"SLB": "Solomon Is.",
	"SSD": "S. Sudan",
	"SWZ": "Swaziland",
	"SYR": "Syria",
	"TWN": "Taiwan",
	"TZA": "Tanzania",
	"USA": "United States",
	"VEN": "Venezuela",
	"VNM": "Vietnam",
}

// RegionName resolves an ISO 3166 alpha-3 code to the region name used by
// the world map. Aggregates without a code and OWID pseudo-codes such as
// OWID_WRL are not regions.
func RegionName(iso *string) (string, bool) {
	if iso == nil || len(*iso) != 3 {
		return "", false
	}
	code := countries.ByName(*iso)
	if code == countries.Unknown {
		return "", false
	}
	if name, ok := worldNames[code.Alpha3()]; ok {
		return name, true
	}
	return code.String(), true
}

// MapPoints converts the aggregate into map data. Rows that cannot be
// placed on the map are counted in skipped. low and high bound the plotted
// totals and always include zero.
func MapPoints(agg *views.GeoAggregate) (data []opts.MapData, skipped int, low, high float64) {
	for _, row := range agg.Rows {
		name, ok := RegionName(row.ISOCode)
		if !ok {
			skipped++
			continue
		}
		low = math.Min(low, row.TotalConsumption)
		high = math.Max(high, row.TotalConsumption)
		data = append(data, opts.MapData{Name: name, Value: row.TotalConsumption})
	}
	return data, skipped, low, high
}

// WorldMap builds the choropleth of windowed totals
func WorldMap(agg *views.GeoAggregate) *echarts.Map {
	data, _, low, high := MapPoints(agg)

	m := echarts.NewMap()
	m.RegisterMapType("world")
	m.SetGlobalOptions(
		echarts.WithInitializationOpts(opts.Initialization{
			Width:  chartWidth,
			Height: chartHeight,
		}),
		echarts.WithTitleOpts(opts.Title{
			Title: agg.Title,
		}),
		echarts.WithTooltipOpts(opts.Tooltip{
			Show:    opts.Bool(true),
			Trigger: "item",
		}),
		echarts.WithVisualMapOpts(opts.VisualMap{
			Calculable: opts.Bool(true),
			Min:        float32(low),
			Max:        float32(high),
			InRange: &opts.VisualMapInRange{
				Color: viridis,
			},
		}),
	)
	m.AddSeries(agg.Label, data)

	return m
}

// RenderDashboard writes the full HTML page with both charts
func RenderDashboard(w io.Writer, ts *views.TimeSeries, agg *views.GeoAggregate) error {
	page := components.NewPage()
	page.PageTitle = PageTitle
	page.AddCharts(
		LineChart(ts),
		WorldMap(agg),
	)
	return page.Render(w)
}
