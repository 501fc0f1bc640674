package models

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Metric identifies one energy-consumption column of the dataset
type Metric string

const (
	CoalConsumption       Metric = "coal_consumption"
	OilConsumption        Metric = "oil_consumption"
	GasConsumption        Metric = "gas_consumption"
	RenewablesConsumption Metric = "renewables_consumption"
	NuclearConsumption    Metric = "nuclear_consumption"
)

// MetricInfo pairs a metric key with its display label
type MetricInfo struct {
	Key   Metric `json:"key"`
	Label string `json:"label"`
}

// catalog is the closed set of recognised metrics, in picker order
var catalog = []MetricInfo{
	{Key: CoalConsumption, Label: "Coal"},
	{Key: OilConsumption, Label: "Oil"},
	{Key: GasConsumption, Label: "Natural Gas"},
	{Key: RenewablesConsumption, Label: "Renewables"},
	{Key: NuclearConsumption, Label: "Nuclear"},
}

// Metrics returns a copy of the metric catalog
func Metrics() []MetricInfo {
	out := make([]MetricInfo, len(catalog))
	copy(out, catalog)
	return out
}

// ParseMetric validates a metric key against the catalog
func ParseMetric(key string) (Metric, error) {
	m := Metric(key)
	if !m.Valid() {
		return "", &UnknownMetricError{Key: key}
	}
	return m, nil
}

// Valid reports whether the metric is part of the catalog
func (m Metric) Valid() bool {
	for _, info := range catalog {
		if info.Key == m {
			return true
		}
	}
	return false
}

// Label returns the human-readable name, or the raw key for unknown metrics
func (m Metric) Label() string {
	for _, info := range catalog {
		if info.Key == m {
			return info.Label
		}
	}
	return string(m)
}

func (m Metric) String() string {
	return string(m)
}

// EnergyRecord is one (country, year) row of the energy dataset.
// NULL values are represented as nil pointers.
type EnergyRecord struct {
	Country               string   `json:"country" db:"country"`
	ISOCode               *string  `json:"iso_code,omitempty" db:"iso_code"`
	Year                  int      `json:"year" db:"year"`
	CoalConsumption       *float64 `json:"coal_consumption,omitempty" db:"coal_consumption"`
	OilConsumption        *float64 `json:"oil_consumption,omitempty" db:"oil_consumption"`
	GasConsumption        *float64 `json:"gas_consumption,omitempty" db:"gas_consumption"`
	RenewablesConsumption *float64 `json:"renewables_consumption,omitempty" db:"renewables_consumption"`
	NuclearConsumption    *float64 `json:"nuclear_consumption,omitempty" db:"nuclear_consumption"`
}

// Value returns the field backing the given metric, nil when unreported or unknown
func (r *EnergyRecord) Value(m Metric) *float64 {
	switch m {
	case CoalConsumption:
		return r.CoalConsumption
	case OilConsumption:
		return r.OilConsumption
	case GasConsumption:
		return r.GasConsumption
	case RenewablesConsumption:
		return r.RenewablesConsumption
	case NuclearConsumption:
		return r.NuclearConsumption
	default:
		return nil
	}
}

// setValue assigns the field backing the given metric
func (r *EnergyRecord) setValue(m Metric, v *float64) {
	switch m {
	case CoalConsumption:
		r.CoalConsumption = v
	case OilConsumption:
		r.OilConsumption = v
	case GasConsumption:
		r.GasConsumption = v
	case RenewablesConsumption:
		r.RenewablesConsumption = v
	case NuclearConsumption:
		r.NuclearConsumption = v
	}
}

// Clone returns a deep copy that shares no pointers with r
func (r *EnergyRecord) Clone() EnergyRecord {
	out := EnergyRecord{Country: r.Country, Year: r.Year}
	if r.ISOCode != nil {
		iso := *r.ISOCode
		out.ISOCode = &iso
	}
	for _, info := range catalog {
		if v := r.Value(info.Key); v != nil {
			val := *v
			out.setValue(info.Key, &val)
		}
	}
	return out
}

// RawEnergyRecord holds the untyped cells of one dataset row
// Used by the CSV loader before validation
type RawEnergyRecord struct {
	Country string
	ISOCode string
	Year    string
	Values  map[Metric]string
}

// ToRecord validates and converts the raw cells.
// Rows without a country or a parseable year are rejected; empty,
// non-numeric and non-finite (NaN, Inf) metric cells become NULL.
func (r *RawEnergyRecord) ToRecord() (*EnergyRecord, error) {
	country := strings.TrimSpace(r.Country)
	if country == "" {
		return nil, &ValidationError{
			Field:   "country",
			Value:   r.Country,
			Message: "missing country",
		}
	}

	year, err := parseYear(r.Year)
	if err != nil {
		return nil, &ValidationError{
			Field:   "year",
			Value:   r.Year,
			Message: "missing or invalid year",
		}
	}

	rec := &EnergyRecord{
		Country: country,
		Year:    year,
	}

	if iso := strings.TrimSpace(r.ISOCode); iso != "" {
		rec.ISOCode = &iso
	}

	for m, cell := range r.Values {
		if !m.Valid() {
			continue
		}
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		// ParseFloat accepts "nan" and "inf"; those are missing values, not numbers
		if f, err := strconv.ParseFloat(cell, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			rec.setValue(m, &f)
		}
	}

	return rec, nil
}

// parseYear accepts integral years written as "1965" or "1965.0"
func parseYear(s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty year")
	}
	if y, err := strconv.Atoi(s); err == nil {
		return y, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if f != float64(int(f)) {
		return 0, fmt.Errorf("fractional year %q", s)
	}
	return int(f), nil
}

// UnknownMetricError is returned when a metric key is not in the catalog
type UnknownMetricError struct {
	Key string
}

func (e *UnknownMetricError) Error() string {
	return fmt.Sprintf("unknown metric %q", e.Key)
}

// IsTransient returns false as the catalog is fixed
func (e *UnknownMetricError) IsTransient() bool {
	return false
}

// ValidationError represents a data validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}
