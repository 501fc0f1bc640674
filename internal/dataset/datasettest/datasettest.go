// Package datasettest builds small energy tables for tests.
package datasettest

import (
	"energy-dashboard/internal/dataset"
	"energy-dashboard/internal/models"
)

// F returns a pointer to v
func F(v float64) *float64 {
	return &v
}

// ISO returns a pointer to code
func ISO(code string) *string {
	return &code
}

// Row builds a record with a single metric set; value may be nil
func Row(country string, iso *string, year int, metric models.Metric, value *float64) models.EnergyRecord {
	rec := models.EnergyRecord{Country: country, ISOCode: iso, Year: year}
	switch metric {
	case models.CoalConsumption:
		rec.CoalConsumption = value
	case models.OilConsumption:
		rec.OilConsumption = value
	case models.GasConsumption:
		rec.GasConsumption = value
	case models.RenewablesConsumption:
		rec.RenewablesConsumption = value
	case models.NuclearConsumption:
		rec.NuclearConsumption = value
	}
	return rec
}

// Sample returns a table shaped like the OWID energy data: country rows with
// ISO codes, an aggregate without one, years before and after 1960, rows
// inside and outside the 2000–2024 window, and NULL cells.
func Sample() *dataset.Table {
	return dataset.NewTable(SampleRecords())
}

// SampleRecords returns the records behind Sample
func SampleRecords() []models.EnergyRecord {
	ind := ISO("IND")
	usa := ISO("USA")
	fra := ISO("FRA")

	return []models.EnergyRecord{
		{Country: "France", ISOCode: fra, Year: 1999, NuclearConsumption: F(100), OilConsumption: F(900)},
		{Country: "France", ISOCode: fra, Year: 2000, NuclearConsumption: F(10), OilConsumption: F(910)},
		{Country: "France", ISOCode: fra, Year: 2001, NuclearConsumption: nil, OilConsumption: F(920)},
		{Country: "France", ISOCode: fra, Year: 2002, NuclearConsumption: F(5), OilConsumption: nil},
		{Country: "France", ISOCode: fra, Year: 2025, NuclearConsumption: F(1000), OilConsumption: F(1)},

		{Country: "India", ISOCode: ind, Year: 1955, OilConsumption: F(50)},
		{Country: "India", ISOCode: ind, Year: 1960, OilConsumption: F(60), CoalConsumption: F(300)},
		{Country: "India", ISOCode: ind, Year: 1961, OilConsumption: nil, CoalConsumption: F(310)},
		{Country: "India", ISOCode: ind, Year: 2000, OilConsumption: F(1200.5), CoalConsumption: F(2000)},
		{Country: "India", ISOCode: ind, Year: 2024, OilConsumption: F(2500.25), CoalConsumption: F(5000)},

		{Country: "United States", ISOCode: usa, Year: 1959, OilConsumption: F(9000)},
		{Country: "United States", ISOCode: usa, Year: 1965, OilConsumption: F(10000)},
		{Country: "United States", ISOCode: usa, Year: 2010, OilConsumption: F(10500), NuclearConsumption: F(2200)},

		{Country: "World", ISOCode: nil, Year: 2000, OilConsumption: F(40000)},
		{Country: "World", ISOCode: nil, Year: 2001, OilConsumption: F(41000)},

		{Country: "Atlantis", ISOCode: ISO("ATL"), Year: 2005},
	}
}
