package dataset

import (
	"sort"

	"energy-dashboard/internal/models"
)

// Table is the immutable, process-wide energy record table.
// It is built once by the loader and only exposes read accessors, so any
// number of goroutines may read it without locking.
type Table struct {
	records   []models.EnergyRecord
	countries []string
}

// NewTable builds a table from records. The records are deep-copied so the
// caller keeps no handle into the table.
func NewTable(records []models.EnergyRecord) *Table {
	t := &Table{
		records: make([]models.EnergyRecord, len(records)),
	}

	seen := make(map[string]bool)
	for i := range records {
		t.records[i] = records[i].Clone()
		if name := records[i].Country; !seen[name] {
			seen[name] = true
			t.countries = append(t.countries, name)
		}
	}

	return t
}

// Len returns the number of records
func (t *Table) Len() int {
	return len(t.records)
}

// Country returns the display name of record i
func (t *Table) Country(i int) string {
	return t.records[i].Country
}

// ISOCode returns the ISO code of record i; ok is false for aggregates such as "World"
func (t *Table) ISOCode(i int) (code string, ok bool) {
	if p := t.records[i].ISOCode; p != nil {
		return *p, true
	}
	return "", false
}

// Year returns the year of record i
func (t *Table) Year(i int) int {
	return t.records[i].Year
}

// Value returns metric m of record i; ok is false when the value was not reported
func (t *Table) Value(i int, m models.Metric) (v float64, ok bool) {
	if p := t.records[i].Value(m); p != nil {
		return *p, true
	}
	return 0, false
}

// Record returns a deep copy of record i
func (t *Table) Record(i int) models.EnergyRecord {
	return t.records[i].Clone()
}

// Countries returns the distinct country names in first-appearance order
func (t *Table) Countries() []string {
	out := make([]string, len(t.countries))
	copy(out, t.countries)
	return out
}

// SortedCountries returns the distinct country names sorted alphabetically
func (t *Table) SortedCountries() []string {
	out := t.Countries()
	sort.Strings(out)
	return out
}

// YearRange returns the first and last year present; ok is false for an empty table
func (t *Table) YearRange() (first, last int, ok bool) {
	if len(t.records) == 0 {
		return 0, 0, false
	}
	first, last = t.records[0].Year, t.records[0].Year
	for i := range t.records {
		y := t.records[i].Year
		if y < first {
			first = y
		}
		if y > last {
			last = y
		}
	}
	return first, last, true
}
