// Package selection holds the user-controlled inputs of the dashboard.
package selection

import (
	"strings"

	"energy-dashboard/internal/models"
)

// Defaults applied when a session starts
var (
	DefaultCountries = []string{"India", "United States"}
	DefaultMetric    = models.OilConsumption
)

// Input names one field of the selection that views can depend on
type Input uint8

const (
	Countries Input = 1 << iota
	Metric
)

// Revision identifies the value of each input at a point in time.
// A field's revision advances only when its value actually changes.
type Revision struct {
	Countries uint64
	Metric    uint64
}

// Of returns the revision counter of a single input
func (r Revision) Of(in Input) uint64 {
	switch in {
	case Countries:
		return r.Countries
	case Metric:
		return r.Metric
	default:
		return 0
	}
}

// Selection is an immutable snapshot of the inputs
type Selection struct {
	Countries []string      `json:"countries"`
	Metric    models.Metric `json:"metric"`
}

// Contains reports whether country is selected
func (s Selection) Contains(country string) bool {
	for _, c := range s.Countries {
		if c == country {
			return true
		}
	}
	return false
}

// CountrySet returns the selected countries as a lookup set
func (s Selection) CountrySet() map[string]struct{} {
	set := make(map[string]struct{}, len(s.Countries))
	for _, c := range s.Countries {
		set[c] = struct{}{}
	}
	return set
}

// State is the mutable selection of one session. It is not safe for
// concurrent use; each session owns its own State.
type State struct {
	countries []string
	metric    models.Metric
	rev       Revision
}

// New returns a State holding the default selection
func New() *State {
	return &State{
		countries: normalizeCountries(DefaultCountries),
		metric:    DefaultMetric,
	}
}

// Snapshot returns a copy of the current selection
func (s *State) Snapshot() Selection {
	countries := make([]string, len(s.countries))
	copy(countries, s.countries)
	return Selection{Countries: countries, Metric: s.metric}
}

// Revision returns the current input revisions
func (s *State) Revision() Revision {
	return s.rev
}

// SetCountries replaces the selected countries. A single name is accepted
// the same way as a list; blanks and duplicates are dropped. An empty
// selection is valid and yields empty views. Reports whether the value changed.
func (s *State) SetCountries(countries ...string) bool {
	next := normalizeCountries(countries)
	if equalStrings(next, s.countries) {
		return false
	}
	s.countries = next
	s.rev.Countries++
	return true
}

// SetMetric selects the metric identified by key. Unknown keys fail with
// *models.UnknownMetricError and leave the state untouched. Reports whether
// the value changed.
func (s *State) SetMetric(key string) (bool, error) {
	m, err := models.ParseMetric(strings.TrimSpace(key))
	if err != nil {
		return false, err
	}
	if m == s.metric {
		return false, nil
	}
	s.metric = m
	s.rev.Metric++
	return true, nil
}

func normalizeCountries(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, c := range in {
		c = strings.TrimSpace(c)
		if c == "" || seen[c] {
			continue
		}
		seen[c] = true
		out = append(out, c)
	}
	return out
}

// equalStrings compares two selections as sets
func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]bool, len(a))
	for _, v := range a {
		set[v] = true
	}
	for _, v := range b {
		if !set[v] {
			return false
		}
	}
	return true
}
