// Package geo holds the static city to region-code mapping used to route
// weather lookups. The table is immutable after load; classification is a
// pure lookup.
package geo

import (
	"os"
	"strings"

	"gopkg.in/yaml.v2"
)

// RegionTable maps city names to the primary weather provider's region
// codes. Cities absent from the table are classified non-domestic and go
// straight to the geocoded secondary provider.
type RegionTable struct {
	exact  map[string]string
	folded map[string]string
}

// NewRegionTable builds a table from an in-memory mapping. Test constructor.
func NewRegionTable(codes map[string]string) *RegionTable {
	t := &RegionTable{
		exact:  make(map[string]string, len(codes)),
		folded: make(map[string]string, len(codes)),
	}
	for city, code := range codes {
		t.exact[city] = code
		t.folded[strings.ToLower(strings.TrimSpace(city))] = code
	}
	return t
}

// LoadRegionTable reads the mapping from a YAML file of `city: code` pairs.
func LoadRegionTable(path string) (*RegionTable, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var codes map[string]string
	if err := yaml.Unmarshal(raw, &codes); err != nil {
		return nil, err
	}
	return NewRegionTable(codes), nil
}

// Lookup resolves a city to its region code: exact match first, then
// case-normalized.
func (t *RegionTable) Lookup(city string) (string, bool) {
	if code, ok := t.exact[city]; ok {
		return code, true
	}
	code, ok := t.folded[strings.ToLower(strings.TrimSpace(city))]
	return code, ok
}

// Domestic reports whether the city is served by the primary provider.
func (t *RegionTable) Domestic(city string) bool {
	_, ok := t.Lookup(city)
	return ok
}

// Len returns the number of mapped cities.
func (t *RegionTable) Len() int {
	return len(t.exact)
}
