package inventory

import (
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
	"gopkg.in/yaml.v3"
)

// Zone is the coarse physiographic classification used only as a
// last-resort species fallback.
type Zone string

const (
	ZoneNone  Zone = ""
	ZoneTerai Zone = "terai"
	ZoneHill  Zone = "hill"
)

// CatalogEntry is one canonical species record. Codes are stable 1..N.
// LocalNames may be in any script; matching normalizes and case-folds, so
// entries store names as written. ZoneDefault marks the two reserved
// fallback entries.
type CatalogEntry struct {
	ScientificName string   `yaml:"scientificName" json:"scientificName"`
	Code           int      `yaml:"code" json:"code"`
	LocalNames     []string `yaml:"localNames,omitempty" json:"localNames,omitempty"`
	Aliases        []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	ZoneDefault    Zone     `yaml:"zoneDefault,omitempty" json:"zoneDefault,omitempty"`
}

// nameRef points a normalized name back to its entry and source field.
type nameRef struct {
	entry *CatalogEntry
	field string // "scientific", "alias", "local"
}

// Catalog is the immutable species reference data for one validation pass.
// It is constructed once, injected into the identifier, and never mutated
// during validation.
type Catalog struct {
	entries []CatalogEntry
	byCode  map[int]*CatalogEntry
	byName  map[string]nameRef
}

var caseFolder = cases.Fold()

// NormalizeName prepares a name or token for script-insensitive matching:
// Unicode NFC normalization, case folding, whitespace collapsing.
func NormalizeName(s string) string {
	s = norm.NFC.String(s)
	s = caseFolder.String(s)
	return strings.Join(strings.Fields(s), " ")
}

// NewCatalog builds an indexed catalog from entries. Codes must be unique
// and positive; scientific names must be unique after normalization.
func NewCatalog(entries []CatalogEntry) (*Catalog, error) {
	c := &Catalog{
		entries: make([]CatalogEntry, len(entries)),
		byCode:  make(map[int]*CatalogEntry, len(entries)),
		byName:  make(map[string]nameRef),
	}
	copy(c.entries, entries)

	for i := range c.entries {
		e := &c.entries[i]
		if e.ScientificName == "" {
			return nil, fmt.Errorf("catalog entry %d has no scientific name", i)
		}
		if e.Code <= 0 {
			return nil, fmt.Errorf("catalog entry %q has non-positive code %d", e.ScientificName, e.Code)
		}
		if prev, dup := c.byCode[e.Code]; dup {
			return nil, fmt.Errorf("catalog code %d assigned to both %q and %q", e.Code, prev.ScientificName, e.ScientificName)
		}
		c.byCode[e.Code] = e

		key := NormalizeName(e.ScientificName)
		if prev, dup := c.byName[key]; dup {
			return nil, fmt.Errorf("duplicate scientific name %q (codes %d, %d)", e.ScientificName, prev.entry.Code, e.Code)
		}
		c.byName[key] = nameRef{entry: e, field: "scientific"}

		for _, a := range e.Aliases {
			k := NormalizeName(a)
			if _, dup := c.byName[k]; !dup {
				c.byName[k] = nameRef{entry: e, field: "alias"}
			}
		}
		for _, l := range e.LocalNames {
			k := NormalizeName(l)
			if _, dup := c.byName[k]; !dup {
				c.byName[k] = nameRef{entry: e, field: "local"}
			}
		}
	}
	return c, nil
}

// LoadCatalog reads a species catalog from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("catalog file not found: %s", path)
		}
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}

	var raw struct {
		Species []CatalogEntry `yaml:"species"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing catalog YAML: %w", err)
	}
	if len(raw.Species) == 0 {
		return nil, fmt.Errorf("catalog file %s defines no species", path)
	}
	return NewCatalog(raw.Species)
}

// SaveCatalog writes the catalog entries to a YAML file.
func SaveCatalog(path string, c *Catalog) error {
	data, err := yaml.Marshal(struct {
		Species []CatalogEntry `yaml:"species"`
	}{Species: c.entries})
	if err != nil {
		return fmt.Errorf("marshaling catalog YAML: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing catalog file: %w", err)
	}
	return nil
}

// ByCode returns the entry with the given numeric code, or nil.
func (c *Catalog) ByCode(code int) *CatalogEntry {
	return c.byCode[code]
}

// ByName returns the entry whose scientific name, alias, or local name
// matches the token after normalization, plus the matched field.
func (c *Catalog) ByName(token string) (*CatalogEntry, string) {
	ref, ok := c.byName[NormalizeName(token)]
	if !ok {
		return nil, ""
	}
	return ref.entry, ref.field
}

// ZoneDefaultEntry returns the reserved fallback entry for a zone, or nil
// if the catalog does not carry one.
func (c *Catalog) ZoneDefaultEntry(zone Zone) *CatalogEntry {
	for i := range c.entries {
		if c.entries[i].ZoneDefault == zone && zone != ZoneNone {
			return &c.entries[i]
		}
	}
	return nil
}

// Entries returns a copy of the catalog entries.
func (c *Catalog) Entries() []CatalogEntry {
	out := make([]CatalogEntry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Len returns the number of entries.
func (c *Catalog) Len() int {
	return len(c.entries)
}

// DefaultCatalog returns the built-in catalog for the survey region. The
// last two entries are the reserved zone-default records used by the
// species fallback; removing them disables the fallback path.
func DefaultCatalog() *Catalog {
	entries := []CatalogEntry{
		{ScientificName: "Shorea robusta", Code: 1, LocalNames: []string{"Sal", "साल"}},
		{ScientificName: "Acacia catechu", Code: 2, LocalNames: []string{"Khair", "खयर"}},
		{ScientificName: "Dalbergia sissoo", Code: 3, LocalNames: []string{"Sissoo", "सिसौ"}},
		{ScientificName: "Pinus roxburghii", Code: 4, LocalNames: []string{"Khote Salla", "खोटे सल्ला"}, Aliases: []string{"Chir pine"}},
		{ScientificName: "Schima wallichii", Code: 5, LocalNames: []string{"Chilaune", "चिलाउने"}},
		{ScientificName: "Alnus nepalensis", Code: 6, LocalNames: []string{"Utis", "उत्तिस"}, Aliases: []string{"Nepalese alder"}},
		{ScientificName: "Terminalia alata", Code: 7, LocalNames: []string{"Saj", "Asna", "साज"}, Aliases: []string{"Terminalia tomentosa"}},
		{ScientificName: "Adina cordifolia", Code: 8, LocalNames: []string{"Karma", "कर्म"}, Aliases: []string{"Haldina cordifolia"}},
		{ScientificName: "Bombax ceiba", Code: 9, LocalNames: []string{"Simal", "सिमल"}, Aliases: []string{"Silk cotton tree"}},
		{ScientificName: "Tectona grandis", Code: 10, LocalNames: []string{"Teak", "सागवान"}},
		{ScientificName: "Castanopsis indica", Code: 11, LocalNames: []string{"Dhale Katus", "ढले कटुस"}},
		{ScientificName: "Quercus semecarpifolia", Code: 12, LocalNames: []string{"Khasru", "खस्रु"}},
		{ScientificName: "Terai misc species", Code: 98, ZoneDefault: ZoneTerai,
			Aliases: []string{"Terai other species"}},
		{ScientificName: "Hill misc species", Code: 99, ZoneDefault: ZoneHill,
			Aliases: []string{"Hill other species"}},
	}
	c, err := NewCatalog(entries)
	if err != nil {
		// The built-in entries are static; a failure here is a programming error.
		panic(fmt.Sprintf("building default catalog: %v", err))
	}
	return c
}
