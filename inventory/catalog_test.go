package inventory

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Shorea robusta", "shorea robusta"},
		{"  SHOREA   ROBUSTA  ", "shorea robusta"},
		{"साल", "साल"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := NormalizeName(tt.in); got != tt.want {
			t.Errorf("NormalizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDefaultCatalogLookups(t *testing.T) {
	c := DefaultCatalog()

	sal := c.ByCode(1)
	require.NotNil(t, sal)
	assert.Equal(t, "Shorea robusta", sal.ScientificName)

	assert.Nil(t, c.ByCode(12345))

	entry, field := c.ByName("shorea ROBUSTA")
	require.NotNil(t, entry)
	assert.Equal(t, "Shorea robusta", entry.ScientificName)
	assert.Equal(t, "scientific", field)

	// Local-script lookup.
	entry, field = c.ByName("साल")
	require.NotNil(t, entry)
	assert.Equal(t, "Shorea robusta", entry.ScientificName)
	assert.Equal(t, "local", field)

	entry, field = c.ByName("Chir pine")
	require.NotNil(t, entry)
	assert.Equal(t, "Pinus roxburghii", entry.ScientificName)
	assert.Equal(t, "alias", field)

	entry, _ = c.ByName("no such tree")
	assert.Nil(t, entry)
}

func TestCatalogZoneDefaults(t *testing.T) {
	c := DefaultCatalog()

	terai := c.ZoneDefaultEntry(ZoneTerai)
	require.NotNil(t, terai)
	assert.Equal(t, "Terai misc species", terai.ScientificName)

	hill := c.ZoneDefaultEntry(ZoneHill)
	require.NotNil(t, hill)
	assert.Equal(t, "Hill misc species", hill.ScientificName)

	assert.Nil(t, c.ZoneDefaultEntry(ZoneNone))
}

func TestNewCatalogRejectsBadEntries(t *testing.T) {
	tests := []struct {
		name    string
		entries []CatalogEntry
	}{
		{"missing name", []CatalogEntry{{Code: 1}}},
		{"non-positive code", []CatalogEntry{{ScientificName: "X y", Code: 0}}},
		{"duplicate code", []CatalogEntry{
			{ScientificName: "A b", Code: 1},
			{ScientificName: "C d", Code: 1},
		}},
		{"duplicate name", []CatalogEntry{
			{ScientificName: "A b", Code: 1},
			{ScientificName: "a B", Code: 2},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCatalog(tt.entries)
			assert.Error(t, err)
		})
	}
}

func TestCatalogYAMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "species.yaml")

	original := DefaultCatalog()
	require.NoError(t, SaveCatalog(path, original))

	loaded, err := LoadCatalog(path)
	require.NoError(t, err)

	assert.Equal(t, original.Len(), loaded.Len())
	assert.Equal(t, original.Entries(), loaded.Entries())

	entry, _ := loaded.ByName("Sal")
	require.NotNil(t, entry)
	assert.Equal(t, 1, entry.Code)
}

func TestLoadCatalogMissingFile(t *testing.T) {
	_, err := LoadCatalog(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
