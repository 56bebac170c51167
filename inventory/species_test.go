package inventory

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestIdentifier(t *testing.T) *SpeciesIdentifier {
	t.Helper()
	return NewSpeciesIdentifier(DefaultCatalog(), DefaultConfig().Species)
}

func TestResolveNumericCode(t *testing.T) {
	si := newTestIdentifier(t)

	m := si.Resolve("1", ZoneNone)
	assert.Equal(t, "Shorea robusta", m.CanonicalName)
	assert.Equal(t, MatchByCode, m.Method)
	assert.Equal(t, 1.0, m.Confidence)

	// Idempotence: resolving the same code twice yields identical results.
	again := si.Resolve("1", ZoneNone)
	assert.Equal(t, m.CanonicalName, again.CanonicalName)
	assert.Equal(t, m.Confidence, again.Confidence)

	// Unknown codes fall through to the later steps, ending in fallback.
	unknown := si.Resolve("42", ZoneHill)
	assert.Equal(t, MatchFallback, unknown.Method)
}

func TestResolveExactAndAlias(t *testing.T) {
	si := newTestIdentifier(t)

	tests := []struct {
		token      string
		wantName   string
		wantMethod MatchMethod
		wantField  string
	}{
		{"Shorea robusta", "Shorea robusta", MatchExact, "scientific"},
		{"shorea ROBUSTA", "Shorea robusta", MatchExact, "scientific"},
		{"Sal", "Shorea robusta", MatchByAlias, "local"},
		{"साल", "Shorea robusta", MatchByAlias, "local"},
		{"Chir pine", "Pinus roxburghii", MatchByAlias, "alias"},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			m := si.Resolve(tt.token, ZoneNone)
			assert.Equal(t, tt.wantName, m.CanonicalName)
			assert.Equal(t, tt.wantMethod, m.Method)
			assert.Equal(t, 1.0, m.Confidence)
			assert.Equal(t, tt.wantField, m.MatchedField)
		})
	}
}

func TestResolveAbbreviation(t *testing.T) {
	si := newTestIdentifier(t)

	// Two tokens covering genus and epithet score at least the two-token floor.
	m := si.Resolve("sho rob", ZoneNone)
	assert.Equal(t, "Shorea robusta", m.CanonicalName)
	assert.Equal(t, MatchByAbbreviation, m.Method)
	assert.GreaterOrEqual(t, m.Confidence, 0.8)

	// Separator variants normalize to the same pair.
	for _, token := range []string{"sho/rob", "sho-rob", "sho_rob"} {
		m := si.Resolve(token, ZoneNone)
		assert.Equal(t, "Shorea robusta", m.CanonicalName, "token %q", token)
		assert.Equal(t, MatchByAbbreviation, m.Method, "token %q", token)
	}

	// Reversed order still matches.
	m = si.Resolve("rob sho", ZoneNone)
	assert.Equal(t, "Shorea robusta", m.CanonicalName)
	assert.Equal(t, MatchByAbbreviation, m.Method)

	// A single genus prefix of at least 3 characters.
	m = si.Resolve("shor", ZoneNone)
	assert.Equal(t, "Shorea robusta", m.CanonicalName)
	assert.Equal(t, MatchByAbbreviation, m.Method)
	assert.GreaterOrEqual(t, m.Confidence, 0.65)

	// Longer coverage of the same word scores at least as high.
	short := si.Resolve("shor", ZoneNone)
	long := si.Resolve("shore", ZoneNone)
	assert.GreaterOrEqual(t, long.Confidence, short.Confidence)

	// Two-token coverage of both parts outranks one covered part.
	single := si.Resolve("shor", ZoneNone)
	double := si.Resolve("sho rob", ZoneNone)
	assert.Greater(t, double.Confidence, single.Confidence)
}

func TestResolveFuzzy(t *testing.T) {
	si := newTestIdentifier(t)

	m := si.Resolve("Shorea robusto", ZoneNone)
	assert.Equal(t, "Shorea robusta", m.CanonicalName)
	assert.Equal(t, MatchFuzzy, m.Method)
	assert.GreaterOrEqual(t, m.Confidence, 0.6)
	assert.Less(t, m.Confidence, 1.0)
}

func TestFuzzyConfidenceMonotonicity(t *testing.T) {
	// Confidence must never increase as the token drifts further from the
	// nearest catalog name.
	si := newTestIdentifier(t)

	tokens := []string{
		"Dalbergia sissoo", // exact
		"Dalbergia sissoq", // 1 edit
		"Dalbergia sisxqq", // 3 edits
		"Dalbergix sxsxqq", // 5 edits
	}
	prev := 2.0
	for _, token := range tokens {
		best, _ := si.rankFuzzy(token)
		require.NotEmpty(t, best.CanonicalName, "token %q", token)
		assert.LessOrEqual(t, best.Confidence, prev, "token %q", token)
		prev = best.Confidence
	}
}

func TestResolveFallback(t *testing.T) {
	si := newTestIdentifier(t)

	m := si.Resolve("unknowable gibberish", ZoneTerai)
	assert.Equal(t, "Terai misc species", m.CanonicalName)
	assert.Equal(t, MatchFallback, m.Method)
	assert.Equal(t, 0.5, m.Confidence)
	assert.NotEmpty(t, m.Reason)

	m = si.Resolve("unknowable gibberish", ZoneHill)
	assert.Equal(t, "Hill misc species", m.CanonicalName)

	// Absent a hint, the upland entry is the default.
	m = si.Resolve("unknowable gibberish", ZoneNone)
	assert.Equal(t, "Hill misc species", m.CanonicalName)
	assert.Equal(t, MatchFallback, m.Method)
}

func TestResolveNoMatchWithoutReservedEntries(t *testing.T) {
	catalog, err := NewCatalog([]CatalogEntry{
		{ScientificName: "Shorea robusta", Code: 1, LocalNames: []string{"Sal"}},
		{ScientificName: "Dalbergia sissoo", Code: 2},
		{ScientificName: "Acacia catechu", Code: 3},
		{ScientificName: "Bombax ceiba", Code: 4},
	})
	require.NoError(t, err)
	si := NewSpeciesIdentifier(catalog, DefaultConfig().Species)

	m := si.Resolve("unknowable gibberish", ZoneTerai)
	assert.Equal(t, MatchNone, m.Method)
	assert.Empty(t, m.CanonicalName)
	assert.Zero(t, m.Confidence)
	// Suggestions come from the fuzzy ranking regardless of its threshold.
	assert.NotEmpty(t, m.Suggestions)
	assert.LessOrEqual(t, len(m.Suggestions), 3)
	for i := 1; i < len(m.Suggestions); i++ {
		assert.GreaterOrEqual(t, m.Suggestions[i-1].Similarity, m.Suggestions[i].Similarity)
	}
}

func TestSimilarityRatio(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"abc", "abc", 1},
		{"", "", 1},
		{"abc", "", 0},
		{"abc", "abd", 1 - 1.0/3},
	}
	for _, tt := range tests {
		if got := similarityRatio(tt.a, tt.b); got != tt.want {
			t.Errorf("similarityRatio(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}

	// Symmetric.
	if similarityRatio("shorea", "shoria") != similarityRatio("shoria", "shorea") {
		t.Error("similarityRatio is not symmetric")
	}
}
