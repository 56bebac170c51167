package inventory

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// SpeciesIdentifier resolves free-text or numeric species tokens against an
// immutable catalog. Resolution tries, in order: numeric code, abbreviation
// pattern, exact name, fuzzy match, zone fallback. Each step short-circuits
// on success and the result always reports which method matched.
type SpeciesIdentifier struct {
	catalog *Catalog
	cfg     SpeciesConfig
}

// NewSpeciesIdentifier builds an identifier over the given catalog.
func NewSpeciesIdentifier(catalog *Catalog, cfg SpeciesConfig) *SpeciesIdentifier {
	return &SpeciesIdentifier{catalog: catalog, cfg: cfg}
}

// Resolve maps one species token to a catalog record. The zone hint is
// used only by the last-resort fallback; ZoneNone defaults to the hill
// entry. A no-match result (method none) is returned only when the
// reserved fallback entries are absent from the catalog, and carries up to
// MaxSuggestions ranked near-misses.
func (si *SpeciesIdentifier) Resolve(token string, zone Zone) SpeciesMatch {
	trimmed := strings.TrimSpace(token)
	if trimmed != "" {
		if m, ok := si.resolveCode(trimmed); ok {
			return m
		}
		if m, ok := si.resolveAbbreviation(trimmed); ok {
			return m
		}
		if m, ok := si.resolveExact(trimmed); ok {
			return m
		}
		if m, ok := si.resolveFuzzy(trimmed); ok {
			return m
		}
	}
	return si.resolveFallback(trimmed, zone)
}

// resolveCode handles pure numeric tokens as catalog code lookups.
func (si *SpeciesIdentifier) resolveCode(token string) (SpeciesMatch, bool) {
	code, err := strconv.Atoi(token)
	if err != nil || code <= 0 {
		return SpeciesMatch{}, false
	}
	entry := si.catalog.ByCode(code)
	if entry == nil {
		return SpeciesMatch{}, false
	}
	return SpeciesMatch{
		CanonicalName: entry.ScientificName,
		SpeciesCode:   entry.Code,
		Method:        MatchByCode,
		Confidence:    1.0,
		MatchedField:  "code",
	}, true
}

// resolveExact matches the token case- and script-insensitively against
// scientific names, aliases, and local names.
func (si *SpeciesIdentifier) resolveExact(token string) (SpeciesMatch, bool) {
	entry, field := si.catalog.ByName(token)
	if entry == nil {
		return SpeciesMatch{}, false
	}
	method := MatchExact
	if field == "alias" || field == "local" {
		method = MatchByAlias
	}
	return SpeciesMatch{
		CanonicalName: entry.ScientificName,
		SpeciesCode:   entry.Code,
		Method:        method,
		Confidence:    1.0,
		MatchedField:  field,
	}, true
}

// resolveAbbreviation handles shorthand like "sho rob", "S/robusta", or
// "shor". Separators are normalized to spaces; at most two tokens are
// considered. A single token must be a prefix (at least 3 characters) of a
// genus or epithet; confidence grows with the covered share of the word.
// Two tokens must be prefixes of genus and epithet (in either order) and
// score higher for covering both parts. The best candidate across the whole
// catalog wins; anything under the configured floor is rejected.
func (si *SpeciesIdentifier) resolveAbbreviation(token string) (SpeciesMatch, bool) {
	// A token that is a complete catalog name belongs to the exact step,
	// not here: it must report method exact with confidence 1.0.
	if entry, _ := si.catalog.ByName(token); entry != nil {
		return SpeciesMatch{}, false
	}

	normalized := strings.NewReplacer("/", " ", "-", " ", "_", " ").Replace(token)
	parts := strings.Fields(strings.ToLower(normalized))
	if len(parts) == 0 || len(parts) > 2 {
		return SpeciesMatch{}, false
	}

	best := SpeciesMatch{}
	for _, entry := range si.catalog.entries {
		genus, epithet := splitScientificName(entry.ScientificName)
		if genus == "" {
			continue
		}

		var conf float64
		if len(parts) == 1 {
			conf = si.scoreSingleToken(parts[0], genus, epithet)
		} else {
			conf = si.scoreTwoTokens(parts[0], parts[1], genus, epithet)
		}

		if conf > best.Confidence {
			best = SpeciesMatch{
				CanonicalName: entry.ScientificName,
				SpeciesCode:   entry.Code,
				Method:        MatchByAbbreviation,
				Confidence:    conf,
				MatchedField:  "scientific",
			}
		}
	}

	if best.Confidence < si.cfg.AbbreviationFloor {
		return SpeciesMatch{}, false
	}
	return best, true
}

// scoreSingleToken scores a lone abbreviation against genus or epithet.
// Returns 0 when the token is no prefix of either.
func (si *SpeciesIdentifier) scoreSingleToken(tok, genus, epithet string) float64 {
	if len(tok) < 3 {
		return 0
	}
	best := 0.0
	for _, word := range []string{genus, epithet} {
		if word == "" || !strings.HasPrefix(word, tok) {
			continue
		}
		coverage := float64(len(tok)) / float64(len(word))
		conf := si.cfg.AbbreviationFloor + 0.25*coverage
		if conf > best {
			best = conf
		}
	}
	return best
}

// scoreTwoTokens scores a genus+epithet abbreviation pair, accepting
// either token order. Covering both parts of the binomial is stronger
// evidence than one, so the floor is higher.
func (si *SpeciesIdentifier) scoreTwoTokens(tok1, tok2, genus, epithet string) float64 {
	if epithet == "" || len(tok1) < 2 || len(tok2) < 2 {
		return 0
	}
	score := func(a, b string) float64 {
		if !strings.HasPrefix(genus, a) || !strings.HasPrefix(epithet, b) {
			return 0
		}
		coverage := (float64(len(a))/float64(len(genus)) + float64(len(b))/float64(len(epithet))) / 2
		return si.cfg.TwoTokenFloor + 0.15*coverage
	}
	best := score(tok1, tok2)
	if s := score(tok2, tok1); s > best {
		best = s
	}
	return best
}

// splitScientificName splits a binomial into lowercase genus and epithet.
func splitScientificName(name string) (genus, epithet string) {
	fields := strings.Fields(strings.ToLower(name))
	if len(fields) == 0 {
		return "", ""
	}
	genus = fields[0]
	if len(fields) > 1 {
		epithet = fields[1]
	}
	return genus, epithet
}

// resolveFuzzy runs the character-level similarity ratio against every
// name field in the catalog and accepts the best result only above the
// configured minimum.
func (si *SpeciesIdentifier) resolveFuzzy(token string) (SpeciesMatch, bool) {
	match, _ := si.rankFuzzy(token)
	if match.Confidence < si.cfg.MinFuzzyConfidence || match.CanonicalName == "" {
		return SpeciesMatch{}, false
	}
	return match, true
}

// rankFuzzy returns the best fuzzy candidate and the ranked near-miss
// list (best similarity per canonical name, descending, capped at
// MaxSuggestions). The ranking ignores the acceptance threshold so it can
// feed no-match suggestions.
func (si *SpeciesIdentifier) rankFuzzy(token string) (SpeciesMatch, []RankedSuggestion) {
	normalized := NormalizeName(token)
	bestPerName := make(map[string]float64)

	best := SpeciesMatch{}
	for i := range si.catalog.entries {
		entry := &si.catalog.entries[i]
		fields := []struct {
			name  string
			field string
		}{{entry.ScientificName, "scientific"}}
		for _, a := range entry.Aliases {
			fields = append(fields, struct {
				name  string
				field string
			}{a, "alias"})
		}
		for _, l := range entry.LocalNames {
			fields = append(fields, struct {
				name  string
				field string
			}{l, "local"})
		}

		for _, f := range fields {
			sim := similarityRatio(normalized, NormalizeName(f.name))
			if sim > bestPerName[entry.ScientificName] {
				bestPerName[entry.ScientificName] = sim
			}
			if sim > best.Confidence {
				best = SpeciesMatch{
					CanonicalName: entry.ScientificName,
					SpeciesCode:   entry.Code,
					Method:        MatchFuzzy,
					Confidence:    sim,
					MatchedField:  f.field,
				}
			}
		}
	}

	suggestions := make([]RankedSuggestion, 0, len(bestPerName))
	for name, sim := range bestPerName {
		suggestions = append(suggestions, RankedSuggestion{CanonicalName: name, Similarity: sim})
	}
	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Similarity != suggestions[j].Similarity {
			return suggestions[i].Similarity > suggestions[j].Similarity
		}
		return suggestions[i].CanonicalName < suggestions[j].CanonicalName
	})
	if max := si.cfg.MaxSuggestions; max > 0 && len(suggestions) > max {
		suggestions = suggestions[:max]
	}
	return best, suggestions
}

// resolveFallback maps an unmatched token to the reserved zone-default
// entry. Confidence is fixed at 0.5 and the result carries a
// human-readable reason so the substitution is visible in the report. When
// even the reserved entries are missing, the result is a no-match carrying
// ranked suggestions.
func (si *SpeciesIdentifier) resolveFallback(token string, zone Zone) SpeciesMatch {
	effective := zone
	if effective == ZoneNone {
		effective = ZoneHill
	}
	entry := si.catalog.ZoneDefaultEntry(effective)
	if entry == nil && effective != ZoneHill {
		entry = si.catalog.ZoneDefaultEntry(ZoneHill)
		effective = ZoneHill
	}
	if entry != nil {
		reason := fmt.Sprintf("no catalog match for %q; substituted %s default %q", token, effective, entry.ScientificName)
		if zone == ZoneNone {
			reason = fmt.Sprintf("no catalog match for %q and no zone hint; substituted %q", token, entry.ScientificName)
		}
		return SpeciesMatch{
			CanonicalName: entry.ScientificName,
			SpeciesCode:   entry.Code,
			Method:        MatchFallback,
			Confidence:    0.5,
			MatchedField:  "zone-default",
			Reason:        reason,
		}
	}

	_, suggestions := si.rankFuzzy(token)
	return SpeciesMatch{
		Method:      MatchNone,
		Confidence:  0,
		Reason:      fmt.Sprintf("no catalog match for %q and no zone-default entries in catalog", token),
		Suggestions: suggestions,
	}
}
