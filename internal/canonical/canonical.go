// Package canonical collapses spelling and formatting variants of buyer
// organization names into one canonical representative per cluster.
package canonical

import (
	"regexp"
	"strings"

	"github.com/greenbook-analytics/carbonscreen-cli/internal/model"
)

// abbreviations expanded during normalization, applied in order on the
// lowercased input.
var abbreviations = []struct {
	re   *regexp.Regexp
	repl string
}{
	{regexp.MustCompile(`\b(ltd\.?|limited)\b`), "limited"},
	{regexp.MustCompile(`\bplc\.?\b`), "plc"},
	{regexp.MustCompile(`\bco\.?\b`), "company"},
	{regexp.MustCompile(`\b(gov\.?|govt)\b`), "government"},
}

var multiSpace = regexp.MustCompile(`\s+`)

// Normalize lowercases, trims, expands known abbreviations, replaces "&"
// with "and", and collapses whitespace.
func Normalize(name string) string {
	text := strings.ToLower(strings.TrimSpace(name))
	for _, a := range abbreviations {
		text = a.re.ReplaceAllString(text, a.repl)
	}
	text = strings.ReplaceAll(text, "&", "and")
	text = multiSpace.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

// Key derives the clustering key for a normalized name: the uppercase
// initials of each word when there is more than one, otherwise the uppercase
// name itself. Single-word collisions are an accepted heuristic limitation.
func Key(normalized string) string {
	words := strings.Fields(normalized)
	if len(words) <= 1 {
		return strings.ToUpper(normalized)
	}
	var b strings.Builder
	for _, w := range words {
		b.WriteRune([]rune(w)[0])
	}
	return strings.ToUpper(b.String())
}

// Cluster groups the given raw names (occurrences, repeats allowed) by
// normalization key and chooses a canonical representative per cluster:
// a variant whose spaces-stripped uppercase form equals the key wins,
// otherwise the most frequent variant, ties broken by first-encountered
// order.
func Cluster(names []string) []model.BuyerCluster {
	type clusterAcc struct {
		key      string
		variants []string         // first-encountered order, unique
		counts   map[string]int   // occurrences per variant
	}

	var order []string
	accs := make(map[string]*clusterAcc)

	for _, name := range names {
		if strings.TrimSpace(name) == "" {
			continue
		}
		key := Key(Normalize(name))
		acc, ok := accs[key]
		if !ok {
			acc = &clusterAcc{key: key, counts: make(map[string]int)}
			accs[key] = acc
			order = append(order, key)
		}
		if _, seen := acc.counts[name]; !seen {
			acc.variants = append(acc.variants, name)
		}
		acc.counts[name]++
	}

	clusters := make([]model.BuyerCluster, 0, len(order))
	for _, key := range order {
		acc := accs[key]
		clusters = append(clusters, model.BuyerCluster{
			Key:       key,
			Variants:  acc.variants,
			Canonical: chooseCanonical(acc.key, acc.variants, acc.counts),
		})
	}
	return clusters
}

func chooseCanonical(key string, variants []string, counts map[string]int) string {
	// An acronym-form variant beats frequency.
	for _, v := range variants {
		stripped := strings.ToUpper(strings.ReplaceAll(v, " ", ""))
		if stripped == key {
			return v
		}
	}

	best := variants[0]
	for _, v := range variants[1:] {
		if counts[v] > counts[best] {
			best = v
		}
	}
	return best
}

// BuildMap produces the buyer-map artifact: one row per distinct raw name,
// mapping it to its cluster's canonical representative. The mapping is total
// and a pure function of the full input set; it is regenerated on every run.
func BuildMap(names []string) []model.BuyerMapping {
	clusters := Cluster(names)
	var rows []model.BuyerMapping
	for _, c := range clusters {
		for _, v := range c.Variants {
			rows = append(rows, model.BuyerMapping{Raw: v, Canonical: c.Canonical})
		}
	}
	return rows
}

// Apply rewrites each contract's buyer name to its canonical form, keeping
// the original in BuyerNameRaw. Names missing from the map pass through.
func Apply(records []model.ContractRecord, rows []model.BuyerMapping) []model.ContractRecord {
	m := make(map[string]string, len(rows))
	for _, r := range rows {
		m[r.Raw] = r.Canonical
	}
	out := make([]model.ContractRecord, len(records))
	for i, rec := range records {
		rec.BuyerNameRaw = rec.BuyerName
		if canonical, ok := m[rec.BuyerName]; ok {
			rec.BuyerName = canonical
		}
		out[i] = rec
	}
	return out
}
