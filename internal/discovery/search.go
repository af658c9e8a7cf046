package discovery

import (
	"sort"
	"strings"

	"github.com/meridiangw/gateway/pkg/models"
)

// SearchResult is one scored operation candidate returned by gateway.intent.
type SearchResult struct {
	Operation      models.Operation `json:"operation"`
	Confidence     float64          `json:"confidence"`
	Why            string           `json:"why"`
	NeedsSelection bool             `json:"needs_selection"`
}

// scoring weights 
const (
	weightTermFrequency    = 0.5
	weightAdapterProximity = 0.3
	weightContextHint      = 0.2

	// needsSelectionMargin: when the top two confidences differ by less
	// than this, the caller must disambiguate rather than auto-execute.
	needsSelectionMargin = 0.1
)

// SearchOptions carries optional hints the caller supplied alongside the
// free-text query (country/currency/preferred adapter), used for the
// capability-hint scoring term.
type SearchOptions struct {
	PreferredAdapter string
	Country          string
	Currency         string
}

func tokenize(s string) []string {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	})
	return fields
}

// Search scores every indexed operation against the query and returns
// candidates ordered by descending confidence.
func (o *OperationRegistry) Search(query string, opts SearchOptions) []SearchResult {
	terms := tokenize(query)
	ops := o.All()

	results := make([]SearchResult, 0, len(ops))
	for _, op := range ops {
		if op.IsMock {
			continue
		}
		tf := termFrequencyScore(terms, op)
		if tf == 0 {
			continue
		}
		proximity := adapterProximityScore(op, opts)
		hint := contextHintScore(op, opts)

		score := weightTermFrequency*tf + weightAdapterProximity*proximity + weightContextHint*hint
		if score > 1 {
			score = 1
		}
		results = append(results, SearchResult{
			Operation:  op,
			Confidence: score,
			Why:        explain(tf, proximity, hint),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].Confidence != results[j].Confidence {
			return results[i].Confidence > results[j].Confidence
		}
		return results[i].Operation.ToolID < results[j].Operation.ToolID
	})

	if len(results) >= 2 && results[0].Confidence-results[1].Confidence < needsSelectionMargin {
		results[0].NeedsSelection = true
		results[1].NeedsSelection = true
	}
	return results
}

// termFrequencyScore counts how many query terms appear in the operation's
// name, description, or category, normalized by the number of query terms.
func termFrequencyScore(terms []string, op models.Operation) float64 {
	if len(terms) == 0 {
		return 0
	}
	haystack := strings.ToLower(op.Name + " " + op.Description + " " + op.Category)
	matched := 0
	for _, t := range terms {
		if strings.Contains(haystack, t) {
			matched++
		}
	}
	return float64(matched) / float64(len(terms))
}

// adapterProximityScore rewards an exact match against a caller-preferred
// adapter and partially rewards an adapter ID that contains the preferred one.
func adapterProximityScore(op models.Operation, opts SearchOptions) float64 {
	if opts.PreferredAdapter == "" {
		return 0
	}
	if op.Adapter == opts.PreferredAdapter {
		return 1
	}
	if strings.Contains(op.Adapter, opts.PreferredAdapter) {
		return 0.5
	}
	return 0
}

// contextHintScore rewards operations whose description mentions the
// caller-supplied country/currency hints.
func contextHintScore(op models.Operation, opts SearchOptions) float64 {
	if opts.Country == "" && opts.Currency == "" {
		return 0
	}
	haystack := strings.ToLower(op.Description)
	hits, total := 0, 0
	if opts.Country != "" {
		total++
		if strings.Contains(haystack, strings.ToLower(opts.Country)) {
			hits++
		}
	}
	if opts.Currency != "" {
		total++
		if strings.Contains(haystack, strings.ToLower(opts.Currency)) {
			hits++
		}
	}
	if total == 0 {
		return 0
	}
	return float64(hits) / float64(total)
}

func explain(tf, proximity, hint float64) string {
	parts := make([]string, 0, 3)
	if tf > 0 {
		parts = append(parts, "term match")
	}
	if proximity > 0 {
		parts = append(parts, "adapter match")
	}
	if hint > 0 {
		parts = append(parts, "context hint match")
	}
	if len(parts) == 0 {
		return "no strong signal"
	}
	return strings.Join(parts, ", ")
}
