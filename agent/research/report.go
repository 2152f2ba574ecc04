package research

import (
	"net/url"
	"sort"
	"strings"

	contractx "github.com/Shreyas9400/Discord-Agentic-Bot/agent/contract"
)

// dedupeResults collapses results sharing a normalized source URL,
// keeping the best (lowest) rank, and returns the survivors ordered by
// rank for deterministic synthesis input.
func dedupeResults(results []contractx.SearchResult) []contractx.SearchResult {
	best := make(map[string]contractx.SearchResult, len(results))
	for _, r := range results {
		key := normalizeSourceURL(r.SourceURL)
		if key == "" {
			continue
		}
		if existing, ok := best[key]; !ok || r.Rank < existing.Rank {
			best[key] = r
		}
	}

	deduped := make([]contractx.SearchResult, 0, len(best))
	for _, r := range best {
		deduped = append(deduped, r)
	}
	sort.Slice(deduped, func(i, j int) bool {
		if deduped[i].Rank != deduped[j].Rank {
			return deduped[i].Rank < deduped[j].Rank
		}
		return deduped[i].SourceURL < deduped[j].SourceURL
	})
	return deduped
}

// normalizeSourceURL canonicalizes a URL for deduplication: scheme and
// host are case-insensitive, fragments are irrelevant, and a trailing
// slash is the same page.
func normalizeSourceURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		return strings.ToLower(strings.TrimRight(raw, "/"))
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	parsed.Path = strings.TrimRight(parsed.Path, "/")
	return parsed.String()
}

// truncateResults bounds the synthesis context, dropping lowest-ranked
// results first. Input must already be ordered best rank first.
func truncateResults(results []contractx.SearchResult, maxChars int) []contractx.SearchResult {
	var used int
	for i, r := range results {
		used += len(r.Title) + len(r.Snippet) + len(r.SourceURL)
		if used > maxChars {
			return results[:i]
		}
	}
	return results
}

// parseSections splits generated markdown into ordered report sections.
// Text before the first heading becomes an unnamed leading section.
func parseSections(text string) []contractx.ReportSection {
	var sections []contractx.ReportSection
	var heading string
	var body []string

	flush := func() {
		content := strings.TrimSpace(strings.Join(body, "\n"))
		if heading == "" && content == "" {
			body = nil
			return
		}
		sections = append(sections, contractx.ReportSection{Heading: heading, Body: content})
		body = nil
	}

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			flush()
			heading = strings.TrimSpace(strings.TrimLeft(trimmed, "#"))
			continue
		}
		body = append(body, line)
	}
	flush()

	if len(sections) == 0 {
		sections = append(sections, contractx.ReportSection{Heading: "Report", Body: strings.TrimSpace(text)})
	}
	return sections
}
