package research

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/rs/zerolog/log"

	contractx "github.com/Shreyas9400/Discord-Agentic-Bot/agent/contract"
)

// Models wrap JSON output in prose or code fences; take the widest
// brace-delimited block and parse that.
var jsonBlockPattern = regexp.MustCompile(`(?s)\{.*\}`)

type decomposeResponse struct {
	Queries []struct {
		Query string `json:"query"`
		Goal  string `json:"goal"`
	} `json:"queries"`
}

// decompose turns a topic into sub-queries with one generation call.
// Decomposition never hard-fails: any error or unusable output falls
// back to default facets of the topic.
func (p *Pipeline) decompose(ctx context.Context, topic string) []contractx.SubQuery {
	out, err := p.synth.Complete(ctx, p.prompts.Decompose, "Research topic: "+topic)
	if err != nil {
		log.Warn().Str("topic", topic).Err(err).Msg("decomposition failed, using fallback facets")
		return fallbackSubQueries(topic, p.cfg.MinSubQueries)
	}

	parsed := parseDecomposition(out)
	if len(parsed) == 0 {
		log.Warn().Str("topic", topic).Msg("decomposition output unusable, using fallback facets")
		return fallbackSubQueries(topic, p.cfg.MinSubQueries)
	}

	if len(parsed) > p.cfg.MaxSubQueries {
		parsed = parsed[:p.cfg.MaxSubQueries]
	}
	for len(parsed) < p.cfg.MinSubQueries {
		for _, fb := range fallbackFacets(topic) {
			if len(parsed) >= p.cfg.MinSubQueries {
				break
			}
			if !containsQuery(parsed, fb) {
				parsed = append(parsed, fb)
			}
		}
		break
	}

	queries := make([]contractx.SubQuery, 0, len(parsed))
	for i, text := range parsed {
		queries = append(queries, contractx.SubQuery{
			ParentTopic: topic,
			Text:        text,
			Index:       i,
		})
	}
	return queries
}

func parseDecomposition(out string) []string {
	block := jsonBlockPattern.FindString(out)
	if block == "" {
		return nil
	}

	var resp decomposeResponse
	if err := json.Unmarshal([]byte(block), &resp); err != nil {
		return nil
	}

	var queries []string
	for _, q := range resp.Queries {
		text := strings.TrimSpace(q.Query)
		if text == "" {
			continue
		}
		queries = append(queries, text)
	}
	return queries
}

func fallbackFacets(topic string) []string {
	return []string{
		fmt.Sprintf("%s overview", topic),
		fmt.Sprintf("%s analysis", topic),
		fmt.Sprintf("%s impact", topic),
	}
}

func fallbackSubQueries(topic string, minimum int) []contractx.SubQuery {
	facets := fallbackFacets(topic)
	if minimum > len(facets) {
		minimum = len(facets)
	}

	queries := make([]contractx.SubQuery, 0, minimum)
	for i, text := range facets[:minimum] {
		queries = append(queries, contractx.SubQuery{
			ParentTopic: topic,
			Text:        text,
			Index:       i,
		})
	}
	return queries
}

func containsQuery(queries []string, candidate string) bool {
	for _, q := range queries {
		if strings.EqualFold(q, candidate) {
			return true
		}
	}
	return false
}
